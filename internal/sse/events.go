// Package sse pushes catalog and loan changes to connected clients as Server-Sent Events.
package sse

import (
	"time"

	"github.com/almogrr/projectTrainigLibary/internal/domain"
)

// EventType names an SSE event.
type EventType string

const (
	EventBookCreated EventType = "book.created"
	EventBookUpdated EventType = "book.updated"
	EventBookDeleted EventType = "book.deleted"

	// Loan events are delivered to the borrower and to librarians.
	EventLoanCreated  EventType = "loan.created"
	EventLoanReturned EventType = "loan.returned"

	EventPolicyUpdated EventType = "policy.updated"

	EventHeartbeat EventType = "heartbeat"
)

// Event is one message to clients.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
	Type      EventType `json:"type"`

	// UserID restricts delivery to one user (plus librarians). Empty means everyone.
	UserID string `json:"-"`
}

// BookEventData is the payload for book.created and book.updated.
type BookEventData struct {
	Book      *domain.Book `json:"book"`
	Available bool         `json:"available"`
}

// BookDeletedEventData is the payload for book.deleted.
type BookDeletedEventData struct {
	DeletedAt time.Time `json:"deleted_at"`
	BookID    string    `json:"book_id"`
}

// LoanEventData is the payload for loan events.
type LoanEventData struct {
	Loan               *domain.Loan `json:"loan"`
	ExpectedReturnTime time.Time    `json:"expected_return_time"`
	Late               bool         `json:"late,omitempty"`
}

// PolicyEventData is the payload for policy.updated.
type PolicyEventData struct {
	Durations map[domain.Category]string `json:"durations"`
}

// HeartbeatEventData is the payload for heartbeat events.
type HeartbeatEventData struct {
	ServerTime time.Time `json:"server_time"`
}

func newEvent(t EventType, data any) Event {
	return Event{Type: t, Data: data, Timestamp: time.Now().UTC()}
}

// NewBookCreatedEvent announces a new catalog entry.
func NewBookCreatedEvent(book *domain.Book) Event {
	return newEvent(EventBookCreated, BookEventData{Book: book, Available: true})
}

// NewBookUpdatedEvent announces changed book metadata.
func NewBookUpdatedEvent(book *domain.Book, available bool) Event {
	return newEvent(EventBookUpdated, BookEventData{Book: book, Available: available})
}

// NewBookDeletedEvent announces a removed book.
func NewBookDeletedEvent(bookID string, deletedAt time.Time) Event {
	return newEvent(EventBookDeleted, BookDeletedEventData{BookID: bookID, DeletedAt: deletedAt})
}

// NewLoanCreatedEvent announces a checkout to the borrower and librarians.
func NewLoanCreatedEvent(loan *domain.Loan, expected time.Time) Event {
	e := newEvent(EventLoanCreated, LoanEventData{Loan: loan, ExpectedReturnTime: expected})
	e.UserID = loan.BorrowerID
	return e
}

// NewLoanReturnedEvent announces a return to the borrower and librarians.
func NewLoanReturnedEvent(loan *domain.Loan, expected time.Time, late bool) Event {
	e := newEvent(EventLoanReturned, LoanEventData{Loan: loan, ExpectedReturnTime: expected, Late: late})
	e.UserID = loan.BorrowerID
	return e
}

// NewPolicyUpdatedEvent announces a reloaded lending policy.
func NewPolicyUpdatedEvent(durations map[domain.Category]time.Duration) Event {
	out := make(map[domain.Category]string, len(durations))
	for c, d := range durations {
		out[c] = d.String()
	}
	return newEvent(EventPolicyUpdated, PolicyEventData{Durations: out})
}

// NewHeartbeatEvent keeps idle connections open.
func NewHeartbeatEvent() Event {
	return newEvent(EventHeartbeat, HeartbeatEventData{ServerTime: time.Now().UTC()})
}
