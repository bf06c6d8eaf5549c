// Package store defines persistence contracts for the lending server.
// Implementations live in store/sqlite (relational) and store/kv (Badger, ledger only).
package store

import (
	"context"
	"iter"
	"time"

	"github.com/almogrr/projectTrainigLibary/internal/domain"
)

// Users persists accounts.
type Users interface {
	CreateUser(ctx context.Context, user *domain.User) error
	GetUser(ctx context.Context, id string) (*domain.User, error)
	GetUserByUsername(ctx context.Context, username string) (*domain.User, error)
	UpdateUser(ctx context.Context, user *domain.User) error
	ListUsers(ctx context.Context) ([]*domain.User, error)
	CountUsers(ctx context.Context) (int, error)
}

// Sessions persists refresh-token sessions.
type Sessions interface {
	CreateSession(ctx context.Context, session *domain.Session) error
	GetSessionByRefreshToken(ctx context.Context, tokenHash string) (*domain.Session, error)
	UpdateSession(ctx context.Context, session *domain.Session) error
	DeleteSession(ctx context.Context, id string) error
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int, error)
}

// Books persists the catalog. Deleted books are soft-deleted and invisible to Get and List.
type Books interface {
	CreateBook(ctx context.Context, book *domain.Book) error
	GetBook(ctx context.Context, id string) (*domain.Book, error)
	UpdateBook(ctx context.Context, book *domain.Book) error
	DeleteBook(ctx context.Context, id string, at time.Time) error
	ListBooks(ctx context.Context, params PaginationParams) (*PaginatedResult[*domain.Book], error)
	AllBooks(ctx context.Context) iter.Seq2[*domain.Book, error]
}

// Ledger is the loan ledger. It is the only shared mutable lending state.
//
// CreateLoan must check for an existing open loan on the book and insert the new
// one atomically, failing with ErrLoanConflict when another open loan exists.
// Listings are lazy and re-run their query on every iteration.
type Ledger interface {
	CreateLoan(ctx context.Context, bookID, borrowerID string, now time.Time) (*domain.Loan, error)
	GetLoan(ctx context.Context, loanID string) (*domain.Loan, error)
	// FindOpenLoan returns the open loan for bookID, or nil and no error when there is none.
	FindOpenLoan(ctx context.Context, bookID string) (*domain.Loan, error)
	// CloseLoan sets the return time. Fails with ErrNotFound or ErrLoanClosed.
	CloseLoan(ctx context.Context, loanID string, now time.Time) (*domain.Loan, error)
	ListLoans(ctx context.Context) iter.Seq2[*domain.Loan, error]
	ListOpenLoans(ctx context.Context) iter.Seq2[*domain.Loan, error]
	ListLoansByBorrower(ctx context.Context, borrowerID string) iter.Seq2[*domain.Loan, error]
	Close() error
}
