package service

import (
	"context"
	"fmt"

	"github.com/almogrr/projectTrainigLibary/internal/domain"
	"github.com/almogrr/projectTrainigLibary/internal/store"
)

// Availability answers "is this book on the shelf" from the ledger alone.
// Nothing about availability is stored on the book.
type Availability struct {
	ledger store.Ledger
}

// NewAvailability creates a tracker over ledger.
func NewAvailability(ledger store.Ledger) *Availability {
	return &Availability{ledger: ledger}
}

// IsAvailable reports whether bookID has no open loan.
func (a *Availability) IsAvailable(ctx context.Context, bookID string) (bool, error) {
	_, held, err := a.HolderOf(ctx, bookID)
	return !held, err
}

// HolderOf returns the borrower of the open loan on bookID, if any.
func (a *Availability) HolderOf(ctx context.Context, bookID string) (string, bool, error) {
	loan, err := a.ledger.FindOpenLoan(ctx, bookID)
	if err != nil {
		return "", false, fmt.Errorf("find open loan for %s: %w", bookID, err)
	}
	if loan == nil {
		return "", false, nil
	}
	return loan.BorrowerID, true, nil
}

// State returns the full availability record for bookID.
func (a *Availability) State(ctx context.Context, bookID string) (*domain.BookAvailability, error) {
	loan, err := a.ledger.FindOpenLoan(ctx, bookID)
	if err != nil {
		return nil, fmt.Errorf("find open loan for %s: %w", bookID, err)
	}
	state := &domain.BookAvailability{BookID: bookID, Available: loan == nil}
	if loan != nil {
		state.HolderID = loan.BorrowerID
		state.LoanID = loan.ID
	}
	return state, nil
}
