package kv

import (
	"context"
	"errors"
	"iter"
	"time"

	"github.com/almogrr/projectTrainigLibary/internal/domain"
	"github.com/almogrr/projectTrainigLibary/internal/id"
	"github.com/almogrr/projectTrainigLibary/internal/store"
)

// timeKeyLayout is fixed-width so index keys sort in loan-time order.
const timeKeyLayout = "20060102T150405.000000000"

const (
	indexOpenBook = "open_book"
	indexTime     = "time"
	indexBorrower = "borrower"
)

// Ledger is a store.Ledger on Badger.
//
// The open_book index holds a key for a book only while it has an open loan.
// Claiming that key inside the insert transaction is the atomic check-and-insert.
type Ledger struct {
	store *Store
	loans *Entity[domain.Loan]
}

var _ store.Ledger = (*Ledger)(nil)

// NewLedger creates the ledger on s.
func NewLedger(s *Store) *Ledger {
	loans := NewEntity[domain.Loan](s, "loan:").
		WithIndex(indexOpenBook, func(l *domain.Loan) []string {
			if !l.IsOpen() {
				return nil
			}
			return []string{l.BookID}
		}).
		WithIndex(indexTime, func(l *domain.Loan) []string {
			return []string{timeKey(l)}
		}).
		WithIndex(indexBorrower, func(l *domain.Loan) []string {
			return []string{l.BorrowerID + ":" + timeKey(l)}
		})

	return &Ledger{store: s, loans: loans}
}

func timeKey(l *domain.Loan) string {
	return l.LoanTime.UTC().Format(timeKeyLayout) + ":" + l.ID
}

// CreateLoan opens a loan, failing with store.ErrLoanConflict if the book is already out.
func (l *Ledger) CreateLoan(ctx context.Context, bookID, borrowerID string, now time.Time) (*domain.Loan, error) {
	loanID, err := id.Generate("loan")
	if err != nil {
		return nil, err
	}
	loan := &domain.Loan{
		ID:         loanID,
		BookID:     bookID,
		BorrowerID: borrowerID,
		LoanTime:   now.UTC(),
	}

	if err := l.loans.Create(ctx, loan.ID, loan); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return nil, store.ErrLoanConflict
		}
		return nil, err
	}
	return loan, nil
}

// GetLoan loads a loan by ID.
func (l *Ledger) GetLoan(ctx context.Context, loanID string) (*domain.Loan, error) {
	return l.loans.Get(ctx, loanID)
}

// FindOpenLoan returns the open loan for bookID, or nil when there is none.
func (l *Ledger) FindOpenLoan(ctx context.Context, bookID string) (*domain.Loan, error) {
	loan, err := l.loans.GetByIndex(ctx, indexOpenBook, bookID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	return loan, err
}

// CloseLoan sets the return time and releases the book's open_book key.
func (l *Ledger) CloseLoan(ctx context.Context, loanID string, now time.Time) (*domain.Loan, error) {
	return l.loans.Mutate(ctx, loanID, func(loan *domain.Loan) error {
		if !loan.IsOpen() {
			return store.ErrLoanClosed
		}
		loan.Close(now.UTC())
		return nil
	})
}

// ListLoans iterates the ledger in loan-time order.
func (l *Ledger) ListLoans(ctx context.Context) iter.Seq2[*domain.Loan, error] {
	return l.loans.ScanIndex(ctx, indexTime, "")
}

// ListOpenLoans iterates loans not yet returned, oldest first.
func (l *Ledger) ListOpenLoans(ctx context.Context) iter.Seq2[*domain.Loan, error] {
	return func(yield func(*domain.Loan, error) bool) {
		for loan, err := range l.ListLoans(ctx) {
			if err != nil {
				yield(nil, err)
				return
			}
			if loan.IsOpen() && !yield(loan, nil) {
				return
			}
		}
	}
}

// ListLoansByBorrower iterates one borrower's loans, oldest first.
func (l *Ledger) ListLoansByBorrower(ctx context.Context, borrowerID string) iter.Seq2[*domain.Loan, error] {
	return l.loans.ScanIndex(ctx, indexBorrower, borrowerID+":")
}

// Close closes the underlying store.
func (l *Ledger) Close() error {
	return l.store.Close()
}
