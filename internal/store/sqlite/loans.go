package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/almogrr/projectTrainigLibary/internal/domain"
	"github.com/almogrr/projectTrainigLibary/internal/id"
	"github.com/almogrr/projectTrainigLibary/internal/store"
)

const loanColumns = `id, book_id, borrower_id, loan_time, return_time`

// loanBatchSize is how many ledger rows a listing reads per query.
// Rows are closed before any loan is yielded, so callers may run queries while iterating.
const loanBatchSize = 256

func scanLoan(scanner interface{ Scan(dest ...any) error }) (*domain.Loan, error) {
	var (
		l          domain.Loan
		loanTime   string
		returnTime sql.NullString
	)
	if err := scanner.Scan(&l.ID, &l.BookID, &l.BorrowerID, &loanTime, &returnTime); err != nil {
		return nil, err
	}

	var err error
	if l.LoanTime, err = parseTime(loanTime); err != nil {
		return nil, err
	}
	if l.ReturnTime, err = parseNullableTime(returnTime); err != nil {
		return nil, err
	}
	return &l, nil
}

// CreateLoan opens a loan. The partial unique index on open loans makes the
// check-and-insert atomic: a second open loan for the book fails with store.ErrLoanConflict.
func (s *Store) CreateLoan(ctx context.Context, bookID, borrowerID string, now time.Time) (*domain.Loan, error) {
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

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO loans (`+loanColumns+`) VALUES (?, ?, ?, ?, NULL)`,
		loan.ID, loan.BookID, loan.BorrowerID, formatTime(loan.LoanTime))
	if err != nil {
		if isUniqueViolation(err) && strings.Contains(err.Error(), "loans.book_id") {
			return nil, store.ErrLoanConflict
		}
		if isUniqueViolation(err) {
			return nil, store.ErrAlreadyExists
		}
		return nil, fmt.Errorf("insert loan: %w", err)
	}
	return loan, nil
}

// GetLoan retrieves a loan by ID.
func (s *Store) GetLoan(ctx context.Context, loanID string) (*domain.Loan, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+loanColumns+` FROM loans WHERE id = ?`, loanID)

	l, err := scanLoan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return l, err
}

// FindOpenLoan returns the open loan for a book, or nil when the book is on the shelf.
func (s *Store) FindOpenLoan(ctx context.Context, bookID string) (*domain.Loan, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+loanColumns+` FROM loans WHERE book_id = ? AND return_time IS NULL`, bookID)

	l, err := scanLoan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return l, err
}

// CloseLoan sets the return time of an open loan.
func (s *Store) CloseLoan(ctx context.Context, loanID string, now time.Time) (*domain.Loan, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE loans SET return_time = ? WHERE id = ? AND return_time IS NULL`,
		formatTime(now), loanID)
	if err != nil {
		return nil, fmt.Errorf("close loan: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}

	loan, err := s.GetLoan(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, store.ErrLoanClosed
	}
	return loan, nil
}

// ListLoans iterates the whole ledger in loan-time order.
func (s *Store) ListLoans(ctx context.Context) iter.Seq2[*domain.Loan, error] {
	return s.loanBatches(ctx, "", nil)
}

// ListOpenLoans iterates loans that have not been returned, oldest first.
func (s *Store) ListOpenLoans(ctx context.Context) iter.Seq2[*domain.Loan, error] {
	return s.loanBatches(ctx, "return_time IS NULL", nil)
}

// ListLoansByBorrower iterates one user's loans, open and closed, oldest first.
func (s *Store) ListLoansByBorrower(ctx context.Context, borrowerID string) iter.Seq2[*domain.Loan, error] {
	return s.loanBatches(ctx, "borrower_id = ?", []any{borrowerID})
}

// loanBatches pages through loans matching filter by (loan_time, id).
// Each call to the returned sequence starts a fresh scan.
func (s *Store) loanBatches(ctx context.Context, filter string, args []any) iter.Seq2[*domain.Loan, error] {
	return func(yield func(*domain.Loan, error) bool) {
		var lastTime, lastID string
		for {
			batch, err := s.loanBatch(ctx, filter, args, lastTime, lastID)
			if err != nil {
				yield(nil, err)
				return
			}
			for _, l := range batch {
				if !yield(l, nil) {
					return
				}
			}
			if len(batch) < loanBatchSize {
				return
			}
			last := batch[len(batch)-1]
			lastTime, lastID = formatTime(last.LoanTime), last.ID
		}
	}
}

func (s *Store) loanBatch(ctx context.Context, filter string, args []any, afterTime, afterID string) ([]*domain.Loan, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var where []string
	query := append([]any(nil), args...)
	if filter != "" {
		where = append(where, filter)
	}
	if afterID != "" {
		where = append(where, "(loan_time > ? OR (loan_time = ? AND id > ?))")
		query = append(query, afterTime, afterTime, afterID)
	}
	query = append(query, loanBatchSize)

	sqlText := `SELECT ` + loanColumns + ` FROM loans`
	if len(where) > 0 {
		sqlText += ` WHERE ` + strings.Join(where, " AND ")
	}
	sqlText += ` ORDER BY loan_time ASC, id ASC LIMIT ?`

	rows, err := s.db.QueryContext(ctx, sqlText, query...)
	if err != nil {
		return nil, fmt.Errorf("list loans: %w", err)
	}
	defer rows.Close()

	batch := make([]*domain.Loan, 0, loanBatchSize)
	for rows.Next() {
		l, err := scanLoan(rows)
		if err != nil {
			return nil, err
		}
		batch = append(batch, l)
	}
	return batch, rows.Err()
}
