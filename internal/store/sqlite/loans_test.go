package sqlite

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/almogrr/projectTrainigLibary/internal/domain"
	"github.com/almogrr/projectTrainigLibary/internal/store"
)

// newLedgerStore returns a store with one book and two users.
func newLedgerStore(t *testing.T) *Store {
	t.Helper()
	s := newTestStore(t)
	mustCreateBook(t, s, "book-1", "Dune")
	mustCreateUser(t, s, "user-1", "avi")
	mustCreateUser(t, s, "user-2", "zoe")
	return s
}

func collectLoans(t *testing.T, seq func(func(*domain.Loan, error) bool)) []*domain.Loan {
	t.Helper()
	var loans []*domain.Loan
	for l, err := range seq {
		if err != nil {
			t.Fatalf("iterate loans: %v", err)
		}
		loans = append(loans, l)
	}
	return loans
}

func TestCreateLoan_AndFindOpen(t *testing.T) {
	s := newLedgerStore(t)
	ctx := context.Background()
	now := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)

	loan, err := s.CreateLoan(ctx, "book-1", "user-1", now)
	if err != nil {
		t.Fatalf("CreateLoan: %v", err)
	}
	if !loan.IsOpen() || !loan.LoanTime.Equal(now) {
		t.Errorf("unexpected loan: %+v", loan)
	}

	open, err := s.FindOpenLoan(ctx, "book-1")
	if err != nil {
		t.Fatalf("FindOpenLoan: %v", err)
	}
	if open == nil || open.ID != loan.ID || open.BorrowerID != "user-1" {
		t.Errorf("FindOpenLoan = %+v", open)
	}
}

func TestFindOpenLoan_None(t *testing.T) {
	s := newLedgerStore(t)

	open, err := s.FindOpenLoan(context.Background(), "book-1")
	if err != nil {
		t.Fatalf("FindOpenLoan: %v", err)
	}
	if open != nil {
		t.Errorf("expected nil, got %+v", open)
	}
}

func TestCreateLoan_Conflict(t *testing.T) {
	s := newLedgerStore(t)
	ctx := context.Background()

	if _, err := s.CreateLoan(ctx, "book-1", "user-1", time.Now()); err != nil {
		t.Fatalf("first CreateLoan: %v", err)
	}
	_, err := s.CreateLoan(ctx, "book-1", "user-2", time.Now())
	if !errors.Is(err, store.ErrLoanConflict) {
		t.Errorf("expected ErrLoanConflict, got %v", err)
	}
}

func TestCreateLoan_ConcurrentSingleWinner(t *testing.T) {
	s := newLedgerStore(t)
	ctx := context.Background()

	const attempts = 8
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		wins     int
		conflict int
	)
	for i := range attempts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			borrower := "user-1"
			if i%2 == 1 {
				borrower = "user-2"
			}
			_, err := s.CreateLoan(ctx, "book-1", borrower, time.Now())
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, store.ErrLoanConflict):
				conflict++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if wins != 1 || conflict != attempts-1 {
		t.Errorf("wins=%d conflicts=%d", wins, conflict)
	}
}

func TestCloseLoan(t *testing.T) {
	s := newLedgerStore(t)
	ctx := context.Background()
	loanAt := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	returnAt := loanAt.Add(3 * 24 * time.Hour)

	loan, err := s.CreateLoan(ctx, "book-1", "user-1", loanAt)
	if err != nil {
		t.Fatalf("CreateLoan: %v", err)
	}

	closed, err := s.CloseLoan(ctx, loan.ID, returnAt)
	if err != nil {
		t.Fatalf("CloseLoan: %v", err)
	}
	if closed.IsOpen() || !closed.ReturnTime.Equal(returnAt) {
		t.Errorf("unexpected closed loan: %+v", closed)
	}

	if _, err := s.CloseLoan(ctx, loan.ID, returnAt); !errors.Is(err, store.ErrLoanClosed) {
		t.Errorf("second close: expected ErrLoanClosed, got %v", err)
	}

	// The book can go out again once the loan is closed.
	if _, err := s.CreateLoan(ctx, "book-1", "user-2", returnAt); err != nil {
		t.Errorf("re-loan after return: %v", err)
	}
}

func TestCloseLoan_NotFound(t *testing.T) {
	s := newLedgerStore(t)

	_, err := s.CloseLoan(context.Background(), "loan-missing", time.Now())
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestListLoans_OrderAndFilters(t *testing.T) {
	s := newLedgerStore(t)
	ctx := context.Background()
	mustCreateBook(t, s, "book-2", "Emma")
	base := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)

	first, err := s.CreateLoan(ctx, "book-1", "user-1", base)
	if err != nil {
		t.Fatalf("CreateLoan: %v", err)
	}
	if _, err := s.CloseLoan(ctx, first.ID, base.Add(time.Hour)); err != nil {
		t.Fatalf("CloseLoan: %v", err)
	}
	if _, err := s.CreateLoan(ctx, "book-2", "user-2", base.Add(2*time.Hour)); err != nil {
		t.Fatalf("CreateLoan: %v", err)
	}
	if _, err := s.CreateLoan(ctx, "book-1", "user-1", base.Add(3*time.Hour)); err != nil {
		t.Fatalf("CreateLoan: %v", err)
	}

	all := collectLoans(t, s.ListLoans(ctx))
	if len(all) != 3 || all[0].ID != first.ID {
		t.Fatalf("ListLoans = %d loans", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i].LoanTime.Before(all[i-1].LoanTime) {
			t.Errorf("loans out of order at %d", i)
		}
	}

	open := collectLoans(t, s.ListOpenLoans(ctx))
	if len(open) != 2 {
		t.Errorf("ListOpenLoans = %d, want 2", len(open))
	}

	mine := collectLoans(t, s.ListLoansByBorrower(ctx, "user-1"))
	if len(mine) != 2 {
		t.Errorf("ListLoansByBorrower = %d, want 2", len(mine))
	}
}

func TestListLoans_SpansBatches(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	mustCreateUser(t, s, "user-1", "avi")

	total := loanBatchSize + 10
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range total {
		bookID := fmt.Sprintf("book-%04d", i)
		mustCreateBook(t, s, bookID, bookID)
		// Several loans share a timestamp to exercise the id tiebreak.
		if _, err := s.CreateLoan(ctx, bookID, "user-1", base.Add(time.Duration(i/3)*time.Minute)); err != nil {
			t.Fatalf("CreateLoan: %v", err)
		}
	}

	seen := make(map[string]bool)
	for _, l := range collectLoans(t, s.ListOpenLoans(ctx)) {
		if seen[l.ID] {
			t.Fatalf("loan %s yielded twice", l.ID)
		}
		seen[l.ID] = true
	}
	if len(seen) != total {
		t.Errorf("saw %d loans, want %d", len(seen), total)
	}
}

func TestListLoans_EarlyStopAndRestart(t *testing.T) {
	s := newLedgerStore(t)
	ctx := context.Background()
	if _, err := s.CreateLoan(ctx, "book-1", "user-1", time.Now()); err != nil {
		t.Fatalf("CreateLoan: %v", err)
	}

	seq := s.ListLoans(ctx)
	for range seq {
		break
	}
	if got := collectLoans(t, seq); len(got) != 1 {
		t.Errorf("restarted iteration yielded %d loans", len(got))
	}
}
