package service

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"github.com/almogrr/projectTrainigLibary/internal/domain"
	apperrors "github.com/almogrr/projectTrainigLibary/internal/errors"
	"github.com/almogrr/projectTrainigLibary/internal/policy"
	"github.com/almogrr/projectTrainigLibary/internal/sse"
	"github.com/almogrr/projectTrainigLibary/internal/store"
)

// BookCatalog is the part of the catalog the loan service reads.
type BookCatalog interface {
	GetBook(ctx context.Context, id string) (*domain.Book, error)
}

// ReturnResult is the outcome of a successful return.
type ReturnResult struct {
	Loan               *domain.Loan `json:"loan"`
	ExpectedReturnTime time.Time    `json:"expected_return_time,omitzero"`
	Late               bool         `json:"late"`
}

// LoanService runs the per-book lending state machine:
//
//	Available --LoanBook(u)--> OnLoan(u) --ReturnBook(u)--> Available
//
// LoanBook and ReturnBook on one book are serialized; different books proceed in parallel.
// The ledger's conditional insert backs this up when several processes share a database.
type LoanService struct {
	ledger       store.Ledger
	books        BookCatalog
	policy       *policy.Table
	availability *Availability
	emitter      store.EventEmitter
	locks        *keyedMutex
	now          func() time.Time
	logger       *slog.Logger
}

// NewLoanService creates the loan service. emitter may be nil.
func NewLoanService(
	ledger store.Ledger,
	books BookCatalog,
	table *policy.Table,
	emitter store.EventEmitter,
	logger *slog.Logger,
) *LoanService {
	if emitter == nil {
		emitter = store.NoopEmitter{}
	}
	return &LoanService{
		ledger:       ledger,
		books:        books,
		policy:       table,
		availability: NewAvailability(ledger),
		emitter:      emitter,
		locks:        newKeyedMutex(),
		now:          func() time.Time { return time.Now().UTC() },
		logger:       logger,
	}
}

// WithClock replaces the time source. Used by tests and the overdue audit.
func (s *LoanService) WithClock(now func() time.Time) *LoanService {
	s.now = now
	return s
}

// LoanBook checks bookID out to userID.
//
// Errors: NOT_FOUND for an unknown book, ALREADY_LOANED when the book is out,
// UNKNOWN_CATEGORY when the policy has no duration for the book's category.
func (s *LoanService) LoanBook(ctx context.Context, bookID, userID string) (*domain.LoanView, error) {
	unlock := s.locks.Lock(bookID)
	defer unlock()

	book, err := s.getBook(ctx, bookID)
	if err != nil {
		return nil, err
	}

	// Resolve the policy first so an unconfigured category never produces a loan.
	maxDuration, err := s.policy.MaxDuration(book.Category)
	if err != nil {
		return nil, err
	}

	available, err := s.availability.IsAvailable(ctx, bookID)
	if err != nil {
		return nil, err
	}
	if !available {
		return nil, apperrors.AlreadyLoaned(bookID)
	}

	loan, err := s.ledger.CreateLoan(ctx, bookID, userID, s.now())
	if errors.Is(err, store.ErrLoanConflict) {
		return nil, apperrors.AlreadyLoaned(bookID).WithCause(err)
	}
	if err != nil {
		return nil, fmt.Errorf("create loan: %w", err)
	}

	expected := loan.LoanTime.Add(maxDuration)
	s.emitter.Emit(sse.NewLoanCreatedEvent(loan, expected))
	s.logger.Info("book loaned",
		slog.String("loan_id", loan.ID),
		slog.String("book_id", bookID),
		slog.String("user_id", userID),
		slog.Time("expected_return", expected))

	return &domain.LoanView{Loan: loan, Book: book, ExpectedReturnTime: expected}, nil
}

// ReturnBook closes userID's open loan on bookID and reports whether it came back late.
//
// Errors: NOT_FOUND for an unknown book, NOT_LOANED when the book is on the shelf,
// NOT_HOLDER when someone else has it. A loan whose category has since left the policy
// is still closed; it is reported as not late, without a due time.
func (s *LoanService) ReturnBook(ctx context.Context, bookID, userID string) (*ReturnResult, error) {
	unlock := s.locks.Lock(bookID)
	defer unlock()

	book, err := s.getBook(ctx, bookID)
	if err != nil {
		return nil, err
	}

	open, err := s.ledger.FindOpenLoan(ctx, bookID)
	if err != nil {
		return nil, fmt.Errorf("find open loan: %w", err)
	}
	if open == nil {
		return nil, apperrors.NotLoaned(bookID)
	}
	if open.BorrowerID != userID {
		return nil, apperrors.NotHolder(bookID)
	}

	expected, err := s.dueTime(book, open)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if now.Before(open.LoanTime) {
		now = open.LoanTime
	}

	closed, err := s.ledger.CloseLoan(ctx, open.ID, now)
	switch {
	case errors.Is(err, store.ErrLoanClosed):
		return nil, apperrors.AlreadyClosed(open.ID).WithCause(err)
	case errors.Is(err, store.ErrNotFound):
		return nil, apperrors.NotLoaned(bookID).WithCause(err)
	case err != nil:
		return nil, fmt.Errorf("close loan: %w", err)
	}

	late := !expected.IsZero() && closed.ReturnTime.After(expected)
	s.emitter.Emit(sse.NewLoanReturnedEvent(closed, expected, late))
	s.logger.Info("book returned",
		slog.String("loan_id", closed.ID),
		slog.String("book_id", bookID),
		slog.String("user_id", userID),
		slog.Bool("late", late))

	return &ReturnResult{Loan: closed, ExpectedReturnTime: expected, Late: late}, nil
}

// Availability reports whether bookID is on the shelf and, if not, who holds it.
func (s *LoanService) Availability(ctx context.Context, bookID string) (*domain.BookAvailability, error) {
	if _, err := s.getBook(ctx, bookID); err != nil {
		return nil, err
	}
	return s.availability.State(ctx, bookID)
}

// WhileAvailable runs fn under bookID's lending lock, provided the book has no open loan.
// Catalog deletes use it so a book cannot vanish between a loan check and a checkout.
func (s *LoanService) WhileAvailable(ctx context.Context, bookID string, fn func() error) error {
	unlock := s.locks.Lock(bookID)
	defer unlock()

	state, err := s.availability.State(ctx, bookID)
	if err != nil {
		return err
	}
	if !state.Available {
		return apperrors.Conflictf("book %s is on loan", bookID).WithDetails(map[string]string{
			"book_id": bookID,
			"loan_id": state.LoanID,
		})
	}
	return fn()
}

// ListOpenLoans yields every loan not yet returned, annotated with its due time.
func (s *LoanService) ListOpenLoans(ctx context.Context) iter.Seq2[*domain.LoanView, error] {
	return s.views(ctx, s.ledger.ListOpenLoans(ctx))
}

// ListAllLoans yields the whole ledger, returned loans included.
func (s *LoanService) ListAllLoans(ctx context.Context) iter.Seq2[*domain.LoanView, error] {
	return s.views(ctx, s.ledger.ListLoans(ctx))
}

// ListLoansForUser yields userID's loans, open and returned.
func (s *LoanService) ListLoansForUser(ctx context.Context, userID string) iter.Seq2[*domain.LoanView, error] {
	return s.views(ctx, s.ledger.ListLoansByBorrower(ctx, userID))
}

// ListOverdue yields open loans whose due time is strictly before now.
// Nothing is cached: every iteration reads the ledger again, so the sequence can be restarted.
func (s *LoanService) ListOverdue(ctx context.Context, now time.Time) iter.Seq2[*domain.LoanView, error] {
	return func(yield func(*domain.LoanView, error) bool) {
		for loan, err := range s.ledger.ListOpenLoans(ctx) {
			if err != nil {
				yield(nil, err)
				return
			}
			v, err := s.annotate(ctx, loan, now)
			if err != nil {
				yield(nil, err)
				return
			}
			if v.Overdue && !yield(v, nil) {
				return
			}
		}
	}
}

func (s *LoanService) views(ctx context.Context, loans iter.Seq2[*domain.Loan, error]) iter.Seq2[*domain.LoanView, error] {
	return func(yield func(*domain.LoanView, error) bool) {
		now := s.now()
		for loan, err := range loans {
			if err != nil {
				yield(nil, err)
				return
			}
			v, err := s.annotate(ctx, loan, now)
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(v, nil) {
				return
			}
		}
	}
}

// annotate attaches the book and due time to loan. Returned loans of books that
// have since left the catalog are shown without either.
func (s *LoanService) annotate(ctx context.Context, loan *domain.Loan, now time.Time) (*domain.LoanView, error) {
	v := &domain.LoanView{Loan: loan}

	book, err := s.books.GetBook(ctx, loan.BookID)
	if errors.Is(err, store.ErrNotFound) && !loan.IsOpen() {
		return v, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load book %s for loan %s: %w", loan.BookID, loan.ID, err)
	}
	v.Book = book

	expected, err := s.dueTime(book, loan)
	if err != nil {
		return nil, err
	}
	v.ExpectedReturnTime = expected
	v.Overdue = loan.IsOpen() && !expected.IsZero() && now.After(expected)
	return v, nil
}

// dueTime is the expected return of loan on book. Only LoanBook fails closed on a
// missing category; for loans already out the due time is zero and a warning is logged.
func (s *LoanService) dueTime(book *domain.Book, loan *domain.Loan) (time.Time, error) {
	expected, err := s.policy.ExpectedReturn(book.Category, loan.LoanTime)
	if errors.Is(err, apperrors.ErrUnknownCategory) {
		s.logger.Warn("loan category has no policy, due time unknown",
			slog.String("loan_id", loan.ID),
			slog.String("book_id", book.ID),
			slog.String("category", string(book.Category)))
		return time.Time{}, nil
	}
	return expected, err
}

func (s *LoanService) getBook(ctx context.Context, bookID string) (*domain.Book, error) {
	book, err := s.books.GetBook(ctx, bookID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperrors.NotFoundf("book %s not found", bookID).WithCause(err)
	}
	if err != nil {
		return nil, fmt.Errorf("get book %s: %w", bookID, err)
	}
	return book, nil
}
