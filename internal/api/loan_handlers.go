package api

import (
	"context"
	"iter"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/almogrr/projectTrainigLibary/internal/domain"
	"github.com/almogrr/projectTrainigLibary/internal/service"
)

func (s *Server) registerLoanRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID:   "loanBook",
		Method:        http.MethodPost,
		Path:          "/api/v1/books/{id}/loan",
		Summary:       "Borrow a book",
		Description:   "Checks the book out to the caller. Fails with ALREADY_LOANED while someone else holds it.",
		Tags:          []string{"Loans"},
		DefaultStatus: http.StatusCreated,
		Security:      []map[string][]string{{"bearer": {}}},
	}, s.handleLoanBook)

	huma.Register(s.api, huma.Operation{
		OperationID: "returnBook",
		Method:      http.MethodPost,
		Path:        "/api/v1/books/{id}/return",
		Summary:     "Return a book",
		Description: "Closes the caller's open loan on the book and reports whether it came back late",
		Tags:        []string{"Loans"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleReturnBook)

	huma.Register(s.api, huma.Operation{
		OperationID: "listLoans",
		Method:      http.MethodGet,
		Path:        "/api/v1/loans",
		Summary:     "List all loans",
		Description: "Every loan ever made, open and closed. Librarians only.",
		Tags:        []string{"Loans"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleListLoans)

	huma.Register(s.api, huma.Operation{
		OperationID: "listOpenLoans",
		Method:      http.MethodGet,
		Path:        "/api/v1/loans/open",
		Summary:     "List open loans",
		Description: "Books currently out, each with its expected return time. Librarians only.",
		Tags:        []string{"Loans"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleListOpenLoans)

	huma.Register(s.api, huma.Operation{
		OperationID: "listOverdueLoans",
		Method:      http.MethodGet,
		Path:        "/api/v1/loans/overdue",
		Summary:     "List overdue loans",
		Description: "Open loans whose expected return time is before the given instant (default now). Librarians only.",
		Tags:        []string{"Loans"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleListOverdue)

	huma.Register(s.api, huma.Operation{
		OperationID: "listMyLoans",
		Method:      http.MethodGet,
		Path:        "/api/v1/me/loans",
		Summary:     "My loans",
		Description: "The caller's loan history, open loans included",
		Tags:        []string{"Loans"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleListMyLoans)
}

// LoanOutput wraps a new loan.
type LoanOutput struct {
	Body *domain.LoanView
}

// ReturnOutput wraps the outcome of a return.
type ReturnOutput struct {
	Body *service.ReturnResult
}

// LoanList is a materialized loan listing.
type LoanList struct {
	Loans []*domain.LoanView `json:"loans"`
	Total int                `json:"total"`
}

// LoanListOutput wraps LoanList for huma.
type LoanListOutput struct {
	Body LoanList
}

// OverdueInput selects the instant overdue loans are judged at.
type OverdueInput struct {
	At time.Time `query:"at" doc:"RFC 3339 timestamp; defaults to now"`
}

func (s *Server) handleLoanBook(ctx context.Context, input *BookIDInput) (*LoanOutput, error) {
	identity, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	loan, err := s.services.Loan.LoanBook(ctx, input.ID, identity.User.ID)
	if err != nil {
		return nil, err
	}
	return &LoanOutput{Body: loan}, nil
}

func (s *Server) handleReturnBook(ctx context.Context, input *BookIDInput) (*ReturnOutput, error) {
	identity, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	result, err := s.services.Loan.ReturnBook(ctx, input.ID, identity.User.ID)
	if err != nil {
		return nil, err
	}
	return &ReturnOutput{Body: result}, nil
}

func (s *Server) handleListLoans(ctx context.Context, _ *struct{}) (*LoanListOutput, error) {
	if _, err := requireLibrarian(ctx); err != nil {
		return nil, err
	}
	return loanList(s.services.Loan.ListAllLoans(ctx))
}

func (s *Server) handleListOpenLoans(ctx context.Context, _ *struct{}) (*LoanListOutput, error) {
	if _, err := requireLibrarian(ctx); err != nil {
		return nil, err
	}
	return loanList(s.services.Loan.ListOpenLoans(ctx))
}

func (s *Server) handleListOverdue(ctx context.Context, input *OverdueInput) (*LoanListOutput, error) {
	if _, err := requireLibrarian(ctx); err != nil {
		return nil, err
	}
	at := input.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	return loanList(s.services.Loan.ListOverdue(ctx, at))
}

func (s *Server) handleListMyLoans(ctx context.Context, _ *struct{}) (*LoanListOutput, error) {
	identity, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	return loanList(s.services.Loan.ListLoansForUser(ctx, identity.User.ID))
}

// loanList drains a listing. The first error aborts the response.
func loanList(seq iter.Seq2[*domain.LoanView, error]) (*LoanListOutput, error) {
	loans := []*domain.LoanView{}
	for v, err := range seq {
		if err != nil {
			return nil, err
		}
		loans = append(loans, v)
	}
	return &LoanListOutput{Body: LoanList{Loans: loans, Total: len(loans)}}, nil
}
