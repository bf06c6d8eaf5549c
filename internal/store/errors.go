package store

import (
	"fmt"
	"net/http"
)

// Error is a persistence error with the HTTP status it maps to.
type Error struct {
	Code    int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// HTTPCode returns the HTTP status code associated with this error.
func (e *Error) HTTPCode() int { return e.Code }

// WithCause returns a copy wrapping err. errors.Is still matches the sentinel
// because the copy unwraps to err and sentinels are compared by identity.
func (e *Error) WithCause(err error) error {
	return fmt.Errorf("%w: %w", e, err)
}

// Sentinel errors.
var (
	ErrNotFound = &Error{
		Code:    http.StatusNotFound,
		Message: "resource not found",
	}

	ErrAlreadyExists = &Error{
		Code:    http.StatusConflict,
		Message: "resource already exists",
	}

	ErrInvalidInput = &Error{
		Code:    http.StatusBadRequest,
		Message: "invalid input",
	}

	// ErrLoanConflict is returned by Ledger.CreateLoan when the book already has an open loan.
	ErrLoanConflict = &Error{
		Code:    http.StatusConflict,
		Message: "book already has an open loan",
	}

	// ErrLoanClosed is returned by Ledger.CloseLoan when the loan already has a return time.
	ErrLoanClosed = &Error{
		Code:    http.StatusConflict,
		Message: "loan already closed",
	}
)
