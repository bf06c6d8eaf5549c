// Package errors defines the closed set of coded errors returned by the lending server.
//
// Services return *Error values; the API layer reads the Code to pick an HTTP status.
// Sentinels match by Code, so a wrapped error still satisfies errors.Is:
//
//	if errors.Is(err, errors.ErrAlreadyLoaned) {
//	    // someone else holds the book
//	}
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Re-export standard library functions so callers need a single import.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	Join   = errors.Join
)

// Code is a machine-readable error code exposed to API clients.
type Code string

// Account and request codes.
const (
	CodeNotFound           Code = "NOT_FOUND"
	CodeAlreadyExists      Code = "ALREADY_EXISTS"
	CodeUnauthorized       Code = "UNAUTHORIZED"
	CodeForbidden          Code = "FORBIDDEN"
	CodeValidation         Code = "VALIDATION"
	CodeConflict           Code = "CONFLICT"
	CodeInternal           Code = "INTERNAL"
	CodeInvalidCredentials Code = "INVALID_CREDENTIALS"
	CodeTokenExpired       Code = "TOKEN_EXPIRED"
)

// Lending codes. Each maps to one refused transition of the loan state machine.
const (
	CodeAlreadyLoaned   Code = "ALREADY_LOANED"
	CodeNotHolder       Code = "NOT_HOLDER"
	CodeNotLoaned       Code = "NOT_LOANED"
	CodeAlreadyClosed   Code = "ALREADY_CLOSED"
	CodeUnknownCategory Code = "UNKNOWN_CATEGORY"
)

var statusByCode = map[Code]int{
	CodeNotFound:           http.StatusNotFound,
	CodeAlreadyExists:      http.StatusConflict,
	CodeConflict:           http.StatusConflict,
	CodeUnauthorized:       http.StatusUnauthorized,
	CodeInvalidCredentials: http.StatusUnauthorized,
	CodeTokenExpired:       http.StatusUnauthorized,
	CodeForbidden:          http.StatusForbidden,
	CodeValidation:         http.StatusBadRequest,
	CodeAlreadyLoaned:      http.StatusConflict,
	CodeNotLoaned:          http.StatusConflict,
	CodeAlreadyClosed:      http.StatusConflict,
	CodeNotHolder:          http.StatusForbidden,
	CodeUnknownCategory:    http.StatusUnprocessableEntity,
}

// HTTPStatus returns the status a client sees for c. Unknown codes are 500.
func (c Code) HTTPStatus() int {
	if status, ok := statusByCode[c]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// Error is a coded error with a client-safe message and optional details.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
	cause   error
}

func (e *Error) Error() string {
	if e.cause == nil {
		return e.Message
	}
	return e.Message + ": " + e.cause.Error()
}

func (e *Error) Unwrap() error { return e.cause }

// Is matches any *Error carrying the same Code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// HTTPStatus is the status for e's code.
func (e *Error) HTTPStatus() int { return e.Code.HTTPStatus() }

// GetStatus lets the API framework read the status straight off a returned error.
func (e *Error) GetStatus() int { return e.HTTPStatus() }

// WithDetails returns a copy of e carrying details. Sentinels are never mutated.
func (e *Error) WithDetails(details any) *Error {
	c := *e
	c.Details = details
	return &c
}

// WithCause returns a copy of e wrapping err.
func (e *Error) WithCause(err error) *Error {
	c := *e
	c.cause = err
	return &c
}

// New creates an error with code and message.
func New(code Code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

// Newf creates an error with code and a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Sentinels for errors.Is.
var (
	ErrNotFound           = New(CodeNotFound, "not found")
	ErrAlreadyExists      = New(CodeAlreadyExists, "already exists")
	ErrUnauthorized       = New(CodeUnauthorized, "unauthorized")
	ErrForbidden          = New(CodeForbidden, "forbidden")
	ErrValidation         = New(CodeValidation, "validation error")
	ErrConflict           = New(CodeConflict, "conflict")
	ErrInternal           = New(CodeInternal, "internal error")
	ErrInvalidCredentials = New(CodeInvalidCredentials, "invalid credentials")
	ErrTokenExpired       = New(CodeTokenExpired, "token expired")

	ErrAlreadyLoaned   = New(CodeAlreadyLoaned, "book is already on loan")
	ErrNotHolder       = New(CodeNotHolder, "book is held by another user")
	ErrNotLoaned       = New(CodeNotLoaned, "book is not on loan")
	ErrAlreadyClosed   = New(CodeAlreadyClosed, "loan is already closed")
	ErrUnknownCategory = New(CodeUnknownCategory, "unknown book category")
)

func NotFoundf(format string, args ...any) *Error { return Newf(CodeNotFound, format, args...) }

func AlreadyExists(msg string) *Error { return New(CodeAlreadyExists, msg) }

func Unauthorized(msg string) *Error { return New(CodeUnauthorized, msg) }

func Forbidden(msg string) *Error { return New(CodeForbidden, msg) }

func Validation(msg string) *Error { return New(CodeValidation, msg) }

func Validationf(format string, args ...any) *Error { return Newf(CodeValidation, format, args...) }

// ValidationWithDetails carries per-field messages keyed by JSON field name.
func ValidationWithDetails(msg string, details any) *Error {
	return New(CodeValidation, msg).WithDetails(details)
}

func Conflictf(format string, args ...any) *Error { return Newf(CodeConflict, format, args...) }

func Internal(msg string) *Error { return New(CodeInternal, msg) }

func InvalidCredentials(msg string) *Error { return New(CodeInvalidCredentials, msg) }

func TokenExpired(msg string) *Error { return New(CodeTokenExpired, msg) }

// subject builds a lending error whose details name the one entity it is about.
func subject(code Code, key, value, format string) *Error {
	return Newf(code, format, value).WithDetails(map[string]string{key: value})
}

// AlreadyLoaned refuses a loan on a book that already has an open loan.
func AlreadyLoaned(bookID string) *Error {
	return subject(CodeAlreadyLoaned, "book_id", bookID, "book %s is already on loan")
}

// NotHolder refuses a return by someone other than the current holder.
func NotHolder(bookID string) *Error {
	return subject(CodeNotHolder, "book_id", bookID, "book %s is on loan to another user")
}

// NotLoaned refuses a return on a book with no open loan.
func NotLoaned(bookID string) *Error {
	return subject(CodeNotLoaned, "book_id", bookID, "book %s is not on loan")
}

// AlreadyClosed refuses closing a loan that already has a return time.
func AlreadyClosed(loanID string) *Error {
	return subject(CodeAlreadyClosed, "loan_id", loanID, "loan %s is already closed")
}

// UnknownCategory reports a category missing from the loan policy.
func UnknownCategory(category string) *Error {
	return subject(CodeUnknownCategory, "category", category, "no loan policy for category %q")
}
