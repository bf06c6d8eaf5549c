// Package response writes the JSON envelope used by every endpoint that is not a huma operation.
package response

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	apperrors "github.com/almogrr/projectTrainigLibary/internal/errors"
	"github.com/almogrr/projectTrainigLibary/internal/store"
)

// Envelope is the top-level shape of every JSON response.
type Envelope struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorBody `json:"error,omitempty"`
}

// ErrorBody describes a failed request.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// JSON writes data wrapped in a success envelope.
func JSON(w http.ResponseWriter, status int, data any, logger *slog.Logger) {
	write(w, status, Envelope{Success: status < 400, Data: data}, logger)
}

// Success writes a 200 envelope.
func Success(w http.ResponseWriter, data any, logger *slog.Logger) {
	JSON(w, http.StatusOK, data, logger)
}

// Error writes an error envelope.
func Error(w http.ResponseWriter, status int, code apperrors.Code, message string, logger *slog.Logger) {
	write(w, status, Envelope{Error: &ErrorBody{Code: string(code), Message: message}}, logger)
}

// Unauthorized writes a 401.
func Unauthorized(w http.ResponseWriter, message string, logger *slog.Logger) {
	Error(w, http.StatusUnauthorized, apperrors.CodeUnauthorized, message, logger)
}

// TooManyRequests writes a 429. Its signature fits ratelimit.Middleware.
func TooManyRequests(w http.ResponseWriter, _ *http.Request) {
	Error(w, http.StatusTooManyRequests, CodeRateLimited, "too many requests, try again later", nil)
}

// CodeRateLimited is the error code of a 429 response.
const CodeRateLimited apperrors.Code = "RATE_LIMITED"

// HandleError writes the envelope for err. Unrecognized errors become a 500
// whose message does not leak internals.
func HandleError(w http.ResponseWriter, err error, logger *slog.Logger) {
	status, body := FromError(err)
	if status >= http.StatusInternalServerError && logger != nil {
		logger.Error("unhandled error", "error", err)
	}
	write(w, status, Envelope{Error: &body}, logger)
}

// FromError maps domain and store errors to a status and error body.
// Anything else is a generic 500.
func FromError(err error) (int, ErrorBody) {
	var domainErr *apperrors.Error
	if errors.As(err, &domainErr) {
		return domainErr.HTTPStatus(), ErrorBody{
			Code:    string(domainErr.Code),
			Message: domainErr.Message,
			Details: domainErr.Details,
		}
	}

	var storeErr *store.Error
	if errors.As(err, &storeErr) {
		return storeErr.HTTPCode(), ErrorBody{Code: string(storeCode(storeErr)), Message: storeErr.Message}
	}

	return http.StatusInternalServerError, ErrorBody{
		Code:    string(apperrors.CodeInternal),
		Message: "internal server error",
	}
}

func storeCode(err *store.Error) apperrors.Code {
	switch err {
	case store.ErrNotFound:
		return apperrors.CodeNotFound
	case store.ErrAlreadyExists:
		return apperrors.CodeAlreadyExists
	case store.ErrInvalidInput:
		return apperrors.CodeValidation
	case store.ErrLoanConflict:
		return apperrors.CodeAlreadyLoaned
	case store.ErrLoanClosed:
		return apperrors.CodeAlreadyClosed
	default:
		return StatusCode(err.HTTPCode())
	}
}

// StatusCode picks the error code for a bare HTTP status.
func StatusCode(status int) apperrors.Code {
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return apperrors.CodeValidation
	case http.StatusUnauthorized:
		return apperrors.CodeUnauthorized
	case http.StatusForbidden:
		return apperrors.CodeForbidden
	case http.StatusNotFound:
		return apperrors.CodeNotFound
	case http.StatusConflict:
		return apperrors.CodeConflict
	case http.StatusTooManyRequests:
		return CodeRateLimited
	default:
		return apperrors.CodeInternal
	}
}

func write(w http.ResponseWriter, status int, envelope Envelope, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(envelope); err != nil && logger != nil {
		logger.Error("failed to encode response", "error", err)
	}
}
