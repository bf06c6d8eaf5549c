package api

import (
	"errors"

	"github.com/danielgtaylor/huma/v2"

	apperrors "github.com/almogrr/projectTrainigLibary/internal/errors"
	"github.com/almogrr/projectTrainigLibary/internal/http/response"
	"github.com/almogrr/projectTrainigLibary/internal/store"
)

// APIError is the error model huma writes for every failed operation.
type APIError struct { //nolint:revive // API prefix reads better at call sites
	status  int
	Code    string `json:"code" doc:"Machine-readable error code"`
	Message string `json:"message" doc:"Human-readable error message"`
	Details any    `json:"details,omitempty" doc:"Additional error details"`
}

func (e *APIError) Error() string {
	return e.Message
}

// GetStatus implements huma.StatusError.
func (e *APIError) GetStatus() int {
	return e.status
}

// ContentType implements huma.ContentTypeFilter.
func (e *APIError) ContentType(_ string) string {
	return "application/json"
}

// FieldError is one failed input check reported by huma's request validation.
type FieldError struct {
	Location string `json:"location,omitempty"`
	Message  string `json:"message"`
	Value    any    `json:"value,omitempty"`
}

// RegisterErrorHandler routes huma's error construction through the domain error mapping.
// Call it before registering operations.
func RegisterErrorHandler() {
	huma.NewError = newAPIError
}

func newAPIError(status int, message string, errs ...error) huma.StatusError {
	var fields []FieldError
	for _, err := range errs {
		if err == nil {
			continue
		}

		var domainErr *apperrors.Error
		var storeErr *store.Error
		if errors.As(err, &domainErr) || errors.As(err, &storeErr) {
			code, body := response.FromError(err)
			return &APIError{status: code, Code: body.Code, Message: body.Message, Details: body.Details}
		}

		var detail *huma.ErrorDetail
		if errors.As(err, &detail) {
			fields = append(fields, FieldError{Location: detail.Location, Message: detail.Message, Value: detail.Value})
		}
	}

	apiErr := &APIError{
		status:  status,
		Code:    string(response.StatusCode(status)),
		Message: message,
	}
	if len(fields) > 0 {
		apiErr.Details = fields
	}
	return apiErr
}

// EnvelopeTransformer wraps operation bodies as {success, data} and errors as {success, error}.
func EnvelopeTransformer(_ huma.Context, _ string, v any) (any, error) {
	switch body := v.(type) {
	case nil:
		return nil, nil
	case response.Envelope, *response.Envelope:
		return v, nil
	case *APIError:
		return response.Envelope{Error: &response.ErrorBody{Code: body.Code, Message: body.Message, Details: body.Details}}, nil
	case *apperrors.Error:
		_, eb := response.FromError(body)
		return response.Envelope{Error: &eb}, nil
	default:
		return response.Envelope{Success: true, Data: v}, nil
	}
}
