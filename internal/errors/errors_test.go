package errors

import (
	"fmt"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCode_HTTPStatus(t *testing.T) {
	tests := []struct {
		code Code
		want int
	}{
		{CodeNotFound, http.StatusNotFound},
		{CodeConflict, http.StatusConflict},
		{CodeAlreadyLoaned, http.StatusConflict},
		{CodeNotLoaned, http.StatusConflict},
		{CodeAlreadyClosed, http.StatusConflict},
		{CodeNotHolder, http.StatusForbidden},
		{CodeUnknownCategory, http.StatusUnprocessableEntity},
		{CodeUnauthorized, http.StatusUnauthorized},
		{CodeInvalidCredentials, http.StatusUnauthorized},
		{CodeValidation, http.StatusBadRequest},
		{CodeInternal, http.StatusInternalServerError},
		{Code("SOMETHING_ELSE"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.code.HTTPStatus())
		})
	}
}

func TestIs_MatchesByCode(t *testing.T) {
	err := fmt.Errorf("loan book: %w", AlreadyLoaned("book-1"))

	assert.True(t, Is(err, ErrAlreadyLoaned))
	assert.False(t, Is(err, ErrNotLoaned))
	assert.False(t, Is(err, ErrConflict))
}

func TestLendingConstructors_CarryDetails(t *testing.T) {
	tests := []struct {
		err      *Error
		sentinel *Error
		key      string
		value    string
	}{
		{AlreadyLoaned("book-1"), ErrAlreadyLoaned, "book_id", "book-1"},
		{NotHolder("book-2"), ErrNotHolder, "book_id", "book-2"},
		{NotLoaned("book-3"), ErrNotLoaned, "book_id", "book-3"},
		{AlreadyClosed("loan-4"), ErrAlreadyClosed, "loan_id", "loan-4"},
		{UnknownCategory("rare"), ErrUnknownCategory, "category", "rare"},
	}

	for _, tt := range tests {
		t.Run(string(tt.err.Code), func(t *testing.T) {
			assert.ErrorIs(t, tt.err, tt.sentinel)
			details, ok := tt.err.Details.(map[string]string)
			assert.True(t, ok)
			assert.Equal(t, tt.value, details[tt.key])
			assert.Contains(t, tt.err.Error(), tt.value)
		})
	}
}

func TestWithCause(t *testing.T) {
	err := Internal("save loan").WithCause(io.ErrUnexpectedEOF)

	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.ErrorIs(t, err, ErrInternal)
	assert.Equal(t, "save loan: unexpected EOF", err.Error())
}

func TestNewf(t *testing.T) {
	err := Newf(CodeValidation, "bad field %s", "title").WithCause(io.EOF)

	assert.Equal(t, CodeValidation, err.Code)
	assert.ErrorIs(t, err, io.EOF)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, http.StatusBadRequest, err.GetStatus())
}

func TestWithDetails_DoesNotMutateSentinel(t *testing.T) {
	withDetails := ErrValidation.WithDetails(map[string]string{"title": "required"})

	assert.Nil(t, ErrValidation.Details)
	assert.NotNil(t, withDetails.Details)
}
