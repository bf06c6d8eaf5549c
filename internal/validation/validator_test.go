package validation_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/almogrr/projectTrainigLibary/internal/errors"
	"github.com/almogrr/projectTrainigLibary/internal/validation"
)

type bookRequest struct {
	Title    string `json:"title" validate:"required,max=500"`
	Author   string `json:"author" validate:"required"`
	Year     int    `json:"year_published" validate:"gte=0,lte=9999"`
	Category string `json:"category,omitempty" validate:"omitempty,category"`
	BookType int    `json:"book_type,omitempty" validate:"omitempty,booktype"`
	Internal string `json:"-" validate:"max=3"`
}

func TestValidate_Success(t *testing.T) {
	v := validation.New()

	err := v.Validate(bookRequest{Title: "Dune", Author: "Frank Herbert", Year: 1965, Category: "Extended", BookType: 2})
	assert.NoError(t, err)
}

func TestValidate_FieldDetails(t *testing.T) {
	v := validation.New()

	tests := []struct {
		name    string
		req     bookRequest
		field   string
		message string
	}{
		{"missing title", bookRequest{Author: "a"}, "title", "is required"},
		{"year too large", bookRequest{Title: "t", Author: "a", Year: 10000}, "year_published", "must be less than or equal to 9999"},
		{"unknown category", bookRequest{Title: "t", Author: "a", Category: "rare"}, "category", "must be one of: standard extended short"},
		{"unknown book type", bookRequest{Title: "t", Author: "a", BookType: 7}, "book_type", "must be 1, 2, or 3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.req)
			require.Error(t, err)

			var appErr *apperrors.Error
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, apperrors.CodeValidation, appErr.Code)

			details, ok := appErr.Details.(map[string]string)
			require.True(t, ok)
			assert.Equal(t, tt.message, details[tt.field])
		})
	}
}

func TestValidate_CollectsEveryField(t *testing.T) {
	err := validation.New().Validate(bookRequest{Year: -1})

	var appErr *apperrors.Error
	require.ErrorAs(t, err, &appErr)
	details := appErr.Details.(map[string]string)
	assert.Len(t, details, 3)
	assert.Contains(t, details, "title")
	assert.Contains(t, details, "author")
	assert.Contains(t, details, "year_published")
}

func TestValidate_NonStruct(t *testing.T) {
	err := validation.New().Validate("not a struct")
	assert.ErrorIs(t, err, apperrors.ErrInternal)
}
