// Package validation checks decoded request bodies and reports failures as validation errors.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/almogrr/projectTrainigLibary/internal/errors"
	"github.com/almogrr/projectTrainigLibary/internal/domain"
)

// Validator wraps go-playground/validator and converts its output to *apperrors.Error.
type Validator struct {
	v *validator.Validate
}

// New returns a validator that reports fields by their JSON names and
// understands the lending-specific "category" and "booktype" tags.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		switch name {
		case "":
			return fld.Name
		case "-":
			return ""
		}
		return name
	})

	// Registration only fails for empty tags or nil funcs.
	_ = v.RegisterValidation("category", func(fl validator.FieldLevel) bool {
		return domain.Category(strings.ToLower(fl.Field().String())).Valid()
	})
	_ = v.RegisterValidation("booktype", func(fl validator.FieldLevel) bool {
		_, err := domain.CategoryFromBookType(int(fl.Field().Int()))
		return err == nil
	})

	return &Validator{v: v}
}

// Validate checks s and returns a validation error listing every failing field.
func (v *Validator) Validate(s any) error {
	err := v.v.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return apperrors.Internal("validate request").WithCause(err)
	}

	details := make(map[string]string, len(fieldErrs))
	for _, fe := range fieldErrs {
		details[fe.Field()] = message(fe)
	}
	return apperrors.ValidationWithDetails("validation failed", details)
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at least %s characters", fe.Param())
		}
		return "must be at least " + fe.Param()
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must not exceed %s characters", fe.Param())
		}
		return "must not exceed " + fe.Param()
	case "gte":
		return "must be greater than or equal to " + fe.Param()
	case "lte":
		return "must be less than or equal to " + fe.Param()
	case "oneof":
		return "must be one of: " + fe.Param()
	case "alphanum":
		return "may only contain letters and digits"
	case "category":
		return "must be one of: " + categoryNames()
	case "booktype":
		return "must be 1, 2, or 3"
	default:
		return "is invalid"
	}
}

func categoryNames() string {
	cats := domain.Categories()
	names := make([]string, len(cats))
	for i, c := range cats {
		names[i] = string(c)
	}
	return strings.Join(names, " ")
}
