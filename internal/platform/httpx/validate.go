package httpx

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
)

// FieldError is one failing field in a validation response.
type FieldError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// FieldErrors carries per-field failures and maps to HTTP 400.
type FieldErrors struct {
	Fields []FieldError
}

func (e *FieldErrors) Error() string { return "validation failed" }

func (e *FieldErrors) Unwrap() error { return ErrValidation }

// Validate runs struct validation and converts failures into a FieldErrors
// value suitable for RespondError.
func Validate(v *validator.Validate, s any) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fe := &FieldErrors{}
	for _, f := range verrs {
		fe.Fields = append(fe.Fields, FieldError{
			Path:    fieldPath(f.Namespace()),
			Message: fieldMessage(f),
		})
	}
	return fe
}

// fieldPath drops the leading struct name from the validator namespace.
func fieldPath(ns string) string {
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func fieldMessage(f validator.FieldError) string {
	switch f.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "gt":
		return "must be greater than " + f.Param()
	case "min":
		return "must be at least " + f.Param()
	case "max":
		return "must be at most " + f.Param()
	case "oneof":
		return "must be one of " + f.Param()
	default:
		return "is invalid (" + f.Tag() + ")"
	}
}
