// Package httpx provides JSON response utilities and the error-kind to
// HTTP status mapping used by every handler.
package httpx

import (
	"errors"
	"net/http"
)

// Sentinel error kinds for the domain layer. Services wrap these with
// context; handlers map them to status codes in RespondError.
var (
	ErrNotFound     = errors.New("resource not found")
	ErrConflict     = errors.New("duplicate entry")
	ErrValidation   = errors.New("validation failed")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
)

// CodedError decorates an error kind with a machine-readable code, e.g.
// auth/wrong-password. The code changes the response body, never the status.
type CodedError struct {
	Code string
	Err  error
}

func (e *CodedError) Error() string { return e.Code + ": " + e.Err.Error() }

func (e *CodedError) Unwrap() error { return e.Err }

// Coded wraps err with a machine code.
func Coded(code string, err error) error {
	return &CodedError{Code: code, Err: err}
}

// RespondError maps domain errors to HTTP responses.
func RespondError(w http.ResponseWriter, err error) {
	var coded *CodedError
	code := ""
	if errors.As(err, &coded) {
		code = coded.Code
	}

	var fieldErrs *FieldErrors
	if errors.As(err, &fieldErrs) {
		JSON(w, http.StatusBadRequest, ErrorBody{Message: "Validation error", Errors: fieldErrs.Fields})
		return
	}

	switch {
	case errors.Is(err, ErrNotFound):
		JSON(w, http.StatusNotFound, ErrorBody{Message: err.Error(), Code: code})
	case errors.Is(err, ErrConflict):
		JSON(w, http.StatusConflict, ErrorBody{Message: err.Error(), Code: code})
	case errors.Is(err, ErrValidation):
		JSON(w, http.StatusBadRequest, ErrorBody{Message: err.Error(), Code: code})
	case errors.Is(err, ErrForbidden):
		JSON(w, http.StatusForbidden, ErrorBody{Message: "Forbidden", Code: code})
	case errors.Is(err, ErrUnauthorized):
		JSON(w, http.StatusUnauthorized, ErrorBody{Message: "Unauthorized", Code: code})
	default:
		JSON(w, http.StatusInternalServerError, ErrorBody{Message: "Internal server error"})
	}
}

// ErrorBody is the uniform error payload.
type ErrorBody struct {
	Message string       `json:"message"`
	Code    string       `json:"code,omitempty"`
	Errors  []FieldError `json:"errors,omitempty"`
}
