// Package errors defines the sentinel errors shared across the validator
// and an AppError wrapper that carries an HTTP status for the service
// surface.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrMalformedLine   = errors.New("malformed taxonomy line")
	ErrMissingParent   = errors.New("parent taxid not in taxonomy")
	ErrCycleDetected   = errors.New("cycle in taxonomy parent chain")
	ErrInvalidInput    = errors.New("invalid input")
	ErrUnknownEndpoint = errors.New("unknown endpoint")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrInternal        = errors.New("internal error")
	ErrTimeout         = errors.New("operation timed out")
)

// AppError wraps a sentinel with a human-readable message and an HTTP
// status code.
type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates an AppError from a sentinel, status code, and message.
func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

// Newf is New with a formatted message.
func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

// HTTPStatusCode maps an error to the HTTP status the service should
// return for it.
func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrMalformedLine):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnknownEndpoint):
		return http.StatusNotFound
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrTimeout):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrMissingParent), errors.Is(err, ErrCycleDetected):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
