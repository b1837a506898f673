// Package errors defines the sentinel errors shared by the index, crawler
// and query layers, plus an AppError carrying an HTTP status for the search
// surface.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrUnreadable    = errors.New("unreadable input")
	ErrInterrupted   = errors.New("interrupted while waiting")
	ErrShutdown      = errors.New("work queue is shut down")
	ErrMalformedSeed = errors.New("malformed seed location")
	ErrFetch         = errors.New("fetch failed")
	ErrNotHTML       = errors.New("response is not html")
	ErrInvalidInput  = errors.New("invalid input")
	ErrInternal      = errors.New("internal error")
)

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

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

// Is and As re-export the standard helpers so callers importing this package
// under its own name do not need a second import.
func Is(err, target error) bool { return errors.Is(err, target) }

func As(err error, target any) bool { return errors.As(err, target) }

func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrMalformedSeed):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnreadable):
		return http.StatusNotFound
	case errors.Is(err, ErrShutdown), errors.Is(err, ErrInterrupted):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrFetch), errors.Is(err, ErrNotHTML):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
