package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrExtraction           = errors.New("extraction error")
	ErrCorruptIndex         = errors.New("corrupt index")
	ErrIndexNotLoaded       = errors.New("index not loaded")
	ErrInvalidConfiguration = errors.New("invalid configuration")
	ErrDocumentNotFound     = errors.New("document not found")
	ErrInternal             = errors.New("internal error")
	ErrTimeout              = errors.New("operation timed out")
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

// Invalidf builds an InvalidConfiguration error for a rejected request or
// configuration value.
func Invalidf(format string, args ...any) *AppError {
	return Newf(ErrInvalidConfiguration, http.StatusBadRequest, format, args...)
}

// Corruptf builds a CorruptIndex error describing why a persisted artifact
// was rejected.
func Corruptf(format string, args ...any) *AppError {
	return Newf(ErrCorruptIndex, http.StatusServiceUnavailable, format, args...)
}

// ExtractionError records a single document that could not be turned into
// text. The build skips the document and keeps going.
type ExtractionError struct {
	Source string
	Err    error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extracting %s: %v", e.Source, e.Err)
}

func (e *ExtractionError) Unwrap() []error {
	return []error{ErrExtraction, e.Err}
}

func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrDocumentNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidConfiguration):
		return http.StatusBadRequest
	case errors.Is(err, ErrIndexNotLoaded), errors.Is(err, ErrCorruptIndex):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
