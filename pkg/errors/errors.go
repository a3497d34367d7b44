package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is rendered to API consumers as a code and message. Internal stays server side.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Internal   error  `json:"-"`
}

func (e *AppError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Internal != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Internal)
	}
	return e.Message
}

// Unwrap exposes the internal error.
func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Internal
}

// Is reports whether target is an AppError with the same code, so derived copies still
// match their sentinel.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code
}

// WithInternal returns a copy carrying err for logs.
func (e *AppError) WithInternal(err error) *AppError {
	if e == nil {
		return nil
	}
	cpy := *e
	cpy.Internal = err
	return &cpy
}

// WithMessage returns a copy with a caller facing message.
func (e *AppError) WithMessage(message string) *AppError {
	if e == nil {
		return nil
	}
	cpy := *e
	cpy.Message = message
	return &cpy
}

var (
	ErrBadRequest      = New("BAD_REQUEST", "Invalid request", http.StatusBadRequest)
	ErrUnauthorized    = New("UNAUTHORIZED", "Authentication required", http.StatusUnauthorized)
	ErrForbidden       = New("FORBIDDEN", "Token scope does not allow this operation", http.StatusForbidden)
	ErrNotFound        = New("NOT_FOUND", "Resource not found", http.StatusNotFound)
	ErrConflict        = New("CONFLICT", "Evaluation already in progress", http.StatusConflict)
	ErrTooManyRequests = New("TOO_MANY_REQUESTS", "Rate limit exceeded", http.StatusTooManyRequests)
	ErrInternalServer  = New("INTERNAL_SERVER_ERROR", "Internal server error", http.StatusInternalServerError)
)

// New builds an application error.
func New(code, message string, statusCode int) *AppError {
	return &AppError{Code: code, Message: message, StatusCode: statusCode}
}

// NewBadRequest reports invalid input with message.
func NewBadRequest(message string) *AppError {
	return ErrBadRequest.WithMessage(message)
}

// NotFound reports a missing resource by name, e.g. NotFound("Template").
func NotFound(resource string) *AppError {
	return ErrNotFound.WithMessage(resource + " not found")
}

// FromError returns the AppError in err's chain, or ErrInternalServer wrapping err.
func FromError(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return ErrInternalServer.WithInternal(err)
}
