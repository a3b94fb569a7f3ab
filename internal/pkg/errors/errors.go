// Package errors provides the application error type and the error taxonomy
// shared by the REST surface and the realtime channel.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for the failure classes of the notification core.
var (
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrBadRequest   = errors.New("bad request")
	ErrInternal     = errors.New("internal error")

	// ErrPersistence marks a failed durable write. Fatal to the triggering operation.
	ErrPersistence = errors.New("persistence failure")

	// ErrTransport marks a failed live push. Never fatal; callers fall back to queueing.
	ErrTransport = errors.New("transport failure")
)

// AppError is a structured application error with HTTP status and error code.
type AppError struct {
	// Code is a machine-readable error code (e.g., "NOTIFICATION_NOT_FOUND").
	Code string `json:"code"`

	// Message is a short human-readable message.
	Message string `json:"message"`

	// HTTPStatus is the corresponding HTTP status code.
	HTTPStatus int `json:"-"`

	// Err is the wrapped underlying error.
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an existing error into an AppError.
func Wrap(err error, code, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

func NotFound(code, message string) *AppError {
	return Wrap(ErrNotFound, code, message, http.StatusNotFound)
}

func BadRequest(code, message string) *AppError {
	return Wrap(ErrBadRequest, code, message, http.StatusBadRequest)
}

func Unauthorized(code, message string) *AppError {
	return Wrap(ErrUnauthorized, code, message, http.StatusUnauthorized)
}

func Forbidden(code, message string) *AppError {
	return Wrap(ErrForbidden, code, message, http.StatusForbidden)
}

func Internal(code, message string) *AppError {
	return Wrap(ErrInternal, code, message, http.StatusInternalServerError)
}

// IsAppError checks if an error is an AppError and returns it.
func IsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// From converts any error into an AppError. Known sentinels keep their class;
// everything else becomes an internal error that does not leak details.
func From(err error) *AppError {
	if err == nil {
		return nil
	}
	if appErr, ok := IsAppError(err); ok {
		return appErr
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return &AppError{Code: CodeNotFound, Message: "resource not found", HTTPStatus: http.StatusNotFound, Err: err}
	case errors.Is(err, ErrUnauthorized):
		return &AppError{Code: CodeAuthFailed, Message: "authentication failed", HTTPStatus: http.StatusUnauthorized, Err: err}
	case errors.Is(err, ErrBadRequest):
		return &AppError{Code: CodeValidationFailed, Message: "invalid request", HTTPStatus: http.StatusBadRequest, Err: err}
	case errors.Is(err, ErrPersistence):
		return &AppError{Code: CodePersistenceFailed, Message: "failed to store notification", HTTPStatus: http.StatusInternalServerError, Err: err}
	default:
		return &AppError{Code: CodeInternal, Message: "an internal error occurred", HTTPStatus: http.StatusInternalServerError, Err: err}
	}
}
