package errors

import "net/http"

// Notification error codes.
const (
	CodeNotificationNotFound = "NOTIFICATION_NOT_FOUND"
	CodePersistenceFailed    = "PERSISTENCE_FAILED"
	CodeTransportFailed      = "TRANSPORT_FAILED"
)

// User error codes.
const (
	CodeUserNotFound = "USER_NOT_FOUND"
)

// Auth error codes.
const (
	CodeAuthFailed   = "AUTH_FAILED"
	CodeTokenExpired = "TOKEN_EXPIRED"
	CodeTokenInvalid = "TOKEN_INVALID"
)

// Generic error codes.
const (
	CodeNotFound         = "NOT_FOUND"
	CodeValidationFailed = "VALIDATION_FAILED"
	CodeUnknownEvent     = "UNKNOWN_EVENT"
	CodeInternal         = "INTERNAL_ERROR"
)

// ErrNotificationNotFound reports a notification that is missing or owned by someone else.
func ErrNotificationNotFound() *AppError {
	return NotFound(CodeNotificationNotFound, "notification not found")
}

// ErrValidation creates a 400 error carrying the offending rule.
func ErrValidation(message string) *AppError {
	return BadRequest(CodeValidationFailed, message)
}

// ErrPersistenceFailed wraps a store write failure.
func ErrPersistenceFailed(err error) *AppError {
	return &AppError{
		Code:       CodePersistenceFailed,
		Message:    "failed to store notification",
		HTTPStatus: http.StatusInternalServerError,
		Err:        joinSentinel(ErrPersistence, err),
	}
}

// ErrAuthentication wraps a credential verification failure.
func ErrAuthentication(code string, err error) *AppError {
	msg := "authentication failed"
	switch code {
	case CodeTokenExpired:
		msg = "token expired"
	case CodeTokenInvalid:
		msg = "invalid token"
	}
	return &AppError{
		Code:       code,
		Message:    msg,
		HTTPStatus: http.StatusUnauthorized,
		Err:        joinSentinel(ErrUnauthorized, err),
	}
}

func joinSentinel(sentinel, err error) error {
	if err == nil {
		return sentinel
	}
	return &classified{class: sentinel, err: err}
}

// classified keeps the original error message while matching its sentinel class.
type classified struct {
	class error
	err   error
}

func (c *classified) Error() string   { return c.err.Error() }
func (c *classified) Unwrap() []error { return []error{c.class, c.err} }
