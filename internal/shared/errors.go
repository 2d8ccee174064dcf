package shared

import (
	"errors"
	"fmt"
)

// Error kinds. Business errors wrap exactly one of these so callers can
// branch with errors.Is and the HTTP layer can pick a status.
var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrInvalidState      = errors.New("invalid state")
	ErrAlreadyClosed     = errors.New("already closed")
	ErrAlreadyCompleted  = errors.New("already completed")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrCashierRequired   = errors.New("cashier required")
	ErrConflict          = errors.New("conflict")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrForbidden         = errors.New("forbidden")
)

// Error is a business error carrying a stable code and a human message.
type Error struct {
	Kind    error
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Code + ": " + e.Message
}

func (e *Error) Unwrap() error {
	return e.Kind
}

// NewError builds a business error of the given kind.
func NewError(kind error, code, message string) error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// Errorf is NewError with a formatted message.
func Errorf(kind error, code, format string, args ...any) error {
	return &Error{Kind: kind, Code: code, Message: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the business code from err, or "" for internal errors.
func CodeOf(err error) string {
	var be *Error
	if errors.As(err, &be) {
		return be.Code
	}
	return ""
}
