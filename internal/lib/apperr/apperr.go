package apperr

import (
	"errors"
	"fmt"
)

// Kind is the externally visible category of a failed operation.
type Kind string

const (
	Unauthenticated       Kind = "UNAUTHENTICATED"
	InvalidInput          Kind = "INVALID_INPUT"
	InvalidCredential     Kind = "INVALID_CREDENTIAL"
	DuplicateIdentity     Kind = "DUPLICATE_IDENTITY"
	NotFound              Kind = "NOT_FOUND"
	InvalidOperation      Kind = "INVALID_OPERATION"
	InsufficientFunds     Kind = "INSUFFICIENT_FUNDS"
	AccountBanned         Kind = "ACCOUNT_BANNED"
	PermissionDenied      Kind = "PERMISSION_DENIED"
	TransientStoreFailure Kind = "TRANSIENT_STORE_FAILURE"
	RateUnavailable       Kind = "RATE_UNAVAILABLE"
)

type Error struct {
	Kind    Kind
	Message string // public-facing message
	Cause   error  // internal cause, never sent to clients
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

func New(kind Kind, msg string) error {
	return &Error{Kind: kind, Message: msg}
}

func Wrap(kind Kind, msg string, cause error) error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

// KindOf reports the kind of err. Errors that carry no kind are treated as
// store failures.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return TransientStoreFailure
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	var appErr *Error
	return errors.As(err, &appErr) && appErr.Kind == kind
}

// MessageOf returns the public message of err, or a generic one for
// errors without a kind.
func MessageOf(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "internal error"
}
