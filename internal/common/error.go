package common

import (
	"errors"
	"fmt"
)

// Kind classifies a service-level failure. Transports map kinds to their
// own status codes.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindConflict
	KindUnauthorized
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindUnauthorized:
		return "unauthorized"
	case KindNotFound:
		return "not_found"
	default:
		return "internal"
	}
}

// Error is returned by services at their boundary. Message is safe to show
// to clients; Err holds the underlying cause for logging only.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func NewError(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

func Validation(message string) *Error { return NewError(KindValidation, message, nil) }

func Conflict(message string) *Error { return NewError(KindConflict, message, nil) }

func Unauthorized(message string) *Error { return NewError(KindUnauthorized, message, nil) }

func NotFound(message string) *Error { return NewError(KindNotFound, message, nil) }

func Internal(message string, cause error) *Error { return NewError(KindInternal, message, cause) }

// KindOf reports the kind carried by err. Errors that are not *Error are
// internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}
