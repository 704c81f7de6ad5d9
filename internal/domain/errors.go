package domain

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so callers can map it to a stable status category
type Kind string

const (
	KindNotFound   Kind = "not_found"
	KindForbidden  Kind = "forbidden"
	KindBadRequest Kind = "bad_request"
	KindConflict   Kind = "conflict"
	KindValidation Kind = "validation"
	KindInternal   Kind = "internal"
)

// Repository sentinels. Services translate these into typed errors.
var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
)

// Error is the typed failure returned by the service layer
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so errors.Is(err, &Error{Kind: KindForbidden}) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
}

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func NotFoundf(format string, args ...any) *Error   { return newError(KindNotFound, format, args...) }
func Forbiddenf(format string, args ...any) *Error  { return newError(KindForbidden, format, args...) }
func BadRequestf(format string, args ...any) *Error { return newError(KindBadRequest, format, args...) }
func Conflictf(format string, args ...any) *Error   { return newError(KindConflict, format, args...) }
func Validationf(format string, args ...any) *Error { return newError(KindValidation, format, args...) }

// Internal wraps an unexpected persistence or infrastructure failure
func Internal(message string, err error) *Error {
	return &Error{Kind: KindInternal, Message: message, Err: err}
}

// KindOf reports the kind of err. Untyped errors are treated as internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
