package parties

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures so the HTTP layer can pick a status code.
type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindAuthenticationRequired
	KindAuthorizationDenied
	KindNotFound
	KindValidationFailed
	KindConflict
)

func (k ErrorKind) String() string {
	switch k {
	case KindAuthenticationRequired:
		return "authentication_required"
	case KindAuthorizationDenied:
		return "authorization_denied"
	case KindNotFound:
		return "not_found"
	case KindValidationFailed:
		return "validation_failed"
	case KindConflict:
		return "conflict"
	default:
		return "internal"
	}
}

// Error is a user-facing failure. Message is safe to show to callers verbatim;
// Err carries the underlying cause for logs only.
type Error struct {
	Kind    ErrorKind
	Message string
	Fields  map[string]string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of err, treating anything that is not an *Error as internal.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func errUnauthenticated() *Error {
	return &Error{Kind: KindAuthenticationRequired, Message: "Authentication required"}
}

func errForbidden(msg string) *Error {
	return &Error{Kind: KindAuthorizationDenied, Message: msg}
}

func errNotFound(msg string) *Error {
	return &Error{Kind: KindNotFound, Message: msg}
}

func errConflict(msg string) *Error {
	return &Error{Kind: KindConflict, Message: msg}
}

func errInvalid(field, msg string) *Error {
	e := &Error{Kind: KindValidationFailed, Message: msg}
	if field != "" {
		e.Fields = map[string]string{field: msg}
	}
	return e
}

func errInternal(op string, err error) *Error {
	return &Error{Kind: KindInternal, Message: "Something went wrong", Err: fmt.Errorf("%s: %w", op, err)}
}
