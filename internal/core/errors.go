package core

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies failures so transports can map them to user-facing outcomes.
type ErrorKind uint8

const (
	KindValidation ErrorKind = iota + 1
	KindAuthorization
	KindNotFound
	KindPersistence
	KindPermissionDenied
)

var (
	ErrValidation       = errors.New("validation failed")
	ErrUnauthorized     = errors.New("not authorized")
	ErrNotFound         = errors.New("not found")
	ErrPersistence      = errors.New("persistence failure")
	ErrPermissionDenied = errors.New("permission denied")
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthorization:
		return "authorization"
	case KindNotFound:
		return "not_found"
	case KindPersistence:
		return "persistence"
	case KindPermissionDenied:
		return "permission_denied"
	default:
		return "unknown"
	}
}

func (k ErrorKind) sentinel() error {
	switch k {
	case KindValidation:
		return ErrValidation
	case KindAuthorization:
		return ErrUnauthorized
	case KindNotFound:
		return ErrNotFound
	case KindPersistence:
		return ErrPersistence
	case KindPermissionDenied:
		return ErrPermissionDenied
	default:
		return nil
	}
}

// Error is the typed failure returned by services. Msg names the precondition
// that failed and is safe to show to users.
type Error struct {
	Kind ErrorKind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return e.Msg + ": " + e.Err.Error()
	case e.Msg != "":
		return e.Msg
	case e.Err != nil:
		return e.Err.Error()
	default:
		return e.Kind.String()
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the sentinel for the error's kind, so errors.Is(err, ErrNotFound) works.
func (e *Error) Is(target error) bool {
	return target != nil && target == e.Kind.sentinel()
}

// Invalid builds a validation error.
func Invalid(format string, args ...any) error {
	return &Error{Kind: KindValidation, Msg: fmt.Sprintf(format, args...)}
}

// Forbidden builds an authorization error.
func Forbidden(msg string) error {
	return &Error{Kind: KindAuthorization, Msg: msg}
}

// NotFound builds a not-found error.
func NotFound(format string, args ...any) error {
	return &Error{Kind: KindNotFound, Msg: fmt.Sprintf(format, args...)}
}

// Persistence wraps a store failure. Failures that look like permission
// problems are classified as KindPermissionDenied instead.
func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	var ce *Error
	if errors.As(err, &ce) && (ce.Kind == KindPersistence || ce.Kind == KindPermissionDenied) {
		return err
	}
	if LooksLikePermissionDenied(err) {
		return &Error{Kind: KindPermissionDenied, Op: op, Msg: "you lack permission to " + op, Err: err}
	}
	return &Error{Kind: KindPersistence, Op: op, Msg: "failed to " + op, Err: err}
}

// KindOf reports the kind of err, or zero when err is not a *Error.
func KindOf(err error) ErrorKind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return 0
}

// Message returns the user-facing text of err.
func Message(err error) string {
	var ce *Error
	if errors.As(err, &ce) && ce.Msg != "" {
		return ce.Msg
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

// LooksLikePermissionDenied recognises permission failures reported as plain
// errors by backends that do not expose structured codes.
func LooksLikePermissionDenied(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrPermissionDenied) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "permission-denied") ||
		strings.Contains(msg, "permissiondenied") ||
		strings.Contains(msg, "permission") ||
		strings.Contains(msg, "insufficient permissions")
}
