// Package coreerr provides the closed error taxonomy shared by every core
// subsystem (chunker, index, search, providers). Consumers classify errors
// with errors.Is/errors.As instead of matching on message strings.
package coreerr

import (
	"errors"
	"fmt"
)

// Kind is the closed error classification exposed at the core boundary.
type Kind string

const (
	InvalidArgument Kind = "INVALID_ARGUMENT"
	NotFound        Kind = "NOT_FOUND"
	Conflict        Kind = "CONFLICT"
	Unavailable     Kind = "UNAVAILABLE"
	Timeout         Kind = "TIMEOUT"
	Internal        Kind = "INTERNAL"
	Configuration   Kind = "CONFIGURATION"
)

// transient reports whether a Kind is expected to resolve itself given a
// retry, as opposed to requiring caller-side changes.
func (k Kind) transient() bool {
	switch k {
	case Unavailable, Timeout:
		return true
	default:
		return false
	}
}

// Error is the structured error type used across the core boundary.
type Error struct {
	Kind    Kind
	Layer   string // originating layer: "embedding", "vectorstore", "cache", "eventbus", ""
	Message string
	Details map[string]string
	Cause   error
}

func (e *Error) Error() string {
	if e.Layer != "" {
		return fmt.Sprintf("[%s/%s] %s", e.Layer, e.Kind, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches on Kind so errors.Is(err, coreerr.New(NotFound, "")) style
// sentinel comparisons work without comparing messages.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Kind == t.Kind
	}
	return false
}

// Retryable reports whether the Recovery Manager should treat this error as
// transient.
func (e *Error) Retryable() bool { return e.Kind.transient() }

// New creates an Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates an Error of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap annotates cause with a layer and kind, preserving it for Unwrap.
func Wrap(layer string, kind Kind, cause error) *Error {
	if cause == nil {
		return nil
	}
	return &Error{Kind: kind, Layer: layer, Message: cause.Error(), Cause: cause}
}

// WithDetail attaches a key/value detail and returns the receiver for
// chaining.
func (e *Error) WithDetail(key, value string) *Error {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// KindOf extracts the Kind of err, defaulting to Internal when err does not
// carry one (e.g. a raw stdlib error escaped a layer boundary).
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}
