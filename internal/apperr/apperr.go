// Package apperr defines the error taxonomy shared by the ingestion pipeline,
// the cache, and the service surface. Errors carry a Kind so handlers can map
// them to a structured payload without inspecting message text.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for the service boundary.
type Kind string

const (
	// NotFound means the id has no resolvable source.
	NotFound Kind = "not_found"
	// ParseFailure means a builder produced no usable tree. Fatal for the
	// ingestion attempt, not retried automatically.
	ParseFailure Kind = "parse_failure"
	// ProviderFailure means embedding retries were exhausted.
	ProviderFailure Kind = "provider_failure"
	// CapabilityUnavailable means the operation is not supported by this
	// document, e.g. a citation lookup on a paper without a bibliography.
	CapabilityUnavailable Kind = "capability_unavailable"
	// Internal covers everything else.
	Internal Kind = "internal"
)

// Error is a classified error with the operation that produced it.
type Error struct {
	Kind    Kind
	Op      string // operation that failed, e.g. "cache.Get"
	Message string
	Err     error // wrapped cause, may be nil
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, msg)
	}
	return msg
}

// Unwrap returns the wrapped cause.
func (e *Error) Unwrap() error { return e.Err }

// New creates a classified error.
func New(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies an existing error, preserving it as the cause.
func Wrap(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the Kind of err, or Internal for unclassified errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// IsNotFound reports whether err is classified NotFound.
func IsNotFound(err error) bool { return KindOf(err) == NotFound }

// IsParseFailure reports whether err is classified ParseFailure.
func IsParseFailure(err error) bool { return KindOf(err) == ParseFailure }

// IsProviderFailure reports whether err is classified ProviderFailure.
func IsProviderFailure(err error) bool { return KindOf(err) == ProviderFailure }

// IsCapabilityUnavailable reports whether err is classified CapabilityUnavailable.
func IsCapabilityUnavailable(err error) bool { return KindOf(err) == CapabilityUnavailable }
