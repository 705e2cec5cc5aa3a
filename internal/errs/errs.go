// Package errs defines the error taxonomy shared across every component of
// the memory engine, so that a kind set at a leaf (a parse failure, a missing
// row) survives unchanged as it propagates up through repositories, the
// search engine, and finally the tool registry's protocol-error mapping.
package errs

import (
	"errors"
	"fmt"
)

// Kind names a class of failure, not a concrete type. Handlers and the
// protocol adapter switch on Kind, never on the underlying error value.
type Kind string

const (
	NotFound             Kind = "NotFound"
	AlreadyExists        Kind = "AlreadyExists"
	ParseError           Kind = "ParseError"
	SchemaValidationError Kind = "SchemaValidationError"
	WriteError           Kind = "WriteError"
	DatabaseError        Kind = "DatabaseError"
	IndexingError        Kind = "IndexingError"
	SearchError          Kind = "SearchError"
	GraphError           Kind = "GraphError"
	Timeout              Kind = "Timeout"
	InvalidRequest       Kind = "InvalidRequest"
	ToolError            Kind = "ToolError"
	IntegrityError       Kind = "IntegrityError"
	Internal             Kind = "Internal"
)

// Error wraps an underlying error with the operation that produced it and
// the taxonomy Kind it belongs to.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New creates an Error with no wrapped cause, for validation-style failures
// where the message itself is the only detail.
func New(kind Kind, op string, msg string) *Error {
	return &Error{Kind: kind, Op: op, Err: errors.New(msg)}
}

// Wrap attaches a Kind and operation name to an existing error. The kind
// passed always becomes the new error's Kind, even when err is already an
// *Error carrying a different one — callers that know the more specific
// kind should pass it; callers just adding context should pass the existing
// kind via KindOf(err).
func Wrap(kind Kind, op string, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf extracts the Kind carried by err, walking the Unwrap chain.
// Returns Internal if no *Error is found anywhere in the chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// Is reports whether err carries the given Kind anywhere in its chain.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// Retryable reports whether the taxonomy kind is subject to execution-policy
// retry: only transient I/O, database, and timeout failures are.
func Retryable(err error) bool {
	switch KindOf(err) {
	case WriteError, DatabaseError, Timeout:
		return true
	default:
		return false
	}
}
