// Package apperrors defines the error taxonomy of the aggregation engine
// (spec §7): validation failures, absent sketches, transient storage
// failures, and internal invariant violations. Each is a distinct type so
// callers at the adapter boundary can use errors.As to pick an HTTP status
// without string-matching messages.
package apperrors

import (
	"errors"
	"fmt"
)

// ValidationError signals malformed input: an unknown window label, a
// non-ISO timestamp, a precision out of range, or mismatched sketch
// parameters on merge. Never retried.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("papertrail: validation error: %s", e.Msg)
}

func Validation(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// NotFoundError signals no sketch exists at the requested key. Queries
// treat this as zero/empty rather than propagating it as a failure; it is
// exported so storage and query layers can distinguish "absent" from "zero
// due to real computation" when that distinction matters (e.g. snapshot
// fetch).
type NotFoundError struct {
	Key string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("papertrail: not found: %s", e.Key)
}

func NotFound(key string) error {
	return &NotFoundError{Key: key}
}

// TransientStorageError signals a KV connection or command failure.
// Ingest surfaces this with retry-safe semantics; queries may retry with
// backoff up to a bounded attempt count.
type TransientStorageError struct {
	Op  string
	Err error
}

func (e *TransientStorageError) Error() string {
	return fmt.Sprintf("papertrail: transient storage error during %s: %v", e.Op, e.Err)
}

func (e *TransientStorageError) Unwrap() error {
	return e.Err
}

func Transient(op string, err error) error {
	return &TransientStorageError{Op: op, Err: err}
}

// IsTransient reports whether err is (or wraps) a TransientStorageError —
// the only kind query paths should retry.
func IsTransient(err error) bool {
	var transient *TransientStorageError
	return errors.As(err, &transient)
}

// InternalError signals a programmer bug or invariant violation. Logged
// with full context by the caller, surfaced as an opaque failure.
type InternalError struct {
	Msg string
	Err error
}

func (e *InternalError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("papertrail: internal error: %s: %v", e.Msg, e.Err)
	}
	return fmt.Sprintf("papertrail: internal error: %s", e.Msg)
}

func (e *InternalError) Unwrap() error {
	return e.Err
}

func Internal(msg string, err error) error {
	return &InternalError{Msg: msg, Err: err}
}
