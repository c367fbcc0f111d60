// Package errs defines the error kinds surfaced by the query services.
//
// Callers classify failures with errors.Is against the sentinels below; the wrapped
// message carries the detail. Validation errors are safe to show to API clients verbatim.
package errs

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrValidation marks malformed input rejected before any upstream call.
	ErrValidation = errors.New("validation error")
	// ErrUpstream marks a failed or timed-out scan against the indexing service.
	ErrUpstream = errors.New("upstream error")
	// ErrIntegrity marks a record that cannot be turned into a consistent response.
	ErrIntegrity = errors.New("data integrity anomaly")
	// ErrNotFound marks an unknown or disallowed resource.
	ErrNotFound = errors.New("not found")
)

type kindError struct {
	kind error
	msg  string
	err  error
}

func (e *kindError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.err)
	}
	return e.msg
}

func (e *kindError) Unwrap() []error {
	if e.err != nil {
		return []error{e.kind, e.err}
	}
	return []error{e.kind}
}

// Validation returns an ErrValidation with a client-facing message.
func Validation(format string, args ...any) error {
	return &kindError{kind: ErrValidation, msg: fmt.Sprintf(format, args...)}
}

// Integrity returns an ErrIntegrity describing the offending record.
func Integrity(format string, args ...any) error {
	return &kindError{kind: ErrIntegrity, msg: fmt.Sprintf(format, args...)}
}

// NotFound returns an ErrNotFound with the given message.
func NotFound(format string, args ...any) error {
	return &kindError{kind: ErrNotFound, msg: fmt.Sprintf(format, args...)}
}

// Upstream wraps err as an ErrUpstream for the named operation. A nil err returns nil.
func Upstream(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrUpstream) {
		return err
	}
	return &kindError{kind: ErrUpstream, msg: op, err: err}
}

// IsTimeout reports whether err was caused by an expired deadline.
func IsTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}
