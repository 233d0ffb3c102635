// Package stackset defines the domain types and remote contract for a
// stack-set-like resource: one reusable definition fanned out to many
// account/region instances, mutated by at most one operation at a time.
package stackset

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a remote failure for retry and recovery logic.
// Raw transport errors never cross the client boundary: the remote client
// converts every failure into one of these kinds at the point of call,
// so callers never inspect error text.
type ErrorKind string

const (
	// KindTransientRead indicates a read-path failure. The true remote state
	// is unknown; the caller retries the step or falls back per call site.
	KindTransientRead ErrorKind = "transient_read"

	// KindWriteConflict indicates the resource rejected a mutating call
	// because another operation is in flight. Retried with backoff, never fatal.
	KindWriteConflict ErrorKind = "write_conflict"

	// KindNotFound indicates the resource or operation does not exist.
	// Fatal for a run when it names the stack set itself.
	KindNotFound ErrorKind = "not_found"

	// KindOperationFailed indicates an operation reached FAILED or STOPPED.
	// Non-fatal to a run; the next step re-plans.
	KindOperationFailed ErrorKind = "operation_failed"

	// KindWaitTimeout indicates the wait budget ran out while the operation
	// was still non-terminal. A verdict on the wait, not on the operation.
	KindWaitTimeout ErrorKind = "wait_timeout"
)

// Error is a classified remote error with call context.
type Error struct {
	// Kind is the error classification for retry logic.
	Kind ErrorKind

	// Message is the human-readable error message.
	Message string

	// Op is the remote call being performed when the error occurred.
	Op string

	// Status carries the last observed operation status for wait_timeout errors.
	Status OperationStatus

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Op != "" && e.Err != nil {
		return fmt.Sprintf("[%s] %s (op=%s): %v", e.Kind, e.Message, e.Op, e.Err)
	}
	if e.Op != "" {
		return fmt.Sprintf("[%s] %s (op=%s)", e.Kind, e.Message, e.Op)
	}
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap returns the underlying error for error chain inspection.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is implements error equality checking for errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// WithOp adds remote call context to an error.
func (e *Error) WithOp(op string) *Error {
	e.Op = op
	return e
}

// NewTransientRead creates a new transient read error.
func NewTransientRead(message string, err error) *Error {
	return &Error{Kind: KindTransientRead, Message: message, Err: err}
}

// NewWriteConflict creates a new write conflict error.
func NewWriteConflict(message string, err error) *Error {
	return &Error{Kind: KindWriteConflict, Message: message, Err: err}
}

// NewNotFound creates a new not-found error.
func NewNotFound(message string, err error) *Error {
	return &Error{Kind: KindNotFound, Message: message, Err: err}
}

// NewOperationFailed creates an error for an operation that reached a
// terminal failure status.
func NewOperationFailed(message string, status OperationStatus) *Error {
	return &Error{Kind: KindOperationFailed, Message: message, Status: status}
}

// NewWaitTimeout creates an error for an exhausted wait budget, carrying
// the last observed non-terminal status.
func NewWaitTimeout(message string, status OperationStatus, err error) *Error {
	return &Error{Kind: KindWaitTimeout, Message: message, Status: status, Err: err}
}

// kindOf extracts the classification of an error, or "" if unclassified.
func kindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsTransientRead returns true if the error is a read-path failure.
func IsTransientRead(err error) bool {
	return kindOf(err) == KindTransientRead
}

// IsWriteConflict returns true if the error is a rejected concurrent write.
func IsWriteConflict(err error) bool {
	return kindOf(err) == KindWriteConflict
}

// IsNotFound returns true if the error names a missing resource or operation.
func IsNotFound(err error) bool {
	return kindOf(err) == KindNotFound
}

// IsOperationFailed returns true if the error records a terminal operation failure.
func IsOperationFailed(err error) bool {
	return kindOf(err) == KindOperationFailed
}

// IsWaitTimeout returns true if the error records an exhausted wait budget.
func IsWaitTimeout(err error) bool {
	return kindOf(err) == KindWaitTimeout
}

// IsRetryable returns true if re-running the step may succeed.
// Read failures and write conflicts are retryable; not_found is not.
func IsRetryable(err error) bool {
	return IsTransientRead(err) || IsWriteConflict(err)
}
