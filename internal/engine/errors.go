package engine

import (
	"errors"
	"fmt"
)

// === Retry classification ===

// RetryableError wraps an error to signal RetryPolicy should schedule a retry
// rather than move the unit straight to DLQ. Only errors wrapped with
// Transient() are retried; everything else is Permanent.
//
// Use for: connection resets, deadlocks, storage 5xx, timeouts.
// Don't use for: validation failures, invalid export-procedure arguments,
// authorization errors, storage 4xx other than throttling.
type RetryableError struct {
	Err error
}

func (e RetryableError) Error() string { return e.Err.Error() }
func (e RetryableError) Unwrap() error { return e.Err }

// Transient wraps err to mark it Transient for RetryPolicy.Classify.
func Transient(err error) error {
	return RetryableError{Err: err}
}

// IsRetryable reports whether err was wrapped with Transient.
func IsRetryable(err error) bool {
	var retryable RetryableError
	return errors.As(err, &retryable)
}

// === Panic handling ===

// PanicError indicates a panic occurred during export-procedure invocation or
// row streaming. A panic always routes straight to DLQ (no retries), since it
// signals a programming error rather than a transient condition.
type PanicError struct {
	Value      any
	StackTrace string
}

func (e PanicError) Error() string {
	return fmt.Sprintf("panic during unit execution: %v", e.Value)
}

// IsPanic reports whether err is (or wraps) a PanicError.
func IsPanic(err error) bool {
	var panicErr PanicError
	return errors.As(err, &panicErr)
}

// === Job-terminal short-circuit ===

// JobTerminalError indicates the unit's parent job was already terminal
// (FAILED, CANCELLED or COMPLETED) when Execute ran the job guard; the unit is routed straight to
// DLQ with this as the recorded reason, per the Executor's job-guard rule.
type JobTerminalError struct{}

func (JobTerminalError) Error() string { return "job-terminal" }

// IsJobTerminal reports whether err is a JobTerminalError.
func IsJobTerminal(err error) bool {
	var terminal JobTerminalError
	return errors.As(err, &terminal)
}
