package models

import (
	"errors"
	"fmt"
)

// TransportError is a network-level failure: timeouts, connection resets,
// unexpected server errors. Retryable with the same session.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// BlockedError is an anti-bot detection signal: a CAPTCHA-shaped response,
// an explicit block page, or an anomalous empty result where data was
// expected. Retryable, but only with a fresh session profile.
type BlockedError struct {
	Domain string
	Signal string
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("blocked on %s: %s", e.Domain, e.Signal)
}

// ExtractionError means an expected element or field was absent from an
// otherwise reachable page. Retryable a bounded number of times.
type ExtractionError struct {
	What string
	Err  error
}

func (e *ExtractionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("extraction: %s: %v", e.What, e.Err)
	}
	return fmt.Sprintf("extraction: %s", e.What)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// ValidationError marks input that can never succeed: a malformed job or a
// record lacking its minimum fields. Terminal, never retried.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation: " + e.Reason
}

// RetryExhaustedError is the job-terminal failure produced after all
// attempts are spent.
type RetryExhaustedError struct {
	Attempts int
	Last     error
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("retry exhausted after %d attempts: %v", e.Attempts, e.Last)
}

func (e *RetryExhaustedError) Unwrap() error { return e.Last }

// Retryable reports whether the retry engine may attempt the work again.
func Retryable(err error) bool {
	var v *ValidationError
	if errors.As(err, &v) {
		return false
	}
	var x *RetryExhaustedError
	return !errors.As(err, &x)
}

// BurnsSession reports whether the error means the current session profile
// has been detected and must be rotated before the next attempt.
func BurnsSession(err error) bool {
	var b *BlockedError
	return errors.As(err, &b)
}
