// Package retryx runs fallible reads with a bounded number of attempts and a
// linearly growing delay between them.
package retryx

import (
	"context"
	"errors"
	"time"
)

// Policy describes how often and how patiently an operation is retried.
// The wait after the n-th failed attempt is BaseDelay*n. There is no jitter
// and no cap other than MaxAttempts.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration

	// OnRetry, when set, is called before each wait with the attempt number
	// that just failed and its error.
	OnRetry func(attempt int, err error)
}

// DefaultPolicy is used for provider reads: three attempts, one second base.
var DefaultPolicy = Policy{MaxAttempts: 3, BaseDelay: time.Second}

// Delay returns the wait that follows the given failed attempt (1-based).
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		return 0
	}
	return p.BaseDelay * time.Duration(attempt)
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err so Do returns it immediately instead of retrying.
// Do unwraps the marker before returning.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Do invokes op until it succeeds or MaxAttempts is exhausted, returning the
// last error unchanged. A cancelled context while waiting aborts with
// ctx.Err().
func Do[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error)) (T, error) {
	attempts := max(p.MaxAttempts, 1)

	var zero T
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		v, err := op(ctx)
		if err == nil {
			return v, nil
		}

		var perm *permanentError
		if errors.As(err, &perm) {
			return zero, perm.err
		}
		lastErr = err

		if attempt == attempts {
			break
		}

		if p.OnRetry != nil {
			p.OnRetry(attempt, err)
		}

		timer := time.NewTimer(p.Delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}
	}

	return zero, lastErr
}
