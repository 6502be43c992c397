package workflow

import (
	"errors"
	"fmt"
	"math"
	"time"

	apperrors "github.com/target/scriptcheck/internal/errors"
)

// ErrNonDeterministic is returned when a replayed workflow asks for a
// different activity than the one recorded at the same step.
var ErrNonDeterministic = errors.New("non-deterministic workflow")

// RetryPolicy bounds how an activity is retried. Every policy has a finite
// attempt count; MaxAttempts <= 0 means a single attempt.
type RetryPolicy struct {
	MaxAttempts        int
	InitialInterval    time.Duration
	MaxInterval        time.Duration
	BackoffCoefficient float64
}

// Attempts returns the effective attempt budget.
func (p RetryPolicy) Attempts() int {
	if p.MaxAttempts <= 0 {
		return 1
	}
	return p.MaxAttempts
}

// Backoff returns the delay after the given failed attempt (1-based).
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if p.InitialInterval <= 0 || attempt < 1 {
		return 0
	}
	coeff := p.BackoffCoefficient
	if coeff < 1 {
		coeff = 2
	}
	d := float64(p.InitialInterval) * math.Pow(coeff, float64(attempt-1))
	if p.MaxInterval > 0 && d > float64(p.MaxInterval) {
		return p.MaxInterval
	}
	if d > float64(math.MaxInt64) {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(d)
}

// ActivityOptions are the per-activity execution limits.
type ActivityOptions struct {
	StartToCloseTimeout time.Duration
	RetryPolicy         RetryPolicy
}

func (o ActivityOptions) validate() error {
	if o.StartToCloseTimeout <= 0 {
		return errors.New("start-to-close timeout must be positive")
	}
	if o.RetryPolicy.MaxInterval > 0 && o.RetryPolicy.MaxInterval < o.RetryPolicy.InitialInterval {
		return errors.New("max interval must not be shorter than the initial interval")
	}
	return nil
}

type nonRetryableError struct {
	err error
}

func (e *nonRetryableError) Error() string { return e.err.Error() }
func (e *nonRetryableError) Unwrap() error { return e.err }

// NonRetryable marks err so the engine stops retrying immediately.
func NonRetryable(err error) error {
	if err == nil {
		return nil
	}
	return &nonRetryableError{err: err}
}

// IsRetryable reports whether another attempt could succeed. Errors marked
// NonRetryable, validation AppErrors and replay mismatches are final.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var nr *nonRetryableError
	if errors.As(err, &nr) {
		return false
	}
	if apperrors.IsValidation(err) || errors.Is(err, ErrNonDeterministic) {
		return false
	}
	return true
}

// ActivityError is the terminal failure of an activity after its retry
// budget was spent or a non-retryable error occurred.
type ActivityError struct {
	Activity string
	Attempts int
	Err      error
}

func (e *ActivityError) Error() string {
	return fmt.Sprintf("activity %s failed after %d attempt(s): %v", e.Activity, e.Attempts, e.Err)
}

func (e *ActivityError) Unwrap() error { return e.Err }

// Failure is returned by a workflow that terminated in the failed state but
// still produced a structured result for its caller.
type Failure struct {
	Result []byte
	Err    error
}

func (f *Failure) Error() string { return f.Err.Error() }
func (f *Failure) Unwrap() error { return f.Err }
