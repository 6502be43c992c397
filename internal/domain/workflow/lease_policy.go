// Package workflow holds queue-level policy for durable workflow runs.
package workflow

import (
	"errors"
	"time"
)

// ErrInvalidDefaultLease indicates the configured default lease duration is not positive.
var ErrInvalidDefaultLease = errors.New("default lease must be positive")

// LeaseSource identifies how a lease duration was resolved.
type LeaseSource string

const (
	// LeaseSourceExplicit indicates the caller supplied a positive duration.
	LeaseSourceExplicit LeaseSource = "explicit"
	// LeaseSourceDefault indicates the default duration was used.
	LeaseSourceDefault LeaseSource = "default"
	// LeaseSourceClamped indicates the requested duration was clamped to the supported range.
	LeaseSourceClamped LeaseSource = "clamped"
)

// Lease bounds. Postgres intervals are computed in whole seconds; a lease
// longer than MaxLease hides a crashed worker's run for too long.
const (
	MinLease = time.Second
	MaxLease = time.Hour
)

// LeasePolicy normalises lease durations for run reservations and heartbeats.
type LeasePolicy struct {
	defaultLease time.Duration
}

// NewLeasePolicy constructs a LeasePolicy with the provided default lease duration.
func NewLeasePolicy(defaultLease time.Duration) (*LeasePolicy, error) {
	if defaultLease <= 0 {
		return nil, ErrInvalidDefaultLease
	}
	return &LeasePolicy{defaultLease: defaultLease}, nil
}

// Default returns the configured default lease duration.
func (p *LeasePolicy) Default() time.Duration {
	if p == nil {
		return 0
	}
	return p.defaultLease
}

// LeaseDecision captures the outcome of resolving a lease request.
type LeaseDecision struct {
	Lease     time.Duration
	Source    LeaseSource
	Requested time.Duration
}

// UsedDefault reports whether the policy fell back to the default lease.
func (d LeaseDecision) UsedDefault() bool {
	return d.Source == LeaseSourceDefault
}

// Clamped reports whether the requested value was clamped.
func (d LeaseDecision) Clamped() bool {
	return d.Source == LeaseSourceClamped
}

// Resolve normalises the requested duration to whole seconds within [MinLease, MaxLease].
func (p *LeasePolicy) Resolve(request time.Duration) LeaseDecision {
	if p == nil {
		return LeaseDecision{Lease: 0, Source: LeaseSourceDefault, Requested: request}
	}

	decision := LeaseDecision{Requested: request}
	switch {
	case request > 0:
		lease, clamped := clampLease(request)
		decision.Lease = lease
		decision.Source = LeaseSourceExplicit
		if clamped {
			decision.Source = LeaseSourceClamped
		}
	case request == 0:
		decision.Lease, _ = clampLease(p.defaultLease)
		decision.Source = LeaseSourceDefault
	default:
		decision.Lease = MinLease
		decision.Source = LeaseSourceClamped
	}
	return decision
}

// HeartbeatInterval returns how often a worker should extend a lease of the
// given length: a third of it, so two missed beats still keep the run.
func HeartbeatInterval(lease time.Duration) time.Duration {
	if lease < 3*MinLease {
		return MinLease
	}
	return (lease / 3).Truncate(100 * time.Millisecond)
}

func clampLease(d time.Duration) (time.Duration, bool) {
	whole := d.Truncate(time.Second)
	switch {
	case whole < MinLease:
		return MinLease, true
	case whole > MaxLease:
		return MaxLease, true
	default:
		return whole, false
	}
}
