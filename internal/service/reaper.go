package service

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/target/scriptcheck/config"
	"github.com/target/scriptcheck/internal/core"
	"github.com/target/scriptcheck/internal/domain/model"
	"github.com/target/scriptcheck/internal/observability/metrics"
)

// ReaperServiceOptions groups dependencies for ReaperService.
type ReaperServiceOptions struct {
	Repo   core.WorkflowRunReaper // Required: run queue housekeeping
	Config config.ReaperConfig    // Required: reaper configuration
	Logger *slog.Logger           // Optional: structured logger
}

// ReaperService keeps the run queue bounded.
//
// This service manages:
// - Failing runs that stayed pending too long or passed their deadline.
// - Deleting finished runs and their history after the retention window.
//
// Job and report metadata are never deleted.
type ReaperService struct {
	repo   core.WorkflowRunReaper
	config config.ReaperConfig
	logger *slog.Logger
}

// NewReaperService constructs a new ReaperService.
func NewReaperService(opts ReaperServiceOptions) (*ReaperService, error) {
	if opts.Repo == nil {
		return nil, errors.New("WorkflowRunReaper is required")
	}
	if opts.Config.Interval <= 0 {
		return nil, errors.New("reaper interval must be positive")
	}
	if opts.Config.BatchSize <= 0 {
		opts.Config.BatchSize = 1000
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "reaper_service")
	logger.Debug("ReaperService initialized",
		"interval", opts.Config.Interval,
		"pending_max_age", opts.Config.PendingMaxAge,
		"retention", opts.Config.Retention,
	)

	return &ReaperService{
		repo:   opts.Repo,
		config: opts.Config,
		logger: logger,
	}, nil
}

// Run starts the reaper loop and runs until the context is cancelled.
// Returns nil on graceful shutdown (context.Canceled), error otherwise.
func (s *ReaperService) Run(ctx context.Context) error {
	s.logger.InfoContext(ctx, "starting reaper service", "interval", s.config.Interval)

	// Jitter keeps replicas started together from reaping in lockstep.
	s.waitWithJitter(ctx)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	if err := s.RunOnce(ctx); err != nil {
		s.logCleanupError(ctx, err, "initial cleanup")
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "reaper service stopping", "reason", ctx.Err())
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				s.logCleanupError(ctx, err, "cleanup")
			}
		}
	}
}

// waitWithJitter adds a random delay up to 10% of the interval.
func (s *ReaperService) waitWithJitter(ctx context.Context) {
	maxJitter := int64(s.config.Interval / 10)
	if maxJitter <= 0 {
		return
	}

	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		s.logger.WarnContext(ctx, "failed to generate jitter, skipping", "error", err)
		return
	}

	jitterNanos := binary.BigEndian.Uint64(buf[:]) % uint64(maxJitter)
	jitter := time.Duration(int64(jitterNanos)) // #nosec G115 - bounded by maxJitter which is int64

	select {
	case <-time.After(jitter):
	case <-ctx.Done():
	}
}

// RunOnce performs every cleanup step once. Steps run independently; their
// errors are joined.
func (s *ReaperService) RunOnce(ctx context.Context) error {
	steps := []struct {
		action string
		fn     func(context.Context) (int64, error)
	}{
		{"fail_pending", s.failStalePendingRuns},
		{"fail_overdue", s.failOverdueRuns},
		{"delete_completed", s.deleteOld(model.RunStatusCompleted)},
		{"delete_failed", s.deleteOld(model.RunStatusFailed)},
		{"delete_canceled", s.deleteOld(model.RunStatusCanceled)},
	}

	var errs []error
	allCanceled := true
	for _, step := range steps {
		n, err := step.fn(ctx)
		metrics.EmitReaped(step.action, n)
		if n > 0 {
			s.logger.InfoContext(ctx, "reaped workflow runs", "action", step.action, "count", n)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", step.action, err))
			allCanceled = allCanceled && isContextCancellation(err)
		}
	}

	if len(errs) == 0 {
		return nil
	}
	joined := errors.Join(errs...)
	if allCanceled {
		return context.Canceled
	}
	return fmt.Errorf("cleanup failed: %w", joined)
}

// drain repeats a batched operation until it affects no rows.
func drain(ctx context.Context, batch func() (int64, error)) (int64, error) {
	var total int64
	for {
		n, err := batch()
		if err != nil {
			return total, err
		}
		total += n
		if n == 0 {
			return total, nil
		}
		if ctx.Err() != nil {
			return total, ctx.Err()
		}
	}
}

func (s *ReaperService) failStalePendingRuns(ctx context.Context) (int64, error) {
	return drain(ctx, func() (int64, error) {
		return s.repo.FailStalePendingRuns(ctx, s.config.PendingMaxAge, s.config.BatchSize)
	})
}

func (s *ReaperService) failOverdueRuns(ctx context.Context) (int64, error) {
	return drain(ctx, func() (int64, error) {
		return s.repo.FailOverdueRuns(ctx, s.config.BatchSize)
	})
}

func (s *ReaperService) deleteOld(status model.RunStatus) func(context.Context) (int64, error) {
	return func(ctx context.Context) (int64, error) {
		return drain(ctx, func() (int64, error) {
			return s.repo.DeleteOldRuns(ctx, core.DeleteOldRunsParams{
				Status:    status,
				MaxAge:    s.config.Retention,
				BatchSize: s.config.BatchSize,
			})
		})
	}
}

func (s *ReaperService) logCleanupError(ctx context.Context, err error, label string) {
	if isContextCancellation(err) {
		s.logger.DebugContext(ctx, label+" cancelled by context", "error", err)
		return
	}
	s.logger.ErrorContext(ctx, label+" failed", "error", err)
}

func isContextCancellation(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
