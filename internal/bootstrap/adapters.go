package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/target/scriptcheck/config"
	"github.com/target/scriptcheck/internal/adapters/reaper"
	"github.com/target/scriptcheck/internal/adapters/runner"
	"github.com/target/scriptcheck/internal/domain/model"
	domainworkflow "github.com/target/scriptcheck/internal/domain/workflow"
)

// WorkerConfig contains configuration for the workflow worker.
type WorkerConfig struct {
	Services ServiceContainer
	Config   config.WorkerConfig
	Logger   *slog.Logger
}

// RunWorker executes queued security check runs until ctx is cancelled.
// Idle workers share one LISTEN connection through the run notifier.
func RunWorker(ctx context.Context, cfg WorkerConfig) error {
	if cfg.Services.Engine == nil || cfg.Services.Runs == nil {
		return errors.New("worker requires the workflow engine and run repository")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	notifier, err := domainworkflow.NewNotifier(domainworkflow.NotifierOptions{
		Waiter:     cfg.Services.Runs,
		WaitWindow: 30 * time.Second,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("create run notifier: %w", err)
	}
	defer notifier.StopAll()

	opts := runner.RunnerOptions{
		Runs:              cfg.Services.Runs,
		Jobs:              cfg.Services.JobMeta,
		Engine:            cfg.Services.Engine,
		Logger:            logger,
		WorkflowType:      model.WorkflowTypeSecurityCheck,
		Concurrency:       cfg.Config.Concurrency,
		Lease:             cfg.Config.Lease,
		HeartbeatInterval: cfg.Config.HeartbeatInterval,
		Notifier:          notifier,
	}
	if cfg.Services.Alerts != nil && cfg.Services.Alerts.Enabled() {
		opts.Alerts = cfg.Services.Alerts
	}
	r, err := runner.NewRunner(opts)
	if err != nil {
		return fmt.Errorf("create workflow runner: %w", err)
	}

	err = r.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// ReaperConfig contains configuration for the reaper.
type ReaperConfig struct {
	Services ServiceContainer
	Config   config.ReaperConfig
	Logger   *slog.Logger
}

// RunReaper starts the run reaper.
func RunReaper(ctx context.Context, cfg ReaperConfig) error {
	r, err := reaper.NewRunner(reaper.RunnerOptions{
		DB:     cfg.Services.DB,
		Repo:   cfg.Services.Runs,
		Config: cfg.Config,
		Logger: cfg.Logger,
	})
	if err != nil {
		return fmt.Errorf("create reaper runner: %w", err)
	}

	err = r.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
