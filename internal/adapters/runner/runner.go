// Package runner executes queued workflow runs on the durable engine.
package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/target/scriptcheck/internal/core"
	"github.com/target/scriptcheck/internal/domain/model"
	domainworkflow "github.com/target/scriptcheck/internal/domain/workflow"
	"github.com/target/scriptcheck/internal/observability/metrics"
	"github.com/target/scriptcheck/internal/observability/notify"
	"github.com/target/scriptcheck/internal/service/workflow"
)

// CanceledMessage is recorded for runs stopped on request.
const CanceledMessage = "workflow canceled"

// TimedOutMessage is recorded for runs that passed their deadline.
const TimedOutMessage = "workflow timed out"

var (
	errCancelRequested = errors.New(CanceledMessage)
	errLeaseLost       = errors.New("lease lost")
)

// Executor runs one workflow run to completion.
type Executor interface {
	Execute(ctx context.Context, run *model.WorkflowRun) ([]byte, error)
}

// RunnerOptions configures the workflow runner.
type RunnerOptions struct {
	Runs   core.WorkflowRunRepository
	Jobs   core.JobMetadataRepository
	Engine Executor
	Logger *slog.Logger

	WorkflowType      model.WorkflowType // defaults to security_check
	Concurrency       int                // number of worker goroutines; defaults to 1
	Lease             time.Duration      // per-run lease; defaults to 60s
	HeartbeatInterval time.Duration      // defaults to Lease/3
	// PollInterval bounds how long an idle worker waits for a notification
	// before polling again. Defaults to 5s.
	PollInterval time.Duration
	// Notifier shares one LISTEN connection between workers. Without it
	// each idle worker waits on the repository directly.
	Notifier domainworkflow.Notifier
	// Alerts is told about runs that end in a terminal failure.
	Alerts FailureAlerter
}

// FailureAlerter receives terminal run failures.
type FailureAlerter interface {
	NotifyRunFailure(ctx context.Context, payload notify.RunFailurePayload)
}

// Runner reserves runs and drives them through the engine.
type Runner struct {
	runs      core.WorkflowRunRepository
	jobs      core.JobMetadataRepository
	engine    Executor
	logger    *slog.Logger
	wt        model.WorkflowType
	workers   int
	lease     time.Duration
	heartbeat time.Duration
	poll      time.Duration
	notifier  domainworkflow.Notifier
	alerts    FailureAlerter
}

// NewRunner validates opts and constructs a Runner.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if opts.Runs == nil || opts.Engine == nil {
		return nil, errors.New("run repository and engine are required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.WorkflowType == "" {
		opts.WorkflowType = model.WorkflowTypeSecurityCheck
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	policy, err := domainworkflow.NewLeasePolicy(60 * time.Second)
	if err != nil {
		return nil, err
	}
	opts.Lease = policy.Resolve(opts.Lease).Lease
	if opts.HeartbeatInterval <= 0 || opts.HeartbeatInterval >= opts.Lease {
		opts.HeartbeatInterval = domainworkflow.HeartbeatInterval(opts.Lease)
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 5 * time.Second
	}
	return &Runner{
		runs:      opts.Runs,
		jobs:      opts.Jobs,
		engine:    opts.Engine,
		logger:    opts.Logger.With("component", "workflow_runner"),
		wt:        opts.WorkflowType,
		workers:   opts.Concurrency,
		lease:     opts.Lease,
		heartbeat: opts.HeartbeatInterval,
		poll:      opts.PollInterval,
		notifier:  opts.Notifier,
		alerts:    opts.Alerts,
	}, nil
}

// Run starts the workers and blocks until ctx is cancelled or a worker
// fails to reserve runs.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "starting workflow runner",
		"workflow_type", r.wt, "workers", r.workers, "lease", r.lease)

	g, gctx := errgroup.WithContext(ctx)
	for range r.workers {
		g.Go(func() error { return r.workerLoop(gctx) })
	}
	err := g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return ctx.Err()
}

func (r *Runner) workerLoop(ctx context.Context) error {
	var wake <-chan struct{}
	if r.notifier != nil {
		unsubscribe, ch := r.notifier.Subscribe(r.wt)
		defer unsubscribe()
		wake = ch
	}
	for ctx.Err() == nil {
		run, err := r.runs.ReserveNext(ctx, r.wt, r.lease)
		switch {
		case err == nil:
			if run != nil {
				r.Process(ctx, run)
			}
		case errors.Is(err, model.ErrNoRunsAvailable):
			r.waitForWork(ctx, wake)
		case ctx.Err() != nil:
			return ctx.Err()
		default:
			return fmt.Errorf("reserve next: %w", err)
		}
	}
	return ctx.Err()
}

func (r *Runner) waitForWork(ctx context.Context, wake <-chan struct{}) {
	wctx, cancel := context.WithTimeout(ctx, r.poll)
	defer cancel()
	if wake != nil {
		select {
		case <-ctx.Done():
		case <-wctx.Done():
		case <-wake:
		}
		return
	}
	if err := r.runs.WaitForNotification(wctx, r.wt); err != nil &&
		!errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
		r.logger.WarnContext(ctx, "wait for notification", "error", err)
		// Back off so a broken listener does not spin.
		select {
		case <-ctx.Done():
		case <-wctx.Done():
		}
	}
}

// Process executes one reserved run and records its outcome.
func (r *Runner) Process(ctx context.Context, run *model.WorkflowRun) {
	start := time.Now()
	emit := func(transition, result string, err error) {
		metrics.EmitRunLifecycle(metrics.RunMetric{
			WorkflowType: string(run.WorkflowType),
			Transition:   transition,
			Result:       result,
			Duration:     time.Since(start),
			Err:          err,
		})
	}

	runCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	if !run.DeadlineAt.IsZero() {
		var stop context.CancelFunc
		runCtx, stop = context.WithDeadline(runCtx, run.DeadlineAt)
		defer stop()
	}

	hbDone := make(chan struct{})
	go func() {
		defer close(hbDone)
		r.heartbeatLoop(runCtx, run.ID, cancel)
	}()

	result, err := r.engine.Execute(runCtx, run)
	cause := context.Cause(runCtx)
	cancel(nil)
	<-hbDone

	var failure *workflow.Failure
	switch {
	case err == nil:
		r.complete(ctx, run, result)
		emit("completed", metrics.ResultSuccess, nil)
	case errors.As(err, &failure):
		r.failTerminal(ctx, run, failure.Error(), failure.Result)
		emit("failed", metrics.ResultError, err)
	case errors.Is(cause, errCancelRequested):
		r.markCanceled(ctx, run)
		emit("canceled", metrics.ResultSuccess, nil)
	case errors.Is(cause, errLeaseLost):
		r.logger.WarnContext(ctx, "lease lost; abandoning run", "workflow_id", run.ID)
		emit("abandoned", metrics.ResultNoop, err)
	case ctx.Err() != nil:
		// Shutdown: the expired lease requeues the run and history resumes it.
		r.logger.InfoContext(ctx, "run interrupted by shutdown", "workflow_id", run.ID)
		emit("interrupted", metrics.ResultNoop, err)
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		r.failTerminal(ctx, run, TimedOutMessage, timedOutResult(run.ID))
		emit("timed_out", metrics.ResultError, err)
	default:
		r.failAttempt(ctx, run, err)
		emit("failed", metrics.ResultError, err)
	}
}

func (r *Runner) heartbeatLoop(ctx context.Context, id string, cancel context.CancelCauseFunc) {
	ticker := time.NewTicker(r.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		state, err := r.runs.Heartbeat(ctx, id, r.lease)
		if err != nil {
			if ctx.Err() == nil {
				r.logger.WarnContext(ctx, "heartbeat failed", "workflow_id", id, "error", err)
			}
			continue
		}
		switch {
		case !state.Held:
			cancel(errLeaseLost)
			return
		case state.CancelRequested:
			r.logger.InfoContext(ctx, "cancel requested", "workflow_id", id)
			cancel(errCancelRequested)
			return
		}
	}
}

func (r *Runner) complete(ctx context.Context, run *model.WorkflowRun, result []byte) {
	ok, err := r.runs.Complete(ctx, run.ID, result)
	if err != nil {
		r.logger.ErrorContext(ctx, "complete run", "workflow_id", run.ID, "error", err)
		return
	}
	if !ok {
		r.logger.WarnContext(ctx, "run no longer held at completion", "workflow_id", run.ID)
	}
}

func (r *Runner) failTerminal(ctx context.Context, run *model.WorkflowRun, msg string, result json.RawMessage) {
	if _, err := r.runs.Fail(ctx, run.ID, model.RunFailure{Error: msg, Retryable: false, Result: result}); err != nil {
		r.logger.ErrorContext(ctx, "fail run", "workflow_id", run.ID, "error", err)
	}
	r.setJob(ctx, run.ID, model.JobStatusFailed, msg)
	r.alert(ctx, run, msg)
}

// failAttempt handles errors outside activities, such as a history write
// failing. Retryable ones send the run back to the queue.
func (r *Runner) failAttempt(ctx context.Context, run *model.WorkflowRun, cause error) {
	msg := cause.Error()
	status, err := r.runs.Fail(ctx, run.ID, model.RunFailure{Error: msg, Retryable: workflow.IsRetryable(cause)})
	if err != nil {
		r.logger.ErrorContext(ctx, "fail run", "workflow_id", run.ID, "error", err)
		return
	}
	r.logger.WarnContext(ctx, "run attempt failed", "workflow_id", run.ID, "status", status, "error", cause)
	if status == model.RunStatusFailed {
		r.setJob(ctx, run.ID, model.JobStatusFailed, msg)
		r.alert(ctx, run, msg)
	}
}

func (r *Runner) alert(ctx context.Context, run *model.WorkflowRun, reason string) {
	if r.alerts == nil {
		return
	}
	r.alerts.NotifyRunFailure(ctx, notify.RunFailurePayload{
		RunID:        run.ID,
		WorkflowType: string(run.WorkflowType),
		Reason:       reason,
		Attempts:     run.RetryCount + 1,
	})
}

func (r *Runner) markCanceled(ctx context.Context, run *model.WorkflowRun) {
	if _, err := r.runs.MarkCanceled(ctx, run.ID, CanceledMessage); err != nil {
		r.logger.ErrorContext(ctx, "mark run canceled", "workflow_id", run.ID, "error", err)
	}
	r.setJob(ctx, run.ID, model.JobStatusCancelled, CanceledMessage)
}

// setJob mirrors a terminal run outcome onto the job record; run id and job
// id are the same. Completed jobs are left alone by the repository.
func (r *Runner) setJob(ctx context.Context, jobID string, status model.JobStatus, msg string) {
	if r.jobs == nil {
		return
	}
	if _, err := r.jobs.UpdateStatus(ctx, jobID, model.JobStatusUpdate{Status: status, ErrorMessage: &msg}); err != nil {
		r.logger.ErrorContext(ctx, "update job status", "job_id", jobID, "status", status, "error", err)
	}
}

func timedOutResult(id string) json.RawMessage {
	b, _ := json.Marshal(model.WorkflowResult{Status: model.WorkflowFailed, WorkflowID: id, Error: TimedOutMessage})
	return b
}
