// Package workflow is a small durable execution engine. Workflows are plain
// Go functions that call activities through a Context; every activity
// outcome is appended to the run's history so a restarted run replays
// finished steps instead of executing them again.
package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/target/scriptcheck/internal/core"
	"github.com/target/scriptcheck/internal/domain/model"
	"github.com/target/scriptcheck/internal/observability/metrics"
)

// ActivityFunc executes one activity on JSON-encoded input.
type ActivityFunc func(ctx context.Context, input json.RawMessage) (json.RawMessage, error)

// WorkflowFunc runs a workflow definition. The returned bytes become the run result.
type WorkflowFunc func(wctx *Context, input json.RawMessage) ([]byte, error)

// Typed adapts a typed activity function to ActivityFunc. Undecodable input
// and unencodable output are not retried.
func Typed[I, O any](fn func(ctx context.Context, in I) (O, error)) ActivityFunc {
	return func(ctx context.Context, raw json.RawMessage) (json.RawMessage, error) {
		var in I
		if err := json.Unmarshal(raw, &in); err != nil {
			return nil, NonRetryable(fmt.Errorf("decode activity input: %w", err))
		}
		out, err := fn(ctx, in)
		if err != nil {
			return nil, err
		}
		b, err := json.Marshal(out)
		if err != nil {
			return nil, NonRetryable(fmt.Errorf("encode activity output: %w", err))
		}
		return b, nil
	}
}

// EngineOptions configures an Engine.
type EngineOptions struct {
	History core.HistoryRepository
	// ActivityConcurrency bounds concurrently executing activities across
	// all runs handled by this engine. Defaults to 4.
	ActivityConcurrency int64
	Logger              *slog.Logger
	Now                 func() time.Time
	// Sleep waits between attempts; tests replace it.
	Sleep func(ctx context.Context, d time.Duration) error
}

type registeredActivity struct {
	fn   ActivityFunc
	opts ActivityOptions
}

// Engine executes registered workflows against a durable history.
type Engine struct {
	history core.HistoryRepository
	sem     *semaphore.Weighted
	logger  *slog.Logger
	now     func() time.Time
	sleep   func(ctx context.Context, d time.Duration) error

	mu         sync.RWMutex
	activities map[string]registeredActivity
	workflows  map[model.WorkflowType]WorkflowFunc
}

// NewEngine creates an Engine.
func NewEngine(opts EngineOptions) (*Engine, error) {
	if opts.History == nil {
		return nil, errors.New("workflow history repository is required")
	}
	if opts.ActivityConcurrency <= 0 {
		opts.ActivityConcurrency = 4
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Sleep == nil {
		opts.Sleep = sleepContext
	}
	return &Engine{
		history:    opts.History,
		sem:        semaphore.NewWeighted(opts.ActivityConcurrency),
		logger:     opts.Logger.With("component", "workflow_engine"),
		now:        opts.Now,
		sleep:      opts.Sleep,
		activities: make(map[string]registeredActivity),
		workflows:  make(map[model.WorkflowType]WorkflowFunc),
	}, nil
}

// RegisterActivity adds an activity under name with its execution limits.
func (e *Engine) RegisterActivity(name string, opts ActivityOptions, fn ActivityFunc) error {
	if name == "" || fn == nil {
		return errors.New("activity name and function are required")
	}
	if err := opts.validate(); err != nil {
		return fmt.Errorf("activity %s: %w", name, err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, dup := e.activities[name]; dup {
		return fmt.Errorf("activity %s already registered", name)
	}
	e.activities[name] = registeredActivity{fn: fn, opts: opts}
	return nil
}

// RegisterWorkflow adds a workflow definition for wt.
func (e *Engine) RegisterWorkflow(wt model.WorkflowType, fn WorkflowFunc) error {
	if wt == "" || fn == nil {
		return errors.New("workflow type and function are required")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, dup := e.workflows[wt]; dup {
		return fmt.Errorf("workflow %s already registered", wt)
	}
	e.workflows[wt] = fn
	return nil
}

// Execute runs (or resumes) run to completion. A *Failure error carries the
// structured result of a workflow that failed terminally; other errors are
// run-level failures the caller may retry.
func (e *Engine) Execute(ctx context.Context, run *model.WorkflowRun) (result []byte, err error) {
	e.mu.RLock()
	fn, ok := e.workflows[run.WorkflowType]
	e.mu.RUnlock()
	if !ok {
		return nil, NonRetryable(fmt.Errorf("no workflow registered for type %s", run.WorkflowType))
	}

	events, err := e.history.List(ctx, run.ID)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	recorded := make(map[int]model.HistoryEvent, len(events))
	for _, ev := range events {
		recorded[ev.Seq] = ev
	}

	wctx := &Context{ctx: ctx, engine: e, run: run, recorded: recorded}
	if len(events) > 0 {
		e.logger.InfoContext(ctx, "resuming workflow from history",
			"workflow_id", run.ID, "recorded_steps", len(events))
	}

	defer func() {
		if p := recover(); p != nil {
			e.logger.ErrorContext(ctx, "workflow panicked",
				"workflow_id", run.ID, "panic", p, "stack", string(debug.Stack()))
			result = nil
			err = NonRetryable(fmt.Errorf("workflow panic: %v", p))
		}
	}()
	return fn(wctx, run.Input)
}

// Context is handed to a workflow function. It is not safe for concurrent
// use: activities of one run execute in sequence.
type Context struct {
	ctx      context.Context
	engine   *Engine
	run      *model.WorkflowRun
	recorded map[int]model.HistoryEvent
	seq      int
}

// Context returns the run's context. It is canceled when the run is.
func (c *Context) Context() context.Context { return c.ctx }

// WorkflowID returns the run id.
func (c *Context) WorkflowID() string { return c.run.ID }

// Logger returns a logger tagged with the workflow id.
func (c *Context) Logger() *slog.Logger {
	return c.engine.logger.With("workflow_id", c.run.ID)
}

// ExecuteActivity runs the named activity with input and decodes its output
// into out. Steps already present in history are not executed again. A
// terminal activity failure is returned as *ActivityError.
func (c *Context) ExecuteActivity(name string, input, out any) error {
	seq := c.seq
	c.seq++

	if ev, ok := c.recorded[seq]; ok {
		return c.replay(seq, name, ev, out)
	}
	if err := c.ctx.Err(); err != nil {
		return err
	}

	e := c.engine
	e.mu.RLock()
	act, ok := e.activities[name]
	e.mu.RUnlock()
	if !ok {
		return &ActivityError{Activity: name, Err: NonRetryable(fmt.Errorf("activity %s not registered", name))}
	}

	rawIn, err := json.Marshal(input)
	if err != nil {
		return &ActivityError{Activity: name, Err: NonRetryable(fmt.Errorf("encode input: %w", err))}
	}

	started := e.now()
	output, attempts, runErr := e.runWithRetry(c.ctx, c.run.ID, name, act, rawIn)
	if runErr != nil && c.ctx.Err() != nil {
		// Canceled runs leave no record so a later retry starts this step fresh.
		return c.ctx.Err()
	}

	ev := &model.HistoryEvent{
		WorkflowID:  c.run.ID,
		Seq:         seq,
		Activity:    name,
		Status:      model.HistoryCompleted,
		Output:      output,
		Attempts:    attempts,
		StartedAt:   started.UTC(),
		CompletedAt: e.now().UTC(),
	}
	if runErr != nil {
		msg := runErr.Error()
		ev.Status = model.HistoryFailed
		ev.Output = nil
		ev.Error = &msg
	}

	inserted, err := e.history.Append(c.ctx, ev)
	if err != nil {
		return fmt.Errorf("record step %d (%s): %w", seq, name, err)
	}
	if !inserted {
		return fmt.Errorf("step %d (%s) was recorded concurrently", seq, name)
	}

	if runErr != nil {
		return &ActivityError{Activity: name, Attempts: attempts, Err: runErr}
	}
	return decodeOutput(name, output, out)
}

func (c *Context) replay(seq int, name string, ev model.HistoryEvent, out any) error {
	if ev.Activity != name {
		return &ActivityError{
			Activity: name,
			Err:      NonRetryable(fmt.Errorf("%w: step %d recorded %s", ErrNonDeterministic, seq, ev.Activity)),
		}
	}
	metrics.EmitActivityReplay(name)
	if ev.Status == model.HistoryFailed {
		msg := "recorded failure"
		if ev.Error != nil {
			msg = *ev.Error
		}
		return &ActivityError{Activity: name, Attempts: ev.Attempts, Err: NonRetryable(errors.New(msg))}
	}
	return decodeOutput(name, ev.Output, out)
}

func decodeOutput(name string, raw json.RawMessage, out any) error {
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &ActivityError{Activity: name, Err: NonRetryable(fmt.Errorf("decode output: %w", err))}
	}
	return nil
}

func (e *Engine) runWithRetry(
	ctx context.Context,
	runID, name string,
	act registeredActivity,
	input json.RawMessage,
) (json.RawMessage, int, error) {
	policy := act.opts.RetryPolicy
	for attempt := 1; ; attempt++ {
		start := e.now()
		out, err := e.attempt(ctx, name, act, input, ActivityInfo{
			WorkflowID:  runID,
			Activity:    name,
			Attempt:     attempt,
			MaxAttempts: policy.Attempts(),
		})
		elapsed := e.now().Sub(start)
		if err == nil {
			metrics.EmitActivityAttempt(metrics.ActivityMetric{Activity: name, Result: metrics.ResultSuccess, Duration: elapsed})
			return out, attempt, nil
		}
		if ctx.Err() != nil {
			return nil, attempt, ctx.Err()
		}

		final := !IsRetryable(err) || attempt >= policy.Attempts()
		result := metrics.ResultRetry
		if final {
			result = metrics.ResultError
		}
		metrics.EmitActivityAttempt(metrics.ActivityMetric{Activity: name, Result: result, Duration: elapsed, Err: err})
		if final {
			e.logger.ErrorContext(ctx, "activity failed",
				"workflow_id", runID, "activity", name, "attempt", attempt, "error", err)
			return nil, attempt, err
		}

		delay := policy.Backoff(attempt)
		e.logger.WarnContext(ctx, "activity attempt failed; retrying",
			"workflow_id", runID, "activity", name, "attempt", attempt, "backoff", delay, "error", err)
		if serr := e.sleep(ctx, delay); serr != nil {
			return nil, attempt, serr
		}
	}
}

func (e *Engine) attempt(
	ctx context.Context,
	name string,
	act registeredActivity,
	input json.RawMessage,
	info ActivityInfo,
) (out json.RawMessage, err error) {
	if err := e.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer e.sem.Release(1)

	actx, cancel := context.WithTimeout(WithActivityInfo(ctx, info), act.opts.StartToCloseTimeout)
	defer cancel()

	defer func() {
		if p := recover(); p != nil {
			e.logger.ErrorContext(ctx, "activity panicked", "activity", name, "panic", p, "stack", string(debug.Stack()))
			out = nil
			err = NonRetryable(fmt.Errorf("activity panic: %v", p))
		}
	}()

	out, err = act.fn(actx, input)
	if err != nil && ctx.Err() == nil && errors.Is(actx.Err(), context.DeadlineExceeded) {
		err = fmt.Errorf("activity %s exceeded %s: %w", name, act.opts.StartToCloseTimeout, context.DeadlineExceeded)
	}
	return out, err
}

// ActivityInfo describes the attempt an activity function is running in.
type ActivityInfo struct {
	WorkflowID  string
	Activity    string
	Attempt     int
	MaxAttempts int
}

// LastAttempt reports whether a failure now ends the activity.
func (i ActivityInfo) LastAttempt() bool { return i.Attempt >= i.MaxAttempts }

type activityInfoKey struct{}

// WithActivityInfo returns a copy of ctx carrying info.
func WithActivityInfo(ctx context.Context, info ActivityInfo) context.Context {
	return context.WithValue(ctx, activityInfoKey{}, info)
}

// ActivityInfoFromContext returns the attempt info of the running activity.
func ActivityInfoFromContext(ctx context.Context) (ActivityInfo, bool) {
	info, ok := ctx.Value(activityInfoKey{}).(ActivityInfo)
	return info, ok
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
