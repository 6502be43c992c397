package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"math"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/target/scriptcheck/internal/data/pgxutil"
	"github.com/target/scriptcheck/internal/domain/model"
)

// RunRepoConfig holds configuration options for the workflow run queue.
type RunRepoConfig struct {
	RetryDelay   time.Duration
	Logger       *slog.Logger
	TimeProvider TimeProvider
}

// WorkflowRunRepo is the Postgres-backed durable queue of workflow runs.
type WorkflowRunRepo struct {
	DB           *sql.DB
	cfg          RunRepoConfig
	timeProvider TimeProvider
	logger       *slog.Logger
}

// NewWorkflowRunRepo creates a WorkflowRunRepo.
func NewWorkflowRunRepo(db *sql.DB, cfg RunRepoConfig) *WorkflowRunRepo {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &WorkflowRunRepo{
		DB:           db,
		cfg:          cfg,
		timeProvider: resolveTimeProvider(cfg.TimeProvider),
		logger:       logger.With("component", "workflow_run_repo"),
	}
}

const runColumns = `
  id,
  workflow_type,
  status,
  priority,
  input,
  result,
  retry_count,
  max_retries,
  last_error,
  cancel_requested,
  scheduled_at,
  deadline_at,
  started_at,
  completed_at,
  lease_expires_at,
  created_at,
  updated_at
`

const defaultRunRetryDelay = 30 * time.Second

func (r *WorkflowRunRepo) retryDelay() time.Duration {
	if r.cfg.RetryDelay > 0 {
		return r.cfg.RetryDelay
	}
	return defaultRunRetryDelay
}

func runChannel(wt model.WorkflowType) string {
	return "workflow_run_added_" + string(wt)
}

const insertRunSQL = `
  INSERT INTO workflow_runs (id, workflow_type, status, priority, input, max_retries,
                             scheduled_at, deadline_at, created_at, updated_at)
  VALUES ($1, $2, 'pending', $3, $4, $5, $6, $7, $6, $6)
  ON CONFLICT (id) DO NOTHING
  RETURNING ` + runColumns

func (r *WorkflowRunRepo) insertArgs(req *model.CreateRunRequest) []any {
	now := r.timeProvider.Now().UTC()
	return []any{
		req.ID,
		req.WorkflowType,
		req.Priority,
		[]byte(req.Input),
		req.MaxRetries,
		now,
		now.Add(req.Timeout),
	}
}

// Create enqueues a run. Starting a run whose id already exists returns the
// existing run unchanged.
func (r *WorkflowRunRepo) Create(ctx context.Context, req *model.CreateRunRequest) (*model.WorkflowRun, error) {
	if req == nil {
		return nil, errors.New("create run request is required")
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var run *model.WorkflowRun
	err := pgxutil.WithPgxTx(ctx, r.DB, pgxutil.TxConfig{
		Fn: func(tx pgx.Tx) error {
			rows, err := tx.Query(ctx, insertRunSQL, r.insertArgs(req)...)
			if err != nil {
				return fmt.Errorf("insert workflow run: %w", err)
			}
			created, cerr := collectOne(rows, scanRun)
			rows.Close()
			if errors.Is(cerr, pgx.ErrNoRows) {
				return nil
			}
			if cerr != nil {
				return fmt.Errorf("collect workflow run: %w", cerr)
			}
			run = created
			if _, err := tx.Exec(ctx, `SELECT pg_notify($1::text, $2::text)`, runChannel(req.WorkflowType), created.ID); err != nil {
				return fmt.Errorf("send run notification: %w", err)
			}
			return nil
		},
	})
	if err != nil {
		return nil, err
	}
	if run == nil {
		return r.GetByID(ctx, req.ID)
	}
	return run, nil
}

// CreateInTx enqueues a run within an existing SQL transaction so the run and
// its job record commit together.
func (r *WorkflowRunRepo) CreateInTx(ctx context.Context, tx *sql.Tx, req *model.CreateRunRequest) (*model.WorkflowRun, error) {
	if tx == nil {
		return nil, errors.New("transaction is required")
	}
	if req == nil {
		return nil, errors.New("create run request is required")
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	run, err := scanRun(tx.QueryRowContext(ctx, insertRunSQL, r.insertArgs(req)...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("workflow run %s already exists", req.ID)
	}
	if err != nil {
		return nil, fmt.Errorf("insert workflow run: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `SELECT pg_notify($1::text, $2::text)`, runChannel(req.WorkflowType), run.ID); err != nil {
		return nil, fmt.Errorf("send run notification: %w", err)
	}
	return run, nil
}

// SQL used by ReserveNext to atomically reserve the most urgent pending run.
const reserveNextRunSQL = `
  WITH cte AS (
    SELECT id FROM workflow_runs
    WHERE workflow_type = $1 AND status = 'pending' AND scheduled_at <= $2
    ORDER BY priority ASC, scheduled_at ASC, created_at ASC
    LIMIT 1
    FOR UPDATE SKIP LOCKED
  )
  UPDATE workflow_runs w
  SET
    status = 'running',
    started_at = COALESCE(w.started_at, $2),
    lease_expires_at = $3,
    updated_at = $2
  FROM cte
  WHERE w.id = cte.id
  RETURNING w.id, w.workflow_type, w.status, w.priority, w.input, w.result, w.retry_count, w.max_retries,
            w.last_error, w.cancel_requested, w.scheduled_at, w.deadline_at, w.started_at, w.completed_at,
            w.lease_expires_at, w.created_at, w.updated_at`

// ReserveNext leases the next pending run of the given type. Priority 1 is
// reserved first. Returns model.ErrNoRunsAvailable when the queue is empty.
func (r *WorkflowRunRepo) ReserveNext(ctx context.Context, wt model.WorkflowType, lease time.Duration) (*model.WorkflowRun, error) {
	if wt == "" {
		return nil, errors.New("workflow type is required")
	}
	if lease <= 0 {
		return nil, errors.New("lease must be positive")
	}

	if _, err := r.requeueExpired(ctx, wt); err != nil {
		return nil, fmt.Errorf("requeue expired runs: %w", err)
	}

	var run *model.WorkflowRun
	err := pgxutil.WithPgxTx(ctx, r.DB, pgxutil.TxConfig{
		Opts: &sql.TxOptions{Isolation: sql.LevelReadCommitted},
		Fn: func(tx pgx.Tx) error {
			now := r.timeProvider.Now().UTC()
			rows, qerr := tx.Query(ctx, reserveNextRunSQL, wt, now, now.Add(lease))
			if qerr != nil {
				return fmt.Errorf("reserve run: %w", qerr)
			}
			defer rows.Close()

			reserved, cerr := collectOne(rows, scanRun)
			if errors.Is(cerr, pgx.ErrNoRows) {
				return model.ErrNoRunsAvailable
			}
			if cerr != nil {
				return fmt.Errorf("reserve run: %w", cerr)
			}
			run = reserved
			return nil
		},
	})
	if err != nil {
		return nil, err
	}
	return run, nil
}

// Advisory lock namespace for requeueExpired, keyed per workflow type.
const advisoryLockRequeueMajor int64 = 1001

func advisoryLockRequeueMinor(wt model.WorkflowType) int64 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(wt))
	return int64(h.Sum32() & uint32(math.MaxInt32))
}

// requeueExpired returns running runs with lapsed leases to pending so another
// worker can replay them from history.
func (r *WorkflowRunRepo) requeueExpired(ctx context.Context, wt model.WorkflowType) (int64, error) {
	var n int64
	key := pgxutil.LockKey{Major: advisoryLockRequeueMajor, Minor: advisoryLockRequeueMinor(wt)}
	_, err := pgxutil.WithAdvisoryXactLock(ctx, r.DB, key, func(tx *sql.Tx) error {
		var err error
		n, err = pgxutil.ExecCount(ctx, tx, `
          UPDATE workflow_runs
          SET status = 'pending', lease_expires_at = NULL, updated_at = $2
          WHERE workflow_type = $1 AND status = 'running'
            AND lease_expires_at IS NOT NULL
            AND lease_expires_at < $2
        `, wt, r.timeProvider.Now().UTC())
		if err != nil {
			return fmt.Errorf("requeue expired: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if n > 0 {
		r.logger.InfoContext(ctx, "requeued runs with expired leases", "workflow_type", wt, "count", n)
	}
	return n, nil
}

// Heartbeat extends the lease on a running run and reports whether a cancel
// was requested.
func (r *WorkflowRunRepo) Heartbeat(ctx context.Context, id string, lease time.Duration) (model.LeaseState, error) {
	if lease <= 0 {
		return model.LeaseState{}, errors.New("lease must be positive")
	}
	now := r.timeProvider.Now().UTC()

	var state model.LeaseState
	err := r.DB.QueryRowContext(ctx, `
		UPDATE workflow_runs
		SET lease_expires_at = $2,
		    updated_at = $3
		WHERE id = $1 AND status = 'running'
		RETURNING cancel_requested
	`, id, now.Add(lease), now).Scan(&state.CancelRequested)
	if errors.Is(err, sql.ErrNoRows) {
		return model.LeaseState{}, nil
	}
	if err != nil {
		return model.LeaseState{}, fmt.Errorf("heartbeat run: %w", err)
	}
	state.Held = true
	return state, nil
}

// Complete marks a running run completed with its result.
func (r *WorkflowRunRepo) Complete(ctx context.Context, id string, result json.RawMessage) (bool, error) {
	now := r.timeProvider.Now().UTC()
	res, err := r.DB.ExecContext(ctx, `
		UPDATE workflow_runs
		SET status = 'completed',
		    result = $2,
		    completed_at = $3,
		    updated_at = $3,
		    lease_expires_at = NULL,
		    last_error = NULL
		WHERE id = $1 AND status = 'running'
	`, id, []byte(result), now)
	if err != nil {
		return false, fmt.Errorf("complete run: %w", err)
	}
	return rowsChanged(res)
}

// Fail records a failed attempt. Retryable failures return the run to pending
// after the retry delay until max_retries is spent; the resulting status is returned.
func (r *WorkflowRunRepo) Fail(ctx context.Context, id string, failure model.RunFailure) (model.RunStatus, error) {
	now := r.timeProvider.Now().UTC()
	retryAt := now.Add(r.retryDelay())

	var status model.RunStatus
	err := r.DB.QueryRowContext(ctx, `
      UPDATE workflow_runs
      SET
        last_error = $2,
        retry_count = retry_count + 1,
        status = CASE WHEN NOT $3 OR retry_count + 1 >= max_retries THEN 'failed' ELSE 'pending' END,
        completed_at = CASE WHEN NOT $3 OR retry_count + 1 >= max_retries THEN $4::timestamptz ELSE NULL END,
        scheduled_at = CASE WHEN NOT $3 OR retry_count + 1 >= max_retries THEN scheduled_at ELSE $5::timestamptz END,
        lease_expires_at = NULL,
        result = COALESCE($6::jsonb, result),
        updated_at = $4
      WHERE id = $1 AND status = 'running'
      RETURNING status
    `, id, failure.Error, failure.Retryable, now, retryAt, cloneJSON(failure.Result)).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("fail run: %w", err)
	}
	return status, nil
}

// MarkCanceled moves a running run to canceled once its worker has stopped.
func (r *WorkflowRunRepo) MarkCanceled(ctx context.Context, id, reason string) (bool, error) {
	now := r.timeProvider.Now().UTC()
	res, err := r.DB.ExecContext(ctx, `
		UPDATE workflow_runs
		SET status = 'canceled',
		    last_error = $2,
		    completed_at = $3,
		    updated_at = $3,
		    lease_expires_at = NULL
		WHERE id = $1 AND status = 'running'
	`, id, reason, now)
	if err != nil {
		return false, fmt.Errorf("cancel run: %w", err)
	}
	return rowsChanged(res)
}

// RequestCancel cancels a pending run immediately or flags a running run for
// its worker to observe on the next heartbeat. It returns the status after the
// request; finished runs are left unchanged.
func (r *WorkflowRunRepo) RequestCancel(ctx context.Context, id string) (model.RunStatus, error) {
	now := r.timeProvider.Now().UTC()
	var status model.RunStatus
	err := r.DB.QueryRowContext(ctx, `
		UPDATE workflow_runs
		SET status = CASE WHEN status = 'pending' THEN 'canceled' ELSE status END,
		    completed_at = CASE WHEN status = 'pending' THEN $2::timestamptz ELSE completed_at END,
		    last_error = CASE WHEN status = 'pending' THEN 'canceled by request' ELSE last_error END,
		    cancel_requested = CASE WHEN status IN ('pending', 'running') THEN true ELSE cancel_requested END,
		    updated_at = $2
		WHERE id = $1
		RETURNING status
	`, id, now).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrRunNotFound
	}
	if err != nil {
		return "", fmt.Errorf("request cancel: %w", err)
	}
	return status, nil
}

// GetByID retrieves a run by id.
func (r *WorkflowRunRepo) GetByID(ctx context.Context, id string) (*model.WorkflowRun, error) {
	var run *model.WorkflowRun
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `SELECT `+runColumns+` FROM workflow_runs WHERE id = $1`, id)
		if err != nil {
			return err
		}
		defer rows.Close()
		run, err = collectOne(rows, scanRun)
		return err
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get workflow run: %w", err)
	}
	return run, nil
}

// Stats returns run counts by status for one workflow type.
func (r *WorkflowRunRepo) Stats(ctx context.Context, wt model.WorkflowType) (*model.RunStats, error) {
	var s model.RunStats
	err := r.DB.QueryRowContext(ctx, `
  SELECT
    count(*) FILTER (WHERE status = 'pending'),
    count(*) FILTER (WHERE status = 'running'),
    count(*) FILTER (WHERE status = 'completed'),
    count(*) FILTER (WHERE status = 'failed'),
    count(*) FILTER (WHERE status = 'canceled')
  FROM workflow_runs
  WHERE workflow_type = $1
  `, wt).Scan(&s.Pending, &s.Running, &s.Completed, &s.Failed, &s.Canceled)
	if err != nil {
		return nil, fmt.Errorf("workflow run stats: %w", err)
	}
	return &s, nil
}

// WaitForNotification blocks until a run of the given type is enqueued or ctx ends.
func (r *WorkflowRunRepo) WaitForNotification(ctx context.Context, wt model.WorkflowType) error {
	conn, err := r.DB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("get conn from pool: %w", err)
	}
	defer func() { _ = conn.Close() }()

	channel := runChannel(wt)
	quoted := pgx.Identifier{channel}.Sanitize()

	if _, err := conn.ExecContext(ctx, "LISTEN "+quoted); err != nil {
		return fmt.Errorf("listen %s: %w", channel, err)
	}
	defer func() {
		if _, err := conn.ExecContext(context.WithoutCancel(ctx), "UNLISTEN "+quoted); err != nil {
			r.logger.DebugContext(ctx, "unlisten failed", "channel", channel, "error", err)
		}
	}()

	return conn.Raw(func(dc any) error {
		sc, ok := dc.(*stdlib.Conn)
		if !ok {
			return errors.New("unexpected driver connection type; expected *stdlib.Conn")
		}
		_, werr := sc.Conn().WaitForNotification(ctx)
		return werr
	})
}

type runRowData struct {
	input, result                          []byte
	lastError                              sql.NullString
	startedAt, completedAt, leaseExpiresAt sql.NullTime
}

func scanRun(s rowScanner) (*model.WorkflowRun, error) {
	run := &model.WorkflowRun{}
	var d runRowData
	if err := s.Scan(
		&run.ID,
		&run.WorkflowType,
		&run.Status,
		&run.Priority,
		&d.input,
		&d.result,
		&run.RetryCount,
		&run.MaxRetries,
		&d.lastError,
		&run.CancelRequested,
		&run.ScheduledAt,
		&run.DeadlineAt,
		&d.startedAt,
		&d.completedAt,
		&d.leaseExpiresAt,
		&run.CreatedAt,
		&run.UpdatedAt,
	); err != nil {
		return nil, err
	}
	run.Input = cloneJSON(d.input)
	run.Result = cloneJSON(d.result)
	run.LastError = cloneNullableString(d.lastError)
	run.StartedAt = cloneNullableTime(d.startedAt)
	run.CompletedAt = cloneNullableTime(d.completedAt)
	run.LeaseExpiresAt = cloneNullableTime(d.leaseExpiresAt)
	run.ScheduledAt = run.ScheduledAt.UTC()
	run.DeadlineAt = run.DeadlineAt.UTC()
	return run, nil
}

func rowsChanged(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}
