package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/target/scriptcheck/internal/core"
	"github.com/target/scriptcheck/internal/data/pgxutil"
	"github.com/target/scriptcheck/internal/domain/model"
)

// Advisory lock namespace for reaper operations. Major key 1000 is reserved
// for the reaper; each operation takes its own minor key.
const (
	advisoryLockReaperMajor       = 1000
	advisoryLockReaperFailPending = 1
	advisoryLockReaperDelete      = 2
	advisoryLockReaperOverdue     = 3
)

// failRunsSQL fails the selected runs and mirrors the failure onto the job
// record in one statement so status polling sees it.
const failRunsSQL = `
	WITH failed AS (
		UPDATE workflow_runs
		SET status = 'failed',
		    last_error = $1,
		    completed_at = $2,
		    updated_at = $2,
		    lease_expires_at = NULL
		WHERE id IN (%s)
		RETURNING id
	), jobs AS (
		UPDATE job_metadata
		SET status = 'failed',
		    error_message = $1,
		    updated_at = $2
		WHERE job_id IN (SELECT id FROM failed)
		  AND status IN ('pending', 'running')
	)
	SELECT count(*) FROM failed`

// FailStalePendingRuns fails runs that stayed pending longer than maxAge.
// Processes up to batchSize runs per call.
func (r *WorkflowRunRepo) FailStalePendingRuns(ctx context.Context, maxAge time.Duration, batchSize int) (int64, error) {
	if batchSize <= 0 {
		return 0, errors.New("batch size must be greater than zero")
	}
	now := r.timeProvider.Now().UTC()
	selectIDs := `
		SELECT id FROM workflow_runs
		WHERE status = 'pending' AND created_at < $3
		ORDER BY created_at
		LIMIT $4`
	return r.failRuns(ctx, advisoryLockReaperFailPending, fmt.Sprintf(failRunsSQL, selectIDs),
		"Workflow timed out in pending status", now, now.Add(-maxAge), batchSize)
}

// FailOverdueRuns fails runs past their overall deadline that no worker holds.
func (r *WorkflowRunRepo) FailOverdueRuns(ctx context.Context, batchSize int) (int64, error) {
	if batchSize <= 0 {
		return 0, errors.New("batch size must be greater than zero")
	}
	now := r.timeProvider.Now().UTC()
	selectIDs := `
		SELECT id FROM workflow_runs
		WHERE deadline_at < $3
		  AND (status = 'pending'
		       OR (status = 'running' AND (lease_expires_at IS NULL OR lease_expires_at < $3)))
		ORDER BY deadline_at
		LIMIT $4`
	return r.failRuns(ctx, advisoryLockReaperOverdue, fmt.Sprintf(failRunsSQL, selectIDs),
		"Workflow exceeded its deadline", now, now, batchSize)
}

func (r *WorkflowRunRepo) failRuns(ctx context.Context, minor int64, query, reason string, args ...any) (int64, error) {
	var n int64
	key := pgxutil.LockKey{Major: advisoryLockReaperMajor, Minor: minor}
	_, err := pgxutil.WithAdvisoryXactLock(ctx, r.DB, key, func(tx *sql.Tx) error {
		full := append([]any{reason}, args...)
		if err := tx.QueryRowContext(ctx, query, full...).Scan(&n); err != nil {
			return fmt.Errorf("fail runs: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

// DeleteOldRuns purges finished runs (and their history, by cascade) older than MaxAge.
func (r *WorkflowRunRepo) DeleteOldRuns(ctx context.Context, params core.DeleteOldRunsParams) (int64, error) {
	switch params.Status {
	case model.RunStatusCompleted, model.RunStatusFailed, model.RunStatusCanceled:
	default:
		return 0, fmt.Errorf("invalid run status for deletion: %s", params.Status)
	}
	if params.BatchSize <= 0 {
		return 0, errors.New("batch size must be greater than zero")
	}

	var n int64
	key := pgxutil.LockKey{Major: advisoryLockReaperMajor, Minor: advisoryLockReaperDelete}
	_, err := pgxutil.WithAdvisoryXactLock(ctx, r.DB, key, func(tx *sql.Tx) error {
		cutoff := r.timeProvider.Now().Add(-params.MaxAge).UTC()
		var err error
		n, err = pgxutil.ExecCount(ctx, tx, `
			DELETE FROM workflow_runs
			WHERE id IN (
				SELECT id FROM workflow_runs
				WHERE status = $1
				  AND COALESCE(completed_at, updated_at) < $2
				ORDER BY COALESCE(completed_at, updated_at)
				LIMIT $3
			)
		`, params.Status, cutoff, params.BatchSize)
		if err != nil {
			return fmt.Errorf("delete old runs: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}
