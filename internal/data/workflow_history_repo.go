package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/target/scriptcheck/internal/domain/model"
)

// WorkflowHistoryRepo persists the per-run activity log used for replay.
type WorkflowHistoryRepo struct {
	DB *sql.DB
}

// NewWorkflowHistoryRepo creates a WorkflowHistoryRepo.
func NewWorkflowHistoryRepo(db *sql.DB) *WorkflowHistoryRepo {
	return &WorkflowHistoryRepo{DB: db}
}

// Append records an activity outcome. It returns false when an event with the
// same sequence number already exists, which happens when two workers raced
// after a lease expiry; the first record wins.
func (r *WorkflowHistoryRepo) Append(ctx context.Context, ev *model.HistoryEvent) (bool, error) {
	if ev == nil {
		return false, errors.New("history event is required")
	}
	if ev.WorkflowID == "" || ev.Activity == "" {
		return false, errors.New("workflow id and activity are required")
	}
	var output []byte
	if len(ev.Output) > 0 {
		output = ev.Output
	}
	res, err := r.DB.ExecContext(ctx, `
		INSERT INTO workflow_history (workflow_id, seq, activity, status, output, error, attempts, started_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (workflow_id, seq) DO NOTHING
	`, ev.WorkflowID, ev.Seq, ev.Activity, ev.Status, output, ev.Error, ev.Attempts,
		ev.StartedAt.UTC(), ev.CompletedAt.UTC())
	if err != nil {
		return false, fmt.Errorf("append history: %w", err)
	}
	return rowsChanged(res)
}

// List returns a run's history in sequence order.
func (r *WorkflowHistoryRepo) List(ctx context.Context, workflowID string) ([]model.HistoryEvent, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT workflow_id, seq, activity, status, output, error, attempts, started_at, completed_at
		FROM workflow_history
		WHERE workflow_id = $1
		ORDER BY seq ASC
	`, workflowID)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	var out []model.HistoryEvent
	for rows.Next() {
		var (
			ev     model.HistoryEvent
			output []byte
			errMsg sql.NullString
		)
		if err := rows.Scan(&ev.WorkflowID, &ev.Seq, &ev.Activity, &ev.Status, &output, &errMsg,
			&ev.Attempts, &ev.StartedAt, &ev.CompletedAt); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		ev.Output = cloneJSON(output)
		ev.Error = cloneNullableString(errMsg)
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return out, nil
}
