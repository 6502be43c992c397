package model

import (
	"encoding/json"
	"errors"
	"time"
)

// ErrNoRunsAvailable is returned when no workflow runs are available for reservation.
var ErrNoRunsAvailable = errors.New("no workflow runs available")

// WorkflowType names a registered workflow definition.
type WorkflowType string

// WorkflowTypeSecurityCheck is the screenplay safety-check workflow.
const WorkflowTypeSecurityCheck WorkflowType = "security_check"

// RunStatus is the queue state of a workflow run.
type RunStatus string

// Run statuses.
const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCanceled  RunStatus = "canceled"
)

// WorkflowRun is one durable workflow execution. Input and Result contain
// only ref keys, identifiers and counts.
type WorkflowRun struct {
	ID              string          `json:"id"`
	WorkflowType    WorkflowType    `json:"workflow_type"`
	Status          RunStatus       `json:"status"`
	Priority        int             `json:"priority"`
	Input           json.RawMessage `json:"input"`
	Result          json.RawMessage `json:"result,omitempty"`
	RetryCount      int             `json:"retry_count"`
	MaxRetries      int             `json:"max_retries"`
	LastError       *string         `json:"last_error,omitempty"`
	CancelRequested bool            `json:"cancel_requested"`
	ScheduledAt     time.Time       `json:"scheduled_at"`
	DeadlineAt      time.Time       `json:"deadline_at"`
	StartedAt       *time.Time      `json:"started_at,omitempty"`
	CompletedAt     *time.Time      `json:"completed_at,omitempty"`
	LeaseExpiresAt  *time.Time      `json:"lease_expires_at,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// CreateRunRequest enqueues a workflow run.
type CreateRunRequest struct {
	ID           string
	WorkflowType WorkflowType
	Priority     int
	Input        json.RawMessage
	MaxRetries   int
	Timeout      time.Duration
}

// Validate validates the CreateRunRequest fields.
func (r *CreateRunRequest) Validate() error {
	if r.ID == "" {
		return errors.New("run id is required")
	}
	if r.WorkflowType == "" {
		return errors.New("workflow type is required")
	}
	if len(r.Input) == 0 {
		return errors.New("input is required")
	}
	if r.MaxRetries < 0 {
		return errors.New("max retries must be >= 0")
	}
	if r.Timeout <= 0 {
		return errors.New("timeout must be positive")
	}
	return nil
}

// HistoryStatus is the outcome of a recorded activity.
type HistoryStatus string

// History statuses.
const (
	HistoryCompleted HistoryStatus = "completed"
	HistoryFailed    HistoryStatus = "failed"
)

// HistoryEvent is one recorded activity outcome in a run's execution log.
type HistoryEvent struct {
	WorkflowID  string          `json:"workflow_id"`
	Seq         int             `json:"seq"`
	Activity    string          `json:"activity"`
	Status      HistoryStatus   `json:"status"`
	Output      json.RawMessage `json:"output,omitempty"`
	Error       *string         `json:"error,omitempty"`
	Attempts    int             `json:"attempts"`
	StartedAt   time.Time       `json:"started_at"`
	CompletedAt time.Time       `json:"completed_at"`
}

// WorkflowResult is the terminal outcome of a safety-check run.
type WorkflowResult struct {
	Status        string `json:"status"`
	ReportID      string `json:"report_id,omitempty"`
	TotalFindings int    `json:"total_findings"`
	Delivered     bool   `json:"delivered"`
	WorkflowID    string `json:"workflow_id"`
	Error         string `json:"error,omitempty"`
}

// Workflow result statuses.
const (
	WorkflowCompleted = "completed"
	WorkflowFailed    = "failed"
)

// LeaseState is returned by a heartbeat. Held is false once the worker no
// longer owns the run (completed elsewhere, requeued, or canceled while pending).
type LeaseState struct {
	Held            bool
	CancelRequested bool
}

// RunStats counts runs of one workflow type by status.
type RunStats struct {
	Pending   int64 `json:"pending"`
	Running   int64 `json:"running"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
	Canceled  int64 `json:"canceled"`
}

// RunFailure describes a failed attempt. Retryable failures go back to
// pending until the retry budget is spent.
type RunFailure struct {
	Error     string
	Retryable bool
	// Result is stored when a workflow failed with a structured outcome.
	Result json.RawMessage
}
