package model

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// JobStatus represents the current status of a safety-check job.
type JobStatus string

const (
	// JobStatusPending indicates a job is waiting for a worker.
	JobStatusPending JobStatus = "pending"
	// JobStatusRunning indicates the workflow is executing.
	JobStatusRunning JobStatus = "running"
	// JobStatusCompleted indicates a report was produced and delivered.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates the workflow terminated with an error.
	JobStatusFailed JobStatus = "failed"
	// JobStatusCancelled indicates the job was cancelled on request.
	JobStatusCancelled JobStatus = "cancelled"
)

// Valid returns true if the JobStatus is valid.
func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusPending, JobStatusRunning, JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transitions are expected.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// DeliveryMode decides how a finished report reaches the consumer.
//
//nolint:recvcheck // UnmarshalText needs pointer receiver, Valid needs value receiver
type DeliveryMode string

const (
	// DeliveryPull keeps the report for one-shot retrieval.
	DeliveryPull DeliveryMode = "pull"
	// DeliveryPush POSTs the report to the configured external system.
	DeliveryPush DeliveryMode = "push"
)

// Valid returns true if the DeliveryMode is known.
func (m DeliveryMode) Valid() bool { return m == DeliveryPull || m == DeliveryPush }

// UnmarshalText implements encoding.TextUnmarshaler for DeliveryMode.
func (m *DeliveryMode) UnmarshalText(text []byte) error {
	v := DeliveryMode(strings.ToLower(strings.TrimSpace(string(text))))
	if !v.Valid() {
		return fmt.Errorf("invalid delivery mode: %q (valid options: pull, push)", string(text))
	}
	*m = v
	return nil
}

// Progress milestones reported while a job runs.
const (
	ProgressParsed    = 10
	ProgressStructure = 40
	ProgressAnalyzed  = 80
	ProgressDelivered = 100
)

// Priority bounds; 1 is the most urgent.
const (
	MinPriority     = 1
	MaxPriority     = 10
	DefaultPriority = 5
)

// JobMetadata is the durable audit record of a job.
type JobMetadata struct {
	JobID              string         `json:"job_id"`
	ProjectID          string         `json:"project_id"`
	ScriptFormat       ScriptFormat   `json:"script_format"`
	Status             JobStatus      `json:"status"`
	UserID             string         `json:"user_id"`
	Priority           int            `json:"priority"`
	ProgressPercentage *int           `json:"progress_percentage,omitempty"`
	ReportID           *string        `json:"report_id,omitempty"`
	ErrorMessage       *string        `json:"error_message,omitempty"`
	WorkflowID         *string        `json:"workflow_id,omitempty"`
	IdempotencyKey     *string        `json:"idempotency_key,omitempty"`
	DeliveryMode       DeliveryMode   `json:"delivery_mode"`
	ExtraMetadata      map[string]any `json:"metadata"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
}

// CreateJobRequest is the durable part of a submission.
type CreateJobRequest struct {
	JobID          string
	ProjectID      string
	ScriptFormat   ScriptFormat
	UserID         string
	Priority       int
	IdempotencyKey *string
	DeliveryMode   DeliveryMode
	ExtraMetadata  map[string]any
}

// JobStatusUpdate describes a status transition written by the workflow.
type JobStatusUpdate struct {
	Status             JobStatus
	ProgressPercentage *int
	ReportID           *string
	ErrorMessage       *string
}

var (
	projectIDPattern   = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,100}$`)
	metadataKeyPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,50}$`)
)

const (
	maxMetadataFields   = 50
	maxMetadataValueLen = 1000
	maxIdempotencyKey   = 255
)

// ValidateProjectID checks the project identifier alphabet and length.
func ValidateProjectID(id string) error {
	if !projectIDPattern.MatchString(id) {
		return errors.New("project_id must contain only alphanumeric characters, hyphens, and underscores (max 100 chars)")
	}
	return nil
}

// ValidateMetadata bounds caller-supplied audit metadata to flat scalar values.
func ValidateMetadata(md map[string]any) error {
	if len(md) > maxMetadataFields {
		return fmt.Errorf("too many metadata fields (max %d)", maxMetadataFields)
	}
	for k, v := range md {
		if !metadataKeyPattern.MatchString(k) {
			return fmt.Errorf("invalid metadata key format: %s", k)
		}
		switch val := v.(type) {
		case nil, bool, float64, int, int64:
		case string:
			if len(val) > maxMetadataValueLen {
				return fmt.Errorf("metadata value too long for key %q (max %d chars)", k, maxMetadataValueLen)
			}
		default:
			return fmt.Errorf("invalid metadata value type for key %q (allowed: string, number, boolean, null)", k)
		}
	}
	return nil
}

// Validate validates the CreateJobRequest fields.
func (r *CreateJobRequest) Validate() error {
	if r.JobID == "" {
		return errors.New("job_id is required")
	}
	if err := ValidateProjectID(r.ProjectID); err != nil {
		return err
	}
	if !r.ScriptFormat.Valid() {
		return errors.New("invalid script format")
	}
	if r.UserID == "" {
		return errors.New("user_id is required")
	}
	if r.Priority < MinPriority || r.Priority > MaxPriority {
		return fmt.Errorf("priority must be between %d and %d", MinPriority, MaxPriority)
	}
	if !r.DeliveryMode.Valid() {
		return errors.New("invalid delivery mode")
	}
	if r.IdempotencyKey != nil && (*r.IdempotencyKey == "" || len(*r.IdempotencyKey) > maxIdempotencyKey) {
		return fmt.Errorf("idempotency_key must be 1-%d characters", maxIdempotencyKey)
	}
	return ValidateMetadata(r.ExtraMetadata)
}

// JobStatusResponse is the public view of a job.
type JobStatusResponse struct {
	JobID              string         `json:"job_id"`
	Status             JobStatus      `json:"status"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
	ProgressPercentage *int           `json:"progress_percentage"`
	ReportID           *string        `json:"report_id"`
	ErrorMessage       *string        `json:"error_message"`
	Metadata           map[string]any `json:"metadata"`
}

// StatusResponse projects JobMetadata onto the public view.
func (j *JobMetadata) StatusResponse() JobStatusResponse {
	return JobStatusResponse{
		JobID:              j.JobID,
		Status:             j.Status,
		CreatedAt:          j.CreatedAt,
		UpdatedAt:          j.UpdatedAt,
		ProgressPercentage: j.ProgressPercentage,
		ReportID:           j.ReportID,
		ErrorMessage:       j.ErrorMessage,
		Metadata:           map[string]any{"delivery_mode": j.DeliveryMode},
	}
}

// SubmitResponse acknowledges an accepted submission.
type SubmitResponse struct {
	JobID                      string    `json:"job_id"`
	Status                     JobStatus `json:"status"`
	Message                    string    `json:"message"`
	StatusURL                  string    `json:"status_url"`
	EstimatedCompletionSeconds int       `json:"estimated_completion_seconds"`
	Existing                   bool      `json:"-"`
}

// JobListFilter narrows a user's job listing.
type JobListFilter struct {
	UserID    string
	ProjectID string
	Status    JobStatus
	Limit     int
	Offset    int
}
