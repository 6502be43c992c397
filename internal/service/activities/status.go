package activities

import (
	"context"

	"github.com/target/scriptcheck/internal/domain/model"
)

// StatusInput is a job status transition requested by the workflow.
type StatusInput struct {
	JobID        string          `json:"job_id"`
	Status       model.JobStatus `json:"status"`
	Progress     *int            `json:"progress_percentage,omitempty"`
	ErrorMessage *string         `json:"error_message,omitempty"`
}

// StatusOutput reports whether the job record changed.
type StatusOutput struct {
	Updated bool `json:"updated"`
}

// UpdateStatus writes a job status transition. Repository errors are retried
// while attempts remain and then dropped.
func (a *Activities) UpdateStatus(ctx context.Context, in StatusInput) (StatusOutput, error) {
	updated, err := a.jobs.UpdateStatus(ctx, in.JobID, model.JobStatusUpdate{
		Status:             in.Status,
		ProgressPercentage: in.Progress,
		ErrorMessage:       in.ErrorMessage,
	})
	if err != nil {
		if retryable(ctx, err) {
			return StatusOutput{}, err
		}
		a.logger.WarnContext(ctx, "job status update dropped",
			"job_id", in.JobID, "status", in.Status, "error", err)
		return StatusOutput{}, nil
	}
	return StatusOutput{Updated: updated}, nil
}
