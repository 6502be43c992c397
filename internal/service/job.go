package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/target/scriptcheck/internal/core"
	"github.com/target/scriptcheck/internal/data"
	"github.com/target/scriptcheck/internal/domain/model"
	apperrors "github.com/target/scriptcheck/internal/errors"
)

// CancelledByRequest is recorded on jobs cancelled before a worker picked them up.
const CancelledByRequest = "workflow canceled"

// JobServiceOptions groups dependencies for JobService.
type JobServiceOptions struct {
	Jobs   core.JobMetadataRepository // Required: job audit records
	Runs   core.WorkflowRunRepository // Required: cancellation
	Logger *slog.Logger               // Optional: structured logger
}

// JobService exposes job status, listing and cancellation to the owning user.
type JobService struct {
	jobs   core.JobMetadataRepository
	runs   core.WorkflowRunRepository
	logger *slog.Logger
}

// NewJobService constructs a new JobService.
func NewJobService(opts JobServiceOptions) (*JobService, error) {
	if opts.Jobs == nil {
		return nil, errors.New("JobMetadataRepository is required")
	}
	if opts.Runs == nil {
		return nil, errors.New("WorkflowRunRepository is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &JobService{
		jobs:   opts.Jobs,
		runs:   opts.Runs,
		logger: logger.With("component", "job_service"),
	}, nil
}

// MustNewJobService constructs a JobService and panics on error.
func MustNewJobService(opts JobServiceOptions) *JobService {
	svc, err := NewJobService(opts)
	if err != nil {
		panic(err)
	}
	return svc
}

func (s *JobService) get(ctx context.Context, jobID, userID string) (*model.JobMetadata, error) {
	job, err := s.jobs.GetForUser(ctx, jobID, userID)
	if errors.Is(err, data.ErrJobNotFound) {
		return nil, apperrors.NotFound("Job not found or access denied")
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// Status returns the public view of a job owned by userID.
func (s *JobService) Status(ctx context.Context, jobID, userID string) (*model.JobStatusResponse, error) {
	job, err := s.get(ctx, jobID, userID)
	if err != nil {
		return nil, err
	}
	resp := job.StatusResponse()
	return &resp, nil
}

// List returns a page of the caller's jobs, newest first.
func (s *JobService) List(ctx context.Context, f model.JobListFilter) ([]model.JobStatusResponse, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, apperrors.ValidationField("status", fmt.Sprintf("unknown job status %q", f.Status))
	}
	jobs, err := s.jobs.ListForUser(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	out := make([]model.JobStatusResponse, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, j.StatusResponse())
	}
	return out, nil
}

// Cancel stops a job. A pending job is cancelled immediately; a running one
// is flagged and stops at its next heartbeat.
func (s *JobService) Cancel(ctx context.Context, jobID, userID string) (*model.JobStatusResponse, error) {
	job, err := s.get(ctx, jobID, userID)
	if err != nil {
		return nil, err
	}
	if job.Status.Terminal() {
		return nil, apperrors.Conflictf("job is already %s", job.Status)
	}

	status, err := s.runs.RequestCancel(ctx, jobID)
	switch {
	case errors.Is(err, data.ErrRunNotFound):
		// The job has no run left to stop; close the record directly.
		status = model.RunStatusCanceled
	case err != nil:
		return nil, fmt.Errorf("request cancel: %w", err)
	}

	if status == model.RunStatusCanceled {
		msg := CancelledByRequest
		if _, err := s.jobs.UpdateStatus(ctx, jobID, model.JobStatusUpdate{
			Status:       model.JobStatusCancelled,
			ErrorMessage: &msg,
		}); err != nil {
			return nil, fmt.Errorf("mark job cancelled: %w", err)
		}
	}
	s.logger.InfoContext(ctx, "job cancellation requested", "job_id", jobID, "run_status", status)

	return s.Status(ctx, jobID, userID)
}
