package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/target/scriptcheck/internal/core"
	"github.com/target/scriptcheck/internal/data"
	"github.com/target/scriptcheck/internal/domain/model"
	apperrors "github.com/target/scriptcheck/internal/errors"
	"github.com/target/scriptcheck/internal/observability/metrics"
	"github.com/target/scriptcheck/internal/service/parser"
	"github.com/target/scriptcheck/internal/service/securitycheck"
)

// EstimatedCompletionSeconds is the completion hint returned on submission.
const EstimatedCompletionSeconds = 120

// StatusPath returns the status endpoint of a job.
func StatusPath(jobID string) string { return "/v1/security/jobs/" + jobID }

// SubmissionServiceOptions groups dependencies for SubmissionService.
type SubmissionServiceOptions struct {
	Jobs   core.JobMetadataRepository   // Required: idempotency lookups
	JobsTx core.JobMetadataRepositoryTx // Required: job insert inside the enqueue transaction
	RunsTx core.WorkflowRunRepositoryTx // Required: run enqueue
	Tx     core.TxRunner                // Required
	Store  core.TransientStore          // Required: raw script buffer

	DefaultDelivery model.DeliveryMode
	RawTTL          time.Duration // zero uses the store default
	WorkflowTimeout time.Duration
	MaxRunRetries   int

	Logger *slog.Logger
	Now    func() time.Time
	NewID  func() string
}

// SubmissionService accepts safety-check requests and enqueues their workflow.
type SubmissionService struct {
	jobs   core.JobMetadataRepository
	jobsTx core.JobMetadataRepositoryTx
	runsTx core.WorkflowRunRepositoryTx
	tx     core.TxRunner
	store  core.TransientStore

	defaultDelivery model.DeliveryMode
	rawTTL          time.Duration
	timeout         time.Duration
	maxRetries      int

	logger *slog.Logger
	now    func() time.Time
	newID  func() string
}

// NewSubmissionService constructs a new SubmissionService.
func NewSubmissionService(opts SubmissionServiceOptions) (*SubmissionService, error) {
	if opts.Jobs == nil || opts.JobsTx == nil {
		return nil, errors.New("JobMetadataRepository is required")
	}
	if opts.RunsTx == nil {
		return nil, errors.New("WorkflowRunRepositoryTx is required")
	}
	if opts.Tx == nil {
		return nil, errors.New("TxRunner is required")
	}
	if opts.Store == nil {
		return nil, errors.New("TransientStore is required")
	}
	s := &SubmissionService{
		jobs:            opts.Jobs,
		jobsTx:          opts.JobsTx,
		runsTx:          opts.RunsTx,
		tx:              opts.Tx,
		store:           opts.Store,
		defaultDelivery: opts.DefaultDelivery,
		rawTTL:          opts.RawTTL,
		timeout:         opts.WorkflowTimeout,
		maxRetries:      opts.MaxRunRetries,
		logger:          opts.Logger,
		now:             opts.Now,
		newID:           opts.NewID,
	}
	if !s.defaultDelivery.Valid() {
		s.defaultDelivery = model.DeliveryPull
	}
	if s.timeout <= 0 {
		s.timeout = time.Hour
	}
	if s.maxRetries < 1 {
		s.maxRetries = 3
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.logger = s.logger.With("component", "submission_service")
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = func() string { return uuid.NewString() }
	}
	return s, nil
}

// SubmitRequest is one decoded check request.
type SubmitRequest struct {
	UserID         string
	ProjectID      string
	Format         model.ScriptFormat
	Content        []byte
	Priority       int // zero means model.DefaultPriority
	DeliveryMode   model.DeliveryMode
	IdempotencyKey *string
	Metadata       map[string]any
}

func (s *SubmissionService) normalize(req *SubmitRequest) error {
	if strings.TrimSpace(req.UserID) == "" {
		return apperrors.Unauthorized("Missing user identity")
	}
	if len(req.Content) == 0 {
		return apperrors.ValidationField("script_content", "script_content must not be empty")
	}
	if len(req.Content) > parser.MaxInputBytes {
		return apperrors.ValidationField("script_content",
			fmt.Sprintf("script exceeds maximum size of %d bytes", parser.MaxInputBytes))
	}
	if req.ProjectID == "" {
		req.ProjectID = "unknown"
	}
	if req.Priority == 0 {
		req.Priority = model.DefaultPriority
	}
	if req.DeliveryMode == "" {
		req.DeliveryMode = s.defaultDelivery
	}
	if req.IdempotencyKey != nil && strings.TrimSpace(*req.IdempotencyKey) == "" {
		req.IdempotencyKey = nil
	}
	return nil
}

// Submit validates req, buffers the script and enqueues the workflow. A
// repeated idempotency key returns the job created by the first request.
func (s *SubmissionService) Submit(ctx context.Context, req SubmitRequest) (*model.SubmitResponse, error) {
	if err := s.normalize(&req); err != nil {
		return nil, err
	}

	if req.IdempotencyKey != nil {
		existing, err := s.lookupExisting(ctx, req)
		if err != nil || existing != nil {
			return existing, err
		}
	}

	jobID, reportID := s.newID(), s.newID()
	jobReq := &model.CreateJobRequest{
		JobID:          jobID,
		ProjectID:      req.ProjectID,
		ScriptFormat:   req.Format,
		UserID:         req.UserID,
		Priority:       req.Priority,
		IdempotencyKey: req.IdempotencyKey,
		DeliveryMode:   req.DeliveryMode,
		ExtraMetadata:  req.Metadata,
	}
	if err := jobReq.Validate(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeValidation, err.Error())
	}

	raw := model.RawScript{Content: req.Content}
	var refKey string
	var err error
	if s.rawTTL > 0 {
		refKey, err = s.store.StoreWithTTL(ctx, raw, s.rawTTL)
	} else {
		refKey, err = s.store.Store(ctx, raw)
	}
	if err != nil {
		return nil, fmt.Errorf("buffer script: %w", err)
	}

	input, err := json.Marshal(securitycheck.Input{
		RefKey:       refKey,
		Format:       req.Format,
		ProjectID:    req.ProjectID,
		JobID:        jobID,
		ReportID:     reportID,
		UserID:       req.UserID,
		Priority:     req.Priority,
		DeliveryMode: req.DeliveryMode,
		Metadata:     req.Metadata,
		SubmittedAt:  s.now().UTC(),
	})
	if err != nil {
		s.discard(ctx, refKey)
		return nil, fmt.Errorf("encode workflow input: %w", err)
	}

	err = s.tx.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := s.jobsTx.CreateInTx(ctx, tx, jobReq); err != nil {
			return err
		}
		_, err := s.runsTx.CreateInTx(ctx, tx, &model.CreateRunRequest{
			ID:           jobID,
			WorkflowType: model.WorkflowTypeSecurityCheck,
			Priority:     req.Priority,
			Input:        input,
			MaxRetries:   s.maxRetries,
			Timeout:      s.timeout,
		})
		return err
	})
	if err != nil {
		s.discard(ctx, refKey)
		if req.IdempotencyKey != nil && apperrors.IsUniqueViolation(err, data.IdempotencyConstraint) {
			// A concurrent request with the same key won the insert.
			existing, lookupErr := s.lookupExisting(ctx, req)
			if lookupErr != nil {
				return nil, lookupErr
			}
			if existing != nil {
				return existing, nil
			}
		}
		return nil, fmt.Errorf("enqueue job: %w", err)
	}

	metrics.EmitSubmission(string(req.Format), false)
	s.logger.InfoContext(ctx, "security check submitted",
		"job_id", jobID,
		"report_id", reportID,
		"format", req.Format,
		"priority", req.Priority,
		"delivery_mode", req.DeliveryMode,
		"bytes", len(req.Content),
	)
	return &model.SubmitResponse{
		JobID:                      jobID,
		Status:                     model.JobStatusPending,
		Message:                    fmt.Sprintf("Security check job started (delivery=%s)", req.DeliveryMode),
		StatusURL:                  StatusPath(jobID),
		EstimatedCompletionSeconds: EstimatedCompletionSeconds,
	}, nil
}

// lookupExisting returns the job owning req's idempotency key, or nil.
func (s *SubmissionService) lookupExisting(ctx context.Context, req SubmitRequest) (*model.SubmitResponse, error) {
	job, err := s.jobs.GetByIdempotencyKey(ctx, *req.IdempotencyKey)
	if errors.Is(err, data.ErrJobNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("idempotency lookup: %w", err)
	}
	if job.UserID != req.UserID {
		return nil, apperrors.ValidationField("idempotency_key", "idempotency_key is already in use")
	}
	metrics.EmitSubmission(string(job.ScriptFormat), true)
	s.logger.InfoContext(ctx, "idempotent submission replayed", "job_id", job.JobID)
	return &model.SubmitResponse{
		JobID:                      job.JobID,
		Status:                     job.Status,
		Message:                    "Existing job returned (idempotency key matched)",
		StatusURL:                  StatusPath(job.JobID),
		EstimatedCompletionSeconds: EstimatedCompletionSeconds,
		Existing:                   true,
	}, nil
}

func (s *SubmissionService) discard(ctx context.Context, refKey string) {
	if _, err := s.store.Delete(context.WithoutCancel(ctx), refKey); err != nil {
		s.logger.WarnContext(ctx, "failed to discard buffered script", "error", err)
	}
}
