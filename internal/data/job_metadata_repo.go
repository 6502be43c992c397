package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/target/scriptcheck/internal/domain/model"
	apperrors "github.com/target/scriptcheck/internal/errors"
)

// IdempotencyConstraint is the unique constraint guarding submissions.
const IdempotencyConstraint = "job_metadata_idempotency_key_key"

// JobMetadataRepo stores the durable audit record of each job.
type JobMetadataRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
	logger       *slog.Logger
}

// JobMetadataRepoConfig configures JobMetadataRepo.
type JobMetadataRepoConfig struct {
	Logger       *slog.Logger
	TimeProvider TimeProvider
}

// NewJobMetadataRepo creates a JobMetadataRepo.
func NewJobMetadataRepo(db *sql.DB, cfg JobMetadataRepoConfig) *JobMetadataRepo {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &JobMetadataRepo{
		DB:           db,
		timeProvider: resolveTimeProvider(cfg.TimeProvider),
		logger:       logger.With("component", "job_metadata_repo"),
	}
}

const jobMetadataColumns = `
  job_id,
  project_id,
  script_format,
  status,
  user_id,
  priority,
  progress_percentage,
  report_id,
  error_message,
  workflow_id,
  idempotency_key,
  delivery_mode,
  extra_metadata,
  created_at,
  updated_at
`

type execQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Create inserts a pending job record. A duplicate idempotency key surfaces as
// a Conflict AppError on the idempotency_key field.
func (r *JobMetadataRepo) Create(ctx context.Context, req *model.CreateJobRequest) (*model.JobMetadata, error) {
	return r.create(ctx, r.DB, req)
}

// CreateInTx inserts a job record within an existing transaction.
func (r *JobMetadataRepo) CreateInTx(ctx context.Context, tx *sql.Tx, req *model.CreateJobRequest) (*model.JobMetadata, error) {
	if tx == nil {
		return nil, errors.New("transaction is required")
	}
	return r.create(ctx, tx, req)
}

func (r *JobMetadataRepo) create(ctx context.Context, q execQuerier, req *model.CreateJobRequest) (*model.JobMetadata, error) {
	if req == nil {
		return nil, errors.New("create job request is required")
	}
	if err := req.Validate(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeValidation, err.Error())
	}
	meta, err := marshalMap(req.ExtraMetadata)
	if err != nil {
		return nil, err
	}
	now := r.timeProvider.Now().UTC()

	row := q.QueryRowContext(ctx, `
		INSERT INTO job_metadata (job_id, project_id, script_format, status, user_id, priority,
		                          workflow_id, idempotency_key, delivery_mode, extra_metadata, created_at, updated_at)
		VALUES ($1, $2, $3, 'pending', $4, $5, $1, $6, $7, $8, $9, $9)
		RETURNING `+jobMetadataColumns,
		req.JobID, req.ProjectID, req.ScriptFormat, req.UserID, req.Priority,
		req.IdempotencyKey, req.DeliveryMode, meta, now)
	job, err := scanJobMetadata(row)
	if err != nil {
		return nil, apperrors.MapDBError(err)
	}
	return job, nil
}

// GetByID returns a job regardless of owner. Internal callers only.
func (r *JobMetadataRepo) GetByID(ctx context.Context, id string) (*model.JobMetadata, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+jobMetadataColumns+` FROM job_metadata WHERE job_id = $1`, id)
	return r.oneOrNotFound(row)
}

// GetForUser returns a job only when owned by userID.
func (r *JobMetadataRepo) GetForUser(ctx context.Context, id, userID string) (*model.JobMetadata, error) {
	row := r.DB.QueryRowContext(ctx,
		`SELECT `+jobMetadataColumns+` FROM job_metadata WHERE job_id = $1 AND user_id = $2`, id, userID)
	return r.oneOrNotFound(row)
}

// GetByIdempotencyKey returns the job previously created with key.
func (r *JobMetadataRepo) GetByIdempotencyKey(ctx context.Context, key string) (*model.JobMetadata, error) {
	row := r.DB.QueryRowContext(ctx,
		`SELECT `+jobMetadataColumns+` FROM job_metadata WHERE idempotency_key = $1`, key)
	return r.oneOrNotFound(row)
}

func (r *JobMetadataRepo) oneOrNotFound(row *sql.Row) (*model.JobMetadata, error) {
	job, err := scanJobMetadata(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job metadata: %w", err)
	}
	return job, nil
}

// ListForUser lists a user's jobs newest first.
func (r *JobMetadataRepo) ListForUser(ctx context.Context, f model.JobListFilter) ([]*model.JobMetadata, error) {
	if f.UserID == "" {
		return nil, errors.New("user id is required")
	}
	limit := f.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var project, status *string
	if f.ProjectID != "" {
		project = &f.ProjectID
	}
	if f.Status != "" {
		s := string(f.Status)
		status = &s
	}

	rows, err := r.DB.QueryContext(ctx, `
		SELECT `+jobMetadataColumns+`
		FROM job_metadata
		WHERE user_id = $1
		  AND ($2::text IS NULL OR project_id = $2)
		  AND ($3::text IS NULL OR status = $3)
		ORDER BY created_at DESC, job_id
		LIMIT $4 OFFSET $5
	`, f.UserID, project, status, limit, max(f.Offset, 0))
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var out []*model.JobMetadata
	for rows.Next() {
		job, err := scanJobMetadata(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		out = append(out, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate jobs: %w", err)
	}
	return out, nil
}

// UpdateStatus applies a status transition. Terminal jobs are never changed;
// the return value is false in that case or when the job does not exist.
func (r *JobMetadataRepo) UpdateStatus(ctx context.Context, id string, upd model.JobStatusUpdate) (bool, error) {
	if !upd.Status.Valid() {
		return false, fmt.Errorf("invalid job status: %s", upd.Status)
	}
	res, err := r.DB.ExecContext(ctx, `
		UPDATE job_metadata
		SET status = $2,
		    progress_percentage = COALESCE($3, progress_percentage),
		    report_id = COALESCE($4, report_id),
		    error_message = COALESCE($5, error_message),
		    updated_at = $6
		WHERE job_id = $1
		  AND status NOT IN ('completed', 'failed', 'cancelled')
	`, id, upd.Status, upd.ProgressPercentage, upd.ReportID, upd.ErrorMessage, r.timeProvider.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("update job status: %w", err)
	}
	changed, err := rowsChanged(res)
	if err == nil && !changed {
		r.logger.DebugContext(ctx, "job status update skipped", "job_id", id, "status", upd.Status)
	}
	return changed, err
}

func scanJobMetadata(s rowScanner) (*model.JobMetadata, error) {
	var (
		job                                          model.JobMetadata
		progress                                     sql.NullInt64
		reportID, errMsg, workflowID, idempotencyKey sql.NullString
		extra                                        []byte
	)
	if err := s.Scan(
		&job.JobID,
		&job.ProjectID,
		&job.ScriptFormat,
		&job.Status,
		&job.UserID,
		&job.Priority,
		&progress,
		&reportID,
		&errMsg,
		&workflowID,
		&idempotencyKey,
		&job.DeliveryMode,
		&extra,
		&job.CreatedAt,
		&job.UpdatedAt,
	); err != nil {
		return nil, err
	}
	md, err := unmarshalMap(extra)
	if err != nil {
		return nil, err
	}
	job.ExtraMetadata = md
	job.ProgressPercentage = cloneNullableInt(progress)
	job.ReportID = cloneNullableString(reportID)
	job.ErrorMessage = cloneNullableString(errMsg)
	job.WorkflowID = cloneNullableString(workflowID)
	job.IdempotencyKey = cloneNullableString(idempotencyKey)
	return &job, nil
}
