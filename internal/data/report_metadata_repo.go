package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/target/scriptcheck/internal/domain/model"
	apperrors "github.com/target/scriptcheck/internal/errors"
)

// ReportMetadataRepo stores durable report records and enforces one-shot retrieval.
type ReportMetadataRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

// NewReportMetadataRepo creates a ReportMetadataRepo.
func NewReportMetadataRepo(db *sql.DB, tp TimeProvider) *ReportMetadataRepo {
	return &ReportMetadataRepo{DB: db, timeProvider: resolveTimeProvider(tp)}
}

const reportMetadataColumns = `
  report_id,
  job_id,
  project_id,
  user_id,
  script_format,
  is_retrieved,
  retrieved_at,
  total_findings,
  processing_time_seconds,
  report_ref_key,
  delivery_mode,
  extra_metadata,
  created_at
`

// Create records a finished report. Re-recording the same report id is a
// no-op and returns false, so the delivery step can be retried.
func (r *ReportMetadataRepo) Create(ctx context.Context, req *model.CreateReportRequest) (bool, error) {
	if req == nil {
		return false, errors.New("create report request is required")
	}
	if req.ReportID == "" || req.JobID == "" {
		return false, errors.New("report id and job id are required")
	}
	meta, err := marshalMap(req.ExtraMetadata)
	if err != nil {
		return false, err
	}
	var refKey *string
	if req.ReportRefKey != "" {
		refKey = &req.ReportRefKey
	}
	res, err := r.DB.ExecContext(ctx, `
		INSERT INTO report_metadata (report_id, job_id, project_id, user_id, script_format, total_findings,
		                             processing_time_seconds, report_ref_key, delivery_mode, extra_metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (report_id) DO NOTHING
	`, req.ReportID, req.JobID, req.ProjectID, req.UserID, req.ScriptFormat, req.TotalFindings,
		req.ProcessingTimeSeconds, refKey, req.DeliveryMode, meta, r.timeProvider.Now().UTC())
	if err != nil {
		return false, apperrors.MapDBError(err)
	}
	return rowsChanged(res)
}

// ClaimForRetrieval atomically flips is_retrieved for a report owned by
// userID and returns the record including its transient ref key. Exactly one
// caller can succeed per report. Unknown or foreign reports return
// ErrReportNotFound; already claimed ones return ErrReportAlreadyRetrieved.
func (r *ReportMetadataRepo) ClaimForRetrieval(ctx context.Context, reportID, userID string) (*model.ReportMetadata, error) {
	row := r.DB.QueryRowContext(ctx, `
		UPDATE report_metadata
		SET is_retrieved = true,
		    retrieved_at = $3
		WHERE report_id = $1
		  AND user_id = $2
		  AND is_retrieved = false
		RETURNING `+reportMetadataColumns,
		reportID, userID, r.timeProvider.Now().UTC())
	rep, err := scanReportMetadata(row)
	if err == nil {
		return rep, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("claim report: %w", err)
	}

	var retrieved bool
	err = r.DB.QueryRowContext(ctx,
		`SELECT is_retrieved FROM report_metadata WHERE report_id = $1 AND user_id = $2`,
		reportID, userID).Scan(&retrieved)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, ErrReportNotFound
	case err != nil:
		return nil, fmt.Errorf("check report state: %w", err)
	case retrieved:
		return nil, ErrReportAlreadyRetrieved
	default:
		// Lost a race with a concurrent claim between the two statements.
		return nil, ErrReportAlreadyRetrieved
	}
}

// GetByID returns a report record regardless of owner.
func (r *ReportMetadataRepo) GetByID(ctx context.Context, reportID string) (*model.ReportMetadata, error) {
	row := r.DB.QueryRowContext(ctx,
		`SELECT `+reportMetadataColumns+` FROM report_metadata WHERE report_id = $1`, reportID)
	rep, err := scanReportMetadata(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrReportNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get report: %w", err)
	}
	return rep, nil
}

func scanReportMetadata(s rowScanner) (*model.ReportMetadata, error) {
	var (
		rep         model.ReportMetadata
		retrievedAt sql.NullTime
		refKey      sql.NullString
		extra       []byte
	)
	if err := s.Scan(
		&rep.ReportID,
		&rep.JobID,
		&rep.ProjectID,
		&rep.UserID,
		&rep.ScriptFormat,
		&rep.IsRetrieved,
		&retrievedAt,
		&rep.TotalFindings,
		&rep.ProcessingTimeSeconds,
		&refKey,
		&rep.DeliveryMode,
		&extra,
		&rep.CreatedAt,
	); err != nil {
		return nil, err
	}
	md, err := unmarshalMap(extra)
	if err != nil {
		return nil, err
	}
	rep.ExtraMetadata = md
	rep.RetrievedAt = cloneNullableTime(retrievedAt)
	rep.ReportRefKey = cloneNullableString(refKey)
	return &rep, nil
}
