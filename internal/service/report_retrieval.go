package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/target/scriptcheck/internal/core"
	"github.com/target/scriptcheck/internal/data"
	"github.com/target/scriptcheck/internal/data/securebuf"
	"github.com/target/scriptcheck/internal/domain/model"
	apperrors "github.com/target/scriptcheck/internal/errors"
	"github.com/target/scriptcheck/internal/observability/metrics"
	"github.com/target/scriptcheck/internal/service/report"
)

// Retrieval messages returned alongside the report.
const (
	RetrievedMessage = "Report retrieved successfully. URL is now invalidated."
	ExpiredMessage   = "Report expired from buffer. URL is now invalidated."
)

// ReportServiceOptions groups dependencies for ReportService.
type ReportServiceOptions struct {
	Reports core.ReportMetadataRepository // Required
	Store   core.TransientStore           // Required
	Logger  *slog.Logger
	Now     func() time.Time
}

// ReportService hands out finished reports exactly once.
type ReportService struct {
	reports core.ReportMetadataRepository
	store   core.TransientStore
	logger  *slog.Logger
	now     func() time.Time
}

// NewReportService constructs a new ReportService.
func NewReportService(opts ReportServiceOptions) (*ReportService, error) {
	if opts.Reports == nil {
		return nil, errors.New("ReportMetadataRepository is required")
	}
	if opts.Store == nil {
		return nil, errors.New("TransientStore is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &ReportService{
		reports: opts.Reports,
		store:   opts.Store,
		logger:  logger.With("component", "report_service"),
		now:     now,
	}, nil
}

// Retrieve claims a report for userID and returns its package. The claim is
// atomic; every later call for the same report fails with Gone.
func (s *ReportService) Retrieve(ctx context.Context, reportID, userID string) (*model.ReportResponse, error) {
	meta, err := s.reports.ClaimForRetrieval(ctx, reportID, userID)
	switch {
	case errors.Is(err, data.ErrReportNotFound):
		metrics.EmitRetrieval("not_found")
		return nil, apperrors.NotFound("Report not found or access denied")
	case errors.Is(err, data.ErrReportAlreadyRetrieved):
		metrics.EmitRetrieval("already_retrieved")
		return nil, apperrors.Gone("Report already retrieved. URL is no longer valid.")
	case err != nil:
		metrics.EmitRetrieval("error")
		return nil, fmt.Errorf("claim report: %w", err)
	}

	var refKey string
	if meta.ReportRefKey != nil {
		refKey = *meta.ReportRefKey
	}

	var pkg model.ReportPackage
	err = s.store.Retrieve(ctx, refKey, &pkg)
	switch {
	case errors.Is(err, securebuf.ErrNotFound):
		metrics.EmitRetrieval("expired")
		s.logger.WarnContext(ctx, "report package expired before retrieval", "report_id", reportID)
		return &model.ReportResponse{
			Report:  report.Expired(meta, s.now()),
			Message: ExpiredMessage,
		}, nil
	case err != nil:
		// The claim is spent; the package stays until its TTL runs out.
		metrics.EmitRetrieval("error")
		return nil, fmt.Errorf("load report package: %w", err)
	}

	if _, err := s.store.Delete(context.WithoutCancel(ctx), refKey); err != nil {
		s.logger.WarnContext(ctx, "failed to delete retrieved report package", "report_id", reportID, "error", err)
	}

	metrics.EmitRetrieval("success")
	s.logger.InfoContext(ctx, "report retrieved", "report_id", reportID, "total_findings", pkg.Report.TotalFindings)
	return &model.ReportResponse{
		Report:              pkg.Report,
		ArtifactBase64:      pkg.ArtifactBase64,
		ArtifactContentType: pkg.ArtifactContentType,
		Message:             RetrievedMessage,
	}, nil
}
