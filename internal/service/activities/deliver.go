package activities

import (
	"context"
	"fmt"

	"github.com/target/scriptcheck/internal/domain/model"
	"github.com/target/scriptcheck/internal/observability/metrics"
	"github.com/target/scriptcheck/internal/service/delivery"
)

// ReportURL is the one-shot retrieval path of a pull-mode report.
func ReportURL(reportID string) string { return "/v1/security/reports/" + reportID }

// DeliverInput identifies the report package and the job it belongs to.
type DeliverInput struct {
	ReportRefKey          string             `json:"report_ref_key"`
	ReportID              string             `json:"report_id"`
	JobID                 string             `json:"job_id"`
	ProjectID             string             `json:"project_id"`
	UserID                string             `json:"user_id"`
	Format                model.ScriptFormat `json:"script_format"`
	Mode                  model.DeliveryMode `json:"delivery_mode"`
	TotalFindings         int                `json:"total_findings"`
	ProcessingTimeSeconds float64            `json:"processing_time_seconds"`
}

// DeliverOutput reports how the report reached its consumer. Delivered is
// false when a push failed and the report stays available for pull.
type DeliverOutput struct {
	Delivered  bool               `json:"delivered"`
	Mode       model.DeliveryMode `json:"delivery_mode"`
	ReportURL  string             `json:"report_url,omitempty"`
	StatusCode int                `json:"status_code,omitempty"`
	FellBack   bool               `json:"fell_back_to_pull,omitempty"`
	Release    []string           `json:"release,omitempty"`
}

// Deliver records the report metadata, pushes the report when requested and
// marks the job completed. The metadata insert is keyed by report id, so a
// retried delivery does not create a second record.
func (a *Activities) Deliver(ctx context.Context, in DeliverInput) (DeliverOutput, error) {
	mode := in.Mode
	if !mode.Valid() {
		mode = model.DeliveryPull
	}
	if err := a.recordReport(ctx, in, mode); err != nil {
		return DeliverOutput{}, err
	}

	out := DeliverOutput{Delivered: true, Mode: model.DeliveryPull, ReportURL: ReportURL(in.ReportID)}
	if mode == model.DeliveryPush {
		pushed, err := a.push(ctx, in)
		if err != nil {
			return DeliverOutput{}, err
		}
		out = pushed
	}
	if out.Mode == model.DeliveryPull {
		metrics.EmitDelivery(string(model.DeliveryPull), metrics.ResultSuccess)
	}

	a.completeJob(ctx, in)
	return out, nil
}

func (a *Activities) recordReport(ctx context.Context, in DeliverInput, mode model.DeliveryMode) error {
	created, err := a.reports.Create(ctx, &model.CreateReportRequest{
		ReportID:              in.ReportID,
		JobID:                 in.JobID,
		ProjectID:             in.ProjectID,
		UserID:                in.UserID,
		ScriptFormat:          in.Format,
		TotalFindings:         in.TotalFindings,
		ProcessingTimeSeconds: in.ProcessingTimeSeconds,
		ReportRefKey:          in.ReportRefKey,
		DeliveryMode:          mode,
	})
	if err != nil {
		return fmt.Errorf("record report metadata: %w", err)
	}
	if !created {
		a.logger.DebugContext(ctx, "report metadata already recorded", "report_id", in.ReportID)
	}
	return nil
}

// push sends the report. Temporary failures are retried by the engine until
// the last attempt; after that, or on a permanent rejection, the report falls
// back to pull and its package stays in the store.
func (a *Activities) push(ctx context.Context, in DeliverInput) (DeliverOutput, error) {
	fallback := DeliverOutput{Mode: model.DeliveryPull, ReportURL: ReportURL(in.ReportID), FellBack: true}
	if a.pusher == nil {
		a.logger.WarnContext(ctx, "push delivery requested but not configured; report left for pull",
			"report_id", in.ReportID)
		metrics.EmitDelivery(string(model.DeliveryPush), metrics.ResultNoop)
		return fallback, nil
	}

	var pkg model.ReportPackage
	if err := a.load(ctx, in.ReportRefKey, &pkg); err != nil {
		return DeliverOutput{}, err
	}
	res, err := a.pusher.Push(ctx, &pkg.Report)
	if err != nil {
		if !delivery.IsPermanent(err) && retryable(ctx, err) {
			metrics.EmitDelivery(string(model.DeliveryPush), metrics.ResultRetry)
			return DeliverOutput{}, err
		}
		a.logger.WarnContext(ctx, "push delivery failed; report left for pull",
			"report_id", in.ReportID, "error", err)
		metrics.EmitDelivery(string(model.DeliveryPush), metrics.ResultError)
		if res != nil {
			fallback.StatusCode = res.StatusCode
		}
		return fallback, nil
	}

	metrics.EmitDelivery(string(model.DeliveryPush), metrics.ResultSuccess)
	return DeliverOutput{
		Delivered:  true,
		Mode:       model.DeliveryPush,
		StatusCode: res.StatusCode,
		Release:    []string{in.ReportRefKey},
	}, nil
}

// completeJob is best effort. The report is already delivered at this point.
func (a *Activities) completeJob(ctx context.Context, in DeliverInput) {
	progress := model.ProgressDelivered
	reportID := in.ReportID
	if _, err := a.jobs.UpdateStatus(ctx, in.JobID, model.JobStatusUpdate{
		Status:             model.JobStatusCompleted,
		ProgressPercentage: &progress,
		ReportID:           &reportID,
	}); err != nil {
		a.logger.ErrorContext(ctx, "mark job completed", "job_id", in.JobID, "error", err)
	}
}
