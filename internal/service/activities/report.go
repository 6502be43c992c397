package activities

import (
	"context"
	"fmt"
	"time"

	"github.com/target/scriptcheck/internal/domain/model"
	"github.com/target/scriptcheck/internal/service/report"
)

// AggregateReportInput collects the per-scene results of a job.
type AggregateReportInput struct {
	ReportID     string             `json:"report_id"`
	ProjectID    string             `json:"project_id"`
	Format       model.ScriptFormat `json:"script_format"`
	ParsedRefKey string             `json:"parsed_ref_key"`
	Scenes       []AnalyzeOutput    `json:"scenes"`
	// SubmittedAt anchors the processing time.
	SubmittedAt time.Time `json:"submitted_at"`
}

// AggregateReportOutput describes the stored report package.
type AggregateReportOutput struct {
	ReportRefKey          string                  `json:"report_ref_key"`
	ReportID              string                  `json:"report_id"`
	TotalFindings         int                     `json:"total_findings"`
	RiskSummary           map[model.RiskLevel]int `json:"risk_summary"`
	ProcessingTimeSeconds float64                 `json:"processing_time_seconds"`
	HasArtifact           bool                    `json:"has_artifact"`
	Release               []string                `json:"release,omitempty"`
}

// AggregateReport builds the security report and its rendered artifact and
// stores the package. The parsed script and findings go back in Release.
func (a *Activities) AggregateReport(ctx context.Context, in AggregateReportInput) (AggregateReportOutput, error) {
	var script model.ParsedScript
	if err := a.load(ctx, in.ParsedRefKey, &script); err != nil {
		return AggregateReportOutput{}, err
	}

	scenes := make([]model.SceneFindings, 0, len(in.Scenes))
	consumed := []string{in.ParsedRefKey}
	for _, s := range in.Scenes {
		if s.FindingsRefKey == "" {
			continue
		}
		var sf model.SceneFindings
		if err := a.load(ctx, s.FindingsRefKey, &sf); err != nil {
			return AggregateReportOutput{}, err
		}
		scenes = append(scenes, sf)
		consumed = append(consumed, s.FindingsRefKey)
	}

	now := a.now()
	var elapsed time.Duration
	if !in.SubmittedAt.IsZero() {
		elapsed = now.Sub(in.SubmittedAt)
	}
	rep := report.Build(report.BuildInput{
		ReportID:       in.ReportID,
		ProjectID:      in.ProjectID,
		Format:         in.Format,
		Scenes:         scenes,
		ProcessingTime: elapsed,
		Title:          script.Title,
		Warnings:       script.Warnings,
		Now:            now,
	})

	pkg := model.ReportPackage{Report: rep}
	if artifact, err := report.Artifact(&rep); err != nil {
		a.logger.WarnContext(ctx, "report rendering failed; storing report without artifact",
			"report_id", in.ReportID, "error", err)
	} else {
		pkg.ArtifactBase64 = &artifact
		pkg.ArtifactContentType = report.ArtifactContentType
	}

	var (
		ref string
		err error
	)
	if a.reportTTL > 0 {
		ref, err = a.store.StoreWithTTL(ctx, pkg, a.reportTTL)
	} else {
		ref, err = a.store.Store(ctx, pkg)
	}
	if err != nil {
		return AggregateReportOutput{}, fmt.Errorf("store report package: %w", err)
	}

	a.logger.InfoContext(ctx, "report aggregated",
		"report_id", in.ReportID, "total_findings", rep.TotalFindings)
	return AggregateReportOutput{
		ReportRefKey:          ref,
		ReportID:              rep.ReportID,
		TotalFindings:         rep.TotalFindings,
		RiskSummary:           rep.RiskSummary,
		ProcessingTimeSeconds: rep.ProcessingTimeSeconds,
		HasArtifact:           pkg.ArtifactBase64 != nil,
		Release:               consumed,
	}, nil
}
