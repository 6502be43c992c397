// Package report turns per-scene findings into the security report and its
// human-readable artifact.
package report

import (
	"math"
	"slices"
	"time"

	"github.com/target/scriptcheck/internal/domain/model"
)

// BuildInput carries everything that ends up in a SecurityReport.
type BuildInput struct {
	ReportID       string
	ProjectID      string
	Format         model.ScriptFormat
	Scenes         []model.SceneFindings
	ProcessingTime time.Duration
	Title          *string
	Warnings       []string
	Now            time.Time
}

// Build flattens the scene findings in scene order and tallies the risk
// summary. Every risk level is present in the summary, and findings with an
// unrecognized level are counted as info.
func Build(in BuildInput) model.SecurityReport {
	scenes := slices.Clone(in.Scenes)
	slices.SortStableFunc(scenes, func(a, b model.SceneFindings) int { return a.SceneIndex - b.SceneIndex })

	findings := make([]model.Finding, 0)
	for _, s := range scenes {
		findings = append(findings, s.Findings...)
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}
	warnings := in.Warnings
	if warnings == nil {
		warnings = []string{}
	}

	return model.SecurityReport{
		ReportID:              in.ReportID,
		ProjectID:             in.ProjectID,
		ScriptFormat:          in.Format,
		CreatedAt:             now.UTC(),
		RiskSummary:           Summarize(findings),
		TotalFindings:         len(findings),
		Findings:              findings,
		ProcessingTimeSeconds: math.Round(in.ProcessingTime.Seconds()*100) / 100,
		Metadata: map[string]any{
			"engine_version":   model.EngineVersion,
			"taxonomy_version": model.TaxonomyVersion,
			"title":            in.Title,
			"warnings":         warnings,
		},
	}
}

// Summarize counts findings per risk level.
func Summarize(findings []model.Finding) map[model.RiskLevel]int {
	summary := make(map[model.RiskLevel]int, 5)
	for _, l := range model.RiskLevels() {
		summary[l] = 0
	}
	for _, f := range findings {
		level := f.RiskLevel
		if !level.Valid() {
			level = model.RiskInfo
		}
		summary[level]++
	}
	return summary
}

// Expired is the placeholder handed out when a report's metadata says it
// exists but its package has already left the transient store.
func Expired(meta *model.ReportMetadata, now time.Time) model.SecurityReport {
	return model.SecurityReport{
		ReportID:              meta.ReportID,
		ProjectID:             meta.ProjectID,
		ScriptFormat:          meta.ScriptFormat,
		CreatedAt:             now.UTC(),
		RiskSummary:           Summarize(nil),
		TotalFindings:         0,
		Findings:              []model.Finding{},
		ProcessingTimeSeconds: meta.ProcessingTimeSeconds,
		Metadata: map[string]any{
			"engine_version":   model.EngineVersion,
			"taxonomy_version": model.TaxonomyVersion,
			"expired":          true,
			"error":            "Report expired from buffer",
		},
	}
}
