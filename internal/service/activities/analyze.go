package activities

import (
	"context"
	"errors"
	"fmt"

	"github.com/target/scriptcheck/internal/domain/model"
	"github.com/target/scriptcheck/internal/service/analyzer"
)

// AnalyzeInput selects one scene of the parsed script.
type AnalyzeInput struct {
	ParsedRefKey string `json:"parsed_ref_key"`
	SceneIndex   int    `json:"scene_index"`
}

// AnalyzeOutput references the stored findings of one scene. FindingsRefKey
// is empty when the scene has no findings.
type AnalyzeOutput struct {
	SceneIndex     int    `json:"scene_index"`
	SceneNumber    string `json:"scene_number"`
	FindingsRefKey string `json:"findings_ref_key,omitempty"`
	FindingCount   int    `json:"finding_count"`
	Degraded       bool   `json:"degraded,omitempty"`
}

// Analyze runs the risk analyzer on one scene. Analyzer failures are retried
// while the attempt budget lasts and then collapse to an empty finding set;
// only transient-store failures end the activity.
func (a *Activities) Analyze(ctx context.Context, in AnalyzeInput) (AnalyzeOutput, error) {
	var script model.ParsedScript
	if err := a.load(ctx, in.ParsedRefKey, &script); err != nil {
		return AnalyzeOutput{}, err
	}
	if in.SceneIndex < 0 || in.SceneIndex >= len(script.Scenes) {
		return AnalyzeOutput{}, indexOutOfRange("scene", in.SceneIndex, len(script.Scenes))
	}
	scene := script.Scenes[in.SceneIndex]
	out := AnalyzeOutput{SceneIndex: in.SceneIndex, SceneNumber: scene.Number}

	findings, err := a.analyzer.AnalyzeScene(ctx, scene)
	switch {
	case errors.Is(err, analyzer.ErrEmptyScene):
		return out, nil
	case err != nil:
		if retryable(ctx, err) {
			return AnalyzeOutput{}, err
		}
		a.logger.WarnContext(ctx, "risk analysis failed; scene reported without findings",
			"scene_index", in.SceneIndex, "scene_number", scene.Number, "error", err)
		out.Degraded = true
		return out, nil
	case len(findings) == 0:
		return out, nil
	}

	ref, err := a.store.Store(ctx, model.SceneFindings{
		SceneIndex:  in.SceneIndex,
		SceneNumber: scene.Number,
		Findings:    findings,
	})
	if err != nil {
		return AnalyzeOutput{}, fmt.Errorf("store findings: %w", err)
	}
	out.FindingsRefKey = ref
	out.FindingCount = len(findings)
	return out, nil
}
