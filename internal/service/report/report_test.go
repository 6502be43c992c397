package report

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/scriptcheck/internal/domain/model"
)

func finding(scene string, level model.RiskLevel, measures ...model.Measure) model.Finding {
	return model.Finding{
		ID:             "f-" + scene,
		SceneNumber:    scene,
		RiskClass:      "FIRE",
		RuleID:         "SC-PHY-001",
		Category:       "PHYSICAL",
		Likelihood:     4,
		Impact:         4,
		RiskLevel:      level,
		Description:    "Open flames near the cast.",
		Recommendation: "Have a fire safety officer on set.",
		Measures:       measures,
		Confidence:     0.8,
	}
}

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("CET", 3600))

func TestBuild_FiveScenesMixedLevels(t *testing.T) {
	levels := []model.RiskLevel{model.RiskCritical, model.RiskHigh, model.RiskMedium, model.RiskCritical, model.RiskHigh}
	scenes := make([]model.SceneFindings, 0, len(levels))
	for i, l := range levels {
		num := string(rune('1' + i))
		scenes = append(scenes, model.SceneFindings{SceneIndex: i, SceneNumber: num, Findings: []model.Finding{finding(num, l)}})
	}
	// Scene order in the input must not matter.
	scenes[0], scenes[4] = scenes[4], scenes[0]

	r := Build(BuildInput{
		ReportID:       "r1",
		ProjectID:      "p1",
		Format:         model.ScriptFormatFDX,
		Scenes:         scenes,
		ProcessingTime: 1234 * time.Millisecond,
		Now:            now,
	})

	assert.Equal(t, 5, r.TotalFindings)
	sum := 0
	for _, n := range r.RiskSummary {
		sum += n
	}
	assert.Equal(t, 5, sum)
	assert.Equal(t, map[model.RiskLevel]int{
		model.RiskCritical: 2, model.RiskHigh: 2, model.RiskMedium: 1, model.RiskLow: 0, model.RiskInfo: 0,
	}, r.RiskSummary)
	for i, f := range r.Findings {
		assert.Equal(t, levels[i], f.RiskLevel)
	}
	assert.Equal(t, time.UTC, r.CreatedAt.Location())
	assert.InDelta(t, 1.23, r.ProcessingTimeSeconds, 1e-9)
	assert.Equal(t, model.EngineVersion, r.Metadata["engine_version"])
	assert.Equal(t, []string{}, r.Metadata["warnings"])
}

func TestBuild_Empty(t *testing.T) {
	r := Build(BuildInput{ReportID: "r", Scenes: []model.SceneFindings{{SceneIndex: 0}}})
	assert.Zero(t, r.TotalFindings)
	assert.NotNil(t, r.Findings)
	assert.Len(t, r.RiskSummary, 5)

	b, err := json.Marshal(r)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"findings":[]`)
	assert.Contains(t, string(b), `"info":0`)
}

func TestSummarize_UnknownLevelCountsAsInfo(t *testing.T) {
	got := Summarize([]model.Finding{{RiskLevel: "severe"}, {RiskLevel: model.RiskLow}})
	assert.Equal(t, 1, got[model.RiskInfo])
	assert.Equal(t, 1, got[model.RiskLow])
	assert.NotContains(t, got, model.RiskLevel("severe"))
}

func TestExpired(t *testing.T) {
	meta := &model.ReportMetadata{ReportID: "r9", ProjectID: "p", ScriptFormat: model.ScriptFormatPDF}
	r := Expired(meta, now)
	assert.Equal(t, "r9", r.ReportID)
	assert.Equal(t, true, r.Metadata["expired"])
	assert.Zero(t, r.TotalFindings)
	assert.Empty(t, r.Findings)
	assert.Len(t, r.RiskSummary, 5)
}

func TestRender(t *testing.T) {
	ppe := model.Measure{Code: "M-PPE", Title: "Protective equipment", Responsible: "Safety officer", Due: "before shoot"}
	fire := model.Measure{Code: "M-FIRE", Title: "Fire watch", Responsible: "Pyro", Due: "shoot day"}
	title := "Burning Bridges"
	r := Build(BuildInput{
		ReportID:  "r1",
		ProjectID: "proj",
		Format:    model.ScriptFormatPDF,
		Title:     &title,
		Scenes: []model.SceneFindings{
			{SceneIndex: 0, SceneNumber: "10", Findings: []model.Finding{finding("10", model.RiskLow, ppe)}},
			{SceneIndex: 1, SceneNumber: "2", Findings: []model.Finding{finding("2", model.RiskCritical, fire, ppe)}},
			{SceneIndex: 2, SceneNumber: "", Findings: []model.Finding{finding("", model.RiskInfo)}},
		},
		Now: now,
	})

	out, err := Render(&r)
	require.NoError(t, err)

	assert.Contains(t, out, "Project: proj | Format: PDF")
	assert.Contains(t, out, "Title: Burning Bridges")
	assert.Contains(t, out, "3 safety risks identified: 1 critical, 0 high, 0 medium, 1 low, 1 info.")
	s2 := strings.Index(out, "Scene 2 (1 findings)")
	s10 := strings.Index(out, "Scene 10 (1 findings)")
	unknown := strings.Index(out, "Scene ? (1 findings)")
	require.True(t, s2 >= 0 && s10 >= 0 && unknown >= 0)
	assert.Less(t, s2, s10)
	assert.Less(t, s10, unknown)

	checklist := out[strings.Index(out, "MEASURES CHECKLIST"):]
	assert.Equal(t, 1, strings.Count(checklist, "M-PPE"))
	assert.Less(t, strings.Index(checklist, "M-FIRE"), strings.Index(checklist, "M-PPE"))
	assert.Contains(t, out, "Engine v0.5.0")
}

func TestRender_NoFindings(t *testing.T) {
	r := Build(BuildInput{ReportID: "r"})
	out, err := Render(&r)
	require.NoError(t, err)
	assert.Contains(t, out, "No findings.")
	assert.Contains(t, out, "No measures required.")

	_, err = Render(nil)
	require.Error(t, err)
}

func TestArtifact(t *testing.T) {
	r := Build(BuildInput{ReportID: "r", ProjectID: "p"})
	enc, err := Artifact(&r)
	require.NoError(t, err)
	raw, err := base64.StdEncoding.DecodeString(enc)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(raw), "SAFETY REPORT\n"))
}
