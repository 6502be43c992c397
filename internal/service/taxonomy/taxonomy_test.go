package taxonomy

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/scriptcheck/internal/domain/model"
)

func TestDefaultCatalog(t *testing.T) {
	tax := MustDefault()

	names := tax.ClassNames()
	assert.Len(t, names, 23)
	assert.Equal(t, "STUNTS", names[0])

	cases := map[string]struct{ rule, category string }{
		"FIRE":     {"SEC-P-008", "PHYSICAL"},
		"stunts":   {"SEC-P-001", "PHYSICAL"},
		"INTIMACY": {"SEC-Y-006", "PSYCHOLOGICAL"},
		"NOISE":    {"SEC-E-004", "ENVIRONMENTAL"},
	}
	for name, want := range cases {
		t.Run(name, func(t *testing.T) {
			assert.True(t, tax.IsValidClass(name))
			assert.Equal(t, want.rule, tax.RuleID(name))
			assert.Equal(t, want.category, tax.CategoryFor(name))
		})
	}

	assert.False(t, tax.IsValidClass("ALIENS"))
	assert.Equal(t, "", tax.RuleID("ALIENS"))
	assert.Equal(t, UnknownCategory, tax.CategoryFor("ALIENS"))

	cls, ok := tax.ClassForRule("sec-p-008")
	require.True(t, ok)
	assert.Equal(t, "FIRE", cls)
}

func TestSeverity(t *testing.T) {
	tax := MustDefault()

	tests := []struct {
		l, i int
		want model.RiskLevel
	}{
		{4, 4, model.RiskCritical},
		{5, 5, model.RiskCritical},
		{3, 5, model.RiskHigh},
		{2, 5, model.RiskHigh},
		{3, 3, model.RiskMedium},
		{1, 5, model.RiskMedium},
		{2, 2, model.RiskLow},
		{1, 1, model.RiskInfo},
		{99, -1, model.RiskMedium},
		{0, 0, model.RiskInfo},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tax.Severity(tt.l, tt.i), "severity(%d,%d)", tt.l, tt.i)
	}
}

func TestSeverityIsMonotonic(t *testing.T) {
	tax := MustDefault()
	rank := map[model.RiskLevel]int{
		model.RiskInfo: 0, model.RiskLow: 1, model.RiskMedium: 2, model.RiskHigh: 3, model.RiskCritical: 4,
	}
	for l := 1; l <= 5; l++ {
		for i := 1; i <= 5; i++ {
			cur := rank[tax.Severity(l, i)]
			if l < 5 {
				assert.GreaterOrEqual(t, rank[tax.Severity(l+1, i)], cur)
			}
			if i < 5 {
				assert.GreaterOrEqual(t, rank[tax.Severity(l, i+1)], cur)
			}
		}
	}
}

func TestMeasures(t *testing.T) {
	tax := MustDefault()

	m, ok := tax.Measure("rig-safety")
	require.True(t, ok)
	assert.Equal(t, "RIG-SAFETY", m.Code)
	assert.Equal(t, "Stunt Coordination", m.Responsible)

	_, ok = tax.Measure("NOPE")
	assert.False(t, ok)

	fire := tax.MeasuresFor("FIRE")
	codes := make([]string, 0, len(fire))
	for _, m := range fire {
		codes = append(codes, m.Code)
	}
	assert.Contains(t, codes, "SFX-CLEARANCE")
	assert.Contains(t, codes, "FIRE-DEPT")
	assert.Empty(t, tax.MeasuresFor("ALIENS"))

	resolved := tax.ResolveMeasures([]string{"FIRE-DEPT", "BOGUS", "rig-safety"})
	require.Len(t, resolved, 2)
	assert.Equal(t, "FIRE-DEPT", resolved[0].Code)
	assert.Equal(t, "RIG-SAFETY", resolved[1].Code)
}

func TestValidateFinding(t *testing.T) {
	tax := MustDefault()

	tests := []struct {
		name  string
		raw   model.RawFinding
		check func(t *testing.T, f model.Finding)
	}{
		{
			name: "known class fills rule and category",
			raw:  model.RawFinding{RiskClass: "fire", Likelihood: 4, Impact: 4},
			check: func(t *testing.T, f model.Finding) {
				assert.Equal(t, "FIRE", f.RiskClass)
				assert.Equal(t, "SEC-P-008", f.RuleID)
				assert.Equal(t, "PHYSICAL", f.Category)
				assert.Equal(t, model.RiskCritical, f.RiskLevel)
				assert.NotEmpty(t, f.Measures)
			},
		},
		{
			name: "out of range scores are clamped",
			raw:  model.RawFinding{RiskClass: "STUNTS", Likelihood: 99, Impact: -1},
			check: func(t *testing.T, f model.Finding) {
				assert.Equal(t, 5, f.Likelihood)
				assert.Equal(t, 1, f.Impact)
				assert.Equal(t, model.RiskMedium, f.RiskLevel)
			},
		},
		{
			name: "unknown category is replaced",
			raw:  model.RawFinding{RiskClass: "NOISE", Category: "unknown", Likelihood: 1, Impact: 1},
			check: func(t *testing.T, f model.Finding) {
				assert.Equal(t, "ENVIRONMENTAL", f.Category)
			},
		},
		{
			name: "unknown class passes through",
			raw:  model.RawFinding{RiskClass: "aliens", Likelihood: 2, Impact: 3},
			check: func(t *testing.T, f model.Finding) {
				assert.Equal(t, "ALIENS", f.RiskClass)
				assert.Equal(t, "", f.RuleID)
				assert.Equal(t, "", f.Category)
				assert.Equal(t, model.RiskMedium, f.RiskLevel)
				assert.Empty(t, f.Measures)
			},
		},
		{
			name: "explicit measures win over defaults",
			raw:  model.RawFinding{RiskClass: "INTIMACY", Likelihood: 2, Impact: 2, MeasureCodes: []string{"CLOSED-SET", "XX"}},
			check: func(t *testing.T, f model.Finding) {
				require.Len(t, f.Measures, 1)
				assert.Equal(t, "CLOSED-SET", f.Measures[0].Code)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, tax.ValidateFinding(tt.raw))
		})
	}
}

func TestSummaryForPrompt(t *testing.T) {
	s := MustDefault().SummaryForPrompt()

	assert.True(t, strings.HasPrefix(s, "RISK TAXONOMY:"))
	assert.Contains(t, s, "Category: PHYSICAL")
	assert.Contains(t, s, "  - FIRE (SEC-P-008): ")
	assert.Contains(t, s, "SEVERITY SCORING:")
	assert.Contains(t, s, "critical: score >= 16")
	assert.Contains(t, s, "AVAILABLE MEASURES:")
	assert.Contains(t, s, "  - RIG-SAFETY: ")
	assert.Less(t, strings.Index(s, "Category: PHYSICAL"), strings.Index(s, "Category: PSYCHOLOGICAL"))
}

func TestLoadOverrides(t *testing.T) {
	dir := t.TempDir()
	taxPath := filepath.Join(dir, "tax.yaml")
	measPath := filepath.Join(dir, "meas.yaml")
	require.NoError(t, os.WriteFile(taxPath, []byte(`
version: "2.0"
severity_matrix:
  thresholds: {critical: 20, high: 12, medium: 6, low: 3, info: 0}
categories:
  PHYSICAL:
    description: body
    classes:
      FIRE: {rule_id: SEC-P-008, description: flames}
`), 0o600))
	require.NoError(t, os.WriteFile(measPath, []byte(`
measures:
  FIRE-DEPT: {title: Fire brigade, responsible: Production, due: shoot-1, applies_to: [FIRE]}
`), 0o600))

	tax, err := Load(Paths{Taxonomy: taxPath, Measures: measPath})
	require.NoError(t, err)
	assert.Equal(t, "2.0", tax.Version())
	assert.Equal(t, []string{"FIRE"}, tax.ClassNames())
	assert.Equal(t, model.RiskHigh, tax.Severity(4, 4))
	assert.Len(t, tax.MeasuresFor("fire"), 1)

	_, err = Load(Paths{Taxonomy: filepath.Join(dir, "missing.yaml")})
	require.Error(t, err)
}

func TestParseRejectsEmptyCatalog(t *testing.T) {
	_, err := Parse([]byte("categories: {}\n"), []byte("measures: {}\n"))
	require.Error(t, err)

	_, err = Parse([]byte(`
categories:
  PHYSICAL:
    classes:
      FIRE: {description: missing rule}
`), nil)
	require.Error(t, err)
}
