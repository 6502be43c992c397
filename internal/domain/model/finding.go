package model

// RiskLevel is the severity band derived from likelihood × impact.
type RiskLevel string

// Risk levels from most to least severe.
const (
	RiskCritical RiskLevel = "critical"
	RiskHigh     RiskLevel = "high"
	RiskMedium   RiskLevel = "medium"
	RiskLow      RiskLevel = "low"
	RiskInfo     RiskLevel = "info"
)

// RiskLevels lists every level from most to least severe.
func RiskLevels() []RiskLevel {
	return []RiskLevel{RiskCritical, RiskHigh, RiskMedium, RiskLow, RiskInfo}
}

// Valid reports whether l is a known level.
func (l RiskLevel) Valid() bool {
	switch l {
	case RiskCritical, RiskHigh, RiskMedium, RiskLow, RiskInfo:
		return true
	}
	return false
}

// RiskCategory groups risk classes.
type RiskCategory string

// Risk categories.
const (
	CategoryPhysical      RiskCategory = "PHYSICAL"
	CategoryEnvironmental RiskCategory = "ENVIRONMENTAL"
	CategoryPsychological RiskCategory = "PSYCHOLOGICAL"
)

// Measure is a mitigation from the measures catalog.
type Measure struct {
	Code        string `json:"code"`
	Title       string `json:"title"`
	Responsible string `json:"responsible"`
	Due         string `json:"due"`
}

// RawFinding is a finding as proposed by the LLM, before taxonomy validation.
type RawFinding struct {
	RiskClass      string   `json:"risk_class"`
	RuleID         string   `json:"rule_id,omitempty"`
	Category       string   `json:"category,omitempty"`
	Likelihood     int      `json:"likelihood"`
	Impact         int      `json:"impact"`
	Description    string   `json:"description"`
	Recommendation string   `json:"recommendation"`
	MeasureCodes   []string `json:"measure_codes,omitempty"`
	Confidence     *float64 `json:"confidence,omitempty"`
}

// Finding is a validated risk finding for one scene.
type Finding struct {
	ID             string    `json:"id"`
	SceneNumber    string    `json:"scene_number,omitempty"`
	RiskClass      string    `json:"risk_class"`
	RuleID         string    `json:"rule_id"`
	Category       string    `json:"category"`
	Likelihood     int       `json:"likelihood"`
	Impact         int       `json:"impact"`
	RiskLevel      RiskLevel `json:"risk_level"`
	Description    string    `json:"description"`
	Recommendation string    `json:"recommendation"`
	Measures       []Measure `json:"measures"`
	Confidence     float64   `json:"confidence"`
	LineReference  *string   `json:"line_reference"`
}

// SceneFindings holds the findings of one analyzed scene.
type SceneFindings struct {
	SceneIndex  int       `json:"scene_index"`
	SceneNumber string    `json:"scene_number"`
	Findings    []Finding `json:"findings"`
}
