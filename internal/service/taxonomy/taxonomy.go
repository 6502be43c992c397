// Package taxonomy loads the risk class catalog and the measures catalog and
// applies the deterministic post-processing every LLM finding goes through.
package taxonomy

import (
	"embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/target/scriptcheck/internal/domain/model"
)

//go:embed data/taxonomy.yaml data/measures.yaml
var embedded embed.FS

// UnknownCategory is reported for classes outside the catalog.
const UnknownCategory = "UNKNOWN"

// Thresholds map a likelihood × impact score to a risk level. A score
// qualifies for the highest level whose threshold it reaches.
type Thresholds struct {
	Critical int `yaml:"critical"`
	High     int `yaml:"high"`
	Medium   int `yaml:"medium"`
	Low      int `yaml:"low"`
	Info     int `yaml:"info"`
}

// DefaultThresholds are used when the catalog omits a severity matrix.
func DefaultThresholds() Thresholds {
	return Thresholds{Critical: 16, High: 10, Medium: 5, Low: 2, Info: 0}
}

type classDoc struct {
	RuleID      string `yaml:"rule_id"`
	Description string `yaml:"description"`
}

type categoryDoc struct {
	Description string              `yaml:"description"`
	Classes     yaml.Node           `yaml:"classes"`
	classes     []namedClass        `yaml:"-"`
	byName      map[string]classDoc `yaml:"-"`
}

type namedClass struct {
	Name string
	classDoc
}

type taxonomyDoc struct {
	Version        string `yaml:"version"`
	SeverityMatrix struct {
		Thresholds *Thresholds `yaml:"thresholds"`
	} `yaml:"severity_matrix"`
	Categories yaml.Node `yaml:"categories"`
}

type measureDoc struct {
	Title       string   `yaml:"title"`
	Responsible string   `yaml:"responsible"`
	Due         string   `yaml:"due"`
	AppliesTo   []string `yaml:"applies_to"`
}

type measuresDoc struct {
	Measures yaml.Node `yaml:"measures"`
}

// ClassInfo describes one known risk class.
type ClassInfo struct {
	Name        string
	Category    string
	RuleID      string
	Description string
}

type measureEntry struct {
	model.Measure
	appliesTo []string
}

// Taxonomy is an immutable, concurrency-safe view of both catalogs.
type Taxonomy struct {
	version    string
	thresholds Thresholds
	categories []string
	classes    []ClassInfo
	byClass    map[string]ClassInfo
	byRule     map[string]string
	measures   []measureEntry
	byMeasure  map[string]int
}

// Paths overrides the embedded catalog files. Empty fields keep the embedded copy.
type Paths struct {
	Taxonomy string
	Measures string
}

// Load reads the catalogs, preferring override paths when set.
func Load(p Paths) (*Taxonomy, error) {
	taxRaw, err := readCatalog(p.Taxonomy, "data/taxonomy.yaml")
	if err != nil {
		return nil, err
	}
	measRaw, err := readCatalog(p.Measures, "data/measures.yaml")
	if err != nil {
		return nil, err
	}
	return Parse(taxRaw, measRaw)
}

// MustDefault returns the embedded catalogs. It panics if they are malformed.
func MustDefault() *Taxonomy {
	t, err := Load(Paths{})
	if err != nil {
		panic(err)
	}
	return t
}

func readCatalog(override, embeddedName string) ([]byte, error) {
	if override != "" {
		b, err := os.ReadFile(override)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", override, err)
		}
		return b, nil
	}
	return embedded.ReadFile(embeddedName)
}

// Parse builds a Taxonomy from YAML documents. Category, class and measure
// order follows the documents.
func Parse(taxonomyYAML, measuresYAML []byte) (*Taxonomy, error) {
	var td taxonomyDoc
	if err := yaml.Unmarshal(taxonomyYAML, &td); err != nil {
		return nil, fmt.Errorf("parse taxonomy: %w", err)
	}
	var md measuresDoc
	if err := yaml.Unmarshal(measuresYAML, &md); err != nil {
		return nil, fmt.Errorf("parse measures: %w", err)
	}

	t := &Taxonomy{
		version:    td.Version,
		thresholds: DefaultThresholds(),
		byClass:    make(map[string]ClassInfo),
		byRule:     make(map[string]string),
		byMeasure:  make(map[string]int),
	}
	if td.SeverityMatrix.Thresholds != nil {
		t.thresholds = *td.SeverityMatrix.Thresholds
	}

	if err := eachMapEntry(&td.Categories, func(catName string, node *yaml.Node) error {
		var cat categoryDoc
		if err := node.Decode(&cat); err != nil {
			return fmt.Errorf("category %s: %w", catName, err)
		}
		catName = strings.ToUpper(catName)
		t.categories = append(t.categories, catName)
		return eachMapEntry(&cat.Classes, func(clsName string, cnode *yaml.Node) error {
			var cls classDoc
			if err := cnode.Decode(&cls); err != nil {
				return fmt.Errorf("class %s: %w", clsName, err)
			}
			if cls.RuleID == "" {
				return fmt.Errorf("class %s: rule_id is required", clsName)
			}
			info := ClassInfo{
				Name:        strings.ToUpper(clsName),
				Category:    catName,
				RuleID:      cls.RuleID,
				Description: cls.Description,
			}
			if _, dup := t.byClass[info.Name]; dup {
				return fmt.Errorf("duplicate class %s", info.Name)
			}
			t.classes = append(t.classes, info)
			t.byClass[info.Name] = info
			t.byRule[info.RuleID] = info.Name
			return nil
		})
	}); err != nil {
		return nil, err
	}
	if len(t.classes) == 0 {
		return nil, errors.New("taxonomy defines no classes")
	}

	if err := eachMapEntry(&md.Measures, func(code string, node *yaml.Node) error {
		var m measureDoc
		if err := node.Decode(&m); err != nil {
			return fmt.Errorf("measure %s: %w", code, err)
		}
		code = strings.ToUpper(code)
		entry := measureEntry{
			Measure: model.Measure{Code: code, Title: m.Title, Responsible: m.Responsible, Due: m.Due},
		}
		for _, a := range m.AppliesTo {
			entry.appliesTo = append(entry.appliesTo, strings.ToUpper(a))
		}
		t.byMeasure[code] = len(t.measures)
		t.measures = append(t.measures, entry)
		return nil
	}); err != nil {
		return nil, err
	}
	return t, nil
}

// eachMapEntry walks a YAML mapping node in document order.
func eachMapEntry(node *yaml.Node, fn func(key string, value *yaml.Node) error) error {
	if node == nil || node.Kind == 0 {
		return nil
	}
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: expected a mapping", node.Line)
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if err := fn(node.Content[i].Value, node.Content[i+1]); err != nil {
			return err
		}
	}
	return nil
}

// Version returns the catalog version, falling back to the engine default.
func (t *Taxonomy) Version() string {
	if t.version == "" {
		return model.TaxonomyVersion
	}
	return t.version
}

// Thresholds returns the severity thresholds in use.
func (t *Taxonomy) Thresholds() Thresholds { return t.thresholds }

// Class looks a class up case-insensitively.
func (t *Taxonomy) Class(name string) (ClassInfo, bool) {
	info, ok := t.byClass[strings.ToUpper(strings.TrimSpace(name))]
	return info, ok
}

// IsValidClass reports whether name is a known class.
func (t *Taxonomy) IsValidClass(name string) bool {
	_, ok := t.Class(name)
	return ok
}

// RuleID returns the rule id of a class, or "" for unknown classes.
func (t *Taxonomy) RuleID(name string) string {
	info, _ := t.Class(name)
	return info.RuleID
}

// CategoryFor returns the category of a class, or UnknownCategory.
func (t *Taxonomy) CategoryFor(name string) string {
	if info, ok := t.Class(name); ok {
		return info.Category
	}
	return UnknownCategory
}

// ClassForRule resolves a rule id back to its class name.
func (t *Taxonomy) ClassForRule(ruleID string) (string, bool) {
	name, ok := t.byRule[strings.ToUpper(strings.TrimSpace(ruleID))]
	return name, ok
}

// ClassNames returns every class in catalog order.
func (t *Taxonomy) ClassNames() []string {
	out := make([]string, len(t.classes))
	for i, c := range t.classes {
		out[i] = c.Name
	}
	return out
}

// Measure returns a measure by code.
func (t *Taxonomy) Measure(code string) (model.Measure, bool) {
	i, ok := t.byMeasure[strings.ToUpper(strings.TrimSpace(code))]
	if !ok {
		return model.Measure{}, false
	}
	return t.measures[i].Measure, true
}

// MeasuresFor returns every measure that applies to a class, in catalog order.
func (t *Taxonomy) MeasuresFor(class string) []model.Measure {
	class = strings.ToUpper(strings.TrimSpace(class))
	out := make([]model.Measure, 0)
	for _, m := range t.measures {
		for _, a := range m.appliesTo {
			if a == class {
				out = append(out, m.Measure)
				break
			}
		}
	}
	return out
}

// ResolveMeasures maps codes to measures in input order. Unknown codes are dropped.
func (t *Taxonomy) ResolveMeasures(codes []string) []model.Measure {
	out := make([]model.Measure, 0, len(codes))
	for _, c := range codes {
		if m, ok := t.Measure(c); ok {
			out = append(out, m)
		}
	}
	return out
}

// Severity maps likelihood × impact to a risk level. Both inputs are
// clamped to [1,5] first.
func (t *Taxonomy) Severity(likelihood, impact int) model.RiskLevel {
	score := clamp(likelihood) * clamp(impact)
	levels := []struct {
		level     model.RiskLevel
		threshold int
	}{
		{model.RiskCritical, t.thresholds.Critical},
		{model.RiskHigh, t.thresholds.High},
		{model.RiskMedium, t.thresholds.Medium},
		{model.RiskLow, t.thresholds.Low},
		{model.RiskInfo, t.thresholds.Info},
	}
	for _, l := range levels {
		if score >= l.threshold {
			return l.level
		}
	}
	return model.RiskInfo
}

func clamp(v int) int {
	return max(1, min(5, v))
}

// ValidateFinding turns a raw LLM finding into a Finding. It never fails:
// unknown classes pass through with an empty rule id, scores are clamped,
// unknown measure codes are dropped, and known classes without codes get
// every applicable measure.
func (t *Taxonomy) ValidateFinding(raw model.RawFinding) model.Finding {
	class := strings.ToUpper(strings.TrimSpace(raw.RiskClass))
	category := strings.ToUpper(strings.TrimSpace(raw.Category))

	f := model.Finding{
		RiskClass:      class,
		RuleID:         strings.TrimSpace(raw.RuleID),
		Category:       category,
		Likelihood:     clamp(raw.Likelihood),
		Impact:         clamp(raw.Impact),
		Description:    raw.Description,
		Recommendation: raw.Recommendation,
	}

	info, known := t.Class(class)
	if known {
		if f.RuleID == "" {
			f.RuleID = info.RuleID
		}
		if f.Category == "" || f.Category == UnknownCategory {
			f.Category = info.Category
		}
	}

	f.RiskLevel = t.Severity(f.Likelihood, f.Impact)

	f.Measures = t.ResolveMeasures(raw.MeasureCodes)
	if len(f.Measures) == 0 && known {
		f.Measures = t.MeasuresFor(class)
	}
	return f
}

// SummaryForPrompt renders a compact catalog description for LLM prompts.
func (t *Taxonomy) SummaryForPrompt() string {
	var b strings.Builder
	b.WriteString("RISK TAXONOMY:\n\n")
	for _, cat := range t.categories {
		fmt.Fprintf(&b, "Category: %s\n", cat)
		for _, c := range t.classes {
			if c.Category == cat {
				fmt.Fprintf(&b, "  - %s (%s): %s\n", c.Name, c.RuleID, c.Description)
			}
		}
		b.WriteByte('\n')
	}

	th := t.thresholds
	b.WriteString("SEVERITY SCORING:\n")
	b.WriteString("  likelihood (1-5) x impact (1-5) = score\n")
	fmt.Fprintf(&b, "  critical: score >= %d, high: >= %d, medium: >= %d, low: >= %d, info: < %d\n\n",
		th.Critical, th.High, th.Medium, th.Low, th.Low)

	b.WriteString("AVAILABLE MEASURES:\n")
	for _, m := range t.measures {
		applies := append([]string(nil), m.appliesTo...)
		sort.Strings(applies)
		fmt.Fprintf(&b, "  - %s: %s (for: %s)\n", m.Code, m.Title, strings.Join(applies, ", "))
	}
	return b.String()
}
