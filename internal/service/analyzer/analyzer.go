// Package analyzer turns one scene into validated risk findings.
package analyzer

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/target/scriptcheck/internal/core"
	"github.com/target/scriptcheck/internal/domain/model"
	"github.com/target/scriptcheck/internal/service/prompts"
	"github.com/target/scriptcheck/internal/service/taxonomy"
)

var (
	//go:embed risk_schema.json
	riskSchemaJSON []byte
	//go:embed risk_reply_schema.json
	riskReplySchemaJSON []byte
)

// RiskSchema is the output contract sent to the provider.
var RiskSchema = prompts.MustCompileSchema("scene_risk", riskSchemaJSON)

// ReplySchema is the structural check applied to replies. Scores, categories
// and unknown classes are left to taxonomy validation.
var ReplySchema = prompts.MustCompileSchema("scene_risk_reply", riskReplySchemaJSON)

// DefaultConfidence is assigned when the model omits a confidence.
const DefaultConfidence = 0.8

// ErrEmptyScene is returned for scenes without analysable text.
var ErrEmptyScene = errors.New("scene has no text")

// Options configures an Analyzer.
type Options struct {
	Provider    core.LLMProvider
	Taxonomy    *taxonomy.Taxonomy
	Prompts     *prompts.Set
	Temperature float64
	MaxChars    int
	// Lenient skips malformed findings instead of rejecting the reply.
	Lenient bool
	Logger  *slog.Logger
	NewID   func() string
}

// Analyzer calls the LLM for one scene and post-processes its findings.
type Analyzer struct {
	provider    core.LLMProvider
	tax         *taxonomy.Taxonomy
	prompts     *prompts.Set
	temperature float64
	maxChars    int
	lenient     bool
	logger      *slog.Logger
	newID       func() string
}

// New builds an Analyzer.
func New(opts Options) (*Analyzer, error) {
	if opts.Provider == nil {
		return nil, errors.New("analyzer: llm provider is required")
	}
	if opts.Taxonomy == nil {
		return nil, errors.New("analyzer: taxonomy is required")
	}
	if opts.Prompts == nil {
		opts.Prompts = prompts.MustDefault()
	}
	if opts.MaxChars <= 0 {
		opts.MaxChars = prompts.DefaultMaxChars
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.NewID == nil {
		opts.NewID = func() string { return uuid.NewString() }
	}
	return &Analyzer{
		provider:    opts.Provider,
		tax:         opts.Taxonomy,
		prompts:     opts.Prompts,
		temperature: opts.Temperature,
		maxChars:    opts.MaxChars,
		lenient:     opts.Lenient,
		logger:      opts.Logger.With("component", "risk_analyzer"),
		newID:       opts.NewID,
	}, nil
}

type promptData struct {
	SceneNumber     string
	Location        string
	LocationType    string
	TimeOfDay       string
	SceneText       string
	TaxonomyContext string
}

type riskReply struct {
	Findings []model.RawFinding `json:"findings"`
}

// AnalyzeScene returns the validated findings of one scene. Any LLM or
// decoding failure is returned as an error; callers decide how to degrade.
func (a *Analyzer) AnalyzeScene(ctx context.Context, scene model.ParsedScene) ([]model.Finding, error) {
	text := scene.Text
	if strings.TrimSpace(text) == "" {
		text = scene.ActionText
	}
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyScene
	}

	clean := prompts.Sanitize(text, a.maxChars)
	if clean.Truncated || clean.Removed > 0 {
		a.logger.WarnContext(ctx, "scene text sanitized",
			"scene_number", scene.Number, "truncated", clean.Truncated, "patterns_removed", clean.Removed)
	}

	system, user, err := a.prompts.Render(prompts.SectionRiskAnalysis, prompts.NameScene, promptData{
		SceneNumber:     scene.Number,
		Location:        orUnknown(scene.Location),
		LocationType:    orUnknown(string(scene.LocationType)),
		TimeOfDay:       orUnknown(string(scene.TimeOfDay)),
		SceneText:       clean.Text,
		TaxonomyContext: a.tax.SummaryForPrompt(),
	})
	if err != nil {
		return nil, err
	}

	start := time.Now()
	raw, err := a.provider.GenerateStructured(ctx, core.LLMRequest{
		System:      system,
		Prompt:      user,
		SchemaName:  RiskSchema.Name(),
		Schema:      RiskSchema.Raw(),
		Temperature: a.temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("generate findings: %w", err)
	}

	reply, err := a.decode(ctx, raw)
	if err != nil {
		return nil, err
	}

	findings := make([]model.Finding, 0, len(reply.Findings))
	for _, rf := range reply.Findings {
		f := a.tax.ValidateFinding(rf)
		f.ID = a.newID()
		f.SceneNumber = scene.Number
		f.LineReference = nil
		f.Confidence = DefaultConfidence
		if rf.Confidence != nil && *rf.Confidence > 0 && *rf.Confidence <= 1 {
			f.Confidence = *rf.Confidence
		}
		findings = append(findings, f)
	}
	a.logger.InfoContext(ctx, "scene analyzed",
		"scene_number", scene.Number, "findings", len(findings), "elapsed", time.Since(start))
	return findings, nil
}

func (a *Analyzer) decode(ctx context.Context, raw json.RawMessage) (*riskReply, error) {
	doc := []byte(prompts.ExtractJSON(string(raw)))
	if err := ReplySchema.Validate(doc); err != nil {
		if !a.lenient {
			return nil, err
		}
		var dropped int
		var ferr error
		if doc, dropped, ferr = dropMalformed(doc); ferr != nil {
			return nil, errors.Join(err, ferr)
		}
		if verr := ReplySchema.Validate(doc); verr != nil {
			return nil, verr
		}
		a.logger.WarnContext(ctx, "malformed findings skipped", "dropped", dropped)
	}

	normalised, err := normaliseScores(doc)
	if err != nil {
		return nil, err
	}
	var reply riskReply
	if err := json.Unmarshal(normalised, &reply); err != nil {
		return nil, fmt.Errorf("decode %s output: %w", ReplySchema.Name(), err)
	}
	return &reply, nil
}

// dropMalformed keeps the findings that are objects with a risk class.
func dropMalformed(doc []byte) ([]byte, int, error) {
	var m map[string]any
	if err := json.Unmarshal(doc, &m); err != nil {
		return nil, 0, err
	}
	items, ok := m["findings"].([]any)
	if !ok {
		return nil, 0, errors.New("findings is not a list")
	}
	kept := make([]any, 0, len(items))
	for _, it := range items {
		f, ok := it.(map[string]any)
		if !ok {
			continue
		}
		if cls, _ := f["risk_class"].(string); strings.TrimSpace(cls) == "" {
			continue
		}
		for k, v := range f {
			if !wellTyped(k, v) {
				delete(f, k)
			}
		}
		kept = append(kept, f)
	}
	m["findings"] = kept
	b, err := json.Marshal(m)
	return b, len(items) - len(kept), err
}

func wellTyped(key string, v any) bool {
	switch key {
	case "rule_id", "category", "description", "recommendation":
		_, ok := v.(string)
		return ok
	case "likelihood", "impact":
		switch v.(type) {
		case float64, string:
			return true
		}
		return false
	case "confidence":
		_, ok := v.(float64)
		return ok
	case "measure_codes":
		list, ok := v.([]any)
		if !ok {
			return false
		}
		for _, c := range list {
			if _, ok := c.(string); !ok {
				return false
			}
		}
		return true
	}
	return true
}

// normaliseScores turns likelihood and impact into whole numbers. Range
// clamping happens in taxonomy validation.
func normaliseScores(doc []byte) ([]byte, error) {
	var m map[string]any
	if err := json.Unmarshal(doc, &m); err != nil {
		return nil, err
	}
	items, _ := m["findings"].([]any)
	for _, it := range items {
		f, ok := it.(map[string]any)
		if !ok {
			continue
		}
		for _, k := range []string{"likelihood", "impact"} {
			f[k] = toScore(f[k])
		}
	}
	return json.Marshal(m)
}

// toScore rounds numeric values; anything unparsable becomes 0.
func toScore(v any) int {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case string:
		p, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0
		}
		f = p
	default:
		return 0
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return int(math.Max(-1000, math.Min(1000, math.Round(f))))
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return "UNKNOWN"
	}
	return s
}
