package parser

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/target/scriptcheck/internal/core"
	"github.com/target/scriptcheck/internal/domain/model"
	"github.com/target/scriptcheck/internal/service/prompts"
)

var (
	//go:embed scene_schema.json
	sceneSchemaJSON []byte
	//go:embed preamble_schema.json
	preambleSchemaJSON []byte
)

// Structured output schemas for PDF blocks.
var (
	SceneSchema    = prompts.MustCompileSchema("pdf_scene", sceneSchemaJSON)
	PreambleSchema = prompts.MustCompileSchema("pdf_preamble", preambleSchemaJSON)
)

// DefaultStructuringTemperature keeps extraction close to deterministic.
const DefaultStructuringTemperature = 0.1

const parseMethodPDF = "pdf_llm"

// StructuredScene is one PDF scene block after LLM structuring.
type StructuredScene struct {
	HeadingLine  string               `json:"heading_line"`
	Text         string               `json:"text"`
	Location     string               `json:"location"`
	LocationType model.LocationType   `json:"location_type"`
	TimeOfDay    model.TimeOfDay      `json:"time_of_day"`
	Characters   []string             `json:"characters"`
	ActionText   string               `json:"action_text"`
	Dialogue     []model.DialogueLine `json:"dialogue"`
	Confidence   float64              `json:"confidence"`
	// Fallback is set when the LLM output could not be used.
	Fallback bool `json:"fallback,omitempty"`
}

// FallbackScene keeps the raw block text with every structured field UNKNOWN.
func FallbackScene(block model.SceneBlock) StructuredScene {
	return StructuredScene{
		HeadingLine:  block.HeadingLine,
		Text:         block.Text,
		Location:     model.UnknownLocation,
		LocationType: model.LocationUnknown,
		TimeOfDay:    model.TimeOfDayUnknown,
		Characters:   []string{},
		Dialogue:     []model.DialogueLine{},
		Confidence:   0.5,
		Fallback:     true,
	}
}

// StructurerOptions configures a Structurer.
type StructurerOptions struct {
	Provider    core.LLMProvider
	Prompts     *prompts.Set
	Temperature float64
	MaxChars    int
	Logger      *slog.Logger
}

// Structurer maps raw PDF scene blocks onto scene fields with the LLM.
type Structurer struct {
	provider    core.LLMProvider
	prompts     *prompts.Set
	temperature float64
	maxChars    int
	logger      *slog.Logger
}

// NewStructurer builds a Structurer.
func NewStructurer(opts StructurerOptions) (*Structurer, error) {
	if opts.Provider == nil {
		return nil, errors.New("structurer: llm provider is required")
	}
	if opts.Prompts == nil {
		opts.Prompts = prompts.MustDefault()
	}
	if opts.Temperature <= 0 {
		opts.Temperature = DefaultStructuringTemperature
	}
	if opts.MaxChars <= 0 {
		opts.MaxChars = prompts.DefaultMaxChars
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Structurer{
		provider:    opts.Provider,
		prompts:     opts.Prompts,
		temperature: opts.Temperature,
		maxChars:    opts.MaxChars,
		logger:      opts.Logger.With("component", "pdf_structurer"),
	}, nil
}

// StructureScene asks the LLM to structure one scene block. Errors are
// returned unchanged; callers fall back to FallbackScene.
func (s *Structurer) StructureScene(ctx context.Context, block model.SceneBlock) (StructuredScene, error) {
	if block.IsPreamble {
		return StructuredScene{}, errors.New("structurer: block is a preamble")
	}
	clean := prompts.Sanitize(block.Text, s.maxChars)
	system, user, err := s.prompts.Render(prompts.SectionPDFStructuring, prompts.NameScene,
		struct{ SceneText string }{clean.Text})
	if err != nil {
		return StructuredScene{}, err
	}

	raw, err := s.provider.GenerateStructured(ctx, core.LLMRequest{
		System:      system,
		Prompt:      user,
		SchemaName:  SceneSchema.Name(),
		Schema:      SceneSchema.Raw(),
		Temperature: s.temperature,
	})
	if err != nil {
		return StructuredScene{}, fmt.Errorf("structure scene block %d: %w", block.Index, err)
	}

	reply, err := decodeSceneReply(raw)
	if err != nil {
		return StructuredScene{}, fmt.Errorf("structure scene block %d: %w", block.Index, err)
	}

	scene := StructuredScene{
		HeadingLine:  block.HeadingLine,
		Text:         block.Text,
		Location:     reply.Location,
		LocationType: model.NormalizeLocationType(reply.LocationType),
		TimeOfDay:    model.NormalizeTimeOfDay(reply.TimeOfDay),
		Characters:   reply.Characters,
		ActionText:   reply.ActionText,
		Dialogue:     make([]model.DialogueLine, 0, len(reply.Dialogue)),
		Confidence:   1,
	}
	if scene.Location == model.UnknownLocation {
		scene.Confidence = 0.5
	}
	for _, d := range reply.Dialogue {
		if d.Character == "" || d.Text == "" {
			continue
		}
		scene.Dialogue = append(scene.Dialogue, d)
	}
	return scene, nil
}

// ExtractTitle asks the LLM for the script title in a preamble block.
func (s *Structurer) ExtractTitle(ctx context.Context, block model.SceneBlock) (*string, error) {
	clean := prompts.Sanitize(block.Text, s.maxChars)
	system, user, err := s.prompts.Render(prompts.SectionPDFStructuring, prompts.NamePreamble,
		struct{ PreambleText string }{clean.Text})
	if err != nil {
		return nil, err
	}
	raw, err := s.provider.GenerateStructured(ctx, core.LLMRequest{
		System:      system,
		Prompt:      user,
		SchemaName:  PreambleSchema.Name(),
		Schema:      PreambleSchema.Raw(),
		Temperature: s.temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("extract title: %w", err)
	}
	var reply struct {
		Title *string `json:"title"`
	}
	if err := PreambleSchema.Decode([]byte(prompts.ExtractJSON(string(raw))), &reply); err != nil {
		return nil, err
	}
	if reply.Title != nil && strings.TrimSpace(*reply.Title) == "" {
		return nil, nil
	}
	return reply.Title, nil
}

type sceneReply struct {
	Location     string               `json:"location"`
	LocationType string               `json:"location_type"`
	TimeOfDay    string               `json:"time_of_day"`
	Characters   []string             `json:"characters"`
	ActionText   string               `json:"action_text"`
	Dialogue     []model.DialogueLine `json:"dialogue"`
}

// decodeSceneReply fills missing fields, maps unknown enum values to UNKNOWN
// and drops malformed dialogue items before validating against SceneSchema.
func decodeSceneReply(raw json.RawMessage) (*sceneReply, error) {
	var m map[string]any
	if err := json.Unmarshal([]byte(prompts.ExtractJSON(string(raw))), &m); err != nil {
		return nil, fmt.Errorf("decode scene reply: %w", err)
	}

	if v, _ := m["location"].(string); strings.TrimSpace(v) == "" {
		m["location"] = model.UnknownLocation
	}
	lt, _ := m["location_type"].(string)
	m["location_type"] = string(model.NormalizeLocationType(lt))
	tod, _ := m["time_of_day"].(string)
	m["time_of_day"] = string(model.NormalizeTimeOfDay(tod))
	if m["characters"] == nil {
		m["characters"] = []any{}
	}
	if m["action_text"] == nil {
		m["action_text"] = ""
	}
	items, _ := m["dialogue"].([]any)
	kept := make([]any, 0, len(items))
	for _, it := range items {
		d, ok := it.(map[string]any)
		if !ok {
			continue
		}
		c, _ := d["character"].(string)
		t, _ := d["text"].(string)
		if c == "" || t == "" {
			continue
		}
		kept = append(kept, d)
	}
	m["dialogue"] = kept

	doc, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	var reply sceneReply
	if err := SceneSchema.Decode(doc, &reply); err != nil {
		return nil, err
	}
	if reply.Characters == nil {
		reply.Characters = []string{}
	}
	return &reply, nil
}

// AssembleInput is everything aggregate-script needs to build a PDF script.
type AssembleInput struct {
	Scenes   []StructuredScene
	Title    *string
	OCRPages []int
	Warnings []string
	NewID    func() string
}

// Assemble builds a ParsedScript from structured PDF scenes. Scene numbers
// are sequential from 1 and the overall confidence is the mean scene
// confidence, or 0 without scenes.
func Assemble(in AssembleInput) *model.ParsedScript {
	newID := in.NewID
	if newID == nil {
		newID = func() string { return uuid.NewString() }
	}

	scenes := make([]model.ParsedScene, 0, len(in.Scenes))
	var sum float64
	for i, s := range in.Scenes {
		characters := s.Characters
		if characters == nil {
			characters = []string{}
		}
		dialogue := s.Dialogue
		if dialogue == nil {
			dialogue = []model.DialogueLine{}
		}
		scenes = append(scenes, model.ParsedScene{
			SceneID:         newID(),
			Number:          strconv.Itoa(i + 1),
			Heading:         s.HeadingLine,
			Location:        s.Location,
			LocationType:    model.NormalizeLocationType(string(s.LocationType)),
			TimeOfDay:       model.NormalizeTimeOfDay(string(s.TimeOfDay)),
			Characters:      characters,
			ActionText:      s.ActionText,
			Dialogue:        dialogue,
			Text:            s.Text,
			ParseConfidence: s.Confidence,
			ParseMethod:     parseMethodPDF,
		})
		sum += s.Confidence
	}

	var confidence float64
	if len(scenes) > 0 {
		confidence = roundTo(sum/float64(len(scenes)), 3)
	}

	warnings := make([]string, 0, len(in.Warnings)+1)
	if w := OCRWarning(in.OCRPages); w != "" {
		warnings = append(warnings, w)
	}
	warnings = append(warnings, in.Warnings...)

	ocr := in.OCRPages
	if ocr == nil {
		ocr = []int{}
	}

	return &model.ParsedScript{
		ScriptID:          newID(),
		Title:             in.Title,
		Format:            model.ScriptFormatPDF,
		TotalScenes:       len(scenes),
		Scenes:            scenes,
		Characters:        model.BuildCharacterIndex(scenes),
		OverallConfidence: confidence,
		Warnings:          warnings,
		Metadata:          map[string]any{"parser": parseMethodPDF, "ocr_pages_skipped": ocr},
	}
}
