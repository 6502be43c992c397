package activities

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/target/scriptcheck/internal/domain/model"
	"github.com/target/scriptcheck/internal/service/parser"
)

// ParseInput names the raw document of a structured-format job.
type ParseInput struct {
	RefKey string             `json:"ref_key"`
	Format model.ScriptFormat `json:"script_format"`
}

// ParseOutput describes the stored ParsedScript.
type ParseOutput struct {
	ParsedRefKey       string  `json:"parsed_ref_key"`
	TotalScenes        int     `json:"total_scenes"`
	TotalCharacters    int     `json:"total_characters"`
	ParsingTimeSeconds float64 `json:"parsing_time_seconds"`
	// Release lists consumed keys for the workflow to delete once this
	// step is recorded.
	Release []string `json:"release,omitempty"`
}

// Parse runs the deterministic parser for in.Format and stores the parsed
// script. The raw document is handed back in Release.
func (a *Activities) Parse(ctx context.Context, in ParseInput) (ParseOutput, error) {
	p, err := a.parsers.Parser(in.Format)
	if err != nil {
		return ParseOutput{}, err
	}
	var raw model.RawScript
	if err := a.load(ctx, in.RefKey, &raw); err != nil {
		return ParseOutput{}, err
	}
	script, err := p.Parse(ctx, raw.Content)
	if err != nil {
		return ParseOutput{}, err
	}
	ref, err := a.store.Store(ctx, script)
	if err != nil {
		return ParseOutput{}, fmt.Errorf("store parsed script: %w", err)
	}

	a.logger.InfoContext(ctx, "script parsed",
		"format", in.Format, "scenes", script.TotalScenes, "characters", len(script.Characters))
	return ParseOutput{
		ParsedRefKey:       ref,
		TotalScenes:        script.TotalScenes,
		TotalCharacters:    len(script.Characters),
		ParsingTimeSeconds: script.ParsingTimeSeconds,
		Release:            []string{in.RefKey},
	}, nil
}

// ExtractInput names the raw PDF of a job.
type ExtractInput struct {
	RefKey string `json:"ref_key"`
}

// ExtractOutput describes the stored PDF text.
type ExtractOutput struct {
	TextRefKey string   `json:"text_ref_key"`
	OCRPages   []int    `json:"ocr_pages_skipped"`
	TextLength int      `json:"text_length"`
	Pages      int      `json:"pages"`
	Release    []string `json:"release,omitempty"`
}

// Extract pulls the text layer out of a PDF. Pages that look image-only are
// reported, not recognized.
func (a *Activities) Extract(ctx context.Context, in ExtractInput) (ExtractOutput, error) {
	var raw model.RawScript
	if err := a.load(ctx, in.RefKey, &raw); err != nil {
		return ExtractOutput{}, err
	}
	text, err := parser.ExtractPDFText(ctx, raw.Content)
	if err != nil {
		return ExtractOutput{}, err
	}
	ref, err := a.store.Store(ctx, model.ExtractedText{FullText: text.Text})
	if err != nil {
		return ExtractOutput{}, fmt.Errorf("store extracted text: %w", err)
	}
	ocr := text.OCRPages
	if ocr == nil {
		ocr = []int{}
	}
	if len(ocr) > 0 {
		a.logger.WarnContext(ctx, "pages without a text layer", "pages", ocr)
	}
	return ExtractOutput{
		TextRefKey: ref,
		OCRPages:   ocr,
		TextLength: utf8.RuneCountInString(text.Text),
		Pages:      text.Pages,
		Release:    []string{in.RefKey},
	}, nil
}

// SplitInput names the extracted text.
type SplitInput struct {
	TextRefKey string `json:"text_ref_key"`
}

// SplitOutput describes the stored scene blocks.
type SplitOutput struct {
	BlocksRefKey string   `json:"blocks_ref_key"`
	BlockCount   int      `json:"block_count"`
	SceneCount   int      `json:"scene_count"`
	HasPreamble  bool     `json:"has_preamble"`
	Release      []string `json:"release,omitempty"`
}

// Split cuts the extracted text at scene headings.
func (a *Activities) Split(ctx context.Context, in SplitInput) (SplitOutput, error) {
	var text model.ExtractedText
	if err := a.load(ctx, in.TextRefKey, &text); err != nil {
		return SplitOutput{}, err
	}
	blocks := parser.SplitScenes(text.FullText)
	ref, err := a.store.Store(ctx, model.SceneBlocks{Blocks: blocks})
	if err != nil {
		return SplitOutput{}, fmt.Errorf("store scene blocks: %w", err)
	}
	scenes, preamble := parser.CountBlocks(blocks)
	return SplitOutput{
		BlocksRefKey: ref,
		BlockCount:   len(blocks),
		SceneCount:   scenes,
		HasPreamble:  preamble,
		Release:      []string{in.TextRefKey},
	}, nil
}
