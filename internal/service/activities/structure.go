package activities

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/target/scriptcheck/internal/domain/model"
	"github.com/target/scriptcheck/internal/service/parser"
)

// StructureInput selects one block of the split text.
type StructureInput struct {
	BlocksRefKey string `json:"blocks_ref_key"`
	BlockIndex   int    `json:"block_index"`
}

// StructureOutput is either a title (preamble block) or a scene ref. A
// scene that could not be structured has no ref and Fallback set; the
// aggregate stage rebuilds it from the block text.
type StructureOutput struct {
	BlockIndex  int     `json:"block_index"`
	IsPreamble  bool    `json:"is_preamble"`
	Title       *string `json:"title,omitempty"`
	SceneRefKey string  `json:"scene_ref_key,omitempty"`
	Fallback    bool    `json:"fallback,omitempty"`
}

// Structure asks the LLM for the structure of one block. LLM failures are
// retried while the attempt budget lasts, then degrade to a fallback scene
// (or no title for the preamble).
func (a *Activities) Structure(ctx context.Context, in StructureInput) (StructureOutput, error) {
	if a.structurer == nil {
		return StructureOutput{}, errors.New("scene structurer is not configured")
	}
	var blocks model.SceneBlocks
	if err := a.load(ctx, in.BlocksRefKey, &blocks); err != nil {
		return StructureOutput{}, err
	}
	if in.BlockIndex < 0 || in.BlockIndex >= len(blocks.Blocks) {
		return StructureOutput{}, indexOutOfRange("block", in.BlockIndex, len(blocks.Blocks))
	}
	block := blocks.Blocks[in.BlockIndex]
	out := StructureOutput{BlockIndex: in.BlockIndex, IsPreamble: block.IsPreamble}

	if block.IsPreamble {
		title, err := a.structurer.ExtractTitle(ctx, block)
		if err != nil {
			if retryable(ctx, err) {
				return StructureOutput{}, err
			}
			a.logger.WarnContext(ctx, "title extraction failed; continuing without title", "error", err)
		}
		out.Title = title
		return out, nil
	}

	scene, err := a.structurer.StructureScene(ctx, block)
	if err != nil {
		if retryable(ctx, err) {
			return StructureOutput{}, err
		}
		a.logger.WarnContext(ctx, "scene structuring failed; using fallback",
			"block_index", in.BlockIndex, "error", err)
		out.Fallback = true
		return out, nil
	}
	ref, err := a.store.Store(ctx, scene)
	if err != nil {
		return StructureOutput{}, fmt.Errorf("store structured scene: %w", err)
	}
	out.SceneRefKey = ref
	return out, nil
}

// AggregateScriptInput lists the structured scenes in block order.
type AggregateScriptInput struct {
	BlocksRefKey string            `json:"blocks_ref_key"`
	Scenes       []StructureOutput `json:"scenes"`
	Title        *string           `json:"title,omitempty"`
	OCRPages     []int             `json:"ocr_pages_skipped"`
}

// AggregateScriptOutput describes the assembled ParsedScript.
type AggregateScriptOutput struct {
	ParsedRefKey      string   `json:"parsed_ref_key"`
	TotalScenes       int      `json:"total_scenes"`
	TotalCharacters   int      `json:"total_characters"`
	OverallConfidence float64  `json:"overall_confidence"`
	FallbackScenes    int      `json:"fallback_scenes"`
	Release           []string `json:"release,omitempty"`
}

// AggregateScript assembles the PDF script from its structured scenes. The
// per-scene entries and the blocks are handed back in Release.
func (a *Activities) AggregateScript(ctx context.Context, in AggregateScriptInput) (AggregateScriptOutput, error) {
	start := a.now()
	var blocks model.SceneBlocks
	if err := a.load(ctx, in.BlocksRefKey, &blocks); err != nil {
		return AggregateScriptOutput{}, err
	}

	scenes := make([]parser.StructuredScene, 0, len(in.Scenes))
	consumed := make([]string, 0, len(in.Scenes)+1)
	fallbacks := 0
	for _, s := range in.Scenes {
		if s.IsPreamble {
			continue
		}
		if s.Fallback || s.SceneRefKey == "" {
			if s.BlockIndex < 0 || s.BlockIndex >= len(blocks.Blocks) {
				return AggregateScriptOutput{}, indexOutOfRange("block", s.BlockIndex, len(blocks.Blocks))
			}
			scenes = append(scenes, parser.FallbackScene(blocks.Blocks[s.BlockIndex]))
			fallbacks++
			continue
		}
		var scene parser.StructuredScene
		if err := a.load(ctx, s.SceneRefKey, &scene); err != nil {
			return AggregateScriptOutput{}, err
		}
		scenes = append(scenes, scene)
		consumed = append(consumed, s.SceneRefKey)
	}

	var warnings []string
	if fallbacks > 0 {
		warnings = append(warnings, fmt.Sprintf("%d scene(s) could not be structured and use fallback data.", fallbacks))
	}
	script := parser.Assemble(parser.AssembleInput{
		Scenes:   scenes,
		Title:    in.Title,
		OCRPages: in.OCRPages,
		Warnings: warnings,
		NewID:    a.newID,
	})
	script.ParsingTimeSeconds = roundSeconds(a.now().Sub(start))

	ref, err := a.store.Store(ctx, script)
	if err != nil {
		return AggregateScriptOutput{}, fmt.Errorf("store parsed script: %w", err)
	}

	return AggregateScriptOutput{
		ParsedRefKey:      ref,
		TotalScenes:       script.TotalScenes,
		TotalCharacters:   len(script.Characters),
		OverallConfidence: script.OverallConfidence,
		FallbackScenes:    fallbacks,
		Release:           append(consumed, in.BlocksRefKey),
	}, nil
}

func roundSeconds(d time.Duration) float64 {
	return float64(d.Round(time.Millisecond)) / float64(time.Second)
}
