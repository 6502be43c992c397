package parser

import (
	"regexp"
	"strings"

	"github.com/target/scriptcheck/internal/domain/model"
)

// sceneMarker matches the start of a scene heading line, English or German.
var sceneMarker = regexp.MustCompile(`(?mi)^[ \t]*(` +
	`INT\.\s*/\s*EXT\.|` +
	`INT/EXT\.|` +
	`EXT\.\s*/\s*INT\.|` +
	`EXT/INT\.|` +
	`INT\.|` +
	`EXT\.|` +
	`INNEN\s*/\s*AUSSEN|` +
	`INNEN/AUSSEN|` +
	`AUSSEN\s*/\s*INNEN|` +
	`AUSSEN/INNEN|` +
	`INNEN[\.\s]|` +
	`AUSSEN[\.\s]` +
	`)`)

// SplitScenes cuts extracted screenplay text at scene-heading markers.
//
// Text before the first marker becomes a preamble block when it is not
// blank. Text without any marker yields a single preamble block holding the
// trimmed input. Blank input yields no blocks.
func SplitScenes(fullText string) []model.SceneBlock {
	if strings.TrimSpace(fullText) == "" {
		return []model.SceneBlock{}
	}

	matches := sceneMarker.FindAllStringIndex(fullText, -1)
	if len(matches) == 0 {
		return []model.SceneBlock{{Index: 0, Text: strings.TrimSpace(fullText), IsPreamble: true}}
	}

	blocks := make([]model.SceneBlock, 0, len(matches)+1)
	if preamble := strings.TrimSpace(fullText[:matches[0][0]]); preamble != "" {
		blocks = append(blocks, model.SceneBlock{Index: 0, Text: preamble, IsPreamble: true})
	}

	for i, m := range matches {
		end := len(fullText)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		text := strings.TrimSpace(fullText[m[0]:end])
		heading, _, _ := strings.Cut(text, "\n")
		blocks = append(blocks, model.SceneBlock{
			Index:       len(blocks),
			Text:        text,
			HeadingLine: strings.TrimSpace(heading),
		})
	}
	return blocks
}

// CountBlocks returns the number of scene blocks and whether a preamble is present.
func CountBlocks(blocks []model.SceneBlock) (scenes int, hasPreamble bool) {
	for _, b := range blocks {
		if b.IsPreamble {
			hasPreamble = true
			continue
		}
		scenes++
	}
	return scenes, hasPreamble
}
