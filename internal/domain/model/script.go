// Package model defines the value types shared by the screenplay safety-check pipeline.
package model

import (
	"fmt"
	"strings"
)

// ScriptFormat is the source format of a submitted screenplay.
type ScriptFormat string

const (
	// ScriptFormatFDX is Final Draft XML.
	ScriptFormatFDX ScriptFormat = "fdx"
	// ScriptFormatPDF is a text-layer PDF.
	ScriptFormatPDF ScriptFormat = "pdf"
)

// Valid returns true if the ScriptFormat is supported.
func (f ScriptFormat) Valid() bool {
	return f == ScriptFormatFDX || f == ScriptFormatPDF
}

// ParseScriptFormat normalises user input into a ScriptFormat.
func ParseScriptFormat(s string) (ScriptFormat, error) {
	f := ScriptFormat(strings.ToLower(strings.TrimSpace(s)))
	if !f.Valid() {
		return "", fmt.Errorf("unsupported script format %q (allowed: fdx, pdf)", s)
	}
	return f, nil
}

// TimeOfDay is the time designation of a scene heading.
type TimeOfDay string

// Time-of-day values.
const (
	TimeOfDayDay        TimeOfDay = "DAY"
	TimeOfDayNight      TimeOfDay = "NIGHT"
	TimeOfDayDawn       TimeOfDay = "DAWN"
	TimeOfDayDusk       TimeOfDay = "DUSK"
	TimeOfDayMorning    TimeOfDay = "MORNING"
	TimeOfDayEvening    TimeOfDay = "EVENING"
	TimeOfDayContinuous TimeOfDay = "CONTINUOUS"
	TimeOfDayUnknown    TimeOfDay = "UNKNOWN"
)

// NormalizeTimeOfDay maps arbitrary input onto a known value, defaulting to UNKNOWN.
func NormalizeTimeOfDay(s string) TimeOfDay {
	t := TimeOfDay(strings.ToUpper(strings.TrimSpace(s)))
	switch t {
	case TimeOfDayDay, TimeOfDayNight, TimeOfDayDawn, TimeOfDayDusk,
		TimeOfDayMorning, TimeOfDayEvening, TimeOfDayContinuous:
		return t
	default:
		return TimeOfDayUnknown
	}
}

// LocationType is the interior/exterior designation of a scene heading.
type LocationType string

// Location types.
const (
	LocationInt     LocationType = "INT"
	LocationExt     LocationType = "EXT"
	LocationIntExt  LocationType = "INT/EXT"
	LocationUnknown LocationType = "UNKNOWN"
)

// NormalizeLocationType maps arbitrary input onto a known value, defaulting to UNKNOWN.
func NormalizeLocationType(s string) LocationType {
	l := LocationType(strings.ToUpper(strings.TrimSpace(s)))
	switch l {
	case LocationInt, LocationExt, LocationIntExt:
		return l
	default:
		return LocationUnknown
	}
}

// UnknownLocation is used when no location could be extracted.
const UnknownLocation = "UNKNOWN"

// DialogueLine is a single spoken line.
type DialogueLine struct {
	Character     string  `json:"character"`
	Parenthetical *string `json:"parenthetical"`
	Text          string  `json:"text"`
}

// ParsedScene is one scene of a screenplay. It only ever lives in the transient store.
type ParsedScene struct {
	SceneID         string         `json:"scene_id"`
	Number          string         `json:"number,omitempty"`
	Heading         string         `json:"heading"`
	Location        string         `json:"location"`
	LocationType    LocationType   `json:"location_type"`
	TimeOfDay       TimeOfDay      `json:"time_of_day"`
	Characters      []string       `json:"characters"`
	ActionText      string         `json:"action_text"`
	Dialogue        []DialogueLine `json:"dialogue"`
	Text            string         `json:"text"`
	ParseConfidence float64        `json:"parse_confidence"`
	ParseMethod     string         `json:"parse_method,omitempty"`
}

// CharacterInfo lists the scenes a character speaks in, in first-seen order.
type CharacterInfo struct {
	Name             string   `json:"name"`
	SceneAppearances []string `json:"scene_appearances"`
}

// ParsedScript is a complete parsed screenplay.
type ParsedScript struct {
	ScriptID           string          `json:"script_id"`
	Title              *string         `json:"title"`
	Format             ScriptFormat    `json:"format"`
	TotalScenes        int             `json:"total_scenes"`
	Scenes             []ParsedScene   `json:"scenes"`
	Characters         []CharacterInfo `json:"characters"`
	ParsingTimeSeconds float64         `json:"parsing_time_seconds"`
	OverallConfidence  float64         `json:"overall_confidence"`
	Warnings           []string        `json:"warnings"`
	Metadata           map[string]any  `json:"metadata"`
}

// BuildCharacterIndex indexes speaking characters by scene in first-seen order.
func BuildCharacterIndex(scenes []ParsedScene) []CharacterInfo {
	index := make([]CharacterInfo, 0)
	pos := make(map[string]int)
	for _, s := range scenes {
		for _, name := range s.Characters {
			i, ok := pos[name]
			if !ok {
				i = len(index)
				pos[name] = i
				index = append(index, CharacterInfo{Name: name})
			}
			index[i].SceneAppearances = append(index[i].SceneAppearances, s.SceneID)
		}
	}
	return index
}

// SceneBlock is a raw slice of PDF text produced by the scene splitter.
type SceneBlock struct {
	Index       int    `json:"index"`
	Text        string `json:"text"`
	HeadingLine string `json:"heading_line"`
	IsPreamble  bool   `json:"is_preamble"`
}

// RawScript is a submitted document as held in the transient store.
type RawScript struct {
	Content []byte `json:"script_content"`
}

// ExtractedText is the full text of a PDF as held in the transient store.
type ExtractedText struct {
	FullText string `json:"full_text"`
}

// SceneBlocks is the splitter output as held in the transient store.
type SceneBlocks struct {
	Blocks []SceneBlock `json:"blocks"`
}
