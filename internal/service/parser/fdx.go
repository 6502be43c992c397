package parser

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"io"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/target/scriptcheck/internal/domain/model"
	apperrors "github.com/target/scriptcheck/internal/errors"
)

// FDX paragraph types.
const (
	paraSceneHeading  = "Scene Heading"
	paraAction        = "Action"
	paraCharacter     = "Character"
	paraDialogue      = "Dialogue"
	paraParenthetical = "Parenthetical"
	paraTransition    = "Transition"
	paraShot          = "Shot"
	paraGeneral       = "General"
)

const parseMethodFDX = "fdx"

type fdxText struct {
	Value string `xml:",chardata"`
}

type fdxParagraph struct {
	Type   string    `xml:"Type,attr"`
	Number string    `xml:"Number,attr"`
	Texts  []fdxText `xml:"Text"`
}

func (p fdxParagraph) text() string {
	parts := make([]string, 0, len(p.Texts))
	for _, t := range p.Texts {
		if t.Value != "" {
			parts = append(parts, t.Value)
		}
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}

type fdxDocument struct {
	XMLName xml.Name `xml:"FinalDraft"`
	Content *struct {
		Paragraphs []fdxParagraph `xml:"Paragraph"`
	} `xml:"Content"`
	TitlePage []fdxParagraph `xml:"TitlePage>Content>Paragraph"`
}

// FDXOptions configures the Final Draft parser.
type FDXOptions struct {
	Logger *slog.Logger
	NewID  func() string
}

// FDX parses Final Draft XML documents.
type FDX struct {
	logger *slog.Logger
	newID  func() string
}

// NewFDX builds an FDX parser.
func NewFDX(opts FDXOptions) *FDX {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.NewID == nil {
		opts.NewID = func() string { return uuid.NewString() }
	}
	return &FDX{logger: opts.Logger.With("component", "fdx_parser"), newID: opts.NewID}
}

// Format implements Parser.
func (p *FDX) Format() model.ScriptFormat { return model.ScriptFormatFDX }

// Parse implements Parser.
func (p *FDX) Parse(ctx context.Context, content []byte) (*model.ParsedScript, error) {
	start := time.Now()

	doc, err := decodeFDX(content)
	if err != nil {
		return nil, err
	}

	paragraphs := doc.Content.Paragraphs
	scenes := p.buildScenes(paragraphs)
	characters := model.BuildCharacterIndex(scenes)
	elapsed := time.Since(start)

	p.logger.InfoContext(ctx, "fdx parsed",
		"scenes", len(scenes), "characters", len(characters), "elapsed", elapsed)

	return &model.ParsedScript{
		ScriptID:           p.newID(),
		Title:              fdxTitle(doc.TitlePage),
		Format:             model.ScriptFormatFDX,
		TotalScenes:        len(scenes),
		Scenes:             scenes,
		Characters:         characters,
		ParsingTimeSeconds: roundTo(elapsed.Seconds(), 3),
		OverallConfidence:  1,
		Warnings:           []string{},
		Metadata:           map[string]any{"parser": parseMethodFDX, "paragraph_count": len(paragraphs)},
	}, nil
}

// decodeFDX parses content without resolving any DTD or entity declaration.
func decodeFDX(content []byte) (*fdxDocument, error) {
	if err := checkSize("fdx document", content); err != nil {
		return nil, err
	}

	dec := xml.NewDecoder(bytes.NewReader(content))
	dec.Strict = true
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return nil, apperrors.Validation("fdx document has no root element")
		}
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeValidation, "malformed xml")
		}
		switch t := tok.(type) {
		case xml.Directive:
			return nil, apperrors.Validation("xml contains a forbidden DTD or entity declaration")
		case xml.StartElement:
			if t.Name.Local != "FinalDraft" {
				return nil, apperrors.Validationf("not a valid FDX file: expected root <FinalDraft>, got <%s>", t.Name.Local)
			}
			var doc fdxDocument
			if err := dec.DecodeElement(&doc, &t); err != nil {
				return nil, apperrors.Wrap(err, apperrors.ErrCodeValidation, "malformed xml")
			}
			if doc.Content == nil {
				return nil, apperrors.Validation("fdx document has no <Content> element")
			}
			return &doc, nil
		}
	}
}

func fdxTitle(paragraphs []fdxParagraph) *string {
	for _, p := range paragraphs {
		if t := p.text(); t != "" {
			return &t
		}
	}
	return nil
}

func (p *FDX) buildScenes(paragraphs []fdxParagraph) []model.ParsedScene {
	scenes := make([]model.ParsedScene, 0)
	var (
		heading *fdxParagraph
		body    []fdxParagraph
	)
	for i := range paragraphs {
		if strings.TrimSpace(paragraphs[i].Type) == paraSceneHeading {
			if heading != nil {
				scenes = append(scenes, p.scene(*heading, body))
			}
			heading = &paragraphs[i]
			body = nil
			continue
		}
		// Paragraphs before the first heading belong to no scene.
		if heading != nil {
			body = append(body, paragraphs[i])
		}
	}
	if heading != nil {
		scenes = append(scenes, p.scene(*heading, body))
	}
	return scenes
}

func (p *FDX) scene(heading fdxParagraph, body []fdxParagraph) model.ParsedScene {
	headingText := heading.text()
	h := ParseHeading(headingText)

	var (
		action        []string
		dialogue      = make([]model.DialogueLine, 0)
		characters    = make([]string, 0)
		full          = []string{headingText}
		current       string
		parenthetical *string
	)
	for _, para := range body {
		text := para.text()
		if text == "" {
			continue
		}
		full = append(full, text)

		switch strings.TrimSpace(para.Type) {
		case paraAction, paraGeneral, paraTransition, paraShot:
			action = append(action, text)
			current = ""
		case paraCharacter:
			current = text
			parenthetical = nil
			if !slices.Contains(characters, current) {
				characters = append(characters, current)
			}
		case paraParenthetical:
			v := strings.Trim(text, "() ")
			parenthetical = &v
		case paraDialogue:
			if current != "" {
				dialogue = append(dialogue, model.DialogueLine{Character: current, Parenthetical: parenthetical, Text: text})
				parenthetical = nil
			}
		}
	}

	return model.ParsedScene{
		SceneID:         p.newID(),
		Number:          strings.TrimSpace(heading.Number),
		Heading:         headingText,
		Location:        h.Location,
		LocationType:    h.LocationType,
		TimeOfDay:       h.TimeOfDay,
		Characters:      characters,
		ActionText:      strings.Join(action, "\n"),
		Dialogue:        dialogue,
		Text:            strings.Join(full, "\n"),
		ParseConfidence: 1,
		ParseMethod:     parseMethodFDX,
	}
}
