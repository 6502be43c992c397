// Package parser turns submitted screenplay bytes into scenes. Final Draft
// documents are parsed deterministically; PDFs are reduced to text, split at
// scene headings and structured block by block through the LLM.
package parser

import (
	"context"
	"fmt"
	"math"

	"github.com/target/scriptcheck/internal/domain/model"
	apperrors "github.com/target/scriptcheck/internal/errors"
)

// MaxInputBytes bounds any document handed to a parser.
const MaxInputBytes = 10 << 20

// Parser turns raw document bytes into a ParsedScript. Implementations never
// write to disk.
type Parser interface {
	Format() model.ScriptFormat
	Parse(ctx context.Context, content []byte) (*model.ParsedScript, error)
}

// Route is the path a format takes through the security-check workflow.
type Route int

const (
	// RouteDirect parses the document in one deterministic step.
	RouteDirect Route = iota + 1
	// RouteExtract extracts text, splits it into blocks and structures each
	// block with the LLM before aggregating the script.
	RouteExtract
)

func (r Route) String() string {
	switch r {
	case RouteDirect:
		return "direct"
	case RouteExtract:
		return "extract"
	default:
		return fmt.Sprintf("route(%d)", int(r))
	}
}

// Registry maps script formats to their route and parser.
type Registry struct {
	fdx Parser
}

// NewRegistry builds a Registry. A nil fdx parser uses NewFDX defaults.
func NewRegistry(fdx Parser) *Registry {
	if fdx == nil {
		fdx = NewFDX(FDXOptions{})
	}
	return &Registry{fdx: fdx}
}

// Route returns the workflow route for format.
func (r *Registry) Route(format model.ScriptFormat) (Route, error) {
	if !format.Valid() {
		return 0, unsupported(format)
	}
	switch format {
	case model.ScriptFormatFDX:
		return RouteDirect, nil
	case model.ScriptFormatPDF:
		return RouteExtract, nil
	default:
		panic(fmt.Sprintf("parser: unhandled script format %q", format))
	}
}

// Parser returns the single-step parser for a RouteDirect format.
func (r *Registry) Parser(format model.ScriptFormat) (Parser, error) {
	route, err := r.Route(format)
	if err != nil {
		return nil, err
	}
	if route != RouteDirect {
		return nil, apperrors.Validationf("script format %q has no single-step parser", format)
	}
	return r.fdx, nil
}

func unsupported(format model.ScriptFormat) error {
	return apperrors.Validationf("unsupported script format %q (supported: fdx, pdf)", format)
}

func checkSize(kind string, content []byte) error {
	if len(content) > MaxInputBytes {
		return apperrors.Validationf("%s exceeds size limit (%d > %d bytes)", kind, len(content), MaxInputBytes)
	}
	return nil
}

func roundTo(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}
