package core

import (
	"context"
	"encoding/json"

	"github.com/target/scriptcheck/internal/domain/model"
)

// LLMRequest is one structured-output generation call.
type LLMRequest struct {
	System      string
	Prompt      string
	SchemaName  string
	Schema      json.RawMessage
	Temperature float64
	MaxTokens   int
}

// LLMProvider generates JSON that is expected to match req.Schema. Callers
// still validate the output; providers only guarantee well-formed JSON.
type LLMProvider interface {
	Name() string
	GenerateStructured(ctx context.Context, req LLMRequest) (json.RawMessage, error)
}

// PushResult is the outcome of an outbound report delivery.
type PushResult struct {
	StatusCode int
	Body       string
}

// ReportPusher transmits a finished report to the external consumer.
type ReportPusher interface {
	Push(ctx context.Context, report *model.SecurityReport) (*PushResult, error)
}
