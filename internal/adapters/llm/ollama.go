package llm

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/target/scriptcheck/internal/core"
)

// Ollama calls a local Ollama server's /api/chat endpoint with the schema as
// the structured output format.
type Ollama struct {
	t       *transport
	baseURL string
	model   string
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Format   json.RawMessage `json:"format,omitempty"`
	Options  map[string]any  `json:"options,omitempty"`
}

type ollamaResponse struct {
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`
	Error   string        `json:"error"`
}

// Name implements core.LLMProvider.
func (o *Ollama) Name() string { return "ollama" }

// GenerateStructured implements core.LLMProvider.
func (o *Ollama) GenerateStructured(ctx context.Context, req core.LLMRequest) (json.RawMessage, error) {
	messages := make([]ollamaMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, ollamaMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, ollamaMessage{Role: "user", Content: req.Prompt})

	options := map[string]any{"temperature": req.Temperature}
	if req.MaxTokens > 0 {
		options["num_predict"] = req.MaxTokens
	}
	body := ollamaRequest{
		Model:    o.model,
		Messages: messages,
		Stream:   false,
		Format:   req.Schema,
		Options:  options,
	}
	if len(body.Format) == 0 {
		body.Format = json.RawMessage(`"json"`)
	}

	var resp ollamaResponse
	if err := o.t.postJSON(ctx, strings.TrimRight(o.baseURL, "/")+"/api/chat", body, &resp); err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, &StatusError{Provider: o.Name(), StatusCode: 200, Body: resp.Error}
	}
	return cleanJSON(o.Name(), resp.Message.Content)
}
