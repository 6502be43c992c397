package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/target/scriptcheck/internal/core"
)

// ChatCompletions talks to OpenAI-compatible /chat/completions endpoints
// (OpenAI, Mistral). The schema travels in a system message and JSON
// object mode is requested.
type ChatCompletions struct {
	t       *transport
	name    string
	baseURL string
	model   string
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float64           `json:"temperature"`
	MaxTokens      int               `json:"max_tokens,omitempty"`
	ResponseFormat map[string]string `json:"response_format"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
			Refusal string `json:"refusal"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Name implements core.LLMProvider.
func (c *ChatCompletions) Name() string { return c.name }

// GenerateStructured implements core.LLMProvider.
func (c *ChatCompletions) GenerateStructured(ctx context.Context, req core.LLMRequest) (json.RawMessage, error) {
	messages := make([]chatMessage, 0, 3)
	if req.System != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.Prompt + "\n\nReturn ONLY JSON that matches the provided schema."})
	if len(req.Schema) > 0 {
		messages = append(messages, chatMessage{Role: "system", Content: "JSON Schema:\n" + string(req.Schema)})
	}

	body := chatRequest{
		Model:          c.model,
		Messages:       messages,
		Temperature:    req.Temperature,
		MaxTokens:      req.MaxTokens,
		ResponseFormat: map[string]string{"type": "json_object"},
	}

	var resp chatResponse
	if err := c.t.postJSON(ctx, strings.TrimRight(c.baseURL, "/")+"/chat/completions", body, &resp); err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, &StatusError{Provider: c.name, StatusCode: 200, Body: resp.Error.Message}
	}
	for _, choice := range resp.Choices {
		if strings.TrimSpace(choice.Message.Content) != "" {
			return cleanJSON(c.name, choice.Message.Content)
		}
		if choice.Message.Refusal != "" {
			return nil, &StatusError{Provider: c.name, StatusCode: 200, Body: "refusal: " + choice.Message.Refusal}
		}
	}
	return nil, fmt.Errorf("%s: %w", c.name, ErrEmptyContent)
}
