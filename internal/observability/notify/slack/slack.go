// Package slack posts run failure alerts to a Slack incoming webhook.
package slack

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/target/scriptcheck/internal/observability/notify"
)

// Config captures the subset of Slack webhook behaviour we need.
type Config struct {
	WebhookURL string
	Channel    string
	Username   string
	Timeout    time.Duration
	RetryLimit int
	Client     *http.Client
}

// Client delivers run failure notifications to a Slack webhook.
type Client struct {
	webhookURL string
	channel    string
	username   string
	poster     notify.Poster
}

// NewClient builds a Slack webhook client.
func NewClient(cfg Config) (*Client, error) {
	webhookURL := strings.TrimSpace(cfg.WebhookURL)
	if webhookURL == "" {
		return nil, errors.New("slack webhook url is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	hc := cfg.Client
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}
	return &Client{
		webhookURL: webhookURL,
		channel:    strings.TrimSpace(cfg.Channel),
		username:   notify.Fallback(strings.TrimSpace(cfg.Username), "scriptcheck"),
		poster:     notify.Poster{Client: hc, RetryLimit: cfg.RetryLimit, Label: "slack webhook"},
	}, nil
}

// SendRunFailure posts a formatted message to Slack.
func (c *Client) SendRunFailure(ctx context.Context, payload notify.RunFailurePayload) error {
	body, err := json.Marshal(c.message(payload))
	if err != nil {
		return fmt.Errorf("encode slack payload: %w", err)
	}
	return c.poster.Post(ctx, c.webhookURL, body)
}

func (c *Client) message(payload notify.RunFailurePayload) map[string]any {
	at := payload.OccurredAt
	if at.IsZero() {
		at = time.Now()
	}

	var text strings.Builder
	text.WriteString("*Workflow run failed*")
	if payload.RunID != "" {
		fmt.Fprintf(&text, " `%s`", payload.RunID)
	}
	if payload.WorkflowType != "" {
		fmt.Fprintf(&text, " (%s)", payload.WorkflowType)
	}
	text.WriteByte('\n')
	field(&text, "Severity", notify.Fallback(payload.Severity, notify.SeverityCritical))
	if payload.Attempts > 0 {
		field(&text, "Attempts", fmt.Sprint(payload.Attempts))
	}
	field(&text, "Reason", escape(payload.Reason))
	field(&text, "Timestamp", at.UTC().Format(time.RFC3339))

	msg := map[string]any{
		"text":     strings.TrimRight(text.String(), "\n"),
		"username": c.username,
	}
	if c.channel != "" {
		msg["channel"] = c.channel
	}
	return msg
}

func field(text *strings.Builder, label, value string) {
	if strings.TrimSpace(value) == "" {
		return
	}
	text.WriteString("• ")
	text.WriteString(label)
	text.WriteString(": ")
	text.WriteString(value)
	text.WriteByte('\n')
}

func escape(value string) string {
	return strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;").Replace(value)
}
