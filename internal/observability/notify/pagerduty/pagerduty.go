// Package pagerduty raises run failure incidents through the Events API v2.
package pagerduty

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

// APIEndpoint is the PagerDuty Events API v2 ingest URL.
const APIEndpoint = "https://events.pagerduty.com/v2/enqueue"

// Config captures runtime configuration for the PagerDuty sink.
type Config struct {
	RoutingKey string
	Source     string
	Component  string
	Timeout    time.Duration
	RetryLimit int
	Client     *http.Client
	// Endpoint overrides APIEndpoint in tests.
	Endpoint string
}

// Client publishes events via PagerDuty's Events API v2.
type Client struct {
	routingKey string
	source     string
	component  string
	endpoint   string
	poster     notify.Poster
}

// NewClient constructs a PagerDuty events client. A routing key is required.
func NewClient(cfg Config) (*Client, error) {
	key := strings.TrimSpace(cfg.RoutingKey)
	if key == "" {
		return nil, errors.New("pagerduty routing key is required")
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
		routingKey: key,
		source:     notify.Fallback(cfg.Source, "scriptcheck"),
		component:  notify.Fallback(cfg.Component, "workflow-runner"),
		endpoint:   notify.Fallback(cfg.Endpoint, APIEndpoint),
		poster:     notify.Poster{Client: hc, RetryLimit: cfg.RetryLimit, Label: "pagerduty api"},
	}, nil
}

// SendRunFailure submits a trigger event. The run id is the dedup key so a
// redelivered alert does not open a second incident.
func (c *Client) SendRunFailure(ctx context.Context, payload notify.RunFailurePayload) error {
	body, err := json.Marshal(c.event(payload))
	if err != nil {
		return fmt.Errorf("encode pagerduty payload: %w", err)
	}
	return c.poster.Post(ctx, c.endpoint, body)
}

func (c *Client) event(payload notify.RunFailurePayload) map[string]any {
	at := payload.OccurredAt.UTC()
	if payload.OccurredAt.IsZero() {
		at = time.Now().UTC()
	}
	severity := strings.ToLower(notify.Fallback(payload.Severity, notify.SeverityCritical))

	return map[string]any{
		"routing_key":  c.routingKey,
		"event_action": "trigger",
		"dedup_key":    strings.Trim(payload.WorkflowType+":"+payload.RunID, ":"),
		"payload": map[string]any{
			"summary": fmt.Sprintf("Workflow run %s (%s) failed",
				notify.Fallback(payload.RunID, "unknown"),
				notify.Fallback(payload.WorkflowType, "unknown")),
			"severity":  severity,
			"source":    c.source,
			"component": c.component,
			"timestamp": at.Format(time.RFC3339),
			"custom_details": map[string]any{
				"run_id":        payload.RunID,
				"workflow_type": payload.WorkflowType,
				"reason":        payload.Reason,
				"attempts":      payload.Attempts,
			},
		},
	}
}
