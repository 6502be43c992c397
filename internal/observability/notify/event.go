// Package notify delivers operator alerts for workflow runs that ended in a
// terminal failure.
package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Severity constants recognised by downstream sinks.
const (
	SeverityCritical = "critical"
	SeverityWarning  = "warning"
)

// RunFailurePayload identifies a failed run. It must never carry script
// content or analysis output.
type RunFailurePayload struct {
	RunID        string
	WorkflowType string
	// Reason is the terminal error message recorded on the run.
	Reason     string
	Attempts   int
	Severity   string
	OccurredAt time.Time
}

// Sink consumes run failure notifications.
type Sink interface {
	SendRunFailure(ctx context.Context, payload RunFailurePayload) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, payload RunFailurePayload) error

// SendRunFailure implements Sink.
func (f SinkFunc) SendRunFailure(ctx context.Context, payload RunFailurePayload) error {
	if f == nil {
		return nil
	}
	return f(ctx, payload)
}

// Poster sends JSON bodies with a small linear retry budget.
type Poster struct {
	Client     *http.Client
	RetryLimit int
	// Label prefixes errors, e.g. "slack".
	Label string
	// Backoff is the base delay between attempts; defaults to 200ms.
	Backoff time.Duration
}

// Post delivers body to url, retrying transport errors and non-2xx replies.
func (p Poster) Post(ctx context.Context, url string, body []byte) error {
	backoff := p.Backoff
	if backoff <= 0 {
		backoff = 200 * time.Millisecond
	}
	attempts := max(p.RetryLimit, 0) + 1
	var lastErr error
	for attempt := range attempts {
		if lastErr = p.once(ctx, url, body); lastErr == nil {
			return nil
		}
		if attempt == attempts-1 {
			break
		}
		timer := time.NewTimer(time.Duration(attempt+1) * backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return lastErr
}

func (p Poster) once(ctx context.Context, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", p.Label, err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", p.Label, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, err = io.Copy(io.Discard, resp.Body)
		if err != nil {
			return fmt.Errorf("drain %s response body: %w", p.Label, err)
		}
		return nil
	}
	msg, readErr := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	if readErr != nil {
		return errors.Join(
			fmt.Errorf("%s %s", p.Label, resp.Status),
			fmt.Errorf("read %s error response: %w", p.Label, readErr),
		)
	}
	return fmt.Errorf("%s %s: %s", p.Label, resp.Status, strings.TrimSpace(string(msg)))
}

// Fallback returns value, or fallback when value is blank.
func Fallback(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
