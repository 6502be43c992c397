// Package llm implements structured-output LLM providers over HTTP.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/target/scriptcheck/internal/observability/metrics"
)

const (
	defaultRetryBaseDelay = time.Second
	defaultRetryMaxDelay  = 10 * time.Second
	maxResponseBytes      = 4 << 20
)

// StatusError is a non-2xx provider response.
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: http %d: %s", e.Provider, e.StatusCode, snippet(e.Body))
}

// ErrEmptyContent is returned when a provider answers without content.
var ErrEmptyContent = errors.New("llm returned empty content")

// transport is the HTTP and retry plumbing shared by all providers.
type transport struct {
	provider    string
	httpClient  *http.Client
	headers     map[string]string
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
	sleep       func(ctx context.Context, d time.Duration) error
	logger      *slog.Logger
}

// postJSON sends body to url and decodes a 2xx reply into out, retrying
// timeouts, 408, 429 and 5xx responses up to maxAttempts.
func (t *transport) postJSON(ctx context.Context, url string, body, out any) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%s: encode request: %w", t.provider, err)
	}

	attempts := max(t.maxAttempts, 1)
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		start := time.Now()
		lastErr = t.postOnce(ctx, url, encoded, out)
		result := metrics.ResultSuccess
		if lastErr != nil {
			result = metrics.ResultError
		}
		metrics.EmitLLMRequest(t.provider, result, time.Since(start))
		if lastErr == nil {
			return nil
		}

		delay, retry := t.retryDelay(ctx, lastErr, attempt, attempts)
		if !retry {
			return lastErr
		}
		t.logger.WarnContext(ctx, "llm request failed; retrying",
			"provider", t.provider, "attempt", attempt, "backoff", delay, "error", lastErr)
		if err := t.sleep(ctx, delay); err != nil {
			return err
		}
	}
	return fmt.Errorf("%s: failed after %d attempts: %w", t.provider, attempts, lastErr)
}

func (t *transport) postOnce(ctx context.Context, url string, encoded []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("%s: build request: %w", t.provider, err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range t.headers {
		req.Header.Set(k, v)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: http error: %w", t.provider, err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			t.logger.Warn("llm response body close error", "provider", t.provider, "error", cerr)
		}
	}()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("%s: read body: %w", t.provider, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		retryAfter, _ := parseRetryAfter(resp.Header.Get("Retry-After"))
		return &StatusError{Provider: t.provider, StatusCode: resp.StatusCode, Body: string(raw), RetryAfter: retryAfter}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s: decode response: %w", t.provider, err)
	}
	return nil
}

func (t *transport) retryDelay(ctx context.Context, err error, attempt, maxAttempts int) (time.Duration, bool) {
	if attempt >= maxAttempts || ctx.Err() != nil {
		return 0, false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return 0, false
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode == http.StatusRequestTimeout,
			statusErr.StatusCode == http.StatusTooManyRequests,
			statusErr.StatusCode >= http.StatusInternalServerError:
			if statusErr.RetryAfter > 0 {
				return min(statusErr.RetryAfter, t.maxDelay), true
			}
			return t.backoff(attempt), true
		default:
			return 0, false
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return t.backoff(attempt), true
	}
	return 0, false
}

// backoff doubles from baseDelay per attempt, capped at maxDelay.
func (t *transport) backoff(attempt int) time.Duration {
	delay := t.baseDelay
	for i := 1; i < attempt; i++ {
		if delay > t.maxDelay/2 {
			return t.maxDelay
		}
		delay *= 2
	}
	return min(delay, t.maxDelay)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func parseRetryAfter(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds >= 0 {
		return time.Duration(seconds) * time.Second, true
	}
	if when, err := http.ParseTime(value); err == nil {
		if d := time.Until(when); d > 0 {
			return d, true
		}
	}
	return 0, false
}

// snippet shortens provider bodies for error messages.
func snippet(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return "<empty>"
	}
	const limit = 160
	if r := []rune(s); len(r) > limit {
		return string(r[:limit]) + "..."
	}
	return s
}

// cleanJSON strips markdown fences and prose around a JSON reply and checks
// that the result parses.
func cleanJSON(provider, content string) (json.RawMessage, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return nil, fmt.Errorf("%s: %w", provider, ErrEmptyContent)
	}
	if strings.HasPrefix(trimmed, "```") {
		body := strings.TrimLeft(trimmed[3:], " \t\r\n")
		if len(body) >= 4 && strings.EqualFold(body[:4], "json") {
			body = body[4:]
		}
		if idx := strings.LastIndex(body, "```"); idx >= 0 {
			body = body[:idx]
		}
		trimmed = strings.TrimSpace(body)
	}
	if !json.Valid([]byte(trimmed)) {
		start, end := strings.Index(trimmed, "{"), strings.LastIndex(trimmed, "}")
		if start < 0 || end <= start || !json.Valid([]byte(trimmed[start:end+1])) {
			return nil, fmt.Errorf("%s: reply is not valid JSON: %s", provider, snippet(trimmed))
		}
		trimmed = trimmed[start : end+1]
	}
	return json.RawMessage(trimmed), nil
}
