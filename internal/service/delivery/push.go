// Package delivery pushes finished reports to the external consumer.
package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	jmespath "github.com/jmespath-community/go-jmespath"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/target/scriptcheck/config"
	"github.com/target/scriptcheck/internal/core"
	"github.com/target/scriptcheck/internal/domain/model"
)

const (
	reportsPath          = "/reports/security"
	maxResponseBodyBytes = 4 * 1024
)

// ErrNotConfigured is returned by Push when no push endpoint is set.
var ErrNotConfigured = errors.New("push delivery is not configured")

// StatusError is a non-2xx answer from the push endpoint.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("push endpoint returned status %d", e.StatusCode)
}

// Temporary reports whether resending the same request could succeed.
func (e *StatusError) Temporary() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests || e.StatusCode == http.StatusRequestTimeout
}

// IsPermanent reports whether err is a push rejection that will not change
// on retry, such as a 400 or 401 from the endpoint.
func IsPermanent(err error) bool {
	if errors.Is(err, ErrNotConfigured) {
		return true
	}
	var se *StatusError
	return errors.As(err, &se) && !se.Temporary()
}

// Options configures a Pusher.
type Options struct {
	BaseURL string
	// Token is sent as a static bearer token unless ClientCredentials is set.
	Token string
	// ClientCredentials, when set, authenticates through an OAuth2 token endpoint.
	ClientCredentials *clientcredentials.Config
	// BodyExpression is a JMESPath expression applied to the report JSON.
	BodyExpression string
	HTTPClient     *http.Client
	Timeout        time.Duration
	Logger         *slog.Logger
}

// Pusher POSTs reports to {BaseURL}/reports/security.
type Pusher struct {
	endpoint string
	token    string
	expr     string
	http     *http.Client
	logger   *slog.Logger
}

var _ core.ReportPusher = (*Pusher)(nil)

// NewPusher validates opts and builds a Pusher. An empty BaseURL yields a
// Pusher whose Push always fails with ErrNotConfigured.
func NewPusher(opts Options) (*Pusher, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pusher{
		token:  opts.Token,
		expr:   strings.TrimSpace(opts.BodyExpression),
		logger: logger.With("component", "report_pusher"),
	}

	if base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/"); base != "" {
		u, err := url.Parse(base)
		if err != nil {
			return nil, fmt.Errorf("invalid push base URL: %w", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return nil, fmt.Errorf("invalid push URL scheme: %s", u.Scheme)
		}
		if strings.TrimSpace(u.Host) == "" {
			return nil, errors.New("invalid push URL: missing host")
		}
		p.endpoint = base + reportsPath
	}

	if p.expr != "" {
		if _, err := jmespath.Compile(p.expr); err != nil {
			return nil, fmt.Errorf("invalid body JMESPath: %w", err)
		}
	}

	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	if opts.ClientCredentials != nil {
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, hc)
		oc := opts.ClientCredentials.Client(ctx)
		oc.Timeout = hc.Timeout
		hc = oc
		p.token = ""
	}
	p.http = hc
	return p, nil
}

// NewPusherFromConfig builds a Pusher from environment configuration.
func NewPusherFromConfig(cfg config.DeliveryConfig, logger *slog.Logger) (*Pusher, error) {
	opts := Options{
		BaseURL:        cfg.PushBaseURL,
		Token:          cfg.PushToken,
		BodyExpression: cfg.BodyExpression,
		Timeout:        cfg.Timeout,
		Logger:         logger,
	}
	if cfg.UsesClientCredentials() {
		opts.ClientCredentials = &clientcredentials.Config{
			ClientID:     cfg.OAuthClientID,
			ClientSecret: cfg.OAuthClientSecret,
			TokenURL:     cfg.OAuthTokenURL,
			Scopes:       cfg.OAuthScopes,
		}
	}
	return NewPusher(opts)
}

// Configured reports whether a push endpoint is set.
func (p *Pusher) Configured() bool { return p.endpoint != "" }

// Push sends the report. The report id is the Idempotency-Key so a retried
// delivery can be deduplicated by the receiver.
func (p *Pusher) Push(ctx context.Context, report *model.SecurityReport) (*core.PushResult, error) {
	if !p.Configured() {
		return nil, ErrNotConfigured
	}
	body, err := p.body(report)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", report.ReportID)
	if p.token != "" {
		req.Header.Set("Authorization", "Bearer "+p.token)
	}

	resp, err := p.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	respBody, readErr := readResponseBody(resp.Body)
	if closeErr := resp.Body.Close(); closeErr != nil && readErr == nil {
		readErr = closeErr
	}
	if readErr != nil {
		return nil, fmt.Errorf("read response body: %w", readErr)
	}

	result := &core.PushResult{StatusCode: resp.StatusCode, Body: respBody}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return result, &StatusError{StatusCode: resp.StatusCode, Body: respBody}
	}
	p.logger.InfoContext(ctx, "report pushed", "report_id", report.ReportID, "status", resp.StatusCode)
	return result, nil
}

func (p *Pusher) body(report *model.SecurityReport) ([]byte, error) {
	payload, err := json.Marshal(report)
	if err != nil {
		return nil, fmt.Errorf("marshal report: %w", err)
	}
	if p.expr == "" {
		return payload, nil
	}
	var data any
	if err := json.Unmarshal(payload, &data); err != nil {
		return nil, fmt.Errorf("invalid report JSON: %w", err)
	}
	res, err := jmespath.Search(p.expr, data)
	if err != nil {
		return nil, fmt.Errorf("evaluate body JMESPath: %w", err)
	}
	b, err := json.Marshal(res)
	if err != nil {
		return nil, fmt.Errorf("marshal derived body: %w", err)
	}
	return b, nil
}

func readResponseBody(body io.Reader) (string, error) {
	data, err := io.ReadAll(io.LimitReader(body, maxResponseBodyBytes+1))
	if len(data) > maxResponseBodyBytes {
		data = data[:maxResponseBodyBytes]
		if _, drainErr := io.Copy(io.Discard, body); drainErr != nil && err == nil {
			err = drainErr
		}
	}
	return string(data), err
}
