// Package failurenotifier fans run failure alerts out to the configured sinks.
package failurenotifier

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/target/scriptcheck/config"
	"github.com/target/scriptcheck/internal/observability/notify"
	"github.com/target/scriptcheck/internal/observability/notify/pagerduty"
	"github.com/target/scriptcheck/internal/observability/notify/slack"
)

// SinkRegistration pairs a sink implementation with a name for logging.
type SinkRegistration struct {
	Name string
	Sink notify.Sink
}

// Options configures the failure notifier service.
type Options struct {
	Logger *slog.Logger
	Sinks  []SinkRegistration
	// SendTimeout bounds one fan-out; defaults to 15s.
	SendTimeout time.Duration
}

// Service dispatches run failure events to all registered sinks.
type Service struct {
	logger  *slog.Logger
	sinks   []SinkRegistration
	timeout time.Duration
}

// NewService constructs a failure notifier. Nil sinks are skipped.
func NewService(opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := opts.SendTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	sinks := make([]SinkRegistration, 0, len(opts.Sinks))
	for _, entry := range opts.Sinks {
		if entry.Sink == nil {
			continue
		}
		entry.Name = notify.Fallback(entry.Name, "sink")
		sinks = append(sinks, entry)
	}

	return &Service{
		logger:  logger.With("component", "failure_notifier"),
		sinks:   sinks,
		timeout: timeout,
	}
}

// NewFromConfig builds the sinks named in cfg. Sinks that fail to build are
// logged and skipped.
func NewFromConfig(cfg config.NotifyConfig, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	var sinks []SinkRegistration
	if cfg.SlackWebhookURL != "" {
		client, err := slack.NewClient(slack.Config{
			WebhookURL: cfg.SlackWebhookURL,
			Channel:    cfg.SlackChannel,
			Username:   cfg.SlackUsername,
			Timeout:    cfg.Timeout,
			RetryLimit: cfg.RetryLimit,
		})
		if err != nil {
			logger.Warn("slack notifications disabled", "error", err)
		} else {
			sinks = append(sinks, SinkRegistration{Name: "slack", Sink: client})
		}
	}
	if cfg.PagerDutyRoutingKey != "" {
		client, err := pagerduty.NewClient(pagerduty.Config{
			RoutingKey: cfg.PagerDutyRoutingKey,
			Timeout:    cfg.Timeout,
			RetryLimit: cfg.RetryLimit,
		})
		if err != nil {
			logger.Warn("pagerduty notifications disabled", "error", err)
		} else {
			sinks = append(sinks, SinkRegistration{Name: "pagerduty", Sink: client})
		}
	}
	return NewService(Options{Logger: logger, Sinks: sinks})
}

// NotifyRunFailure sends payload to every sink concurrently and waits for
// them. Delivery errors are logged, never returned.
func (s *Service) NotifyRunFailure(ctx context.Context, payload notify.RunFailurePayload) {
	if len(s.sinks) == 0 {
		return
	}
	if payload.Severity == "" {
		payload.Severity = notify.SeverityCritical
	}
	if payload.OccurredAt.IsZero() {
		payload.OccurredAt = time.Now()
	}

	// Alerts still go out while the worker is shutting down.
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	var wg sync.WaitGroup
	for _, entry := range s.sinks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := entry.Sink.SendRunFailure(sendCtx, payload); err != nil {
				s.logger.ErrorContext(ctx, "failure notifier delivery error",
					"sink", entry.Name,
					"workflow_id", payload.RunID,
					"error", err,
				)
			}
		}()
	}
	wg.Wait()
}

// Enabled reports whether the notifier has any active sinks.
func (s *Service) Enabled() bool {
	return len(s.sinks) > 0
}
