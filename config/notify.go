package config

import (
	"strings"
	"time"
)

// NotifyConfig configures operator alerts for workflow runs that end in a
// terminal failure. Alerts carry identifiers only, never script content.
type NotifyConfig struct {
	SlackWebhookURL     string        `env:"SLACK_WEBHOOK_URL"`
	SlackChannel        string        `env:"SLACK_CHANNEL"`
	SlackUsername       string        `env:"SLACK_USERNAME"        envDefault:"scriptcheck"`
	PagerDutyRoutingKey string        `env:"PAGERDUTY_ROUTING_KEY"`
	Timeout             time.Duration `env:"TIMEOUT"               envDefault:"5s"`
	RetryLimit          int           `env:"RETRY_LIMIT"           envDefault:"2"`
}

// Sanitize applies guardrails to notification configuration values.
func (n *NotifyConfig) Sanitize() {
	n.SlackWebhookURL = strings.TrimSpace(n.SlackWebhookURL)
	n.PagerDutyRoutingKey = strings.TrimSpace(n.PagerDutyRoutingKey)
	if n.Timeout <= 0 {
		n.Timeout = 5 * time.Second
	}
	if n.RetryLimit < 0 {
		n.RetryLimit = 0
	}
	if n.RetryLimit > 5 {
		n.RetryLimit = 5
	}
}

// Enabled reports whether any sink is configured.
func (n *NotifyConfig) Enabled() bool {
	return n.SlackWebhookURL != "" || n.PagerDutyRoutingKey != ""
}
