package config

import (
	"strings"
	"time"
)

// DeliveryConfig configures how finished reports reach consumers.
type DeliveryConfig struct {
	// DefaultMode applies when a submission does not choose one: pull or push.
	DefaultMode string `env:"DEFAULT_MODE" envDefault:"pull"`
	// PushBaseURL is the external system receiving POST {base}/reports/security.
	PushBaseURL string `env:"PUSH_BASE_URL"`
	// PushToken is a static bearer token; ignored when client credentials are set.
	PushToken string `env:"PUSH_TOKEN"`
	// OAuth2 client-credentials for the push endpoint.
	OAuthTokenURL     string   `env:"OAUTH_TOKEN_URL"`
	OAuthClientID     string   `env:"OAUTH_CLIENT_ID"`
	OAuthClientSecret string   `env:"OAUTH_CLIENT_SECRET"`
	OAuthScopes       []string `env:"OAUTH_SCOPES"        envSeparator:" "`
	// BodyExpression is an optional JMESPath expression applied to the report before pushing.
	BodyExpression string        `env:"BODY_EXPRESSION"`
	Timeout        time.Duration `env:"TIMEOUT"         envDefault:"30s"`
}

// Sanitize applies guardrails to delivery configuration values.
func (d *DeliveryConfig) Sanitize() {
	d.DefaultMode = strings.ToLower(strings.TrimSpace(d.DefaultMode))
	if d.DefaultMode != "push" {
		d.DefaultMode = "pull"
	}
	d.PushBaseURL = strings.TrimRight(strings.TrimSpace(d.PushBaseURL), "/")
	d.BodyExpression = strings.TrimSpace(d.BodyExpression)
	if d.Timeout <= 0 {
		d.Timeout = 30 * time.Second
	}
}

// UsesClientCredentials reports whether OAuth2 client credentials are configured.
func (d *DeliveryConfig) UsesClientCredentials() bool {
	return d.OAuthTokenURL != "" && d.OAuthClientID != ""
}
