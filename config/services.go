package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ServiceMode represents the available service modes.
type ServiceMode string

const (
	// ServiceModeHTTP runs the HTTP API.
	ServiceModeHTTP ServiceMode = "http"
	// ServiceModeWorker runs the durable workflow worker.
	ServiceModeWorker ServiceMode = "worker"
	// ServiceModeReaper runs the workflow run reaper.
	ServiceModeReaper ServiceMode = "reaper"
)

// ValidServiceModes returns all valid service mode names.
func ValidServiceModes() []ServiceMode {
	return []ServiceMode{ServiceModeHTTP, ServiceModeWorker, ServiceModeReaper}
}

// ParseServices parses a comma-delimited string of service names and returns the enabled services.
// It validates that all service names are valid and returns an error if any are invalid.
func ParseServices(servicesStr string) (map[ServiceMode]bool, error) {
	services := make(map[ServiceMode]bool)

	if servicesStr == "" {
		return services, errors.New("at least one service must be specified")
	}

	for _, part := range strings.Split(servicesStr, ",") {
		serviceName := strings.TrimSpace(part)
		if serviceName == "" {
			continue
		}

		mode := ServiceMode(serviceName)
		switch mode {
		case ServiceModeHTTP, ServiceModeWorker, ServiceModeReaper:
			services[mode] = true
		default:
			return nil, fmt.Errorf("invalid service name: %q (valid options: http, worker, reaper)", serviceName)
		}
	}

	if len(services) == 0 {
		return nil, errors.New("at least one valid service must be specified")
	}

	return services, nil
}

// WorkerConfig contains workflow worker configuration.
type WorkerConfig struct {
	// Concurrency is the number of workflow runs executed at once.
	Concurrency int `env:"CONCURRENCY" envDefault:"4"`

	// ActivityConcurrency bounds activities in flight across all runs of this process.
	ActivityConcurrency int `env:"ACTIVITY_CONCURRENCY" envDefault:"4"`

	// Lease is how long a reserved run stays owned without a heartbeat.
	Lease time.Duration `env:"LEASE" envDefault:"60s"`

	// HeartbeatInterval must be comfortably shorter than Lease.
	HeartbeatInterval time.Duration `env:"HEARTBEAT_INTERVAL" envDefault:"15s"`

	// WorkflowTimeout is the execution budget of one run, measured from submission.
	WorkflowTimeout time.Duration `env:"WORKFLOW_TIMEOUT" envDefault:"60m"`

	// MaxRunRetries bounds run-level retries after infrastructure failures.
	MaxRunRetries int `env:"MAX_RUN_RETRIES" envDefault:"3"`

	// RetryDelay is the delay before a failed run is eligible again.
	RetryDelay time.Duration `env:"RETRY_DELAY" envDefault:"30s"`
}

// Sanitize applies guardrails to worker configuration values.
func (w *WorkerConfig) Sanitize() {
	if w.Concurrency < 1 {
		w.Concurrency = 1
	}
	if w.ActivityConcurrency < 1 {
		w.ActivityConcurrency = 1
	}
	if w.Lease < 10*time.Second {
		w.Lease = 10 * time.Second
	}
	if w.HeartbeatInterval <= 0 || w.HeartbeatInterval > w.Lease/2 {
		w.HeartbeatInterval = w.Lease / 3
	}
	if w.WorkflowTimeout < 5*time.Minute {
		w.WorkflowTimeout = 5 * time.Minute
	}
	if w.MaxRunRetries < 1 {
		w.MaxRunRetries = 1
	}
	if w.RetryDelay < time.Second {
		w.RetryDelay = time.Second
	}
}

// ReaperConfig contains workflow run reaper configuration.
type ReaperConfig struct {
	// Interval is the reaper tick interval.
	Interval time.Duration `env:"INTERVAL" envDefault:"5m"`

	// PendingMaxAge is the maximum age for pending runs before they are marked as failed.
	PendingMaxAge time.Duration `env:"PENDING_MAX_AGE" envDefault:"2h"`

	// Retention is how long finished runs and their history are kept.
	Retention time.Duration `env:"RETENTION" envDefault:"168h"` // 7 days

	// BatchSize is the maximum number of rows to process per operation.
	BatchSize int `env:"BATCH_SIZE" envDefault:"1000"`
}

// Sanitize applies guardrails to reaper configuration values.
func (r *ReaperConfig) Sanitize() {
	if r.Interval < 1*time.Minute {
		r.Interval = 1 * time.Minute
	}
	if r.PendingMaxAge < 5*time.Minute {
		r.PendingMaxAge = 5 * time.Minute
	}
	if r.Retention < 1*time.Hour {
		r.Retention = 1 * time.Hour
	}
	if r.BatchSize < 1 {
		r.BatchSize = 1
	}
	if r.BatchSize > 10000 {
		r.BatchSize = 10000
	}
}
