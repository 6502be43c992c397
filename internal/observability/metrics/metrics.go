// Package metrics registers the Prometheus collectors of the safety-check service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	obserrors "github.com/target/scriptcheck/internal/observability/errors"
)

// Result constants for metric labels.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultRetry   = "retry"
	ResultNoop    = "noop"
)

var (
	runTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scriptcheck_workflow_run_transitions_total",
		Help: "Workflow run lifecycle transitions by type, transition and result.",
	}, []string{"workflow_type", "transition", "result", "error_class"})

	runDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "scriptcheck_workflow_run_duration_seconds",
		Help:    "Wall time of one workflow execution attempt.",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
	}, []string{"workflow_type", "result"})

	activityAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scriptcheck_activity_attempts_total",
		Help: "Activity attempts by activity and result.",
	}, []string{"activity", "result", "error_class"})

	activityDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "scriptcheck_activity_duration_seconds",
		Help:    "Duration of one activity attempt.",
		Buckets: prometheus.ExponentialBuckets(0.01, 3, 10),
	}, []string{"activity"})

	activityReplays = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scriptcheck_activity_replays_total",
		Help: "Activity results served from the execution history instead of running.",
	}, []string{"activity"})

	llmRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scriptcheck_llm_requests_total",
		Help: "Structured generation calls by provider and result.",
	}, []string{"provider", "result"})

	llmDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "scriptcheck_llm_request_duration_seconds",
		Help:    "Latency of structured generation calls.",
		Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80, 160},
	}, []string{"provider"})

	deliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scriptcheck_report_deliveries_total",
		Help: "Report deliveries by mode and result.",
	}, []string{"mode", "result"})

	retrievals = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scriptcheck_report_retrievals_total",
		Help: "One-shot report retrievals by outcome.",
	}, []string{"outcome"})

	submissions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scriptcheck_submissions_total",
		Help: "Accepted submissions by format and whether they were idempotent replays.",
	}, []string{"format", "replayed"})

	reaped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scriptcheck_reaper_runs_total",
		Help: "Workflow runs failed or deleted by the reaper.",
	}, []string{"action"})

	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scriptcheck_http_requests_total",
		Help: "HTTP requests by method, route and status.",
	}, []string{"method", "path", "status"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "scriptcheck_http_request_duration_seconds",
		Help:    "HTTP request latency by method and route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})
)

// RunMetric captures a workflow run lifecycle event.
type RunMetric struct {
	WorkflowType string
	Transition   string
	Result       string
	Duration     time.Duration
	Err          error
}

// EmitRunLifecycle records one run transition and, when set, its duration.
func EmitRunLifecycle(in RunMetric) {
	class := ""
	if in.Err != nil && in.Result != ResultSuccess {
		class = obserrors.Classify(in.Err)
	}
	runTransitions.WithLabelValues(in.WorkflowType, in.Transition, in.Result, class).Inc()
	if in.Duration > 0 {
		runDuration.WithLabelValues(in.WorkflowType, in.Result).Observe(in.Duration.Seconds())
	}
}

// ActivityMetric captures one activity attempt.
type ActivityMetric struct {
	Activity string
	Result   string
	Duration time.Duration
	Err      error
}

// EmitActivityAttempt records one activity attempt.
func EmitActivityAttempt(in ActivityMetric) {
	class := ""
	if in.Err != nil {
		class = obserrors.Classify(in.Err)
	}
	activityAttempts.WithLabelValues(in.Activity, in.Result, class).Inc()
	activityDuration.WithLabelValues(in.Activity).Observe(in.Duration.Seconds())
}

// EmitActivityReplay records an activity result served from history.
func EmitActivityReplay(activity string) {
	activityReplays.WithLabelValues(activity).Inc()
}

// EmitLLMRequest records one provider call.
func EmitLLMRequest(provider, result string, d time.Duration) {
	llmRequests.WithLabelValues(provider, result).Inc()
	llmDuration.WithLabelValues(provider).Observe(d.Seconds())
}

// EmitDelivery records a report delivery outcome.
func EmitDelivery(mode, result string) {
	deliveries.WithLabelValues(mode, result).Inc()
}

// EmitRetrieval records a one-shot retrieval outcome
// (success, expired, already_retrieved, not_found, error).
func EmitRetrieval(outcome string) {
	retrievals.WithLabelValues(outcome).Inc()
}

// EmitSubmission records an accepted submission.
func EmitSubmission(format string, replayed bool) {
	submissions.WithLabelValues(format, strconv.FormatBool(replayed)).Inc()
}

// EmitReaped records runs handled by the reaper.
func EmitReaped(action string, n int64) {
	if n > 0 {
		reaped.WithLabelValues(action).Add(float64(n))
	}
}

// ObserveHTTP records one served request. path must already be normalised.
func ObserveHTTP(method, path string, status int, d time.Duration) {
	httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(method, path).Observe(d.Seconds())
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
