package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmitRunLifecycle_LabelsErrorClass(t *testing.T) {
	before := testutil.ToFloat64(runTransitions.WithLabelValues("security_check", "fail", ResultError, "timeout"))

	EmitRunLifecycle(RunMetric{
		WorkflowType: "security_check",
		Transition:   "fail",
		Result:       ResultError,
		Duration:     time.Second,
		Err:          context.DeadlineExceeded,
	})

	after := testutil.ToFloat64(runTransitions.WithLabelValues("security_check", "fail", ResultError, "timeout"))
	assert.InDelta(t, 1, after-before, 0.0001)
}

func TestEmitActivityAttempt(t *testing.T) {
	before := testutil.ToFloat64(activityAttempts.WithLabelValues("parse-structured", ResultRetry, "errors_errorstring"))
	EmitActivityAttempt(ActivityMetric{Activity: "parse-structured", Result: ResultRetry, Err: errors.New("boom")})
	after := testutil.ToFloat64(activityAttempts.WithLabelValues("parse-structured", ResultRetry, "errors_errorstring"))
	assert.InDelta(t, 1, after-before, 0.0001)
}

func TestEmitReaped_IgnoresZero(t *testing.T) {
	before := testutil.ToFloat64(reaped.WithLabelValues("delete"))
	EmitReaped("delete", 0)
	EmitReaped("delete", 3)
	assert.InDelta(t, 3, testutil.ToFloat64(reaped.WithLabelValues("delete"))-before, 0.0001)
}

func TestHandlerExposesCollectors(t *testing.T) {
	EmitSubmission("fdx", false)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "scriptcheck_submissions_total")
}
