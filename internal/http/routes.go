package httpx

import (
	"log/slog"
	"net/http"

	"github.com/target/scriptcheck/config"
	"github.com/target/scriptcheck/internal/observability/metrics"
)

// RouterServices holds everything the HTTP router needs.
type RouterServices struct {
	Submissions Submitter
	Jobs        JobQuerier
	Reports     ReportRetriever
	Auth        Authenticator
	// Ready is evaluated by /readyz.
	Ready []ReadinessCheck

	HTTP      config.HTTPConfig
	RateLimit config.RateLimitConfig
	Metrics   config.MetricsConfig
	Logger    *slog.Logger
}

// NewRouter wires the API routes. Everything under /v1 is authenticated,
// rate limited per user and body-capped.
func NewRouter(services RouterServices) http.Handler {
	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}
	mux := http.NewServeMux()

	h := &SecurityHandlers{
		Submissions: services.Submissions,
		Jobs:        services.Jobs,
		Reports:     services.Reports,
		Logger:      logger,
	}

	var limiter *UserRateLimiter
	if services.RateLimit.Enabled {
		limiter = NewUserRateLimiter(services.RateLimit.RequestsPerMinute, services.RateLimit.Burst, services.RateLimit.IdleTTL)
	}
	api := func(fn http.HandlerFunc) http.Handler {
		var next http.Handler = fn
		next = RateLimit(limiter)(next)
		next = RequireIdentity(services.Auth, logger)(next)
		return LimitBody(services.HTTP.MaxBodyBytes)(next)
	}

	mux.Handle("POST "+PathSubmit, api(h.SubmitCheck))
	mux.Handle("GET "+PathJobs, api(h.ListJobs))
	mux.Handle("GET "+PathJob, api(h.GetJob))
	mux.Handle("POST "+PathCancel, api(h.CancelJob))
	mux.Handle("GET "+PathReport, api(h.GetReport))

	mux.HandleFunc("GET "+PathHealthz, healthHandler)
	mux.HandleFunc("GET "+PathReadyz, readyHandler(services.Ready, logger))
	if services.Metrics.Enabled {
		path := services.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		mux.Handle("GET "+path, metrics.Handler())
	}

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, ErrorParams{Code: http.StatusNotFound, ErrCode: "not_found", Err: errNoRoute})
	})
	return mux
}

// NewHandler wraps the router with the server-wide middleware.
// Metrics must sit directly outside the mux so r.Pattern is visible to it.
func NewHandler(services RouterServices) http.Handler {
	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}
	h := NewRouter(services)
	if services.HTTP.CompressionEnabled {
		h = Compression(services.HTTP.CompressionLevel)(h)
	}
	h = Metrics()(h)
	h = Logging(logger)(h)
	h = RequestID()(h)
	return Recover(logger)(h)
}
