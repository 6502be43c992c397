package httpx

import "errors"

// Route paths of the public API.
const (
	PathSubmit  = "/v1/security/check:async"
	PathJobs    = "/v1/security/jobs"
	PathJob     = "/v1/security/jobs/{job_id}"
	PathCancel  = "/v1/security/jobs/{job_id}/cancel"
	PathReport  = "/v1/security/reports/{report_id}"
	PathHealthz = "/healthz"
	PathReadyz  = "/readyz"
)

// Request headers read by the API.
const (
	HeaderAPIKey         = "X-API-Key"
	HeaderIdempotencyKey = "Idempotency-Key"
	HeaderRequestID      = "X-Request-ID"
)

// Multipart form limits.
const (
	// multipartMemory is held in memory before parts spill to disk.
	multipartMemory = 8 << 20
	formFileField   = "file"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

var errNoRoute = errors.New("no such route") //nolint:gochecknoglobals // sentinel
