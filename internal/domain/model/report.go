package model

import "time"

// Report engine identifiers embedded in every report.
const (
	EngineVersion   = "0.5.0"
	TaxonomyVersion = "1.0"
)

// SecurityReport is the aggregated result of one job.
type SecurityReport struct {
	ReportID              string            `json:"report_id"`
	ProjectID             string            `json:"project_id"`
	ScriptFormat          ScriptFormat      `json:"script_format"`
	CreatedAt             time.Time         `json:"created_at"`
	RiskSummary           map[RiskLevel]int `json:"risk_summary"`
	TotalFindings         int               `json:"total_findings"`
	Findings              []Finding         `json:"findings"`
	ProcessingTimeSeconds float64           `json:"processing_time_seconds"`
	Metadata              map[string]any    `json:"metadata"`
}

// ReportPackage is what the transient store holds for a finished report.
type ReportPackage struct {
	Report              SecurityReport `json:"report"`
	ArtifactBase64      *string        `json:"artifact_base64"`
	ArtifactContentType string         `json:"artifact_content_type,omitempty"`
}

// ReportMetadata is the durable record of a report. The report body itself
// lives only in the transient store.
type ReportMetadata struct {
	ReportID              string         `json:"report_id"`
	JobID                 string         `json:"job_id"`
	ProjectID             string         `json:"project_id"`
	UserID                string         `json:"user_id"`
	ScriptFormat          ScriptFormat   `json:"script_format"`
	IsRetrieved           bool           `json:"is_retrieved"`
	RetrievedAt           *time.Time     `json:"retrieved_at,omitempty"`
	TotalFindings         int            `json:"total_findings"`
	ProcessingTimeSeconds float64        `json:"processing_time_seconds"`
	ReportRefKey          *string        `json:"-"`
	DeliveryMode          DeliveryMode   `json:"delivery_mode"`
	ExtraMetadata         map[string]any `json:"metadata"`
	CreatedAt             time.Time      `json:"created_at"`
}

// CreateReportRequest records a finished report.
type CreateReportRequest struct {
	ReportID              string
	JobID                 string
	ProjectID             string
	UserID                string
	ScriptFormat          ScriptFormat
	TotalFindings         int
	ProcessingTimeSeconds float64
	ReportRefKey          string
	DeliveryMode          DeliveryMode
	ExtraMetadata         map[string]any
}

// ReportResponse is returned by one-shot retrieval.
type ReportResponse struct {
	Report              SecurityReport `json:"report"`
	ArtifactBase64      *string        `json:"artifact_base64"`
	ArtifactContentType string         `json:"artifact_content_type,omitempty"`
	Message             string         `json:"message"`
}
