package testutil

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/target/scriptcheck/internal/domain/model"
)

// JobRequestBuilder provides a fluent interface for building CreateJobRequest objects for testing.
type JobRequestBuilder struct {
	req *model.CreateJobRequest
}

// NewJobRequest creates a JobRequestBuilder with a fresh job id and sensible defaults.
func NewJobRequest() *JobRequestBuilder {
	return &JobRequestBuilder{
		req: &model.CreateJobRequest{
			JobID:         uuid.NewString(),
			ProjectID:     "proj-1",
			ScriptFormat:  model.ScriptFormatFDX,
			UserID:        "user-1",
			Priority:      model.DefaultPriority,
			DeliveryMode:  model.DeliveryPull,
			ExtraMetadata: map[string]any{},
		},
	}
}

// WithUser sets the owning user.
func (b *JobRequestBuilder) WithUser(userID string) *JobRequestBuilder {
	b.req.UserID = userID
	return b
}

// WithFormat sets the script format.
func (b *JobRequestBuilder) WithFormat(f model.ScriptFormat) *JobRequestBuilder {
	b.req.ScriptFormat = f
	return b
}

// WithPriority sets the job priority.
func (b *JobRequestBuilder) WithPriority(priority int) *JobRequestBuilder {
	b.req.Priority = priority
	return b
}

// WithIdempotencyKey sets the idempotency key.
func (b *JobRequestBuilder) WithIdempotencyKey(key string) *JobRequestBuilder {
	b.req.IdempotencyKey = &key
	return b
}

// WithDelivery sets the delivery mode.
func (b *JobRequestBuilder) WithDelivery(mode model.DeliveryMode) *JobRequestBuilder {
	b.req.DeliveryMode = mode
	return b
}

// Build returns the constructed CreateJobRequest.
func (b *JobRequestBuilder) Build() *model.CreateJobRequest {
	return b.req
}

// RunRequestBuilder builds CreateRunRequest values for queue tests.
type RunRequestBuilder struct {
	req *model.CreateRunRequest
}

// NewRunRequest creates a RunRequestBuilder for a security-check run.
func NewRunRequest() *RunRequestBuilder {
	return &RunRequestBuilder{
		req: &model.CreateRunRequest{
			ID:           uuid.NewString(),
			WorkflowType: model.WorkflowTypeSecurityCheck,
			Priority:     model.DefaultPriority,
			Input:        json.RawMessage(`{"ref_key":"eki:buf:test"}`),
			MaxRetries:   3,
			Timeout:      time.Hour,
		},
	}
}

// WithID sets the run id.
func (b *RunRequestBuilder) WithID(id string) *RunRequestBuilder {
	b.req.ID = id
	return b
}

// WithPriority sets the run priority.
func (b *RunRequestBuilder) WithPriority(priority int) *RunRequestBuilder {
	b.req.Priority = priority
	return b
}

// WithMaxRetries sets the retry budget.
func (b *RunRequestBuilder) WithMaxRetries(n int) *RunRequestBuilder {
	b.req.MaxRetries = n
	return b
}

// WithTimeout sets the overall run deadline.
func (b *RunRequestBuilder) WithTimeout(d time.Duration) *RunRequestBuilder {
	b.req.Timeout = d
	return b
}

// Build returns the constructed CreateRunRequest.
func (b *RunRequestBuilder) Build() *model.CreateRunRequest {
	return b.req
}
