package model

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validJobRequest() CreateJobRequest {
	return CreateJobRequest{
		JobID:        "4b6f3b34-1f0b-4df4-9bb1-0d7f1f2f4a11",
		ProjectID:    "proj_42-a",
		ScriptFormat: ScriptFormatFDX,
		UserID:       "user-1",
		Priority:     DefaultPriority,
		DeliveryMode: DeliveryPull,
	}
}

func TestCreateJobRequest_Validate(t *testing.T) {
	empty := ""
	longKey := strings.Repeat("k", 256)

	tests := []struct {
		name    string
		mutate  func(r *CreateJobRequest)
		wantErr string
	}{
		{name: "valid", mutate: func(*CreateJobRequest) {}},
		{name: "missing job id", mutate: func(r *CreateJobRequest) { r.JobID = "" }, wantErr: "job_id"},
		{name: "bad project id", mutate: func(r *CreateJobRequest) { r.ProjectID = "proj; DROP TABLE" }, wantErr: "project_id"},
		{name: "long project id", mutate: func(r *CreateJobRequest) { r.ProjectID = strings.Repeat("a", 101) }, wantErr: "project_id"},
		{name: "bad format", mutate: func(r *CreateJobRequest) { r.ScriptFormat = "docx" }, wantErr: "format"},
		{name: "missing user", mutate: func(r *CreateJobRequest) { r.UserID = "" }, wantErr: "user_id"},
		{name: "priority too low", mutate: func(r *CreateJobRequest) { r.Priority = 0 }, wantErr: "priority"},
		{name: "priority too high", mutate: func(r *CreateJobRequest) { r.Priority = 11 }, wantErr: "priority"},
		{name: "bad delivery", mutate: func(r *CreateJobRequest) { r.DeliveryMode = "email" }, wantErr: "delivery"},
		{name: "empty idempotency key", mutate: func(r *CreateJobRequest) { r.IdempotencyKey = &empty }, wantErr: "idempotency_key"},
		{name: "long idempotency key", mutate: func(r *CreateJobRequest) { r.IdempotencyKey = &longKey }, wantErr: "idempotency_key"},
		{
			name:    "nested metadata",
			mutate:  func(r *CreateJobRequest) { r.ExtraMetadata = map[string]any{"a": map[string]any{}} },
			wantErr: "metadata",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := validJobRequest()
			tt.mutate(&r)
			err := r.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateMetadata(t *testing.T) {
	assert.NoError(t, ValidateMetadata(nil))
	assert.NoError(t, ValidateMetadata(map[string]any{"dept": "Regie", "count": float64(3), "ok": true, "none": nil}))
	assert.Error(t, ValidateMetadata(map[string]any{"bad key": "x"}))
	assert.Error(t, ValidateMetadata(map[string]any{"k": strings.Repeat("x", 1001)}))
	assert.Error(t, ValidateMetadata(map[string]any{"k": []any{1}}))

	many := map[string]any{}
	for i := 0; i < 51; i++ {
		many[strings.Repeat("k", i+1)] = i
	}
	assert.Error(t, ValidateMetadata(many))
}

func TestDeliveryMode_UnmarshalText(t *testing.T) {
	var m DeliveryMode
	require.NoError(t, m.UnmarshalText([]byte(" PUSH ")))
	assert.Equal(t, DeliveryPush, m)
	assert.Error(t, m.UnmarshalText([]byte("fax")))
}

func TestJobStatus_Terminal(t *testing.T) {
	assert.False(t, JobStatusPending.Terminal())
	assert.False(t, JobStatusRunning.Terminal())
	assert.True(t, JobStatusCompleted.Terminal())
	assert.True(t, JobStatusFailed.Terminal())
	assert.True(t, JobStatusCancelled.Terminal())
	assert.False(t, JobStatus("unknown").Valid())
}

func TestJobMetadata_StatusResponse(t *testing.T) {
	progress := 40
	j := JobMetadata{JobID: "j1", Status: JobStatusRunning, ProgressPercentage: &progress, DeliveryMode: DeliveryPush}
	resp := j.StatusResponse()
	assert.Equal(t, "j1", resp.JobID)
	assert.Equal(t, 40, *resp.ProgressPercentage)
	assert.Equal(t, DeliveryPush, resp.Metadata["delivery_mode"])
}

func TestParseScriptFormat(t *testing.T) {
	f, err := ParseScriptFormat(" PDF ")
	require.NoError(t, err)
	assert.Equal(t, ScriptFormatPDF, f)

	_, err = ParseScriptFormat("fountain")
	assert.Error(t, err)
}

func TestNormalizeEnums(t *testing.T) {
	assert.Equal(t, TimeOfDayNight, NormalizeTimeOfDay("night"))
	assert.Equal(t, TimeOfDayUnknown, NormalizeTimeOfDay("teatime"))
	assert.Equal(t, LocationIntExt, NormalizeLocationType("int/ext"))
	assert.Equal(t, LocationUnknown, NormalizeLocationType(""))
}

func TestBuildCharacterIndex_FirstSeenOrder(t *testing.T) {
	scenes := []ParsedScene{
		{SceneID: "s1", Characters: []string{"ANNA", "BEN"}},
		{SceneID: "s2", Characters: []string{"CARLA", "ANNA"}},
		{SceneID: "s3"},
	}
	index := BuildCharacterIndex(scenes)
	require.Len(t, index, 3)
	assert.Equal(t, "ANNA", index[0].Name)
	assert.Equal(t, []string{"s1", "s2"}, index[0].SceneAppearances)
	assert.Equal(t, "BEN", index[1].Name)
	assert.Equal(t, "CARLA", index[2].Name)
	assert.Equal(t, []string{"s2"}, index[2].SceneAppearances)

	assert.Empty(t, BuildCharacterIndex(nil))
}

func TestCreateRunRequest_Validate(t *testing.T) {
	r := CreateRunRequest{ID: "r", WorkflowType: WorkflowTypeSecurityCheck, Input: []byte(`{}`), Timeout: 1}
	assert.NoError(t, r.Validate())
	r.Input = nil
	assert.Error(t, r.Validate())
}
