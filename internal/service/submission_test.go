package service

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/target/scriptcheck/internal/data"
	"github.com/target/scriptcheck/internal/domain/model"
	apperrors "github.com/target/scriptcheck/internal/errors"
	"github.com/target/scriptcheck/internal/mocks"
	"github.com/target/scriptcheck/internal/service/parser"
	"github.com/target/scriptcheck/internal/service/securitycheck"
)

// funcTx runs fn without a real transaction.
type funcTx struct {
	calls int
}

func (f *funcTx) WithTx(ctx context.Context, fn func(ctx context.Context, tx *sql.Tx) error) error {
	f.calls++
	return fn(ctx, nil)
}

var submitNow = time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)

type submitFixture struct {
	svc    *SubmissionService
	jobs   *mocks.MockJobMetadataRepository
	jobsTx *mocks.MockJobMetadataRepositoryTx
	runsTx *mocks.MockWorkflowRunRepositoryTx
	store  *mocks.MockTransientStore
	tx     *funcTx
}

func newSubmitFixture(t *testing.T) submitFixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	f := submitFixture{
		jobs:   mocks.NewMockJobMetadataRepository(ctrl),
		jobsTx: mocks.NewMockJobMetadataRepositoryTx(ctrl),
		runsTx: mocks.NewMockWorkflowRunRepositoryTx(ctrl),
		store:  mocks.NewMockTransientStore(ctrl),
		tx:     &funcTx{},
	}
	n := 0
	svc, err := NewSubmissionService(SubmissionServiceOptions{
		Jobs:            f.jobs,
		JobsTx:          f.jobsTx,
		RunsTx:          f.runsTx,
		Tx:              f.tx,
		Store:           f.store,
		RawTTL:          time.Hour,
		WorkflowTimeout: 30 * time.Minute,
		MaxRunRetries:   2,
		Now:             func() time.Time { return submitNow },
		NewID: func() string {
			n++
			return fmt.Sprintf("id-%d", n)
		},
	})
	require.NoError(t, err)
	f.svc = svc
	return f
}

func fdxRequest() SubmitRequest {
	return SubmitRequest{
		UserID:    "user-1",
		ProjectID: "proj_1",
		Format:    model.ScriptFormatFDX,
		Content:   []byte("<FinalDraft/>"),
	}
}

func strPtr(s string) *string { return &s }

func TestNewSubmissionService_Validation(t *testing.T) {
	_, err := NewSubmissionService(SubmissionServiceOptions{})
	require.Error(t, err)

	f := newSubmitFixture(t)
	assert.Equal(t, model.DeliveryPull, f.svc.defaultDelivery)
	assert.Equal(t, 2, f.svc.maxRetries)
}

func TestSubmit_EnqueuesJobAndRun(t *testing.T) {
	f := newSubmitFixture(t)

	f.store.EXPECT().StoreWithTTL(gomock.Any(), gomock.Any(), time.Hour).DoAndReturn(
		func(_ context.Context, payload any, _ time.Duration) (string, error) {
			raw, ok := payload.(model.RawScript)
			require.True(t, ok)
			assert.Equal(t, []byte("<FinalDraft/>"), raw.Content)
			return "ref-raw", nil
		})

	f.jobsTx.EXPECT().CreateInTx(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, _ *sql.Tx, req *model.CreateJobRequest) (*model.JobMetadata, error) {
			assert.Equal(t, "id-1", req.JobID)
			assert.Equal(t, model.DefaultPriority, req.Priority)
			assert.Equal(t, model.DeliveryPull, req.DeliveryMode)
			return &model.JobMetadata{JobID: req.JobID}, nil
		})

	f.runsTx.EXPECT().CreateInTx(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, _ *sql.Tx, req *model.CreateRunRequest) (*model.WorkflowRun, error) {
			assert.Equal(t, "id-1", req.ID)
			assert.Equal(t, model.WorkflowTypeSecurityCheck, req.WorkflowType)
			assert.Equal(t, 30*time.Minute, req.Timeout)
			assert.Equal(t, 2, req.MaxRetries)

			var in securitycheck.Input
			require.NoError(t, json.Unmarshal(req.Input, &in))
			assert.Equal(t, "ref-raw", in.RefKey)
			assert.Equal(t, "id-1", in.JobID)
			assert.Equal(t, "id-2", in.ReportID)
			assert.Equal(t, "user-1", in.UserID)
			assert.True(t, in.SubmittedAt.Equal(submitNow))
			assert.NotContains(t, string(req.Input), "FinalDraft")
			return &model.WorkflowRun{ID: req.ID}, nil
		})

	resp, err := f.svc.Submit(context.Background(), fdxRequest())
	require.NoError(t, err)
	assert.Equal(t, "id-1", resp.JobID)
	assert.Equal(t, model.JobStatusPending, resp.Status)
	assert.Equal(t, "/v1/security/jobs/id-1", resp.StatusURL)
	assert.Equal(t, EstimatedCompletionSeconds, resp.EstimatedCompletionSeconds)
	assert.False(t, resp.Existing)
	assert.Equal(t, 1, f.tx.calls)
}

func TestSubmit_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*SubmitRequest)
		code   apperrors.ErrorCode
	}{
		{"no user", func(r *SubmitRequest) { r.UserID = "" }, apperrors.ErrCodeUnauthorized},
		{"empty content", func(r *SubmitRequest) { r.Content = nil }, apperrors.ErrCodeValidation},
		{"too large", func(r *SubmitRequest) { r.Content = bytes.Repeat([]byte("a"), parser.MaxInputBytes+1) }, apperrors.ErrCodeValidation},
		{"bad project", func(r *SubmitRequest) { r.ProjectID = "no spaces allowed" }, apperrors.ErrCodeValidation},
		{"bad priority", func(r *SubmitRequest) { r.Priority = 11 }, apperrors.ErrCodeValidation},
		{"bad format", func(r *SubmitRequest) { r.Format = "docx" }, apperrors.ErrCodeValidation},
		{"bad metadata", func(r *SubmitRequest) { r.Metadata = map[string]any{"k": []int{1}} }, apperrors.ErrCodeValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newSubmitFixture(t)
			req := fdxRequest()
			tt.mutate(&req)
			_, err := f.svc.Submit(context.Background(), req)
			require.Error(t, err)
			assert.Equal(t, tt.code, apperrors.GetCode(err))
			assert.Zero(t, f.tx.calls)
		})
	}
}

func TestSubmit_IdempotencyKeyReturnsExistingJob(t *testing.T) {
	f := newSubmitFixture(t)
	f.jobs.EXPECT().GetByIdempotencyKey(gomock.Any(), "k-1").Return(&model.JobMetadata{
		JobID:        "job-old",
		UserID:       "user-1",
		Status:       model.JobStatusRunning,
		ScriptFormat: model.ScriptFormatFDX,
	}, nil)

	req := fdxRequest()
	req.IdempotencyKey = strPtr("k-1")
	resp, err := f.svc.Submit(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "job-old", resp.JobID)
	assert.Equal(t, model.JobStatusRunning, resp.Status)
	assert.True(t, resp.Existing)
	assert.Zero(t, f.tx.calls)
}

func TestSubmit_IdempotencyKeyOfAnotherUser(t *testing.T) {
	f := newSubmitFixture(t)
	f.jobs.EXPECT().GetByIdempotencyKey(gomock.Any(), "k-1").
		Return(&model.JobMetadata{JobID: "job-old", UserID: "someone-else"}, nil)

	req := fdxRequest()
	req.IdempotencyKey = strPtr("k-1")
	_, err := f.svc.Submit(context.Background(), req)
	assert.True(t, apperrors.IsValidation(err))
}

func TestSubmit_ConcurrentIdempotencyRace(t *testing.T) {
	f := newSubmitFixture(t)
	unique := apperrors.MapDBError(&pgconn.PgError{
		Code:           pgerrcode.UniqueViolation,
		ConstraintName: data.IdempotencyConstraint,
		TableName:      "job_metadata",
	})

	gomock.InOrder(
		f.jobs.EXPECT().GetByIdempotencyKey(gomock.Any(), "k-2").Return(nil, data.ErrJobNotFound),
		f.jobs.EXPECT().GetByIdempotencyKey(gomock.Any(), "k-2").
			Return(&model.JobMetadata{JobID: "job-winner", UserID: "user-1", Status: model.JobStatusPending}, nil),
	)
	f.store.EXPECT().StoreWithTTL(gomock.Any(), gomock.Any(), gomock.Any()).Return("ref-raw", nil)
	f.store.EXPECT().Delete(gomock.Any(), "ref-raw").Return(1, nil)
	f.jobsTx.EXPECT().CreateInTx(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, unique)

	req := fdxRequest()
	req.IdempotencyKey = strPtr("k-2")
	resp, err := f.svc.Submit(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "job-winner", resp.JobID)
	assert.True(t, resp.Existing)
}

func TestSubmit_FailuresDiscardBufferedScript(t *testing.T) {
	t.Run("run enqueue fails", func(t *testing.T) {
		f := newSubmitFixture(t)
		f.store.EXPECT().StoreWithTTL(gomock.Any(), gomock.Any(), gomock.Any()).Return("ref-raw", nil)
		f.store.EXPECT().Delete(gomock.Any(), "ref-raw").Return(1, nil)
		f.jobsTx.EXPECT().CreateInTx(gomock.Any(), gomock.Any(), gomock.Any()).Return(&model.JobMetadata{}, nil)
		f.runsTx.EXPECT().CreateInTx(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, errors.New("queue down"))

		_, err := f.svc.Submit(context.Background(), fdxRequest())
		require.ErrorContains(t, err, "queue down")
	})

	t.Run("buffer unavailable", func(t *testing.T) {
		f := newSubmitFixture(t)
		f.store.EXPECT().StoreWithTTL(gomock.Any(), gomock.Any(), gomock.Any()).Return("", errors.New("redis down"))

		_, err := f.svc.Submit(context.Background(), fdxRequest())
		require.ErrorContains(t, err, "redis down")
		assert.Zero(t, f.tx.calls)
	})

	t.Run("no raw ttl falls back to the store default", func(t *testing.T) {
		f := newSubmitFixture(t)
		f.svc.rawTTL = 0
		f.store.EXPECT().Store(gomock.Any(), gomock.Any()).Return("", errors.New("redis down"))

		_, err := f.svc.Submit(context.Background(), fdxRequest())
		require.ErrorContains(t, err, "redis down")
	})
}
