package main

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/target/scriptcheck/internal/domain/model"
	"github.com/target/scriptcheck/internal/mocks"
)

type fakeRuns struct {
	run   *model.WorkflowRun
	stats *model.RunStats
	err   error
}

func (f fakeRuns) GetByID(context.Context, string) (*model.WorkflowRun, error) { return f.run, f.err }

func (f fakeRuns) Stats(context.Context, model.WorkflowType) (*model.RunStats, error) {
	return f.stats, f.err
}

func execute(t *testing.T, cc *commandContext, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cc.out = &out
	cmd := newRootCommand(cc)
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestGenerateSecret(t *testing.T) {
	out, err := execute(t, newCommandContext(nil), "generate-secret")
	require.NoError(t, err)
	secret := strings.TrimSpace(out)
	assert.Len(t, secret, 64)
	_, err = hex.DecodeString(secret)
	require.NoError(t, err)

	_, err = execute(t, newCommandContext(nil), "generate-secret", "--bytes", "4")
	require.Error(t, err)
}

func TestCreateAPIKey(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockAPIKeyRepository(ctrl)
	repo.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req *model.CreateAPIKeyRequest) (*model.APIKey, error) {
			assert.Equal(t, "maya", req.UserID)
			assert.NotEmpty(t, req.KeyHash)
			assert.WithinDuration(t, time.Now().Add(7*24*time.Hour), req.ExpiresAt, time.Minute)
			return &model.APIKey{ID: "key-1", UserID: req.UserID, Name: req.Name, ExpiresAt: req.ExpiresAt}, nil
		})

	cc := newCommandContext(nil)
	cc.apiKeys = repo
	out, err := execute(t, cc, "create-api-key", "--user", "maya", "--name", "ci", "--expires-in", "7d")
	require.NoError(t, err)
	assert.Contains(t, out, "key-1")
	assert.Contains(t, out, "API key (shown once): sck_")
}

func TestCreateAPIKey_MissingFlags(t *testing.T) {
	_, err := execute(t, newCommandContext(nil), "create-api-key", "--user", "maya")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name")
}

func TestRevokeAPIKey(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockAPIKeyRepository(ctrl)
	repo.EXPECT().Revoke(gomock.Any(), "key-1").Return(true, nil)
	repo.EXPECT().Revoke(gomock.Any(), "key-2").Return(false, nil)

	cc := newCommandContext(nil)
	cc.apiKeys = repo
	out, err := execute(t, cc, "revoke-api-key", "--id", "key-1")
	require.NoError(t, err)
	assert.Contains(t, out, "revoked key-1")

	_, err = execute(t, cc, "revoke-api-key", "--id", "key-2")
	require.Error(t, err)
}

func TestListAPIKeys(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockAPIKeyRepository(ctrl)
	used := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	repo.EXPECT().ListForUser(gomock.Any(), "maya").Return([]*model.APIKey{
		{ID: "key-1", Name: "ci", IsActive: true, ExpiresAt: used.Add(time.Hour), LastUsedAt: &used, UsageCount: 12},
	}, nil)

	cc := newCommandContext(nil)
	cc.apiKeys = repo
	out, err := execute(t, cc, "list-api-keys", "--user", "maya")
	require.NoError(t, err)
	for _, want := range []string{"key-1", "ci", "true", "2026-03-01T00:00:00Z", "12"} {
		assert.Contains(t, out, want)
	}
}

func TestRunStatus(t *testing.T) {
	lastErr := "llm timeout"
	cc := newCommandContext(nil)
	cc.runs = fakeRuns{run: &model.WorkflowRun{
		ID:           "run-1",
		WorkflowType: model.WorkflowTypeSecurityCheck,
		Status:       model.RunStatusPending,
		RetryCount:   1,
		MaxRetries:   3,
		LastError:    &lastErr,
		Input:        []byte(`{"raw_ref":"secret"}`),
	}}

	out, err := execute(t, cc, "run-status", "--id", "run-1")
	require.NoError(t, err)
	assert.Contains(t, out, "run-1")
	assert.Contains(t, out, "1/3")
	assert.Contains(t, out, "llm timeout")
	assert.NotContains(t, out, "raw_ref")

	cc.runs = fakeRuns{err: errors.New("not found")}
	_, err = execute(t, cc, "run-status", "--id", "missing")
	require.Error(t, err)
}

func TestRunStats(t *testing.T) {
	cc := newCommandContext(nil)
	cc.runs = fakeRuns{stats: &model.RunStats{Pending: 2, Running: 1, Failed: 4}}
	out, err := execute(t, cc, "run-stats")
	require.NoError(t, err)
	assert.Contains(t, out, "pending")
	assert.Contains(t, out, "4")
}

func TestMigrate(t *testing.T) {
	called := false
	cc := newCommandContext(nil)
	cc.migrate = func(ctx context.Context) error {
		_, ok := ctx.Deadline()
		assert.True(t, ok)
		called = true
		return nil
	}
	out, err := execute(t, cc, "migrate", "--timeout", "1m")
	require.NoError(t, err)
	assert.True(t, called)
	assert.Contains(t, out, "migrations applied")
}

func TestParseTTL(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"", 0, false},
		{"90d", 90 * 24 * time.Hour, false},
		{"36h", 36 * time.Hour, false},
		{"-1h", 0, true},
		{"0d", 0, true},
		{"soon", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseTTL(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
