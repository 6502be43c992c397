package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/target/scriptcheck/config"
	"github.com/target/scriptcheck/internal/core"
	"github.com/target/scriptcheck/internal/domain/model"
	"github.com/target/scriptcheck/internal/mocks"
)

func testReaperConfig() config.ReaperConfig {
	return config.ReaperConfig{
		Interval:      time.Hour,
		PendingMaxAge: 2 * time.Hour,
		Retention:     7 * 24 * time.Hour,
		BatchSize:     10,
	}
}

func TestNewReaperService(t *testing.T) {
	ctrl := gomock.NewController(t)

	_, err := NewReaperService(ReaperServiceOptions{Config: testReaperConfig()})
	require.Error(t, err)

	_, err = NewReaperService(ReaperServiceOptions{Repo: mocks.NewMockWorkflowRunReaper(ctrl)})
	require.Error(t, err, "zero interval")

	svc, err := NewReaperService(ReaperServiceOptions{Repo: mocks.NewMockWorkflowRunReaper(ctrl), Config: testReaperConfig()})
	require.NoError(t, err)
	assert.NotNil(t, svc)
}

func TestReaperService_RunOnce(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockWorkflowRunReaper(ctrl)
	cfg := testReaperConfig()

	gomock.InOrder(
		repo.EXPECT().FailStalePendingRuns(gomock.Any(), cfg.PendingMaxAge, 10).Return(int64(10), nil),
		repo.EXPECT().FailStalePendingRuns(gomock.Any(), cfg.PendingMaxAge, 10).Return(int64(3), nil),
		repo.EXPECT().FailStalePendingRuns(gomock.Any(), cfg.PendingMaxAge, 10).Return(int64(0), nil),
	)
	repo.EXPECT().FailOverdueRuns(gomock.Any(), 10).Return(int64(0), nil)
	for _, status := range []model.RunStatus{model.RunStatusCompleted, model.RunStatusFailed, model.RunStatusCanceled} {
		params := core.DeleteOldRunsParams{Status: status, MaxAge: cfg.Retention, BatchSize: 10}
		gomock.InOrder(
			repo.EXPECT().DeleteOldRuns(gomock.Any(), params).Return(int64(4), nil),
			repo.EXPECT().DeleteOldRuns(gomock.Any(), params).Return(int64(0), nil),
		)
	}

	svc, err := NewReaperService(ReaperServiceOptions{Repo: repo, Config: cfg})
	require.NoError(t, err)
	require.NoError(t, svc.RunOnce(context.Background()))
}

func TestReaperService_RunOnceContinuesAfterErrors(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockWorkflowRunReaper(ctrl)

	repo.EXPECT().FailStalePendingRuns(gomock.Any(), gomock.Any(), gomock.Any()).Return(int64(0), errors.New("db down"))
	repo.EXPECT().FailOverdueRuns(gomock.Any(), gomock.Any()).Return(int64(0), nil)
	repo.EXPECT().DeleteOldRuns(gomock.Any(), gomock.Any()).Return(int64(0), nil).Times(3)

	svc, err := NewReaperService(ReaperServiceOptions{Repo: repo, Config: testReaperConfig()})
	require.NoError(t, err)

	err = svc.RunOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fail_pending")
	assert.Contains(t, err.Error(), "db down")
}

func TestReaperService_RunOnceCanceled(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockWorkflowRunReaper(ctrl)
	repo.EXPECT().FailStalePendingRuns(gomock.Any(), gomock.Any(), gomock.Any()).Return(int64(0), context.Canceled)
	repo.EXPECT().FailOverdueRuns(gomock.Any(), gomock.Any()).Return(int64(0), context.Canceled)
	repo.EXPECT().DeleteOldRuns(gomock.Any(), gomock.Any()).Return(int64(0), context.Canceled).Times(3)

	svc, err := NewReaperService(ReaperServiceOptions{Repo: repo, Config: testReaperConfig()})
	require.NoError(t, err)
	assert.ErrorIs(t, svc.RunOnce(context.Background()), context.Canceled)
}

func TestReaperService_RunStopsOnCancel(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockWorkflowRunReaper(ctrl)
	ctx, cancel := context.WithCancel(context.Background())

	repo.EXPECT().FailStalePendingRuns(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, time.Duration, int) (int64, error) {
			cancel()
			return 0, nil
		}).MinTimes(1)
	repo.EXPECT().FailOverdueRuns(gomock.Any(), gomock.Any()).Return(int64(0), nil).AnyTimes()
	repo.EXPECT().DeleteOldRuns(gomock.Any(), gomock.Any()).Return(int64(0), nil).AnyTimes()

	cfg := testReaperConfig()
	cfg.Interval = time.Millisecond
	svc, err := NewReaperService(ReaperServiceOptions{Repo: repo, Config: cfg})
	require.NoError(t, err)
	assert.NoError(t, svc.Run(ctx))
}
