package runner

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/target/scriptcheck/internal/domain/model"
	"github.com/target/scriptcheck/internal/mocks"
	"github.com/target/scriptcheck/internal/observability/notify"
	"github.com/target/scriptcheck/internal/service/workflow"
)

type execFunc func(ctx context.Context, run *model.WorkflowRun) ([]byte, error)

func (f execFunc) Execute(ctx context.Context, run *model.WorkflowRun) ([]byte, error) {
	return f(ctx, run)
}

func blockUntilDone(ctx context.Context, _ *model.WorkflowRun) ([]byte, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

type fixture struct {
	runs *mocks.MockWorkflowRunRepository
	jobs *mocks.MockJobMetadataRepository
}

func newRunner(t *testing.T, exec execFunc) (*Runner, fixture) {
	t.Helper()
	ctrl := gomock.NewController(t)
	f := fixture{
		runs: mocks.NewMockWorkflowRunRepository(ctrl),
		jobs: mocks.NewMockJobMetadataRepository(ctrl),
	}
	r, err := NewRunner(RunnerOptions{
		Runs:              f.runs,
		Jobs:              f.jobs,
		Engine:            exec,
		Lease:             30 * time.Millisecond,
		HeartbeatInterval: 5 * time.Millisecond,
		PollInterval:      10 * time.Millisecond,
	})
	require.NoError(t, err)
	return r, f
}

func testRun() *model.WorkflowRun {
	return &model.WorkflowRun{ID: "job-1", WorkflowType: model.WorkflowTypeSecurityCheck}
}

func jobUpdate(status model.JobStatus, msg string) any {
	return gomock.Cond(func(x any) bool {
		u, ok := x.(model.JobStatusUpdate)
		return ok && u.Status == status && u.ErrorMessage != nil && *u.ErrorMessage == msg
	})
}

func TestNewRunner_Validates(t *testing.T) {
	_, err := NewRunner(RunnerOptions{})
	require.Error(t, err)
}

func TestProcess_Completes(t *testing.T) {
	r, f := newRunner(t, func(context.Context, *model.WorkflowRun) ([]byte, error) {
		return []byte(`{"status":"completed"}`), nil
	})
	f.runs.EXPECT().Heartbeat(gomock.Any(), gomock.Any(), gomock.Any()).Return(model.LeaseState{Held: true}, nil).AnyTimes()
	f.runs.EXPECT().Complete(gomock.Any(), "job-1", json.RawMessage(`{"status":"completed"}`)).Return(true, nil)

	r.Process(context.Background(), testRun())
}

func TestProcess_WorkflowFailure(t *testing.T) {
	result := []byte(`{"status":"failed","error":"boom"}`)
	r, f := newRunner(t, func(context.Context, *model.WorkflowRun) ([]byte, error) {
		return nil, &workflow.Failure{Result: result, Err: errors.New("boom")}
	})
	f.runs.EXPECT().Heartbeat(gomock.Any(), gomock.Any(), gomock.Any()).Return(model.LeaseState{Held: true}, nil).AnyTimes()
	f.runs.EXPECT().Fail(gomock.Any(), "job-1", model.RunFailure{Error: "boom", Result: result}).
		Return(model.RunStatusFailed, nil)
	f.jobs.EXPECT().UpdateStatus(gomock.Any(), "job-1", jobUpdate(model.JobStatusFailed, "boom")).Return(false, nil)

	r.Process(context.Background(), testRun())
}

func TestProcess_CancelRequested(t *testing.T) {
	r, f := newRunner(t, blockUntilDone)
	f.runs.EXPECT().Heartbeat(gomock.Any(), "job-1", gomock.Any()).
		Return(model.LeaseState{Held: true, CancelRequested: true}, nil)
	f.runs.EXPECT().MarkCanceled(gomock.Any(), "job-1", CanceledMessage).Return(true, nil)
	f.jobs.EXPECT().UpdateStatus(gomock.Any(), "job-1", jobUpdate(model.JobStatusCancelled, CanceledMessage)).Return(true, nil)

	r.Process(context.Background(), testRun())
}

func TestProcess_LeaseLostAbandonsRun(t *testing.T) {
	r, f := newRunner(t, blockUntilDone)
	f.runs.EXPECT().Heartbeat(gomock.Any(), "job-1", gomock.Any()).Return(model.LeaseState{}, nil)

	r.Process(context.Background(), testRun())
}

func TestProcess_Deadline(t *testing.T) {
	r, f := newRunner(t, blockUntilDone)
	f.runs.EXPECT().Heartbeat(gomock.Any(), gomock.Any(), gomock.Any()).Return(model.LeaseState{Held: true}, nil).AnyTimes()
	f.runs.EXPECT().Fail(gomock.Any(), "job-1", gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, rf model.RunFailure) (model.RunStatus, error) {
			assert.Equal(t, TimedOutMessage, rf.Error)
			assert.False(t, rf.Retryable)
			assert.Contains(t, string(rf.Result), `"status":"failed"`)
			return model.RunStatusFailed, nil
		})
	f.jobs.EXPECT().UpdateStatus(gomock.Any(), "job-1", jobUpdate(model.JobStatusFailed, TimedOutMessage)).Return(true, nil)

	run := testRun()
	run.DeadlineAt = time.Now().Add(20 * time.Millisecond)
	r.Process(context.Background(), run)
}

func TestProcess_InfrastructureFailure(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
		status    model.RunStatus
	}{
		{"retryable goes back to pending", errors.New("history write failed"), true, model.RunStatusPending},
		{"budget spent fails the job", errors.New("history write failed"), true, model.RunStatusFailed},
		{"non retryable", workflow.NonRetryable(errors.New("bad input")), false, model.RunStatusFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, f := newRunner(t, func(context.Context, *model.WorkflowRun) ([]byte, error) { return nil, tt.err })
			f.runs.EXPECT().Heartbeat(gomock.Any(), gomock.Any(), gomock.Any()).Return(model.LeaseState{Held: true}, nil).AnyTimes()
			f.runs.EXPECT().Fail(gomock.Any(), "job-1", model.RunFailure{Error: tt.err.Error(), Retryable: tt.retryable}).
				Return(tt.status, nil)
			if tt.status == model.RunStatusFailed {
				f.jobs.EXPECT().UpdateStatus(gomock.Any(), "job-1", jobUpdate(model.JobStatusFailed, tt.err.Error())).Return(true, nil)
			}
			r.Process(context.Background(), testRun())
		})
	}
}

func TestProcess_ShutdownLeavesRunForRequeue(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r, f := newRunner(t, func(ctx context.Context, _ *model.WorkflowRun) ([]byte, error) {
		cancel()
		return nil, ctx.Err()
	})
	f.runs.EXPECT().Heartbeat(gomock.Any(), gomock.Any(), gomock.Any()).Return(model.LeaseState{Held: true}, nil).AnyTimes()

	r.Process(ctx, testRun())
}

func TestRun_ReservesUntilCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r, f := newRunner(t, func(context.Context, *model.WorkflowRun) ([]byte, error) {
		return []byte(`{}`), nil
	})
	gomock.InOrder(
		// The 30ms lease is clamped to whole seconds.
		f.runs.EXPECT().ReserveNext(gomock.Any(), model.WorkflowTypeSecurityCheck, time.Second).Return(testRun(), nil),
		f.runs.EXPECT().ReserveNext(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, model.ErrNoRunsAvailable),
	)
	f.runs.EXPECT().ReserveNext(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, model.ErrNoRunsAvailable).AnyTimes()
	f.runs.EXPECT().Heartbeat(gomock.Any(), gomock.Any(), gomock.Any()).Return(model.LeaseState{Held: true}, nil).AnyTimes()
	f.runs.EXPECT().Complete(gomock.Any(), "job-1", gomock.Any()).DoAndReturn(
		func(context.Context, string, json.RawMessage) (bool, error) { return true, nil })
	f.runs.EXPECT().WaitForNotification(gomock.Any(), model.WorkflowTypeSecurityCheck).
		DoAndReturn(func(ctx context.Context, _ model.WorkflowType) error {
			cancel()
			<-ctx.Done()
			return ctx.Err()
		}).MinTimes(1)

	err := r.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRun_ReserveErrorStopsWorkers(t *testing.T) {
	r, f := newRunner(t, blockUntilDone)
	f.runs.EXPECT().ReserveNext(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, errors.New("db down"))

	err := r.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
}

type chanNotifier struct {
	ch      chan struct{}
	stopped bool
}

func (n *chanNotifier) Subscribe(model.WorkflowType) (func(), <-chan struct{}) {
	return func() { n.stopped = true }, n.ch
}
func (n *chanNotifier) Notify(model.WorkflowType) { n.ch <- struct{}{} }
func (n *chanNotifier) StopAll()                  {}

func TestRun_NotifierWakesIdleWorker(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ctrl := gomock.NewController(t)
	runs := mocks.NewMockWorkflowRunRepository(ctrl)
	n := &chanNotifier{ch: make(chan struct{}, 1)}
	r, err := NewRunner(RunnerOptions{
		Runs:         runs,
		Engine:       execFunc(blockUntilDone),
		PollInterval: time.Hour,
		Notifier:     n,
	})
	require.NoError(t, err)

	calls := 0
	runs.EXPECT().ReserveNext(gomock.Any(), gomock.Any(), 60*time.Second).DoAndReturn(
		func(context.Context, model.WorkflowType, time.Duration) (*model.WorkflowRun, error) {
			calls++
			switch calls {
			case 1:
				n.Notify(model.WorkflowTypeSecurityCheck)
			case 2:
				cancel()
			}
			return nil, model.ErrNoRunsAvailable
		}).Times(2)

	assert.ErrorIs(t, r.Run(ctx), context.Canceled)
	assert.True(t, n.stopped)
}

type alertRecorder struct{ got []notify.RunFailurePayload }

func (a *alertRecorder) NotifyRunFailure(_ context.Context, p notify.RunFailurePayload) {
	a.got = append(a.got, p)
}

func TestProcess_TerminalFailureAlerts(t *testing.T) {
	rec := &alertRecorder{}
	r, f := newRunner(t, func(context.Context, *model.WorkflowRun) ([]byte, error) {
		return nil, &workflow.Failure{Err: errors.New("analysis failed")}
	})
	r.alerts = rec
	f.runs.EXPECT().Heartbeat(gomock.Any(), gomock.Any(), gomock.Any()).Return(model.LeaseState{Held: true}, nil).AnyTimes()
	f.runs.EXPECT().Fail(gomock.Any(), "job-1", gomock.Any()).Return(model.RunStatusFailed, nil)
	f.jobs.EXPECT().UpdateStatus(gomock.Any(), "job-1", gomock.Any()).Return(true, nil)

	run := testRun()
	run.RetryCount = 1
	r.Process(context.Background(), run)

	require.Len(t, rec.got, 1)
	assert.Equal(t, "job-1", rec.got[0].RunID)
	assert.Equal(t, "analysis failed", rec.got[0].Reason)
	assert.Equal(t, 2, rec.got[0].Attempts)
}

func TestProcess_RetryableFailureDoesNotAlert(t *testing.T) {
	rec := &alertRecorder{}
	r, f := newRunner(t, func(context.Context, *model.WorkflowRun) ([]byte, error) {
		return nil, errors.New("history write failed")
	})
	r.alerts = rec
	f.runs.EXPECT().Heartbeat(gomock.Any(), gomock.Any(), gomock.Any()).Return(model.LeaseState{Held: true}, nil).AnyTimes()
	f.runs.EXPECT().Fail(gomock.Any(), "job-1", gomock.Any()).Return(model.RunStatusPending, nil)

	r.Process(context.Background(), testRun())
	assert.Empty(t, rec.got)
}
