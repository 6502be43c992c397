package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/scriptcheck/internal/domain/model"
	apperrors "github.com/target/scriptcheck/internal/errors"
	"github.com/target/scriptcheck/internal/testutil"
)

const testType model.WorkflowType = "test"

type echoIn struct {
	N int `json:"n"`
}

type echoOut struct {
	Doubled int `json:"doubled"`
}

func newTestEngine(t *testing.T, h *testutil.MemoryHistory) (*Engine, *[]time.Duration) {
	t.Helper()
	var slept []time.Duration
	e, err := NewEngine(EngineOptions{
		History: h,
		Sleep: func(_ context.Context, d time.Duration) error {
			slept = append(slept, d)
			return nil
		},
	})
	require.NoError(t, err)
	return e, &slept
}

func quick(attempts int) ActivityOptions {
	return ActivityOptions{
		StartToCloseTimeout: time.Second,
		RetryPolicy:         RetryPolicy{MaxAttempts: attempts, InitialInterval: time.Second, MaxInterval: 3 * time.Second},
	}
}

func run(id string, input any) *model.WorkflowRun {
	b, _ := json.Marshal(input)
	return &model.WorkflowRun{ID: id, WorkflowType: testType, Input: b}
}

func TestRetryPolicy(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 5, InitialInterval: time.Second, MaxInterval: 5 * time.Second}
	assert.Equal(t, 5, p.Attempts())
	assert.Equal(t, time.Second, p.Backoff(1))
	assert.Equal(t, 2*time.Second, p.Backoff(2))
	assert.Equal(t, 4*time.Second, p.Backoff(3))
	assert.Equal(t, 5*time.Second, p.Backoff(4))
	assert.Equal(t, 1, RetryPolicy{}.Attempts())
	assert.Zero(t, RetryPolicy{}.Backoff(3))
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("boom"), true},
		{NonRetryable(errors.New("boom")), false},
		{apperrors.Validationf("bad input"), false},
		{ErrNonDeterministic, false},
		{context.DeadlineExceeded, true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsRetryable(tt.err), "%v", tt.err)
	}
}

func TestEngine_Registration(t *testing.T) {
	e, _ := newTestEngine(t, testutil.NewMemoryHistory())
	fn := Typed(func(context.Context, echoIn) (echoOut, error) { return echoOut{}, nil })

	require.NoError(t, e.RegisterActivity("a", quick(1), fn))
	assert.Error(t, e.RegisterActivity("a", quick(1), fn), "duplicate")
	assert.Error(t, e.RegisterActivity("b", ActivityOptions{}, fn), "missing timeout")
	assert.Error(t, e.RegisterActivity("", quick(1), fn))

	wf := func(*Context, json.RawMessage) ([]byte, error) { return nil, nil }
	require.NoError(t, e.RegisterWorkflow(testType, wf))
	assert.Error(t, e.RegisterWorkflow(testType, wf))

	_, err := NewEngine(EngineOptions{})
	assert.Error(t, err)

	_, err = e.Execute(context.Background(), &model.WorkflowRun{ID: "x", WorkflowType: "unknown"})
	assert.False(t, IsRetryable(err))
}

func TestEngine_RetriesAndRecords(t *testing.T) {
	h := testutil.NewMemoryHistory()
	e, slept := newTestEngine(t, h)

	var calls atomic.Int32
	require.NoError(t, e.RegisterActivity("double", quick(3), Typed(func(ctx context.Context, in echoIn) (echoOut, error) {
		info, ok := ActivityInfoFromContext(ctx)
		require.True(t, ok)
		assert.Equal(t, 3, info.MaxAttempts)
		if calls.Add(1) < 3 {
			return echoOut{}, errors.New("flaky")
		}
		assert.True(t, info.LastAttempt())
		return echoOut{Doubled: in.N * 2}, nil
	})))
	require.NoError(t, e.RegisterWorkflow(testType, func(wctx *Context, input json.RawMessage) ([]byte, error) {
		var in echoIn
		require.NoError(t, json.Unmarshal(input, &in))
		var out echoOut
		if err := wctx.ExecuteActivity("double", in, &out); err != nil {
			return nil, err
		}
		return json.Marshal(out)
	}))

	res, err := e.Execute(context.Background(), run("wf-1", echoIn{N: 21}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"doubled":42}`, string(res))
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, *slept)

	events, _ := h.List(context.Background(), "wf-1")
	require.Len(t, events, 1)
	assert.Equal(t, model.HistoryCompleted, events[0].Status)
	assert.Equal(t, 3, events[0].Attempts)
}

func TestEngine_ReplaySkipsFinishedSteps(t *testing.T) {
	h := testutil.NewMemoryHistory()
	e, _ := newTestEngine(t, h)

	counts := map[string]int{}
	for _, name := range []string{"first", "second", "third"} {
		require.NoError(t, e.RegisterActivity(name, quick(1), Typed(func(_ context.Context, in echoIn) (echoOut, error) {
			counts[name]++
			return echoOut{Doubled: in.N * 2}, nil
		})))
	}
	require.NoError(t, e.RegisterWorkflow(testType, func(wctx *Context, _ json.RawMessage) ([]byte, error) {
		v := echoOut{Doubled: 1}
		for _, name := range []string{"first", "second", "third"} {
			if err := wctx.ExecuteActivity(name, echoIn{N: v.Doubled}, &v); err != nil {
				return nil, err
			}
		}
		return json.Marshal(v)
	}))

	res, err := e.Execute(context.Background(), run("wf-2", nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{"doubled":8}`, string(res))

	h.Truncate("wf-2", 2)
	res, err = e.Execute(context.Background(), run("wf-2", nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{"doubled":8}`, string(res))
	assert.Equal(t, map[string]int{"first": 1, "second": 1, "third": 2}, counts)
}

func TestEngine_NonDeterministicReplay(t *testing.T) {
	h := testutil.NewMemoryHistory()
	e, _ := newTestEngine(t, h)
	for _, name := range []string{"a", "b"} {
		require.NoError(t, e.RegisterActivity(name, quick(1), Typed(func(context.Context, echoIn) (echoOut, error) {
			return echoOut{}, nil
		})))
	}
	next := "a"
	require.NoError(t, e.RegisterWorkflow(testType, func(wctx *Context, _ json.RawMessage) ([]byte, error) {
		return nil, wctx.ExecuteActivity(next, echoIn{}, nil)
	}))

	_, err := e.Execute(context.Background(), run("wf-3", nil))
	require.NoError(t, err)

	next = "b"
	_, err = e.Execute(context.Background(), run("wf-3", nil))
	require.ErrorIs(t, err, ErrNonDeterministic)
	assert.False(t, IsRetryable(err))
}

func TestEngine_FailuresAndPanics(t *testing.T) {
	h := testutil.NewMemoryHistory()
	e, slept := newTestEngine(t, h)

	require.NoError(t, e.RegisterActivity("invalid", quick(5), Typed(func(context.Context, echoIn) (echoOut, error) {
		return echoOut{}, apperrors.Validationf("no")
	})))
	require.NoError(t, e.RegisterActivity("panics", quick(5), Typed(func(context.Context, echoIn) (echoOut, error) {
		panic("kaboom")
	})))
	var step string
	require.NoError(t, e.RegisterWorkflow(testType, func(wctx *Context, _ json.RawMessage) ([]byte, error) {
		return nil, wctx.ExecuteActivity(step, echoIn{}, nil)
	}))

	step = "invalid"
	_, err := e.Execute(context.Background(), run("wf-4", nil))
	var ae *ActivityError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, 1, ae.Attempts)
	assert.Empty(t, *slept, "validation errors are not retried")

	// The recorded failure replays without running the activity again.
	_, err = e.Execute(context.Background(), run("wf-4", nil))
	require.ErrorAs(t, err, &ae)
	assert.Contains(t, err.Error(), "no")

	step = "panics"
	_, err = e.Execute(context.Background(), run("wf-5", nil))
	require.ErrorAs(t, err, &ae)
	assert.Contains(t, err.Error(), "kaboom")

	require.NoError(t, e.RegisterWorkflow("panicking", func(*Context, json.RawMessage) ([]byte, error) {
		panic("workflow bug")
	}))
	_, err = e.Execute(context.Background(), &model.WorkflowRun{ID: "wf-6", WorkflowType: "panicking"})
	require.Error(t, err)
	assert.False(t, IsRetryable(err))
}

func TestEngine_TimeoutAndCancel(t *testing.T) {
	h := testutil.NewMemoryHistory()
	e, _ := newTestEngine(t, h)

	require.NoError(t, e.RegisterActivity("slow", ActivityOptions{StartToCloseTimeout: 10 * time.Millisecond},
		Typed(func(ctx context.Context, _ echoIn) (echoOut, error) {
			<-ctx.Done()
			return echoOut{}, ctx.Err()
		})))
	require.NoError(t, e.RegisterWorkflow(testType, func(wctx *Context, _ json.RawMessage) ([]byte, error) {
		return nil, wctx.ExecuteActivity("slow", echoIn{}, nil)
	}))

	_, err := e.Execute(context.Background(), run("wf-7", nil))
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "exceeded")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = e.Execute(ctx, run("wf-8", nil))
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, h.Activities("wf-8"), "canceled steps are not recorded")
}

func TestEngine_HistoryAppendFailure(t *testing.T) {
	h := testutil.NewMemoryHistory()
	h.AppendErr = errors.New("db down")
	e, _ := newTestEngine(t, h)
	require.NoError(t, e.RegisterActivity("a", quick(1), Typed(func(context.Context, echoIn) (echoOut, error) {
		return echoOut{}, nil
	})))
	require.NoError(t, e.RegisterWorkflow(testType, func(wctx *Context, _ json.RawMessage) ([]byte, error) {
		return nil, wctx.ExecuteActivity("a", echoIn{}, nil)
	}))

	_, err := e.Execute(context.Background(), run("wf-9", nil))
	require.Error(t, err)
	var ae *ActivityError
	assert.False(t, errors.As(err, &ae))
	assert.True(t, IsRetryable(err))
}
