package securitycheck

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/target/scriptcheck/internal/data/cryptoutil"
	"github.com/target/scriptcheck/internal/data/securebuf"
	"github.com/target/scriptcheck/internal/domain/model"
	apperrors "github.com/target/scriptcheck/internal/errors"
	"github.com/target/scriptcheck/internal/mocks"
	"github.com/target/scriptcheck/internal/service/activities"
	"github.com/target/scriptcheck/internal/service/taxonomy"
	"github.com/target/scriptcheck/internal/service/workflow"
	"github.com/target/scriptcheck/internal/testutil"
)

const threeSceneFDX = `<FinalDraft><Content>
<Paragraph Number="1" Type="Scene Heading"><Text>INT. WORKSHOP - NIGHT</Text></Paragraph>
<Paragraph Type="Action"><Text>A torch ignites the bench.</Text></Paragraph>
<Paragraph Number="2" Type="Scene Heading"><Text>EXT. CLIFF - DAY</Text></Paragraph>
<Paragraph Type="Action"><Text>Maya hangs from the edge.</Text></Paragraph>
<Paragraph Number="3" Type="Scene Heading"><Text>INT. KITCHEN - DAY</Text></Paragraph>
<Paragraph Type="Action"><Text>Tea is served.</Text></Paragraph>
</Content></FinalDraft>`

const fiveSceneFDX = `<FinalDraft><Content>
<Paragraph Number="1" Type="Scene Heading"><Text>INT. WAREHOUSE - NIGHT</Text></Paragraph>
<Paragraph Type="Action"><Text>The roof collapses in flames.</Text></Paragraph>
<Paragraph Number="2" Type="Scene Heading"><Text>EXT. ROOFTOP - NIGHT</Text></Paragraph>
<Paragraph Type="Action"><Text>Jo leaps between buildings.</Text></Paragraph>
<Paragraph Number="3" Type="Scene Heading"><Text>EXT. HIGHWAY - DAY</Text></Paragraph>
<Paragraph Type="Action"><Text>Two cars race side by side.</Text></Paragraph>
<Paragraph Number="4" Type="Scene Heading"><Text>INT. LAB - DAY</Text></Paragraph>
<Paragraph Type="Action"><Text>A beaker smokes on the bench.</Text></Paragraph>
<Paragraph Number="5" Type="Scene Heading"><Text>EXT. PARK - DAY</Text></Paragraph>
<Paragraph Type="Action"><Text>A dog chases a frisbee.</Text></Paragraph>
</Content></FinalDraft>`

// scriptedAnalyzer returns one STUNTS finding per scene. Scenes without an
// entry in scores use likelihood 3 and impact 4.
type scriptedAnalyzer struct {
	mu     sync.Mutex
	failOn map[string]bool
	scores map[string][2]int
	calls  map[string]int
}

func (a *scriptedAnalyzer) AnalyzeScene(_ context.Context, s model.ParsedScene) ([]model.Finding, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls[s.Number]++
	if a.failOn[s.Number] {
		return nil, errors.New("provider unavailable")
	}
	score, ok := a.scores[s.Number]
	if !ok {
		score = [2]int{3, 4}
	}
	return []model.Finding{{
		ID:          "finding-" + s.Number,
		SceneNumber: s.Number,
		RiskClass:   "STUNTS",
		Likelihood:  score[0],
		Impact:      score[1],
		RiskLevel:   taxonomy.MustDefault().Severity(score[0], score[1]),
		Description: "Risk in scene " + s.Number,
		Measures:    []model.Measure{},
	}}, nil
}

type harness struct {
	engine   *workflow.Engine
	history  *testutil.MemoryHistory
	store    *securebuf.Store
	analyzer *scriptedAnalyzer
	jobs     *mocks.MockJobMetadataRepository
	reports  *mocks.MockReportMetadataRepository

	mu         sync.Mutex
	statuses   []model.JobStatusUpdate
	onProgress func(pct int)
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctrl := gomock.NewController(t)
	enc, err := cryptoutil.NewFromSecret("workflow-test-secret")
	require.NoError(t, err)
	store, err := securebuf.New(securebuf.Options{
		Backend:    securebuf.NewMemoryBackend(1000, 24*time.Hour),
		Encryptor:  enc,
		DefaultTTL: time.Hour,
	})
	require.NoError(t, err)

	h := &harness{
		history:  testutil.NewMemoryHistory(),
		store:    store,
		analyzer: &scriptedAnalyzer{failOn: map[string]bool{}, scores: map[string][2]int{}, calls: map[string]int{}},
		jobs:     mocks.NewMockJobMetadataRepository(ctrl),
		reports:  mocks.NewMockReportMetadataRepository(ctrl),
	}
	h.jobs.EXPECT().UpdateStatus(gomock.Any(), "job-1", gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, u model.JobStatusUpdate) (bool, error) {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.statuses = append(h.statuses, u)
			if h.onProgress != nil && u.ProgressPercentage != nil {
				h.onProgress(*u.ProgressPercentage)
			}
			return true, nil
		}).AnyTimes()

	acts, err := activities.New(activities.Options{
		Store:    store,
		Analyzer: h.analyzer,
		Jobs:     h.jobs,
		Reports:  h.reports,
	})
	require.NoError(t, err)

	h.engine, err = workflow.NewEngine(workflow.EngineOptions{
		History: h.history,
		Sleep:   func(context.Context, time.Duration) error { return nil },
	})
	require.NoError(t, err)
	require.NoError(t, Register(h.engine, acts, nil, nil))
	return h
}

func (h *harness) submit(t *testing.T, runID string, format model.ScriptFormat, doc string) *model.WorkflowRun {
	t.Helper()
	ref, err := h.store.Store(context.Background(), model.RawScript{Content: []byte(doc)})
	require.NoError(t, err)
	input, err := json.Marshal(Input{
		RefKey:       ref,
		Format:       format,
		ProjectID:    "proj",
		JobID:        "job-1",
		ReportID:     "rep-1",
		UserID:       "user-1",
		DeliveryMode: model.DeliveryPull,
		SubmittedAt:  time.Now().Add(-time.Second),
	})
	require.NoError(t, err)
	return &model.WorkflowRun{ID: runID, WorkflowType: model.WorkflowTypeSecurityCheck, Input: input}
}

func (h *harness) progress() []int {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []int
	for _, u := range h.statuses {
		if u.ProgressPercentage != nil {
			out = append(out, *u.ProgressPercentage)
		}
	}
	return out
}

func (h *harness) lastStatus() model.JobStatusUpdate {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.statuses[len(h.statuses)-1]
}

func TestStageOptions(t *testing.T) {
	opts := StageOptions()
	for _, name := range []string{
		activities.ParseStructured, activities.ExtractPDFText, activities.SplitScenes,
		activities.StructureScene, activities.AggregateScript, activities.AnalyzeSceneRisk,
		activities.AggregateReport, activities.DeliverReport, activities.UpdateJobStatus,
		activities.ReleaseTransient,
	} {
		o, ok := opts[name]
		require.True(t, ok, name)
		assert.Positive(t, o.StartToCloseTimeout, name)
		assert.GreaterOrEqual(t, o.RetryPolicy.Attempts(), 2, name)
	}
	assert.Equal(t, 15*time.Minute, opts[activities.AnalyzeSceneRisk].StartToCloseTimeout)
	assert.Equal(t, 5, opts[activities.DeliverReport].RetryPolicy.MaxAttempts)
}

func TestRegister_Validates(t *testing.T) {
	assert.Error(t, Register(nil, nil, nil, nil))
}

func TestWorkflow_FDXEndToEnd(t *testing.T) {
	h := newHarness(t)
	var recorded *model.CreateReportRequest
	h.reports.EXPECT().Create(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req *model.CreateReportRequest) (bool, error) {
			recorded = req
			return true, nil
		})

	res, err := h.engine.Execute(context.Background(), h.submit(t, "run-1", model.ScriptFormatFDX, threeSceneFDX))
	require.NoError(t, err)

	var result model.WorkflowResult
	require.NoError(t, json.Unmarshal(res, &result))
	assert.Equal(t, model.WorkflowCompleted, result.Status)
	assert.Equal(t, "rep-1", result.ReportID)
	assert.Equal(t, 3, result.TotalFindings)
	assert.True(t, result.Delivered)
	assert.Equal(t, "run-1", result.WorkflowID)

	assert.Equal(t, []string{
		activities.UpdateJobStatus, activities.ParseStructured, activities.ReleaseTransient, activities.UpdateJobStatus,
		activities.AnalyzeSceneRisk, activities.AnalyzeSceneRisk, activities.AnalyzeSceneRisk,
		activities.UpdateJobStatus, activities.AggregateReport, activities.ReleaseTransient, activities.DeliverReport,
	}, h.history.Activities("run-1"))
	assert.Equal(t, []int{model.ProgressParsed, model.ProgressAnalyzed, model.ProgressDelivered}, h.progress())
	assert.Equal(t, model.JobStatusCompleted, h.lastStatus().Status)

	require.NotNil(t, recorded)
	assert.Equal(t, 3, recorded.TotalFindings)
	var pkg model.ReportPackage
	require.NoError(t, h.store.Retrieve(context.Background(), recorded.ReportRefKey, &pkg))
	assert.Equal(t, 3, pkg.Report.RiskSummary[model.RiskHigh])
}

func TestWorkflow_FiveScenesMixedLevels(t *testing.T) {
	h := newHarness(t)
	h.analyzer.scores = map[string][2]int{
		"1": {4, 4}, // 16 critical
		"2": {5, 4}, // 20 critical
		"3": {3, 4}, // 12 high
		"4": {2, 5}, // 10 high
		"5": {2, 3}, // 6 medium
	}
	var recorded *model.CreateReportRequest
	h.reports.EXPECT().Create(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req *model.CreateReportRequest) (bool, error) {
			recorded = req
			return true, nil
		})

	res, err := h.engine.Execute(context.Background(), h.submit(t, "run-5", model.ScriptFormatFDX, fiveSceneFDX))
	require.NoError(t, err)

	var result model.WorkflowResult
	require.NoError(t, json.Unmarshal(res, &result))
	assert.Equal(t, model.WorkflowCompleted, result.Status)
	assert.Equal(t, 5, result.TotalFindings)

	require.NotNil(t, recorded)
	assert.Equal(t, 5, recorded.TotalFindings)
	var pkg model.ReportPackage
	require.NoError(t, h.store.Retrieve(context.Background(), recorded.ReportRefKey, &pkg))
	assert.Equal(t, 5, pkg.Report.TotalFindings)
	assert.Len(t, pkg.Report.Findings, 5)

	tests := []struct {
		level model.RiskLevel
		want  int
	}{
		{model.RiskCritical, 2},
		{model.RiskHigh, 2},
		{model.RiskMedium, 1},
		{model.RiskLow, 0},
		{model.RiskInfo, 0},
	}
	sum := 0
	for _, tt := range tests {
		assert.Equal(t, tt.want, pkg.Report.RiskSummary[tt.level], string(tt.level))
		sum += pkg.Report.RiskSummary[tt.level]
	}
	assert.Equal(t, pkg.Report.TotalFindings, sum)
	for _, scene := range []string{"1", "2", "3", "4", "5"} {
		assert.Equal(t, 1, h.analyzer.calls[scene], "scene %s analyzed once", scene)
	}
}

func TestWorkflow_HistoryOutageIsRetried(t *testing.T) {
	h := newHarness(t)
	h.reports.EXPECT().Create(gomock.Any(), gomock.Any()).Return(true, nil).Times(1)
	run := h.submit(t, "run-4", model.ScriptFormatFDX, threeSceneFDX)

	h.onProgress = func(pct int) {
		if pct == model.ProgressParsed {
			h.history.SetAppendErr(errors.New("dial tcp 10.0.0.7:5432: connection refused"))
		}
	}
	_, err := h.engine.Execute(context.Background(), run)
	require.Error(t, err)
	assert.ErrorContains(t, err, "connection refused")
	var failure *workflow.Failure
	assert.False(t, errors.As(err, &failure), "a history outage must not end the job")
	var actErr *workflow.ActivityError
	assert.False(t, errors.As(err, &actErr))
	assert.True(t, workflow.IsRetryable(err))
	assert.NotEqual(t, model.JobStatusFailed, h.lastStatus().Status)

	// The requeued run resumes once the history store is back.
	h.onProgress = nil
	h.history.SetAppendErr(nil)
	res, err := h.engine.Execute(context.Background(), run)
	require.NoError(t, err)
	var result model.WorkflowResult
	require.NoError(t, json.Unmarshal(res, &result))
	assert.Equal(t, model.WorkflowCompleted, result.Status)
	assert.Equal(t, 3, result.TotalFindings)
	assert.Equal(t, model.JobStatusCompleted, h.lastStatus().Status)
}

func TestFailsJob(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"stage out of retries", &workflow.ActivityError{Activity: activities.ParseStructured, Attempts: 3, Err: errors.New("boom")}, true},
		{"validation", fmt.Errorf("route: %w", apperrors.Validationf("unsupported script format %q", "docx")), true},
		{"non retryable", workflow.NonRetryable(errors.New("bad input")), true},
		{"history append", fmt.Errorf("record step 2 (%s): %w", activities.UpdateJobStatus, errors.New("connection refused")), false},
		{"concurrent record", errors.New("step 4 (AnalyzeSceneRisk) was recorded concurrently"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, failsJob(tt.err))
		})
	}
}

func TestWorkflow_FailingSceneDoesNotFailJob(t *testing.T) {
	h := newHarness(t)
	h.analyzer.failOn["2"] = true
	h.reports.EXPECT().Create(gomock.Any(), gomock.Any()).Return(true, nil)

	res, err := h.engine.Execute(context.Background(), h.submit(t, "run-2", model.ScriptFormatFDX, threeSceneFDX))
	require.NoError(t, err)

	var result model.WorkflowResult
	require.NoError(t, json.Unmarshal(res, &result))
	assert.Equal(t, model.WorkflowCompleted, result.Status)
	assert.Equal(t, 2, result.TotalFindings)
	assert.Equal(t, 2, h.analyzer.calls["2"], "the failing scene is retried once and then degraded")
	assert.Equal(t, 1, h.analyzer.calls["1"])
}

func TestWorkflow_FailureMarksJobFailed(t *testing.T) {
	tests := []struct {
		name   string
		format model.ScriptFormat
		doc    string
	}{
		{"malformed fdx", model.ScriptFormatFDX, "<FinalDraft><Content>"},
		{"not a pdf", model.ScriptFormatPDF, "hello"},
		{"unsupported format", model.ScriptFormat("docx"), "hello"},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			_, err := h.engine.Execute(context.Background(), h.submit(t, fmt.Sprintf("run-f%d", i), tt.format, tt.doc))

			var failure *workflow.Failure
			require.ErrorAs(t, err, &failure)
			var result model.WorkflowResult
			require.NoError(t, json.Unmarshal(failure.Result, &result))
			assert.Equal(t, model.WorkflowFailed, result.Status)
			assert.NotEmpty(t, result.Error)
			assert.False(t, result.Delivered)

			last := h.lastStatus()
			assert.Equal(t, model.JobStatusFailed, last.Status)
			require.NotNil(t, last.ErrorMessage)
			assert.Equal(t, result.Error, *last.ErrorMessage)
		})
	}
}

func TestWorkflow_ResumeReplaysFinishedSteps(t *testing.T) {
	h := newHarness(t)
	h.reports.EXPECT().Create(gomock.Any(), gomock.Any()).Return(true, nil).Times(1)
	run := h.submit(t, "run-3", model.ScriptFormatFDX, threeSceneFDX)

	// The worker loses its lease right after analysis is reported.
	ctx, cancel := context.WithCancel(context.Background())
	h.onProgress = func(pct int) {
		if pct == model.ProgressAnalyzed {
			cancel()
		}
	}
	_, err := h.engine.Execute(ctx, run)
	require.ErrorIs(t, err, context.Canceled)
	assert.Len(t, h.history.Activities("run-3"), 7)

	h.onProgress = nil
	res, err := h.engine.Execute(context.Background(), run)
	require.NoError(t, err)

	var result model.WorkflowResult
	require.NoError(t, json.Unmarshal(res, &result))
	assert.Equal(t, model.WorkflowCompleted, result.Status)
	assert.Equal(t, 3, result.TotalFindings)
	for _, scene := range []string{"1", "2", "3"} {
		assert.Equal(t, 1, h.analyzer.calls[scene], "scene %s analyzed once", scene)
	}
	assert.Len(t, h.history.Activities("run-3"), 11)
}

func TestWorkflow_StageRerunsAfterLostRecord(t *testing.T) {
	for _, stage := range []string{activities.ParseStructured, activities.AggregateReport} {
		t.Run(stage, func(t *testing.T) {
			h := newHarness(t)
			var recorded *model.CreateReportRequest
			h.reports.EXPECT().Create(gomock.Any(), gomock.Any()).
				DoAndReturn(func(_ context.Context, req *model.CreateReportRequest) (bool, error) {
					recorded = req
					return true, nil
				})
			run := h.submit(t, "run-"+stage, model.ScriptFormatFDX, threeSceneFDX)
			var in Input
			require.NoError(t, json.Unmarshal(run.Input, &in))

			h.history.FailNextAppend(stage, errors.New("connection reset by peer"))
			_, err := h.engine.Execute(context.Background(), run)
			require.Error(t, err)
			assert.True(t, workflow.IsRetryable(err))
			assert.NotContains(t, h.history.Activities(run.ID), stage)

			res, err := h.engine.Execute(context.Background(), run)
			require.NoError(t, err, "the stage finds its inputs again")
			var result model.WorkflowResult
			require.NoError(t, json.Unmarshal(res, &result))
			assert.Equal(t, model.WorkflowCompleted, result.Status)
			assert.Equal(t, 3, result.TotalFindings)

			exists, err := h.store.Exists(context.Background(), in.RefKey)
			require.NoError(t, err)
			assert.False(t, exists, "consumed entries are released once recorded")
			require.NotNil(t, recorded)
			var pkg model.ReportPackage
			require.NoError(t, h.store.Retrieve(context.Background(), recorded.ReportRefKey, &pkg))
			assert.Equal(t, 3, pkg.Report.TotalFindings)
		})
	}
}
