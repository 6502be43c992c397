// Package securitycheck defines the screenplay safety-check workflow on top
// of the durable engine and registers its stage activities.
package securitycheck

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/target/scriptcheck/internal/domain/model"
	"github.com/target/scriptcheck/internal/service/activities"
	"github.com/target/scriptcheck/internal/service/parser"
	"github.com/target/scriptcheck/internal/service/workflow"
)

// Input starts one job. It carries ref keys and identifiers only.
type Input struct {
	RefKey       string             `json:"ref_key"`
	Format       model.ScriptFormat `json:"script_format"`
	ProjectID    string             `json:"project_id"`
	JobID        string             `json:"job_id"`
	ReportID     string             `json:"report_id"`
	UserID       string             `json:"user_id"`
	Priority     int                `json:"priority"`
	DeliveryMode model.DeliveryMode `json:"delivery_mode"`
	Metadata     map[string]any     `json:"metadata,omitempty"`
	SubmittedAt  time.Time          `json:"submitted_at"`
}

func stage(timeout time.Duration, attempts int, initial, maxInterval time.Duration) workflow.ActivityOptions {
	return workflow.ActivityOptions{
		StartToCloseTimeout: timeout,
		RetryPolicy: workflow.RetryPolicy{
			MaxAttempts:        attempts,
			InitialInterval:    initial,
			MaxInterval:        maxInterval,
			BackoffCoefficient: 2,
		},
	}
}

// StageOptions returns the timeout and retry policy of every stage.
func StageOptions() map[string]workflow.ActivityOptions {
	deterministic := stage(10*time.Minute, 3, time.Second, 30*time.Second)
	llm := stage(10*time.Minute, 2, 2*time.Second, time.Minute)
	return map[string]workflow.ActivityOptions{
		activities.ParseStructured:  deterministic,
		activities.ExtractPDFText:   deterministic,
		activities.SplitScenes:      deterministic,
		activities.AggregateScript:  deterministic,
		activities.StructureScene:   llm,
		activities.AnalyzeSceneRisk: stage(15*time.Minute, 2, 2*time.Second, time.Minute),
		activities.AggregateReport:  stage(5*time.Minute, 3, time.Second, 20*time.Second),
		activities.DeliverReport:    stage(5*time.Minute, 5, 2*time.Second, time.Minute),
		activities.UpdateJobStatus:  stage(30*time.Second, 3, time.Second, 5*time.Second),
		activities.ReleaseTransient: stage(30*time.Second, 3, time.Second, 5*time.Second),
	}
}

// Workflow runs the safety check of one job.
type Workflow struct {
	parsers *parser.Registry
}

// Register adds the stage activities and the workflow to e. Options in
// overrides replace the defaults of StageOptions per activity name.
func Register(e *workflow.Engine, acts *activities.Activities, parsers *parser.Registry, overrides map[string]workflow.ActivityOptions) error {
	if e == nil || acts == nil {
		return errors.New("securitycheck: engine and activities are required")
	}
	if parsers == nil {
		parsers = parser.NewRegistry(nil)
	}
	opts := StageOptions()
	for name, o := range overrides {
		opts[name] = o
	}
	fns := map[string]workflow.ActivityFunc{
		activities.ParseStructured:  workflow.Typed(acts.Parse),
		activities.ExtractPDFText:   workflow.Typed(acts.Extract),
		activities.SplitScenes:      workflow.Typed(acts.Split),
		activities.StructureScene:   workflow.Typed(acts.Structure),
		activities.AggregateScript:  workflow.Typed(acts.AggregateScript),
		activities.AnalyzeSceneRisk: workflow.Typed(acts.Analyze),
		activities.AggregateReport:  workflow.Typed(acts.AggregateReport),
		activities.DeliverReport:    workflow.Typed(acts.Deliver),
		activities.UpdateJobStatus:  workflow.Typed(acts.UpdateStatus),
		activities.ReleaseTransient: workflow.Typed(acts.Release),
	}
	for name, fn := range fns {
		if err := e.RegisterActivity(name, opts[name], fn); err != nil {
			return err
		}
	}
	w := &Workflow{parsers: parsers}
	return e.RegisterWorkflow(model.WorkflowTypeSecurityCheck, w.Run)
}

// Run executes the workflow. A failed job returns a *workflow.Failure whose
// Result is the encoded model.WorkflowResult.
func (w *Workflow) Run(wctx *workflow.Context, raw json.RawMessage) ([]byte, error) {
	var in Input
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, workflow.NonRetryable(fmt.Errorf("decode workflow input: %w", err))
	}
	result := model.WorkflowResult{WorkflowID: wctx.WorkflowID(), ReportID: in.ReportID}

	err := w.run(wctx, in, &result)
	if ctxErr := wctx.Context().Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if err != nil {
		if !failsJob(err) {
			// History or store outages: the runner requeues the run and it
			// resumes from the recorded steps.
			return nil, err
		}
		return nil, w.fail(wctx, in, result, err)
	}
	result.Status = model.WorkflowCompleted
	wctx.Logger().Info("security check completed",
		"report_id", result.ReportID, "total_findings", result.TotalFindings, "delivered", result.Delivered)
	return json.Marshal(result)
}

func (w *Workflow) run(wctx *workflow.Context, in Input, result *model.WorkflowResult) error {
	if err := setStatus(wctx, in.JobID, model.JobStatusRunning, nil); err != nil {
		return err
	}

	parsed, err := w.parse(wctx, in)
	if err != nil {
		return err
	}

	scenes := make([]activities.AnalyzeOutput, 0, parsed.TotalScenes)
	for i := range parsed.TotalScenes {
		var out activities.AnalyzeOutput
		if err := wctx.ExecuteActivity(activities.AnalyzeSceneRisk,
			activities.AnalyzeInput{ParsedRefKey: parsed.ParsedRefKey, SceneIndex: i}, &out); err != nil {
			return err
		}
		scenes = append(scenes, out)
	}
	if err := setProgress(wctx, in.JobID, model.ProgressAnalyzed); err != nil {
		return err
	}

	var rep activities.AggregateReportOutput
	if err := wctx.ExecuteActivity(activities.AggregateReport, activities.AggregateReportInput{
		ReportID:     in.ReportID,
		ProjectID:    in.ProjectID,
		Format:       in.Format,
		ParsedRefKey: parsed.ParsedRefKey,
		Scenes:       scenes,
		SubmittedAt:  in.SubmittedAt,
	}, &rep); err != nil {
		return err
	}
	if err := release(wctx, rep.Release); err != nil {
		return err
	}
	result.ReportID = rep.ReportID
	result.TotalFindings = rep.TotalFindings

	var delivered activities.DeliverOutput
	if err := wctx.ExecuteActivity(activities.DeliverReport, activities.DeliverInput{
		ReportRefKey:          rep.ReportRefKey,
		ReportID:              rep.ReportID,
		JobID:                 in.JobID,
		ProjectID:             in.ProjectID,
		UserID:                in.UserID,
		Format:                in.Format,
		Mode:                  in.DeliveryMode,
		TotalFindings:         rep.TotalFindings,
		ProcessingTimeSeconds: rep.ProcessingTimeSeconds,
	}, &delivered); err != nil {
		return err
	}
	result.Delivered = delivered.Delivered
	return release(wctx, delivered.Release)
}

// release deletes the keys a stage consumed. It runs as its own step after
// the stage is recorded; a stage replayed after a crash still finds them.
func release(wctx *workflow.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	var out activities.ReleaseOutput
	return wctx.ExecuteActivity(activities.ReleaseTransient, activities.ReleaseInput{Keys: keys}, &out)
}

// parsedScript is the common outcome of both format branches.
type parsedScript struct {
	ParsedRefKey string
	TotalScenes  int
}

func (w *Workflow) parse(wctx *workflow.Context, in Input) (parsedScript, error) {
	route, err := w.parsers.Route(in.Format)
	if err != nil {
		return parsedScript{}, err
	}
	switch route {
	case parser.RouteDirect:
		var out activities.ParseOutput
		if err := wctx.ExecuteActivity(activities.ParseStructured,
			activities.ParseInput{RefKey: in.RefKey, Format: in.Format}, &out); err != nil {
			return parsedScript{}, err
		}
		if err := release(wctx, out.Release); err != nil {
			return parsedScript{}, err
		}
		if err := setProgress(wctx, in.JobID, model.ProgressParsed); err != nil {
			return parsedScript{}, err
		}
		return parsedScript{ParsedRefKey: out.ParsedRefKey, TotalScenes: out.TotalScenes}, nil
	case parser.RouteExtract:
		return w.extractAndStructure(wctx, in)
	default:
		panic(fmt.Sprintf("unhandled parser route %v", route))
	}
}

func (w *Workflow) extractAndStructure(wctx *workflow.Context, in Input) (parsedScript, error) {
	var text activities.ExtractOutput
	if err := wctx.ExecuteActivity(activities.ExtractPDFText,
		activities.ExtractInput{RefKey: in.RefKey}, &text); err != nil {
		return parsedScript{}, err
	}
	if err := release(wctx, text.Release); err != nil {
		return parsedScript{}, err
	}
	var split activities.SplitOutput
	if err := wctx.ExecuteActivity(activities.SplitScenes,
		activities.SplitInput{TextRefKey: text.TextRefKey}, &split); err != nil {
		return parsedScript{}, err
	}
	if err := release(wctx, split.Release); err != nil {
		return parsedScript{}, err
	}
	if err := setProgress(wctx, in.JobID, model.ProgressParsed); err != nil {
		return parsedScript{}, err
	}

	var title *string
	structured := make([]activities.StructureOutput, 0, split.BlockCount)
	for i := range split.BlockCount {
		var out activities.StructureOutput
		if err := wctx.ExecuteActivity(activities.StructureScene,
			activities.StructureInput{BlocksRefKey: split.BlocksRefKey, BlockIndex: i}, &out); err != nil {
			return parsedScript{}, err
		}
		if out.IsPreamble {
			if title == nil {
				title = out.Title
			}
			continue
		}
		structured = append(structured, out)
	}

	var agg activities.AggregateScriptOutput
	if err := wctx.ExecuteActivity(activities.AggregateScript, activities.AggregateScriptInput{
		BlocksRefKey: split.BlocksRefKey,
		Scenes:       structured,
		Title:        title,
		OCRPages:     text.OCRPages,
	}, &agg); err != nil {
		return parsedScript{}, err
	}
	if err := release(wctx, agg.Release); err != nil {
		return parsedScript{}, err
	}
	if err := setProgress(wctx, in.JobID, model.ProgressStructure); err != nil {
		return parsedScript{}, err
	}
	return parsedScript{ParsedRefKey: agg.ParsedRefKey, TotalScenes: agg.TotalScenes}, nil
}

// failsJob reports whether err ends the job: a stage that spent its retry
// budget or an input the workflow can never process.
func failsJob(err error) bool {
	var actErr *workflow.ActivityError
	return errors.As(err, &actErr) || !workflow.IsRetryable(err)
}

// fail marks the job failed and wraps the structured result.
func (w *Workflow) fail(wctx *workflow.Context, in Input, result model.WorkflowResult, cause error) error {
	result.Status = model.WorkflowFailed
	result.Error = cause.Error()
	result.Delivered = false
	wctx.Logger().Error("security check failed", "job_id", in.JobID, "error", cause)

	msg := cause.Error()
	if err := setStatus(wctx, in.JobID, model.JobStatusFailed, &msg); err != nil {
		wctx.Logger().Warn("could not mark job failed", "job_id", in.JobID, "error", err)
	}
	b, err := json.Marshal(result)
	if err != nil {
		return workflow.NonRetryable(errors.Join(cause, err))
	}
	return &workflow.Failure{Result: b, Err: cause}
}

func setStatus(wctx *workflow.Context, jobID string, status model.JobStatus, msg *string) error {
	return wctx.ExecuteActivity(activities.UpdateJobStatus,
		activities.StatusInput{JobID: jobID, Status: status, ErrorMessage: msg}, nil)
}

func setProgress(wctx *workflow.Context, jobID string, pct int) error {
	return wctx.ExecuteActivity(activities.UpdateJobStatus,
		activities.StatusInput{JobID: jobID, Status: model.JobStatusRunning, Progress: &pct}, nil)
}
