// Package activities holds the stages of the security-check workflow. Each
// stage reads its inputs from the transient store by ref key, writes its
// result back, and hands only keys and counts to the workflow history.
package activities

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/target/scriptcheck/internal/core"
	"github.com/target/scriptcheck/internal/data/securebuf"
	"github.com/target/scriptcheck/internal/domain/model"
	"github.com/target/scriptcheck/internal/service/parser"
	"github.com/target/scriptcheck/internal/service/workflow"
)

// Activity names as recorded in the workflow history.
const (
	ParseStructured  = "parse-structured"
	ExtractPDFText   = "extract-pdf-text"
	SplitScenes      = "split-scenes"
	StructureScene   = "structure-scene"
	AggregateScript  = "aggregate-script"
	AnalyzeSceneRisk = "analyze-scene-risk"
	AggregateReport  = "aggregate-report"
	DeliverReport    = "deliver-report"
	UpdateJobStatus  = "update-job-status"
	ReleaseTransient = "release-transient"
)

// SceneStructurer turns PDF scene blocks into structured scenes.
type SceneStructurer interface {
	StructureScene(ctx context.Context, block model.SceneBlock) (parser.StructuredScene, error)
	ExtractTitle(ctx context.Context, block model.SceneBlock) (*string, error)
}

// SceneAnalyzer produces the risk findings of one scene.
type SceneAnalyzer interface {
	AnalyzeScene(ctx context.Context, scene model.ParsedScene) ([]model.Finding, error)
}

// Options groups the dependencies of the stage activities.
type Options struct {
	Store      core.TransientStore // Required
	Parsers    *parser.Registry    // Optional: defaults to NewRegistry(nil)
	Structurer SceneStructurer     // Required for PDF jobs
	Analyzer   SceneAnalyzer       // Required
	Pusher     core.ReportPusher   // Optional: push jobs fall back to pull without it
	Jobs       core.JobMetadataRepository
	Reports    core.ReportMetadataRepository
	// ReportTTL bounds how long a finished report package waits for retrieval.
	// Zero uses the store default.
	ReportTTL time.Duration
	Logger    *slog.Logger
	NewID     func() string
	Now       func() time.Time
}

// Activities implements every stage of the security-check workflow.
type Activities struct {
	store      core.TransientStore
	parsers    *parser.Registry
	structurer SceneStructurer
	analyzer   SceneAnalyzer
	pusher     core.ReportPusher
	jobs       core.JobMetadataRepository
	reports    core.ReportMetadataRepository
	reportTTL  time.Duration
	logger     *slog.Logger
	newID      func() string
	now        func() time.Time
}

// New validates opts and builds the activity set.
func New(opts Options) (*Activities, error) {
	if opts.Store == nil {
		return nil, errors.New("activities: transient store is required")
	}
	if opts.Analyzer == nil {
		return nil, errors.New("activities: risk analyzer is required")
	}
	if opts.Jobs == nil || opts.Reports == nil {
		return nil, errors.New("activities: job and report metadata repositories are required")
	}
	if opts.Parsers == nil {
		opts.Parsers = parser.NewRegistry(nil)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Activities{
		store:      opts.Store,
		parsers:    opts.Parsers,
		structurer: opts.Structurer,
		analyzer:   opts.Analyzer,
		pusher:     opts.Pusher,
		jobs:       opts.Jobs,
		reports:    opts.Reports,
		reportTTL:  opts.ReportTTL,
		logger:     opts.Logger.With("component", "activities"),
		newID:      opts.NewID,
		now:        opts.Now,
	}, nil
}

// load reads a transient entry. A missing or unreadable entry will not
// reappear on retry, so it ends the activity at once.
func (a *Activities) load(ctx context.Context, key string, dst any) error {
	err := a.store.Retrieve(ctx, key, dst)
	if err == nil {
		return nil
	}
	if errors.Is(err, securebuf.ErrNotFound) {
		return workflow.NonRetryable(err)
	}
	return err
}

// ReleaseInput lists transient keys a recorded stage no longer needs.
type ReleaseInput struct {
	Keys []string `json:"keys"`
}

// ReleaseOutput counts the entries that were still present.
type ReleaseOutput struct {
	Deleted int `json:"deleted"`
}

// Release deletes keys consumed by an earlier stage. The workflow runs it
// only after that stage is recorded, so a replayed stage still finds its
// inputs. A failed delete is retried and then left for the TTL.
func (a *Activities) Release(ctx context.Context, in ReleaseInput) (ReleaseOutput, error) {
	n, err := a.store.Delete(ctx, in.Keys...)
	if err != nil {
		if retryable(ctx, err) {
			return ReleaseOutput{}, err
		}
		a.logger.WarnContext(ctx, "delete consumed transient keys", "count", len(in.Keys), "error", err)
		return ReleaseOutput{}, nil
	}
	return ReleaseOutput{Deleted: n}, nil
}

// retryable reports whether an LLM-backed stage should hand err back to the
// engine for another attempt instead of degrading now.
func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil && !errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	info, ok := workflow.ActivityInfoFromContext(ctx)
	return ok && !info.LastAttempt() && workflow.IsRetryable(err)
}

func indexOutOfRange(kind string, i, n int) error {
	return workflow.NonRetryable(fmt.Errorf("%s index %d out of range (have %d)", kind, i, n))
}
