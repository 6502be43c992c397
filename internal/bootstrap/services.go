package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/target/scriptcheck/config"
	"github.com/target/scriptcheck/internal/adapters/llm"
	"github.com/target/scriptcheck/internal/core"
	"github.com/target/scriptcheck/internal/data"
	"github.com/target/scriptcheck/internal/data/securebuf"
	"github.com/target/scriptcheck/internal/domain/model"
	httpx "github.com/target/scriptcheck/internal/http"
	"github.com/target/scriptcheck/internal/service"
	"github.com/target/scriptcheck/internal/service/activities"
	"github.com/target/scriptcheck/internal/service/analyzer"
	"github.com/target/scriptcheck/internal/service/delivery"
	"github.com/target/scriptcheck/internal/service/failurenotifier"
	"github.com/target/scriptcheck/internal/service/parser"
	"github.com/target/scriptcheck/internal/service/prompts"
	"github.com/target/scriptcheck/internal/service/securitycheck"
	"github.com/target/scriptcheck/internal/service/taxonomy"
	"github.com/target/scriptcheck/internal/service/workflow"
)

// ServiceContainer holds the wired application services.
type ServiceContainer struct {
	DB    *sql.DB
	Store *securebuf.Store

	Submissions *service.SubmissionService
	Jobs        *service.JobService
	Reports     *service.ReportService
	Auth        *service.AuthService

	Runs    *data.WorkflowRunRepo
	JobMeta *data.JobMetadataRepo
	APIKeys *data.APIKeyRepo

	// Engine is nil unless the worker role is enabled in this process.
	Engine *workflow.Engine
	Alerts *failurenotifier.Service
}

// ReadinessChecks lists the dependencies /readyz probes.
func (c ServiceContainer) ReadinessChecks() []httpx.ReadinessCheck {
	var checks []httpx.ReadinessCheck
	if c.DB != nil {
		checks = append(checks, httpx.ReadinessCheck{Name: "postgres", Check: c.DB.PingContext})
	}
	if c.Store != nil {
		checks = append(checks, httpx.ReadinessCheck{Name: "transient_store", Check: c.Store.Health})
	}
	return checks
}

// ServiceDeps contains the dependencies needed to build services.
type ServiceDeps struct {
	Ctx    context.Context
	DB     *sql.DB
	Redis  redis.UniversalClient
	Config *config.AppConfig
	Logger *slog.Logger
}

// NewServices wires repositories, the transient store and the domain
// services. The workflow engine is only built when the worker role runs here.
func NewServices(deps *ServiceDeps) (ServiceContainer, error) {
	if deps == nil || deps.DB == nil || deps.Config == nil {
		return ServiceContainer{}, errors.New("database and config are required")
	}
	ctx := deps.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := deps.Config

	store, err := newTransientStore(cfg, deps.Redis, logger)
	if err != nil {
		return ServiceContainer{}, err
	}

	tp := data.RealTimeProvider{}
	c := ServiceContainer{
		DB:      deps.DB,
		Store:   store,
		JobMeta: data.NewJobMetadataRepo(deps.DB, data.JobMetadataRepoConfig{Logger: logger, TimeProvider: tp}),
		Runs: data.NewWorkflowRunRepo(deps.DB, data.RunRepoConfig{
			RetryDelay:   cfg.Worker.RetryDelay,
			Logger:       logger,
			TimeProvider: tp,
		}),
		APIKeys: data.NewAPIKeyRepo(deps.DB, tp),
		Alerts:  failurenotifier.NewFromConfig(cfg.Notify, logger),
	}
	reports := data.NewReportMetadataRepo(deps.DB, tp)

	if c.Submissions, err = service.NewSubmissionService(service.SubmissionServiceOptions{
		Jobs:            c.JobMeta,
		JobsTx:          c.JobMeta,
		RunsTx:          c.Runs,
		Tx:              data.TxRunner{DB: deps.DB},
		Store:           store,
		DefaultDelivery: model.DeliveryMode(cfg.Delivery.DefaultMode),
		WorkflowTimeout: cfg.Worker.WorkflowTimeout,
		MaxRunRetries:   cfg.Worker.MaxRunRetries,
		Logger:          logger,
	}); err != nil {
		return ServiceContainer{}, fmt.Errorf("submission service: %w", err)
	}
	if c.Jobs, err = service.NewJobService(service.JobServiceOptions{
		Jobs:   c.JobMeta,
		Runs:   c.Runs,
		Logger: logger,
	}); err != nil {
		return ServiceContainer{}, fmt.Errorf("job service: %w", err)
	}
	if c.Reports, err = service.NewReportService(service.ReportServiceOptions{
		Reports: reports,
		Store:   store,
		Logger:  logger,
	}); err != nil {
		return ServiceContainer{}, fmt.Errorf("report service: %w", err)
	}
	if cfg.IsHTTPServerEnabled() {
		if c.Auth, err = BuildAuthService(ctx, AuthConfig{Auth: cfg.Auth, APIKeys: c.APIKeys, Logger: logger}); err != nil {
			return ServiceContainer{}, err
		}
	}

	if cfg.IsWorkerEnabled() {
		if c.Engine, err = newEngine(engineDeps{
			cfg:     cfg,
			history: data.NewWorkflowHistoryRepo(deps.DB),
			store:   store,
			jobs:    c.JobMeta,
			reports: reports,
			logger:  logger,
		}); err != nil {
			return ServiceContainer{}, err
		}
	}

	return c, nil
}

func newTransientStore(cfg *config.AppConfig, client redis.UniversalClient, logger *slog.Logger) (*securebuf.Store, error) {
	enc, err := CreateEncryptor(cfg.Buffer.SecretKey, cfg.IsDev, logger)
	if err != nil {
		return nil, err
	}

	var backend securebuf.Backend
	switch cfg.Buffer.Backend {
	case config.BufferBackendMemory:
		logger.Warn("transient store uses the in-memory backend; payloads do not survive restarts")
		backend = securebuf.NewMemoryBackend(cfg.Buffer.MemoryMaxEntries, cfg.Buffer.DefaultTTL)
	default:
		if client == nil {
			return nil, errors.New("redis client is required for the redis buffer backend")
		}
		backend = securebuf.NewRedisBackend(client)
	}

	store, err := securebuf.New(securebuf.Options{
		Backend:    backend,
		Encryptor:  enc,
		DefaultTTL: cfg.Buffer.DefaultTTL,
		KeyPrefix:  cfg.Buffer.KeyPrefix,
		Logger:     logger,
	})
	if err != nil {
		return nil, fmt.Errorf("transient store: %w", err)
	}
	return store, nil
}

type engineDeps struct {
	cfg     *config.AppConfig
	history core.HistoryRepository
	store   core.TransientStore
	jobs    core.JobMetadataRepository
	reports core.ReportMetadataRepository
	logger  *slog.Logger
}

// newEngine builds the LLM-backed stages and registers the security check
// workflow on a fresh engine.
func newEngine(d engineDeps) (*workflow.Engine, error) {
	cfg := d.cfg

	provider, err := llm.New(llm.Options{Config: cfg.LLM, Logger: d.logger})
	if err != nil {
		return nil, fmt.Errorf("llm provider: %w", err)
	}
	tax, err := taxonomy.Load(taxonomy.Paths{Taxonomy: cfg.Taxonomy.TaxonomyPath, Measures: cfg.Taxonomy.MeasuresPath})
	if err != nil {
		return nil, fmt.Errorf("load taxonomy: %w", err)
	}
	tmpl, err := prompts.Load(cfg.LLM.PromptsPath)
	if err != nil {
		return nil, err
	}

	structurer, err := parser.NewStructurer(parser.StructurerOptions{
		Provider:    provider,
		Prompts:     tmpl,
		Temperature: cfg.LLM.Temperature,
		MaxChars:    cfg.LLM.MaxSceneChars,
		Logger:      d.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("scene structurer: %w", err)
	}
	risk, err := analyzer.New(analyzer.Options{
		Provider:    provider,
		Taxonomy:    tax,
		Prompts:     tmpl,
		Temperature: cfg.LLM.Temperature,
		MaxChars:    cfg.LLM.MaxSceneChars,
		Lenient:     cfg.LLM.LenientAnalysis,
		Logger:      d.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("risk analyzer: %w", err)
	}

	var pusher core.ReportPusher
	p, err := delivery.NewPusherFromConfig(cfg.Delivery, d.logger)
	if err != nil {
		return nil, fmt.Errorf("report pusher: %w", err)
	}
	if p.Configured() {
		pusher = p
	} else {
		d.logger.Info("push delivery not configured; push jobs fall back to pull")
	}

	parsers := parser.NewRegistry(nil)
	acts, err := activities.New(activities.Options{
		Store:      d.store,
		Parsers:    parsers,
		Structurer: structurer,
		Analyzer:   risk,
		Pusher:     pusher,
		Jobs:       d.jobs,
		Reports:    d.reports,
		Logger:     d.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("activities: %w", err)
	}

	engine, err := workflow.NewEngine(workflow.EngineOptions{
		History:             d.history,
		ActivityConcurrency: int64(cfg.Worker.ActivityConcurrency),
		Logger:              d.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("workflow engine: %w", err)
	}
	if err := securitycheck.Register(engine, acts, parsers, nil); err != nil {
		return nil, fmt.Errorf("register security check workflow: %w", err)
	}

	d.logger.Info("workflow engine ready",
		"llm_provider", provider.Name(),
		"model", cfg.LLM.Model,
		"activity_concurrency", cfg.Worker.ActivityConcurrency,
		"push_delivery", pusher != nil,
	)
	return engine, nil
}
