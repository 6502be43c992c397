package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/target/scriptcheck/config"
	"github.com/target/scriptcheck/internal/bootstrap"
	"github.com/target/scriptcheck/internal/core"
	"github.com/target/scriptcheck/internal/data"
	"github.com/target/scriptcheck/internal/domain/model"
)

// runReader is the slice of the run repository the CLI inspects.
type runReader interface {
	GetByID(ctx context.Context, id string) (*model.WorkflowRun, error)
	Stats(ctx context.Context, wt model.WorkflowType) (*model.RunStats, error)
}

type commandContext struct {
	out    io.Writer
	logger *slog.Logger

	configOnce sync.Once
	config     *config.AppConfig
	configErr  error

	db *sql.DB

	// Set by tests to bypass Postgres.
	apiKeys core.APIKeyRepository
	runs    runReader
	migrate func(ctx context.Context) error
}

func newCommandContext(out io.Writer) *commandContext {
	return &commandContext{out: out}
}

func (c *commandContext) ensureConfig() (*config.AppConfig, error) {
	c.configOnce.Do(func() {
		cfg, err := bootstrap.LoadConfig()
		if err != nil {
			c.configErr = err
			return
		}
		c.config = &cfg
		if c.logger == nil {
			c.logger = bootstrap.InitLogger(cfg.LogLevel)
		}
	})
	return c.config, c.configErr
}

func (c *commandContext) log() *slog.Logger {
	if c.logger == nil {
		return slog.Default()
	}
	return c.logger
}

func (c *commandContext) database() (*sql.DB, error) {
	if c.db != nil {
		return c.db, nil
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	db, err := bootstrap.ConnectDB(context.Background(), bootstrap.DatabaseConfig{DBConfig: cfg.Postgres, Logger: c.log()})
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}
	c.db = db
	return db, nil
}

func (c *commandContext) apiKeyRepo() (core.APIKeyRepository, error) {
	if c.apiKeys != nil {
		return c.apiKeys, nil
	}
	db, err := c.database()
	if err != nil {
		return nil, err
	}
	return data.NewAPIKeyRepo(db, data.RealTimeProvider{}), nil
}

func (c *commandContext) runRepo() (runReader, error) {
	if c.runs != nil {
		return c.runs, nil
	}
	db, err := c.database()
	if err != nil {
		return nil, err
	}
	return data.NewWorkflowRunRepo(db, data.RunRepoConfig{Logger: c.log()}), nil
}

func (c *commandContext) runMigrations(ctx context.Context) error {
	if c.migrate != nil {
		return c.migrate(ctx)
	}
	db, err := c.database()
	if err != nil {
		return err
	}
	return bootstrap.RunMigrations(ctx, db, c.log())
}

func (c *commandContext) close() {
	if c.db == nil {
		return
	}
	if err := c.db.Close(); err != nil {
		c.log().Warn("close database", "error", err)
	}
	c.db = nil
}
