package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/target/scriptcheck/internal/domain/model"
)

const defaultMigrationTimeout = 5 * time.Minute

func newMigrateCommand(ctx *commandContext) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			mctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			if err := ctx.runMigrations(mctx); err != nil {
				return fmt.Errorf("run migrations: %w", err)
			}
			fmt.Fprintln(ctx.out, "migrations applied")
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", defaultMigrationTimeout, "Overall migration timeout")
	return cmd
}

func newGenerateSecretCommand(ctx *commandContext) *cobra.Command {
	var size int
	cmd := &cobra.Command{
		Use:   "generate-secret",
		Short: "Print a random hex key suitable for BUFFER_SECRET_KEY",
		RunE: func(*cobra.Command, []string) error {
			if size < 16 || size > 64 {
				return errors.New("--bytes must be between 16 and 64")
			}
			b := make([]byte, size)
			if _, err := rand.Read(b); err != nil {
				return fmt.Errorf("generate secret: %w", err)
			}
			fmt.Fprintln(ctx.out, hex.EncodeToString(b))
			return nil
		},
	}
	cmd.Flags().IntVar(&size, "bytes", 32, "Secret length in bytes")
	return cmd
}

func newRunStatusCommand(ctx *commandContext) *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "run-status",
		Short: "Show the state of a workflow run (same id as its job)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			runs, err := ctx.runRepo()
			if err != nil {
				return err
			}
			run, err := runs.GetByID(cmd.Context(), strings.TrimSpace(id))
			if err != nil {
				return err
			}
			fmt.Fprintln(ctx.out, renderRun(run))
			return nil
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "Workflow run id (required)")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func newRunStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run-stats",
		Short: "Count security check runs by status",
		RunE: func(cmd *cobra.Command, _ []string) error {
			runs, err := ctx.runRepo()
			if err != nil {
				return err
			}
			stats, err := runs.Stats(cmd.Context(), model.WorkflowTypeSecurityCheck)
			if err != nil {
				return err
			}
			rows := [][]string{
				{"pending", strconv.FormatInt(stats.Pending, 10)},
				{"running", strconv.FormatInt(stats.Running, 10)},
				{"completed", strconv.FormatInt(stats.Completed, 10)},
				{"failed", strconv.FormatInt(stats.Failed, 10)},
				{"canceled", strconv.FormatInt(stats.Canceled, 10)},
			}
			fmt.Fprintln(ctx.out, renderTable([]string{"Status", "Runs"}, rows, 2))
			return nil
		},
	}
}

// renderRun shows run bookkeeping only; the input and result payloads are
// left out.
func renderRun(run *model.WorkflowRun) string {
	return renderFields([][2]string{
		{"ID", run.ID},
		{"Type", string(run.WorkflowType)},
		{"Status", string(run.Status)},
		{"Priority", strconv.Itoa(run.Priority)},
		{"Retries", fmt.Sprintf("%d/%d", run.RetryCount, run.MaxRetries)},
		{"Cancel requested", strconv.FormatBool(run.CancelRequested)},
		{"Last error", deref(run.LastError)},
		{"Created", formatTime(&run.CreatedAt)},
		{"Started", formatTime(run.StartedAt)},
		{"Completed", formatTime(run.CompletedAt)},
		{"Deadline", formatTime(&run.DeadlineAt)},
		{"Lease expires", formatTime(run.LeaseExpiresAt)},
	})
}
