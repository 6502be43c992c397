package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/target/scriptcheck/config"
	"github.com/target/scriptcheck/internal/service"
)

func (c *commandContext) authService() (*service.AuthService, error) {
	repo, err := c.apiKeyRepo()
	if err != nil {
		return nil, err
	}
	return service.NewAuthService(service.AuthServiceOptions{
		Mode:    config.AuthModeAPIKey,
		APIKeys: repo,
		Logger:  c.log(),
	})
}

func newCreateAPIKeyCommand(ctx *commandContext) *cobra.Command {
	var (
		userID      string
		name        string
		description string
		expiresIn   string
	)
	cmd := &cobra.Command{
		Use:   "create-api-key",
		Short: "Issue an API key; the plaintext is printed once",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ttl, err := parseTTL(expiresIn)
			if err != nil {
				return err
			}
			auth, err := ctx.authService()
			if err != nil {
				return err
			}
			req := service.IssueAPIKeyRequest{UserID: userID, Name: name, TTL: ttl}
			if d := strings.TrimSpace(description); d != "" {
				req.Description = &d
			}
			issued, err := auth.IssueAPIKey(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Fprintln(ctx.out, renderFields([][2]string{
				{"ID", issued.Key.ID},
				{"User", issued.Key.UserID},
				{"Name", issued.Key.Name},
				{"Expires", formatTime(&issued.Key.ExpiresAt)},
			}))
			fmt.Fprintf(ctx.out, "\nAPI key (shown once): %s\n", issued.Plaintext)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "Owner user id (required)")
	cmd.Flags().StringVar(&name, "name", "", "Human-readable key name (required)")
	cmd.Flags().StringVar(&description, "description", "", "Optional description")
	cmd.Flags().StringVar(&expiresIn, "expires-in", "", "Lifetime such as 720h or 90d (default 90d)")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newRevokeAPIKeyCommand(ctx *commandContext) *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "revoke-api-key",
		Short: "Deactivate an API key by id",
		RunE: func(cmd *cobra.Command, _ []string) error {
			auth, err := ctx.authService()
			if err != nil {
				return err
			}
			if err := auth.RevokeAPIKey(cmd.Context(), strings.TrimSpace(id)); err != nil {
				return err
			}
			fmt.Fprintf(ctx.out, "revoked %s\n", id)
			return nil
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "API key id (required)")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func newListAPIKeysCommand(ctx *commandContext) *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "list-api-keys",
		Short: "List a user's API keys",
		RunE: func(cmd *cobra.Command, _ []string) error {
			auth, err := ctx.authService()
			if err != nil {
				return err
			}
			keys, err := auth.ListAPIKeys(cmd.Context(), strings.TrimSpace(userID))
			if err != nil {
				return err
			}
			if len(keys) == 0 {
				fmt.Fprintln(ctx.out, "no API keys")
				return nil
			}
			rows := make([][]string, 0, len(keys))
			for _, k := range keys {
				rows = append(rows, []string{
					k.ID,
					k.Name,
					strconv.FormatBool(k.IsActive),
					formatTime(&k.ExpiresAt),
					formatTime(k.LastUsedAt),
					strconv.Itoa(k.UsageCount),
				})
			}
			fmt.Fprintln(ctx.out, renderTable([]string{"ID", "Name", "Active", "Expires", "Last used", "Uses"}, rows, 6))
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "Owner user id (required)")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

// parseTTL accepts Go durations plus a whole-day "Nd" form. Empty means default.
func parseTTL(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	var (
		d   time.Duration
		err error
	)
	if days, ok := strings.CutSuffix(s, "d"); ok {
		var n int
		n, err = strconv.Atoi(days)
		d = time.Duration(n) * 24 * time.Hour
	} else {
		d, err = time.ParseDuration(s)
	}
	if err != nil {
		return 0, fmt.Errorf("invalid --expires-in %q: %w", s, err)
	}
	if d <= 0 {
		return 0, errors.New("--expires-in must be positive")
	}
	return d, nil
}
