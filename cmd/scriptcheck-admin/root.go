package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand(ctx *commandContext) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "scriptcheck-admin",
		Short:         "Operator tooling for the scriptcheck service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPostRun: func(*cobra.Command, []string) {
			ctx.close()
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	rootCmd.AddCommand(
		newMigrateCommand(ctx),
		newCreateAPIKeyCommand(ctx),
		newRevokeAPIKeyCommand(ctx),
		newListAPIKeysCommand(ctx),
		newGenerateSecretCommand(ctx),
		newRunStatusCommand(ctx),
		newRunStatsCommand(ctx),
	)
	return rootCmd
}
