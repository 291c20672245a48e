// Package cli wires the finplan-core commands: the API server and the
// schema and database maintenance tasks.
package cli

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/finplan-core/internal/config"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "finplan-core",
	Short: "Client data collection service for financial planners",
	Long: `finplan-core serves the intake form used to collect a client's financial
situation and persists each client's answers as a draft until it is finalized.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute(ctx context.Context, v string) error {
	if v != "" {
		version = v
	}
	return rootCmd.ExecuteContext(ctx)
}

// loadConfig reads configuration and installs the configured logger as the default
func loadConfig(cmd *cobra.Command) (config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, nil, err
	}
	logger := cfg.NewLogger(cmd.ErrOrStderr())
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
