package main

import (
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/couchcryptid/marine-ops/internal/config"
	"github.com/couchcryptid/marine-ops/internal/observability"
	"github.com/spf13/cobra"
)

var (
	cfg    *config.Config
	logger *slog.Logger

	// metrics is registered once per process; commands share it.
	metrics = sync.OnceValue(observability.NewMetrics)
)

var rootCmd = &cobra.Command{
	Use:   "marinectl",
	Short: "Operator CLI for the marine forecast fusion service",
	Long: `Runs the fusion and forecast engine from the command line: sailing
decisions from bulletin readings, provider-chain forecasts, ERI scoring, and
forecast cache maintenance.

Configuration is read from the same environment variables as the service.
Logs go to stderr; command output goes to stdout.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c
		logger = observability.NewLoggerTo(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)
		return nil
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
