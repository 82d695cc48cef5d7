/*
PURPOSE:
  Defines the root Cobra command for the Forest Compare CLI.
  Handles global flags, logging setup and command initialization.

REQUIREMENTS:
  User-specified:
  - Provide a CLI interface.
  - Support global flags like --config.

  Implementation-discovered:
  - Needs to expose an Execute() function for main.go.
  - probe and sample block; Ctrl-C must cancel them cleanly.

ARCHITECTURE INTEGRATION:
  - Called by: cmd/forest-compare/main.go
  - Calls: Child commands (aggregate, stats, compare, probe, sample, version)

ERROR HANDLING:
  - Returns error to main.go for exit code handling.

IMPLEMENTATION RULES:
  - Use `PersistentFlags()` for flags available to all subcommands.
  - Keep Run logic in subcommands, Root only configures logging.

USAGE:
  Called by main.go.

SELF-HEALING INSTRUCTIONS:
  - If adding new global flags, add them to init().

RELATED FILES:
  - cmd/forest-compare/main.go
  - internal/config/config.go

MAINTENANCE:
  - Update when adding global configuration options.
*/

package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/daryltucker/forest-compare/internal/config"
	"github.com/daryltucker/forest-compare/internal/output"
)

var (
	// cfgFile stores the path to the config file (if specified via flag)
	cfgFile   string
	logLevel  string
	logFormat string

	rootCmd = &cobra.Command{
		Use:   "forest-compare",
		Short: "Aggregate and compare host vs container benchmark runs",
		Long: `Turns raw per-run benchmark artifacts (load test CSVs, evaluation JSON,
resource samples, lifecycle timings) into per-run aggregates, multi-run
statistics with confidence intervals and a host vs container comparison.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			output.Configure(os.Stderr, logLevel, logFormat)
		},
	}
)

// Execute executes the root command. SIGINT and SIGTERM cancel the
// command context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

// loadConfig reads the configuration selected by --config.
func loadConfig() (*config.Config, error) {
	return config.Load(cfgFile)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./forest_compare.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format: text or json")
}
