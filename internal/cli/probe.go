/*
PURPOSE:
  Defines the 'probe' subcommand.
  Waits for the service to answer and records its cold start.

REQUIREMENTS:
  User-specified:
  - Measure cold start against the service contract.
  - A service that never becomes ready is recorded, not fatal.

  Implementation-discovered:
  - The deploy script knows when it launched the service; --launched-at
    lets it pass that instant so cold start excludes script overhead.

ARCHITECTURE INTEGRATION:
  - Calls: internal/probe
  - Writes: <run-dir>/lifecycle.json

ERROR HANDLING:
  - Returns error on permanent rejection, cancellation, or when
    --require-ready is set and the budget was spent.

IMPLEMENTATION RULES:
  - Simple output to stdout.

USAGE:
  forest-compare probe --url http://localhost:8000/mcp --run-dir runs/ctn_1

SELF-HEALING INSTRUCTIONS:
  - None.

RELATED FILES:
  - internal/probe/probe.go

MAINTENANCE:
  - None.
*/

package cli

import (
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/daryltucker/forest-compare/internal/model"
	"github.com/daryltucker/forest-compare/internal/parser"
	"github.com/daryltucker/forest-compare/internal/probe"
)

var (
	probeURL          string
	probePrompt       string
	probeInterval     time.Duration
	probeBudget       time.Duration
	probeRunDir       string
	probeLaunchedAt   string
	probeDeploySecs   float64
	probeRequireReady bool
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Wait for the service to become ready and record cold start",
	Example: `  # Start the container, then probe it
  forest-compare probe --run-dir runs/ctn_1 --launched-at "$(date +%s.%N)"

  # Fail the pipeline when the service never answers within two minutes
  forest-compare probe --budget 2m --require-ready --run-dir runs/host_1`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		flags := cmd.Flags()
		if flags.Changed("url") {
			cfg.Probe.URL = probeURL
		}
		if flags.Changed("prompt") {
			cfg.Probe.Prompt = probePrompt
		}
		if flags.Changed("interval") {
			cfg.Probe.Interval = probeInterval
		}
		if flags.Changed("budget") {
			cfg.Probe.Budget = probeBudget
			// A shorter budget caps the per-request timeout.
			if cfg.Probe.Budget > 0 && cfg.Probe.Timeout > cfg.Probe.Budget {
				cfg.Probe.Timeout = cfg.Probe.Budget
			}
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		launched := time.Now()
		if probeLaunchedAt != "" {
			launched, err = parseInstant(probeLaunchedAt)
			if err != nil {
				return err
			}
		}

		res, err := probe.New(cfg.Probe).WaitReady(cmd.Context(), launched)
		if err != nil {
			return err
		}

		lc := res.Lifecycle()
		if flags.Changed("deploy-seconds") {
			lc.DeployTimeS = model.Float(probeDeploySecs)
		}
		path := filepath.Join(probeRunDir, parser.LifecycleFile)
		if err := probe.WriteLifecycle(path, lc); err != nil {
			return err
		}

		if res.Ready {
			fmt.Fprintf(cmd.OutOrStdout(), "ready after %s (%d attempts), wrote %s\n",
				res.ColdStart.Round(time.Millisecond), res.Attempts, path)
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "not ready within %s (%d attempts): %s\n", cfg.Probe.Budget, res.Attempts, res.LastError)
		if probeRequireReady {
			return fmt.Errorf("service at %s never became ready", cfg.Probe.URL)
		}
		return nil
	},
}

// parseInstant accepts RFC 3339 or Unix seconds with a fraction.
func parseInstant(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	secs, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --launched-at %q: want RFC 3339 or Unix seconds", s)
	}
	return time.Unix(0, int64(secs*float64(time.Second))), nil
}

func init() {
	rootCmd.AddCommand(probeCmd)

	probeCmd.Flags().StringVar(&probeURL, "url", "", "Service endpoint (default from config)")
	probeCmd.Flags().StringVar(&probePrompt, "prompt", "", "Prompt sent with each probe")
	probeCmd.Flags().DurationVar(&probeInterval, "interval", 0, "Maximum wait between probes")
	probeCmd.Flags().DurationVar(&probeBudget, "budget", 0, "Give up after this long")
	probeCmd.Flags().StringVar(&probeRunDir, "run-dir", ".", "Run directory receiving lifecycle.json")
	probeCmd.Flags().StringVar(&probeLaunchedAt, "launched-at", "", "When the service was started (RFC 3339 or Unix seconds); default now")
	probeCmd.Flags().Float64Var(&probeDeploySecs, "deploy-seconds", 0, "Deploy time in seconds to record alongside")
	probeCmd.Flags().BoolVar(&probeRequireReady, "require-ready", false, "Exit non-zero when the service never became ready")
}
