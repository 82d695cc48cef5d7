/*
PURPOSE:
  Defines the 'sample' subcommand.
  Records CPU % and RSS of the service process into the run directory.

REQUIREMENTS:
  User-specified:
  - One JSON line per sample in resource_samples.jsonl.

  Implementation-discovered:
  - Worker processes are children of the server process; their usage is
    summed when --children is set.

ARCHITECTURE INTEGRATION:
  - Calls: internal/sampler
  - Uses: internal/config, internal/output
  - Feeds: internal/parser (SamplesFile)

ERROR HANDLING:
  - Returns error when the process cannot be found or the file cannot
    be written. A process exit ends sampling without an error.

IMPLEMENTATION RULES:
  - Setup flags in init().
  - Logic: Load Config -> Override -> Open Source -> Sample until done.

USAGE:
  forest-compare sample --pid 4242 --run-dir runs/host_1 --duration 10m

SELF-HEALING INSTRUCTIONS:
  - If samples stop early, check that the pid is the server and not a
    short-lived launcher.

RELATED FILES:
  - internal/sampler/sampler.go
  - internal/parser/resource.go

MAINTENANCE:
  - None.
*/

package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/daryltucker/forest-compare/internal/output"
	"github.com/daryltucker/forest-compare/internal/parser"
	"github.com/daryltucker/forest-compare/internal/sampler"
)

var (
	samplePID      int32
	sampleRunDir   string
	sampleInterval time.Duration
	sampleDuration time.Duration
	sampleChildren bool
)

var sampleCmd = &cobra.Command{
	Use:   "sample",
	Short: "Record CPU and RSS of the service process",
	Long: `Samples the CPU % and resident memory of a process (and its children)
at a fixed interval and writes one JSON line per sample to
resource_samples.jsonl in the run directory. Stops on Ctrl-C, when the
process exits, or after --duration.`,
	Example: `  forest-compare sample --pid "$(pgrep -f uvicorn)" --run-dir runs/host_1 --duration 10m`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("interval") {
			cfg.Sampler.Interval = sampleInterval
		}

		ctx := cmd.Context()
		src, err := sampler.NewProcessSource(ctx, samplePID, sampleChildren)
		if err != nil {
			return err
		}

		if err := os.MkdirAll(sampleRunDir, 0o755); err != nil {
			return fmt.Errorf("failed to create run directory %s: %w", sampleRunDir, err)
		}
		path := filepath.Join(sampleRunDir, parser.SamplesFile)
		w, err := output.NewJSONWriter(path)
		if err != nil {
			return fmt.Errorf("failed to init sample writer at %s: %w", path, err)
		}
		defer w.Close()

		output.Logger.Info("Sampling process", "pid", samplePID, "interval", cfg.Sampler.Interval, "path", path)
		n, err := sampler.New(src, cfg.Sampler.Interval).Run(ctx, w, sampleDuration)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %d samples to %s\n", n, path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sampleCmd)

	sampleCmd.Flags().Int32Var(&samplePID, "pid", 0, "Process id of the service")
	sampleCmd.Flags().StringVar(&sampleRunDir, "run-dir", ".", "Run directory receiving resource_samples.jsonl")
	sampleCmd.Flags().DurationVar(&sampleInterval, "interval", 0, "Sampling interval (default from config)")
	sampleCmd.Flags().DurationVar(&sampleDuration, "duration", 0, "Stop after this long (0 = until interrupted)")
	sampleCmd.Flags().BoolVar(&sampleChildren, "children", true, "Include child processes")
	_ = sampleCmd.MarkFlagRequired("pid")
}
