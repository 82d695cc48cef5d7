/*
PURPOSE:
  Defines the 'compare' subcommand.
  Builds the host vs container comparison report and all its outputs.

REQUIREMENTS:
  User-specified:
  - N >= 2 runs per condition.
  - Report lists every metric of either side, with the verdict derived
    from confidence-interval overlap.

  Implementation-discovered:
  - Runs without run_aggregate.json are aggregated on the fly.
  - Publishing is opt-in (--publish) and needs an s3 bucket configured.

ARCHITECTURE INTEGRATION:
  - Calls: internal/stats, internal/compare, internal/render, internal/store
  - Uses: internal/config

ERROR HANDLING:
  - Returns error on insufficient runs, condition mismatch, render or
    publish failure.

IMPLEMENTATION RULES:
  - Setup flags in init().
  - Logic: Load Config -> Override -> Stats -> Compare -> Render -> Publish.

USAGE:
  forest-compare compare --host runs/host_* --container runs/ctn_* -o report

SELF-HEALING INSTRUCTIONS:
  - New outputs belong in internal/render, not here.

RELATED FILES:
  - internal/cli/stats.go
  - internal/render/render.go

MAINTENANCE:
  - None.
*/

package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/daryltucker/forest-compare/internal/compare"
	"github.com/daryltucker/forest-compare/internal/model"
	"github.com/daryltucker/forest-compare/internal/output"
	"github.com/daryltucker/forest-compare/internal/render"
	"github.com/daryltucker/forest-compare/internal/store"
)

var (
	hostDirs       []string
	containerDirs  []string
	compareOut     string
	cmpReaggregate bool
	noCharts       bool
	promTextfile   string
	publishReport  bool
)

var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Compare host-process and container runs",
	Long: `Computes multi-run statistics for both conditions and writes the
comparison report to the output directory:

  comparison_report.json, statistics_<condition>.json,
  statistics_summary.csv, per_run_index.csv, datasets_summary_wide.csv,
  extended_ops_summary.csv, comparison_summary.txt,
  latex_table_<metric>.tex, latex_table_load.tex,
  metrics_combined_<metric>.png, combined_perf_users.png,
  deployment_resource_usage.png and, when requested, metrics.prom.

Metric names in file names keep only [A-Za-z0-9_.-]; other characters
become "_".

Delta is host minus container. A metric differs only when its confidence
intervals do not overlap.`,
	Example: `  forest-compare compare --host runs/host_1,runs/host_2 --container runs/ctn_1,runs/ctn_2

  # Five runs each, 99% intervals, no charts, Prometheus textfile
  forest-compare compare --host 'runs/host_*' --container 'runs/ctn_*' \
      --confidence 0.99 --no-charts --prom-textfile metrics.prom -o report`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		applyStatsFlags(cmd, cfg)
		if compareOut != "" {
			cfg.OutputDir = compareOut
		}
		if noCharts {
			cfg.Charts = false
		}
		if promTextfile != "" {
			cfg.PromTextfile = promTextfile
		}

		hosts, err := expandDirs(hostDirs)
		if err != nil {
			return err
		}
		ctns, err := expandDirs(containerDirs)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		hostAggs, hostStats, err := conditionStatistics(ctx, cfg, model.ConditionHost, hosts, cmpReaggregate)
		if err != nil {
			return err
		}
		ctnAggs, ctnStats, err := conditionStatistics(ctx, cfg, model.ConditionContainer, ctns, cmpReaggregate)
		if err != nil {
			return err
		}

		rep, err := compare.Build(hostStats, ctnStats)
		if err != nil {
			return err
		}

		files, err := render.Write(render.Inputs{
			Report: rep,
			Left:   hostStats,
			Right:  ctnStats,
			Runs:   append(append([]*model.RunAggregate{}, hostAggs...), ctnAggs...),
		}, render.Options{
			Dir:          cfg.OutputDir,
			Charts:       cfg.Charts,
			PromTextfile: cfg.PromTextfile,
		})
		if err != nil {
			return err
		}
		output.Logger.Info("Wrote comparison report", "dir", cfg.OutputDir, "files", len(files), "differing", rep.Differing)
		fmt.Fprint(cmd.OutOrStdout(), render.SummaryTable(rep))

		if !publishReport {
			return nil
		}
		if !cfg.S3.Enabled() {
			return fmt.Errorf("--publish needs s3.bucket (or FOREST_S3_BUCKET) to be set")
		}
		pub, err := store.NewPublisher(ctx, cfg.S3)
		if err != nil {
			return err
		}
		report := filepath.Base(filepath.Clean(cfg.OutputDir))
		keys, err := pub.Publish(ctx, report, files)
		if err != nil {
			return err
		}
		output.Logger.Info("Published report", "bucket", cfg.S3.Bucket, "objects", len(keys))
		return nil
	},
}

// expandDirs resolves glob patterns so quoted globs work on every shell.
func expandDirs(patterns []string) ([]string, error) {
	var dirs []string
	for _, p := range patterns {
		matches, err := filepath.Glob(p)
		if err != nil {
			return nil, fmt.Errorf("bad run pattern %q: %w", p, err)
		}
		if len(matches) == 0 {
			dirs = append(dirs, p)
			continue
		}
		dirs = append(dirs, matches...)
	}
	return dirs, nil
}

func init() {
	rootCmd.AddCommand(compareCmd)

	compareCmd.Flags().StringSliceVar(&hostDirs, "host", nil, "Host-process run directories (comma-separated or glob)")
	compareCmd.Flags().StringSliceVar(&containerDirs, "container", nil, "Container run directories (comma-separated or glob)")
	compareCmd.Flags().StringVarP(&compareOut, "output-dir", "o", "", "Report directory (default multi_run_report)")
	compareCmd.Flags().BoolVar(&cmpReaggregate, "reaggregate", false, "Rebuild run aggregates before comparing")
	compareCmd.Flags().BoolVar(&noCharts, "no-charts", false, "Skip PNG chart rendering")
	compareCmd.Flags().StringVar(&promTextfile, "prom-textfile", "", "Also write the statistics as a Prometheus textfile")
	compareCmd.Flags().BoolVar(&publishReport, "publish", false, "Upload the report files to the configured S3 bucket")
	addStatsFlags(compareCmd)
	_ = compareCmd.MarkFlagRequired("host")
	_ = compareCmd.MarkFlagRequired("container")
}
