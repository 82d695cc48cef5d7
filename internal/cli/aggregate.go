/*
PURPOSE:
  Defines the 'aggregate' subcommand.
  Writes run_aggregate.json into each given run directory.

REQUIREMENTS:
  User-specified:
  - One aggregate per run, tagged with its condition.
  - Lifecycle timings may be supplied on the command line.

  Implementation-discovered:
  - Corrupt artifacts are skipped with a warning; --strict turns them
    into a failing exit code for CI pipelines.

ARCHITECTURE INTEGRATION:
  - Calls: internal/aggregate
  - Uses: internal/config, internal/parser

ERROR HANDLING:
  - Returns error if config load fails or any run cannot be aggregated.

IMPLEMENTATION RULES:
  - Setup flags in init().
  - Logic: Load Config -> Override -> Aggregator.RunAll.

USAGE:
  forest-compare aggregate --condition container runs/ctn_1 runs/ctn_2

SELF-HEALING INSTRUCTIONS:
  - Keep flag names aligned with lifecycle.json field names.

RELATED FILES:
  - internal/aggregate/aggregator.go

MAINTENANCE:
  - None.
*/

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/daryltucker/forest-compare/internal/aggregate"
	"github.com/daryltucker/forest-compare/internal/model"
	"github.com/daryltucker/forest-compare/internal/parser"
)

var (
	aggCondition     string
	aggDeploySeconds float64
	aggColdStartMS   float64
	aggImageSize     int64
	aggStrict        bool
)

var aggregateCmd = &cobra.Command{
	Use:   "aggregate [run-dir...]",
	Short: "Aggregate raw artifacts of one or more runs",
	Long: `Parses the artifacts of each run directory (metrics_<users>_stats.csv,
<dataset>_eval.json, resource samples, lifecycle.json) and writes a
run_aggregate.json next to them. Re-running on unchanged inputs produces
a byte-identical file.`,
	Example: `  # Aggregate five container runs
  forest-compare aggregate --condition container runs/ctn_*

  # Record lifecycle timings measured by the deploy script
  forest-compare aggregate --condition container --deploy-seconds 12.4 --image-size 734003200 runs/ctn_1`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		cond, err := model.ParseCondition(aggCondition)
		if err != nil {
			return err
		}

		overrides := lifecycleOverrides(cmd)

		rcs := make([]aggregate.RunContext, 0, len(args))
		for _, dir := range args {
			rcs = append(rcs, aggregate.RunContext{Dir: dir, Condition: cond})
		}

		agg := aggregate.New(parser.New(cfg.Datasets))
		results, err := agg.RunAll(cmd.Context(), rcs, overrides)
		if err != nil {
			return err
		}

		failed := 0
		for _, res := range results {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\tload_levels=%d datasets=%d warnings=%d\n",
				res.Path, res.Aggregate.RunID, len(res.Aggregate.Load),
				len(res.Aggregate.Accuracy), len(res.Aggregate.Warnings))
			failed += len(res.Errors)
		}
		if aggStrict && failed > 0 {
			return fmt.Errorf("%d corrupt artifact(s) skipped (--strict)", failed)
		}
		return nil
	},
}

// lifecycleOverrides returns the lifecycle fields set explicitly on cmd.
func lifecycleOverrides(cmd *cobra.Command) parser.Lifecycle {
	var lc parser.Lifecycle
	if cmd.Flags().Changed("deploy-seconds") {
		lc.DeployTimeS = model.Float(aggDeploySeconds)
	}
	if cmd.Flags().Changed("cold-start-ms") {
		lc.ColdStartMS = model.Float(aggColdStartMS)
	}
	if cmd.Flags().Changed("image-size") {
		lc.ImageSizeBytes = model.Int64(aggImageSize)
	}
	return lc
}

func init() {
	rootCmd.AddCommand(aggregateCmd)

	aggregateCmd.Flags().StringVarP(&aggCondition, "condition", "c", "", "Deployment condition: host or container")
	aggregateCmd.Flags().Float64Var(&aggDeploySeconds, "deploy-seconds", 0, "Deploy time in seconds (overrides lifecycle.json)")
	aggregateCmd.Flags().Float64Var(&aggColdStartMS, "cold-start-ms", 0, "Cold start in milliseconds (overrides lifecycle.json)")
	aggregateCmd.Flags().Int64Var(&aggImageSize, "image-size", 0, "Container image size in bytes (container condition only)")
	aggregateCmd.Flags().BoolVar(&aggStrict, "strict", false, "Fail when any artifact was corrupt")
	_ = aggregateCmd.MarkFlagRequired("condition")
}
