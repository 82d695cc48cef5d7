/*
PURPOSE:
  Defines the 'stats' subcommand.
  Computes the multi-run statistics of one deployment condition.

REQUIREMENTS:
  User-specified:
  - N >= 2 runs of a single condition.
  - Arguments are run directories or run_aggregate.json files.

  Implementation-discovered:
  - Directories without an aggregate are aggregated first; files are
    used as they are.

ARCHITECTURE INTEGRATION:
  - Calls: internal/aggregate, internal/stats
  - Uses: internal/config
  - Shared with: internal/cli/compare.go (conditionStatistics)

ERROR HANDLING:
  - Returns error on missing paths, too few runs, or an aggregate of
    the wrong condition.

IMPLEMENTATION RULES:
  - Setup flags in init().
  - Logic: Load Config -> Override -> Aggregate missing -> Load -> Stats.

USAGE:
  forest-compare stats --condition host runs/host_*

SELF-HEALING INSTRUCTIONS:
  - Condition checks belong in conditionStatistics so compare gets them too.

RELATED FILES:
  - internal/cli/compare.go
  - internal/stats/engine.go

MAINTENANCE:
  - None.
*/

package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/daryltucker/forest-compare/internal/aggregate"
	"github.com/daryltucker/forest-compare/internal/config"
	"github.com/daryltucker/forest-compare/internal/model"
	"github.com/daryltucker/forest-compare/internal/output"
	"github.com/daryltucker/forest-compare/internal/parser"
	"github.com/daryltucker/forest-compare/internal/stats"
)

var (
	statsCondition   string
	statsOut         string
	statsReaggregate bool
	confidenceLevel  float64
	minRuns          int
)

var statsCmd = &cobra.Command{
	Use:   "stats [run-dir|aggregate-file...]",
	Short: "Compute multi-run statistics for one condition",
	Long: `Loads the run aggregates of one condition (aggregating runs that have
none yet) and prints mean, sample standard deviation and the Student t
confidence interval of every metric as JSON. Arguments may be run
directories or run_aggregate.json files; files are never re-aggregated.`,
	Example: `  forest-compare stats --condition host runs/host_*
  forest-compare stats --condition host --confidence 0.99 -o host_stats.json runs/host_*`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		applyStatsFlags(cmd, cfg)

		cond, err := model.ParseCondition(statsCondition)
		if err != nil {
			return err
		}
		_, st, err := conditionStatistics(cmd.Context(), cfg, cond, args, statsReaggregate)
		if err != nil {
			return err
		}

		if statsOut != "" {
			return output.WriteJSONFile(statsOut, st)
		}
		data, err := output.MarshalDocument(st)
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

// applyStatsFlags overrides cfg with the statistics flags set on cmd.
func applyStatsFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("confidence") {
		cfg.ConfidenceLevel = confidenceLevel
	}
	if cmd.Flags().Changed("min-runs") {
		cfg.MinRuns = minRuns
	}
}

// conditionStatistics loads (or first builds) the aggregates of dirs and
// computes the statistics of cond.
func conditionStatistics(ctx context.Context, cfg *config.Config, cond model.Condition, dirs []string, reaggregate bool) ([]*model.RunAggregate, *model.ConditionStatistics, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	var pending []aggregate.RunContext
	for _, dir := range dirs {
		fi, err := os.Stat(dir)
		if err != nil {
			return nil, nil, err
		}
		if !fi.IsDir() {
			// An aggregate file given directly is used as is.
			continue
		}
		_, err = os.Stat(filepath.Join(dir, parser.AggregateFile))
		switch {
		case reaggregate || errors.Is(err, os.ErrNotExist):
			pending = append(pending, aggregate.RunContext{Dir: dir, Condition: cond})
		case err != nil:
			return nil, nil, err
		}
	}
	if len(pending) > 0 {
		output.Logger.Info("Aggregating runs", "condition", cond, "runs", len(pending))
		agg := aggregate.New(parser.New(cfg.Datasets))
		if _, err := agg.RunAll(ctx, pending, parser.Lifecycle{}); err != nil {
			return nil, nil, err
		}
	}

	aggs, err := aggregate.LoadAll(ctx, dirs)
	if err != nil {
		return nil, nil, err
	}
	for i, a := range aggs {
		if a.Condition != cond {
			return nil, nil, fmt.Errorf("%w: %s holds a %s aggregate, expected %s",
				model.ErrConditionMismatch, dirs[i], a.Condition, cond)
		}
	}

	st, err := stats.Compute(aggs, stats.Options{ConfidenceLevel: cfg.ConfidenceLevel, MinRuns: cfg.MinRuns})
	if err != nil {
		return nil, nil, err
	}
	return aggs, st, nil
}

func addStatsFlags(cmd *cobra.Command) {
	cmd.Flags().Float64Var(&confidenceLevel, "confidence", 0.95, "Confidence level of the intervals, in (0, 1)")
	cmd.Flags().IntVar(&minRuns, "min-runs", 2, "Minimum number of runs per condition")
}

func init() {
	rootCmd.AddCommand(statsCmd)

	statsCmd.Flags().StringVarP(&statsCondition, "condition", "c", "", "Deployment condition: host or container")
	statsCmd.Flags().StringVarP(&statsOut, "output", "o", "", "Write the statistics to this file instead of stdout")
	statsCmd.Flags().BoolVar(&statsReaggregate, "reaggregate", false, "Rebuild run aggregates before computing")
	addStatsFlags(statsCmd)
	_ = statsCmd.MarkFlagRequired("condition")
}
