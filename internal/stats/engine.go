/*
PURPOSE:
  Multi-run statistics engine. Combines N run aggregates of one
  condition into per-metric count, mean, sample standard deviation and a
  two-sided confidence interval.

REQUIREMENTS:
  User-specified:
  - N >= 2 runs, fewer is a usage error ("insufficient samples").
  - Student t critical values for small N; never the fixed 1.96.
  - Metrics missing in some runs are aggregated over the runs where
    present and the shortfall is reported, never imputed as zero.
  - Output sorted by concurrency, dataset, metric.

  Implementation-discovered:
  - Values are shifted by the first sample before the mean/variance pass
    so identical samples yield an exact mean and a zero-width interval.

ARCHITECTURE INTEGRATION:
  - Called by: internal/cli (stats, compare)
  - Uses: internal/model, gonum stat and distuv

ERROR HANDLING:
  - model.ErrInsufficientSamples, model.ErrConditionMismatch (wrapped,
    naming the condition or the offending run).

IMPLEMENTATION RULES:
  - Never mutates the input aggregates.
  - Pure function of its inputs; safe to call concurrently.

USAGE:
  st, err := stats.Compute(aggs, stats.DefaultOptions())

SELF-HEALING INSTRUCTIONS:
  - New metric scopes need an entry in collect() and model.Scope.Rank().

RELATED FILES:
  - internal/stats/interval.go
  - internal/compare/builder.go

MAINTENANCE:
  - None.
*/

package stats

import (
	"errors"
	"fmt"
	"sort"

	"github.com/daryltucker/forest-compare/internal/model"
)

// Options tunes the engine.
type Options struct {
	// ConfidenceLevel of the two-sided interval, in (0, 1).
	ConfidenceLevel float64
	// MinRuns is the smallest accepted number of aggregates (at least 2).
	MinRuns int
}

// DefaultOptions returns a 95% interval and a minimum of two runs.
func DefaultOptions() Options {
	return Options{ConfidenceLevel: 0.95, MinRuns: 2}
}

func (o Options) validate() error {
	if o.ConfidenceLevel <= 0 || o.ConfidenceLevel >= 1 {
		return fmt.Errorf("confidence level must be in (0, 1), got %v", o.ConfidenceLevel)
	}
	if o.MinRuns < 2 {
		return errors.New("minimum runs must be at least 2")
	}
	return nil
}

// Compute derives the statistics of one condition from its run aggregates.
func Compute(aggs []*model.RunAggregate, opts Options) (*model.ConditionStatistics, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if len(aggs) == 0 {
		return nil, fmt.Errorf("%w: no run aggregates given, need at least %d", model.ErrInsufficientSamples, opts.MinRuns)
	}

	cond := aggs[0].Condition
	for _, a := range aggs[1:] {
		if a.Condition != cond {
			return nil, fmt.Errorf("%w: run %s (%s) is %s, expected %s",
				model.ErrConditionMismatch, a.RunDir, a.RunID, a.Condition, cond)
		}
	}
	if len(aggs) < opts.MinRuns {
		return nil, fmt.Errorf("%w: condition %s has %d run(s), need at least %d",
			model.ErrInsufficientSamples, cond, len(aggs), opts.MinRuns)
	}

	samples := collect(aggs)

	keys := make([]model.MetricKey, 0, len(samples))
	for k := range samples {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })

	st := &model.ConditionStatistics{
		Condition:       cond,
		Runs:            len(aggs),
		RunIDs:          make([]string, 0, len(aggs)),
		ConfidenceLevel: opts.ConfidenceLevel,
		Rows:            make([]model.StatRow, 0, len(keys)),
	}
	for _, a := range aggs {
		st.RunIDs = append(st.RunIDs, a.RunID)
	}
	for _, k := range keys {
		s := Describe(samples[k], opts.ConfidenceLevel)
		st.Rows = append(st.Rows, model.StatRow{
			MetricKey: k,
			Summary:   s,
			Missing:   len(aggs) - s.Count,
		})
	}
	return st, nil
}

// collect gathers the per-run values of every metric key, in run order.
func collect(aggs []*model.RunAggregate) map[model.MetricKey][]float64 {
	out := map[model.MetricKey][]float64{}
	add := func(k model.MetricKey, v float64) {
		out[k] = append(out[k], v)
	}

	for _, a := range aggs {
		for _, lr := range a.Load {
			for name, v := range lr.Metrics() {
				add(model.MetricKey{Scope: model.ScopeLoad, Concurrency: lr.Concurrency, Metric: name}, v)
			}
		}
		for _, ar := range a.Accuracy {
			for name, v := range ar.Scores {
				add(model.MetricKey{Scope: model.ScopeAccuracy, Dataset: ar.Dataset, Metric: name}, v)
			}
		}
		for name, v := range a.OpsMetrics() {
			add(model.MetricKey{Scope: model.ScopeOps, Metric: name}, v)
		}
	}
	return out
}
