/*
PURPOSE:
  Joins the statistics of two conditions into a ComparisonReport: one row
  per concurrency level, per dataset and for the run-level operational
  metrics, each holding side-by-side summaries, the delta and the
  confidence-interval overlap flag.

REQUIREMENTS:
  User-specified:
  - Every metric present in either condition gets a comparison; the
    missing side is "not applicable", never dropped.
  - The overlap flag, not a numeric threshold, drives the verdict.
  - Swapping the inputs negates every delta and keeps every flag.

  Implementation-discovered:
  - Delta is positional (left minus right); the CLI passes host as left.

ARCHITECTURE INTEGRATION:
  - Called by: internal/cli (compare)
  - Uses: internal/model
  - Feeds: internal/render

ERROR HANDLING:
  - Nil inputs or different confidence levels are rejected.

IMPLEMENTATION RULES:
  - Output order follows model.MetricKey.Less.

USAGE:
  rep, err := compare.Build(hostStats, containerStats)

SELF-HEALING INSTRUCTIONS:
  - None.

RELATED FILES:
  - internal/stats/engine.go
  - internal/render/

MAINTENANCE:
  - None.
*/

package compare

import (
	"errors"
	"fmt"
	"sort"

	"github.com/daryltucker/forest-compare/internal/model"
)

// Per-metric verdicts.
const (
	VerdictNoDifference  = "no significant difference"
	VerdictLeftHigher    = "left higher"
	VerdictLeftLower     = "left lower"
	VerdictNotApplicable = "not applicable"
	VerdictTooFewSamples = "insufficient samples"
)

// Build compares left against right.
func Build(left, right *model.ConditionStatistics) (*model.ComparisonReport, error) {
	if left == nil || right == nil {
		return nil, errors.New("both condition statistics are required")
	}
	if left.ConfidenceLevel != right.ConfidenceLevel {
		return nil, fmt.Errorf("confidence levels differ: %s uses %v, %s uses %v",
			left.Condition, left.ConfidenceLevel, right.Condition, right.ConfidenceLevel)
	}

	keys := unionKeys(left, right)

	rep := &model.ComparisonReport{
		Left:            left.Condition,
		Right:           right.Condition,
		LeftRuns:        left.Runs,
		RightRuns:       right.Runs,
		ConfidenceLevel: left.ConfidenceLevel,
		Rows:            []model.ComparisonRow{},
	}

	var row *model.ComparisonRow
	var group model.MetricKey
	for _, k := range keys {
		if row == nil || k.Group() != group {
			group = k.Group()
			rep.Rows = append(rep.Rows, model.ComparisonRow{
				Scope:       k.Scope,
				Concurrency: k.Concurrency,
				Dataset:     k.Dataset,
				Metrics:     []model.MetricComparison{},
			})
			row = &rep.Rows[len(rep.Rows)-1]
		}

		mc := compareMetric(k, left, right)
		if mc.Overlap != nil {
			rep.Compared++
			if !*mc.Overlap {
				rep.Differing++
			}
		}
		row.Metrics = append(row.Metrics, mc)
	}

	rep.Verdict = overallVerdict(rep)
	return rep, nil
}

func compareMetric(k model.MetricKey, left, right *model.ConditionStatistics) model.MetricComparison {
	mc := model.MetricComparison{Metric: k.Metric, Verdict: VerdictNotApplicable}

	if r, ok := left.Lookup(k); ok {
		s := r.Summary
		mc.Left = &s
	}
	if r, ok := right.Lookup(k); ok {
		s := r.Summary
		mc.Right = &s
	}
	if mc.Left == nil || mc.Right == nil {
		return mc
	}

	mc.Delta = model.Float(mc.Left.Mean - mc.Right.Mean)
	if mc.Left.CILow == nil || mc.Right.CILow == nil {
		mc.Verdict = VerdictTooFewSamples
		return mc
	}

	overlap := Overlaps(*mc.Left, *mc.Right)
	mc.Overlap = &overlap
	switch {
	case overlap:
		mc.Verdict = VerdictNoDifference
	case *mc.Delta > 0:
		mc.Verdict = VerdictLeftHigher
	default:
		mc.Verdict = VerdictLeftLower
	}
	return mc
}

// Overlaps reports whether two closed confidence intervals intersect.
// Both summaries must carry an interval.
func Overlaps(a, b model.Summary) bool {
	return *a.CILow <= *b.CIHigh && *b.CILow <= *a.CIHigh
}

func unionKeys(left, right *model.ConditionStatistics) []model.MetricKey {
	seen := map[model.MetricKey]bool{}
	var keys []model.MetricKey
	for _, st := range []*model.ConditionStatistics{left, right} {
		for _, r := range st.Rows {
			if !seen[r.MetricKey] {
				seen[r.MetricKey] = true
				keys = append(keys, r.MetricKey)
			}
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
	return keys
}

func overallVerdict(rep *model.ComparisonReport) string {
	pct := rep.ConfidenceLevel * 100
	switch {
	case rep.Compared == 0:
		return "no comparable metrics"
	case rep.Differing == 0:
		return fmt.Sprintf("no significant difference: all %d comparable metrics have overlapping %g%% confidence intervals", rep.Compared, pct)
	default:
		return fmt.Sprintf("%d of %d comparable metrics differ (non-overlapping %g%% confidence intervals)", rep.Differing, rep.Compared, pct)
	}
}
