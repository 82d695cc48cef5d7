package compare

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daryltucker/forest-compare/internal/model"
)

func summary(mean, lo, hi float64) model.Summary {
	return model.Summary{
		Count:  5,
		Mean:   mean,
		StdDev: model.Float((hi - lo) / 4),
		CILow:  model.Float(lo),
		CIHigh: model.Float(hi),
	}
}

func loadKey(users int, metric string) model.MetricKey {
	return model.MetricKey{Scope: model.ScopeLoad, Concurrency: users, Metric: metric}
}

func accKey(ds, metric string) model.MetricKey {
	return model.MetricKey{Scope: model.ScopeAccuracy, Dataset: ds, Metric: metric}
}

func fixtures() (*model.ConditionStatistics, *model.ConditionStatistics) {
	host := &model.ConditionStatistics{
		Condition:       model.ConditionHost,
		Runs:            5,
		ConfidenceLevel: 0.95,
		Rows: []model.StatRow{
			{MetricKey: loadKey(8, model.MetricP95MS), Summary: summary(100, 90, 110)},
			{MetricKey: loadKey(8, model.MetricThroughputRPS), Summary: summary(10, 9, 11)},
			{MetricKey: loadKey(64, model.MetricP95MS), Summary: summary(300, 280, 320)},
			{MetricKey: accKey("SQuADv2", model.MetricBLEU), Summary: summary(0.30, 0.28, 0.32)},
		},
	}
	ctn := &model.ConditionStatistics{
		Condition:       model.ConditionContainer,
		Runs:            5,
		ConfidenceLevel: 0.95,
		Rows: []model.StatRow{
			{MetricKey: loadKey(8, model.MetricP95MS), Summary: summary(130, 120, 140)},
			{MetricKey: loadKey(8, model.MetricThroughputRPS), Summary: summary(10.5, 9.5, 11.5)},
			{MetricKey: loadKey(64, model.MetricP95MS), Summary: summary(310, 290, 330)},
			{MetricKey: accKey("SQuADv2", model.MetricBLEU), Summary: summary(0.31, 0.29, 0.33)},
			{MetricKey: model.MetricKey{Scope: model.ScopeOps, Metric: model.MetricImageSizeBytes}, Summary: summary(7e8, 7e8, 7e8)},
		},
	}
	return host, ctn
}

func flatten(rep *model.ComparisonReport) map[string]model.MetricComparison {
	out := map[string]model.MetricComparison{}
	for _, row := range rep.Rows {
		for _, mc := range row.Metrics {
			out[rowKey(row)+"/"+mc.Metric] = mc
		}
	}
	return out
}

func rowKey(row model.ComparisonRow) string {
	return fmt.Sprintf("%s:%s:%d", row.Scope, row.Dataset, row.Concurrency)
}

func TestBuildRowsAndVerdicts(t *testing.T) {
	host, ctn := fixtures()

	rep, err := Build(host, ctn)
	require.NoError(t, err)

	assert.Equal(t, model.ConditionHost, rep.Left)
	assert.Equal(t, model.ConditionContainer, rep.Right)
	require.Len(t, rep.Rows, 4)
	assert.Equal(t, 8, rep.Rows[0].Concurrency)
	assert.Equal(t, 64, rep.Rows[1].Concurrency)
	assert.Equal(t, "SQuADv2", rep.Rows[2].Dataset)
	assert.Equal(t, model.ScopeOps, rep.Rows[3].Scope)

	p95 := rep.Rows[0].Metrics[0]
	assert.Equal(t, model.MetricP95MS, p95.Metric)
	assert.InDelta(t, -30, *p95.Delta, 1e-9)
	assert.False(t, *p95.Overlap)
	assert.Equal(t, VerdictLeftLower, p95.Verdict)

	rps := rep.Rows[0].Metrics[1]
	assert.True(t, *rps.Overlap)
	assert.Equal(t, VerdictNoDifference, rps.Verdict)

	assert.Equal(t, 4, rep.Compared)
	assert.Equal(t, 1, rep.Differing)
	assert.Contains(t, rep.Verdict, "1 of 4")
}

func TestBuildOneSidedMetricIsNotApplicable(t *testing.T) {
	host, ctn := fixtures()

	rep, err := Build(host, ctn)
	require.NoError(t, err)

	ops := rep.Rows[3].Metrics
	require.Len(t, ops, 1)
	assert.Nil(t, ops[0].Left)
	require.NotNil(t, ops[0].Right)
	assert.Nil(t, ops[0].Delta)
	assert.Nil(t, ops[0].Overlap)
	assert.Equal(t, VerdictNotApplicable, ops[0].Verdict)
}

func TestBuildSwapNegatesDeltaAndKeepsOverlap(t *testing.T) {
	host, ctn := fixtures()

	ab, err := Build(host, ctn)
	require.NoError(t, err)
	ba, err := Build(ctn, host)
	require.NoError(t, err)

	fa, fb := flatten(ab), flatten(ba)
	require.Equal(t, len(fa), len(fb))
	for k, x := range fa {
		y, ok := fb[k]
		require.True(t, ok, k)
		if x.Delta == nil {
			assert.Nil(t, y.Delta, k)
		} else {
			assert.Equal(t, -*x.Delta, *y.Delta, k)
		}
		assert.Equal(t, x.Overlap, y.Overlap, k)
		assert.Equal(t, x.Left, y.Right, k)
	}
	assert.Equal(t, ab.Differing, ba.Differing)
}

func TestBuildWithoutIntervals(t *testing.T) {
	host, ctn := fixtures()
	host.Rows[0].Summary = model.Summary{Count: 1, Mean: 100}

	rep, err := Build(host, ctn)
	require.NoError(t, err)

	p95 := rep.Rows[0].Metrics[0]
	require.NotNil(t, p95.Delta)
	assert.Nil(t, p95.Overlap)
	assert.Equal(t, VerdictTooFewSamples, p95.Verdict)
	assert.Equal(t, 3, rep.Compared)
}

func TestBuildAllOverlapping(t *testing.T) {
	host, _ := fixtures()

	rep, err := Build(host, host)
	require.NoError(t, err)
	assert.Equal(t, 0, rep.Differing)
	assert.Contains(t, rep.Verdict, "no significant difference")
}

func TestBuildRejectsMismatchedLevels(t *testing.T) {
	host, ctn := fixtures()
	ctn.ConfidenceLevel = 0.99

	_, err := Build(host, ctn)
	assert.Error(t, err)

	_, err = Build(nil, ctn)
	assert.Error(t, err)
}

func TestOverlapsTouchingIntervals(t *testing.T) {
	assert.True(t, Overlaps(summary(1, 0, 2), summary(3, 2, 4)))
	assert.False(t, Overlaps(summary(1, 0, 2), summary(3, 2.0001, 4)))
}
