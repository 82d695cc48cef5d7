package stats

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daryltucker/forest-compare/internal/model"
)

func run(cond model.Condition, i int, loads map[int]float64, datasets map[string]float64) *model.RunAggregate {
	agg := &model.RunAggregate{
		SchemaVersion: model.SchemaVersion,
		RunID:         fmt.Sprintf("%s-%d", cond, i),
		RunDir:        fmt.Sprintf("%s_%d", cond, i),
		Condition:     cond,
		Load:          []model.LoadResult{},
		Accuracy:      []model.AccuracyResult{},
	}
	for users, p95 := range loads {
		agg.Load = append(agg.Load, model.LoadResult{
			Concurrency:   users,
			P95MS:         model.Float(p95),
			ThroughputRPS: float64(users) / 2,
		})
	}
	for ds, bleu := range datasets {
		agg.Accuracy = append(agg.Accuracy, model.AccuracyResult{
			Dataset: ds,
			Scores:  map[string]float64{model.MetricBLEU: bleu},
		})
	}
	return agg
}

func TestTCritical(t *testing.T) {
	assert.InDelta(t, 2.776, TCritical(0.95, 4), 1e-3)
	assert.InDelta(t, 12.706, TCritical(0.95, 1), 1e-3)
	assert.InDelta(t, 1.96, TCritical(0.95, 100000), 1e-3)
}

func TestDescribe(t *testing.T) {
	s := Describe([]float64{10, 12, 14, 16, 18}, 0.95)

	assert.Equal(t, 5, s.Count)
	assert.InDelta(t, 14, s.Mean, 1e-12)
	require.NotNil(t, s.StdDev)
	assert.InDelta(t, math.Sqrt(10), *s.StdDev, 1e-12)
	half := 2.7764451 * math.Sqrt(10) / math.Sqrt(5)
	assert.InDelta(t, 14-half, *s.CILow, 1e-4)
	assert.InDelta(t, 14+half, *s.CIHigh, 1e-4)
}

func TestDescribeIdenticalValuesGiveZeroWidthInterval(t *testing.T) {
	s := Describe([]float64{0.1, 0.1, 0.1, 0.1, 0.1}, 0.95)

	assert.Equal(t, 0.1, s.Mean)
	assert.Equal(t, 0.0, *s.StdDev)
	assert.Equal(t, 0.1, *s.CILow)
	assert.Equal(t, 0.1, *s.CIHigh)
}

func TestDescribeSingleValue(t *testing.T) {
	s := Describe([]float64{7}, 0.95)

	assert.Equal(t, 1, s.Count)
	assert.Equal(t, 7.0, s.Mean)
	assert.Nil(t, s.StdDev)
	assert.Nil(t, s.CILow)
	assert.Nil(t, s.CIHigh)
}

func TestComputeCountsAndOrder(t *testing.T) {
	var aggs []*model.RunAggregate
	for i := 0; i < 5; i++ {
		aggs = append(aggs, run(model.ConditionHost, i,
			map[int]float64{128: 400, 8: 100, 64: 300, 32: 200},
			map[string]float64{"SQuADv2": 0.3}))
	}

	st, err := Compute(aggs, DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, model.ConditionHost, st.Condition)
	assert.Equal(t, 5, st.Runs)
	assert.Len(t, st.RunIDs, 5)
	require.Len(t, st.Rows, 4*2+1)

	for i := 1; i < len(st.Rows); i++ {
		assert.True(t, st.Rows[i-1].MetricKey.Less(st.Rows[i].MetricKey), "rows out of order at %d", i)
	}
	assert.Equal(t, 8, st.Rows[0].Concurrency)
	assert.Equal(t, model.ScopeAccuracy, st.Rows[len(st.Rows)-1].Scope)

	for _, r := range st.Rows {
		assert.Equal(t, 5, r.Count)
		assert.Equal(t, 0, r.Missing)
		require.NotNil(t, r.StdDev)
		assert.GreaterOrEqual(t, *r.StdDev, 0.0)
		assert.False(t, math.IsNaN(*r.CILow) || math.IsInf(*r.CIHigh, 0))
	}
}

func TestComputeMetricMissingInSomeRuns(t *testing.T) {
	var aggs []*model.RunAggregate
	for i := 0; i < 5; i++ {
		ds := map[string]float64{"BoolQ": 0.5 + float64(i)/100}
		if i == 2 {
			ds = nil
		}
		aggs = append(aggs, run(model.ConditionContainer, i, nil, ds))
	}

	st, err := Compute(aggs, DefaultOptions())
	require.NoError(t, err)

	row, ok := st.Lookup(model.MetricKey{Scope: model.ScopeAccuracy, Dataset: "BoolQ", Metric: model.MetricBLEU})
	require.True(t, ok)
	assert.Equal(t, 4, row.Count)
	assert.Equal(t, 1, row.Missing)
	assert.InDelta(t, (0.50+0.51+0.53+0.54)/4, row.Mean, 1e-12)
}

func TestComputeInsufficientSamples(t *testing.T) {
	_, err := Compute(nil, DefaultOptions())
	assert.ErrorIs(t, err, model.ErrInsufficientSamples)

	_, err = Compute([]*model.RunAggregate{run(model.ConditionHost, 0, nil, nil)}, DefaultOptions())
	assert.ErrorIs(t, err, model.ErrInsufficientSamples)
	assert.Contains(t, err.Error(), "host")

	aggs := []*model.RunAggregate{
		run(model.ConditionHost, 0, nil, nil),
		run(model.ConditionHost, 1, nil, nil),
	}
	_, err = Compute(aggs, Options{ConfidenceLevel: 0.95, MinRuns: 3})
	assert.ErrorIs(t, err, model.ErrInsufficientSamples)
}

func TestComputeConditionMismatch(t *testing.T) {
	aggs := []*model.RunAggregate{
		run(model.ConditionHost, 0, nil, nil),
		run(model.ConditionContainer, 1, nil, nil),
	}
	_, err := Compute(aggs, DefaultOptions())
	assert.ErrorIs(t, err, model.ErrConditionMismatch)
	assert.Contains(t, err.Error(), "container_1")
}

func TestComputeRejectsBadOptions(t *testing.T) {
	aggs := []*model.RunAggregate{run(model.ConditionHost, 0, nil, nil), run(model.ConditionHost, 1, nil, nil)}
	_, err := Compute(aggs, Options{ConfidenceLevel: 1.5, MinRuns: 2})
	assert.Error(t, err)
	_, err = Compute(aggs, Options{ConfidenceLevel: 0.95, MinRuns: 1})
	assert.Error(t, err)
}

func TestComputeIncludesOpsMetrics(t *testing.T) {
	var aggs []*model.RunAggregate
	for i := 0; i < 3; i++ {
		a := run(model.ConditionContainer, i, nil, nil)
		a.Lifecycle.ColdStartMS = model.Float(800 + float64(i)*10)
		a.Lifecycle.ImageSizeBytes = model.Int64(1000)
		aggs = append(aggs, a)
	}

	st, err := Compute(aggs, DefaultOptions())
	require.NoError(t, err)

	row, ok := st.Lookup(model.MetricKey{Scope: model.ScopeOps, Metric: model.MetricColdStartMS})
	require.True(t, ok)
	assert.InDelta(t, 810, row.Mean, 1e-9)

	size, ok := st.Lookup(model.MetricKey{Scope: model.ScopeOps, Metric: model.MetricImageSizeBytes})
	require.True(t, ok)
	assert.Equal(t, 0.0, *size.StdDev)
}
