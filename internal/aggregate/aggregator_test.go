package aggregate

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daryltucker/forest-compare/internal/model"
	"github.com/daryltucker/forest-compare/internal/parser"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func writeLoad(t *testing.T, dir string, users int, rps float64) {
	t.Helper()
	writeFile(t, dir, fmt.Sprintf("metrics_%d_stats.csv", users),
		fmt.Sprintf("Name,Requests/s,50%%,95%%,99%%\nAggregated,%g,100,200,300\n", rps))
}

func newRunDir(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "ctn_1")
	require.NoError(t, os.Mkdir(dir, 0o755))
	writeLoad(t, dir, 8, 4.5)
	writeLoad(t, dir, 64, 12)
	writeFile(t, dir, "squad_eval.json", `{"bleu": 0.3, "rouge_l": 0.4}`)
	writeFile(t, dir, "lifecycle.json", `{"deploy_time_s": 12.5, "cold_start_ms": 850, "image_size_bytes": 734003200}`)
	writeFile(t, dir, "resource_samples.jsonl",
		`{"cpu_pct":10,"rss_mb":100}`+"\n"+`{"cpu_pct":30,"rss_mb":140}`+"\n")
	return dir
}

func newAggregator() *Aggregator {
	return New(parser.New(map[string]string{"squad": "SQuADv2"}))
}

func TestAggregate(t *testing.T) {
	dir := newRunDir(t)

	res, err := newAggregator().Aggregate(RunContext{Dir: dir, Condition: model.ConditionContainer}, parser.Lifecycle{})
	require.NoError(t, err)
	agg := res.Aggregate

	assert.Equal(t, model.SchemaVersion, agg.SchemaVersion)
	assert.Equal(t, "ctn_1", agg.RunDir)
	assert.NotEmpty(t, agg.RunID)

	require.Len(t, agg.Load, 2)
	assert.Equal(t, 8, agg.Load[0].Concurrency)
	assert.Equal(t, 64, agg.Load[1].Concurrency)

	require.Len(t, agg.Accuracy, 1)
	assert.Equal(t, "SQuADv2", agg.Accuracy[0].Dataset)

	assert.Equal(t, 2, agg.Resources.Samples)
	assert.InDelta(t, 20, *agg.Resources.MeanCPUPct, 1e-9)
	assert.InDelta(t, 30, *agg.Resources.PeakCPUPct, 1e-9)
	assert.InDelta(t, 120, *agg.Resources.MeanRSSMB, 1e-9)
	assert.InDelta(t, 140, *agg.Resources.PeakRSSMB, 1e-9)

	assert.InDelta(t, 850, *agg.Lifecycle.ColdStartMS, 1e-9)
	assert.Equal(t, int64(734003200), *agg.Lifecycle.ImageSizeBytes)
	assert.Empty(t, res.Errors)
}

func TestRunIsIdempotent(t *testing.T) {
	dir := newRunDir(t)
	a := newAggregator()
	rc := RunContext{Dir: dir, Condition: model.ConditionContainer}

	first, err := a.Run(rc, parser.Lifecycle{})
	require.NoError(t, err)
	before, err := os.ReadFile(first.Path)
	require.NoError(t, err)

	// A later clock must not leak into the output.
	a.now = func() time.Time { return time.Now().Add(time.Hour) }

	_, err = a.Run(rc, parser.Lifecycle{})
	require.NoError(t, err)
	after, err := os.ReadFile(first.Path)
	require.NoError(t, err)

	assert.Equal(t, string(before), string(after))
}

func TestAggregateMissingEvaluationsAndLoad(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "lifecycle.json", `{"deploy_time_s": 3}`)

	res, err := newAggregator().Aggregate(RunContext{Dir: dir, Condition: model.ConditionHost}, parser.Lifecycle{})
	require.NoError(t, err)

	assert.NotNil(t, res.Aggregate.Load)
	assert.Empty(t, res.Aggregate.Load)
	assert.NotNil(t, res.Aggregate.Accuracy)
	assert.Empty(t, res.Aggregate.Accuracy)
	assert.Nil(t, res.Aggregate.Resources.MeanCPUPct)
	assert.Nil(t, res.Aggregate.Lifecycle.ColdStartMS)
}

func TestAggregateUnreadyServiceHasNoColdStart(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "lifecycle.json", `{"cold_start_ms": 300000, "ready": false}`)

	res, err := newAggregator().Aggregate(RunContext{Dir: dir, Condition: model.ConditionContainer}, parser.Lifecycle{})
	require.NoError(t, err)

	assert.Nil(t, res.Aggregate.Lifecycle.ColdStartMS)
	assert.NotEmpty(t, res.Aggregate.Warnings)
}

func TestAggregateHostDropsImageSize(t *testing.T) {
	dir := newRunDir(t)

	res, err := newAggregator().Aggregate(RunContext{Dir: dir, Condition: model.ConditionHost}, parser.Lifecycle{})
	require.NoError(t, err)

	assert.Nil(t, res.Aggregate.Lifecycle.ImageSizeBytes)
	assert.Contains(t, res.Aggregate.Warnings, "lifecycle: image size ignored for host condition")
}

func TestAggregateOverridesWin(t *testing.T) {
	dir := newRunDir(t)

	res, err := newAggregator().Aggregate(
		RunContext{Dir: dir, Condition: model.ConditionContainer},
		parser.Lifecycle{DeployTimeS: model.Float(99)},
	)
	require.NoError(t, err)

	assert.InDelta(t, 99, *res.Aggregate.Lifecycle.DeployTimeS, 1e-9)
	assert.InDelta(t, 850, *res.Aggregate.Lifecycle.ColdStartMS, 1e-9)
}

func TestAggregateCorruptLevelDoesNotAbortOthers(t *testing.T) {
	dir := newRunDir(t)
	writeFile(t, dir, "metrics_32_stats.csv", "Name,50%\nAggregated,100\n")

	res, err := newAggregator().Aggregate(RunContext{Dir: dir, Condition: model.ConditionContainer}, parser.Lifecycle{})
	require.NoError(t, err)

	assert.Len(t, res.Aggregate.Load, 2)
	require.Len(t, res.Errors, 1)
	assert.ErrorIs(t, res.Errors[0], model.ErrMissingThroughput)
	assert.Equal(t, dir, res.Errors[0].Run)
}

func TestAggregateDuplicateLevelKeepsFirst(t *testing.T) {
	dir := newRunDir(t)
	writeFile(t, dir, "metrics_08_stats.csv", "Name,Requests/s\nAggregated,99\n")

	res, err := newAggregator().Aggregate(RunContext{Dir: dir, Condition: model.ConditionContainer}, parser.Lifecycle{})
	require.NoError(t, err)

	require.Len(t, res.Aggregate.Load, 2)
	assert.Contains(t, res.Aggregate.Warnings, "load: duplicate concurrency 8, keeping the first file")
}

func TestAggregateRejectsUnknownCondition(t *testing.T) {
	_, err := newAggregator().Aggregate(RunContext{Dir: t.TempDir(), Condition: "vm"}, parser.Lifecycle{})
	assert.Error(t, err)
}

func TestRunIDIsDeterministic(t *testing.T) {
	ts := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, RunID(model.ConditionHost, "run_1", ts), RunID(model.ConditionHost, "run_1", ts))
	assert.NotEqual(t, RunID(model.ConditionHost, "run_1", ts), RunID(model.ConditionContainer, "run_1", ts))
}

func TestRunAllAndLoadAllKeepOrder(t *testing.T) {
	a := newAggregator()
	var rcs []RunContext
	var dirs []string
	for i := 0; i < 5; i++ {
		dir := filepath.Join(t.TempDir(), fmt.Sprintf("run_%d", i))
		require.NoError(t, os.Mkdir(dir, 0o755))
		writeLoad(t, dir, 8, float64(i+1))
		rcs = append(rcs, RunContext{Dir: dir, Condition: model.ConditionHost})
		dirs = append(dirs, dir)
	}

	results, err := a.RunAll(context.Background(), rcs, parser.Lifecycle{})
	require.NoError(t, err)
	require.Len(t, results, 5)

	aggs, err := LoadAll(context.Background(), dirs)
	require.NoError(t, err)
	require.Len(t, aggs, 5)
	for i, agg := range aggs {
		assert.Equal(t, fmt.Sprintf("run_%d", i), agg.RunDir)
		assert.InDelta(t, float64(i+1), agg.Load[0].ThroughputRPS, 1e-9)
	}
}

func TestLoadRejectsNewerSchema(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, parser.AggregateFile, `{"schema_version": 99}`)

	_, err := Load(dir)
	var ae *model.ArtifactError
	assert.ErrorAs(t, err, &ae)
}

func TestAggregateCyclesPerRequest(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "ctn_2")
	require.NoError(t, os.Mkdir(dir, 0o755))
	writeFile(t, dir, "metrics_8_stats.csv", "Name,Request Count,Requests/s,50%\nAggregated,300,5,100\n")
	writeFile(t, dir, "metrics_64_stats.csv", "Name,Request Count,Requests/s,50%\nAggregated,700,12,100\n")
	writeFile(t, dir, parser.PerfCyclesFile, "  2,000,000  cycles\n")

	res, err := newAggregator().Aggregate(RunContext{Dir: dir, Condition: model.ConditionContainer}, parser.Lifecycle{})
	require.NoError(t, err)

	ru := res.Aggregate.Resources
	require.NotNil(t, ru.CPUCycles)
	require.NotNil(t, ru.CyclesPerReq)
	assert.InDelta(t, 2e6, *ru.CPUCycles, 1e-6)
	assert.InDelta(t, 2000, *ru.CyclesPerReq, 1e-9)

	ops := res.Aggregate.OpsMetrics()
	assert.InDelta(t, 2000, ops[model.MetricCyclesPerReq], 1e-9)
	assert.InDelta(t, 2e6, ops[model.MetricCPUCycles], 1e-6)
}

func TestCyclesPerRequestUnknownRequests(t *testing.T) {
	load := []model.LoadResult{{Concurrency: 8, ThroughputRPS: 5}}
	assert.Nil(t, CyclesPerRequest(model.Float(1e6), load))
	assert.Nil(t, CyclesPerRequest(nil, []model.LoadResult{{Requests: model.Float(10)}}))
}

func TestSummarizeResourcesEmpty(t *testing.T) {
	ru := SummarizeResources(nil)
	assert.Equal(t, 0, ru.Samples)
	assert.Nil(t, ru.PeakRSSMB)
}

func TestWriteThenLoad(t *testing.T) {
	dir := newRunDir(t)
	res, err := newAggregator().Aggregate(RunContext{Dir: dir, Condition: model.ConditionContainer}, parser.Lifecycle{})
	require.NoError(t, err)

	path, err := Write(dir, res.Aggregate)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, parser.AggregateFile), path)

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, res.Aggregate.RunID, got.RunID)
	assert.Len(t, got.Load, 2)
}
