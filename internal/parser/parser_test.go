package parser

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daryltucker/forest-compare/internal/model"
)

const locustHeader = "Type,Name,Request Count,Failure Count,Median Response Time,Average Response Time,Min Response Time,Max Response Time,Average Content Size,Requests/s,Failures/s,50%,66%,75%,80%,90%,95%,98%,99%,99.9%,99.99%,100%"

func locustCSV(rows ...string) string {
	return locustHeader + "\n" + strings.Join(rows, "\n") + "\n"
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestParseConcurrency(t *testing.T) {
	n, ok := ParseConcurrency("64")
	assert.True(t, ok)
	assert.Equal(t, 64, n)

	for _, bad := range []string{"abc", "0", "-8", "", "8.5"} {
		_, ok := ParseConcurrency(bad)
		assert.False(t, ok, bad)
	}
}

func TestParseLoadCSVUsesAggregatedRow(t *testing.T) {
	data := locustCSV(
		"POST,/mcp,100,0,110,120,80,300,50,9.5,0,110,120,130,140,180,210,250,290,300,300,300",
		",Aggregated,100,0,115,125,80,300,50,10.25,0,115,125,135,145,185,220,260,310,320,320,320",
	)

	res, warnings, err := ParseLoadCSV(strings.NewReader(data), 32)
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, 32, res.Concurrency)
	assert.InDelta(t, 10.25, res.ThroughputRPS, 1e-9)
	require.NotNil(t, res.P50MS)
	require.NotNil(t, res.P95MS)
	require.NotNil(t, res.P99MS)
	assert.InDelta(t, 115, *res.P50MS, 1e-9)
	assert.InDelta(t, 220, *res.P95MS, 1e-9)
	assert.InDelta(t, 310, *res.P99MS, 1e-9)
	require.NotNil(t, res.Requests)
	assert.InDelta(t, 100, *res.Requests, 1e-9)
}

func TestParseLoadCSVPercentileLabelFallback(t *testing.T) {
	data := "Name,Requests/s,50,95,99\nAggregated,4.0,100,200,300\n"

	res, warnings, err := ParseLoadCSV(strings.NewReader(data), 8)
	require.NoError(t, err)
	assert.Empty(t, warnings)
	require.NotNil(t, res.P50MS)
	assert.InDelta(t, 100, *res.P50MS, 1e-9)
}

func TestParseLoadCSVByteOrderMark(t *testing.T) {
	data := "\uFEFFName,Requests/s,50%\nPOST,1.5,90\nAggregated,2.5,100\n"

	res, _, err := ParseLoadCSV(strings.NewReader(data), 8)
	require.NoError(t, err)
	assert.InDelta(t, 2.5, res.ThroughputRPS, 1e-9)
	require.NotNil(t, res.P50MS)
	assert.InDelta(t, 100, *res.P50MS, 1e-9)
}

func TestParseLoadCSVMissingPercentileIsNotApplicable(t *testing.T) {
	data := "Name,Requests/s,50%,99%\nAggregated,4.0,100,\n"

	res, warnings, err := ParseLoadCSV(strings.NewReader(data), 8)
	require.NoError(t, err)
	assert.NotNil(t, res.P50MS)
	assert.Nil(t, res.P95MS)
	assert.Nil(t, res.P99MS)
	assert.Len(t, warnings, 2)
}

func TestParseLoadCSVMissingThroughput(t *testing.T) {
	data := "Name,50%,95%,99%\nAggregated,100,200,300\n"

	_, _, err := ParseLoadCSV(strings.NewReader(data), 8)
	assert.ErrorIs(t, err, model.ErrMissingThroughput)
}

func TestParseLoadCSVRejectsBadThroughput(t *testing.T) {
	for _, v := range []string{"abc", "-1", "NaN", ""} {
		data := "Name,Requests/s\nAggregated," + v + "\n"
		_, _, err := ParseLoadCSV(strings.NewReader(data), 8)
		assert.Error(t, err, v)
	}
}

func TestParseEvalObject(t *testing.T) {
	scores, warnings, err := ParseEval([]byte(`{"bleu": 0.31, "rougeL": 0.42, "pass@1": 0.7, "custom": 3, "note": "x", "empty": null}`))
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{
		model.MetricBLEU:    0.31,
		model.MetricRougeL:  0.42,
		model.MetricPassAt1: 0.7,
		"custom":            3,
	}, scores)
	assert.Len(t, warnings, 1)
}

func TestParseEvalRecordsAreAveraged(t *testing.T) {
	data := `[
		{"prompt": "a", "bleu": 0.2, "rouge": 0.4, "latency": 100},
		{"prompt": "b", "bleu": 0.4, "rouge": null, "latency": 300}
	]`
	scores, _, err := ParseEval([]byte(data))
	require.NoError(t, err)
	assert.InDelta(t, 0.3, scores[model.MetricBLEU], 1e-9)
	assert.InDelta(t, 0.4, scores[model.MetricRougeL], 1e-9)
	assert.InDelta(t, 200, scores[model.MetricLatencyMS], 1e-9)
	assert.NotContains(t, scores, "prompt")
}

func TestParseEvalEmpty(t *testing.T) {
	for _, data := range []string{"", "  ", "{}", "[]", `[{"prompt": "a"}]`} {
		_, _, err := ParseEval([]byte(data))
		assert.ErrorIs(t, err, ErrEmpty, data)
	}
	_, _, err := ParseEval([]byte("not json"))
	assert.Error(t, err)
}

func TestParseDockerStats(t *testing.T) {
	data := `mcp-server
{"cpu":"12.5%","mem":"512MiB / 2GiB"}
{"cpu":"7.5%","mem":"1.5GiB / 2GiB"}
{"cpu":"bad","mem":"1MiB / 2GiB"}
{broken
`
	samples, skipped := ParseDockerStats([]byte(data))
	require.Len(t, samples, 2)
	assert.Equal(t, 2, skipped)
	assert.InDelta(t, 12.5, samples[0].CPUPercent, 1e-9)
	assert.InDelta(t, 512, samples[0].RSSMB, 1e-9)
	assert.InDelta(t, 1536, samples[1].RSSMB, 1e-9)
}

func TestParsePidstat(t *testing.T) {
	data := `Linux 6.1.0 (bench)  01/01/2025  _x86_64_  (8 CPU)

# Time   UID  PID  %usr %system %guest %wait %CPU CPU minflt/s majflt/s VSZ RSS %MEM Command
1735689600 1000 4242 20.00 5.00 0.00 0.00 25.00 3 10.00 0.00 900000 204800 2.5 python
1735689601 1000 4242 30.00 5.00 0.00 0.00 35.00 3 10.00 0.00 900000 307200 3.7 python
1735689602 1000 4242 oops 5.00 0.00 0.00 x 3 10.00 0.00 900000 y 3.7 python
Average: 1000 4242 25.00 5.00 0.00 0.00 30.00 - 10.00 0.00 900000 256000 3.1 python
`
	samples, skipped := ParsePidstat([]byte(data))
	require.Len(t, samples, 2)
	assert.Equal(t, 1, skipped)
	assert.InDelta(t, 25, samples[0].CPUPercent, 1e-9)
	assert.InDelta(t, 200, samples[0].RSSMB, 1e-9)
	assert.InDelta(t, 300, samples[1].RSSMB, 1e-9)
	assert.Equal(t, int64(1735689601), samples[1].Timestamp.Unix())
}

func TestParseSamplesJSONL(t *testing.T) {
	data := `{"timestamp":"2025-01-01T00:00:00Z","cpu_pct":10,"rss_mb":100}
{"timestamp":"2025-01-01T00:00:01Z","cpu_pct":20,"rss_mb":120}
{"timestamp":
`
	samples, skipped := ParseSamplesJSONL([]byte(data))
	require.Len(t, samples, 2)
	assert.Equal(t, 1, skipped)
	assert.InDelta(t, 120, samples[1].RSSMB, 1e-9)
}

func TestParseRunDir(t *testing.T) {
	dir := t.TempDir()
	row := ",Aggregated,100,0,115,125,80,300,50,%s,0,115,125,135,145,185,220,260,310,320,320,320"
	writeFile(t, dir, "metrics_8_stats.csv", locustCSV(strings.Replace(row, "%s", "4.5", 1)))
	writeFile(t, dir, "metrics_64_stats.csv", locustCSV(strings.Replace(row, "%s", "12.0", 1)))
	writeFile(t, dir, "metrics_abc_stats.csv", locustCSV(strings.Replace(row, "%s", "1.0", 1)))
	writeFile(t, dir, "metrics_128_stats.csv", "Name,50%\nAggregated,100\n")
	writeFile(t, dir, "squad_eval.json", `{"bleu": 0.3}`)
	writeFile(t, dir, "boolq_eval.json", `{}`)
	writeFile(t, dir, "lifecycle.json", `{"deploy_time_s": 12.5, "cold_start_ms": 850}`)
	writeFile(t, dir, "docker_stats_raw.json", `{"cpu":"1%","mem":"1MiB / 2GiB"}`)
	writeFile(t, dir, "resource_samples.jsonl", `{"cpu_pct":10,"rss_mb":100}`+"\n")
	writeFile(t, dir, "notes.txt", "ignored")
	writeFile(t, dir, PerfCyclesFile, " Performance counter stats for 'system wide':\n\n     1,234,567,890      cycles\n")

	arts, err := New(map[string]string{"squad": "SQuADv2"}).ParseRunDir(dir)
	require.NoError(t, err)

	require.Len(t, arts.Load, 2)
	levels := []int{arts.Load[0].Concurrency, arts.Load[1].Concurrency}
	assert.ElementsMatch(t, []int{8, 64}, levels)

	require.Len(t, arts.Accuracy, 1)
	assert.Equal(t, "SQuADv2", arts.Accuracy[0].Dataset)

	require.NotNil(t, arts.Lifecycle)
	assert.InDelta(t, 12.5, *arts.Lifecycle.DeployTimeS, 1e-9)

	// The own sampler stream wins over docker stats.
	require.Len(t, arts.Samples, 1)
	assert.InDelta(t, 100, arts.Samples[0].RSSMB, 1e-9)

	require.Len(t, arts.Errors, 1)
	assert.Equal(t, "metrics_128_stats.csv", arts.Errors[0].Artifact)
	assert.ErrorIs(t, arts.Errors[0], model.ErrMissingThroughput)

	assert.NotContains(t, arts.Consumed, "notes.txt")
	assert.NotContains(t, arts.Consumed, "metrics_abc_stats.csv")
	assert.NotContains(t, arts.Consumed, DockerStatsFile)
	assert.Contains(t, arts.Consumed, SamplesFile)
	assert.Contains(t, arts.Consumed, PerfCyclesFile)
	require.NotNil(t, arts.CPUCycles)
	assert.InDelta(t, 1234567890, *arts.CPUCycles, 1e-3)

	joined := strings.Join(arts.Warnings, "\n")
	assert.Contains(t, joined, "metrics_abc_stats.csv")
	assert.Contains(t, joined, "boolq_eval.json")
}

func TestParsePerfCycles(t *testing.T) {
	out := `
 Performance counter stats for process id '4242':

    98,765,432,100      cycles:u

      30.004128557 seconds time elapsed
`
	n, err := ParsePerfCycles([]byte(out))
	require.NoError(t, err)
	assert.InDelta(t, 98765432100, n, 1e-3)

	_, err = ParsePerfCycles([]byte("     <not counted>      cycles\n"))
	assert.ErrorContains(t, err, "not counted")

	_, err = ParsePerfCycles([]byte("12.5 seconds time elapsed\n"))
	assert.Error(t, err)

	_, err = ParsePerfCycles([]byte("1,2x3 cycles\n"))
	assert.Error(t, err)
}

func TestParseRunDirMissing(t *testing.T) {
	_, err := New(nil).ParseRunDir(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

func TestLifecycleMerge(t *testing.T) {
	base := Lifecycle{DeployTimeS: model.Float(10), ColdStartMS: model.Float(500)}
	merged := base.Merge(Lifecycle{ColdStartMS: model.Float(700), ImageSizeBytes: model.Int64(42)})

	assert.InDelta(t, 10, *merged.DeployTimeS, 1e-9)
	assert.InDelta(t, 700, *merged.ColdStartMS, 1e-9)
	assert.Equal(t, int64(42), *merged.ImageSizeBytes)
	assert.InDelta(t, 500, *base.ColdStartMS, 1e-9)
}

func TestParseLifecycleFileRejectsNegative(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, LifecycleFile, `{"cold_start_ms": -3}`)
	_, err := ParseLifecycleFile(filepath.Join(dir, LifecycleFile))
	assert.Error(t, err)
}
