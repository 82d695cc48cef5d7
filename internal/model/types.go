/*
PURPOSE:
  Defines the core data structures used throughout Forest Compare.
  These models represent parsed run artifacts, per-run aggregates,
  per-condition statistics and the cross-condition comparison report.

REQUIREMENTS:
  User-specified:
  - Record load results per concurrency level, lifecycle timings,
    resource usage and accuracy scores for one run.
  - Absent measurements are "not applicable", never zero.

  Implementation-discovered:
  - Pointers model "not applicable" so JSON carries an explicit null.
  - JSON field names are the persisted contract; only add optional fields.

ARCHITECTURE INTEGRATION:
  - Used by: internal/parser, internal/aggregate, internal/stats,
    internal/compare, internal/render
  - Shared across boundaries.

ERROR HANDLING:
  - ParseCondition returns an error for unknown tags.

IMPLEMENTATION RULES:
  - Keep structs simple and public.
  - Slices are kept sorted so serialized output is reproducible.

USAGE:
  agg := model.RunAggregate{Condition: model.ConditionHost, ...}

SELF-HEALING INSTRUCTIONS:
  - If new metrics are needed, add a Metric* constant and a nil-able field,
    then update parser and the stats key extraction.

RELATED FILES:
  - internal/stats/engine.go
  - internal/output/json.go

MAINTENANCE:
  - Bump SchemaVersion only for incompatible changes (should not happen).
*/

package model

import (
	"fmt"
	"strings"
	"time"
)

// SchemaVersion of the persisted run aggregate.
const SchemaVersion = 1

// Condition is the deployment mode a run was measured under.
type Condition string

const (
	ConditionHost      Condition = "host"
	ConditionContainer Condition = "container"
)

// ParseCondition accepts the canonical tags plus the aliases used by the
// collection scripts (bare, bare-metal, ctn, docker, ...).
func ParseCondition(s string) (Condition, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "host", "host-process", "bare", "bare-metal", "baremetal":
		return ConditionHost, nil
	case "container", "isolated-container", "ctn", "docker":
		return ConditionContainer, nil
	}
	return "", fmt.Errorf("unknown condition %q (want host or container)", s)
}

// Label is the human readable name used in tables and charts.
func (c Condition) Label() string {
	switch c {
	case ConditionHost:
		return "Host-Process"
	case ConditionContainer:
		return "Container"
	}
	return string(c)
}

// Canonical metric names.
const (
	MetricP50MS         = "p50_ms"
	MetricP95MS         = "p95_ms"
	MetricP99MS         = "p99_ms"
	MetricThroughputRPS = "throughput_rps"

	MetricBLEU      = "bleu"
	MetricRougeL    = "rouge_l"
	MetricPassAt1   = "pass_at_1"
	MetricLatencyMS = "latency_ms"

	MetricDeployTimeS    = "deploy_time_s"
	MetricColdStartMS    = "cold_start_ms"
	MetricImageSizeBytes = "image_size_bytes"
	MetricMeanCPUPct     = "mean_cpu_pct"
	MetricPeakCPUPct     = "peak_cpu_pct"
	MetricMeanRSSMB      = "mean_rss_mb"
	MetricPeakRSSMB      = "peak_rss_mb"
	MetricCPUCycles      = "cpu_cycles"
	MetricCyclesPerReq   = "cycles_per_req"
)

// OpsMetricNames lists the run-level metrics in report column order.
var OpsMetricNames = []string{
	MetricDeployTimeS,
	MetricColdStartMS,
	MetricImageSizeBytes,
	MetricMeanCPUPct,
	MetricPeakCPUPct,
	MetricMeanRSSMB,
	MetricPeakRSSMB,
	MetricCPUCycles,
	MetricCyclesPerReq,
}

// RawSample is one observation from a resource sampler.
type RawSample struct {
	Timestamp  time.Time `json:"timestamp"`
	CPUPercent float64   `json:"cpu_pct"`
	RSSMB      float64   `json:"rss_mb"`
}

// LoadResult is the outcome of one concurrency level of the load test.
type LoadResult struct {
	Concurrency   int      `json:"concurrency"`
	P50MS         *float64 `json:"p50_ms"`
	P95MS         *float64 `json:"p95_ms"`
	P99MS         *float64 `json:"p99_ms"`
	ThroughputRPS float64  `json:"throughput_rps"`
	// Requests is the total request count of the level, when reported.
	Requests *float64 `json:"requests,omitempty"`
}

// Metrics flattens the load result into metric name -> value, skipping
// fields that are not applicable.
func (l LoadResult) Metrics() map[string]float64 {
	out := map[string]float64{MetricThroughputRPS: l.ThroughputRPS}
	putIf(out, MetricP50MS, l.P50MS)
	putIf(out, MetricP95MS, l.P95MS)
	putIf(out, MetricP99MS, l.P99MS)
	return out
}

// LifecycleTiming holds the per-run deploy and cold-start timers.
type LifecycleTiming struct {
	DeployTimeS    *float64 `json:"deploy_time_s"`
	ColdStartMS    *float64 `json:"cold_start_ms"`
	ImageSizeBytes *int64   `json:"image_size_bytes"`
}

// ResourceUsage summarizes the resource samples of one run.
type ResourceUsage struct {
	Samples    int      `json:"samples"`
	MeanCPUPct *float64 `json:"mean_cpu_pct"`
	PeakCPUPct *float64 `json:"peak_cpu_pct"`
	MeanRSSMB  *float64 `json:"mean_rss_mb"`
	PeakRSSMB  *float64 `json:"peak_rss_mb"`
	// CPUCycles is the perf-counted total for the run; CyclesPerReq
	// divides it by the requests served across all load levels.
	CPUCycles    *float64 `json:"cpu_cycles,omitempty"`
	CyclesPerReq *float64 `json:"cycles_per_req,omitempty"`
}

// AccuracyResult maps metric name to score for one dataset.
type AccuracyResult struct {
	Dataset string             `json:"dataset"`
	Scores  map[string]float64 `json:"scores"`
}

// RunAggregate is the terminal output of one benchmark run.
type RunAggregate struct {
	SchemaVersion int              `json:"schema_version"`
	RunID         string           `json:"run_id"`
	Condition     Condition        `json:"condition"`
	CreatedAt     time.Time        `json:"created_at"`
	RunDir        string           `json:"run_dir"`
	Lifecycle     LifecycleTiming  `json:"lifecycle"`
	Resources     ResourceUsage    `json:"resources"`
	Load          []LoadResult     `json:"load"`
	Accuracy      []AccuracyResult `json:"accuracy"`
	Warnings      []string         `json:"warnings,omitempty"`
}

// OpsMetrics flattens the run-level operational measurements.
func (a *RunAggregate) OpsMetrics() map[string]float64 {
	out := map[string]float64{}
	putIf(out, MetricDeployTimeS, a.Lifecycle.DeployTimeS)
	putIf(out, MetricColdStartMS, a.Lifecycle.ColdStartMS)
	if a.Lifecycle.ImageSizeBytes != nil {
		out[MetricImageSizeBytes] = float64(*a.Lifecycle.ImageSizeBytes)
	}
	putIf(out, MetricMeanCPUPct, a.Resources.MeanCPUPct)
	putIf(out, MetricPeakCPUPct, a.Resources.PeakCPUPct)
	putIf(out, MetricMeanRSSMB, a.Resources.MeanRSSMB)
	putIf(out, MetricPeakRSSMB, a.Resources.PeakRSSMB)
	putIf(out, MetricCPUCycles, a.Resources.CPUCycles)
	putIf(out, MetricCyclesPerReq, a.Resources.CyclesPerReq)
	return out
}

func putIf(m map[string]float64, key string, v *float64) {
	if v != nil {
		m[key] = *v
	}
}

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

// Int64 returns a pointer to v.
func Int64(v int64) *int64 { return &v }
