/*
PURPOSE:
  Exports the per-condition statistics and the comparison outcome as a
  Prometheus textfile for the node_exporter textfile collector.

REQUIREMENTS:
  User-specified:
  - Not applicable values are not exported.

  Implementation-discovered:
  - A fresh registry per call keeps repeated renders independent.

ARCHITECTURE INTEGRATION:
  - Called by: internal/render/render.go
  - Uses: prometheus client_golang

ERROR HANDLING:
  - Returns the textfile write error.

IMPLEMENTATION RULES:
  - Label set is fixed in metricLabels; empty labels mean not applicable.

USAGE:
  err := render.WritePromTextfile(path, rep, left, right)

SELF-HEALING INSTRUCTIONS:
  - Duplicate-sample errors mean two rows share a label set; check the
    statistics keys.

RELATED FILES:
  - internal/render/render.go

MAINTENANCE:
  - None.
*/

package render

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/daryltucker/forest-compare/internal/model"
)

var metricLabels = []string{"condition", "scope", "concurrency", "dataset", "metric"}

// WritePromTextfile exports the statistics and the comparison outcome in
// the Prometheus text exposition format, for the node_exporter textfile
// collector.
func WritePromTextfile(path string, rep *model.ComparisonReport, conds ...*model.ConditionStatistics) error {
	reg := prometheus.NewRegistry()

	mean := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "forest_compare",
		Name:      "metric_mean",
		Help:      "Mean of a benchmark metric across runs.",
	}, metricLabels)
	stddev := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "forest_compare",
		Name:      "metric_stddev",
		Help:      "Sample standard deviation of a benchmark metric across runs.",
	}, metricLabels)
	ciLow := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "forest_compare",
		Name:      "metric_ci_low",
		Help:      "Lower bound of the confidence interval of the mean.",
	}, metricLabels)
	ciHigh := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "forest_compare",
		Name:      "metric_ci_high",
		Help:      "Upper bound of the confidence interval of the mean.",
	}, metricLabels)
	runs := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "forest_compare",
		Name:      "runs",
		Help:      "Number of runs aggregated per condition.",
	}, []string{"condition"})
	differing := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "forest_compare",
		Name:      "differing_metrics",
		Help:      "Metrics whose confidence intervals do not overlap.",
	})
	compared := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "forest_compare",
		Name:      "compared_metrics",
		Help:      "Metrics with a confidence interval on both sides.",
	})
	reg.MustRegister(mean, stddev, ciLow, ciHigh, runs, differing, compared)

	for _, st := range conds {
		runs.WithLabelValues(string(st.Condition)).Set(float64(st.Runs))
		for _, r := range st.Rows {
			conc := ""
			if r.Scope == model.ScopeLoad {
				conc = strconv.Itoa(r.Concurrency)
			}
			lv := []string{string(st.Condition), string(r.Scope), conc, r.Dataset, r.Metric}
			mean.WithLabelValues(lv...).Set(r.Mean)
			if r.StdDev != nil {
				stddev.WithLabelValues(lv...).Set(*r.StdDev)
			}
			if r.CILow != nil && r.CIHigh != nil {
				ciLow.WithLabelValues(lv...).Set(*r.CILow)
				ciHigh.WithLabelValues(lv...).Set(*r.CIHigh)
			}
		}
	}
	differing.Set(float64(rep.Differing))
	compared.Set(float64(rep.Compared))

	return prometheus.WriteToTextfile(path, reg)
}
