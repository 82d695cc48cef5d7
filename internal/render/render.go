/*
PURPOSE:
  Writes every comparison output into the report directory: the JSON
  report and per-condition statistics, CSV tables, the text summary,
  LaTeX tables, PNG charts and an optional Prometheus textfile.
  The CSV set holds the long statistics table, the run index, a wide
  per-dataset accuracy table and the raw per-run operational values.

REQUIREMENTS:
  User-specified:
  - Output is read-only with respect to the inputs.
  - Nil ("not applicable") values render as "n/a" in text, "NA" in CSV,
    "--" in LaTeX and are skipped in charts and metrics.

  Implementation-discovered:
  - Charts are optional (slow to render, large files); everything else
    is always written.

ARCHITECTURE INTEGRATION:
  - Called by: internal/cli (compare)
  - Uses: internal/model, internal/output
  - Feeds: internal/store (the returned file list is published)

ERROR HANDLING:
  - The first failing writer aborts and its error is returned wrapped
    with the output name.

IMPLEMENTATION RULES:
  - Text files go through output.WriteFileAtomic.
  - Metric names are sanitized with fileToken before they become part of
    a file name; a metric like "f1/em" must not escape Dir.

USAGE:
  files, err := render.Write(render.Inputs{...}, render.Options{Dir: out})

SELF-HEALING INSTRUCTIONS:
  - New outputs must be appended to the file list so publish sees them.

RELATED FILES:
  - internal/compare/builder.go
  - internal/store/s3.go

MAINTENANCE:
  - None.
*/

package render

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/daryltucker/forest-compare/internal/model"
	"github.com/daryltucker/forest-compare/internal/output"
)

// Output file names.
const (
	ReportFile     = "comparison_report.json"
	SummaryCSV     = "statistics_summary.csv"
	RunIndexCSV    = "per_run_index.csv"
	SummaryText    = "comparison_summary.txt"
	LoadLatex      = "latex_table_load.tex"
	PerfChart      = "combined_perf_users.png"
	PromTextfile   = "metrics.prom"
	WideCSV        = "datasets_summary_wide.csv"
	OpsCSV         = "extended_ops_summary.csv"
	OpsChartFile   = "deployment_resource_usage.png"
	statisticsJSON = "statistics_%s.json"
	metricLatex    = "latex_table_%s.tex"
	metricChart    = "metrics_combined_%s.png"
)

// Inputs is everything a report is rendered from.
type Inputs struct {
	Report *model.ComparisonReport
	Left   *model.ConditionStatistics
	Right  *model.ConditionStatistics
	// Runs of both conditions, in input order.
	Runs []*model.RunAggregate
}

// Options selects optional outputs.
type Options struct {
	Dir    string
	Charts bool
	// PromTextfile enables the Prometheus textfile; relative paths are
	// resolved against Dir.
	PromTextfile string
}

// Write renders all outputs and returns the paths written.
func Write(in Inputs, opts Options) ([]string, error) {
	if in.Report == nil || in.Left == nil || in.Right == nil {
		return nil, fmt.Errorf("report and both condition statistics are required")
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create report directory: %w", err)
	}

	var files []string
	emit := func(name string, fn func(path string) error) error {
		path := name
		if !filepath.IsAbs(path) {
			path = filepath.Join(opts.Dir, name)
		}
		if err := fn(path); err != nil {
			return fmt.Errorf("failed to write %s: %w", name, err)
		}
		files = append(files, path)
		output.Logger.Debug("Wrote report output", "path", path)
		return nil
	}

	steps := []step{
		{ReportFile, func(p string) error { return output.WriteJSONFile(p, in.Report) }},
		{fmt.Sprintf(statisticsJSON, in.Left.Condition), func(p string) error { return output.WriteJSONFile(p, in.Left) }},
		{fmt.Sprintf(statisticsJSON, in.Right.Condition), func(p string) error { return output.WriteJSONFile(p, in.Right) }},
		{SummaryCSV, func(p string) error { return WriteStatisticsCSV(p, in.Left, in.Right) }},
		{RunIndexCSV, func(p string) error { return WriteRunIndexCSV(p, in.Runs) }},
		{WideCSV, func(p string) error { return WriteDatasetsWideCSV(p, in.Report) }},
		{OpsCSV, func(p string) error { return WriteOpsCSV(p, in.Runs) }},
		{SummaryText, func(p string) error { return output.WriteFileAtomic(p, []byte(SummaryTable(in.Report))) }},
		{LoadLatex, func(p string) error { return output.WriteFileAtomic(p, []byte(LoadLatexTable(in.Report))) }},
	}
	for _, m := range accuracyMetrics(in.Report) {
		steps = append(steps, step{fmt.Sprintf(metricLatex, fileToken(m)), func(p string) error {
			return output.WriteFileAtomic(p, []byte(AccuracyLatexTable(in.Report, m)))
		}})
	}
	if opts.Charts {
		for _, m := range accuracyMetrics(in.Report) {
			steps = append(steps, step{fmt.Sprintf(metricChart, fileToken(m)), func(p string) error {
				return AccuracyChart(p, in.Report, m)
			}})
		}
		if hasScope(in.Report, model.ScopeLoad) {
			steps = append(steps, step{PerfChart, func(p string) error { return PerfUsersChart(p, in.Report) }})
		}
		if len(chartedOps(in.Report)) > 0 {
			steps = append(steps, step{OpsChartFile, func(p string) error { return OpsChart(p, in.Report) }})
		}
	}
	if opts.PromTextfile != "" {
		steps = append(steps, step{opts.PromTextfile, func(p string) error {
			return WritePromTextfile(p, in.Report, in.Left, in.Right)
		}})
	}

	for _, s := range steps {
		if err := emit(s.name, s.write); err != nil {
			return files, err
		}
	}
	return files, nil
}

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// fileToken makes a metric name safe to embed in a file name. Path
// separators and anything outside [A-Za-z0-9_.-] become "_".
func fileToken(metric string) string {
	t := unsafeFileChars.ReplaceAllString(metric, "_")
	if t == "" || t == "." || t == ".." {
		return "_"
	}
	return t
}

type step struct {
	name  string
	write func(path string) error
}

// accuracyMetrics lists the accuracy metric names present in the report,
// in first-seen order.
func accuracyMetrics(rep *model.ComparisonReport) []string {
	seen := map[string]bool{}
	var out []string
	for _, row := range rep.Rows {
		if row.Scope != model.ScopeAccuracy {
			continue
		}
		for _, mc := range row.Metrics {
			if !seen[mc.Metric] {
				seen[mc.Metric] = true
				out = append(out, mc.Metric)
			}
		}
	}
	return out
}

func hasScope(rep *model.ComparisonReport, s model.Scope) bool {
	for _, row := range rep.Rows {
		if row.Scope == s {
			return true
		}
	}
	return false
}

// find returns the comparison of metric within row.
func find(row model.ComparisonRow, metric string) (model.MetricComparison, bool) {
	for _, mc := range row.Metrics {
		if mc.Metric == metric {
			return mc, true
		}
	}
	return model.MetricComparison{}, false
}
