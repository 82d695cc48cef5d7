package render

import (
	"strconv"
	"strings"
	"time"

	"github.com/daryltucker/forest-compare/internal/model"
	"github.com/daryltucker/forest-compare/internal/output"
)

var statisticsHeader = []string{
	"condition", "scope", "concurrency", "dataset", "metric",
	"count", "missing", "mean", "stddev", "ci_low", "ci_high",
}

var runIndexHeader = []string{
	"condition", "run_id", "run_dir", "created_at",
	"load_levels", "datasets", "warnings",
}

// WriteStatisticsCSV writes the long-form statistics of every condition.
func WriteStatisticsCSV(path string, conds ...*model.ConditionStatistics) error {
	w, err := output.NewCSVWriter(path, statisticsHeader)
	if err != nil {
		return err
	}
	defer w.Close()

	for _, st := range conds {
		for _, r := range st.Rows {
			conc := ""
			if r.Scope == model.ScopeLoad {
				conc = strconv.Itoa(r.Concurrency)
			}
			rec := []string{
				string(st.Condition), string(r.Scope), conc, r.Dataset, r.Metric,
				strconv.Itoa(r.Count), strconv.Itoa(r.Missing),
				output.FormatFloat(&r.Mean, 6),
				output.FormatFloat(r.StdDev, 6),
				output.FormatFloat(r.CILow, 6),
				output.FormatFloat(r.CIHigh, 6),
			}
			if err := w.Write(rec); err != nil {
				return err
			}
		}
	}
	return nil
}

// WriteRunIndexCSV writes one line per consumed run aggregate.
func WriteRunIndexCSV(path string, runs []*model.RunAggregate) error {
	w, err := output.NewCSVWriter(path, runIndexHeader)
	if err != nil {
		return err
	}
	defer w.Close()

	for _, a := range runs {
		levels := make([]string, 0, len(a.Load))
		for _, l := range a.Load {
			levels = append(levels, strconv.Itoa(l.Concurrency))
		}
		datasets := make([]string, 0, len(a.Accuracy))
		for _, d := range a.Accuracy {
			datasets = append(datasets, d.Dataset)
		}
		rec := []string{
			string(a.Condition), a.RunID, a.RunDir,
			a.CreatedAt.UTC().Format(time.RFC3339),
			strings.Join(levels, ";"),
			strings.Join(datasets, ";"),
			strconv.Itoa(len(a.Warnings)),
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	return nil
}

// WriteDatasetsWideCSV writes one line per dataset with the mean of every
// accuracy metric per condition, in "<condition>_<metric>" columns.
func WriteDatasetsWideCSV(path string, rep *model.ComparisonReport) error {
	metrics := accuracyMetrics(rep)
	header := []string{"dataset"}
	for _, c := range []model.Condition{rep.Left, rep.Right} {
		for _, m := range metrics {
			header = append(header, string(c)+"_"+m)
		}
	}

	w, err := output.NewCSVWriter(path, header)
	if err != nil {
		return err
	}
	defer w.Close()

	for _, row := range rep.Rows {
		if row.Scope != model.ScopeAccuracy {
			continue
		}
		rec := []string{row.Dataset}
		for _, left := range []bool{true, false} {
			for _, m := range metrics {
				var v *float64
				if mc, ok := find(row, m); ok {
					s := mc.Right
					if left {
						s = mc.Left
					}
					if s != nil {
						v = &s.Mean
					}
				}
				rec = append(rec, output.FormatFloat(v, 6))
			}
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	return nil
}

// WriteOpsCSV writes the raw run-level operational values of every run.
func WriteOpsCSV(path string, runs []*model.RunAggregate) error {
	header := append([]string{"condition", "run_id", "run_dir"}, model.OpsMetricNames...)
	w, err := output.NewCSVWriter(path, header)
	if err != nil {
		return err
	}
	defer w.Close()

	for _, a := range runs {
		ops := a.OpsMetrics()
		rec := []string{string(a.Condition), a.RunID, a.RunDir}
		for _, m := range model.OpsMetricNames {
			var v *float64
			if f, ok := ops[m]; ok {
				v = &f
			}
			rec = append(rec, output.FormatFloat(v, 6))
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	return nil
}
