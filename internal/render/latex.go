package render

import (
	"fmt"
	"strings"

	"github.com/daryltucker/forest-compare/internal/model"
)

var loadLatexMetrics = []string{
	model.MetricP50MS, model.MetricP95MS, model.MetricP99MS, model.MetricThroughputRPS,
}

// AccuracyLatexTable renders one accuracy metric per dataset as a
// booktabs table.
func AccuracyLatexTable(rep *model.ComparisonReport, metric string) string {
	var b strings.Builder
	caption := fmt.Sprintf("%s by dataset (mean $\\pm$ SD, %g\\%% CI)", latexEscape(metric), rep.ConfidenceLevel*100)
	beginTable(&b, caption, "tab:"+metric, "lllrl", "Dataset", rep)
	for _, row := range rep.Rows {
		if row.Scope != model.ScopeAccuracy {
			continue
		}
		if mc, ok := find(row, metric); ok {
			writeLatexRow(&b, latexEscape(row.Dataset), mc)
		}
	}
	endTable(&b)
	return b.String()
}

// LoadLatexTable renders latency percentiles and throughput per
// concurrency level.
func LoadLatexTable(rep *model.ComparisonReport) string {
	var b strings.Builder
	caption := fmt.Sprintf("Load test by concurrent users (mean $\\pm$ SD, %g\\%% CI)", rep.ConfidenceLevel*100)
	beginTable(&b, caption, "tab:load", "llllrl", "Users & Metric", rep)
	for _, row := range rep.Rows {
		if row.Scope != model.ScopeLoad {
			continue
		}
		for _, m := range loadLatexMetrics {
			if mc, ok := find(row, m); ok {
				writeLatexRow(&b, fmt.Sprintf("%d & %s", row.Concurrency, latexEscape(m)), mc)
			}
		}
	}
	endTable(&b)
	return b.String()
}

func beginTable(b *strings.Builder, caption, label, cols, lead string, rep *model.ComparisonReport) {
	b.WriteString("\\begin{table}[ht]\n\\centering\n")
	fmt.Fprintf(b, "\\caption{%s}\n\\label{%s}\n", caption, latexEscape(label))
	fmt.Fprintf(b, "\\begin{tabular}{%s}\n\\toprule\n", cols)
	fmt.Fprintf(b, "%s & %s & %s & $\\Delta$ & Overlap \\\\\n\\midrule\n",
		lead, rep.Left.Label(), rep.Right.Label())
}

func endTable(b *strings.Builder) {
	b.WriteString("\\bottomrule\n\\end{tabular}\n\\end{table}\n")
}

func writeLatexRow(b *strings.Builder, lead string, mc model.MetricComparison) {
	fmt.Fprintf(b, "%s & %s & %s & %s & %s \\\\\n",
		lead, latexSummary(mc.Left), latexSummary(mc.Right),
		latexValue(mc.Delta), formatOverlap(mc.Overlap))
}

func latexSummary(s *model.Summary) string {
	if s == nil || s.Count == 0 {
		return "--"
	}
	if s.StdDev == nil {
		return num(s.Mean)
	}
	return fmt.Sprintf("%s $\\pm$ %s", num(s.Mean), num(*s.StdDev))
}

func latexValue(v *float64) string {
	if v == nil {
		return "--"
	}
	return num(*v)
}

var latexReplacer = strings.NewReplacer(
	`\`, `\textbackslash{}`,
	`&`, `\&`,
	`%`, `\%`,
	`$`, `\$`,
	`#`, `\#`,
	`_`, `\_`,
	`{`, `\{`,
	`}`, `\}`,
)

func latexEscape(s string) string {
	return latexReplacer.Replace(s)
}
