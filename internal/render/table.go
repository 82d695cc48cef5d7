package render

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/daryltucker/forest-compare/internal/model"
)

// SummaryTable renders the report as a bordered text table followed by
// the overall verdict. The output carries no ANSI styling so it can be
// written to a file as is.
func SummaryTable(rep *model.ComparisonReport) string {
	cell := lipgloss.NewStyle().Padding(0, 1)

	t := table.New().
		Border(lipgloss.NormalBorder()).
		StyleFunc(func(row, col int) lipgloss.Style { return cell }).
		Headers("Group", "Metric",
			rep.Left.Label(), rep.Right.Label(),
			"Delta", "CI overlap", "Verdict")

	for _, row := range rep.Rows {
		label := rowLabel(row)
		for _, mc := range row.Metrics {
			t.Row(label, mc.Metric,
				formatSummary(mc.Left), formatSummary(mc.Right),
				formatDelta(mc.Delta), formatOverlap(mc.Overlap), mc.Verdict)
			label = ""
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s (%d runs) vs %s (%d runs), %g%% confidence intervals\n",
		rep.Left.Label(), rep.LeftRuns, rep.Right.Label(), rep.RightRuns, rep.ConfidenceLevel*100)
	b.WriteString("Delta = ")
	b.WriteString(rep.Left.Label())
	b.WriteString(" - ")
	b.WriteString(rep.Right.Label())
	b.WriteString("\n\n")
	b.WriteString(t.String())
	b.WriteString("\n\nVerdict: ")
	b.WriteString(rep.Verdict)
	b.WriteString("\n")
	return b.String()
}
