package render

import (
	"fmt"
	"strconv"

	"github.com/daryltucker/forest-compare/internal/model"
)

const na = "n/a"

// formatSummary renders "mean ± sd [lo, hi] (n)".
func formatSummary(s *model.Summary) string {
	if s == nil || s.Count == 0 {
		return na
	}
	if s.StdDev == nil || s.CILow == nil {
		return fmt.Sprintf("%s (n=%d)", num(s.Mean), s.Count)
	}
	return fmt.Sprintf("%s ± %s [%s, %s] (n=%d)",
		num(s.Mean), num(*s.StdDev), num(*s.CILow), num(*s.CIHigh), s.Count)
}

func formatDelta(d *float64) string {
	if d == nil {
		return na
	}
	v := *d
	if v > 0 {
		return "+" + num(v)
	}
	return num(v)
}

func formatOverlap(o *bool) string {
	switch {
	case o == nil:
		return na
	case *o:
		return "yes"
	default:
		return "no"
	}
}

// num prints three decimals, which covers both milliseconds and
// fractional accuracy scores.
func num(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}

// rowLabel names a comparison row, e.g. "users=64", "SQuADv2", "ops".
func rowLabel(row model.ComparisonRow) string {
	switch row.Scope {
	case model.ScopeLoad:
		return fmt.Sprintf("users=%d", row.Concurrency)
	case model.ScopeAccuracy:
		return row.Dataset
	default:
		return string(row.Scope)
	}
}
