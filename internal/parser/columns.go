package parser

import (
	"regexp"
	"strings"
)

// percentileColumns lists the recognized header labels per logical field,
// tried in priority order. Locust writes "50%"; some versions write "50".
var percentileColumns = []struct {
	field      string
	candidates []string
}{
	{"p50", []string{"50%", "50"}},
	{"p95", []string{"95%", "95"}},
	{"p99", []string{"99%", "99"}},
}

// throughputPatterns match a "requests per second" header, tried in order.
var throughputPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^\s*requests?\s*(/|per)\s*s(ec(ond)?)?\s*$`),
	regexp.MustCompile(`(?i)req(uest)?s?\s*(/|per)\s*s(ec(ond)?)?`),
	regexp.MustCompile(`(?i)^\s*rps\s*$`),
}

// requestCountColumns name the optional total request count column.
var requestCountColumns = []string{"Request Count", "# requests", "Requests"}

// rowNameColumn and aggregatedRow select the summary row of a Locust file.
const (
	rowNameColumn = "Name"
	aggregatedRow = "Aggregated"
)

// headerIndex maps trimmed header labels to column positions.
type headerIndex map[string]int

func newHeaderIndex(header []string) headerIndex {
	idx := make(headerIndex, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\uFEFF"))
		if _, dup := idx[h]; !dup {
			idx[h] = i
		}
	}
	return idx
}

// first returns the position of the first candidate present in the header.
func (h headerIndex) first(candidates []string) (int, bool) {
	for _, c := range candidates {
		if i, ok := h[c]; ok {
			return i, true
		}
	}
	return 0, false
}

// throughputColumn finds the requests/sec column by pattern. Patterns are
// tried in priority order; within a pattern the leftmost column wins.
func throughputColumn(header []string) (int, bool) {
	for _, re := range throughputPatterns {
		for i, h := range header {
			if re.MatchString(strings.TrimSpace(h)) {
				return i, true
			}
		}
	}
	return 0, false
}
