package parser

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/daryltucker/forest-compare/internal/model"
)

// ParseConcurrency parses a concurrency token; only positive integers are valid.
func ParseConcurrency(token string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(token))
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// ParseLoadCSV reads one load-tool summary. The "Aggregated" row is used
// when the file has a Name column, otherwise the first data row.
// Missing percentiles are nil and reported as warnings; a missing or
// unparsable throughput is an error.
func ParseLoadCSV(r io.Reader, concurrency int) (model.LoadResult, []string, error) {
	res := model.LoadResult{Concurrency: concurrency}

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	records, err := cr.ReadAll()
	if err != nil {
		return res, nil, fmt.Errorf("invalid CSV: %w", err)
	}
	if len(records) < 2 {
		return res, nil, errors.New("no data rows")
	}

	header := records[0]
	idx := newHeaderIndex(header)
	row := summaryRow(idx, records[1:])

	tp, ok := throughputColumn(header)
	if !ok {
		return res, nil, model.ErrMissingThroughput
	}
	rps, err := cell(row, tp)
	if err != nil {
		return res, nil, fmt.Errorf("throughput column %q: %w", strings.TrimSpace(header[tp]), err)
	}
	if rps < 0 {
		return res, nil, fmt.Errorf("throughput column %q: negative value %v", strings.TrimSpace(header[tp]), rps)
	}
	res.ThroughputRPS = rps
	if i, ok := idx.first(requestCountColumns); ok {
		if n, err := cell(row, i); err == nil && n >= 0 {
			res.Requests = &n
		}
	}

	var warnings []string
	for _, pc := range percentileColumns {
		var v *float64
		if i, ok := idx.first(pc.candidates); ok {
			f, err := cell(row, i)
			switch {
			case err != nil:
				warnings = append(warnings, fmt.Sprintf("%s not applicable: %v", pc.field, err))
			case f < 0:
				warnings = append(warnings, fmt.Sprintf("%s not applicable: negative value %v", pc.field, f))
			default:
				v = &f
			}
		} else {
			warnings = append(warnings, fmt.Sprintf("%s not applicable: no %s column", pc.field, strings.Join(pc.candidates, "/")))
		}
		switch pc.field {
		case "p50":
			res.P50MS = v
		case "p95":
			res.P95MS = v
		case "p99":
			res.P99MS = v
		}
	}
	return res, warnings, nil
}

func summaryRow(idx headerIndex, rows [][]string) []string {
	if name, ok := idx[rowNameColumn]; ok {
		for _, r := range rows {
			if name < len(r) && strings.TrimSpace(r[name]) == aggregatedRow {
				return r
			}
		}
	}
	return rows[0]
}

func cell(row []string, i int) (float64, error) {
	if i >= len(row) {
		return 0, errors.New("missing cell")
	}
	s := strings.TrimSpace(row[i])
	if s == "" || strings.EqualFold(s, "N/A") {
		return 0, errors.New("empty cell")
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("non-finite value %q", s)
	}
	return f, nil
}
