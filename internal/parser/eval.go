package parser

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"github.com/daryltucker/forest-compare/internal/model"
)

// evalAliases maps the keys written by the evaluation scripts to the
// canonical metric names. Keys not listed pass through unchanged.
var evalAliases = map[string]string{
	"bleu":       model.MetricBLEU,
	"rouge":      model.MetricRougeL,
	"rougeL":     model.MetricRougeL,
	"rouge-l":    model.MetricRougeL,
	"rouge_l":    model.MetricRougeL,
	"pass@1":     model.MetricPassAt1,
	"pass_at_1":  model.MetricPassAt1,
	"latency":    model.MetricLatencyMS,
	"latency_ms": model.MetricLatencyMS,
}

func canonicalMetric(key string) string {
	if c, ok := evalAliases[key]; ok {
		return c
	}
	return key
}

// ParseEval reads one evaluation file. Two layouts are accepted: an
// object of metric -> score, or an array of per-item records whose
// numeric fields are averaged (nulls skipped). Non-numeric fields are
// ignored with a warning in the object layout only.
func ParseEval(data []byte) (map[string]float64, []string, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil, ErrEmpty
	}

	var scores map[string]float64
	var warnings []string
	var err error
	switch trimmed[0] {
	case '{':
		scores, warnings, err = parseEvalObject(trimmed)
	case '[':
		scores, err = parseEvalRecords(trimmed)
	default:
		err = fmt.Errorf("expected JSON object or array")
	}
	if err != nil {
		return nil, warnings, err
	}
	if len(scores) == 0 {
		return nil, warnings, ErrEmpty
	}
	return scores, warnings, nil
}

func parseEvalObject(data []byte) (map[string]float64, []string, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, nil, fmt.Errorf("invalid JSON: %w", err)
	}

	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	scores := make(map[string]float64, len(raw))
	var warnings []string
	for _, k := range keys {
		var v *float64
		if err := json.Unmarshal(raw[k], &v); err != nil {
			warnings = append(warnings, fmt.Sprintf("key %q is not numeric, ignored", k))
			continue
		}
		if v == nil || math.IsNaN(*v) {
			continue
		}
		scores[canonicalMetric(k)] = *v
	}
	return scores, warnings, nil
}

func parseEvalRecords(data []byte) (map[string]float64, error) {
	var records []map[string]any
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}

	sums := map[string]float64{}
	counts := map[string]int{}
	for _, rec := range records {
		for k, v := range rec {
			f, ok := v.(float64)
			if !ok {
				continue
			}
			name := canonicalMetric(k)
			sums[name] += f
			counts[name]++
		}
	}

	scores := make(map[string]float64, len(sums))
	for k, s := range sums {
		scores[k] = s / float64(counts[k])
	}
	return scores, nil
}
