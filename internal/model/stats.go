package model

// Scope groups metric keys. Its order is the report order.
type Scope string

const (
	ScopeLoad     Scope = "load"
	ScopeAccuracy Scope = "accuracy"
	ScopeOps      Scope = "ops"
)

// Rank orders scopes: load, accuracy, ops.
func (s Scope) Rank() int {
	switch s {
	case ScopeLoad:
		return 0
	case ScopeAccuracy:
		return 1
	case ScopeOps:
		return 2
	}
	return 3
}

// MetricKey identifies one aggregated metric. Concurrency is set for the
// load scope, Dataset for the accuracy scope.
type MetricKey struct {
	Scope       Scope  `json:"scope"`
	Concurrency int    `json:"concurrency,omitempty"`
	Dataset     string `json:"dataset,omitempty"`
	Metric      string `json:"metric"`
}

// Less sorts by scope, concurrency ascending, dataset, then metric.
func (k MetricKey) Less(o MetricKey) bool {
	if k.Scope.Rank() != o.Scope.Rank() {
		return k.Scope.Rank() < o.Scope.Rank()
	}
	if k.Concurrency != o.Concurrency {
		return k.Concurrency < o.Concurrency
	}
	if k.Dataset != o.Dataset {
		return k.Dataset < o.Dataset
	}
	return k.Metric < o.Metric
}

// Group returns the key without its metric name; rows of a comparison
// report are grouped by it.
func (k MetricKey) Group() MetricKey {
	k.Metric = ""
	return k
}

// Summary holds the descriptive statistics of one metric. StdDev and the
// confidence interval are nil when fewer than two samples were present.
type Summary struct {
	Count  int      `json:"count"`
	Mean   float64  `json:"mean"`
	StdDev *float64 `json:"stddev"`
	CILow  *float64 `json:"ci_low"`
	CIHigh *float64 `json:"ci_high"`
}

// StatRow is one metric of one condition. Missing counts the runs where
// the metric was absent.
type StatRow struct {
	MetricKey
	Summary
	Missing int `json:"missing"`
}

// ConditionStatistics is the per-condition output of the statistics engine.
type ConditionStatistics struct {
	Condition       Condition `json:"condition"`
	Runs            int       `json:"runs"`
	RunIDs          []string  `json:"run_ids"`
	ConfidenceLevel float64   `json:"confidence_level"`
	Rows            []StatRow `json:"rows"`
}

// Lookup returns the row for key, if present.
func (c *ConditionStatistics) Lookup(key MetricKey) (StatRow, bool) {
	for _, r := range c.Rows {
		if r.MetricKey == key {
			return r, true
		}
	}
	return StatRow{}, false
}

// MetricComparison places one metric of both conditions side by side.
// A nil side is "not applicable"; Delta and Overlap are nil unless both
// sides can be compared.
type MetricComparison struct {
	Metric  string   `json:"metric"`
	Left    *Summary `json:"left"`
	Right   *Summary `json:"right"`
	Delta   *float64 `json:"delta"`
	Overlap *bool    `json:"overlap"`
	Verdict string   `json:"verdict"`
}

// ComparisonRow groups the metrics of one concurrency level, one dataset,
// or the run-level operational metrics.
type ComparisonRow struct {
	Scope       Scope              `json:"scope"`
	Concurrency int                `json:"concurrency,omitempty"`
	Dataset     string             `json:"dataset,omitempty"`
	Metrics     []MetricComparison `json:"metrics"`
}

// ComparisonReport is the read-only cross-condition output.
type ComparisonReport struct {
	Left            Condition       `json:"left"`
	Right           Condition       `json:"right"`
	LeftRuns        int             `json:"left_runs"`
	RightRuns       int             `json:"right_runs"`
	ConfidenceLevel float64         `json:"confidence_level"`
	Rows            []ComparisonRow `json:"rows"`
	Compared        int             `json:"compared"`
	Differing       int             `json:"differing"`
	Verdict         string          `json:"verdict"`
}
