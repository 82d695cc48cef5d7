/*
PURPOSE:
  Descriptive statistics of one metric across runs: mean, sample
  standard deviation and the two-sided Student t confidence interval.

REQUIREMENTS:
  User-specified:
  - Sample (n-1) standard deviation.
  - Fewer than two values yield no deviation and no interval.

  Implementation-discovered:
  - Values are shifted by the first sample before summing so large
    magnitudes (cycle counts, image sizes) keep their precision.

ARCHITECTURE INTEGRATION:
  - Called by: internal/stats/engine.go
  - Uses: gonum stat, gonum distuv

ERROR HANDLING:
  - None. An empty slice yields a zero Summary.

IMPLEMENTATION RULES:
  - Never return a zero deviation for a single sample; return nil.

USAGE:
  s := stats.Describe(values, 0.95)

SELF-HEALING INSTRUCTIONS:
  - If intervals look too narrow, check that df is n-1.

RELATED FILES:
  - internal/stats/engine.go
  - internal/model/stats.go

MAINTENANCE:
  - None.
*/

package stats

import (
	"math"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/daryltucker/forest-compare/internal/model"
)

// Describe summarizes values. With fewer than two values the standard
// deviation and the interval are nil.
func Describe(values []float64, level float64) model.Summary {
	n := len(values)
	if n == 0 {
		return model.Summary{}
	}

	x0 := values[0]
	if n == 1 {
		return model.Summary{Count: 1, Mean: x0}
	}

	shifted := make([]float64, n)
	for i, v := range values {
		shifted[i] = v - x0
	}
	m, sd := stat.MeanStdDev(shifted, nil)
	mean := x0 + m

	half := TCritical(level, n-1) * sd / math.Sqrt(float64(n))
	return model.Summary{
		Count:  n,
		Mean:   mean,
		StdDev: model.Float(sd),
		CILow:  model.Float(mean - half),
		CIHigh: model.Float(mean + half),
	}
}

// TCritical is the two-sided Student t critical value for the given
// confidence level and degrees of freedom.
func TCritical(level float64, df int) float64 {
	t := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(df)}
	return t.Quantile(1 - (1-level)/2)
}
