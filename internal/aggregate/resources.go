package aggregate

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/daryltucker/forest-compare/internal/model"
)

// SummarizeResources reduces raw sampler observations to mean and peak
// CPU/RSS. Without samples every field is "not applicable".
func SummarizeResources(samples []model.RawSample) model.ResourceUsage {
	if len(samples) == 0 {
		return model.ResourceUsage{}
	}

	cpu := make([]float64, len(samples))
	rss := make([]float64, len(samples))
	for i, s := range samples {
		cpu[i] = s.CPUPercent
		rss[i] = s.RSSMB
	}

	return model.ResourceUsage{
		Samples:    len(samples),
		MeanCPUPct: model.Float(stat.Mean(cpu, nil)),
		PeakCPUPct: model.Float(floats.Max(cpu)),
		MeanRSSMB:  model.Float(stat.Mean(rss, nil)),
		PeakRSSMB:  model.Float(floats.Max(rss)),
	}
}

// CyclesPerRequest divides the run's cycle total by the requests served
// across all load levels. It is nil when either side is unknown or no
// request was served.
func CyclesPerRequest(cycles *float64, load []model.LoadResult) *float64 {
	if cycles == nil {
		return nil
	}
	var requests float64
	for _, l := range load {
		if l.Requests != nil {
			requests += *l.Requests
		}
	}
	if requests <= 0 {
		return nil
	}
	return model.Float(*cycles / requests)
}
