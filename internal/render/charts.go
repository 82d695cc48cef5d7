/*
PURPOSE:
  Draws the PNG charts of a comparison report: accuracy metrics per
  dataset, latency and throughput against concurrent users, and the
  deployment and resource usage panels.

REQUIREMENTS:
  User-specified:
  - Means carry their confidence interval as error bars.
  - Not applicable values are skipped.

  Implementation-discovered:
  - Latency spans orders of magnitude and uses a log y axis. Bars have
    no baseline on a log axis, so means are drawn as markers there.
  - Ops metrics have unrelated units and get one panel each.

ARCHITECTURE INTEGRATION:
  - Called by: internal/render/render.go
  - Uses: gonum/plot (plotter, plotutil, vg, vgimg)

ERROR HANDLING:
  - Plotter and file errors are returned unwrapped; Write adds the name.

IMPLEMENTATION RULES:
  - Nothing that reaches a log axis may be <= 0.
  - Multi-panel images go through saveTiles.

USAGE:
  err := render.AccuracyChart(path, rep, "bleu")

SELF-HEALING INSTRUCTIONS:
  - A "Values must be greater than 0" panic means a non-positive value
    reached a log axis; filter it with positive().

RELATED FILES:
  - internal/render/render.go

MAINTENANCE:
  - None.
*/

package render

import (
	"fmt"
	"image/color"
	"math"
	"os"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/daryltucker/forest-compare/internal/model"
)

// Bars of the two conditions sit this far left and right of the group
// centre, in data units.
const barShift = 0.2

// ciPoints is a set of means with their confidence interval, drawn as
// y error bars.
type ciPoints struct {
	x, y, lo, hi []float64
}

func (c *ciPoints) add(x float64, s *model.Summary) {
	if s == nil || s.Count == 0 {
		return
	}
	lo, hi := 0.0, 0.0
	if s.CILow != nil && s.CIHigh != nil {
		lo, hi = s.Mean-*s.CILow, *s.CIHigh-s.Mean
	}
	c.x = append(c.x, x)
	c.y = append(c.y, s.Mean)
	c.lo = append(c.lo, lo)
	c.hi = append(c.hi, hi)
}

func (c *ciPoints) Len() int                    { return len(c.x) }
func (c *ciPoints) XY(i int) (float64, float64) { return c.x[i], c.y[i] }
func (c *ciPoints) YError(i int) (float64, float64) {
	return c.lo[i], c.hi[i]
}

// AccuracyChart draws one bar per condition and dataset with the
// confidence interval as error bars.
func AccuracyChart(path string, rep *model.ComparisonReport, metric string) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s by dataset (%g%% CI)", metric, rep.ConfidenceLevel*100)
	p.Y.Label.Text = metric

	var ticks []plot.Tick
	left, right := &ciPoints{}, &ciPoints{}
	i := 0
	for _, row := range rep.Rows {
		if row.Scope != model.ScopeAccuracy {
			continue
		}
		mc, ok := find(row, metric)
		if !ok {
			continue
		}
		x := float64(i)
		ticks = append(ticks, plot.Tick{Value: x, Label: row.Dataset})
		left.add(x-barShift, mc.Left)
		right.add(x+barShift, mc.Right)
		i++
	}

	var logPts []*ciPoints
	if metric == model.MetricLatencyMS {
		logPts = []*ciPoints{left.positive(), right.positive()}
		if logPts[0].Len()+logPts[1].Len() == 0 {
			logPts = nil
		}
	}
	logY := logPts != nil
	for side, pts := range []*ciPoints{left, right} {
		label := rep.Left.Label()
		if side == 1 {
			label = rep.Right.Label()
		}
		var err error
		if logY {
			err = addLogPoints(p, logPts[side], side, label)
		} else {
			err = addBars(p, pts, plotutil.Color(side), label)
		}
		if err != nil {
			return err
		}
	}

	p.X.Min = -0.5
	p.X.Max = float64(i) - 0.5
	p.X.Tick.Marker = plot.ConstantTicks(ticks)
	if logY {
		// Latencies span orders of magnitude across datasets.
		p.Y.Scale = plot.LogScale{}
		p.Y.Tick.Marker = plot.LogTicks{Prec: -1}
		p.Y.Min, p.Y.Max = logRange(logPts...)
	} else {
		p.Y.Min = 0
	}
	p.Legend.Top = true
	return p.Save(7*vg.Inch, 4*vg.Inch, path)
}

// positive drops non-positive means and shortens lower whiskers that
// would cross zero, so the points fit a log axis.
func (c *ciPoints) positive() *ciPoints {
	out := &ciPoints{}
	for i := range c.x {
		y, lo := c.y[i], c.lo[i]
		if y <= 0 {
			continue
		}
		if y-lo <= 0 {
			lo = y * 0.9
		}
		out.x = append(out.x, c.x[i])
		out.y = append(out.y, y)
		out.lo = append(out.lo, lo)
		out.hi = append(out.hi, c.hi[i])
	}
	return out
}

// logRange spans every whisker of pts with some headroom. Both bounds
// stay positive.
func logRange(pts ...*ciPoints) (float64, float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, c := range pts {
		for i := range c.y {
			lo = math.Min(lo, c.y[i]-c.lo[i])
			hi = math.Max(hi, c.y[i]+c.hi[i])
		}
	}
	return lo / 2, hi * 2
}

// addLogPoints draws means as markers with error bars; bars have no
// baseline on a log axis.
func addLogPoints(p *plot.Plot, pts *ciPoints, side int, label string) error {
	if pts.Len() == 0 {
		return nil
	}
	sc, err := plotter.NewScatter(pts)
	if err != nil {
		return err
	}
	sc.Color = plotutil.Color(side)
	sc.Shape = plotutil.Shape(side)
	sc.Radius = vg.Points(4)
	eb, err := plotter.NewYErrorBars(pts)
	if err != nil {
		return err
	}
	eb.Color = plotutil.Color(side)
	p.Add(sc, eb)
	p.Legend.Add(label, sc)
	return nil
}

// addBars adds one single-value bar chart per point so each bar can be
// placed at its own x, plus the error bars over them.
func addBars(p *plot.Plot, pts *ciPoints, c color.Color, label string) error {
	for i := 0; i < pts.Len(); i++ {
		bar, err := plotter.NewBarChart(plotter.Values{pts.y[i]}, vg.Points(28))
		if err != nil {
			return err
		}
		bar.XMin = pts.x[i]
		bar.Color = c
		bar.LineStyle.Width = vg.Length(0)
		p.Add(bar)
		if i == 0 {
			p.Legend.Add(label, bar)
		}
	}
	if pts.Len() == 0 {
		return nil
	}
	eb, err := plotter.NewYErrorBars(pts)
	if err != nil {
		return err
	}
	p.Add(eb)
	return nil
}

// PerfUsersChart draws p95 latency and throughput against concurrent
// users, one line per condition, stacked in a single image.
func PerfUsersChart(path string, rep *model.ComparisonReport) error {
	lat, err := usersPlot(rep, model.MetricP95MS, "p95 latency (ms)")
	if err != nil {
		return err
	}
	rps, err := usersPlot(rep, model.MetricThroughputRPS, "throughput (req/s)")
	if err != nil {
		return err
	}

	return saveTiles(path, [][]*plot.Plot{{lat}, {rps}}, 7*vg.Inch, 8*vg.Inch)
}

// OpsMetricsCharted are the ops metrics drawn by OpsChart, in order.
var OpsMetricsCharted = []string{
	model.MetricDeployTimeS,
	model.MetricColdStartMS,
	model.MetricMeanCPUPct,
	model.MetricMeanRSSMB,
}

// OpsChart draws deployment and resource usage side by side, one panel
// per metric since their units differ.
func OpsChart(path string, rep *model.ComparisonReport) error {
	metrics := chartedOps(rep)
	if len(metrics) == 0 {
		return fmt.Errorf("no deployment or resource metrics to chart")
	}

	row := make([]*plot.Plot, 0, len(metrics))
	for _, mc := range metrics {
		p := plot.New()
		p.Title.Text = mc.Metric
		left, right := &ciPoints{}, &ciPoints{}
		left.add(-barShift, mc.Left)
		right.add(barShift, mc.Right)
		if err := addBars(p, left, plotutil.Color(0), rep.Left.Label()); err != nil {
			return err
		}
		if err := addBars(p, right, plotutil.Color(1), rep.Right.Label()); err != nil {
			return err
		}
		p.X.Min, p.X.Max = -0.5, 0.5
		p.X.Tick.Marker = plot.ConstantTicks(nil)
		p.Y.Min = 0
		p.Legend.Top = true
		row = append(row, p)
	}
	return saveTiles(path, [][]*plot.Plot{row}, vg.Length(len(row))*3*vg.Inch, 4*vg.Inch)
}

// chartedOps returns the comparisons of OpsMetricsCharted present in the
// report's ops row.
func chartedOps(rep *model.ComparisonReport) []model.MetricComparison {
	var out []model.MetricComparison
	for _, row := range rep.Rows {
		if row.Scope != model.ScopeOps {
			continue
		}
		for _, metric := range OpsMetricsCharted {
			if mc, ok := find(row, metric); ok {
				out = append(out, mc)
			}
		}
	}
	return out
}

// saveTiles aligns plots on a grid and writes them as one PNG.
func saveTiles(path string, plots [][]*plot.Plot, w, h vg.Length) error {
	img := vgimg.New(w, h)
	dc := draw.New(img)
	tiles := draw.Tiles{Rows: len(plots), Cols: len(plots[0]), PadX: vg.Millimeter * 4, PadY: vg.Millimeter * 6}
	canvases := plot.Align(plots, tiles, dc)
	for j := range plots {
		for i := range plots[j] {
			plots[j][i].Draw(canvases[j][i])
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := (vgimg.PngCanvas{Canvas: img}).WriteTo(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func usersPlot(rep *model.ComparisonReport, metric, ylabel string) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s vs concurrent users", ylabel)
	p.X.Label.Text = "concurrent users"
	p.Y.Label.Text = ylabel
	p.Legend.Top = true

	left, right := &ciPoints{}, &ciPoints{}
	var ticks []plot.Tick
	for _, row := range rep.Rows {
		if row.Scope != model.ScopeLoad {
			continue
		}
		mc, ok := find(row, metric)
		if !ok {
			continue
		}
		x := float64(row.Concurrency)
		ticks = append(ticks, plot.Tick{Value: x, Label: fmt.Sprint(row.Concurrency)})
		left.add(x, mc.Left)
		right.add(x, mc.Right)
	}
	p.X.Tick.Marker = plot.ConstantTicks(ticks)

	for side, pts := range []*ciPoints{left, right} {
		if pts.Len() == 0 {
			continue
		}
		label := rep.Left.Label()
		if side == 1 {
			label = rep.Right.Label()
		}
		line, points, err := plotter.NewLinePoints(pts)
		if err != nil {
			return nil, err
		}
		line.Color = plotutil.Color(side)
		points.Color = plotutil.Color(side)
		points.Shape = plotutil.Shape(side)
		eb, err := plotter.NewYErrorBars(pts)
		if err != nil {
			return nil, err
		}
		eb.Color = plotutil.Color(side)
		p.Add(line, points, eb)
		p.Legend.Add(label, line, points)
	}
	return p, nil
}
