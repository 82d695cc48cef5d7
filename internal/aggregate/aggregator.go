/*
PURPOSE:
  Turns the parsed artifacts of one run directory into exactly one
  RunAggregate and persists it as run_aggregate.json.

REQUIREMENTS:
  User-specified:
  - Must complete without cold start, without load levels, or with
    missing evaluation datasets (recorded as "not applicable"/absent).
  - Re-aggregating an unmodified directory is byte-for-byte identical.

  Implementation-discovered:
  - CreatedAt and RunID are derived from the inputs (artifact mtimes,
    directory name) rather than the wall clock, otherwise idempotence breaks.
  - Image size only exists for the container condition.

ARCHITECTURE INTEGRATION:
  - Called by: internal/cli (aggregate, compare --reaggregate)
  - Uses: internal/parser, internal/model, internal/output

ERROR HANDLING:
  - Corrupt artifacts are returned in Result.Errors and recorded as
    warnings; they never abort the other concurrency levels.
  - Only an unreadable run directory or a failed write is fatal.

IMPLEMENTATION RULES:
  - All inputs are read before computing; nothing here blocks.
  - The RunContext carries the directory; no package-level state.

USAGE:
  res, err := aggregate.New(p).Run(aggregate.RunContext{Dir: dir, Condition: model.ConditionHost}, parser.Lifecycle{})

SELF-HEALING INSTRUCTIONS:
  - If aggregates stop being reproducible, check that every new field is
    derived from file contents, not from time.Now().

RELATED FILES:
  - internal/parser/parser.go
  - internal/aggregate/load.go

MAINTENANCE:
  - Additive schema changes only.
*/

package aggregate

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/daryltucker/forest-compare/internal/model"
	"github.com/daryltucker/forest-compare/internal/output"
	"github.com/daryltucker/forest-compare/internal/parser"
)

// RunContext is the explicit per-run context handed to every component.
type RunContext struct {
	Dir       string
	Condition model.Condition
	Logger    *slog.Logger
}

func (rc RunContext) logger() *slog.Logger {
	if rc.Logger != nil {
		return rc.Logger
	}
	return output.Logger
}

// Result is the outcome of aggregating one run directory.
type Result struct {
	Aggregate *model.RunAggregate
	// Path is set once the aggregate has been written.
	Path string
	// Errors lists the corrupt artifacts that were left out.
	Errors []*model.ArtifactError
}

// Aggregator builds run aggregates.
type Aggregator struct {
	parser *parser.Parser
	now    func() time.Time
}

// New creates an Aggregator.
func New(p *parser.Parser) *Aggregator {
	return &Aggregator{parser: p, now: time.Now}
}

// Aggregate parses rc.Dir and assembles its RunAggregate without writing it.
// Fields set in overrides win over lifecycle.json.
func (a *Aggregator) Aggregate(rc RunContext, overrides parser.Lifecycle) (*Result, error) {
	if rc.Condition != model.ConditionHost && rc.Condition != model.ConditionContainer {
		return nil, fmt.Errorf("run %s: invalid condition %q", rc.Dir, rc.Condition)
	}
	log := rc.logger()

	arts, err := a.parser.ParseRunDir(rc.Dir)
	if err != nil {
		return nil, err
	}

	agg := &model.RunAggregate{
		SchemaVersion: model.SchemaVersion,
		Condition:     rc.Condition,
		RunDir:        runName(rc.Dir),
		Load:          []model.LoadResult{},
		Accuracy:      []model.AccuracyResult{},
		Warnings:      append([]string(nil), arts.Warnings...),
	}

	agg.Load = dedupeLoad(arts.Load, agg)
	agg.Accuracy = dedupeAccuracy(arts.Accuracy, agg)
	agg.Resources = SummarizeResources(arts.Samples)
	agg.Resources.CPUCycles = arts.CPUCycles
	agg.Resources.CyclesPerReq = CyclesPerRequest(arts.CPUCycles, agg.Load)
	agg.Lifecycle = a.lifecycle(rc, arts, overrides, agg)

	createdAt, err := a.createdAt(rc.Dir, arts.Consumed)
	if err != nil {
		return nil, err
	}
	agg.CreatedAt = createdAt
	agg.RunID = RunID(rc.Condition, agg.RunDir, createdAt)

	if len(agg.Load) == 0 {
		log.Info("No load levels found; aggregate carries an empty load set", "run", rc.Dir)
	}
	if agg.Lifecycle.ColdStartMS == nil {
		log.Info("Cold start not applicable", "run", rc.Dir)
	}

	return &Result{Aggregate: agg, Errors: arts.Errors}, nil
}

// Run aggregates rc.Dir and writes run_aggregate.json into it.
func (a *Aggregator) Run(rc RunContext, overrides parser.Lifecycle) (*Result, error) {
	res, err := a.Aggregate(rc, overrides)
	if err != nil {
		return nil, err
	}
	path, err := Write(rc.Dir, res.Aggregate)
	if err != nil {
		return nil, err
	}
	res.Path = path

	rc.logger().Info("Wrote run aggregate",
		"run", rc.Dir,
		"condition", rc.Condition,
		"load_levels", len(res.Aggregate.Load),
		"datasets", len(res.Aggregate.Accuracy),
		"warnings", len(res.Aggregate.Warnings),
	)
	return res, nil
}

// Write persists agg as dir/run_aggregate.json and returns the path.
func Write(dir string, agg *model.RunAggregate) (string, error) {
	path := filepath.Join(dir, parser.AggregateFile)
	if err := output.WriteJSONFile(path, agg); err != nil {
		return "", fmt.Errorf("run %s: %w", dir, err)
	}
	return path, nil
}

func (a *Aggregator) lifecycle(rc RunContext, arts *parser.Artifacts, overrides parser.Lifecycle, agg *model.RunAggregate) model.LifecycleTiming {
	var lc parser.Lifecycle
	if arts.Lifecycle != nil {
		lc = *arts.Lifecycle
	}
	lc = lc.Merge(overrides)

	timing := model.LifecycleTiming{
		DeployTimeS:    lc.DeployTimeS,
		ColdStartMS:    lc.ColdStartMS,
		ImageSizeBytes: lc.ImageSizeBytes,
	}
	if lc.Ready != nil && !*lc.Ready && timing.ColdStartMS != nil {
		agg.Warnings = append(agg.Warnings, "lifecycle: service never became ready, cold start not applicable")
		timing.ColdStartMS = nil
	}
	if rc.Condition == model.ConditionHost && timing.ImageSizeBytes != nil {
		agg.Warnings = append(agg.Warnings, "lifecycle: image size ignored for host condition")
		timing.ImageSizeBytes = nil
	}
	return timing
}

// createdAt is the newest modification time of the consumed artifacts.
// Without artifacts the timestamp of an existing aggregate is kept so
// re-running stays idempotent.
func (a *Aggregator) createdAt(dir string, consumed []string) (time.Time, error) {
	var latest time.Time
	for _, name := range consumed {
		fi, err := os.Stat(filepath.Join(dir, name))
		if err != nil {
			return time.Time{}, &model.ArtifactError{Run: dir, Artifact: name, Err: err}
		}
		if fi.ModTime().After(latest) {
			latest = fi.ModTime()
		}
	}
	if !latest.IsZero() {
		return latest.UTC().Truncate(time.Second), nil
	}

	prev, err := Load(filepath.Join(dir, parser.AggregateFile))
	switch {
	case err == nil:
		return prev.CreatedAt, nil
	case errors.Is(err, os.ErrNotExist):
		return a.now().UTC().Truncate(time.Second), nil
	default:
		return time.Time{}, err
	}
}

// RunID is a name-based UUID so the same inputs always get the same id.
func RunID(cond model.Condition, name string, createdAt time.Time) string {
	seed := fmt.Sprintf("forest-compare:%s:%s:%s", cond, name, createdAt.UTC().Format(time.RFC3339Nano))
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(seed)).String()
}

func runName(dir string) string {
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	return filepath.Base(dir)
}

func dedupeLoad(in []model.LoadResult, agg *model.RunAggregate) []model.LoadResult {
	sorted := append([]model.LoadResult(nil), in...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Concurrency < sorted[j].Concurrency })

	out := make([]model.LoadResult, 0, len(sorted))
	for _, lr := range sorted {
		if n := len(out); n > 0 && out[n-1].Concurrency == lr.Concurrency {
			agg.Warnings = append(agg.Warnings, fmt.Sprintf("load: duplicate concurrency %d, keeping the first file", lr.Concurrency))
			continue
		}
		out = append(out, lr)
	}
	return out
}

func dedupeAccuracy(in []model.AccuracyResult, agg *model.RunAggregate) []model.AccuracyResult {
	sorted := append([]model.AccuracyResult(nil), in...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Dataset < sorted[j].Dataset })

	out := make([]model.AccuracyResult, 0, len(sorted))
	for _, ar := range sorted {
		if n := len(out); n > 0 && out[n-1].Dataset == ar.Dataset {
			agg.Warnings = append(agg.Warnings, fmt.Sprintf("accuracy: duplicate dataset %s, keeping the first file", ar.Dataset))
			continue
		}
		out = append(out, ar)
	}
	return out
}
