/*
PURPOSE:
  Reads the heterogeneous per-run output files of one benchmark run
  (load-tool CSV summaries, resource sampler streams, evaluation JSON,
  lifecycle timings) into typed records.

REQUIREMENTS:
  User-specified:
  - One LoadResult per concurrency-tagged file; bad tokens are skipped
    with a warning.
  - A load file without throughput is corrupt and reported as an error.
  - Unknown metric keys are preserved.

  Implementation-discovered:
  - Tool output schemas drift between versions; column lookup goes
    through ordered candidate tables (columns.go).
  - Each file is read fully before parsing; nothing here blocks.

ARCHITECTURE INTEGRATION:
  - Called by: internal/aggregate
  - Uses: internal/model, internal/output

ERROR HANDLING:
  - Per-artifact problems become Warnings or ArtifactErrors on the
    result; ParseRunDir itself only fails when the directory is unreadable.

IMPLEMENTATION RULES:
  - Directory entries are processed in sorted order.
  - Never default a missing measurement to zero.

USAGE:
  arts, err := parser.New(datasets).ParseRunDir(dir)

SELF-HEALING INSTRUCTIONS:
  - New load-tool column names go into columns.go, not into the parsing code.

RELATED FILES:
  - internal/parser/columns.go
  - internal/aggregate/aggregator.go

MAINTENANCE:
  - Update artifact names when the collection scripts change.
*/

package parser

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/daryltucker/forest-compare/internal/model"
	"github.com/daryltucker/forest-compare/internal/output"
)

// Artifact file names inside a run directory.
const (
	LoadPrefix      = "metrics_"
	LoadSuffix      = "_stats.csv"
	EvalSuffix      = "_eval.json"
	SamplesFile     = "resource_samples.jsonl"
	DockerStatsFile = "docker_stats_raw.json"
	PidstatFile     = "pidstat_raw.txt"
	LifecycleFile   = "lifecycle.json"
	AggregateFile   = "run_aggregate.json"
	PerfCyclesFile  = "perf_cycles.txt"
)

// Artifacts is everything parsed from one run directory.
type Artifacts struct {
	Dir       string
	Samples   []model.RawSample
	Load      []model.LoadResult
	Lifecycle *Lifecycle
	Accuracy  []model.AccuracyResult
	// CPUCycles is the perf counter total for the whole run, when recorded.
	CPUCycles *float64
	Warnings  []string
	// Errors holds the artifacts that were corrupt (e.g. no throughput).
	Errors []*model.ArtifactError
	// Consumed lists the files that contributed to the result.
	Consumed []string
}

// Parser reads run directories.
type Parser struct {
	datasets map[string]string
}

// New returns a Parser using datasets to map eval file tokens to display names.
func New(datasets map[string]string) *Parser {
	return &Parser{datasets: datasets}
}

// ParseRunDir parses every recognized artifact in dir.
func (p *Parser) ParseRunDir(dir string) (*Artifacts, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read run directory %s: %w", dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	arts := &Artifacts{Dir: dir}
	for _, name := range names {
		path := filepath.Join(dir, name)
		switch {
		case strings.HasPrefix(name, LoadPrefix) && strings.HasSuffix(name, LoadSuffix):
			p.parseLoad(arts, name, path)
		case strings.HasSuffix(name, EvalSuffix):
			p.parseEval(arts, name, path)
		case name == LifecycleFile:
			lc, err := ParseLifecycleFile(path)
			if err != nil {
				arts.warn(name, err.Error())
				continue
			}
			arts.Lifecycle = lc
			arts.Consumed = append(arts.Consumed, name)
		case name == PerfCyclesFile:
			cycles, err := ParsePerfCyclesFile(path)
			if err != nil {
				arts.warn(name, err.Error())
				continue
			}
			arts.CPUCycles = &cycles
			arts.Consumed = append(arts.Consumed, name)
		}
	}

	p.parseResources(arts, names)
	return arts, nil
}

func (p *Parser) parseLoad(arts *Artifacts, name, path string) {
	token := strings.TrimSuffix(strings.TrimPrefix(name, LoadPrefix), LoadSuffix)
	concurrency, ok := ParseConcurrency(token)
	if !ok {
		arts.warn(name, fmt.Sprintf("concurrency token %q is not a positive integer, skipping", token))
		return
	}

	f, err := os.Open(path)
	if err != nil {
		arts.fail(name, err)
		return
	}
	defer f.Close()

	res, warnings, err := ParseLoadCSV(f, concurrency)
	for _, w := range warnings {
		arts.warn(name, w)
	}
	if err != nil {
		arts.fail(name, err)
		return
	}
	arts.Load = append(arts.Load, res)
	arts.Consumed = append(arts.Consumed, name)
}

func (p *Parser) parseEval(arts *Artifacts, name, path string) {
	token := strings.TrimSuffix(name, EvalSuffix)
	dataset := p.DatasetName(token)

	data, err := os.ReadFile(path)
	if err != nil {
		arts.warn(name, err.Error())
		return
	}
	scores, warnings, err := ParseEval(data)
	for _, w := range warnings {
		arts.warn(name, w)
	}
	if err != nil {
		arts.warn(name, fmt.Sprintf("dataset %s treated as absent: %v", dataset, err))
		return
	}
	arts.Accuracy = append(arts.Accuracy, model.AccuracyResult{Dataset: dataset, Scores: scores})
	arts.Consumed = append(arts.Consumed, name)
}

// parseResources prefers our own sampler stream, then docker stats, then pidstat.
func (p *Parser) parseResources(arts *Artifacts, names []string) {
	has := make(map[string]bool, len(names))
	for _, n := range names {
		has[n] = true
	}

	for _, src := range []struct {
		name  string
		parse func([]byte) ([]model.RawSample, int)
	}{
		{SamplesFile, ParseSamplesJSONL},
		{DockerStatsFile, ParseDockerStats},
		{PidstatFile, ParsePidstat},
	} {
		if !has[src.name] {
			continue
		}
		data, err := os.ReadFile(filepath.Join(arts.Dir, src.name))
		if err != nil {
			arts.warn(src.name, err.Error())
			continue
		}
		samples, skipped := src.parse(data)
		if skipped > 0 {
			arts.warn(src.name, fmt.Sprintf("skipped %d malformed lines", skipped))
		}
		arts.Samples = samples
		arts.Consumed = append(arts.Consumed, src.name)
		return
	}
}

// DatasetName maps an eval file token to its display name.
func (p *Parser) DatasetName(token string) string {
	if name, ok := p.datasets[strings.ToLower(token)]; ok {
		return name
	}
	return token
}

func (a *Artifacts) warn(artifact, msg string) {
	w := fmt.Sprintf("%s: %s", artifact, msg)
	a.Warnings = append(a.Warnings, w)
	output.Logger.Warn("Artifact warning", "run", a.Dir, "artifact", artifact, "detail", msg)
}

func (a *Artifacts) fail(artifact string, err error) {
	ae := &model.ArtifactError{Run: a.Dir, Artifact: artifact, Err: err}
	a.Errors = append(a.Errors, ae)
	a.Warnings = append(a.Warnings, fmt.Sprintf("%s: %v", artifact, err))
	output.Logger.Error("Malformed artifact", "run", a.Dir, "artifact", artifact, "error", err)
}

// ErrEmpty is returned by ParseEval for files without any score.
var ErrEmpty = errors.New("no scores")
