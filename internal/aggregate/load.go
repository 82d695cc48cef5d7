package aggregate

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/daryltucker/forest-compare/internal/model"
	"github.com/daryltucker/forest-compare/internal/parser"
)

// Load reads a persisted aggregate. path may be a run directory or the
// aggregate file itself.
func Load(path string) (*model.RunAggregate, error) {
	if fi, err := os.Stat(path); err == nil && fi.IsDir() {
		path = filepath.Join(path, parser.AggregateFile)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var agg model.RunAggregate
	if err := json.Unmarshal(data, &agg); err != nil {
		return nil, &model.ArtifactError{Run: filepath.Dir(path), Artifact: filepath.Base(path), Err: err}
	}
	if agg.SchemaVersion > model.SchemaVersion {
		return nil, &model.ArtifactError{
			Run:      filepath.Dir(path),
			Artifact: filepath.Base(path),
			Err:      fmt.Errorf("schema version %d is newer than supported %d", agg.SchemaVersion, model.SchemaVersion),
		}
	}
	return &agg, nil
}

// LoadAll reads aggregates concurrently. The result keeps the order of paths.
func LoadAll(ctx context.Context, paths []string) ([]*model.RunAggregate, error) {
	out := make([]*model.RunAggregate, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())

	for i, p := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			agg, err := Load(p)
			if err != nil {
				return fmt.Errorf("failed to load aggregate %s: %w", p, err)
			}
			out[i] = agg
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// RunAll aggregates and writes several run directories concurrently.
// Runs share no state; results keep the order of rcs.
func (a *Aggregator) RunAll(ctx context.Context, rcs []RunContext, overrides parser.Lifecycle) ([]*Result, error) {
	out := make([]*Result, len(rcs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())

	for i, rc := range rcs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := a.Run(rc, overrides)
			if err != nil {
				return err
			}
			out[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
