/*
PURPOSE:
  Periodic resource sampler for the service process. Emits one RawSample
  (CPU % and RSS MB) per interval as a JSON line, the format the parser
  prefers over docker stats and pidstat captures.

REQUIREMENTS:
  User-specified:
  - Samples feed mean/peak CPU and RSS of the run aggregate.

  Implementation-discovered:
  - Service frameworks fork workers, so children can be included.
  - The process exiting ends sampling cleanly; it is not an error.

ARCHITECTURE INTEGRATION:
  - Called by: internal/cli (sample)
  - Uses: gopsutil process, internal/model, internal/output

ERROR HANDLING:
  - A failed sample is logged and skipped; sampling continues.

IMPLEMENTATION RULES:
  - Blocking; stops on context cancellation or after the duration.

USAGE:
  src, err := sampler.NewProcessSource(pid, true)
  n, err := sampler.New(src, time.Second).Run(ctx, jsonWriter, 0)

SELF-HEALING INSTRUCTIONS:
  - None.

RELATED FILES:
  - internal/parser/resource.go

MAINTENANCE:
  - None.
*/

package sampler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/daryltucker/forest-compare/internal/model"
	"github.com/daryltucker/forest-compare/internal/output"
)

// ErrProcessGone is returned by a Source whose process has exited.
var ErrProcessGone = errors.New("process is no longer running")

// Source produces one observation.
type Source interface {
	Sample(ctx context.Context) (model.RawSample, error)
}

// Sink receives observations; output.JSONWriter is one.
type Sink interface {
	Write(v any) error
}

// ProcessSource samples a process (and optionally its children) with
// gopsutil.
type ProcessSource struct {
	pid      int32
	children bool
	procs    map[int32]*process.Process
}

// NewProcessSource attaches to pid.
func NewProcessSource(ctx context.Context, pid int32, children bool) (*ProcessSource, error) {
	p, err := process.NewProcessWithContext(ctx, pid)
	if err != nil {
		return nil, fmt.Errorf("failed to attach to pid %d: %w", pid, err)
	}
	s := &ProcessSource{pid: pid, children: children, procs: map[int32]*process.Process{pid: p}}
	// Percent(0) reports usage since the previous call; prime it.
	_, _ = p.PercentWithContext(ctx, 0)
	return s, nil
}

// Sample sums CPU and RSS over the tracked processes.
func (s *ProcessSource) Sample(ctx context.Context) (model.RawSample, error) {
	root := s.procs[s.pid]
	if running, err := root.IsRunningWithContext(ctx); err != nil || !running {
		return model.RawSample{}, ErrProcessGone
	}
	if s.children {
		s.refreshChildren(ctx, root)
	}

	var cpu, rss float64
	for pid, p := range s.procs {
		pct, err := p.PercentWithContext(ctx, 0)
		if err != nil {
			if pid == s.pid {
				return model.RawSample{}, err
			}
			delete(s.procs, pid)
			continue
		}
		mem, err := p.MemoryInfoWithContext(ctx)
		if err != nil {
			if pid == s.pid {
				return model.RawSample{}, err
			}
			delete(s.procs, pid)
			continue
		}
		cpu += pct
		rss += float64(mem.RSS) / (1024 * 1024)
	}
	return model.RawSample{Timestamp: time.Now().UTC(), CPUPercent: cpu, RSSMB: rss}, nil
}

func (s *ProcessSource) refreshChildren(ctx context.Context, root *process.Process) {
	kids, err := root.ChildrenWithContext(ctx)
	if err != nil {
		// No children is reported as an error by gopsutil.
		return
	}
	for _, k := range kids {
		if _, ok := s.procs[k.Pid]; !ok {
			_, _ = k.PercentWithContext(ctx, 0)
			s.procs[k.Pid] = k
		}
	}
}

// Sampler drives a Source at a fixed interval.
type Sampler struct {
	Source   Source
	Interval time.Duration
}

// New creates a Sampler.
func New(src Source, interval time.Duration) *Sampler {
	return &Sampler{Source: src, Interval: interval}
}

// Run samples until ctx is done, the process exits, or duration elapses
// (zero means no limit). It returns the number of samples written.
func (s *Sampler) Run(ctx context.Context, sink Sink, duration time.Duration) (int, error) {
	if s.Interval <= 0 {
		return 0, fmt.Errorf("sampling interval must be positive, got %s", s.Interval)
	}
	if duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, duration)
		defer cancel()
	}

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	written := 0
	for {
		select {
		case <-ctx.Done():
			output.Logger.Info("Sampling stopped", "samples", written)
			return written, nil
		case <-ticker.C:
			sample, err := s.Source.Sample(ctx)
			if errors.Is(err, ErrProcessGone) {
				output.Logger.Info("Sampled process exited", "samples", written)
				return written, nil
			}
			if err != nil {
				if ctx.Err() != nil {
					return written, nil
				}
				output.Logger.Warn("Skipping failed sample", "err", err)
				continue
			}
			if err := sink.Write(sample); err != nil {
				return written, fmt.Errorf("failed to write sample: %w", err)
			}
			written++
		}
	}
}
