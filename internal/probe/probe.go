/*
PURPOSE:
  Readiness probe for the service under test. Polls the service contract
  (POST <url> {"prompt": ...}) until the first successful response and
  measures the cold-start time from launch to that response.

REQUIREMENTS:
  User-specified:
  - HTTP 200 means ready.
  - Bounded by a wall-clock budget; an unready service is recorded, not
    fatal, and its cold start is "not applicable".

  Implementation-discovered:
  - The first request can hang while the model loads, so the response
    header timeout is separate from the poll interval.
  - 4xx other than 408/429 will not heal by waiting; stop immediately.

ARCHITECTURE INTEGRATION:
  - Called by: internal/cli (probe)
  - Uses: internal/config, internal/parser, internal/output
  - Writes: lifecycle.json consumed by internal/parser

ERROR HANDLING:
  - WaitReady only errors on context cancellation or a permanent
    failure; a spent budget yields Result{Ready: false}.

IMPLEMENTATION RULES:
  - Exponential backoff (cenkalti/backoff) capped at the poll interval.
  - Use net/http with an own transport.

USAGE:
  p := probe.New(cfg.Probe)
  res, err := p.WaitReady(ctx, launchedAt)

SELF-HEALING INSTRUCTIONS:
  - If the service contract changes, update Check().

RELATED FILES:
  - internal/parser/lifecycle.go
  - internal/cli/probe.go

MAINTENANCE:
  - None.
*/

package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptrace"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/daryltucker/forest-compare/internal/config"
	"github.com/daryltucker/forest-compare/internal/model"
	"github.com/daryltucker/forest-compare/internal/output"
	"github.com/daryltucker/forest-compare/internal/parser"
)

// Prober polls one service endpoint.
type Prober struct {
	Config config.ProbeConfig
	Client *http.Client
	now    func() time.Time
}

// Result is the outcome of WaitReady.
type Result struct {
	Ready     bool
	ColdStart time.Duration
	Attempts  int
	// LastError is the last failure seen, empty when ready on first try.
	LastError string
}

// New creates a Prober.
func New(cfg config.ProbeConfig) *Prober {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	// Headers arrive only after the model has loaded.
	transport.ResponseHeaderTimeout = cfg.Timeout

	return &Prober{
		Config: cfg,
		Client: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
		},
		now: time.Now,
	}
}

// Check sends a single probe request.
func (p *Prober) Check(ctx context.Context) error {
	body, err := json.Marshal(map[string]string{"prompt": p.Config.Prompt})
	if err != nil {
		return backoff.Permanent(err)
	}

	trace := &httptrace.ClientTrace{
		GotConn: func(info httptrace.GotConnInfo) {
			output.Logger.Debug("Probe: connected", "remote", info.Conn.RemoteAddr(), "reused", info.Reused)
		},
	}
	ctx = httptrace.WithClientTrace(ctx, trace)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.Config.URL, bytes.NewReader(body))
	if err != nil {
		return backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.Client.Do(req)
	if err != nil {
		return fmt.Errorf("probe request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500 &&
		resp.StatusCode != http.StatusRequestTimeout && resp.StatusCode != http.StatusTooManyRequests:
		return backoff.Permanent(fmt.Errorf("service rejected probe: %s", resp.Status))
	default:
		return fmt.Errorf("service not ready: %s", resp.Status)
	}
}

// WaitReady polls until the service answers, the budget is spent or ctx
// is cancelled. launched is the moment the service was started; cold
// start is measured from it.
func (p *Prober) WaitReady(ctx context.Context, launched time.Time) (Result, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = min(250*time.Millisecond, p.Config.Interval)
	b.MaxInterval = p.Config.Interval
	b.MaxElapsedTime = p.Config.Budget

	var res Result
	var permanent error
	op := func() error {
		res.Attempts++
		err := p.Check(ctx)
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			permanent = perm.Err
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		res.LastError = err.Error()
		output.Logger.Info("Service not ready, retrying", "url", p.Config.URL, "attempt", res.Attempts, "wait", wait, "err", err)
	}

	err := backoff.RetryNotify(op, backoff.WithContext(b, ctx), notify)
	if err == nil {
		res.Ready = true
		res.ColdStart = p.now().Sub(launched)
		output.Logger.Info("Service ready", "url", p.Config.URL, "cold_start", res.ColdStart, "attempts", res.Attempts)
		return res, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return res, ctxErr
	}
	res.LastError = err.Error()
	if permanent != nil {
		return res, permanent
	}
	output.Logger.Warn("Service never became ready within budget", "url", p.Config.URL, "budget", p.Config.Budget, "err", err)
	return res, nil
}

// Lifecycle converts the result into lifecycle.json content. An unready
// service has no cold start.
func (r Result) Lifecycle() parser.Lifecycle {
	lc := parser.Lifecycle{Ready: &r.Ready}
	if r.Ready {
		lc.ColdStartMS = model.Float(float64(r.ColdStart) / float64(time.Millisecond))
	}
	return lc
}

// WriteLifecycle merges lc into the lifecycle file at path, keeping
// fields another tool already recorded there.
func WriteLifecycle(path string, lc parser.Lifecycle) error {
	base := parser.Lifecycle{}
	if existing, err := parser.ParseLifecycleFile(path); err == nil {
		base = *existing
	} else if !errors.Is(err, os.ErrNotExist) {
		output.Logger.Warn("Replacing unreadable lifecycle file", "path", path, "err", err)
	}
	merged := base.Merge(lc)
	if lc.Ready != nil && !*lc.Ready {
		merged.ColdStartMS = nil
	}
	return output.WriteJSONFile(path, merged)
}
