// Package checker runs the smoke check: load a page, read its title and
// assert it against a pattern, reporting unreachable targets, load timeouts
// and title mismatches as distinct failures.
package checker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"time"

	"github.com/use-agent/smokecheck/browser"
	"github.com/use-agent/smokecheck/config"
	"github.com/use-agent/smokecheck/engine"
	"github.com/use-agent/smokecheck/matcher"
	"github.com/use-agent/smokecheck/models"
)

// Notifier receives every finished report.
type Notifier interface {
	Notify(ctx context.Context, report *models.CheckReport)
}

// Checker runs smoke checks. It holds no per-check state and is safe for
// concurrent use.
type Checker struct {
	engines  map[string]engine.Engine
	memory   *engine.EngineMemory
	notifier Notifier
	now      func() time.Time
}

// Option configures a Checker.
type Option func(*Checker)

// WithNotifier registers n to receive every report.
func WithNotifier(n Notifier) Option {
	return func(c *Checker) { c.notifier = n }
}

// WithEngine replaces the engine used for mode.
func WithEngine(mode string, e engine.Engine) Option {
	return func(c *Checker) { c.engines[mode] = e }
}

// New wires the fetch engines: "browser" runs a rod probe, "http" a plain
// fetch, and "auto" races them with staged escalation.
func New(cfg *config.Config, opts ...Option) *Checker {
	browserCfg := cfg.Browser
	rodFetch := func(ctx context.Context, req *engine.FetchRequest) (*engine.FetchResult, error) {
		return browser.Probe(ctx, browserCfg, req)
	}

	httpEngine := engine.NewHTTPEngine()
	rodEngine := engine.NewRodEngine(rodFetch)
	memory := engine.NewEngineMemory(cfg.Engine.MemoryTTL)

	c := &Checker{
		engines: map[string]engine.Engine{
			models.ModeHTTP:    &boundedEngine{Engine: httpEngine, timeout: cfg.Engine.HTTPTimeout},
			models.ModeBrowser: rodEngine,
		},
		memory: memory,
		now:    time.Now,
	}
	c.engines[models.ModeAuto] = engine.NewDispatcher(
		[]engine.Engine{c.engines[models.ModeHTTP], rodEngine},
		cfg.Engine.EscalationDelays,
		memory,
	)

	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Close stops background work owned by the checker.
func (c *Checker) Close() {
	if c.memory != nil {
		c.memory.Stop()
	}
}

// Run performs one smoke check. It always returns a report; on failure the
// report is marked failed and err is a *models.CheckError whose code tells
// the failure kinds apart. Nothing is retried.
func (c *Checker) Run(ctx context.Context, t Target) (*models.CheckReport, error) {
	start := c.now()
	report := &models.CheckReport{
		URL:       t.URL,
		Pattern:   t.Pattern,
		CheckedAt: start.UTC(),
	}

	m, err := c.prepare(t)
	if err != nil {
		return c.finish(ctx, report, start, models.NewCheckError(models.ErrCodeInvalidInput, err.Error(), err))
	}
	report.Pattern = m.String()

	eng := c.engines[t.Mode]

	ctx, cancel := context.WithTimeout(ctx, t.Timeout)
	defer cancel()

	slog.Debug("smoke check starting", "url", t.URL, "pattern", report.Pattern, "mode", t.Mode)
	result, err := eng.Fetch(ctx, &engine.FetchRequest{
		URL:               t.URL,
		Headers:           t.Headers,
		NavigationTimeout: t.NavigationTimeout,
		TitleTimeout:      t.TitleTimeout,
		ReadySelector:     t.ReadySelector,
		Accept:            m.Match,
	})
	if err != nil {
		return c.finish(ctx, report, start, classify(err))
	}

	report.Title = result.Title
	report.FinalURL = result.FinalURL
	report.StatusCode = result.StatusCode
	report.EngineUsed = result.EngineName
	report.Timing.NavigationMs = result.NavigationTime.Milliseconds()

	if !m.Match(result.Title) {
		return c.finish(ctx, report, start, models.NewCheckError(
			models.ErrCodeTitleMismatch,
			fmt.Sprintf("title %q does not match %s", result.Title, m),
			nil,
		))
	}
	return c.finish(ctx, report, start, nil)
}

func (c *Checker) prepare(t Target) (*matcher.Title, error) {
	if err := t.validate(); err != nil {
		return nil, err
	}
	return matcher.Compile(t.Pattern)
}

// finish stamps outcome and timing, logs, and notifies. ctx may already be
// past its deadline; notification uses a detached context.
func (c *Checker) finish(ctx context.Context, report *models.CheckReport, start time.Time, cerr *models.CheckError) (*models.CheckReport, error) {
	report.Timing.TotalMs = c.now().Sub(start).Milliseconds()

	if cerr == nil {
		report.Passed = true
		report.Outcome = models.OutcomePass
		slog.Info("smoke check passed",
			"url", report.URL, "title", report.Title, "engine", report.EngineUsed,
			"totalMs", report.Timing.TotalMs)
	} else {
		report.Outcome = models.OutcomeFor(cerr.Code)
		report.Error = cerr.ToDetail()
		slog.Warn("smoke check failed",
			"url", report.URL, "code", cerr.Code, "title", report.Title,
			"pattern", report.Pattern, "error", cerr)
	}

	if c.notifier != nil {
		c.notifier.Notify(context.WithoutCancel(ctx), report)
	}

	if cerr != nil {
		return report, cerr
	}
	return report, nil
}

// classify maps an engine error onto the failure taxonomy. Errors that are
// already typed keep their code.
func classify(err error) *models.CheckError {
	var ce *models.CheckError
	if errors.As(err, &ce) {
		return ce
	}

	var (
		netErr net.Error
		urlErr *url.Error
		opErr  *net.OpError
	)
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewCheckError(models.ErrCodeLoadTimeout, "page did not load in time", err)
	case errors.Is(err, context.Canceled):
		return models.NewCheckError(models.ErrCodeInternal, "check canceled", err)
	case errors.As(err, &netErr) && netErr.Timeout():
		return models.NewCheckError(models.ErrCodeLoadTimeout, "page did not load in time", err)
	case errors.Is(err, engine.ErrSelectorNotFound):
		return models.NewCheckError(models.ErrCodeLoadTimeout, "ready selector never appeared", err)
	case errors.As(err, &opErr), errors.As(err, &urlErr):
		return models.NewCheckError(models.ErrCodeUnreachable, "target unreachable", err)
	default:
		return models.NewCheckError(models.ErrCodeInternal, "check failed", err)
	}
}
