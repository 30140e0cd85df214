package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/use-agent/smokecheck/config"
	"github.com/use-agent/smokecheck/engine"
	"github.com/use-agent/smokecheck/models"
	"github.com/ysmood/gson"
)

const titlePollInterval = 100 * time.Millisecond

// Probe opens a browser session, loads req.URL and reads the document title.
// The session is released before Probe returns, on every path.
//
// Lifecycle:
//
//  1. Open session         – launch Chromium or attach to a CDP URL
//  2. Open page            – DEFER: close page, then session
//  3. Stealth + headers    – must precede navigation to take effect
//  4. Hijack mount         – block images/fonts/media (before navigation)
//  5. Navigate + WaitLoad  – bounded by req.NavigationTimeout
//  6. Ready selector       – optional, same bound
//  7. Title                – polled until req.Accept holds or req.TitleTimeout
//
// Failures are returned as *models.CheckError; the original rod or context
// error stays reachable through errors.As and errors.Is.
func Probe(ctx context.Context, cfg config.BrowserConfig, req *engine.FetchRequest) (*engine.FetchResult, error) {
	// ── 1. Session ───────────────────────────────────────────────────
	s, err := openSession(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer s.close()

	// ── 2. Page ──────────────────────────────────────────────────────
	page, err := s.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, models.NewCheckError(
			models.ErrCodeBrowserLaunch,
			"failed to open page",
			err,
		)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()
		_ = page.Context(closeCtx).Close()
	}()

	// ── 3. Stealth + headers ─────────────────────────────────────────
	if cfg.Stealth {
		if _, err := page.EvalOnNewDocument(stealth.JS); err != nil {
			return nil, fmt.Errorf("inject stealth script: %w", err)
		}
	}
	if len(req.Headers) > 0 {
		if err := (proto.NetworkSetExtraHTTPHeaders{Headers: toHeadersMap(req.Headers)}).Call(page); err != nil {
			return nil, fmt.Errorf("set extra headers: %w", err)
		}
	}

	// ── 4. Hijack ────────────────────────────────────────────────────
	if router := setupHijack(page, cfg.BlockedResourceTypes); router != nil {
		defer func() { _ = router.Stop() }()
	}

	// ── 5-6. Navigate, wait for load and ready selector ─────────────
	navCtx, navCancel := ctx, context.CancelFunc(func() {})
	if req.NavigationTimeout > 0 {
		navCtx, navCancel = context.WithTimeout(ctx, req.NavigationTimeout)
	}
	defer navCancel()

	start := time.Now()
	p := page.Context(navCtx)
	if err := p.Navigate(req.URL); err != nil {
		return nil, categorizeError(err, "navigation to target URL failed")
	}
	if err := p.WaitLoad(); err != nil {
		return nil, categorizeError(err, "page did not finish loading")
	}
	if req.ReadySelector != "" {
		if _, err := p.Element(req.ReadySelector); err != nil {
			return nil, categorizeError(err, fmt.Sprintf("ready selector %q never appeared", req.ReadySelector))
		}
	}
	navTime := time.Since(start)

	// ── 7. Title ─────────────────────────────────────────────────────
	p = page.Context(ctx)
	title, err := waitTitle(ctx, p, req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, categorizeError(err, "title did not settle before the check timed out")
		}
		return nil, models.NewCheckError(models.ErrCodeInternal, "failed to read document title", err)
	}

	finalURL := evalStringOrEmpty(p, `() => window.location.href`)
	if finalURL == "" {
		finalURL = req.URL
	}

	return &engine.FetchResult{
		Title:          title,
		StatusCode:     navigationStatus(p),
		FinalURL:       finalURL,
		NavigationTime: navTime,
	}, nil
}

// waitTitle reads document.title until req.Accept holds or TitleTimeout
// elapses, and returns the last title read. Titles set by script after the
// load event are picked up this way.
func waitTitle(ctx context.Context, p *rod.Page, req *engine.FetchRequest) (string, error) {
	deadline := time.Now().Add(req.TitleTimeout)
	ticker := time.NewTicker(titlePollInterval)
	defer ticker.Stop()

	for {
		res, err := p.Eval(`() => document.title`)
		if err != nil {
			return "", err
		}
		title := res.Value.Str()
		if req.Accept == nil || req.Accept(title) || !time.Now().Before(deadline) {
			return title, nil
		}

		select {
		case <-ctx.Done():
			return title, ctx.Err()
		case <-ticker.C:
		}
	}
}

// navigationStatus reads the main document's HTTP status from the
// Navigation Timing API. Returns 0 when unavailable.
func navigationStatus(p *rod.Page) int {
	res, err := p.Eval(`() => {
		try {
			const entries = performance.getEntriesByType("navigation");
			if (entries.length > 0) return entries[0].responseStatus || 0;
		} catch(e) {}
		return 0;
	}`)
	if err != nil {
		return 0
	}
	return res.Value.Int()
}

// evalStringOrEmpty evaluates a JS expression and returns the string result,
// swallowing any errors.
func evalStringOrEmpty(page *rod.Page, js string) string {
	res, err := page.Eval(js)
	if err != nil {
		return ""
	}
	return res.Value.Str()
}

// toHeadersMap converts a plain string map to proto.NetworkHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}

// categorizeError wraps navigation-phase errors into typed CheckErrors:
// deadlines are load timeouts, caller cancellation is an internal error, and
// everything else means the target could not be reached.
func categorizeError(err error, msg string) *models.CheckError {
	var navErr *rod.NavigationError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewCheckError(models.ErrCodeLoadTimeout, msg, err)
	case errors.Is(err, context.Canceled):
		return models.NewCheckError(models.ErrCodeInternal, "check canceled", err)
	case errors.As(err, &navErr):
		return models.NewCheckError(models.ErrCodeUnreachable, msg+": "+navErr.Reason, err)
	default:
		return models.NewCheckError(models.ErrCodeUnreachable, msg, err)
	}
}
