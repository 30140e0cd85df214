// Package browser runs a single scoped browser session against a target
// page: launch or attach, navigate, wait for load, read the title, release.
package browser

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/use-agent/smokecheck/config"
	"github.com/use-agent/smokecheck/models"
)

// closeTimeout bounds releasing a session once the check context is done.
const closeTimeout = 5 * time.Second

// openSession is the session factory Probe uses. Tests wrap it to observe
// the launched process.
var openSession = open

// session owns one browser connection and, when it launched the process,
// the launcher that can kill it.
type session struct {
	browser  *rod.Browser
	launcher *launcher.Launcher // nil when attached to an external browser
}

// Available reports whether a Chromium binary can be found for cfg, either
// configured explicitly or on the usual system paths. Attaching via CDPURL
// needs no local binary.
func Available(cfg config.BrowserConfig) bool {
	if cfg.CDPURL != "" || cfg.BrowserBin != "" {
		return true
	}
	_, found := launcher.LookPath()
	return found
}

// newLauncher builds the launcher with flags for a quiet, automation-friendly
// Chromium.
func newLauncher(cfg config.BrowserConfig) *launcher.Launcher {
	l := launcher.New().
		Headless(cfg.Headless).
		NoSandbox(cfg.NoSandbox)

	if cfg.BrowserBin != "" {
		l = l.Bin(cfg.BrowserBin)
	}
	if cfg.Proxy != "" {
		l = l.Proxy(cfg.Proxy)
	}

	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-features"), "AudioServiceOutOfProcess,TranslateUI")
	l.Set(flags.Flag("disable-background-timer-throttling"))
	l.Set(flags.Flag("disable-backgrounding-occluded-windows"))
	l.Set(flags.Flag("disable-renderer-backgrounding"))
	l.Set(flags.Flag("disable-component-update"))
	l.Set(flags.Flag("disable-default-apps"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("no-first-run"))
	return l
}

// open launches a browser, or attaches to cfg.CDPURL, and connects to it.
// Launching (including any browser download) and connecting are bound to
// ctx. On error nothing is left running.
func open(ctx context.Context, cfg config.BrowserConfig) (*session, error) {
	if cfg.CDPURL != "" {
		b := rod.New().Context(ctx).ControlURL(cfg.CDPURL)
		if err := b.Connect(); err != nil {
			return nil, models.NewCheckError(
				models.ErrCodeBrowserLaunch,
				"failed to connect to CDP URL",
				err,
			)
		}
		// A fresh browser context isolates cookies and storage from earlier
		// runs; closing it disposes the context, not the external browser.
		incognito, err := b.Incognito()
		if err != nil {
			return nil, models.NewCheckError(
				models.ErrCodeBrowserLaunch,
				"failed to create browser context",
				err,
			)
		}
		slog.Debug("attached to browser", "cdpURL", cfg.CDPURL)
		return &session{browser: incognito}, nil
	}

	l := newLauncher(cfg).Context(ctx)
	controlURL, err := l.Launch()
	if err != nil {
		// Cleanup would block on a process that never started.
		l.Kill()
		return nil, models.NewCheckError(
			models.ErrCodeBrowserLaunch,
			"failed to launch browser",
			err,
		)
	}
	slog.Debug("browser launched", "controlURL", controlURL, "pid", l.PID())

	b := rod.New().Context(ctx).ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		l.Kill()
		l.Cleanup()
		return nil, models.NewCheckError(
			models.ErrCodeBrowserLaunch,
			"failed to connect to browser",
			err,
		)
	}
	return &session{browser: b, launcher: l}, nil
}

// close releases the session, even after the check context has ended. A
// launched browser is closed, its process killed and its profile directory
// removed; for an attached browser only the session's browser context is
// disposed.
func (s *session) close() {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	b := s.browser.Context(ctx)

	if s.launcher == nil {
		_ = b.Close()
		return
	}
	if err := b.Close(); err != nil {
		slog.Debug("browser close failed, killing process", "error", err)
	}
	s.launcher.Kill()
	s.launcher.Cleanup()
	slog.Debug("browser session released")
}
