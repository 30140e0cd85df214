package browser

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/smokecheck/config"
	"github.com/use-agent/smokecheck/engine"
	"github.com/use-agent/smokecheck/models"
)

func testBrowserConfig(t *testing.T) config.BrowserConfig {
	t.Helper()
	if testing.Short() {
		t.Skip("browser tests are skipped in -short mode")
	}
	cfg := config.BrowserConfig{
		Headless:             true,
		NoSandbox:            true,
		BlockedResourceTypes: []string{"Image", "Font", "Media"},
	}
	if !Available(cfg) {
		t.Skip("no Chromium binary found")
	}
	return cfg
}

// launched identifies a browser process started by a session.
type launched struct {
	pid         int
	userDataDir string
}

// trackLaunches records every browser process Probe starts during the test.
func trackLaunches(t *testing.T) func() []launched {
	t.Helper()
	var (
		mu   sync.Mutex
		seen []launched
	)
	orig := openSession
	openSession = func(ctx context.Context, cfg config.BrowserConfig) (*session, error) {
		s, err := orig(ctx, cfg)
		if err == nil && s.launcher != nil {
			mu.Lock()
			seen = append(seen, launched{pid: s.launcher.PID(), userDataDir: s.launcher.Get(flags.UserDataDir)})
			mu.Unlock()
		}
		return s, err
	}
	t.Cleanup(func() { openSession = orig })

	return func() []launched {
		mu.Lock()
		defer mu.Unlock()
		return append([]launched(nil), seen...)
	}
}

func processExited(pid int) bool {
	p, err := os.FindProcess(pid)
	if err != nil {
		return true
	}
	return p.Signal(syscall.Signal(0)) != nil
}

// assertReleased checks that exactly one browser was launched and that its
// process and profile directory are gone.
func assertReleased(t *testing.T, launches []launched) {
	t.Helper()
	require.Len(t, launches, 1)
	l := launches[0]
	require.NotZero(t, l.pid)
	require.NotEmpty(t, l.userDataDir)

	assert.Eventually(t, func() bool { return processExited(l.pid) },
		5*time.Second, 50*time.Millisecond, "browser pid %d still running", l.pid)
	assert.NoDirExists(t, l.userDataDir)
}

func containsLifeline(title string) bool {
	return strings.Contains(strings.ToLower(title), "lifeline")
}

func servePage(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestProbe_TitleSetByScript(t *testing.T) {
	cfg := testBrowserConfig(t)
	launches := trackLaunches(t)
	srv := servePage(t, `<html><head><title>Loading</title></head><body>
<script>setTimeout(() => { document.title = "Lifeline — Home"; }, 300);</script>
</body></html>`)

	res, err := Probe(context.Background(), cfg, &engine.FetchRequest{
		URL:               srv.URL,
		NavigationTimeout: 10 * time.Second,
		TitleTimeout:      5 * time.Second,
		Accept:            containsLifeline,
	})
	require.NoError(t, err)

	assert.Equal(t, "Lifeline — Home", res.Title)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assertReleased(t, launches())
}

func TestProbe_MismatchReturnsLastTitle(t *testing.T) {
	cfg := testBrowserConfig(t)
	launches := trackLaunches(t)
	srv := servePage(t, `<html><head><title>Untitled</title></head></html>`)

	res, err := Probe(context.Background(), cfg, &engine.FetchRequest{
		URL:               srv.URL,
		NavigationTimeout: 10 * time.Second,
		TitleTimeout:      300 * time.Millisecond,
		Accept:            containsLifeline,
	})
	require.NoError(t, err)
	assert.Equal(t, "Untitled", res.Title)
	assertReleased(t, launches())
}

func TestProbe_Unreachable(t *testing.T) {
	cfg := testBrowserConfig(t)
	launches := trackLaunches(t)
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := Probe(context.Background(), cfg, &engine.FetchRequest{
		URL:               url,
		NavigationTimeout: 10 * time.Second,
		TitleTimeout:      time.Second,
	})
	require.Error(t, err)

	var navErr *rod.NavigationError
	assert.True(t, errors.As(err, &navErr), "want navigation error, got %v", err)
	assert.Equal(t, models.ErrCodeUnreachable, models.CodeOf(err))
	assertReleased(t, launches())
}

func TestProbe_ReadySelectorTimeout(t *testing.T) {
	cfg := testBrowserConfig(t)
	launches := trackLaunches(t)
	srv := servePage(t, `<html><head><title>lifeline</title></head><body></body></html>`)

	_, err := Probe(context.Background(), cfg, &engine.FetchRequest{
		URL:               srv.URL,
		NavigationTimeout: 500 * time.Millisecond,
		TitleTimeout:      time.Second,
		ReadySelector:     "flutter-view",
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, models.ErrCodeLoadTimeout, models.CodeOf(err))
	assertReleased(t, launches())
}

func TestProbe_ReleasedWhenCheckDeadlinePasses(t *testing.T) {
	cfg := testBrowserConfig(t)
	launches := trackLaunches(t)
	srv := servePage(t, `<html><head><title>Untitled</title></head></html>`)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := Probe(ctx, cfg, &engine.FetchRequest{
		URL:               srv.URL,
		NavigationTimeout: 10 * time.Second,
		TitleTimeout:      time.Minute,
		Accept:            containsLifeline,
	})
	require.Error(t, err)
	assert.Equal(t, models.ErrCodeLoadTimeout, models.CodeOf(err))
	assertReleased(t, launches())
}

func TestCategorizeError(t *testing.T) {
	assert.Equal(t, models.ErrCodeLoadTimeout, categorizeError(context.DeadlineExceeded, "x").Code)
	assert.Equal(t, models.ErrCodeInternal, categorizeError(context.Canceled, "x").Code)

	ce := categorizeError(&rod.NavigationError{Reason: "net::ERR_CONNECTION_REFUSED"}, "navigation failed")
	assert.Equal(t, models.ErrCodeUnreachable, ce.Code)
	assert.Equal(t, "navigation failed: net::ERR_CONNECTION_REFUSED", ce.Message)
}

func TestBlockedSet(t *testing.T) {
	set := blockedSet([]string{"Image", "Script", "Font", "Bogus"})

	assert.Len(t, set, 2)
	assert.Contains(t, set, proto.NetworkResourceTypeImage)
	assert.Contains(t, set, proto.NetworkResourceTypeFont)
	assert.NotContains(t, set, proto.NetworkResourceTypeScript)
}
