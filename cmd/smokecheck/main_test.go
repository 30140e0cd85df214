package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/smokecheck/models"
	"github.com/use-agent/smokecheck/report"
)

func titleServer(t *testing.T, title string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintf(w, "<html><head><title>%s</title></head><body></body></html>", title)
	}))
	t.Cleanup(srv.Close)
	return srv
}

// execute runs the CLI and returns stdout and the exit status main would use.
func execute(t *testing.T, args ...string) (string, int) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd(&stdout, &stderr)
	cmd.SetArgs(args)

	err := cmd.Execute()
	if err == nil {
		return stdout.String(), report.ExitPass
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return stdout.String(), ee.code
	}
	t.Fatalf("unexpected error: %v (stderr: %s)", err, stderr.String())
	return "", -1
}

func TestCheckPass(t *testing.T) {
	srv := titleServer(t, "Lifeline")

	out, code := execute(t, "check", "--mode", "http", "--url", srv.URL, "--output", "json")
	assert.Equal(t, report.ExitPass, code)

	var r models.CheckReport
	require.NoError(t, json.Unmarshal([]byte(out), &r))
	assert.True(t, r.Passed)
	assert.Equal(t, "Lifeline", r.Title)
	assert.Equal(t, "/lifeline/i", r.Pattern)
}

func TestCheckMismatch(t *testing.T) {
	srv := titleServer(t, "Untitled")

	out, code := execute(t, "check", "--mode", "http", "--url", srv.URL)
	assert.Equal(t, report.ExitTitleMismatch, code)
	assert.Contains(t, out, "Untitled")
	assert.Contains(t, out, "/lifeline/i")
}

func TestCheckUnreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	_, code := execute(t, "check", "--mode", "http", "--url", "http://"+addr+"/")
	assert.Equal(t, report.ExitUnreachable, code)
}

func TestCheckInvalidPattern(t *testing.T) {
	srv := titleServer(t, "Lifeline")

	_, code := execute(t, "check", "--mode", "http", "--url", srv.URL, "--title", "/(/i")
	assert.Equal(t, report.ExitError, code)
}

func TestCheckConfigFile(t *testing.T) {
	srv := titleServer(t, "Home")
	path := filepath.Join(t.TempDir(), "smoke.yaml")
	body := fmt.Sprintf("check:\n  url: %s\n  title_pattern: /^home$/i\n  mode: http\n", srv.URL)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	_, code := execute(t, "check", "--config", path)
	assert.Equal(t, report.ExitPass, code)

	// Flags beat the file.
	_, code = execute(t, "check", "--config", path, "--title", "lifeline")
	assert.Equal(t, report.ExitTitleMismatch, code)
}

func TestVersion(t *testing.T) {
	out, code := execute(t, "version")
	assert.Equal(t, report.ExitPass, code)
	assert.Equal(t, "smokecheck dev\n", out)
}
