package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/smokecheck/models"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *apiClient {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return &apiClient{baseURL: srv.URL, apiKey: "k", http: srv.Client()}
}

func callTool(t *testing.T, h func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), args map[string]any) (*mcp.CallToolResult, string) {
	t.Helper()
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	res, err := h(context.Background(), req)
	require.NoError(t, err)
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return res, text.Text
}

func TestSmokeCheckPass(t *testing.T) {
	var got models.CheckRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/check", r.URL.Path)
		assert.Equal(t, "k", r.Header.Get("X-API-Key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(models.CheckReport{
			URL: got.URL, Title: "Lifeline", Pattern: "/lifeline/i",
			Passed: true, Outcome: models.OutcomePass,
		})
	})

	res, text := callTool(t, handleSmokeCheck(c), map[string]any{
		"url":     "http://localhost:63441",
		"mode":    "http",
		"timeout": float64(10),
	})

	assert.False(t, res.IsError)
	assert.Contains(t, text, "PASS")
	assert.Contains(t, text, `"Lifeline"`)
	assert.Equal(t, "http", got.Mode)
	assert.Equal(t, 10, got.Timeout)
}

func TestSmokeCheckFailureIsToolError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(models.CheckReport{
			URL: "http://localhost:63441", Title: "Untitled", Pattern: "/lifeline/i",
			Outcome: models.OutcomeTitleMismatch,
			Error:   &models.ErrorDetail{Code: models.ErrCodeTitleMismatch, Message: "no match"},
		})
	})

	res, text := callTool(t, handleSmokeCheck(c), nil)

	assert.True(t, res.IsError)
	assert.Contains(t, text, "FAIL (title_mismatch)")
	assert.Contains(t, text, `"Untitled"`)
	assert.Contains(t, text, models.ErrCodeTitleMismatch)
}

func TestSmokeCheckAPIError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(models.ErrorResponse{
			Error: &models.ErrorDetail{Code: models.ErrCodeUnauthorized, Message: "invalid API key"},
		})
	})

	res, text := callTool(t, handleSmokeCheck(c), nil)
	assert.True(t, res.IsError)
	assert.Equal(t, "[UNAUTHORIZED] invalid API key", text)
}

func TestServiceHealth(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/health", r.URL.Path)
		json.NewEncoder(w).Encode(models.HealthResponse{
			Status: "healthy", ActiveChecks: 1, MaxChecks: 2, Uptime: "1m0s", Version: "0.1.0",
		})
	})

	res, text := callTool(t, handleHealth(c), nil)
	assert.False(t, res.IsError)
	assert.Contains(t, text, "active checks: 1/2")
}
