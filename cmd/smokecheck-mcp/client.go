package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/use-agent/smokecheck/models"
)

// apiClient talks to a running smokecheck API.
type apiClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// check posts req to /api/v1/check. Failed checks come back as reports with
// a non-2xx status; only requests that never produced a report are errors.
func (c *apiClient) check(ctx context.Context, req *models.CheckRequest) (*models.CheckReport, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/check", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("X-API-Key", c.apiKey)
	}

	respBody, status, err := c.do(httpReq)
	if err != nil {
		return nil, err
	}

	var report models.CheckReport
	if err := json.Unmarshal(respBody, &report); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if report.URL == "" && report.Error != nil {
		return nil, fmt.Errorf("[%s] %s", report.Error.Code, report.Error.Message)
	}
	if report.URL == "" {
		return nil, fmt.Errorf("unexpected response (HTTP %d): %s", status, respBody)
	}
	return &report, nil
}

func (c *apiClient) health(ctx context.Context) (*models.HealthResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/health", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	respBody, status, err := c.do(httpReq)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("health returned HTTP %d", status)
	}

	var h models.HealthResponse
	if err := json.Unmarshal(respBody, &h); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	return &h, nil
}

func (c *apiClient) do(req *http.Request) ([]byte, int, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}
	return body, resp.StatusCode, nil
}
