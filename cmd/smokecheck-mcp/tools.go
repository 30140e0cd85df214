package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/use-agent/smokecheck/models"
)

func handleSmokeCheck(c *apiClient) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		req := &models.CheckRequest{
			URL:           request.GetString("url", ""),
			TitlePattern:  request.GetString("title_pattern", ""),
			Mode:          request.GetString("mode", ""),
			Timeout:       request.GetInt("timeout", 0),
			ReadySelector: request.GetString("ready_selector", ""),
		}

		report, err := c.check(ctx, req)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		text := formatReport(report)
		if !report.Passed {
			return mcp.NewToolResultError(text), nil
		}
		return mcp.NewToolResultText(text), nil
	}
}

func handleHealth(c *apiClient) server.ToolHandlerFunc {
	return func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		h, err := c.health(ctx)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf(
			"status: %s\nactive checks: %d/%d\nuptime: %s\nversion: %s",
			h.Status, h.ActiveChecks, h.MaxChecks, h.Uptime, h.Version,
		)), nil
	}
}

// formatReport renders a report as a short plain-text summary for the model.
func formatReport(r *models.CheckReport) string {
	var b strings.Builder
	if r.Passed {
		b.WriteString("PASS")
	} else {
		fmt.Fprintf(&b, "FAIL (%s)", r.Outcome)
	}
	fmt.Fprintf(&b, "\nurl: %s", r.URL)
	fmt.Fprintf(&b, "\ntitle: %q", r.Title)
	fmt.Fprintf(&b, "\nexpected: %s", r.Pattern)
	if r.EngineUsed != "" {
		fmt.Fprintf(&b, "\nengine: %s", r.EngineUsed)
	}
	fmt.Fprintf(&b, "\ntime: %dms", r.Timing.TotalMs)
	if r.Error != nil {
		fmt.Fprintf(&b, "\nerror: [%s] %s", r.Error.Code, r.Error.Message)
	}
	return b.String()
}
