// Command smokecheck-mcp exposes the smokecheck API as MCP tools over stdio.
package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

func main() {
	apiURL := os.Getenv("SMOKECHECK_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8090"
	}
	apiKey := os.Getenv("SMOKECHECK_API_KEY")

	c := &apiClient{
		baseURL: apiURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 130 * time.Second},
	}

	if err := server.ServeStdio(newServer(c)); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func newServer(c *apiClient) *server.MCPServer {
	s := server.NewMCPServer(
		"smokecheck",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	smokeCheckTool := mcp.NewTool("smoke_check",
		mcp.WithDescription("Load a web page and check that its document title matches a pattern. Reports pass, title mismatch, unreachable target or load timeout."),
		mcp.WithString("url",
			mcp.Description("Page to load (default: the server's configured target, http://localhost:63441)"),
		),
		mcp.WithString("title_pattern",
			mcp.Description("Expected title as a regex literal like '/lifeline/i', or a bare source matched case-insensitively"),
		),
		mcp.WithString("mode",
			mcp.Description("Fetch engine: 'browser' (default, headless Chromium), 'http' (static HTML only) or 'auto' (race both)"),
			mcp.Enum("browser", "http", "auto"),
		),
		mcp.WithNumber("timeout",
			mcp.Description("Overall check timeout in seconds (1-120)"),
		),
		mcp.WithString("ready_selector",
			mcp.Description("CSS selector that must be present before the title is read"),
		),
	)
	s.AddTool(smokeCheckTool, handleSmokeCheck(c))

	healthTool := mcp.NewTool("service_health",
		mcp.WithDescription("Report whether the smokecheck service is up and how many checks are running."),
	)
	s.AddTool(healthTool, handleHealth(c))

	return s
}
