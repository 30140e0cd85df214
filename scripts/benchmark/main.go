// Command benchmark measures smoke check latency per fetch mode against a
// running smokecheck API.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/use-agent/smokecheck/models"
)

// CLI flags
var (
	apiURL  = flag.String("api-url", "http://localhost:8090", "smokecheck API base URL")
	apiKey  = flag.String("api-key", "", "API key for authenticated requests")
	target  = flag.String("url", "", "page to check (default: the server's configured target)")
	pattern = flag.String("title", "", "title pattern (default: the server's configured pattern)")
	runs    = flag.Int("runs", 3, "number of runs per mode")
	output  = flag.String("output", "benchmark-results.json", "JSON output file path")
)

var modes = []string{models.ModeHTTP, models.ModeBrowser, models.ModeAuto}

type runResult struct {
	Run          int    `json:"run"`
	TotalMs      int64  `json:"total_ms"`
	NavigationMs int64  `json:"navigation_ms"`
	EngineUsed   string `json:"engine_used,omitempty"`
	Outcome      string `json:"outcome"`
	Passed       bool   `json:"passed"`
	Error        string `json:"error,omitempty"`
}

type modeSummary struct {
	AvgTotalMs float64 `json:"avg_total_ms"`
	MinTotalMs int64   `json:"min_total_ms"`
	MaxTotalMs int64   `json:"max_total_ms"`
	PassRate   float64 `json:"pass_rate"`
}

type modeResult struct {
	Mode    string       `json:"mode"`
	Runs    []runResult  `json:"runs"`
	Summary *modeSummary `json:"summary,omitempty"`
}

type benchmarkReport struct {
	Timestamp   string       `json:"timestamp"`
	APIURL      string       `json:"api_url"`
	URL         string       `json:"url,omitempty"`
	RunsPerMode int          `json:"runs_per_mode"`
	Results     []modeResult `json:"results"`
}

func main() {
	flag.Parse()

	fmt.Println("=== smokecheck benchmark ===")
	fmt.Printf("API URL:   %s\n", *apiURL)
	fmt.Printf("Runs/mode: %d\n", *runs)
	fmt.Printf("Output:    %s\n", *output)
	fmt.Println()

	client := &http.Client{Timeout: 150 * time.Second}
	if err := checkAPI(client, *apiURL); err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot reach API at %s: %v\n", *apiURL, err)
		fmt.Fprintf(os.Stderr, "Start it with: smokecheck serve\n")
		os.Exit(1)
	}

	report := benchmarkReport{
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
		APIURL:      *apiURL,
		URL:         *target,
		RunsPerMode: *runs,
	}

	for _, mode := range modes {
		fmt.Printf("Mode %s ...\n", mode)
		mr := modeResult{Mode: mode}

		for i := 1; i <= *runs; i++ {
			fmt.Printf("  Run %d/%d ... ", i, *runs)
			rr := runCheck(client, mode, i)
			if rr.Error != "" {
				fmt.Printf("%s: %s\n", rr.Outcome, rr.Error)
			} else {
				fmt.Printf("%s  %dms (%s)\n", rr.Outcome, rr.TotalMs, rr.EngineUsed)
			}
			mr.Runs = append(mr.Runs, rr)
		}

		mr.Summary = summarize(mr.Runs)
		report.Results = append(report.Results, mr)
		fmt.Println()
	}

	printTable(report.Results)

	if err := writeJSON(*output, report); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing JSON output: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("\nDetailed results written to %s\n", *output)
}

func checkAPI(client *http.Client, baseURL string) error {
	resp, err := client.Get(baseURL + "/api/v1/health")
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health returned HTTP %d", resp.StatusCode)
	}
	return nil
}

func runCheck(client *http.Client, mode string, run int) runResult {
	rr := runResult{Run: run, Outcome: string(models.OutcomeError)}

	body, err := json.Marshal(models.CheckRequest{URL: *target, TitlePattern: *pattern, Mode: mode})
	if err != nil {
		rr.Error = fmt.Sprintf("marshal error: %v", err)
		return rr
	}

	req, err := http.NewRequest(http.MethodPost, *apiURL+"/api/v1/check", bytes.NewReader(body))
	if err != nil {
		rr.Error = fmt.Sprintf("request error: %v", err)
		return rr
	}
	req.Header.Set("Content-Type", "application/json")
	if *apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+*apiKey)
	}

	resp, err := client.Do(req)
	if err != nil {
		rr.Error = fmt.Sprintf("request failed: %v", err)
		return rr
	}
	defer resp.Body.Close()

	var r models.CheckReport
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		rr.Error = fmt.Sprintf("decode error: %v", err)
		return rr
	}

	rr.Passed = r.Passed
	rr.Outcome = string(r.Outcome)
	rr.TotalMs = r.Timing.TotalMs
	rr.NavigationMs = r.Timing.NavigationMs
	rr.EngineUsed = r.EngineUsed
	if r.Error != nil {
		rr.Error = r.Error.Message
	}
	return rr
}

// summarize aggregates latency over runs that produced a report.
func summarize(runs []runResult) *modeSummary {
	var s modeSummary
	var n, passed int
	for _, r := range runs {
		if r.Outcome == string(models.OutcomeError) && r.TotalMs == 0 {
			continue
		}
		if n == 0 || r.TotalMs < s.MinTotalMs {
			s.MinTotalMs = r.TotalMs
		}
		if r.TotalMs > s.MaxTotalMs {
			s.MaxTotalMs = r.TotalMs
		}
		s.AvgTotalMs += float64(r.TotalMs)
		if r.Passed {
			passed++
		}
		n++
	}
	if n == 0 {
		return nil
	}
	s.AvgTotalMs /= float64(n)
	s.PassRate = float64(passed) / float64(len(runs)) * 100
	return &s
}

func printTable(results []modeResult) {
	fmt.Println(strings.Repeat("─", 60))
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Mode\tAvg\tMin\tMax\tPass rate\n")
	fmt.Fprintf(w, "────\t───\t───\t───\t─────────\n")

	for _, r := range results {
		if r.Summary == nil {
			fmt.Fprintf(w, "%s\tFAILED\t-\t-\t-\n", r.Mode)
			continue
		}
		fmt.Fprintf(w, "%s\t%dms\t%dms\t%dms\t%.0f%%\n",
			r.Mode,
			int64(r.Summary.AvgTotalMs),
			r.Summary.MinTotalMs,
			r.Summary.MaxTotalMs,
			r.Summary.PassRate,
		)
	}

	w.Flush()
	fmt.Println(strings.Repeat("─", 60))
}

func writeJSON(path string, report benchmarkReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
