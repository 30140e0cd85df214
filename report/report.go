// Package report renders check reports for the command line.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/use-agent/smokecheck/models"
)

// Exit codes returned by the CLI.
const (
	ExitPass          = 0
	ExitTitleMismatch = 1
	ExitUnreachable   = 2
	ExitLoadTimeout   = 3
	ExitError         = 4
)

// ExitCode maps a report's outcome to a process exit status.
func ExitCode(r *models.CheckReport) int {
	if r == nil {
		return ExitError
	}
	switch r.Outcome {
	case models.OutcomePass:
		return ExitPass
	case models.OutcomeTitleMismatch:
		return ExitTitleMismatch
	case models.OutcomeUnreachable:
		return ExitUnreachable
	case models.OutcomeLoadTimeout:
		return ExitLoadTimeout
	default:
		return ExitError
	}
}

// Write renders r as "text" or "json".
func Write(w io.Writer, r *models.CheckReport, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case "text", "":
		return writeText(w, r)
	default:
		return fmt.Errorf("report: unknown format %q", format)
	}
}

func writeText(w io.Writer, r *models.CheckReport) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	status := "PASS"
	if !r.Passed {
		status = "FAIL"
	}
	fmt.Fprintf(tw, "Result\t%s (%s)\n", status, r.Outcome)
	fmt.Fprintf(tw, "URL\t%s\n", r.URL)
	if r.FinalURL != "" && r.FinalURL != r.URL {
		fmt.Fprintf(tw, "Final URL\t%s\n", r.FinalURL)
	}
	fmt.Fprintf(tw, "Title\t%q\n", r.Title)
	fmt.Fprintf(tw, "Expected\t%s\n", r.Pattern)
	if r.EngineUsed != "" {
		fmt.Fprintf(tw, "Engine\t%s\n", r.EngineUsed)
	}
	if r.StatusCode != 0 {
		fmt.Fprintf(tw, "HTTP status\t%d\n", r.StatusCode)
	}
	fmt.Fprintf(tw, "Time\t%dms (navigation %dms)\n", r.Timing.TotalMs, r.Timing.NavigationMs)
	if r.Error != nil {
		fmt.Fprintf(tw, "Error\t%s: %s\n", r.Error.Code, r.Error.Message)
	}
	return tw.Flush()
}
