// Command smokecheck loads a web page and asserts its document title.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/use-agent/smokecheck/report"
)

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		var ee *exitError
		if errors.As(err, &ee) {
			os.Exit(ee.code)
		}
		fmt.Fprintln(os.Stderr, "smokecheck:", err)
		os.Exit(report.ExitError)
	}
}

// exitError carries a process exit status out of a command. The report has
// already been written, so main prints nothing more.
type exitError struct {
	code int
}

func (e *exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }
