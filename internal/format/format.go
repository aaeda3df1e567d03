// Package format renders execution results as text for remote callers.
package format

import (
	"fmt"
	"strings"

	"github.com/michaelbrown/pyrunner/internal/executor"
)

// Verbose renders a labeled report. Output sections are omitted when empty;
// on failure stderr is shown first.
func Verbose(res *executor.Result) string {
	lines := []string{
		"=== Execution Result ===",
		fmt.Sprintf("Execution time: %.3fs", res.Elapsed.Seconds()),
		fmt.Sprintf("Return code: %d", res.StatusCode),
	}

	if res.Success {
		lines = append(lines, "Status: ✓ Success")
		if res.Stdout != "" {
			lines = append(lines, "\nStandard Output:\n"+res.Stdout)
		}
		if res.Stderr != "" {
			lines = append(lines, "\nStandard Error:\n"+res.Stderr)
		}
	} else {
		lines = append(lines, "Status: ✗ Failed")
		if res.Stderr != "" {
			lines = append(lines, "\nError Message:\n"+res.Stderr)
		}
		if res.Stdout != "" {
			lines = append(lines, "\nOutput Message:\n"+res.Stdout)
		}
	}

	return strings.Join(lines, "\n")
}

// Bare returns stdout followed by stderr.
func Bare(res *executor.Result) string {
	return res.Stdout + res.Stderr
}
