package cmd

import (
	"fmt"
	"io"
	"strings"

	"stackctl/internal/lifecycle"
)

// printReport writes the run summary: what was configured, what the
// stack cannot support, and every isolated failure. This is the
// minimum observable signal for a degraded run, matching what the
// lifecycle logged along the way.
func printReport(w io.Writer, report *lifecycle.RunReport) {
	fmt.Fprintf(w, "Stack %s (engine %s, run %s)\n", report.Stack, report.Engine, report.RunID)
	if len(report.Configured) > 0 {
		fmt.Fprintf(w, "Run configs written: %s\n", strings.Join(report.Configured, ", "))
	}
	for _, name := range report.Unsupported {
		fmt.Fprintf(w, "Unsupported service: %s\n", name)
	}
	for _, unresolved := range report.Unresolved {
		fmt.Fprintf(w, "Unresolved relationships for %s: %s\n", unresolved.App, strings.Join(unresolved.Names, ", "))
	}
	for _, err := range report.Errors {
		fmt.Fprintf(w, "Warning: %v\n", err)
	}
	if report.Failed() {
		fmt.Fprintf(w, "Completed with %d isolated failure(s).\n", len(report.Errors))
	}
}
