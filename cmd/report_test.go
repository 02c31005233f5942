package cmd

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"stackctl/internal/lifecycle"
	"stackctl/internal/stack"
)

func TestPrintReport(t *testing.T) {
	report := &lifecycle.RunReport{
		RunID:       "run-1",
		Stack:       "mysite",
		Engine:      "docker",
		Configured:  []string{"db", "web"},
		Unsupported: []string{"search"},
		Unresolved: []*stack.UnresolvedError{
			{App: "web", Names: []string{"solr"}},
		},
		Errors: []error{errors.New("probe of db failed")},
	}

	var buf bytes.Buffer
	printReport(&buf, report)

	out := buf.String()
	assert.Contains(t, out, "Stack mysite (engine docker, run run-1)")
	assert.Contains(t, out, "Run configs written: db, web")
	assert.Contains(t, out, "Unsupported service: search")
	assert.Contains(t, out, "Unresolved relationships for web: solr")
	assert.Contains(t, out, "Warning: probe of db failed")
	assert.Contains(t, out, "Completed with 1 isolated failure(s).")
}

func TestPrintReport_CleanRun(t *testing.T) {
	report := &lifecycle.RunReport{
		RunID:  "run-2",
		Stack:  "mysite",
		Engine: "docker",
	}

	var buf bytes.Buffer
	printReport(&buf, report)

	assert.Equal(t, "Stack mysite (engine docker, run run-2)\n", buf.String())
}
