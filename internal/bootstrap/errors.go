package bootstrap

import "fmt"

// ParseError reports phase-1 probe output that was not valid endpoint
// JSON. Raw keeps the output for diagnosis; the service contributes
// nothing to the run.
type ParseError struct {
	Service string
	Raw     []byte
	Err     error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("bootstrap: parse open output from service %s: %v (output: %q)",
		e.Service, e.Err, excerpt(e.Raw))
}

func (e *ParseError) Unwrap() error { return e.Err }

// ExecError reports a failed phase-2 probe on one application server.
type ExecError struct {
	App string
	Err error
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("bootstrap: open application %s: %v", e.App, e.Err)
}

func (e *ExecError) Unwrap() error { return e.Err }

func excerpt(raw []byte) string {
	const max = 200
	if len(raw) <= max {
		return string(raw)
	}
	return string(raw[:max]) + "..."
}
