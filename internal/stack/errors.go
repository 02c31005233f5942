package stack

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoApplications is returned by New when the project declares no
// application servers. A stack without applications has nothing to
// bootstrap, so this is fatal rather than a degraded run.
var ErrNoApplications = errors.New("stack: no applications defined")

// UnresolvedError reports relationship names an application declared
// that no service provides. It is recorded and surfaced in the run
// report, never fatal.
type UnresolvedError struct {
	App   string
	Names []string
}

func (e *UnresolvedError) Error() string {
	return fmt.Sprintf("stack: app %q has unresolved relationships: %s", e.App, strings.Join(e.Names, ", "))
}
