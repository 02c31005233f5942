// Package engine abstracts the container engine behind the narrow
// surface the bootstrap needs: inspecting a container's network
// placement and executing probe commands inside it. Provisioning is an
// optional capability discovered by type assertion, since not every
// backend schedules containers itself.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Default retry budget for probes that must eventually succeed while a
// service finishes coming up.
const (
	DefaultExecAttempts   = 25
	DefaultExecRetryDelay = time.Second
)

// ErrNotFound is returned by Inspect and Exec when the target container
// does not exist on the engine.
var ErrNotFound = errors.New("engine: container not found")

// ExitError reports a probe command that ran but exited nonzero.
type ExitError struct {
	Code   int
	Stderr string
}

func (e *ExitError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("command exited with status %d", e.Code)
	}
	return fmt.Sprintf("command exited with status %d: %s", e.Code, strings.TrimSpace(e.Stderr))
}

// Target names one container of a stack in engine-neutral terms.
// Backends map it onto their own naming or label scheme.
type Target struct {
	Stack string
	Name  string // service or application name
}

// Network is a container's attachment to one engine network.
type Network struct {
	IPAddress string
	Aliases   []string
}

// ContainerFacts is the inspection result for one container.
type ContainerFacts struct {
	ID       string
	Running  bool
	Networks map[string]Network
}

// IP returns the container's address on the named network, falling
// back to any attached network when the named one is absent.
func (f ContainerFacts) IP(network string) string {
	if n, ok := f.Networks[network]; ok && n.IPAddress != "" {
		return n.IPAddress
	}
	for _, n := range f.Networks {
		if n.IPAddress != "" {
			return n.IPAddress
		}
	}
	return ""
}

// ExecOptions controls one probe execution.
type ExecOptions struct {
	User       string
	Env        []string // KEY=VALUE pairs added to the probe environment
	Attempts   int      // total attempts; values below 1 mean exactly one
	RetryDelay time.Duration
	Silent     bool // suppress per-attempt warnings
}

// Engine is the container engine collaborator.
type Engine interface {
	Name() string
	Inspect(ctx context.Context, target Target) (ContainerFacts, error)
	// Exec runs cmd inside the target container and returns its
	// combined stdout. A nonzero exit status is an error carrying the
	// captured output where available.
	Exec(ctx context.Context, target Target, cmd []string, opts ExecOptions) ([]byte, error)
}

// Mount attaches a named volume or host path into a container.
type Mount struct {
	Source string
	Target string
}

// ContainerSpec describes one container to provision.
type ContainerSpec struct {
	Name    string // logical service or app name within the stack
	Image   string
	Env     []string
	Mounts  []Mount
	Labels  map[string]string
	Aliases []string
}

// ProvisionSpec describes the full set of containers for one stack run.
type ProvisionSpec struct {
	Stack      string
	RunID      string
	Containers []ContainerSpec
}

// Provisioner is the optional capability of engines that create and
// start containers themselves. Discover it with a type assertion on
// the Engine.
type Provisioner interface {
	Provision(ctx context.Context, spec ProvisionSpec) error
	Destroy(ctx context.Context, stackName string) error
}

// Retry runs fn up to attempts times, sleeping delay between failures.
// The last error is returned; ctx cancellation stops the loop early.
func Retry(ctx context.Context, attempts int, delay time.Duration, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}
	var lastErr error
	for i := 0; i < attempts; i++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return lastErr
			}
			return err
		}
		if lastErr = fn(); lastErr == nil {
			return nil
		}
		if i < attempts-1 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return lastErr
			}
		}
	}
	return lastErr
}
