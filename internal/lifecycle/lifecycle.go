// Package lifecycle sequences the phases that take a stack from its
// declarative definition to opened application containers: normalize,
// resolve relationships, write first-start run configs, provision, then
// the two open phases. Phases always run in that order; a failure in
// the configuration phases is fatal while probe failures are collected
// and reported.
package lifecycle

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/uuid"

	"stackctl/internal/bootstrap"
	"stackctl/internal/cache"
	"stackctl/internal/config"
	"stackctl/internal/engine"
	"stackctl/internal/engine/docker"
	"stackctl/internal/engine/kubernetes"
	"stackctl/internal/runconfig"
	"stackctl/internal/stack"
	"stackctl/pkg/logging"
)

// EngineFactory builds the container engine a stack file names.
type EngineFactory func(name string) (engine.Engine, error)

// DefaultEngineFactory wires the real backends.
func DefaultEngineFactory(name string) (engine.Engine, error) {
	switch name {
	case "docker", "":
		return docker.New()
	case "kubernetes":
		return kubernetes.New("")
	default:
		return nil, fmt.Errorf("lifecycle: unknown engine %q", name)
	}
}

// Sequencer drives the ordered phases of a run.
type Sequencer struct {
	global  config.GlobalConfig
	store   cache.Store
	engines EngineFactory
}

func New(global config.GlobalConfig, store cache.Store, engines EngineFactory) *Sequencer {
	if engines == nil {
		engines = DefaultEngineFactory
	}
	return &Sequencer{global: global, store: store, engines: engines}
}

// RunReport summarizes one lifecycle run.
type RunReport struct {
	RunID       string
	Stack       string
	Engine      string
	Configured  []string // containers whose run config was written this run
	Unsupported []string
	Unresolved  []*stack.UnresolvedError
	Errors      []error // isolated probe failures
}

func (r *RunReport) Failed() bool { return len(r.Errors) > 0 }

// Up runs the full sequence for a project. Configuration problems abort
// the run; probe failures are isolated and land on the report.
func (s *Sequencer) Up(ctx context.Context, project config.Project) (*RunReport, error) {
	st, err := stack.New(project, s.global)
	if err != nil {
		return nil, err
	}
	eng, err := s.engines(st.Engine)
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	report := &RunReport{RunID: runID, Stack: st.Name, Engine: st.Engine, Unsupported: st.Unsupported}
	logging.Info("Lifecycle", "starting stack %s (run %s)", st.Name, runID)

	orch := bootstrap.New(eng, s.store, st)
	res := stack.Resolve(st, orch.CachedPayloads(ctx))
	report.Unresolved = res.Unresolved()

	runDir, err := s.writeRunConfigs(ctx, st, res, report)
	if err != nil {
		return nil, err
	}

	if err := s.provision(ctx, eng, st, runID, runDir); err != nil {
		return nil, err
	}
	s.markConfigured(ctx, st, runID, report.Configured)

	result := orch.Open(ctx, res)
	report.Errors = result.Errors()

	if report.Failed() {
		logging.Warn("Lifecycle", "stack %s started with %d isolated failures", st.Name, len(report.Errors))
	} else {
		logging.Info("Lifecycle", "stack %s is up", st.Name)
	}
	return report, nil
}

// Open re-runs the open protocol without touching run configs or
// provisioning. Used to repair relationship state on a running stack.
func (s *Sequencer) Open(ctx context.Context, project config.Project) (*RunReport, error) {
	st, err := stack.New(project, s.global)
	if err != nil {
		return nil, err
	}
	eng, err := s.engines(st.Engine)
	if err != nil {
		return nil, err
	}

	orch := bootstrap.New(eng, s.store, st)
	res := stack.Resolve(st, orch.CachedPayloads(ctx))
	report := &RunReport{
		RunID:       uuid.NewString(),
		Stack:       st.Name,
		Engine:      st.Engine,
		Unsupported: st.Unsupported,
		Unresolved:  res.Unresolved(),
	}

	result := orch.Open(ctx, res)
	report.Errors = result.Errors()
	return report, nil
}

// Destroy tears down the stack's runtime and clears its per-container
// state so the next start counts as a first start again. Persisted
// credentials are kept.
func (s *Sequencer) Destroy(ctx context.Context, project config.Project) error {
	st, err := stack.New(project, s.global)
	if err != nil {
		return err
	}
	eng, err := s.engines(st.Engine)
	if err != nil {
		return err
	}

	if p, ok := eng.(engine.Provisioner); ok {
		if err := p.Destroy(ctx, st.Name); err != nil {
			return err
		}
	} else {
		logging.Warn("Lifecycle", "engine %s does not provision; leaving workloads in place", eng.Name())
	}

	for _, name := range containerNames(st) {
		if err := s.store.Delete(ctx, cache.Configured(st.Name, name)); err != nil {
			logging.Warn("Lifecycle", "clear configured marker for %s: %v", name, err)
		}
	}
	for _, app := range st.Apps {
		if err := s.store.Delete(ctx, cache.Open(st.Name, app.Name)); err != nil {
			logging.Warn("Lifecycle", "clear open cache for %s: %v", app.Name, err)
		}
	}
	logging.Info("Lifecycle", "destroyed stack %s", st.Name)
	return nil
}

// Rebuild is a destroy followed by a fresh up, so run configs are
// regenerated and every container starts from scratch.
func (s *Sequencer) Rebuild(ctx context.Context, project config.Project) (*RunReport, error) {
	if err := s.Destroy(ctx, project); err != nil {
		return nil, err
	}
	return s.Up(ctx, project)
}

// Render produces every container's run config document without
// touching the engine or the filesystem. Rendering consults only the
// stack definition and cached open payloads, so no engine is built.
func (s *Sequencer) Render(ctx context.Context, project config.Project) (map[string][]byte, error) {
	st, err := stack.New(project, s.global)
	if err != nil {
		return nil, err
	}
	orch := bootstrap.New(nil, s.store, st)
	res := stack.Resolve(st, orch.CachedPayloads(ctx))
	return runconfig.New(st, res).All()
}

// writeRunConfigs writes each container's run config under the stack
// work dir, once per container lifetime. The persisted configured
// marker records that a container already consumed its config on a
// first start; marked containers are never rewritten.
func (s *Sequencer) writeRunConfigs(ctx context.Context, st *stack.Stack, res *stack.Resolution, report *RunReport) (string, error) {
	workDir, err := config.WorkDir(st.Root)
	if err != nil {
		return "", err
	}
	runDir := filepath.Join(workDir, "run")
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", fmt.Errorf("lifecycle: create run dir: %w", err)
	}

	docs, err := runconfig.New(st, res).All()
	if err != nil {
		return "", err
	}
	for name, raw := range docs {
		_, configured, err := s.store.Get(ctx, cache.Configured(st.Name, name))
		if err != nil {
			return "", fmt.Errorf("lifecycle: read configured marker for %s: %w", name, err)
		}
		if configured {
			logging.Debug("Lifecycle", "container %s already configured, keeping its run config", name)
			continue
		}
		if err := os.WriteFile(filepath.Join(runDir, name+".json"), raw, 0o644); err != nil {
			return "", fmt.Errorf("lifecycle: write run config for %s: %w", name, err)
		}
		report.Configured = append(report.Configured, name)
	}
	sort.Strings(report.Configured)
	return runDir, nil
}

// provision creates or starts the stack containers. Engines without
// provisioning support only get their workloads checked.
func (s *Sequencer) provision(ctx context.Context, eng engine.Engine, st *stack.Stack, runID, runDir string) error {
	if p, ok := eng.(engine.Provisioner); ok {
		spec, err := buildProvisionSpec(st, runID, runDir)
		if err != nil {
			return err
		}
		return p.Provision(ctx, spec)
	}

	logging.Debug("Lifecycle", "engine %s does not provision, verifying workloads", eng.Name())
	for _, svc := range st.Services {
		if !svc.Supported {
			continue
		}
		facts, err := eng.Inspect(ctx, engine.Target{Stack: st.Name, Name: svc.Name})
		if err != nil {
			logging.Warn("Lifecycle", "service %s not found on engine %s: %v", svc.Name, eng.Name(), err)
			continue
		}
		if !facts.Running {
			logging.Warn("Lifecycle", "service %s is not running", svc.Name)
		}
	}
	return nil
}

func (s *Sequencer) markConfigured(ctx context.Context, st *stack.Stack, runID string, names []string) {
	for _, name := range names {
		if err := s.store.Set(ctx, cache.Configured(st.Name, name), []byte(runID), cache.SetOptions{Persist: true}); err != nil {
			logging.Warn("Lifecycle", "record configured marker for %s: %v", name, err)
		}
	}
}

func containerNames(st *stack.Stack) []string {
	names := make([]string, 0, len(st.Services)+len(st.Apps))
	for _, svc := range st.Services {
		names = append(names, svc.Name)
	}
	for _, app := range st.Apps {
		names = append(names, app.Name)
	}
	return names
}
