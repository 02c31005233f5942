package lifecycle

import (
	"fmt"
	"path/filepath"
	"sort"

	"stackctl/internal/bootstrap"
	"stackctl/internal/engine"
	"stackctl/internal/stack"
)

// Container filesystem layout shared with the images' helper scripts.
const (
	runConfigMountPath = "/run/stackctl"
	defaultAppMount    = "/app"
)

const (
	envStack   = "STACKCTL_STACK"
	envService = "STACKCTL_SERVICE"
)

// buildProvisionSpec derives the engine-neutral container set for a
// stack. Every container gets the run config directory mounted;
// services with durable state get a named volume; application code is
// bind-mounted from the directory of its app file.
func buildProvisionSpec(st *stack.Stack, runID, runDir string) (engine.ProvisionSpec, error) {
	spec := engine.ProvisionSpec{Stack: st.Name, RunID: runID}

	for _, svc := range st.Services {
		c := engine.ContainerSpec{
			Name:  svc.Name,
			Image: stack.ImageFor(svc),
			Env: []string{
				envStack + "=" + st.Name,
				envService + "=" + svc.Name,
			},
			Mounts: []engine.Mount{{Source: runDir, Target: runConfigMountPath}},
		}
		if dataDir := stack.DataDir(svc.Kind); dataDir != "" {
			c.Mounts = append(c.Mounts, engine.Mount{
				Source: st.Name + "_" + svc.Name + "_data",
				Target: dataDir,
			})
		}
		if hostname := st.Hostname(svc.Name); hostname != "" {
			c.Aliases = []string{hostname}
		}
		spec.Containers = append(spec.Containers, c)
	}

	for _, app := range st.Apps {
		if app.Type == "" {
			return engine.ProvisionSpec{}, fmt.Errorf("lifecycle: application %s declares no type to run", app.Name)
		}
		c := engine.ContainerSpec{
			Name:  app.Name,
			Image: app.Type,
			Env: []string{
				envStack + "=" + st.Name,
				bootstrap.EnvApplicationName + "=" + app.Name,
			},
			Mounts: []engine.Mount{{Source: runDir, Target: runConfigMountPath}},
		}
		c.Mounts = append(c.Mounts, appMounts(app)...)
		if hostname := st.Hostname(app.Name); hostname != "" {
			c.Aliases = []string{hostname}
		}
		spec.Containers = append(spec.Containers, c)
	}

	return spec, nil
}

// appMounts maps an application's declared mounts (host path relative
// to the app directory -> container path) to engine mounts, defaulting
// to the app directory on /app. Sorted for a stable container spec.
func appMounts(app *stack.Application) []engine.Mount {
	declared := app.Mounts
	if len(declared) == 0 {
		declared = map[string]string{".": defaultAppMount}
	}

	rels := make([]string, 0, len(declared))
	for rel := range declared {
		rels = append(rels, rel)
	}
	sort.Strings(rels)

	mounts := make([]engine.Mount, 0, len(rels))
	for _, rel := range rels {
		mounts = append(mounts, engine.Mount{
			Source: filepath.Join(app.Dir, rel),
			Target: declared[rel],
		})
	}
	return mounts
}
