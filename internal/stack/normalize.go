package stack

import (
	"fmt"
	"path/filepath"
	"strings"

	"stackctl/internal/config"
)

// DefaultOpenCommand is the probe executed inside containers during the
// open phase when the definition does not override it. Service and
// application images ship this helper.
var DefaultOpenCommand = []string{"/helpers/stackctl-open"}

// New normalizes a discovered project into the runtime model. All
// validation that should abort a run happens here: a failure is a
// configuration error, not a degraded state.
func New(project config.Project, global config.GlobalConfig) (*Stack, error) {
	name := strings.TrimSpace(project.Stack.Name)
	if name == "" {
		return nil, fmt.Errorf("stack: stack file %s has no name", project.StackPath)
	}

	s := &Stack{
		Name:     name,
		Domain:   firstNonEmpty(project.Stack.Domain, global.Domain, config.DefaultDomain),
		Engine:   firstNonEmpty(project.Stack.Engine, global.Engine, config.DefaultEngine),
		Root:     project.Root,
		Settings: copyStringMap(project.Stack.Settings),
	}

	seenServices := map[string]bool{}
	for _, def := range project.Stack.Services {
		if def.Name == "" {
			return nil, fmt.Errorf("stack: service with no name in %s", project.StackPath)
		}
		if seenServices[def.Name] {
			return nil, fmt.Errorf("stack: duplicate service %q", def.Name)
		}
		seenServices[def.Name] = true
		if def.Type == "" {
			return nil, fmt.Errorf("stack: service %q has no type", def.Name)
		}

		svc, err := newService(def)
		if err != nil {
			return nil, err
		}
		s.Services = append(s.Services, svc)
		if !svc.Supported {
			s.Unsupported = append(s.Unsupported, svc.Name)
		}
	}

	seenApps := map[string]bool{}
	for _, entry := range project.Apps {
		appName := strings.TrimSpace(entry.App.Name)
		if appName == "" {
			appName = filepath.Base(entry.Dir)
		}
		if seenApps[appName] {
			return nil, fmt.Errorf("stack: duplicate application %q (declared in %s)", appName, entry.Path)
		}
		seenApps[appName] = true
		if seenServices[appName] {
			return nil, fmt.Errorf("stack: application %q collides with a service name", appName)
		}

		s.Apps = append(s.Apps, &Application{
			Name:          appName,
			Dir:           entry.Dir,
			Path:          entry.Path,
			Type:          entry.App.Type,
			Relationships: append([]string(nil), entry.App.Relationships...),
			Mounts:        copyStringMap(entry.App.Mounts),
			OpenCommand:   openCommand(entry.App.OpenCommand),
		})
	}
	if len(s.Apps) == 0 {
		return nil, ErrNoApplications
	}

	if len(project.Stack.Routes) > 0 {
		s.Routes = make(map[string]Route, len(project.Stack.Routes))
		for pattern, def := range project.Stack.Routes {
			route := Route{
				Type:     firstNonEmpty(def.Type, "upstream"),
				Upstream: def.Upstream,
				To:       def.To,
			}
			s.Routes[pattern] = route
		}
	}

	return s, nil
}

func newService(def config.ServiceDefinition) (*Service, error) {
	kind, version, _ := strings.Cut(def.Type, ":")
	if kind == "" {
		return nil, fmt.Errorf("stack: service %q has malformed type %q", def.Name, def.Type)
	}

	svc := &Service{
		Name:        def.Name,
		Type:        def.Type,
		Kind:        kind,
		Version:     version,
		Supported:   Supported(kind),
		OpenCommand: openCommand(def.OpenCommand),
		Settings:    copyStringMap(def.Settings),
	}

	info := catalog[kind]
	svc.Declared = make(map[string]EndpointDescriptor, len(def.Relationships))
	for rel, ep := range def.Relationships {
		d := EndpointDescriptor{
			Host:     firstNonEmpty(ep.Host, def.Name),
			Port:     ep.Port,
			Scheme:   firstNonEmpty(ep.Scheme, info.Scheme),
			Username: ep.Username,
			Password: ep.Password,
			Path:     ep.Path,
			Cluster:  ep.Cluster,
			Fragment: ep.Fragment,
			Rel:      rel,
			Service:  def.Name,
			Type:     def.Type,
		}
		if d.Port == 0 {
			d.Port = info.Port
		}
		svc.Declared[rel] = d
	}

	return svc, nil
}

func openCommand(override []string) []string {
	if len(override) > 0 {
		return append([]string(nil), override...)
	}
	return append([]string(nil), DefaultOpenCommand...)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func copyStringMap(m map[string]string) map[string]string {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
