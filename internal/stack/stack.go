package stack

import (
	"fmt"
	"path/filepath"
	"strings"
)

// EndpointDescriptor is one endpoint of a relationship as it appears in
// run configs and open payloads. Static fields come from the stack
// file, probe output supplies service-internal facts (credentials,
// paths), and the bootstrap attaches live facts (ip, hostname) plus
// provenance (rel, service, type).
type EndpointDescriptor struct {
	Host     string `json:"host"`
	IP       string `json:"ip,omitempty"`
	Hostname string `json:"hostname,omitempty"`
	Port     int    `json:"port,omitempty"`
	Scheme   string `json:"scheme,omitempty"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
	Path     string `json:"path,omitempty"`
	Cluster  string `json:"cluster,omitempty"`
	Fragment string `json:"fragment,omitempty"`
	Rel      string `json:"rel,omitempty"`
	Service  string `json:"service,omitempty"`
	Type     string `json:"type,omitempty"`
}

// Merge returns the descriptor with non-zero fields of overlay applied
// on top of it. The bootstrap uses it to attach live container facts to
// endpoints a probe (or the stack file) produced.
func (d EndpointDescriptor) Merge(overlay EndpointDescriptor) EndpointDescriptor {
	out := d
	if overlay.Host != "" {
		out.Host = overlay.Host
	}
	if overlay.IP != "" {
		out.IP = overlay.IP
	}
	if overlay.Hostname != "" {
		out.Hostname = overlay.Hostname
	}
	if overlay.Port != 0 {
		out.Port = overlay.Port
	}
	if overlay.Scheme != "" {
		out.Scheme = overlay.Scheme
	}
	if overlay.Username != "" {
		out.Username = overlay.Username
	}
	if overlay.Password != "" {
		out.Password = overlay.Password
	}
	if overlay.Path != "" {
		out.Path = overlay.Path
	}
	if overlay.Cluster != "" {
		out.Cluster = overlay.Cluster
	}
	if overlay.Fragment != "" {
		out.Fragment = overlay.Fragment
	}
	if overlay.Rel != "" {
		out.Rel = overlay.Rel
	}
	if overlay.Service != "" {
		out.Service = overlay.Service
	}
	if overlay.Type != "" {
		out.Type = overlay.Type
	}
	return out
}

// Payload maps relationship names to their endpoints. It is the unit
// handed to application probes during the open phase and cached between
// runs.
type Payload map[string][]EndpointDescriptor

// Service is one backing service of the stack after normalization.
type Service struct {
	Name        string
	Type        string // full declared type, e.g. "mysql:10"
	Kind        string // type without version, e.g. "mysql"
	Version     string
	Supported   bool
	OpenCommand []string
	Declared    map[string]EndpointDescriptor // relationship name -> stamped template
	Settings    map[string]string
}

// Application is one application server of the stack after
// normalization.
type Application struct {
	Name          string
	Dir           string // directory of the declaring app file
	Path          string // the declaring app file
	Type          string
	Relationships []string // ordered, as declared
	Mounts        map[string]string
	OpenCommand   []string
}

// Stack is the normalized runtime model of one project.
type Stack struct {
	Name        string
	Domain      string
	Engine      string
	Root        string
	Services    []*Service // declaration order
	Apps        []*Application
	Routes      map[string]Route
	Settings    map[string]string
	Unsupported []string // names of services whose kind is not in the catalog
}

// Route maps a public URL pattern to an upstream application or a
// redirect.
type Route struct {
	Type     string
	Upstream string
	To       string
}

// Service returns the named service, or nil.
func (s *Stack) Service(name string) *Service {
	for _, svc := range s.Services {
		if svc.Name == name {
			return svc
		}
	}
	return nil
}

// App returns the named application, or nil.
func (s *Stack) App(name string) *Application {
	for _, app := range s.Apps {
		if app.Name == name {
			return app
		}
	}
	return nil
}

// Hostname synthesizes the stable DNS name of a service inside this
// stack's domain. Empty when the stack carries no domain.
func (s *Stack) Hostname(service string) string {
	if s.Domain == "" {
		return ""
	}
	return fmt.Sprintf("%s.%s.service._.%s", s.Name, service, s.Domain)
}

// ClosestApplication returns the application whose directory is the
// nearest ancestor of (or equal to) path. When no application contains
// the path, the first declared application is returned. Normalization
// guarantees at least one application exists, so the result is never
// nil.
func (s *Stack) ClosestApplication(path string) *Application {
	path = filepath.Clean(path)
	best := s.Apps[0]
	bestLen := -1
	for _, app := range s.Apps {
		if !containsPath(app.Dir, path) {
			continue
		}
		if len(app.Dir) > bestLen {
			best = app
			bestLen = len(app.Dir)
		}
	}
	return best
}

func containsPath(dir, path string) bool {
	dir = filepath.Clean(dir)
	if path == dir {
		return true
	}
	return strings.HasPrefix(path, dir+string(filepath.Separator))
}
