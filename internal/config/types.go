package config

import (
	"time"
)

// GlobalConfig is the tool-level configuration for stackctl. It carries
// defaults that apply to every stack on this machine and is layered
// underneath the per-stack file.
type GlobalConfig struct {
	Engine   string        `yaml:"engine,omitempty"`   // default container engine: "docker" or "kubernetes"
	Domain   string        `yaml:"domain,omitempty"`   // default proxy domain for synthesized hostnames
	CacheDir string        `yaml:"cacheDir,omitempty"` // override for the shared cache location
	LogLevel string        `yaml:"logLevel,omitempty"` // "debug", "info", "warn", "error"
	Account  AccountConfig `yaml:"account,omitempty"`
}

// AccountConfig points at the remote account API used to validate
// access tokens before they are recorded.
type AccountConfig struct {
	URL     string        `yaml:"url,omitempty"`
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// StackFile is the top-level stack definition, read from stackctl.yaml
// (or .stackctl.yaml) at the stack root.
type StackFile struct {
	Name     string              `yaml:"name"`
	Engine   string              `yaml:"engine,omitempty"` // overrides GlobalConfig.Engine for this stack
	Domain   string              `yaml:"domain,omitempty"` // overrides GlobalConfig.Domain for this stack
	Services []ServiceDefinition `yaml:"services,omitempty"`
	Routes   map[string]RouteDef `yaml:"routes,omitempty"`
	Settings map[string]string   `yaml:"settings,omitempty"` // opaque, copied into run configs
}

// ServiceDefinition defines one backing service of the stack. Order in
// the services list is declaration order and is significant: when two
// services expose the same relationship name, the earlier one wins.
type ServiceDefinition struct {
	Name          string                 `yaml:"name"`
	Type          string                 `yaml:"type"`                    // e.g. "mysql:10", "redis:7"
	OpenCommand   []string               `yaml:"openCommand,omitempty"`   // probe command override
	Relationships map[string]EndpointDef `yaml:"relationships,omitempty"` // relationship name -> endpoint template
	Settings      map[string]string      `yaml:"settings,omitempty"`
}

// EndpointDef is the static part of a relationship endpoint as declared
// in the stack file. Live facts (ip, hostname, provenance) are attached
// later during resolution and bootstrap.
type EndpointDef struct {
	Host     string `yaml:"host,omitempty"`
	Port     int    `yaml:"port,omitempty"`
	Scheme   string `yaml:"scheme,omitempty"`
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
	Path     string `yaml:"path,omitempty"`
	Cluster  string `yaml:"cluster,omitempty"`
	Fragment string `yaml:"fragment,omitempty"`
}

// RouteDef maps a public URL pattern to an application upstream or a
// redirect target.
type RouteDef struct {
	Type     string `yaml:"type,omitempty"` // "upstream" (default) or "redirect"
	Upstream string `yaml:"upstream,omitempty"`
	To       string `yaml:"to,omitempty"`
}

// AppFile is a per-application definition, read from .stackctl.app.yaml
// in the application's source directory.
type AppFile struct {
	Name          string            `yaml:"name"`
	Type          string            `yaml:"type,omitempty"`          // runtime image, e.g. "php:8.3"
	Relationships []string          `yaml:"relationships,omitempty"` // ordered relationship names this app consumes
	Mounts        map[string]string `yaml:"mounts,omitempty"`
	OpenCommand   []string          `yaml:"openCommand,omitempty"`
}

// Project is the raw result of configuration discovery: the stack file
// plus every application file found beneath the stack root, in lexical
// walk order. Normalization into the runtime model happens in the stack
// package.
type Project struct {
	Root      string // directory containing the stack file
	StackPath string
	Stack     StackFile
	Apps      []AppEntry
}

// AppEntry pairs a parsed application file with its location.
type AppEntry struct {
	Path string // full path of the app file
	Dir  string // directory containing it
	App  AppFile
}
