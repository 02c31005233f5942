// Package runconfig derives the per-container configuration documents
// written into each container's filesystem at first start. Documents
// are deterministic: identical stack and resolution state always
// serializes to byte-identical output, which is what makes the
// write-once-on-first-start guard in the lifecycle safe.
package runconfig

import (
	"encoding/json"
	"fmt"

	"stackctl/internal/stack"
)

// Container roles as they appear in the role field.
const (
	RoleService     = "service"
	RoleApplication = "application"
)

// Doc is one container's run config.
type Doc struct {
	Name          string                 `json:"name"`
	Stack         string                 `json:"stack"`
	Role          string                 `json:"role"`
	Type          string                 `json:"type,omitempty"`
	Domain        string                 `json:"domain,omitempty"`
	Hostname      string                 `json:"hostname,omitempty"`
	Relationships stack.Payload          `json:"relationships,omitempty"`
	Routes        map[string]stack.Route `json:"routes,omitempty"`
	Settings      map[string]string      `json:"settings,omitempty"`
}

// Builder derives run configs from a normalized stack and its
// relationship resolution.
type Builder struct {
	stack *stack.Stack
	res   *stack.Resolution
}

func New(s *stack.Stack, res *stack.Resolution) *Builder {
	return &Builder{stack: s, res: res}
}

// All returns the serialized run config for every container in the
// stack, keyed by container name.
func (b *Builder) All() (map[string][]byte, error) {
	docs := make(map[string][]byte, len(b.stack.Services)+len(b.stack.Apps))
	for _, svc := range b.stack.Services {
		raw, err := b.Service(svc)
		if err != nil {
			return nil, err
		}
		docs[svc.Name] = raw
	}
	for _, app := range b.stack.Apps {
		raw, err := b.App(app)
		if err != nil {
			return nil, err
		}
		docs[app.Name] = raw
	}
	return docs, nil
}

// Service builds the run config of one backing service. Its
// relationships are the endpoint templates it declares.
func (b *Builder) Service(svc *stack.Service) ([]byte, error) {
	rels := make(stack.Payload, len(svc.Declared))
	for rel, tpl := range svc.Declared {
		rels[rel] = []stack.EndpointDescriptor{tpl}
	}
	return b.marshal(svc.Name, Doc{
		Name:          svc.Name,
		Stack:         b.stack.Name,
		Role:          RoleService,
		Type:          svc.Type,
		Domain:        b.stack.Domain,
		Hostname:      b.stack.Hostname(svc.Name),
		Relationships: rels,
		Settings:      svc.Settings,
	})
}

// App builds the run config of one application server. Its
// relationships come from the resolver's static bindings; live probe
// data never enters a run config, keeping the document stable across
// restarts.
func (b *Builder) App(app *stack.Application) ([]byte, error) {
	rels := stack.Payload{}
	if ar := b.res.ByApp[app.Name]; ar != nil {
		for _, binding := range ar.Bindings {
			switch {
			case binding.Service != "":
				rels[binding.Rel] = []stack.EndpointDescriptor{binding.Template}
			case len(binding.Cached) > 0:
				rels[binding.Rel] = append([]stack.EndpointDescriptor(nil), binding.Cached...)
			}
		}
	}
	return b.marshal(app.Name, Doc{
		Name:          app.Name,
		Stack:         b.stack.Name,
		Role:          RoleApplication,
		Type:          app.Type,
		Domain:        b.stack.Domain,
		Hostname:      b.stack.Hostname(app.Name),
		Relationships: rels,
		Routes:        b.stack.Routes,
		Settings:      b.stack.Settings,
	})
}

func (b *Builder) marshal(name string, doc Doc) ([]byte, error) {
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("runconfig: encode %s: %w", name, err)
	}
	return append(raw, '\n'), nil
}
