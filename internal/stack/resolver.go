package stack

import (
	"stackctl/pkg/logging"
)

// Binding connects one relationship name of an application to its
// provider. Either Service+Template are set (a service declares the
// name) or Cached carries endpoints reused from a previous run.
type Binding struct {
	Rel      string
	Service  string
	Template EndpointDescriptor
	Cached   []EndpointDescriptor
}

// AppResolution is the resolver output for one application: bindings in
// the order the app declared them, plus the names nothing provides.
type AppResolution struct {
	App        *Application
	Bindings   []Binding
	Unresolved []string
}

// Err returns the unresolved relationships as an error, or nil when
// everything resolved.
func (r *AppResolution) Err() error {
	if len(r.Unresolved) == 0 {
		return nil
	}
	return &UnresolvedError{App: r.App.Name, Names: append([]string(nil), r.Unresolved...)}
}

// Resolution holds the resolver output for every application.
type Resolution struct {
	ByApp map[string]*AppResolution
}

// Unresolved collects every application's unresolved relationships.
// Used by the run report.
func (r *Resolution) Unresolved() []*UnresolvedError {
	var errs []*UnresolvedError
	for _, app := range r.ByApp {
		if err := app.Err(); err != nil {
			errs = append(errs, err.(*UnresolvedError))
		}
	}
	return errs
}

// Resolve maps every application's relationship names to providing
// services. Services are scanned in declaration order and the first one
// declaring a name wins; later declarations of the same name never
// shadow it. cached optionally carries each application's open payload
// from a previous run: it fills names no service currently provides but
// never overrides a live declaration. Unresolved names are recorded and
// logged, not dropped.
func Resolve(s *Stack, cached map[string]Payload) *Resolution {
	res := &Resolution{ByApp: make(map[string]*AppResolution, len(s.Apps))}

	for _, app := range s.Apps {
		ar := &AppResolution{App: app}
		seen := map[string]bool{}

		for _, rel := range app.Relationships {
			if seen[rel] {
				logging.Debug("Resolver", "app %s declares relationship %q twice, keeping first", app.Name, rel)
				continue
			}
			seen[rel] = true

			if svc := providerOf(s, rel); svc != nil {
				ar.Bindings = append(ar.Bindings, Binding{
					Rel:      rel,
					Service:  svc.Name,
					Template: svc.Declared[rel],
				})
				continue
			}

			if entries, ok := cached[app.Name][rel]; ok && len(entries) > 0 {
				logging.Debug("Resolver", "app %s: relationship %q filled from cached payload", app.Name, rel)
				ar.Bindings = append(ar.Bindings, Binding{
					Rel:    rel,
					Cached: append([]EndpointDescriptor(nil), entries...),
				})
				continue
			}

			logging.Warn("Resolver", "app %s: no service provides relationship %q", app.Name, rel)
			ar.Unresolved = append(ar.Unresolved, rel)
		}

		res.ByApp[app.Name] = ar
	}

	return res
}

// providerOf returns the first service in declaration order that
// declares the relationship name, or nil.
func providerOf(s *Stack, rel string) *Service {
	for _, svc := range s.Services {
		if _, ok := svc.Declared[rel]; ok {
			return svc
		}
	}
	return nil
}
