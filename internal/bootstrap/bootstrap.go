package bootstrap

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"stackctl/internal/cache"
	"stackctl/internal/engine"
	"stackctl/internal/stack"
	"stackctl/pkg/logging"
)

// Environment variables handed to application open probes.
const (
	// EnvRelationships carries the base64-encoded JSON relationship
	// payload.
	EnvRelationships = "STACKCTL_RELATIONSHIPS"
	// EnvApplicationName names the application being opened.
	EnvApplicationName = "STACKCTL_APPLICATION_NAME"
)

// Phase identifies a step of the protocol in emitted events.
type Phase string

const (
	PhaseFacts    Phase = "facts"
	PhaseServices Phase = "open-services"
	PhaseApps     Phase = "open-apps"
)

// Event reports the completion of one entity within a phase.
type Event struct {
	Phase  Phase
	Entity string
	Err    error
}

// ServiceResult is the phase-1 outcome for one backing service. Payload
// holds the augmented probe output; it is empty when the probe failed
// or printed nothing, with Err recording why.
type ServiceResult struct {
	Service string
	Payload stack.Payload
	Err     error
}

// AppResult is the phase-2 outcome for one application server. Payload
// is always the payload that was computed and persisted, even when the
// probe itself failed.
type AppResult struct {
	App     string
	Payload stack.Payload
	Output  []byte
	Err     error
}

// Result collects everything one full protocol run produced.
type Result struct {
	Facts    map[string]engine.ContainerFacts
	Services map[string]ServiceResult
	Apps     []AppResult
}

// Errors returns every isolated failure of the run, services first in
// name order, then applications in declaration order.
func (r *Result) Errors() []error {
	names := make([]string, 0, len(r.Services))
	for name := range r.Services {
		names = append(names, name)
	}
	sort.Strings(names)

	var errs []error
	for _, name := range names {
		if err := r.Services[name].Err; err != nil {
			errs = append(errs, err)
		}
	}
	for _, app := range r.Apps {
		if app.Err != nil {
			errs = append(errs, app.Err)
		}
	}
	return errs
}

// Orchestrator runs the OPEN protocol for one stack against one engine.
type Orchestrator struct {
	eng   engine.Engine
	store cache.Store
	stack *stack.Stack

	mu          sync.RWMutex
	subscribers []chan<- Event
}

func New(eng engine.Engine, store cache.Store, s *stack.Stack) *Orchestrator {
	return &Orchestrator{
		eng:   eng,
		store: store,
		stack: s,
	}
}

// Subscribe returns a channel receiving one Event per entity per phase.
// Events are dropped rather than blocking when the channel is full.
func (o *Orchestrator) Subscribe() <-chan Event {
	eventChan := make(chan Event, 100)

	o.mu.Lock()
	o.subscribers = append(o.subscribers, eventChan)
	o.mu.Unlock()

	return eventChan
}

func (o *Orchestrator) publish(ev Event) {
	o.mu.RLock()
	subscribers := make([]chan<- Event, len(o.subscribers))
	copy(subscribers, o.subscribers)
	o.mu.RUnlock()

	for _, ch := range subscribers {
		select {
		case ch <- ev:
		default:
			logging.Warn("Bootstrap", "Dropped %s event for %s (subscriber channel full)", ev.Phase, ev.Entity)
		}
	}
}

// Open runs the full protocol: live facts, phase 1 for every service,
// then phase 2 for every application using res.
func (o *Orchestrator) Open(ctx context.Context, res *stack.Resolution) *Result {
	facts := o.CollectFacts(ctx)
	services := o.OpenServices(ctx, facts)
	apps := o.OpenApps(ctx, res, services, facts)
	return &Result{Facts: facts, Services: services, Apps: apps}
}

// CollectFacts inspects every supported service container. Services the
// engine cannot find are logged and skipped; their facts stay absent.
func (o *Orchestrator) CollectFacts(ctx context.Context) map[string]engine.ContainerFacts {
	facts := make(map[string]engine.ContainerFacts, len(o.stack.Services))
	for _, svc := range o.stack.Services {
		if !svc.Supported {
			continue
		}
		f, err := o.eng.Inspect(ctx, o.target(svc.Name))
		if err != nil {
			logging.Warn("Bootstrap", "inspect service %s: %v", svc.Name, err)
			o.publish(Event{Phase: PhaseFacts, Entity: svc.Name, Err: err})
			continue
		}
		facts[svc.Name] = f
		o.publish(Event{Phase: PhaseFacts, Entity: svc.Name})
	}
	return facts
}

// OpenServices runs phase 1: the open probe on every supported service,
// in parallel. It returns only after every probe has finished, so the
// result mapping is complete before any application is opened.
func (o *Orchestrator) OpenServices(ctx context.Context, facts map[string]engine.ContainerFacts) map[string]ServiceResult {
	var supported []*stack.Service
	for _, svc := range o.stack.Services {
		if svc.Supported {
			supported = append(supported, svc)
		}
	}
	logging.Debug("Bootstrap", "opening %d services in parallel", len(supported))

	results := make(map[string]ServiceResult, len(supported))
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, svc := range supported {
		wg.Add(1)
		go func(svc *stack.Service) {
			defer wg.Done()
			res := o.openService(ctx, svc, facts[svc.Name])
			mu.Lock()
			results[svc.Name] = res
			mu.Unlock()
			o.publish(Event{Phase: PhaseServices, Entity: svc.Name, Err: res.Err})
		}(svc)
	}
	wg.Wait()

	return results
}

func (o *Orchestrator) openService(ctx context.Context, svc *stack.Service, facts engine.ContainerFacts) ServiceResult {
	out, err := o.eng.Exec(ctx, o.target(svc.Name), svc.OpenCommand, engine.ExecOptions{
		Attempts: engine.DefaultExecAttempts,
		Silent:   true,
	})
	if err != nil {
		logging.Warn("Bootstrap", "open probe on service %s failed: %v", svc.Name, err)
		return ServiceResult{Service: svc.Name, Err: fmt.Errorf("bootstrap: open service %s: %w", svc.Name, err)}
	}

	trimmed := bytes.TrimSpace(out)
	if len(trimmed) == 0 {
		return ServiceResult{Service: svc.Name, Payload: stack.Payload{}}
	}

	var payload stack.Payload
	if err := json.Unmarshal(trimmed, &payload); err != nil {
		perr := &ParseError{Service: svc.Name, Raw: out, Err: err}
		logging.Warn("Bootstrap", "%v", perr)
		return ServiceResult{Service: svc.Name, Err: perr}
	}

	for rel, entries := range payload {
		payload[rel] = o.augment(entries, svc, facts)
	}
	logging.Debug("Bootstrap", "service %s contributed %d relationships", svc.Name, len(payload))
	return ServiceResult{Service: svc.Name, Payload: payload}
}

// augment overlays the facts a probe cannot know onto each endpoint:
// the container address, the service hostname inside the stack domain,
// and the declared type.
func (o *Orchestrator) augment(entries []stack.EndpointDescriptor, svc *stack.Service, facts engine.ContainerFacts) []stack.EndpointDescriptor {
	overlay := stack.EndpointDescriptor{
		IP:       facts.IP(o.stack.Name + "_default"),
		Hostname: o.stack.Hostname(svc.Name),
		Service:  svc.Name,
		Type:     svc.Type,
	}
	out := make([]stack.EndpointDescriptor, len(entries))
	for i, e := range entries {
		out[i] = e.Merge(overlay)
	}
	return out
}

// OpenApps runs phase 2: each application's payload is assembled from
// the phase-1 results, persisted, then handed to the application's open
// probe. Applications run in parallel; results stay in declaration
// order.
func (o *Orchestrator) OpenApps(ctx context.Context, res *stack.Resolution, services map[string]ServiceResult, facts map[string]engine.ContainerFacts) []AppResult {
	logging.Debug("Bootstrap", "opening %d applications in parallel", len(o.stack.Apps))

	results := make([]AppResult, len(o.stack.Apps))
	var wg sync.WaitGroup
	for i, app := range o.stack.Apps {
		wg.Add(1)
		go func(i int, app *stack.Application) {
			defer wg.Done()
			results[i] = o.openApp(ctx, app, res.ByApp[app.Name], services, facts)
			o.publish(Event{Phase: PhaseApps, Entity: app.Name, Err: results[i].Err})
		}(i, app)
	}
	wg.Wait()

	return results
}

func (o *Orchestrator) openApp(ctx context.Context, app *stack.Application, ar *stack.AppResolution, services map[string]ServiceResult, facts map[string]engine.ContainerFacts) AppResult {
	payload := o.buildPayload(ar, services, facts)

	raw, err := json.Marshal(payload)
	if err != nil {
		return AppResult{App: app.Name, Err: fmt.Errorf("bootstrap: encode payload for %s: %w", app.Name, err)}
	}

	// Persisted before the probe runs so an interrupted open still
	// leaves reusable state for the next run.
	if err := o.store.Set(ctx, cache.Open(o.stack.Name, app.Name), raw, cache.SetOptions{Persist: true}); err != nil {
		logging.Warn("Bootstrap", "persist open payload for %s: %v", app.Name, err)
	}

	env := []string{
		EnvRelationships + "=" + base64.StdEncoding.EncodeToString(raw),
		EnvApplicationName + "=" + app.Name,
	}
	out, err := o.eng.Exec(ctx, o.target(app.Name), app.OpenCommand, engine.ExecOptions{
		Attempts: 1,
		Env:      env,
		Silent:   true,
	})
	if err != nil {
		eerr := &ExecError{App: app.Name, Err: err}
		logging.Warn("Bootstrap", "%v", eerr)
		return AppResult{App: app.Name, Payload: payload, Output: out, Err: eerr}
	}

	logging.Debug("Bootstrap", "application %s opened with %d relationships", app.Name, len(payload))
	return AppResult{App: app.Name, Payload: payload, Output: out}
}

// buildPayload maps each bound relationship to its endpoint list. Order
// of preference: augmented phase-1 probe entries, then the declared
// template overlaid with whatever facts exist, then entries reused from
// a previous run. Unresolved names stay absent.
func (o *Orchestrator) buildPayload(ar *stack.AppResolution, services map[string]ServiceResult, facts map[string]engine.ContainerFacts) stack.Payload {
	payload := stack.Payload{}
	if ar == nil {
		return payload
	}
	for _, b := range ar.Bindings {
		switch {
		case b.Service != "":
			if entries := services[b.Service].Payload[b.Rel]; len(entries) > 0 {
				payload[b.Rel] = entries
				continue
			}
			svc := o.stack.Service(b.Service)
			payload[b.Rel] = o.augment([]stack.EndpointDescriptor{b.Template}, svc, facts[b.Service])
		case len(b.Cached) > 0:
			payload[b.Rel] = append([]stack.EndpointDescriptor(nil), b.Cached...)
		}
	}
	return payload
}

// CachedPayloads loads each application's persisted open payload from a
// previous run. Corrupt entries are discarded, not surfaced.
func (o *Orchestrator) CachedPayloads(ctx context.Context) map[string]stack.Payload {
	cached := make(map[string]stack.Payload)
	for _, app := range o.stack.Apps {
		raw, ok, err := o.store.Get(ctx, cache.Open(o.stack.Name, app.Name))
		if err != nil {
			logging.Warn("Bootstrap", "read open cache for %s: %v", app.Name, err)
			continue
		}
		if !ok {
			continue
		}
		var p stack.Payload
		if err := json.Unmarshal(raw, &p); err != nil {
			logging.Warn("Bootstrap", "discarding corrupt open cache for %s: %v", app.Name, err)
			continue
		}
		cached[app.Name] = p
	}
	return cached
}

func (o *Orchestrator) target(name string) engine.Target {
	return engine.Target{Stack: o.stack.Name, Name: name}
}
