package bootstrap

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stackctl/internal/cache"
	"stackctl/internal/engine"
	"stackctl/internal/stack"
	"stackctl/pkg/logging"
)

func TestMain(m *testing.M) {
	logging.Init(logging.LevelError, "text", io.Discard)
	m.Run()
}

type execCall struct {
	name  string
	env   []string
	start time.Time
	end   time.Time
}

type script struct {
	out    []byte
	err    error
	delay  time.Duration
	onExec func(opts engine.ExecOptions)
}

// fakeEngine serves scripted probe responses and records every call
// with timestamps so tests can check ordering across goroutines.
type fakeEngine struct {
	mu       sync.Mutex
	facts    map[string]engine.ContainerFacts
	scripts  map[string]script
	calls    []execCall
	inspects []string
}

func (f *fakeEngine) Name() string { return "fake" }

func (f *fakeEngine) Inspect(ctx context.Context, t engine.Target) (engine.ContainerFacts, error) {
	f.mu.Lock()
	f.inspects = append(f.inspects, t.Name)
	facts, ok := f.facts[t.Name]
	f.mu.Unlock()
	if !ok {
		return engine.ContainerFacts{}, engine.ErrNotFound
	}
	return facts, nil
}

func (f *fakeEngine) Exec(ctx context.Context, t engine.Target, cmd []string, opts engine.ExecOptions) ([]byte, error) {
	call := execCall{name: t.Name, env: opts.Env, start: time.Now()}
	s := f.scripts[t.Name]
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if s.onExec != nil {
		s.onExec(opts)
	}
	call.end = time.Now()
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
	return s.out, s.err
}

func (f *fakeEngine) call(name string) (execCall, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.calls {
		if c.name == name {
			return c, true
		}
	}
	return execCall{}, false
}

func (f *fakeEngine) execNames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, len(f.calls))
	for i, c := range f.calls {
		names[i] = c.name
	}
	return names
}

func runningFacts(ip string) engine.ContainerFacts {
	return engine.ContainerFacts{
		Running: true,
		Networks: map[string]engine.Network{
			"mysite_default": {IPAddress: ip},
		},
	}
}

func testService(name, typ string, port int, scheme string, rels ...string) *stack.Service {
	kind, _, _ := strings.Cut(typ, ":")
	declared := make(map[string]stack.EndpointDescriptor, len(rels))
	for _, rel := range rels {
		declared[rel] = stack.EndpointDescriptor{
			Host:    name,
			Port:    port,
			Scheme:  scheme,
			Rel:     rel,
			Service: name,
			Type:    typ,
		}
	}
	return &stack.Service{
		Name:        name,
		Type:        typ,
		Kind:        kind,
		Supported:   true,
		OpenCommand: []string{"/helpers/stackctl-open"},
		Declared:    declared,
	}
}

func testApp(name string, rels ...string) *stack.Application {
	return &stack.Application{
		Name:          name,
		Relationships: rels,
		OpenCommand:   []string{"/helpers/stackctl-open"},
	}
}

func testStack(services []*stack.Service, apps []*stack.Application) *stack.Stack {
	return &stack.Stack{Name: "mysite", Services: services, Apps: apps}
}

func TestOpen_MergesProbeOutputWithLiveFacts(t *testing.T) {
	s := testStack(
		[]*stack.Service{testService("db", "mysql:10", 3306, "mysql", "database")},
		[]*stack.Application{testApp("web", "database")},
	)
	eng := &fakeEngine{
		facts: map[string]engine.ContainerFacts{"db": runningFacts("10.0.0.5")},
		scripts: map[string]script{
			"db":  {out: []byte(`{"database":[{"host":"x"}]}`)},
			"web": {},
		},
	}
	store := cache.NewMemory()
	o := New(eng, store, s)

	result := o.Open(context.Background(), stack.Resolve(s, nil))
	require.Empty(t, result.Errors())

	wantJSON := `{"database":[{"host":"x","ip":"10.0.0.5","service":"db","type":"mysql:10"}]}`

	stored, ok, err := store.Get(context.Background(), "mysite.web.open.cache")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, wantJSON, string(stored))

	webCall, ok := eng.call("web")
	require.True(t, ok)
	assert.Equal(t, []string{
		EnvRelationships + "=" + base64.StdEncoding.EncodeToString([]byte(wantJSON)),
		EnvApplicationName + "=web",
	}, webCall.env)
}

func TestOpenServices_IsAFullBarrier(t *testing.T) {
	s := testStack(
		[]*stack.Service{
			testService("db", "mysql:10", 3306, "mysql", "database"),
			testService("slow", "redis:7", 6379, "redis", "redis"),
		},
		[]*stack.Application{testApp("web", "database", "redis")},
	)
	eng := &fakeEngine{
		facts: map[string]engine.ContainerFacts{
			"db":   runningFacts("10.0.0.5"),
			"slow": runningFacts("10.0.0.6"),
		},
		scripts: map[string]script{
			"db":   {out: []byte(`{"database":[{"host":"db"}]}`)},
			"slow": {out: []byte(`{"redis":[{"host":"slow"}]}`), delay: 75 * time.Millisecond},
			"web":  {},
		},
	}
	o := New(eng, cache.NewMemory(), s)

	result := o.Open(context.Background(), stack.Resolve(s, nil))
	require.Empty(t, result.Errors())

	slowCall, ok := eng.call("slow")
	require.True(t, ok)
	webCall, ok := eng.call("web")
	require.True(t, ok)
	// The application probe must not start until every service probe,
	// including the delayed one, has finished.
	assert.False(t, webCall.start.Before(slowCall.end),
		"application probe started %v before the slowest service probe finished",
		slowCall.end.Sub(webCall.start))
	assert.Len(t, result.Apps[0].Payload["redis"], 1)
}

func TestOpen_ParseFailureIsIsolated(t *testing.T) {
	s := testStack(
		[]*stack.Service{
			testService("db", "mysql:10", 3306, "mysql", "database"),
			testService("cache", "redis:7", 6379, "redis", "redis"),
		},
		[]*stack.Application{testApp("web", "database", "redis")},
	)
	eng := &fakeEngine{
		facts: map[string]engine.ContainerFacts{
			"db":    runningFacts("10.0.0.5"),
			"cache": runningFacts("10.0.0.9"),
		},
		scripts: map[string]script{
			"db":    {out: []byte(`{"database":[{"host":"x"}]}`)},
			"cache": {out: []byte("mount: permission denied")},
			"web":   {},
		},
	}
	o := New(eng, cache.NewMemory(), s)

	result := o.Open(context.Background(), stack.Resolve(s, nil))

	var perr *ParseError
	require.ErrorAs(t, result.Services["cache"].Err, &perr)
	assert.Equal(t, "cache", perr.Service)
	assert.Equal(t, "mount: permission denied", string(perr.Raw))

	// The healthy service's data still reaches the application, and the
	// broken one degrades to its declared template plus live facts.
	payload := result.Apps[0].Payload
	require.Len(t, payload["database"], 1)
	assert.Equal(t, "x", payload["database"][0].Host)

	require.Len(t, payload["redis"], 1)
	fallback := payload["redis"][0]
	assert.Equal(t, "cache", fallback.Host)
	assert.Equal(t, 6379, fallback.Port)
	assert.Equal(t, "redis", fallback.Scheme)
	assert.Equal(t, "10.0.0.9", fallback.IP)
	assert.Equal(t, "redis:7", fallback.Type)

	require.NoError(t, result.Apps[0].Err)
}

func TestOpen_ServiceExecFailureFallsBackToTemplate(t *testing.T) {
	s := testStack(
		[]*stack.Service{testService("db", "mysql:10", 3306, "mysql", "database")},
		[]*stack.Application{testApp("web", "database")},
	)
	eng := &fakeEngine{
		facts: map[string]engine.ContainerFacts{"db": runningFacts("10.0.0.5")},
		scripts: map[string]script{
			"db":  {err: errors.New("container not running")},
			"web": {},
		},
	}
	o := New(eng, cache.NewMemory(), s)

	result := o.Open(context.Background(), stack.Resolve(s, nil))
	require.Error(t, result.Services["db"].Err)

	payload := result.Apps[0].Payload
	require.Len(t, payload["database"], 1)
	entry := payload["database"][0]
	assert.Equal(t, "db", entry.Host)
	assert.Equal(t, 3306, entry.Port)
	assert.Equal(t, "mysql", entry.Scheme)
	assert.Equal(t, "10.0.0.5", entry.IP)
}

func TestOpen_PersistsPayloadBeforeAppProbe(t *testing.T) {
	s := testStack(
		[]*stack.Service{testService("db", "mysql:10", 3306, "mysql", "database")},
		[]*stack.Application{testApp("web", "database")},
	)
	store := cache.NewMemory()
	persistedBeforeProbe := false
	eng := &fakeEngine{
		facts: map[string]engine.ContainerFacts{"db": runningFacts("10.0.0.5")},
		scripts: map[string]script{
			"db": {out: []byte(`{"database":[{"host":"x"}]}`)},
			"web": {onExec: func(opts engine.ExecOptions) {
				_, ok, err := store.Get(context.Background(), "mysite.web.open.cache")
				persistedBeforeProbe = err == nil && ok
			}},
		},
	}
	o := New(eng, store, s)

	result := o.Open(context.Background(), stack.Resolve(s, nil))
	require.Empty(t, result.Errors())
	assert.True(t, persistedBeforeProbe, "payload was not in the cache when the app probe ran")
}

func TestOpen_AppExecFailureIsIsolated(t *testing.T) {
	s := testStack(
		[]*stack.Service{testService("db", "mysql:10", 3306, "mysql", "database")},
		[]*stack.Application{testApp("web", "database"), testApp("admin", "database")},
	)
	eng := &fakeEngine{
		facts: map[string]engine.ContainerFacts{"db": runningFacts("10.0.0.5")},
		scripts: map[string]script{
			"db":    {out: []byte(`{"database":[{"host":"x"}]}`)},
			"web":   {err: errors.New("exec failed")},
			"admin": {},
		},
	}
	o := New(eng, cache.NewMemory(), s)

	result := o.Open(context.Background(), stack.Resolve(s, nil))

	var eerr *ExecError
	require.ErrorAs(t, result.Apps[0].Err, &eerr)
	assert.Equal(t, "web", eerr.App)
	require.NoError(t, result.Apps[1].Err)
	assert.Len(t, result.Errors(), 1)

	// The failed app still computed and persisted its payload.
	assert.Len(t, result.Apps[0].Payload["database"], 1)
}

func TestOpen_SkipsUnsupportedServices(t *testing.T) {
	search := testService("search", "meilisearch:1.6", 7700, "http", "search")
	search.Supported = false
	s := testStack(
		[]*stack.Service{testService("db", "mysql:10", 3306, "mysql", "database"), search},
		[]*stack.Application{testApp("web", "database", "search")},
	)
	eng := &fakeEngine{
		facts: map[string]engine.ContainerFacts{"db": runningFacts("10.0.0.5")},
		scripts: map[string]script{
			"db":  {out: []byte(`{"database":[{"host":"x"}]}`)},
			"web": {},
		},
	}
	o := New(eng, cache.NewMemory(), s)

	result := o.Open(context.Background(), stack.Resolve(s, nil))

	assert.NotContains(t, eng.execNames(), "search")
	assert.NotContains(t, eng.inspects, "search")

	// The unsupported service still contributes its declared template.
	payload := result.Apps[0].Payload
	require.Len(t, payload["search"], 1)
	assert.Equal(t, "search", payload["search"][0].Host)
	assert.Empty(t, payload["search"][0].IP)
}

func TestCachedPayloads(t *testing.T) {
	s := testStack(
		[]*stack.Service{testService("db", "mysql:10", 3306, "mysql", "database")},
		[]*stack.Application{testApp("web", "database"), testApp("admin", "database")},
	)
	store := cache.NewMemory()
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "mysite.web.open.cache",
		[]byte(`{"queue":[{"host":"mq.internal","port":5672}]}`), cache.SetOptions{Persist: true}))
	require.NoError(t, store.Set(ctx, "mysite.admin.open.cache",
		[]byte(`{corrupt`), cache.SetOptions{Persist: true}))

	o := New(&fakeEngine{}, store, s)

	cached := o.CachedPayloads(ctx)
	require.Contains(t, cached, "web")
	assert.NotContains(t, cached, "admin")
	assert.Equal(t, "mq.internal", cached["web"]["queue"][0].Host)
}

func TestOpen_CachedEndpointsFillMissingRelationships(t *testing.T) {
	s := testStack(
		[]*stack.Service{testService("db", "mysql:10", 3306, "mysql", "database")},
		[]*stack.Application{testApp("web", "database", "queue")},
	)
	store := cache.NewMemory()
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "mysite.web.open.cache",
		[]byte(`{"queue":[{"host":"mq.internal","port":5672}]}`), cache.SetOptions{Persist: true}))

	eng := &fakeEngine{
		facts: map[string]engine.ContainerFacts{"db": runningFacts("10.0.0.5")},
		scripts: map[string]script{
			"db":  {out: []byte(`{"database":[{"host":"x"}]}`)},
			"web": {},
		},
	}
	o := New(eng, store, s)

	res := stack.Resolve(s, o.CachedPayloads(ctx))
	result := o.Open(ctx, res)

	payload := result.Apps[0].Payload
	require.Len(t, payload["queue"], 1)
	assert.Equal(t, "mq.internal", payload["queue"][0].Host)
	assert.Equal(t, 5672, payload["queue"][0].Port)
	// Only the real service and the app were executed.
	assert.ElementsMatch(t, []string{"db", "web"}, eng.execNames())
}

func TestSubscribe_ReceivesPhaseEvents(t *testing.T) {
	s := testStack(
		[]*stack.Service{testService("db", "mysql:10", 3306, "mysql", "database")},
		[]*stack.Application{testApp("web", "database")},
	)
	eng := &fakeEngine{
		facts: map[string]engine.ContainerFacts{"db": runningFacts("10.0.0.5")},
		scripts: map[string]script{
			"db":  {out: []byte(`{"database":[{"host":"x"}]}`)},
			"web": {},
		},
	}
	o := New(eng, cache.NewMemory(), s)
	events := o.Subscribe()

	o.Open(context.Background(), stack.Resolve(s, nil))

	seen := map[Phase][]string{}
	for len(events) > 0 {
		ev := <-events
		seen[ev.Phase] = append(seen[ev.Phase], ev.Entity)
	}
	assert.Contains(t, seen[PhaseFacts], "db")
	assert.Contains(t, seen[PhaseServices], "db")
	assert.Contains(t, seen[PhaseApps], "web")
}
