// Package bootstrap drives the two-phase OPEN protocol that hands
// backing-service connection data to application containers.
//
// # Protocol
//
// A run moves through three steps, each owned by a method on
// Orchestrator:
//
//  1. CollectFacts inspects every supported service container and
//     records its live state, most importantly the address it was given
//     on the stack network.
//  2. OpenServices (phase 1) executes the open probe inside every
//     supported service container in parallel. A probe prints the
//     endpoints the service actually provisioned (databases created,
//     users granted, and so on) as JSON keyed by relationship name.
//     Parsed entries are augmented with facts the probe cannot know:
//     the container address, the synthesized service hostname, and the
//     declared service type. Phase 1 is a full barrier: every probe has
//     finished, successfully or not, before phase 2 starts.
//  3. OpenApps (phase 2) assembles each application's relationship
//     payload from the phase-1 results, persists it, then executes the
//     application's open probe once with the payload passed through the
//     environment.
//
// # Failure isolation
//
// A failing probe never aborts the run and never cancels sibling
// probes. Phase-1 execution failures and unparseable output reduce that
// one service's contribution to nothing and are recorded on its
// ServiceResult; applications bound to such a service fall back to the
// declared endpoint template. Phase-2 failures are recorded on the
// application's AppResult and leave every other application untouched.
//
// # Caching
//
// Each application's payload is written to the persistent cache before
// its probe runs, so an interrupted run still leaves reusable state.
// CachedPayloads loads those entries back; the resolver uses them to
// fill relationships no live service provides.
//
// # Events
//
// Subscribe returns a channel carrying one Event per entity per step.
// Delivery is best effort: a full subscriber channel drops events
// rather than stalling a probe.
package bootstrap
