package cache

import (
	"context"
)

// DefaultComponent namespaces tool-level keys, such as the token list,
// inside the shared store.
const DefaultComponent = "stackctl"

// SetOptions controls how a cache entry is stored.
type SetOptions struct {
	// Persist keeps the entry across process runs. Entries written
	// without it are purged the next time the store is opened.
	Persist bool
}

// Store is the persistent key/value collaborator shared by credential
// storage, bootstrap payload caching, and lifecycle markers. Values are
// opaque bytes; callers own their encoding.
type Store interface {
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Set(ctx context.Context, key string, value []byte, opts SetOptions) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Tokens returns the key holding a component's access token records.
func Tokens(component string) string {
	if component == "" {
		component = DefaultComponent
	}
	return component + ".tokens"
}

// Meta returns the key holding a stack's account metadata.
func Meta(stackName string) string {
	return stackName + ".meta.cache"
}

// Open returns the key holding an application's open payload from the
// last bootstrap.
func Open(stackName, app string) string {
	return stackName + "." + app + ".open.cache"
}

// Configured returns the marker key recording that a service's run
// config was written. Its presence suppresses rewrites on later runs.
func Configured(stackName, service string) string {
	return stackName + "." + service + ".configured"
}
