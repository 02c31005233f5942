package credential

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"stackctl/internal/account"
	"stackctl/internal/cache"
	"stackctl/pkg/logging"
)

// Validator resolves a token to the account that owns it. Implemented
// by account.Client; tests substitute their own.
type Validator interface {
	GetAccountInfo(ctx context.Context, token string) (account.AccountInfo, error)
}

// Cache reads and writes the token list for one component in the
// shared store.
type Cache struct {
	store     cache.Store
	component string
	validator Validator
	now       func() time.Time
}

// New returns a Cache over the given store. component may be empty to
// use the default.
func New(store cache.Store, component string, validator Validator) *Cache {
	return &Cache{
		store:     store,
		component: component,
		validator: validator,
		now:       time.Now,
	}
}

// List returns the stored records, newest first. A missing key is an
// empty list, not an error.
func (c *Cache) List(ctx context.Context) ([]Record, error) {
	data, found, err := c.store.Get(ctx, cache.Tokens(c.component))
	if err != nil {
		return nil, fmt.Errorf("credential: read tokens: %w", err)
	}
	if !found {
		return nil, nil
	}
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("credential: decode tokens: %w", err)
	}
	return records, nil
}

// Refresh validates a token against the account API and records it.
// The stored list is merged, never replaced, so records added by other
// triggers survive. When stackName is non-empty, meta is shallow-merged
// into the stack's meta cache with incoming keys winning. On a rejected
// token nothing is written.
func (c *Cache) Refresh(ctx context.Context, token, stackName string, meta map[string]string) (Record, error) {
	info, err := c.validator.GetAccountInfo(ctx, token)
	if err != nil {
		return Record{}, fmt.Errorf("credential: validate token: %w", err)
	}

	record := Record{
		Token:    token,
		Identity: info.Identity,
		IssuedAt: c.now().Unix(),
	}

	existing, err := c.List(ctx)
	if err != nil {
		return Record{}, err
	}
	merged := Merge(existing, []Record{record})

	data, err := json.Marshal(merged)
	if err != nil {
		return Record{}, fmt.Errorf("credential: encode tokens: %w", err)
	}
	if err := c.store.Set(ctx, cache.Tokens(c.component), data, cache.SetOptions{Persist: true}); err != nil {
		return Record{}, fmt.Errorf("credential: write tokens: %w", err)
	}
	logging.Info("Credential", "recorded token for %s", record.Identity)

	if stackName != "" && len(meta) > 0 {
		if err := c.mergeMeta(ctx, stackName, meta); err != nil {
			return Record{}, err
		}
	}

	return record, nil
}

// mergeMeta overlays incoming keys onto the stack's stored metadata.
func (c *Cache) mergeMeta(ctx context.Context, stackName string, meta map[string]string) error {
	key := cache.Meta(stackName)

	stored := map[string]string{}
	data, found, err := c.store.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("credential: read meta: %w", err)
	}
	if found {
		if err := json.Unmarshal(data, &stored); err != nil {
			// A corrupt meta entry is replaced rather than blocking the
			// token flow.
			logging.Warn("Credential", "discarding unreadable meta cache for %s: %v", stackName, err)
			stored = map[string]string{}
		}
	}
	for k, v := range meta {
		stored[k] = v
	}

	out, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("credential: encode meta: %w", err)
	}
	if err := c.store.Set(ctx, key, out, cache.SetOptions{Persist: true}); err != nil {
		return fmt.Errorf("credential: write meta: %w", err)
	}
	return nil
}
