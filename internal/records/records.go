// Package records keeps typed collections of records inside a single JSON
// document and applies every change as load, mutate, store.
package records

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"styletransfer/internal/docstore"
	"styletransfer/internal/domain"
	"styletransfer/internal/infra"
)

// Config describes where a collection lives and how its records are keyed.
type Config[K comparable, V any] struct {
	// Path is the document path inside the repository.
	Path string
	// Envelope names the top-level object key holding the array. Empty means
	// the document is a bare JSON array.
	Envelope string
	// Key extracts the unique key of a record.
	Key func(V) K
	// Message is the commit message used for every store.
	Message string
}

// Collection is a keyed list of V persisted as one document.
//
// Operations on one Collection are serialized. Nothing coordinates separate
// Collection values (or other processes) writing the same path: a
// concurrent load-mutate-store from elsewhere can silently drop a mutation.
type Collection[K comparable, V any] struct {
	cfg    Config[K, V]
	docs   *docstore.Store
	logger infra.Logger
	mu     sync.Mutex
}

func New[K comparable, V any](docs *docstore.Store, cfg Config[K, V], logger infra.Logger) *Collection[K, V] {
	if cfg.Message == "" {
		cfg.Message = "Update " + cfg.Path
	}
	return &Collection[K, V]{
		cfg:    cfg,
		docs:   docs,
		logger: logger.With().Str("component", "records").Str("path", cfg.Path).Logger(),
	}
}

// Path returns the document path backing the collection.
func (c *Collection[K, V]) Path() string { return c.cfg.Path }

// List returns every record. A document that cannot be read is treated as
// empty.
func (c *Collection[K, V]) List(ctx context.Context) ([]V, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	items, err := c.load(ctx)
	if err != nil {
		c.logger.Warn().Err(err).Msg("collection unreadable, returning empty list")
		return []V{}, nil
	}
	return items, nil
}

// Get returns the first record with key k, or domain.ErrNotFound.
func (c *Collection[K, V]) Get(ctx context.Context, k K) (V, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	items, err := c.load(ctx)
	if err != nil {
		c.logger.Warn().Err(err).Msg("collection unreadable")
		return zero, domain.ErrNotFound
	}
	for _, item := range items {
		if c.cfg.Key(item) == k {
			return item, nil
		}
	}
	return zero, domain.ErrNotFound
}

// Add appends v. It fails with domain.ErrDuplicateKey, storing nothing, when
// a record with the same key exists.
func (c *Collection[K, V]) Add(ctx context.Context, v V) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	items, err := c.load(ctx)
	if err != nil {
		return err
	}
	k := c.cfg.Key(v)
	for _, item := range items {
		if c.cfg.Key(item) == k {
			return fmt.Errorf("%w: %v", domain.ErrDuplicateKey, k)
		}
	}
	return c.store(ctx, append(items, v))
}

// Update applies mutate to the first record keyed k and stores the result.
// It reports whether a record matched; an absent key stores nothing. An error
// from mutate aborts the update and is returned unchanged.
func (c *Collection[K, V]) Update(ctx context.Context, k K, mutate func(*V) error) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	items, err := c.load(ctx)
	if err != nil {
		return false, err
	}
	for i := range items {
		if c.cfg.Key(items[i]) != k {
			continue
		}
		if err := mutate(&items[i]); err != nil {
			return true, err
		}
		return true, c.store(ctx, items)
	}
	return false, nil
}

// Delete removes every record keyed k. The document is stored even when
// nothing matched.
func (c *Collection[K, V]) Delete(ctx context.Context, k K) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	items, err := c.load(ctx)
	if err != nil {
		return err
	}
	kept := items[:0]
	for _, item := range items {
		if c.cfg.Key(item) != k {
			kept = append(kept, item)
		}
	}
	return c.store(ctx, kept)
}

func (c *Collection[K, V]) load(ctx context.Context) ([]V, error) {
	raw, err := c.docs.Get(ctx, c.cfg.Path)
	if err != nil {
		return nil, err
	}
	if docstore.IsEmpty(raw) {
		return []V{}, nil
	}
	raw = replaceNonFinite(raw)

	if c.cfg.Envelope != "" {
		var env map[string]json.RawMessage
		if err := json.Unmarshal(raw, &env); err != nil {
			return nil, fmt.Errorf("%w: decode %s: %w", domain.ErrStoreUnavailable, c.cfg.Path, err)
		}
		inner, ok := env[c.cfg.Envelope]
		if !ok || len(inner) == 0 {
			return []V{}, nil
		}
		raw = inner
	}

	var items []V
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %w", domain.ErrStoreUnavailable, c.cfg.Path, err)
	}
	if items == nil {
		items = []V{}
	}
	return items, nil
}

func (c *Collection[K, V]) store(ctx context.Context, items []V) error {
	if items == nil {
		items = []V{}
	}
	var doc any = items
	if c.cfg.Envelope != "" {
		doc = map[string]any{c.cfg.Envelope: items}
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", c.cfg.Path, err)
	}
	if err := c.docs.Put(ctx, c.cfg.Path, data, c.cfg.Message); err != nil {
		return err
	}
	c.logger.Debug().Int("records", len(items)).Msg("collection stored")
	return nil
}
