// Package schema implements the Schema Manager external collaborator
// (spec §1, §9): read/write of the single schema document at
// schema/schema.json, with a per-process cache to avoid refetching on
// every compaction and gateway write.
package schema

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/lakeside-io/lakeside/pkg/lakeerrors"
	"github.com/lakeside-io/lakeside/pkg/objectstore"
	"github.com/lakeside-io/lakeside/pkg/types"
)

const key = "schema/schema.json"

// DefaultTTL bounds how long a cached schema is trusted before Get
// refetches, per spec §9's "global mutable state" design note.
const DefaultTTL = 30 * time.Second

// entry is the cached {etag, value, loadedAt} cell, guarded by Manager.mu.
type entry struct {
	etag     string
	schema   types.Schema
	loadedAt time.Time
}

// Manager is a per-process, read-write-locked cache over the schema
// document. There is no correctness requirement that the cache be
// consistent across processes (spec §9).
type Manager struct {
	store objectstore.Store
	ttl   time.Duration

	mu    sync.RWMutex
	cache *entry
}

// New creates a schema manager over store. ttl <= 0 uses DefaultTTL.
func New(store objectstore.Store, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{store: store, ttl: ttl}
}

// Get returns the current schema, serving from cache when the TTL has not
// elapsed. A missing or malformed document is reported as
// lakeerrors.ErrSchemaUnavailable so callers (the orchestrator, in
// particular) can fail fast before taking any lock.
func (m *Manager) Get(ctx context.Context) (types.Schema, error) {
	if cached, ok := m.fresh(); ok {
		return cached, nil
	}

	obj, err := m.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, objectstore.ErrNotFound) {
			return types.Schema{}, lakeerrors.ErrSchemaUnavailable
		}
		return types.Schema{}, fmt.Errorf("schema: get %s: %w", key, err)
	}

	var s types.Schema
	if err := json.Unmarshal(obj.Content, &s); err != nil {
		return types.Schema{}, fmt.Errorf("%w: %v", lakeerrors.ErrSchemaUnavailable, err)
	}
	if len(s.Fields) == 0 {
		return types.Schema{}, lakeerrors.ErrSchemaUnavailable
	}

	m.mu.Lock()
	m.cache = &entry{etag: etagOf(obj.Content), schema: s, loadedAt: time.Now()}
	m.mu.Unlock()

	return s, nil
}

func (m *Manager) fresh() (types.Schema, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.cache == nil || time.Since(m.cache.loadedAt) > m.ttl {
		return types.Schema{}, false
	}
	return m.cache.schema, true
}

// Put writes a new schema document and refreshes the cache with it.
func (m *Manager) Put(ctx context.Context, s types.Schema) error {
	if len(s.Fields) == 0 {
		return fmt.Errorf("%w: schema has no fields", lakeerrors.ErrSchemaUnavailable)
	}
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("schema: marshal: %w", err)
	}
	if err := m.store.Put(ctx, key, data, objectstore.PutOptions{}); err != nil {
		return fmt.Errorf("schema: put %s: %w", key, err)
	}

	m.mu.Lock()
	m.cache = &entry{etag: etagOf(data), schema: s, loadedAt: time.Now()}
	m.mu.Unlock()

	return nil
}

// etagOf is a cheap content fingerprint used only to label the cache
// entry for observability; it is not used to short-circuit network
// round-trips since objectstore.Store exposes no conditional-get.
func etagOf(content []byte) string {
	return fmt.Sprintf("%d-%x", len(content), content[:min(len(content), 8)])
}
