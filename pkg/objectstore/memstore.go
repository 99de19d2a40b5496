package objectstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// MemStore is an in-memory Store, used for local development and tests. It
// is the default --backend (memory).
type MemStore struct {
	mu      sync.RWMutex
	objects map[string]*Object
	clock   clockwork.Clock
}

// NewMemStore creates an empty in-memory store using the real clock.
func NewMemStore() *MemStore {
	return NewMemStoreWithClock(clockwork.NewRealClock())
}

// NewMemStoreWithClock creates an empty in-memory store with an injected
// clock, for deterministic LastModified values in tests.
func NewMemStoreWithClock(clock clockwork.Clock) *MemStore {
	return &MemStore{
		objects: make(map[string]*Object),
		clock:   clock,
	}
}

func (s *MemStore) Get(_ context.Context, key string) (*Object, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, ok := s.objects[key]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *obj
	cp.Content = append([]byte(nil), obj.Content...)
	return &cp, nil
}

func (s *MemStore) Put(_ context.Context, key string, content []byte, opts PutOptions) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if opts.IfNotExists {
		if _, exists := s.objects[key]; exists {
			return ErrPreconditionFailed
		}
	}

	s.objects[key] = &Object{
		Key:          key,
		Content:      append([]byte(nil), content...),
		LastModified: s.clock.Now(),
	}
	return nil
}

func (s *MemStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.objects, key)
	return nil
}

func (s *MemStore) List(_ context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.objects))
	for k := range s.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}
