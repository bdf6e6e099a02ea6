package docstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/soundprediction/graphrag/pkg/types"
)

// MemoryStore is an in-process Store implementation. It is safe for
// concurrent use and keeps deep copies of all documents.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string][]byte
}

// NewMemoryStore creates an empty in-memory document store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string]map[string][]byte),
	}
}

func (s *MemoryStore) Get(ctx context.Context, collection, id string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.collections[collection][id]
	if !ok {
		return nil, fmt.Errorf("document %q in collection %q: %w", id, collection, types.ErrNotFound)
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (s *MemoryStore) Set(ctx context.Context, collection, id string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.setLocked(collection, id, data)
	return nil
}

func (s *MemoryStore) setLocked(collection, id string, data []byte) {
	coll, ok := s.collections[collection]
	if !ok {
		coll = make(map[string][]byte)
		s.collections[collection] = coll
	}
	stored := make([]byte, len(data))
	copy(stored, data)
	coll[id] = stored
}

func (s *MemoryStore) Delete(ctx context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.collections[collection][id]; !ok {
		return fmt.Errorf("document %q in collection %q: %w", id, collection, types.ErrNotFound)
	}
	delete(s.collections[collection], id)
	return nil
}

func (s *MemoryStore) Exists(ctx context.Context, collection, id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.collections[collection][id]
	return ok, nil
}

func (s *MemoryStore) List(ctx context.Context, collection string) (map[string][]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string][]byte, len(s.collections[collection]))
	for id, data := range s.collections[collection] {
		copied := make([]byte, len(data))
		copy(copied, data)
		out[id] = copied
	}
	return out, nil
}

func (s *MemoryStore) Update(ctx context.Context, collection, id string, fn UpdateFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.collections[collection][id]
	next, err := fn(current, exists)
	if err != nil {
		return err
	}
	if next == nil {
		delete(s.collections[collection], id)
		return nil
	}
	s.setLocked(collection, id, next)
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}

var _ Store = (*MemoryStore)(nil)
