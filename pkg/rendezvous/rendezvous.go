package rendezvous

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/soundprediction/graphrag/pkg/docstore"
	"github.com/soundprediction/graphrag/pkg/types"
)

// DefaultCollection is where rendezvous documents live.
const DefaultCollection = "rendezvous"

// Store collects partial results of a fanned-out computation under a shared
// rendezvous key. Each contributor merges its sub-key into the same document;
// concurrent Put calls for the same key never lose entries.
type Store struct {
	docs       docstore.Store
	collection string
}

// NewStore creates a rendezvous store on top of docs. An empty collection
// selects DefaultCollection.
func NewStore(docs docstore.Store, collection string) *Store {
	if collection == "" {
		collection = DefaultCollection
	}
	return &Store{docs: docs, collection: collection}
}

// Put merges one partial response under key/subKey. An existing sub-key entry
// is overwritten; all other entries are preserved.
func (s *Store) Put(ctx context.Context, key, subKey string, response *types.IntermediateResponse) error {
	if key == "" || subKey == "" {
		return fmt.Errorf("rendezvous key and sub-key are required: %w", types.ErrEmptyUID)
	}
	return s.docs.Update(ctx, s.collection, key, func(current []byte, exists bool) ([]byte, error) {
		merged := make(map[string]*types.IntermediateResponse)
		if exists {
			if err := json.Unmarshal(current, &merged); err != nil {
				return nil, fmt.Errorf("%w: rendezvous document %q: %v", types.ErrMalformedRecord, key, err)
			}
		}
		merged[subKey] = response
		return json.Marshal(merged)
	})
}

// Get returns the merged partial responses under key. A key nobody has
// written yet yields an empty map, not an error.
func (s *Store) Get(ctx context.Context, key string) (map[string]*types.IntermediateResponse, error) {
	raw, err := s.docs.Get(ctx, s.collection, key)
	if errors.Is(err, types.ErrNotFound) {
		return map[string]*types.IntermediateResponse{}, nil
	}
	if err != nil {
		return nil, err
	}
	merged := make(map[string]*types.IntermediateResponse)
	if err := json.Unmarshal(raw, &merged); err != nil {
		return nil, fmt.Errorf("%w: rendezvous document %q: %v", types.ErrMalformedRecord, key, err)
	}
	return merged, nil
}

// Count returns the number of sub-keys gathered under key.
func (s *Store) Count(ctx context.Context, key string) (int, error) {
	merged, err := s.Get(ctx, key)
	if err != nil {
		return 0, err
	}
	return len(merged), nil
}

// Delete removes the rendezvous document for key. Deleting a missing key is
// not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	err := s.docs.Delete(ctx, s.collection, key)
	if errors.Is(err, types.ErrNotFound) {
		return nil
	}
	return err
}
