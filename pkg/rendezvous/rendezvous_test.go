package rendezvous

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/soundprediction/graphrag/pkg/docstore"
	"github.com/soundprediction/graphrag/pkg/types"
)

func newTestStore() *Store {
	return NewStore(docstore.NewMemoryStore(), "")
}

func TestPutGetMerges(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()

	if err := store.Put(ctx, "query-1", "community-a", &types.IntermediateResponse{Community: "community-a", Response: "alpha", Score: 5}); err != nil {
		t.Fatalf("Put error: %v", err)
	}
	if err := store.Put(ctx, "query-1", "community-b", &types.IntermediateResponse{Community: "community-b", Response: "beta", Score: 8}); err != nil {
		t.Fatalf("Put error: %v", err)
	}

	merged, err := store.Get(ctx, "query-1")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if len(merged) != 2 {
		t.Fatalf("len(merged) = %d, want 2", len(merged))
	}
	if merged["community-b"].Score != 8 {
		t.Errorf("community-b score = %v, want 8", merged["community-b"].Score)
	}
}

func TestPutOverwritesSameSubKey(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()

	_ = store.Put(ctx, "query-1", "community-a", &types.IntermediateResponse{Response: "first", Score: 1})
	if err := store.Put(ctx, "query-1", "community-a", &types.IntermediateResponse{Response: "second", Score: 2}); err != nil {
		t.Fatalf("Put error: %v", err)
	}

	merged, err := store.Get(ctx, "query-1")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if len(merged) != 1 {
		t.Fatalf("len(merged) = %d, want 1", len(merged))
	}
	if merged["community-a"].Response != "second" {
		t.Errorf("Response = %q, want second", merged["community-a"].Response)
	}
}

func TestGetMissingKeyIsEmpty(t *testing.T) {
	store := newTestStore()
	merged, err := store.Get(context.Background(), "nobody-wrote-this")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if len(merged) != 0 {
		t.Errorf("len(merged) = %d, want 0", len(merged))
	}
}

func TestConcurrentPutsLoseNothing(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()

	const writers = 32
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			subKey := fmt.Sprintf("community-%02d", i)
			if err := store.Put(ctx, "query-1", subKey, &types.IntermediateResponse{Community: subKey, Score: i}); err != nil {
				t.Errorf("Put(%s) error: %v", subKey, err)
			}
		}(i)
	}
	wg.Wait()

	count, err := store.Count(ctx, "query-1")
	if err != nil {
		t.Fatalf("Count error: %v", err)
	}
	if count != writers {
		t.Fatalf("Count = %d, want %d", count, writers)
	}
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()

	_ = store.Put(ctx, "query-1", "community-a", &types.IntermediateResponse{})
	if err := store.Delete(ctx, "query-1"); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	count, err := store.Count(ctx, "query-1")
	if err != nil {
		t.Fatalf("Count error: %v", err)
	}
	if count != 0 {
		t.Errorf("Count after delete = %d, want 0", count)
	}
	if err := store.Delete(ctx, "query-1"); err != nil {
		t.Errorf("second Delete error: %v", err)
	}
}
