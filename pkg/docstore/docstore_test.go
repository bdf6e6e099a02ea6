package docstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"testing"

	"github.com/soundprediction/graphrag/pkg/types"
)

// runStoreTests exercises the Store contract against any implementation.
func runStoreTests(t *testing.T, open func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("get missing document", func(t *testing.T) {
		store := open(t)
		defer store.Close()

		_, err := store.Get(ctx, "nodes", "missing")
		if !errors.Is(err, types.ErrNotFound) {
			t.Errorf("Get error = %v, want ErrNotFound", err)
		}
	})

	t.Run("set then get", func(t *testing.T) {
		store := open(t)
		defer store.Close()

		if err := store.Set(ctx, "nodes", "a", []byte(`{"x":1}`)); err != nil {
			t.Fatalf("Set error: %v", err)
		}
		data, err := store.Get(ctx, "nodes", "a")
		if err != nil {
			t.Fatalf("Get error: %v", err)
		}
		if string(data) != `{"x":1}` {
			t.Errorf("Get = %s, want {\"x\":1}", data)
		}
	})

	t.Run("set replaces", func(t *testing.T) {
		store := open(t)
		defer store.Close()

		store.Set(ctx, "nodes", "a", []byte(`1`))
		store.Set(ctx, "nodes", "a", []byte(`2`))
		data, err := store.Get(ctx, "nodes", "a")
		if err != nil {
			t.Fatalf("Get error: %v", err)
		}
		if string(data) != `2` {
			t.Errorf("Get = %s, want 2", data)
		}
	})

	t.Run("collections are isolated", func(t *testing.T) {
		store := open(t)
		defer store.Close()

		store.Set(ctx, "nodes", "a", []byte(`1`))
		if _, err := store.Get(ctx, "edges", "a"); !errors.Is(err, types.ErrNotFound) {
			t.Errorf("Get from other collection error = %v, want ErrNotFound", err)
		}
	})

	t.Run("delete", func(t *testing.T) {
		store := open(t)
		defer store.Close()

		store.Set(ctx, "nodes", "a", []byte(`1`))
		if err := store.Delete(ctx, "nodes", "a"); err != nil {
			t.Fatalf("Delete error: %v", err)
		}
		if ok, _ := store.Exists(ctx, "nodes", "a"); ok {
			t.Error("document still exists after delete")
		}
		if err := store.Delete(ctx, "nodes", "a"); !errors.Is(err, types.ErrNotFound) {
			t.Errorf("second Delete error = %v, want ErrNotFound", err)
		}
	})

	t.Run("list", func(t *testing.T) {
		store := open(t)
		defer store.Close()

		for i := 0; i < 5; i++ {
			id := fmt.Sprintf("doc-%d", i)
			store.Set(ctx, "nodes", id, []byte(strconv.Itoa(i)))
		}
		docs, err := store.List(ctx, "nodes")
		if err != nil {
			t.Fatalf("List error: %v", err)
		}
		if len(docs) != 5 {
			t.Errorf("List returned %d docs, want 5", len(docs))
		}
		if string(docs["doc-3"]) != "3" {
			t.Errorf("docs[doc-3] = %s, want 3", docs["doc-3"])
		}
	})

	t.Run("update creates and deletes", func(t *testing.T) {
		store := open(t)
		defer store.Close()

		err := store.Update(ctx, "nodes", "a", func(current []byte, exists bool) ([]byte, error) {
			if exists {
				t.Error("exists = true on first update")
			}
			return []byte(`1`), nil
		})
		if err != nil {
			t.Fatalf("Update error: %v", err)
		}
		if ok, _ := store.Exists(ctx, "nodes", "a"); !ok {
			t.Fatal("document missing after create via Update")
		}

		// Returning nil data deletes the document.
		err = store.Update(ctx, "nodes", "a", func(current []byte, exists bool) ([]byte, error) {
			if !exists || string(current) != "1" {
				t.Errorf("current = %s exists = %v, want 1 true", current, exists)
			}
			return nil, nil
		})
		if err != nil {
			t.Fatalf("Update error: %v", err)
		}
		if ok, _ := store.Exists(ctx, "nodes", "a"); ok {
			t.Error("document still exists after delete via Update")
		}
	})

	t.Run("update error aborts write", func(t *testing.T) {
		store := open(t)
		defer store.Close()

		store.Set(ctx, "nodes", "a", []byte(`1`))
		boom := errors.New("boom")
		err := store.Update(ctx, "nodes", "a", func(current []byte, exists bool) ([]byte, error) {
			return []byte(`2`), boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("Update error = %v, want boom", err)
		}
		data, _ := store.Get(ctx, "nodes", "a")
		if string(data) != "1" {
			t.Errorf("document = %s after failed update, want 1", data)
		}
	})

	t.Run("concurrent updates serialize", func(t *testing.T) {
		store := open(t)
		defer store.Close()

		store.Set(ctx, "counters", "n", []byte("0"))
		var wg sync.WaitGroup
		for i := 0; i < 32; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				store.Update(ctx, "counters", "n", func(current []byte, exists bool) ([]byte, error) {
					n, _ := strconv.Atoi(string(current))
					return []byte(strconv.Itoa(n + 1)), nil
				})
			}()
		}
		wg.Wait()

		data, err := store.Get(ctx, "counters", "n")
		if err != nil {
			t.Fatalf("Get error: %v", err)
		}
		if string(data) != "32" {
			t.Errorf("counter = %s, want 32", data)
		}
	})
}

func TestMemoryStore(t *testing.T) {
	runStoreTests(t, func(t *testing.T) Store {
		return NewMemoryStore()
	})
}

func TestBadgerStore(t *testing.T) {
	runStoreTests(t, func(t *testing.T) Store {
		store, err := NewBadgerStore(t.TempDir())
		if err != nil {
			t.Fatalf("failed to open badger store: %v", err)
		}
		return store
	})
}

func TestMemoryStoreCopiesData(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	data := []byte(`{"x":1}`)
	store.Set(ctx, "nodes", "a", data)
	data[0] = '!'

	got, err := store.Get(ctx, "nodes", "a")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if string(got) != `{"x":1}` {
		t.Errorf("stored document mutated through caller slice: %s", got)
	}
}
