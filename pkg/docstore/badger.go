package docstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/soundprediction/graphrag/pkg/types"
)

// BadgerStore is a persistent Store backed by BadgerDB. Collections map to
// key prefixes of the form "{collection}/{id}".
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStore opens (or creates) a Badger database at path.
func NewBadgerStore(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger store at %s: %w", path, err)
	}
	return &BadgerStore{db: db}, nil
}

// NewBadgerStoreInMemory opens an ephemeral Badger database, useful in tests.
func NewBadgerStoreInMemory() (*BadgerStore, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory badger store: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

func docKey(collection, id string) []byte {
	return []byte(collection + "/" + id)
}

func (s *BadgerStore) Get(ctx context.Context, collection, id string) ([]byte, error) {
	var out []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(docKey(collection, id))
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("document %q in collection %q: %w", id, collection, types.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read document %q: %w", id, err)
	}
	return out, nil
}

func (s *BadgerStore) Set(ctx context.Context, collection, id string, data []byte) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(docKey(collection, id), data)
	})
	if err != nil {
		return fmt.Errorf("failed to write document %q: %w", id, err)
	}
	return nil
}

func (s *BadgerStore) Delete(ctx context.Context, collection, id string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(docKey(collection, id)); err != nil {
			return err
		}
		return txn.Delete(docKey(collection, id))
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("document %q in collection %q: %w", id, collection, types.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to delete document %q: %w", id, err)
	}
	return nil
}

func (s *BadgerStore) Exists(ctx context.Context, collection, id string) (bool, error) {
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(docKey(collection, id))
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to stat document %q: %w", id, err)
	}
	return true, nil
}

func (s *BadgerStore) List(ctx context.Context, collection string) (map[string][]byte, error) {
	prefix := []byte(collection + "/")
	out := make(map[string][]byte)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			id := string(bytes.TrimPrefix(item.KeyCopy(nil), prefix))
			data, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			out[id] = data
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list collection %q: %w", collection, err)
	}
	return out, nil
}

func (s *BadgerStore) Update(ctx context.Context, collection, id string, fn UpdateFunc) error {
	// badger serializes conflicting transactions; retry on conflict keeps
	// the read-modify-write cycle atomic per key.
	for {
		err := s.db.Update(func(txn *badger.Txn) error {
			var current []byte
			exists := true
			item, err := txn.Get(docKey(collection, id))
			if errors.Is(err, badger.ErrKeyNotFound) {
				exists = false
			} else if err != nil {
				return err
			} else {
				current, err = item.ValueCopy(nil)
				if err != nil {
					return err
				}
			}

			next, err := fn(current, exists)
			if err != nil {
				return err
			}
			if next == nil {
				if !exists {
					return nil
				}
				return txn.Delete(docKey(collection, id))
			}
			return txn.Set(docKey(collection, id), next)
		})
		if errors.Is(err, badger.ErrConflict) {
			continue
		}
		if err != nil {
			return err
		}
		return nil
	}
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}

var _ Store = (*BadgerStore)(nil)
