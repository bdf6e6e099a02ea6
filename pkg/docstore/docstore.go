package docstore

import (
	"context"
)

// UpdateFunc transforms the current contents of a document. current is nil
// when the document does not exist. Returning nil data deletes the document.
type UpdateFunc func(current []byte, exists bool) (data []byte, err error)

// Store is a keyed collection of JSON documents.
type Store interface {
	// Get returns the raw document, or types.ErrNotFound.
	Get(ctx context.Context, collection, id string) ([]byte, error)

	// Set creates or fully replaces a document.
	Set(ctx context.Context, collection, id string, data []byte) error

	// Delete removes a document. Deleting an absent document returns
	// types.ErrNotFound.
	Delete(ctx context.Context, collection, id string) error

	// Exists reports whether a document is present.
	Exists(ctx context.Context, collection, id string) (bool, error)

	// List returns all documents in a collection keyed by id.
	List(ctx context.Context, collection string) (map[string][]byte, error)

	// Update runs fn inside a per-key critical section so concurrent
	// read-modify-write cycles on the same document serialize.
	Update(ctx context.Context, collection, id string, fn UpdateFunc) error

	// Close releases all resources held by the store.
	Close() error
}
