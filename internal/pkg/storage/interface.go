package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get for a key that was never written.
var ErrNotFound = errors.New("blob not found")

// BlobStore is a whole-object store addressed by hierarchical keys
// ("sport/date/category/name"). There is no append primitive; appends are
// read-modify-write in the caller.
type BlobStore interface {
	// Get reads a whole object.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put writes a whole object, overwriting any previous value.
	Put(ctx context.Context, key string, data []byte) error

	// List returns the keys under prefix in lexical order.
	List(ctx context.Context, prefix string) ([]string, error)

	// Rename atomically replaces `to` with the object at `from` and removes `from`.
	Rename(ctx context.Context, from, to string) error

	// Close releases the underlying connection.
	Close() error
}
