// Package storage provides the keyed-blob persistence medium under the cache
// engine and the local record store. Both consumers see the same contract: an
// opaque byte payload addressed by a string key. The cache keeps its index
// root and one payload per cache key here; the record store keeps its
// serialized record array and last-synced marker here. The two never share
// keys or schema.
package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Read when no blob exists for the key.
var ErrNotFound = errors.New("storage: blob not found")

// BlobStore is the persistence medium for keyed opaque payloads.
type BlobStore interface {
	// Read returns the blob for key, or ErrNotFound.
	Read(ctx context.Context, key string) ([]byte, error)

	// Write creates or replaces the blob for key.
	Write(ctx context.Context, key string, value []byte) error

	// Delete removes the blob for key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Keys returns every stored key with the given prefix.
	Keys(ctx context.Context, prefix string) ([]string, error)

	// Close releases storage resources.
	Close() error
}
