package storage

import (
	"context"
	"errors"
	"time"
)

// ObjectStore represents a bucket of named blobs. It is the only dependency
// the rest of the application has on the outside world, so tests can
// substitute an InMemoryStore for it.
type ObjectStore interface {
	// Put stores value under key with the given content type, overwriting
	// any previous object.
	Put(ctx context.Context, key string, value []byte, contentType string) error

	// Get should return ErrNotFound if the key is not in the store.
	Get(ctx context.Context, key string) (value []byte, err error)

	// Stat returns the object's descriptor without its contents. It should
	// return ErrNotFound if the key is not in the store.
	Stat(ctx context.Context, key string) (ObjectInfo, error)

	// List enumerates objects whose key starts with prefix, in
	// backend-defined order.
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)

	// URL returns the storage path for a key, e.g. "gs://bucket/key".
	URL(key string) string
}

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Key         string
	Size        int64
	ContentType string
	Updated     time.Time
}

var (
	// ErrNotFound indicates a key is not in the store.
	ErrNotFound = errors.New("not found")

	// ErrNotConfigured indicates no bucket (or equivalent) is configured,
	// so no backend call was even attempted.
	ErrNotConfigured = errors.New("store not configured")

	// ErrUnavailable indicates the backing service could not be reached or
	// failed. Callers degrade (empty listing, 404); nothing retries.
	ErrUnavailable = errors.New("store unavailable")
)

func dup(b []byte) []byte {
	if b == nil {
		return nil
	}
	c := make([]byte, len(b))
	copy(c, b)
	return c
}
