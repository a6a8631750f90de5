// Package objstore provides access to the object store that holds window and
// result objects, plus the notification source that announces object creation.
package objstore

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("object not found")

// Store is the object storage interface. Implementations must be safe for
// concurrent use.
type Store interface {
	// Put writes body under bucket/key, overwriting any existing object.
	Put(ctx context.Context, bucket, key string, body []byte) error
	// Get returns the full content of bucket/key, or ErrNotFound.
	Get(ctx context.Context, bucket, key string) ([]byte, error)
	// List returns the keys of all objects under prefix.
	List(ctx context.Context, bucket, prefix string) ([]string, error)
}
