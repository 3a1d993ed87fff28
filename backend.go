package litdrive

import "context"

// Backend provides the storage operations a Drive needs from a shared,
// path-addressable object store. Keys are flat slash-separated paths and an
// instance is scoped to a single drive identity.
//
// Visibility may be eventual: an object put by one process is not guaranteed
// to be immediately listable from another. The polling in Drive.Get exists
// to absorb exactly that.
type Backend interface {
	// Put writes b to the object at the given key.
	Put(ctx context.Context, key string, b []byte) error
	// Get retrieves the object at the given key.
	Get(ctx context.Context, key string) ([]byte, error)
	// List returns the keys equal to or below the given prefix.
	// An empty prefix lists every key. A prefix that matches nothing
	// yields an empty slice, not an error.
	List(ctx context.Context, prefix string) ([]string, error)
	// Delete removes the object at the given key.
	Delete(ctx context.Context, key string) error
	// Exists reports whether an object is stored at the given key.
	Exists(ctx context.Context, key string) (bool, error)
}
