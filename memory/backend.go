// Package memory provides the in-process drive backend.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/litdrive/litdrive"
)

// Backend is a litdrive.Backend backed by a mutex-guarded map. Intended for
// tests and single-process apps; it shares state only between handles that
// resolve it through the same registry.
type Backend struct {
	mux     sync.RWMutex
	objects map[string][]byte
}

// NewBackend creates a new in-process backend.
func NewBackend() *Backend {
	return &Backend{
		objects: make(map[string][]byte),
	}
}

// Put writes b to the object at the given key.
func (be *Backend) Put(_ context.Context, key string, b []byte) error {
	be.mux.Lock()
	defer be.mux.Unlock()

	buf := make([]byte, len(b))
	copy(buf, b)
	be.objects[key] = buf

	return nil
}

// Get retrieves the object at the given key.
func (be *Backend) Get(_ context.Context, key string) ([]byte, error) {
	be.mux.RLock()
	defer be.mux.RUnlock()

	b, ok := be.objects[key]
	if !ok {
		return nil, litdrive.NotFoundError{Path: key}
	}

	buf := make([]byte, len(b))
	copy(buf, b)

	return buf, nil
}

// List returns the keys equal to or below the given prefix, sorted.
func (be *Backend) List(_ context.Context, prefix string) ([]string, error) {
	be.mux.RLock()
	defer be.mux.RUnlock()

	keys := make([]string, 0, len(be.objects))
	for key := range be.objects {
		if prefix == "" || key == prefix || strings.HasPrefix(key, prefix+"/") {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	return keys, nil
}

// Delete removes the object at the given key.
func (be *Backend) Delete(_ context.Context, key string) error {
	be.mux.Lock()
	defer be.mux.Unlock()

	if _, ok := be.objects[key]; !ok {
		return litdrive.NotFoundError{Path: key}
	}
	delete(be.objects, key)

	return nil
}

// Exists reports whether an object is stored at the given key.
func (be *Backend) Exists(_ context.Context, key string) (bool, error) {
	be.mux.RLock()
	defer be.mux.RUnlock()

	_, ok := be.objects[key]

	return ok, nil
}
