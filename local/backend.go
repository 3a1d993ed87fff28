// Package local provides the shared-directory drive backend. Pointing it at
// a directory all workers can reach (e.g. an NFS mount) gives drives a
// physical backing without any external service.
package local

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/litdrive/litdrive"
)

// Backend is a litdrive.Backend storing objects as files below a base
// directory. Writes go to a temporary file first and are renamed into
// place, so readers never observe a half-written object.
type Backend struct {
	dir string
}

// NewBackend creates a backend rooted at dir, creating it if necessary.
func NewBackend(dir string) (*Backend, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create backend directory: %w", err)
	}

	return &Backend{dir: dir}, nil
}

func (be *Backend) filePath(key string) string {
	return filepath.Join(be.dir, filepath.FromSlash(key))
}

// Put writes b to the object at the given key.
func (be *Backend) Put(_ context.Context, key string, b []byte) error {
	target := be.filePath(key)

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".put-")
	if err != nil {
		return err
	}

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}

	return os.Rename(tmp.Name(), target)
}

// Get retrieves the object at the given key.
func (be *Backend) Get(_ context.Context, key string) ([]byte, error) {
	b, err := os.ReadFile(be.filePath(key))
	if os.IsNotExist(err) {
		return nil, litdrive.NotFoundError{Path: key}
	}

	return b, err
}

// List returns the keys equal to or below the given prefix, sorted.
func (be *Backend) List(_ context.Context, prefix string) ([]string, error) {
	var keys []string

	err := filepath.WalkDir(be.dir, func(p string, entry fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".put-") {
			return nil
		}

		rel, err := filepath.Rel(be.dir, p)
		if err != nil {
			return err
		}

		key := filepath.ToSlash(rel)
		if prefix == "" || key == prefix || strings.HasPrefix(key, prefix+"/") {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(keys)

	return keys, nil
}

// Delete removes the object at the given key.
func (be *Backend) Delete(_ context.Context, key string) error {
	err := os.Remove(be.filePath(key))
	if os.IsNotExist(err) {
		return litdrive.NotFoundError{Path: key}
	}

	return err
}

// Exists reports whether an object is stored at the given key.
func (be *Backend) Exists(_ context.Context, key string) (bool, error) {
	info, err := os.Stat(be.filePath(key))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	return !info.IsDir(), nil
}
