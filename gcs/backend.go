// Package gcs provides the Google Cloud Storage drive backend.
package gcs

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path"
	"sort"
	"strings"

	gcs "cloud.google.com/go/storage"
	"github.com/litdrive/litdrive"
	"google.golang.org/api/iterator"
)

// Backend is the Google Cloud Storage drive backend. Objects live below a
// per-drive root prefix within the bucket.
type Backend struct {
	Client *gcs.Client
	Config Config
}

// Config is the backend configuration.
type Config struct {
	Bucket string
	Root   string
}

// Option is a backend configuration option.
type Option func(*Config)

// Root sets the object name prefix all keys are stored below. Usually the
// drive id.
func Root(root string) Option {
	return func(cfg *Config) {
		cfg.Root = root
	}
}

// NewBackend creates a new Google Cloud Storage drive backend.
func NewBackend(client *gcs.Client, bucket string, options ...Option) *Backend {
	if client == nil {
		panic("invalid google cloud storage client")
	}

	cfg := Config{Bucket: bucket}
	for _, opt := range options {
		opt(&cfg)
	}

	return &Backend{
		Client: client,
		Config: cfg,
	}
}

func (be *Backend) objectName(key string) string {
	return path.Join(be.Config.Root, key)
}

// Put writes b to the object at the given key.
func (be *Backend) Put(ctx context.Context, key string, b []byte) error {
	obj := be.Client.Bucket(be.Config.Bucket).Object(be.objectName(key))

	w := obj.NewWriter(ctx)
	if _, err := io.Copy(w, bytes.NewReader(b)); err != nil {
		return err
	}

	return w.Close()
}

// Get retrieves the object at the given key.
func (be *Backend) Get(ctx context.Context, key string) ([]byte, error) {
	obj := be.Client.Bucket(be.Config.Bucket).Object(be.objectName(key))

	r, err := obj.NewReader(ctx)
	if err != nil {
		if errors.Is(err, gcs.ErrObjectNotExist) {
			return nil, litdrive.NotFoundError{Path: key}
		}
		return nil, err
	}
	defer r.Close()

	return io.ReadAll(r)
}

// List returns the keys equal to or below the given prefix, sorted.
func (be *Backend) List(ctx context.Context, prefix string) ([]string, error) {
	root := be.Config.Root
	query := &gcs.Query{}
	if remote := path.Join(root, prefix); remote != "" && remote != "." {
		query.Prefix = remote
	}

	var keys []string
	it := be.Client.Bucket(be.Config.Bucket).Objects(ctx, query)
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, err
		}

		key := attrs.Name
		if root != "" {
			if !strings.HasPrefix(key, root+"/") {
				continue
			}
			key = strings.TrimPrefix(key, root+"/")
		}
		if prefix == "" || key == prefix || strings.HasPrefix(key, prefix+"/") {
			keys = append(keys, key)
		}
	}

	sort.Strings(keys)

	return keys, nil
}

// Delete removes the object at the given key.
func (be *Backend) Delete(ctx context.Context, key string) error {
	return be.Client.Bucket(be.Config.Bucket).Object(be.objectName(key)).Delete(ctx)
}

// Exists reports whether an object is stored at the given key.
func (be *Backend) Exists(ctx context.Context, key string) (bool, error) {
	_, err := be.Client.Bucket(be.Config.Bucket).Object(be.objectName(key)).Attrs(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	return true, nil
}
