// Package ipfs provides the IPFS drive backend. Objects are stored in the
// mutable file system (MFS) of an IPFS node, so all workers talking to the
// same node share them.
package ipfs

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path"
	"sort"
	"strings"

	shell "github.com/ipfs/go-ipfs-api"
	"github.com/litdrive/litdrive"
)

// Backend is the IPFS drive backend. Keys map to MFS paths below a
// per-drive root directory.
type Backend struct {
	Shell  *shell.Shell
	Config Config
}

// Config is the backend configuration.
type Config struct {
	Root string
}

// Option is a backend configuration option.
type Option func(*Config)

// Root sets the MFS directory all keys are stored below. Defaults to
// "/litdrive".
func Root(root string) Option {
	return func(cfg *Config) {
		cfg.Root = root
	}
}

// NewBackend creates a new IPFS drive backend on the given shell.
func NewBackend(sh *shell.Shell, options ...Option) *Backend {
	if sh == nil {
		panic("invalid ipfs shell")
	}

	cfg := Config{Root: "/litdrive"}
	for _, opt := range options {
		opt(&cfg)
	}

	return &Backend{
		Shell:  sh,
		Config: cfg,
	}
}

func (be *Backend) mfsPath(key string) string {
	return path.Join(be.Config.Root, key)
}

// Put writes b to the object at the given key.
func (be *Backend) Put(ctx context.Context, key string, b []byte) error {
	return be.Shell.FilesWrite(ctx, be.mfsPath(key), bytes.NewReader(b),
		shell.FilesWrite.Create(true),
		shell.FilesWrite.Parents(true),
		shell.FilesWrite.Truncate(true),
	)
}

// Get retrieves the object at the given key.
func (be *Backend) Get(ctx context.Context, key string) ([]byte, error) {
	r, err := be.Shell.FilesRead(ctx, be.mfsPath(key))
	if err != nil {
		if isNotExist(err) {
			return nil, litdrive.NotFoundError{Path: key}
		}
		return nil, err
	}
	defer r.Close()

	return io.ReadAll(r)
}

// List returns the keys equal to or below the given prefix, sorted.
func (be *Backend) List(ctx context.Context, prefix string) ([]string, error) {
	start := be.mfsPath(prefix)

	stat, err := be.Shell.FilesStat(ctx, start)
	if err != nil {
		if isNotExist(err) {
			return []string{}, nil
		}
		return nil, err
	}

	if stat.Type != "directory" {
		return []string{prefix}, nil
	}

	var keys []string
	if err := be.walk(ctx, start, prefix, &keys); err != nil {
		return nil, err
	}

	sort.Strings(keys)

	return keys, nil
}

func (be *Backend) walk(ctx context.Context, dir, key string, keys *[]string) error {
	entries, err := be.Shell.FilesLs(ctx, dir, shell.FilesLs.Stat(true))
	if err != nil {
		return err
	}

	for _, entry := range entries {
		childDir := path.Join(dir, entry.Name)
		childKey := path.Join(key, entry.Name)

		stat, err := be.Shell.FilesStat(ctx, childDir)
		if err != nil {
			return err
		}

		if stat.Type == "directory" {
			if err := be.walk(ctx, childDir, childKey, keys); err != nil {
				return err
			}
			continue
		}

		*keys = append(*keys, childKey)
	}

	return nil
}

// Delete removes the object at the given key.
func (be *Backend) Delete(ctx context.Context, key string) error {
	err := be.Shell.FilesRm(ctx, be.mfsPath(key), true)
	if err != nil && isNotExist(err) {
		return litdrive.NotFoundError{Path: key}
	}

	return err
}

// Exists reports whether an object is stored at the given key.
func (be *Backend) Exists(ctx context.Context, key string) (bool, error) {
	stat, err := be.Shell.FilesStat(ctx, be.mfsPath(key))
	if err != nil {
		if isNotExist(err) {
			return false, nil
		}
		return false, err
	}

	return stat.Type != "directory", nil
}

// The files API reports missing paths as an API error whose message names
// the condition; it carries no stable numeric code. Non-API errors (older
// node versions wrap them differently) fall back to a string match.
func isNotExist(err error) bool {
	var apiErr *shell.Error
	if errors.As(err, &apiErr) {
		return strings.Contains(apiErr.Message, "does not exist")
	}

	return strings.Contains(err.Error(), "does not exist")
}
