package memory

import (
	"context"

	"github.com/litdrive/litdrive"
)

const (
	// Provider is the provider name for the in-process backend.
	Provider = "memory"
)

// Register registers the in-process backend as a provider for the autowire.
func Register(cfg litdrive.AutoWireConfig) {
	cfg.RegisterProvider(Provider, NewProvider())
}

// NewProvider returns a provider that serves every drive id from its own
// fresh in-process backend. The registry caches the backend per identity,
// so all handles of one drive resolved through the same registry share it.
func NewProvider() litdrive.BackendProvider {
	return litdrive.BackendProviderFunc(func(context.Context, string, map[string]interface{}) (litdrive.Backend, error) {
		return NewBackend(), nil
	})
}
