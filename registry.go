package litdrive

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// BackendProvider creates live storage backends for drive identities.
type BackendProvider interface {
	// CreateBackend creates the backend serving the drive with the given
	// id, using the free-form provider configuration it was registered
	// with.
	CreateBackend(ctx context.Context, driveID string, cfg map[string]interface{}) (Backend, error)
}

// BackendProviderFunc creates storage backends.
type BackendProviderFunc func(context.Context, string, map[string]interface{}) (Backend, error)

// CreateBackend creates a storage backend.
func (fn BackendProviderFunc) CreateBackend(ctx context.Context, driveID string, cfg map[string]interface{}) (Backend, error) {
	return fn(ctx, driveID, cfg)
}

// Registry maps identifier protocols to backend providers and hands out the
// live backend for a drive identity. Backends are cached per identity, so
// every handle of the same drive shares one backend within a process.
// Registry is thread-safe (but the Backend implementations may not be).
type Registry struct {
	mux       sync.RWMutex
	providers map[string]registeredProvider
	backends  map[string]Backend
}

type registeredProvider struct {
	provider BackendProvider
	config   map[string]interface{}
}

// DefaultRegistry is the registry New falls back to when no WithRegistry
// option is given.
var DefaultRegistry = NewRegistry()

// NewRegistry returns a new, empty backend registry.
//
// Normally you don't instantiate the registry with NewRegistry() but through
// the AutoWire config.
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]registeredProvider),
		backends:  make(map[string]Backend),
	}
}

// RegisterOption is a provider registration option.
type RegisterOption func(*registerConfig)

type registerConfig struct {
	replace bool
	config  map[string]interface{}
}

// Replace will replace the previously registered provider for the same
// protocol.
func Replace() RegisterOption {
	return func(cfg *registerConfig) {
		cfg.replace = true
	}
}

// WithProviderConfig passes a free-form configuration to the provider every
// time it creates a backend.
func WithProviderConfig(config map[string]interface{}) RegisterOption {
	return func(cfg *registerConfig) {
		cfg.config = config
	}
}

// Register registers a backend provider for a protocol ("lit://", "s3://",
// ...; the "://" suffix may be omitted). If the protocol already has a
// provider, it returns a DuplicateProviderError unless the Replace option
// is used.
func (r *Registry) Register(protocol string, provider BackendProvider, options ...RegisterOption) error {
	var cfg registerConfig
	for _, opt := range options {
		opt(&cfg)
	}

	protocol = normalizeProtocol(protocol)

	r.mux.Lock()
	defer r.mux.Unlock()

	if _, ok := r.providers[protocol]; ok && !cfg.replace {
		return DuplicateProviderError{Protocol: protocol}
	}

	r.providers[protocol] = registeredProvider{
		provider: provider,
		config:   cfg.config,
	}

	return nil
}

// Backend returns the live backend for the given identity, creating it
// through the registered provider on first use. If no provider is registered
// for the identity's protocol, it returns an UnregisteredProviderError.
func (r *Registry) Backend(ctx context.Context, identity Identity) (Backend, error) {
	r.mux.RLock()
	backend, ok := r.backends[identity.String()]
	r.mux.RUnlock()
	if ok {
		return backend, nil
	}

	r.mux.Lock()
	defer r.mux.Unlock()

	if backend, ok := r.backends[identity.String()]; ok {
		return backend, nil
	}

	reg, ok := r.providers[identity.Protocol]
	if !ok {
		return nil, UnregisteredProviderError{Protocol: identity.Protocol}
	}

	backend, err := reg.provider.CreateBackend(ctx, identity.ID, reg.config)
	if err != nil {
		return nil, fmt.Errorf("create backend for %s: %w", identity, err)
	}

	r.backends[identity.String()] = backend

	return backend, nil
}

func normalizeProtocol(protocol string) string {
	if !strings.HasSuffix(protocol, "://") {
		protocol += "://"
	}
	return protocol
}

// DuplicateProviderError is returned when a provider is registered for a
// protocol that already has one.
type DuplicateProviderError struct {
	Protocol string
}

func (err DuplicateProviderError) Error() string {
	return fmt.Sprintf("duplicate provider for protocol '%s'", err.Protocol)
}

// UnregisteredProviderError is returned when no provider is registered for
// a protocol.
type UnregisteredProviderError struct {
	Protocol string
}

func (err UnregisteredProviderError) Error() string {
	return fmt.Sprintf("no backend provider registered for protocol '%s'", err.Protocol)
}
