package local

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/litdrive/litdrive"
)

const (
	// Provider is the provider name for the shared-directory backend.
	Provider = "local"
)

// Register registers the shared-directory backend as a provider for the
// autowire. The configuration requires a "dir" key naming the shared base
// directory; each drive gets its own subdirectory below it.
func Register(cfg litdrive.AutoWireConfig) {
	cfg.RegisterProvider(Provider, litdrive.BackendProviderFunc(NewAutoWire))
}

// NewAutoWire creates a shared-directory backend from an autowire
// configuration.
func NewAutoWire(_ context.Context, driveID string, cfg map[string]interface{}) (litdrive.Backend, error) {
	if cfg == nil {
		cfg = make(map[string]interface{})
	}

	dir, ok := cfg["dir"].(string)
	if !ok || dir == "" {
		return nil, InvalidConfigValueError{
			Key:     "dir",
			Details: "the shared base directory must be set",
		}
	}

	return NewBackend(filepath.Join(dir, driveID))
}

// NewProvider returns a provider serving every drive from its own
// subdirectory below dir.
func NewProvider(dir string) litdrive.BackendProvider {
	return litdrive.BackendProviderFunc(func(_ context.Context, driveID string, _ map[string]interface{}) (litdrive.Backend, error) {
		return NewBackend(filepath.Join(dir, driveID))
	})
}

// InvalidConfigValueError means the autowire configuration has an invalid
// config value.
type InvalidConfigValueError struct {
	Key     string
	Details string
}

func (err InvalidConfigValueError) Error() string {
	return fmt.Sprintf("invalid configuration value for key '%s': %s", err.Key, err.Details)
}
