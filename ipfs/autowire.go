package ipfs

import (
	"context"
	"fmt"
	"path"

	shell "github.com/ipfs/go-ipfs-api"
	"github.com/litdrive/litdrive"
)

const (
	// Provider is the provider name for IPFS.
	Provider = "ipfs"

	defaultPort = "5001"
)

// Register registers IPFS as a provider for the backend autowire. The
// configuration requires a "host" key; "port" defaults to the IPFS API
// port 5001.
func Register(cfg litdrive.AutoWireConfig) {
	cfg.RegisterProvider(Provider, litdrive.BackendProviderFunc(NewAutoWire))
}

// NewAutoWire creates a new IPFS drive backend from an autowire
// configuration. Every drive is rooted at its id below the MFS root.
func NewAutoWire(_ context.Context, driveID string, cfg map[string]interface{}) (litdrive.Backend, error) {
	if cfg == nil {
		cfg = make(map[string]interface{})
	}

	host, ok := cfg["host"].(string)
	if !ok || host == "" {
		return nil, InvalidConfigValueError{
			Key:     "host",
			Details: "the IPFS API host must be set",
		}
	}

	port, ok := cfg["port"].(string)
	if !ok || port == "" {
		port = defaultPort
	}

	sh := shell.NewShell(fmt.Sprintf("%s:%s", host, port))
	if !sh.IsUp() {
		return nil, fmt.Errorf("ipfs node %s:%s is not reachable", host, port)
	}

	return NewBackend(sh, Root(path.Join("/litdrive", driveID))), nil
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
