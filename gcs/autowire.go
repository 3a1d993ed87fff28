package gcs

import (
	"context"
	"fmt"

	gcs "cloud.google.com/go/storage"
	"github.com/litdrive/litdrive"
	"google.golang.org/api/option"
)

const (
	// Provider is the provider name for Google Cloud Storage.
	Provider = "gcs"
)

// Register registers Google Cloud Storage as a provider for the backend
// autowire.
func Register(cfg litdrive.AutoWireConfig) {
	cfg.RegisterProvider(Provider, litdrive.BackendProviderFunc(NewAutoWire))
}

// NewAutoWire creates a new Google Cloud Storage drive backend from an
// autowire configuration. Every drive is rooted at its id within the
// configured bucket.
func NewAutoWire(ctx context.Context, driveID string, cfg map[string]interface{}) (litdrive.Backend, error) {
	if cfg == nil {
		cfg = make(map[string]interface{})
	}

	bucket, ok := cfg["bucket"].(string)
	if !ok || bucket == "" {
		return nil, InvalidConfigValueError{
			Key:     "bucket",
			Details: "storage bucket must be set",
		}
	}

	var opts []option.ClientOption
	if serviceAccount, ok := cfg["serviceAccount"].(string); ok && serviceAccount != "" {
		opts = append(opts, option.WithCredentialsFile(serviceAccount))
	}

	client, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}

	return NewBackend(client, bucket, Root(driveID)), nil
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
