package s3

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/litdrive/litdrive"
)

const (
	// Provider is the provider name for Amazon S3.
	Provider = "s3"
)

// Register registers Amazon S3 as a provider for the backend autowire.
func Register(cfg litdrive.AutoWireConfig) {
	cfg.RegisterProvider(Provider, litdrive.BackendProviderFunc(NewAutoWire))
}

// NewAutoWire creates a new Amazon S3 drive backend from an autowire
// configuration. Every drive is rooted at its id within the configured
// bucket.
func NewAutoWire(ctx context.Context, driveID string, cfg map[string]interface{}) (litdrive.Backend, error) {
	if cfg == nil {
		cfg = make(map[string]interface{})
	}

	region, ok := cfg["region"].(string)
	if !ok || region == "" {
		return nil, InvalidConfigValueError{
			Key:     "region",
			Details: "region must be set",
		}
	}

	bucket, ok := cfg["bucket"].(string)
	if !ok || bucket == "" {
		return nil, InvalidConfigValueError{
			Key:     "bucket",
			Details: "storage bucket must be set",
		}
	}

	accessKeyID, ok := cfg["accessKeyId"].(string)
	if !ok || accessKeyID == "" {
		return nil, InvalidConfigValueError{
			Key:     "accessKeyId",
			Details: "accessKeyId must be set",
		}
	}

	secretAccessKey, ok := cfg["secretAccessKey"].(string)
	if !ok || secretAccessKey == "" {
		return nil, InvalidConfigValueError{
			Key:     "secretAccessKey",
			Details: "secretAccessKey must be set",
		}
	}

	awscfg, err := config.LoadDefaultConfig(
		ctx,
		config.WithRegion(region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return NewBackend(s3.NewFromConfig(awscfg), region, bucket, Root(driveID)), nil
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
