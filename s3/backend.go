// Package s3 provides the Amazon S3 drive backend.
package s3

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/litdrive/litdrive"
)

// Backend is the Amazon S3 drive backend. Objects live below a per-drive
// root prefix within the bucket.
type Backend struct {
	Client *s3.Client
	Config Config
}

// Config is the backend configuration.
type Config struct {
	Bucket string
	Region string
	Root   string
}

// Option is a backend configuration option.
type Option func(*Config)

// Root sets the object key prefix all keys are stored below. Usually the
// drive id.
func Root(root string) Option {
	return func(cfg *Config) {
		cfg.Root = root
	}
}

// NewBackend creates a new Amazon S3 drive backend.
func NewBackend(client *s3.Client, region, bucket string, options ...Option) *Backend {
	cfg := Config{
		Region: region,
		Bucket: bucket,
	}

	for _, opt := range options {
		opt(&cfg)
	}

	return &Backend{
		Client: client,
		Config: cfg,
	}
}

func (be *Backend) objectKey(key string) string {
	return path.Join(be.Config.Root, key)
}

// Put writes b to the object at the given key.
func (be *Backend) Put(ctx context.Context, key string, b []byte) error {
	_, err := be.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(be.Config.Bucket),
		Key:    aws.String(be.objectKey(key)),
		Body:   bytes.NewReader(b),
	})

	return err
}

// Get retrieves the object at the given key.
func (be *Backend) Get(ctx context.Context, key string) ([]byte, error) {
	res, err := be.Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(be.Config.Bucket),
		Key:    aws.String(be.objectKey(key)),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, litdrive.NotFoundError{Path: key}
		}
		return nil, err
	}
	defer res.Body.Close()

	return io.ReadAll(res.Body)
}

// List returns the keys equal to or below the given prefix, sorted.
func (be *Backend) List(ctx context.Context, prefix string) ([]string, error) {
	root := be.Config.Root
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(be.Config.Bucket),
	}
	if remote := path.Join(root, prefix); remote != "" && remote != "." {
		input.Prefix = aws.String(remote)
	}

	var keys []string
	paginator := s3.NewListObjectsV2Paginator(be.Client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}

		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if root != "" {
				if !strings.HasPrefix(key, root+"/") {
					continue
				}
				key = strings.TrimPrefix(key, root+"/")
			}
			// The S3 prefix match is textual; drop siblings that merely
			// share the prefix string ("checkpoints2/..." for "checkpoints").
			if prefix == "" || key == prefix || strings.HasPrefix(key, prefix+"/") {
				keys = append(keys, key)
			}
		}
	}

	sort.Strings(keys)

	return keys, nil
}

// Delete removes the object at the given key.
func (be *Backend) Delete(ctx context.Context, key string) error {
	_, err := be.Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(be.Config.Bucket),
		Key:    aws.String(be.objectKey(key)),
	})

	return err
}

// Exists reports whether an object is stored at the given key.
func (be *Backend) Exists(ctx context.Context, key string) (bool, error) {
	_, err := be.Client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(be.Config.Bucket),
		Key:    aws.String(be.objectKey(key)),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, err
	}

	return true, nil
}
