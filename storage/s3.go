// Package storage implements object storage for account media over any
// S3 compatible endpoint.
package storage

import (
	"context"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	goerrors "github.com/goliatone/go-errors"

	accounts "github.com/veilnote/go-accounts"
)

// Config holds the S3 connection settings.
type Config struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
	// PublicURL is the base under which uploaded keys are reachable.
	PublicURL string
}

// S3Storage implements accounts.ObjectStorage.
type S3Storage struct {
	config Config
	client *s3.Client
}

var _ accounts.ObjectStorage = (*S3Storage)(nil)

// New connects to the configured endpoint.
func New(ctx context.Context, cfg Config) (*S3Storage, error) {
	if cfg.Bucket == "" {
		return nil, goerrors.New("storage: bucket is required", goerrors.CategoryInternal)
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "storage: failed to load AWS config")
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Storage{config: cfg, client: client}, nil
}

// Upload implements accounts.ObjectStorage.
func (s *S3Storage) Upload(ctx context.Context, key, contentType string, body io.Reader) (accounts.MediaRef, error) {
	input := &s3.PutObjectInput{
		Bucket: aws.String(s.config.Bucket),
		Key:    aws.String(key),
		Body:   body,
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return accounts.MediaRef{}, goerrors.Wrap(err, goerrors.CategoryOperation, "storage: upload failed").
			WithMetadata(map[string]any{"key": key})
	}

	return accounts.MediaRef{
		URL: s.publicURL(key),
		Key: key,
	}, nil
}

// Destroy implements accounts.ObjectStorage. Removing a missing key is a
// no-op, matching S3 delete semantics.
func (s *S3Storage) Destroy(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.config.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "storage: delete failed").
			WithMetadata(map[string]any{"key": key})
	}

	return nil
}

// DestroyMany implements accounts.ObjectStorage.
func (s *S3Storage) DestroyMany(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}

	objects := make([]types.ObjectIdentifier, 0, len(keys))
	for _, key := range keys {
		if key == "" {
			continue
		}
		objects = append(objects, types.ObjectIdentifier{Key: aws.String(key)})
	}
	if len(objects) == 0 {
		return nil
	}

	_, err := s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
		Bucket: aws.String(s.config.Bucket),
		Delete: &types.Delete{
			Objects: objects,
			Quiet:   aws.Bool(true),
		},
	})
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "storage: batch delete failed").
			WithMetadata(map[string]any{"count": len(objects)})
	}

	return nil
}

func (s *S3Storage) publicURL(key string) string {
	base := s.config.PublicURL
	if base == "" {
		base = "https://" + s.config.Bucket + ".s3." + s.config.Region + ".amazonaws.com"
	}
	return strings.TrimSuffix(base, "/") + "/" + key
}
