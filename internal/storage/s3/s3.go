// Package s3 implements storage.Backend on S3-compatible object storage.
// Works with AWS S3, MinIO and other S3-compatible services.
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog"

	"github.com/shelfkeep/shelfkeep/internal/config"
	"github.com/shelfkeep/shelfkeep/internal/storage"
)

// Backend stores objects in a single S3 bucket, keyed by stored name.
// S3 PutObject is atomic per key, so a reader sees either the complete
// object or nothing.
type Backend struct {
	client *s3.Client
	bucket string
	logger zerolog.Logger
}

// New creates an S3 backend from configuration. A custom endpoint
// switches the client to path-style addressing for MinIO-style services.
func New(ctx context.Context, cfg config.S3StorageConfig, logger zerolog.Logger) (*Backend, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle || cfg.Endpoint != ""
	})

	logger.Info().
		Str("bucket", cfg.Bucket).
		Str("region", cfg.Region).
		Str("endpoint", cfg.Endpoint).
		Msg("initialized S3 storage")

	return &Backend{
		client: client,
		bucket: cfg.Bucket,
		logger: logger.With().Str("backend", "s3").Logger(),
	}, nil
}

// Name returns the backend identifier.
func (b *Backend) Name() string {
	return "s3"
}

// Store uploads body under name and returns the key (the name itself)
// and the byte count streamed.
func (b *Backend) Store(ctx context.Context, name string, body io.Reader, meta storage.WriteMetadata) (string, int64, error) {
	counting := &countingReader{r: body}

	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(b.bucket),
		Key:         aws.String(name),
		Body:        counting,
		ContentType: aws.String(meta.ContentType),
		Metadata: map[string]string{
			"file-type": meta.FileType,
		},
	})
	if err != nil {
		if counting.err != nil {
			// Surface the source failure (size limit, client disconnect)
			// rather than the SDK's wrapping of it.
			return "", 0, fmt.Errorf("failed to upload object: %w", counting.err)
		}
		return "", 0, fmt.Errorf("failed to upload object: %w", err)
	}

	b.logger.Debug().Str("key", name).Int64("size", counting.n).Msg("object stored")

	return name, counting.n, nil
}

// Retrieve opens the object stored under key.
func (b *Backend) Retrieve(ctx context.Context, key string) (io.ReadCloser, int64, error) {
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNoSuchKey(err) {
			return nil, 0, storage.ErrNotFound
		}
		return nil, 0, fmt.Errorf("failed to get object: %w", err)
	}
	return out.Body, aws.ToInt64(out.ContentLength), nil
}

// RetrieveRange fetches length bytes starting at offset via an HTTP
// range request.
func (b *Backend) RetrieveRange(ctx context.Context, key string, offset, length int64) (io.ReadCloser, error) {
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
		Range:  aws.String(fmt.Sprintf("bytes=%d-%d", offset, offset+length-1)),
	})
	if err != nil {
		if isNoSuchKey(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get object range: %w", err)
	}
	return out.Body, nil
}

// Delete removes the object stored under key.
func (b *Backend) Delete(ctx context.Context, key string) error {
	// DeleteObject is idempotent in S3, so check existence first to keep
	// the Backend contract.
	exists, err := b.Exists(ctx, key)
	if err != nil {
		return err
	}
	if !exists {
		return storage.ErrNotFound
	}

	_, err = b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

// Exists checks whether an object is stored under key.
func (b *Backend) Exists(ctx context.Context, key string) (bool, error) {
	_, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to head object: %w", err)
	}
	return true, nil
}

func isNoSuchKey(err error) bool {
	var noSuchKey *types.NoSuchKey
	return errors.As(err, &noSuchKey)
}

// countingReader tracks bytes read and remembers the first source error
// so it can be distinguished from SDK transport errors.
type countingReader struct {
	r   io.Reader
	n   int64
	err error
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	if err != nil && err != io.EOF {
		c.err = err
	}
	return n, err
}
