// Package gridfs implements storage.Backend on a MongoDB GridFS bucket.
// Content is split into chunks by the driver and streamed without
// buffering whole objects; the backend-assigned ObjectID is the storage
// key, with the stored name kept as file metadata only. GridFS keeps
// in-flight chunks invisible until the files document is committed on
// stream close, which gives the all-or-nothing read guarantee.
package gridfs

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/shelfkeep/shelfkeep/internal/config"
	"github.com/shelfkeep/shelfkeep/internal/storage"
)

// Backend stores objects in a GridFS bucket. The client is constructed
// once at startup and closed during shutdown; there is no lazily
// initialized global connection.
type Backend struct {
	client *mongo.Client
	bucket *gridfs.Bucket
	logger zerolog.Logger
}

// New connects to MongoDB and opens the configured GridFS bucket.
func New(ctx context.Context, cfg config.MongoConfig, logger zerolog.Logger) (*Backend, error) {
	connectCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	bucketOpts := options.GridFSBucket().SetName(cfg.Bucket)
	if cfg.ChunkSizeBytes > 0 {
		bucketOpts.SetChunkSizeBytes(cfg.ChunkSizeBytes)
	}

	bucket, err := gridfs.NewBucket(client.Database(cfg.Database), bucketOpts)
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to open GridFS bucket: %w", err)
	}

	logger.Info().
		Str("database", cfg.Database).
		Str("bucket", cfg.Bucket).
		Msg("connected to MongoDB GridFS")

	return &Backend{
		client: client,
		bucket: bucket,
		logger: logger.With().Str("backend", "gridfs").Logger(),
	}, nil
}

// Name returns the backend identifier.
func (b *Backend) Name() string {
	return "gridfs"
}

// Close disconnects the MongoDB client.
func (b *Backend) Close(ctx context.Context) error {
	return b.client.Disconnect(ctx)
}

// Store pipes body into a chunked upload stream. On any write failure the
// stream is aborted, which deletes the chunks already written.
func (b *Backend) Store(ctx context.Context, name string, body io.Reader, meta storage.WriteMetadata) (string, int64, error) {
	uploadOpts := options.GridFSUpload().SetMetadata(bson.D{
		{Key: "contentType", Value: meta.ContentType},
		{Key: "fileType", Value: meta.FileType},
	})

	stream, err := b.bucket.OpenUploadStream(name, uploadOpts)
	if err != nil {
		return "", 0, fmt.Errorf("failed to open upload stream: %w", err)
	}

	size, err := io.Copy(stream, readerWithContext(ctx, body))
	if err != nil {
		if abortErr := stream.Abort(); abortErr != nil {
			b.logger.Warn().Err(abortErr).Str("name", name).Msg("failed to abort upload stream")
		}
		return "", 0, fmt.Errorf("failed to write chunks: %w", err)
	}

	if err := stream.Close(); err != nil {
		return "", 0, fmt.Errorf("failed to commit upload stream: %w", err)
	}

	id, ok := stream.FileID.(primitive.ObjectID)
	if !ok {
		return "", 0, fmt.Errorf("unexpected GridFS file id type %T", stream.FileID)
	}

	b.logger.Debug().Str("name", name).Str("key", id.Hex()).Int64("size", size).Msg("object stored")

	return id.Hex(), size, nil
}

// Retrieve reconstructs the full byte stream from chunks.
func (b *Backend) Retrieve(ctx context.Context, key string) (io.ReadCloser, int64, error) {
	stream, err := b.openStream(ctx, key)
	if err != nil {
		return nil, 0, err
	}
	return &limitedStream{
		Reader: readerWithContext(ctx, stream),
		closer: stream,
	}, stream.GetFile().Length, nil
}

// RetrieveRange opens a stream over length bytes starting at offset by
// skipping into the chunk sequence.
func (b *Backend) RetrieveRange(ctx context.Context, key string, offset, length int64) (io.ReadCloser, error) {
	stream, err := b.openStream(ctx, key)
	if err != nil {
		return nil, err
	}

	if _, err := stream.Skip(offset); err != nil {
		stream.Close()
		return nil, fmt.Errorf("failed to skip to offset %d: %w", offset, err)
	}

	return &limitedStream{
		Reader: io.LimitReader(readerWithContext(ctx, stream), length),
		closer: stream,
	}, nil
}

// Delete removes the files document and all chunks for key.
func (b *Backend) Delete(ctx context.Context, key string) error {
	id, err := primitive.ObjectIDFromHex(key)
	if err != nil {
		return storage.ErrNotFound
	}

	if err := b.bucket.Delete(id); err != nil {
		if errors.Is(err, gridfs.ErrFileNotFound) {
			return storage.ErrNotFound
		}
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

// Exists checks the files collection for key.
func (b *Backend) Exists(ctx context.Context, key string) (bool, error) {
	id, err := primitive.ObjectIDFromHex(key)
	if err != nil {
		return false, nil
	}

	count, err := b.bucket.GetFilesCollection().CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return false, fmt.Errorf("failed to query files collection: %w", err)
	}
	return count > 0, nil
}

func (b *Backend) openStream(ctx context.Context, key string) (*gridfs.DownloadStream, error) {
	id, err := primitive.ObjectIDFromHex(key)
	if err != nil {
		return nil, storage.ErrNotFound
	}

	// Deadlines are enforced by wrapping each stream in a ctx-aware
	// reader; bucket-level Set*Deadline mutates state shared across
	// requests and would race.
	stream, err := b.bucket.OpenDownloadStream(id)
	if err != nil {
		if errors.Is(err, gridfs.ErrFileNotFound) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to open download stream: %w", err)
	}
	return stream, nil
}

// limitedStream pairs a wrapped reader with the stream it draws from.
type limitedStream struct {
	io.Reader
	closer io.Closer
}

func (l *limitedStream) Close() error {
	return l.closer.Close()
}

// readerWithContext cancels an in-flight copy when the request context
// is done (client disconnect, shutdown).
func readerWithContext(ctx context.Context, r io.Reader) io.Reader {
	return &ctxReader{ctx: ctx, r: r}
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
