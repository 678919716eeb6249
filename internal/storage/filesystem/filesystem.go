// Package filesystem implements storage.Backend on the local filesystem.
// Each object is one file in a fixed upload directory, keyed by its
// stored name. Writes go to a temp directory first and are renamed into
// place, so a reader never observes a partial object.
package filesystem

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/shelfkeep/shelfkeep/internal/storage"
)

// Backend stores objects as flat files under dataDir.
type Backend struct {
	dataDir string
	tempDir string
	logger  zerolog.Logger
}

// New creates a filesystem backend, creating the data and temp
// directories if needed. Creation is idempotent.
func New(dataDir, tempDir string, logger zerolog.Logger) (*Backend, error) {
	for _, dir := range []string{dataDir, tempDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return &Backend{
		dataDir: dataDir,
		tempDir: tempDir,
		logger:  logger.With().Str("backend", "filesystem").Logger(),
	}, nil
}

// Name returns the backend identifier.
func (b *Backend) Name() string {
	return "filesystem"
}

// Store streams body into a temp file and renames it to dataDir/name on
// success. The temp file is removed on every failure path, including
// context cancellation mid-stream.
func (b *Backend) Store(ctx context.Context, name string, body io.Reader, _ storage.WriteMetadata) (string, int64, error) {
	if err := validateName(name); err != nil {
		return "", 0, err
	}

	tmp, err := os.CreateTemp(b.tempDir, "upload-*")
	if err != nil {
		return "", 0, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	// Guaranteed cleanup: until the rename succeeds, the temp file is
	// removed no matter how we exit.
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			if rmErr := os.Remove(tmpName); rmErr != nil && !os.IsNotExist(rmErr) {
				b.logger.Warn().Err(rmErr).Str("path", tmpName).Msg("failed to remove temp file")
			}
		}
	}()

	size, err := io.Copy(tmp, readerWithContext(ctx, body))
	if err != nil {
		return "", 0, fmt.Errorf("failed to write content: %w", err)
	}

	if err := tmp.Sync(); err != nil {
		return "", 0, fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", 0, fmt.Errorf("failed to close temp file: %w", err)
	}

	finalPath := filepath.Join(b.dataDir, name)
	if err := os.Rename(tmpName, finalPath); err != nil {
		return "", 0, fmt.Errorf("failed to move content into place: %w", err)
	}
	committed = true

	b.logger.Debug().Str("name", name).Int64("size", size).Msg("object stored")

	return name, size, nil
}

// Retrieve opens the file stored under key and reports its size.
func (b *Backend) Retrieve(ctx context.Context, key string) (io.ReadCloser, int64, error) {
	if err := validateName(key); err != nil {
		return nil, 0, err
	}

	f, err := os.Open(filepath.Join(b.dataDir, key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, storage.ErrNotFound
		}
		return nil, 0, fmt.Errorf("failed to open object: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, fmt.Errorf("failed to stat object: %w", err)
	}

	return f, info.Size(), nil
}

// RetrieveRange opens a stream over length bytes starting at offset.
func (b *Backend) RetrieveRange(ctx context.Context, key string, offset, length int64) (io.ReadCloser, error) {
	f, _, err := b.Retrieve(ctx, key)
	if err != nil {
		return nil, err
	}

	file := f.(*os.File)
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to seek to offset %d: %w", offset, err)
	}

	return &sectionReadCloser{
		Reader: io.LimitReader(file, length),
		closer: file,
	}, nil
}

// Delete removes the file stored under key.
func (b *Backend) Delete(ctx context.Context, key string) error {
	if err := validateName(key); err != nil {
		return err
	}

	if err := os.Remove(filepath.Join(b.dataDir, key)); err != nil {
		if os.IsNotExist(err) {
			return storage.ErrNotFound
		}
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

// Exists checks whether a file is stored under key.
func (b *Backend) Exists(ctx context.Context, key string) (bool, error) {
	if err := validateName(key); err != nil {
		return false, err
	}

	_, err := os.Stat(filepath.Join(b.dataDir, key))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat object: %w", err)
	}
	return true, nil
}

// validateName rejects keys that could escape the upload directory.
// Stored names are generated server-side, so a violation here indicates
// a programming error or a forged key.
func validateName(name string) error {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("invalid storage key %q: %w", name, storage.ErrNotFound)
	}
	return nil
}

// sectionReadCloser pairs a limited reader with the file it draws from.
type sectionReadCloser struct {
	io.Reader
	closer io.Closer
}

func (s *sectionReadCloser) Close() error {
	return s.closer.Close()
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
