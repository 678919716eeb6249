package filesystem

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/shelfkeep/shelfkeep/internal/storage"
)

func newTestBackend(t *testing.T) (*Backend, string, string) {
	t.Helper()
	dataDir := filepath.Join(t.TempDir(), "uploads")
	tempDir := filepath.Join(t.TempDir(), "temp")

	b, err := New(dataDir, tempDir, zerolog.Nop())
	require.NoError(t, err)
	return b, dataDir, tempDir
}

func TestStoreAndRetrieveRoundTrip(t *testing.T) {
	b, _, _ := newTestBackend(t)
	ctx := context.Background()
	content := []byte("hello shelfkeep")

	key, size, err := b.Store(ctx, "abc.png", bytes.NewReader(content), storage.WriteMetadata{})
	require.NoError(t, err)
	require.Equal(t, "abc.png", key)
	require.Equal(t, int64(len(content)), size)

	r, gotSize, err := b.Retrieve(ctx, key)
	require.NoError(t, err)
	defer r.Close()

	require.Equal(t, int64(len(content)), gotSize)
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Equal(t, content, got)
}

func TestRetrieveUnknownKey(t *testing.T) {
	b, _, _ := newTestBackend(t)

	_, _, err := b.Retrieve(context.Background(), "missing.pdf")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRetrieveRange(t *testing.T) {
	b, _, _ := newTestBackend(t)
	ctx := context.Background()

	_, _, err := b.Store(ctx, "r.pdf", strings.NewReader("0123456789"), storage.WriteMetadata{})
	require.NoError(t, err)

	r, err := b.RetrieveRange(ctx, "r.pdf", 2, 4)
	require.NoError(t, err)
	defer r.Close()

	got, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Equal(t, "2345", string(got))
}

func TestStoreFailureLeavesNoArtifacts(t *testing.T) {
	b, dataDir, tempDir := newTestBackend(t)
	ctx := context.Background()

	src := io.MultiReader(
		strings.NewReader("some bytes"),
		&failingReader{err: errors.New("connection reset")},
	)

	_, _, err := b.Store(ctx, "partial.png", src, storage.WriteMetadata{})
	require.Error(t, err)

	// The final path must not exist and the temp dir must be empty.
	_, statErr := os.Stat(filepath.Join(dataDir, "partial.png"))
	require.True(t, os.IsNotExist(statErr))

	entries, err := os.ReadDir(tempDir)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestStoreAbortsOnCanceledContext(t *testing.T) {
	b, dataDir, tempDir := newTestBackend(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := b.Store(ctx, "canceled.jpg", strings.NewReader("data"), storage.WriteMetadata{})
	require.ErrorIs(t, err, context.Canceled)

	_, statErr := os.Stat(filepath.Join(dataDir, "canceled.jpg"))
	require.True(t, os.IsNotExist(statErr))

	entries, err := os.ReadDir(tempDir)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestStorePropagatesSourceError(t *testing.T) {
	b, _, _ := newTestBackend(t)

	sentinel := errors.New("limit crossed")
	_, _, err := b.Store(context.Background(), "big.png", &failingReader{err: sentinel}, storage.WriteMetadata{})
	require.ErrorIs(t, err, sentinel)
}

func TestDeleteAndExists(t *testing.T) {
	b, _, _ := newTestBackend(t)
	ctx := context.Background()

	_, _, err := b.Store(ctx, "d.png", strings.NewReader("x"), storage.WriteMetadata{})
	require.NoError(t, err)

	ok, err := b.Exists(ctx, "d.png")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, b.Delete(ctx, "d.png"))

	ok, err = b.Exists(ctx, "d.png")
	require.NoError(t, err)
	require.False(t, ok)

	require.ErrorIs(t, b.Delete(ctx, "d.png"), storage.ErrNotFound)
}

func TestRejectsTraversalKeys(t *testing.T) {
	b, _, _ := newTestBackend(t)
	ctx := context.Background()

	for _, key := range []string{"../evil.png", "a/b.png", `a\b.png`, "..", ""} {
		_, _, err := b.Retrieve(ctx, key)
		require.ErrorIs(t, err, storage.ErrNotFound, "key %q", key)
	}
}

// failingReader returns its error on the first read.
type failingReader struct {
	err error
}

func (f *failingReader) Read([]byte) (int, error) {
	return 0, f.err
}
