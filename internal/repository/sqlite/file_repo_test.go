package sqlite

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/shelfkeep/shelfkeep/internal/domain"
	"github.com/shelfkeep/shelfkeep/internal/repository"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()

	ctx := context.Background()
	db, err := NewDB(ctx, DefaultConfig(":memory:"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, db.Migrate(ctx))
	return db
}

func TestFileRepositoryCreateAndGet(t *testing.T) {
	db := newTestDB(t)
	repo := NewFileRepository(db)
	ctx := context.Background()

	file := domain.NewFile("photo.png", "png", []string{"vacation", "beach"})
	file.Size = 2048
	file.Checksum = "abc123"
	file.StorageKey = file.StoredName
	file.Backend = "filesystem"

	require.NoError(t, repo.Create(ctx, file))

	got, err := repo.GetByStoredName(ctx, file.StoredName)
	require.NoError(t, err)
	require.Equal(t, file.ID, got.ID)
	require.Equal(t, file.OriginalName, got.OriginalName)
	require.Equal(t, domain.KindImage, got.Kind)
	require.Equal(t, int64(2048), got.Size)
	require.Equal(t, []string{"vacation", "beach"}, got.Tags)
}

func TestFileRepositoryGetUnknown(t *testing.T) {
	db := newTestDB(t)
	repo := NewFileRepository(db)

	_, err := repo.GetByStoredName(context.Background(), "nope.png")
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestFileRepositoryUpdateTags(t *testing.T) {
	db := newTestDB(t)
	repo := NewFileRepository(db)
	ctx := context.Background()

	file := domain.NewFile("doc.pdf", "pdf", []string{"work"})
	file.StorageKey = file.StoredName
	file.Backend = "filesystem"
	require.NoError(t, repo.Create(ctx, file))

	require.NoError(t, repo.UpdateTags(ctx, file.StoredName, []string{"archive", "2026"}))

	got, err := repo.GetByStoredName(ctx, file.StoredName)
	require.NoError(t, err)
	require.Equal(t, []string{"archive", "2026"}, got.Tags)
	require.True(t, got.UpdatedAt.After(got.CreatedAt) || got.UpdatedAt.Equal(got.CreatedAt))

	require.ErrorIs(t, repo.UpdateTags(ctx, "missing.pdf", nil), repository.ErrNotFound)
}

func TestFileRepositoryDelete(t *testing.T) {
	db := newTestDB(t)
	repo := NewFileRepository(db)
	ctx := context.Background()

	file := domain.NewFile("x.jpg", "jpg", nil)
	file.StorageKey = file.StoredName
	file.Backend = "filesystem"
	require.NoError(t, repo.Create(ctx, file))

	require.NoError(t, repo.Delete(ctx, file.StoredName))
	require.ErrorIs(t, repo.Delete(ctx, file.StoredName), repository.ErrNotFound)

	_, err := repo.GetByStoredName(ctx, file.StoredName)
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestFileRepositoryList(t *testing.T) {
	db := newTestDB(t)
	repo := NewFileRepository(db)
	ctx := context.Background()

	for _, name := range []string{"a.png", "b.pdf", "c.jpeg"} {
		file := domain.NewFile(name, domain.ExtensionOf(name), []string{"t"})
		file.StorageKey = file.StoredName
		file.Backend = "filesystem"
		require.NoError(t, repo.Create(ctx, file))
	}

	files, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, files, 3)
}

func TestWebpageRepository(t *testing.T) {
	db := newTestDB(t)
	repo := NewWebpageRepository(db)
	ctx := context.Background()

	page := domain.NewWebpage("https://example.com", "Example Domain", []string{"reference"})
	require.NoError(t, repo.Create(ctx, page))

	pages, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, pages, 1)
	require.Equal(t, "https://example.com", pages[0].URL)
	require.Equal(t, "Example Domain", pages[0].Title)
	require.Equal(t, []string{"reference"}, pages[0].Tags)
}
