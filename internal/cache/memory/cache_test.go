package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/shelfkeep/shelfkeep/internal/repository"
)

func TestCacheSetGet(t *testing.T) {
	cache := NewCache()
	defer cache.Stop()
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "key", []byte("value"), 0))

	got, err := cache.Get(ctx, "key")
	require.NoError(t, err)
	require.Equal(t, []byte("value"), got)
}

func TestCacheMiss(t *testing.T) {
	cache := NewCache()
	defer cache.Stop()

	_, err := cache.Get(context.Background(), "absent")
	require.ErrorIs(t, err, repository.ErrCacheMiss)
}

func TestCacheExpiry(t *testing.T) {
	cache := NewCache()
	defer cache.Stop()
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "key", []byte("value"), 10*time.Millisecond))
	time.Sleep(50 * time.Millisecond)

	_, err := cache.Get(ctx, "key")
	require.ErrorIs(t, err, repository.ErrCacheMiss)
}

func TestCacheDelete(t *testing.T) {
	cache := NewCache()
	defer cache.Stop()
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "key", []byte("value"), 0))
	require.NoError(t, cache.Delete(ctx, "key"))

	_, err := cache.Get(ctx, "key")
	require.ErrorIs(t, err, repository.ErrCacheMiss)
}

func TestCacheCopiesValues(t *testing.T) {
	cache := NewCache()
	defer cache.Stop()
	ctx := context.Background()

	original := []byte("value")
	require.NoError(t, cache.Set(ctx, "key", original, 0))
	original[0] = 'X'

	got, err := cache.Get(ctx, "key")
	require.NoError(t, err)
	require.Equal(t, []byte("value"), got)

	// Mutating the returned slice must not poison later reads.
	got[0] = 'Y'
	again, err := cache.Get(ctx, "key")
	require.NoError(t, err)
	require.Equal(t, []byte("value"), again)
}

func TestCacheStopIsIdempotent(t *testing.T) {
	cache := NewCache()
	cache.Stop()
	cache.Stop()
}
