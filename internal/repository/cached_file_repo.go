package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/shelfkeep/shelfkeep/internal/domain"
)

// CachedFileRepository decorates a FileRepository with a read-through
// cache keyed by stored name. Cache failures are soft: the inner
// repository always remains the source of truth.
type CachedFileRepository struct {
	inner  FileRepository
	cache  Cache
	ttl    time.Duration
	logger zerolog.Logger
}

// NewCachedFileRepository wraps inner with the given cache.
func NewCachedFileRepository(inner FileRepository, cache Cache, ttl time.Duration, logger zerolog.Logger) *CachedFileRepository {
	return &CachedFileRepository{
		inner:  inner,
		cache:  cache,
		ttl:    ttl,
		logger: logger.With().Str("component", "file_cache").Logger(),
	}
}

func fileCacheKey(storedName string) string {
	return "file:" + storedName
}

// Create inserts the record; the cache entry is populated on first read.
func (r *CachedFileRepository) Create(ctx context.Context, file *domain.File) error {
	return r.inner.Create(ctx, file)
}

// GetByStoredName serves from cache when possible.
func (r *CachedFileRepository) GetByStoredName(ctx context.Context, storedName string) (*domain.File, error) {
	key := fileCacheKey(storedName)

	if data, err := r.cache.Get(ctx, key); err == nil {
		var file domain.File
		if err := json.Unmarshal(data, &file); err == nil {
			return &file, nil
		}
		// Corrupt entry: drop it and fall through.
		_ = r.cache.Delete(ctx, key)
	} else if !errors.Is(err, ErrCacheMiss) {
		r.logger.Debug().Err(err).Str("key", key).Msg("cache get failed")
	}

	file, err := r.inner.GetByStoredName(ctx, storedName)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(file); err == nil {
		if err := r.cache.Set(ctx, key, data, r.ttl); err != nil {
			r.logger.Debug().Err(err).Str("key", key).Msg("cache set failed")
		}
	}

	return file, nil
}

// List bypasses the cache; listings are always served fresh.
func (r *CachedFileRepository) List(ctx context.Context) ([]*domain.File, error) {
	return r.inner.List(ctx)
}

// UpdateTags writes through and invalidates the cached entry.
func (r *CachedFileRepository) UpdateTags(ctx context.Context, storedName string, tags []string) error {
	if err := r.inner.UpdateTags(ctx, storedName, tags); err != nil {
		return err
	}
	if err := r.cache.Delete(ctx, fileCacheKey(storedName)); err != nil {
		r.logger.Debug().Err(err).Str("stored_name", storedName).Msg("cache invalidation failed")
	}
	return nil
}

// Delete removes the record and invalidates the cached entry.
func (r *CachedFileRepository) Delete(ctx context.Context, storedName string) error {
	if err := r.inner.Delete(ctx, storedName); err != nil {
		return err
	}
	if err := r.cache.Delete(ctx, fileCacheKey(storedName)); err != nil {
		r.logger.Debug().Err(err).Str("stored_name", storedName).Msg("cache invalidation failed")
	}
	return nil
}

// Ensure CachedFileRepository implements FileRepository.
var _ FileRepository = (*CachedFileRepository)(nil)
