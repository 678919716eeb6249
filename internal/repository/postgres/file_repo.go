package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/shelfkeep/shelfkeep/internal/domain"
	"github.com/shelfkeep/shelfkeep/internal/repository"
)

// fileRepository implements repository.FileRepository for PostgreSQL.
// Tags are stored as a JSONB array.
type fileRepository struct {
	db *DB
}

// NewFileRepository creates a new PostgreSQL file repository.
func NewFileRepository(db *DB) repository.FileRepository {
	return &fileRepository{db: db}
}

// Create inserts a new file record.
func (r *fileRepository) Create(ctx context.Context, file *domain.File) error {
	tags, err := json.Marshal(file.Tags)
	if err != nil {
		return fmt.Errorf("failed to encode tags: %w", err)
	}

	query := `
		INSERT INTO files (id, stored_name, original_name, extension, kind, size, checksum, storage_key, backend, tags, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err = r.db.Pool.Exec(ctx, query,
		file.ID,
		file.StoredName,
		file.OriginalName,
		file.Extension,
		string(file.Kind),
		file.Size,
		file.Checksum,
		file.StorageKey,
		file.Backend,
		tags,
		file.CreatedAt.UTC(),
		file.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert file: %w", err)
	}

	return nil
}

// GetByStoredName retrieves a file by its stored name.
func (r *fileRepository) GetByStoredName(ctx context.Context, storedName string) (*domain.File, error) {
	query := `
		SELECT id, stored_name, original_name, extension, kind, size, checksum, storage_key, backend, tags, created_at, updated_at
		FROM files
		WHERE stored_name = $1
	`

	file, err := scanFile(r.db.Pool.QueryRow(ctx, query, storedName))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get file by stored name: %w", err)
	}

	return file, nil
}

// List returns all file records, newest first.
func (r *fileRepository) List(ctx context.Context) ([]*domain.File, error) {
	query := `
		SELECT id, stored_name, original_name, extension, kind, size, checksum, storage_key, backend, tags, created_at, updated_at
		FROM files
		ORDER BY created_at DESC
	`

	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}
	defer rows.Close()

	var files []*domain.File
	for rows.Next() {
		file, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan file row: %w", err)
		}
		files = append(files, file)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate file rows: %w", err)
	}

	return files, nil
}

// UpdateTags replaces the tag set of a file.
func (r *fileRepository) UpdateTags(ctx context.Context, storedName string, tags []string) error {
	encoded, err := json.Marshal(tags)
	if err != nil {
		return fmt.Errorf("failed to encode tags: %w", err)
	}

	query := `
		UPDATE files
		SET tags = $1, updated_at = $2
		WHERE stored_name = $3
	`
	tag, err := r.db.Pool.Exec(ctx, query, encoded, time.Now().UTC(), storedName)
	if err != nil {
		return fmt.Errorf("failed to update tags: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// Delete removes a file record by stored name.
func (r *fileRepository) Delete(ctx context.Context, storedName string) error {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM files WHERE stored_name = $1`, storedName)
	if err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// rowScanner is satisfied by both pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanFile(row rowScanner) (*domain.File, error) {
	file := &domain.File{}
	var kind string
	var tags []byte

	err := row.Scan(
		&file.ID,
		&file.StoredName,
		&file.OriginalName,
		&file.Extension,
		&kind,
		&file.Size,
		&file.Checksum,
		&file.StorageKey,
		&file.Backend,
		&tags,
		&file.CreatedAt,
		&file.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	file.Kind = domain.FileKind(kind)
	if err := json.Unmarshal(tags, &file.Tags); err != nil {
		return nil, fmt.Errorf("failed to decode tags: %w", err)
	}

	return file, nil
}
