package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shelfkeep/shelfkeep/internal/domain"
	"github.com/shelfkeep/shelfkeep/internal/repository"
)

// fileRepository implements repository.FileRepository for SQLite.
// Tags are stored as a JSON array in a TEXT column.
type fileRepository struct {
	db *DB
}

// NewFileRepository creates a new SQLite file repository.
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
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.db.ExecContext(ctx, query,
		file.ID,
		file.StoredName,
		file.OriginalName,
		file.Extension,
		string(file.Kind),
		file.Size,
		file.Checksum,
		file.StorageKey,
		file.Backend,
		string(tags),
		file.CreatedAt.UTC().Format(time.RFC3339Nano),
		file.UpdatedAt.UTC().Format(time.RFC3339Nano),
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
		WHERE stored_name = ?
	`

	row := r.db.QueryRowContext(ctx, query, storedName)
	file, err := scanFile(row)
	if err != nil {
		if isNoRows(err) {
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

	rows, err := r.db.QueryContext(ctx, query)
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
		SET tags = ?, updated_at = ?
		WHERE stored_name = ?
	`
	result, err := r.db.ExecContext(ctx, query,
		string(encoded),
		time.Now().UTC().Format(time.RFC3339Nano),
		storedName,
	)
	if err != nil {
		return fmt.Errorf("failed to update tags: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// Delete removes a file record by stored name.
func (r *fileRepository) Delete(ctx context.Context, storedName string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM files WHERE stored_name = ?`, storedName)
	if err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanFile(row rowScanner) (*domain.File, error) {
	file := &domain.File{}
	var kind, tags, createdAt, updatedAt string

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
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	file.Kind = domain.FileKind(kind)
	if err := json.Unmarshal([]byte(tags), &file.Tags); err != nil {
		return nil, fmt.Errorf("failed to decode tags: %w", err)
	}
	file.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	file.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)

	return file, nil
}
