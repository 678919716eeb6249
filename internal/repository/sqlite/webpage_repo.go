package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shelfkeep/shelfkeep/internal/domain"
	"github.com/shelfkeep/shelfkeep/internal/repository"
)

// webpageRepository implements repository.WebpageRepository for SQLite.
type webpageRepository struct {
	db *DB
}

// NewWebpageRepository creates a new SQLite webpage repository.
func NewWebpageRepository(db *DB) repository.WebpageRepository {
	return &webpageRepository{db: db}
}

// Create inserts a new webpage record.
func (r *webpageRepository) Create(ctx context.Context, page *domain.Webpage) error {
	tags, err := json.Marshal(page.Tags)
	if err != nil {
		return fmt.Errorf("failed to encode tags: %w", err)
	}

	query := `
		INSERT INTO webpages (id, url, title, tags, created_at)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err = r.db.ExecContext(ctx, query,
		page.ID,
		page.URL,
		page.Title,
		string(tags),
		page.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to insert webpage: %w", err)
	}

	return nil
}

// List returns all webpage records, newest first.
func (r *webpageRepository) List(ctx context.Context) ([]*domain.Webpage, error) {
	query := `
		SELECT id, url, title, tags, created_at
		FROM webpages
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list webpages: %w", err)
	}
	defer rows.Close()

	var pages []*domain.Webpage
	for rows.Next() {
		page := &domain.Webpage{}
		var tags, createdAt string

		if err := rows.Scan(&page.ID, &page.URL, &page.Title, &tags, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan webpage row: %w", err)
		}
		if err := json.Unmarshal([]byte(tags), &page.Tags); err != nil {
			return nil, fmt.Errorf("failed to decode tags: %w", err)
		}
		page.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)

		pages = append(pages, page)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate webpage rows: %w", err)
	}

	return pages, nil
}
