package domain

import (
	"time"

	"github.com/google/uuid"
)

// DefaultWebpageTitle is used when title extraction fails or the target
// is not HTML.
const DefaultWebpageTitle = "Untitled"

// Webpage represents a saved webpage link. Only the URL, a best-effort
// title and the tag set are kept; page content is never persisted.
type Webpage struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Title     string    `json:"title"`
	Tags      []string  `json:"tags"`
	CreatedAt time.Time `json:"created_at"`
}

// NewWebpage creates a Webpage descriptor with a generated ID.
// An empty title falls back to DefaultWebpageTitle.
func NewWebpage(url, title string, tags []string) *Webpage {
	if title == "" {
		title = DefaultWebpageTitle
	}
	return &Webpage{
		ID:        uuid.New().String(),
		URL:       url,
		Title:     title,
		Tags:      tags,
		CreatedAt: time.Now().UTC(),
	}
}
