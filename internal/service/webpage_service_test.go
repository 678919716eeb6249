package service

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/shelfkeep/shelfkeep/internal/config"
	"github.com/shelfkeep/shelfkeep/internal/domain"
)

// =============================================================================
// Mock Types
// =============================================================================

type mockWebpageRepository struct {
	mock.Mock
}

func (m *mockWebpageRepository) Create(ctx context.Context, page *domain.Webpage) error {
	args := m.Called(ctx, page)
	return args.Error(0)
}

func (m *mockWebpageRepository) List(ctx context.Context) ([]*domain.Webpage, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Webpage), args.Error(1)
}

// =============================================================================
// Helper Functions
// =============================================================================

func newTestWebpageService() (*WebpageService, *mockWebpageRepository) {
	webpageRepo := new(mockWebpageRepository)
	cfg := config.WebpageConfig{
		FetchTimeout:  2 * time.Second,
		MaxFetchBytes: 1024,
		UserAgent:     "shelfkeep-test/1.0",
	}
	svc := NewWebpageService(webpageRepo, cfg, zerolog.Nop())
	return svc, webpageRepo
}

// =============================================================================
// Test Cases
// =============================================================================

func TestWebpageService_SaveWebpage(t *testing.T) {
	t.Run("extracts title", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.NotEmpty(t, r.Header.Get("Range"))
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			fmt.Fprint(w, `<html><head><title> Go Blog </title></head><body></body></html>`)
		}))
		defer server.Close()

		svc, webpageRepo := newTestWebpageService()
		webpageRepo.On("Create", mock.Anything, mock.AnythingOfType("*domain.Webpage")).Return(nil)

		output, err := svc.SaveWebpage(context.Background(), SaveWebpageInput{
			URL:  server.URL,
			Tags: []string{"reading, go"},
		})
		require.NoError(t, err)
		require.Equal(t, "Go Blog", output.Page.Title)
		require.Equal(t, []string{"reading", "go"}, output.Page.Tags)
		require.Empty(t, output.Warning)

		webpageRepo.AssertExpectations(t)
	})

	t.Run("missing url", func(t *testing.T) {
		svc, webpageRepo := newTestWebpageService()

		_, err := svc.SaveWebpage(context.Background(), SaveWebpageInput{URL: "   "})
		require.ErrorIs(t, err, domain.ErrWebpageURLRequired)

		webpageRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("untrusted certificate is a soft failure", func(t *testing.T) {
		server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `<html><head><title>Unreachable</title></head></html>`)
		}))
		defer server.Close()

		svc, webpageRepo := newTestWebpageService()
		webpageRepo.On("Create", mock.Anything, mock.AnythingOfType("*domain.Webpage")).Return(nil)

		// The service's client does not trust the test server's cert.
		output, err := svc.SaveWebpage(context.Background(), SaveWebpageInput{URL: server.URL})
		require.NoError(t, err)
		require.Equal(t, domain.DefaultWebpageTitle, output.Page.Title)
		require.Equal(t, warnCertificate, output.Warning)
	})

	t.Run("unreachable host is a soft failure", func(t *testing.T) {
		svc, webpageRepo := newTestWebpageService()
		webpageRepo.On("Create", mock.Anything, mock.AnythingOfType("*domain.Webpage")).Return(nil)

		output, err := svc.SaveWebpage(context.Background(), SaveWebpageInput{
			URL: "http://127.0.0.1:1/unreachable",
		})
		require.NoError(t, err)
		require.Equal(t, domain.DefaultWebpageTitle, output.Page.Title)
		require.Equal(t, warnFetchFailed, output.Warning)
	})

	t.Run("http error status is a soft failure", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "gone", http.StatusGone)
		}))
		defer server.Close()

		svc, webpageRepo := newTestWebpageService()
		webpageRepo.On("Create", mock.Anything, mock.AnythingOfType("*domain.Webpage")).Return(nil)

		output, err := svc.SaveWebpage(context.Background(), SaveWebpageInput{URL: server.URL})
		require.NoError(t, err)
		require.Equal(t, domain.DefaultWebpageTitle, output.Page.Title)
		require.Equal(t, warnFetchFailed, output.Warning)
	})

	t.Run("non-html gets default title without warning", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/pdf")
			fmt.Fprint(w, "%PDF-1.4")
		}))
		defer server.Close()

		svc, webpageRepo := newTestWebpageService()
		webpageRepo.On("Create", mock.Anything, mock.AnythingOfType("*domain.Webpage")).Return(nil)

		output, err := svc.SaveWebpage(context.Background(), SaveWebpageInput{URL: server.URL})
		require.NoError(t, err)
		require.Equal(t, domain.DefaultWebpageTitle, output.Page.Title)
		require.Empty(t, output.Warning)
	})

	t.Run("title beyond fetch limit falls back", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			// Push the title past the 1 KiB fetch cap.
			fmt.Fprintf(w, "<html><head>%s<title>Too Deep</title></head></html>",
				"<!-- "+string(make([]byte, 2048))+" -->")
		}))
		defer server.Close()

		svc, webpageRepo := newTestWebpageService()
		webpageRepo.On("Create", mock.Anything, mock.AnythingOfType("*domain.Webpage")).Return(nil)

		output, err := svc.SaveWebpage(context.Background(), SaveWebpageInput{URL: server.URL})
		require.NoError(t, err)
		require.Equal(t, domain.DefaultWebpageTitle, output.Page.Title)
	})

	t.Run("repository failure is hard", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			fmt.Fprint(w, `<html><head><title>T</title></head></html>`)
		}))
		defer server.Close()

		svc, webpageRepo := newTestWebpageService()
		webpageRepo.On("Create", mock.Anything, mock.Anything).Return(fmt.Errorf("db is down"))

		_, err := svc.SaveWebpage(context.Background(), SaveWebpageInput{URL: server.URL})
		require.ErrorIs(t, err, ErrInternalError)
	})
}

func TestWebpageService_ListWebpages(t *testing.T) {
	svc, webpageRepo := newTestWebpageService()

	pages := []*domain.Webpage{
		domain.NewWebpage("https://example.com", "Example", nil),
	}
	webpageRepo.On("List", mock.Anything).Return(pages, nil)

	output, err := svc.ListWebpages(context.Background())
	require.NoError(t, err)
	require.Len(t, output.Pages, 1)
}

func TestExtractTitle(t *testing.T) {
	tests := []struct {
		name string
		html string
		want string
	}{
		{"simple", `<html><head><title>Hello</title></head></html>`, "Hello"},
		{"whitespace trimmed", `<title>  padded  </title>`, "padded"},
		{"no title", `<html><body><p>text</p></body></html>`, ""},
		{"truncated document", `<html><head><title>Cut`, "Cut"},
		{"empty title", `<title></title>`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := extractTitle(strings.NewReader(tt.html))
			require.Equal(t, tt.want, got)
		})
	}
}
