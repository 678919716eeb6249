package service

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/net/html"

	"github.com/shelfkeep/shelfkeep/internal/config"
	"github.com/shelfkeep/shelfkeep/internal/domain"
	"github.com/shelfkeep/shelfkeep/internal/repository"
)

// Softened warnings returned alongside a successful save when title
// extraction could not complete.
const (
	warnCertificate = "the site's certificate could not be verified; the page was saved with a default title"
	warnFetchFailed = "the page could not be fetched; it was saved with a default title"
)

// WebpageService saves webpage links with a best-effort title. The fetch
// is a single bounded attempt: a failure never fails the save, it only
// downgrades the title and attaches a warning.
type WebpageService struct {
	webpageRepo repository.WebpageRepository
	client      *http.Client
	cfg         config.WebpageConfig
	logger      zerolog.Logger
}

// NewWebpageService creates a new WebpageService.
func NewWebpageService(
	webpageRepo repository.WebpageRepository,
	cfg config.WebpageConfig,
	logger zerolog.Logger,
) *WebpageService {
	return &WebpageService{
		webpageRepo: webpageRepo,
		client:      &http.Client{Timeout: cfg.FetchTimeout},
		cfg:         cfg,
		logger:      logger.With().Str("service", "webpage").Logger(),
	}
}

// =============================================================================
// Input/Output Structs
// =============================================================================

// SaveWebpageInput contains the data needed to save a webpage link.
type SaveWebpageInput struct {
	URL  string
	Tags []string
}

// SaveWebpageOutput contains the saved descriptor. Warning is non-empty
// when the title fetch failed softly.
type SaveWebpageOutput struct {
	Page    *domain.Webpage
	Warning string
}

// ListWebpagesOutput contains the saved webpage descriptors.
type ListWebpagesOutput struct {
	Pages []*domain.Webpage
}

// =============================================================================
// Service Methods
// =============================================================================

// SaveWebpage fetches the page title and persists the descriptor. Network
// and certificate failures are soft: the descriptor is saved with the
// default title and the output carries a human-readable warning.
func (s *WebpageService) SaveWebpage(ctx context.Context, input SaveWebpageInput) (*SaveWebpageOutput, error) {
	if strings.TrimSpace(input.URL) == "" {
		return nil, domain.ErrWebpageURLRequired
	}

	title, warning := s.fetchTitle(ctx, input.URL)

	page := domain.NewWebpage(input.URL, title, domain.NormalizeTags(input.Tags))

	if err := s.webpageRepo.Create(ctx, page); err != nil {
		s.logger.Error().Err(err).Str("url", input.URL).Msg("failed to persist webpage")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.logger.Info().
		Str("url", page.URL).
		Str("title", page.Title).
		Bool("soft_failure", warning != "").
		Msg("webpage saved")

	return &SaveWebpageOutput{Page: page, Warning: warning}, nil
}

// ListWebpages returns all saved webpage descriptors, newest first.
func (s *WebpageService) ListWebpages(ctx context.Context) (*ListWebpagesOutput, error) {
	pages, err := s.webpageRepo.List(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list webpages")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	return &ListWebpagesOutput{Pages: pages}, nil
}

// fetchTitle performs the single bounded fetch. Only the first
// MaxFetchBytes are requested; most pages carry <title> within the first
// kilobyte. An empty title with an empty warning means the page answered
// but is not HTML or has no title.
func (s *WebpageService) fetchTitle(ctx context.Context, url string) (title, warning string) {
	fetchCtx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, url, nil)
	if err != nil {
		s.logger.Warn().Err(err).Str("url", url).Msg("webpage fetch skipped")
		return "", warnFetchFailed
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=0-%d", s.cfg.MaxFetchBytes-1))
	req.Header.Set("User-Agent", s.cfg.UserAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		reason := classifyFetchError(err)
		s.logger.Warn().Err(err).Str("url", url).Str("reason", reason.Error()).Msg("webpage fetch failed")
		if errors.Is(reason, domain.ErrCertificateInvalid) {
			return "", warnCertificate
		}
		return "", warnFetchFailed
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		s.logger.Warn().Int("status", resp.StatusCode).Str("url", url).Msg("webpage fetch rejected")
		return "", warnFetchFailed
	}

	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.Contains(ct, "html") {
		return "", ""
	}

	// Servers that ignore the Range header send the whole page; the limit
	// still caps what we read.
	return extractTitle(io.LimitReader(resp.Body, s.cfg.MaxFetchBytes)), ""
}

// classifyFetchError distinguishes TLS certificate rejections from
// ordinary network failures so the two get different warnings.
func classifyFetchError(err error) error {
	var (
		certInvalid   x509.CertificateInvalidError
		unknownAuth   x509.UnknownAuthorityError
		hostnameErr   x509.HostnameError
		tlsVerifyFail *tls.CertificateVerificationError
	)
	if errors.As(err, &certInvalid) ||
		errors.As(err, &unknownAuth) ||
		errors.As(err, &hostnameErr) ||
		errors.As(err, &tlsVerifyFail) {
		return domain.ErrCertificateInvalid
	}
	return domain.ErrNetworkFetchFailed
}

// extractTitle tokenizes a partial HTML document and returns the text of
// the first <title> element, trimmed. Works on truncated input: the
// tokenizer simply runs out of tokens.
func extractTitle(r io.Reader) string {
	tokenizer := html.NewTokenizer(r)
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return ""
		case html.StartTagToken:
			name, _ := tokenizer.TagName()
			if string(name) != "title" {
				continue
			}
			if tokenizer.Next() == html.TextToken {
				return strings.TrimSpace(string(tokenizer.Text()))
			}
			return ""
		}
	}
}
