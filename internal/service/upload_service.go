package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"strings"

	"github.com/rs/zerolog"

	"github.com/shelfkeep/shelfkeep/internal/config"
	"github.com/shelfkeep/shelfkeep/internal/domain"
	"github.com/shelfkeep/shelfkeep/internal/pkg/crypto"
	"github.com/shelfkeep/shelfkeep/internal/repository"
	"github.com/shelfkeep/shelfkeep/internal/storage"
)

// UploadService handles the file upload pipeline: multipart parsing,
// validation, streaming to the storage backend, and metadata persistence.
type UploadService struct {
	fileRepo repository.FileRepository
	backend  storage.Backend
	cfg      config.UploadConfig
	logger   zerolog.Logger
}

// NewUploadService creates a new UploadService.
func NewUploadService(
	fileRepo repository.FileRepository,
	backend storage.Backend,
	cfg config.UploadConfig,
	logger zerolog.Logger,
) *UploadService {
	return &UploadService{
		fileRepo: fileRepo,
		backend:  backend,
		cfg:      cfg,
		logger:   logger.With().Str("service", "upload").Logger(),
	}
}

// =============================================================================
// Input/Output Structs
// =============================================================================

// UploadInput contains the multipart form data for an upload.
type UploadInput struct {
	Form *multipart.Reader
}

// UploadOutput contains the stored file's metadata.
type UploadOutput struct {
	File *domain.File
}

// =============================================================================
// Service Methods
// =============================================================================

// Upload reads the multipart form, stores the first file part under the
// configured field name, and persists its metadata. The file content is
// streamed to the backend; it is never buffered in memory as a whole.
// Parsing stops at the first file part, so oversized or invalid uploads
// abort before the remaining bytes are read.
func (s *UploadService) Upload(ctx context.Context, input UploadInput) (*UploadOutput, error) {
	var (
		file *domain.File
		tags []string
	)

	for {
		part, err := input.Form.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrMalformedForm, err)
		}

		switch {
		case part.FormName() == s.cfg.FieldName && part.FileName() != "":
			if file != nil {
				// Only the first file part is stored.
				_ = part.Close()
				continue
			}
			file, err = s.storeFilePart(ctx, part)
			_ = part.Close()
			if err != nil {
				return nil, err
			}
		case part.FormName() == "tags":
			value, err := readFormValue(part)
			_ = part.Close()
			if err != nil {
				return nil, fmt.Errorf("%w: %v", domain.ErrMalformedForm, err)
			}
			tags = append(tags, value)
		default:
			_ = part.Close()
		}
	}

	if file == nil {
		return nil, domain.ErrNoFileProvided
	}

	file.Tags = domain.NormalizeTags(tags)

	if err := s.fileRepo.Create(ctx, file); err != nil {
		// The blob is already stored; remove it so no orphan remains.
		if delErr := s.backend.Delete(ctx, file.StorageKey); delErr != nil {
			s.logger.Error().Err(delErr).Str("storage_key", file.StorageKey).Msg("failed to clean up blob after metadata failure")
		}
		s.logger.Error().Err(err).Str("stored_name", file.StoredName).Msg("failed to persist file metadata")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.logger.Info().
		Str("stored_name", file.StoredName).
		Str("original_name", file.OriginalName).
		Int64("size", file.Size).
		Str("backend", file.Backend).
		Msg("file uploaded")

	return &UploadOutput{File: file}, nil
}

// storeFilePart validates and streams a single file part to the backend.
func (s *UploadService) storeFilePart(ctx context.Context, part *multipart.Part) (*domain.File, error) {
	originalName := part.FileName()
	ext := domain.ExtensionOf(originalName)

	if err := domain.ValidateExtension(ext, s.cfg.AllowedExtensions); err != nil {
		return nil, err
	}

	file := domain.NewFile(originalName, ext, nil)
	file.Backend = s.backend.Name()

	hasher := crypto.NewHashingReader(&limitedReader{
		r:         part,
		remaining: s.cfg.MaxFileSize,
	})

	key, size, err := s.backend.Store(ctx, file.StoredName, hasher, storage.WriteMetadata{
		ContentType: domain.ContentTypeForExtension(ext),
		FileType:    string(file.Kind),
	})
	if err != nil {
		if errors.Is(err, domain.ErrSizeLimitExceeded) {
			s.logger.Warn().
				Str("original_name", originalName).
				Int64("limit", s.cfg.MaxFileSize).
				Msg("upload exceeded size limit")
			return nil, domain.ErrSizeLimitExceeded
		}
		s.logger.Error().Err(err).Str("original_name", originalName).Msg("failed to store upload")
		return nil, fmt.Errorf("%w: %v", domain.ErrStorageWriteFailed, err)
	}

	file.StorageKey = key
	file.Size = size
	file.Checksum = hasher.Sum()

	return file, nil
}

// readFormValue reads a small text form field.
func readFormValue(part *multipart.Part) (string, error) {
	var sb strings.Builder
	if _, err := io.Copy(&sb, io.LimitReader(part, 4096)); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// limitedReader enforces the configured upload size limit while streaming.
// Once the limit is reached it probes the source: more data means the
// upload is too large, EOF means the file fit exactly.
type limitedReader struct {
	r         io.Reader
	remaining int64
}

// Read implements io.Reader.
func (l *limitedReader) Read(p []byte) (int, error) {
	if l.remaining <= 0 {
		var probe [1]byte
		n, err := l.r.Read(probe[:])
		if n > 0 {
			return 0, domain.ErrSizeLimitExceeded
		}
		if err != nil {
			return 0, err
		}
		return 0, nil
	}
	if int64(len(p)) > l.remaining {
		p = p[:l.remaining]
	}
	n, err := l.r.Read(p)
	l.remaining -= int64(n)
	return n, err
}
