package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/shelfkeep/shelfkeep/internal/domain"
	"github.com/shelfkeep/shelfkeep/internal/repository"
	"github.com/shelfkeep/shelfkeep/internal/storage"
)

// FileService handles retrieval, listing, tag mutation and deletion of
// stored files.
type FileService struct {
	fileRepo repository.FileRepository
	backend  storage.Backend
	logger   zerolog.Logger
}

// NewFileService creates a new FileService.
func NewFileService(
	fileRepo repository.FileRepository,
	backend storage.Backend,
	logger zerolog.Logger,
) *FileService {
	return &FileService{
		fileRepo: fileRepo,
		backend:  backend,
		logger:   logger.With().Str("service", "file").Logger(),
	}
}

// =============================================================================
// Input/Output Structs
// =============================================================================

// ByteRange represents a byte range for partial content requests.
type ByteRange struct {
	Start int64
	End   int64
}

// GetFileInput contains the data needed to retrieve a file.
type GetFileInput struct {
	StoredName string
	Download   bool
	Range      *ByteRange // Optional
}

// GetFileOutput contains the result of retrieving a file.
type GetFileOutput struct {
	Body          io.ReadCloser
	ContentLength int64
	ContentType   string
	Disposition   string
	LastModified  time.Time
	ContentRange  string // For range requests
}

// ListFilesInput contains the data needed to list files.
type ListFilesInput struct {
	// Tags filters the listing; a file must carry every tag to match.
	Tags []string
}

// ListFilesOutput contains the result of listing files.
type ListFilesOutput struct {
	Files []*domain.File
}

// UpdateTagsInput contains the data needed to replace a file's tag set.
type UpdateTagsInput struct {
	StoredName string
	Tags       []string
}

// UpdateTagsOutput contains the updated file metadata.
type UpdateTagsOutput struct {
	File *domain.File
}

// DeleteFileInput contains the data needed to delete a file.
type DeleteFileInput struct {
	StoredName string
}

// ListTagsOutput contains the distinct tags across all files.
type ListTagsOutput struct {
	Tags []string
}

// =============================================================================
// Service Methods
// =============================================================================

// GetFile looks up a file by stored name and opens its content stream.
// When a range is requested and the backend can serve partial reads, the
// output carries a Content-Range and the body covers only the slice.
func (s *FileService) GetFile(ctx context.Context, input GetFileInput) (*GetFileOutput, error) {
	file, err := s.getFile(ctx, input.StoredName)
	if err != nil {
		return nil, err
	}

	output := &GetFileOutput{
		ContentType:  domain.ContentTypeForExtension(file.Extension),
		Disposition:  dispositionFor(file, input.Download),
		LastModified: file.UpdatedAt,
	}

	if input.Range != nil {
		rangeReader, ok := s.backend.(storage.RangeReader)
		if !ok {
			return nil, ErrInvalidRange
		}
		start, end := input.Range.Start, input.Range.End
		if start < 0 || start >= file.Size || end < start {
			return nil, ErrInvalidRange
		}
		if end >= file.Size {
			end = file.Size - 1
		}
		length := end - start + 1

		body, err := rangeReader.RetrieveRange(ctx, file.StorageKey, start, length)
		if err != nil {
			return nil, s.mapReadError(err, file.StoredName)
		}
		output.Body = body
		output.ContentLength = length
		output.ContentRange = fmt.Sprintf("bytes %d-%d/%d", start, end, file.Size)
		return output, nil
	}

	body, size, err := s.backend.Retrieve(ctx, file.StorageKey)
	if err != nil {
		return nil, s.mapReadError(err, file.StoredName)
	}
	output.Body = body
	output.ContentLength = size
	return output, nil
}

// ListFiles returns file metadata, optionally filtered to files carrying
// every requested tag.
func (s *FileService) ListFiles(ctx context.Context, input ListFilesInput) (*ListFilesOutput, error) {
	files, err := s.fileRepo.List(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list files")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	want := domain.NormalizeTags(input.Tags)
	if len(want) == 0 {
		return &ListFilesOutput{Files: files}, nil
	}

	filtered := make([]*domain.File, 0, len(files))
	for _, f := range files {
		if f.HasAllTags(want) {
			filtered = append(filtered, f)
		}
	}
	return &ListFilesOutput{Files: filtered}, nil
}

// UpdateTags replaces a file's tag set with the normalized input.
func (s *FileService) UpdateTags(ctx context.Context, input UpdateTagsInput) (*UpdateTagsOutput, error) {
	tags := domain.NormalizeTags(input.Tags)

	if err := s.fileRepo.UpdateTags(ctx, input.StoredName, tags); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.ErrFileNotFound
		}
		s.logger.Error().Err(err).Str("stored_name", input.StoredName).Msg("failed to update tags")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	file, err := s.getFile(ctx, input.StoredName)
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("stored_name", input.StoredName).
		Strs("tags", tags).
		Msg("tags updated")

	return &UpdateTagsOutput{File: file}, nil
}

// DeleteFile removes a file's content and its metadata record.
func (s *FileService) DeleteFile(ctx context.Context, input DeleteFileInput) error {
	file, err := s.getFile(ctx, input.StoredName)
	if err != nil {
		return err
	}

	if err := s.backend.Delete(ctx, file.StorageKey); err != nil && !errors.Is(err, storage.ErrNotFound) {
		s.logger.Error().Err(err).Str("stored_name", file.StoredName).Msg("failed to delete blob")
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	if err := s.fileRepo.Delete(ctx, input.StoredName); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.ErrFileNotFound
		}
		s.logger.Error().Err(err).Str("stored_name", input.StoredName).Msg("failed to delete metadata")
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.logger.Info().Str("stored_name", input.StoredName).Msg("file deleted")
	return nil
}

// ListTags returns the distinct tags across all files, first-seen order.
func (s *FileService) ListTags(ctx context.Context) (*ListTagsOutput, error) {
	files, err := s.fileRepo.List(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list files for tags")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	seen := make(map[string]struct{})
	tags := make([]string, 0)
	for _, f := range files {
		for _, t := range f.Tags {
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			tags = append(tags, t)
		}
	}
	return &ListTagsOutput{Tags: tags}, nil
}

// getFile fetches metadata, mapping repository misses to the domain error.
func (s *FileService) getFile(ctx context.Context, storedName string) (*domain.File, error) {
	file, err := s.fileRepo.GetByStoredName(ctx, storedName)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.ErrFileNotFound
		}
		s.logger.Error().Err(err).Str("stored_name", storedName).Msg("failed to get file")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	return file, nil
}

// mapReadError translates backend read failures. A missing blob with a
// live metadata row still presents as not found to the client.
func (s *FileService) mapReadError(err error, storedName string) error {
	if errors.Is(err, storage.ErrNotFound) {
		s.logger.Warn().Str("stored_name", storedName).Msg("metadata present but blob missing")
		return domain.ErrFileNotFound
	}
	s.logger.Error().Err(err).Str("stored_name", storedName).Msg("failed to read blob")
	return fmt.Errorf("%w: %v", domain.ErrStorageReadFailed, err)
}

// dispositionFor builds the Content-Disposition value: attachment when the
// client asked to download, inline otherwise. The original filename is the
// suggested save name.
func dispositionFor(file *domain.File, download bool) string {
	kind := "inline"
	if download {
		kind = "attachment"
	}
	return fmt.Sprintf("%s; filename=%q", kind, file.OriginalName)
}
