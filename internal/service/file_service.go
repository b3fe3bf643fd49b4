package service

import (
	"context"
	"errors"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/noah-isme/coursework-api/pkg/errors"
	"github.com/noah-isme/coursework-api/pkg/jobs"
	"github.com/noah-isme/coursework-api/pkg/storage"
)

type fileStorage interface {
	Save(relPath string, r io.Reader) (int64, error)
	Open(relPath string) (*os.File, error)
	Delete(relPath string) error
	DeleteAll(relPath string) error
}

type downloadSigner interface {
	Sign(ownerID, relPath string) (string, time.Time, error)
	Verify(token string) (storage.Grant, error)
}

// StoredFile describes a file written for a submission. URL is a signed link
// that expires at ExpiresAt.
type StoredFile struct {
	Name      string
	Path      string
	Size      int64
	URL       string
	ExpiresAt time.Time
}

// FileService stores submission uploads and issues signed download links.
type FileService struct {
	storage   fileStorage
	signer    downloadSigner
	apiPrefix string
	cleanup   *jobs.Queue[string]
}

// NewFileService constructs a file service. apiPrefix is the mount point of
// the API, such as "/api"; signed links are served under apiPrefix/files.
func NewFileService(storage fileStorage, signer downloadSigner, apiPrefix string) *FileService {
	return &FileService{storage: storage, signer: signer, apiPrefix: strings.TrimRight(apiPrefix, "/")}
}

// ResourceURL is the stable, authenticated route that issues fresh download
// links for owner's file.
func (s *FileService) ResourceURL(ownerID string) string {
	return s.apiPrefix + "/submissions/" + ownerID + "/file"
}

// Store writes r under the owner's directory and returns a signed link to it.
func (s *FileService) Store(ownerID, fileName string, r io.Reader) (*StoredFile, error) {
	name := sanitizeFilename(fileName)
	if name == "" {
		return nil, appErrors.WithDetails(appErrors.ErrValidation, "invalid file name", map[string]string{"file": "file name is required"})
	}
	relPath := path.Join(ownerDir(ownerID), name)

	size, err := s.storage.Save(relPath, r)
	if err != nil {
		if errors.Is(err, storage.ErrTooLarge) {
			return nil, appErrors.WithDetails(appErrors.ErrValidation, "file too large", map[string]string{"file": "exceeds size limit"})
		}
		return nil, appErrors.Internal(err, "failed to store file")
	}

	url, expiresAt, err := s.sign(ownerID, relPath)
	if err != nil {
		_ = s.storage.Delete(relPath)
		return nil, err
	}

	return &StoredFile{
		Name:      name,
		Path:      relPath,
		Size:      size,
		URL:       url,
		ExpiresAt: expiresAt,
	}, nil
}

// Link signs a new download link for a file already stored for owner.
func (s *FileService) Link(ownerID, fileName string) (string, time.Time, error) {
	name := sanitizeFilename(fileName)
	if name == "" {
		return "", time.Time{}, appErrors.Clone(appErrors.ErrNotFound, "file not found")
	}
	relPath := path.Join(ownerDir(ownerID), name)

	file, err := s.storage.Open(relPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", time.Time{}, appErrors.Clone(appErrors.ErrNotFound, "file not found")
		}
		return "", time.Time{}, appErrors.Internal(err, "failed to open file")
	}
	_ = file.Close()

	return s.sign(ownerID, relPath)
}

func (s *FileService) sign(ownerID, relPath string) (string, time.Time, error) {
	token, expiresAt, err := s.signer.Sign(ownerID, relPath)
	if err != nil {
		return "", time.Time{}, appErrors.Internal(err, "failed to sign download link")
	}
	return s.apiPrefix + "/files/" + token, expiresAt, nil
}

// Remove deletes a previously stored file of owner.
func (s *FileService) Remove(ownerID, fileName string) error {
	name := sanitizeFilename(fileName)
	if name == "" {
		return nil
	}
	return s.storage.Delete(path.Join(ownerDir(ownerID), name))
}

// StartCleanup moves Discard onto a background worker pool until the
// returned stop function is called.
func (s *FileService) StartCleanup(ctx context.Context, workers int, logger *zap.Logger) (stop func()) {
	s.cleanup = jobs.New("file-cleanup", func(_ context.Context, job jobs.Job[string]) error {
		return s.storage.DeleteAll(ownerDir(job.Payload))
	}, jobs.Config{Workers: workers, Logger: logger})
	s.cleanup.Start(ctx)
	return s.cleanup.Stop
}

// Discard removes every file stored for owner.
func (s *FileService) Discard(ownerID string) error {
	if s.cleanup != nil {
		return s.cleanup.Enqueue(jobs.Job[string]{Key: ownerID, Payload: ownerID})
	}
	return s.storage.DeleteAll(ownerDir(ownerID))
}

func ownerDir(ownerID string) string {
	return path.Join("submissions", ownerID)
}

// Open validates a download token and opens the file it grants.
func (s *FileService) Open(token string) (*os.File, string, error) {
	grant, err := s.signer.Verify(token)
	if err != nil {
		return nil, "", appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download link")
	}
	file, err := s.storage.Open(grant.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, "", appErrors.Clone(appErrors.ErrNotFound, "file not found")
		}
		return nil, "", appErrors.Internal(err, "failed to open file")
	}
	return file, path.Base(grant.Path), nil
}

// sanitizeFilename keeps the base name of an upload, replacing separators and
// spaces, and caps it at 100 bytes.
func sanitizeFilename(raw string) string {
	raw = strings.TrimSpace(raw)
	if i := strings.LastIndexAny(raw, `/\`); i >= 0 {
		raw = raw[i+1:]
	}
	replacer := strings.NewReplacer(" ", "_", ":", "-", "..", ".")
	name := strings.Trim(replacer.Replace(raw), ".")
	if len(name) > 100 {
		name = name[len(name)-100:]
	}
	return name
}
