package service

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/coursework-api/internal/dto"
	"github.com/noah-isme/coursework-api/internal/models"
	"github.com/noah-isme/coursework-api/internal/repository"
	appErrors "github.com/noah-isme/coursework-api/pkg/errors"
	"github.com/noah-isme/coursework-api/pkg/validation"
)

type submissionRepository interface {
	FindByID(ctx context.Context, id string) (*models.Submission, error)
	FindByTaskAndUser(ctx context.Context, taskID, userID string) (*models.Submission, error)
	List(ctx context.Context, filter models.SubmissionFilter) ([]models.Submission, error)
	Create(ctx context.Context, submission *models.Submission) error
	Update(ctx context.Context, submission *models.Submission) error
	UpdateFile(ctx context.Context, id, fileName string, fileSize int64, fileURL string, updatedAt time.Time) error
	Delete(ctx context.Context, id string) error
}

type userFinder interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type taskFinder interface {
	FindByID(ctx context.Context, id string) (*models.Task, error)
}

// SubmissionService manages the submission ledger. At most one submission
// exists per (task, user); the check before insert is backed by the store's
// unique constraint.
type SubmissionService struct {
	repo      submissionRepository
	users     userFinder
	tasks     taskFinder
	files     *FileService
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewSubmissionService creates an instance of SubmissionService.
func NewSubmissionService(repo submissionRepository, users userFinder, tasks taskFinder, files *FileService, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *SubmissionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validation.New()
	}
	return &SubmissionService{
		repo:      repo,
		users:     users,
		tasks:     tasks,
		files:     files,
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// List returns submissions matching filter.
func (s *SubmissionService) List(ctx context.Context, filter models.SubmissionFilter) ([]models.Submission, error) {
	status := ""
	if filter.Status != nil {
		status = string(*filter.Status)
	}
	key := cacheKey(cacheNamespaceSubmissions, "list", filter.UserID, filter.TaskID, status, formatCacheTime(filter.From), formatCacheTime(filter.To))
	return cachedRead(ctx, s.cache, key, func() ([]models.Submission, error) {
		submissions, err := s.repo.List(ctx, filter)
		if err != nil {
			return nil, appErrors.Internal(err, "failed to list submissions")
		}
		return submissions, nil
	})
}

// ListByUser returns every submission of a user.
func (s *SubmissionService) ListByUser(ctx context.Context, userID string) ([]models.Submission, error) {
	if _, err := s.users.FindByID(ctx, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Internal(err, "failed to load user")
	}
	return s.List(ctx, models.SubmissionFilter{UserID: userID})
}

// ListByTask returns every submission for a task.
func (s *SubmissionService) ListByTask(ctx context.Context, taskID string) ([]models.Submission, error) {
	if _, err := s.tasks.FindByID(ctx, taskID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "task not found")
		}
		return nil, appErrors.Internal(err, "failed to load task")
	}
	return s.List(ctx, models.SubmissionFilter{TaskID: taskID})
}

// ListByStatus returns every submission in status.
func (s *SubmissionService) ListByStatus(ctx context.Context, status models.SubmissionStatus) ([]models.Submission, error) {
	if !status.Valid() {
		return nil, appErrors.WithDetails(appErrors.ErrValidation, "invalid submission status", map[string]string{"status": "must be one of [SUBMITTED GRADED LATE PENDING]"})
	}
	return s.List(ctx, models.SubmissionFilter{Status: &status})
}

// Graded returns submissions in GRADED status.
func (s *SubmissionService) Graded(ctx context.Context) ([]models.Submission, error) {
	return s.ListByStatus(ctx, models.SubmissionGraded)
}

// Pending returns submissions in PENDING status.
func (s *SubmissionService) Pending(ctx context.Context) ([]models.Submission, error) {
	return s.ListByStatus(ctx, models.SubmissionPending)
}

// Late returns submissions in LATE status.
func (s *SubmissionService) Late(ctx context.Context) ([]models.Submission, error) {
	return s.ListByStatus(ctx, models.SubmissionLate)
}

// Between returns submissions dated within [start, end].
func (s *SubmissionService) Between(ctx context.Context, start, end time.Time) ([]models.Submission, error) {
	if end.Before(start) {
		return nil, appErrors.WithDetails(appErrors.ErrValidation, "invalid date range", map[string]string{"end": "must not be before start"})
	}
	return s.List(ctx, models.SubmissionFilter{From: &start, To: &end})
}

// Get returns a submission by ID.
func (s *SubmissionService) Get(ctx context.Context, id string) (*models.Submission, error) {
	return cachedRead(ctx, s.cache, cacheKey(cacheNamespaceSubmissions, "id", id), func() (*models.Submission, error) {
		return s.find(ctx, id)
	})
}

func (s *SubmissionService) find(ctx context.Context, id string) (*models.Submission, error) {
	submission, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "submission not found")
		}
		return nil, appErrors.Internal(err, "failed to load submission")
	}
	return submission, nil
}

// Create records a submission. Unknown user or task references fail
// validation and a second submission for the same pair is a duplicate.
func (s *SubmissionService) Create(ctx context.Context, req dto.SubmissionRequest) (*models.Submission, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validation.Wrap(err, "invalid submission payload")
	}
	if err := s.resolveReferences(ctx, req.UserID, req.TaskID); err != nil {
		return nil, err
	}
	if err := s.ensureUniquePair(ctx, "", req.TaskID, req.UserID); err != nil {
		return nil, err
	}

	now := storedTime(s.now())
	submission := &models.Submission{
		ID:             uuid.NewString(),
		SubmissionDate: now,
		Status:         models.SubmissionSubmitted,
		Grade:          storedGradePtr(req.Grade),
		Comments:       req.Comments,
		FileURL:        req.FileURL,
		FileName:       req.FileName,
		FileSize:       req.FileSize,
		UserID:         req.UserID,
		TaskID:         req.TaskID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if req.SubmissionDate != nil {
		submission.SubmissionDate = storedTime(*req.SubmissionDate)
	}
	if req.Status != "" {
		submission.Status = req.Status
	}

	if err := s.repo.Create(ctx, submission); err != nil {
		return nil, s.translateWriteError(err, "failed to create submission")
	}
	s.cache.Invalidate(ctx, cacheNamespaceSubmissions)
	s.metrics.RecordEvent("submission", "created")
	s.logger.Info("submission created",
		zap.String("submission_id", submission.ID),
		zap.String("task_id", submission.TaskID),
		zap.String("user_id", submission.UserID),
	)
	return submission, nil
}

// Update replaces a submission. References are resolved again and the
// (task, user) pair must stay unique. File metadata omitted from the payload
// is kept.
func (s *SubmissionService) Update(ctx context.Context, id string, req dto.SubmissionRequest) (*models.Submission, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validation.Wrap(err, "invalid submission payload")
	}

	submission, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.resolveReferences(ctx, req.UserID, req.TaskID); err != nil {
		return nil, err
	}
	if err := s.ensureUniquePair(ctx, id, req.TaskID, req.UserID); err != nil {
		return nil, err
	}

	if req.SubmissionDate != nil {
		submission.SubmissionDate = storedTime(*req.SubmissionDate)
	}
	if req.Status != "" {
		submission.Status = req.Status
	}
	submission.Grade = storedGradePtr(req.Grade)
	submission.Comments = req.Comments
	if req.FileURL != nil {
		submission.FileURL = req.FileURL
	}
	if req.FileName != nil {
		submission.FileName = req.FileName
	}
	if req.FileSize != nil {
		submission.FileSize = req.FileSize
	}
	submission.UserID = req.UserID
	submission.TaskID = req.TaskID
	submission.UpdatedAt = storedTime(s.now())

	if err := s.repo.Update(ctx, submission); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "submission not found")
		}
		return nil, s.translateWriteError(err, "failed to update submission")
	}
	s.cache.Invalidate(ctx, cacheNamespaceSubmissions)
	return submission, nil
}

// Delete removes a submission.
func (s *SubmissionService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "submission not found")
		}
		return appErrors.Internal(err, "failed to delete submission")
	}
	if s.files != nil {
		if err := s.files.Discard(id); err != nil {
			s.logger.Warn("failed to discard submission files", zap.String("submission_id", id), zap.Error(err))
		}
	}
	s.cache.Invalidate(ctx, cacheNamespaceSubmissions)
	s.metrics.RecordEvent("submission", "deleted")
	return nil
}

// AttachFile stores an uploaded file for a submission and records its name,
// size and stable file URL. The returned link is signed and expires.
func (s *SubmissionService) AttachFile(ctx context.Context, id, fileName string, r io.Reader) (*models.Submission, *dto.DownloadLink, error) {
	if s.files == nil {
		return nil, nil, appErrors.Internal(errors.New("file storage not configured"), "file uploads are unavailable")
	}

	submission, err := s.find(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	stored, err := s.files.Store(id, fileName, r)
	if err != nil {
		return nil, nil, err
	}
	if submission.FileName != nil && sanitizeFilename(*submission.FileName) != stored.Name {
		if err := s.files.Remove(id, *submission.FileName); err != nil {
			s.logger.Warn("failed to remove replaced submission file", zap.String("submission_id", id), zap.Error(err))
		}
	}

	now := storedTime(s.now())
	fileURL := s.files.ResourceURL(id)
	if err := s.repo.UpdateFile(ctx, id, stored.Name, stored.Size, fileURL, now); err != nil {
		_ = s.files.Remove(id, stored.Name)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "submission not found")
		}
		return nil, nil, appErrors.Internal(err, "failed to record submission file")
	}
	s.cache.Invalidate(ctx, cacheNamespaceSubmissions)

	submission.FileName = &stored.Name
	submission.FileSize = &stored.Size
	submission.FileURL = &fileURL
	submission.UpdatedAt = now
	return submission, &dto.DownloadLink{URL: stored.URL, ExpiresAt: stored.ExpiresAt}, nil
}

// FileLink signs a fresh download link for the file attached to a submission.
func (s *SubmissionService) FileLink(ctx context.Context, id string) (*dto.DownloadLink, error) {
	submission, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.files == nil || submission.FileName == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "submission has no file")
	}

	url, expiresAt, err := s.files.Link(id, *submission.FileName)
	if err != nil {
		return nil, err
	}
	return &dto.DownloadLink{URL: url, ExpiresAt: expiresAt}, nil
}

// OpenFile resolves a signed download token to the stored file.
func (s *SubmissionService) OpenFile(token string) (*os.File, string, error) {
	if s.files == nil {
		return nil, "", appErrors.Clone(appErrors.ErrNotFound, "file not found")
	}
	return s.files.Open(token)
}

// resolveReferences reads the store directly so a cached entry can never
// stand in for a deleted user or task.
func (s *SubmissionService) resolveReferences(ctx context.Context, userID, taskID string) error {
	details := map[string]string{}

	if _, err := s.users.FindByID(ctx, userID); err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return appErrors.Internal(err, "failed to resolve user")
		}
		details["userId"] = "user not found"
	}
	if _, err := s.tasks.FindByID(ctx, taskID); err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return appErrors.Internal(err, "failed to resolve task")
		}
		details["taskId"] = "task not found"
	}

	if len(details) > 0 {
		return appErrors.WithDetails(appErrors.ErrValidation, "submission references do not resolve", details)
	}
	return nil
}

func (s *SubmissionService) ensureUniquePair(ctx context.Context, selfID, taskID, userID string) error {
	existing, err := s.repo.FindByTaskAndUser(ctx, taskID, userID)
	switch {
	case err == nil && existing.ID != selfID:
		s.metrics.RecordEvent("submission", "duplicate_rejected")
		return duplicateSubmission()
	case err != nil && !errors.Is(err, sql.ErrNoRows):
		return appErrors.Internal(err, "failed to check submission uniqueness")
	}
	return nil
}

func (s *SubmissionService) translateWriteError(err error, message string) error {
	switch {
	case errors.Is(err, repository.ErrDuplicateKey):
		s.metrics.RecordEvent("submission", "duplicate_rejected")
		return duplicateSubmission()
	case errors.Is(err, repository.ErrForeignKey):
		return appErrors.Clone(appErrors.ErrValidation, "submission references do not resolve")
	}
	return appErrors.Internal(err, message)
}

func duplicateSubmission() error {
	return appErrors.WithDetails(appErrors.ErrDuplicateKey, "a submission already exists for this task and user",
		map[string]string{"taskId": "already submitted by this user"})
}
