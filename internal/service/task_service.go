package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/coursework-api/internal/dto"
	"github.com/noah-isme/coursework-api/internal/models"
	appErrors "github.com/noah-isme/coursework-api/pkg/errors"
	"github.com/noah-isme/coursework-api/pkg/validation"
)

type taskRepository interface {
	FindByID(ctx context.Context, id string) (*models.Task, error)
	List(ctx context.Context, filter models.TaskFilter) ([]models.Task, error)
	Create(ctx context.Context, task *models.Task) error
	Update(ctx context.Context, task *models.Task) error
	Delete(ctx context.Context, id string) error
}

type submissionLister interface {
	List(ctx context.Context, filter models.SubmissionFilter) ([]models.Submission, error)
}

// TaskService manages the task catalog.
type TaskService struct {
	repo        taskRepository
	submissions submissionLister
	files       *FileService
	cache       *CacheService
	validator   *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
}

// NewTaskService creates an instance of TaskService. files may be nil when
// uploads are disabled.
func NewTaskService(repo taskRepository, submissions submissionLister, files *FileService, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *TaskService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validation.New()
	}
	return &TaskService{
		repo:        repo,
		submissions: submissions,
		files:       files,
		cache:       cache,
		validator:   validate,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// List returns tasks matching filter.
func (s *TaskService) List(ctx context.Context, filter models.TaskFilter) ([]models.Task, error) {
	status := ""
	if filter.Status != nil {
		status = string(*filter.Status)
	}
	order := "created"
	if filter.OrderByDueDate {
		order = "due"
	}
	key := cacheKey(cacheNamespaceTasks, "list", status, formatCacheTime(filter.DueAfter), formatCacheTime(filter.DueBefore), strings.ToLower(strings.TrimSpace(filter.Title)), order)
	return cachedRead(ctx, s.cache, key, func() ([]models.Task, error) {
		tasks, err := s.repo.List(ctx, filter)
		if err != nil {
			return nil, appErrors.Internal(err, "failed to list tasks")
		}
		return tasks, nil
	})
}

// ListByStatus returns every task in status.
func (s *TaskService) ListByStatus(ctx context.Context, status models.TaskStatus) ([]models.Task, error) {
	if !status.Valid() {
		return nil, appErrors.WithDetails(appErrors.ErrValidation, "invalid task status", map[string]string{"status": "must be one of [ACTIVE INACTIVE ARCHIVED]"})
	}
	return s.List(ctx, models.TaskFilter{Status: &status})
}

// ListActive returns active tasks ordered by due date.
func (s *TaskService) ListActive(ctx context.Context) ([]models.Task, error) {
	status := models.TaskActive
	return s.List(ctx, models.TaskFilter{Status: &status, OrderByDueDate: true})
}

// DueAfter returns tasks due strictly after ts.
func (s *TaskService) DueAfter(ctx context.Context, ts time.Time) ([]models.Task, error) {
	return s.List(ctx, models.TaskFilter{DueAfter: &ts, OrderByDueDate: true})
}

// DueBefore returns tasks due strictly before ts.
func (s *TaskService) DueBefore(ctx context.Context, ts time.Time) ([]models.Task, error) {
	return s.List(ctx, models.TaskFilter{DueBefore: &ts, OrderByDueDate: true})
}

// SearchByTitle matches text case-insensitively against the title.
func (s *TaskService) SearchByTitle(ctx context.Context, text string) ([]models.Task, error) {
	if strings.TrimSpace(text) == "" {
		return nil, appErrors.WithDetails(appErrors.ErrValidation, "search text is required", map[string]string{"title": "is required"})
	}
	return s.List(ctx, models.TaskFilter{Title: text})
}

// Get returns a task by ID.
func (s *TaskService) Get(ctx context.Context, id string) (*models.Task, error) {
	return cachedRead(ctx, s.cache, cacheKey(cacheNamespaceTasks, "id", id), func() (*models.Task, error) {
		return s.find(ctx, id)
	})
}

func (s *TaskService) find(ctx context.Context, id string) (*models.Task, error) {
	task, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "task not found")
		}
		return nil, appErrors.Internal(err, "failed to load task")
	}
	return task, nil
}

// Create publishes a task.
func (s *TaskService) Create(ctx context.Context, req dto.CreateTaskRequest) (*models.Task, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validation.Wrap(err, "invalid create task payload")
	}

	now := storedTime(s.now())
	task := &models.Task{
		ID:              uuid.NewString(),
		Title:           strings.TrimSpace(req.Title),
		Description:     req.Description,
		PublicationDate: storedTime(req.PublicationDate),
		DueDate:         storedTime(req.DueDate),
		Status:          req.Status,
		MaxGrade:        models.DefaultMaxGrade,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if task.Status == "" {
		task.Status = models.TaskActive
	}
	if req.MaxGrade != nil {
		task.MaxGrade = storedGrade(*req.MaxGrade)
	}

	if err := s.repo.Create(ctx, task); err != nil {
		return nil, appErrors.Internal(err, "failed to create task")
	}
	s.cache.Invalidate(ctx, cacheNamespaceTasks)
	s.logger.Info("task created", zap.String("task_id", task.ID))
	return task, nil
}

// Update replaces a task. Any status may be set.
func (s *TaskService) Update(ctx context.Context, id string, req dto.UpdateTaskRequest) (*models.Task, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validation.Wrap(err, "invalid update task payload")
	}

	task, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}

	task.Title = strings.TrimSpace(req.Title)
	task.Description = req.Description
	task.PublicationDate = storedTime(req.PublicationDate)
	task.DueDate = storedTime(req.DueDate)
	if req.Status != "" {
		task.Status = req.Status
	}
	if req.MaxGrade != nil {
		task.MaxGrade = storedGrade(*req.MaxGrade)
	}
	task.UpdatedAt = storedTime(s.now())

	if err := s.repo.Update(ctx, task); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "task not found")
		}
		return nil, appErrors.Internal(err, "failed to update task")
	}
	s.cache.Invalidate(ctx, cacheNamespaceTasks)
	return task, nil
}

// Delete removes a task together with its submissions and their uploads.
func (s *TaskService) Delete(ctx context.Context, id string) error {
	var cascaded []models.Submission
	if s.files != nil && s.submissions != nil {
		subs, err := s.submissions.List(ctx, models.SubmissionFilter{TaskID: id})
		if err != nil {
			return appErrors.Internal(err, "failed to list task submissions")
		}
		cascaded = subs
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "task not found")
		}
		return appErrors.Internal(err, "failed to delete task")
	}
	s.cache.Invalidate(ctx, cacheNamespaceTasks, cacheNamespaceSubmissions)

	for _, sub := range cascaded {
		if err := s.files.Discard(sub.ID); err != nil {
			s.logger.Warn("failed to discard submission files", zap.String("submission_id", sub.ID), zap.Error(err))
		}
	}
	s.logger.Info("task deleted", zap.String("task_id", id), zap.Int("submissions", len(cascaded)))
	return nil
}

func formatCacheTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}
