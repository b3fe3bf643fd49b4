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
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/coursework-api/internal/dto"
	"github.com/noah-isme/coursework-api/internal/models"
	"github.com/noah-isme/coursework-api/internal/repository"
	appErrors "github.com/noah-isme/coursework-api/pkg/errors"
	"github.com/noah-isme/coursework-api/pkg/validation"
)

type userRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	List(ctx context.Context, filter models.UserFilter) ([]models.User, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, id string) error
}

type submissionCounter interface {
	Count(ctx context.Context, scope models.GradeAverageScope) (int, error)
}

// UserService manages the user directory.
type UserService struct {
	repo        userRepository
	submissions submissionCounter
	cache       *CacheService
	validator   *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
	hashCost    int
}

// NewUserService creates an instance of UserService.
func NewUserService(repo userRepository, submissions submissionCounter, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validation.New()
	}
	return &UserService{
		repo:        repo,
		submissions: submissions,
		cache:       cache,
		validator:   validate,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
		hashCost:    bcrypt.DefaultCost,
	}
}

// List returns users matching filter ordered by last name, first name.
func (s *UserService) List(ctx context.Context, filter models.UserFilter) ([]models.User, error) {
	role := ""
	if filter.Role != nil {
		role = string(*filter.Role)
	}
	key := cacheKey(cacheNamespaceUsers, "list", role, strings.ToLower(strings.TrimSpace(filter.Name)))
	return cachedRead(ctx, s.cache, key, func() ([]models.User, error) {
		users, err := s.repo.List(ctx, filter)
		if err != nil {
			return nil, appErrors.Internal(err, "failed to list users")
		}
		return users, nil
	})
}

// ListByRole returns every user with role.
func (s *UserService) ListByRole(ctx context.Context, role models.UserRole) ([]models.User, error) {
	if !role.Valid() {
		return nil, appErrors.WithDetails(appErrors.ErrValidation, "invalid role", map[string]string{"role": "must be one of [STUDENT PROFESSOR ADMIN]"})
	}
	return s.List(ctx, models.UserFilter{Role: &role})
}

// SearchByName matches text case-insensitively against first or last name.
func (s *UserService) SearchByName(ctx context.Context, text string) ([]models.User, error) {
	if strings.TrimSpace(text) == "" {
		return nil, appErrors.WithDetails(appErrors.ErrValidation, "search text is required", map[string]string{"name": "is required"})
	}
	return s.List(ctx, models.UserFilter{Name: text})
}

// Get returns a user by ID.
func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	return cachedRead(ctx, s.cache, cacheKey(cacheNamespaceUsers, "id", id), func() (*models.User, error) {
		return s.find(ctx, s.repo.FindByID, id)
	})
}

// GetByUsername returns a user by exact username.
func (s *UserService) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return cachedRead(ctx, s.cache, cacheKey(cacheNamespaceUsers, "username", username), func() (*models.User, error) {
		return s.find(ctx, s.repo.FindByUsername, username)
	})
}

// GetByEmail returns a user by email.
func (s *UserService) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return cachedRead(ctx, s.cache, cacheKey(cacheNamespaceUsers, "email", email), func() (*models.User, error) {
		return s.find(ctx, s.repo.FindByEmail, email)
	})
}

func (s *UserService) find(ctx context.Context, lookup func(context.Context, string) (*models.User, error), value string) (*models.User, error) {
	user, err := lookup(ctx, value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Internal(err, "failed to load user")
	}
	return user, nil
}

// Create adds a new user with any role.
func (s *UserService) Create(ctx context.Context, req dto.CreateUserRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validation.Wrap(err, "invalid create user payload")
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if err := s.ensureUnique(ctx, "", req.Username, email); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.hashCost)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to hash password")
	}

	now := s.now()
	user := &models.User{
		ID:           uuid.NewString(),
		Username:     req.Username,
		PasswordHash: string(hash),
		Email:        email,
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		Phone:        normalizePhone(req.Phone),
		Role:         req.Role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return nil, s.translateWriteError(err, "failed to create user")
	}
	s.cache.Invalidate(ctx, cacheNamespaceUsers)
	s.logger.Info("user created", zap.String("user_id", user.ID), zap.String("role", string(user.Role)))
	return user, nil
}

// Register creates a student account from a self-service sign up.
func (s *UserService) Register(ctx context.Context, req dto.RegisterRequest) (*models.User, error) {
	return s.Create(ctx, req.CreateUserRequest())
}

// Update replaces a user's profile. An empty password keeps the stored hash.
func (s *UserService) Update(ctx context.Context, id string, req dto.UpdateUserRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validation.Wrap(err, "invalid update user payload")
	}

	user, err := s.find(ctx, s.repo.FindByID, id)
	if err != nil {
		return nil, err
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if err := s.ensureUnique(ctx, id, req.Username, email); err != nil {
		return nil, err
	}

	if req.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.hashCost)
		if err != nil {
			return nil, appErrors.Internal(err, "failed to hash password")
		}
		user.PasswordHash = string(hash)
	}

	user.Username = req.Username
	user.Email = email
	user.FirstName = strings.TrimSpace(req.FirstName)
	user.LastName = strings.TrimSpace(req.LastName)
	user.Phone = normalizePhone(req.Phone)
	user.Role = req.Role
	user.UpdatedAt = s.now()

	if err := s.repo.Update(ctx, user); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, s.translateWriteError(err, "failed to update user")
	}
	s.cache.Invalidate(ctx, cacheNamespaceUsers)
	return user, nil
}

// Delete removes a user. Users with submissions cannot be deleted.
func (s *UserService) Delete(ctx context.Context, id string) error {
	if _, err := s.find(ctx, s.repo.FindByID, id); err != nil {
		return err
	}

	if s.submissions != nil {
		count, err := s.submissions.Count(ctx, models.GradeAverageScope{UserID: id})
		if err != nil {
			return appErrors.Internal(err, "failed to check user submissions")
		}
		if count > 0 {
			return appErrors.Clone(appErrors.ErrConflict, "user has submissions and cannot be deleted")
		}
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return appErrors.Clone(appErrors.ErrNotFound, "user not found")
		case errors.Is(err, repository.ErrForeignKey):
			return appErrors.Clone(appErrors.ErrConflict, "user has submissions and cannot be deleted")
		}
		return appErrors.Internal(err, "failed to delete user")
	}
	s.cache.Invalidate(ctx, cacheNamespaceUsers)
	s.logger.Info("user deleted", zap.String("user_id", id))
	return nil
}

// ensureUnique rejects a username or email owned by a user other than selfID.
func (s *UserService) ensureUnique(ctx context.Context, selfID, username, email string) error {
	details := map[string]string{}

	existing, err := s.repo.FindByUsername(ctx, username)
	switch {
	case err == nil && existing.ID != selfID:
		details["username"] = "already exists"
	case err != nil && !errors.Is(err, sql.ErrNoRows):
		return appErrors.Internal(err, "failed to check username uniqueness")
	}

	existing, err = s.repo.FindByEmail(ctx, email)
	switch {
	case err == nil && existing.ID != selfID:
		details["email"] = "already exists"
	case err != nil && !errors.Is(err, sql.ErrNoRows):
		return appErrors.Internal(err, "failed to check email uniqueness")
	}

	if len(details) > 0 {
		return appErrors.WithDetails(appErrors.ErrDuplicateKey, "username or email already exists", details)
	}
	return nil
}

func (s *UserService) translateWriteError(err error, message string) error {
	if errors.Is(err, repository.ErrDuplicateKey) {
		field := "username"
		if strings.Contains(repository.Constraint(err), "email") {
			field = "email"
		}
		return appErrors.WithDetails(appErrors.ErrDuplicateKey, "username or email already exists", map[string]string{field: "already exists"})
	}
	return appErrors.Internal(err, message)
}

func normalizePhone(phone *string) *string {
	if phone == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*phone)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
