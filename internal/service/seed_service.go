package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/noah-isme/coursework-api/internal/dto"
	"github.com/noah-isme/coursework-api/internal/models"
	appErrors "github.com/noah-isme/coursework-api/pkg/errors"
)

func strPtr(s string) *string { return &s }

// DefaultAccounts are the demo accounts created by the seeder, one per role.
var DefaultAccounts = []dto.CreateUserRequest{
	{Username: "admin", Password: "admin123", Email: "admin@tecsup.edu.pe", FirstName: "Administrador", LastName: "Sistema", Phone: strPtr("+51999111222"), Role: models.RoleAdmin},
	{Username: "profesor", Password: "profesor123", Email: "profesor@tecsup.edu.pe", FirstName: "Ricardo", LastName: "Coello", Phone: strPtr("+51999222333"), Role: models.RoleProfessor},
	{Username: "estudiante", Password: "estudiante123", Email: "estudiante@tecsup.edu.pe", FirstName: "Alvaro", LastName: "Bueno", Phone: strPtr("+51999333444"), Role: models.RoleStudent},
}

// SeedService creates the default accounts when they are missing.
type SeedService struct {
	repo   userRepository
	users  *UserService
	logger *zap.Logger
}

// NewSeedService constructs a seeder on top of the user directory.
func NewSeedService(repo userRepository, users *UserService, logger *zap.Logger) *SeedService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SeedService{repo: repo, users: users, logger: logger}
}

// SeedDefaultUsers creates each account in accounts whose username is not
// taken yet and returns the usernames it created. Running it twice is a no-op.
func (s *SeedService) SeedDefaultUsers(ctx context.Context, accounts []dto.CreateUserRequest) ([]string, error) {
	created := make([]string, 0, len(accounts))
	for _, account := range accounts {
		_, err := s.repo.FindByUsername(ctx, account.Username)
		if err == nil {
			s.logger.Debug("seed account exists", zap.String("username", account.Username))
			continue
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return created, appErrors.Internal(err, "failed to check seed account")
		}

		if _, err := s.users.Create(ctx, account); err != nil {
			if errors.Is(err, appErrors.ErrDuplicateKey) {
				continue
			}
			return created, err
		}
		created = append(created, account.Username)
		s.logger.Info("seed account created", zap.String("username", account.Username), zap.String("role", string(account.Role)))
	}
	return created, nil
}
