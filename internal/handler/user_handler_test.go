package handler

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/coursework-api/internal/dto"
	"github.com/noah-isme/coursework-api/internal/models"
	appErrors "github.com/noah-isme/coursework-api/pkg/errors"
)

type fakeUserSrv struct {
	lastFilter models.UserFilter
	lookedUp   string
}

func (f *fakeUserSrv) List(_ context.Context, filter models.UserFilter) ([]models.User, error) {
	f.lastFilter = filter
	return []models.User{{ID: "u-1"}}, nil
}

func (f *fakeUserSrv) ListByRole(_ context.Context, role models.UserRole) ([]models.User, error) {
	if !role.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid role")
	}
	return []models.User{{ID: "u-1", Role: role}}, nil
}

func (f *fakeUserSrv) SearchByName(_ context.Context, text string) ([]models.User, error) {
	return []models.User{{ID: "u-1", FirstName: text}}, nil
}

func (f *fakeUserSrv) Get(_ context.Context, id string) (*models.User, error) {
	if id == "missing" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
	}
	return &models.User{ID: id}, nil
}

func (f *fakeUserSrv) GetByUsername(_ context.Context, username string) (*models.User, error) {
	f.lookedUp = "username:" + username
	return &models.User{ID: "u-1", Username: username}, nil
}

func (f *fakeUserSrv) GetByEmail(_ context.Context, email string) (*models.User, error) {
	f.lookedUp = "email:" + email
	return &models.User{ID: "u-1", Email: email}, nil
}

func (f *fakeUserSrv) Create(_ context.Context, req dto.CreateUserRequest) (*models.User, error) {
	if req.Username == "taken" {
		return nil, appErrors.WithDetails(appErrors.ErrDuplicateKey, "username or email already exists", map[string]string{"username": "already exists"})
	}
	return &models.User{ID: "u-2", Username: req.Username}, nil
}

func (f *fakeUserSrv) Update(_ context.Context, id string, req dto.UpdateUserRequest) (*models.User, error) {
	return &models.User{ID: id, Username: req.Username}, nil
}

func (f *fakeUserSrv) Delete(_ context.Context, id string) error {
	if id == "busy" {
		return appErrors.Clone(appErrors.ErrConflict, "user has submissions and cannot be deleted")
	}
	return nil
}

func TestUserHandlerListFilters(t *testing.T) {
	srv := &fakeUserSrv{}
	handler := NewUserHandler(srv)

	c, rec := newTestContext(http.MethodGet, "/users?role=STUDENT&name=ana", nil)
	handler.List(c)
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, srv.lastFilter.Role)
	assert.Equal(t, models.RoleStudent, *srv.lastFilter.Role)
	assert.Equal(t, "ana", srv.lastFilter.Name)

	c, rec = newTestContext(http.MethodGet, "/users?role=ROOT", nil)
	handler.List(c)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUserHandlerCreateConflict(t *testing.T) {
	handler := NewUserHandler(&fakeUserSrv{})

	c, rec := newTestContext(http.MethodPost, "/users", strings.NewReader(`{"username":"fresh"}`))
	handler.Create(c)
	assert.Equal(t, http.StatusCreated, rec.Code)

	c, rec = newTestContext(http.MethodPost, "/users", strings.NewReader(`{"username":"taken"}`))
	handler.Create(c)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "already exists", decodeEnvelope(t, rec).Error.Details["username"])
}

func TestUserHandlerDeleteConflict(t *testing.T) {
	handler := NewUserHandler(&fakeUserSrv{})
	c, rec := newTestContext(http.MethodDelete, "/users/busy", nil)
	c.Params = gin.Params{{Key: "id", Value: "busy"}}
	handler.Delete(c)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "CONFLICT", decodeEnvelope(t, rec).Error.Code)
}

func TestUserHandlerLookup(t *testing.T) {
	srv := &fakeUserSrv{}
	handler := NewUserHandler(srv)

	c, rec := newTestContext(http.MethodGet, "/users/lookup?email=a@example.com", nil)
	handler.Lookup(c)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "email:a@example.com", srv.lookedUp)

	c, _ = newTestContext(http.MethodGet, "/users/lookup?username=ana", nil)
	handler.Lookup(c)
	assert.Equal(t, "username:ana", srv.lookedUp)

	c, rec = newTestContext(http.MethodGet, "/users/lookup", nil)
	handler.Lookup(c)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUserHandlerMe(t *testing.T) {
	handler := NewUserHandler(&fakeUserSrv{})

	c, rec := newTestContext(http.MethodGet, "/users/me", nil)
	withClaims(c, &models.JWTClaims{UserID: "u-7", Role: models.RoleStudent})
	handler.Me(c)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(decodeEnvelope(t, rec).Data), `"id":"u-7"`)
}
