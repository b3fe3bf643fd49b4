package handler

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/coursework-api/internal/dto"
	"github.com/noah-isme/coursework-api/internal/models"
	appErrors "github.com/noah-isme/coursework-api/pkg/errors"
)

type fakeTaskSrv struct {
	lastFilter models.TaskFilter
	lastDue    time.Time
	created    dto.CreateTaskRequest
}

func (f *fakeTaskSrv) List(_ context.Context, filter models.TaskFilter) ([]models.Task, error) {
	f.lastFilter = filter
	return []models.Task{{ID: "t-1"}, {ID: "t-2"}}, nil
}

func (f *fakeTaskSrv) ListByStatus(_ context.Context, status models.TaskStatus) ([]models.Task, error) {
	if !status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid task status")
	}
	return []models.Task{{ID: "t-1", Status: status}}, nil
}

func (f *fakeTaskSrv) ListActive(context.Context) ([]models.Task, error) {
	return []models.Task{{ID: "t-1", Status: models.TaskActive}}, nil
}

func (f *fakeTaskSrv) DueAfter(_ context.Context, ts time.Time) ([]models.Task, error) {
	f.lastDue = ts
	return nil, nil
}

func (f *fakeTaskSrv) DueBefore(_ context.Context, ts time.Time) ([]models.Task, error) {
	f.lastDue = ts
	return []models.Task{{ID: "t-9"}}, nil
}

func (f *fakeTaskSrv) SearchByTitle(_ context.Context, text string) ([]models.Task, error) {
	return []models.Task{{ID: "t-1", Title: text}}, nil
}

func (f *fakeTaskSrv) Get(_ context.Context, id string) (*models.Task, error) {
	if id == "missing" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "task not found")
	}
	return &models.Task{ID: id}, nil
}

func (f *fakeTaskSrv) Create(_ context.Context, req dto.CreateTaskRequest) (*models.Task, error) {
	f.created = req
	return &models.Task{ID: "t-new", Title: req.Title}, nil
}

func (f *fakeTaskSrv) Update(_ context.Context, id string, req dto.UpdateTaskRequest) (*models.Task, error) {
	return &models.Task{ID: id, Title: req.Title}, nil
}

func (f *fakeTaskSrv) Delete(_ context.Context, id string) error {
	if id == "missing" {
		return appErrors.Clone(appErrors.ErrNotFound, "task not found")
	}
	return nil
}

func TestTaskHandlerListFilters(t *testing.T) {
	srv := &fakeTaskSrv{}
	handler := NewTaskHandler(srv)

	c, rec := newTestContext(http.MethodGet, "/tasks?status=ARCHIVED&dueAfter=2024-03-01&title=ensayo", nil)
	handler.List(c)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, srv.lastFilter.Status)
	assert.Equal(t, models.TaskArchived, *srv.lastFilter.Status)
	require.NotNil(t, srv.lastFilter.DueAfter)
	assert.True(t, srv.lastFilter.DueAfter.Equal(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)))
	assert.Nil(t, srv.lastFilter.DueBefore)
	assert.Equal(t, "ensayo", srv.lastFilter.Title)
	assert.EqualValues(t, 2, decodeEnvelope(t, rec).Meta["count"])

	c, rec = newTestContext(http.MethodGet, "/tasks?status=DONE", nil)
	handler.List(c)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	c, rec = newTestContext(http.MethodGet, "/tasks?dueBefore=yesterday", nil)
	handler.List(c)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeEnvelope(t, rec).Error.Details, "dueBefore")
}

func TestTaskHandlerDueQueries(t *testing.T) {
	srv := &fakeTaskSrv{}
	handler := NewTaskHandler(srv)

	c, rec := newTestContext(http.MethodGet, "/tasks/due-before?date=2024-05-01T10:00:00Z", nil)
	handler.DueBefore(c)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, srv.lastDue.Equal(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)))

	c, rec = newTestContext(http.MethodGet, "/tasks/due-after", nil)
	handler.DueAfter(c)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "is required", decodeEnvelope(t, rec).Error.Details["date"])
}

func TestTaskHandlerCreate(t *testing.T) {
	srv := &fakeTaskSrv{}
	handler := NewTaskHandler(srv)

	body := `{"title":"Ensayo final","description":"Redactar un ensayo de cinco paginas","publicationDate":"2030-01-01T00:00:00Z","dueDate":"2030-02-01T00:00:00Z","maxGrade":18}`
	c, rec := newTestContext(http.MethodPost, "/tasks", strings.NewReader(body))
	handler.Create(c)
	assert.Equal(t, http.StatusCreated, rec.Code)
	require.NotNil(t, srv.created.MaxGrade)
	assert.Equal(t, 18.0, *srv.created.MaxGrade)

	c, rec = newTestContext(http.MethodPost, "/tasks", strings.NewReader(`{"title":`))
	handler.Create(c)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTaskHandlerGetAndDelete(t *testing.T) {
	handler := NewTaskHandler(&fakeTaskSrv{})

	c, rec := newTestContext(http.MethodGet, "/tasks/missing", nil)
	c.Params = gin.Params{{Key: "id", Value: "missing"}}
	handler.Get(c)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	c, _ = newTestContext(http.MethodDelete, "/tasks/t-1", nil)
	c.Params = gin.Params{{Key: "id", Value: "t-1"}}
	handler.Delete(c)
	assert.Equal(t, http.StatusNoContent, c.Writer.Status())
}

func TestTaskHandlerByStatus(t *testing.T) {
	handler := NewTaskHandler(&fakeTaskSrv{})

	c, rec := newTestContext(http.MethodGet, "/tasks/status/INACTIVE", nil)
	c.Params = gin.Params{{Key: "status", Value: "INACTIVE"}}
	handler.ByStatus(c)
	assert.Equal(t, http.StatusOK, rec.Code)

	c, rec = newTestContext(http.MethodGet, "/tasks/status/nope", nil)
	c.Params = gin.Params{{Key: "status", Value: "nope"}}
	handler.ByStatus(c)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
