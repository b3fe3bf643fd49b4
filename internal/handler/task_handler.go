package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/coursework-api/internal/dto"
	"github.com/noah-isme/coursework-api/internal/models"
	appErrors "github.com/noah-isme/coursework-api/pkg/errors"
	"github.com/noah-isme/coursework-api/pkg/response"
)

type taskService interface {
	List(ctx context.Context, filter models.TaskFilter) ([]models.Task, error)
	ListByStatus(ctx context.Context, status models.TaskStatus) ([]models.Task, error)
	ListActive(ctx context.Context) ([]models.Task, error)
	DueAfter(ctx context.Context, ts time.Time) ([]models.Task, error)
	DueBefore(ctx context.Context, ts time.Time) ([]models.Task, error)
	SearchByTitle(ctx context.Context, text string) ([]models.Task, error)
	Get(ctx context.Context, id string) (*models.Task, error)
	Create(ctx context.Context, req dto.CreateTaskRequest) (*models.Task, error)
	Update(ctx context.Context, id string, req dto.UpdateTaskRequest) (*models.Task, error)
	Delete(ctx context.Context, id string) error
}

// TaskHandler exposes the task catalog.
type TaskHandler struct {
	service taskService
}

// NewTaskHandler constructs a task handler.
func NewTaskHandler(svc taskService) *TaskHandler {
	return &TaskHandler{service: svc}
}

// List godoc
// @Summary List tasks
// @Tags Tasks
// @Produce json
// @Param status query string false "ACTIVE, INACTIVE or ARCHIVED"
// @Param dueAfter query string false "Due strictly after (ISO-8601)"
// @Param dueBefore query string false "Due strictly before (ISO-8601)"
// @Param title query string false "Title contains"
// @Success 200 {object} response.Envelope
// @Router /tasks [get]
func (h *TaskHandler) List(c *gin.Context) {
	var filter models.TaskFilter
	if status := c.Query("status"); status != "" {
		s := models.TaskStatus(status)
		if !s.Valid() {
			response.Error(c, appErrors.WithDetails(appErrors.ErrValidation, "invalid task status", map[string]string{"status": "must be one of [ACTIVE INACTIVE ARCHIVED]"}))
			return
		}
		filter.Status = &s
	}
	var err error
	if filter.DueAfter, err = optionalTimeQuery(c, "dueAfter"); err != nil {
		response.Error(c, err)
		return
	}
	if filter.DueBefore, err = optionalTimeQuery(c, "dueBefore"); err != nil {
		response.Error(c, err)
		return
	}
	filter.Title = c.Query("title")

	tasks, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, tasks, listMeta(c, len(tasks)))
}

// Get godoc
// @Summary Get task
// @Tags Tasks
// @Produce json
// @Param id path string true "Task ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /tasks/{id} [get]
func (h *TaskHandler) Get(c *gin.Context) {
	task, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, task)
}

// ByStatus godoc
// @Summary List tasks by status
// @Tags Tasks
// @Produce json
// @Param status path string true "ACTIVE, INACTIVE or ARCHIVED"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /tasks/status/{status} [get]
func (h *TaskHandler) ByStatus(c *gin.Context) {
	tasks, err := h.service.ListByStatus(c.Request.Context(), models.TaskStatus(c.Param("status")))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, tasks, listMeta(c, len(tasks)))
}

// Active godoc
// @Summary List active tasks by due date
// @Tags Tasks
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /tasks/active [get]
func (h *TaskHandler) Active(c *gin.Context) {
	tasks, err := h.service.ListActive(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, tasks, listMeta(c, len(tasks)))
}

// DueAfter godoc
// @Summary Tasks due after a date
// @Tags Tasks
// @Produce json
// @Param date query string true "ISO-8601 date-time"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /tasks/due-after [get]
func (h *TaskHandler) DueAfter(c *gin.Context) {
	h.listByDue(c, h.service.DueAfter)
}

// DueBefore godoc
// @Summary Tasks due before a date
// @Tags Tasks
// @Produce json
// @Param date query string true "ISO-8601 date-time"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /tasks/due-before [get]
func (h *TaskHandler) DueBefore(c *gin.Context) {
	h.listByDue(c, h.service.DueBefore)
}

func (h *TaskHandler) listByDue(c *gin.Context, query func(context.Context, time.Time) ([]models.Task, error)) {
	ts, err := timeQuery(c, "date")
	if err != nil {
		response.Error(c, err)
		return
	}
	tasks, err := query(c.Request.Context(), ts)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, tasks, listMeta(c, len(tasks)))
}

// Search godoc
// @Summary Search tasks by title
// @Tags Tasks
// @Produce json
// @Param title query string true "Title contains"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /tasks/search [get]
func (h *TaskHandler) Search(c *gin.Context) {
	tasks, err := h.service.SearchByTitle(c.Request.Context(), c.Query("title"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, tasks, listMeta(c, len(tasks)))
}

// Create godoc
// @Summary Create task
// @Tags Tasks
// @Accept json
// @Produce json
// @Param payload body dto.CreateTaskRequest true "Task payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /tasks [post]
func (h *TaskHandler) Create(c *gin.Context) {
	var req dto.CreateTaskRequest
	if err := bindJSON(c, &req, "invalid task payload"); err != nil {
		response.Error(c, err)
		return
	}
	task, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, task)
}

// Update godoc
// @Summary Update task
// @Tags Tasks
// @Accept json
// @Produce json
// @Param id path string true "Task ID"
// @Param payload body dto.UpdateTaskRequest true "Task payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /tasks/{id} [put]
func (h *TaskHandler) Update(c *gin.Context) {
	var req dto.UpdateTaskRequest
	if err := bindJSON(c, &req, "invalid task payload"); err != nil {
		response.Error(c, err)
		return
	}
	task, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, task)
}

// Delete godoc
// @Summary Delete task
// @Description Deleting a task also deletes its submissions
// @Tags Tasks
// @Param id path string true "Task ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /tasks/{id} [delete]
func (h *TaskHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
