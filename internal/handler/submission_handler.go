package handler

import (
	"context"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/coursework-api/internal/dto"
	"github.com/noah-isme/coursework-api/internal/models"
	appErrors "github.com/noah-isme/coursework-api/pkg/errors"
	"github.com/noah-isme/coursework-api/pkg/response"
)

type submissionService interface {
	List(ctx context.Context, filter models.SubmissionFilter) ([]models.Submission, error)
	ListByUser(ctx context.Context, userID string) ([]models.Submission, error)
	ListByTask(ctx context.Context, taskID string) ([]models.Submission, error)
	ListByStatus(ctx context.Context, status models.SubmissionStatus) ([]models.Submission, error)
	Graded(ctx context.Context) ([]models.Submission, error)
	Pending(ctx context.Context) ([]models.Submission, error)
	Late(ctx context.Context) ([]models.Submission, error)
	Between(ctx context.Context, start, end time.Time) ([]models.Submission, error)
	Get(ctx context.Context, id string) (*models.Submission, error)
	Create(ctx context.Context, req dto.SubmissionRequest) (*models.Submission, error)
	Update(ctx context.Context, id string, req dto.SubmissionRequest) (*models.Submission, error)
	Delete(ctx context.Context, id string) error
	AttachFile(ctx context.Context, id, fileName string, r io.Reader) (*models.Submission, *dto.DownloadLink, error)
	FileLink(ctx context.Context, id string) (*dto.DownloadLink, error)
	OpenFile(token string) (*os.File, string, error)
}

// SubmissionHandler exposes the submission ledger and its file uploads.
type SubmissionHandler struct {
	service submissionService
}

// NewSubmissionHandler constructs a submission handler.
func NewSubmissionHandler(svc submissionService) *SubmissionHandler {
	return &SubmissionHandler{service: svc}
}

// List godoc
// @Summary List submissions
// @Tags Submissions
// @Produce json
// @Param userId query string false "User ID"
// @Param taskId query string false "Task ID"
// @Param status query string false "SUBMITTED, GRADED, LATE or PENDING"
// @Param from query string false "Submitted at or after (ISO-8601)"
// @Param to query string false "Submitted at or before (ISO-8601)"
// @Success 200 {object} response.Envelope
// @Router /submissions [get]
func (h *SubmissionHandler) List(c *gin.Context) {
	filter := models.SubmissionFilter{UserID: c.Query("userId"), TaskID: c.Query("taskId")}
	if status := c.Query("status"); status != "" {
		s := models.SubmissionStatus(status)
		if !s.Valid() {
			response.Error(c, appErrors.WithDetails(appErrors.ErrValidation, "invalid submission status", map[string]string{"status": "must be one of [SUBMITTED GRADED LATE PENDING]"}))
			return
		}
		filter.Status = &s
	}
	var err error
	if filter.From, err = optionalTimeQuery(c, "from"); err != nil {
		response.Error(c, err)
		return
	}
	if filter.To, err = optionalTimeQuery(c, "to"); err != nil {
		response.Error(c, err)
		return
	}

	h.respondList(c, func(ctx context.Context) ([]models.Submission, error) {
		return h.service.List(ctx, filter)
	})
}

// Get godoc
// @Summary Get submission
// @Tags Submissions
// @Produce json
// @Param id path string true "Submission ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /submissions/{id} [get]
func (h *SubmissionHandler) Get(c *gin.Context) {
	submission, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, submission)
}

// ByTask godoc
// @Summary Submissions of a task
// @Tags Submissions
// @Produce json
// @Param taskId path string true "Task ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /submissions/task/{taskId} [get]
func (h *SubmissionHandler) ByTask(c *gin.Context) {
	h.respondList(c, func(ctx context.Context) ([]models.Submission, error) {
		return h.service.ListByTask(ctx, c.Param("taskId"))
	})
}

// ByUser godoc
// @Summary Submissions of a user
// @Tags Submissions
// @Produce json
// @Param userId path string true "User ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /submissions/user/{userId} [get]
func (h *SubmissionHandler) ByUser(c *gin.Context) {
	h.respondList(c, func(ctx context.Context) ([]models.Submission, error) {
		return h.service.ListByUser(ctx, c.Param("userId"))
	})
}

// ByStatus godoc
// @Summary Submissions by status
// @Tags Submissions
// @Produce json
// @Param status path string true "SUBMITTED, GRADED, LATE or PENDING"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /submissions/status/{status} [get]
func (h *SubmissionHandler) ByStatus(c *gin.Context) {
	h.respondList(c, func(ctx context.Context) ([]models.Submission, error) {
		return h.service.ListByStatus(ctx, models.SubmissionStatus(c.Param("status")))
	})
}

// Graded godoc
// @Summary Graded submissions
// @Tags Submissions
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /submissions/graded [get]
func (h *SubmissionHandler) Graded(c *gin.Context) {
	h.respondList(c, h.service.Graded)
}

// Pending godoc
// @Summary Pending submissions
// @Tags Submissions
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /submissions/pending [get]
func (h *SubmissionHandler) Pending(c *gin.Context) {
	h.respondList(c, h.service.Pending)
}

// Late godoc
// @Summary Late submissions
// @Tags Submissions
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /submissions/late [get]
func (h *SubmissionHandler) Late(c *gin.Context) {
	h.respondList(c, h.service.Late)
}

// Between godoc
// @Summary Submissions within a date range
// @Tags Submissions
// @Produce json
// @Param start query string true "Range start (ISO-8601)"
// @Param end query string true "Range end (ISO-8601)"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /submissions/between [get]
func (h *SubmissionHandler) Between(c *gin.Context) {
	start, err := timeQuery(c, "start")
	if err != nil {
		response.Error(c, err)
		return
	}
	end, err := timeQuery(c, "end")
	if err != nil {
		response.Error(c, err)
		return
	}
	h.respondList(c, func(ctx context.Context) ([]models.Submission, error) {
		return h.service.Between(ctx, start, end)
	})
}

func (h *SubmissionHandler) respondList(c *gin.Context, load func(context.Context) ([]models.Submission, error)) {
	submissions, err := load(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, submissions, listMeta(c, len(submissions)))
}

// Create godoc
// @Summary Create submission
// @Description At most one submission exists per task and user
// @Tags Submissions
// @Accept json
// @Produce json
// @Param payload body dto.SubmissionRequest true "Submission payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /submissions [post]
func (h *SubmissionHandler) Create(c *gin.Context) {
	var req dto.SubmissionRequest
	if err := bindJSON(c, &req, "invalid submission payload"); err != nil {
		response.Error(c, err)
		return
	}
	submission, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, submission)
}

// Update godoc
// @Summary Update submission
// @Tags Submissions
// @Accept json
// @Produce json
// @Param id path string true "Submission ID"
// @Param payload body dto.SubmissionRequest true "Submission payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /submissions/{id} [put]
func (h *SubmissionHandler) Update(c *gin.Context) {
	var req dto.SubmissionRequest
	if err := bindJSON(c, &req, "invalid submission payload"); err != nil {
		response.Error(c, err)
		return
	}
	submission, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, submission)
}

// Delete godoc
// @Summary Delete submission
// @Tags Submissions
// @Param id path string true "Submission ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /submissions/{id} [delete]
func (h *SubmissionHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Upload godoc
// @Summary Attach a file to a submission
// @Tags Submissions
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Submission ID"
// @Param file formData file true "Submission file"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /submissions/{id}/file [post]
func (h *SubmissionHandler) Upload(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.WithDetails(appErrors.ErrValidation, "file is required", map[string]string{"file": "is required"}))
		return
	}
	file, err := header.Open()
	if err != nil {
		response.Error(c, appErrors.Internal(err, "failed to read upload"))
		return
	}
	defer file.Close()

	submission, link, err := h.service.AttachFile(c.Request.Context(), c.Param("id"), header.Filename, file)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"submission": submission, "download": link})
}

// FileLink godoc
// @Summary Issue a fresh download link for a submission file
// @Tags Submissions
// @Produce json
// @Param id path string true "Submission ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /submissions/{id}/file [get]
func (h *SubmissionHandler) FileLink(c *gin.Context) {
	link, err := h.service.FileLink(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, link)
}
