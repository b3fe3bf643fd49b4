package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/coursework-api/internal/models"
	"github.com/noah-isme/coursework-api/internal/service"
	"github.com/noah-isme/coursework-api/pkg/export"
	"github.com/noah-isme/coursework-api/pkg/response"
)

type statisticsService interface {
	General(ctx context.Context) (*models.GeneralStatistics, error)
	User(ctx context.Context, userID string) (*models.UserStatistics, error)
	Task(ctx context.Context, taskID string) (*models.TaskStatistics, error)
	StudentRanking(ctx context.Context) ([]models.RankingEntry, error)
	ExportRanking(ctx context.Context, format export.Format) (*service.RankingExport, error)
}

// StatisticsHandler exposes read-only aggregates.
type StatisticsHandler struct {
	service statisticsService
}

// NewStatisticsHandler constructs a statistics handler.
func NewStatisticsHandler(svc statisticsService) *StatisticsHandler {
	return &StatisticsHandler{service: svc}
}

// General godoc
// @Summary General statistics
// @Tags Statistics
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /statistics/general [get]
func (h *StatisticsHandler) General(c *gin.Context) {
	stats, err := h.service.General(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats)
}

// User godoc
// @Summary Statistics of a user
// @Tags Statistics
// @Produce json
// @Param userId path string true "User ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /statistics/user/{userId} [get]
func (h *StatisticsHandler) User(c *gin.Context) {
	stats, err := h.service.User(c.Request.Context(), c.Param("userId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats)
}

// Task godoc
// @Summary Statistics of a task
// @Tags Statistics
// @Produce json
// @Param taskId path string true "Task ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /statistics/task/{taskId} [get]
func (h *StatisticsHandler) Task(c *gin.Context) {
	stats, err := h.service.Task(c.Request.Context(), c.Param("taskId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats)
}

// Ranking godoc
// @Summary Student ranking
// @Description Every student by average grade, highest first
// @Tags Statistics
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /statistics/ranking/students [get]
func (h *StatisticsHandler) Ranking(c *gin.Context) {
	ranking, err := h.service.StudentRanking(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, ranking, listMeta(c, len(ranking)))
}

// ExportRanking godoc
// @Summary Export student ranking
// @Tags Statistics
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv (default) or pdf"
// @Success 200 {file} binary
// @Failure 400 {object} response.Envelope
// @Router /statistics/ranking/students/export [get]
func (h *StatisticsHandler) ExportRanking(c *gin.Context) {
	format := export.Format(strings.ToLower(c.DefaultQuery("format", string(export.FormatCSV))))
	out, err := h.service.ExportRanking(c.Request.Context(), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", out.FileName))
	c.Data(http.StatusOK, out.ContentType, out.Content)
}
