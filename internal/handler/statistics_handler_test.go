package handler

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/coursework-api/internal/models"
	"github.com/noah-isme/coursework-api/internal/service"
	appErrors "github.com/noah-isme/coursework-api/pkg/errors"
	"github.com/noah-isme/coursework-api/pkg/export"
)

type fakeStatisticsSrv struct {
	lastFormat export.Format
}

func (f *fakeStatisticsSrv) General(context.Context) (*models.GeneralStatistics, error) {
	return &models.GeneralStatistics{TotalUsers: 3}, nil
}

func (f *fakeStatisticsSrv) User(_ context.Context, userID string) (*models.UserStatistics, error) {
	return &models.UserStatistics{UserID: userID}, nil
}

func (f *fakeStatisticsSrv) Task(_ context.Context, taskID string) (*models.TaskStatistics, error) {
	if taskID == "missing" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "task not found")
	}
	return &models.TaskStatistics{TaskID: taskID}, nil
}

func (f *fakeStatisticsSrv) StudentRanking(context.Context) ([]models.RankingEntry, error) {
	return nil, errors.New("db down")
}

func (f *fakeStatisticsSrv) ExportRanking(_ context.Context, format export.Format) (*service.RankingExport, error) {
	f.lastFormat = format
	return &service.RankingExport{Content: []byte("a,b\n"), ContentType: "text/csv", FileName: "student_ranking.csv"}, nil
}

func TestStatisticsHandlerTaskNotFound(t *testing.T) {
	handler := NewStatisticsHandler(&fakeStatisticsSrv{})
	c, rec := newTestContext(http.MethodGet, "/statistics/task/missing", nil)
	c.Params = gin.Params{{Key: "taskId", Value: "missing"}}
	handler.Task(c)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStatisticsHandlerHidesInternalErrors(t *testing.T) {
	handler := NewStatisticsHandler(&fakeStatisticsSrv{})
	c, rec := newTestContext(http.MethodGet, "/statistics/ranking/students", nil)
	handler.Ranking(c)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, "INTERNAL_ERROR", env.Error.Code)
	assert.NotContains(t, rec.Body.String(), "db down")
}

func TestStatisticsHandlerExportRanking(t *testing.T) {
	srv := &fakeStatisticsSrv{}
	handler := NewStatisticsHandler(srv)
	c, rec := newTestContext(http.MethodGet, "/statistics/ranking/students/export?format=PDF", nil)
	handler.ExportRanking(c)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, export.FormatPDF, srv.lastFormat)
	assert.Equal(t, `attachment; filename="student_ranking.csv"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "a,b\n", rec.Body.String())
}

func TestMetricsHandlerReady(t *testing.T) {
	healthy := NewMetricsHandler(nil, ReadinessCheck{Name: "database", Probe: func(context.Context) error { return nil }})
	c, rec := newTestContext(http.MethodGet, "/ready", nil)
	healthy.Ready(c)
	assert.Equal(t, http.StatusOK, rec.Code)

	failing := NewMetricsHandler(nil,
		ReadinessCheck{Name: "database", Probe: func(context.Context) error { return nil }},
		ReadinessCheck{Name: "cache", Probe: func(context.Context) error { return errors.New("refused") }},
	)
	c, rec = newTestContext(http.MethodGet, "/ready", nil)
	failing.Ready(c)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"cache":"DOWN"`)
}
