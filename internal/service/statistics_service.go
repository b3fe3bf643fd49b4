package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/coursework-api/internal/models"
	appErrors "github.com/noah-isme/coursework-api/pkg/errors"
	"github.com/noah-isme/coursework-api/pkg/export"
)

type statsUserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	CountByRole(ctx context.Context) (map[models.UserRole]int, error)
}

type statsTaskRepository interface {
	FindByID(ctx context.Context, id string) (*models.Task, error)
	CountByStatus(ctx context.Context) (map[models.TaskStatus]int, error)
}

type statsSubmissionRepository interface {
	CountByStatus(ctx context.Context, scope models.GradeAverageScope) (map[models.SubmissionStatus]int, error)
	AverageGrade(ctx context.Context, scope models.GradeAverageScope) (*float64, error)
	StudentAverages(ctx context.Context) ([]models.StudentAverage, error)
}

// RankingExport is a rendered student ranking ready to download.
type RankingExport struct {
	Content     []byte
	ContentType string
	FileName    string
}

// StatisticsService computes read-only aggregates over users, tasks and submissions.
type StatisticsService struct {
	users       statsUserRepository
	tasks       statsTaskRepository
	submissions statsSubmissionRepository
	metrics     *MetricsService
	logger      *zap.Logger
	now         func() time.Time
}

// NewStatisticsService constructs a statistics service.
func NewStatisticsService(users statsUserRepository, tasks statsTaskRepository, submissions statsSubmissionRepository, metrics *MetricsService, logger *zap.Logger) *StatisticsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatisticsService{
		users:       users,
		tasks:       tasks,
		submissions: submissions,
		metrics:     metrics,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// General returns directory, catalog and ledger totals.
func (s *StatisticsService) General(ctx context.Context) (*models.GeneralStatistics, error) {
	start := time.Now()
	defer func() { s.metrics.ObserveDBQuery("statistics_general", time.Since(start)) }()

	roles, err := s.users.CountByRole(ctx)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to count users")
	}
	tasks, err := s.tasks.CountByStatus(ctx)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to count tasks")
	}
	submissions, err := s.submissions.CountByStatus(ctx, models.GradeAverageScope{})
	if err != nil {
		return nil, appErrors.Internal(err, "failed to count submissions")
	}

	return &models.GeneralStatistics{
		TotalUsers:         sumCounts(roles),
		Students:           roles[models.RoleStudent],
		Professors:         roles[models.RoleProfessor],
		Admins:             roles[models.RoleAdmin],
		TotalTasks:         sumCounts(tasks),
		ActiveTasks:        tasks[models.TaskActive],
		ArchivedTasks:      tasks[models.TaskArchived],
		TotalSubmissions:   sumCounts(submissions),
		GradedSubmissions:  submissions[models.SubmissionGraded],
		PendingSubmissions: submissions[models.SubmissionPending],
		LateSubmissions:    submissions[models.SubmissionLate],
	}, nil
}

// User returns one user's submission statistics. The graded, pending and
// late fields are ledger-wide; Scoped is restricted to the user.
func (s *StatisticsService) User(ctx context.Context, userID string) (*models.UserStatistics, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Internal(err, "failed to load user")
	}

	start := time.Now()
	defer func() { s.metrics.ObserveDBQuery("statistics_user", time.Since(start)) }()

	scope := models.GradeAverageScope{UserID: userID}
	scoped, global, avg, err := s.aggregate(ctx, scope)
	if err != nil {
		return nil, err
	}

	return &models.UserStatistics{
		UserID:             user.ID,
		Username:           user.Username,
		FullName:           user.FullName(),
		Role:               user.Role.DisplayName(),
		TotalSubmissions:   sumCounts(scoped),
		AverageGrade:       avg,
		GradedSubmissions:  global[models.SubmissionGraded],
		PendingSubmissions: global[models.SubmissionPending],
		LateSubmissions:    global[models.SubmissionLate],
		Scoped:             models.NewStatusBreakdown(scoped),
	}, nil
}

// Task returns one task's submission statistics with a snapshot of the task.
func (s *StatisticsService) Task(ctx context.Context, taskID string) (*models.TaskStatistics, error) {
	task, err := s.tasks.FindByID(ctx, taskID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "task not found")
		}
		return nil, appErrors.Internal(err, "failed to load task")
	}

	start := time.Now()
	defer func() { s.metrics.ObserveDBQuery("statistics_task", time.Since(start)) }()

	scope := models.GradeAverageScope{TaskID: taskID}
	scoped, global, avg, err := s.aggregate(ctx, scope)
	if err != nil {
		return nil, err
	}

	return &models.TaskStatistics{
		TaskID:             task.ID,
		TaskTitle:          task.Title,
		TaskStatus:         task.Status.DisplayName(),
		MaxGrade:           task.MaxGrade,
		DueDate:            task.DueDate,
		TotalSubmissions:   sumCounts(scoped),
		AverageGrade:       avg,
		GradedSubmissions:  global[models.SubmissionGraded],
		PendingSubmissions: global[models.SubmissionPending],
		LateSubmissions:    global[models.SubmissionLate],
		Scoped:             models.NewStatusBreakdown(scoped),
	}, nil
}

// aggregate loads per-status counts for scope and for the whole ledger plus
// the scope's average grade, with no graded submissions reported as 0.
func (s *StatisticsService) aggregate(ctx context.Context, scope models.GradeAverageScope) (scoped, global map[models.SubmissionStatus]int, avg float64, err error) {
	scoped, err = s.submissions.CountByStatus(ctx, scope)
	if err != nil {
		return nil, nil, 0, appErrors.Internal(err, "failed to count submissions")
	}
	global, err = s.submissions.CountByStatus(ctx, models.GradeAverageScope{})
	if err != nil {
		return nil, nil, 0, appErrors.Internal(err, "failed to count submissions")
	}
	average, err := s.submissions.AverageGrade(ctx, scope)
	if err != nil {
		return nil, nil, 0, appErrors.Internal(err, "failed to average grades")
	}
	return scoped, global, orZero(average), nil
}

// StudentRanking lists every student by average grade, highest first. Ties
// keep registration order.
func (s *StatisticsService) StudentRanking(ctx context.Context) ([]models.RankingEntry, error) {
	start := time.Now()
	rows, err := s.submissions.StudentAverages(ctx)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load student averages")
	}
	s.metrics.ObserveDBQuery("statistics_ranking", time.Since(start))

	ranking := make([]models.RankingEntry, 0, len(rows))
	for _, row := range rows {
		ranking = append(ranking, models.RankingEntry{
			UserID:       row.UserID,
			Username:     row.Username,
			FullName:     row.FirstName + " " + row.LastName,
			AverageGrade: orZero(row.AverageGrade),
		})
	}
	sort.SliceStable(ranking, func(i, j int) bool {
		return ranking[i].AverageGrade > ranking[j].AverageGrade
	})
	return ranking, nil
}

// ExportRanking renders the student ranking as CSV or PDF.
func (s *StatisticsService) ExportRanking(ctx context.Context, format export.Format) (*RankingExport, error) {
	renderer, err := export.ForFormat(format)
	if err != nil {
		return nil, appErrors.WithDetails(appErrors.ErrValidation, "unsupported export format", map[string]string{"format": "must be one of [csv pdf]"})
	}

	ranking, err := s.StudentRanking(ctx)
	if err != nil {
		return nil, err
	}

	table := export.Table{
		Title:   "Student ranking",
		Headers: []string{"Position", "Username", "Full name", "Average grade"},
		Rows:    make([][]string, 0, len(ranking)),
	}
	for i, entry := range ranking {
		table.Rows = append(table.Rows, []string{
			strconv.Itoa(i + 1),
			entry.Username,
			entry.FullName,
			strconv.FormatFloat(entry.AverageGrade, 'f', 2, 64),
		})
	}

	content, err := renderer.Render(table)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to render ranking")
	}
	s.logger.Info("ranking exported", zap.String("format", renderer.Extension()), zap.Int("students", len(ranking)))

	return &RankingExport{
		Content:     content,
		ContentType: renderer.ContentType(),
		FileName:    fmt.Sprintf("student_ranking_%s.%s", s.now().Format("20060102_150405"), renderer.Extension()),
	}, nil
}

func sumCounts[K comparable](counts map[K]int) int {
	total := 0
	for _, n := range counts {
		total += n
	}
	return total
}

func orZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
