package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/coursework-api/internal/models"
)

const submissionColumns = `id, submission_date, status, grade, comments, file_url, file_name, file_size, user_id, task_id, created_at, updated_at`

// SubmissionRepository provides database access for the submission ledger.
type SubmissionRepository struct {
	db *sqlx.DB
}

// NewSubmissionRepository creates a new instance of SubmissionRepository.
func NewSubmissionRepository(db *sqlx.DB) *SubmissionRepository {
	return &SubmissionRepository{db: db}
}

// FindByID returns a submission by identifier.
func (r *SubmissionRepository) FindByID(ctx context.Context, id string) (*models.Submission, error) {
	const query = `SELECT ` + submissionColumns + ` FROM submissions WHERE id = $1 LIMIT 1`
	return r.findOne(ctx, "find submission by id", query, id)
}

// FindByTaskAndUser returns the submission a user made for a task.
func (r *SubmissionRepository) FindByTaskAndUser(ctx context.Context, taskID, userID string) (*models.Submission, error) {
	const query = `SELECT ` + submissionColumns + ` FROM submissions WHERE task_id = $1 AND user_id = $2 LIMIT 1`
	return r.findOne(ctx, "find submission by task and user", query, taskID, userID)
}

func (r *SubmissionRepository) findOne(ctx context.Context, op, query string, args ...interface{}) (*models.Submission, error) {
	var submission models.Submission
	if err := r.db.GetContext(ctx, &submission, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &submission, nil
}

// List returns submissions matching filter ordered by submission date. The
// date range is inclusive on both ends.
func (r *SubmissionRepository) List(ctx context.Context, filter models.SubmissionFilter) ([]models.Submission, error) {
	var conditions []string
	var args []interface{}

	if filter.UserID != "" {
		args = append(args, filter.UserID)
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if filter.TaskID != "" {
		args = append(args, filter.TaskID)
		conditions = append(conditions, fmt.Sprintf("task_id = $%d", len(args)))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		conditions = append(conditions, fmt.Sprintf("submission_date >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		conditions = append(conditions, fmt.Sprintf("submission_date <= $%d", len(args)))
	}

	query := `SELECT ` + submissionColumns + ` FROM submissions`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY submission_date, id"

	submissions := make([]models.Submission, 0)
	if err := r.db.SelectContext(ctx, &submissions, query, args...); err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	return submissions, nil
}

// Create inserts a new submission. A second submission for the same
// (task, user) pair fails with ErrDuplicateKey.
func (r *SubmissionRepository) Create(ctx context.Context, submission *models.Submission) error {
	const query = `INSERT INTO submissions (id, submission_date, status, grade, comments, file_url, file_name, file_size, user_id, task_id, created_at, updated_at) VALUES (:id, :submission_date, :status, :grade, :comments, :file_url, :file_name, :file_size, :user_id, :task_id, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, submission); err != nil {
		return wrapError("create submission", err)
	}
	return nil
}

// Update replaces every mutable column of the submission.
func (r *SubmissionRepository) Update(ctx context.Context, submission *models.Submission) error {
	const query = `UPDATE submissions SET submission_date = :submission_date, status = :status, grade = :grade, comments = :comments, file_url = :file_url, file_name = :file_name, file_size = :file_size, user_id = :user_id, task_id = :task_id, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, submission)
	if err != nil {
		return wrapError("update submission", err)
	}
	return expectAffected(res, "update submission")
}

// UpdateFile records the metadata of an uploaded file.
func (r *SubmissionRepository) UpdateFile(ctx context.Context, id, fileName string, fileSize int64, fileURL string, updatedAt time.Time) error {
	const query = `UPDATE submissions SET file_name = $2, file_size = $3, file_url = $4, updated_at = $5 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, fileName, fileSize, fileURL, updatedAt)
	if err != nil {
		return wrapError("update submission file", err)
	}
	return expectAffected(res, "update submission file")
}

// Delete removes a submission.
func (r *SubmissionRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM submissions WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return wrapError("delete submission", err)
	}
	return expectAffected(res, "delete submission")
}

// Count returns the number of submissions within scope.
func (r *SubmissionRepository) Count(ctx context.Context, scope models.GradeAverageScope) (int, error) {
	where, args := scopeClause(scope)
	query := `SELECT COUNT(*) FROM submissions` + where
	var total int
	if err := r.db.GetContext(ctx, &total, query, args...); err != nil {
		return 0, fmt.Errorf("count submissions: %w", err)
	}
	return total, nil
}

// CountByStatus returns the number of submissions per status within scope.
func (r *SubmissionRepository) CountByStatus(ctx context.Context, scope models.GradeAverageScope) (map[models.SubmissionStatus]int, error) {
	where, args := scopeClause(scope)
	query := `SELECT status AS group_key, COUNT(*) AS total FROM submissions` + where + ` GROUP BY status`
	rows, err := groupCounts(ctx, r.db, query, args...)
	if err != nil {
		return nil, fmt.Errorf("count submissions by status: %w", err)
	}
	counts := make(map[models.SubmissionStatus]int, len(rows))
	for _, row := range rows {
		counts[models.SubmissionStatus(row.Key)] = row.Total
	}
	return counts, nil
}

// AverageGrade averages the non-null grades within scope. It returns nil when
// no submission in scope has a grade.
func (r *SubmissionRepository) AverageGrade(ctx context.Context, scope models.GradeAverageScope) (*float64, error) {
	where, args := scopeClause(scope)
	if where == "" {
		where = " WHERE grade IS NOT NULL"
	} else {
		where += " AND grade IS NOT NULL"
	}
	query := `SELECT AVG(grade) FROM submissions` + where
	var avg sql.NullFloat64
	if err := r.db.GetContext(ctx, &avg, query, args...); err != nil {
		return nil, fmt.Errorf("average grade: %w", err)
	}
	if !avg.Valid {
		return nil, nil
	}
	return &avg.Float64, nil
}

// StudentAverages returns every student with the average of their graded
// submissions, in the order students were registered.
func (r *SubmissionRepository) StudentAverages(ctx context.Context) ([]models.StudentAverage, error) {
	const query = `SELECT u.id AS user_id, u.username, u.first_name, u.last_name, AVG(s.grade) AS average_grade
FROM users u
LEFT JOIN submissions s ON s.user_id = u.id AND s.grade IS NOT NULL
WHERE u.role = $1
GROUP BY u.id, u.username, u.first_name, u.last_name, u.created_at
ORDER BY u.created_at, u.id`
	rows := make([]models.StudentAverage, 0)
	if err := r.db.SelectContext(ctx, &rows, query, models.RoleStudent); err != nil {
		return nil, fmt.Errorf("student averages: %w", err)
	}
	return rows, nil
}

func scopeClause(scope models.GradeAverageScope) (string, []interface{}) {
	var conditions []string
	var args []interface{}
	if scope.UserID != "" {
		args = append(args, scope.UserID)
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if scope.TaskID != "" {
		args = append(args, scope.TaskID)
		conditions = append(conditions, fmt.Sprintf("task_id = $%d", len(args)))
	}
	if len(conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}
