package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/coursework-api/internal/models"
)

const taskColumns = `id, title, description, publication_date, due_date, status, max_grade, created_at, updated_at`

// TaskRepository provides database access for the task catalog.
type TaskRepository struct {
	db *sqlx.DB
}

// NewTaskRepository creates a new instance of TaskRepository.
func NewTaskRepository(db *sqlx.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// FindByID returns a task by identifier.
func (r *TaskRepository) FindByID(ctx context.Context, id string) (*models.Task, error) {
	const query = `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1 LIMIT 1`
	var task models.Task
	if err := r.db.GetContext(ctx, &task, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find task by id: %w", err)
	}
	return &task, nil
}

// List returns tasks matching filter. Due bounds are exclusive.
func (r *TaskRepository) List(ctx context.Context, filter models.TaskFilter) ([]models.Task, error) {
	var conditions []string
	var args []interface{}

	if filter.Status != nil {
		args = append(args, *filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.DueAfter != nil {
		args = append(args, *filter.DueAfter)
		conditions = append(conditions, fmt.Sprintf("due_date > $%d", len(args)))
	}
	if filter.DueBefore != nil {
		args = append(args, *filter.DueBefore)
		conditions = append(conditions, fmt.Sprintf("due_date < $%d", len(args)))
	}
	if title := strings.TrimSpace(filter.Title); title != "" {
		args = append(args, containsPattern(title))
		conditions = append(conditions, fmt.Sprintf(`LOWER(title) LIKE $%d ESCAPE '\'`, len(args)))
	}

	query := `SELECT ` + taskColumns + ` FROM tasks`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	if filter.OrderByDueDate {
		query += " ORDER BY due_date, id"
	} else {
		query += " ORDER BY created_at, id"
	}

	tasks := make([]models.Task, 0)
	if err := r.db.SelectContext(ctx, &tasks, query, args...); err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

// Create inserts a new task. Id and timestamps must already be set.
func (r *TaskRepository) Create(ctx context.Context, task *models.Task) error {
	const query = `INSERT INTO tasks (id, title, description, publication_date, due_date, status, max_grade, created_at, updated_at) VALUES (:id, :title, :description, :publication_date, :due_date, :status, :max_grade, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, task); err != nil {
		return wrapError("create task", err)
	}
	return nil
}

// Update replaces every mutable column of the task.
func (r *TaskRepository) Update(ctx context.Context, task *models.Task) error {
	const query = `UPDATE tasks SET title = :title, description = :description, publication_date = :publication_date, due_date = :due_date, status = :status, max_grade = :max_grade, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, task)
	if err != nil {
		return wrapError("update task", err)
	}
	return expectAffected(res, "update task")
}

// Delete removes a task; its submissions are removed by the cascading foreign key.
func (r *TaskRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM tasks WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return wrapError("delete task", err)
	}
	return expectAffected(res, "delete task")
}

// CountByStatus returns the number of tasks per status.
func (r *TaskRepository) CountByStatus(ctx context.Context) (map[models.TaskStatus]int, error) {
	const query = `SELECT status AS group_key, COUNT(*) AS total FROM tasks GROUP BY status`
	rows, err := groupCounts(ctx, r.db, query)
	if err != nil {
		return nil, fmt.Errorf("count tasks by status: %w", err)
	}
	counts := make(map[models.TaskStatus]int, len(rows))
	for _, row := range rows {
		counts[models.TaskStatus(row.Key)] = row.Total
	}
	return counts, nil
}
