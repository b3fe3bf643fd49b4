package models

import "time"

// TaskStatus enumerates the lifecycle states of a task.
type TaskStatus string

const (
	TaskActive   TaskStatus = "ACTIVE"
	TaskInactive TaskStatus = "INACTIVE"
	TaskArchived TaskStatus = "ARCHIVED"
)

// DefaultMaxGrade is applied when a task is created without an explicit max grade.
const DefaultMaxGrade = 20.0

// Valid reports whether the status is known.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskActive, TaskInactive, TaskArchived:
		return true
	}
	return false
}

// DisplayName returns the human readable status label.
func (s TaskStatus) DisplayName() string {
	switch s {
	case TaskActive:
		return "Activa"
	case TaskInactive:
		return "Inactiva"
	case TaskArchived:
		return "Archivada"
	default:
		return string(s)
	}
}

// Task is an assignment published by a professor.
type Task struct {
	ID              string     `db:"id" json:"id"`
	Title           string     `db:"title" json:"title"`
	Description     string     `db:"description" json:"description"`
	PublicationDate time.Time  `db:"publication_date" json:"publicationDate"`
	DueDate         time.Time  `db:"due_date" json:"dueDate"`
	Status          TaskStatus `db:"status" json:"status"`
	MaxGrade        float64    `db:"max_grade" json:"maxGrade"`
	CreatedAt       time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updatedAt"`
}

// TaskFilter narrows task listings.
type TaskFilter struct {
	Status    *TaskStatus
	DueAfter  *time.Time
	DueBefore *time.Time
	Title     string
	// OrderByDueDate sorts by due date ascending instead of creation order.
	OrderByDueDate bool
}
