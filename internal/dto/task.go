package dto

import (
	"time"

	"github.com/noah-isme/coursework-api/internal/models"
)

// CreateTaskRequest publishes a new task. Publication must not be in the past
// and the due date must be in the future.
type CreateTaskRequest struct {
	Title           string            `json:"title" validate:"required,min=5,max=200"`
	Description     string            `json:"description" validate:"required,min=10"`
	PublicationDate time.Time         `json:"publicationDate" validate:"required,gte"`
	DueDate         time.Time         `json:"dueDate" validate:"required,gt"`
	Status          models.TaskStatus `json:"status" validate:"omitempty,oneof=ACTIVE INACTIVE ARCHIVED"`
	MaxGrade        *float64          `json:"maxGrade" validate:"omitempty,gte=0,lte=20"`
}

// UpdateTaskRequest replaces a task. Dates are range checked only; omitted
// status and max grade keep their current values.
type UpdateTaskRequest struct {
	Title           string            `json:"title" validate:"required,min=5,max=200"`
	Description     string            `json:"description" validate:"required,min=10"`
	PublicationDate time.Time         `json:"publicationDate" validate:"required"`
	DueDate         time.Time         `json:"dueDate" validate:"required"`
	Status          models.TaskStatus `json:"status" validate:"omitempty,oneof=ACTIVE INACTIVE ARCHIVED"`
	MaxGrade        *float64          `json:"maxGrade" validate:"omitempty,gte=0,lte=20"`
}
