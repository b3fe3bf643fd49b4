package models

import "time"

// SubmissionStatus enumerates the grading states of a submission.
type SubmissionStatus string

const (
	SubmissionSubmitted SubmissionStatus = "SUBMITTED"
	SubmissionGraded    SubmissionStatus = "GRADED"
	SubmissionLate      SubmissionStatus = "LATE"
	SubmissionPending   SubmissionStatus = "PENDING"
)

// SubmissionStatuses lists every status in display order.
var SubmissionStatuses = []SubmissionStatus{SubmissionSubmitted, SubmissionGraded, SubmissionLate, SubmissionPending}

// Valid reports whether the status is known.
func (s SubmissionStatus) Valid() bool {
	switch s {
	case SubmissionSubmitted, SubmissionGraded, SubmissionLate, SubmissionPending:
		return true
	}
	return false
}

// Submission is a student's delivery for a task. At most one exists per (task, user).
type Submission struct {
	ID             string           `db:"id" json:"id"`
	SubmissionDate time.Time        `db:"submission_date" json:"submissionDate"`
	Status         SubmissionStatus `db:"status" json:"status"`
	Grade          *float64         `db:"grade" json:"grade"`
	Comments       *string          `db:"comments" json:"comments,omitempty"`
	FileURL        *string          `db:"file_url" json:"fileUrl,omitempty"`
	FileName       *string          `db:"file_name" json:"fileName,omitempty"`
	FileSize       *int64           `db:"file_size" json:"fileSize,omitempty"`
	UserID         string           `db:"user_id" json:"userId"`
	TaskID         string           `db:"task_id" json:"taskId"`
	CreatedAt      time.Time        `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time        `db:"updated_at" json:"updatedAt"`
}

// SubmissionFilter narrows submission listings. Zero values are ignored.
type SubmissionFilter struct {
	UserID string
	TaskID string
	Status *SubmissionStatus
	From   *time.Time
	To     *time.Time
}

// GradeAverageScope selects the submissions an average is computed over.
type GradeAverageScope struct {
	UserID string
	TaskID string
}
