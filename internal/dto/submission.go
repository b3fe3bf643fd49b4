package dto

import (
	"time"

	"github.com/noah-isme/coursework-api/internal/models"
)

// SubmissionRequest is the payload for creating and updating submissions.
// A missing submission date means now; a missing status means SUBMITTED.
type SubmissionRequest struct {
	SubmissionDate *time.Time              `json:"submissionDate" validate:"omitempty,lte"`
	Status         models.SubmissionStatus `json:"status" validate:"omitempty,oneof=SUBMITTED GRADED LATE PENDING"`
	Grade          *float64                `json:"grade" validate:"omitempty,gte=0,lte=20"`
	Comments       *string                 `json:"comments" validate:"omitempty,max=1000"`
	FileURL        *string                 `json:"fileUrl" validate:"omitempty,max=500"`
	FileName       *string                 `json:"fileName" validate:"omitempty,max=255"`
	FileSize       *int64                  `json:"fileSize" validate:"omitempty,gte=0"`
	UserID         string                  `json:"userId" validate:"required"`
	TaskID         string                  `json:"taskId" validate:"required"`
}

// DownloadLink is returned after a file is attached.
type DownloadLink struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}
