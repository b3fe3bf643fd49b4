package models

import "time"

// GeneralStatistics summarises the whole directory, catalog and ledger.
type GeneralStatistics struct {
	TotalUsers         int `json:"totalUsers"`
	Students           int `json:"students"`
	Professors         int `json:"professors"`
	Admins             int `json:"admins"`
	TotalTasks         int `json:"totalTasks"`
	ActiveTasks        int `json:"activeTasks"`
	ArchivedTasks      int `json:"archivedTasks"`
	TotalSubmissions   int `json:"totalSubmissions"`
	GradedSubmissions  int `json:"gradedSubmissions"`
	PendingSubmissions int `json:"pendingSubmissions"`
	LateSubmissions    int `json:"lateSubmissions"`
}

// StatusBreakdown counts submissions per status within one user or task.
type StatusBreakdown struct {
	Submitted int `json:"submitted"`
	Graded    int `json:"graded"`
	Late      int `json:"late"`
	Pending   int `json:"pending"`
}

// NewStatusBreakdown folds per-status counts into a breakdown.
func NewStatusBreakdown(counts map[SubmissionStatus]int) StatusBreakdown {
	return StatusBreakdown{
		Submitted: counts[SubmissionSubmitted],
		Graded:    counts[SubmissionGraded],
		Late:      counts[SubmissionLate],
		Pending:   counts[SubmissionPending],
	}
}

// UserStatistics reports a user's submissions and grade average.
//
// GradedSubmissions, PendingSubmissions and LateSubmissions are ledger-wide
// counts; Scoped holds the counts restricted to this user.
type UserStatistics struct {
	UserID             string          `json:"userId"`
	Username           string          `json:"username"`
	FullName           string          `json:"fullName"`
	Role               string          `json:"role"`
	TotalSubmissions   int             `json:"totalSubmissions"`
	AverageGrade       float64         `json:"averageGrade"`
	GradedSubmissions  int             `json:"gradedSubmissions"`
	PendingSubmissions int             `json:"pendingSubmissions"`
	LateSubmissions    int             `json:"lateSubmissions"`
	Scoped             StatusBreakdown `json:"scoped"`
}

// TaskStatistics reports a task's submissions and grade average.
type TaskStatistics struct {
	TaskID             string          `json:"taskId"`
	TaskTitle          string          `json:"taskTitle"`
	TaskStatus         string          `json:"taskStatus"`
	MaxGrade           float64         `json:"maxGrade"`
	DueDate            time.Time       `json:"dueDate"`
	TotalSubmissions   int             `json:"totalSubmissions"`
	AverageGrade       float64         `json:"averageGrade"`
	GradedSubmissions  int             `json:"gradedSubmissions"`
	PendingSubmissions int             `json:"pendingSubmissions"`
	LateSubmissions    int             `json:"lateSubmissions"`
	Scoped             StatusBreakdown `json:"scoped"`
}

// StudentAverage is a raw ranking row as read from the store.
type StudentAverage struct {
	UserID       string   `db:"user_id"`
	Username     string   `db:"username"`
	FirstName    string   `db:"first_name"`
	LastName     string   `db:"last_name"`
	AverageGrade *float64 `db:"average_grade"`
}

// RankingEntry is one student's position in the ranking.
type RankingEntry struct {
	UserID       string  `json:"userId"`
	Username     string  `json:"username"`
	FullName     string  `json:"fullName"`
	AverageGrade float64 `json:"averageGrade"`
}
