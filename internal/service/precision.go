package service

import (
	"math"
	"time"
)

// Grades are stored as NUMERIC(4,2) and timestamps as TIMESTAMPTZ, so values
// are normalized to two decimals and microseconds before they are written.

func storedGrade(v float64) float64 {
	return math.Round(v*100) / 100
}

func storedGradePtr(v *float64) *float64 {
	if v == nil {
		return nil
	}
	rounded := storedGrade(*v)
	return &rounded
}

func storedTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}
