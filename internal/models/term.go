package models

import "time"

// TermStatus tracks where a term sits in its lifecycle.
type TermStatus string

const (
	TermStatusPlanned    TermStatus = "PLANNED"
	TermStatusInProgress TermStatus = "IN_PROGRESS"
	TermStatusExam       TermStatus = "EXAM"
	TermStatusCompleted  TermStatus = "COMPLETED"
	TermStatusLocked     TermStatus = "LOCKED"
)

// Term is a subdivision of an academic year. Term numbers are unique within a
// year and at most one term per year is active.
type Term struct {
	ID             string     `db:"id" json:"id"`
	AcademicYearID string     `db:"academic_year_id" json:"academic_year_id"`
	TermNumber     int        `db:"term_number" json:"term_number"`
	Name           string     `db:"name" json:"name"`
	StartDate      time.Time  `db:"start_date" json:"start_date"`
	EndDate        time.Time  `db:"end_date" json:"end_date"`
	ExamStartDate  *time.Time `db:"exam_start_date" json:"exam_start_date,omitempty"`
	ExamEndDate    *time.Time `db:"exam_end_date" json:"exam_end_date,omitempty"`
	IsActive       bool       `db:"is_active" json:"is_active"`
	Status         TermStatus `db:"status" json:"status"`
	SchoolID       string     `db:"school_id" json:"school_id"`
	CreatedBy      string     `db:"created_by" json:"created_by"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}
