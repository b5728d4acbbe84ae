package models

import "time"

// AcademicYear is the top-level calendar period. At most one year is active
// per school at a time; once closed no ledger writes scoped to it are accepted.
type AcademicYear struct {
	ID          string    `db:"id" json:"id"`
	Year        int       `db:"year" json:"year"`
	StartDate   time.Time `db:"start_date" json:"start_date"`
	EndDate     time.Time `db:"end_date" json:"end_date"`
	IsActive    bool      `db:"is_active" json:"is_active"`
	IsClosed    bool      `db:"is_closed" json:"is_closed"`
	Description *string   `db:"description" json:"description,omitempty"`
	SchoolID    string    `db:"school_id" json:"school_id"`
	CreatedBy   string    `db:"created_by" json:"created_by"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// AcademicYearDetail bundles a year with its terms.
type AcademicYearDetail struct {
	AcademicYear
	Terms []Term `json:"terms"`
}

// AcademicYearFilter defines filters supported by list endpoints.
type AcademicYearFilter struct {
	IsActive *bool
	IsClosed *bool
}
