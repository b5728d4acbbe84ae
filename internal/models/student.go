package models

import "time"

// StudentStatus is the directory-level standing of a student.
type StudentStatus string

const (
	StudentStatusActive    StudentStatus = "ACTIVE"
	StudentStatusInactive  StudentStatus = "INACTIVE"
	StudentStatusGraduated StudentStatus = "GRADUATED"
)

// Student represents a learner registered in the institution. The current
// level/stream pointers mirror the latest open progression record and are
// updated by the promotion engine, never edited directly.
type Student struct {
	ID              string        `db:"id" json:"id"`
	AdmissionNumber string        `db:"admission_number" json:"admission_number"`
	FirstName       string        `db:"first_name" json:"first_name"`
	LastName        string        `db:"last_name" json:"last_name"`
	Gender          string        `db:"gender" json:"gender"`
	ClassLevel      *ClassLevel   `db:"class_level" json:"class_level,omitempty"`
	ClassStreamID   *string       `db:"class_stream_id" json:"class_stream_id,omitempty"`
	Status          StudentStatus `db:"status" json:"status"`
	IsAlumni        bool          `db:"is_alumni" json:"is_alumni"`
	IsDropout       bool          `db:"is_dropout" json:"is_dropout"`
	DropoutReason   *string       `db:"dropout_reason" json:"dropout_reason,omitempty"`
	GraduationYear  *int          `db:"graduation_year" json:"graduation_year,omitempty"`
	SchoolID        string        `db:"school_id" json:"school_id"`
	CreatedAt       time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time     `db:"updated_at" json:"updated_at"`
}

// FullName joins the student's name parts for display.
func (s *Student) FullName() string {
	return s.FirstName + " " + s.LastName
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	Search        string
	ClassLevel    ClassLevel
	ClassStreamID string
	Status        StudentStatus
	IsAlumni      *bool
	Page          int
	PageSize      int
}

// StudentStandingUpdate carries the directory fields the promotion engine may
// change after a transition.
type StudentStandingUpdate struct {
	ClassLevel     *ClassLevel
	ClassStreamID  *string
	Status         *StudentStatus
	IsAlumni       *bool
	IsDropout      *bool
	DropoutReason  *string
	GraduationYear *int
}
