package models

import "time"

// SubjectEnrollmentStatus is the subject ledger state. Transitions are
// monotonic: ACTIVE may move to DROPPED or SUBSTITUTED, never back.
type SubjectEnrollmentStatus string

const (
	SubjectEnrollmentActive      SubjectEnrollmentStatus = "ACTIVE"
	SubjectEnrollmentDropped     SubjectEnrollmentStatus = "DROPPED"
	SubjectEnrollmentSubstituted SubjectEnrollmentStatus = "SUBSTITUTED"
)

// StudentSubjectEnrollment is the per-student-per-subject-per-year membership
// record, unique per (student, subject, year, class stream).
type StudentSubjectEnrollment struct {
	ID                   string                  `db:"id" json:"id"`
	StudentID            string                  `db:"student_id" json:"student_id"`
	SubjectID            string                  `db:"subject_id" json:"subject_id"`
	ClassStreamID        string                  `db:"class_stream_id" json:"class_stream_id"`
	AcademicYearID       string                  `db:"academic_year_id" json:"academic_year_id"`
	IsOptional           bool                    `db:"is_optional" json:"is_optional"`
	EnrollmentStatus     SubjectEnrollmentStatus `db:"enrollment_status" json:"enrollment_status"`
	EnrolledDate         time.Time               `db:"enrolled_date" json:"enrolled_date"`
	DroppedDate          *time.Time              `db:"dropped_date" json:"dropped_date,omitempty"`
	ReplacementSubjectID *string                 `db:"replacement_subject_id" json:"replacement_subject_id,omitempty"`
	ApprovalReason       *string                 `db:"approval_reason" json:"approval_reason,omitempty"`
	SchoolID             string                  `db:"school_id" json:"school_id"`
	CreatedBy            string                  `db:"created_by" json:"created_by"`
	CreatedAt            time.Time               `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time               `db:"updated_at" json:"updated_at"`
}

// SubjectEnrollmentDetail enriches an enrollment with student and subject info.
type SubjectEnrollmentDetail struct {
	StudentSubjectEnrollment
	StudentName     string `db:"student_name" json:"student_name"`
	AdmissionNumber string `db:"admission_number" json:"admission_number"`
	SubjectName     string `db:"subject_name" json:"subject_name"`
	SubjectCode     string `db:"subject_code" json:"subject_code"`
}

// SubjectEnrollmentFilter provides filters for listing enrollments.
type SubjectEnrollmentFilter struct {
	StudentID      string
	SubjectID      string
	ClassStreamID  string
	AcademicYearID string
	Status         SubjectEnrollmentStatus
}

// RosterStudent is one student's cell in the subject-by-student matrix.
type RosterStudent struct {
	StudentID        string                  `json:"student_id"`
	StudentName      string                  `json:"student_name"`
	AdmissionNumber  string                  `json:"admission_number"`
	IsOptional       bool                    `json:"is_optional"`
	EnrollmentStatus SubjectEnrollmentStatus `json:"enrollment_status"`
}

// RosterSubject groups the roster by subject.
type RosterSubject struct {
	SubjectID   string          `json:"subject_id"`
	SubjectName string          `json:"subject_name"`
	SubjectCode string          `json:"subject_code"`
	Students    []RosterStudent `json:"students"`
}

// EnrollmentReport aggregates subject enrollment counts for a year.
type EnrollmentReport struct {
	AcademicYearID   string                          `json:"academic_year_id"`
	ClassStreamID    string                          `json:"class_stream_id,omitempty"`
	TotalEnrollments int                             `json:"total_enrollments"`
	Active           int                             `json:"active_enrollments"`
	Dropped          int                             `json:"dropped_enrollments"`
	Substituted      int                             `json:"substituted_enrollments"`
	OptionalTaken    int                             `json:"optional_taken"`
	ByStatus         map[SubjectEnrollmentStatus]int `json:"by_status"`
}
