package models

import "time"

// EnrollmentType records how a student came to be in a year's progression record.
type EnrollmentType string

const (
	EnrollmentTypeNew            EnrollmentType = "NEW"
	EnrollmentTypeRepeat         EnrollmentType = "REPEAT"
	EnrollmentTypeTransferIn     EnrollmentType = "TRANSFER_IN"
	EnrollmentTypeSkipTermResume EnrollmentType = "SKIP_TERM_RESUME"
)

// Valid reports whether the enrollment type is a known enum member.
func (t EnrollmentType) Valid() bool {
	switch t {
	case EnrollmentTypeNew, EnrollmentTypeRepeat, EnrollmentTypeTransferIn, EnrollmentTypeSkipTermResume:
		return true
	}
	return false
}

// ExitReason records why a progression record was closed.
type ExitReason string

const (
	ExitReasonNone        ExitReason = "NONE"
	ExitReasonGraduated   ExitReason = "GRADUATED"
	ExitReasonTransferred ExitReason = "TRANSFERRED"
	ExitReasonDropout     ExitReason = "DROPOUT"
	ExitReasonIncomplete  ExitReason = "INCOMPLETE"
	ExitReasonSuspended   ExitReason = "SUSPENDED"
	ExitReasonProgressed  ExitReason = "PROGRESSED"
)

// Valid reports whether the exit reason is a known enum member.
func (r ExitReason) Valid() bool {
	switch r {
	case ExitReasonNone, ExitReasonGraduated, ExitReasonTransferred, ExitReasonDropout,
		ExitReasonIncomplete, ExitReasonSuspended, ExitReasonProgressed:
		return true
	}
	return false
}

// StudentProgression is the per-student-per-year ledger entry. Records are
// append-only: a record is closed by setting exit_date and exit_reason, never
// deleted. The previous_academic_year_id chain forms the student's trajectory.
type StudentProgression struct {
	ID                     string         `db:"id" json:"id"`
	StudentID              string         `db:"student_id" json:"student_id"`
	AcademicYearID         string         `db:"academic_year_id" json:"academic_year_id"`
	ClassLevel             ClassLevel     `db:"class_level" json:"class_level"`
	ClassStreamID          *string        `db:"class_stream_id" json:"class_stream_id,omitempty"`
	EnrollmentType         EnrollmentType `db:"enrollment_type" json:"enrollment_type"`
	PreviousAcademicYearID *string        `db:"previous_academic_year_id" json:"previous_academic_year_id,omitempty"`
	EntryDate              time.Time      `db:"entry_date" json:"entry_date"`
	ExitDate               *time.Time     `db:"exit_date" json:"exit_date,omitempty"`
	ExitReason             ExitReason     `db:"exit_reason" json:"exit_reason"`
	ApprovalReason         *string        `db:"approval_reason" json:"approval_reason,omitempty"`
	SchoolID               string         `db:"school_id" json:"school_id"`
	CreatedBy              string         `db:"created_by" json:"created_by"`
	CreatedAt              time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt              time.Time      `db:"updated_at" json:"updated_at"`
}

// Open reports whether the record still represents a live year membership.
func (p *StudentProgression) Open() bool {
	return p.ExitDate == nil && p.ExitReason == ExitReasonNone
}

// ProgressionDetail enriches a progression record with calendar and stream info.
type ProgressionDetail struct {
	StudentProgression
	Year       int     `db:"year" json:"year"`
	StreamName *string `db:"stream_name" json:"stream_name,omitempty"`
}

// RepeaterDetail describes a repeating student within a stream.
type RepeaterDetail struct {
	StudentProgression
	StudentName     string `db:"student_name" json:"student_name"`
	AdmissionNumber string `db:"admission_number" json:"admission_number"`
}

// ProgressionStats aggregates a year's progression ledger.
type ProgressionStats struct {
	AcademicYearID string                 `json:"academic_year_id"`
	TotalStudents  int                    `json:"total_students"`
	ByType         map[EnrollmentType]int `json:"by_type"`
	ByLevel        map[ClassLevel]int     `json:"by_level"`
	ByExitReason   map[ExitReason]int     `json:"by_exit_reason"`
	Percentages    ProgressionPercent     `json:"percentages"`
}

// ProgressionPercent carries derived shares of the year's cohort.
type ProgressionPercent struct {
	Repeating     float64 `json:"repeating"`
	TransferredIn float64 `json:"transferred_in"`
}
