package models

import "time"

// ClassLevel is the ordered form a student occupies. FORM_4 is the top level.
type ClassLevel string

const (
	LevelForm1 ClassLevel = "FORM_1"
	LevelForm2 ClassLevel = "FORM_2"
	LevelForm3 ClassLevel = "FORM_3"
	LevelForm4 ClassLevel = "FORM_4"
)

// classLevelOrder fixes the total order over levels.
var classLevelOrder = []ClassLevel{LevelForm1, LevelForm2, LevelForm3, LevelForm4}

// Valid reports whether the level is a known enum member.
func (l ClassLevel) Valid() bool {
	for _, level := range classLevelOrder {
		if l == level {
			return true
		}
	}
	return false
}

// Next returns the successor level. The second return is false at the top
// level, which has no successor.
func (l ClassLevel) Next() (ClassLevel, bool) {
	for i, level := range classLevelOrder {
		if l == level && i+1 < len(classLevelOrder) {
			return classLevelOrder[i+1], true
		}
	}
	return "", false
}

// IsTop reports whether the level is the last element of the order.
func (l ClassLevel) IsTop() bool {
	return l == classLevelOrder[len(classLevelOrder)-1]
}

// ClassLevels returns the ordered level enum.
func ClassLevels() []ClassLevel {
	out := make([]ClassLevel, len(classLevelOrder))
	copy(out, classLevelOrder)
	return out
}

// StreamStatus marks whether a class stream accepts members.
type StreamStatus string

const (
	StreamStatusActive   StreamStatus = "ACTIVE"
	StreamStatusInactive StreamStatus = "INACTIVE"
)

// ClassStream is a level × stream-label grouping within one academic year,
// unique per (school, year, level, stream name). Capacity is advisory.
type ClassStream struct {
	ID             string       `db:"id" json:"id"`
	SchoolID       string       `db:"school_id" json:"school_id"`
	AcademicYearID string       `db:"academic_year_id" json:"academic_year_id"`
	ClassLevel     ClassLevel   `db:"class_level" json:"class_level"`
	StreamName     string       `db:"stream_name" json:"stream_name"`
	Capacity       int          `db:"capacity" json:"capacity"`
	ClassTeacherID *string      `db:"class_teacher_id" json:"class_teacher_id,omitempty"`
	Status         StreamStatus `db:"status" json:"status"`
	CreatedBy      string       `db:"created_by" json:"created_by"`
	CreatedAt      time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time    `db:"updated_at" json:"updated_at"`
}

// ClassStreamDetail carries the derived enrollment count. The count comes from
// open progression records referencing the stream, not a stored column.
type ClassStreamDetail struct {
	ClassStream
	EnrollmentCount int  `db:"enrollment_count" json:"enrollment_count"`
	OverCapacity    bool `json:"over_capacity"`
}

// ClassStreamFilter defines filter criteria for listing streams.
type ClassStreamFilter struct {
	AcademicYearID string
	ClassLevel     ClassLevel
	Status         StreamStatus
}
