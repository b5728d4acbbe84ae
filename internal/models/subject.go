package models

import "time"

// Subject represents a teachable subject within a school.
type Subject struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Code        string    `db:"code" json:"code"`
	Description *string   `db:"description" json:"description,omitempty"`
	IsOptional  bool      `db:"is_optional" json:"is_optional"`
	SchoolID    string    `db:"school_id" json:"school_id"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// SubjectFilter scopes subject listings.
type SubjectFilter struct {
	Search     string
	IsOptional *bool
}
