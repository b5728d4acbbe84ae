package models

import (
	"encoding/json"
	"time"
)

// Audit actions recorded by the ledger.
const (
	AuditActionCalendarWrite    = "CALENDAR_WRITE"
	AuditActionStreamWrite      = "STREAM_WRITE"
	AuditActionProgressionWrite = "PROGRESSION_WRITE"
	AuditActionEnrollmentWrite  = "ENROLLMENT_WRITE"
	AuditActionPromotion        = "PROMOTION"
)

// AuditLog captures who did what against which resource.
type AuditLog struct {
	ID         string          `db:"id" json:"id"`
	UserID     *string         `db:"user_id" json:"user_id,omitempty"`
	SchoolID   string          `db:"school_id" json:"school_id"`
	Action     string          `db:"action" json:"action"`
	Resource   string          `db:"resource" json:"resource"`
	ResourceID *string         `db:"resource_id" json:"resource_id,omitempty"`
	NewValues  json.RawMessage `db:"new_values" json:"new_values,omitempty"`
	IPAddress  string          `db:"ip_address" json:"ip_address"`
	UserAgent  string          `db:"user_agent" json:"user_agent"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
}
