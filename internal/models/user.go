package models

import "time"

// UserRole enumerates the access roles known to the API.
type UserRole string

const (
	RoleAdmin           UserRole = "ADMIN"
	RolePrincipal       UserRole = "PRINCIPAL"
	RoleAcademicOfficer UserRole = "ACADEMIC_OFFICER"
	RoleTeacher         UserRole = "TEACHER"
)

// User is an authenticated principal acting on the ledger.
type User struct {
	ID           string    `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	FullName     string    `db:"full_name" json:"full_name"`
	Role         UserRole  `db:"role" json:"role"`
	SchoolID     string    `db:"school_id" json:"school_id"`
	Active       bool      `db:"active" json:"active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}
