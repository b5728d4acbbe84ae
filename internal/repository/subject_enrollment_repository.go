package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/shuletrack/academic-api/internal/models"
)

const subjectEnrollmentColumns = `se.id, se.student_id, se.subject_id, se.class_stream_id, se.academic_year_id, se.is_optional,
se.enrollment_status, se.enrolled_date, se.dropped_date, se.replacement_subject_id, se.approval_reason, se.school_id, se.created_by, se.created_at, se.updated_at`

// ErrNotActive signals a transition attempt against a non-ACTIVE enrollment.
var ErrNotActive = fmt.Errorf("enrollment not active")

// SubjectEnrollmentRepository handles persistence for the subject ledger.
type SubjectEnrollmentRepository struct {
	db *sqlx.DB
}

// NewSubjectEnrollmentRepository instantiates a subject enrollment repository.
func NewSubjectEnrollmentRepository(db *sqlx.DB) *SubjectEnrollmentRepository {
	return &SubjectEnrollmentRepository{db: db}
}

// FindByID returns an enrollment scoped to the school.
func (r *SubjectEnrollmentRepository) FindByID(ctx context.Context, schoolID, id string) (*models.StudentSubjectEnrollment, error) {
	query := fmt.Sprintf("SELECT %s FROM student_subject_enrollments se WHERE se.id = $1 AND se.school_id = $2", subjectEnrollmentColumns)
	var enrollment models.StudentSubjectEnrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id, schoolID); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// ExistsByKey checks the (student, subject, year, stream) uniqueness key.
func (r *SubjectEnrollmentRepository) ExistsByKey(ctx context.Context, studentID, subjectID, academicYearID, classStreamID string) (bool, error) {
	const query = `SELECT 1 FROM student_subject_enrollments
        WHERE student_id = $1 AND subject_id = $2 AND academic_year_id = $3 AND class_stream_id = $4 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, studentID, subjectID, academicYearID, classStreamID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check subject enrollment: %w", err)
	}
	return true, nil
}

// Create persists a new enrollment record.
func (r *SubjectEnrollmentRepository) Create(ctx context.Context, enrollment *models.StudentSubjectEnrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	if enrollment.EnrollmentStatus == "" {
		enrollment.EnrollmentStatus = models.SubjectEnrollmentActive
	}
	now := time.Now().UTC()
	if enrollment.EnrolledDate.IsZero() {
		enrollment.EnrolledDate = now
	}
	enrollment.CreatedAt = now
	enrollment.UpdatedAt = now
	const query = `INSERT INTO student_subject_enrollments (id, student_id, subject_id, class_stream_id, academic_year_id, is_optional,
        enrollment_status, enrolled_date, dropped_date, replacement_subject_id, approval_reason, school_id, created_by, created_at, updated_at)
        VALUES (:id, :student_id, :subject_id, :class_stream_id, :academic_year_id, :is_optional,
        :enrollment_status, :enrolled_date, :dropped_date, :replacement_subject_id, :approval_reason, :school_id, :created_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, enrollment); err != nil {
		return fmt.Errorf("create subject enrollment: %w", err)
	}
	return nil
}

// Drop transitions ACTIVE to DROPPED. The status guard in the WHERE clause
// makes concurrent double-drops lose the race cleanly.
func (r *SubjectEnrollmentRepository) Drop(ctx context.Context, schoolID, id, reason string, droppedAt time.Time) error {
	const query = `UPDATE student_subject_enrollments SET enrollment_status = $3, dropped_date = $4, approval_reason = $5, updated_at = $6
        WHERE id = $1 AND school_id = $2 AND enrollment_status = $7`
	res, err := r.db.ExecContext(ctx, query, id, schoolID, models.SubjectEnrollmentDropped, droppedAt, reason, time.Now().UTC(), models.SubjectEnrollmentActive)
	if err != nil {
		return fmt.Errorf("drop subject enrollment: %w", err)
	}
	if affected, raErr := res.RowsAffected(); raErr == nil && affected == 0 {
		return ErrNotActive
	}
	return nil
}

// Substitute transitions ACTIVE to SUBSTITUTED recording the replacement.
func (r *SubjectEnrollmentRepository) Substitute(ctx context.Context, schoolID, id, replacementSubjectID, reason string, droppedAt time.Time) error {
	const query = `UPDATE student_subject_enrollments SET enrollment_status = $3, dropped_date = $4, replacement_subject_id = $5, approval_reason = $6, updated_at = $7
        WHERE id = $1 AND school_id = $2 AND enrollment_status = $8`
	res, err := r.db.ExecContext(ctx, query, id, schoolID, models.SubjectEnrollmentSubstituted, droppedAt, replacementSubjectID, reason, time.Now().UTC(), models.SubjectEnrollmentActive)
	if err != nil {
		return fmt.Errorf("substitute subject enrollment: %w", err)
	}
	if affected, raErr := res.RowsAffected(); raErr == nil && affected == 0 {
		return ErrNotActive
	}
	return nil
}

// ListByStudent returns a student's enrollments, newest first.
func (r *SubjectEnrollmentRepository) ListByStudent(ctx context.Context, schoolID, studentID, academicYearID string) ([]models.SubjectEnrollmentDetail, error) {
	query := fmt.Sprintf(`SELECT %s, s.first_name || ' ' || s.last_name AS student_name, s.admission_number AS admission_number,
        sub.name AS subject_name, sub.code AS subject_code
        FROM student_subject_enrollments se
        JOIN students s ON s.id = se.student_id
        JOIN subjects sub ON sub.id = se.subject_id
        WHERE se.student_id = $1 AND se.school_id = $2`, subjectEnrollmentColumns)
	args := []interface{}{studentID, schoolID}
	if academicYearID != "" {
		query += fmt.Sprintf(" AND se.academic_year_id = $%d", len(args)+1)
		args = append(args, academicYearID)
	}
	query += " ORDER BY se.enrolled_date DESC"

	var enrollments []models.SubjectEnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, args...); err != nil {
		return nil, fmt.Errorf("list student enrollments: %w", err)
	}
	return enrollments, nil
}

// ListByStreamAndYear returns the enrollments backing the class roster matrix,
// ordered for stable subject grouping.
func (r *SubjectEnrollmentRepository) ListByStreamAndYear(ctx context.Context, schoolID, classStreamID, academicYearID string) ([]models.SubjectEnrollmentDetail, error) {
	query := fmt.Sprintf(`SELECT %s, s.first_name || ' ' || s.last_name AS student_name, s.admission_number AS admission_number,
        sub.name AS subject_name, sub.code AS subject_code
        FROM student_subject_enrollments se
        JOIN students s ON s.id = se.student_id
        JOIN subjects sub ON sub.id = se.subject_id
        WHERE se.class_stream_id = $1 AND se.academic_year_id = $2 AND se.school_id = $3
        ORDER BY sub.name ASC, s.first_name ASC`, subjectEnrollmentColumns)
	var enrollments []models.SubjectEnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, classStreamID, academicYearID, schoolID); err != nil {
		return nil, fmt.Errorf("list class enrollments: %w", err)
	}
	return enrollments, nil
}

// CountByStatus aggregates enrollment counts for the report endpoint.
func (r *SubjectEnrollmentRepository) CountByStatus(ctx context.Context, schoolID, academicYearID, classStreamID string) (map[models.SubjectEnrollmentStatus]int, int, error) {
	query := `SELECT enrollment_status, COUNT(*) AS count, COUNT(*) FILTER (WHERE is_optional) AS optional_count
        FROM student_subject_enrollments WHERE school_id = $1 AND academic_year_id = $2`
	args := []interface{}{schoolID, academicYearID}
	if classStreamID != "" {
		query += fmt.Sprintf(" AND class_stream_id = $%d", len(args)+1)
		args = append(args, classStreamID)
	}
	query += " GROUP BY enrollment_status"

	rows, err := r.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.SubjectEnrollmentStatus]int)
	optionalTotal := 0
	for rows.Next() {
		var status models.SubjectEnrollmentStatus
		var count, optionalCount int
		if err := rows.Scan(&status, &count, &optionalCount); err != nil {
			return nil, 0, fmt.Errorf("scan enrollment count: %w", err)
		}
		counts[status] = count
		optionalTotal += optionalCount
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate enrollment counts: %w", err)
	}
	return counts, optionalTotal, nil
}
