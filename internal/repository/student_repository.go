package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/shuletrack/academic-api/internal/models"
)

const studentColumns = `id, admission_number, first_name, last_name, gender, class_level, class_stream_id, status,
is_alumni, is_dropout, dropout_reason, graduation_year, school_id, created_at, updated_at`

// StudentRepository is the read/update surface of the student directory used
// by the ledger. Student creation and deletion belong to a separate admissions
// flow; deleting students is rejected by design.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository instantiates a student repository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// FindByID returns a student scoped to the school.
func (r *StudentRepository) FindByID(ctx context.Context, schoolID, id string) (*models.Student, error) {
	query := fmt.Sprintf("SELECT %s FROM students WHERE id = $1 AND school_id = $2", studentColumns)
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, id, schoolID); err != nil {
		return nil, err
	}
	return &student, nil
}

// List returns students matching the filter with a total count.
func (r *StudentRepository) List(ctx context.Context, schoolID string, filter models.StudentFilter) ([]models.Student, int, error) {
	base := "FROM students WHERE school_id = $1"
	args := []interface{}{schoolID}

	var conditions []string
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(first_name ILIKE $%d OR last_name ILIKE $%d OR admission_number ILIKE $%d)", len(args)+1, len(args)+1, len(args)+1))
		args = append(args, "%"+filter.Search+"%")
	}
	if filter.ClassLevel != "" {
		conditions = append(conditions, fmt.Sprintf("class_level = $%d", len(args)+1))
		args = append(args, filter.ClassLevel)
	}
	if filter.ClassStreamID != "" {
		conditions = append(conditions, fmt.Sprintf("class_stream_id = $%d", len(args)+1))
		args = append(args, filter.ClassStreamID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.IsAlumni != nil {
		conditions = append(conditions, fmt.Sprintf("is_alumni = $%d", len(args)+1))
		args = append(args, *filter.IsAlumni)
	}
	clause := ""
	if len(conditions) > 0 {
		clause = " AND " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY first_name ASC LIMIT %d OFFSET %d", studentColumns, base+clause, size, offset)
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}
	return students, total, nil
}

// ListAlumni returns graduated students, newest graduation first.
func (r *StudentRepository) ListAlumni(ctx context.Context, schoolID string) ([]models.Student, error) {
	query := fmt.Sprintf("SELECT %s FROM students WHERE school_id = $1 AND is_alumni = TRUE ORDER BY graduation_year DESC", studentColumns)
	var alumni []models.Student
	if err := r.db.SelectContext(ctx, &alumni, query, schoolID); err != nil {
		return nil, fmt.Errorf("list alumni: %w", err)
	}
	return alumni, nil
}

// UpdateStanding applies the directory-level changes the promotion engine
// produces (level/stream pointer, graduation, dropout).
func (r *StudentRepository) UpdateStanding(ctx context.Context, schoolID, id string, update models.StudentStandingUpdate) error {
	sets := []string{}
	args := []interface{}{id, schoolID}

	add := func(column string, value interface{}) {
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)+1))
		args = append(args, value)
	}

	if update.ClassLevel != nil {
		add("class_level", *update.ClassLevel)
	}
	if update.ClassStreamID != nil {
		add("class_stream_id", *update.ClassStreamID)
	}
	if update.Status != nil {
		add("status", *update.Status)
	}
	if update.IsAlumni != nil {
		add("is_alumni", *update.IsAlumni)
	}
	if update.IsDropout != nil {
		add("is_dropout", *update.IsDropout)
	}
	if update.DropoutReason != nil {
		add("dropout_reason", *update.DropoutReason)
	}
	if update.GraduationYear != nil {
		add("graduation_year", *update.GraduationYear)
	}
	if len(sets) == 0 {
		return nil
	}
	add("updated_at", time.Now().UTC())

	query := fmt.Sprintf("UPDATE students SET %s WHERE id = $1 AND school_id = $2", strings.Join(sets, ", "))
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update student standing: %w", err)
	}
	return nil
}
