package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/shuletrack/academic-api/internal/models"
)

const classStreamColumns = `cs.id, cs.school_id, cs.academic_year_id, cs.class_level, cs.stream_name, cs.capacity, cs.class_teacher_id, cs.status, cs.created_by, cs.created_at, cs.updated_at`

// enrollmentCountJoin derives the membership count from open progression
// records rather than trusting a stored counter.
const enrollmentCountJoin = `LEFT JOIN (
    SELECT class_stream_id, COUNT(*) AS enrollment_count
    FROM student_progressions
    WHERE exit_date IS NULL
    GROUP BY class_stream_id
) pc ON pc.class_stream_id = cs.id`

// ClassStreamRepository handles persistence for class streams.
type ClassStreamRepository struct {
	db *sqlx.DB
}

// NewClassStreamRepository instantiates a class stream repository.
func NewClassStreamRepository(db *sqlx.DB) *ClassStreamRepository {
	return &ClassStreamRepository{db: db}
}

// List returns streams with derived enrollment counts.
func (r *ClassStreamRepository) List(ctx context.Context, schoolID string, filter models.ClassStreamFilter) ([]models.ClassStreamDetail, error) {
	query := fmt.Sprintf(`SELECT %s, COALESCE(pc.enrollment_count, 0) AS enrollment_count
        FROM class_streams cs %s WHERE cs.school_id = $1`, classStreamColumns, enrollmentCountJoin)
	args := []interface{}{schoolID}

	var conditions []string
	if filter.AcademicYearID != "" {
		conditions = append(conditions, fmt.Sprintf("cs.academic_year_id = $%d", len(args)+1))
		args = append(args, filter.AcademicYearID)
	}
	if filter.ClassLevel != "" {
		conditions = append(conditions, fmt.Sprintf("cs.class_level = $%d", len(args)+1))
		args = append(args, filter.ClassLevel)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("cs.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if len(conditions) > 0 {
		query += " AND " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY cs.class_level ASC, cs.stream_name ASC"

	var streams []models.ClassStreamDetail
	if err := r.db.SelectContext(ctx, &streams, query, args...); err != nil {
		return nil, fmt.Errorf("list class streams: %w", err)
	}
	for i := range streams {
		streams[i].OverCapacity = streams[i].Capacity > 0 && streams[i].EnrollmentCount > streams[i].Capacity
	}
	return streams, nil
}

// FindByID returns a stream with its derived enrollment count.
func (r *ClassStreamRepository) FindByID(ctx context.Context, schoolID, id string) (*models.ClassStreamDetail, error) {
	query := fmt.Sprintf(`SELECT %s, COALESCE(pc.enrollment_count, 0) AS enrollment_count
        FROM class_streams cs %s WHERE cs.id = $1 AND cs.school_id = $2`, classStreamColumns, enrollmentCountJoin)
	var stream models.ClassStreamDetail
	if err := r.db.GetContext(ctx, &stream, query, id, schoolID); err != nil {
		return nil, err
	}
	stream.OverCapacity = stream.Capacity > 0 && stream.EnrollmentCount > stream.Capacity
	return &stream, nil
}

// ExistsByKey checks the (school, year, level, stream name) uniqueness key.
func (r *ClassStreamRepository) ExistsByKey(ctx context.Context, schoolID, academicYearID string, level models.ClassLevel, streamName string) (bool, error) {
	const query = `SELECT 1 FROM class_streams WHERE school_id = $1 AND academic_year_id = $2 AND class_level = $3 AND stream_name = $4 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, schoolID, academicYearID, level, streamName); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check class stream: %w", err)
	}
	return true, nil
}

// Create persists a new class stream.
func (r *ClassStreamRepository) Create(ctx context.Context, stream *models.ClassStream) error {
	if stream.ID == "" {
		stream.ID = uuid.NewString()
	}
	if stream.Status == "" {
		stream.Status = models.StreamStatusActive
	}
	now := time.Now().UTC()
	stream.CreatedAt = now
	stream.UpdatedAt = now
	const query = `INSERT INTO class_streams (id, school_id, academic_year_id, class_level, stream_name, capacity, class_teacher_id, status, created_by, created_at, updated_at)
        VALUES (:id, :school_id, :academic_year_id, :class_level, :stream_name, :capacity, :class_teacher_id, :status, :created_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, stream); err != nil {
		return fmt.Errorf("create class stream: %w", err)
	}
	return nil
}

// Update persists capacity, teacher and status changes.
func (r *ClassStreamRepository) Update(ctx context.Context, stream *models.ClassStream) error {
	stream.UpdatedAt = time.Now().UTC()
	const query = `UPDATE class_streams SET capacity = :capacity, class_teacher_id = :class_teacher_id, status = :status, updated_at = :updated_at
        WHERE id = :id AND school_id = :school_id`
	if _, err := r.db.NamedExecContext(ctx, query, stream); err != nil {
		return fmt.Errorf("update class stream: %w", err)
	}
	return nil
}
