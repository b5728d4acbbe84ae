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

const academicYearColumns = `id, year, start_date, end_date, is_active, is_closed, description, school_id, created_by, created_at, updated_at`

// AcademicYearRepository handles persistence for academic years.
type AcademicYearRepository struct {
	db *sqlx.DB
}

// NewAcademicYearRepository instantiates an academic year repository.
func NewAcademicYearRepository(db *sqlx.DB) *AcademicYearRepository {
	return &AcademicYearRepository{db: db}
}

// List returns the school's academic years ordered by year descending.
func (r *AcademicYearRepository) List(ctx context.Context, schoolID string, filter models.AcademicYearFilter) ([]models.AcademicYear, error) {
	query := fmt.Sprintf("SELECT %s FROM academic_years WHERE school_id = $1", academicYearColumns)
	args := []interface{}{schoolID}

	var conditions []string
	if filter.IsActive != nil {
		conditions = append(conditions, fmt.Sprintf("is_active = $%d", len(args)+1))
		args = append(args, *filter.IsActive)
	}
	if filter.IsClosed != nil {
		conditions = append(conditions, fmt.Sprintf("is_closed = $%d", len(args)+1))
		args = append(args, *filter.IsClosed)
	}
	if len(conditions) > 0 {
		query += " AND " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY year DESC"

	var years []models.AcademicYear
	if err := r.db.SelectContext(ctx, &years, query, args...); err != nil {
		return nil, fmt.Errorf("list academic years: %w", err)
	}
	return years, nil
}

// FindByID returns a year scoped to the school.
func (r *AcademicYearRepository) FindByID(ctx context.Context, schoolID, id string) (*models.AcademicYear, error) {
	query := fmt.Sprintf("SELECT %s FROM academic_years WHERE id = $1 AND school_id = $2", academicYearColumns)
	var year models.AcademicYear
	if err := r.db.GetContext(ctx, &year, query, id, schoolID); err != nil {
		return nil, err
	}
	return &year, nil
}

// ExistsByYear checks whether the numeric year is already registered for the school.
func (r *AcademicYearRepository) ExistsByYear(ctx context.Context, schoolID string, year int) (bool, error) {
	const query = `SELECT 1 FROM academic_years WHERE school_id = $1 AND year = $2 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, schoolID, year); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check academic year: %w", err)
	}
	return true, nil
}

// FindActive returns the school's single active year.
func (r *AcademicYearRepository) FindActive(ctx context.Context, schoolID string) (*models.AcademicYear, error) {
	query := fmt.Sprintf("SELECT %s FROM academic_years WHERE school_id = $1 AND is_active = TRUE LIMIT 1", academicYearColumns)
	var year models.AcademicYear
	if err := r.db.GetContext(ctx, &year, query, schoolID); err != nil {
		return nil, err
	}
	return &year, nil
}

// Create persists a new academic year.
func (r *AcademicYearRepository) Create(ctx context.Context, year *models.AcademicYear) error {
	if year.ID == "" {
		year.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	year.CreatedAt = now
	year.UpdatedAt = now
	const query = `INSERT INTO academic_years (id, year, start_date, end_date, is_active, is_closed, description, school_id, created_by, created_at, updated_at)
        VALUES (:id, :year, :start_date, :end_date, :is_active, :is_closed, :description, :school_id, :created_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, year); err != nil {
		return fmt.Errorf("create academic year: %w", err)
	}
	return nil
}

// Update persists mutable fields of a year.
func (r *AcademicYearRepository) Update(ctx context.Context, year *models.AcademicYear) error {
	year.UpdatedAt = time.Now().UTC()
	const query = `UPDATE academic_years SET start_date = :start_date, end_date = :end_date, description = :description, updated_at = :updated_at
        WHERE id = :id AND school_id = :school_id`
	if _, err := r.db.NamedExecContext(ctx, query, year); err != nil {
		return fmt.Errorf("update academic year: %w", err)
	}
	return nil
}

// Activate makes the given year the school's single active year. The
// deactivate-all-then-activate pair runs in one transaction.
func (r *AcademicYearRepository) Activate(ctx context.Context, schoolID, id string) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin activate year tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `UPDATE academic_years SET is_active = FALSE, updated_at = $2 WHERE school_id = $1`, schoolID, time.Now().UTC()); err != nil {
		return fmt.Errorf("deactivate academic years: %w", err)
	}
	res, err := tx.ExecContext(ctx, `UPDATE academic_years SET is_active = TRUE, updated_at = $3 WHERE id = $1 AND school_id = $2`, id, schoolID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("activate academic year: %w", err)
	}
	if affected, raErr := res.RowsAffected(); raErr == nil && affected == 0 {
		err = sql.ErrNoRows
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit activate year: %w", err)
	}
	return nil
}

// Lock closes the year permanently. Locking an already closed year is a no-op.
func (r *AcademicYearRepository) Lock(ctx context.Context, schoolID, id string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE academic_years SET is_closed = TRUE, updated_at = $3 WHERE id = $1 AND school_id = $2`, id, schoolID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("lock academic year: %w", err)
	}
	if affected, raErr := res.RowsAffected(); raErr == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
