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

const termColumns = `id, academic_year_id, term_number, name, start_date, end_date, exam_start_date, exam_end_date, is_active, status, school_id, created_by, created_at, updated_at`

// TermRepository handles persistence for terms.
type TermRepository struct {
	db *sqlx.DB
}

// NewTermRepository instantiates a term repository.
func NewTermRepository(db *sqlx.DB) *TermRepository {
	return &TermRepository{db: db}
}

// ListByYear returns the terms of an academic year ordered by term number.
func (r *TermRepository) ListByYear(ctx context.Context, schoolID, academicYearID string) ([]models.Term, error) {
	query := fmt.Sprintf("SELECT %s FROM terms WHERE academic_year_id = $1 AND school_id = $2 ORDER BY term_number ASC", termColumns)
	var terms []models.Term
	if err := r.db.SelectContext(ctx, &terms, query, academicYearID, schoolID); err != nil {
		return nil, fmt.Errorf("list terms: %w", err)
	}
	return terms, nil
}

// FindByID returns a term scoped to the school.
func (r *TermRepository) FindByID(ctx context.Context, schoolID, id string) (*models.Term, error) {
	query := fmt.Sprintf("SELECT %s FROM terms WHERE id = $1 AND school_id = $2", termColumns)
	var term models.Term
	if err := r.db.GetContext(ctx, &term, query, id, schoolID); err != nil {
		return nil, err
	}
	return &term, nil
}

// FindActive returns the active term within a year, if any.
func (r *TermRepository) FindActive(ctx context.Context, schoolID, academicYearID string) (*models.Term, error) {
	query := fmt.Sprintf("SELECT %s FROM terms WHERE academic_year_id = $1 AND school_id = $2 AND is_active = TRUE LIMIT 1", termColumns)
	var term models.Term
	if err := r.db.GetContext(ctx, &term, query, academicYearID, schoolID); err != nil {
		return nil, err
	}
	return &term, nil
}

// ExistsByYearAndNumber checks the (year, term number) uniqueness key.
func (r *TermRepository) ExistsByYearAndNumber(ctx context.Context, academicYearID string, termNumber int) (bool, error) {
	const query = `SELECT 1 FROM terms WHERE academic_year_id = $1 AND term_number = $2 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, academicYearID, termNumber); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check term: %w", err)
	}
	return true, nil
}

// Create persists a new term.
func (r *TermRepository) Create(ctx context.Context, term *models.Term) error {
	if term.ID == "" {
		term.ID = uuid.NewString()
	}
	if term.Status == "" {
		term.Status = models.TermStatusPlanned
	}
	now := time.Now().UTC()
	term.CreatedAt = now
	term.UpdatedAt = now
	const query = `INSERT INTO terms (id, academic_year_id, term_number, name, start_date, end_date, exam_start_date, exam_end_date, is_active, status, school_id, created_by, created_at, updated_at)
        VALUES (:id, :academic_year_id, :term_number, :name, :start_date, :end_date, :exam_start_date, :exam_end_date, :is_active, :status, :school_id, :created_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, term); err != nil {
		return fmt.Errorf("create term: %w", err)
	}
	return nil
}

// Update persists mutable fields of a term.
func (r *TermRepository) Update(ctx context.Context, term *models.Term) error {
	term.UpdatedAt = time.Now().UTC()
	const query = `UPDATE terms SET name = :name, start_date = :start_date, end_date = :end_date, exam_start_date = :exam_start_date,
        exam_end_date = :exam_end_date, status = :status, updated_at = :updated_at
        WHERE id = :id AND school_id = :school_id`
	if _, err := r.db.NamedExecContext(ctx, query, term); err != nil {
		return fmt.Errorf("update term: %w", err)
	}
	return nil
}

// Activate makes the term the single active one within its year. Sibling
// deactivation and activation run in one transaction.
func (r *TermRepository) Activate(ctx context.Context, schoolID, academicYearID, id string) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin activate term tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	if _, err = tx.ExecContext(ctx, `UPDATE terms SET is_active = FALSE, updated_at = $3 WHERE academic_year_id = $1 AND school_id = $2`, academicYearID, schoolID, now); err != nil {
		return fmt.Errorf("deactivate sibling terms: %w", err)
	}
	res, err := tx.ExecContext(ctx, `UPDATE terms SET is_active = TRUE, updated_at = $3 WHERE id = $1 AND school_id = $2`, id, schoolID, now)
	if err != nil {
		return fmt.Errorf("activate term: %w", err)
	}
	if affected, raErr := res.RowsAffected(); raErr == nil && affected == 0 {
		err = sql.ErrNoRows
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit activate term: %w", err)
	}
	return nil
}
