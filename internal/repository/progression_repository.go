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

const progressionColumns = `sp.id, sp.student_id, sp.academic_year_id, sp.class_level, sp.class_stream_id, sp.enrollment_type,
sp.previous_academic_year_id, sp.entry_date, sp.exit_date, sp.exit_reason, sp.approval_reason, sp.school_id, sp.created_by, sp.created_at, sp.updated_at`

// ErrAlreadyClosed signals a close attempt against a closed progression record.
var ErrAlreadyClosed = fmt.Errorf("progression already closed")

// ProgressionRepository handles persistence for the progression ledger.
type ProgressionRepository struct {
	db *sqlx.DB
}

// NewProgressionRepository instantiates a progression repository.
func NewProgressionRepository(db *sqlx.DB) *ProgressionRepository {
	return &ProgressionRepository{db: db}
}

// FindByID returns a progression record scoped to the school.
func (r *ProgressionRepository) FindByID(ctx context.Context, schoolID, id string) (*models.StudentProgression, error) {
	query := fmt.Sprintf("SELECT %s FROM student_progressions sp WHERE sp.id = $1 AND sp.school_id = $2", progressionColumns)
	var progression models.StudentProgression
	if err := r.db.GetContext(ctx, &progression, query, id, schoolID); err != nil {
		return nil, err
	}
	return &progression, nil
}

// FindByStudentAndYear returns the record for the (student, year) key.
func (r *ProgressionRepository) FindByStudentAndYear(ctx context.Context, schoolID, studentID, academicYearID string) (*models.StudentProgression, error) {
	query := fmt.Sprintf("SELECT %s FROM student_progressions sp WHERE sp.student_id = $1 AND sp.academic_year_id = $2 AND sp.school_id = $3", progressionColumns)
	var progression models.StudentProgression
	if err := r.db.GetContext(ctx, &progression, query, studentID, academicYearID, schoolID); err != nil {
		return nil, err
	}
	return &progression, nil
}

// ExistsForStudentYear checks the (student, year) uniqueness key.
func (r *ProgressionRepository) ExistsForStudentYear(ctx context.Context, studentID, academicYearID string) (bool, error) {
	const query = `SELECT 1 FROM student_progressions WHERE student_id = $1 AND academic_year_id = $2 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, studentID, academicYearID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check progression: %w", err)
	}
	return true, nil
}

// HistoryByStudent returns the student's full trajectory ordered by entry date.
func (r *ProgressionRepository) HistoryByStudent(ctx context.Context, schoolID, studentID string) ([]models.ProgressionDetail, error) {
	query := fmt.Sprintf(`SELECT %s, ay.year AS year, cs.stream_name AS stream_name
        FROM student_progressions sp
        JOIN academic_years ay ON ay.id = sp.academic_year_id
        LEFT JOIN class_streams cs ON cs.id = sp.class_stream_id
        WHERE sp.student_id = $1 AND sp.school_id = $2
        ORDER BY sp.entry_date ASC`, progressionColumns)
	var history []models.ProgressionDetail
	if err := r.db.SelectContext(ctx, &history, query, studentID, schoolID); err != nil {
		return nil, fmt.Errorf("list progression history: %w", err)
	}
	return history, nil
}

// Create persists a new progression record.
func (r *ProgressionRepository) Create(ctx context.Context, progression *models.StudentProgression) error {
	prepareProgression(progression)
	const query = `INSERT INTO student_progressions (id, student_id, academic_year_id, class_level, class_stream_id, enrollment_type,
        previous_academic_year_id, entry_date, exit_date, exit_reason, approval_reason, school_id, created_by, created_at, updated_at)
        VALUES (:id, :student_id, :academic_year_id, :class_level, :class_stream_id, :enrollment_type,
        :previous_academic_year_id, :entry_date, :exit_date, :exit_reason, :approval_reason, :school_id, :created_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, progression); err != nil {
		return fmt.Errorf("create progression: %w", err)
	}
	return nil
}

// Close stamps exit date and reason on an open record. Closing an already
// closed record returns ErrAlreadyClosed.
func (r *ProgressionRepository) Close(ctx context.Context, schoolID, id string, reason models.ExitReason, exitDate time.Time) error {
	const query = `UPDATE student_progressions SET exit_date = $3, exit_reason = $4, updated_at = $5
        WHERE id = $1 AND school_id = $2 AND exit_date IS NULL`
	res, err := r.db.ExecContext(ctx, query, id, schoolID, exitDate, reason, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("close progression: %w", err)
	}
	if affected, raErr := res.RowsAffected(); raErr == nil && affected == 0 {
		return ErrAlreadyClosed
	}
	return nil
}

// MarkSuspended flags the record as a term suspension without closing it.
func (r *ProgressionRepository) MarkSuspended(ctx context.Context, schoolID, id, reason string) error {
	const query = `UPDATE student_progressions SET enrollment_type = $3, approval_reason = $4, updated_at = $5
        WHERE id = $1 AND school_id = $2`
	if _, err := r.db.ExecContext(ctx, query, id, schoolID, models.EnrollmentTypeSkipTermResume, reason, time.Now().UTC()); err != nil {
		return fmt.Errorf("suspend progression: %w", err)
	}
	return nil
}

// TransitionParams describes a close-old/open-new pair plus the student
// standing update applied in the same transaction.
type TransitionParams struct {
	SchoolID      string
	StudentID     string
	CloseRecordID string
	ExitReason    models.ExitReason
	NewRecord     *models.StudentProgression
	StudentLevel  models.ClassLevel
	StudentStream *string
	UpdatePointer bool
}

// Transition atomically closes the source record, inserts the successor and
// moves the student's current-level pointer. Any failure rolls back the whole
// unit so a half-applied transition can never be observed.
func (r *ProgressionRepository) Transition(ctx context.Context, params TransitionParams) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transition tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	const closeQuery = `UPDATE student_progressions SET exit_date = $3, exit_reason = $4, updated_at = $5
        WHERE id = $1 AND school_id = $2 AND exit_date IS NULL`
	res, err := tx.ExecContext(ctx, closeQuery, params.CloseRecordID, params.SchoolID, now, params.ExitReason, now)
	if err != nil {
		return fmt.Errorf("close source progression: %w", err)
	}
	if affected, raErr := res.RowsAffected(); raErr == nil && affected == 0 {
		err = ErrAlreadyClosed
		return err
	}

	prepareProgression(params.NewRecord)
	const insertQuery = `INSERT INTO student_progressions (id, student_id, academic_year_id, class_level, class_stream_id, enrollment_type,
        previous_academic_year_id, entry_date, exit_date, exit_reason, approval_reason, school_id, created_by, created_at, updated_at)
        VALUES (:id, :student_id, :academic_year_id, :class_level, :class_stream_id, :enrollment_type,
        :previous_academic_year_id, :entry_date, :exit_date, :exit_reason, :approval_reason, :school_id, :created_by, :created_at, :updated_at)`
	if _, err = tx.NamedExecContext(ctx, insertQuery, params.NewRecord); err != nil {
		return fmt.Errorf("insert successor progression: %w", err)
	}

	if params.UpdatePointer {
		const pointerQuery = `UPDATE students SET class_level = $3, class_stream_id = $4, updated_at = $5 WHERE id = $1 AND school_id = $2`
		if _, err = tx.ExecContext(ctx, pointerQuery, params.StudentID, params.SchoolID, params.StudentLevel, params.StudentStream, now); err != nil {
			return fmt.Errorf("update student pointer: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transition: %w", err)
	}
	return nil
}

// ListRepeaters returns REPEAT-typed records for a stream and year with
// student identity attached.
func (r *ProgressionRepository) ListRepeaters(ctx context.Context, schoolID, classStreamID, academicYearID string) ([]models.RepeaterDetail, error) {
	query := fmt.Sprintf(`SELECT %s, s.first_name || ' ' || s.last_name AS student_name, s.admission_number AS admission_number
        FROM student_progressions sp
        JOIN students s ON s.id = sp.student_id
        WHERE sp.class_stream_id = $1 AND sp.academic_year_id = $2 AND sp.enrollment_type = $3 AND sp.school_id = $4
        ORDER BY s.first_name ASC`, progressionColumns)
	var repeaters []models.RepeaterDetail
	if err := r.db.SelectContext(ctx, &repeaters, query, classStreamID, academicYearID, models.EnrollmentTypeRepeat, schoolID); err != nil {
		return nil, fmt.Errorf("list repeaters: %w", err)
	}
	return repeaters, nil
}

// ListByYear returns the full ledger slice for one year, used by the
// analytics fold.
func (r *ProgressionRepository) ListByYear(ctx context.Context, schoolID, academicYearID string) ([]models.StudentProgression, error) {
	query := fmt.Sprintf("SELECT %s FROM student_progressions sp WHERE sp.academic_year_id = $1 AND sp.school_id = $2", progressionColumns)
	var progressions []models.StudentProgression
	if err := r.db.SelectContext(ctx, &progressions, query, academicYearID, schoolID); err != nil {
		return nil, fmt.Errorf("list progressions by year: %w", err)
	}
	return progressions, nil
}

func prepareProgression(p *models.StudentProgression) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.EnrollmentType == "" {
		p.EnrollmentType = models.EnrollmentTypeNew
	}
	if p.ExitReason == "" {
		p.ExitReason = models.ExitReasonNone
	}
	now := time.Now().UTC()
	if p.EntryDate.IsZero() {
		p.EntryDate = now
	}
	p.CreatedAt = now
	p.UpdatedAt = now
}
