package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/shuletrack/academic-api/internal/models"
	"github.com/shuletrack/academic-api/internal/repository"
	appErrors "github.com/shuletrack/academic-api/pkg/errors"
)

type progressionRepository interface {
	FindByID(ctx context.Context, schoolID, id string) (*models.StudentProgression, error)
	FindByStudentAndYear(ctx context.Context, schoolID, studentID, academicYearID string) (*models.StudentProgression, error)
	ExistsForStudentYear(ctx context.Context, studentID, academicYearID string) (bool, error)
	HistoryByStudent(ctx context.Context, schoolID, studentID string) ([]models.ProgressionDetail, error)
	Create(ctx context.Context, progression *models.StudentProgression) error
	Close(ctx context.Context, schoolID, id string, reason models.ExitReason, exitDate time.Time) error
	MarkSuspended(ctx context.Context, schoolID, id, reason string) error
	Transition(ctx context.Context, params repository.TransitionParams) error
	ListRepeaters(ctx context.Context, schoolID, classStreamID, academicYearID string) ([]models.RepeaterDetail, error)
	ListByYear(ctx context.Context, schoolID, academicYearID string) ([]models.StudentProgression, error)
}

type studentReader interface {
	FindByID(ctx context.Context, schoolID, id string) (*models.Student, error)
}

type streamReader interface {
	FindByID(ctx context.Context, schoolID, id string) (*models.ClassStreamDetail, error)
}

// CreateProgressionRequest describes manual ledger record creation, used for
// first-time registration and transfer-in arrivals.
type CreateProgressionRequest struct {
	StudentID              string                `json:"student_id" validate:"required"`
	AcademicYearID         string                `json:"academic_year_id" validate:"required"`
	ClassLevel             models.ClassLevel     `json:"class_level" validate:"required"`
	ClassStreamID          *string               `json:"class_stream_id"`
	EnrollmentType         models.EnrollmentType `json:"enrollment_type" validate:"required"`
	PreviousAcademicYearID *string               `json:"previous_academic_year_id"`
	EntryDate              *time.Time            `json:"entry_date"`
	ApprovalReason         *string               `json:"approval_reason"`
}

// CloseProgressionRequest describes closing an open ledger record.
type CloseProgressionRequest struct {
	ExitReason models.ExitReason `json:"exit_reason" validate:"required"`
	ExitDate   *time.Time        `json:"exit_date"`
}

// ProgressionService manages the per-student-per-year progression ledger.
type ProgressionService struct {
	repo      progressionRepository
	students  studentReader
	streams   streamReader
	years     academicYearRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewProgressionService constructs ProgressionService.
func NewProgressionService(repo progressionRepository, students studentReader, streams streamReader, years academicYearRepository, validate *validator.Validate, logger *zap.Logger) *ProgressionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProgressionService{repo: repo, students: students, streams: streams, years: years, validator: validate, logger: logger}
}

// Create appends a ledger record for a (student, year) pair.
func (s *ProgressionService) Create(ctx context.Context, schoolID, actorID string, req CreateProgressionRequest) (*models.StudentProgression, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid progression payload")
	}
	if !req.ClassLevel.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown class level")
	}
	if !req.EnrollmentType.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown enrollment type")
	}
	if _, err := s.students.FindByID(ctx, schoolID, req.StudentID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	year, err := s.years.FindByID(ctx, schoolID, req.AcademicYearID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "academic year not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load academic year")
	}
	if year.IsClosed {
		return nil, appErrors.Clone(appErrors.ErrYearClosed, "academic year is closed")
	}
	if req.ClassStreamID != nil {
		stream, err := s.streams.FindByID(ctx, schoolID, *req.ClassStreamID)
		if err != nil {
			if err == sql.ErrNoRows {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "class stream not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class stream")
		}
		if stream.ClassLevel != req.ClassLevel {
			return nil, appErrors.Clone(appErrors.ErrValidation, "class stream level does not match progression level")
		}
	}
	exists, err := s.repo.ExistsForStudentYear(ctx, req.StudentID, req.AcademicYearID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate progression")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "student already has a progression record for year")
	}
	progression := &models.StudentProgression{
		StudentID:              req.StudentID,
		AcademicYearID:         req.AcademicYearID,
		ClassLevel:             req.ClassLevel,
		ClassStreamID:          req.ClassStreamID,
		EnrollmentType:         req.EnrollmentType,
		PreviousAcademicYearID: req.PreviousAcademicYearID,
		ApprovalReason:         req.ApprovalReason,
		SchoolID:               schoolID,
		CreatedBy:              actorID,
	}
	if req.EntryDate != nil {
		progression.EntryDate = *req.EntryDate
	}
	if err := s.repo.Create(ctx, progression); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "student already has a progression record for year")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create progression")
	}
	return progression, nil
}

// History returns the student's trajectory ordered by entry date.
func (s *ProgressionService) History(ctx context.Context, schoolID, studentID string) ([]models.ProgressionDetail, error) {
	if _, err := s.students.FindByID(ctx, schoolID, studentID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	history, err := s.repo.HistoryByStudent(ctx, schoolID, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load progression history")
	}
	return history, nil
}

// Close stamps exit date and reason on an open record. A record can only be
// closed once; a second close is rejected, never silently overwritten.
func (s *ProgressionService) Close(ctx context.Context, schoolID string, id string, req CloseProgressionRequest) (*models.StudentProgression, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid close payload")
	}
	if !req.ExitReason.Valid() || req.ExitReason == models.ExitReasonNone {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown exit reason")
	}
	progression, err := s.repo.FindByID(ctx, schoolID, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "progression record not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load progression")
	}
	exitDate := time.Now().UTC()
	if req.ExitDate != nil {
		exitDate = *req.ExitDate
	}
	if err := s.repo.Close(ctx, schoolID, id, req.ExitReason, exitDate); err != nil {
		if errors.Is(err, repository.ErrAlreadyClosed) {
			return nil, appErrors.Clone(appErrors.ErrInvalidState, "progression record already closed")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to close progression")
	}
	progression.ExitDate = &exitDate
	progression.ExitReason = req.ExitReason
	return progression, nil
}

// Repeaters lists REPEAT-typed records for a stream and year.
func (s *ProgressionService) Repeaters(ctx context.Context, schoolID, classStreamID, academicYearID string) ([]models.RepeaterDetail, error) {
	if classStreamID == "" || academicYearID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "stream and year are required")
	}
	repeaters, err := s.repo.ListRepeaters(ctx, schoolID, classStreamID, academicYearID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list repeaters")
	}
	return repeaters, nil
}
