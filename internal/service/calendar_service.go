package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/shuletrack/academic-api/internal/models"
	appErrors "github.com/shuletrack/academic-api/pkg/errors"
)

type academicYearRepository interface {
	List(ctx context.Context, schoolID string, filter models.AcademicYearFilter) ([]models.AcademicYear, error)
	FindByID(ctx context.Context, schoolID, id string) (*models.AcademicYear, error)
	ExistsByYear(ctx context.Context, schoolID string, year int) (bool, error)
	FindActive(ctx context.Context, schoolID string) (*models.AcademicYear, error)
	Create(ctx context.Context, year *models.AcademicYear) error
	Update(ctx context.Context, year *models.AcademicYear) error
	Activate(ctx context.Context, schoolID, id string) error
	Lock(ctx context.Context, schoolID, id string) error
}

type termRepository interface {
	ListByYear(ctx context.Context, schoolID, academicYearID string) ([]models.Term, error)
	FindByID(ctx context.Context, schoolID, id string) (*models.Term, error)
	FindActive(ctx context.Context, schoolID, academicYearID string) (*models.Term, error)
	ExistsByYearAndNumber(ctx context.Context, academicYearID string, termNumber int) (bool, error)
	Create(ctx context.Context, term *models.Term) error
	Update(ctx context.Context, term *models.Term) error
	Activate(ctx context.Context, schoolID, academicYearID, id string) error
}

// CreateYearRequest describes academic year creation.
type CreateYearRequest struct {
	Year        int       `json:"year" validate:"required,min=2000,max=2100"`
	StartDate   time.Time `json:"start_date" validate:"required"`
	EndDate     time.Time `json:"end_date" validate:"required"`
	Description *string   `json:"description"`
}

// UpdateYearRequest describes mutable year fields.
type UpdateYearRequest struct {
	StartDate   time.Time `json:"start_date" validate:"required"`
	EndDate     time.Time `json:"end_date" validate:"required"`
	Description *string   `json:"description"`
}

// CreateTermRequest describes term creation within a year.
type CreateTermRequest struct {
	AcademicYearID string     `json:"academic_year_id" validate:"required"`
	TermNumber     int        `json:"term_number" validate:"required,min=1,max=3"`
	Name           string     `json:"name" validate:"required"`
	StartDate      time.Time  `json:"start_date" validate:"required"`
	EndDate        time.Time  `json:"end_date" validate:"required"`
	ExamStartDate  *time.Time `json:"exam_start_date"`
	ExamEndDate    *time.Time `json:"exam_end_date"`
}

// UpdateTermRequest describes mutable term fields.
type UpdateTermRequest struct {
	Name          string            `json:"name" validate:"required"`
	StartDate     time.Time         `json:"start_date" validate:"required"`
	EndDate       time.Time         `json:"end_date" validate:"required"`
	ExamStartDate *time.Time        `json:"exam_start_date"`
	ExamEndDate   *time.Time        `json:"exam_end_date"`
	Status        models.TermStatus `json:"status"`
}

// CalendarService is the authority over academic years and terms.
type CalendarService struct {
	years     academicYearRepository
	terms     termRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCalendarService constructs CalendarService.
func NewCalendarService(years academicYearRepository, terms termRepository, validate *validator.Validate, logger *zap.Logger) *CalendarService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CalendarService{years: years, terms: terms, validator: validate, logger: logger}
}

// ListYears returns the school's academic years.
func (s *CalendarService) ListYears(ctx context.Context, schoolID string, filter models.AcademicYearFilter) ([]models.AcademicYear, error) {
	years, err := s.years.List(ctx, schoolID, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list academic years")
	}
	return years, nil
}

// GetYear returns a year with its terms attached.
func (s *CalendarService) GetYear(ctx context.Context, schoolID, id string) (*models.AcademicYearDetail, error) {
	year, err := s.years.FindByID(ctx, schoolID, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "academic year not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load academic year")
	}
	terms, err := s.terms.ListByYear(ctx, schoolID, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load terms")
	}
	return &models.AcademicYearDetail{AcademicYear: *year, Terms: terms}, nil
}

// ActiveYear returns the school's single active year.
func (s *CalendarService) ActiveYear(ctx context.Context, schoolID string) (*models.AcademicYear, error) {
	year, err := s.years.FindActive(ctx, schoolID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no active academic year")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load active year")
	}
	return year, nil
}

// CreateYear registers a new academic year. Year numbers are unique per school.
func (s *CalendarService) CreateYear(ctx context.Context, schoolID, actorID string, req CreateYearRequest) (*models.AcademicYear, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid academic year payload")
	}
	if !req.EndDate.After(req.StartDate) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end date must be after start date")
	}
	exists, err := s.years.ExistsByYear(ctx, schoolID, req.Year)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate academic year")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "academic year already registered")
	}
	year := &models.AcademicYear{
		Year:        req.Year,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		Description: req.Description,
		SchoolID:    schoolID,
		CreatedBy:   actorID,
	}
	if err := s.years.Create(ctx, year); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create academic year")
	}
	return year, nil
}

// UpdateYear changes dates and description. Closed years reject writes.
func (s *CalendarService) UpdateYear(ctx context.Context, schoolID, id string, req UpdateYearRequest) (*models.AcademicYear, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid academic year payload")
	}
	if !req.EndDate.After(req.StartDate) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end date must be after start date")
	}
	year, err := s.years.FindByID(ctx, schoolID, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "academic year not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load academic year")
	}
	if year.IsClosed {
		return nil, appErrors.Clone(appErrors.ErrYearClosed, "academic year is closed")
	}
	year.StartDate = req.StartDate
	year.EndDate = req.EndDate
	year.Description = req.Description
	if err := s.years.Update(ctx, year); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update academic year")
	}
	return year, nil
}

// ActivateYear makes the year the school's single active one.
func (s *CalendarService) ActivateYear(ctx context.Context, schoolID, id string) (*models.AcademicYear, error) {
	year, err := s.years.FindByID(ctx, schoolID, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "academic year not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load academic year")
	}
	if year.IsClosed {
		return nil, appErrors.Clone(appErrors.ErrYearClosed, "cannot activate a closed year")
	}
	if err := s.years.Activate(ctx, schoolID, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "academic year not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to activate academic year")
	}
	year.IsActive = true
	return year, nil
}

// LockYear closes the year permanently. Locking an already closed year is a no-op.
func (s *CalendarService) LockYear(ctx context.Context, schoolID, id string) (*models.AcademicYear, error) {
	year, err := s.years.FindByID(ctx, schoolID, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "academic year not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load academic year")
	}
	if year.IsClosed {
		return year, nil
	}
	if err := s.years.Lock(ctx, schoolID, id); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to lock academic year")
	}
	year.IsClosed = true
	return year, nil
}

// ListTerms returns a year's terms ordered by term number.
func (s *CalendarService) ListTerms(ctx context.Context, schoolID, academicYearID string) ([]models.Term, error) {
	if _, err := s.years.FindByID(ctx, schoolID, academicYearID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "academic year not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load academic year")
	}
	terms, err := s.terms.ListByYear(ctx, schoolID, academicYearID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list terms")
	}
	return terms, nil
}

// ActiveTerm returns the active term within a year.
func (s *CalendarService) ActiveTerm(ctx context.Context, schoolID, academicYearID string) (*models.Term, error) {
	term, err := s.terms.FindActive(ctx, schoolID, academicYearID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no active term for year")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load active term")
	}
	return term, nil
}

// CreateTerm adds a term to a year. Term numbers are unique within the year.
func (s *CalendarService) CreateTerm(ctx context.Context, schoolID, actorID string, req CreateTermRequest) (*models.Term, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid term payload")
	}
	if !req.EndDate.After(req.StartDate) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end date must be after start date")
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
	exists, err := s.terms.ExistsByYearAndNumber(ctx, req.AcademicYearID, req.TermNumber)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate term")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "term number already exists for year")
	}
	term := &models.Term{
		AcademicYearID: req.AcademicYearID,
		TermNumber:     req.TermNumber,
		Name:           req.Name,
		StartDate:      req.StartDate,
		EndDate:        req.EndDate,
		ExamStartDate:  req.ExamStartDate,
		ExamEndDate:    req.ExamEndDate,
		Status:         models.TermStatusPlanned,
		SchoolID:       schoolID,
		CreatedBy:      actorID,
	}
	if err := s.terms.Create(ctx, term); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create term")
	}
	return term, nil
}

// UpdateTerm changes a term's dates, exam window and lifecycle status.
func (s *CalendarService) UpdateTerm(ctx context.Context, schoolID, id string, req UpdateTermRequest) (*models.Term, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid term payload")
	}
	if !req.EndDate.After(req.StartDate) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end date must be after start date")
	}
	term, err := s.terms.FindByID(ctx, schoolID, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "term not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load term")
	}
	if term.Status == models.TermStatusLocked {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "term is locked")
	}
	year, err := s.years.FindByID(ctx, schoolID, term.AcademicYearID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load academic year")
	}
	if year.IsClosed {
		return nil, appErrors.Clone(appErrors.ErrYearClosed, "academic year is closed")
	}
	term.Name = req.Name
	term.StartDate = req.StartDate
	term.EndDate = req.EndDate
	term.ExamStartDate = req.ExamStartDate
	term.ExamEndDate = req.ExamEndDate
	if req.Status != "" {
		switch req.Status {
		case models.TermStatusPlanned, models.TermStatusInProgress, models.TermStatusExam, models.TermStatusCompleted, models.TermStatusLocked:
			term.Status = req.Status
		default:
			return nil, appErrors.Clone(appErrors.ErrValidation, "unknown term status")
		}
	}
	if err := s.terms.Update(ctx, term); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update term")
	}
	return term, nil
}

// ActivateTerm makes the term the single active one within its year.
func (s *CalendarService) ActivateTerm(ctx context.Context, schoolID, id string) (*models.Term, error) {
	term, err := s.terms.FindByID(ctx, schoolID, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "term not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load term")
	}
	year, err := s.years.FindByID(ctx, schoolID, term.AcademicYearID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load academic year")
	}
	if year.IsClosed {
		return nil, appErrors.Clone(appErrors.ErrYearClosed, "academic year is closed")
	}
	if err := s.terms.Activate(ctx, schoolID, term.AcademicYearID, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "term not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to activate term")
	}
	term.IsActive = true
	if term.Status == models.TermStatusPlanned {
		term.Status = models.TermStatusInProgress
		if err := s.terms.Update(ctx, term); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update term status")
		}
	}
	return term, nil
}
