package service

import (
	"context"
	"database/sql"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/shuletrack/academic-api/internal/models"
	appErrors "github.com/shuletrack/academic-api/pkg/errors"
)

type classStreamRepository interface {
	List(ctx context.Context, schoolID string, filter models.ClassStreamFilter) ([]models.ClassStreamDetail, error)
	FindByID(ctx context.Context, schoolID, id string) (*models.ClassStreamDetail, error)
	ExistsByKey(ctx context.Context, schoolID, academicYearID string, level models.ClassLevel, streamName string) (bool, error)
	Create(ctx context.Context, stream *models.ClassStream) error
	Update(ctx context.Context, stream *models.ClassStream) error
}

type yearReader interface {
	FindByID(ctx context.Context, schoolID, id string) (*models.AcademicYear, error)
}

// CreateStreamRequest describes class stream creation.
type CreateStreamRequest struct {
	AcademicYearID string             `json:"academic_year_id" validate:"required"`
	ClassLevel     models.ClassLevel  `json:"class_level" validate:"required"`
	StreamName     string             `json:"stream_name" validate:"required"`
	Capacity       int                `json:"capacity" validate:"min=0"`
	ClassTeacherID *string            `json:"class_teacher_id"`
	Status         models.StreamStatus `json:"status"`
}

// UpdateStreamRequest describes mutable stream fields.
type UpdateStreamRequest struct {
	Capacity       int                 `json:"capacity" validate:"min=0"`
	ClassTeacherID *string             `json:"class_teacher_id"`
	Status         models.StreamStatus `json:"status"`
}

// ClassStreamService manages the class stream registry.
type ClassStreamService struct {
	repo      classStreamRepository
	years     yearReader
	validator *validator.Validate
	logger    *zap.Logger
}

// NewClassStreamService constructs ClassStreamService.
func NewClassStreamService(repo classStreamRepository, years yearReader, validate *validator.Validate, logger *zap.Logger) *ClassStreamService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClassStreamService{repo: repo, years: years, validator: validate, logger: logger}
}

// List returns streams with derived enrollment counts.
func (s *ClassStreamService) List(ctx context.Context, schoolID string, filter models.ClassStreamFilter) ([]models.ClassStreamDetail, error) {
	if filter.ClassLevel != "" && !filter.ClassLevel.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown class level")
	}
	streams, err := s.repo.List(ctx, schoolID, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list class streams")
	}
	return streams, nil
}

// Get returns one stream with its derived enrollment count.
func (s *ClassStreamService) Get(ctx context.Context, schoolID, id string) (*models.ClassStreamDetail, error) {
	stream, err := s.repo.FindByID(ctx, schoolID, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class stream not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class stream")
	}
	return stream, nil
}

// Create registers a stream. The (year, level, stream name) key is unique per school.
func (s *ClassStreamService) Create(ctx context.Context, schoolID, actorID string, req CreateStreamRequest) (*models.ClassStream, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid class stream payload")
	}
	if !req.ClassLevel.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown class level")
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
	exists, err := s.repo.ExistsByKey(ctx, schoolID, req.AcademicYearID, req.ClassLevel, req.StreamName)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate class stream")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "class stream already exists for year and level")
	}
	status := req.Status
	if status == "" {
		status = models.StreamStatusActive
	}
	stream := &models.ClassStream{
		SchoolID:       schoolID,
		AcademicYearID: req.AcademicYearID,
		ClassLevel:     req.ClassLevel,
		StreamName:     req.StreamName,
		Capacity:       req.Capacity,
		ClassTeacherID: req.ClassTeacherID,
		Status:         status,
		CreatedBy:      actorID,
	}
	if err := s.repo.Create(ctx, stream); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create class stream")
	}
	return stream, nil
}

// Update changes capacity, class teacher and status. Level, stream name and
// year are part of the identity and never change.
func (s *ClassStreamService) Update(ctx context.Context, schoolID, id string, req UpdateStreamRequest) (*models.ClassStreamDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid class stream payload")
	}
	detail, err := s.repo.FindByID(ctx, schoolID, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class stream not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class stream")
	}
	if req.Status != "" && req.Status != models.StreamStatusActive && req.Status != models.StreamStatusInactive {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown stream status")
	}
	detail.Capacity = req.Capacity
	detail.ClassTeacherID = req.ClassTeacherID
	if req.Status != "" {
		detail.Status = req.Status
	}
	if err := s.repo.Update(ctx, &detail.ClassStream); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update class stream")
	}
	detail.OverCapacity = detail.Capacity > 0 && detail.EnrollmentCount > detail.Capacity
	return detail, nil
}
