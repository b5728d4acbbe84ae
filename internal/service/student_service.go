package service

import (
	"context"
	"database/sql"

	"go.uber.org/zap"

	"github.com/shuletrack/academic-api/internal/models"
	appErrors "github.com/shuletrack/academic-api/pkg/errors"
)

type studentDirectory interface {
	FindByID(ctx context.Context, schoolID, id string) (*models.Student, error)
	List(ctx context.Context, schoolID string, filter models.StudentFilter) ([]models.Student, int, error)
	ListAlumni(ctx context.Context, schoolID string) ([]models.Student, error)
}

// StudentService is the read surface of the student directory. Standing
// changes go through the promotion engine, never through this service.
type StudentService struct {
	repo   studentDirectory
	logger *zap.Logger
}

// NewStudentService constructs StudentService.
func NewStudentService(repo studentDirectory, logger *zap.Logger) *StudentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{repo: repo, logger: logger}
}

// Get returns one student scoped to the school.
func (s *StudentService) Get(ctx context.Context, schoolID, id string) (*models.Student, error) {
	student, err := s.repo.FindByID(ctx, schoolID, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return student, nil
}

// List returns students matching the filter with pagination metadata.
func (s *StudentService) List(ctx context.Context, schoolID string, filter models.StudentFilter) ([]models.Student, *models.Pagination, error) {
	if filter.ClassLevel != "" && !filter.ClassLevel.Valid() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "unknown class level")
	}
	students, total, err := s.repo.List(ctx, schoolID, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return students, pagination, nil
}

// Alumni returns graduated students, newest graduation first.
func (s *StudentService) Alumni(ctx context.Context, schoolID string) ([]models.Student, error) {
	alumni, err := s.repo.ListAlumni(ctx, schoolID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list alumni")
	}
	return alumni, nil
}
