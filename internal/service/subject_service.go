package service

import (
	"context"
	"database/sql"

	"go.uber.org/zap"

	"github.com/shuletrack/academic-api/internal/models"
	appErrors "github.com/shuletrack/academic-api/pkg/errors"
)

type subjectDirectory interface {
	FindByID(ctx context.Context, schoolID, id string) (*models.Subject, error)
	List(ctx context.Context, schoolID string, filter models.SubjectFilter) ([]models.Subject, error)
}

// SubjectService is the read surface of the subject directory.
type SubjectService struct {
	repo   subjectDirectory
	logger *zap.Logger
}

// NewSubjectService constructs SubjectService.
func NewSubjectService(repo subjectDirectory, logger *zap.Logger) *SubjectService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubjectService{repo: repo, logger: logger}
}

// Get returns one subject scoped to the school.
func (s *SubjectService) Get(ctx context.Context, schoolID, id string) (*models.Subject, error) {
	subject, err := s.repo.FindByID(ctx, schoolID, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}
	return subject, nil
}

// List returns subjects matching the filter.
func (s *SubjectService) List(ctx context.Context, schoolID string, filter models.SubjectFilter) ([]models.Subject, error) {
	subjects, err := s.repo.List(ctx, schoolID, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list subjects")
	}
	return subjects, nil
}

// ListOptional returns only optional subjects.
func (s *SubjectService) ListOptional(ctx context.Context, schoolID string) ([]models.Subject, error) {
	optional := true
	subjects, err := s.repo.List(ctx, schoolID, models.SubjectFilter{IsOptional: &optional})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list optional subjects")
	}
	return subjects, nil
}
