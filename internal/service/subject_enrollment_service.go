package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/shuletrack/academic-api/internal/models"
	"github.com/shuletrack/academic-api/internal/repository"
	appErrors "github.com/shuletrack/academic-api/pkg/errors"
	"github.com/shuletrack/academic-api/pkg/export"
)

type subjectEnrollmentRepository interface {
	FindByID(ctx context.Context, schoolID, id string) (*models.StudentSubjectEnrollment, error)
	ExistsByKey(ctx context.Context, studentID, subjectID, academicYearID, classStreamID string) (bool, error)
	Create(ctx context.Context, enrollment *models.StudentSubjectEnrollment) error
	Drop(ctx context.Context, schoolID, id, reason string, droppedAt time.Time) error
	Substitute(ctx context.Context, schoolID, id, replacementSubjectID, reason string, droppedAt time.Time) error
	ListByStudent(ctx context.Context, schoolID, studentID, academicYearID string) ([]models.SubjectEnrollmentDetail, error)
	ListByStreamAndYear(ctx context.Context, schoolID, classStreamID, academicYearID string) ([]models.SubjectEnrollmentDetail, error)
	CountByStatus(ctx context.Context, schoolID, academicYearID, classStreamID string) (map[models.SubjectEnrollmentStatus]int, int, error)
}

type subjectReader interface {
	FindByID(ctx context.Context, schoolID, id string) (*models.Subject, error)
}

// EnrollSubjectRequest describes subject enrollment creation.
type EnrollSubjectRequest struct {
	StudentID      string  `json:"student_id" validate:"required"`
	SubjectID      string  `json:"subject_id" validate:"required"`
	ClassStreamID  string  `json:"class_stream_id" validate:"required"`
	AcademicYearID string  `json:"academic_year_id" validate:"required"`
	IsOptional     bool    `json:"is_optional"`
	ApprovalReason *string `json:"approval_reason"`
}

// DropSubjectRequest describes an ACTIVE to DROPPED transition.
type DropSubjectRequest struct {
	Reason string `json:"reason" validate:"required"`
}

// SubstituteSubjectRequest describes an ACTIVE to SUBSTITUTED transition.
type SubstituteSubjectRequest struct {
	ReplacementSubjectID string `json:"replacement_subject_id" validate:"required"`
	Reason               string `json:"reason" validate:"required"`
}

// SubjectEnrollmentService manages the per-subject enrollment ledger and the
// roster and report reads derived from it.
type SubjectEnrollmentService struct {
	repo      subjectEnrollmentRepository
	students  studentReader
	subjects  subjectReader
	streams   streamReader
	years     academicYearRepository
	cache     *CacheService
	exporter  *export.CSVExporter
	rosterTTL time.Duration
	reportTTL time.Duration
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSubjectEnrollmentService constructs SubjectEnrollmentService.
func NewSubjectEnrollmentService(repo subjectEnrollmentRepository, students studentReader, subjects subjectReader, streams streamReader, years academicYearRepository, cache *CacheService, rosterTTL, reportTTL time.Duration, validate *validator.Validate, logger *zap.Logger) *SubjectEnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubjectEnrollmentService{
		repo:      repo,
		students:  students,
		subjects:  subjects,
		streams:   streams,
		years:     years,
		cache:     cache,
		exporter:  export.NewCSVExporter(),
		rosterTTL: rosterTTL,
		reportTTL: reportTTL,
		validator: validate,
		logger:    logger,
	}
}

func rosterCacheKey(schoolID, streamID, yearID string) string {
	return fmt.Sprintf("roster:%s:%s:%s", schoolID, streamID, yearID)
}

func reportCacheKey(schoolID, yearID, streamID string) string {
	return fmt.Sprintf("report:enrollment:%s:%s:%s", schoolID, yearID, streamID)
}

func (s *SubjectEnrollmentService) invalidateReads(ctx context.Context, schoolID string) {
	for _, pattern := range []string{
		fmt.Sprintf("roster:%s:*", schoolID),
		fmt.Sprintf("report:enrollment:%s:*", schoolID),
	} {
		if err := s.cache.Invalidate(ctx, pattern); err != nil {
			s.logger.Warn("enrollment cache invalidation failed", zap.String("pattern", pattern), zap.Error(err))
		}
	}
}

// Enroll registers a student on a subject for a year and stream. The exact
// (student, subject, year, stream) tuple is unique.
func (s *SubjectEnrollmentService) Enroll(ctx context.Context, schoolID, actorID string, req EnrollSubjectRequest) (*models.StudentSubjectEnrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}
	if _, err := s.students.FindByID(ctx, schoolID, req.StudentID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if _, err := s.subjects.FindByID(ctx, schoolID, req.SubjectID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}
	if _, err := s.streams.FindByID(ctx, schoolID, req.ClassStreamID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class stream not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class stream")
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
	exists, err := s.repo.ExistsByKey(ctx, req.StudentID, req.SubjectID, req.AcademicYearID, req.ClassStreamID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate enrollment")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "student already enrolled on subject for year and stream")
	}
	enrollment := &models.StudentSubjectEnrollment{
		StudentID:      req.StudentID,
		SubjectID:      req.SubjectID,
		ClassStreamID:  req.ClassStreamID,
		AcademicYearID: req.AcademicYearID,
		IsOptional:     req.IsOptional,
		ApprovalReason: req.ApprovalReason,
		SchoolID:       schoolID,
		CreatedBy:      actorID,
	}
	if err := s.repo.Create(ctx, enrollment); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "student already enrolled on subject for year and stream")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create enrollment")
	}
	s.invalidateReads(ctx, schoolID)
	return enrollment, nil
}

// Drop transitions an ACTIVE enrollment to DROPPED. Terminal statuses reject
// further transitions.
func (s *SubjectEnrollmentService) Drop(ctx context.Context, schoolID, id string, req DropSubjectRequest) (*models.StudentSubjectEnrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid drop payload")
	}
	enrollment, err := s.repo.FindByID(ctx, schoolID, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	droppedAt := time.Now().UTC()
	if err := s.repo.Drop(ctx, schoolID, id, req.Reason, droppedAt); err != nil {
		if errors.Is(err, repository.ErrNotActive) {
			return nil, appErrors.Clone(appErrors.ErrInvalidState, "enrollment is not active")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to drop enrollment")
	}
	enrollment.EnrollmentStatus = models.SubjectEnrollmentDropped
	enrollment.DroppedDate = &droppedAt
	enrollment.ApprovalReason = &req.Reason
	s.invalidateReads(ctx, schoolID)
	return enrollment, nil
}

// Substitute transitions an ACTIVE enrollment to SUBSTITUTED, recording the
// replacement subject. The replacement must exist in the same school.
func (s *SubjectEnrollmentService) Substitute(ctx context.Context, schoolID, id string, req SubstituteSubjectRequest) (*models.StudentSubjectEnrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid substitute payload")
	}
	enrollment, err := s.repo.FindByID(ctx, schoolID, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if req.ReplacementSubjectID == enrollment.SubjectID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "replacement subject matches the current subject")
	}
	if _, err := s.subjects.FindByID(ctx, schoolID, req.ReplacementSubjectID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "replacement subject not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load replacement subject")
	}
	droppedAt := time.Now().UTC()
	if err := s.repo.Substitute(ctx, schoolID, id, req.ReplacementSubjectID, req.Reason, droppedAt); err != nil {
		if errors.Is(err, repository.ErrNotActive) {
			return nil, appErrors.Clone(appErrors.ErrInvalidState, "enrollment is not active")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to substitute enrollment")
	}
	enrollment.EnrollmentStatus = models.SubjectEnrollmentSubstituted
	enrollment.DroppedDate = &droppedAt
	enrollment.ReplacementSubjectID = &req.ReplacementSubjectID
	enrollment.ApprovalReason = &req.Reason
	s.invalidateReads(ctx, schoolID)
	return enrollment, nil
}

// ListByStudent returns a student's subject enrollments, optionally filtered
// by year.
func (s *SubjectEnrollmentService) ListByStudent(ctx context.Context, schoolID, studentID, academicYearID string) ([]models.SubjectEnrollmentDetail, error) {
	if _, err := s.students.FindByID(ctx, schoolID, studentID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	enrollments, err := s.repo.ListByStudent(ctx, schoolID, studentID, academicYearID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	return enrollments, nil
}

// Roster returns the stream's subject-by-student matrix for a year.
func (s *SubjectEnrollmentService) Roster(ctx context.Context, schoolID, classStreamID, academicYearID string) ([]models.RosterSubject, error) {
	if classStreamID == "" || academicYearID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "stream and year are required")
	}
	key := rosterCacheKey(schoolID, classStreamID, academicYearID)
	var cached []models.RosterSubject
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return cached, nil
	}
	if _, err := s.streams.FindByID(ctx, schoolID, classStreamID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class stream not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class stream")
	}
	enrollments, err := s.repo.ListByStreamAndYear(ctx, schoolID, classStreamID, academicYearID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster")
	}
	roster := groupRoster(enrollments)
	if err := s.cache.Set(ctx, key, roster, s.rosterTTL); err != nil {
		s.logger.Warn("roster cache write failed", zap.String("key", key), zap.Error(err))
	}
	return roster, nil
}

// RosterCSV renders the roster matrix as CSV for download.
func (s *SubjectEnrollmentService) RosterCSV(ctx context.Context, schoolID, classStreamID, academicYearID string) ([]byte, error) {
	roster, err := s.Roster(ctx, schoolID, classStreamID, academicYearID)
	if err != nil {
		return nil, err
	}
	dataset := export.Dataset{
		Headers: []string{"subject_code", "subject_name", "admission_number", "student_name", "status", "optional"},
	}
	for _, subject := range roster {
		for _, student := range subject.Students {
			optional := "no"
			if student.IsOptional {
				optional = "yes"
			}
			dataset.Rows = append(dataset.Rows, map[string]string{
				"subject_code":     subject.SubjectCode,
				"subject_name":     subject.SubjectName,
				"admission_number": student.AdmissionNumber,
				"student_name":     student.StudentName,
				"status":           string(student.EnrollmentStatus),
				"optional":         optional,
			})
		}
	}
	payload, err := s.exporter.Render(dataset)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render roster csv")
	}
	return payload, nil
}

// Report aggregates enrollment counts by status for a year, optionally scoped
// to one stream.
func (s *SubjectEnrollmentService) Report(ctx context.Context, schoolID, academicYearID, classStreamID string) (*models.EnrollmentReport, error) {
	if academicYearID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "year is required")
	}
	key := reportCacheKey(schoolID, academicYearID, classStreamID)
	var cached models.EnrollmentReport
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return &cached, nil
	}
	if _, err := s.years.FindByID(ctx, schoolID, academicYearID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "academic year not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load academic year")
	}
	counts, optional, err := s.repo.CountByStatus(ctx, schoolID, academicYearID, classStreamID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build report")
	}
	report := &models.EnrollmentReport{
		AcademicYearID: academicYearID,
		ClassStreamID:  classStreamID,
		Active:         counts[models.SubjectEnrollmentActive],
		Dropped:        counts[models.SubjectEnrollmentDropped],
		Substituted:    counts[models.SubjectEnrollmentSubstituted],
		OptionalTaken:  optional,
		ByStatus:       counts,
	}
	report.TotalEnrollments = report.Active + report.Dropped + report.Substituted
	if err := s.cache.Set(ctx, key, report, s.reportTTL); err != nil {
		s.logger.Warn("report cache write failed", zap.String("key", key), zap.Error(err))
	}
	return report, nil
}

// groupRoster folds the flat enrollment rows into subject groups, preserving
// the repository's subject/student ordering.
func groupRoster(enrollments []models.SubjectEnrollmentDetail) []models.RosterSubject {
	roster := make([]models.RosterSubject, 0)
	index := make(map[string]int)
	for _, e := range enrollments {
		i, ok := index[e.SubjectID]
		if !ok {
			roster = append(roster, models.RosterSubject{
				SubjectID:   e.SubjectID,
				SubjectName: e.SubjectName,
				SubjectCode: e.SubjectCode,
			})
			i = len(roster) - 1
			index[e.SubjectID] = i
		}
		roster[i].Students = append(roster[i].Students, models.RosterStudent{
			StudentID:        e.StudentID,
			StudentName:      e.StudentName,
			AdmissionNumber:  e.AdmissionNumber,
			IsOptional:       e.IsOptional,
			EnrollmentStatus: e.EnrollmentStatus,
		})
	}
	return roster
}
