package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/shuletrack/academic-api/internal/models"
	"github.com/shuletrack/academic-api/internal/repository"
	appErrors "github.com/shuletrack/academic-api/pkg/errors"
)

type studentUpdater interface {
	FindByID(ctx context.Context, schoolID, id string) (*models.Student, error)
	UpdateStanding(ctx context.Context, schoolID, id string, update models.StudentStandingUpdate) error
}

// PromoteRequest moves a student one level up into the target year.
type PromoteRequest struct {
	FromYearID  string  `json:"from_year_id" validate:"required"`
	ToYearID    string  `json:"to_year_id" validate:"required"`
	NewStreamID *string `json:"new_stream_id"`
}

// RepeatRequest keeps a student at the same level for another year.
type RepeatRequest struct {
	CurrentYearID string  `json:"current_year_id" validate:"required"`
	RepeatYearID  string  `json:"repeat_year_id" validate:"required"`
	NewStreamID   *string `json:"new_stream_id"`
	Reason        *string `json:"reason"`
}

// SuspendRequest pauses a student's year without closing the record.
type SuspendRequest struct {
	YearID string `json:"year_id" validate:"required"`
	Reason string `json:"reason" validate:"required"`
}

// ResumeRequest re-admits a suspended student into a later year.
type ResumeRequest struct {
	SuspendedYearID string  `json:"suspended_year_id" validate:"required"`
	ResumeYearID    string  `json:"resume_year_id" validate:"required"`
	NewStreamID     *string `json:"new_stream_id"`
}

// GraduateRequest marks a top-level student as an alumnus.
type GraduateRequest struct {
	GraduationYear int `json:"graduation_year" validate:"required,min=2000,max=2100"`
}

// DropoutRequest marks a student as having left without completing.
type DropoutRequest struct {
	Reason string `json:"reason" validate:"required"`
}

// PromotionService is the engine behind year-to-year student transitions. All
// close-old/open-new pairs run through the progression repository's single
// transaction so a half-applied move can never be observed.
type PromotionService struct {
	progressions progressionRepository
	students     studentUpdater
	streams      streamReader
	years        academicYearRepository
	cache        *CacheService
	validator    *validator.Validate
	logger       *zap.Logger
}

// NewPromotionService constructs PromotionService.
func NewPromotionService(progressions progressionRepository, students studentUpdater, streams streamReader, years academicYearRepository, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *PromotionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PromotionService{progressions: progressions, students: students, streams: streams, years: years, cache: cache, validator: validate, logger: logger}
}

func analyticsCacheKey(schoolID, yearID string) string {
	return fmt.Sprintf("analytics:progression:%s:%s", schoolID, yearID)
}

func (s *PromotionService) invalidateAnalytics(ctx context.Context, schoolID string) {
	if err := s.cache.Invalidate(ctx, fmt.Sprintf("analytics:progression:%s:*", schoolID)); err != nil {
		s.logger.Warn("analytics cache invalidation failed", zap.String("school_id", schoolID), zap.Error(err))
	}
}

// loadOpenRecord fetches the (student, year) record and verifies it is open.
func (s *PromotionService) loadOpenRecord(ctx context.Context, schoolID, studentID, yearID string) (*models.StudentProgression, error) {
	record, err := s.progressions.FindByStudentAndYear(ctx, schoolID, studentID, yearID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "progression record not found for year")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load progression")
	}
	if !record.Open() {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "progression record already closed")
	}
	return record, nil
}

// loadOpenYear fetches the target year and rejects closed ones.
func (s *PromotionService) loadOpenYear(ctx context.Context, schoolID, yearID string) (*models.AcademicYear, error) {
	year, err := s.years.FindByID(ctx, schoolID, yearID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "academic year not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load academic year")
	}
	if year.IsClosed {
		return nil, appErrors.Clone(appErrors.ErrYearClosed, "academic year is closed")
	}
	return year, nil
}

func (s *PromotionService) checkNoRecordForYear(ctx context.Context, studentID, yearID string) error {
	exists, err := s.progressions.ExistsForStudentYear(ctx, studentID, yearID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate progression")
	}
	if exists {
		return appErrors.Clone(appErrors.ErrConflict, "student already has a progression record for year")
	}
	return nil
}

func (s *PromotionService) loadStreamAtLevel(ctx context.Context, schoolID, streamID string, level models.ClassLevel) (*models.ClassStreamDetail, error) {
	stream, err := s.streams.FindByID(ctx, schoolID, streamID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class stream not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class stream")
	}
	if stream.ClassLevel != level {
		return nil, appErrors.Clone(appErrors.ErrValidation, "class stream level does not match target level")
	}
	return stream, nil
}

// Promote closes the source year's record as PROGRESSED, opens a NEW record
// one level up in the target year and moves the student's level pointer.
func (s *PromotionService) Promote(ctx context.Context, schoolID, actorID, studentID string, req PromoteRequest) (*models.StudentProgression, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid promote payload")
	}
	if _, err := s.students.FindByID(ctx, schoolID, studentID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	source, err := s.loadOpenRecord(ctx, schoolID, studentID, req.FromYearID)
	if err != nil {
		return nil, err
	}
	if _, err := s.loadOpenYear(ctx, schoolID, req.ToYearID); err != nil {
		return nil, err
	}
	nextLevel, ok := source.ClassLevel.Next()
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "student is at the top level, graduate instead")
	}
	if err := s.checkNoRecordForYear(ctx, studentID, req.ToYearID); err != nil {
		return nil, err
	}
	newStream := req.NewStreamID
	if newStream != nil {
		if _, err := s.loadStreamAtLevel(ctx, schoolID, *newStream, nextLevel); err != nil {
			return nil, err
		}
	}
	fromYear := req.FromYearID
	successor := &models.StudentProgression{
		StudentID:              studentID,
		AcademicYearID:         req.ToYearID,
		ClassLevel:             nextLevel,
		ClassStreamID:          newStream,
		EnrollmentType:         models.EnrollmentTypeNew,
		PreviousAcademicYearID: &fromYear,
		SchoolID:               schoolID,
		CreatedBy:              actorID,
	}
	err = s.progressions.Transition(ctx, repository.TransitionParams{
		SchoolID:      schoolID,
		StudentID:     studentID,
		CloseRecordID: source.ID,
		ExitReason:    models.ExitReasonProgressed,
		NewRecord:     successor,
		StudentLevel:  nextLevel,
		StudentStream: newStream,
		UpdatePointer: true,
	})
	if err != nil {
		if errors.Is(err, repository.ErrAlreadyClosed) {
			return nil, appErrors.Clone(appErrors.ErrInvalidState, "progression record already closed")
		}
		if repository.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "student already has a progression record for year")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to promote student")
	}
	s.invalidateAnalytics(ctx, schoolID)
	return successor, nil
}

// Repeat closes the current record as INCOMPLETE and opens a REPEAT record at
// the same level in the repeat year. Top-level students cannot repeat.
func (s *PromotionService) Repeat(ctx context.Context, schoolID, actorID, studentID string, req RepeatRequest) (*models.StudentProgression, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid repeat payload")
	}
	if _, err := s.students.FindByID(ctx, schoolID, studentID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	source, err := s.loadOpenRecord(ctx, schoolID, studentID, req.CurrentYearID)
	if err != nil {
		return nil, err
	}
	if source.ClassLevel.IsTop() {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "top level cannot be repeated")
	}
	if _, err := s.loadOpenYear(ctx, schoolID, req.RepeatYearID); err != nil {
		return nil, err
	}
	if err := s.checkNoRecordForYear(ctx, studentID, req.RepeatYearID); err != nil {
		return nil, err
	}
	newStream := req.NewStreamID
	if newStream == nil {
		newStream = source.ClassStreamID
	} else {
		if _, err := s.loadStreamAtLevel(ctx, schoolID, *newStream, source.ClassLevel); err != nil {
			return nil, err
		}
	}
	currentYear := req.CurrentYearID
	successor := &models.StudentProgression{
		StudentID:              studentID,
		AcademicYearID:         req.RepeatYearID,
		ClassLevel:             source.ClassLevel,
		ClassStreamID:          newStream,
		EnrollmentType:         models.EnrollmentTypeRepeat,
		PreviousAcademicYearID: &currentYear,
		ApprovalReason:         req.Reason,
		SchoolID:               schoolID,
		CreatedBy:              actorID,
	}
	err = s.progressions.Transition(ctx, repository.TransitionParams{
		SchoolID:      schoolID,
		StudentID:     studentID,
		CloseRecordID: source.ID,
		ExitReason:    models.ExitReasonIncomplete,
		NewRecord:     successor,
		StudentLevel:  source.ClassLevel,
		StudentStream: newStream,
		UpdatePointer: true,
	})
	if err != nil {
		if errors.Is(err, repository.ErrAlreadyClosed) {
			return nil, appErrors.Clone(appErrors.ErrInvalidState, "progression record already closed")
		}
		if repository.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "student already has a progression record for year")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to register repeat")
	}
	s.invalidateAnalytics(ctx, schoolID)
	return successor, nil
}

// Suspend flags the student's open record as a term suspension. The record
// stays open; the eventual resume opens a fresh record in a later year.
func (s *PromotionService) Suspend(ctx context.Context, schoolID, actorID, studentID string, req SuspendRequest) (*models.StudentProgression, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid suspend payload")
	}
	record, err := s.loadOpenRecord(ctx, schoolID, studentID, req.YearID)
	if err != nil {
		return nil, err
	}
	if record.EnrollmentType == models.EnrollmentTypeSkipTermResume {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "progression record already suspended")
	}
	if err := s.progressions.MarkSuspended(ctx, schoolID, record.ID, req.Reason); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to suspend progression")
	}
	record.EnrollmentType = models.EnrollmentTypeSkipTermResume
	record.ApprovalReason = &req.Reason
	s.invalidateAnalytics(ctx, schoolID)
	return record, nil
}

// Resume opens a new record in the resume year at the suspended record's
// level. The suspended record is left untouched; it documents the gap.
func (s *PromotionService) Resume(ctx context.Context, schoolID, actorID, studentID string, req ResumeRequest) (*models.StudentProgression, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid resume payload")
	}
	suspended, err := s.progressions.FindByStudentAndYear(ctx, schoolID, studentID, req.SuspendedYearID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "progression record not found for year")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load progression")
	}
	if suspended.EnrollmentType != models.EnrollmentTypeSkipTermResume {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "progression record is not suspended")
	}
	if _, err := s.loadOpenYear(ctx, schoolID, req.ResumeYearID); err != nil {
		return nil, err
	}
	if err := s.checkNoRecordForYear(ctx, studentID, req.ResumeYearID); err != nil {
		return nil, err
	}
	newStream := req.NewStreamID
	if newStream == nil {
		newStream = suspended.ClassStreamID
	} else {
		if _, err := s.loadStreamAtLevel(ctx, schoolID, *newStream, suspended.ClassLevel); err != nil {
			return nil, err
		}
	}
	suspendedYear := req.SuspendedYearID
	record := &models.StudentProgression{
		StudentID:              studentID,
		AcademicYearID:         req.ResumeYearID,
		ClassLevel:             suspended.ClassLevel,
		ClassStreamID:          newStream,
		EnrollmentType:         models.EnrollmentTypeSkipTermResume,
		PreviousAcademicYearID: &suspendedYear,
		SchoolID:               schoolID,
		CreatedBy:              actorID,
	}
	if err := s.progressions.Create(ctx, record); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "student already has a progression record for year")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resume student")
	}
	level := suspended.ClassLevel
	if err := s.students.UpdateStanding(ctx, schoolID, studentID, models.StudentStandingUpdate{
		ClassLevel:    &level,
		ClassStreamID: newStream,
	}); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update student standing")
	}
	s.invalidateAnalytics(ctx, schoolID)
	return record, nil
}

// Graduate marks a top-level student as an alumnus. The final-year ledger
// record is closed separately with a GRADUATED exit.
func (s *PromotionService) Graduate(ctx context.Context, schoolID, actorID, studentID string, req GraduateRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid graduate payload")
	}
	student, err := s.students.FindByID(ctx, schoolID, studentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if student.IsAlumni {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "student already graduated")
	}
	if student.ClassLevel == nil || !student.ClassLevel.IsTop() {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "only top-level students can graduate")
	}
	status := models.StudentStatusGraduated
	alumni := true
	if err := s.students.UpdateStanding(ctx, schoolID, studentID, models.StudentStandingUpdate{
		Status:         &status,
		IsAlumni:       &alumni,
		GraduationYear: &req.GraduationYear,
	}); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to graduate student")
	}
	student.Status = status
	student.IsAlumni = true
	student.GraduationYear = &req.GraduationYear
	return student, nil
}

// Dropout marks a student as having left without completing.
func (s *PromotionService) Dropout(ctx context.Context, schoolID, actorID, studentID string, req DropoutRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid dropout payload")
	}
	student, err := s.students.FindByID(ctx, schoolID, studentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if student.IsDropout {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "student already marked as dropout")
	}
	status := models.StudentStatusInactive
	dropout := true
	if err := s.students.UpdateStanding(ctx, schoolID, studentID, models.StudentStandingUpdate{
		Status:        &status,
		IsDropout:     &dropout,
		DropoutReason: &req.Reason,
	}); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark dropout")
	}
	student.Status = status
	student.IsDropout = true
	student.DropoutReason = &req.Reason
	return student, nil
}

// Analytics folds the year's ledger into counts by type, level and exit
// reason. Results are cached until the next ledger write.
func (s *PromotionService) Analytics(ctx context.Context, schoolID, academicYearID string) (*models.ProgressionStats, error) {
	if academicYearID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "year is required")
	}
	key := analyticsCacheKey(schoolID, academicYearID)
	var cached models.ProgressionStats
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return &cached, nil
	}
	if _, err := s.years.FindByID(ctx, schoolID, academicYearID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "academic year not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load academic year")
	}
	records, err := s.progressions.ListByYear(ctx, schoolID, academicYearID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load progressions")
	}
	stats := &models.ProgressionStats{
		AcademicYearID: academicYearID,
		TotalStudents:  len(records),
		ByType:         make(map[models.EnrollmentType]int),
		ByLevel:        make(map[models.ClassLevel]int),
		ByExitReason:   make(map[models.ExitReason]int),
	}
	for _, record := range records {
		stats.ByType[record.EnrollmentType]++
		stats.ByLevel[record.ClassLevel]++
		stats.ByExitReason[record.ExitReason]++
	}
	if stats.TotalStudents > 0 {
		total := float64(stats.TotalStudents)
		stats.Percentages.Repeating = float64(stats.ByType[models.EnrollmentTypeRepeat]) / total * 100
		stats.Percentages.TransferredIn = float64(stats.ByType[models.EnrollmentTypeTransferIn]) / total * 100
	}
	if err := s.cache.Set(ctx, key, stats, 0); err != nil {
		s.logger.Warn("analytics cache write failed", zap.String("key", key), zap.Error(err))
	}
	return stats, nil
}
