package service

import (
	"context"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shuletrack/academic-api/internal/models"
	appErrors "github.com/shuletrack/academic-api/pkg/errors"
)

func promotionFixture() (*fakeProgressionRepo, *fakeStudentRepo, *fakeStreamReader, *fakeYearRepo, *PromotionService) {
	level2 := models.LevelForm2
	stream1 := "stream-f2"
	progressions := &fakeProgressionRepo{records: map[string]*models.StudentProgression{
		"prog-2025": {
			ID:             "prog-2025",
			StudentID:      "stu-1",
			AcademicYearID: "year-2025",
			ClassLevel:     models.LevelForm2,
			ClassStreamID:  &stream1,
			EnrollmentType: models.EnrollmentTypeNew,
			EntryDate:      time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC),
			ExitReason:     models.ExitReasonNone,
			SchoolID:       "school-1",
		},
	}}
	students := &fakeStudentRepo{students: map[string]*models.Student{
		"stu-1": {ID: "stu-1", SchoolID: "school-1", ClassLevel: &level2, ClassStreamID: &stream1, Status: models.StudentStatusActive},
	}}
	streams := &fakeStreamReader{streams: map[string]*models.ClassStreamDetail{
		"stream-f2": {ClassStream: models.ClassStream{ID: "stream-f2", SchoolID: "school-1", AcademicYearID: "year-2025", ClassLevel: models.LevelForm2, StreamName: "North"}},
		"stream-f3": {ClassStream: models.ClassStream{ID: "stream-f3", SchoolID: "school-1", AcademicYearID: "year-2026", ClassLevel: models.LevelForm3, StreamName: "North"}},
	}}
	years := &fakeYearRepo{years: map[string]*models.AcademicYear{
		"year-2025": {ID: "year-2025", Year: 2025, SchoolID: "school-1", IsActive: true},
		"year-2026": {ID: "year-2026", Year: 2026, SchoolID: "school-1"},
	}}
	svc := NewPromotionService(progressions, students, streams, years, disabledCache(), validator.New(), zap.NewNop())
	return progressions, students, streams, years, svc
}

func assertAppError(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, code, appErr.Code)
}

func TestPromotionServicePromote(t *testing.T) {
	progressions, students, _, _, svc := promotionFixture()

	stream := "stream-f3"
	successor, err := svc.Promote(context.Background(), "school-1", "user-1", "stu-1", PromoteRequest{
		FromYearID:  "year-2025",
		ToYearID:    "year-2026",
		NewStreamID: &stream,
	})
	require.NoError(t, err)
	assert.Equal(t, models.LevelForm3, successor.ClassLevel)
	assert.Equal(t, models.EnrollmentTypeNew, successor.EnrollmentType)
	require.NotNil(t, successor.PreviousAcademicYearID)
	assert.Equal(t, "year-2025", *successor.PreviousAcademicYearID)

	source := progressions.records["prog-2025"]
	require.NotNil(t, source.ExitDate)
	assert.Equal(t, models.ExitReasonProgressed, source.ExitReason)

	// fake Transition does not apply the pointer itself, but the service must
	// have requested it through params; verify via the stored successor level
	assert.Equal(t, models.LevelForm3, progressions.records[successor.ID].ClassLevel)
	_ = students
}

func TestPromotionServicePromoteTopLevel(t *testing.T) {
	progressions, students, _, _, svc := promotionFixture()
	top := models.LevelForm4
	students.students["stu-1"].ClassLevel = &top
	progressions.records["prog-2025"].ClassLevel = models.LevelForm4

	_, err := svc.Promote(context.Background(), "school-1", "user-1", "stu-1", PromoteRequest{
		FromYearID: "year-2025",
		ToYearID:   "year-2026",
	})
	assertAppError(t, err, appErrors.ErrInvalidState.Code)
}

func TestPromotionServicePromoteDuplicateTargetYear(t *testing.T) {
	progressions, _, _, _, svc := promotionFixture()
	progressions.records["prog-2026"] = &models.StudentProgression{
		ID: "prog-2026", StudentID: "stu-1", AcademicYearID: "year-2026",
		ClassLevel: models.LevelForm3, EnrollmentType: models.EnrollmentTypeNew,
		ExitReason: models.ExitReasonNone, SchoolID: "school-1",
	}

	_, err := svc.Promote(context.Background(), "school-1", "user-1", "stu-1", PromoteRequest{
		FromYearID: "year-2025",
		ToYearID:   "year-2026",
	})
	assertAppError(t, err, appErrors.ErrConflict.Code)
}

func TestPromotionServicePromoteClosedTargetYear(t *testing.T) {
	_, _, _, years, svc := promotionFixture()
	years.years["year-2026"].IsClosed = true

	_, err := svc.Promote(context.Background(), "school-1", "user-1", "stu-1", PromoteRequest{
		FromYearID: "year-2025",
		ToYearID:   "year-2026",
	})
	assertAppError(t, err, appErrors.ErrYearClosed.Code)
}

func TestPromotionServiceRepeat(t *testing.T) {
	progressions, _, _, _, svc := promotionFixture()

	reason := "did not meet promotion criteria"
	successor, err := svc.Repeat(context.Background(), "school-1", "user-1", "stu-1", RepeatRequest{
		CurrentYearID: "year-2025",
		RepeatYearID:  "year-2026",
		Reason:        &reason,
	})
	require.NoError(t, err)
	assert.Equal(t, models.LevelForm2, successor.ClassLevel)
	assert.Equal(t, models.EnrollmentTypeRepeat, successor.EnrollmentType)
	assert.Equal(t, models.ExitReasonIncomplete, progressions.records["prog-2025"].ExitReason)
}

func TestPromotionServiceRepeatTopLevel(t *testing.T) {
	progressions, _, _, _, svc := promotionFixture()
	progressions.records["prog-2025"].ClassLevel = models.LevelForm4

	_, err := svc.Repeat(context.Background(), "school-1", "user-1", "stu-1", RepeatRequest{
		CurrentYearID: "year-2025",
		RepeatYearID:  "year-2026",
	})
	assertAppError(t, err, appErrors.ErrInvalidState.Code)
}

func TestPromotionServiceSuspendLeavesRecordOpen(t *testing.T) {
	progressions, _, _, _, svc := promotionFixture()

	record, err := svc.Suspend(context.Background(), "school-1", "user-1", "stu-1", SuspendRequest{
		YearID: "year-2025",
		Reason: "medical leave",
	})
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentTypeSkipTermResume, record.EnrollmentType)

	stored := progressions.records["prog-2025"]
	assert.Nil(t, stored.ExitDate)
	assert.Equal(t, models.ExitReasonNone, stored.ExitReason)
	assert.Empty(t, progressions.closed)
}

func TestPromotionServiceResumeKeepsSuspendedRecord(t *testing.T) {
	progressions, _, _, _, svc := promotionFixture()
	progressions.records["prog-2025"].EnrollmentType = models.EnrollmentTypeSkipTermResume

	record, err := svc.Resume(context.Background(), "school-1", "user-1", "stu-1", ResumeRequest{
		SuspendedYearID: "year-2025",
		ResumeYearID:    "year-2026",
	})
	require.NoError(t, err)
	assert.Equal(t, models.LevelForm2, record.ClassLevel)
	assert.Equal(t, "year-2026", record.AcademicYearID)

	suspended := progressions.records["prog-2025"]
	assert.Nil(t, suspended.ExitDate)
	assert.Equal(t, models.EnrollmentTypeSkipTermResume, suspended.EnrollmentType)
}

func TestPromotionServiceResumeRequiresSuspension(t *testing.T) {
	_, _, _, _, svc := promotionFixture()

	_, err := svc.Resume(context.Background(), "school-1", "user-1", "stu-1", ResumeRequest{
		SuspendedYearID: "year-2025",
		ResumeYearID:    "year-2026",
	})
	assertAppError(t, err, appErrors.ErrInvalidState.Code)
}

func TestPromotionServiceGraduate(t *testing.T) {
	_, students, _, _, svc := promotionFixture()
	top := models.LevelForm4
	students.students["stu-1"].ClassLevel = &top

	student, err := svc.Graduate(context.Background(), "school-1", "user-1", "stu-1", GraduateRequest{GraduationYear: 2025})
	require.NoError(t, err)
	assert.True(t, student.IsAlumni)
	assert.Equal(t, models.StudentStatusGraduated, student.Status)
	assert.True(t, students.students["stu-1"].IsAlumni)
}

func TestPromotionServiceGraduateBelowTopLevel(t *testing.T) {
	_, _, _, _, svc := promotionFixture()

	_, err := svc.Graduate(context.Background(), "school-1", "user-1", "stu-1", GraduateRequest{GraduationYear: 2025})
	assertAppError(t, err, appErrors.ErrInvalidState.Code)
}

func TestPromotionServiceDropout(t *testing.T) {
	_, students, _, _, svc := promotionFixture()

	student, err := svc.Dropout(context.Background(), "school-1", "user-1", "stu-1", DropoutRequest{Reason: "relocated"})
	require.NoError(t, err)
	assert.True(t, student.IsDropout)
	assert.Equal(t, models.StudentStatusInactive, student.Status)
	require.NotNil(t, students.students["stu-1"].DropoutReason)
	assert.Equal(t, "relocated", *students.students["stu-1"].DropoutReason)
}

func TestPromotionServiceAnalytics(t *testing.T) {
	progressions, _, _, _, svc := promotionFixture()
	progressions.records["prog-r"] = &models.StudentProgression{
		ID: "prog-r", StudentID: "stu-2", AcademicYearID: "year-2025",
		ClassLevel: models.LevelForm2, EnrollmentType: models.EnrollmentTypeRepeat,
		ExitReason: models.ExitReasonNone, SchoolID: "school-1",
	}
	progressions.records["prog-t"] = &models.StudentProgression{
		ID: "prog-t", StudentID: "stu-3", AcademicYearID: "year-2025",
		ClassLevel: models.LevelForm3, EnrollmentType: models.EnrollmentTypeTransferIn,
		ExitReason: models.ExitReasonNone, SchoolID: "school-1",
	}

	stats, err := svc.Analytics(context.Background(), "school-1", "year-2025")
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalStudents)
	assert.Equal(t, 1, stats.ByType[models.EnrollmentTypeRepeat])
	assert.Equal(t, 2, stats.ByLevel[models.LevelForm2])
	assert.InDelta(t, 33.33, stats.Percentages.Repeating, 0.1)
	assert.InDelta(t, 33.33, stats.Percentages.TransferredIn, 0.1)
}
