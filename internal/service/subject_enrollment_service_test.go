package service

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shuletrack/academic-api/internal/models"
	"github.com/shuletrack/academic-api/internal/repository"
	appErrors "github.com/shuletrack/academic-api/pkg/errors"
)

type fakeEnrollmentRepo struct {
	enrollments map[string]*models.StudentSubjectEnrollment
	details     []models.SubjectEnrollmentDetail
}

func (f *fakeEnrollmentRepo) FindByID(ctx context.Context, schoolID, id string) (*models.StudentSubjectEnrollment, error) {
	if e, ok := f.enrollments[id]; ok && e.SchoolID == schoolID {
		out := *e
		return &out, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeEnrollmentRepo) ExistsByKey(ctx context.Context, studentID, subjectID, academicYearID, classStreamID string) (bool, error) {
	for _, e := range f.enrollments {
		if e.StudentID == studentID && e.SubjectID == subjectID && e.AcademicYearID == academicYearID && e.ClassStreamID == classStreamID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeEnrollmentRepo) Create(ctx context.Context, enrollment *models.StudentSubjectEnrollment) error {
	if f.enrollments == nil {
		f.enrollments = make(map[string]*models.StudentSubjectEnrollment)
	}
	if enrollment.ID == "" {
		enrollment.ID = fmt.Sprintf("enr-%d", len(f.enrollments)+1)
	}
	if enrollment.EnrollmentStatus == "" {
		enrollment.EnrollmentStatus = models.SubjectEnrollmentActive
	}
	stored := *enrollment
	f.enrollments[enrollment.ID] = &stored
	return nil
}

func (f *fakeEnrollmentRepo) Drop(ctx context.Context, schoolID, id, reason string, droppedAt time.Time) error {
	e, ok := f.enrollments[id]
	if !ok || e.SchoolID != schoolID || e.EnrollmentStatus != models.SubjectEnrollmentActive {
		return repository.ErrNotActive
	}
	e.EnrollmentStatus = models.SubjectEnrollmentDropped
	e.DroppedDate = &droppedAt
	e.ApprovalReason = &reason
	return nil
}

func (f *fakeEnrollmentRepo) Substitute(ctx context.Context, schoolID, id, replacementSubjectID, reason string, droppedAt time.Time) error {
	e, ok := f.enrollments[id]
	if !ok || e.SchoolID != schoolID || e.EnrollmentStatus != models.SubjectEnrollmentActive {
		return repository.ErrNotActive
	}
	e.EnrollmentStatus = models.SubjectEnrollmentSubstituted
	e.DroppedDate = &droppedAt
	e.ReplacementSubjectID = &replacementSubjectID
	e.ApprovalReason = &reason
	return nil
}

func (f *fakeEnrollmentRepo) ListByStudent(ctx context.Context, schoolID, studentID, academicYearID string) ([]models.SubjectEnrollmentDetail, error) {
	var out []models.SubjectEnrollmentDetail
	for _, d := range f.details {
		if d.SchoolID == schoolID && d.StudentID == studentID && (academicYearID == "" || d.AcademicYearID == academicYearID) {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeEnrollmentRepo) ListByStreamAndYear(ctx context.Context, schoolID, classStreamID, academicYearID string) ([]models.SubjectEnrollmentDetail, error) {
	var out []models.SubjectEnrollmentDetail
	for _, d := range f.details {
		if d.SchoolID == schoolID && d.ClassStreamID == classStreamID && d.AcademicYearID == academicYearID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeEnrollmentRepo) CountByStatus(ctx context.Context, schoolID, academicYearID, classStreamID string) (map[models.SubjectEnrollmentStatus]int, int, error) {
	counts := make(map[models.SubjectEnrollmentStatus]int)
	optional := 0
	for _, e := range f.enrollments {
		if e.SchoolID != schoolID || e.AcademicYearID != academicYearID {
			continue
		}
		if classStreamID != "" && e.ClassStreamID != classStreamID {
			continue
		}
		counts[e.EnrollmentStatus]++
		if e.IsOptional && e.EnrollmentStatus == models.SubjectEnrollmentActive {
			optional++
		}
	}
	return counts, optional, nil
}

func enrollmentFixture() (*fakeEnrollmentRepo, *fakeYearRepo, *SubjectEnrollmentService) {
	level3 := models.LevelForm3
	repo := &fakeEnrollmentRepo{enrollments: map[string]*models.StudentSubjectEnrollment{}}
	students := &fakeStudentRepo{students: map[string]*models.Student{
		"stu-1": {ID: "stu-1", SchoolID: "school-1", ClassLevel: &level3, Status: models.StudentStatusActive},
	}}
	subjects := &fakeSubjectReader{subjects: map[string]*models.Subject{
		"subj-math": {ID: "subj-math", SchoolID: "school-1", Name: "Mathematics", Code: "MATH"},
		"subj-geo":  {ID: "subj-geo", SchoolID: "school-1", Name: "Geography", Code: "GEO", IsOptional: true},
		"subj-hist": {ID: "subj-hist", SchoolID: "school-1", Name: "History", Code: "HIST", IsOptional: true},
	}}
	streams := &fakeStreamReader{streams: map[string]*models.ClassStreamDetail{
		"stream-f3": {ClassStream: models.ClassStream{ID: "stream-f3", SchoolID: "school-1", AcademicYearID: "year-2025", ClassLevel: models.LevelForm3, StreamName: "West"}},
	}}
	years := &fakeYearRepo{years: map[string]*models.AcademicYear{
		"year-2025": {ID: "year-2025", Year: 2025, SchoolID: "school-1", IsActive: true},
	}}
	svc := NewSubjectEnrollmentService(repo, students, subjects, streams, years, disabledCache(), time.Minute, time.Minute, validator.New(), zap.NewNop())
	return repo, years, svc
}

func TestSubjectEnrollmentServiceEnroll(t *testing.T) {
	repo, _, svc := enrollmentFixture()

	enrollment, err := svc.Enroll(context.Background(), "school-1", "user-1", EnrollSubjectRequest{
		StudentID:      "stu-1",
		SubjectID:      "subj-geo",
		ClassStreamID:  "stream-f3",
		AcademicYearID: "year-2025",
		IsOptional:     true,
	})
	require.NoError(t, err)
	assert.Equal(t, models.SubjectEnrollmentActive, enrollment.EnrollmentStatus)
	assert.True(t, enrollment.IsOptional)
	assert.Len(t, repo.enrollments, 1)
}

func TestSubjectEnrollmentServiceEnrollDuplicate(t *testing.T) {
	repo, _, svc := enrollmentFixture()
	repo.enrollments["enr-1"] = &models.StudentSubjectEnrollment{
		ID: "enr-1", StudentID: "stu-1", SubjectID: "subj-math",
		ClassStreamID: "stream-f3", AcademicYearID: "year-2025",
		EnrollmentStatus: models.SubjectEnrollmentActive, SchoolID: "school-1",
	}

	_, err := svc.Enroll(context.Background(), "school-1", "user-1", EnrollSubjectRequest{
		StudentID:      "stu-1",
		SubjectID:      "subj-math",
		ClassStreamID:  "stream-f3",
		AcademicYearID: "year-2025",
	})
	assertAppError(t, err, appErrors.ErrConflict.Code)
}

func TestSubjectEnrollmentServiceEnrollClosedYear(t *testing.T) {
	_, years, svc := enrollmentFixture()
	years.years["year-2025"].IsClosed = true

	_, err := svc.Enroll(context.Background(), "school-1", "user-1", EnrollSubjectRequest{
		StudentID:      "stu-1",
		SubjectID:      "subj-math",
		ClassStreamID:  "stream-f3",
		AcademicYearID: "year-2025",
	})
	assertAppError(t, err, appErrors.ErrYearClosed.Code)
}

func TestSubjectEnrollmentServiceDrop(t *testing.T) {
	repo, _, svc := enrollmentFixture()
	repo.enrollments["enr-1"] = &models.StudentSubjectEnrollment{
		ID: "enr-1", StudentID: "stu-1", SubjectID: "subj-geo",
		ClassStreamID: "stream-f3", AcademicYearID: "year-2025",
		EnrollmentStatus: models.SubjectEnrollmentActive, IsOptional: true, SchoolID: "school-1",
	}

	enrollment, err := svc.Drop(context.Background(), "school-1", "enr-1", DropSubjectRequest{Reason: "timetable clash"})
	require.NoError(t, err)
	assert.Equal(t, models.SubjectEnrollmentDropped, enrollment.EnrollmentStatus)
	require.NotNil(t, enrollment.DroppedDate)
	assert.Equal(t, models.SubjectEnrollmentDropped, repo.enrollments["enr-1"].EnrollmentStatus)
}

func TestSubjectEnrollmentServiceDropNotActive(t *testing.T) {
	repo, _, svc := enrollmentFixture()
	repo.enrollments["enr-1"] = &models.StudentSubjectEnrollment{
		ID: "enr-1", StudentID: "stu-1", SubjectID: "subj-geo",
		ClassStreamID: "stream-f3", AcademicYearID: "year-2025",
		EnrollmentStatus: models.SubjectEnrollmentDropped, SchoolID: "school-1",
	}

	_, err := svc.Drop(context.Background(), "school-1", "enr-1", DropSubjectRequest{Reason: "again"})
	assertAppError(t, err, appErrors.ErrInvalidState.Code)
}

func TestSubjectEnrollmentServiceSubstitute(t *testing.T) {
	repo, _, svc := enrollmentFixture()
	repo.enrollments["enr-1"] = &models.StudentSubjectEnrollment{
		ID: "enr-1", StudentID: "stu-1", SubjectID: "subj-geo",
		ClassStreamID: "stream-f3", AcademicYearID: "year-2025",
		EnrollmentStatus: models.SubjectEnrollmentActive, IsOptional: true, SchoolID: "school-1",
	}

	enrollment, err := svc.Substitute(context.Background(), "school-1", "enr-1", SubstituteSubjectRequest{
		ReplacementSubjectID: "subj-hist",
		Reason:               "switched optional",
	})
	require.NoError(t, err)
	assert.Equal(t, models.SubjectEnrollmentSubstituted, enrollment.EnrollmentStatus)
	require.NotNil(t, enrollment.ReplacementSubjectID)
	assert.Equal(t, "subj-hist", *enrollment.ReplacementSubjectID)
}

func TestSubjectEnrollmentServiceSubstituteSameSubject(t *testing.T) {
	repo, _, svc := enrollmentFixture()
	repo.enrollments["enr-1"] = &models.StudentSubjectEnrollment{
		ID: "enr-1", StudentID: "stu-1", SubjectID: "subj-geo",
		ClassStreamID: "stream-f3", AcademicYearID: "year-2025",
		EnrollmentStatus: models.SubjectEnrollmentActive, SchoolID: "school-1",
	}

	_, err := svc.Substitute(context.Background(), "school-1", "enr-1", SubstituteSubjectRequest{
		ReplacementSubjectID: "subj-geo",
		Reason:               "no change",
	})
	assertAppError(t, err, appErrors.ErrValidation.Code)
}

func TestSubjectEnrollmentServiceRosterGroupsBySubject(t *testing.T) {
	repo, _, svc := enrollmentFixture()
	repo.details = []models.SubjectEnrollmentDetail{
		{
			StudentSubjectEnrollment: models.StudentSubjectEnrollment{
				StudentID: "stu-1", SubjectID: "subj-math", ClassStreamID: "stream-f3",
				AcademicYearID: "year-2025", EnrollmentStatus: models.SubjectEnrollmentActive, SchoolID: "school-1",
			},
			SubjectName: "Mathematics", SubjectCode: "MATH", StudentName: "Amina Yusuf", AdmissionNumber: "ADM-001",
		},
		{
			StudentSubjectEnrollment: models.StudentSubjectEnrollment{
				StudentID: "stu-2", SubjectID: "subj-math", ClassStreamID: "stream-f3",
				AcademicYearID: "year-2025", EnrollmentStatus: models.SubjectEnrollmentActive, SchoolID: "school-1",
			},
			SubjectName: "Mathematics", SubjectCode: "MATH", StudentName: "Brian Otieno", AdmissionNumber: "ADM-002",
		},
		{
			StudentSubjectEnrollment: models.StudentSubjectEnrollment{
				StudentID: "stu-1", SubjectID: "subj-geo", ClassStreamID: "stream-f3",
				AcademicYearID: "year-2025", EnrollmentStatus: models.SubjectEnrollmentActive, IsOptional: true, SchoolID: "school-1",
			},
			SubjectName: "Geography", SubjectCode: "GEO", StudentName: "Amina Yusuf", AdmissionNumber: "ADM-001",
		},
	}

	roster, err := svc.Roster(context.Background(), "school-1", "stream-f3", "year-2025")
	require.NoError(t, err)
	require.Len(t, roster, 2)
	assert.Equal(t, "MATH", roster[0].SubjectCode)
	assert.Len(t, roster[0].Students, 2)
	assert.Equal(t, "GEO", roster[1].SubjectCode)
	require.Len(t, roster[1].Students, 1)
	assert.True(t, roster[1].Students[0].IsOptional)
}

func TestSubjectEnrollmentServiceRosterCSV(t *testing.T) {
	repo, _, svc := enrollmentFixture()
	repo.details = []models.SubjectEnrollmentDetail{
		{
			StudentSubjectEnrollment: models.StudentSubjectEnrollment{
				StudentID: "stu-1", SubjectID: "subj-math", ClassStreamID: "stream-f3",
				AcademicYearID: "year-2025", EnrollmentStatus: models.SubjectEnrollmentActive, SchoolID: "school-1",
			},
			SubjectName: "Mathematics", SubjectCode: "MATH", StudentName: "Amina Yusuf", AdmissionNumber: "ADM-001",
		},
	}

	payload, err := svc.RosterCSV(context.Background(), "school-1", "stream-f3", "year-2025")
	require.NoError(t, err)
	csv := string(payload)
	assert.True(t, strings.HasPrefix(csv, "subject_code,subject_name,admission_number,student_name,status,optional"))
	assert.Contains(t, csv, "MATH,Mathematics,ADM-001,Amina Yusuf,ACTIVE,no")
}

func TestSubjectEnrollmentServiceReport(t *testing.T) {
	repo, _, svc := enrollmentFixture()
	repo.enrollments = map[string]*models.StudentSubjectEnrollment{
		"enr-1": {ID: "enr-1", StudentID: "stu-1", SubjectID: "subj-math", ClassStreamID: "stream-f3", AcademicYearID: "year-2025", EnrollmentStatus: models.SubjectEnrollmentActive, SchoolID: "school-1"},
		"enr-2": {ID: "enr-2", StudentID: "stu-2", SubjectID: "subj-geo", ClassStreamID: "stream-f3", AcademicYearID: "year-2025", EnrollmentStatus: models.SubjectEnrollmentActive, IsOptional: true, SchoolID: "school-1"},
		"enr-3": {ID: "enr-3", StudentID: "stu-3", SubjectID: "subj-geo", ClassStreamID: "stream-f3", AcademicYearID: "year-2025", EnrollmentStatus: models.SubjectEnrollmentDropped, IsOptional: true, SchoolID: "school-1"},
	}

	report, err := svc.Report(context.Background(), "school-1", "year-2025", "")
	require.NoError(t, err)
	assert.Equal(t, 2, report.Active)
	assert.Equal(t, 1, report.Dropped)
	assert.Equal(t, 0, report.Substituted)
	assert.Equal(t, 3, report.TotalEnrollments)
	assert.Equal(t, 1, report.OptionalTaken)
}
