package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shuletrack/academic-api/internal/models"
	"github.com/shuletrack/academic-api/internal/repository"
)

type fakeYearRepo struct {
	years map[string]*models.AcademicYear
}

func (f *fakeYearRepo) List(ctx context.Context, schoolID string, filter models.AcademicYearFilter) ([]models.AcademicYear, error) {
	var out []models.AcademicYear
	for _, y := range f.years {
		if y.SchoolID == schoolID {
			out = append(out, *y)
		}
	}
	return out, nil
}

func (f *fakeYearRepo) FindByID(ctx context.Context, schoolID, id string) (*models.AcademicYear, error) {
	if y, ok := f.years[id]; ok && y.SchoolID == schoolID {
		copy := *y
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeYearRepo) ExistsByYear(ctx context.Context, schoolID string, year int) (bool, error) {
	for _, y := range f.years {
		if y.SchoolID == schoolID && y.Year == year {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeYearRepo) FindActive(ctx context.Context, schoolID string) (*models.AcademicYear, error) {
	for _, y := range f.years {
		if y.SchoolID == schoolID && y.IsActive {
			copy := *y
			return &copy, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeYearRepo) Create(ctx context.Context, year *models.AcademicYear) error {
	if f.years == nil {
		f.years = make(map[string]*models.AcademicYear)
	}
	if year.ID == "" {
		year.ID = fmt.Sprintf("year-%d", len(f.years)+1)
	}
	stored := *year
	f.years[year.ID] = &stored
	return nil
}

func (f *fakeYearRepo) Update(ctx context.Context, year *models.AcademicYear) error {
	stored := *year
	f.years[year.ID] = &stored
	return nil
}

func (f *fakeYearRepo) Activate(ctx context.Context, schoolID, id string) error {
	target, ok := f.years[id]
	if !ok || target.SchoolID != schoolID {
		return sql.ErrNoRows
	}
	for _, y := range f.years {
		if y.SchoolID == schoolID {
			y.IsActive = false
		}
	}
	target.IsActive = true
	return nil
}

func (f *fakeYearRepo) Lock(ctx context.Context, schoolID, id string) error {
	if y, ok := f.years[id]; ok && y.SchoolID == schoolID {
		y.IsClosed = true
		return nil
	}
	return sql.ErrNoRows
}

type fakeTermRepo struct {
	terms map[string]*models.Term
}

func (f *fakeTermRepo) ListByYear(ctx context.Context, schoolID, academicYearID string) ([]models.Term, error) {
	var out []models.Term
	for _, t := range f.terms {
		if t.SchoolID == schoolID && t.AcademicYearID == academicYearID {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (f *fakeTermRepo) FindByID(ctx context.Context, schoolID, id string) (*models.Term, error) {
	if t, ok := f.terms[id]; ok && t.SchoolID == schoolID {
		copy := *t
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeTermRepo) FindActive(ctx context.Context, schoolID, academicYearID string) (*models.Term, error) {
	for _, t := range f.terms {
		if t.SchoolID == schoolID && t.AcademicYearID == academicYearID && t.IsActive {
			copy := *t
			return &copy, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeTermRepo) ExistsByYearAndNumber(ctx context.Context, academicYearID string, termNumber int) (bool, error) {
	for _, t := range f.terms {
		if t.AcademicYearID == academicYearID && t.TermNumber == termNumber {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeTermRepo) Create(ctx context.Context, term *models.Term) error {
	if f.terms == nil {
		f.terms = make(map[string]*models.Term)
	}
	if term.ID == "" {
		term.ID = fmt.Sprintf("term-%d", len(f.terms)+1)
	}
	stored := *term
	f.terms[term.ID] = &stored
	return nil
}

func (f *fakeTermRepo) Update(ctx context.Context, term *models.Term) error {
	stored := *term
	f.terms[term.ID] = &stored
	return nil
}

func (f *fakeTermRepo) Activate(ctx context.Context, schoolID, academicYearID, id string) error {
	target, ok := f.terms[id]
	if !ok || target.SchoolID != schoolID {
		return sql.ErrNoRows
	}
	for _, t := range f.terms {
		if t.SchoolID == schoolID && t.AcademicYearID == academicYearID {
			t.IsActive = false
		}
	}
	target.IsActive = true
	return nil
}

type fakeProgressionRepo struct {
	records map[string]*models.StudentProgression
	closed  []string
}

func (f *fakeProgressionRepo) FindByID(ctx context.Context, schoolID, id string) (*models.StudentProgression, error) {
	if r, ok := f.records[id]; ok && r.SchoolID == schoolID {
		copy := *r
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeProgressionRepo) FindByStudentAndYear(ctx context.Context, schoolID, studentID, academicYearID string) (*models.StudentProgression, error) {
	for _, r := range f.records {
		if r.SchoolID == schoolID && r.StudentID == studentID && r.AcademicYearID == academicYearID {
			copy := *r
			return &copy, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeProgressionRepo) ExistsForStudentYear(ctx context.Context, studentID, academicYearID string) (bool, error) {
	for _, r := range f.records {
		if r.StudentID == studentID && r.AcademicYearID == academicYearID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeProgressionRepo) HistoryByStudent(ctx context.Context, schoolID, studentID string) ([]models.ProgressionDetail, error) {
	var out []models.ProgressionDetail
	for _, r := range f.records {
		if r.SchoolID == schoolID && r.StudentID == studentID {
			out = append(out, models.ProgressionDetail{StudentProgression: *r})
		}
	}
	return out, nil
}

func (f *fakeProgressionRepo) Create(ctx context.Context, progression *models.StudentProgression) error {
	if f.records == nil {
		f.records = make(map[string]*models.StudentProgression)
	}
	if progression.ID == "" {
		progression.ID = fmt.Sprintf("prog-%d", len(f.records)+1)
	}
	if progression.EnrollmentType == "" {
		progression.EnrollmentType = models.EnrollmentTypeNew
	}
	if progression.ExitReason == "" {
		progression.ExitReason = models.ExitReasonNone
	}
	stored := *progression
	f.records[progression.ID] = &stored
	return nil
}

func (f *fakeProgressionRepo) Close(ctx context.Context, schoolID, id string, reason models.ExitReason, exitDate time.Time) error {
	r, ok := f.records[id]
	if !ok || r.SchoolID != schoolID || r.ExitDate != nil {
		return repository.ErrAlreadyClosed
	}
	r.ExitDate = &exitDate
	r.ExitReason = reason
	f.closed = append(f.closed, id)
	return nil
}

func (f *fakeProgressionRepo) MarkSuspended(ctx context.Context, schoolID, id, reason string) error {
	if r, ok := f.records[id]; ok && r.SchoolID == schoolID {
		r.EnrollmentType = models.EnrollmentTypeSkipTermResume
		r.ApprovalReason = &reason
		return nil
	}
	return sql.ErrNoRows
}

func (f *fakeProgressionRepo) Transition(ctx context.Context, params repository.TransitionParams) error {
	if err := f.Close(ctx, params.SchoolID, params.CloseRecordID, params.ExitReason, time.Now().UTC()); err != nil {
		return err
	}
	return f.Create(ctx, params.NewRecord)
}

func (f *fakeProgressionRepo) ListRepeaters(ctx context.Context, schoolID, classStreamID, academicYearID string) ([]models.RepeaterDetail, error) {
	var out []models.RepeaterDetail
	for _, r := range f.records {
		if r.SchoolID == schoolID && r.AcademicYearID == academicYearID && r.EnrollmentType == models.EnrollmentTypeRepeat &&
			r.ClassStreamID != nil && *r.ClassStreamID == classStreamID {
			out = append(out, models.RepeaterDetail{StudentProgression: *r})
		}
	}
	return out, nil
}

func (f *fakeProgressionRepo) ListByYear(ctx context.Context, schoolID, academicYearID string) ([]models.StudentProgression, error) {
	var out []models.StudentProgression
	for _, r := range f.records {
		if r.SchoolID == schoolID && r.AcademicYearID == academicYearID {
			out = append(out, *r)
		}
	}
	return out, nil
}

type fakeStudentRepo struct {
	students map[string]*models.Student
	updates  []models.StudentStandingUpdate
}

func (f *fakeStudentRepo) FindByID(ctx context.Context, schoolID, id string) (*models.Student, error) {
	if s, ok := f.students[id]; ok && s.SchoolID == schoolID {
		copy := *s
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeStudentRepo) UpdateStanding(ctx context.Context, schoolID, id string, update models.StudentStandingUpdate) error {
	s, ok := f.students[id]
	if !ok || s.SchoolID != schoolID {
		return sql.ErrNoRows
	}
	if update.ClassLevel != nil {
		s.ClassLevel = update.ClassLevel
	}
	if update.ClassStreamID != nil {
		s.ClassStreamID = update.ClassStreamID
	}
	if update.Status != nil {
		s.Status = *update.Status
	}
	if update.IsAlumni != nil {
		s.IsAlumni = *update.IsAlumni
	}
	if update.IsDropout != nil {
		s.IsDropout = *update.IsDropout
	}
	if update.DropoutReason != nil {
		s.DropoutReason = update.DropoutReason
	}
	if update.GraduationYear != nil {
		s.GraduationYear = update.GraduationYear
	}
	f.updates = append(f.updates, update)
	return nil
}

type fakeStreamReader struct {
	streams map[string]*models.ClassStreamDetail
}

func (f *fakeStreamReader) FindByID(ctx context.Context, schoolID, id string) (*models.ClassStreamDetail, error) {
	if s, ok := f.streams[id]; ok && s.SchoolID == schoolID {
		copy := *s
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

type fakeSubjectReader struct {
	subjects map[string]*models.Subject
}

func (f *fakeSubjectReader) FindByID(ctx context.Context, schoolID, id string) (*models.Subject, error) {
	if s, ok := f.subjects[id]; ok && s.SchoolID == schoolID {
		copy := *s
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func disabledCache() *CacheService {
	return NewCacheService(nil, nil, 0, nil, false)
}
