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

func calendarFixture() (*fakeYearRepo, *fakeTermRepo, *CalendarService) {
	years := &fakeYearRepo{years: map[string]*models.AcademicYear{
		"year-2025": {
			ID: "year-2025", Year: 2025, SchoolID: "school-1", IsActive: true,
			StartDate: time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC),
			EndDate:   time.Date(2025, 11, 28, 0, 0, 0, 0, time.UTC),
		},
	}}
	terms := &fakeTermRepo{terms: map[string]*models.Term{
		"term-1": {
			ID: "term-1", AcademicYearID: "year-2025", TermNumber: 1, Name: "Term 1",
			SchoolID: "school-1", Status: models.TermStatusPlanned,
			StartDate: time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC),
			EndDate:   time.Date(2025, 4, 4, 0, 0, 0, 0, time.UTC),
		},
	}}
	svc := NewCalendarService(years, terms, validator.New(), zap.NewNop())
	return years, terms, svc
}

func TestCalendarServiceCreateYear(t *testing.T) {
	years, _, svc := calendarFixture()

	year, err := svc.CreateYear(context.Background(), "school-1", "user-1", CreateYearRequest{
		Year:      2026,
		StartDate: time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, 11, 27, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, 2026, year.Year)
	assert.Equal(t, "school-1", year.SchoolID)
	assert.Equal(t, "user-1", year.CreatedBy)
	assert.Len(t, years.years, 2)
}

func TestCalendarServiceCreateYearDuplicate(t *testing.T) {
	_, _, svc := calendarFixture()

	_, err := svc.CreateYear(context.Background(), "school-1", "user-1", CreateYearRequest{
		Year:      2025,
		StartDate: time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2025, 11, 28, 0, 0, 0, 0, time.UTC),
	})
	assertAppError(t, err, appErrors.ErrConflict.Code)
}

func TestCalendarServiceCreateYearDatesInverted(t *testing.T) {
	_, _, svc := calendarFixture()

	_, err := svc.CreateYear(context.Background(), "school-1", "user-1", CreateYearRequest{
		Year:      2026,
		StartDate: time.Date(2026, 11, 27, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC),
	})
	assertAppError(t, err, appErrors.ErrValidation.Code)
}

func TestCalendarServiceActivateYearDeactivatesOthers(t *testing.T) {
	years, _, svc := calendarFixture()
	years.years["year-2026"] = &models.AcademicYear{ID: "year-2026", Year: 2026, SchoolID: "school-1"}

	year, err := svc.ActivateYear(context.Background(), "school-1", "year-2026")
	require.NoError(t, err)
	assert.True(t, year.IsActive)
	assert.False(t, years.years["year-2025"].IsActive)
	assert.True(t, years.years["year-2026"].IsActive)
}

func TestCalendarServiceActivateClosedYear(t *testing.T) {
	years, _, svc := calendarFixture()
	years.years["year-2025"].IsClosed = true

	_, err := svc.ActivateYear(context.Background(), "school-1", "year-2025")
	assertAppError(t, err, appErrors.ErrYearClosed.Code)
}

func TestCalendarServiceUpdateClosedYear(t *testing.T) {
	years, _, svc := calendarFixture()
	years.years["year-2025"].IsClosed = true

	_, err := svc.UpdateYear(context.Background(), "school-1", "year-2025", UpdateYearRequest{
		StartDate: time.Date(2025, 1, 13, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2025, 12, 5, 0, 0, 0, 0, time.UTC),
	})
	assertAppError(t, err, appErrors.ErrYearClosed.Code)
}

func TestCalendarServiceLockYearIdempotent(t *testing.T) {
	years, _, svc := calendarFixture()

	year, err := svc.LockYear(context.Background(), "school-1", "year-2025")
	require.NoError(t, err)
	assert.True(t, year.IsClosed)
	assert.True(t, years.years["year-2025"].IsClosed)

	year, err = svc.LockYear(context.Background(), "school-1", "year-2025")
	require.NoError(t, err)
	assert.True(t, year.IsClosed)
}

func TestCalendarServiceCreateTerm(t *testing.T) {
	_, terms, svc := calendarFixture()

	term, err := svc.CreateTerm(context.Background(), "school-1", "user-1", CreateTermRequest{
		AcademicYearID: "year-2025",
		TermNumber:     2,
		Name:           "Term 2",
		StartDate:      time.Date(2025, 5, 5, 0, 0, 0, 0, time.UTC),
		EndDate:        time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, models.TermStatusPlanned, term.Status)
	assert.Len(t, terms.terms, 2)
}

func TestCalendarServiceCreateTermDuplicateNumber(t *testing.T) {
	_, _, svc := calendarFixture()

	_, err := svc.CreateTerm(context.Background(), "school-1", "user-1", CreateTermRequest{
		AcademicYearID: "year-2025",
		TermNumber:     1,
		Name:           "Term 1 again",
		StartDate:      time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC),
		EndDate:        time.Date(2025, 4, 4, 0, 0, 0, 0, time.UTC),
	})
	assertAppError(t, err, appErrors.ErrConflict.Code)
}

func TestCalendarServiceCreateTermClosedYear(t *testing.T) {
	years, _, svc := calendarFixture()
	years.years["year-2025"].IsClosed = true

	_, err := svc.CreateTerm(context.Background(), "school-1", "user-1", CreateTermRequest{
		AcademicYearID: "year-2025",
		TermNumber:     2,
		Name:           "Term 2",
		StartDate:      time.Date(2025, 5, 5, 0, 0, 0, 0, time.UTC),
		EndDate:        time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC),
	})
	assertAppError(t, err, appErrors.ErrYearClosed.Code)
}

func TestCalendarServiceUpdateLockedTerm(t *testing.T) {
	_, terms, svc := calendarFixture()
	terms.terms["term-1"].Status = models.TermStatusLocked

	_, err := svc.UpdateTerm(context.Background(), "school-1", "term-1", UpdateTermRequest{
		Name:      "Term 1",
		StartDate: time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2025, 4, 11, 0, 0, 0, 0, time.UTC),
	})
	assertAppError(t, err, appErrors.ErrInvalidState.Code)
}

func TestCalendarServiceActivateTermStartsProgress(t *testing.T) {
	_, terms, svc := calendarFixture()

	term, err := svc.ActivateTerm(context.Background(), "school-1", "term-1")
	require.NoError(t, err)
	assert.True(t, term.IsActive)
	assert.Equal(t, models.TermStatusInProgress, term.Status)
	assert.Equal(t, models.TermStatusInProgress, terms.terms["term-1"].Status)
}

func TestCalendarServiceGetYearIncludesTerms(t *testing.T) {
	_, _, svc := calendarFixture()

	detail, err := svc.GetYear(context.Background(), "school-1", "year-2025")
	require.NoError(t, err)
	assert.Equal(t, 2025, detail.Year)
	require.Len(t, detail.Terms, 1)
	assert.Equal(t, "Term 1", detail.Terms[0].Name)
}

func TestCalendarServiceGetYearNotFound(t *testing.T) {
	_, _, svc := calendarFixture()

	_, err := svc.GetYear(context.Background(), "school-1", "year-missing")
	assertAppError(t, err, appErrors.ErrNotFound.Code)
}
