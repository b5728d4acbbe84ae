package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/shuletrack/academic-api/internal/middleware"
	"github.com/shuletrack/academic-api/internal/models"
	"github.com/shuletrack/academic-api/internal/service"
	appErrors "github.com/shuletrack/academic-api/pkg/errors"
)

type promotionEngineMock struct {
	promoted  string
	graduated string
	stats     *models.ProgressionStats
	err       error
}

func (m *promotionEngineMock) Promote(ctx context.Context, schoolID, actorID, studentID string, req service.PromoteRequest) (*models.StudentProgression, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.promoted = studentID
	return &models.StudentProgression{ID: "prog-new", StudentID: studentID, ClassLevel: models.LevelForm3, SchoolID: schoolID}, nil
}

func (m *promotionEngineMock) Repeat(ctx context.Context, schoolID, actorID, studentID string, req service.RepeatRequest) (*models.StudentProgression, error) {
	return &models.StudentProgression{ID: "prog-repeat", StudentID: studentID, SchoolID: schoolID}, m.err
}

func (m *promotionEngineMock) Suspend(ctx context.Context, schoolID, actorID, studentID string, req service.SuspendRequest) (*models.StudentProgression, error) {
	return &models.StudentProgression{ID: "prog-susp", StudentID: studentID, SchoolID: schoolID}, m.err
}

func (m *promotionEngineMock) Resume(ctx context.Context, schoolID, actorID, studentID string, req service.ResumeRequest) (*models.StudentProgression, error) {
	return &models.StudentProgression{ID: "prog-resume", StudentID: studentID, SchoolID: schoolID}, m.err
}

func (m *promotionEngineMock) Graduate(ctx context.Context, schoolID, actorID, studentID string, req service.GraduateRequest) (*models.Student, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.graduated = studentID
	return &models.Student{ID: studentID, SchoolID: schoolID, IsAlumni: true, Status: models.StudentStatusGraduated}, nil
}

func (m *promotionEngineMock) Dropout(ctx context.Context, schoolID, actorID, studentID string, req service.DropoutRequest) (*models.Student, error) {
	return &models.Student{ID: studentID, SchoolID: schoolID, IsDropout: true}, m.err
}

func (m *promotionEngineMock) Analytics(ctx context.Context, schoolID, academicYearID string) (*models.ProgressionStats, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.stats != nil {
		return m.stats, nil
	}
	return &models.ProgressionStats{AcademicYearID: academicYearID, TotalStudents: 0}, nil
}

func promotionTestContext(t *testing.T, method, target, body string) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, err := http.NewRequest(method, target, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return c, w
}

func authedClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "user-1", Role: models.RoleAcademicOfficer, SchoolID: "school-1"}
}

func TestPromotionHandlerRequiresAuth(t *testing.T) {
	handler := NewPromotionHandler(&promotionEngineMock{})
	c, w := promotionTestContext(t, http.MethodPost, "/students/stu-1/promote", `{}`)

	handler.Promote(c)

	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestPromotionHandlerPromote(t *testing.T) {
	mock := &promotionEngineMock{}
	handler := NewPromotionHandler(mock)
	c, w := promotionTestContext(t, http.MethodPost, "/students/stu-1/promote",
		`{"from_year_id":"year-2025","to_year_id":"year-2026"}`)
	c.Params = gin.Params{{Key: "id", Value: "stu-1"}}
	c.Set(middleware.ContextUserKey, authedClaims())

	handler.Promote(c)

	require.Equal(t, http.StatusCreated, w.Code)
	require.Equal(t, "stu-1", mock.promoted)
	require.Contains(t, w.Body.String(), "prog-new")
}

func TestPromotionHandlerPromoteRejectsBadJSON(t *testing.T) {
	handler := NewPromotionHandler(&promotionEngineMock{})
	c, w := promotionTestContext(t, http.MethodPost, "/students/stu-1/promote", `{bad`)
	c.Params = gin.Params{{Key: "id", Value: "stu-1"}}
	c.Set(middleware.ContextUserKey, authedClaims())

	handler.Promote(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPromotionHandlerPromotePropagatesServiceError(t *testing.T) {
	handler := NewPromotionHandler(&promotionEngineMock{
		err: appErrors.Clone(appErrors.ErrInvalidState, "student is at the top level, graduate instead"),
	})
	c, w := promotionTestContext(t, http.MethodPost, "/students/stu-1/promote",
		`{"from_year_id":"year-2025","to_year_id":"year-2026"}`)
	c.Params = gin.Params{{Key: "id", Value: "stu-1"}}
	c.Set(middleware.ContextUserKey, authedClaims())

	handler.Promote(c)

	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	require.Contains(t, w.Body.String(), "INVALID_STATE")
}

func TestPromotionHandlerGraduate(t *testing.T) {
	mock := &promotionEngineMock{}
	handler := NewPromotionHandler(mock)
	c, w := promotionTestContext(t, http.MethodPost, "/students/stu-1/graduate",
		`{"graduation_year":2025}`)
	c.Params = gin.Params{{Key: "id", Value: "stu-1"}}
	c.Set(middleware.ContextUserKey, authedClaims())

	handler.Graduate(c)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "stu-1", mock.graduated)
	require.Contains(t, w.Body.String(), "GRADUATED")
}

func TestPromotionHandlerAnalyticsRequiresYear(t *testing.T) {
	handler := NewPromotionHandler(&promotionEngineMock{})
	c, w := promotionTestContext(t, http.MethodGet, "/progressions/analytics", "")
	c.Set(middleware.ContextUserKey, authedClaims())

	handler.Analytics(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPromotionHandlerAnalytics(t *testing.T) {
	handler := NewPromotionHandler(&promotionEngineMock{
		stats: &models.ProgressionStats{
			AcademicYearID: "year-2025",
			TotalStudents:  120,
			ByType:         map[models.EnrollmentType]int{models.EnrollmentTypeNew: 100, models.EnrollmentTypeRepeat: 20},
		},
	})
	c, w := promotionTestContext(t, http.MethodGet, "/progressions/analytics?academic_year_id=year-2025", "")
	c.Set(middleware.ContextUserKey, authedClaims())

	handler.Analytics(c)

	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"total_students":120`)
}
