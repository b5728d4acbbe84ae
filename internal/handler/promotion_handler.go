package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/shuletrack/academic-api/internal/models"
	"github.com/shuletrack/academic-api/internal/service"
	appErrors "github.com/shuletrack/academic-api/pkg/errors"
	"github.com/shuletrack/academic-api/pkg/response"
)

// PromotionEngine is the transition surface consumed by the handler.
type PromotionEngine interface {
	Promote(ctx context.Context, schoolID, actorID, studentID string, req service.PromoteRequest) (*models.StudentProgression, error)
	Repeat(ctx context.Context, schoolID, actorID, studentID string, req service.RepeatRequest) (*models.StudentProgression, error)
	Suspend(ctx context.Context, schoolID, actorID, studentID string, req service.SuspendRequest) (*models.StudentProgression, error)
	Resume(ctx context.Context, schoolID, actorID, studentID string, req service.ResumeRequest) (*models.StudentProgression, error)
	Graduate(ctx context.Context, schoolID, actorID, studentID string, req service.GraduateRequest) (*models.Student, error)
	Dropout(ctx context.Context, schoolID, actorID, studentID string, req service.DropoutRequest) (*models.Student, error)
	Analytics(ctx context.Context, schoolID, academicYearID string) (*models.ProgressionStats, error)
}

// PromotionHandler exposes the year-boundary transition endpoints.
type PromotionHandler struct {
	engine PromotionEngine
}

// NewPromotionHandler constructs a promotion handler.
func NewPromotionHandler(engine PromotionEngine) *PromotionHandler {
	return &PromotionHandler{engine: engine}
}

// Promote godoc
// @Summary Promote a student to the next class level
// @Tags Promotions
// @Accept json
// @Produce json
// @Param id path string true "Student ID"
// @Param payload body service.PromoteRequest true "Promotion payload"
// @Success 201 {object} response.Envelope
// @Router /students/{id}/promote [post]
func (h *PromotionHandler) Promote(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.PromoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	record, err := h.engine.Promote(c.Request.Context(), claims.SchoolID, claims.UserID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, record)
}

// Repeat godoc
// @Summary Hold a student back at the same class level
// @Tags Promotions
// @Accept json
// @Produce json
// @Param id path string true "Student ID"
// @Param payload body service.RepeatRequest true "Repeat payload"
// @Success 201 {object} response.Envelope
// @Router /students/{id}/repeat [post]
func (h *PromotionHandler) Repeat(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.RepeatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	record, err := h.engine.Repeat(c.Request.Context(), claims.SchoolID, claims.UserID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, record)
}

// Suspend godoc
// @Summary Suspend a student's enrollment for the year
// @Tags Promotions
// @Accept json
// @Produce json
// @Param id path string true "Student ID"
// @Param payload body service.SuspendRequest true "Suspension payload"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/suspend [post]
func (h *PromotionHandler) Suspend(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.SuspendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	record, err := h.engine.Suspend(c.Request.Context(), claims.SchoolID, claims.UserID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// Resume godoc
// @Summary Resume a previously suspended student
// @Tags Promotions
// @Accept json
// @Produce json
// @Param id path string true "Student ID"
// @Param payload body service.ResumeRequest true "Resume payload"
// @Success 201 {object} response.Envelope
// @Router /students/{id}/resume [post]
func (h *PromotionHandler) Resume(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.ResumeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	record, err := h.engine.Resume(c.Request.Context(), claims.SchoolID, claims.UserID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, record)
}

// Graduate godoc
// @Summary Graduate a top-level student
// @Tags Promotions
// @Accept json
// @Produce json
// @Param id path string true "Student ID"
// @Param payload body service.GraduateRequest true "Graduation payload"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/graduate [post]
func (h *PromotionHandler) Graduate(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.GraduateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	student, err := h.engine.Graduate(c.Request.Context(), claims.SchoolID, claims.UserID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, student, nil)
}

// Dropout godoc
// @Summary Mark a student as a dropout
// @Tags Promotions
// @Accept json
// @Produce json
// @Param id path string true "Student ID"
// @Param payload body service.DropoutRequest true "Dropout payload"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/dropout [post]
func (h *PromotionHandler) Dropout(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.DropoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	student, err := h.engine.Dropout(c.Request.Context(), claims.SchoolID, claims.UserID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, student, nil)
}

// Analytics godoc
// @Summary Progression analytics for a year
// @Tags Promotions
// @Produce json
// @Param academic_year_id query string true "Academic year ID"
// @Success 200 {object} response.Envelope
// @Router /progressions/analytics [get]
func (h *PromotionHandler) Analytics(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	yearID := c.Query("academic_year_id")
	if yearID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "academic_year_id is required"))
		return
	}
	stats, err := h.engine.Analytics(c.Request.Context(), claims.SchoolID, yearID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}
