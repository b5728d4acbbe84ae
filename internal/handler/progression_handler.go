package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/shuletrack/academic-api/internal/service"
	appErrors "github.com/shuletrack/academic-api/pkg/errors"
	"github.com/shuletrack/academic-api/pkg/response"
)

// ProgressionHandler exposes the progression ledger endpoints.
type ProgressionHandler struct {
	service *service.ProgressionService
}

// NewProgressionHandler constructs a progression handler.
func NewProgressionHandler(svc *service.ProgressionService) *ProgressionHandler {
	return &ProgressionHandler{service: svc}
}

// Create godoc
// @Summary Create a progression record
// @Description Registers a ledger record for a student and year, used for first enrollment and transfer-in arrivals.
// @Tags Progressions
// @Accept json
// @Produce json
// @Param payload body service.CreateProgressionRequest true "Progression payload"
// @Success 201 {object} response.Envelope
// @Router /progressions [post]
func (h *ProgressionHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.CreateProgressionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	progression, err := h.service.Create(c.Request.Context(), claims.SchoolID, claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, progression)
}

// History godoc
// @Summary Progression history for a student
// @Tags Progressions
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/progressions [get]
func (h *ProgressionHandler) History(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	history, err := h.service.History(c.Request.Context(), claims.SchoolID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, history, nil)
}

// Close godoc
// @Summary Close an open progression record
// @Tags Progressions
// @Accept json
// @Produce json
// @Param id path string true "Progression ID"
// @Param payload body service.CloseProgressionRequest true "Close payload"
// @Success 200 {object} response.Envelope
// @Router /progressions/{id}/close [post]
func (h *ProgressionHandler) Close(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.CloseProgressionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	progression, err := h.service.Close(c.Request.Context(), claims.SchoolID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, progression, nil)
}

// Repeaters godoc
// @Summary List repeaters in a stream for a year
// @Tags Progressions
// @Produce json
// @Param class_stream_id query string true "Class stream ID"
// @Param academic_year_id query string true "Academic year ID"
// @Success 200 {object} response.Envelope
// @Router /progressions/repeaters [get]
func (h *ProgressionHandler) Repeaters(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	repeaters, err := h.service.Repeaters(c.Request.Context(), claims.SchoolID, c.Query("class_stream_id"), c.Query("academic_year_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, repeaters, nil)
}
