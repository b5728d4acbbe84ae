package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/shuletrack/academic-api/internal/models"
	"github.com/shuletrack/academic-api/internal/service"
	appErrors "github.com/shuletrack/academic-api/pkg/errors"
	"github.com/shuletrack/academic-api/pkg/response"
)

// ClassStreamHandler exposes class stream registry endpoints.
type ClassStreamHandler struct {
	service *service.ClassStreamService
}

// NewClassStreamHandler constructs a class stream handler.
func NewClassStreamHandler(svc *service.ClassStreamService) *ClassStreamHandler {
	return &ClassStreamHandler{service: svc}
}

// List godoc
// @Summary List class streams
// @Tags ClassStreams
// @Produce json
// @Param academic_year_id query string false "Filter by academic year"
// @Param class_level query string false "Filter by class level"
// @Param status query string false "Filter by status"
// @Success 200 {object} response.Envelope
// @Router /class-streams [get]
func (h *ClassStreamHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	filter := models.ClassStreamFilter{
		AcademicYearID: c.Query("academic_year_id"),
		ClassLevel:     models.ClassLevel(c.Query("class_level")),
		Status:         models.StreamStatus(c.Query("status")),
	}
	streams, err := h.service.List(c.Request.Context(), claims.SchoolID, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, streams, nil)
}

// Get godoc
// @Summary Get one class stream
// @Tags ClassStreams
// @Produce json
// @Param id path string true "Class stream ID"
// @Success 200 {object} response.Envelope
// @Router /class-streams/{id} [get]
func (h *ClassStreamHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	stream, err := h.service.Get(c.Request.Context(), claims.SchoolID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stream, nil)
}

// Create godoc
// @Summary Create a class stream
// @Tags ClassStreams
// @Accept json
// @Produce json
// @Param payload body service.CreateStreamRequest true "Stream payload"
// @Success 201 {object} response.Envelope
// @Router /class-streams [post]
func (h *ClassStreamHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.CreateStreamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	stream, err := h.service.Create(c.Request.Context(), claims.SchoolID, claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, stream)
}

// Update godoc
// @Summary Update a class stream
// @Tags ClassStreams
// @Accept json
// @Produce json
// @Param id path string true "Class stream ID"
// @Param payload body service.UpdateStreamRequest true "Stream payload"
// @Success 200 {object} response.Envelope
// @Router /class-streams/{id} [put]
func (h *ClassStreamHandler) Update(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.UpdateStreamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	stream, err := h.service.Update(c.Request.Context(), claims.SchoolID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stream, nil)
}
