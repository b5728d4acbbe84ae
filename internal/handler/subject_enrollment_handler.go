package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/shuletrack/academic-api/internal/service"
	appErrors "github.com/shuletrack/academic-api/pkg/errors"
	"github.com/shuletrack/academic-api/pkg/response"
)

// SubjectEnrollmentHandler exposes the subject enrollment ledger endpoints.
type SubjectEnrollmentHandler struct {
	service *service.SubjectEnrollmentService
}

// NewSubjectEnrollmentHandler constructs a subject enrollment handler.
func NewSubjectEnrollmentHandler(svc *service.SubjectEnrollmentService) *SubjectEnrollmentHandler {
	return &SubjectEnrollmentHandler{service: svc}
}

// Enroll godoc
// @Summary Enroll a student on a subject
// @Tags SubjectEnrollments
// @Accept json
// @Produce json
// @Param payload body service.EnrollSubjectRequest true "Enrollment payload"
// @Success 201 {object} response.Envelope
// @Router /subject-enrollments [post]
func (h *SubjectEnrollmentHandler) Enroll(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.EnrollSubjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	enrollment, err := h.service.Enroll(c.Request.Context(), claims.SchoolID, claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, enrollment)
}

// Drop godoc
// @Summary Drop an active subject enrollment
// @Tags SubjectEnrollments
// @Accept json
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param payload body service.DropSubjectRequest true "Drop payload"
// @Success 200 {object} response.Envelope
// @Router /subject-enrollments/{id}/drop [post]
func (h *SubjectEnrollmentHandler) Drop(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.DropSubjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	enrollment, err := h.service.Drop(c.Request.Context(), claims.SchoolID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollment, nil)
}

// Substitute godoc
// @Summary Substitute a subject on an active enrollment
// @Tags SubjectEnrollments
// @Accept json
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param payload body service.SubstituteSubjectRequest true "Substitute payload"
// @Success 200 {object} response.Envelope
// @Router /subject-enrollments/{id}/substitute [post]
func (h *SubjectEnrollmentHandler) Substitute(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.SubstituteSubjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	enrollment, err := h.service.Substitute(c.Request.Context(), claims.SchoolID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollment, nil)
}

// ListByStudent godoc
// @Summary List a student's subject enrollments
// @Tags SubjectEnrollments
// @Produce json
// @Param id path string true "Student ID"
// @Param academic_year_id query string false "Filter by academic year"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/subject-enrollments [get]
func (h *SubjectEnrollmentHandler) ListByStudent(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	enrollments, err := h.service.ListByStudent(c.Request.Context(), claims.SchoolID, c.Param("id"), c.Query("academic_year_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollments, nil)
}

// Roster godoc
// @Summary Subject-by-student roster for a stream and year
// @Tags SubjectEnrollments
// @Produce json
// @Param id path string true "Class stream ID"
// @Param academic_year_id query string true "Academic year ID"
// @Success 200 {object} response.Envelope
// @Router /class-streams/{id}/roster [get]
func (h *SubjectEnrollmentHandler) Roster(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	roster, err := h.service.Roster(c.Request.Context(), claims.SchoolID, c.Param("id"), c.Query("academic_year_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, roster, nil)
}

// RosterCSV godoc
// @Summary Download the roster as CSV
// @Tags SubjectEnrollments
// @Produce text/csv
// @Param id path string true "Class stream ID"
// @Param academic_year_id query string true "Academic year ID"
// @Success 200 {string} string "CSV payload"
// @Router /class-streams/{id}/roster.csv [get]
func (h *SubjectEnrollmentHandler) RosterCSV(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	streamID := c.Param("id")
	payload, err := h.service.RosterCSV(c.Request.Context(), claims.SchoolID, streamID, c.Query("academic_year_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=roster-%s.csv", streamID))
	c.Data(http.StatusOK, "text/csv", payload)
}

// Report godoc
// @Summary Enrollment status report for a year
// @Tags SubjectEnrollments
// @Produce json
// @Param academic_year_id query string true "Academic year ID"
// @Param class_stream_id query string false "Scope to one class stream"
// @Success 200 {object} response.Envelope
// @Router /subject-enrollments/report [get]
func (h *SubjectEnrollmentHandler) Report(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	report, err := h.service.Report(c.Request.Context(), claims.SchoolID, c.Query("academic_year_id"), c.Query("class_stream_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}
