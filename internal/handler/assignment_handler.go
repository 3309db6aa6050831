package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/campus-exit-api/internal/models"
	"github.com/noah-isme/campus-exit-api/internal/service"
	appErrors "github.com/noah-isme/campus-exit-api/pkg/errors"
	"github.com/noah-isme/campus-exit-api/pkg/response"
)

// AssignmentHandler exposes batch rule and mentor assignment administration.
type AssignmentHandler struct {
	assignments *service.AssignmentService
}

// NewAssignmentHandler constructs handler.
func NewAssignmentHandler(assignments *service.AssignmentService) *AssignmentHandler {
	return &AssignmentHandler{assignments: assignments}
}

// CreateBatchRule godoc
// @Summary Create a batch rule
// @Tags Administration
// @Accept json
// @Produce json
// @Param payload body service.CreateBatchRuleRequest true "Batch rule payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /admin/batch-rules [post]
func (h *AssignmentHandler) CreateBatchRule(c *gin.Context) {
	var req service.CreateBatchRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	rule, err := h.assignments.CreateBatchRule(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, rule)
}

// ListBatchRules godoc
// @Summary List batch rules
// @Tags Administration
// @Produce json
// @Param college query string false "Filter by college"
// @Param course query string false "Filter by course"
// @Param section query string false "Filter by section"
// @Param semester query int false "Filter by semester"
// @Param academicYear query string false "Filter by academic year"
// @Success 200 {object} response.Envelope
// @Router /admin/batch-rules [get]
func (h *AssignmentHandler) ListBatchRules(c *gin.Context) {
	semester, _ := strconv.Atoi(c.Query("semester"))
	filter := models.BatchRuleFilter{
		College:      c.Query("college"),
		Course:       c.Query("course"),
		Section:      c.Query("section"),
		Semester:     semester,
		AcademicYear: c.Query("academicYear"),
	}
	rules, err := h.assignments.ListBatchRules(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rules, nil)
}

// DeleteBatchRule godoc
// @Summary Delete a batch rule
// @Tags Administration
// @Produce json
// @Param id path string true "Rule ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/batch-rules/{id} [delete]
func (h *AssignmentHandler) DeleteBatchRule(c *gin.Context) {
	if err := h.assignments.DeleteBatchRule(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// CreateAssignment godoc
// @Summary Assign a mentor to a scope
// @Tags Administration
// @Accept json
// @Produce json
// @Param payload body service.CreateAssignmentRequest true "Assignment payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /admin/assignments [post]
func (h *AssignmentHandler) CreateAssignment(c *gin.Context) {
	var req service.CreateAssignmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	if claims := claimsFromContext(c); claims != nil {
		req.CreatedBy = claims.UserID
	}
	assignment, err := h.assignments.CreateAssignment(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, assignment)
}

// ListAssignments godoc
// @Summary List mentor assignments
// @Tags Administration
// @Produce json
// @Param college query string false "Filter by college"
// @Param course query string false "Filter by course"
// @Param section query string false "Filter by section"
// @Param semester query int false "Filter by semester"
// @Param academicYear query string false "Filter by academic year"
// @Param mentorId query string false "Filter by mentor"
// @Param activeOnly query bool false "Only active assignments"
// @Success 200 {object} response.Envelope
// @Router /admin/assignments [get]
func (h *AssignmentHandler) ListAssignments(c *gin.Context) {
	semester, _ := strconv.Atoi(c.Query("semester"))
	activeOnly, _ := strconv.ParseBool(c.Query("activeOnly"))
	filter := models.AssignmentFilter{
		College:      c.Query("college"),
		Course:       c.Query("course"),
		Section:      c.Query("section"),
		Semester:     semester,
		AcademicYear: c.Query("academicYear"),
		MentorID:     c.Query("mentorId"),
		ActiveOnly:   activeOnly,
	}
	assignments, err := h.assignments.ListAssignments(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assignments, nil)
}

// ResetSemester godoc
// @Summary Purge a college semester's assignments
// @Tags Administration
// @Accept json
// @Produce json
// @Param payload body service.SemesterResetRequest true "Reset scope"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /admin/assignments/reset [post]
func (h *AssignmentHandler) ResetSemester(c *gin.Context) {
	var req service.SemesterResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	removed, err := h.assignments.ResetSemester(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"removed": removed}, nil)
}

// UnlockAssignment godoc
// @Summary Unlock a mid-semester assignment
// @Tags Administration
// @Produce json
// @Param id path string true "Assignment ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /admin/assignments/{id}/unlock [post]
func (h *AssignmentHandler) UnlockAssignment(c *gin.Context) {
	assignment, err := h.assignments.UnlockAssignment(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assignment, nil)
}
