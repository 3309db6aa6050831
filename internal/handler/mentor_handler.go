package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/campus-exit-api/internal/models"
	"github.com/noah-isme/campus-exit-api/internal/service"
	appErrors "github.com/noah-isme/campus-exit-api/pkg/errors"
	"github.com/noah-isme/campus-exit-api/pkg/response"
)

// MentorHandler exposes mentor roster administration.
type MentorHandler struct {
	mentors *service.MentorService
}

// NewMentorHandler constructs handler.
func NewMentorHandler(mentors *service.MentorService) *MentorHandler {
	return &MentorHandler{mentors: mentors}
}

// Create godoc
// @Summary Onboard a mentor
// @Tags Administration
// @Accept json
// @Produce json
// @Param payload body service.CreateMentorRequest true "Mentor payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /admin/mentors [post]
func (h *MentorHandler) Create(c *gin.Context) {
	var req service.CreateMentorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	mentor, err := h.mentors.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, mentor)
}

// Update godoc
// @Summary Update mentor details
// @Tags Administration
// @Accept json
// @Produce json
// @Param id path string true "Mentor ID"
// @Param payload body service.UpdateMentorRequest true "Mentor payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/mentors/{id} [put]
func (h *MentorHandler) Update(c *gin.Context) {
	var req service.UpdateMentorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	mentor, err := h.mentors.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, mentor, nil)
}

// Delete godoc
// @Summary Offboard a mentor
// @Tags Administration
// @Produce json
// @Param id path string true "Mentor ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/mentors/{id} [delete]
func (h *MentorHandler) Delete(c *gin.Context) {
	if err := h.mentors.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// List godoc
// @Summary List mentors
// @Tags Administration
// @Produce json
// @Param department query string false "Filter by department"
// @Success 200 {object} response.Envelope
// @Router /admin/mentors [get]
func (h *MentorHandler) List(c *gin.Context) {
	mentors, err := h.mentors.List(c.Request.Context(), models.MentorFilter{Department: c.Query("department")})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, mentors, nil)
}

// Get godoc
// @Summary Fetch one mentor
// @Tags Administration
// @Produce json
// @Param id path string true "Mentor ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/mentors/{id} [get]
func (h *MentorHandler) Get(c *gin.Context) {
	mentor, err := h.mentors.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, mentor, nil)
}
