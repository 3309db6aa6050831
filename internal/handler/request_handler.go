package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/campus-exit-api/internal/service"
	appErrors "github.com/noah-isme/campus-exit-api/pkg/errors"
	"github.com/noah-isme/campus-exit-api/pkg/response"
)

// RequestHandler exposes the exit-request workflow endpoints.
type RequestHandler struct {
	requests *service.RequestService
}

// NewRequestHandler constructs handler.
func NewRequestHandler(requests *service.RequestService) *RequestHandler {
	return &RequestHandler{requests: requests}
}

// Create godoc
// @Summary Submit an exit request
// @Description Create a new exit request for the authenticated student
// @Tags Requests
// @Accept json
// @Produce json
// @Param payload body service.CreateExitRequest true "Request payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 429 {object} response.Envelope
// @Router /requests [post]
func (h *RequestHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.CreateExitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	req.StudentID = claims.UserID

	record, err := h.requests.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, record)
}

// MyToday godoc
// @Summary List my requests created today
// @Tags Requests
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /requests/my/today [get]
func (h *RequestHandler) MyToday(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	requests, err := h.requests.TodayForStudent(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, requests, nil)
}

// MyHistory godoc
// @Summary List my request history
// @Tags Requests
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /requests/my [get]
func (h *RequestHandler) MyHistory(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	requests, err := h.requests.HistoryForStudent(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, requests, nil)
}

// Delete godoc
// @Summary Withdraw a pending request
// @Description Delete the caller's own request while it still awaits the mentor
// @Tags Requests
// @Produce json
// @Param id path string true "Request ID"
// @Success 204 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /requests/{id} [delete]
func (h *RequestHandler) Delete(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.requests.DeletePending(c.Request.Context(), c.Param("id"), claims.UserID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Get godoc
// @Summary Fetch one request
// @Tags Requests
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /requests/{id} [get]
func (h *RequestHandler) Get(c *gin.Context) {
	record, err := h.requests.ByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// MentorQueue godoc
// @Summary List requests awaiting the mentor
// @Tags Mentor stage
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /requests/mentor/pending [get]
func (h *RequestHandler) MentorQueue(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	requests, err := h.requests.PendingForMentor(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, requests, nil)
}

// MentorApprove godoc
// @Summary Approve a request as mentor
// @Tags Mentor stage
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param payload body service.MentorDecisionRequest false "Decision details"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /requests/{id}/mentor/approve [post]
func (h *RequestHandler) MentorApprove(c *gin.Context) {
	h.mentorDecide(c, true)
}

// MentorReject godoc
// @Summary Reject a request as mentor
// @Tags Mentor stage
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param payload body service.MentorDecisionRequest false "Decision details"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /requests/{id}/mentor/reject [post]
func (h *RequestHandler) MentorReject(c *gin.Context) {
	h.mentorDecide(c, false)
}

func (h *RequestHandler) mentorDecide(c *gin.Context, approve bool) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.MentorDecisionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
			return
		}
	}
	req.MentorID = claims.UserID
	req.Approve = approve

	record, err := h.requests.MentorDecide(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// HODQueue godoc
// @Summary List mentor-cleared requests awaiting the HOD
// @Tags HOD stage
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /requests/hod/pending [get]
func (h *RequestHandler) HODQueue(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	requests, err := h.requests.PendingForHOD(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, requests, nil)
}

// HODDecided godoc
// @Summary List requests the HOD has processed
// @Tags HOD stage
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /requests/hod/decided [get]
func (h *RequestHandler) HODDecided(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	requests, err := h.requests.DecidedByHOD(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, requests, nil)
}

// HODApprove godoc
// @Summary Approve a request as HOD
// @Tags HOD stage
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /requests/{id}/hod/approve [post]
func (h *RequestHandler) HODApprove(c *gin.Context) {
	h.hodDecide(c, true)
}

// HODReject godoc
// @Summary Reject a request as HOD
// @Tags HOD stage
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /requests/{id}/hod/reject [post]
func (h *RequestHandler) HODReject(c *gin.Context) {
	h.hodDecide(c, false)
}

func (h *RequestHandler) hodDecide(c *gin.Context, approve bool) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	req := service.HODDecisionRequest{HODID: claims.UserID, Approve: approve}
	record, err := h.requests.HODDecide(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// GuardQueue godoc
// @Summary List today's approved requests for the guard's college gate
// @Tags Guard stage
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /requests/guard/approved [get]
func (h *RequestHandler) GuardQueue(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	requests, err := h.requests.ApprovedForGuard(c.Request.Context(), claims.College)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, requests, nil)
}

// MarkExit godoc
// @Summary Mark an approved request as exited
// @Tags Guard stage
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /requests/{id}/exit [post]
func (h *RequestHandler) MarkExit(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	record, err := h.requests.MarkLeft(c.Request.Context(), c.Param("id"), claims.College)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// ListAll godoc
// @Summary List every exit request
// @Tags Administration
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /requests [get]
func (h *RequestHandler) ListAll(c *gin.Context) {
	requests, err := h.requests.All(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, requests, nil)
}

// Sweep godoc
// @Summary Run the expiry sweep on demand
// @Tags Administration
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /requests/sweep [post]
func (h *RequestHandler) Sweep(c *gin.Context) {
	demoted := h.requests.Sweep(c.Request.Context())
	response.JSON(c, http.StatusOK, gin.H{"demoted": demoted}, nil)
}
