package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/campus-exit-api/internal/service"
	appErrors "github.com/noah-isme/campus-exit-api/pkg/errors"
	"github.com/noah-isme/campus-exit-api/pkg/response"
)

// ExportHandler serves pass slips and daily CSV logs.
type ExportHandler struct {
	exports *service.ExportService
}

// NewExportHandler constructs handler.
func NewExportHandler(exports *service.ExportService) *ExportHandler {
	return &ExportHandler{exports: exports}
}

// PassSlip godoc
// @Summary Download the printable pass slip for an approved request
// @Tags Exports
// @Produce application/pdf
// @Param id path string true "Request ID"
// @Success 200 {file} binary
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /requests/{id}/slip [get]
func (h *ExportHandler) PassSlip(c *gin.Context) {
	requestID := c.Param("id")
	pdf, err := h.exports.PassSlip(c.Request.Context(), requestID)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="exit-pass-%s.pdf"`, requestID))
	c.Data(http.StatusOK, "application/pdf", pdf)
}

// DailyLog godoc
// @Summary Download a college's daily exit log as CSV
// @Tags Exports
// @Produce text/csv
// @Param college query string true "College code"
// @Param date query string false "Day (YYYY-MM-DD), defaults to today"
// @Success 200 {file} binary
// @Failure 400 {object} response.Envelope
// @Router /admin/exports/daily-log [get]
func (h *ExportHandler) DailyLog(c *gin.Context) {
	college := c.Query("college")
	if college == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "college is required"))
		return
	}

	day := time.Now()
	if raw := c.Query("date"); raw != "" {
		parsed, err := time.ParseInLocation("2006-01-02", raw, time.Local)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "date must be YYYY-MM-DD"))
			return
		}
		day = parsed
	}

	data, err := h.exports.DailyLog(c.Request.Context(), college, day)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, service.DailyLogFilename(college, day)))
	c.Data(http.StatusOK, "text/csv", data)
}
