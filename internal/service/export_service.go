package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/campus-exit-api/internal/models"
	appErrors "github.com/noah-isme/campus-exit-api/pkg/errors"
	"github.com/noah-isme/campus-exit-api/pkg/export"
)

type slipRenderer interface {
	Render(slip export.PassSlip) ([]byte, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type requestQueries interface {
	ByID(ctx context.Context, requestID string) (*models.ExitRequest, error)
	DailyLog(ctx context.Context, college string, day time.Time) ([]models.ExitRequest, error)
}

// ExportService renders approved requests as printable pass slips and college
// daily logs as CSV. Both exports are feature-gated.
type ExportService struct {
	requests requestQueries
	slips    slipRenderer
	csv      csvRenderer
	logger   *zap.Logger

	slipsEnabled bool
	logEnabled   bool
}

// NewExportService constructs ExportService.
func NewExportService(requests requestQueries, slips slipRenderer, csv csvRenderer, logger *zap.Logger, slipsEnabled, logEnabled bool) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		requests:     requests,
		slips:        slips,
		csv:          csv,
		logger:       logger,
		slipsEnabled: slipsEnabled,
		logEnabled:   logEnabled,
	}
}

// PassSlip renders the printable slip for an approved or exited request.
func (s *ExportService) PassSlip(ctx context.Context, requestID string) ([]byte, error) {
	if !s.slipsEnabled {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "pass slip export is disabled")
	}

	record, err := s.requests.ByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if record.Status != models.StatusApproved && record.Status != models.StatusExitAllowed {
		return nil, appErrors.Clone(appErrors.ErrConflict, "only approved requests have a pass slip")
	}

	slip := export.PassSlip{
		RequestID:   record.ID,
		StudentID:   record.StudentID,
		StudentName: record.StudentName,
		College:     record.College,
		Course:      record.Course,
		Section:     record.Section,
		BatchName:   record.BatchName,
		Reason:      record.Reason,
		MentorName:  record.MentorName,
		RequestTime: record.RequestTime.Format("02 Jan 2006 15:04"),
	}
	if record.HODName != nil {
		slip.HODName = *record.HODName
	}
	if record.ApprovalTime != nil {
		slip.ApprovalTime = record.ApprovalTime.Format("02 Jan 2006 15:04")
	}

	pdf, err := s.slips.Render(slip)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pass slip")
	}
	return pdf, nil
}

// DailyLog renders a college's requests for one local day as CSV.
func (s *ExportService) DailyLog(ctx context.Context, college string, day time.Time) ([]byte, error) {
	if !s.logEnabled {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "daily log export is disabled")
	}

	records, err := s.requests.DailyLog(ctx, college, day)
	if err != nil {
		return nil, err
	}

	headers := []string{"request_id", "student_id", "student_name", "course", "section", "batch",
		"reason", "status", "mentor", "hod", "requested_at", "approved_at", "exited_at"}
	rows := make([]map[string]string, 0, len(records))
	for _, r := range records {
		row := map[string]string{
			"request_id":   r.ID,
			"student_id":   r.StudentID,
			"student_name": r.StudentName,
			"course":       r.Course,
			"section":      r.Section,
			"batch":        r.BatchName,
			"reason":       r.Reason,
			"status":       string(r.Status),
			"mentor":       r.MentorName,
			"requested_at": r.RequestTime.Format(time.RFC3339),
		}
		if r.HODName != nil {
			row["hod"] = *r.HODName
		}
		if r.ApprovalTime != nil {
			row["approved_at"] = r.ApprovalTime.Format(time.RFC3339)
		}
		if r.ExitMarkTime != nil {
			row["exited_at"] = r.ExitMarkTime.Format(time.RFC3339)
		}
		rows = append(rows, row)
	}

	data, err := s.csv.Render(export.Dataset{Headers: headers, Rows: rows})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render daily log")
	}

	s.logger.Info("daily log exported",
		zap.String("college", college),
		zap.String("day", day.Format("2006-01-02")),
		zap.Int("rows", len(rows)))
	return data, nil
}

// DailyLogFilename suggests a download filename for the CSV.
func DailyLogFilename(college string, day time.Time) string {
	return fmt.Sprintf("exit-log-%s-%s.csv", college, day.Format("2006-01-02"))
}
