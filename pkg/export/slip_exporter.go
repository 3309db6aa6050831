package export

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
)

// PassSlip carries the fields printed on a gate-pass slip.
type PassSlip struct {
	RequestID    string
	StudentID    string
	StudentName  string
	College      string
	Course       string
	Section      string
	BatchName    string
	Reason       string
	MentorName   string
	HODName      string
	RequestTime  string
	ApprovalTime string
}

// SlipExporter renders an approved exit request as a printable PDF slip.
type SlipExporter struct{}

// NewSlipExporter constructs a slip exporter.
func NewSlipExporter() *SlipExporter {
	return &SlipExporter{}
}

// Render produces the PDF bytes for a single pass slip.
func (e *SlipExporter) Render(slip PassSlip) ([]byte, error) {
	if slip.RequestID == "" {
		return nil, fmt.Errorf("slip requires a request id")
	}

	pdf := gofpdf.New("P", "mm", "A5", "")
	pdf.SetMargins(12, 14, 12)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(0, 10, "CAMPUS EXIT PASS", "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 9)
	pdf.CellFormat(0, 6, fmt.Sprintf("Pass No. %s", slip.RequestID), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	rows := [][2]string{
		{"Student", fmt.Sprintf("%s (%s)", slip.StudentName, slip.StudentID)},
		{"College", slip.College},
		{"Course / Section", fmt.Sprintf("%s / %s", slip.Course, slip.Section)},
		{"Batch", slip.BatchName},
		{"Reason", slip.Reason},
		{"Mentor", slip.MentorName},
		{"Approved by", slip.HODName},
		{"Requested at", slip.RequestTime},
		{"Approved at", slip.ApprovalTime},
	}

	for _, row := range rows {
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(42, 8, row[0], "1", 0, "", false, 0, "")
		pdf.SetFont("Arial", "", 10)
		pdf.CellFormat(0, 8, row[1], "1", 1, "", false, 0, "")
	}

	pdf.Ln(10)
	pdf.SetFont("Arial", "I", 8)
	pdf.CellFormat(0, 5, "Present this slip to the gate guard. Valid for the day of approval only.", "", 1, "C", false, 0, "")

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pass slip: %w", err)
	}
	return buf.Bytes(), nil
}
