package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// TranscriptLine is one released grade row on a transcript.
type TranscriptLine struct {
	Term   string
	Course string
	Title  string
	Grade  string
}

// TranscriptDocument carries everything needed to render a transcript PDF.
type TranscriptDocument struct {
	StudentName string
	GeneratedAt time.Time
	Lines       []TranscriptLine

	// Official marks the document as issued; VerificationCode is
	// stamped on official transcripts only.
	Official         bool
	VerificationCode string
	IssuedAt         *time.Time
}

// TranscriptPDFExporter renders transcript documents.
type TranscriptPDFExporter struct{}

// NewTranscriptPDFExporter builds a transcript PDF exporter.
func NewTranscriptPDFExporter() *TranscriptPDFExporter {
	return &TranscriptPDFExporter{}
}

// Render produces the PDF bytes for the given document.
func (e *TranscriptPDFExporter) Render(doc TranscriptDocument) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 20, 15)
	pdf.AddPage()

	title := "Unofficial Transcript"
	if doc.Official {
		title = "Official Transcript"
	}
	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(0, 10, title, "", 1, "C", false, 0, "")
	pdf.Ln(2)

	pdf.SetFont("Arial", "", 11)
	pdf.CellFormat(0, 6, fmt.Sprintf("Student: %s", doc.StudentName), "", 1, "", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Generated: %s", doc.GeneratedAt.UTC().Format("2006-01-02 15:04")), "", 1, "", false, 0, "")
	if doc.Official {
		pdf.CellFormat(0, 6, fmt.Sprintf("Verification code: %s", doc.VerificationCode), "", 1, "", false, 0, "")
		if doc.IssuedAt != nil {
			pdf.CellFormat(0, 6, fmt.Sprintf("Issued: %s", doc.IssuedAt.UTC().Format("2006-01-02 15:04")), "", 1, "", false, 0, "")
		}
	}
	pdf.Ln(4)

	widths := []float64{40, 30, 80, 30}
	headers := []string{"Term", "Course", "Title", "Grade"}
	pdf.SetFont("Arial", "B", 10)
	for i, header := range headers {
		pdf.CellFormat(widths[i], 8, header, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 10)
	for _, line := range doc.Lines {
		pdf.CellFormat(widths[0], 7, line.Term, "1", 0, "", false, 0, "")
		pdf.CellFormat(widths[1], 7, line.Course, "1", 0, "", false, 0, "")
		pdf.CellFormat(widths[2], 7, line.Title, "1", 0, "", false, 0, "")
		pdf.CellFormat(widths[3], 7, line.Grade, "1", 0, "C", false, 0, "")
		pdf.Ln(-1)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render transcript pdf: %w", err)
	}
	return buf.Bytes(), nil
}
