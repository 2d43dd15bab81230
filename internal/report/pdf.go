package report

import (
	"bytes"
	"strconv"

	"github.com/go-pdf/fpdf"
)

type rgb struct{ r, g, b int }

var (
	pdfHeaderFill  = rgb{128, 128, 128}
	pdfPresentFill = rgb{144, 238, 144}
	pdfAbsentFill  = rgb{240, 128, 128}
	pdfSummaryFill = rgb{173, 216, 230}
)

// BuildPDF renders the summary as an A4 document with present and absent
// tables and a summary table. Pages break automatically.
func BuildPDF(s Summary) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(s.Subject(), true)
	pdf.SetAutoPageBreak(true, 15)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 12, tr(s.Subject()), "", 1, "C", false, 0, "")
	pdf.Ln(8)

	if len(s.Present) > 0 {
		heading(pdf, "Present Faculty")
		widths := []float64{12, 55, 35, 45, 35}
		tableRow(pdf, widths, []string{"S.No", "Faculty Name", "Username", "Department", "Scan Time"}, pdfHeaderFill, true)
		for i, e := range s.Present {
			tableRow(pdf, widths, []string{
				strconv.Itoa(i + 1), tr(e.User.DisplayName()), tr(e.User.Username), tr(department(e.User)), s.ScanTime(e.ScannedAt),
			}, pdfPresentFill, false)
		}
		pdf.Ln(8)
	}

	if len(s.Absent) > 0 {
		heading(pdf, "Absent Faculty")
		widths := []float64{12, 65, 45, 60}
		tableRow(pdf, widths, []string{"S.No", "Faculty Name", "Username", "Department"}, pdfHeaderFill, true)
		for i, u := range s.Absent {
			tableRow(pdf, widths, []string{
				strconv.Itoa(i + 1), tr(u.DisplayName()), tr(u.Username), tr(department(u)),
			}, pdfAbsentFill, false)
		}
		pdf.Ln(8)
	}

	heading(pdf, "Summary")
	widths := []float64{60, 40}
	for _, kv := range [][]string{
		{"Total Faculty", strconv.Itoa(s.Total())},
		{"Present", strconv.Itoa(len(s.Present))},
		{"Absent", strconv.Itoa(len(s.Absent))},
		{"Attendance Rate", s.RateString()},
	} {
		tableRow(pdf, widths, kv, pdfSummaryFill, true)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func heading(pdf *fpdf.Fpdf, text string) {
	pdf.SetTextColor(0, 0, 0)
	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 10, text, "", 1, "L", false, 0, "")
}

func tableRow(pdf *fpdf.Fpdf, widths []float64, cells []string, fill rgb, bold bool) {
	style := ""
	if bold {
		style = "B"
	}
	pdf.SetFont("Helvetica", style, 10)
	pdf.SetFillColor(fill.r, fill.g, fill.b)
	if fill == pdfHeaderFill {
		pdf.SetTextColor(245, 245, 245)
	} else {
		pdf.SetTextColor(0, 0, 0)
	}
	for i, c := range cells {
		pdf.CellFormat(widths[i], 8, c, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)
}
