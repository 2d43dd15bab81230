package report

import (
	"strconv"

	"github.com/xuri/excelize/v2"
)

const sheetName = "Attendance Report"

var (
	spreadsheetHeaders = []string{"S.No", "Faculty Name", "Username", "Department", "Status", "Scan Time"}
	columnWidths       = []float64{8, 25, 15, 20, 12, 20}
)

// BuildSpreadsheet renders the summary as an XLSX workbook: a title row,
// one row per participant (present first) and a summary block.
func BuildSpreadsheet(s Summary) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return nil, err
	}

	title, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 16},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return nil, err
	}
	header, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"CCCCCC"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return nil, err
	}
	present, err := f.NewStyle(&excelize.Style{Fill: excelize.Fill{Type: "pattern", Color: []string{"E6FFE6"}, Pattern: 1}})
	if err != nil {
		return nil, err
	}
	absent, err := f.NewStyle(&excelize.Style{Fill: excelize.Fill{Type: "pattern", Color: []string{"FFE6E6"}, Pattern: 1}})
	if err != nil {
		return nil, err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}

	if err := f.SetCellValue(sheetName, "A1", s.Subject()); err != nil {
		return nil, err
	}
	if err := f.MergeCell(sheetName, "A1", "F1"); err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(sheetName, "A1", "F1", title); err != nil {
		return nil, err
	}

	if err := f.SetSheetRow(sheetName, "A3", &spreadsheetHeaders); err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(sheetName, "A3", "F3", header); err != nil {
		return nil, err
	}

	row := 4
	writeRow := func(values []interface{}, style int) error {
		start, _ := excelize.CoordinatesToCellName(1, row)
		end, _ := excelize.CoordinatesToCellName(len(spreadsheetHeaders), row)
		if err := f.SetSheetRow(sheetName, start, &values); err != nil {
			return err
		}
		row++
		return f.SetCellStyle(sheetName, start, end, style)
	}
	n := 1
	for _, e := range s.Present {
		if err := writeRow([]interface{}{n, e.User.DisplayName(), e.User.Username, department(e.User), "Present", s.ScanTime(e.ScannedAt)}, present); err != nil {
			return nil, err
		}
		n++
	}
	for _, u := range s.Absent {
		if err := writeRow([]interface{}{n, u.DisplayName(), u.Username, department(u), "Absent", "N/A"}, absent); err != nil {
			return nil, err
		}
		n++
	}

	row += 2
	summary := []string{
		"Summary",
		"Total Faculty: " + strconv.Itoa(s.Total()),
		"Present: " + strconv.Itoa(len(s.Present)),
		"Absent: " + strconv.Itoa(len(s.Absent)),
		"Attendance Rate: " + s.RateString(),
	}
	for i, line := range summary {
		cell, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetCellValue(sheetName, cell, line); err != nil {
			return nil, err
		}
		if i == 0 {
			if err := f.SetCellStyle(sheetName, cell, cell, bold); err != nil {
				return nil, err
			}
		}
		row++
	}

	for i, w := range columnWidths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetColWidth(sheetName, col, col, w); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
