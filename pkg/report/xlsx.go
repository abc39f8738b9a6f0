package report

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

const (
	summarySheet    = "Summary"
	executionsSheet = "Executions"
	failBgColor     = "FFC7CE"
	headerBgColor   = "DDEBF7"
	// responses slower than this are highlighted
	slowThresholdMs = 300
	slowBgColor     = "FFEB9C"
)

var executionHeaders = []string{
	"#", "Step", "Method", "Request", "Status", "Code", "Time (ms)",
	"Assertion", "Description", "Result", "Message",
}

// RenderXLSX writes a workbook with a summary sheet and one row per
// assertion on the executions sheet.
func RenderXLSX(w io.Writer, rep *Report) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(executionsSheet); err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	header, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{headerBgColor}},
	})
	fail, _ := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{failBgColor}},
	})
	slow, _ := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{slowBgColor}},
	})

	st := rep.Run.Stats
	summary := [][]any{
		{"Scenario", rep.Collection.Info.Name},
		{"Requests", st.Requests.Total},
		{"Failed requests", st.Requests.Failed},
		{"Assertions", st.Assertions.Total},
		{"Failed assertions", st.Assertions.Failed},
		{"Success rate (%)", rep.Run.SuccessRate},
		{"Average response (ms)", rep.Run.Timings.ResponseAverage},
		{"Min response (ms)", rep.Run.Timings.ResponseMin},
		{"Max response (ms)", rep.Run.Timings.ResponseMax},
	}
	for i, row := range summary {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(summarySheet, cell, &row); err != nil {
			return fmt.Errorf("write summary: %w", err)
		}
	}
	f.SetColWidth(summarySheet, "A", "A", 24)
	f.SetColWidth(summarySheet, "B", "B", 40)

	if err := f.SetSheetRow(executionsSheet, "A1", &executionHeaders); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	last, _ := excelize.ColumnNumberToName(len(executionHeaders))
	f.SetCellStyle(executionsSheet, "A1", last+"1", header)
	f.SetColWidth(executionsSheet, "B", "B", 24)
	f.SetColWidth(executionsSheet, "D", "D", 40)
	f.SetColWidth(executionsSheet, "H", "I", 30)
	f.SetColWidth(executionsSheet, "K", "K", 50)

	row := 2
	for i, ex := range rep.Run.Executions {
		list := ex.Assertions
		if len(list) == 0 {
			list = []Assertion{{}}
		}
		for _, a := range list {
			result, msg := "", ""
			switch {
			case a.Assertion == "":
			case a.Error != nil:
				result, msg = "FAIL", a.Error.Message
			default:
				result = "PASS"
			}
			values := []any{
				i + 1, ex.Item.Name, ex.Request.Method, ex.Request.URL,
				ex.Response.Status, ex.Response.Code, ex.Response.ResponseTime,
				a.Assertion, a.Description, result, msg,
			}
			first, _ := excelize.CoordinatesToCellName(1, row)
			end, _ := excelize.CoordinatesToCellName(len(values), row)
			if err := f.SetSheetRow(executionsSheet, first, &values); err != nil {
				return fmt.Errorf("write execution row: %w", err)
			}
			if a.Error != nil {
				f.SetCellStyle(executionsSheet, first, end, fail)
			} else if ex.Response.ResponseTime > slowThresholdMs {
				f.SetCellStyle(executionsSheet, first, end, slow)
			}
			row++
		}
	}
	f.SetActiveSheet(0)

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
