package alerts

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/good-yellow-bee/pondview/internal/models"
)

const exportSheet = "Alerts"

var exportHeaders = []string{"池號", "事件類型", "描述", "發生時間", "結束時間", "狀態", "通知次數", "最後通知時間"}

var exportWidths = []float64{8, 12, 48, 20, 20, 10, 10, 20}

// Export writes every cached alert, not just the current page, to w as an
// xlsx workbook.
func (t *Table) Export(w io.Writer) error {
	return WriteWorkbook(w, t.Alerts())
}

// WriteWorkbook writes alerts to w as an xlsx workbook with a frozen header row.
func WriteWorkbook(w io.Writer, alerts []models.Alert) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	header := make([]any, len(exportHeaders))
	for i, h := range exportHeaders {
		header[i] = h
	}
	if err := f.SetSheetRow(exportSheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	last, err := excelize.CoordinatesToCellName(len(exportHeaders), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(exportSheet, "A1", last, headerStyle); err != nil {
		return fmt.Errorf("set header style: %w", err)
	}

	for i, width := range exportWidths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(exportSheet, col, col, width); err != nil {
			return fmt.Errorf("set column width: %w", err)
		}
	}

	for i, a := range alerts {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []any{
			a.Pool,
			a.Type,
			a.Description,
			orDash(a.Time),
			orDash(a.EndTime),
			a.DisplayStatus(),
			a.NotifyCount,
			orDash(a.NotifiedAt),
		}
		if err := f.SetSheetRow(exportSheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	if err := f.SetPanes(exportSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("freeze header: %w", err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
