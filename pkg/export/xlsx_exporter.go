package export

import (
	"bytes"
	"fmt"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
)

const (
	xlsxMinWidth = 10
	xlsxMaxWidth = 60
)

// XLSXExporter renders datasets as a single-sheet workbook with a frozen,
// styled header row.
type XLSXExporter struct {
	SheetName string
}

// NewXLSXExporter builds an exporter writing to the "Solicitacoes" sheet.
func NewXLSXExporter() *XLSXExporter {
	return &XLSXExporter{SheetName: "Solicitacoes"}
}

// Render encodes the dataset.
func (e *XLSXExporter) Render(data Dataset) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("xlsx requires at least one header")
	}
	sheet := e.SheetName
	if sheet == "" {
		sheet = "Sheet1"
	}

	file := excelize.NewFile()
	defer file.Close()
	if err := file.SetSheetName("Sheet1", sheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	headerStyle, err := file.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"4472C4"}},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("header style: %w", err)
	}

	widths := make([]int, len(data.Headers))
	for i, header := range data.Headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := file.SetCellValue(sheet, cell, header); err != nil {
			return nil, fmt.Errorf("write header: %w", err)
		}
		widths[i] = utf8.RuneCountInString(header)
	}
	first, _ := excelize.CoordinatesToCellName(1, 1)
	last, _ := excelize.CoordinatesToCellName(len(data.Headers), 1)
	if err := file.SetCellStyle(sheet, first, last, headerStyle); err != nil {
		return nil, fmt.Errorf("style header: %w", err)
	}

	for r, row := range data.Rows {
		for i, header := range data.Headers {
			value := row[header]
			cell, _ := excelize.CoordinatesToCellName(i+1, r+2)
			if err := file.SetCellValue(sheet, cell, value); err != nil {
				return nil, fmt.Errorf("write row %d: %w", r+1, err)
			}
			if n := utf8.RuneCountInString(value); n > widths[i] {
				widths[i] = n
			}
		}
	}

	for i, w := range widths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		width := w + 2
		if width < xlsxMinWidth {
			width = xlsxMinWidth
		}
		if width > xlsxMaxWidth {
			width = xlsxMaxWidth
		}
		if err := file.SetColWidth(sheet, col, col, float64(width)); err != nil {
			return nil, fmt.Errorf("column width: %w", err)
		}
	}

	if err := file.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return nil, fmt.Errorf("freeze header: %w", err)
	}

	buf := &bytes.Buffer{}
	if err := file.Write(buf); err != nil {
		return nil, fmt.Errorf("write xlsx: %w", err)
	}
	return buf.Bytes(), nil
}
