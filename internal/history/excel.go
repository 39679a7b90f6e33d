package history

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// sheetWriter appends rows to one worksheet at a time.
type sheetWriter struct {
	file         *excelize.File
	currentSheet string
	currentRow   int
}

func newSheetWriter() *sheetWriter {
	return &sheetWriter{file: excelize.NewFile()}
}

// NameSheet renames the workbook's single sheet and moves the cursor to
// its first row.
func (w *sheetWriter) NameSheet(name string) error {
	// Excel limit
	if len(name) > 31 {
		name = name[:31]
	}

	old := w.currentSheet
	if old == "" {
		old = "Sheet1"
	}
	if err := w.file.SetSheetName(old, name); err != nil {
		return fmt.Errorf("rename sheet %s: %w", name, err)
	}

	w.currentSheet = name
	w.currentRow = 1
	return nil
}

// WriteHeader writes bold column headers, freezes them and sizes the columns.
func (w *sheetWriter) WriteHeader(columns []string, widths []float64) error {
	if err := w.WriteRow(toRow(columns)); err != nil {
		return err
	}

	style, err := w.file.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err == nil {
		start, _ := excelize.CoordinatesToCellName(1, 1)
		end, _ := excelize.CoordinatesToCellName(len(columns), 1)
		_ = w.file.SetCellStyle(w.currentSheet, start, end, style)
	}

	for i, width := range widths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := w.file.SetColWidth(w.currentSheet, col, col, width); err != nil {
			return err
		}
	}

	return w.file.SetPanes(w.currentSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

// WriteRow writes a row at the cursor and advances it.
func (w *sheetWriter) WriteRow(row []interface{}) error {
	if w.currentSheet == "" {
		return fmt.Errorf("no active sheet")
	}

	cell, err := excelize.CoordinatesToCellName(1, w.currentRow)
	if err != nil {
		return err
	}
	if err := w.file.SetSheetRow(w.currentSheet, cell, &row); err != nil {
		return err
	}

	w.currentRow++
	return nil
}

func (w *sheetWriter) Save(wr io.Writer) error {
	return w.file.Write(wr)
}

func (w *sheetWriter) Close() error {
	return w.file.Close()
}

func toRow(values []string) []interface{} {
	row := make([]interface{}, len(values))
	for i, v := range values {
		row[i] = v
	}
	return row
}
