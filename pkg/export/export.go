// Package export implements supplemented feature #3: a censored
// spreadsheet export of one table. The package applies no access
// filtering of its own: it renders a table that the caller has already
// pruned and censored, and only leaves CENSORED cells blank. Grounded on the teacher's
// `pkg/resource/excel_source.go` writer idiom (NewFile/NewSheet/
// SetCellValue/DeleteSheet), repurposed from a live Excel-as-database
// adapter into a one-shot workbook writer.
package export

import (
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/xuri/excelize/v2"

	"github.com/kasuganosora/gacengine/pkg/docmodel"
	"github.com/kasuganosora/gacengine/pkg/visibility"
)

// Exporter renders a censored table snapshot to an excelize workbook.
// The caller is expected to have already produced the filtered table
// (e.g. via bundle.Controller.FilterData) — this package only owns
// the spreadsheet rendering, not the access decision.
type Exporter struct {
	sheetName string
}

// NewExporter returns an Exporter that writes its single data sheet
// under sheetName ("Sheet1" if empty).
func NewExporter(sheetName string) *Exporter {
	if sheetName == "" {
		sheetName = "Sheet1"
	}
	return &Exporter{sheetName: sheetName}
}

// WriteTable renders t as a workbook: the first row holds column
// headers in a stable (sorted) order, each subsequent row one record.
// A blank cell (censored or simply absent) is left empty rather than
// written as the literal sentinel string, matching how a spreadsheet
// reader expects a missing value to look.
func (e *Exporter) WriteTable(t *docmodel.Table) (*excelize.File, error) {
	f := excelize.NewFile()

	sheetIndex, err := f.NewSheet(e.sheetName)
	if err != nil {
		return nil, fmt.Errorf("export: create sheet %q: %w", e.sheetName, err)
	}
	f.SetActiveSheet(sheetIndex)
	if err := f.DeleteSheet("Sheet1"); err != nil && e.sheetName != "Sheet1" {
		return nil, fmt.Errorf("export: drop default sheet: %w", err)
	}

	cols := make([]string, 0, len(t.Columns))
	for col := range t.Columns {
		cols = append(cols, col)
	}
	sort.Strings(cols)

	for colIdx, col := range cols {
		cell, err := excelize.CoordinatesToCellName(colIdx+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(e.sheetName, cell, col); err != nil {
			return nil, fmt.Errorf("export: write header %q: %w", col, err)
		}
	}

	for rowIdx := range t.RowIDs {
		for colIdx, col := range cols {
			vals := t.Columns[col]
			if rowIdx >= len(vals) {
				continue
			}
			val := vals[rowIdx]
			if val == nil {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			if err != nil {
				return nil, err
			}
			if s, ok := val.(string); ok && s == visibility.CensoredSentinel {
				continue
			}
			if err := f.SetCellValue(e.sheetName, cell, val); err != nil {
				return nil, fmt.Errorf("export: write cell %s: %w", cell, err)
			}
		}
	}

	return f, nil
}

// WriteTableTo renders t and streams the workbook bytes to w.
func (e *Exporter) WriteTableTo(t *docmodel.Table, w io.Writer) error {
	f, err := e.WriteTable(t)
	if err != nil {
		return err
	}
	return f.Write(w)
}

// rowLabel builds a cell reference string such as "A2" from a column
// letter and a row number, without going through excelize.
func rowLabel(col string, row int) string {
	return col + strconv.Itoa(row)
}
