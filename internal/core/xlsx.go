package core

// xlsx.go carries the BoQ exchange format and the comparison grid in Excel
// workbooks. The first worksheet is read; cells are read raw so numbers
// come back exactly as stored. Numeric cells are written as numbers when
// float64 holds the decimal exactly, and as text otherwise, so an exported
// workbook always imports back to the same values.

import (
	"bytes"
	"io"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const (
	sheetBoQ        = "BoQ"
	sheetComparison = "Comparison"
	defaultSheet    = "Sheet1"
)

// DecodeBoQXLSX parses a BoQ workbook with the same rules as DecodeBoQ.
func DecodeBoQXLSX(r io.Reader) ([]Record, []RowError, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, &IOError{Op: "read boq workbook", Err: err}
	}
	rows, rowErrs := readXLSX(data)
	recs, tableErrs := boqRecords(rows, true)
	return recs, append(rowErrs, tableErrs...), nil
}

// readXLSX returns the rows of the first worksheet. Empty rows come back
// as empty slices and keep their row numbers.
func readXLSX(data []byte) ([]rawRow, []RowError) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, []RowError{{Row: 1, Message: "not a readable xlsx workbook: " + err.Error()}}
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, []RowError{{Row: 1, Message: "empty file: workbook has no worksheets"}}
	}
	cells, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, []RowError{{Row: 1, Message: "not a readable xlsx workbook: " + err.Error()}}
	}

	rows := make([]rawRow, 0, len(cells))
	for i, c := range cells {
		rows = append(rows, rawRow{Row: i + 1, Fields: c})
	}
	return rows, nil
}

// EncodeBoQXLSX writes items as a BoQ workbook with the canonical header.
func EncodeBoQXLSX(w io.Writer, items []LineItem) error {
	rows, err := boqRows(items)
	if err != nil {
		return err
	}
	numeric := func(col int) bool { return col == 2 || col == 4 }
	return writeWorkbook(w, sheetBoQ, BoQColumns, rows, numeric)
}

// ExportComparisonXLSX writes the comparison grid as a workbook.
func ExportComparisonXLSX(w io.Writer, m *ComparisonMatrix) error {
	header, rows := comparisonGrid(m)
	numeric := func(col int) bool { return col >= 2 }
	return writeWorkbook(w, sheetComparison, header, rows, numeric)
}

// writeWorkbook writes a single-sheet workbook with a bold, frozen header.
func writeWorkbook(w io.Writer, sheet string, header []string, rows [][]string, numeric func(col int) bool) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(defaultSheet, sheet); err != nil {
		return &IOError{Op: "create workbook", Err: err}
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#D9E1F2"}, Pattern: 1},
	})
	if err != nil {
		return &IOError{Op: "create workbook", Err: err}
	}

	cells := make([]interface{}, len(header))
	for i, h := range header {
		cells[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &cells); err != nil {
		return &IOError{Op: "write workbook", Err: err}
	}
	lastCol, _ := excelize.ColumnNumberToName(len(header))
	if err := f.SetCellStyle(sheet, "A1", lastCol+"1", headerStyle); err != nil {
		return &IOError{Op: "write workbook", Err: err}
	}
	if err := f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return &IOError{Op: "write workbook", Err: err}
	}

	for r, row := range rows {
		for c, value := range row {
			if value == "" {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(c+1, r+2)
			if err != nil {
				return &IOError{Op: "write workbook", Err: err}
			}
			if err := setCell(f, sheet, cell, value, numeric(c)); err != nil {
				return &IOError{Op: "write workbook", Err: err}
			}
		}
	}

	if err := f.SetColWidth(sheet, "B", "B", 48); err != nil {
		return &IOError{Op: "write workbook", Err: err}
	}
	if err := f.Write(w); err != nil {
		return &IOError{Op: "write workbook", Err: err}
	}
	return nil
}

// setCell writes value as a number when numeric is set and float64 holds it
// exactly, otherwise as text.
func setCell(f *excelize.File, sheet, cell, value string, numeric bool) error {
	if numeric {
		if d, err := decimal.NewFromString(value); err == nil {
			fv := d.InexactFloat64()
			if decimal.NewFromFloat(fv).Equal(d) {
				return f.SetCellFloat(sheet, cell, fv, -1, 64)
			}
		}
	}
	return f.SetCellStr(sheet, cell, value)
}
