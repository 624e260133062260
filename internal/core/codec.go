package core

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// BoQ exchange columns.
const (
	ColItemCode          = "item_code"
	ColDescription       = "description"
	ColQuantity          = "quantity"
	ColUOM               = "uom"
	ColEstimatedUnitRate = "estimated_unit_rate"
	ColUnitRate          = "unit_rate"
)

// BoQColumns is the canonical BoQ header, in the order EncodeBoQ writes it.
var BoQColumns = []string{ColItemCode, ColDescription, ColQuantity, ColUOM, ColEstimatedUnitRate}

// Record is one decoded, not yet validated, BoQ row. Values are trimmed.
type Record struct {
	Row               int
	ItemCode          string
	Description       string
	Quantity          string
	UOM               string
	EstimatedUnitRate string
}

// Field returns the value of the named column.
func (r Record) Field(name string) string {
	switch name {
	case ColItemCode:
		return r.ItemCode
	case ColDescription:
		return r.Description
	case ColQuantity:
		return r.Quantity
	case ColUOM:
		return r.UOM
	case ColEstimatedUnitRate:
		return r.EstimatedUnitRate
	}
	return ""
}

// rawRow is one record of a tabular file before it is mapped to columns.
type rawRow struct {
	Row    int
	Fields []string
}

// BoQTemplate returns an empty BoQ file: the header row only.
func BoQTemplate() string {
	return strings.Join(BoQColumns, ",") + "\n"
}

// DecodeBoQ parses a BoQ CSV file. Rows that cannot be decoded are reported
// as row errors and decoding carries on with the next row; the returned
// records are the rows that decoded cleanly. The error is non-nil only when
// r itself fails.
func DecodeBoQ(r io.Reader) ([]Record, []RowError, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, &IOError{Op: "read boq", Err: err}
	}
	recs, rowErrs := decodeBoQCSV(data)
	return recs, rowErrs, nil
}

func decodeBoQCSV(data []byte) ([]Record, []RowError) {
	rows, rowErrs := readCSV(sanitizeText(data))
	recs, tableErrs := boqRecords(rows, false)
	return recs, append(rowErrs, tableErrs...)
}

func boqRecords(rows []rawRow, ragged bool) ([]Record, []RowError) {
	idx, data, errs := decodeTable(rows, BoQColumns, ragged)
	if idx == nil {
		return nil, errs
	}
	recs := make([]Record, 0, len(data))
	for _, row := range data {
		recs = append(recs, Record{
			Row:               row.Row,
			ItemCode:          row.Fields[idx[ColItemCode]],
			Description:       row.Fields[idx[ColDescription]],
			Quantity:          row.Fields[idx[ColQuantity]],
			UOM:               row.Fields[idx[ColUOM]],
			EstimatedUnitRate: row.Fields[idx[ColEstimatedUnitRate]],
		})
	}
	return recs, errs
}

// readCSV splits data into records. Quoted fields may hold commas, doubled
// quotes and line breaks. A record with broken quoting becomes a row error
// and reading resumes after it.
func readCSV(data []byte) ([]rawRow, []RowError) {
	cr := csv.NewReader(bytes.NewReader(data))
	cr.FieldsPerRecord = -1

	var rows []rawRow
	var errs []RowError
	for n := 1; ; n++ {
		fields, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				errs = append(errs, RowError{Row: n, Message: "malformed CSV: " + pe.Err.Error()})
				continue
			}
			errs = append(errs, RowError{Row: n, Message: "malformed CSV: " + err.Error()})
			break
		}
		rows = append(rows, rawRow{Row: n, Fields: fields})
	}
	return rows, errs
}

// decodeTable checks the header row against columns and returns the data
// rows whose field count matches it, with every value trimmed. Header
// problems return a nil index. When ragged is set, short rows are padded and
// trailing empty cells dropped, as spreadsheets store rows without their
// empty tail.
func decodeTable(rows []rawRow, columns []string, ragged bool) (HeaderIndex, []rawRow, []RowError) {
	if len(rows) == 0 {
		return nil, nil, []RowError{{Row: 1, Message: "empty file: header row is missing"}}
	}
	if rows[0].Row != 1 {
		// row 1 failed to parse and is already reported
		return nil, nil, nil
	}

	idx, errs := matchHeader(rows[0].Fields, columns)
	if len(errs) > 0 {
		return nil, nil, errs
	}

	width := len(rows[0].Fields)
	if ragged {
		width = len(columns)
	}

	data := make([]rawRow, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if isEmptyRow(row.Fields) {
			continue
		}
		fields := row.Fields
		if ragged {
			fields = fitWidth(fields, width)
		}
		if len(fields) != width {
			errs = append(errs, RowError{
				Row:     row.Row,
				Message: fmt.Sprintf("expected %d fields, found %d", width, len(fields)),
			})
			continue
		}
		cleaned := make([]string, len(fields))
		for i, f := range fields {
			cleaned[i] = strings.TrimSpace(f)
		}
		data = append(data, rawRow{Row: row.Row, Fields: cleaned})
	}
	return idx, data, errs
}

// matchHeader maps each expected column to its position. The header must
// name every column exactly once and nothing else.
func matchHeader(header []string, columns []string) (HeaderIndex, []RowError) {
	want := make(map[string]bool, len(columns))
	for _, c := range columns {
		want[c] = true
	}

	idx := make(HeaderIndex, len(header))
	var errs []RowError
	for i, h := range header {
		name := normalizeName(h)
		if name == "" {
			errs = append(errs, RowError{Row: 1, Message: fmt.Sprintf("column %d has no name", i+1)})
			continue
		}
		if !want[name] {
			errs = append(errs, RowError{Row: 1, Field: strings.TrimSpace(h), Message: "unknown column"})
			continue
		}
		if _, dup := idx[name]; dup {
			errs = append(errs, RowError{Row: 1, Field: name, Message: "duplicate column"})
			continue
		}
		idx[name] = i
	}
	for _, c := range columns {
		if _, ok := idx[c]; !ok {
			errs = append(errs, RowError{Row: 1, Field: c, Message: "missing required column"})
		}
	}
	return idx, errs
}

// fitWidth pads a spreadsheet row to width cells, or drops empty cells past
// width. A row with content past width is returned as is.
func fitWidth(fields []string, width int) []string {
	if len(fields) < width {
		padded := make([]string, width)
		copy(padded, fields)
		return padded
	}
	if len(fields) > width && isEmptyRow(fields[width:]) {
		return fields[:width]
	}
	return fields
}

func isEmptyRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// EncodeBoQ writes items as a BoQ CSV file: the canonical header, then one
// row per item in the given order.
func EncodeBoQ(w io.Writer, items []LineItem) error {
	rows, err := boqRows(items)
	if err != nil {
		return err
	}
	return WriteTable(w, BoQColumns, rows)
}

// boqRows renders items in canonical form. Decoding trims every field, so
// text with leading or trailing whitespace cannot be written canonically and
// is refused with a *ValidationError naming the item's row.
func boqRows(items []LineItem) ([][]string, error) {
	rows := make([][]string, len(items))
	var errs []RowError
	for i, it := range items {
		rows[i] = []string{
			it.ItemCode,
			it.Description,
			FormatDecimal(it.Quantity),
			it.UOM,
			FormatDecimal(it.EstimatedUnitRate),
		}
		for c, v := range rows[i] {
			if v != strings.TrimSpace(v) {
				errs = append(errs, RowError{Row: i + 2, Field: BoQColumns[c], Value: v, Message: "leading or trailing whitespace"})
			}
		}
	}
	if len(errs) > 0 {
		return nil, newValidationError(errs)
	}
	return rows, nil
}

// EncodeBoQString is EncodeBoQ into a string.
func EncodeBoQString(items []LineItem) (string, error) {
	var b strings.Builder
	if err := EncodeBoQ(&b, items); err != nil {
		return "", err
	}
	return b.String(), nil
}

// WriteTable writes a header and rows as CSV with "\n" line endings. Fields
// are quoted only when they hold a comma, a quote or a line break.
func WriteTable(w io.Writer, header []string, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return &IOError{Op: "write table", Err: err}
	}
	if err := cw.WriteAll(rows); err != nil {
		return &IOError{Op: "write table", Err: err}
	}
	return nil
}
