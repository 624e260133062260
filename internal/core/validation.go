package core

// validation.go enforces BoQ business rules on decoded records.
//
// Validation happens at two levels:
//  1. Cell validation: each value is checked against its FieldSpec
//     (required, numeric, non-negative)
//  2. Set validation: item_code must be unique across the whole file
//
// Every problem is collected; the caller rejects the file if any exist.

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// FieldType represents the expected data type for a column.
type FieldType int

const (
	FieldText FieldType = iota
	FieldNumeric
)

// FieldSpec defines validation rules for a single column.
type FieldSpec struct {
	Name       string    // normalized column name
	Type       FieldType // expected data type
	Required   bool      // value must be non-empty
	AllowEmpty bool      // empty numeric value reads as zero
}

// boqFieldSpecs drives ValidateBoQ.
var boqFieldSpecs = []FieldSpec{
	{Name: ColItemCode, Type: FieldText, Required: true},
	{Name: ColDescription, Type: FieldText, Required: true},
	{Name: ColQuantity, Type: FieldNumeric, Required: true},
	{Name: ColUOM, Type: FieldText, Required: true},
	{Name: ColEstimatedUnitRate, Type: FieldNumeric, AllowEmpty: true},
}

// ValidateCell validates a single value against a field specification.
func ValidateCell(value string, spec FieldSpec) error {
	if value == "" {
		if spec.Required && !spec.AllowEmpty {
			return fmt.Errorf("required field is empty")
		}
		return nil
	}
	if spec.Type == FieldNumeric {
		if _, err := ParseNonNegative(value); err != nil {
			return err
		}
	}
	return nil
}

// ValidateBoQ checks decoded records and converts the valid ones to line
// items, in input order. Any returned error means the set must be rejected
// as a whole; the items are returned so callers can report what did parse.
func ValidateBoQ(records []Record) ([]LineItem, []RowError) {
	var errs []RowError
	items := make([]LineItem, 0, len(records))
	valid := make([]bool, len(records))

	for i, rec := range records {
		ok := true
		for _, spec := range boqFieldSpecs {
			value := rec.Field(spec.Name)
			if err := ValidateCell(value, spec); err != nil {
				ok = false
				errs = append(errs, RowError{Row: rec.Row, Field: spec.Name, Value: value, Message: err.Error()})
			}
		}
		valid[i] = ok
	}

	rows := make([]int, len(records))
	codes := make([]string, len(records))
	for i, rec := range records {
		rows[i], codes[i] = rec.Row, rec.ItemCode
	}
	dupErrs, dup := duplicateCodes(rows, codes)
	errs = append(errs, dupErrs...)

	for i, rec := range records {
		if !valid[i] || dup[rec.ItemCode] {
			continue
		}
		items = append(items, toLineItem(rec))
	}

	sortRowErrors(errs)
	return items, errs
}

// duplicateCodes reports each row whose item_code appears more than once,
// citing every row that shares it. rows and codes are parallel.
func duplicateCodes(rows []int, codes []string) ([]RowError, map[string]bool) {
	rowsByCode := make(map[string][]int)
	for i, code := range codes {
		if code == "" {
			continue
		}
		rowsByCode[code] = append(rowsByCode[code], rows[i])
	}

	var errs []RowError
	dup := make(map[string]bool)
	for i, code := range codes {
		shared := rowsByCode[code]
		if len(shared) < 2 {
			continue
		}
		dup[code] = true
		errs = append(errs, RowError{
			Row:     rows[i],
			Field:   ColItemCode,
			Value:   code,
			Message: "duplicate item_code (rows " + joinInts(shared) + ")",
		})
	}
	return errs, dup
}

// toLineItem converts a record that passed ValidateCell for every spec.
func toLineItem(rec Record) LineItem {
	qty, _ := ParseNonNegative(rec.Quantity)
	rate := decimal.Zero
	if rec.EstimatedUnitRate != "" {
		rate, _ = ParseNonNegative(rec.EstimatedUnitRate)
	}
	return LineItem{
		ItemCode:          rec.ItemCode,
		Description:       rec.Description,
		Quantity:          qty,
		UOM:               rec.UOM,
		EstimatedUnitRate: rate,
	}
}

func joinInts(ns []int) string {
	parts := make([]string, len(ns))
	for i, n := range ns {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ", ")
}
