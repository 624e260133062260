package core

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Sentinels for errors.Is. Each typed error below matches exactly one.
var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
	ErrIO         = errors.New("i/o failure")
)

// RowError is a problem with one row (or the header) of an imported file.
type RowError struct {
	Row     int    `json:"row"`             // 1-based record number, header is row 1
	Field   string `json:"field,omitempty"` // column name, empty for whole-row problems
	Value   string `json:"value,omitempty"` // the offending value
	Message string `json:"message"`
}

func (e RowError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("row %d: %s: %s", e.Row, e.Field, e.Message)
	}
	return fmt.Sprintf("row %d: %s", e.Row, e.Message)
}

// ValidationError rejects an import as a whole. Errors is never empty and
// is ordered by row.
type ValidationError struct {
	Errors []RowError
}

func newValidationError(errs []RowError) *ValidationError {
	sortRowErrors(errs)
	return &ValidationError{Errors: errs}
}

func (e *ValidationError) Error() string {
	const shown = 3
	parts := make([]string, 0, shown)
	for i, re := range e.Errors {
		if i == shown {
			break
		}
		parts = append(parts, re.Error())
	}
	msg := fmt.Sprintf("validation failed: %d row error(s): %s", len(e.Errors), strings.Join(parts, "; "))
	if len(e.Errors) > shown {
		msg += "; ..."
	}
	return msg
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// NotFoundError reports a missing tender, bid or item.
type NotFoundError struct {
	Kind string // "tender", "bid", "item"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// ConflictError reports an operation the tender's current state forbids,
// or a collision with another import in flight.
type ConflictError struct {
	TenderID string
	Reason   string
}

func (e *ConflictError) Error() string {
	if e.TenderID == "" {
		return "conflict: " + e.Reason
	}
	return fmt.Sprintf("conflict on tender %q: %s", e.TenderID, e.Reason)
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// IOError wraps a failure reading or writing the underlying text resource.
type IOError struct {
	Op  string
	Err error
}

func (e *IOError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *IOError) Unwrap() error { return e.Err }

func (e *IOError) Is(target error) bool { return target == ErrIO }

// RowErrors returns the row-level problems carried by err, if any.
func RowErrors(err error) []RowError {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Errors
	}
	return nil
}

func sortRowErrors(errs []RowError) {
	sort.SliceStable(errs, func(i, j int) bool {
		return errs[i].Row < errs[j].Row
	})
}
