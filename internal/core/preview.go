package core

import (
	"context"
	"sort"
	"time"
)

// PreviewSummary contains the summary counts for a BoQ preview.
type PreviewSummary struct {
	TotalRows       int `json:"total_rows"`
	NewItems        int `json:"new_items"`
	ChangedItems    int `json:"changed_items"`
	UnchangedItems  int `json:"unchanged_items"`
	RemovedItems    int `json:"removed_items"`
	OrphanedRates   int `json:"orphaned_rates"`
	ErrorRows       int `json:"error_rows"`
	DuplicateInFile int `json:"duplicate_in_file"`
}

// RowPreview represents a single row for preview display.
type RowPreview struct {
	Row      int               `json:"row"`
	ItemCode string            `json:"item_code"`
	Values   map[string]string `json:"values"`
}

// UpdateDiff represents a before/after diff for an item the import changes.
type UpdateDiff struct {
	Row      int               `json:"row"`
	ItemCode string            `json:"item_code"`
	Current  map[string]string `json:"current"`
	Incoming map[string]string `json:"incoming"`
	Changed  []string          `json:"changed"`
}

// ErrorPreview lists every problem found on one row.
type ErrorPreview struct {
	Row      int      `json:"row"`
	ItemCode string   `json:"item_code,omitempty"`
	Errors   []string `json:"errors"`
}

// DuplicatePreview represents an item code that appears on several rows.
type DuplicatePreview struct {
	ItemCode string `json:"item_code"`
	Rows     []int  `json:"rows"`
}

// PreviewResponse is the complete result of a BoQ preview.
type PreviewResponse struct {
	Valid            bool               `json:"valid"`
	Summary          PreviewSummary     `json:"summary"`
	NewItemSamples   []RowPreview       `json:"new_item_samples"`
	UpdateDiffs      []UpdateDiff       `json:"update_diffs"`
	RemovedSamples   []string           `json:"removed_samples"`
	ErrorSamples     []ErrorPreview     `json:"error_samples"`
	DuplicateSamples []DuplicatePreview `json:"duplicate_samples"`
	ProcessingTimeMs int64              `json:"processing_time_ms"`
}

// Sample limits
const (
	maxNewItemSamples   = 10
	maxUpdateDiffs      = 10
	maxRemovedSamples   = 20
	maxErrorSamples     = 20
	maxDuplicateSamples = 10
)

// PreviewBoQ performs a read-only analysis of a BoQ file against the
// tender's current items: what an ImportBoQ of the same file would add,
// change and remove, and why it would be rejected if it would.
func (s *Service) PreviewBoQ(ctx context.Context, tenderID string, src ImportSource) (*PreviewResponse, error) {
	snap, err := s.store.LoadTender(ctx, tenderID)
	if err != nil {
		return nil, err
	}
	return AnalyzeBoQ(src, snap, s.maxSize)
}

// AnalyzeBoQ previews src against current, which may be nil for a tender
// with no items. maxBytes <= 0 selects DefaultMaxFileSize.
func AnalyzeBoQ(src ImportSource, current *TenderSnapshot, maxBytes int64) (*PreviewResponse, error) {
	startTime := time.Now()

	rows, rowErrs, ragged, err := readTable(src, maxBytes)
	if err != nil {
		return nil, err
	}
	records, tableErrs := boqRecords(rows, ragged)
	items, valErrs := ValidateBoQ(records)

	allErrs := append(append(rowErrs, tableErrs...), valErrs...)
	sortRowErrors(allErrs)

	resp := &PreviewResponse{Valid: len(allErrs) == 0}

	// Group errors by row
	codeAt := make(map[int]string, len(records))
	dataRows := make(map[int]bool, len(records))
	for _, rec := range records {
		codeAt[rec.Row] = rec.ItemCode
		dataRows[rec.Row] = true
	}
	var errRows []ErrorPreview
	for _, re := range allErrs {
		if re.Row > 1 {
			dataRows[re.Row] = true
		}
		if n := len(errRows); n > 0 && errRows[n-1].Row == re.Row {
			errRows[n-1].Errors = append(errRows[n-1].Errors, fieldMessage(re))
			continue
		}
		errRows = append(errRows, ErrorPreview{Row: re.Row, ItemCode: codeAt[re.Row], Errors: []string{fieldMessage(re)}})
	}
	resp.Summary.TotalRows = len(dataRows)
	for _, ep := range errRows {
		if ep.Row > 1 {
			resp.Summary.ErrorRows++
		}
	}
	if len(errRows) > maxErrorSamples {
		errRows = errRows[:maxErrorSamples]
	}
	resp.ErrorSamples = errRows

	// Track file duplicates
	rowsByCode := make(map[string][]int)
	var codes []string
	for _, rec := range records {
		if rec.ItemCode == "" {
			continue
		}
		if _, seen := rowsByCode[rec.ItemCode]; !seen {
			codes = append(codes, rec.ItemCode)
		}
		rowsByCode[rec.ItemCode] = append(rowsByCode[rec.ItemCode], rec.Row)
	}
	for _, code := range codes {
		lines := rowsByCode[code]
		if len(lines) < 2 {
			continue
		}
		resp.Summary.DuplicateInFile += len(lines) - 1
		if len(resp.DuplicateSamples) < maxDuplicateSamples {
			resp.DuplicateSamples = append(resp.DuplicateSamples, DuplicatePreview{ItemCode: code, Rows: lines})
		}
	}

	// Classify valid items against the current BoQ
	existing := make(map[string]LineItem)
	if current != nil {
		for _, it := range current.Items {
			existing[it.ItemCode] = it
		}
	}
	rowOf := make(map[string]int, len(records))
	for _, rec := range records {
		if _, ok := rowOf[rec.ItemCode]; !ok {
			rowOf[rec.ItemCode] = rec.Row
		}
	}

	for _, it := range items {
		incoming := itemValues(it)
		cur, ok := existing[it.ItemCode]
		if !ok {
			resp.Summary.NewItems++
			if len(resp.NewItemSamples) < maxNewItemSamples {
				resp.NewItemSamples = append(resp.NewItemSamples, RowPreview{
					Row:      rowOf[it.ItemCode],
					ItemCode: it.ItemCode,
					Values:   incoming,
				})
			}
			continue
		}

		currentMap := itemValues(cur)
		var changed []string
		for _, col := range BoQColumns {
			if currentMap[col] != incoming[col] {
				changed = append(changed, col)
			}
		}
		if len(changed) == 0 {
			resp.Summary.UnchangedItems++
			continue
		}
		resp.Summary.ChangedItems++
		if len(resp.UpdateDiffs) < maxUpdateDiffs {
			resp.UpdateDiffs = append(resp.UpdateDiffs, UpdateDiff{
				Row:      rowOf[it.ItemCode],
				ItemCode: it.ItemCode,
				Current:  currentMap,
				Incoming: incoming,
				Changed:  changed,
			})
		}
	}

	// Items absent from the file are removed, with their rates
	if current != nil {
		removed := make(map[string]bool)
		for _, it := range current.Items {
			if _, inFile := rowsByCode[it.ItemCode]; inFile {
				continue
			}
			removed[it.ItemCode] = true
			resp.Summary.RemovedItems++
			if len(resp.RemovedSamples) < maxRemovedSamples {
				resp.RemovedSamples = append(resp.RemovedSamples, it.ItemCode)
			}
		}
		for _, b := range current.Bids {
			for _, re := range b.Rates {
				if removed[re.ItemCode] {
					resp.Summary.OrphanedRates++
				}
			}
		}
	}

	sort.SliceStable(resp.NewItemSamples, func(i, j int) bool {
		return resp.NewItemSamples[i].Row < resp.NewItemSamples[j].Row
	})
	resp.ProcessingTimeMs = time.Since(startTime).Milliseconds()
	return resp, nil
}

func fieldMessage(re RowError) string {
	if re.Field == "" {
		return re.Message
	}
	return re.Field + ": " + re.Message
}

// itemValues renders an item's columns in canonical form.
func itemValues(it LineItem) map[string]string {
	return map[string]string{
		ColItemCode:          it.ItemCode,
		ColDescription:       it.Description,
		ColQuantity:          FormatDecimal(it.Quantity),
		ColUOM:               it.UOM,
		ColEstimatedUnitRate: FormatDecimal(it.EstimatedUnitRate),
	}
}
