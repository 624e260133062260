package core

import (
	"context"
	"io"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/JonMunkholm/tenderdesk/internal/logging"
)

// RateSheetColumns is the header of a bid rate sheet. An empty unit_rate
// means the item is not quoted.
var RateSheetColumns = []string{ColItemCode, ColUnitRate}

var rateFieldSpecs = []FieldSpec{
	{Name: ColItemCode, Type: FieldText, Required: true},
	{Name: ColUnitRate, Type: FieldNumeric},
}

// RateSheetTemplate returns an empty rate sheet: the header row only.
func RateSheetTemplate() string {
	return strings.Join(RateSheetColumns, ",") + "\n"
}

// RateRecord is one decoded rate sheet row.
type RateRecord struct {
	Row      int
	ItemCode string
	UnitRate string
}

func rateRecords(rows []rawRow, ragged bool) ([]RateRecord, []RowError) {
	idx, data, errs := decodeTable(rows, RateSheetColumns, ragged)
	if idx == nil {
		return nil, errs
	}
	recs := make([]RateRecord, 0, len(data))
	for _, row := range data {
		recs = append(recs, RateRecord{
			Row:      row.Row,
			ItemCode: row.Fields[idx[ColItemCode]],
			UnitRate: row.Fields[idx[ColUnitRate]],
		})
	}
	return recs, errs
}

// validateRateRecords checks cells and item_code uniqueness. It does not
// check that items exist; that needs the tender's current BoQ.
func validateRateRecords(recs []RateRecord) []RowError {
	var errs []RowError
	rows := make([]int, len(recs))
	codes := make([]string, len(recs))
	for i, rec := range recs {
		rows[i], codes[i] = rec.Row, rec.ItemCode
		values := map[string]string{ColItemCode: rec.ItemCode, ColUnitRate: rec.UnitRate}
		for _, spec := range rateFieldSpecs {
			if err := ValidateCell(values[spec.Name], spec); err != nil {
				errs = append(errs, RowError{Row: rec.Row, Field: spec.Name, Value: values[spec.Name], Message: err.Error()})
			}
		}
	}
	dupErrs, _ := duplicateCodes(rows, codes)
	return append(errs, dupErrs...)
}

// RateImportResult describes a committed rate sheet import.
type RateImportResult struct {
	ImportID    string          `json:"import_id"`
	BidID       string          `json:"bid_id"`
	TenderID    string          `json:"tender_id"`
	Quoted      int             `json:"quoted"`
	NotQuoted   int             `json:"not_quoted"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

// ImportBidRates replaces a bid's rate entries with a rate sheet and sets
// the bid total to the sum of quantity x unit rate over quoted items.
//
// Every item_code must exist in the tender's BoQ at the moment of the
// replacement. Only draft and submitted bids accept a rate sheet; later
// statuses fail with a *ConflictError.
func (s *Service) ImportBidRates(ctx context.Context, bidID string, src ImportSource) (*RateImportResult, error) {
	start := s.now()
	bid, err := s.store.GetBid(ctx, bidID)
	if err != nil {
		return nil, err
	}
	log := logging.WithFields(ctx, "tender_id", bid.TenderID, "bid_id", bidID, "file", src.Name)
	rec := ImportRecord{TenderID: bid.TenderID, BidID: bidID, Kind: ImportKindRates, FileName: src.Name}

	if !s.locks.tryLock(bid.TenderID) {
		err := &ConflictError{TenderID: bid.TenderID, Reason: "another import for this tender is in progress"}
		s.finishImport(ctx, rec, start, err)
		return nil, err
	}
	defer s.locks.unlock(bid.TenderID)

	if err := s.limiter.Acquire(ctx); err != nil {
		s.finishImport(ctx, rec, start, err)
		return nil, err
	}
	defer s.limiter.Release()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	rows, rowErrs, ragged, err := readTable(src, s.maxSize)
	if err != nil {
		s.finishImport(ctx, rec, start, err)
		return nil, err
	}
	recs, tableErrs := rateRecords(rows, ragged)
	rowErrs = append(rowErrs, tableErrs...)
	rowErrs = append(rowErrs, validateRateRecords(recs)...)
	rec.Rows = len(recs)
	if len(rowErrs) > 0 {
		verr := newValidationError(rowErrs)
		s.finishImport(ctx, rec, start, verr)
		return nil, verr
	}

	res := &RateImportResult{BidID: bidID, TenderID: bid.TenderID}
	update := func(b Bid, items []LineItem) ([]RateEntry, decimal.Decimal, error) {
		if !b.Status.RatesEditable() {
			return nil, decimal.Zero, &ConflictError{
				TenderID: b.TenderID,
				Reason:   "bid " + b.ID + " is " + string(b.Status) + " and its rates can no longer change",
			}
		}
		return buildRateEntries(b.ID, recs, items, res)
	}

	updated, err := s.store.ReplaceBidRates(ctx, bidID, update)
	if err != nil {
		s.finishImport(ctx, rec, start, err)
		return nil, err
	}
	res.TotalAmount = updated.TotalAmount
	res.ImportID = s.finishImport(ctx, rec, start, nil)

	log.Info("bid rates imported",
		"import_id", res.ImportID,
		"quoted", res.Quoted,
		"not_quoted", res.NotQuoted,
		"total_amount", res.TotalAmount.String(),
	)
	return res, nil
}

// buildRateEntries resolves validated rate records against the BoQ.
func buildRateEntries(bidID string, recs []RateRecord, items []LineItem, res *RateImportResult) ([]RateEntry, decimal.Decimal, error) {
	qty := make(map[string]decimal.Decimal, len(items))
	for _, it := range items {
		qty[it.ItemCode] = it.Quantity
	}

	var errs []RowError
	entries := make([]RateEntry, 0, len(recs))
	total := decimal.Zero
	res.Quoted, res.NotQuoted = 0, 0
	for _, r := range recs {
		q, ok := qty[r.ItemCode]
		if !ok {
			errs = append(errs, RowError{Row: r.Row, Field: ColItemCode, Value: r.ItemCode, Message: "item is not in the tender BoQ"})
			continue
		}
		entry := RateEntry{BidID: bidID, ItemCode: r.ItemCode}
		if r.UnitRate != "" {
			rate, _ := ParseNonNegative(r.UnitRate)
			entry.UnitRate = decimal.NewNullDecimal(rate)
			total = total.Add(q.Mul(rate))
			res.Quoted++
		} else {
			res.NotQuoted++
		}
		entries = append(entries, entry)
	}
	if len(errs) > 0 {
		return nil, decimal.Zero, newValidationError(errs)
	}
	return entries, total, nil
}

// ExportBidRates writes a bid's rate sheet with one row per BoQ item in
// import order; items the bid did not quote have an empty unit_rate.
func (s *Service) ExportBidRates(ctx context.Context, bidID string, w io.Writer) error {
	bid, err := s.store.GetBid(ctx, bidID)
	if err != nil {
		return err
	}
	snap, err := s.store.LoadTender(ctx, bid.TenderID)
	if err != nil {
		return err
	}

	var rates []RateEntry
	for _, b := range snap.Bids {
		if b.ID == bidID {
			rates = b.Rates
			break
		}
	}
	byCode := make(map[string]decimal.NullDecimal, len(rates))
	for _, re := range rates {
		if _, seen := byCode[re.ItemCode]; !seen {
			byCode[re.ItemCode] = re.UnitRate
		}
	}

	rows := make([][]string, len(snap.Items))
	for i, it := range snap.Items {
		rows[i] = []string{it.ItemCode, FormatNullDecimal(byCode[it.ItemCode])}
	}
	return WriteTable(w, RateSheetColumns, rows)
}
