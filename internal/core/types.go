package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TenderStatus is the lifecycle state of a tender.
type TenderStatus string

const (
	TenderDraft      TenderStatus = "draft"
	TenderOpen       TenderStatus = "open"
	TenderEvaluation TenderStatus = "evaluation"
	TenderAwarded    TenderStatus = "awarded"
	TenderCancelled  TenderStatus = "cancelled"
)

var tenderStatuses = []TenderStatus{TenderDraft, TenderOpen, TenderEvaluation, TenderAwarded, TenderCancelled}

// ParseTenderStatus parses a tender status name (case-insensitive).
func ParseTenderStatus(s string) (TenderStatus, error) {
	v := TenderStatus(strings.ToLower(strings.TrimSpace(s)))
	for _, st := range tenderStatuses {
		if v == st {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown tender status %q", s)
}

// BidStatus is the lifecycle state of a bid.
type BidStatus string

const (
	BidDraft       BidStatus = "draft"
	BidSubmitted   BidStatus = "submitted"
	BidUnderReview BidStatus = "under_review"
	BidAwarded     BidStatus = "awarded"
	BidRejected    BidStatus = "rejected"
)

var bidStatuses = []BidStatus{BidDraft, BidSubmitted, BidUnderReview, BidAwarded, BidRejected}

// ParseBidStatus parses a bid status name. Spaces and hyphens are read as
// underscores, so "Under Review" parses as BidUnderReview.
func ParseBidStatus(s string) (BidStatus, error) {
	v := BidStatus(normalizeName(s))
	for _, st := range bidStatuses {
		if v == st {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown bid status %q", s)
}

// Comparable reports whether bids in this status take part in comparisons.
func (s BidStatus) Comparable() bool {
	switch s {
	case BidSubmitted, BidUnderReview, BidAwarded:
		return true
	}
	return false
}

// RatesEditable reports whether a bid's rate sheet may still be replaced.
// From UnderReview onwards a bid only changes status.
func (s BidStatus) RatesEditable() bool {
	return s == BidDraft || s == BidSubmitted
}

// Tender is a procurement round soliciting bids against a BoQ.
type Tender struct {
	ID     string       `json:"id"`
	Title  string       `json:"title"`
	Status TenderStatus `json:"status"`
}

// LineItem is one priced work item of a tender's BoQ.
type LineItem struct {
	ItemCode          string          `json:"item_code"`
	Description       string          `json:"description"`
	Quantity          decimal.Decimal `json:"quantity"`
	UOM               string          `json:"uom"`
	EstimatedUnitRate decimal.Decimal `json:"estimated_unit_rate"`
}

// EstimatedTotal is the engineer's estimate for the item.
func (li LineItem) EstimatedTotal() decimal.Decimal {
	return li.Quantity.Mul(li.EstimatedUnitRate)
}

// RateEntry is one bidder's quoted unit rate for one line item.
// An invalid UnitRate means the item was not quoted; a valid zero is a
// quoted zero.
type RateEntry struct {
	BidID    string              `json:"bid_id"`
	ItemCode string              `json:"item_code"`
	UnitRate decimal.NullDecimal `json:"unit_rate"`
}

// Bid is one bidder's price submission for a tender.
type Bid struct {
	ID          string          `json:"id"`
	TenderID    string          `json:"tender_id"`
	BidderName  string          `json:"bidder_name"`
	Status      BidStatus       `json:"status"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	SubmittedAt time.Time       `json:"submitted_at"`
	Rates       []RateEntry     `json:"rates,omitempty"`
}

// TenderSnapshot is one consistent read of a tender with its line items in
// import order and all of its bids with their rate entries.
type TenderSnapshot struct {
	Tender Tender
	Items  []LineItem
	Bids   []Bid
}

// ReplaceStats describes what an item replacement discarded.
type ReplaceStats struct {
	Removed       int // line items absent from the new set
	OrphanedRates int // rate entries dropped with them
}

// ImportGuard decides whether a tender's BoQ may be replaced. It runs inside
// the store's critical section, against the state the replacement will
// overwrite. Returning an error aborts the replacement.
type ImportGuard func(t Tender, bids []Bid) error

// RateUpdate builds a bid's new rate entries and total from the bid and the
// tender's current line items. It runs inside the store's critical section.
type RateUpdate func(bid Bid, items []LineItem) ([]RateEntry, decimal.Decimal, error)

// Store is the persistence collaborator. Implementations must make
// ReplaceItems atomic with respect to LoadTender: a snapshot holds either
// the old item set with its rates or the new one, never a mix.
type Store interface {
	ListTenders(ctx context.Context, statuses []TenderStatus) ([]Tender, error)
	GetTender(ctx context.Context, tenderID string) (Tender, error)
	LoadTender(ctx context.Context, tenderID string) (*TenderSnapshot, error)
	GetBid(ctx context.Context, bidID string) (Bid, error)

	ReplaceItems(ctx context.Context, tenderID string, items []LineItem, guard ImportGuard) (ReplaceStats, error)
	ReplaceBidRates(ctx context.Context, bidID string, update RateUpdate) (Bid, error)

	RecordImport(ctx context.Context, rec ImportRecord) error
	ListImports(ctx context.Context, tenderID string, limit int) ([]ImportRecord, error)
	PurgeImports(ctx context.Context, before time.Time) (int64, error)
}

// ImportKind distinguishes the files that can be imported.
type ImportKind string

const (
	ImportKindBoQ   ImportKind = "boq"
	ImportKindRates ImportKind = "rates"
)

// ImportStatus is the outcome of one import attempt.
type ImportStatus string

const (
	ImportSucceeded ImportStatus = "success"
	ImportRejected  ImportStatus = "rejected" // validation or conflict
	ImportFailed    ImportStatus = "failed"   // store or I/O failure
)

// ImportRecord is one entry of a tender's import history.
type ImportRecord struct {
	ID         string       `json:"id"`
	TenderID   string       `json:"tender_id"`
	BidID      string       `json:"bid_id,omitempty"`
	Kind       ImportKind   `json:"kind"`
	FileName   string       `json:"file_name,omitempty"`
	Status     ImportStatus `json:"status"`
	Rows       int          `json:"rows"`
	Message    string       `json:"message,omitempty"`
	RemoteAddr string       `json:"remote_addr,omitempty"`
	CreatedAt  time.Time    `json:"created_at"`
}

// Format identifies a tabular file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ParseFormat parses a format name; empty means CSV.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "csv", "text/csv":
		return FormatCSV, nil
	case "xlsx", "excel", xlsxContentType:
		return FormatXLSX, nil
	}
	return "", fmt.Errorf("unknown format %q", s)
}

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ContentType is the MIME type of files in this format.
func (f Format) ContentType() string {
	if f == FormatXLSX {
		return xlsxContentType
	}
	return "text/csv; charset=utf-8"
}

// Ext is the file extension for the format, with the dot.
func (f Format) Ext() string {
	if f == FormatXLSX {
		return ".xlsx"
	}
	return ".csv"
}

// FormatFromFileName picks a format from a file extension, defaulting to CSV.
func FormatFromFileName(name string) Format {
	if strings.HasSuffix(strings.ToLower(name), ".xlsx") {
		return FormatXLSX
	}
	return FormatCSV
}
