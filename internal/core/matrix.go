package core

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/JonMunkholm/tenderdesk/internal/logging"
)

// MatrixStatus tells callers whether a matrix has bid columns.
type MatrixStatus string

const (
	MatrixReady          MatrixStatus = "ready"
	MatrixNoEligibleBids MatrixStatus = "no_eligible_bids"
)

// totalTolerance is how far a bid's stated total may drift from the sum of
// its extended rates before it is reported.
var totalTolerance = decimal.New(1, -2)

// MatrixItem is one row of the comparison matrix. Rates has an entry for
// every bid column; an invalid NullDecimal means the bid did not quote.
type MatrixItem struct {
	LineItem
	Rates map[string]decimal.NullDecimal
}

// Rate returns the bid's quoted rate for this item and whether one exists.
func (it MatrixItem) Rate(bidID string) (decimal.Decimal, bool) {
	r := it.Rates[bidID]
	return r.Decimal, r.Valid
}

// MatrixBid is one bid column of the comparison matrix.
type MatrixBid struct {
	BidID       string
	BidderName  string
	Status      BidStatus
	TotalAmount decimal.Decimal
	Quoted      int // items with a rate
	Variance    Variance
}

// FaultKind classifies an internal consistency fault found while building
// a matrix.
type FaultKind string

const (
	FaultOrphanRate    FaultKind = "orphan_rate"    // rate for an item not in the BoQ
	FaultDuplicateRate FaultKind = "duplicate_rate" // two rates for one item
	FaultTotalMismatch FaultKind = "total_mismatch" // stated total differs from rates
	FaultNegativeValue FaultKind = "negative_value" // negative rate or total
)

// Fault is a consistency problem in stored data. The matrix is still built;
// faults are logged and listed so they are never lost silently.
type Fault struct {
	Kind     FaultKind `json:"kind"`
	BidID    string    `json:"bid_id,omitempty"`
	ItemCode string    `json:"item_code,omitempty"`
	Detail   string    `json:"detail"`
}

// ComparisonMatrix is the item-by-bid pricing grid for one tender. Items
// keep the BoQ import order.
type ComparisonMatrix struct {
	TenderID       string
	Status         MatrixStatus
	Items          []MatrixItem
	Bids           []MatrixBid
	Baseline       BaselinePolicy
	BaselineAmount decimal.NullDecimal
	Faults         []Fault
}

// EstimateTotal is the sum of the items' estimated totals.
func (m *ComparisonMatrix) EstimateTotal() decimal.Decimal {
	total := decimal.Zero
	for _, it := range m.Items {
		total = total.Add(it.EstimatedTotal())
	}
	return total
}

// BuildMatrix loads one consistent snapshot of the tender and joins its
// line items with every comparable bid (submitted, under review or
// awarded). A tender without comparable bids yields a matrix with status
// MatrixNoEligibleBids and no error.
func (s *Service) BuildMatrix(ctx context.Context, tenderID string) (*ComparisonMatrix, error) {
	snap, err := s.store.LoadTender(ctx, tenderID)
	if err != nil {
		return nil, err
	}

	m := NewMatrix(snap)
	if len(m.Faults) > 0 {
		log := logging.WithFields(ctx, "tender_id", tenderID)
		for _, f := range m.Faults {
			log.Warn("comparison data inconsistency",
				slog.String("kind", string(f.Kind)),
				slog.String("bid_id", f.BidID),
				slog.String("item_code", f.ItemCode),
				slog.String("detail", f.Detail),
			)
			s.observer.MatrixFault(f.Kind)
		}
	}
	s.observer.ComparisonBuilt(m.Status)
	return m, nil
}

// NewMatrix builds the comparison matrix from a snapshot.
func NewMatrix(snap *TenderSnapshot) *ComparisonMatrix {
	m := &ComparisonMatrix{
		TenderID: snap.Tender.ID,
		Status:   MatrixReady,
		Items:    make([]MatrixItem, len(snap.Items)),
	}

	itemIdx := make(map[string]int, len(snap.Items))
	for i, li := range snap.Items {
		itemIdx[li.ItemCode] = i
		m.Items[i] = MatrixItem{LineItem: li, Rates: make(map[string]decimal.NullDecimal)}
	}

	bids := comparableBids(snap.Bids)
	if len(bids) == 0 {
		m.Status = MatrixNoEligibleBids
	}

	for _, b := range bids {
		col := MatrixBid{
			BidID:       b.ID,
			BidderName:  b.BidderName,
			Status:      b.Status,
			TotalAmount: b.TotalAmount,
		}
		for i := range m.Items {
			m.Items[i].Rates[b.ID] = decimal.NullDecimal{}
		}

		extended := decimal.Zero
		seen := make(map[string]bool, len(b.Rates))
		for _, re := range b.Rates {
			i, ok := itemIdx[re.ItemCode]
			if !ok {
				m.fault(FaultOrphanRate, b.ID, re.ItemCode, "rate references an item that is not in the BoQ")
				continue
			}
			if seen[re.ItemCode] {
				m.fault(FaultDuplicateRate, b.ID, re.ItemCode, "more than one rate for the item; the first is used")
				continue
			}
			seen[re.ItemCode] = true
			if !re.UnitRate.Valid {
				continue
			}
			if re.UnitRate.Decimal.IsNegative() {
				m.fault(FaultNegativeValue, b.ID, re.ItemCode, "negative unit rate "+re.UnitRate.Decimal.String())
			}
			m.Items[i].Rates[b.ID] = re.UnitRate
			col.Quoted++
			extended = extended.Add(m.Items[i].Quantity.Mul(re.UnitRate.Decimal))
		}

		if b.TotalAmount.IsNegative() {
			m.fault(FaultNegativeValue, b.ID, "", "negative total amount "+b.TotalAmount.String())
		}
		if len(m.Items) > 0 && col.Quoted == len(m.Items) &&
			b.TotalAmount.Sub(extended).Abs().GreaterThan(totalTolerance) {
			m.fault(FaultTotalMismatch, b.ID, "", fmt.Sprintf(
				"total amount %s differs from sum of extended rates %s", b.TotalAmount, extended))
		}

		m.Bids = append(m.Bids, col)
	}
	return m
}

func (m *ComparisonMatrix) fault(kind FaultKind, bidID, itemCode, detail string) {
	m.Faults = append(m.Faults, Fault{Kind: kind, BidID: bidID, ItemCode: itemCode, Detail: detail})
}

// comparableBids filters bids to the comparable statuses, ordered by
// submission time then id so columns are stable across builds.
func comparableBids(all []Bid) []Bid {
	var bids []Bid
	for _, b := range all {
		if b.Status.Comparable() {
			bids = append(bids, b)
		}
	}
	sort.SliceStable(bids, func(i, j int) bool {
		if !bids[i].SubmittedAt.Equal(bids[j].SubmittedAt) {
			return bids[i].SubmittedAt.Before(bids[j].SubmittedAt)
		}
		return bids[i].ID < bids[j].ID
	})
	return bids
}
