package core

import (
	"context"
	"fmt"
	"io"

	"github.com/shopspring/decimal"
)

// Summary row labels in comparison exports.
const (
	LabelBidTotal = "Bid Total"
	labelVariance = "Variance %% (%s)"
)

// BidColumnNames returns one header per bid column. Bidder names shared by
// more than one bid get the bid id appended: "Acme (B-2)".
func BidColumnNames(bids []MatrixBid) []string {
	count := make(map[string]int, len(bids))
	for _, b := range bids {
		count[b.BidderName]++
	}
	names := make([]string, len(bids))
	for i, b := range bids {
		switch {
		case b.BidderName == "":
			names[i] = b.BidID
		case count[b.BidderName] > 1:
			names[i] = fmt.Sprintf("%s (%s)", b.BidderName, b.BidID)
		default:
			names[i] = b.BidderName
		}
	}
	return names
}

// comparisonGrid lays the matrix out as rows of cells: one row per item with
// the quoted rate or an empty cell, then the summary rows when there are
// bid columns.
func comparisonGrid(m *ComparisonMatrix) (header []string, rows [][]string) {
	header = append([]string{ColItemCode, ColDescription}, BidColumnNames(m.Bids)...)

	rows = make([][]string, 0, len(m.Items)+2)
	for _, it := range m.Items {
		row := make([]string, 0, len(header))
		row = append(row, it.ItemCode, it.Description)
		for _, b := range m.Bids {
			row = append(row, FormatNullDecimal(it.Rates[b.BidID]))
		}
		rows = append(rows, row)
	}

	if len(m.Bids) == 0 {
		return header, rows
	}

	totals := []string{"", LabelBidTotal}
	variances := []string{"", fmt.Sprintf(labelVariance, m.baselinePolicy().Label())}
	for _, b := range m.Bids {
		totals = append(totals, FormatDecimal(b.TotalAmount))
		variances = append(variances, b.Variance.String())
	}
	return header, append(rows, totals, variances)
}

func (m *ComparisonMatrix) baselinePolicy() BaselinePolicy {
	if m.Baseline == "" {
		return BaselineAverageOfBids
	}
	return m.Baseline
}

// ExportComparison writes the matrix as CSV through the BoQ codec's table
// writer. Apply variance first to fill the variance row.
func ExportComparison(w io.Writer, m *ComparisonMatrix) error {
	header, rows := comparisonGrid(m)
	return WriteTable(w, header, rows)
}

// Compare builds the tender's matrix and applies variance against policy.
// An empty policy selects the service default.
func (s *Service) Compare(ctx context.Context, tenderID string, policy BaselinePolicy) (*ComparisonMatrix, error) {
	m, err := s.BuildMatrix(ctx, tenderID)
	if err != nil {
		return nil, err
	}
	if policy == "" {
		policy = s.baseline
	}
	m.ApplyVariance(policy)
	return m, nil
}

// ExportComparison writes the tender's comparison in the given format.
func (s *Service) ExportComparison(ctx context.Context, tenderID string, policy BaselinePolicy, format Format, w io.Writer) error {
	m, err := s.Compare(ctx, tenderID, policy)
	if err != nil {
		return err
	}
	if format == FormatXLSX {
		return ExportComparisonXLSX(w, m)
	}
	return ExportComparison(w, m)
}

// ComparisonItem is one matrix row in a ComparisonResponse. Rates holds
// null for bids that did not quote the item.
type ComparisonItem struct {
	ItemCode          string                         `json:"item_code"`
	Description       string                         `json:"description"`
	Quantity          decimal.Decimal                `json:"quantity"`
	UOM               string                         `json:"uom"`
	EstimatedUnitRate decimal.Decimal                `json:"estimated_unit_rate"`
	EstimatedTotal    decimal.Decimal                `json:"estimated_total"`
	Rates             map[string]decimal.NullDecimal `json:"rates"`
}

// ComparisonBid is one bid column in a ComparisonResponse.
type ComparisonBid struct {
	BidID           string          `json:"bid_id"`
	BidderName      string          `json:"bidder_name"`
	Column          string          `json:"column"`
	Status          BidStatus       `json:"status"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	QuotedItems     int             `json:"quoted_items"`
	VariancePercent Variance        `json:"variance_percent"`
}

// ComparisonData is the payload of a successful comparison.
type ComparisonData struct {
	Items          []ComparisonItem    `json:"items"`
	Bids           []ComparisonBid     `json:"bids"`
	Baseline       BaselinePolicy      `json:"baseline"`
	BaselineAmount decimal.NullDecimal `json:"baseline_amount"`
	Faults         []Fault             `json:"faults,omitempty"`
}

// ComparisonResponse is the caller-facing result of a comparison request.
type ComparisonResponse struct {
	Status  string          `json:"status"` // "success" or "error"
	Data    *ComparisonData `json:"data,omitempty"`
	Message string          `json:"message,omitempty"`
	Code    string          `json:"code,omitempty"`
}

// MsgNoEligibleBids is the message for a tender with nothing to compare.
const MsgNoEligibleBids = "No valid bids found for this tender"

// GenerateBidComparison builds the comparison for a tender as a response
// value. Failures are reported in the response, not as an error.
func (s *Service) GenerateBidComparison(ctx context.Context, tenderID string, policy BaselinePolicy) ComparisonResponse {
	return NewComparisonResponse(s.Compare(ctx, tenderID, policy))
}

// NewComparisonResponse builds the response for a Compare call.
func NewComparisonResponse(m *ComparisonMatrix, err error) ComparisonResponse {
	if err != nil {
		um := MapError(err)
		return ComparisonResponse{Status: "error", Message: um.Message, Code: um.Code}
	}
	if m.Status == MatrixNoEligibleBids {
		return ComparisonResponse{Status: "error", Message: MsgNoEligibleBids, Code: msgNotFound.Code}
	}
	return ComparisonResponse{Status: "success", Data: NewComparisonData(m)}
}

// NewComparisonData converts a matrix to its response payload.
func NewComparisonData(m *ComparisonMatrix) *ComparisonData {
	cols := BidColumnNames(m.Bids)
	data := &ComparisonData{
		Items:          make([]ComparisonItem, len(m.Items)),
		Bids:           make([]ComparisonBid, len(m.Bids)),
		Baseline:       m.baselinePolicy(),
		BaselineAmount: m.BaselineAmount,
		Faults:         m.Faults,
	}
	for i, it := range m.Items {
		data.Items[i] = ComparisonItem{
			ItemCode:          it.ItemCode,
			Description:       it.Description,
			Quantity:          it.Quantity,
			UOM:               it.UOM,
			EstimatedUnitRate: it.EstimatedUnitRate,
			EstimatedTotal:    it.EstimatedTotal(),
			Rates:             it.Rates,
		}
	}
	for i, b := range m.Bids {
		data.Bids[i] = ComparisonBid{
			BidID:           b.BidID,
			BidderName:      b.BidderName,
			Column:          cols[i],
			Status:          b.Status,
			TotalAmount:     b.TotalAmount,
			QuotedItems:     b.Quoted,
			VariancePercent: b.Variance,
		}
	}
	return data
}
