package templates

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/JonMunkholm/tenderdesk/internal/core"
)

func sampleData() ReportData {
	return ReportData{
		TenderID: "T-1",
		Comparison: &core.ComparisonData{
			Items: []core.ComparisonItem{{
				ItemCode: "A1", Description: "Excavation & fill",
				Quantity: decimal.NewFromInt(100), UOM: "m3", EstimatedUnitRate: decimal.NewFromInt(11),
				Rates: map[string]decimal.NullDecimal{"B-1": decimal.NewNullDecimal(decimal.NewFromInt(10))},
			}},
			Bids: []core.ComparisonBid{
				{BidID: "B-1", Column: "Acme", TotalAmount: decimal.NewFromInt(1000)},
				{BidID: "B-2", Column: "Buildco"},
			},
			Baseline: core.BaselineAverageOfBids,
			Faults:   []core.Fault{{Kind: core.FaultOrphanRate, Detail: "rate for Z9"}},
		},
		GeneratedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestComparisonReport(t *testing.T) {
	var sb strings.Builder
	if err := ComparisonReport(sampleData()).Render(context.Background(), &sb); err != nil {
		t.Fatalf("Render: %v", err)
	}
	out := sb.String()

	for _, want := range []string{
		"<th>Acme</th>",
		"<th>Buildco</th>",
		"Excavation &amp; fill",
		`<td class="nq">not quoted</td>`,
		"rate for Z9",
		"Wed, 01 May 2024 12:00:00 UTC",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output does not contain %q", want)
		}
	}
	if !strings.HasSuffix(out, "</html>") {
		t.Error("document is not closed")
	}
}

func TestReportUnavailable_Escapes(t *testing.T) {
	var sb strings.Builder
	if err := ReportUnavailable("<T>", core.MsgNoEligibleBids).Render(context.Background(), &sb); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if strings.Contains(sb.String(), "<T>") || !strings.Contains(sb.String(), "&lt;T&gt;") {
		t.Errorf("tender id not escaped: %s", sb.String())
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestComparisonReport_WriteError(t *testing.T) {
	err := ComparisonReport(sampleData()).Render(context.Background(), failingWriter{})
	if err == nil || err.Error() != "disk full" {
		t.Errorf("err = %v, want disk full", err)
	}
}
