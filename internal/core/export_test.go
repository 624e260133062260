package core

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestBidColumnNames(t *testing.T) {
	tests := []struct {
		name string
		bids []MatrixBid
		want []string
	}{
		{
			name: "distinct names",
			bids: []MatrixBid{{BidID: "B-1", BidderName: "Acme"}, {BidID: "B-2", BidderName: "Bolt"}},
			want: []string{"Acme", "Bolt"},
		},
		{
			name: "shared name gets bid id",
			bids: []MatrixBid{
				{BidID: "B-1", BidderName: "Acme"},
				{BidID: "B-2", BidderName: "Bolt"},
				{BidID: "B-3", BidderName: "Acme"},
			},
			want: []string{"Acme (B-1)", "Bolt", "Acme (B-3)"},
		},
		{
			name: "missing name uses bid id",
			bids: []MatrixBid{{BidID: "B-1"}},
			want: []string{"B-1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BidColumnNames(tt.bids)
			if strings.Join(got, "|") != strings.Join(tt.want, "|") {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExportComparison(t *testing.T) {
	m := NewMatrix(testSnapshot())
	m.ApplyVariance(BaselineAverageOfBids)

	var buf bytes.Buffer
	if err := ExportComparison(&buf, m); err != nil {
		t.Fatalf("ExportComparison: %v", err)
	}

	// average of 1250 and 3000 is 2125
	want := "item_code,description,Acme (B-1),Acme (B-2)\n" +
		"A1,Excavation,12.5,10\n" +
		`A2,"Concrete, C30",,200` + "\n" +
		",Bid Total,1250,3000\n" +
		",Variance % (average of bids),-41.18,41.18\n"

	if buf.String() != want {
		t.Errorf("export =\n%s\nwant\n%s", buf.String(), want)
	}
}

func TestExportComparison_EstimateBaseline(t *testing.T) {
	m := NewMatrix(testSnapshot())
	m.ApplyVariance(BaselineEstimateTotal)

	var buf bytes.Buffer
	if err := ExportComparison(&buf, m); err != nil {
		t.Fatalf("ExportComparison: %v", err)
	}

	// estimate total is 3000
	if !strings.HasSuffix(buf.String(), ",Variance % (estimate total),-58.33,0.00\n") {
		t.Errorf("export =\n%s", buf.String())
	}
}

func TestExportComparison_NoBids(t *testing.T) {
	snap := testSnapshot()
	snap.Bids = nil
	m := NewMatrix(snap)

	var buf bytes.Buffer
	if err := ExportComparison(&buf, m); err != nil {
		t.Fatalf("ExportComparison: %v", err)
	}

	want := "item_code,description\n" +
		"A1,Excavation\n" +
		`A2,"Concrete, C30"` + "\n"
	if buf.String() != want {
		t.Errorf("export =\n%s\nwant\n%s", buf.String(), want)
	}
}

func TestNewComparisonData_JSON(t *testing.T) {
	m := NewMatrix(testSnapshot())
	m.ApplyVariance(BaselineAverageOfBids)

	out, err := json.Marshal(NewComparisonData(m))
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	s := string(out)

	for _, want := range []string{
		`"rates":{"B-1":null,"B-2":"200"}`,
		`"column":"Acme (B-1)"`,
		`"variance_percent":"-41.18"`,
		`"baseline":"average"`,
		`"baseline_amount":"2125"`,
		`"estimated_total":"1900"`,
	} {
		if !strings.Contains(s, want) {
			t.Errorf("json missing %s:\n%s", want, s)
		}
	}
	if strings.Contains(s, `"faults"`) {
		t.Errorf("empty faults serialized: %s", s)
	}
}
