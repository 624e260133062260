package core

import (
	"encoding/json"
	"testing"
)

func matrixWithTotals(totals ...string) *ComparisonMatrix {
	m := &ComparisonMatrix{TenderID: "T-1", Status: MatrixReady}
	for i, total := range totals {
		m.Bids = append(m.Bids, MatrixBid{BidID: string(rune('A' + i)), TotalAmount: dec(total)})
	}
	return m
}

func TestComputeVariance_AverageOfBids(t *testing.T) {
	m := matrixWithTotals("100000", "110000", "90000")

	got := ComputeVariance(m, BaselineAverageOfBids)

	want := []string{"0.00", "10.00", "-10.00"}
	for i, w := range want {
		if got[i].String() != w {
			t.Errorf("bid %d variance = %s, want %s", i, got[i], w)
		}
	}
}

func TestComputeVariance_AverageTieIsExact(t *testing.T) {
	// mean is 533.33...; 534 sits exactly 0.125% above it
	m := matrixWithTotals("534", "533", "533")

	got := ComputeVariance(m, BaselineAverageOfBids)

	want := []string{"0.12", "-0.06", "-0.06"}
	for i, w := range want {
		if got[i].String() != w {
			t.Errorf("bid %d variance = %s, want %s", i, got[i], w)
		}
	}
}

func TestComputeVariance_EstimateTotal(t *testing.T) {
	tests := []struct {
		name     string
		estimate string // unit rate of a single item with quantity 1
		total    string
		want     string
	}{
		{"over estimate", "800", "900", "12.50"},
		{"under estimate", "800", "700", "-12.50"},
		{"tie rounds down to even", "80000", "80100", "0.12"},
		{"tie rounds up to even", "200000", "200270", "0.14"},
		{"negative tie to even", "80000", "79900", "-0.12"},
		{"repeating fraction", "3", "4", "33.33"},
		{"zero estimate", "0", "500", "N/A"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := matrixWithTotals(tt.total)
			m.Items = []MatrixItem{{LineItem: item("A1", "Lump sum", "1", "item", tt.estimate)}}

			got := ComputeVariance(m, BaselineEstimateTotal)
			if got[0].String() != tt.want {
				t.Errorf("variance = %s, want %s", got[0], tt.want)
			}
		})
	}
}

func TestComputeVariance_ZeroBaseline(t *testing.T) {
	m := matrixWithTotals("0", "0")
	for _, v := range ComputeVariance(m, BaselineAverageOfBids) {
		if v.Defined || v.String() != VarianceUndefined {
			t.Errorf("variance = %+v, want undefined", v)
		}
	}
}

func TestBaselineAmount(t *testing.T) {
	m := matrixWithTotals("100", "200", "400")
	m.Items = []MatrixItem{{LineItem: item("A1", "x", "2", "nr", "50")}}

	avg := BaselineAmount(m, BaselineAverageOfBids)
	if !avg.Valid || avg.Decimal.StringFixed(4) != "233.3333" {
		t.Errorf("average = %v", avg)
	}
	est := BaselineAmount(m, BaselineEstimateTotal)
	if !est.Valid || !est.Decimal.Equal(dec("100")) {
		t.Errorf("estimate = %v", est)
	}
	if none := BaselineAmount(matrixWithTotals(), BaselineAverageOfBids); none.Valid {
		t.Errorf("average of no bids = %v, want invalid", none)
	}
}

func TestDivRoundBank(t *testing.T) {
	tests := []struct {
		num, den string
		want     string
	}{
		{"1", "8", "0.12"},
		{"3", "8", "0.38"},
		{"27", "200", "0.14"},
		{"-1", "8", "-0.12"},
		{"-27", "200", "-0.14"},
		{"1", "-8", "-0.12"},
		{"2", "3", "0.67"},
		{"1", "3", "0.33"},
		{"10", "4", "2.5"},
	}

	for _, tt := range tests {
		t.Run(tt.num+"/"+tt.den, func(t *testing.T) {
			got := divRoundBank(dec(tt.num), dec(tt.den), 2)
			if !got.Equal(dec(tt.want)) {
				t.Errorf("divRoundBank(%s, %s) = %s, want %s", tt.num, tt.den, got, tt.want)
			}
		})
	}
}

func TestApplyVariance(t *testing.T) {
	m := matrixWithTotals("90", "110")
	m.ApplyVariance("")

	if m.Baseline != BaselineAverageOfBids {
		t.Errorf("Baseline = %q, want average", m.Baseline)
	}
	if !m.BaselineAmount.Valid || !m.BaselineAmount.Decimal.Equal(dec("100")) {
		t.Errorf("BaselineAmount = %v, want 100", m.BaselineAmount)
	}
	if m.Bids[0].Variance.String() != "-10.00" || m.Bids[1].Variance.String() != "10.00" {
		t.Errorf("variances = %s, %s", m.Bids[0].Variance, m.Bids[1].Variance)
	}
}

func TestParseBaselinePolicy(t *testing.T) {
	tests := []struct {
		input   string
		want    BaselinePolicy
		wantErr bool
	}{
		{"", "", false},
		{"average", BaselineAverageOfBids, false},
		{"Average_Of_Bids", BaselineAverageOfBids, false},
		{"avg", BaselineAverageOfBids, false},
		{"estimate", BaselineEstimateTotal, false},
		{" ESTIMATE_TOTAL ", BaselineEstimateTotal, false},
		{"engineer", BaselineEstimateTotal, false},
		{"median", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseBaselinePolicy(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestVariance_MarshalJSON(t *testing.T) {
	out, err := json.Marshal(struct {
		A Variance `json:"a"`
		B Variance `json:"b"`
	}{
		A: Variance{Percent: dec("12.5"), Defined: true},
	})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(out) != `{"a":"12.50","b":"N/A"}` {
		t.Errorf("json = %s", out)
	}
}
