package core

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// BaselinePolicy selects the reference value variance is measured against.
type BaselinePolicy string

const (
	// BaselineAverageOfBids is the mean total_amount of the compared bids.
	BaselineAverageOfBids BaselinePolicy = "average"
	// BaselineEstimateTotal is the sum of the BoQ's estimated totals.
	BaselineEstimateTotal BaselinePolicy = "estimate"
)

// ParseBaselinePolicy parses a policy name. Empty returns "" so callers can
// fall back to their default.
func ParseBaselinePolicy(s string) (BaselinePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return "", nil
	case "average", "average_of_bids", "avg":
		return BaselineAverageOfBids, nil
	case "estimate", "estimate_total", "engineer":
		return BaselineEstimateTotal, nil
	}
	return "", fmt.Errorf("unknown baseline %q (want average or estimate)", s)
}

// Label is the human-readable policy name used in exports.
func (p BaselinePolicy) Label() string {
	switch p {
	case BaselineAverageOfBids:
		return "average of bids"
	case BaselineEstimateTotal:
		return "estimate total"
	}
	return string(p)
}

// VarianceUndefined renders a variance whose baseline is zero.
const VarianceUndefined = "N/A"

// Variance is a bid's deviation from the baseline in percent, rounded to
// two places half-to-even. Defined is false when the baseline is zero.
type Variance struct {
	Percent decimal.Decimal
	Defined bool
}

// String renders the percent with two decimals, or "N/A".
func (v Variance) String() string {
	if !v.Defined {
		return VarianceUndefined
	}
	return v.Percent.StringFixedBank(2)
}

// MarshalJSON encodes the variance as its String form.
func (v Variance) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.String())
}

// BaselineAmount computes the baseline for display. It is invalid when the
// policy has nothing to average. ComputeVariance does not divide by it.
func BaselineAmount(m *ComparisonMatrix, policy BaselinePolicy) decimal.NullDecimal {
	switch policy {
	case BaselineEstimateTotal:
		return decimal.NewNullDecimal(m.EstimateTotal())
	default:
		if len(m.Bids) == 0 {
			return decimal.NullDecimal{}
		}
		sum := decimal.Zero
		for _, b := range m.Bids {
			sum = sum.Add(b.TotalAmount)
		}
		return decimal.NewNullDecimal(sum.Div(decimal.NewFromInt(int64(len(m.Bids)))))
	}
}

// ComputeVariance returns each bid's variance from the baseline, parallel
// to m.Bids: (total - baseline) / baseline * 100. A zero baseline gives
// undefined variances, never a division.
//
// For the average baseline the mean is never materialised: with n bids
// summing to sum, the variance is (total*n - sum) * 100 / sum, so the only
// rounding is the final half-to-even one.
func ComputeVariance(m *ComparisonMatrix, policy BaselinePolicy) []Variance {
	out := make([]Variance, len(m.Bids))
	hundred := decimal.NewFromInt(100)

	if policy == BaselineEstimateTotal {
		base := m.EstimateTotal()
		if base.IsZero() {
			return out
		}
		for i, b := range m.Bids {
			diff := b.TotalAmount.Sub(base).Mul(hundred)
			out[i] = Variance{Percent: divRoundBank(diff, base, 2), Defined: true}
		}
		return out
	}

	sum := decimal.Zero
	for _, b := range m.Bids {
		sum = sum.Add(b.TotalAmount)
	}
	if sum.IsZero() {
		return out
	}
	n := decimal.NewFromInt(int64(len(m.Bids)))
	for i, b := range m.Bids {
		diff := b.TotalAmount.Mul(n).Sub(sum).Mul(hundred)
		out[i] = Variance{Percent: divRoundBank(diff, sum, 2), Defined: true}
	}
	return out
}

// divRoundBank returns num/den rounded half-to-even to places. The quotient
// is never rounded at an intermediate precision, so ties are exact ties.
func divRoundBank(num, den decimal.Decimal, places int32) decimal.Decimal {
	q, r := num.QuoRem(den, places)
	if r.IsZero() {
		return q
	}
	unit := decimal.New(1, -places)
	step := unit
	if num.Sign()*den.Sign() < 0 {
		step = unit.Neg()
	}
	// compare the remainder with half a unit of den
	switch r.Abs().Mul(decimal.NewFromInt(2)).Cmp(den.Abs().Mul(unit)) {
	case 1:
		return q.Add(step)
	case 0:
		if !q.Shift(places).Mod(decimal.NewFromInt(2)).IsZero() {
			return q.Add(step)
		}
	}
	return q
}

// ApplyVariance stores the policy, baseline and each bid's variance on m.
func (m *ComparisonMatrix) ApplyVariance(policy BaselinePolicy) {
	if policy == "" {
		policy = BaselineAverageOfBids
	}
	m.Baseline = policy
	m.BaselineAmount = BaselineAmount(m, policy)
	for i, v := range ComputeVariance(m, policy) {
		m.Bids[i].Variance = v
	}
}
