// Package templates renders the HTML views served by the web package.
package templates

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/tenderdesk/internal/core"
)

const reportStyle = `body{font-family:system-ui,sans-serif;margin:2rem;color:#1f2933}
table{border-collapse:collapse;font-size:.9rem}
th,td{border:1px solid #cbd2d9;padding:.3rem .6rem}
th{background:#f0f4f8;text-align:left}
td.num{text-align:right;font-variant-numeric:tabular-nums}
td.nq{color:#9aa5b1;text-align:center}
tr.summary td{font-weight:600;background:#f7f9fb}
.faults{color:#b44d12}`

// ReportData is the input of ComparisonReport.
type ReportData struct {
	TenderID    string
	Comparison  *core.ComparisonData
	GeneratedAt time.Time
}

// htmlWriter keeps the first write error so markup can be emitted without
// checking every call.
type htmlWriter struct {
	w   io.Writer
	err error
}

func (h *htmlWriter) raw(s string) {
	if h.err == nil {
		_, h.err = io.WriteString(h.w, s)
	}
}

func (h *htmlWriter) text(s string) { h.raw(templ.EscapeString(s)) }

func (h *htmlWriter) cell(class, s string) {
	if class != "" {
		h.raw(`<td class="` + class + `">`)
	} else {
		h.raw("<td>")
	}
	h.text(s)
	h.raw("</td>")
}

func (h *htmlWriter) head(title string) {
	h.raw("<!DOCTYPE html><html lang=\"en\"><head><meta charset=\"utf-8\"><title>")
	h.text(title)
	h.raw("</title><style>" + reportStyle + "</style></head><body>")
}

// ComparisonReport renders a printable bid comparison: the rate matrix
// with bid totals and variances, followed by any faults found while
// building it.
func ComparisonReport(d ReportData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &htmlWriter{w: w}
		c := d.Comparison

		h.head("Bid comparison " + d.TenderID)
		h.raw("<h1>Bid comparison: ")
		h.text(d.TenderID)
		h.raw("</h1><p>Baseline: ")
		h.text(c.Baseline.Label())
		if c.BaselineAmount.Valid {
			h.text(" (" + core.FormatDecimal(c.BaselineAmount.Decimal) + ")")
		}
		h.raw("<br>Generated ")
		h.text(d.GeneratedAt.UTC().Format(time.RFC1123))
		h.raw("</p>")

		h.raw("<table><thead><tr><th>Item</th><th>Description</th><th>Qty</th><th>UOM</th><th>Est. rate</th>")
		for _, b := range c.Bids {
			h.raw("<th>")
			h.text(b.Column)
			h.raw("</th>")
		}
		h.raw("</tr></thead><tbody>")

		for _, it := range c.Items {
			h.raw("<tr>")
			h.cell("", it.ItemCode)
			h.cell("", it.Description)
			h.cell("num", core.FormatDecimal(it.Quantity))
			h.cell("", it.UOM)
			h.cell("num", core.FormatDecimal(it.EstimatedUnitRate))
			for _, b := range c.Bids {
				if r := it.Rates[b.BidID]; r.Valid {
					h.cell("num", core.FormatDecimal(r.Decimal))
				} else {
					h.cell("nq", "not quoted")
				}
			}
			h.raw("</tr>")
		}

		h.raw(`<tr class="summary"><td colspan="5">`)
		h.text(core.LabelBidTotal)
		h.raw("</td>")
		for _, b := range c.Bids {
			h.cell("num", core.FormatDecimal(b.TotalAmount))
		}
		h.raw(`</tr><tr class="summary"><td colspan="5">Variance vs `)
		h.text(c.Baseline.Label())
		h.raw(" (%)</td>")
		for _, b := range c.Bids {
			h.cell("num", b.VariancePercent.String())
		}
		h.raw("</tr></tbody></table>")

		if len(c.Faults) > 0 {
			h.raw(`<h2>Faults</h2><ul class="faults">`)
			for _, f := range c.Faults {
				h.raw("<li>")
				h.text(fmt.Sprintf("%s: %s", f.Kind, f.Detail))
				h.raw("</li>")
			}
			h.raw("</ul>")
		}
		h.raw("</body></html>")
		return h.err
	})
}

// ReportUnavailable renders the page shown when a tender has nothing to
// compare.
func ReportUnavailable(tenderID, message string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &htmlWriter{w: w}
		h.head("Bid comparison " + tenderID)
		h.raw("<h1>Bid comparison: ")
		h.text(tenderID)
		h.raw("</h1><p>")
		h.text(message)
		h.raw("</p></body></html>")
		return h.err
	})
}
