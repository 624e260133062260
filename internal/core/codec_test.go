package core

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

const boqHeader = "item_code,description,quantity,uom,estimated_unit_rate\n"

func decodeString(t *testing.T, s string) ([]Record, []RowError) {
	t.Helper()
	recs, rowErrs, err := DecodeBoQ(strings.NewReader(s))
	if err != nil {
		t.Fatalf("DecodeBoQ returned error: %v", err)
	}
	return recs, rowErrs
}

func item(code, desc, qty, uom, rate string) LineItem {
	return LineItem{
		ItemCode:          code,
		Description:       desc,
		Quantity:          decimal.RequireFromString(qty),
		UOM:               uom,
		EstimatedUnitRate: decimal.RequireFromString(rate),
	}
}

func sameItems(a, b []LineItem) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ItemCode != b[i].ItemCode ||
			a[i].Description != b[i].Description ||
			a[i].UOM != b[i].UOM ||
			!a[i].Quantity.Equal(b[i].Quantity) ||
			!a[i].EstimatedUnitRate.Equal(b[i].EstimatedUnitRate) {
			return false
		}
	}
	return true
}

// ----------------------------------------------------------------------------
// DecodeBoQ Tests
// ----------------------------------------------------------------------------

func TestDecodeBoQ_QuotedComma(t *testing.T) {
	recs, rowErrs := decodeString(t, boqHeader+`A1,"Concrete, grade 30",10,m3,25.50`+"\n")

	if len(rowErrs) != 0 {
		t.Fatalf("unexpected row errors: %v", rowErrs)
	}
	if len(recs) != 1 {
		t.Fatalf("got %d records, want 1", len(recs))
	}
	if recs[0].Description != "Concrete, grade 30" {
		t.Errorf("Description = %q", recs[0].Description)
	}
	if recs[0].Row != 2 {
		t.Errorf("Row = %d, want 2", recs[0].Row)
	}
}

func TestDecodeBoQ_ShortRowReported(t *testing.T) {
	input := boqHeader +
		"A1,Excavation,100,m3,12\n" +
		"A2,Backfill,80,m3,8\n" +
		"A3,Blinding,5,m3\n" +
		"A4,Concrete,40,m3,150\n" +
		"A5,Rebar,2,t,900\n" +
		"A6,Formwork,60,m2,30\n"

	recs, rowErrs := decodeString(t, input)

	if len(recs) != 5 {
		t.Errorf("got %d records, want 5", len(recs))
	}
	if len(rowErrs) != 1 {
		t.Fatalf("got %d row errors, want 1: %v", len(rowErrs), rowErrs)
	}
	if rowErrs[0].Row != 4 {
		t.Errorf("error row = %d, want 4", rowErrs[0].Row)
	}
	if rowErrs[0].Message != "expected 5 fields, found 4" {
		t.Errorf("message = %q", rowErrs[0].Message)
	}
}

func TestDecodeBoQ_MalformedQuoteContinues(t *testing.T) {
	input := boqHeader +
		"A1,Excavation,100,m3,12\n" +
		`A2,"bad"x,80,m3,8` + "\n" +
		"A3,Blinding,5,m3,20\n"

	recs, rowErrs := decodeString(t, input)

	if len(recs) != 2 {
		t.Fatalf("got %d records, want 2", len(recs))
	}
	if recs[0].ItemCode != "A1" || recs[1].ItemCode != "A3" {
		t.Errorf("records = %v", recs)
	}
	if recs[1].Row != 4 {
		t.Errorf("row after bad record = %d, want 4", recs[1].Row)
	}
	if len(rowErrs) != 1 || rowErrs[0].Row != 3 {
		t.Fatalf("row errors = %v, want one at row 3", rowErrs)
	}
	if !strings.HasPrefix(rowErrs[0].Message, "malformed CSV") {
		t.Errorf("message = %q", rowErrs[0].Message)
	}
}

func TestDecodeBoQ_HeaderMatching(t *testing.T) {
	tests := []struct {
		name      string
		header    string
		row       string
		wantCode  string
		wantQty   string
		wantRate  string
		wantError string
		wantField string
	}{
		{
			name:     "canonical",
			header:   "item_code,description,quantity,uom,estimated_unit_rate",
			row:      "A1,Dig,10,m3,5",
			wantCode: "A1", wantQty: "10", wantRate: "5",
		},
		{
			name:     "display names",
			header:   "Item Code,Description,Quantity,UOM,Estimated Unit Rate",
			row:      "A1,Dig,10,m3,5",
			wantCode: "A1", wantQty: "10", wantRate: "5",
		},
		{
			name:     "reordered",
			header:   "uom,estimated_unit_rate,item_code,quantity,description",
			row:      "m3,5,A1,10,Dig",
			wantCode: "A1", wantQty: "10", wantRate: "5",
		},
		{
			name:      "unknown column",
			header:    "item_code,description,quantity,uom,estimated_unit_rate,notes",
			row:       "A1,Dig,10,m3,5,x",
			wantError: "unknown column",
			wantField: "notes",
		},
		{
			name:      "missing column",
			header:    "item_code,description,quantity,estimated_unit_rate",
			row:       "A1,Dig,10,5",
			wantError: "missing required column",
			wantField: "uom",
		},
		{
			name:      "duplicate column",
			header:    "item_code,description,quantity,uom,estimated_unit_rate,Item Code",
			row:       "A1,Dig,10,m3,5,A1",
			wantError: "duplicate column",
			wantField: "item_code",
		},
		{
			name:      "blank column name",
			header:    "item_code,description,quantity,uom,estimated_unit_rate,",
			row:       "A1,Dig,10,m3,5,",
			wantError: "column 6 has no name",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recs, rowErrs := decodeString(t, tt.header+"\n"+tt.row+"\n")

			if tt.wantError != "" {
				if len(recs) != 0 {
					t.Errorf("got %d records, want none", len(recs))
				}
				if len(rowErrs) != 1 {
					t.Fatalf("row errors = %v, want 1", rowErrs)
				}
				re := rowErrs[0]
				if re.Row != 1 || re.Message != tt.wantError || re.Field != tt.wantField {
					t.Errorf("row error = %+v, want row 1 %q field %q", re, tt.wantError, tt.wantField)
				}
				return
			}

			if len(rowErrs) != 0 {
				t.Fatalf("unexpected row errors: %v", rowErrs)
			}
			if len(recs) != 1 {
				t.Fatalf("got %d records, want 1", len(recs))
			}
			r := recs[0]
			if r.ItemCode != tt.wantCode || r.Quantity != tt.wantQty || r.EstimatedUnitRate != tt.wantRate {
				t.Errorf("record = %+v", r)
			}
		})
	}
}

func TestDecodeBoQ_EmptyInput(t *testing.T) {
	for _, input := range []string{"", "\n\n"} {
		recs, rowErrs := decodeString(t, input)
		if len(recs) != 0 {
			t.Errorf("%q: got %d records", input, len(recs))
		}
		if len(rowErrs) != 1 || rowErrs[0].Row != 1 || !strings.HasPrefix(rowErrs[0].Message, "empty file") {
			t.Errorf("%q: row errors = %v", input, rowErrs)
		}
	}
}

func TestDecodeBoQ_TemplateHasNoRecords(t *testing.T) {
	recs, rowErrs := decodeString(t, BoQTemplate())
	if len(recs) != 0 || len(rowErrs) != 0 {
		t.Errorf("template decoded to %v, %v", recs, rowErrs)
	}
}

func TestDecodeBoQ_Cleanup(t *testing.T) {
	input := "\xEF\xBB\xBF" + "Item Code,Description,Quantity,UOM,Estimated Unit Rate\r\n" +
		`"=""007""",  Pipe laying  , 12 ,m,"=""4.5"""` + "\r\n" +
		",,,,\r\n" +
		"A8,Valve,1,nr,\r\n"

	recs, rowErrs := decodeString(t, input)

	if len(rowErrs) != 0 {
		t.Fatalf("unexpected row errors: %v", rowErrs)
	}
	if len(recs) != 2 {
		t.Fatalf("got %d records, want 2", len(recs))
	}
	first := recs[0]
	// text is kept as written; the formula wrapper is only read off numbers
	if first.ItemCode != `="007"` || first.Description != "Pipe laying" || first.Quantity != "12" || first.EstimatedUnitRate != `="4.5"` {
		t.Errorf("first record = %+v", first)
	}
	items, valErrs := ValidateBoQ(recs)
	if len(valErrs) != 0 || !items[0].EstimatedUnitRate.Equal(decimal.RequireFromString("4.5")) {
		t.Errorf("validated = %+v, %v", items, valErrs)
	}
	if recs[1].Row != 4 {
		t.Errorf("row after blank record = %d, want 4", recs[1].Row)
	}
	if recs[1].EstimatedUnitRate != "" {
		t.Errorf("empty rate = %q", recs[1].EstimatedUnitRate)
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("disk gone") }

func TestDecodeBoQ_ReadFailure(t *testing.T) {
	_, _, err := DecodeBoQ(failingReader{})
	if !errors.Is(err, ErrIO) {
		t.Errorf("err = %v, want ErrIO", err)
	}
}

// ----------------------------------------------------------------------------
// EncodeBoQ Tests
// ----------------------------------------------------------------------------

func TestEncodeBoQ(t *testing.T) {
	items := []LineItem{
		item("A1", "Excavation", "100.00", "m3", "12.50"),
		item("A2", `Pipe, 2" dia`, "10", "m", "0"),
		item("A3", "Provisional sum", "1", "item", "1e4"),
	}

	want := boqHeader +
		"A1,Excavation,100,m3,12.5\n" +
		`A2,"Pipe, 2"" dia",10,m,0` + "\n" +
		"A3,Provisional sum,1,item,10000\n"

	if got, err := EncodeBoQString(items); err != nil || got != want {
		t.Errorf("EncodeBoQString =\n%s\nwant\n%s (err %v)", got, want, err)
	}
}

func TestEncodeBoQ_Empty(t *testing.T) {
	if got, _ := EncodeBoQString(nil); got != BoQTemplate() {
		t.Errorf("EncodeBoQString(nil) = %q, want template", got)
	}
}

func TestBoQRoundTrip(t *testing.T) {
	items := []LineItem{
		item("A1", "Excavation in rock, by machine", "1250.5", "m3", "18.75"),
		item("A2", "Line one\nline two", "0", "nr", "0"),
		item("B-01", `Quoted "spec" item`, "3.333", "kg", "0.0001"),
		item("B-02", "Plain", "7", "m", "0"),
		item("C-01", `="x"`, "1", "m", "2"),
		item(`="007"`, "Inner  spacing kept", "1", "nr", "0"),
	}

	text, err := EncodeBoQString(items)
	if err != nil {
		t.Fatalf("EncodeBoQString: %v", err)
	}

	recs, rowErrs := decodeString(t, text)
	if len(rowErrs) != 0 {
		t.Fatalf("decode row errors: %v", rowErrs)
	}
	got, valErrs := ValidateBoQ(recs)
	if len(valErrs) != 0 {
		t.Fatalf("validation errors: %v", valErrs)
	}
	if !sameItems(got, items) {
		t.Errorf("round trip changed items:\n got %+v\nwant %+v", got, items)
	}

	if again, _ := EncodeBoQString(got); again != text {
		t.Errorf("second encoding differs:\n%s\nvs\n%s", again, text)
	}
}

func TestEncodeBoQ_RefusesPaddedText(t *testing.T) {
	items := []LineItem{
		item("A1", "Excavation", "1", "m3", "1"),
		item("A2", " padded ", "1", "m3", "1"),
	}

	_, err := EncodeBoQString(items)
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
	rowErrs := RowErrors(err)
	if len(rowErrs) != 1 || rowErrs[0].Row != 3 || rowErrs[0].Field != ColDescription {
		t.Errorf("row errors = %+v", rowErrs)
	}

	if err := EncodeBoQXLSX(io.Discard, items); !errors.Is(err, ErrValidation) {
		t.Errorf("EncodeBoQXLSX err = %v, want ErrValidation", err)
	}
}

func TestWriteTable(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteTable(&buf, []string{"a"}, [][]string{{"1"}}); err != nil {
		t.Fatalf("WriteTable: %v", err)
	}
	if buf.String() != "a\n1\n" {
		t.Errorf("output = %q", buf.String())
	}

	err := WriteTable(errWriter{}, []string{"a"}, nil)
	if !errors.Is(err, ErrIO) {
		t.Errorf("err = %v, want ErrIO", err)
	}
}

type errWriter struct{}

func (errWriter) Write([]byte) (int, error) { return 0, errors.New("pipe closed") }
