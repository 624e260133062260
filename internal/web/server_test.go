package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/JonMunkholm/tenderdesk/internal/config"
	"github.com/JonMunkholm/tenderdesk/internal/core"
	"github.com/JonMunkholm/tenderdesk/internal/metrics"
	"github.com/JonMunkholm/tenderdesk/internal/store/memstore"
)

const boqFile = "item_code,description,quantity,uom,estimated_unit_rate\n" +
	"A1,Excavation,100,m3,11\n" +
	"A2,\"Concrete, C30\",10,m3,190\n" +
	"A3,Rebar,2,t,900\n"

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{RequestTimeout: 5 * time.Second},
		Import: config.ImportConfig{
			MaxFileSize:   1 << 20,
			MaxConcurrent: 2,
			MaxWaitTime:   time.Second,
			Timeout:       time.Minute,
		},
	}
}

type testEnv struct {
	srv   *Server
	store *memstore.Store
}

func newTestEnv(t *testing.T, mutate func(*config.Config)) *testEnv {
	t.Helper()
	cfg := testConfig()
	if mutate != nil {
		mutate(cfg)
	}
	store := memstore.New()
	for _, tender := range []core.Tender{
		{ID: "T-1", Title: "Depot extension", Status: core.TenderOpen},
		{ID: "T-2", Title: "Car park", Status: core.TenderDraft},
	} {
		if err := store.AddTender(tender); err != nil {
			t.Fatalf("AddTender: %v", err)
		}
	}
	svc := core.NewService(store, core.Options{
		Limiter:     core.NewImportLimiter(cfg.Import.MaxConcurrent, cfg.Import.MaxWaitTime),
		MaxFileSize: cfg.Import.MaxFileSize,
	})
	srv := NewServer(svc, cfg, nil, nil)
	t.Cleanup(func() { srv.Shutdown(context.Background()) })
	return &testEnv{srv: srv, store: store}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.srv.Router().ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) get(path string) *httptest.ResponseRecorder {
	return e.do(httptest.NewRequest(http.MethodGet, path, nil))
}

func (e *testEnv) postCSV(path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "text/csv")
	return e.do(req)
}

func (e *testEnv) mustImport(t *testing.T, body string) {
	t.Helper()
	if rec := e.postCSV("/api/tenders/T-1/boq", body); rec.Code != http.StatusOK {
		t.Fatalf("import status = %d: %s", rec.Code, rec.Body)
	}
}

func quoted(v string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(v))
}

// addBids registers two submitted bids whose totals match their rates:
// B-1 totals 2000 and B-2 totals 3000.
func (e *testEnv) addBids(t *testing.T) {
	t.Helper()
	bids := []core.Bid{
		{
			ID: "B-1", TenderID: "T-1", BidderName: "Acme", Status: core.BidSubmitted,
			TotalAmount: decimal.NewFromInt(2000),
			Rates: []core.RateEntry{
				{BidID: "B-1", ItemCode: "A1", UnitRate: quoted("10")},
				{BidID: "B-1", ItemCode: "A2", UnitRate: quoted("100")},
			},
		},
		{
			ID: "B-2", TenderID: "T-1", BidderName: "Buildco", Status: core.BidSubmitted,
			TotalAmount: decimal.NewFromInt(3000),
			Rates: []core.RateEntry{
				{BidID: "B-2", ItemCode: "A1", UnitRate: quoted("20")},
				{BidID: "B-2", ItemCode: "A2", UnitRate: quoted("100")},
			},
		},
	}
	for _, b := range bids {
		if err := e.store.AddBid(b); err != nil {
			t.Fatalf("AddBid: %v", err)
		}
	}
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %T: %v\nbody: %s", v, err, rec.Body)
	}
	return v
}

// ----------------------------------------------------------------------------
// BoQ Tests
// ----------------------------------------------------------------------------

func TestImportBoQ_RoundTrip(t *testing.T) {
	e := newTestEnv(t, nil)

	rec := e.postCSV("/api/tenders/T-1/boq", boqFile)
	if rec.Code != http.StatusOK {
		t.Fatalf("import status = %d: %s", rec.Code, rec.Body)
	}
	resp := decode[core.ImportResponse](t, rec)
	if resp.Status != "success" || resp.Result == nil || resp.Result.Imported != 3 {
		t.Errorf("response = %+v", resp)
	}

	rec = e.get("/api/tenders/T-1/boq")
	if rec.Code != http.StatusOK {
		t.Fatalf("export status = %d: %s", rec.Code, rec.Body)
	}
	if got := rec.Body.String(); got != boqFile {
		t.Errorf("export =\n%s\nwant\n%s", got, boqFile)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("Content-Type = %q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, `filename="boq_T-1.csv"`) {
		t.Errorf("Content-Disposition = %q", cd)
	}
}

func TestImportBoQ_Multipart(t *testing.T) {
	e := newTestEnv(t, nil)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "boq.csv")
	if err != nil {
		t.Fatal(err)
	}
	io.WriteString(fw, boqFile)
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/tenders/T-1/boq", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := e.do(req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	resp := decode[core.ImportResponse](t, rec)
	if resp.Result == nil || resp.Result.FileName != "boq.csv" || resp.Result.Imported != 3 {
		t.Errorf("result = %+v", resp.Result)
	}
}

func TestImportBoQ_Errors(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		body     string
		setup    func(t *testing.T, e *testEnv)
		wantCode int
		wantErr  string
	}{
		{
			name:     "invalid rows",
			path:     "/api/tenders/T-1/boq",
			body:     "item_code,description,quantity,uom,estimated_unit_rate\nA1,Excavation,abc,m3,11\n",
			wantCode: http.StatusUnprocessableEntity,
			wantErr:  "BOQ001",
		},
		{
			name:     "unknown tender",
			path:     "/api/tenders/T-404/boq",
			body:     boqFile,
			wantCode: http.StatusNotFound,
			wantErr:  "BOQ002",
		},
		{
			name: "awarded bid locks the boq",
			path: "/api/tenders/T-1/boq",
			body: boqFile,
			setup: func(t *testing.T, e *testEnv) {
				e.mustImport(t, boqFile)
				e.addBids(t)
				if err := e.store.SetBidStatus("B-1", core.BidAwarded); err != nil {
					t.Fatal(err)
				}
			},
			wantCode: http.StatusConflict,
			wantErr:  "BOQ003",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEnv(t, nil)
			if tt.setup != nil {
				tt.setup(t, e)
			}
			rec := e.postCSV(tt.path, tt.body)
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.wantCode, rec.Body)
			}
			resp := decode[core.ImportResponse](t, rec)
			if resp.Status != "error" || resp.Code != tt.wantErr {
				t.Errorf("response = %+v, want code %s", resp, tt.wantErr)
			}
		})
	}
}

func TestImportBoQ_ReportsRowErrors(t *testing.T) {
	e := newTestEnv(t, nil)

	rec := e.postCSV("/api/tenders/T-1/boq", "item_code,description,quantity,uom,estimated_unit_rate\n"+
		"A1,Excavation,abc,m3,11\n"+
		"A2,Concrete,10,m3,190\n")

	resp := decode[core.ImportResponse](t, rec)
	if len(resp.RowErrors) != 1 || resp.RowErrors[0].Row != 2 || resp.RowErrors[0].Field != core.ColQuantity {
		t.Errorf("row errors = %+v", resp.RowErrors)
	}

	// nothing was written
	if rec := e.get("/api/tenders/T-1/boq"); rec.Body.String() != core.BoQTemplate() {
		t.Errorf("tender changed after a rejected import:\n%s", rec.Body)
	}
}

func TestImportBoQ_Rejections(t *testing.T) {
	e := newTestEnv(t, func(c *config.Config) { c.Import.MaxFileSize = 64 })

	rec := e.postCSV("/api/tenders/T-1/boq", boqFile)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("oversized file: status = %d, want 413", rec.Code)
	}

	rec = e.do(httptest.NewRequest(http.MethodPost, "/api/tenders/T-1/boq", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty body: status = %d, want 400", rec.Code)
	}

	rec = e.postCSV("/api/tenders/T-1/boq?format=pdf", boqFile)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown format: status = %d, want 400", rec.Code)
	}
}

func TestPreviewBoQ(t *testing.T) {
	e := newTestEnv(t, nil)
	e.mustImport(t, boqFile)

	rec := e.postCSV("/api/tenders/T-1/boq/preview", "item_code,description,quantity,uom,estimated_unit_rate\n"+
		"A1,Excavation,120,m3,11\n"+
		"A4,Topsoil,50,m3,4\n")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	preview := decode[core.PreviewResponse](t, rec)
	want := core.PreviewSummary{TotalRows: 2, NewItems: 1, ChangedItems: 1, RemovedItems: 2}
	if preview.Summary != want || !preview.Valid {
		t.Errorf("summary = %+v, valid = %v; want %+v", preview.Summary, preview.Valid, want)
	}

	// preview never writes
	if rec := e.get("/api/tenders/T-1/boq"); rec.Body.String() != boqFile {
		t.Errorf("preview changed the tender:\n%s", rec.Body)
	}
}

func TestImportHistory(t *testing.T) {
	e := newTestEnv(t, nil)
	e.mustImport(t, boqFile)
	e.postCSV("/api/tenders/T-1/boq", "item_code\n")

	rec := e.get("/api/tenders/T-1/imports")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	records := decode[[]core.ImportRecord](t, rec)
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if records[0].Status != core.ImportRejected || records[1].Status != core.ImportSucceeded {
		t.Errorf("statuses = %s, %s", records[0].Status, records[1].Status)
	}
	if records[1].RemoteAddr != "192.0.2.1" {
		t.Errorf("RemoteAddr = %q", records[1].RemoteAddr)
	}

	if rec := e.get("/api/tenders/T-404/imports"); rec.Code != http.StatusNotFound {
		t.Errorf("unknown tender: status = %d", rec.Code)
	}
}

// ----------------------------------------------------------------------------
// Rate Sheet Tests
// ----------------------------------------------------------------------------

func TestRates_ImportAndExport(t *testing.T) {
	e := newTestEnv(t, nil)
	e.mustImport(t, boqFile)
	if err := e.store.AddBid(core.Bid{ID: "B-3", TenderID: "T-1", BidderName: "Civil Ltd"}); err != nil {
		t.Fatal(err)
	}

	rec := e.postCSV("/api/bids/B-3/rates", "item_code,unit_rate\nA1,12.5\nA2,\n")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	res := decode[core.RateImportResult](t, rec)
	if res.Quoted != 1 || res.NotQuoted != 1 || !res.TotalAmount.Equal(decimal.NewFromInt(1250)) {
		t.Errorf("result = %+v", res)
	}

	rec = e.get("/api/bids/B-3/rates")
	if want := "item_code,unit_rate\nA1,12.5\nA2,\nA3,\n"; rec.Body.String() != want {
		t.Errorf("export = %q, want %q", rec.Body.String(), want)
	}

	rec = e.postCSV("/api/bids/B-3/rates", "item_code,unit_rate\nZ9,1\n")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("unknown item: status = %d, want 422", rec.Code)
	}
	if errs := decode[ErrorResponse](t, rec).RowErrors; len(errs) != 1 || errs[0].Value != "Z9" {
		t.Errorf("row errors = %+v", errs)
	}

	if rec := e.postCSV("/api/bids/B-404/rates", "item_code,unit_rate\nA1,1\n"); rec.Code != http.StatusNotFound {
		t.Errorf("unknown bid: status = %d, want 404", rec.Code)
	}
}

// ----------------------------------------------------------------------------
// Comparison Tests
// ----------------------------------------------------------------------------

type comparisonBody struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Data    *struct {
		Baseline string `json:"baseline"`
		Bids     []struct {
			BidID           string `json:"bid_id"`
			VariancePercent string `json:"variance_percent"`
		} `json:"bids"`
		Items []struct {
			ItemCode string `json:"item_code"`
		} `json:"items"`
	} `json:"data"`
}

func TestComparison(t *testing.T) {
	e := newTestEnv(t, nil)
	e.mustImport(t, boqFile)

	rec := e.get("/api/tenders/T-1/comparison")
	if rec.Code != http.StatusNotFound {
		t.Errorf("no bids: status = %d, want 404", rec.Code)
	}
	if body := decode[comparisonBody](t, rec); body.Message != core.MsgNoEligibleBids {
		t.Errorf("no bids: message = %q", body.Message)
	}

	e.addBids(t)
	rec = e.get("/api/tenders/T-1/comparison?baseline=average")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	body := decode[comparisonBody](t, rec)
	if body.Status != "success" || body.Data == nil || len(body.Data.Items) != 3 {
		t.Fatalf("body = %s", rec.Body)
	}
	want := map[string]string{"B-1": "-20.00", "B-2": "20.00"}
	for _, b := range body.Data.Bids {
		if b.VariancePercent != want[b.BidID] {
			t.Errorf("%s variance = %q, want %q", b.BidID, b.VariancePercent, want[b.BidID])
		}
	}

	if rec := e.get("/api/tenders/T-1/comparison?baseline=median"); rec.Code != http.StatusBadRequest {
		t.Errorf("bad baseline: status = %d, want 400", rec.Code)
	}
	if rec := e.get("/api/tenders/T-404/comparison"); rec.Code != http.StatusNotFound {
		t.Errorf("unknown tender: status = %d, want 404", rec.Code)
	}
}

// loadFailStore fails every tender load with err.
type loadFailStore struct {
	*memstore.Store
	err error
}

func (s loadFailStore) LoadTender(ctx context.Context, tenderID string) (*core.TenderSnapshot, error) {
	return nil, s.err
}

func TestComparison_StoreErrorStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"io", &core.IOError{Op: "load tender", Err: errors.New("connection reset")}, http.StatusBadGateway},
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := core.NewService(loadFailStore{Store: memstore.New(), err: tt.err}, core.Options{})
			srv := NewServer(svc, testConfig(), nil, nil)
			t.Cleanup(func() { srv.Shutdown(context.Background()) })

			rec := httptest.NewRecorder()
			srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/tenders/T-1/comparison", nil))
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
			body := decode[comparisonBody](t, rec)
			if body.Status != "error" || body.Code != core.MapError(tt.err).Code {
				t.Errorf("body = %s", rec.Body)
			}
		})
	}
}

func TestExportComparison(t *testing.T) {
	e := newTestEnv(t, nil)
	e.mustImport(t, boqFile)
	e.addBids(t)

	rec := e.get("/api/tenders/T-1/comparison/export")
	if rec.Code != http.StatusOK {
		t.Fatalf("csv status = %d: %s", rec.Code, rec.Body)
	}
	if !strings.HasPrefix(rec.Body.String(), core.ColItemCode+",") {
		t.Errorf("csv export starts with %q", strings.SplitN(rec.Body.String(), "\n", 2)[0])
	}

	rec = e.get("/api/tenders/T-1/comparison/export?format=xlsx&baseline=estimate")
	if rec.Code != http.StatusOK {
		t.Fatalf("xlsx status = %d: %s", rec.Code, rec.Body)
	}
	if ct := rec.Header().Get("Content-Type"); ct != core.FormatXLSX.ContentType() {
		t.Errorf("Content-Type = %q", ct)
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")) {
		t.Error("xlsx export is not a zip archive")
	}

	if rec := e.get("/api/tenders/T-404/comparison/export"); rec.Code != http.StatusNotFound {
		t.Errorf("unknown tender: status = %d, want 404", rec.Code)
	}
}

func TestComparisonReport(t *testing.T) {
	e := newTestEnv(t, nil)
	e.mustImport(t, boqFile)

	rec := e.get("/api/tenders/T-1/comparison/report")
	if rec.Code != http.StatusNotFound {
		t.Errorf("no bids: status = %d, want 404", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), core.MsgNoEligibleBids) {
		t.Errorf("no bids: body = %s", rec.Body)
	}

	e.addBids(t)
	if err := e.store.AddBid(core.Bid{
		ID: "B-3", TenderID: "T-1", BidderName: "<b>Evil</b>", Status: core.BidSubmitted,
	}); err != nil {
		t.Fatalf("AddBid: %v", err)
	}

	rec = e.get("/api/tenders/T-1/comparison/report")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/html; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}
	if csp := rec.Header().Get("Content-Security-Policy"); !strings.Contains(csp, "style-src 'unsafe-inline'") {
		t.Errorf("CSP = %q", csp)
	}

	body := rec.Body.String()
	for _, want := range []string{"Acme", "Buildco", "&lt;b&gt;Evil&lt;/b&gt;", "not quoted", core.LabelBidTotal} {
		if !strings.Contains(body, want) {
			t.Errorf("report does not contain %q", want)
		}
	}
	if strings.Contains(body, "<b>Evil") {
		t.Error("bidder name is not escaped")
	}

	if rec := e.get("/api/tenders/T-404/comparison/report"); rec.Code != http.StatusNotFound {
		t.Errorf("unknown tender: status = %d, want 404", rec.Code)
	}
}

// ----------------------------------------------------------------------------
// Listing, Templates and Middleware Tests
// ----------------------------------------------------------------------------

func TestListTenders(t *testing.T) {
	e := newTestEnv(t, nil)

	tests := []struct {
		query    string
		wantCode int
		wantIDs  []string
	}{
		{"", http.StatusOK, []string{"T-1", "T-2"}},
		{"?status=open", http.StatusOK, []string{"T-1"}},
		{"?status=open,draft", http.StatusOK, []string{"T-1", "T-2"}},
		{"?status=awarded", http.StatusOK, []string{}},
		{"?status=bogus", http.StatusBadRequest, nil},
	}

	for _, tt := range tests {
		rec := e.get("/api/tenders" + tt.query)
		if rec.Code != tt.wantCode {
			t.Errorf("%q: status = %d, want %d", tt.query, rec.Code, tt.wantCode)
			continue
		}
		if tt.wantIDs == nil {
			continue
		}
		tenders := decode[[]core.Tender](t, rec)
		var ids []string
		for _, tender := range tenders {
			ids = append(ids, tender.ID)
		}
		if strings.Join(ids, ",") != strings.Join(tt.wantIDs, ",") {
			t.Errorf("%q: ids = %v, want %v", tt.query, ids, tt.wantIDs)
		}
	}
}

func TestTemplates(t *testing.T) {
	e := newTestEnv(t, nil)

	if rec := e.get("/api/boq/template"); rec.Body.String() != core.BoQTemplate() {
		t.Errorf("boq template = %q", rec.Body.String())
	}
	if rec := e.get("/api/rates/template"); rec.Body.String() != "item_code,unit_rate\n" {
		t.Errorf("rates template = %q", rec.Body.String())
	}
}

func TestHealth(t *testing.T) {
	e := newTestEnv(t, nil)
	if rec := e.get("/healthz"); rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}

	cfg := testConfig()
	svc := core.NewService(memstore.New(), core.Options{})
	down := NewServer(svc, cfg, nil, func(context.Context) error { return errors.New("db down") })
	rec := httptest.NewRecorder()
	down.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("failing check: status = %d, want 503", rec.Code)
	}
}

func TestAPIKeyRequired(t *testing.T) {
	e := newTestEnv(t, func(c *config.Config) {
		c.Security = config.SecurityConfig{RequireAPIKey: true, APIKeys: []string{"secret"}}
	})

	if rec := e.get("/api/tenders"); rec.Code != http.StatusUnauthorized {
		t.Errorf("no key: status = %d, want 401", rec.Code)
	}
	req := httptest.NewRequest(http.MethodGet, "/api/tenders", nil)
	req.Header.Set("X-API-Key", "secret")
	if rec := e.do(req); rec.Code != http.StatusOK {
		t.Errorf("valid key: status = %d, want 200", rec.Code)
	}
	if rec := e.get("/healthz"); rec.Code != http.StatusOK {
		t.Errorf("healthz must not need a key: status = %d", rec.Code)
	}
}

func TestRateLimit(t *testing.T) {
	e := newTestEnv(t, func(c *config.Config) {
		c.Rate = config.RateLimitConfig{Enabled: true, RequestsPerMinute: 2, ImportLimit: 1}
	})

	for i := 0; i < 2; i++ {
		if rec := e.get("/api/tenders"); rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d", i, rec.Code)
		}
	}
	rec := e.get("/api/tenders")
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "60" {
		t.Errorf("Retry-After = %q", rec.Header().Get("Retry-After"))
	}
}

func TestSecurityHeaders(t *testing.T) {
	e := newTestEnv(t, nil)
	rec := e.get("/api/tenders")
	for _, h := range []string{"X-Content-Type-Options", "X-Frame-Options", "Content-Security-Policy"} {
		if rec.Header().Get(h) == "" {
			t.Errorf("missing %s header", h)
		}
	}
}

func TestMetricsEndpoint(t *testing.T) {
	cfg := testConfig()
	m := metrics.New("test")
	svc := core.NewService(memstore.New(), core.Options{Observer: m})
	srv := NewServer(svc, cfg, m, nil)

	srv.Router().ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/tenders", nil))

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `test_http_requests_total{method="GET",path="/api/tenders",status="200"} 1`) {
		t.Errorf("metrics output missing request counter:\n%s", rec.Body)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{&core.ValidationError{Errors: []core.RowError{{Row: 2}}}, http.StatusUnprocessableEntity},
		{&core.NotFoundError{Kind: "tender", ID: "T-9"}, http.StatusNotFound},
		{&core.ConflictError{TenderID: "T-1", Reason: "busy"}, http.StatusConflict},
		{&core.FileTooLargeError{Limit: 10}, http.StatusRequestEntityTooLarge},
		{core.ErrTooManyImports, http.StatusServiceUnavailable},
		{&core.IOError{Op: "read", Err: io.ErrUnexpectedEOF}, http.StatusBadGateway},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
