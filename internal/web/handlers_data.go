package web

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/tenderdesk/internal/core"
	"github.com/JonMunkholm/tenderdesk/internal/logging"
	"github.com/JonMunkholm/tenderdesk/internal/web/templates"
)

// handleHealth reports liveness and, when configured, database reachability.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.health(ctx); err != nil {
			logging.FromContext(r.Context()).Error("health check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleListTenders lists tenders, optionally filtered by ?status=open,evaluation.
func (s *Server) handleListTenders(w http.ResponseWriter, r *http.Request) {
	statuses, err := parseTenderStatuses(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	tenders, err := s.service.ListTenders(r.Context(), statuses...)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if tenders == nil {
		tenders = []core.Tender{}
	}

	writeJSON(w, http.StatusOK, tenders)
}

// handleBoQTemplate returns an empty BoQ file with the header row.
func (s *Server) handleBoQTemplate(w http.ResponseWriter, r *http.Request) {
	setDownloadHeaders(w, "boq_template", core.FormatCSV)
	io.WriteString(w, s.service.BoQTemplate())
}

// handleRatesTemplate returns an empty rate sheet with the header row.
func (s *Server) handleRatesTemplate(w http.ResponseWriter, r *http.Request) {
	setDownloadHeaders(w, "rates_template", core.FormatCSV)
	io.WriteString(w, core.RateSheetTemplate())
}

// handleExportBoQ downloads a tender's line items in a format that imports
// back unchanged.
func (s *Server) handleExportBoQ(w http.ResponseWriter, r *http.Request) {
	tenderID := chi.URLParam(r, "tenderID")
	format, err := parseFormatParam(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	s.download(w, r, fmt.Sprintf("boq_%s", tenderID), format, func(buf io.Writer) error {
		return s.service.ExportBoQ(r.Context(), tenderID, format, buf)
	})
}

// handleExportRates downloads a bid's rate sheet, one row per BoQ item.
func (s *Server) handleExportRates(w http.ResponseWriter, r *http.Request) {
	bidID := chi.URLParam(r, "bidID")

	s.download(w, r, fmt.Sprintf("rates_%s", bidID), core.FormatCSV, func(buf io.Writer) error {
		return s.service.ExportBidRates(r.Context(), bidID, buf)
	})
}

// handleComparison returns the bid comparison as JSON. A tender without
// comparable bids is reported in the body with 404; other failures carry
// the status of the underlying error.
func (s *Server) handleComparison(w http.ResponseWriter, r *http.Request) {
	tenderID := chi.URLParam(r, "tenderID")
	policy, err := parseBaselineParam(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	m, err := s.service.Compare(r.Context(), tenderID, policy)
	resp := core.NewComparisonResponse(m, err)

	status := http.StatusOK
	switch {
	case err != nil:
		status = statusFor(err)
		logRequestError(r, err, status, resp.Code)
	case resp.Status != "success":
		status = http.StatusNotFound
	}

	writeJSON(w, status, resp)
}

// handleExportComparison downloads the comparison matrix as CSV or XLSX.
func (s *Server) handleExportComparison(w http.ResponseWriter, r *http.Request) {
	tenderID := chi.URLParam(r, "tenderID")
	format, err := parseFormatParam(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	policy, err := parseBaselineParam(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	s.download(w, r, fmt.Sprintf("comparison_%s", tenderID), format, func(buf io.Writer) error {
		return s.service.ExportComparison(r.Context(), tenderID, policy, format, buf)
	})
}

// download renders a file into memory first so a failure can still be
// reported with a proper status code.
func (s *Server) download(w http.ResponseWriter, r *http.Request, name string, format core.Format, render func(io.Writer) error) {
	var buf bytes.Buffer
	if err := render(&buf); err != nil {
		respondError(w, r, err)
		return
	}

	setDownloadHeaders(w, name, format)
	w.Header().Set("Content-Length", fmt.Sprint(buf.Len()))
	if _, err := buf.WriteTo(w); err != nil {
		logging.FromContext(r.Context()).Warn("download interrupted", "file", name, "error", err)
	}
}

// reportCSP allows the report's inline stylesheet and nothing else.
const reportCSP = "default-src 'none'; style-src 'unsafe-inline'; frame-ancestors 'none'"

// handleComparisonReport renders the comparison as a printable HTML page.
func (s *Server) handleComparisonReport(w http.ResponseWriter, r *http.Request) {
	tenderID := chi.URLParam(r, "tenderID")
	policy, err := parseBaselineParam(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	m, err := s.service.Compare(r.Context(), tenderID, policy)
	if err != nil {
		respondError(w, r, err)
		return
	}

	status := http.StatusOK
	page := templates.ComparisonReport(templates.ReportData{
		TenderID:    tenderID,
		Comparison:  core.NewComparisonData(m),
		GeneratedAt: time.Now(),
	})
	if m.Status == core.MatrixNoEligibleBids {
		status = http.StatusNotFound
		page = templates.ReportUnavailable(tenderID, core.MsgNoEligibleBids)
	}

	var buf bytes.Buffer
	if err := page.Render(r.Context(), &buf); err != nil {
		respondError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Security-Policy", reportCSP)
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}
