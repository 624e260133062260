package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/tenderdesk/internal/core"
)

// handleImportBoQ replaces a tender's BoQ with the uploaded file.
// The whole file is validated before anything is written; on failure the
// response lists every row error and the tender is unchanged.
func (s *Server) handleImportBoQ(w http.ResponseWriter, r *http.Request) {
	tenderID := chi.URLParam(r, "tenderID")

	src, closeSrc, err := s.readImportSource(w, r)
	if err != nil {
		badSource(w, r, err)
		return
	}
	defer closeSrc()

	ctx := withRequestMetadata(r.Context(), r)
	res, err := s.service.ImportBoQ(ctx, tenderID, src)
	resp := core.NewImportResponse(res, err)
	if err != nil {
		status := statusFor(err)
		logRequestError(r, err, status, resp.Code)
		writeJSON(w, status, resp)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// handlePreviewBoQ reports what importing the uploaded file would change,
// without writing anything.
func (s *Server) handlePreviewBoQ(w http.ResponseWriter, r *http.Request) {
	tenderID := chi.URLParam(r, "tenderID")

	src, closeSrc, err := s.readImportSource(w, r)
	if err != nil {
		badSource(w, r, err)
		return
	}
	defer closeSrc()

	preview, err := s.service.PreviewBoQ(r.Context(), tenderID, src)
	if err != nil {
		respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, preview)
}

// handleImportRates replaces a bid's rate entries with the uploaded rate sheet.
func (s *Server) handleImportRates(w http.ResponseWriter, r *http.Request) {
	bidID := chi.URLParam(r, "bidID")

	src, closeSrc, err := s.readImportSource(w, r)
	if err != nil {
		badSource(w, r, err)
		return
	}
	defer closeSrc()

	ctx := withRequestMetadata(r.Context(), r)
	res, err := s.service.ImportBidRates(ctx, bidID, src)
	if err != nil {
		respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, res)
}

// handleImportHistory lists a tender's recent import attempts, newest first.
func (s *Server) handleImportHistory(w http.ResponseWriter, r *http.Request) {
	tenderID := chi.URLParam(r, "tenderID")
	limit := parseIntParam(r, "limit", core.DefaultHistoryLimit)

	records, err := s.service.ListImports(r.Context(), tenderID, limit)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if records == nil {
		records = []core.ImportRecord{}
	}

	writeJSON(w, http.StatusOK, records)
}

// handleImportQueueStatus reports how many import slots are in use.
func (s *Server) handleImportQueueStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.Limiter().Status())
}
