package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/tenderdesk/internal/logging"
)

// ImportSource is an uploaded file. An empty Format is derived from Name.
type ImportSource struct {
	Name   string
	Format Format
	Reader io.Reader
}

func (src ImportSource) format() Format {
	if src.Format != "" {
		return src.Format
	}
	return FormatFromFileName(src.Name)
}

// ImportResult describes a committed BoQ import.
type ImportResult struct {
	ImportID      string        `json:"import_id"`
	TenderID      string        `json:"tender_id"`
	FileName      string        `json:"file_name,omitempty"`
	Imported      int           `json:"imported"`
	Removed       int           `json:"removed"`
	OrphanedRates int           `json:"orphaned_rates"`
	Duration      time.Duration `json:"-"`
}

// GuardBidStatuses returns an ImportGuard that locks the BoQ once any bid
// reaches one of the locked statuses. Awarded and cancelled tenders are
// always locked.
func GuardBidStatuses(locked ...BidStatus) ImportGuard {
	lockedSet := make(map[BidStatus]bool, len(locked))
	for _, st := range locked {
		lockedSet[st] = true
	}
	return func(t Tender, bids []Bid) error {
		if t.Status == TenderAwarded || t.Status == TenderCancelled {
			return &ConflictError{TenderID: t.ID, Reason: "tender is " + string(t.Status)}
		}
		for _, b := range bids {
			if lockedSet[b.Status] {
				return &ConflictError{
					TenderID: t.ID,
					Reason:   fmt.Sprintf("bid %s from %s is %s", b.ID, b.BidderName, b.Status),
				}
			}
		}
		return nil
	}
}

// DefaultImportGuard locks the BoQ once a bid is awarded.
var DefaultImportGuard = GuardBidStatuses(BidAwarded)

// ImportBoQ replaces a tender's line items with the contents of src.
//
// The file is decoded and validated in full first; any row error rejects
// the whole file with a *ValidationError and leaves the tender unchanged.
// The replacement itself is atomic and drops rate entries for items that
// are no longer present. A second import for the same tender while this
// one runs fails with a *ConflictError.
func (s *Service) ImportBoQ(ctx context.Context, tenderID string, src ImportSource) (*ImportResult, error) {
	start := s.now()
	log := logging.WithFields(ctx, "tender_id", tenderID, "file", src.Name)
	rec := ImportRecord{TenderID: tenderID, Kind: ImportKindBoQ, FileName: src.Name}

	if _, err := s.store.GetTender(ctx, tenderID); err != nil {
		return nil, err
	}

	if !s.locks.tryLock(tenderID) {
		err := &ConflictError{TenderID: tenderID, Reason: "another import for this tender is in progress"}
		s.finishImport(ctx, rec, start, err)
		return nil, err
	}
	defer s.locks.unlock(tenderID)

	if err := s.limiter.Acquire(ctx); err != nil {
		s.finishImport(ctx, rec, start, err)
		return nil, err
	}
	defer s.limiter.Release()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	rows, rowErrs, ragged, err := readTable(src, s.maxSize)
	if err != nil {
		s.finishImport(ctx, rec, start, err)
		return nil, err
	}
	records, tableErrs := boqRecords(rows, ragged)
	rowErrs = append(rowErrs, tableErrs...)

	items, valErrs := ValidateBoQ(records)
	rowErrs = append(rowErrs, valErrs...)
	rec.Rows = len(records)
	if len(rowErrs) > 0 {
		verr := newValidationError(rowErrs)
		log.Info("boq import rejected", "row_errors", len(rowErrs))
		s.finishImport(ctx, rec, start, verr)
		return nil, verr
	}

	stats, err := s.store.ReplaceItems(ctx, tenderID, items, s.guard)
	if err != nil {
		s.finishImport(ctx, rec, start, err)
		return nil, err
	}

	res := &ImportResult{
		TenderID:      tenderID,
		FileName:      src.Name,
		Imported:      len(items),
		Removed:       stats.Removed,
		OrphanedRates: stats.OrphanedRates,
		Duration:      s.now().Sub(start),
	}
	res.ImportID = s.finishImport(ctx, rec, start, nil)

	log.Info("boq imported",
		"import_id", res.ImportID,
		"items", res.Imported,
		"removed", res.Removed,
		"orphaned_rates", res.OrphanedRates,
		"duration_ms", res.Duration.Milliseconds(),
	)
	return res, nil
}

// readTable buffers src and splits it into raw rows. ragged reports whether
// rows come from a spreadsheet and may lack trailing empty cells.
func readTable(src ImportSource, maxBytes int64) (rows []rawRow, rowErrs []RowError, ragged bool, err error) {
	if src.Reader == nil {
		return nil, nil, false, errors.New("no file provided")
	}
	data, err := readInput(src.Reader, maxBytes)
	if err != nil {
		return nil, nil, false, err
	}
	if src.format() == FormatXLSX {
		rows, rowErrs = readXLSX(data)
		return rows, rowErrs, true, nil
	}
	rows, rowErrs = readCSV(sanitizeText(data))
	return rows, rowErrs, false, nil
}

// finishImport records the attempt in the import history and reports it to
// the observer. It returns the history record id. History failures are
// logged, never returned: the import outcome stands either way.
func (s *Service) finishImport(ctx context.Context, rec ImportRecord, start time.Time, err error) string {
	rec.ID = uuid.NewString()
	rec.CreatedAt = s.now().UTC()
	rec.RemoteAddr = RemoteAddrFromContext(ctx)
	rec.Status = importStatusOf(err)
	if err != nil {
		rec.Message = err.Error()
	}

	s.observer.ImportFinished(rec.Kind, rec.Status, rec.Rows, s.now().Sub(start))

	// the request context may already be past its deadline
	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if recErr := s.store.RecordImport(recordCtx, rec); recErr != nil {
		logging.FromContext(ctx).Warn("failed to record import history",
			"tender_id", rec.TenderID,
			"kind", rec.Kind,
			"error", recErr,
		)
	}
	return rec.ID
}

func importStatusOf(err error) ImportStatus {
	switch {
	case err == nil:
		return ImportSucceeded
	case errors.Is(err, ErrValidation), errors.Is(err, ErrConflict):
		return ImportRejected
	default:
		return ImportFailed
	}
}

// ImportResponse is the caller-facing outcome of an import.
type ImportResponse struct {
	Status    string        `json:"status"` // "success" or "error"
	Message   string        `json:"message"`
	Code      string        `json:"code,omitempty"`
	RowErrors []RowError    `json:"row_errors,omitempty"`
	Result    *ImportResult `json:"result,omitempty"`
}

// NewImportResponse builds the response for an ImportBoQ call.
func NewImportResponse(res *ImportResult, err error) ImportResponse {
	if err != nil {
		um := MapError(err)
		msg := um.Message
		if rowErrs := RowErrors(err); len(rowErrs) > 0 {
			msg = fmt.Sprintf("%s: %d problem(s) found, nothing was imported", um.Message, len(rowErrs))
		} else if errors.Is(err, ErrConflict) || errors.Is(err, ErrNotFound) {
			msg = um.Message + ": " + err.Error()
		}
		return ImportResponse{
			Status:    "error",
			Message:   msg,
			Code:      um.Code,
			RowErrors: RowErrors(err),
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Imported %d line item(s)", res.Imported)
	if res.Removed > 0 || res.OrphanedRates > 0 {
		fmt.Fprintf(&b, "; removed %d item(s) and %d orphaned rate(s)", res.Removed, res.OrphanedRates)
	}
	return ImportResponse{Status: "success", Message: b.String(), Result: res}
}

// ListImports returns the most recent import attempts for a tender, newest
// first.
func (s *Service) ListImports(ctx context.Context, tenderID string, limit int) ([]ImportRecord, error) {
	if _, err := s.store.GetTender(ctx, tenderID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return s.store.ListImports(ctx, tenderID, limit)
}

// DefaultHistoryLimit caps ListImports when no limit is given.
const DefaultHistoryLimit = 50

// PurgeImports deletes history entries older than retention.
func (s *Service) PurgeImports(ctx context.Context, retention time.Duration) (int64, error) {
	before := s.now().Add(-retention)
	n, err := s.store.PurgeImports(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("purge import history: %w", err)
	}
	slog.Debug("import history purged", "before", before, "deleted", n)
	return n, nil
}
