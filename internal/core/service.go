package core

import (
	"context"
	"io"
	"time"

	"github.com/JonMunkholm/tenderdesk/internal/logging"
)

// DefaultImportTimeout bounds one import from first byte to commit.
const DefaultImportTimeout = 2 * time.Minute

// Observer receives domain events for metrics. All methods must be safe for
// concurrent use.
type Observer interface {
	ImportFinished(kind ImportKind, status ImportStatus, rows int, elapsed time.Duration)
	ComparisonBuilt(status MatrixStatus)
	MatrixFault(kind FaultKind)
}

type nopObserver struct{}

func (nopObserver) ImportFinished(ImportKind, ImportStatus, int, time.Duration) {}
func (nopObserver) ComparisonBuilt(MatrixStatus) {}
func (nopObserver) MatrixFault(FaultKind) {}

// Options configures a Service. Zero values select the defaults.
type Options struct {
	Limiter         *ImportLimiter
	Guard           ImportGuard    // default: DefaultImportGuard
	DefaultBaseline BaselinePolicy // default: BaselineAverageOfBids
	MaxFileSize     int64          // default: DefaultMaxFileSize
	ImportTimeout   time.Duration  // default: DefaultImportTimeout
	Observer        Observer
}

// Service provides the BoQ reconciliation operations.
type Service struct {
	store    Store
	limiter  *ImportLimiter
	locks    *tenderLocks
	guard    ImportGuard
	baseline BaselinePolicy
	maxSize  int64
	timeout  time.Duration
	observer Observer
	now      func() time.Time
}

// NewService creates a Service backed by store.
func NewService(store Store, opts Options) *Service {
	s := &Service{
		store:    store,
		limiter:  opts.Limiter,
		locks:    newTenderLocks(),
		guard:    opts.Guard,
		baseline: opts.DefaultBaseline,
		maxSize:  opts.MaxFileSize,
		timeout:  opts.ImportTimeout,
		observer: opts.Observer,
		now:      time.Now,
	}
	if s.limiter == nil {
		s.limiter = NewImportLimiter(DefaultMaxConcurrentImports, DefaultMaxWaitTime)
	}
	if s.guard == nil {
		s.guard = DefaultImportGuard
	}
	if s.baseline == "" {
		s.baseline = BaselineAverageOfBids
	}
	if s.maxSize <= 0 {
		s.maxSize = DefaultMaxFileSize
	}
	if s.timeout <= 0 {
		s.timeout = DefaultImportTimeout
	}
	if s.observer == nil {
		s.observer = nopObserver{}
	}
	return s
}

// Limiter returns the import limiter, for status reporting and shutdown.
func (s *Service) Limiter() *ImportLimiter { return s.limiter }

// DefaultBaseline returns the baseline used when a caller names none.
func (s *Service) DefaultBaseline() BaselinePolicy { return s.baseline }

// BoQTemplate returns an empty BoQ file with the header row only.
func (s *Service) BoQTemplate() string { return BoQTemplate() }

// ListTenders returns tenders in any of the given statuses, or all tenders
// when none are given.
func (s *Service) ListTenders(ctx context.Context, statuses ...TenderStatus) ([]Tender, error) {
	return s.store.ListTenders(ctx, statuses)
}

// ExportBoQ writes the tender's line items in import order as a BoQ CSV
// file that imports back unchanged.
func (s *Service) ExportBoQ(ctx context.Context, tenderID string, format Format, w io.Writer) error {
	snap, err := s.store.LoadTender(ctx, tenderID)
	if err != nil {
		return err
	}
	logging.WithFields(ctx, "tender_id", tenderID).Debug("exporting boq",
		"items", len(snap.Items), "format", format)

	if format == FormatXLSX {
		return EncodeBoQXLSX(w, snap.Items)
	}
	return EncodeBoQ(w, snap.Items)
}
