// Package memstore is an in-memory core.Store for tests, demos and the CLI.
//
// Each tender's items and bids live in an immutable tenderState. Writers
// build a new state and publish it by swapping the pointer under the write
// lock, so a reader holding the read lock always sees one whole state.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/JonMunkholm/tenderdesk/internal/core"
)

type tenderState struct {
	tender core.Tender
	items  []core.LineItem
	bids   []core.Bid
}

// Store implements core.Store in memory. The zero value is not usable; call New.
type Store struct {
	mu        sync.RWMutex
	tenders   map[string]*tenderState
	order     []string          // tender ids in insertion order
	bidTender map[string]string // bid id -> tender id
	imports   []core.ImportRecord
}

var _ core.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{
		tenders:   make(map[string]*tenderState),
		bidTender: make(map[string]string),
	}
}

// AddTender registers a tender with no items or bids.
func (s *Store) AddTender(t core.Tender) error {
	if t.ID == "" {
		return fmt.Errorf("tender id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tenders[t.ID]; exists {
		return &core.ConflictError{TenderID: t.ID, Reason: "tender already exists"}
	}
	if t.Status == "" {
		t.Status = core.TenderDraft
	}
	s.tenders[t.ID] = &tenderState{tender: t}
	s.order = append(s.order, t.ID)
	return nil
}

// AddBid registers a bid, with its rates, under an existing tender. Rates
// are stored as given; nothing checks them against the BoQ.
func (s *Store) AddBid(b core.Bid) error {
	if b.ID == "" {
		return fmt.Errorf("bid id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.tenders[b.TenderID]
	if !ok {
		return &core.NotFoundError{Kind: "tender", ID: b.TenderID}
	}
	if _, exists := s.bidTender[b.ID]; exists {
		return &core.ConflictError{TenderID: b.TenderID, Reason: "bid " + b.ID + " already exists"}
	}
	if b.Status == "" {
		b.Status = core.BidDraft
	}

	next := st.clone()
	next.bids = append(next.bids, cloneBid(b))
	s.tenders[b.TenderID] = next
	s.bidTender[b.ID] = b.TenderID
	return nil
}

// SetTenderStatus changes a tender's status.
func (s *Store) SetTenderStatus(tenderID string, status core.TenderStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.tenders[tenderID]
	if !ok {
		return &core.NotFoundError{Kind: "tender", ID: tenderID}
	}
	next := st.clone()
	next.tender.Status = status
	s.tenders[tenderID] = next
	return nil
}

// SetBidStatus changes a bid's status.
func (s *Store) SetBidStatus(bidID string, status core.BidStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, i, err := s.findBid(bidID)
	if err != nil {
		return err
	}
	next := st.clone()
	next.bids[i].Status = status
	s.tenders[st.tender.ID] = next
	return nil
}

func (s *Store) ListTenders(ctx context.Context, statuses []core.TenderStatus) ([]core.Tender, error) {
	want := make(map[core.TenderStatus]bool, len(statuses))
	for _, st := range statuses {
		want[st] = true
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]core.Tender, 0, len(s.order))
	for _, id := range s.order {
		t := s.tenders[id].tender
		if len(want) == 0 || want[t.Status] {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *Store) GetTender(ctx context.Context, tenderID string) (core.Tender, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.tenders[tenderID]
	if !ok {
		return core.Tender{}, &core.NotFoundError{Kind: "tender", ID: tenderID}
	}
	return st.tender, nil
}

func (s *Store) LoadTender(ctx context.Context, tenderID string) (*core.TenderSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	st, ok := s.tenders[tenderID]
	s.mu.RUnlock()
	if !ok {
		return nil, &core.NotFoundError{Kind: "tender", ID: tenderID}
	}

	// st is never mutated after publication; copy so callers can't change it
	next := st.clone()
	return &core.TenderSnapshot{Tender: next.tender, Items: next.items, Bids: next.bids}, nil
}

func (s *Store) GetBid(ctx context.Context, bidID string) (core.Bid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, i, err := s.findBid(bidID)
	if err != nil {
		return core.Bid{}, err
	}
	return cloneBid(st.bids[i]), nil
}

func (s *Store) ReplaceItems(ctx context.Context, tenderID string, items []core.LineItem, guard core.ImportGuard) (core.ReplaceStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.tenders[tenderID]
	if !ok {
		return core.ReplaceStats{}, &core.NotFoundError{Kind: "tender", ID: tenderID}
	}
	if guard != nil {
		if err := guard(st.tender, st.clone().bids); err != nil {
			return core.ReplaceStats{}, err
		}
	}

	keep := make(map[string]bool, len(items))
	for _, it := range items {
		keep[it.ItemCode] = true
	}

	var stats core.ReplaceStats
	for _, it := range st.items {
		if !keep[it.ItemCode] {
			stats.Removed++
		}
	}

	next := &tenderState{
		tender: st.tender,
		items:  append([]core.LineItem(nil), items...),
		bids:   make([]core.Bid, len(st.bids)),
	}
	for i, b := range st.bids {
		nb := b
		nb.Rates = make([]core.RateEntry, 0, len(b.Rates))
		for _, re := range b.Rates {
			if keep[re.ItemCode] {
				nb.Rates = append(nb.Rates, re)
			} else {
				stats.OrphanedRates++
			}
		}
		next.bids[i] = nb
	}

	if err := ctx.Err(); err != nil {
		return core.ReplaceStats{}, err
	}
	s.tenders[tenderID] = next
	return stats, nil
}

func (s *Store) ReplaceBidRates(ctx context.Context, bidID string, update core.RateUpdate) (core.Bid, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, i, err := s.findBid(bidID)
	if err != nil {
		return core.Bid{}, err
	}

	entries, total, err := update(cloneBid(st.bids[i]), append([]core.LineItem(nil), st.items...))
	if err != nil {
		return core.Bid{}, err
	}
	if err := ctx.Err(); err != nil {
		return core.Bid{}, err
	}

	next := st.clone()
	next.bids[i].Rates = append([]core.RateEntry(nil), entries...)
	next.bids[i].TotalAmount = total
	s.tenders[st.tender.ID] = next
	return cloneBid(next.bids[i]), nil
}

func (s *Store) RecordImport(ctx context.Context, rec core.ImportRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.imports = append(s.imports, rec)
	return nil
}

func (s *Store) ListImports(ctx context.Context, tenderID string, limit int) ([]core.ImportRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []core.ImportRecord
	for i := len(s.imports) - 1; i >= 0; i-- {
		if s.imports[i].TenderID == tenderID {
			out = append(out, s.imports[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) PurgeImports(ctx context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.imports[:0]
	var purged int64
	for _, rec := range s.imports {
		if rec.CreatedAt.Before(before) {
			purged++
			continue
		}
		kept = append(kept, rec)
	}
	s.imports = kept
	return purged, nil
}

// findBid must be called with s.mu held.
func (s *Store) findBid(bidID string) (*tenderState, int, error) {
	tenderID, ok := s.bidTender[bidID]
	if !ok {
		return nil, 0, &core.NotFoundError{Kind: "bid", ID: bidID}
	}
	st := s.tenders[tenderID]
	for i, b := range st.bids {
		if b.ID == bidID {
			return st, i, nil
		}
	}
	return nil, 0, &core.NotFoundError{Kind: "bid", ID: bidID}
}

func (st *tenderState) clone() *tenderState {
	next := &tenderState{
		tender: st.tender,
		items:  append([]core.LineItem(nil), st.items...),
		bids:   make([]core.Bid, len(st.bids)),
	}
	for i, b := range st.bids {
		next.bids[i] = cloneBid(b)
	}
	return next
}

func cloneBid(b core.Bid) core.Bid {
	b.Rates = append([]core.RateEntry(nil), b.Rates...)
	return b
}
