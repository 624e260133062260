// Package postgres is the PostgreSQL implementation of core.Store.
//
// Item replacement and rate sheet replacement each run in one transaction
// holding a row lock on the tender, and LoadTender reads inside a read-only
// REPEATABLE READ transaction, so a snapshot never mixes two item sets.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/tenderdesk/internal/core"
)

// Store implements core.Store on a pgx pool.
type Store struct {
	pool *pgxpool.Pool
}

var _ core.Store = (*Store)(nil)

// New returns a Store using pool. Call Migrate first on a fresh database.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// querier is satisfied by *pgxpool.Pool and pgx.Tx.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ============================================================================
// Tenders and bids
// ============================================================================

// CreateTender inserts a tender. An existing id is a *core.ConflictError.
func (s *Store) CreateTender(ctx context.Context, t core.Tender) error {
	if t.Status == "" {
		t.Status = core.TenderDraft
	}
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO tenders (id, title, status) VALUES ($1, $2, $3) ON CONFLICT (id) DO NOTHING`,
		t.ID, t.Title, string(t.Status))
	if err != nil {
		return fmt.Errorf("insert tender: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &core.ConflictError{TenderID: t.ID, Reason: "tender already exists"}
	}
	return nil
}

// SetTenderStatus changes a tender's status.
func (s *Store) SetTenderStatus(ctx context.Context, tenderID string, status core.TenderStatus) error {
	tag, err := s.pool.Exec(ctx, `UPDATE tenders SET status = $2 WHERE id = $1`, tenderID, string(status))
	if err != nil {
		return fmt.Errorf("update tender status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &core.NotFoundError{Kind: "tender", ID: tenderID}
	}
	return nil
}

// CreateBid inserts a bid with no rates under an existing tender.
func (s *Store) CreateBid(ctx context.Context, b core.Bid) error {
	if b.Status == "" {
		b.Status = core.BidDraft
	}
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO bids (id, tender_id, bidder_name, status, submitted_at)
		SELECT $1::text, t.id, $3::text, $4::text, $5::timestamptz FROM tenders t WHERE t.id = $2
		ON CONFLICT (id) DO NOTHING`,
		b.ID, b.TenderID, b.BidderName, string(b.Status), toPgTimestamptz(b.SubmittedAt))
	if err != nil {
		return fmt.Errorf("insert bid: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := s.GetTender(ctx, b.TenderID); err != nil {
			return err
		}
		return &core.ConflictError{TenderID: b.TenderID, Reason: "bid " + b.ID + " already exists"}
	}
	return nil
}

// SetBidStatus changes a bid's status. Moving a bid to submitted stamps
// submitted_at if it is not set yet.
func (s *Store) SetBidStatus(ctx context.Context, bidID string, status core.BidStatus) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE bids SET status = $2,
			submitted_at = CASE WHEN $2 = 'submitted' THEN COALESCE(submitted_at, now()) ELSE submitted_at END
		WHERE id = $1`, bidID, string(status))
	if err != nil {
		return fmt.Errorf("update bid status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &core.NotFoundError{Kind: "bid", ID: bidID}
	}
	return nil
}

func (s *Store) ListTenders(ctx context.Context, statuses []core.TenderStatus) ([]core.Tender, error) {
	filter := make([]string, len(statuses))
	for i, st := range statuses {
		filter[i] = string(st)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, title, status FROM tenders
		WHERE cardinality($1::text[]) = 0 OR status = ANY($1::text[])
		ORDER BY created_at, id`, filter)
	if err != nil {
		return nil, fmt.Errorf("list tenders: %w", err)
	}
	defer rows.Close()

	var out []core.Tender
	for rows.Next() {
		var t core.Tender
		var status string
		if err := rows.Scan(&t.ID, &t.Title, &status); err != nil {
			return nil, fmt.Errorf("scan tender: %w", err)
		}
		t.Status = core.TenderStatus(status)
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) GetTender(ctx context.Context, tenderID string) (core.Tender, error) {
	return getTender(ctx, s.pool, tenderID, "")
}

// getTender reads one tender row. lock is appended to the query, e.g.
// "FOR UPDATE".
func getTender(ctx context.Context, q querier, tenderID, lock string) (core.Tender, error) {
	var t core.Tender
	var status string
	err := q.QueryRow(ctx, `SELECT id, title, status FROM tenders WHERE id = $1 `+lock, tenderID).
		Scan(&t.ID, &t.Title, &status)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Tender{}, &core.NotFoundError{Kind: "tender", ID: tenderID}
	}
	if err != nil {
		return core.Tender{}, fmt.Errorf("get tender: %w", err)
	}
	t.Status = core.TenderStatus(status)
	return t, nil
}

func (s *Store) GetBid(ctx context.Context, bidID string) (core.Bid, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return core.Bid{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) // No-op if already committed

	b, err := getBid(ctx, tx, bidID, "")
	if err != nil {
		return core.Bid{}, err
	}
	rates, err := loadRates(ctx, tx, `WHERE r.bid_id = $1`, bidID)
	if err != nil {
		return core.Bid{}, err
	}
	b.Rates = rates[b.ID]
	return b, tx.Commit(ctx)
}

func getBid(ctx context.Context, q querier, bidID, lock string) (core.Bid, error) {
	row := q.QueryRow(ctx, `
		SELECT id, tender_id, bidder_name, status, total_amount::text, submitted_at
		FROM bids WHERE id = $1 `+lock, bidID)
	b, err := scanBid(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Bid{}, &core.NotFoundError{Kind: "bid", ID: bidID}
	}
	return b, err
}

func scanBid(row pgx.Row) (core.Bid, error) {
	var (
		b           core.Bid
		status      string
		total       string
		submittedAt pgtype.Timestamptz
	)
	if err := row.Scan(&b.ID, &b.TenderID, &b.BidderName, &status, &total, &submittedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return core.Bid{}, err
		}
		return core.Bid{}, fmt.Errorf("scan bid: %w", err)
	}
	amount, err := parseNumeric(total)
	if err != nil {
		return core.Bid{}, err
	}
	b.Status = core.BidStatus(status)
	b.TotalAmount = amount
	b.SubmittedAt = fromPgTimestamptz(submittedAt)
	return b, nil
}

// ============================================================================
// Snapshots
// ============================================================================

func (s *Store) LoadTender(ctx context.Context, tenderID string) (*core.TenderSnapshot, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) // No-op if already committed

	snap, err := loadSnapshot(ctx, tx, tenderID, "")
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return snap, nil
}

func loadSnapshot(ctx context.Context, q querier, tenderID, lock string) (*core.TenderSnapshot, error) {
	t, err := getTender(ctx, q, tenderID, lock)
	if err != nil {
		return nil, err
	}
	items, err := loadItems(ctx, q, tenderID)
	if err != nil {
		return nil, err
	}
	bids, err := loadBids(ctx, q, tenderID)
	if err != nil {
		return nil, err
	}
	return &core.TenderSnapshot{Tender: t, Items: items, Bids: bids}, nil
}

func loadItems(ctx context.Context, q querier, tenderID string) ([]core.LineItem, error) {
	rows, err := q.Query(ctx, `
		SELECT item_code, description, quantity::text, uom, estimated_unit_rate::text
		FROM boq_items WHERE tender_id = $1 ORDER BY position`, tenderID)
	if err != nil {
		return nil, fmt.Errorf("load items: %w", err)
	}
	defer rows.Close()

	var items []core.LineItem
	for rows.Next() {
		var it core.LineItem
		var qty, rate string
		if err := rows.Scan(&it.ItemCode, &it.Description, &qty, &it.UOM, &rate); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		if it.Quantity, err = parseNumeric(qty); err != nil {
			return nil, err
		}
		if it.EstimatedUnitRate, err = parseNumeric(rate); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func loadBids(ctx context.Context, q querier, tenderID string) ([]core.Bid, error) {
	rows, err := q.Query(ctx, `
		SELECT id, tender_id, bidder_name, status, total_amount::text, submitted_at
		FROM bids WHERE tender_id = $1 ORDER BY id`, tenderID)
	if err != nil {
		return nil, fmt.Errorf("load bids: %w", err)
	}
	var bids []core.Bid
	for rows.Next() {
		b, err := scanBid(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		bids = append(bids, b)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load bids: %w", err)
	}

	rates, err := loadRates(ctx, q, `JOIN bids b ON b.id = r.bid_id WHERE b.tender_id = $1`, tenderID)
	if err != nil {
		return nil, err
	}
	for i := range bids {
		bids[i].Rates = rates[bids[i].ID]
	}
	return bids, nil
}

// loadRates returns rate entries grouped by bid id. where selects the rows
// of bid_rates aliased as r.
func loadRates(ctx context.Context, q querier, where string, arg any) (map[string][]core.RateEntry, error) {
	rows, err := q.Query(ctx, `
		SELECT r.bid_id, r.item_code, r.unit_rate::text
		FROM bid_rates r `+where+`
		ORDER BY r.bid_id, r.item_code`, arg)
	if err != nil {
		return nil, fmt.Errorf("load rates: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]core.RateEntry)
	for rows.Next() {
		var re core.RateEntry
		var rate pgtype.Text
		if err := rows.Scan(&re.BidID, &re.ItemCode, &rate); err != nil {
			return nil, fmt.Errorf("scan rate: %w", err)
		}
		if re.UnitRate, err = parseNullNumeric(rate); err != nil {
			return nil, err
		}
		out[re.BidID] = append(out[re.BidID], re)
	}
	return out, rows.Err()
}

// ============================================================================
// Replacement
// ============================================================================

func (s *Store) ReplaceItems(ctx context.Context, tenderID string, items []core.LineItem, guard core.ImportGuard) (core.ReplaceStats, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return core.ReplaceStats{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) // No-op if already committed

	t, err := getTender(ctx, tx, tenderID, "FOR UPDATE")
	if err != nil {
		return core.ReplaceStats{}, err
	}
	if guard != nil {
		bids, err := loadBids(ctx, tx, tenderID)
		if err != nil {
			return core.ReplaceStats{}, err
		}
		if err := guard(t, bids); err != nil {
			return core.ReplaceStats{}, err
		}
	}

	codes := make([]string, len(items))
	for i, it := range items {
		codes[i] = it.ItemCode
	}

	var stats core.ReplaceStats
	tag, err := tx.Exec(ctx, `
		DELETE FROM bid_rates r USING bids b
		WHERE r.bid_id = b.id AND b.tender_id = $1 AND NOT (r.item_code = ANY($2::text[]))`,
		tenderID, codes)
	if err != nil {
		return core.ReplaceStats{}, fmt.Errorf("delete orphaned rates: %w", err)
	}
	stats.OrphanedRates = int(tag.RowsAffected())

	tag, err = tx.Exec(ctx, `DELETE FROM boq_items WHERE tender_id = $1 AND NOT (item_code = ANY($2::text[]))`,
		tenderID, codes)
	if err != nil {
		return core.ReplaceStats{}, fmt.Errorf("delete removed items: %w", err)
	}
	stats.Removed = int(tag.RowsAffected())

	if _, err := tx.Exec(ctx, `DELETE FROM boq_items WHERE tender_id = $1`, tenderID); err != nil {
		return core.ReplaceStats{}, fmt.Errorf("clear items: %w", err)
	}

	rows := make([][]any, len(items))
	for i, it := range items {
		qty, err := toPgNumeric(it.Quantity)
		if err != nil {
			return core.ReplaceStats{}, err
		}
		rate, err := toPgNumeric(it.EstimatedUnitRate)
		if err != nil {
			return core.ReplaceStats{}, err
		}
		total, err := toPgNumeric(it.EstimatedTotal())
		if err != nil {
			return core.ReplaceStats{}, err
		}
		rows[i] = []any{tenderID, it.ItemCode, int32(i), it.Description, qty, it.UOM, rate, total}
	}
	if _, err := tx.CopyFrom(ctx,
		pgx.Identifier{"boq_items"},
		[]string{"tender_id", "item_code", "position", "description", "quantity", "uom", "estimated_unit_rate", "estimated_total"},
		pgx.CopyFromRows(rows),
	); err != nil {
		return core.ReplaceStats{}, fmt.Errorf("copy items: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return core.ReplaceStats{}, fmt.Errorf("commit: %w", err)
	}
	return stats, nil
}

func (s *Store) ReplaceBidRates(ctx context.Context, bidID string, update core.RateUpdate) (core.Bid, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return core.Bid{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) // No-op if already committed

	b, err := getBid(ctx, tx, bidID, "FOR UPDATE")
	if err != nil {
		return core.Bid{}, err
	}
	// the tender lock keeps a BoQ import from running underneath
	if _, err := getTender(ctx, tx, b.TenderID, "FOR SHARE"); err != nil {
		return core.Bid{}, err
	}
	current, err := loadRates(ctx, tx, `WHERE r.bid_id = $1`, bidID)
	if err != nil {
		return core.Bid{}, err
	}
	b.Rates = current[bidID]

	items, err := loadItems(ctx, tx, b.TenderID)
	if err != nil {
		return core.Bid{}, err
	}

	entries, total, err := update(b, items)
	if err != nil {
		return core.Bid{}, err
	}

	if _, err := tx.Exec(ctx, `DELETE FROM bid_rates WHERE bid_id = $1`, bidID); err != nil {
		return core.Bid{}, fmt.Errorf("clear rates: %w", err)
	}
	rows := make([][]any, len(entries))
	for i, re := range entries {
		rate, err := toPgNullNumeric(re.UnitRate)
		if err != nil {
			return core.Bid{}, err
		}
		rows[i] = []any{bidID, re.ItemCode, rate}
	}
	if _, err := tx.CopyFrom(ctx,
		pgx.Identifier{"bid_rates"},
		[]string{"bid_id", "item_code", "unit_rate"},
		pgx.CopyFromRows(rows),
	); err != nil {
		return core.Bid{}, fmt.Errorf("copy rates: %w", err)
	}

	pgTotal, err := toPgNumeric(total)
	if err != nil {
		return core.Bid{}, err
	}
	if _, err := tx.Exec(ctx, `UPDATE bids SET total_amount = $2 WHERE id = $1`, bidID, pgTotal); err != nil {
		return core.Bid{}, fmt.Errorf("update bid total: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return core.Bid{}, fmt.Errorf("commit: %w", err)
	}
	b.Rates = append([]core.RateEntry(nil), entries...)
	b.TotalAmount = total
	return b, nil
}

// ============================================================================
// Import history
// ============================================================================

func (s *Store) RecordImport(ctx context.Context, rec core.ImportRecord) error {
	id, err := toPgUUID(rec.ID)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO boq_imports (id, tender_id, bid_id, kind, file_name, status, row_count, message, remote_addr, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		id,
		rec.TenderID,
		toPgText(rec.BidID),
		string(rec.Kind),
		toPgText(rec.FileName),
		string(rec.Status),
		int32(rec.Rows),
		toPgText(rec.Message),
		toPgText(rec.RemoteAddr),
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert import record: %w", err)
	}
	return nil
}

func (s *Store) ListImports(ctx context.Context, tenderID string, limit int) ([]core.ImportRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id::text, tender_id, bid_id, kind, file_name, status, row_count, message, remote_addr, created_at
		FROM boq_imports WHERE tender_id = $1
		ORDER BY created_at DESC
		LIMIT NULLIF($2, 0)`, tenderID, int32(limit))
	if err != nil {
		return nil, fmt.Errorf("list imports: %w", err)
	}
	defer rows.Close()

	var out []core.ImportRecord
	for rows.Next() {
		var (
			rec                                 core.ImportRecord
			bidID, fileName, message, remoteAdr pgtype.Text
			kind, status                        string
			count                               int32
			createdAt                           time.Time
		)
		if err := rows.Scan(&rec.ID, &rec.TenderID, &bidID, &kind, &fileName, &status, &count, &message, &remoteAdr, &createdAt); err != nil {
			return nil, fmt.Errorf("scan import record: %w", err)
		}
		rec.BidID = fromPgText(bidID)
		rec.Kind = core.ImportKind(kind)
		rec.FileName = fromPgText(fileName)
		rec.Status = core.ImportStatus(status)
		rec.Rows = int(count)
		rec.Message = fromPgText(message)
		rec.RemoteAddr = fromPgText(remoteAdr)
		rec.CreatedAt = createdAt
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *Store) PurgeImports(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM boq_imports WHERE created_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("purge imports: %w", err)
	}
	return tag.RowsAffected(), nil
}
