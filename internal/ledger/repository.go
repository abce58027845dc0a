package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stocktally/stocktally/internal/platform/db"
)

// Repository persists ledger events in PostgreSQL. The inventory_events table
// is append-only; rows are never updated or deleted.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const pgForeignKeyViolation = "23503"

// InsertEvent appends one event. The unique index on client_event_id makes
// the insert the atomic dedup point: a conflicting row turns the call into a
// no-op reported as OutcomeDuplicate. created_at and id are assigned in the
// same statement, so the (created_at, id) order key is fixed at commit.
func (r *Repository) InsertEvent(ctx context.Context, deviceID string, in EventInput) (InsertOutcome, error) {
	if r == nil {
		return 0, errors.New("ledger repository not initialised")
	}
	tag, err := r.pool.Exec(ctx, `INSERT INTO inventory_events
(client_event_id, event_type, item_id, delta_base_units, notes, photo_url, ref_type, ref_id, device_id, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,NOW())
ON CONFLICT (client_event_id) DO NOTHING`,
		in.ClientEventID, string(in.Type), in.ItemID, in.DeltaBaseUnits,
		nullString(in.Notes), nullString(in.PhotoURL), nullString(in.RefType), nullString(in.RefID), deviceID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
			return 0, ErrUnknownItem
		}
		return 0, err
	}
	if tag.RowsAffected() == 0 {
		return OutcomeDuplicate, nil
	}
	return OutcomeInserted, nil
}

// ListAfter returns every event strictly after the cursor, ascending by
// (created_at, id). No upper bound; a full catch-up returns the remaining
// history.
func (r *Repository) ListAfter(ctx context.Context, cur Cursor) ([]Event, error) {
	if r == nil {
		return nil, errors.New("ledger repository not initialised")
	}
	rows, err := r.pool.Query(ctx, `SELECT id, client_event_id, event_type, item_id, delta_base_units,
COALESCE(notes,''), COALESCE(photo_url,''), COALESCE(ref_type,''), COALESCE(ref_id::text,''), device_id, created_at
FROM inventory_events
WHERE (created_at, id) > ($1, $2)
ORDER BY created_at ASC, id ASC`, cur.Since, cur.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	events := []Event{}
	for rows.Next() {
		var e Event
		var eventType string
		if err := rows.Scan(&e.ID, &e.ClientEventID, &eventType, &e.ItemID, &e.DeltaBaseUnits,
			&e.Notes, &e.PhotoURL, &e.RefType, &e.RefID, &e.DeviceID, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Type = EventType(eventType)
		events = append(events, e)
	}
	return events, rows.Err()
}

// OnhandTotals folds the full event history into per-item totals.
func (r *Repository) OnhandTotals(ctx context.Context) (map[string]float64, error) {
	if r == nil {
		return nil, errors.New("ledger repository not initialised")
	}
	rows, err := r.pool.Query(ctx, `SELECT item_id, COALESCE(SUM(delta_base_units),0)
FROM inventory_events
GROUP BY item_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	totals := map[string]float64{}
	for rows.Next() {
		var itemID string
		var qty float64
		if err := rows.Scan(&itemID, &qty); err != nil {
			return nil, err
		}
		totals[itemID] = qty
	}
	return totals, rows.Err()
}

// OnhandForItem folds one item's history. Items with no events report zero.
func (r *Repository) OnhandForItem(ctx context.Context, itemID string) (float64, error) {
	if r == nil {
		return 0, errors.New("ledger repository not initialised")
	}
	var qty float64
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(delta_base_units),0)
FROM inventory_events WHERE item_id=$1`, itemID).Scan(&qty)
	return qty, err
}

// RefreshSnapshot rebuilds the onhand_snapshots table from the ledger inside
// one transaction. The snapshot is reporting-only; the SUM over
// inventory_events stays the source of truth.
func (r *Repository) RefreshSnapshot(ctx context.Context) error {
	if r == nil {
		return errors.New("ledger repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM onhand_snapshots`); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `INSERT INTO onhand_snapshots (item_id, qty_base_units, refreshed_at)
SELECT item_id, COALESCE(SUM(delta_base_units),0), NOW()
FROM inventory_events
GROUP BY item_id`)
		return err
	})
}

// GetSnapshot returns the last refreshed snapshot.
func (r *Repository) GetSnapshot(ctx context.Context) (Snapshot, error) {
	if r == nil {
		return Snapshot{}, errors.New("ledger repository not initialised")
	}
	rows, err := r.pool.Query(ctx, `SELECT item_id, qty_base_units, refreshed_at FROM onhand_snapshots`)
	if err != nil {
		return Snapshot{}, err
	}
	defer rows.Close()
	snap := Snapshot{Totals: map[string]float64{}}
	for rows.Next() {
		var itemID string
		var qty float64
		var refreshedAt time.Time
		if err := rows.Scan(&itemID, &qty, &refreshedAt); err != nil {
			return Snapshot{}, err
		}
		snap.Totals[itemID] = qty
		if refreshedAt.After(snap.RefreshedAt) {
			snap.RefreshedAt = refreshedAt
		}
	}
	return snap, rows.Err()
}

func nullString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
