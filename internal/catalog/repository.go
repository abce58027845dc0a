package catalog

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stocktally/stocktally/internal/shared"
)

// Repository defines persistence operations for the catalog.
type Repository interface {
	ListItems(ctx context.Context, includeInactive bool) ([]Item, error)
	CreateItem(ctx context.Context, item Item) (string, error)
	UpdateItem(ctx context.Context, id string, item Item) error
	ItemExists(ctx context.Context, id string) (bool, error)
	ListUnits(ctx context.Context) ([]Unit, error)
	ListLocations(ctx context.Context) ([]Location, error)
	GetSettings(ctx context.Context) (Settings, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) ListItems(ctx context.Context, includeInactive bool) ([]Item, error) {
	query := `SELECT id, name, base_unit_id, case_size, allow_partials, par_level, low_threshold, default_location_id, active
FROM items`
	if !includeInactive {
		query += ` WHERE active=true`
	}
	query += ` ORDER BY name ASC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []Item{}
	for rows.Next() {
		var item Item
		if err := rows.Scan(&item.ID, &item.Name, &item.BaseUnitID, &item.CaseSize, &item.AllowPartials,
			&item.ParLevel, &item.LowThreshold, &item.DefaultLocationID, &item.Active); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *repository) CreateItem(ctx context.Context, item Item) (string, error) {
	var id string
	err := r.pool.QueryRow(ctx, `INSERT INTO items (name, base_unit_id, case_size, allow_partials, par_level, low_threshold, default_location_id, active)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
RETURNING id`, item.Name, item.BaseUnitID, item.CaseSize, item.AllowPartials, item.ParLevel, item.LowThreshold, item.DefaultLocationID, item.Active).Scan(&id)
	return id, err
}

func (r *repository) UpdateItem(ctx context.Context, id string, item Item) error {
	tag, err := r.pool.Exec(ctx, `UPDATE items SET name=$1, base_unit_id=$2, case_size=$3, allow_partials=$4, par_level=$5, low_threshold=$6, default_location_id=$7, active=$8, updated_at=NOW()
WHERE id=$9`, item.Name, item.BaseUnitID, item.CaseSize, item.AllowPartials, item.ParLevel, item.LowThreshold, item.DefaultLocationID, item.Active, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) ItemExists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM items WHERE id=$1)`, id).Scan(&exists)
	return exists, err
}

func (r *repository) ListUnits(ctx context.Context) ([]Unit, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, active FROM units ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	units := []Unit{}
	for rows.Next() {
		var u Unit
		if err := rows.Scan(&u.ID, &u.Name, &u.Active); err != nil {
			return nil, err
		}
		units = append(units, u)
	}
	return units, rows.Err()
}

func (r *repository) ListLocations(ctx context.Context) ([]Location, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, active FROM locations ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	locations := []Location{}
	for rows.Next() {
		var l Location
		if err := rows.Scan(&l.ID, &l.Name, &l.Active); err != nil {
			return nil, err
		}
		locations = append(locations, l)
	}
	return locations, rows.Err()
}

func (r *repository) GetSettings(ctx context.Context) (Settings, error) {
	var s Settings
	err := r.pool.QueryRow(ctx, `SELECT store_number, store_label, intersection FROM app_settings ORDER BY created_at ASC LIMIT 1`).
		Scan(&s.StoreNumber, &s.StoreLabel, &s.Intersection)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Settings{}, shared.ErrNotFound
		}
		return Settings{}, err
	}
	return s, nil
}
