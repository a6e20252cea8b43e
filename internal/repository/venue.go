package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/arena-booking/internal/domain/venue"
)

const (
	getVenueByIDSQL = `SELECT id, name, default_discount_percentage, timezone
		FROM venues WHERE id = $1`

	upsertVenueSQL = `INSERT INTO venues (id, name, default_discount_percentage, timezone)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			default_discount_percentage = EXCLUDED.default_discount_percentage,
			timezone = EXCLUDED.timezone`
)

var _ venue.Repository = (*VenueRepository)(nil)

// VenueRepository implements venue.Repository backed by PostgreSQL.
type VenueRepository struct {
	pool *pgxpool.Pool
}

// NewVenueRepository returns a VenueRepository that uses the given pool.
func NewVenueRepository(pool *pgxpool.Pool) *VenueRepository {
	return &VenueRepository{pool: pool}
}

// GetByID returns a venue by its identifier, or venue.ErrNotFound.
func (r *VenueRepository) GetByID(ctx context.Context, id string) (*venue.Venue, error) {
	rows, err := r.pool.Query(ctx, getVenueByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting venue %q: %w", id, err)
	}

	v, err := pgx.CollectExactlyOneRow(rows, scanVenue)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, venue.ErrNotFound
		}
		return nil, fmt.Errorf("getting venue %q: %w", id, err)
	}
	return &v, nil
}

// Upsert inserts the venue or updates it in place.
func (r *VenueRepository) Upsert(ctx context.Context, v venue.Venue) error {
	tz := v.Timezone
	if tz == "" {
		tz = "UTC"
	}
	if _, err := r.pool.Exec(ctx, upsertVenueSQL, v.ID, v.Name, v.DefaultDiscountPercentage, tz); err != nil {
		return fmt.Errorf("upserting venue %q: %w", v.ID, err)
	}
	return nil
}

func scanVenue(row pgx.CollectableRow) (venue.Venue, error) {
	var v venue.Venue
	err := row.Scan(&v.ID, &v.Name, &v.DefaultDiscountPercentage, &v.Timezone)
	return v, err
}
