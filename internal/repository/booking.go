package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/arena-booking/internal/domain/booking"
)

const uniqueViolation = "23505"

const createBookingSQL = `INSERT INTO bookings (id, venue_id, customer_id, arrival_time, departure_time,
		guests, unit_price, base_total, total_price, savings, applied_discounts, payment_ref, status, priced_at)
	VALUES ($1, $2, $3, $4::text::time, $5::text::time, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	RETURNING created_at`

var _ booking.Repository = (*BookingRepository)(nil)

// BookingRepository implements booking.Repository backed by PostgreSQL.
type BookingRepository struct {
	pool *pgxpool.Pool
}

// NewBookingRepository returns a BookingRepository that uses the given pool.
func NewBookingRepository(pool *pgxpool.Pool) *BookingRepository {
	return &BookingRepository{pool: pool}
}

// Create persists a confirmed booking and fills in its CreatedAt. An existing
// booking with the same ID yields booking.ErrDuplicate.
func (r *BookingRepository) Create(ctx context.Context, b *booking.Booking) error {
	applied := b.AppliedDiscounts
	if applied == nil {
		applied = []string{}
	}

	err := r.pool.QueryRow(ctx, createBookingSQL,
		b.ID, b.VenueID, b.CustomerID, b.ArrivalTime, b.DepartureTime,
		b.Guests, b.UnitPrice, b.BaseTotal, b.TotalPrice, b.Savings,
		applied, b.PaymentRef, b.Status, b.PricedAt,
	).Scan(&b.CreatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("creating booking %q: %w", b.ID, booking.ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("creating booking %q: %w", b.ID, err)
	}
	return nil
}
