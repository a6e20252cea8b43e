// Package handler implements the booking HTTP API.
package handler

import (
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"

	"github.com/xenking/arena-booking/internal/domain/booking"
	"github.com/xenking/arena-booking/internal/domain/discount"
	"github.com/xenking/arena-booking/internal/domain/venue"
)

const maxBodyBytes = 1 << 20

// IdempotencyKeyHeader lets clients retry a confirmation without a second
// booking or charge.
const IdempotencyKeyHeader = "Idempotency-Key"

const maxIdempotencyKeyLen = 255

// Handler serves the venue discount and booking endpoints.
type Handler struct {
	venues   venue.Repository
	rules    discount.Repository
	bookings *booking.Service
	now      func() time.Time
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(venues venue.Repository, rules discount.Repository, bookings *booking.Service) *Handler {
	return &Handler{
		venues:   venues,
		rules:    rules,
		bookings: bookings,
		now:      time.Now,
	}
}

// ListDiscounts returns the venue's enabled rules, each flagged with whether
// it is in effect right now in the venue's timezone.
func (h *Handler) ListDiscounts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	venueID := chi.URLParam(r, "venueID")

	v, err := h.venues.GetByID(ctx, venueID)
	if err != nil {
		writeDomainError(ctx, w, errors.Wrap(err, "get venue"))
		return
	}
	loc, err := v.Location()
	if err != nil {
		writeDomainError(ctx, w, err)
		return
	}
	rules, err := h.rules.ListActiveByVenue(ctx, venueID)
	if err != nil {
		writeDomainError(ctx, w, errors.Wrap(err, "list discount rules"))
		return
	}

	writeJSON(w, http.StatusOK, encodeDiscounts(v, rules, h.now().In(loc)))
}

// Quote prices a booking draft without charging it.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, err := readBody(w, r)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	req, err := decodeConfirm(body)
	if err != nil {
		writeBadRequest(w, err)
		return
	}

	est, err := h.bookings.Quote(ctx, chi.URLParam(r, "venueID"), req.Draft)
	if err != nil {
		writeDomainError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, encodeEstimate(est))
}

// ConfirmBooking recomputes, charges and stores a booking for the
// authenticated customer.
func (h *Handler) ConfirmBooking(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	key, ok := KeyFromContext(ctx)
	if !ok {
		writeUnauthorized(w)
		return
	}

	body, err := readBody(w, r)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	req, err := decodeConfirm(body)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	req.VenueID = chi.URLParam(r, "venueID")
	req.CustomerID = key.CustomerID
	req.IdempotencyKey = r.Header.Get(IdempotencyKeyHeader)
	if len(req.IdempotencyKey) > maxIdempotencyKeyLen {
		writeBadRequest(w, errors.New("idempotency key too long"))
		return
	}

	b, err := h.bookings.Confirm(ctx, req)
	if err != nil {
		writeDomainError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusCreated, encodeBooking(b))
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, errors.Wrap(err, "read body")
	}
	return body, nil
}
