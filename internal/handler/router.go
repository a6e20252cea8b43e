package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/xenking/arena-booking/internal/domain/auth"
	"github.com/xenking/arena-booking/pkg/httpmiddleware"
)

// Probes serves the liveness and readiness endpoints.
type Probes interface {
	LiveEndpoint(w http.ResponseWriter, r *http.Request)
	ReadyEndpoint(w http.ResponseWriter, r *http.Request)
}

// RoutePattern returns the chi route pattern matched for r, or "" before
// routing.
func RoutePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return ""
	}
	return rctx.RoutePattern()
}

// NewRouter mounts the probes and the API on one chi router.
func NewRouter(h *Handler, sec *Security, probes Probes) http.Handler {
	r := chi.NewRouter()
	r.Use(
		httpmiddleware.LogRequests(RoutePattern),
		httpmiddleware.Labeler(RoutePattern),
	)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httpmiddleware.WriteError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		httpmiddleware.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Get("/livez", probes.LiveEndpoint)
	r.Get("/readyz", probes.ReadyEndpoint)

	r.Route("/api/venues/{venueID}", func(r chi.Router) {
		r.Get("/discounts", h.ListDiscounts)
		r.Post("/quote", h.Quote)
		r.With(sec.Require(auth.ScopeBookingsWrite)).Post("/bookings", h.ConfirmBooking)
	})
	return r
}
