package handler

import (
	"context"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/arena-booking/internal/domain/booking"
	"github.com/xenking/arena-booking/internal/domain/venue"
	"github.com/xenking/arena-booking/pkg/httpmiddleware"
)

// writeDomainError maps domain errors to API error responses. Anything
// unrecognized is logged and reported as 500 without details.
func writeDomainError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, venue.ErrNotFound):
		httpmiddleware.WriteError(w, http.StatusNotFound, "venue not found")
	case booking.IsInvalid(err):
		httpmiddleware.WriteError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, booking.ErrQuoteExpired),
		errors.Is(err, booking.ErrQuoteMismatch),
		errors.Is(err, booking.ErrQuoteInvalid),
		errors.Is(err, booking.ErrDuplicate):
		httpmiddleware.WriteError(w, http.StatusConflict, err.Error())
	default:
		zctx.From(ctx).Error("Request failed", zap.Error(err))
		httpmiddleware.WriteError(w, http.StatusInternalServerError, "internal server error")
	}
}

func writeBadRequest(w http.ResponseWriter, err error) {
	httpmiddleware.WriteError(w, http.StatusBadRequest, err.Error())
}

func writeUnauthorized(w http.ResponseWriter) {
	httpmiddleware.WriteError(w, http.StatusUnauthorized, "unauthorized")
}
