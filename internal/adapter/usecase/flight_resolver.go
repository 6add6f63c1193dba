package usecase

import (
	"context"
	"log/slog"

	"adsync/internal/core/port"
)

// FlightResolver maps a remote flight id back to a local booking id for the
// ad-selection read path. The cache is non-authoritative: a miss falls
// through to the store and repopulates, and cache failures only degrade to
// store lookups.
type FlightResolver struct {
	cache  port.FlightCache
	store  port.Store
	logger *slog.Logger
}

func NewFlightResolver(cache port.FlightCache, store port.Store, logger *slog.Logger) *FlightResolver {
	return &FlightResolver{cache: cache, store: store, logger: logger}
}

// Resolve returns the booking id serving a flight, or port.ErrNotFound when
// the flight id maps to no local booking.
func (r *FlightResolver) Resolve(ctx context.Context, flightID int64) (string, error) {
	bookingID, ok, err := r.cache.Get(ctx, flightID)
	if err != nil {
		r.logger.Warn("flight cache get failed", "flight_id", flightID, "error", err)
	}
	if ok {
		return bookingID, nil
	}

	booking, err := r.store.BookingByFlightID(ctx, flightID)
	if err != nil {
		return "", err
	}
	if err := r.cache.Set(ctx, flightID, booking.ID); err != nil {
		r.logger.Warn("flight cache set failed", "flight_id", flightID, "error", err)
	}
	return booking.ID, nil
}
