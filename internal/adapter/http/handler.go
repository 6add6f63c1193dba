package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"adsync/internal/core/port"
)

// Resolver maps a remote flight id to the local booking it serves.
type Resolver interface {
	Resolve(ctx context.Context, flightID int64) (string, error)
}

// Handler is the inbound adapter for the internal operations API. The ad
// selection service calls it to map a remote flight decision back to a
// local booking without a remote round trip.
type Handler struct {
	resolver Resolver
	logger   *slog.Logger
	router   chi.Router
}

// NewHandler creates a handler with all routes configured.
func NewHandler(resolver Resolver, logger *slog.Logger) *Handler {
	h := &Handler{resolver: resolver, logger: logger}
	r := chi.NewRouter()

	r.Route("/internal", func(r chi.Router) {
		r.Get("/flights/{flightID}/booking", h.handleFlightBooking)
	})
	r.Get("/healthz", h.handleHealth)
	h.router = r
	return h
}

// Router returns the underlying http.Handler.
func (h *Handler) Router() http.Handler {
	return h.router
}

func (h *Handler) handleFlightBooking(w http.ResponseWriter, r *http.Request) {
	flightID, err := strconv.ParseInt(chi.URLParam(r, "flightID"), 10, 64)
	if err != nil {
		http.Error(w, "invalid flight id", http.StatusBadRequest)
		return
	}

	bookingID, err := h.resolver.Resolve(r.Context(), flightID)
	if errors.Is(err, port.ErrNotFound) {
		http.Error(w, "no booking for flight", http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.Error("flight resolution error", slog.Any("error", err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]string{"booking_id": bookingID}); err != nil {
		h.logger.Error("encode response error", slog.Any("error", err))
	}
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}
