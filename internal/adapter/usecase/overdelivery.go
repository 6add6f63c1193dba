package usecase

import (
	"context"
	"log/slog"
	"time"

	"adsync/internal/config/configs"
	"adsync/internal/core/domain"
	"adsync/internal/core/port"
)

// overdelivered reports whether a booking's billable delivered impressions
// reached its contracted goal plus the slack buffer. Only impression-priced
// bookings can overdeliver.
func overdelivered(b *domain.Booking, billable int64) bool {
	if b.CostBasis != domain.CostBasisCPM {
		return false
	}
	return billable >= b.Impressions+domain.ImpressionBump
}

// OverdeliveryMonitor sweeps currently scheduled bookings and enqueues a
// deactivation action for each one that exceeded its contracted delivery.
// Detection only: the remote write goes through the orchestrator's standard
// flight-update path.
type OverdeliveryMonitor struct {
	store      port.Store
	queue      port.Queue
	offsetDays int
	interval   time.Duration
	logger     *slog.Logger
	now        func() time.Time
}

func NewOverdeliveryMonitor(store port.Store, queue port.Queue, cfg configs.Sync, logger *slog.Logger) *OverdeliveryMonitor {
	return &OverdeliveryMonitor{
		store:      store,
		queue:      queue,
		offsetDays: cfg.OverdeliveryOffsetDays,
		interval:   cfg.OverdeliverySweepInterval,
		logger:     logger,
		now:        time.Now,
	}
}

func (m *OverdeliveryMonitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		if err := m.Sweep(ctx); err != nil {
			m.logger.Error("overdelivery sweep failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (m *OverdeliveryMonitor) Sweep(ctx context.Context) error {
	now := m.now()
	promos, err := m.store.ScheduledPromos(ctx, now, m.offsetDays)
	if err != nil {
		return err
	}

	for _, p := range promos {
		b := p.Booking
		// An already-flagged booking must not re-trigger deactivation.
		if b.Overdelivered || !p.Item.Approved || p.Item.Deleted || !b.Live(now) {
			continue
		}
		if b.CostBasis != domain.CostBasisCPM {
			continue
		}
		billable, err := m.store.BillableImpressions(ctx, b.ID)
		if err != nil {
			return err
		}
		if !overdelivered(b, billable) {
			continue
		}

		m.logger.Info("booking overdelivered, queueing deactivation",
			"booking_id", b.ID, "billable", billable, "contracted", b.Impressions)
		err = EnqueueSync(ctx, m.queue, domain.SyncMessage{
			Action:        domain.ActionDeactivateOverdelivered,
			ContentItemID: p.Item.ID,
			BookingID:     b.ID,
		})
		if err != nil {
			return err
		}
	}
	return nil
}
