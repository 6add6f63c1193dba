package port

import (
	"context"
	"time"

	"adsync/internal/core/domain"
)

// DailyUsage is one merged (entity, day) row of remote-reported counters.
// Spend is stored in integer minor currency units.
type DailyUsage struct {
	Day          time.Time
	Impressions  int64
	Clicks       int64
	SpendPennies int64
}

// LifetimeUsage holds a booking's lifetime remote counters along with the
// report they came from.
type LifetimeUsage struct {
	Impressions  int64
	Clicks       int64
	SpendPennies int64
	ReportID     string
	RunAt        time.Time
}

// Store is the local entity store. It owns commit semantics; every method is
// a single atomic write or read. Implementations must be concurrency-safe.
type Store interface {
	GetContentItem(ctx context.Context, id string) (*domain.ContentItem, error)
	GetBooking(ctx context.Context, id string) (*domain.Booking, error)
	GetAuthor(ctx context.Context, id string) (*domain.Author, error)

	// BookingsByContentItem returns all bookings of an item, used to
	// compute daily report windows.
	BookingsByContentItem(ctx context.Context, itemID string) ([]*domain.Booking, error)
	// BookingByFlightID resolves a booking through the remote-flight-id
	// secondary index. Returns ErrNotFound when no booking carries the id.
	BookingByFlightID(ctx context.Context, flightID int64) (*domain.Booking, error)

	// ScheduledPromos returns promos scheduled on the day now+offset days.
	ScheduledPromos(ctx context.Context, now time.Time, offsetDays int) ([]domain.Promo, error)

	// Remote ids are persisted immediately after each remote create, before
	// any further remote call for the entity.
	SetAuthorAdvertiserID(ctx context.Context, authorID string, remoteID int64) error
	SetItemCampaignID(ctx context.Context, itemID string, remoteID int64) error
	SetItemCreativeID(ctx context.Context, itemID string, remoteID int64) error
	SetBookingFlightID(ctx context.Context, bookingID string, remoteID int64) error
	SetBookingCFMapID(ctx context.Context, bookingID string, remoteID int64) error
	MarkBookingOverdelivered(ctx context.Context, bookingID string) error

	// AppendAuditLog adds a human-readable change description to the
	// content item's audit trail.
	AppendAuditLog(ctx context.Context, itemID, text string) error

	// BillableImpressions returns the delivered impressions counted toward
	// contract fulfillment for a booking.
	BillableImpressions(ctx context.Context, bookingID string) (int64, error)

	// Merge-upserts keyed by (entity, day): re-persisting the same report
	// yields identical stored counters.
	UpsertItemDailyUsage(ctx context.Context, itemID string, usage DailyUsage) error
	UpsertBookingDailyUsage(ctx context.Context, bookingID string, usage DailyUsage) error

	SetBookingLifetimeUsage(ctx context.Context, bookingID string, usage LifetimeUsage) error
	SetItemDailyReportRun(ctx context.Context, itemID, reportID string, runAt time.Time) error
}
