package domain

import "time"

// Sync queue actions.
const (
	ActionUpdate                   = "update"
	ActionDeactivateOverdelivered  = "deactivate_overdelivered"
	ActionDeactivateOrphanedFlight = "deactivate_orphaned_flight"
)

// Report queue actions. The generate actions start a fresh report; the bare
// report actions resume polling an already-generated report id.
const (
	ActionGenerateDailyReport    = "generate_daily_report"
	ActionGenerateLifetimeReport = "generate_lifetime_report"
	ActionDailyReport            = "daily_report"
	ActionLifetimeReport         = "lifetime_report"
)

// SyncMessage is a queued reconciliation action. Delivery is at-least-once;
// handlers must treat redelivery as a safe no-op.
type SyncMessage struct {
	Action        string `json:"action"`
	ContentItemID string `json:"content_item_id,omitempty"`
	BookingID     string `json:"booking_id,omitempty"`
	FlightID      int64  `json:"flight_id,omitempty"`
	TriggeredBy   string `json:"triggered_by,omitempty"`
}

// ReportMessage is a queued reporting action. QueuedAt is the original
// enqueue time and bounds the total poll duration regardless of how often
// the message is redelivered.
type ReportMessage struct {
	Action   string    `json:"action"`
	TargetID string    `json:"target_id"`
	ReportID string    `json:"report_id,omitempty"`
	QueuedAt time.Time `json:"queued_date"`
}
