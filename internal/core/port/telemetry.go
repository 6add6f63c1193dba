package port

import "context"

// RemoteAttempt describes one remote mutation attempt, success or failure.
type RemoteAttempt struct {
	RequestType string // e.g. "create_flight", "update_campaign"
	TargetKind  string
	TargetID    string
	Payload     any
	TriggeredBy string
	Err         error
}

// Telemetry is the fire-and-forget event sink. Implementations squelch their
// own failures; emitting an event must never affect the critical path.
type Telemetry interface {
	RemoteAttempt(ctx context.Context, ev RemoteAttempt)
}
