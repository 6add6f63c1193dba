package configs

import "time"

// Reporting tunes the report poller. Timeout is measured from the original
// enqueue time of a report job, not from the last poll, so redeliveries
// cannot extend the total retry window.
type Reporting struct {
	Timeout time.Duration `env:"TIMEOUT" envDefault:"10m"`
	// BackoffBaseSeconds is the base of the exponential poll backoff:
	// the n-th wait is base^n seconds.
	BackoffBaseSeconds float64 `env:"BACKOFF_BASE_SECONDS" envDefault:"3"`
	// SweepInterval is how often served promos are queued for reports.
	SweepInterval time.Duration `env:"SWEEP_INTERVAL" envDefault:"24h"`
}

// Sync tunes the orchestrator's locking and the overdelivery monitor.
type Sync struct {
	// LockTTL bounds how long a per-item lock can be held by a crashed
	// worker before it expires.
	LockTTL time.Duration `env:"LOCK_TTL" envDefault:"2m"`
	// OverdeliverySweepInterval is how often scheduled bookings are
	// checked against their contracted delivery.
	OverdeliverySweepInterval time.Duration `env:"OVERDELIVERY_SWEEP_INTERVAL" envDefault:"1h"`
	// OverdeliveryOffsetDays widens the sweep to bookings scheduled this
	// many days around today.
	OverdeliveryOffsetDays int `env:"OVERDELIVERY_OFFSET_DAYS" envDefault:"0"`
}
