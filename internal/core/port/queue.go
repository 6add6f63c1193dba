package port

import (
	"context"
	"time"
)

// Queue is an at-least-once message queue. Pop blocks up to timeout and
// reports ok=false when nothing was available. A popped message is gone from
// the queue; redelivery safety comes from idempotent handlers, not from the
// queue itself.
type Queue interface {
	Push(ctx context.Context, payload []byte) error
	Pop(ctx context.Context, timeout time.Duration) (payload []byte, ok bool, err error)
}

// Locker is a named mutual-exclusion lock shared across worker processes.
// Acquire blocks until the lock is held or ctx is done; the returned token
// must be passed to Release so only the holder can release.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Release(ctx context.Context, key, token string) error
}

// FlightCache maps a remote flight id to a local booking id with a bounded
// expiry. It is best-effort and non-authoritative: Set failures must not
// fail the write path, and a Get miss falls through to the store.
type FlightCache interface {
	Set(ctx context.Context, flightID int64, bookingID string) error
	Get(ctx context.Context, flightID int64) (bookingID string, ok bool, err error)
}
