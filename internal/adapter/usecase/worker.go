package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"adsync/internal/core/domain"
	"adsync/internal/core/port"
)

const popTimeout = 5 * time.Second

// EnqueueSync pushes a reconciliation action onto a sync queue.
func EnqueueSync(ctx context.Context, q port.Queue, msg domain.SyncMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return q.Push(ctx, payload)
}

// EnqueueReport pushes a reporting action onto a report queue.
func EnqueueReport(ctx context.Context, q port.Queue, msg domain.ReportMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return q.Push(ctx, payload)
}

// SyncWorker consumes the sync queue and dispatches each action. Handlers
// are idempotent, so a failed message is pushed back for redelivery rather
// than retried in process.
type SyncWorker struct {
	queue  port.Queue
	store  port.Store
	sync   *SyncService
	logger *slog.Logger
}

func NewSyncWorker(queue port.Queue, store port.Store, sync *SyncService, logger *slog.Logger) *SyncWorker {
	return &SyncWorker{queue: queue, store: store, sync: sync, logger: logger}
}

func (w *SyncWorker) Run(ctx context.Context) {
	runConsumer(ctx, w.queue, w.logger, w.Handle)
}

// Handle processes one message. A nil return removes the message for good;
// malformed payloads and missing entities are dropped with a log line.
func (w *SyncWorker) Handle(ctx context.Context, payload []byte) error {
	var msg domain.SyncMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		w.logger.Warn("dropping malformed sync message", "error", err)
		return nil
	}

	switch msg.Action {
	case domain.ActionUpdate, domain.ActionDeactivateOverdelivered:
		item, booking, ok, err := w.resolve(ctx, msg)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if msg.Action == domain.ActionUpdate {
			return w.sync.Sync(ctx, item, booking, msg.TriggeredBy)
		}
		if booking == nil {
			w.logger.Warn("dropping deactivation without booking", "content_item_id", msg.ContentItemID)
			return nil
		}
		return w.sync.DeactivateOverdelivered(ctx, item, booking, msg.TriggeredBy)

	case domain.ActionDeactivateOrphanedFlight:
		return w.sync.DeactivateOrphanFlight(ctx, msg.FlightID, msg.TriggeredBy)

	default:
		w.logger.Warn("dropping sync message with unknown action", "action", msg.Action)
		return nil
	}
}

// resolve loads the referenced entities. A missing entity means it was
// legitimately deleted between enqueue and processing, so ok reports false
// and the message is dropped.
func (w *SyncWorker) resolve(ctx context.Context, msg domain.SyncMessage) (*domain.ContentItem, *domain.Booking, bool, error) {
	item, err := w.store.GetContentItem(ctx, msg.ContentItemID)
	if errors.Is(err, port.ErrNotFound) {
		w.logger.Warn("dropping message for missing content item", "content_item_id", msg.ContentItemID)
		return nil, nil, false, nil
	}
	if err != nil {
		return nil, nil, false, err
	}

	var booking *domain.Booking
	if msg.BookingID != "" {
		booking, err = w.store.GetBooking(ctx, msg.BookingID)
		if errors.Is(err, port.ErrNotFound) {
			w.logger.Warn("dropping message for missing booking", "booking_id", msg.BookingID)
			return nil, nil, false, nil
		}
		if err != nil {
			return nil, nil, false, err
		}
	}
	return item, booking, true, nil
}

// runConsumer is the shared pop-dispatch-requeue loop behind both workers.
func runConsumer(ctx context.Context, queue port.Queue, logger *slog.Logger, handle func(context.Context, []byte) error) {
	for {
		payload, ok, err := queue.Pop(ctx, popTimeout)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			logger.Error("queue pop failed", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		if !ok {
			continue
		}

		if err := handle(ctx, payload); err != nil {
			logger.Error("message handling failed, requeueing", "error", err)
			if pushErr := queue.Push(context.WithoutCancel(ctx), payload); pushErr != nil {
				logger.Error("requeue failed, message lost", "error", pushErr)
			}
		}
	}
}
