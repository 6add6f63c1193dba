// Package telemetry is the fire-and-forget event sink. The production
// collector sits behind an internal event pipeline; this adapter emits the
// same events as structured logs, which is enough to trace every remote
// mutation attempt.
package telemetry

import (
	"context"
	"encoding/json"
	"log/slog"

	"adsync/internal/core/port"
)

type Sink struct {
	logger *slog.Logger
}

func NewSink(logger *slog.Logger) *Sink {
	return &Sink{logger: logger}
}

// RemoteAttempt emits one event per remote mutation attempt. All failures,
// including payload marshaling, are squelched so telemetry never affects
// the critical path.
func (s *Sink) RemoteAttempt(ctx context.Context, ev port.RemoteAttempt) {
	defer func() {
		_ = recover()
	}()

	payload, err := json.Marshal(ev.Payload)
	if err != nil {
		payload = []byte(`"unserializable"`)
	}

	attrs := []any{
		"request_type", ev.RequestType,
		"target_kind", ev.TargetKind,
		"target_id", ev.TargetID,
		"triggered_by", ev.TriggeredBy,
		"payload", string(payload),
	}
	if ev.Err != nil {
		attrs = append(attrs, "error", ev.Err.Error())
		s.logger.ErrorContext(ctx, "remote mutation failed", attrs...)
		return
	}
	s.logger.InfoContext(ctx, "remote mutation", attrs...)
}
