package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"adsync/internal/config/configs"
	"adsync/internal/core/domain"
	"adsync/internal/core/port"
)

// ReportService generates remote usage reports, polls them to completion
// and persists the parsed counters. Polling blocks the worker; report volume
// is low relative to sync traffic so that is tolerable.
type ReportService struct {
	store   port.Store
	reports port.ReportGateway
	queue   port.Queue
	cfg     configs.Reporting
	logger  *slog.Logger
	now     func() time.Time
	sleep   func(time.Duration)
}

func NewReportService(store port.Store, reports port.ReportGateway, queue port.Queue, cfg configs.Reporting, logger *slog.Logger) *ReportService {
	return &ReportService{
		store:   store,
		reports: reports,
		queue:   queue,
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
		sleep:   time.Sleep,
	}
}

// ReportWorker consumes the report queue.
type ReportWorker struct {
	queue   port.Queue
	service *ReportService
	logger  *slog.Logger
}

func NewReportWorker(queue port.Queue, service *ReportService, logger *slog.Logger) *ReportWorker {
	return &ReportWorker{queue: queue, service: service, logger: logger}
}

func (w *ReportWorker) Run(ctx context.Context) {
	runConsumer(ctx, w.queue, w.logger, w.service.Handle)
}

// Handle dispatches one report action. The generate actions queue a fresh
// report and poll it; the bare actions resume polling a report id that a
// previous run already queued, against the original enqueue time.
func (s *ReportService) Handle(ctx context.Context, payload []byte) error {
	var msg domain.ReportMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		s.logger.Warn("dropping malformed report message", "error", err)
		return nil
	}

	switch msg.Action {
	case domain.ActionGenerateLifetimeReport:
		booking, ok, err := s.booking(ctx, msg.TargetID)
		if err != nil || !ok {
			return err
		}
		return s.generateLifetime(ctx, booking)

	case domain.ActionLifetimeReport:
		booking, ok, err := s.booking(ctx, msg.TargetID)
		if err != nil || !ok {
			return err
		}
		return s.regenerateOnFailure(ctx, domain.ActionGenerateLifetimeReport, msg.TargetID,
			s.persistLifetime(ctx, booking, msg.ReportID, msg.QueuedAt))

	case domain.ActionGenerateDailyReport:
		item, ok, err := s.item(ctx, msg.TargetID)
		if err != nil || !ok {
			return err
		}
		return s.generateDaily(ctx, item)

	case domain.ActionDailyReport:
		item, ok, err := s.item(ctx, msg.TargetID)
		if err != nil || !ok {
			return err
		}
		return s.regenerateOnFailure(ctx, domain.ActionGenerateDailyReport, msg.TargetID,
			s.persistDaily(ctx, item, msg.ReportID, msg.QueuedAt))

	default:
		s.logger.Warn("dropping report message with unknown action", "action", msg.Action)
		return nil
	}
}

func (s *ReportService) booking(ctx context.Context, id string) (*domain.Booking, bool, error) {
	b, err := s.store.GetBooking(ctx, id)
	if errors.Is(err, port.ErrNotFound) {
		s.logger.Warn("dropping report message for missing booking", "booking_id", id)
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (s *ReportService) item(ctx context.Context, id string) (*domain.ContentItem, bool, error) {
	it, err := s.store.GetContentItem(ctx, id)
	if errors.Is(err, port.ErrNotFound) {
		s.logger.Warn("dropping report message for missing content item", "content_item_id", id)
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return it, true, nil
}

// regenerateOnFailure turns a terminal poll failure into a fresh generate
// action with a new report id and window. The stale id is never re-polled.
func (s *ReportService) regenerateOnFailure(ctx context.Context, action, targetID string, err error) error {
	if !errors.Is(err, port.ErrReportFailed) {
		return err
	}
	s.logger.Warn("report failed, regenerating", "target_id", targetID, "error", err)
	return EnqueueReport(ctx, s.queue, domain.ReportMessage{
		Action:   action,
		TargetID: targetID,
		QueuedAt: s.now(),
	})
}

func (s *ReportService) generateLifetime(ctx context.Context, b *domain.Booking) error {
	if b.RemoteFlightID == nil {
		s.logger.Warn("booking has no flight, skipping lifetime report", "booking_id", b.ID)
		return nil
	}
	now := s.now()
	end := b.EndDate
	if now.Before(end) {
		end = now
	}
	reportID, err := s.reports.QueueReport(ctx, port.ReportCriteria{
		Start:      b.StartDate,
		End:        end,
		Parameters: []map[string]any{{"flightId": *b.RemoteFlightID}},
	})
	if err != nil {
		return err
	}
	return s.regenerateOnFailure(ctx, domain.ActionGenerateLifetimeReport, b.ID,
		s.persistLifetime(ctx, b, reportID, now))
}

func (s *ReportService) persistLifetime(ctx context.Context, b *domain.Booking, reportID string, queuedAt time.Time) error {
	payload, err := s.await(ctx, reportID, queuedAt, "lifetime report for "+b.ID)
	if err != nil {
		return err
	}

	impressions := gjson.Get(payload, "TotalImpressions").Int()
	clicks := gjson.Get(payload, "TotalClicks").Int() - gjson.Get(payload, "TotalFraudulentClicks").Int()
	spend := gjson.Get(payload, "TotalTrueRevenue").Float()
	impressions, clicks, spend = normalizeUsage(impressions, clicks, spend)

	return s.store.SetBookingLifetimeUsage(ctx, b.ID, port.LifetimeUsage{
		Impressions:  impressions,
		Clicks:       clicks,
		SpendPennies: pennies(spend),
		ReportID:     reportID,
		RunAt:        queuedAt,
	})
}

func (s *ReportService) generateDaily(ctx context.Context, item *domain.ContentItem) error {
	if item.RemoteCampaignID == nil {
		s.logger.Warn("content item has no campaign, skipping daily report", "content_item_id", item.ID)
		return nil
	}
	bookings, err := s.store.BookingsByContentItem(ctx, item.ID)
	if err != nil {
		return err
	}
	if len(bookings) == 0 {
		return nil
	}

	now := s.now()
	start, end := dailyWindow(item, bookings, now)
	reportID, err := s.reports.QueueReport(ctx, port.ReportCriteria{
		Start:      start,
		End:        end,
		GroupBy:    []string{"optionId", "day"},
		Parameters: []map[string]any{{"campaignId": *item.RemoteCampaignID}},
	})
	if err != nil {
		return err
	}
	return s.regenerateOnFailure(ctx, domain.ActionGenerateDailyReport, item.ID,
		s.persistDaily(ctx, item, reportID, now))
}

// dailyWindow recomputes the date range a daily report must cover. The
// trailing day since the last run is re-processed because very recent remote
// counts are provisional.
func dailyWindow(item *domain.ContentItem, bookings []*domain.Booking, now time.Time) (start, end time.Time) {
	earliest := bookings[0].StartDate
	latest := bookings[0].EndDate
	for _, b := range bookings[1:] {
		if b.StartDate.Before(earliest) {
			earliest = b.StartDate
		}
		if b.EndDate.After(latest) {
			latest = b.EndDate
		}
	}

	start = earliest
	if item.LastDailyReportRun != nil {
		if resumed := item.LastDailyReportRun.Add(-24 * time.Hour); resumed.After(start) {
			start = resumed
		}
		if start.After(latest) {
			start = earliest
		}
	}
	end = latest
	if now.Before(end) {
		end = now
	}
	return start, end
}

func (s *ReportService) persistDaily(ctx context.Context, item *domain.ContentItem, reportID string, queuedAt time.Time) error {
	payload, err := s.await(ctx, reportID, queuedAt, "daily report for "+item.ID)
	if err != nil {
		return err
	}

	bookings, err := s.store.BookingsByContentItem(ctx, item.ID)
	if err != nil {
		return err
	}
	byID := make(map[string]*domain.Booking, len(bookings))
	for _, b := range bookings {
		byID[b.ID] = b
	}

	var persistErr error
	gjson.Get(payload, "Records").ForEach(func(_, record gjson.Result) bool {
		day, ok := parseReportDay(record.Get("Date").String())
		if !ok {
			s.logger.Warn("skipping report record with unparseable date",
				"content_item_id", item.ID, "date", record.Get("Date").String())
			return true
		}

		impressions, clicks, spend := recordUsage(record)
		if err := s.store.UpsertItemDailyUsage(ctx, item.ID, port.DailyUsage{
			Day:          day,
			Impressions:  impressions,
			Clicks:       clicks,
			SpendPennies: pennies(spend),
		}); err != nil {
			persistErr = err
			return false
		}

		// Mid-day price changes fragment a booking's delivery into
		// multiple detail rows for the same day; sum them first.
		perBooking := make(map[string]port.DailyUsage)
		record.Get("Details").ForEach(func(_, detail gjson.Result) bool {
			title := detail.Get("Title").String()
			if !strings.HasPrefix(title, domain.BookingIDPrefix) {
				s.logger.Error("report row title carries no booking id",
					"content_item_id", item.ID, "title", title)
				return true
			}
			b, ok := byID[title]
			if !ok {
				s.logger.Warn("report row matches no booking",
					"content_item_id", item.ID, "title", title,
					"flight_id", detailFlightID(detail))
				return true
			}
			di, dc, ds := recordUsage(detail)
			u := perBooking[b.ID]
			u.Day = day
			u.Impressions += di
			u.Clicks += dc
			u.SpendPennies += pennies(ds)
			perBooking[b.ID] = u
			return true
		})

		for bookingID, u := range perBooking {
			if err := s.store.UpsertBookingDailyUsage(ctx, bookingID, u); err != nil {
				persistErr = err
				return false
			}
		}
		return true
	})
	if persistErr != nil {
		return persistErr
	}

	return s.store.SetItemDailyReportRun(ctx, item.ID, reportID, queuedAt)
}

// await polls a report id until it is ready, errored or timed out. The
// timeout counts from the original enqueue time so redeliveries cannot
// extend it; hitting it wraps ErrReportFailed, which triggers regeneration.
func (s *ReportService) await(ctx context.Context, reportID string, queuedAt time.Time, desc string) (string, error) {
	for attempt := 1; ; attempt++ {
		result, err := s.reports.FetchReport(ctx, reportID)
		if err != nil {
			return "", err
		}
		switch result.State {
		case port.ReportReady:
			return result.Payload, nil
		case port.ReportErrored:
			return "", fmt.Errorf("%s (%s): %s: %w", desc, reportID, result.Reason, port.ErrReportFailed)
		}

		if s.now().Sub(queuedAt) > s.cfg.Timeout {
			return "", fmt.Errorf("%s (%s) timed out after %s: %w", desc, reportID, s.cfg.Timeout, port.ErrReportFailed)
		}
		wait := time.Duration(math.Pow(s.cfg.BackoffBaseSeconds, float64(attempt)) * float64(time.Second))
		s.logger.Info("report pending", "report_id", reportID, "attempt", attempt, "wait", wait)
		s.sleep(wait)
	}
}

// RunSweeper periodically queues reports for every promo served today or
// yesterday. Yesterday is included so a promo that ended overnight still
// gets its final counters.
func (s *ReportService) RunSweeper(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.SweepServed(ctx); err != nil {
				s.logger.Error("report sweep failed", "error", err)
			}
		}
	}
}

func (s *ReportService) SweepServed(ctx context.Context) error {
	now := s.now()
	seenItems := make(map[string]bool)
	seenBookings := make(map[string]bool)

	for _, offset := range []int{-1, 0} {
		promos, err := s.store.ScheduledPromos(ctx, now, offset)
		if err != nil {
			return err
		}
		for _, p := range promos {
			if !seenItems[p.Item.ID] {
				seenItems[p.Item.ID] = true
				err := EnqueueReport(ctx, s.queue, domain.ReportMessage{
					Action:   domain.ActionGenerateDailyReport,
					TargetID: p.Item.ID,
					QueuedAt: now,
				})
				if err != nil {
					return err
				}
			}
			if !seenBookings[p.Booking.ID] {
				seenBookings[p.Booking.ID] = true
				err := EnqueueReport(ctx, s.queue, domain.ReportMessage{
					Action:   domain.ActionGenerateLifetimeReport,
					TargetID: p.Booking.ID,
					QueuedAt: now,
				})
				if err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// recordUsage extracts the counters common to day records and their detail
// rows, already normalized.
func recordUsage(r gjson.Result) (impressions, clicks int64, spend float64) {
	impressions = r.Get("Impressions").Int()
	clicks = r.Get("Clicks").Int() - r.Get("FraudulentClicks").Int()
	spend = r.Get("TrueRevenue").Float()
	return normalizeUsage(impressions, clicks, spend)
}

// normalizeUsage zeroes a row whose clicks outran its impressions; the
// remote platform's click counting can outpace impression counting.
func normalizeUsage(impressions, clicks int64, spend float64) (int64, int64, float64) {
	if clicks > impressions {
		return 0, 0, 0
	}
	return impressions, clicks, spend
}

// pennies converts a spend in whole currency units to integer minor units.
func pennies(spend float64) int64 {
	return int64(math.Round(spend * 100))
}

// detailFlightID digs the flight id out of a detail row's grouping, which
// the platform serializes with inconsistent key casing.
func detailFlightID(detail gjson.Result) int64 {
	if v := detail.Get("Grouping.OptionId"); v.Exists() {
		return v.Int()
	}
	return detail.Get("Grouping.optionId").Int()
}

var reportDayFormats = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func parseReportDay(s string) (time.Time, bool) {
	for _, layout := range reportDayFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	if t, ok := domain.ParseWrappedDate(s); ok {
		return t, true
	}
	return time.Time{}, false
}
