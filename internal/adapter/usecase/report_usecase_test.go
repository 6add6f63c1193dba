package usecase

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"adsync/internal/config/configs"
	"adsync/internal/core/domain"
	"adsync/internal/core/port"
)

const reportTimeout = 10 * time.Minute

type reportFixture struct {
	svc     *ReportService
	store   *fakeStore
	reports *fakeReports
	queue   *fakeQueue
	sleeps  []time.Duration
}

func newReportFixture(results ...port.ReportResult) *reportFixture {
	f := &reportFixture{
		store:   newFakeStore(),
		reports: &fakeReports{results: results},
		queue:   &fakeQueue{},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f.svc = NewReportService(f.store, f.reports, f.queue, configs.Reporting{
		Timeout:            reportTimeout,
		BackoffBaseSeconds: 3,
	}, logger)
	f.svc.now = func() time.Time { return testNow }
	f.svc.sleep = func(d time.Duration) { f.sleeps = append(f.sleeps, d) }
	return f
}

func (f *reportFixture) addReportedBooking() (*domain.ContentItem, *domain.Booking) {
	campaignID, flightID := int64(300), int64(500)
	item := &domain.ContentItem{
		ID:               "t3_abc",
		Approved:         true,
		RemoteCampaignID: &campaignID,
	}
	booking := &domain.Booking{
		ID:             "bk_1",
		ContentItemID:  item.ID,
		StartDate:      testNow.Add(-72 * time.Hour),
		EndDate:        testNow.Add(72 * time.Hour),
		CostBasis:      domain.CostBasisCPM,
		Impressions:    10000,
		RemoteFlightID: &flightID,
	}
	f.store.items[item.ID] = item
	f.store.bookings[booking.ID] = booking
	return item, booking
}

func TestNormalizeUsage(t *testing.T) {
	imp, clicks, spend := normalizeUsage(5, 10, 3.0)
	require.Zero(t, imp)
	require.Zero(t, clicks)
	require.Zero(t, spend)

	imp, clicks, spend = normalizeUsage(10, 5, 3.0)
	require.Equal(t, int64(10), imp)
	require.Equal(t, int64(5), clicks)
	require.Equal(t, 3.0, spend)
}

func TestAwaitBackoffBeforeTimeout(t *testing.T) {
	f := newReportFixture(
		port.ReportResult{State: port.ReportPending},
		port.ReportResult{State: port.ReportReady, Payload: "{}"},
	)

	// One second shy of the timeout: another bounded wait, not failure.
	queuedAt := testNow.Add(-(reportTimeout - time.Second))
	payload, err := f.svc.await(context.Background(), "r1", queuedAt, "test")
	require.NoError(t, err)
	require.Equal(t, "{}", payload)
	require.Equal(t, []time.Duration{3 * time.Second}, f.sleeps)
}

func TestAwaitTimeoutIsTerminal(t *testing.T) {
	f := newReportFixture(port.ReportResult{State: port.ReportPending})

	queuedAt := testNow.Add(-(reportTimeout + time.Second))
	_, err := f.svc.await(context.Background(), "r1", queuedAt, "test")
	require.ErrorIs(t, err, port.ErrReportFailed)
	require.Empty(t, f.sleeps)
}

func TestAwaitErroredIsTerminal(t *testing.T) {
	f := newReportFixture(port.ReportResult{State: port.ReportErrored, Reason: "bad criteria"})

	_, err := f.svc.await(context.Background(), "r1", testNow, "test")
	require.ErrorIs(t, err, port.ErrReportFailed)
	require.ErrorContains(t, err, "bad criteria")
}

func TestLifetimeReportPersists(t *testing.T) {
	f := newReportFixture(port.ReportResult{
		State: port.ReportReady,
		Payload: `{"TotalImpressions": 1000, "TotalClicks": 60,
			"TotalFraudulentClicks": 10, "TotalTrueRevenue": 12.34}`,
	})
	_, booking := f.addReportedBooking()

	msg := mustMarshal(t, domain.ReportMessage{
		Action:   domain.ActionGenerateLifetimeReport,
		TargetID: booking.ID,
		QueuedAt: testNow,
	})
	require.NoError(t, f.svc.Handle(context.Background(), msg))

	require.Len(t, f.reports.queued, 1)
	criteria := f.reports.queued[0]
	require.True(t, criteria.Start.Equal(booking.StartDate))
	require.True(t, criteria.End.Equal(testNow))
	require.Equal(t, []map[string]any{{"flightId": int64(500)}}, criteria.Parameters)

	got := f.store.lifetime[booking.ID]
	require.Equal(t, int64(1000), got.Impressions)
	require.Equal(t, int64(50), got.Clicks)
	require.Equal(t, int64(1234), got.SpendPennies)
	require.Equal(t, "report-1", got.ReportID)
}

func TestLifetimeReportRegeneratesOnTimeout(t *testing.T) {
	f := newReportFixture(port.ReportResult{State: port.ReportPending})
	_, booking := f.addReportedBooking()

	msg := mustMarshal(t, domain.ReportMessage{
		Action:   domain.ActionLifetimeReport,
		TargetID: booking.ID,
		ReportID: "stale",
		QueuedAt: testNow.Add(-reportTimeout - time.Minute),
	})
	require.NoError(t, f.svc.Handle(context.Background(), msg))

	// The stale id is abandoned and a fresh generate action queued.
	require.Empty(t, f.reports.queued)
	require.Len(t, f.queue.messages, 1)
	var requeued domain.ReportMessage
	require.NoError(t, json.Unmarshal(f.queue.messages[0], &requeued))
	require.Equal(t, domain.ActionGenerateLifetimeReport, requeued.Action)
	require.Equal(t, booking.ID, requeued.TargetID)
	require.Empty(t, requeued.ReportID)
}

const dailyPayload = `{
	"Records": [
		{
			"Date": "2026-05-09T00:00:00",
			"Impressions": 100, "Clicks": 5, "FraudulentClicks": 0, "TrueRevenue": 2.5,
			"Details": [
				{"Title": "bk_1", "Grouping": {"OptionId": 500},
				 "Impressions": 60, "Clicks": 3, "FraudulentClicks": 0, "TrueRevenue": 1.5},
				{"Title": "bk_1", "Grouping": {"OptionId": 500},
				 "Impressions": 40, "Clicks": 2, "FraudulentClicks": 0, "TrueRevenue": 1.0},
				{"Title": "t3_abc", "Grouping": {"optionId": 999},
				 "Impressions": 7, "Clicks": 0, "FraudulentClicks": 0, "TrueRevenue": 0},
				{"Title": "bk_ghost", "Grouping": {"OptionId": 888},
				 "Impressions": 9, "Clicks": 0, "FraudulentClicks": 0, "TrueRevenue": 0}
			]
		},
		{
			"Date": "2026-05-10T00:00:00",
			"Impressions": 2, "Clicks": 5, "FraudulentClicks": 0, "TrueRevenue": 1.0,
			"Details": []
		}
	]
}`

func TestDailyReportPersistsAndIsIdempotent(t *testing.T) {
	f := newReportFixture(port.ReportResult{State: port.ReportReady, Payload: dailyPayload})
	item, _ := f.addReportedBooking()

	require.NoError(t, f.svc.persistDaily(context.Background(), item, "report-9", testNow))

	day := time.Date(2026, 5, 9, 0, 0, 0, 0, time.UTC)
	itemRow := f.store.itemDaily[dayKey(item.ID, day)]
	require.Equal(t, int64(100), itemRow.Impressions)
	require.Equal(t, int64(5), itemRow.Clicks)
	require.Equal(t, int64(250), itemRow.SpendPennies)

	// Fragmented detail rows for the same (booking, day) are summed;
	// unmatched titles are skipped.
	bookingRow := f.store.bookingDaily[dayKey("bk_1", day)]
	require.Equal(t, int64(100), bookingRow.Impressions)
	require.Equal(t, int64(5), bookingRow.Clicks)
	require.Equal(t, int64(250), bookingRow.SpendPennies)
	require.NotContains(t, f.store.bookingDaily, dayKey("bk_ghost", day))

	// Clicks outran impressions on the 10th: the whole day zeroes out.
	zeroDay := time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC)
	zeroRow := f.store.itemDaily[dayKey(item.ID, zeroDay)]
	require.Zero(t, zeroRow.Impressions)
	require.Zero(t, zeroRow.Clicks)
	require.Zero(t, zeroRow.SpendPennies)

	require.Equal(t, "report-9", item.LastDailyReportID)

	// Re-persisting the same report leaves identical counters.
	itemBefore := len(f.store.itemDaily)
	bookingBefore := len(f.store.bookingDaily)
	require.NoError(t, f.svc.persistDaily(context.Background(), item, "report-9", testNow))
	require.Len(t, f.store.itemDaily, itemBefore)
	require.Len(t, f.store.bookingDaily, bookingBefore)
	require.Equal(t, itemRow, f.store.itemDaily[dayKey(item.ID, day)])
	require.Equal(t, bookingRow, f.store.bookingDaily[dayKey("bk_1", day)])
}

func TestDailyWindow(t *testing.T) {
	item := &domain.ContentItem{ID: "t3_abc"}
	bookings := []*domain.Booking{
		{StartDate: testNow.Add(-96 * time.Hour), EndDate: testNow.Add(-48 * time.Hour)},
		{StartDate: testNow.Add(-72 * time.Hour), EndDate: testNow.Add(48 * time.Hour)},
	}

	// No previous run: the whole schedule, capped at now.
	start, end := dailyWindow(item, bookings, testNow)
	require.True(t, start.Equal(testNow.Add(-96*time.Hour)))
	require.True(t, end.Equal(testNow))

	// A previous run re-processes the trailing day.
	lastRun := testNow.Add(-2 * time.Hour)
	item.LastDailyReportRun = &lastRun
	start, end = dailyWindow(item, bookings, testNow)
	require.True(t, start.Equal(lastRun.Add(-24*time.Hour)))
	require.True(t, end.Equal(testNow))

	// A run after every booking ended falls back to the full window.
	farFuture := testNow.Add(1000 * time.Hour)
	item.LastDailyReportRun = &farFuture
	start, _ = dailyWindow(item, bookings, testNow)
	require.True(t, start.Equal(testNow.Add(-96*time.Hour)))
}

func TestSweepServedDeduplicates(t *testing.T) {
	f := newReportFixture()
	item, booking := f.addReportedBooking()
	other := &domain.Booking{ID: "bk_2", ContentItemID: item.ID}
	f.store.bookings[other.ID] = other
	// The same promo shows up in both the today and yesterday sweeps.
	f.store.promos = []domain.Promo{
		{Item: item, Booking: booking},
		{Item: item, Booking: other},
	}

	require.NoError(t, f.svc.SweepServed(context.Background()))

	var daily, lifetime int
	for _, raw := range f.queue.messages {
		var msg domain.ReportMessage
		require.NoError(t, json.Unmarshal(raw, &msg))
		switch msg.Action {
		case domain.ActionGenerateDailyReport:
			daily++
		case domain.ActionGenerateLifetimeReport:
			lifetime++
		}
	}
	require.Equal(t, 1, daily)
	require.Equal(t, 2, lifetime)
}
