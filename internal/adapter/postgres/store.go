package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"adsync/internal/core/domain"
	"adsync/internal/core/port"
)

// Store implements port.Store on pgxpool. Every method is a single
// statement or a short transaction; commit semantics stay inside the store.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const itemColumns = `
	id, author_id, title, url, is_self, approved, deleted, externally_hosted,
	remote_campaign_id, remote_creative_id, last_daily_report_id, last_daily_report_run`

func scanItem(row pgx.Row) (*domain.ContentItem, error) {
	var it domain.ContentItem
	var reportID *string
	err := row.Scan(
		&it.ID, &it.AuthorID, &it.Title, &it.URL, &it.IsSelf, &it.Approved,
		&it.Deleted, &it.ExternallyHosted, &it.RemoteCampaignID,
		&it.RemoteCreativeID, &reportID, &it.LastDailyReportRun,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, port.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if reportID != nil {
		it.LastDailyReportID = *reportID
	}
	return &it, nil
}

func (s *Store) GetContentItem(ctx context.Context, id string) (*domain.ContentItem, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+itemColumns+` FROM content_items WHERE id = $1`, id)
	return scanItem(row)
}

const bookingColumns = `
	id, content_item_id, start_date, end_date, cost_basis, cpm, bid,
	budget_total, impressions, subreddit_names, platform, mobile_os,
	ios_devices, ios_min_version, ios_max_version,
	android_devices, android_min_version, android_max_version,
	geo_country, geo_region, geo_metro,
	frequency_cap, frequency_cap_duration, priority_name,
	paused, deleted, payment_settled, payment_waived, overdelivered,
	remote_flight_id, remote_cfmap_id,
	remote_impressions, remote_clicks, remote_spend_pennies,
	last_lifetime_report_id, last_lifetime_report_run`

func scanBooking(row pgx.Row) (*domain.Booking, error) {
	var (
		b          domain.Booking
		iosMin     *string
		iosMax     *string
		androidMin *string
		androidMax *string
		country    *string
		region     *string
		metro      *int
		reportID   *string
	)
	err := row.Scan(
		&b.ID, &b.ContentItemID, &b.StartDate, &b.EndDate, &b.CostBasis,
		&b.CPM, &b.Bid, &b.BudgetTotal, &b.Impressions,
		&b.Targeting.SubredditNames, &b.Targeting.Platform, &b.Targeting.MobileOS,
		&b.Targeting.IOSDevices, &iosMin, &iosMax,
		&b.Targeting.AndroidDevices, &androidMin, &androidMax,
		&country, &region, &metro,
		&b.FrequencyCap, &b.FrequencyCapDuration, &b.PriorityName,
		&b.Paused, &b.Deleted, &b.PaymentSettled, &b.PaymentWaived, &b.Overdelivered,
		&b.RemoteFlightID, &b.RemoteCFMapID,
		&b.RemoteImpressions, &b.RemoteClicks, &b.RemoteSpendPennies,
		&reportID, &b.LastLifetimeReportRun,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, port.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if iosMin != nil {
		b.Targeting.IOSVersions = &domain.VersionRange{Min: *iosMin}
		if iosMax != nil {
			b.Targeting.IOSVersions.Max = *iosMax
		}
	}
	if androidMin != nil {
		b.Targeting.AndroidVersions = &domain.VersionRange{Min: *androidMin}
		if androidMax != nil {
			b.Targeting.AndroidVersions.Max = *androidMax
		}
	}
	if country != nil {
		loc := domain.Location{Country: *country, Metro: metro}
		if region != nil {
			loc.Region = *region
		}
		b.Targeting.Location = &loc
	}
	if reportID != nil {
		b.LastLifetimeReportID = *reportID
	}
	return &b, nil
}

func (s *Store) GetBooking(ctx context.Context, id string) (*domain.Booking, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id)
	return scanBooking(row)
}

func (s *Store) GetAuthor(ctx context.Context, id string) (*domain.Author, error) {
	var a domain.Author
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, remote_advertiser_id FROM authors WHERE id = $1`, id).
		Scan(&a.ID, &a.Name, &a.RemoteAdvertiserID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, port.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *Store) BookingsByContentItem(ctx context.Context, itemID string) ([]*domain.Booking, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE content_item_id = $1 ORDER BY id`, itemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bookings []*domain.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

func (s *Store) BookingByFlightID(ctx context.Context, flightID int64) (*domain.Booking, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE remote_flight_id = $1 LIMIT 1`, flightID)
	return scanBooking(row)
}

func (s *Store) ScheduledPromos(ctx context.Context, now time.Time, offsetDays int) ([]domain.Promo, error) {
	day := now.UTC().AddDate(0, 0, offsetDays)
	rows, err := s.pool.Query(ctx,
		`SELECT `+bookingColumns+`
		 FROM bookings
		 WHERE NOT deleted AND start_date <= $1 AND end_date > $1
		 ORDER BY id`, day)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bookings []*domain.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	promos := make([]domain.Promo, 0, len(bookings))
	items := make(map[string]*domain.ContentItem)
	for _, b := range bookings {
		item, ok := items[b.ContentItemID]
		if !ok {
			item, err = s.GetContentItem(ctx, b.ContentItemID)
			if errors.Is(err, port.ErrNotFound) {
				continue
			}
			if err != nil {
				return nil, err
			}
			items[b.ContentItemID] = item
		}
		promos = append(promos, domain.Promo{Item: item, Booking: b})
	}
	return promos, nil
}

func (s *Store) setID(ctx context.Context, query, localID string, remoteID int64) error {
	tag, err := s.pool.Exec(ctx, query, remoteID, localID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return port.ErrNotFound
	}
	return nil
}

func (s *Store) SetAuthorAdvertiserID(ctx context.Context, authorID string, remoteID int64) error {
	return s.setID(ctx, `UPDATE authors SET remote_advertiser_id = $1 WHERE id = $2`, authorID, remoteID)
}

func (s *Store) SetItemCampaignID(ctx context.Context, itemID string, remoteID int64) error {
	return s.setID(ctx, `UPDATE content_items SET remote_campaign_id = $1 WHERE id = $2`, itemID, remoteID)
}

func (s *Store) SetItemCreativeID(ctx context.Context, itemID string, remoteID int64) error {
	return s.setID(ctx, `UPDATE content_items SET remote_creative_id = $1 WHERE id = $2`, itemID, remoteID)
}

func (s *Store) SetBookingFlightID(ctx context.Context, bookingID string, remoteID int64) error {
	return s.setID(ctx, `UPDATE bookings SET remote_flight_id = $1 WHERE id = $2`, bookingID, remoteID)
}

func (s *Store) SetBookingCFMapID(ctx context.Context, bookingID string, remoteID int64) error {
	return s.setID(ctx, `UPDATE bookings SET remote_cfmap_id = $1 WHERE id = $2`, bookingID, remoteID)
}

func (s *Store) MarkBookingOverdelivered(ctx context.Context, bookingID string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE bookings SET overdelivered = TRUE WHERE id = $1`, bookingID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return port.ErrNotFound
	}
	return nil
}

func (s *Store) AppendAuditLog(ctx context.Context, itemID, text string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO audit_log (content_item_id, entry, created_at) VALUES ($1, $2, $3)`,
		itemID, text, time.Now().UTC())
	return err
}

// BillableImpressions sums the delivered daily counters recorded so far for
// a booking. The remote lifetime counter lags and is not used here.
func (s *Store) BillableImpressions(ctx context.Context, bookingID string) (int64, error) {
	var total int64
	err := s.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(impressions), 0) FROM traffic_bookings_daily WHERE booking_id = $1`,
		bookingID).Scan(&total)
	return total, err
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func (s *Store) UpsertItemDailyUsage(ctx context.Context, itemID string, u port.DailyUsage) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO traffic_items_daily (content_item_id, day, impressions, clicks, spend_pennies)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (content_item_id, day)
		DO UPDATE SET impressions = $3, clicks = $4, spend_pennies = $5`,
		itemID, truncateDay(u.Day), u.Impressions, u.Clicks, u.SpendPennies)
	return err
}

func (s *Store) UpsertBookingDailyUsage(ctx context.Context, bookingID string, u port.DailyUsage) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO traffic_bookings_daily (booking_id, day, impressions, clicks, spend_pennies)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (booking_id, day)
		DO UPDATE SET impressions = $3, clicks = $4, spend_pennies = $5`,
		bookingID, truncateDay(u.Day), u.Impressions, u.Clicks, u.SpendPennies)
	return err
}

func (s *Store) SetBookingLifetimeUsage(ctx context.Context, bookingID string, u port.LifetimeUsage) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE bookings
		SET remote_impressions = $1, remote_clicks = $2, remote_spend_pennies = $3,
		    last_lifetime_report_id = $4, last_lifetime_report_run = $5
		WHERE id = $6`,
		u.Impressions, u.Clicks, u.SpendPennies, u.ReportID, u.RunAt.UTC(), bookingID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return port.ErrNotFound
	}
	return nil
}

func (s *Store) SetItemDailyReportRun(ctx context.Context, itemID, reportID string, runAt time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE content_items
		SET last_daily_report_id = $1, last_daily_report_run = $2
		WHERE id = $3`,
		reportID, runAt.UTC(), itemID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("content item %s: %w", itemID, port.ErrNotFound)
	}
	return nil
}
