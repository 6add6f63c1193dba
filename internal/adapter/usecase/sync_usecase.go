package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"adsync/internal/config/configs"
	"adsync/internal/core/domain"
	"adsync/internal/core/port"
)

// flightStartDelay pushes a flight's start a little into the future on
// create, so the remote platform never rejects a start date that is already
// in the past by the time the write lands.
const flightStartDelay = 15 * time.Minute

// SyncService reconciles a (content item, booking) pair with the remote
// object graph. Every public method runs under a named lock keyed on the
// content item id, so concurrently dequeued messages for the same item never
// interleave remote writes.
type SyncService struct {
	store     port.Store
	gateway   port.Gateway
	locker    port.Locker
	cache     port.FlightCache
	telemetry port.Telemetry
	remote    configs.Remote
	lockTTL   time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

func NewSyncService(
	store port.Store,
	gateway port.Gateway,
	locker port.Locker,
	cache port.FlightCache,
	telemetry port.Telemetry,
	remote configs.Remote,
	sync configs.Sync,
	logger *slog.Logger,
) *SyncService {
	return &SyncService{
		store:     store,
		gateway:   gateway,
		locker:    locker,
		cache:     cache,
		telemetry: telemetry,
		remote:    remote,
		lockTTL:   sync.LockTTL,
		logger:    logger,
		now:       time.Now,
	}
}

func lockKey(itemID string) string { return "adsync:lock:" + itemID }

// Sync upserts the remote objects backing the pair. booking may be nil, in
// which case only the campaign side is reconciled. A remote error aborts the
// remaining steps; retry is the queue's job, not ours.
func (s *SyncService) Sync(ctx context.Context, item *domain.ContentItem, booking *domain.Booking, triggeredBy string) error {
	token, err := s.locker.Acquire(ctx, lockKey(item.ID), s.lockTTL)
	if err != nil {
		return fmt.Errorf("acquire lock for %s: %w", item.ID, err)
	}
	defer func() {
		if err := s.locker.Release(context.WithoutCancel(ctx), lockKey(item.ID), token); err != nil {
			s.logger.Warn("lock release failed", "item_id", item.ID, "error", err)
		}
	}()

	return s.sync(ctx, item, booking, triggeredBy)
}

// DeactivateOverdelivered re-runs the campaign and flight upserts for a
// booking the overdelivery monitor flagged. The flight update recomputes the
// active flag, which turns false once delivery exceeds the contracted goal.
func (s *SyncService) DeactivateOverdelivered(ctx context.Context, item *domain.ContentItem, booking *domain.Booking, triggeredBy string) error {
	token, err := s.locker.Acquire(ctx, lockKey(item.ID), s.lockTTL)
	if err != nil {
		return fmt.Errorf("acquire lock for %s: %w", item.ID, err)
	}
	defer func() {
		if err := s.locker.Release(context.WithoutCancel(ctx), lockKey(item.ID), token); err != nil {
			s.logger.Warn("lock release failed", "item_id", item.ID, "error", err)
		}
	}()

	campaignID, _, err := s.upsertCampaign(ctx, item, triggeredBy)
	if err != nil {
		return err
	}
	flight, err := s.upsertFlight(ctx, item, booking, campaignID, triggeredBy)
	if err != nil {
		return err
	}
	if err := s.store.AppendAuditLog(ctx, item.ID, fmt.Sprintf("deactivated flight %d", flight.ID)); err != nil {
		return err
	}
	return nil
}

// DeactivateOrphanFlight sets a remote flight inactive when no local booking
// resolves for it, signaling drift between the two object graphs. There is
// no local entity to lock or audit against.
func (s *SyncService) DeactivateOrphanFlight(ctx context.Context, flightID int64, triggeredBy string) error {
	flight, err := s.gateway.GetFlight(ctx, flightID)
	if port.IsRemoteNotFound(err) {
		s.logger.Info("orphaned flight already gone", "flight_id", flightID)
		return nil
	}
	if err != nil {
		return err
	}
	changes, err := domain.ApplyFields(flight, domain.FieldMap{"IsActive": false})
	if err != nil {
		return err
	}
	if len(changes) == 0 {
		return nil
	}
	err = s.gateway.UpdateFlight(ctx, flight)
	s.observe(ctx, "update_flight", "flight", fmt.Sprint(flightID), flight, triggeredBy, err)
	if err != nil {
		return err
	}
	s.logger.Info("deactivated orphaned flight", "flight_id", flightID)
	return nil
}

func (s *SyncService) sync(ctx context.Context, item *domain.ContentItem, booking *domain.Booking, triggeredBy string) error {
	campaignID, created, err := s.upsertCampaign(ctx, item, triggeredBy)
	if err != nil {
		return err
	}

	// A freshly created campaign got a fresh creative with it; nothing to
	// reconcile yet.
	if !item.ExternallyHosted && !created {
		if err := s.upsertCreative(ctx, item, triggeredBy); err != nil {
			return err
		}
	}

	if booking == nil {
		return nil
	}

	flight, err := s.upsertFlight(ctx, item, booking, campaignID, triggeredBy)
	if err != nil {
		return err
	}

	// Best effort: the read path falls through to the store on a miss.
	if err := s.cache.Set(ctx, flight.ID, booking.ID); err != nil {
		s.logger.Warn("flight cache set failed", "flight_id", flight.ID, "error", err)
	}

	if item.RemoteCreativeID == nil {
		return nil
	}
	return s.ensureCFMap(ctx, item, booking, campaignID, flight.ID, triggeredBy)
}

// upsertCampaign resolves the campaign the booking's flight belongs under
// and reports whether it was created on this run. Externally hosted
// promotions never get a campaign of their own and share the configured
// external campaign instead.
func (s *SyncService) upsertCampaign(ctx context.Context, item *domain.ContentItem, triggeredBy string) (int64, bool, error) {
	if item.ExternallyHosted {
		return s.remote.ExternalCampaignID, false, nil
	}

	if item.RemoteCampaignID != nil {
		campaign, err := s.gateway.GetCampaign(ctx, *item.RemoteCampaignID)
		if err != nil {
			return 0, false, err
		}
		changes, err := domain.ApplyFields(campaign, domain.FieldMap{
			"IsActive":  item.Approved && !item.Deleted,
			"IsDeleted": false,
			"Price":     0,
		})
		if err != nil {
			return 0, false, err
		}
		if len(changes) > 0 {
			err = s.gateway.UpdateCampaign(ctx, campaign)
			s.observe(ctx, "update_campaign", "campaign", item.ID, campaign, triggeredBy, err)
			if err != nil {
				return 0, false, err
			}
			if err := s.audit(ctx, item.ID, fmt.Sprintf("updated campaign %d", campaign.ID), changes); err != nil {
				return 0, false, err
			}
		}
		return campaign.ID, false, nil
	}

	advertiserID, err := s.ensureAdvertiser(ctx, item, triggeredBy)
	if err != nil {
		return 0, false, err
	}

	// The creative is created before the campaign so a crash between the
	// two leaves an orphaned creative, never a campaign without one.
	if item.RemoteCreativeID == nil {
		if err := s.createCreative(ctx, item, advertiserID, triggeredBy); err != nil {
			return 0, false, err
		}
	}

	campaign := &domain.RemoteCampaign{
		Name:         item.ID,
		AdvertiserID: advertiserID,
		StartDate:    domain.NewDate(s.now()),
		Price:        0,
		IsActive:     item.Approved && !item.Deleted,
	}
	created, err := s.gateway.CreateCampaign(ctx, campaign)
	s.observe(ctx, "create_campaign", "campaign", item.ID, campaign, triggeredBy, err)
	if err != nil {
		return 0, false, err
	}
	if err := s.store.SetItemCampaignID(ctx, item.ID, created.ID); err != nil {
		return 0, false, err
	}
	item.RemoteCampaignID = &created.ID
	if err := s.store.AppendAuditLog(ctx, item.ID, fmt.Sprintf("created campaign %d", created.ID)); err != nil {
		return 0, false, err
	}
	return created.ID, true, nil
}

func (s *SyncService) ensureAdvertiser(ctx context.Context, item *domain.ContentItem, triggeredBy string) (int64, error) {
	author, err := s.store.GetAuthor(ctx, item.AuthorID)
	if err != nil {
		return 0, err
	}
	if author.RemoteAdvertiserID != nil {
		adv, err := s.gateway.GetAdvertiser(ctx, *author.RemoteAdvertiserID)
		if err != nil {
			return 0, err
		}
		return adv.ID, nil
	}

	adv := &domain.RemoteAdvertiser{
		Title:    sanitizeText(author.Name),
		IsActive: true,
	}
	created, err := s.gateway.CreateAdvertiser(ctx, adv)
	s.observe(ctx, "create_advertiser", "advertiser", author.ID, adv, triggeredBy, err)
	if err != nil {
		return 0, err
	}
	if err := s.store.SetAuthorAdvertiserID(ctx, author.ID, created.ID); err != nil {
		return 0, err
	}
	author.RemoteAdvertiserID = &created.ID
	return created.ID, nil
}

func (s *SyncService) creativeFields(item *domain.ContentItem) domain.FieldMap {
	render, _ := json.Marshal(map[string]string{
		"title": item.Title,
		"url":   item.URL,
	})
	return domain.FieldMap{
		"Body":       item.Title,
		"ScriptBody": string(render),
		"Url":        item.URL,
		"AdTypeId":   s.remote.AdTypeID,
		"Alt":        "",
		"IsHTMLJS":   true,
		"IsSync":     false,
		"IsDeleted":  false,
		"IsActive":   !item.Deleted,
	}
}

func (s *SyncService) createCreative(ctx context.Context, item *domain.ContentItem, advertiserID int64, triggeredBy string) error {
	creative := &domain.RemoteCreative{
		Title:        item.ID,
		AdvertiserID: advertiserID,
	}
	if _, err := domain.ApplyFields(creative, s.creativeFields(item)); err != nil {
		return err
	}
	created, err := s.gateway.CreateCreative(ctx, creative)
	s.observe(ctx, "create_creative", "creative", item.ID, creative, triggeredBy, err)
	if err != nil {
		return err
	}
	if err := s.store.SetItemCreativeID(ctx, item.ID, created.ID); err != nil {
		return err
	}
	item.RemoteCreativeID = &created.ID
	return s.store.AppendAuditLog(ctx, item.ID, fmt.Sprintf("created creative %d", created.ID))
}

func (s *SyncService) upsertCreative(ctx context.Context, item *domain.ContentItem, triggeredBy string) error {
	if item.RemoteCreativeID == nil {
		// Created alongside the campaign; nothing to reconcile yet.
		return nil
	}
	creative, err := s.gateway.GetCreative(ctx, *item.RemoteCreativeID)
	if err != nil {
		return err
	}
	changes, err := domain.ApplyFields(creative, s.creativeFields(item))
	if err != nil {
		return err
	}
	if len(changes) == 0 {
		return nil
	}
	err = s.gateway.UpdateCreative(ctx, creative)
	s.observe(ctx, "update_creative", "creative", item.ID, creative, triggeredBy, err)
	if err != nil {
		return err
	}
	return s.audit(ctx, item.ID, fmt.Sprintf("updated creative %d", creative.ID), changes)
}

// flightFields computes the full desired attribute set for a booking's
// flight. Geotargeting is deliberately absent: existing entries can only be
// changed through the dedicated sub-resource.
func (s *SyncService) flightFields(item *domain.ContentItem, b *domain.Booking, campaignID int64, overdelivered bool) domain.FieldMap {
	start := b.StartDate.Add(flightStartDelay)
	if !start.Before(b.EndDate) {
		start = b.StartDate
	}

	fields := domain.FieldMap{
		"StartDate":       domain.NewDate(start),
		"EndDate":         domain.NewDate(b.EndDate),
		"OptionType":      domain.OptionTypeCPM,
		"IsUnlimited":     false,
		"IsFullSpeed":     false,
		"Keywords":        strings.Join(b.Targeting.SubredditNames, "\n"),
		"CampaignId":      campaignID,
		"PriorityId":      s.remote.PriorityID(b.PriorityName),
		"IsDeleted":       false,
		"IsActive":        flightActive(item, b, overdelivered),
		"CustomTargeting": customTargeting(b.Targeting),
	}

	switch b.CostBasis {
	case domain.CostBasisCPM:
		fields["Price"] = float64(b.CPM) / 100
		fields["Impressions"] = b.Impressions + domain.ImpressionBump
		fields["GoalType"] = domain.GoalTypeImpressions
		fields["RateType"] = domain.RateTypeCPM
	case domain.CostBasisFlat:
		fields["Price"] = float64(b.Bid) / 100
		fields["Impressions"] = 100
		fields["GoalType"] = domain.GoalTypePercentage
		fields["RateType"] = domain.RateTypeFlat
	default: // free runs as a zero-price flat rate at full rotation
		fields["Price"] = 0
		fields["Impressions"] = 100
		fields["GoalType"] = domain.GoalTypePercentage
		fields["RateType"] = domain.RateTypeFlat
	}

	if b.FrequencyCap > 0 && b.FrequencyCapDuration > 0 {
		fields["IsFreqCap"] = true
		fields["FreqCap"] = b.FrequencyCap
		fields["FreqCapDuration"] = b.FrequencyCapDuration
		fields["FreqCapType"] = domain.FreqCapTypeHour
	} else {
		fields["IsFreqCap"] = nil
	}

	switch b.Targeting.Platform {
	case domain.PlatformDesktop:
		fields["SiteZoneTargeting"] = []domain.SiteZone{{SiteID: s.remote.SiteID}}
	case domain.PlatformMobile:
		fields["SiteZoneTargeting"] = []domain.SiteZone{{SiteID: s.remote.MobileSiteID}}
	}

	return fields
}

func flightActive(item *domain.ContentItem, b *domain.Booking, overdelivered bool) bool {
	return item.Approved &&
		!b.Paused &&
		(b.PaymentSettled || b.PaymentWaived) &&
		!b.Deleted &&
		!overdelivered
}

func (s *SyncService) upsertFlight(ctx context.Context, item *domain.ContentItem, b *domain.Booking, campaignID int64, triggeredBy string) (*domain.RemoteFlight, error) {
	billable, err := s.store.BillableImpressions(ctx, b.ID)
	if err != nil {
		return nil, err
	}
	od := overdelivered(b, billable)

	fields := s.flightFields(item, b, campaignID, od)

	var flight *domain.RemoteFlight
	if b.RemoteFlightID == nil {
		flight = &domain.RemoteFlight{Name: b.ID}
		if entries := desiredGeoEntries(b.Targeting.Location); len(entries) > 0 {
			fields["GeoTargeting"] = entries
		}
		if _, err := domain.ApplyFields(flight, fields); err != nil {
			return nil, err
		}
		created, err := s.gateway.CreateFlight(ctx, flight)
		s.observe(ctx, "create_flight", "flight", b.ID, flight, triggeredBy, err)
		if err != nil {
			return nil, err
		}
		if err := s.store.SetBookingFlightID(ctx, b.ID, created.ID); err != nil {
			return nil, err
		}
		b.RemoteFlightID = &created.ID
		if err := s.store.AppendAuditLog(ctx, item.ID, fmt.Sprintf("created flight %d", created.ID)); err != nil {
			return nil, err
		}
		return created, nil
	}

	flight, err = s.gateway.GetFlight(ctx, *b.RemoteFlightID)
	if err != nil {
		return nil, err
	}

	if len(flight.GeoTargeting) > 0 {
		if err := s.syncGeoTargeting(ctx, item, b, flight, triggeredBy); err != nil {
			return nil, err
		}
		// The update path must leave existing entries alone.
		flight.GeoTargeting = nil
	} else if entries := desiredGeoEntries(b.Targeting.Location); len(entries) > 0 {
		fields["GeoTargeting"] = entries
	}

	changes, err := domain.ApplyFields(flight, fields)
	if err != nil {
		return nil, err
	}

	notes := domain.ChangeStrings(changes)
	if od {
		notes = append(notes, fmt.Sprintf("overdelivered: %d billable of %d contracted", billable, b.Impressions))
	}

	if len(changes) > 0 {
		err = s.gateway.UpdateFlight(ctx, flight)
		s.observe(ctx, "update_flight", "flight", b.ID, flight, triggeredBy, err)
		if err != nil {
			return nil, err
		}
	}
	if len(notes) > 0 {
		entry := fmt.Sprintf("updated flight %d: %s", flight.ID, strings.Join(notes, "; "))
		if err := s.store.AppendAuditLog(ctx, item.ID, entry); err != nil {
			return nil, err
		}
	}

	if od && !b.Overdelivered {
		if err := s.store.MarkBookingOverdelivered(ctx, b.ID); err != nil {
			return nil, err
		}
		b.Overdelivered = true
	}
	return flight, nil
}

func desiredGeoEntries(loc *domain.Location) []domain.RemoteGeoTargeting {
	if loc == nil {
		return nil
	}
	return []domain.RemoteGeoTargeting{{
		CountryCode: loc.Country,
		Region:      loc.Region,
		MetroCode:   loc.Metro,
	}}
}

func geoMatches(entry domain.RemoteGeoTargeting, loc *domain.Location) bool {
	if loc == nil || entry.IsExclude {
		return false
	}
	if entry.CountryCode != loc.Country || entry.Region != loc.Region {
		return false
	}
	if (entry.MetroCode == nil) != (loc.Metro == nil) {
		return false
	}
	return entry.MetroCode == nil || *entry.MetroCode == *loc.Metro
}

// syncGeoTargeting reconciles a flight that already has geotargeting
// entries. The remote platform only supports create and delete on the
// sub-resource, so a changed location is a delete followed by a create, and
// anything beyond the first entry is pruned.
func (s *SyncService) syncGeoTargeting(ctx context.Context, item *domain.ContentItem, b *domain.Booking, flight *domain.RemoteFlight, triggeredBy string) error {
	loc := b.Targeting.Location
	first := flight.GeoTargeting[0]

	if !geoMatches(first, loc) {
		err := s.gateway.DeleteGeoTargeting(ctx, flight.ID, first.ID)
		s.observe(ctx, "delete_geotargeting", "flight", b.ID, first, triggeredBy, err)
		if err != nil {
			return err
		}
		if loc != nil {
			entry := &domain.RemoteGeoTargeting{
				CountryCode: loc.Country,
				Region:      loc.Region,
				MetroCode:   loc.Metro,
			}
			_, err := s.gateway.CreateGeoTargeting(ctx, flight.ID, entry)
			s.observe(ctx, "create_geotargeting", "flight", b.ID, entry, triggeredBy, err)
			if err != nil {
				return err
			}
			if err := s.store.AppendAuditLog(ctx, item.ID,
				fmt.Sprintf("updated flight %d geotargeting to %s/%s", flight.ID, loc.Country, loc.Region)); err != nil {
				return err
			}
		} else {
			if err := s.store.AppendAuditLog(ctx, item.ID,
				fmt.Sprintf("removed flight %d geotargeting", flight.ID)); err != nil {
				return err
			}
		}
	}

	for _, extra := range flight.GeoTargeting[1:] {
		err := s.gateway.DeleteGeoTargeting(ctx, flight.ID, extra.ID)
		s.observe(ctx, "delete_geotargeting", "flight", b.ID, extra, triggeredBy, err)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *SyncService) ensureCFMap(ctx context.Context, item *domain.ContentItem, b *domain.Booking, campaignID, flightID int64, triggeredBy string) error {
	if b.RemoteCFMapID != nil {
		_, err := s.gateway.GetCreativeFlightMap(ctx, flightID, *b.RemoteCFMapID)
		return err
	}

	m := &domain.RemoteCreativeFlightMap{
		CampaignID:         campaignID,
		PublisherAccountID: s.remote.PublisherAccountID,
		Percentage:         100,
		DistributionType:   domain.DistributionTypePercentage,
		Creative:           domain.CreativeStub{ID: *item.RemoteCreativeID},
		FlightID:           flightID,
		Impressions:        100,
		IsActive:           true,
	}
	created, err := s.gateway.CreateCreativeFlightMap(ctx, flightID, m)
	s.observe(ctx, "create_cfmap", "cfmap", b.ID, m, triggeredBy, err)
	if err != nil {
		return err
	}
	if err := s.store.SetBookingCFMapID(ctx, b.ID, created.ID); err != nil {
		return err
	}
	b.RemoteCFMapID = &created.ID
	return s.store.AppendAuditLog(ctx, item.ID, fmt.Sprintf("created creative-flight map %d", created.ID))
}

func (s *SyncService) audit(ctx context.Context, itemID, prefix string, changes []domain.Change) error {
	entry := fmt.Sprintf("%s: %s", prefix, strings.Join(domain.ChangeStrings(changes), "; "))
	return s.store.AppendAuditLog(ctx, itemID, entry)
}

// observe reports one remote mutation attempt to the telemetry sink. Called
// for failures too, before the error propagates.
func (s *SyncService) observe(ctx context.Context, requestType, kind, targetID string, payload any, triggeredBy string, err error) {
	s.telemetry.RemoteAttempt(ctx, port.RemoteAttempt{
		RequestType: requestType,
		TargetKind:  kind,
		TargetID:    targetID,
		Payload:     payload,
		TriggeredBy: triggeredBy,
		Err:         err,
	})
}
