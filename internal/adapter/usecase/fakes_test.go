package usecase

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"adsync/internal/core/domain"
	"adsync/internal/core/port"
)

// In-memory fakes for the outbound ports. They mimic the contract each port
// documents, including NotFound behavior and id assignment on create.

type fakeStore struct {
	items    map[string]*domain.ContentItem
	bookings map[string]*domain.Booking
	authors  map[string]*domain.Author
	billable map[string]int64
	promos   []domain.Promo

	audit        []string
	itemDaily    map[string]port.DailyUsage
	bookingDaily map[string]port.DailyUsage
	lifetime     map[string]port.LifetimeUsage
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		items:        make(map[string]*domain.ContentItem),
		bookings:     make(map[string]*domain.Booking),
		authors:      make(map[string]*domain.Author),
		billable:     make(map[string]int64),
		itemDaily:    make(map[string]port.DailyUsage),
		bookingDaily: make(map[string]port.DailyUsage),
		lifetime:     make(map[string]port.LifetimeUsage),
	}
}

func (s *fakeStore) GetContentItem(_ context.Context, id string) (*domain.ContentItem, error) {
	it, ok := s.items[id]
	if !ok {
		return nil, port.ErrNotFound
	}
	return it, nil
}

func (s *fakeStore) GetBooking(_ context.Context, id string) (*domain.Booking, error) {
	b, ok := s.bookings[id]
	if !ok {
		return nil, port.ErrNotFound
	}
	return b, nil
}

func (s *fakeStore) GetAuthor(_ context.Context, id string) (*domain.Author, error) {
	a, ok := s.authors[id]
	if !ok {
		return nil, port.ErrNotFound
	}
	return a, nil
}

func (s *fakeStore) BookingsByContentItem(_ context.Context, itemID string) ([]*domain.Booking, error) {
	var out []*domain.Booking
	for _, b := range s.bookings {
		if b.ContentItemID == itemID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *fakeStore) BookingByFlightID(_ context.Context, flightID int64) (*domain.Booking, error) {
	for _, b := range s.bookings {
		if b.RemoteFlightID != nil && *b.RemoteFlightID == flightID {
			return b, nil
		}
	}
	return nil, port.ErrNotFound
}

func (s *fakeStore) ScheduledPromos(_ context.Context, _ time.Time, _ int) ([]domain.Promo, error) {
	return s.promos, nil
}

func (s *fakeStore) SetAuthorAdvertiserID(_ context.Context, authorID string, remoteID int64) error {
	s.authors[authorID].RemoteAdvertiserID = &remoteID
	return nil
}

func (s *fakeStore) SetItemCampaignID(_ context.Context, itemID string, remoteID int64) error {
	s.items[itemID].RemoteCampaignID = &remoteID
	return nil
}

func (s *fakeStore) SetItemCreativeID(_ context.Context, itemID string, remoteID int64) error {
	s.items[itemID].RemoteCreativeID = &remoteID
	return nil
}

func (s *fakeStore) SetBookingFlightID(_ context.Context, bookingID string, remoteID int64) error {
	s.bookings[bookingID].RemoteFlightID = &remoteID
	return nil
}

func (s *fakeStore) SetBookingCFMapID(_ context.Context, bookingID string, remoteID int64) error {
	s.bookings[bookingID].RemoteCFMapID = &remoteID
	return nil
}

func (s *fakeStore) MarkBookingOverdelivered(_ context.Context, bookingID string) error {
	s.bookings[bookingID].Overdelivered = true
	return nil
}

func (s *fakeStore) AppendAuditLog(_ context.Context, itemID, text string) error {
	s.audit = append(s.audit, itemID+": "+text)
	return nil
}

func (s *fakeStore) BillableImpressions(_ context.Context, bookingID string) (int64, error) {
	return s.billable[bookingID], nil
}

func dayKey(id string, day time.Time) string {
	return id + "@" + day.UTC().Format("2006-01-02")
}

func (s *fakeStore) UpsertItemDailyUsage(_ context.Context, itemID string, u port.DailyUsage) error {
	s.itemDaily[dayKey(itemID, u.Day)] = u
	return nil
}

func (s *fakeStore) UpsertBookingDailyUsage(_ context.Context, bookingID string, u port.DailyUsage) error {
	s.bookingDaily[dayKey(bookingID, u.Day)] = u
	return nil
}

func (s *fakeStore) SetBookingLifetimeUsage(_ context.Context, bookingID string, u port.LifetimeUsage) error {
	s.lifetime[bookingID] = u
	return nil
}

func (s *fakeStore) SetItemDailyReportRun(_ context.Context, itemID, reportID string, runAt time.Time) error {
	it, ok := s.items[itemID]
	if !ok {
		return port.ErrNotFound
	}
	it.LastDailyReportID = reportID
	it.LastDailyReportRun = &runAt
	return nil
}

type fakeGateway struct {
	calls  []string
	nextID int64
	failOn string

	advertisers map[int64]domain.RemoteAdvertiser
	campaigns   map[int64]domain.RemoteCampaign
	creatives   map[int64]domain.RemoteCreative
	flights     map[int64]domain.RemoteFlight
	cfmaps      map[int64]domain.RemoteCreativeFlightMap
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		nextID:      100,
		advertisers: make(map[int64]domain.RemoteAdvertiser),
		campaigns:   make(map[int64]domain.RemoteCampaign),
		creatives:   make(map[int64]domain.RemoteCreative),
		flights:     make(map[int64]domain.RemoteFlight),
		cfmaps:      make(map[int64]domain.RemoteCreativeFlightMap),
	}
}

func (g *fakeGateway) call(name string) error {
	g.calls = append(g.calls, name)
	if g.failOn == name {
		return &port.RemoteError{StatusCode: http.StatusInternalServerError, Body: "boom"}
	}
	return nil
}

func (g *fakeGateway) id() int64 {
	g.nextID++
	return g.nextID
}

func notFound() error {
	return &port.RemoteError{StatusCode: http.StatusNotFound, Body: "missing"}
}

func (g *fakeGateway) GetAdvertiser(_ context.Context, id int64) (*domain.RemoteAdvertiser, error) {
	if err := g.call("get_advertiser"); err != nil {
		return nil, err
	}
	adv, ok := g.advertisers[id]
	if !ok {
		return nil, notFound()
	}
	return &adv, nil
}

func (g *fakeGateway) CreateAdvertiser(_ context.Context, adv *domain.RemoteAdvertiser) (*domain.RemoteAdvertiser, error) {
	if err := g.call("create_advertiser"); err != nil {
		return nil, err
	}
	created := *adv
	created.ID = g.id()
	g.advertisers[created.ID] = created
	return &created, nil
}

func (g *fakeGateway) GetCampaign(_ context.Context, id int64) (*domain.RemoteCampaign, error) {
	if err := g.call("get_campaign"); err != nil {
		return nil, err
	}
	c, ok := g.campaigns[id]
	if !ok {
		return nil, notFound()
	}
	return &c, nil
}

func (g *fakeGateway) CreateCampaign(_ context.Context, c *domain.RemoteCampaign) (*domain.RemoteCampaign, error) {
	if err := g.call("create_campaign"); err != nil {
		return nil, err
	}
	created := *c
	created.ID = g.id()
	g.campaigns[created.ID] = created
	return &created, nil
}

func (g *fakeGateway) UpdateCampaign(_ context.Context, c *domain.RemoteCampaign) error {
	if err := g.call("update_campaign"); err != nil {
		return err
	}
	g.campaigns[c.ID] = *c
	return nil
}

func (g *fakeGateway) GetCreative(_ context.Context, id int64) (*domain.RemoteCreative, error) {
	if err := g.call("get_creative"); err != nil {
		return nil, err
	}
	cr, ok := g.creatives[id]
	if !ok {
		return nil, notFound()
	}
	return &cr, nil
}

func (g *fakeGateway) CreateCreative(_ context.Context, cr *domain.RemoteCreative) (*domain.RemoteCreative, error) {
	if err := g.call("create_creative"); err != nil {
		return nil, err
	}
	created := *cr
	created.ID = g.id()
	g.creatives[created.ID] = created
	return &created, nil
}

func (g *fakeGateway) UpdateCreative(_ context.Context, cr *domain.RemoteCreative) error {
	if err := g.call("update_creative"); err != nil {
		return err
	}
	g.creatives[cr.ID] = *cr
	return nil
}

func (g *fakeGateway) GetFlight(_ context.Context, id int64) (*domain.RemoteFlight, error) {
	if err := g.call("get_flight"); err != nil {
		return nil, err
	}
	f, ok := g.flights[id]
	if !ok {
		return nil, notFound()
	}
	copied := f
	copied.GeoTargeting = append([]domain.RemoteGeoTargeting(nil), f.GeoTargeting...)
	return &copied, nil
}

func (g *fakeGateway) CreateFlight(_ context.Context, f *domain.RemoteFlight) (*domain.RemoteFlight, error) {
	if err := g.call("create_flight"); err != nil {
		return nil, err
	}
	created := *f
	created.ID = g.id()
	g.flights[created.ID] = created
	return &created, nil
}

func (g *fakeGateway) UpdateFlight(_ context.Context, f *domain.RemoteFlight) error {
	if err := g.call("update_flight"); err != nil {
		return err
	}
	stored := g.flights[f.ID]
	updated := *f
	if updated.GeoTargeting == nil {
		// Updates cannot alter existing entries; keep what the
		// sub-resource calls built up.
		updated.GeoTargeting = stored.GeoTargeting
	} else {
		for i := range updated.GeoTargeting {
			if updated.GeoTargeting[i].ID == 0 {
				updated.GeoTargeting[i].ID = g.id()
			}
		}
	}
	g.flights[f.ID] = updated
	return nil
}

func (g *fakeGateway) GetCreativeFlightMap(_ context.Context, _, id int64) (*domain.RemoteCreativeFlightMap, error) {
	if err := g.call("get_cfmap"); err != nil {
		return nil, err
	}
	m, ok := g.cfmaps[id]
	if !ok {
		return nil, notFound()
	}
	return &m, nil
}

func (g *fakeGateway) CreateCreativeFlightMap(_ context.Context, _ int64, m *domain.RemoteCreativeFlightMap) (*domain.RemoteCreativeFlightMap, error) {
	if err := g.call("create_cfmap"); err != nil {
		return nil, err
	}
	created := *m
	created.ID = g.id()
	g.cfmaps[created.ID] = created
	return &created, nil
}

func (g *fakeGateway) CreateGeoTargeting(_ context.Context, flightID int64, gt *domain.RemoteGeoTargeting) (*domain.RemoteGeoTargeting, error) {
	if err := g.call("create_geotargeting"); err != nil {
		return nil, err
	}
	created := *gt
	created.ID = g.id()
	f := g.flights[flightID]
	f.GeoTargeting = append(f.GeoTargeting, created)
	g.flights[flightID] = f
	return &created, nil
}

func (g *fakeGateway) DeleteGeoTargeting(_ context.Context, flightID, geoID int64) error {
	if err := g.call("delete_geotargeting"); err != nil {
		return err
	}
	f := g.flights[flightID]
	kept := f.GeoTargeting[:0]
	for _, gt := range f.GeoTargeting {
		if gt.ID != geoID {
			kept = append(kept, gt)
		}
	}
	f.GeoTargeting = kept
	g.flights[flightID] = f
	return nil
}

type fakeLocker struct {
	acquired []string
	released []string
}

func (l *fakeLocker) Acquire(_ context.Context, key string, _ time.Duration) (string, error) {
	l.acquired = append(l.acquired, key)
	return fmt.Sprintf("tok-%d", len(l.acquired)), nil
}

func (l *fakeLocker) Release(_ context.Context, key, _ string) error {
	l.released = append(l.released, key)
	return nil
}

type fakeCache struct {
	entries map[int64]string
	getErr  error
	setErr  error
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[int64]string)}
}

func (c *fakeCache) Set(_ context.Context, flightID int64, bookingID string) error {
	if c.setErr != nil {
		return c.setErr
	}
	c.entries[flightID] = bookingID
	return nil
}

func (c *fakeCache) Get(_ context.Context, flightID int64) (string, bool, error) {
	if c.getErr != nil {
		return "", false, c.getErr
	}
	id, ok := c.entries[flightID]
	return id, ok, nil
}

type fakeTelemetry struct {
	events []port.RemoteAttempt
}

func (t *fakeTelemetry) RemoteAttempt(_ context.Context, ev port.RemoteAttempt) {
	t.events = append(t.events, ev)
}

type fakeQueue struct {
	messages [][]byte
}

func (q *fakeQueue) Push(_ context.Context, payload []byte) error {
	q.messages = append(q.messages, payload)
	return nil
}

func (q *fakeQueue) Pop(_ context.Context, _ time.Duration) ([]byte, bool, error) {
	if len(q.messages) == 0 {
		return nil, false, nil
	}
	msg := q.messages[0]
	q.messages = q.messages[1:]
	return msg, true, nil
}

// fakeReports scripts the report gateway: QueueReport hands out sequential
// ids, FetchReport replays a fixed result sequence and sticks on the last.
type fakeReports struct {
	queued  []port.ReportCriteria
	results []port.ReportResult
	fetches int
}

func (r *fakeReports) QueueReport(_ context.Context, criteria port.ReportCriteria) (string, error) {
	r.queued = append(r.queued, criteria)
	return fmt.Sprintf("report-%d", len(r.queued)), nil
}

func (r *fakeReports) FetchReport(_ context.Context, _ string) (port.ReportResult, error) {
	i := r.fetches
	if i >= len(r.results) {
		i = len(r.results) - 1
	}
	r.fetches++
	return r.results[i], nil
}
