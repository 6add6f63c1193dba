package port

import (
	"context"
	"time"

	"adsync/internal/core/domain"
)

// Gateway is the remote platform's object-graph API. Create methods return
// the newly assigned remote id on the returned object; the caller must
// persist it onto the local entity before any further remote call for that
// entity. Get on an unknown id fails with a RemoteError whose NotFound
// reports true. Update issues a full-object write.
type Gateway interface {
	GetAdvertiser(ctx context.Context, id int64) (*domain.RemoteAdvertiser, error)
	CreateAdvertiser(ctx context.Context, adv *domain.RemoteAdvertiser) (*domain.RemoteAdvertiser, error)

	GetCampaign(ctx context.Context, id int64) (*domain.RemoteCampaign, error)
	CreateCampaign(ctx context.Context, c *domain.RemoteCampaign) (*domain.RemoteCampaign, error)
	UpdateCampaign(ctx context.Context, c *domain.RemoteCampaign) error

	GetCreative(ctx context.Context, id int64) (*domain.RemoteCreative, error)
	CreateCreative(ctx context.Context, cr *domain.RemoteCreative) (*domain.RemoteCreative, error)
	UpdateCreative(ctx context.Context, cr *domain.RemoteCreative) error

	GetFlight(ctx context.Context, id int64) (*domain.RemoteFlight, error)
	CreateFlight(ctx context.Context, f *domain.RemoteFlight) (*domain.RemoteFlight, error)
	UpdateFlight(ctx context.Context, f *domain.RemoteFlight) error

	GetCreativeFlightMap(ctx context.Context, flightID, id int64) (*domain.RemoteCreativeFlightMap, error)
	CreateCreativeFlightMap(ctx context.Context, flightID int64, m *domain.RemoteCreativeFlightMap) (*domain.RemoteCreativeFlightMap, error)

	// Geotargeting is create/delete only; the flight update path cannot
	// alter entries that already exist.
	CreateGeoTargeting(ctx context.Context, flightID int64, gt *domain.RemoteGeoTargeting) (*domain.RemoteGeoTargeting, error)
	DeleteGeoTargeting(ctx context.Context, flightID, geoID int64) error
}

// ReportState is the outcome of a single report fetch.
type ReportState int

const (
	// ReportPending means retry later; it is control flow, not an error.
	ReportPending ReportState = iota
	// ReportReady means the payload parsed and is ready to persist.
	ReportReady
	// ReportErrored means the platform marked the report as failed.
	ReportErrored
)

// ReportResult is the explicit result of polling a report id.
type ReportResult struct {
	State   ReportState
	Payload string
	Reason  string
}

// ReportCriteria describes a usage report to generate.
type ReportCriteria struct {
	Start      time.Time
	End        time.Time
	GroupBy    []string
	Parameters []map[string]any
}

// ReportGateway generates and fetches usage reports keyed by an opaque
// report id. Generation is expensive on the remote side; a stale id is
// never re-polled after timeout, a fresh report is queued instead.
type ReportGateway interface {
	QueueReport(ctx context.Context, criteria ReportCriteria) (string, error)
	FetchReport(ctx context.Context, reportID string) (ReportResult, error)
}
