package domain

// Mirrors of the remote platform's object graph. Field names and json tags
// follow the platform's wire format exactly; the diff applier compares and
// stages values through these tags.

// Remote flight goal types.
const (
	GoalTypeImpressions = 1
	GoalTypePercentage  = 2
)

// Remote flight rate types.
const (
	RateTypeFlat = 1
	RateTypeCPM  = 2
)

// Remote flight option types.
const (
	OptionTypeCPM       = 1
	OptionTypeRemainder = 2
)

// DistributionTypePercentage distributes creative-flight-map traffic by a
// fixed percentage. Every flight carries exactly one creative at 100%.
const DistributionTypePercentage = 2

// FreqCapTypeHour is the only frequency-cap window the engine uses.
const FreqCapTypeHour = 1

type RemoteAdvertiser struct {
	ID        int64  `json:"Id,omitempty"`
	Title     string `json:"Title"`
	IsActive  bool   `json:"IsActive"`
	IsDeleted bool   `json:"IsDeleted"`
}

type RemoteCampaign struct {
	ID           int64   `json:"Id,omitempty"`
	Name         string  `json:"Name"`
	AdvertiserID int64   `json:"AdvertiserId"`
	StartDate    Date    `json:"StartDate"`
	EndDate      *Date   `json:"EndDate,omitempty"`
	Price        float64 `json:"Price"`
	IsDeleted    bool    `json:"IsDeleted"`
	IsActive     bool    `json:"IsActive"`
}

// RemoteGeoTargeting is a geotargeting entry under a flight. The remote
// platform exposes it as a sub-resource with create and delete only; the
// flight update path cannot alter entries that already exist.
type RemoteGeoTargeting struct {
	ID          int64  `json:"LocationId,omitempty"`
	CountryCode string `json:"CountryCode"`
	Region      string `json:"Region"`
	MetroCode   *int   `json:"MetroCode"`
	IsExclude   bool   `json:"IsExclude"`
}

// SiteZone restricts a flight to a remote site.
type SiteZone struct {
	SiteID    int64 `json:"SiteId"`
	IsExclude bool  `json:"IsExclude"`
}

type RemoteFlight struct {
	ID          int64   `json:"Id,omitempty"`
	Name        string  `json:"Name,omitempty"`
	StartDate   Date    `json:"StartDate"`
	EndDate     Date    `json:"EndDate"`
	Price       float64 `json:"Price"`
	OptionType  int     `json:"OptionType"`
	Impressions int64   `json:"Impressions"`
	IsUnlimited bool    `json:"IsUnlimited"`
	IsFullSpeed bool    `json:"IsFullSpeed"`
	Keywords    string  `json:"Keywords"`
	CampaignID  int64   `json:"CampaignId"`
	PriorityID  int64   `json:"PriorityId"`
	GoalType    int     `json:"GoalType,omitempty"`
	RateType    int     `json:"RateType,omitempty"`

	// IsFreqCap is a tri-state on the wire: explicit null clears the cap.
	IsFreqCap       *bool `json:"IsFreqCap"`
	FreqCap         int   `json:"FreqCap,omitempty"`
	FreqCapDuration int   `json:"FreqCapDuration,omitempty"`
	FreqCapType     int   `json:"FreqCapType,omitempty"`

	CustomTargeting   string               `json:"CustomTargeting"`
	SiteZoneTargeting []SiteZone           `json:"SiteZoneTargeting,omitempty"`
	GeoTargeting      []RemoteGeoTargeting `json:"GeoTargeting"`

	IsDeleted bool `json:"IsDeleted"`
	IsActive  bool `json:"IsActive"`
}

type RemoteCreative struct {
	ID           int64  `json:"Id,omitempty"`
	Title        string `json:"Title,omitempty"`
	Body         string `json:"Body"`
	ScriptBody   string `json:"ScriptBody"`
	URL          string `json:"Url"`
	AdvertiserID int64  `json:"AdvertiserId"`
	AdTypeID     int64  `json:"AdTypeId"`
	Alt          string `json:"Alt"`
	IsHTMLJS     bool   `json:"IsHTMLJS"`
	IsSync       bool   `json:"IsSync"`
	IsDeleted    bool   `json:"IsDeleted"`
	IsActive     bool   `json:"IsActive"`
}

// CreativeStub references a creative by id inside a creative-flight-map
// without repeating the full object.
type CreativeStub struct {
	ID int64 `json:"Id"`
}

type RemoteCreativeFlightMap struct {
	ID                 int64        `json:"Id,omitempty"`
	SizeOverride       bool         `json:"SizeOverride"`
	CampaignID         int64        `json:"CampaignId"`
	PublisherAccountID int64        `json:"PublisherAccountId"`
	Percentage         int          `json:"Percentage"`
	DistributionType   int          `json:"DistributionType"`
	Iframe             bool         `json:"Iframe"`
	Creative           CreativeStub `json:"Creative"`
	FlightID           int64        `json:"FlightId"`
	Impressions        int64        `json:"Impressions"`
	IsDeleted          bool         `json:"IsDeleted"`
	IsActive           bool         `json:"IsActive"`
}
