package configs

import "time"

// Remote configures the ad platform API and the fixed remote ids the
// orchestrator needs when building objects. Priorities maps local priority
// names to remote priority ids.
type Remote struct {
	BaseURL        string        `env:"BASE_URL" envDefault:"https://api.adzerk.net/v1"`
	APIKey         string        `env:"API_KEY,required"`
	RetryMax       int           `env:"RETRY_MAX" envDefault:"3"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"30s"`

	// AdTypeID is the creative ad type every promotion renders as.
	AdTypeID int64 `env:"AD_TYPE_ID,required"`
	// SiteID and MobileSiteID select site-zone targeting for
	// desktop-only and mobile-only bookings.
	SiteID       int64 `env:"SITE_ID,required"`
	MobileSiteID int64 `env:"MOBILE_SITE_ID,required"`
	// PublisherAccountID is stamped onto creative-flight-maps.
	PublisherAccountID int64 `env:"PUBLISHER_ACCOUNT_ID,required"`
	// ExternalCampaignID hosts flights of externally-hosted promotions,
	// which never get a campaign of their own.
	ExternalCampaignID int64 `env:"EXTERNAL_CAMPAIGN_ID" envDefault:"0"`

	Priorities        map[string]int64 `env:"PRIORITIES" envDefault:"standard:5"`
	DefaultPriorityID int64            `env:"DEFAULT_PRIORITY_ID" envDefault:"5"`
}

// PriorityID resolves a local priority name, falling back to the default.
func (r Remote) PriorityID(name string) int64 {
	if id, ok := r.Priorities[name]; ok {
		return id
	}
	return r.DefaultPriorityID
}
