package domain

import "time"

// ContentItem is a promoted piece of content owned by the broader content
// store. This engine only augments its remote-id fields and report-run
// markers; everything else is written by the external promotion flow.
type ContentItem struct {
	ID               string
	AuthorID         string
	Title            string
	URL              string
	IsSelf           bool
	Approved         bool
	Deleted          bool
	ExternallyHosted bool

	// RemoteCampaignID is set exactly once, when the remote campaign is
	// first created. Nil means the item has never been synced.
	RemoteCampaignID *int64
	RemoteCreativeID *int64

	LastDailyReportID  string
	LastDailyReportRun *time.Time
}

// Author is the account a ContentItem belongs to. Each author maps to at
// most one remote advertiser.
type Author struct {
	ID                 string
	Name               string
	RemoteAdvertiserID *int64
}
