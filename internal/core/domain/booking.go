package domain

import "time"

// CostBasis selects how a booking is priced and which remote goal/rate pair
// its flight is created with.
type CostBasis string

const (
	// CostBasisCPM is a fixed unit price per thousand impressions. Flights
	// get an impression goal of contracted impressions plus ImpressionBump.
	CostBasisCPM CostBasis = "cpm"
	// CostBasisFlat is usage-based billing at a flat rate with a
	// percentage goal.
	CostBasisFlat CostBasis = "flat"
	// CostBasisFree is a no-cost booking served at 100% rotation.
	CostBasisFree CostBasis = "free"
)

// ImpressionBump is added to the contracted impression count requested from
// the remote platform, in case its counts lag our internal traffic tracking.
const ImpressionBump = 500

// BookingIDPrefix prefixes every booking id. Remote flight names carry the
// booking id, which is how report detail rows are matched back to bookings.
const BookingIDPrefix = "bk_"

// Platform values accepted in Targeting.Platform.
const (
	PlatformAll     = "all"
	PlatformDesktop = "desktop"
	PlatformMobile  = "mobile"
)

// Location is a geotargeting constraint. Metro is nil when the booking
// targets a whole country or region.
type Location struct {
	Country string
	Region  string
	Metro   *int
}

// VersionRange bounds a mobile OS version as "major.minor" strings. An empty
// Max means no upper bound.
type VersionRange struct {
	Min string
	Max string
}

// Targeting describes where and to whom a booking's ads may serve.
type Targeting struct {
	SubredditNames  []string
	Location        *Location
	Platform        string
	MobileOS        []string
	IOSDevices      []string
	IOSVersions     *VersionRange
	AndroidDevices  []string
	AndroidVersions *VersionRange
}

// Booking is a scheduled promotion of a ContentItem. It is created by the
// external booking flow; this engine mutates only the remote-id fields, the
// lifetime usage counters and the sticky Overdelivered flag.
type Booking struct {
	ID            string
	ContentItemID string
	StartDate     time.Time
	EndDate       time.Time

	CostBasis            CostBasis
	CPM                  int64 // minor currency units per thousand impressions
	Bid                  int64 // minor currency units, flat-rate price
	BudgetTotal          int64
	Impressions          int64 // contracted impression goal
	Targeting            Targeting
	FrequencyCap         int
	FrequencyCapDuration int
	PriorityName         string

	Paused         bool
	Deleted        bool
	PaymentSettled bool
	PaymentWaived  bool

	// Overdelivered is sticky: once set it stays set until a flight update
	// recomputes it. The overdelivery monitor never re-flags a flagged
	// booking.
	Overdelivered bool

	RemoteFlightID *int64
	RemoteCFMapID  *int64

	RemoteImpressions  int64
	RemoteClicks       int64
	RemoteSpendPennies int64

	LastLifetimeReportID  string
	LastLifetimeReportRun *time.Time
}

// Live reports whether the booking is currently within its scheduled window.
func (b *Booking) Live(now time.Time) bool {
	return !b.Deleted && !now.Before(b.StartDate) && now.Before(b.EndDate)
}

// Promo pairs a booking with its content item, the unit the orchestrator and
// the sweeps operate on.
type Promo struct {
	Item    *ContentItem
	Booking *Booking
}
