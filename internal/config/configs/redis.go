package configs

// Redis configures the redis connection shared by the queues, the keyed
// lock and the flight cache.
type Redis struct {
	Addr     string `env:"ADDRESS" envDefault:"localhost:6379"`
	Password string `env:"PASSWORD" envDefault:""`
	DB       int    `env:"DB" envDefault:"0"`

	// SyncQueue and ReportQueue are the list keys backing the two logical
	// queues.
	SyncQueue   string `env:"SYNC_QUEUE" envDefault:"adsync:sync"`
	ReportQueue string `env:"REPORT_QUEUE" envDefault:"adsync:reporting"`
}
