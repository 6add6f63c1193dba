package config

import (
	"github.com/caarlos0/env/v11"

	"adsync/internal/config/configs"
)

// Config aggregates all configuration sections for the sync engine. Fields
// are populated from environment variables using the caarlos0/env library;
// nested structs are tagged with envPrefix so their fields are parsed with
// the given prefix. Use Load to construct a Config. The whole struct is
// handed to components at construction time; nothing reads it globally.
type Config struct {
	// Env specifies the deployment environment (e.g. prod, dev).
	Env string `env:"ENV" envDefault:"prod"`

	// HTTP holds configuration for the internal ops HTTP server.
	HTTP configs.HTTP `envPrefix:"HTTP_"`

	// Log configures the structured logger.
	Log configs.Logger `envPrefix:"LOG_"`

	// Psql configures the PostgreSQL connection for the entity store.
	Psql configs.Postgres `envPrefix:"PSQL_"`

	// Redis configures the queue, lock and cache backend.
	Redis configs.Redis `envPrefix:"REDIS_"`

	// Remote configures the ad platform API.
	Remote configs.Remote `envPrefix:"REMOTE_"`

	// Reporting tunes the report poller.
	Reporting configs.Reporting `envPrefix:"REPORTING_"`

	// Sync tunes orchestrator locking and the overdelivery monitor.
	Sync configs.Sync `envPrefix:"SYNC_"`
}

// Load reads configuration from environment variables into a Config. If
// parsing fails, an error is returned. All fields are loaded with their
// specified defaults when no environment variable is provided.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
