package configs

// HTTP defines configuration for the internal ops HTTP server, which serves
// the flight-resolution endpoint consumed by the ad-request servers plus a
// health check. It is not meant to be exposed publicly.
type HTTP struct {
	// Port is the TCP port the server will listen on.
	Port uint16 `env:"PORT" envDefault:"8081"`
}
