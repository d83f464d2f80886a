package e2e

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// RELAY_ADDR is the host:port of a running relay. The suites are skipped without it.
	RelayAddr string `envconfig:"RELAY_ADDR"`
	// HEALTH_ADDR is the gRPC health endpoint of the same relay, optional.
	HealthAddr string `envconfig:"HEALTH_ADDR"`
	// E2E_COLOURS enables colorized output for better log readability
	Colours bool          `envconfig:"E2E_COLOURS" default:"true"`
	Timeout time.Duration `envconfig:"E2E_TIMEOUT" default:"5s"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
