package notifier

import (
	"errors"
	"fmt"
	"time"
)

// Storage drivers accepted by STORE_DRIVER.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config is the application-level configuration. Infrastructure packages
// load their own sections (HTTP_*, REALTIME_*, PG_*, SQLITE_*, REDIS_*).
type Config struct {
	AppName     string `env:"APP_NAME" envDefault:"campusnotify"`
	AppEnv      string `env:"APP_ENV" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL"` // overrides the per-environment default
	JWTSecret   string `env:"JWT_SECRET,required,notEmpty"`
	StoreDriver string `env:"STORE_DRIVER" envDefault:"sqlite"`

	RateBurst    int           `env:"REST_RATE_BURST" envDefault:"60"`
	RateRefill   int           `env:"REST_RATE_REFILL" envDefault:"1"`
	RateInterval time.Duration `env:"REST_RATE_INTERVAL" envDefault:"1s"`

	// Realtime handshakes are limited per client IP.
	HandshakeBurst    int           `env:"HANDSHAKE_RATE_BURST" envDefault:"20"`
	HandshakeInterval time.Duration `env:"HANDSHAKE_RATE_INTERVAL" envDefault:"3s"`
	TrustProxyHeaders bool          `env:"TRUST_PROXY_HEADERS" envDefault:"false"`

	ReadyTimeout time.Duration `env:"READY_TIMEOUT" envDefault:"2s"`
}

var ErrInvalidConfig = errors.New("invalid notifier config")

// Validate is called by config.Load.
func (c Config) Validate() error {
	switch c.StoreDriver {
	case DriverMemory, DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("%w: unknown STORE_DRIVER %q", ErrInvalidConfig, c.StoreDriver)
	}
	if c.RateBurst < 0 || c.RateRefill < 0 || c.HandshakeBurst < 0 {
		return fmt.Errorf("%w: REST rate limits must not be negative", ErrInvalidConfig)
	}
	if c.RateBurst > 0 && (c.RateRefill == 0 || c.RateInterval <= 0) {
		return fmt.Errorf("%w: REST_RATE_REFILL and REST_RATE_INTERVAL must be positive when REST_RATE_BURST is set", ErrInvalidConfig)
	}
	if c.HandshakeBurst > 0 && c.HandshakeInterval <= 0 {
		return fmt.Errorf("%w: HANDSHAKE_RATE_INTERVAL must be positive when HANDSHAKE_RATE_BURST is set", ErrInvalidConfig)
	}
	return nil
}
