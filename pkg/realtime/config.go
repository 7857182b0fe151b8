package realtime

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Config holds gateway settings, loaded from REALTIME_* variables.
type Config struct {
	Path           string        `env:"REALTIME_PATH" envDefault:"/ws/notifications"`
	AuthTimeout    time.Duration `env:"REALTIME_AUTH_TIMEOUT" envDefault:"10s"`
	PingPeriod     time.Duration `env:"REALTIME_PING_PERIOD" envDefault:"30s"`
	PongWait       time.Duration `env:"REALTIME_PONG_WAIT" envDefault:"60s"`
	WriteWait      time.Duration `env:"REALTIME_WRITE_WAIT" envDefault:"10s"`
	MaxMessageSize int64         `env:"REALTIME_MAX_MESSAGE_SIZE" envDefault:"4096"`
	SendBuffer     int           `env:"REALTIME_SEND_BUFFER" envDefault:"64"`

	// Client frames per connection: MessageBurst at once, MessageRate per second after.
	// Zero MessageBurst disables throttling.
	MessageBurst int `env:"REALTIME_MESSAGE_BURST" envDefault:"20"`
	MessageRate  int `env:"REALTIME_MESSAGE_RATE" envDefault:"10"`

	// AllowedOrigins lists browser origins allowed to connect. "*" allows any.
	// Empty means same host only.
	AllowedOrigins []string `env:"REALTIME_ALLOWED_ORIGINS" envSeparator:","`
}

// DefaultConfig mirrors the envDefault tags.
func DefaultConfig() Config {
	return Config{
		Path:           "/ws/notifications",
		AuthTimeout:    10 * time.Second,
		PingPeriod:     30 * time.Second,
		PongWait:       60 * time.Second,
		WriteWait:      10 * time.Second,
		MaxMessageSize: 4096,
		SendBuffer:     64,
		MessageBurst:   20,
		MessageRate:    10,
	}
}

// Validate rejects unusable paths and timings.
func (c Config) Validate() error {
	switch {
	case !strings.HasPrefix(c.Path, "/"):
		return fmt.Errorf("realtime: path %q must start with /", c.Path)
	case c.AuthTimeout <= 0:
		return fmt.Errorf("realtime: auth timeout must be positive")
	case c.PingPeriod <= 0 || c.PongWait <= c.PingPeriod:
		return fmt.Errorf("realtime: ping period %v must be positive and shorter than pong wait %v", c.PingPeriod, c.PongWait)
	case c.WriteWait <= 0:
		return fmt.Errorf("realtime: write wait must be positive")
	case c.MaxMessageSize <= 0:
		return fmt.Errorf("realtime: max message size must be positive")
	case c.SendBuffer <= 0:
		return fmt.Errorf("realtime: send buffer must be positive")
	case c.MessageBurst < 0 || (c.MessageBurst > 0 && c.MessageRate <= 0):
		return fmt.Errorf("realtime: message rate must be positive when throttling is enabled")
	}
	return nil
}

func (c Config) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range c.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(strings.TrimSpace(allowed), origin) {
			return true
		}
	}
	if len(c.AllowedOrigins) > 0 {
		return false
	}
	u, err := url.Parse(origin)
	return err == nil && strings.EqualFold(u.Host, r.Host)
}
