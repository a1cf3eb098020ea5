package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog/log"
)

type Config struct {
	Port                    int     `env:"PORT" envDefault:"8080"`
	DatabaseURL             string  `env:"DATABASE_URL,required"`
	AutoMigrate             bool    `env:"AUTO_MIGRATE" envDefault:"true"`
	RedisURL                string  `env:"REDIS_URL,required"`
	BridgeURL               string  `env:"BRIDGE_URL" envDefault:"http://localhost:3001"`
	BridgeDemoMode          bool    `env:"BRIDGE_DEMO_MODE" envDefault:"false"`
	BridgeTimeoutSeconds    int     `env:"BRIDGE_TIMEOUT_SECONDS" envDefault:"10"`
	BridgeRatePerSecond     float64 `env:"BRIDGE_RATE_PER_SECOND" envDefault:"5"`
	PollIntervalMs          int     `env:"POLL_INTERVAL_MS" envDefault:"3000"`
	PollMaxAttempts         int     `env:"POLL_MAX_ATTEMPTS" envDefault:"40"`
	DemoPairingDelaySeconds int     `env:"DEMO_PAIRING_DELAY_SECONDS" envDefault:"10"`
	MetricsRefreshSeconds   int     `env:"METRICS_REFRESH_SECONDS" envDefault:"30"`
	MetricsCacheTTLSeconds  int     `env:"METRICS_CACHE_TTL_SECONDS" envDefault:"600"`
	CleanupSchedule         string  `env:"CLEANUP_SCHEDULE" envDefault:"@every 5m"`
	EventRetentionHours     int     `env:"EVENT_RETENTION_HOURS" envDefault:"168"`
	ConnectRateLimitPerMin  int     `env:"CONNECT_RATE_LIMIT_PER_MIN" envDefault:"10"`
	LogLevel                string  `env:"LOG_LEVEL" envDefault:"info"`
}

func (c *Config) BridgeTimeout() time.Duration {
	return time.Duration(c.BridgeTimeoutSeconds) * time.Second
}

func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

func (c *Config) DemoPairingDelay() time.Duration {
	return time.Duration(c.DemoPairingDelaySeconds) * time.Second
}

func (c *Config) MetricsRefreshInterval() time.Duration {
	return time.Duration(c.MetricsRefreshSeconds) * time.Second
}

func (c *Config) MetricsCacheTTL() time.Duration {
	return time.Duration(c.MetricsCacheTTLSeconds) * time.Second
}

func (c *Config) EventRetention() time.Duration {
	return time.Duration(c.EventRetentionHours) * time.Hour
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) Validate(isProduction bool) error {
	if c.PollIntervalMs <= 0 {
		return fmt.Errorf("POLL_INTERVAL_MS must be positive")
	}
	if c.PollMaxAttempts <= 0 {
		return fmt.Errorf("POLL_MAX_ATTEMPTS must be positive")
	}
	if c.BridgeRatePerSecond <= 0 {
		return fmt.Errorf("BRIDGE_RATE_PER_SECOND must be positive")
	}

	if !c.BridgeDemoMode {
		parsed, err := url.Parse(c.BridgeURL)
		if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
			return fmt.Errorf("BRIDGE_URL must be an absolute http(s) URL, got %q", c.BridgeURL)
		}
	}

	if isProduction {
		if c.BridgeDemoMode {
			log.Warn().Msg("BRIDGE_DEMO_MODE is enabled in production: pairing is simulated")
		}
		if strings.HasPrefix(c.BridgeURL, "http://") {
			log.Warn().Msg("BRIDGE_URL uses http:// (not TLS) in production")
		}
		if strings.HasPrefix(c.RedisURL, "redis://") {
			log.Warn().Msg("REDIS_URL uses redis:// (not TLS) in production: consider using rediss://")
		}
	}

	return nil
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
