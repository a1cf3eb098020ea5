package config

import "time"

// Database connection pool settings
const (
	DBMaxOpenConns    = 25
	DBMaxIdleConns    = 5
	DBConnMaxLifetime = 5 * time.Minute
)

// HTTP server timeouts
const (
	ServerRequestTimeout  = 60 * time.Second
	ServerReadTimeout     = 15 * time.Second
	ServerIdleTimeout     = 120 * time.Second
	ServerShutdownTimeout = 30 * time.Second
)

// Database ping timeout for health checks
const DBPingTimeout = 5 * time.Second

// Upper bound for applying schema migrations at startup
const MigrationTimeout = time.Minute

// Bridge health probe timeout, shorter than regular bridge calls
const BridgeHealthTimeout = 3 * time.Second

// Default rate limiting
const DefaultRateLimitPerMin = 60

// Live feed lists expire when a tenant stops receiving messages
const LiveFeedTTL = 24 * time.Hour

// Unauthenticated request limit per client IP
const (
	IPRateLimitPerWindow = 120
	IPRateLimitWindow    = time.Minute
)
