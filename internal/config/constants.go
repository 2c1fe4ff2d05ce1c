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

// Background job intervals
const CleanupJobInterval = 5 * time.Minute

// Bcrypt cost bounds accepted by Validate
const (
	MinBcryptCost = 4
	MaxBcryptCost = 31
)

// Minimum trimmed length for signup fields (email, password, confirmation)
const MinCredentialLength = 5

// PasswordChangedSkew is subtracted from the passwordChangedAt stamp so a
// session token issued in the same instant as the change is not rejected
// as stale by the clock-ordering comparison.
const PasswordChangedSkew = time.Second

// Rate limits for unauthenticated credential endpoints (per IP per minute)
const (
	LoginRateLimitPerMin  = 5
	ForgotRateLimitPerMin = 3
)
