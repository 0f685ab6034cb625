// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// These values come from environment variables, configuration files, or
// command-line flags (loaded in LoadConfig). They represent *app-level*
// configuration, not WAFFLE core configuration.
//
// WAFFLE's CoreConfig handles framework-level settings like ports, TLS,
// logging and request limits. AppConfig is where StudyHub keeps its
// database, session, sign-in, realtime and study-group tuning.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI         string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase    string // Database name within MongoDB
	MongoMaxPoolSize uint64
	MongoMinPoolSize uint64

	// Session management configuration
	SessionKey    string // Secret key for signing session cookies (must be strong in production)
	SessionName   string // Cookie name for sessions (default: studyhub-session)
	SessionDomain string // Cookie domain (blank means current host)
	SessionMaxAge time.Duration

	// Base URL used to build the OAuth callback
	BaseURL string // e.g., "https://studyhub.example" or "http://localhost:3000"

	// Google OAuth
	GoogleClientID     string
	GoogleClientSecret string

	// Realtime connect tickets (HS256). Blank falls back to SessionKey.
	RealtimeTicketSecret string
	RealtimeTicketTTL    time.Duration

	// Groups and memberships
	InviteCodeAttempts     int
	MembershipTransactions bool
	ReconcileInterval      time.Duration // 0 disables the background reconciler

	// Ranking and study statistics
	RankingTopN   int
	StatsTimezone string // IANA name; day and week buckets are cut in this zone

	// Per-user write throttles (events per minute, 0 disables)
	MessageRatePerMinute  int
	LocationRatePerMinute int
	AuthRatePerMinute     int // per client IP on /auth

	// Detached side effects (realtime publishes, system messages)
	SideFXTimeout time.Duration
}

// Location resolves StatsTimezone. ValidateConfig has already checked it.
func (c AppConfig) Location() *time.Location {
	if c.StatsTimezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.StatsTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// TicketSecret is the key realtime tickets are signed with.
func (c AppConfig) TicketSecret() string {
	if c.RealtimeTicketSecret != "" {
		return c.RealtimeTicketSecret
	}
	return c.SessionKey
}
