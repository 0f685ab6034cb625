// internal/app/bootstrap/config.go
package bootstrap

import (
	"fmt"
	"time"

	"github.com/dalemusser/studyhub/internal/app/system/timeouts"
	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

const minSessionKeyLength = 32

// appConfigKeys defines the configuration keys for StudyHub.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, session_name, etc.
//   - Environment variables: STUDYHUB_MONGO_URI, STUDYHUB_SESSION_NAME, etc.
//   - Command-line flags: --mongo_uri, --session_name, etc.
var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "studyhub", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size (default: 100)"},
	{Name: "mongo_min_pool_size", Default: 10, Desc: "MongoDB min connection pool size (default: 10)"},
	{Name: "session_key", Default: "dev-only-change-me-please-0123456789ABCDEF", Desc: "Session signing key (must be strong in production)"},
	{Name: "session_name", Default: "studyhub-session", Desc: "Session cookie name"},
	{Name: "session_domain", Default: "", Desc: "Session cookie domain (blank means current host)"},
	{Name: "session_max_age", Default: "720h", Desc: "Session cookie lifetime"},

	// Base URL for the OAuth callback
	{Name: "base_url", Default: "http://localhost:3000", Desc: "Public base URL of this service"},

	// Google OAuth configuration
	{Name: "google_client_id", Default: "", Desc: "Google OAuth2 client ID (blank disables sign-in)"},
	{Name: "google_client_secret", Default: "", Desc: "Google OAuth2 client secret"},

	// Realtime
	{Name: "realtime_ticket_secret", Default: "", Desc: "HS256 key for websocket tickets (blank uses session_key)"},
	{Name: "realtime_ticket_ttl", Default: "1m", Desc: "Websocket ticket lifetime"},

	// Groups
	{Name: "invite_code_attempts", Default: 10, Desc: "Invite code generation attempts per group create"},
	{Name: "membership_transactions", Default: true, Desc: "Create groups inside a transaction when the deployment supports it"},
	{Name: "reconcile_interval", Default: "10m", Desc: "Owner/member-count reconciliation interval (0 disables)"},

	// Ranking and stats
	{Name: "ranking_top_n", Default: 10, Desc: "Entries returned by the group ranking"},
	{Name: "stats_timezone", Default: "UTC", Desc: "IANA timezone used for daily and weekly study buckets"},

	// Throttles
	{Name: "message_rate_per_minute", Default: 30, Desc: "Messages per user per minute (0 disables)"},
	{Name: "location_rate_per_minute", Default: 12, Desc: "Location updates per user per minute (0 disables)"},
	{Name: "auth_rate_per_minute", Default: 30, Desc: "Sign-in requests per client IP per minute (0 disables)"},

	// Side effects
	{Name: "sidefx_timeout", Default: "5s", Desc: "Timeout for detached side effects (publishes, system messages)"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// WAFFLE's config.LoadWithAppConfig handles .env files, config files,
// environment variables (WAFFLE_* for core, STUDYHUB_* for app) and flags,
// merged with precedence flags > env > files > defaults.
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, "STUDYHUB", appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		MongoURI:         appValues.String("mongo_uri"),
		MongoDatabase:    appValues.String("mongo_database"),
		MongoMaxPoolSize: uint64(appValues.Int("mongo_max_pool_size")),
		MongoMinPoolSize: uint64(appValues.Int("mongo_min_pool_size")),
		SessionKey:       appValues.String("session_key"),
		SessionName:      appValues.String("session_name"),
		SessionDomain:    appValues.String("session_domain"),
		SessionMaxAge:    appValues.Duration("session_max_age", 30*24*time.Hour),

		BaseURL: appValues.String("base_url"),

		GoogleClientID:     appValues.String("google_client_id"),
		GoogleClientSecret: appValues.String("google_client_secret"),

		RealtimeTicketSecret: appValues.String("realtime_ticket_secret"),
		RealtimeTicketTTL:    appValues.Duration("realtime_ticket_ttl", time.Minute),

		InviteCodeAttempts:     appValues.Int("invite_code_attempts"),
		MembershipTransactions: appValues.Bool("membership_transactions"),
		ReconcileInterval:      appValues.Duration("reconcile_interval", 10*time.Minute),

		RankingTopN:   appValues.Int("ranking_top_n"),
		StatsTimezone: appValues.String("stats_timezone"),

		MessageRatePerMinute:  appValues.Int("message_rate_per_minute"),
		LocationRatePerMinute: appValues.Int("location_rate_per_minute"),
		AuthRatePerMinute:     appValues.Int("auth_rate_per_minute"),

		SideFXTimeout: appValues.Duration("sidefx_timeout", 5*time.Second),
	}

	if n := timeouts.ConfigureFromEnv(); n > 0 {
		logger.Info("timeouts overridden from environment", zap.Int("count", n))
	}

	return coreCfg, appCfg, nil
}

// ValidateConfig performs app-specific config validation.
//
// StudyHub checks everything that would otherwise fail later and less
// clearly: the Mongo URI, the session key, the stats timezone and the
// invite code budget.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
		logger.Error("invalid MongoDB URI", zap.Error(err))
		return fmt.Errorf("invalid MongoDB URI: %w", err)
	}
	if appCfg.MongoDatabase == "" {
		return fmt.Errorf("mongo_database is required")
	}
	if len(appCfg.SessionKey) < minSessionKeyLength {
		return fmt.Errorf("session_key must be at least %d characters", minSessionKeyLength)
	}
	if _, err := time.LoadLocation(appCfg.StatsTimezone); err != nil {
		return fmt.Errorf("invalid stats_timezone %q: %w", appCfg.StatsTimezone, err)
	}
	if appCfg.InviteCodeAttempts <= 0 {
		return fmt.Errorf("invite_code_attempts must be positive")
	}
	if appCfg.RankingTopN <= 0 {
		return fmt.Errorf("ranking_top_n must be positive")
	}
	if appCfg.ReconcileInterval < 0 {
		return fmt.Errorf("reconcile_interval cannot be negative")
	}
	if (appCfg.GoogleClientID == "") != (appCfg.GoogleClientSecret == "") {
		logger.Warn("google sign-in needs both client id and secret; sign-in stays disabled")
	}
	return nil
}
