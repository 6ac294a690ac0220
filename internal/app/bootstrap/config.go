// internal/app/bootstrap/config.go
package bootstrap

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/dalemusser/stratalead/internal/domain/analytics"
	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

// EnvVarPrefix is the prefix for environment variables.
const EnvVarPrefix = "STRATALEAD"

// appConfigKeys defines the configuration keys for this application.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, stats_source, etc.
//   - Environment variables: STRATALEAD_MONGO_URI, STRATALEAD_STATS_SOURCE, etc.
//   - Command-line flags: --mongo_uri, --stats_source, etc.
var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "stratalead", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size (default: 100)"},
	{Name: "mongo_min_pool_size", Default: 10, Desc: "MongoDB min connection pool size (default: 10)"},

	// API access
	{Name: "api_key", Default: "", Desc: "API key for /api/analytics (leave empty to reject all API requests)"},
	{Name: "analytics_origins", Default: "", Desc: "Comma-separated origins allowed to use the analytics API (empty allows any)"},

	// Stats source
	{Name: "stats_source", Default: StatsSourceMongo, Desc: "Stats source: 'mongo' or 'http'"},
	{Name: "stats_remote_url", Default: "", Desc: "Remote stats backend base URL (stats_source=http)"},
	{Name: "stats_remote_token", Default: "", Desc: "Bearer token for the remote stats backend"},
	{Name: "stats_remote_timeout", Default: "10s", Desc: "Timeout for one remote stats request"},
	{Name: "stats_breaker_failures", Default: 5, Desc: "Consecutive remote failures that open the circuit breaker"},
	{Name: "stats_breaker_open_window", Default: "30s", Desc: "How long the circuit breaker stays open before probing"},
	{Name: "stats_cache_ttl", Default: "15s", Desc: "Per-filter stats cache TTL (0 disables)"},
	{Name: "stats_trend_counter", Default: "leads", Desc: "Counter plotted on the trend line (stats_source=mongo)"},

	// Presentation
	{Name: "label_policy", Default: "raw", Desc: "Unparseable bucket keys: 'raw' (show key) or 'drop' (omit point)"},

	// Retention
	{Name: "hourly_retention", Default: "2160h", Desc: "Prune hourly counters older than this (0 keeps them)"},

	// Timeouts
	{Name: "request_timeout", Default: "30s", Desc: "Timeout for non-streaming API requests"},
	{Name: "timeout_ping", Default: "2s", Desc: "Health check timeout"},
	{Name: "timeout_short", Default: "5s", Desc: "Counter write timeout"},
	{Name: "timeout_medium", Default: "10s", Desc: "Dashboard fetch timeout"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// WAFFLE's config.LoadWithAppConfig merges .env files, config files,
// environment variables (WAFFLE_* for core, STRATALEAD_* for app) and flags
// with precedence flags > env > files > defaults.
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, EnvVarPrefix, appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		MongoURI:         appValues.String("mongo_uri"),
		MongoDatabase:    appValues.String("mongo_database"),
		MongoMaxPoolSize: uint64(appValues.Int("mongo_max_pool_size")),
		MongoMinPoolSize: uint64(appValues.Int("mongo_min_pool_size")),

		APIKey:           appValues.String("api_key"),
		AnalyticsOrigins: appValues.String("analytics_origins"),

		StatsSource:            strings.ToLower(strings.TrimSpace(appValues.String("stats_source"))),
		StatsRemoteURL:         strings.TrimSpace(appValues.String("stats_remote_url")),
		StatsRemoteToken:       appValues.String("stats_remote_token"),
		StatsRemoteTimeout:     appValues.Duration("stats_remote_timeout", 10*time.Second),
		StatsBreakerFailures:   appValues.Int("stats_breaker_failures"),
		StatsBreakerOpenWindow: appValues.Duration("stats_breaker_open_window", 30*time.Second),
		StatsCacheTTL:          appValues.Duration("stats_cache_ttl", 15*time.Second),
		StatsTrendCounter:      appValues.String("stats_trend_counter"),

		LabelPolicy: strings.ToLower(strings.TrimSpace(appValues.String("label_policy"))),

		HourlyRetention: appValues.Duration("hourly_retention", 90*24*time.Hour),

		RequestTimeout: appValues.Duration("request_timeout", 30*time.Second),
		TimeoutPing:    appValues.Duration("timeout_ping", 2*time.Second),
		TimeoutShort:   appValues.Duration("timeout_short", 5*time.Second),
		TimeoutMedium:  appValues.Duration("timeout_medium", 10*time.Second),
	}

	return coreCfg, appCfg, nil
}

// ValidateConfig performs app-specific config validation.
//
// Unknown enum values, a bad Mongo URI (mongo source) and a missing or
// relative remote URL (http source) abort startup.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	if err := validateAppConfig(appCfg); err != nil {
		logger.Error("invalid configuration", zap.Error(err))
		return err
	}

	if appCfg.APIKey == "" {
		logger.Warn("api_key is not set; /api/analytics will reject every request")
	}
	return nil
}

func validateAppConfig(appCfg AppConfig) error {
	switch appCfg.StatsSource {
	case StatsSourceMongo:
		if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
			return fmt.Errorf("invalid MongoDB URI: %w", err)
		}
		if appCfg.MongoDatabase == "" {
			return fmt.Errorf("mongo_database is required when stats_source=%s", StatsSourceMongo)
		}
	case StatsSourceHTTP:
		if appCfg.StatsRemoteURL == "" {
			return fmt.Errorf("stats_remote_url is required when stats_source=%s", StatsSourceHTTP)
		}
		u, err := url.Parse(appCfg.StatsRemoteURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("stats_remote_url %q must be an absolute http(s) URL", appCfg.StatsRemoteURL)
		}
	default:
		return fmt.Errorf("unknown stats_source %q (want %s or %s)", appCfg.StatsSource, StatsSourceMongo, StatsSourceHTTP)
	}

	if _, err := analytics.ParseLabelPolicy(appCfg.LabelPolicy); err != nil {
		return err
	}
	if appCfg.StatsCacheTTL < 0 {
		return fmt.Errorf("stats_cache_ttl must not be negative")
	}
	if appCfg.HourlyRetention < 0 {
		return fmt.Errorf("hourly_retention must not be negative")
	}
	if appCfg.StatsBreakerFailures < 0 {
		return fmt.Errorf("stats_breaker_failures must not be negative")
	}
	return nil
}

// labelPolicy returns the validated label policy.
func (c AppConfig) labelPolicy() analytics.LabelPolicy {
	p, _ := analytics.ParseLabelPolicy(c.LabelPolicy)
	return p
}
