// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// Stats sources selectable with stats_source.
const (
	StatsSourceMongo = "mongo"
	StatsSourceHTTP  = "http"
)

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// WAFFLE's CoreConfig covers ports, TLS, logging, CORS for the root router
// and DB connect timeouts. Everything about where dashboard stats come from
// and how they are presented lives here.
type AppConfig struct {
	// MongoDB connection configuration (stats_source=mongo)
	MongoURI         string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase    string // Database name within MongoDB
	MongoMaxPoolSize uint64 // Maximum connections in pool (default: 100)
	MongoMinPoolSize uint64 // Minimum connections to keep warm (default: 10)

	// API key for /api/analytics. Empty rejects every API request.
	APIKey string

	// Comma-separated browser origins allowed to call the analytics API and
	// open the live socket. Empty allows any origin.
	AnalyticsOrigins string

	// Where dashboard stats are read from: "mongo" (lead_stats counters) or
	// "http" (remote stats backend).
	StatsSource string

	// Remote stats backend (stats_source=http)
	StatsRemoteURL         string
	StatsRemoteToken       string
	StatsRemoteTimeout     time.Duration
	StatsBreakerFailures   int
	StatsBreakerOpenWindow time.Duration

	// Payload cache TTL per filter. Zero disables the cache.
	StatsCacheTTL time.Duration

	// Counter plotted on the trend line (default: leads).
	StatsTrendCounter string

	// What to do with trend points whose bucket key cannot be labelled:
	// "raw" keeps the key as its label, "drop" omits the point.
	LabelPolicy string

	// Hourly counters older than this are pruned. Zero keeps them forever.
	HourlyRetention time.Duration

	// Handler timeouts
	RequestTimeout time.Duration // chi timeout for non-streaming API routes
	TimeoutPing    time.Duration
	TimeoutShort   time.Duration
	TimeoutMedium  time.Duration
}
