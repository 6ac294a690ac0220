// internal/app/bootstrap/dbdeps.go
package bootstrap

import (
	leadstatsstore "github.com/dalemusser/stratalead/internal/app/store/leadstats"
	"github.com/dalemusser/stratalead/internal/app/system/statscache"
	"github.com/dalemusser/stratalead/internal/app/system/statsclient"
	"github.com/dalemusser/stratalead/internal/app/system/statsfetch"
	"go.mongodb.org/mongo-driver/mongo"
)

// DBDeps holds database and backend dependencies for this WAFFLE app.
//
// Exactly one stats source is populated: the Mongo fields and LeadStats
// for stats_source=mongo, StatsClient for stats_source=http.
type DBDeps struct {
	// MongoDB client and database (nil with the http source)
	MongoClient   *mongo.Client
	MongoDatabase *mongo.Database

	// LeadStats is the counter store; it is both provider and event recorder.
	LeadStats *leadstatsstore.Store

	// StatsClient talks to a remote stats backend.
	StatsClient *statsclient.Client

	// StatsCache is nil when stats_cache_ttl is 0.
	StatsCache *statscache.Provider

	// Provider is the source the dashboard reads, cache included.
	Provider statsfetch.Provider
}
