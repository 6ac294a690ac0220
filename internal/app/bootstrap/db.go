// internal/app/bootstrap/db.go
package bootstrap

import (
	"context"
	"fmt"

	leadstatsstore "github.com/dalemusser/stratalead/internal/app/store/leadstats"
	"github.com/dalemusser/stratalead/internal/app/system/indexes"
	"github.com/dalemusser/stratalead/internal/app/system/statscache"
	"github.com/dalemusser/stratalead/internal/app/system/statsclient"
	"github.com/dalemusser/stratalead/internal/app/system/statsfetch"
	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

// ConnectDB connects the configured stats source.
//
// With stats_source=mongo it opens the MongoDB pool and builds the lead_stats
// counter store. With stats_source=http it builds the remote stats client;
// no database connection is made. Either provider is then wrapped in the
// per-filter payload cache.
func ConnectDB(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) (DBDeps, error) {
	var deps DBDeps
	var inner statsfetch.Provider

	switch appCfg.StatsSource {
	case StatsSourceHTTP:
		client, err := statsclient.New(statsclient.Config{
			BaseURL:          appCfg.StatsRemoteURL,
			Token:            appCfg.StatsRemoteToken,
			Timeout:          appCfg.StatsRemoteTimeout,
			FailureThreshold: uint32(appCfg.StatsBreakerFailures),
			OpenTimeout:      appCfg.StatsBreakerOpenWindow,
			Logger:           logger,
		})
		if err != nil {
			return DBDeps{}, fmt.Errorf("failed to create stats client: %w", err)
		}
		deps.StatsClient = client
		inner = client
		logger.Info("using remote stats backend",
			zap.String("url", appCfg.StatsRemoteURL),
			zap.Duration("timeout", appCfg.StatsRemoteTimeout),
		)

	default:
		poolCfg := wafflemongo.DefaultPoolConfig()
		if appCfg.MongoMaxPoolSize > 0 {
			poolCfg.MaxPoolSize = appCfg.MongoMaxPoolSize
		}
		if appCfg.MongoMinPoolSize > 0 {
			poolCfg.MinPoolSize = appCfg.MongoMinPoolSize
		}

		client, err := wafflemongo.ConnectWithPool(ctx, appCfg.MongoURI, appCfg.MongoDatabase, poolCfg)
		if err != nil {
			return DBDeps{}, err
		}
		db := client.Database(appCfg.MongoDatabase)

		logger.Info("connected to MongoDB",
			zap.String("database", appCfg.MongoDatabase),
			zap.Uint64("max_pool_size", poolCfg.MaxPoolSize),
			zap.Uint64("min_pool_size", poolCfg.MinPoolSize),
		)

		deps.MongoClient = client
		deps.MongoDatabase = db
		deps.LeadStats = leadstatsstore.New(db, appCfg.StatsTrendCounter)
		inner = deps.LeadStats
	}

	deps.Provider = statscache.Wrap(inner, appCfg.StatsCacheTTL, logger)
	if c, ok := deps.Provider.(*statscache.Provider); ok {
		deps.StatsCache = c
		logger.Info("stats cache enabled", zap.Duration("ttl", appCfg.StatsCacheTTL))
	}

	return deps, nil
}

// EnsureSchema creates the lead_stats indexes. It is a no-op for the http
// source, which owns no collections.
func EnsureSchema(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	if deps.MongoDatabase == nil {
		return nil
	}

	logger.Info("ensuring database indexes")
	if err := indexes.EnsureAll(ctx, deps.MongoDatabase); err != nil {
		logger.Error("failed to ensure indexes", zap.Error(err))
		return err
	}

	logger.Info("database schema ensured successfully")
	return nil
}
