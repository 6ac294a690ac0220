// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"

	"github.com/dalemusser/stratalead/internal/app/system/tasks"
	"github.com/dalemusser/stratalead/internal/app/system/timeouts"
	"github.com/dalemusser/stratalead/internal/domain/analytics"
	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// Startup runs once after the stats source is connected and indexes exist,
// but before the HTTP handler is built.
//
// It applies the configured handler timeouts, starts the hourly counter
// retention job (mongo source only) and warms the all-time dashboard. A
// failed warm-up is logged, not fatal: the dashboard reports the backend as
// unavailable until it recovers.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	timeouts.Configure(timeouts.Config{
		Ping:   appCfg.TimeoutPing,
		Short:  appCfg.TimeoutShort,
		Medium: appCfg.TimeoutMedium,
	})

	startTaskRunner(appCfg, deps, logger)

	warmCtx, cancel := timeouts.WithTimeout(ctx, timeouts.Medium(), logger, "stats warm-up")
	defer cancel()
	if _, err := deps.Provider.Fetch(warmCtx, analytics.TimeFilter{}); err != nil {
		logger.Warn("stats warm-up failed", zap.String("source", appCfg.StatsSource), zap.Error(err))
	} else {
		logger.Info("stats source ready", zap.String("source", appCfg.StatsSource))
	}

	return nil
}

// taskRunner is the global task runner instance, used for graceful shutdown.
var taskRunner *tasks.Runner

// startTaskRunner registers and starts background jobs. The http source has
// no local counters to prune, so nothing is started for it.
func startTaskRunner(appCfg AppConfig, deps DBDeps, logger *zap.Logger) {
	if deps.LeadStats == nil || appCfg.HourlyRetention <= 0 {
		return
	}

	taskRunner = tasks.New(logger)
	taskRunner.Register(tasks.LeadStatsRetentionJob(deps.LeadStats, appCfg.HourlyRetention, logger))
	taskRunner.Start()
}
