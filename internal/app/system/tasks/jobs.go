// internal/app/system/tasks/jobs.go
package tasks

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// HourlyPruner deletes hour-level counters older than a cutoff.
type HourlyPruner interface {
	DeleteHourlyOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// LeadStatsRetentionJob creates a job that prunes hour-level lead counters
// older than retention. Day, month and year counters are kept forever.
func LeadStatsRetentionJob(store HourlyPruner, retention time.Duration, logger *zap.Logger) Job {
	return Job{
		Name:     "lead-stats-retention",
		Interval: 1 * time.Hour,
		Timeout:  5 * time.Minute,
		Run: func(ctx context.Context) error {
			cutoff := time.Now().UTC().Add(-retention)
			deleted, err := store.DeleteHourlyOlderThan(ctx, cutoff)
			if err != nil {
				return err
			}
			if deleted > 0 {
				logger.Info("pruned hourly lead stats",
					zap.Int64("deleted", deleted),
					zap.Time("cutoff", cutoff))
			}
			return nil
		},
	}
}
