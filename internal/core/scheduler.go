package core

// scheduler.go runs background maintenance on a cron schedule.
//
// Currently it purges import history older than the retention period.
// A failed run is logged and retried at the next scheduled time; it never
// stops the scheduler.

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/JonMunkholm/tenderdesk/internal/logging"
)

// HistoryConfig holds configuration for the history purge job.
type HistoryConfig struct {
	Retention time.Duration // entries older than this are deleted
	Schedule  string        // standard 5-field cron expression
}

// purgeTimeout bounds one purge run.
const purgeTimeout = time.Minute

// StartHistoryPurge schedules the import history purge and starts the
// scheduler. Stop the returned scheduler on shutdown and wait on the
// context it returns for a running purge to finish.
func (s *Service) StartHistoryPurge(cfg HistoryConfig) (*cron.Cron, error) {
	if cfg.Retention <= 0 {
		return nil, fmt.Errorf("history retention must be positive, got %s", cfg.Retention)
	}

	logger := logging.CronLogger{}
	c := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	if _, err := c.AddFunc(cfg.Schedule, func() { s.runPurgeJob(cfg.Retention) }); err != nil {
		return nil, fmt.Errorf("schedule history purge %q: %w", cfg.Schedule, err)
	}
	c.Start()

	slog.Info("history purge scheduled",
		"schedule", cfg.Schedule,
		"retention_days", int(cfg.Retention.Hours()/24),
	)
	return c, nil
}

// runPurgeJob performs one purge.
func (s *Service) runPurgeJob(retention time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), purgeTimeout)
	defer cancel()

	start := time.Now()
	purged, err := s.PurgeImports(ctx, retention)
	if err != nil {
		slog.Error("history purge failed", "error", err)
		return
	}
	slog.Info("history purge completed",
		"entries_purged", purged,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
