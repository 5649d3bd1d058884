// Package jobs runs periodic maintenance next to the HTTP server.
package jobs

import (
	"context"
	"time"

	"github.com/hilthontt/cheahlytics/internal/domain"
	"github.com/hilthontt/cheahlytics/internal/infrastructure/logging"
)

// AuditCleanupJob deletes ingestion audit entries past their retention.
type AuditCleanupJob struct {
	audit     domain.IngestionAuditRepository
	logger    logging.Logger
	retention time.Duration
	interval  time.Duration
	now       func() time.Time
	stopChan  chan struct{}
}

const defaultSweepInterval = time.Hour

func NewAuditCleanupJob(audit domain.IngestionAuditRepository, logger logging.Logger, retention, interval time.Duration) *AuditCleanupJob {
	if interval <= 0 {
		interval = defaultSweepInterval
	}

	return &AuditCleanupJob{
		audit:     audit,
		logger:    logger,
		retention: retention,
		interval:  interval,
		now:       time.Now,
		stopChan:  make(chan struct{}),
	}
}

func (j *AuditCleanupJob) Start(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.logger.Info(logging.MongoDB, logging.Startup, "audit cleanup job started", map[logging.ExtraKey]any{
		"interval":  j.interval.String(),
		"retention": j.retention.String(),
	})

	j.runCleanup(ctx)

	for {
		select {
		case <-ticker.C:
			j.runCleanup(ctx)
		case <-j.stopChan:
			j.logger.Info(logging.MongoDB, logging.Shutdown, "audit cleanup job stopped", nil)
			return
		case <-ctx.Done():
			return
		}
	}
}

func (j *AuditCleanupJob) Stop() {
	close(j.stopChan)
}

func (j *AuditCleanupJob) runCleanup(ctx context.Context) {
	start := j.now()
	before := start.Add(-j.retention)

	if err := j.audit.DeleteOlderThan(ctx, before); err != nil {
		j.logger.Error(logging.MongoDB, logging.Query, "audit cleanup failed", map[logging.ExtraKey]any{
			logging.ErrorMessage: err.Error(),
		})
		return
	}

	j.logger.Debug(logging.MongoDB, logging.Query, "audit cleanup completed", map[logging.ExtraKey]any{
		"before":        before,
		logging.Latency: time.Since(start).String(),
	})
}
