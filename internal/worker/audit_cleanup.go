package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/medisync/clinic-api/internal/repository"
)

// AuditCleanupWorker retires audit rows past the retention horizon on a
// fixed interval.
type AuditCleanupWorker struct {
	repo      repository.AuditRepository
	retention time.Duration
	interval  time.Duration
	logger    *zerolog.Logger
}

func NewAuditCleanupWorker(repo repository.AuditRepository, retention, interval time.Duration, logger *zerolog.Logger) *AuditCleanupWorker {
	return &AuditCleanupWorker{
		repo:      repo,
		retention: retention,
		interval:  interval,
		logger:    logger,
	}
}

// Start blocks until the context is cancelled.
func (w *AuditCleanupWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.cleanup(ctx)
		}
	}
}

func (w *AuditCleanupWorker) cleanup(ctx context.Context) {
	cutoff := time.Now().Add(-w.retention)

	rows, err := w.repo.Cleanup(ctx, cutoff)
	if err != nil {
		w.logger.Error().Err(err).Msg("failed to clean up audit logs")
		return
	}
	if rows > 0 {
		w.logger.Info().Int64("rows", rows).Time("cutoff", cutoff).Msg("retired expired audit logs")
	}
}
