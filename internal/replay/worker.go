package replay

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/henrynw/openrating/internal/lock"
	"github.com/henrynw/openrating/internal/monitoring"
	"github.com/henrynw/openrating/internal/store"
)

// Worker is the replay queue consumer (§5, C11): pulls up to N ladders
// ordered by earliestStartTime ASC, replays each under a lease so a
// second worker process can't double-process the same ladder, and
// deletes the queue row only on success.
type Worker struct {
	executor *Executor
	queue    queueRepo
	leases   *lock.Leases
	ownerID  string
	limit    int
	leaseTTL time.Duration
	metrics  *monitoring.MetricsCollector
}

// SetMetrics attaches a metrics collector; optional, nil is a no-op.
func (w *Worker) SetMetrics(mc *monitoring.MetricsCollector) { w.metrics = mc }

// queueRepo is the slice of store.ReplayQueueRepo the worker needs,
// narrowed to an interface so tests can substitute an in-memory queue.
type queueRepo interface {
	ListPending(ctx context.Context, limit int) ([]store.ReplayQueueEntry, error)
	Delete(ctx context.Context, ladderID string) error
}

func NewWorker(executor *Executor, queue queueRepo, leases *lock.Leases, ownerID string, limit int, leaseTTL time.Duration) *Worker {
	if limit <= 0 {
		limit = 10
	}
	return &Worker{executor: executor, queue: queue, leases: leases, ownerID: ownerID, limit: limit, leaseTTL: leaseTTL}
}

// RunOnce processes one poll cycle: claim ladders, replay each, release
// leases. Failures leave the queue row in place for the next cycle
// (§5: "Failures leave the row for backoff").
func (w *Worker) RunOnce(ctx context.Context) error {
	entries, err := w.queue.ListPending(ctx, w.limit)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		lockName := "replay:" + entry.LadderID
		acquired, err := w.leases.TryAcquire(ctx, lockName, w.ownerID, w.leaseTTL)
		if err != nil {
			log.Ctx(ctx).Error().Err(err).Str("ladder_id", entry.LadderID).Msg("replay lease acquire failed")
			continue
		}
		if !acquired {
			continue
		}

		start := time.Now()
		report, err := w.executor.Replay(ctx, entry.LadderID, nil, false)
		if w.metrics != nil {
			w.metrics.RecordRunDuration("replay", time.Since(start))
		}
		if err != nil {
			if w.metrics != nil {
				w.metrics.RecordError("replay", "replay_failed")
			}
			log.Ctx(ctx).Error().Err(err).Str("ladder_id", entry.LadderID).Msg("replay failed, leaving queue entry for retry")
			_ = w.leases.Release(ctx, lockName, w.ownerID)
			continue
		}

		if err := w.queue.Delete(ctx, entry.LadderID); err != nil {
			log.Ctx(ctx).Error().Err(err).Str("ladder_id", entry.LadderID).Msg("failed to remove replay queue entry after success")
		}
		_ = w.leases.Release(ctx, lockName, w.ownerID)

		if w.metrics != nil {
			w.metrics.RecordCustomMetric("replay_matches_processed", float64(report.MatchesProcessed),
				map[string]string{"ladder_id": entry.LadderID}, monitoring.MetricTypeGauge)
		}

		log.Ctx(ctx).Info().
			Str("ladder_id", entry.LadderID).
			Int("matches_processed", report.MatchesProcessed).
			Msg("replay queue entry processed")
	}
	return nil
}

// Loop polls forever at the given interval until ctx is cancelled.
func (w *Worker) Loop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.RunOnce(ctx); err != nil {
				log.Ctx(ctx).Error().Err(err).Msg("replay worker poll failed")
			}
		}
	}
}
