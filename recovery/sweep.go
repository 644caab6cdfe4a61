package recovery

import (
	"context"
	"log/slog"
	"time"

	"go.uber.org/atomic"

	"github.com/checktick/survey-key-recovery/interfaces"
)

// SweepStats summarizes one sweep pass.
type SweepStats struct {
	// Found is the number of requests with expired time delays.
	Found int
	// Processed is the number promoted to READY_FOR_EXECUTION (or that
	// would have been, in dry-run mode).
	Processed int
	// Errors is the number of requests whose promotion failed.
	Errors int
}

// Sweeper periodically promotes IN_TIME_DELAY requests whose cooldown has
// expired. Each request is processed independently; one failure never
// stops the pass. Safe to run concurrently with user-initiated cancels: a
// request cancelled between the query and the promotion simply fails its
// precondition and is skipped.
type Sweeper struct {
	svc    *Service
	store  interfaces.Store
	log    *slog.Logger
	dryRun bool
	now    func() time.Time

	totalProcessed atomic.Int64
	totalErrors    atomic.Int64
}

// NewSweeper creates a sweeper over the given service and store.
func NewSweeper(svc *Service, store interfaces.Store, log *slog.Logger) *Sweeper {
	return &Sweeper{svc: svc, store: store, log: log, now: time.Now}
}

// WithDryRun makes sweep passes report what they would do without
// transitioning any request.
func (w *Sweeper) WithDryRun(dryRun bool) *Sweeper {
	w.dryRun = dryRun
	return w
}

// WithClock overrides the sweeper's time source.
func (w *Sweeper) WithClock(now func() time.Time) *Sweeper {
	w.now = now
	return w
}

// ProcessOnce runs a single sweep pass.
func (w *Sweeper) ProcessOnce(ctx context.Context) (SweepStats, error) {
	ids, err := w.store.ExpiredTimeDelays(ctx, w.now())
	if err != nil {
		return SweepStats{}, err
	}

	stats := SweepStats{Found: len(ids)}
	for _, id := range ids {
		if w.dryRun {
			stats.Processed++
			w.log.Info("Would complete time delay (dry run)",
				slog.String("request_id", id.String()))
			continue
		}

		completed, err := w.svc.CheckTimeDelayComplete(ctx, id)
		switch {
		case err != nil:
			stats.Errors++
			w.totalErrors.Inc()
			w.log.Error("Failed to process recovery time delay",
				slog.String("request_id", id.String()), "err", err)
		case completed:
			stats.Processed++
			w.totalProcessed.Inc()
		default:
			// Lost the race against a cancel/reject, or the delay moved;
			// nothing to do.
			w.log.Debug("Expired request no longer eligible",
				slog.String("request_id", id.String()))
		}
	}
	return stats, nil
}

// Run sweeps at the given interval until the context is cancelled.
func (w *Sweeper) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if stats, err := w.ProcessOnce(ctx); err != nil {
			w.log.Error("Recovery time delay sweep failed", "err", err)
		} else if stats.Found > 0 {
			w.log.Info("Recovery time delay sweep complete",
				slog.Int("found", stats.Found),
				slog.Int("processed", stats.Processed),
				slog.Int("errors", stats.Errors))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// TotalProcessed returns the number of promotions across all passes.
func (w *Sweeper) TotalProcessed() int64 { return w.totalProcessed.Load() }

// TotalErrors returns the number of failed promotions across all passes.
func (w *Sweeper) TotalErrors() int64 { return w.totalErrors.Load() }
