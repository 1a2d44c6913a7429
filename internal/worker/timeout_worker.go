// Package worker hosts the background loops of the escrow service.
package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/tradeguard/escrow/internal/services"
)

// TimeoutWorker drives the timeout sweep on a fixed interval.
type TimeoutWorker struct {
	timeouts *services.TimeoutService
	interval time.Duration
	logger   *slog.Logger
}

func NewTimeoutWorker(timeouts *services.TimeoutService, interval time.Duration, logger *slog.Logger) *TimeoutWorker {
	return &TimeoutWorker{
		timeouts: timeouts,
		interval: interval,
		logger:   logger,
	}
}

// Start blocks until ctx is cancelled. One sweep runs immediately so a
// restart never extends a dwell ceiling by a full interval.
func (w *TimeoutWorker) Start(ctx context.Context) {
	w.logger.Info("timeout worker started", "interval", w.interval)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("timeout worker stopping")
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *TimeoutWorker) sweep(ctx context.Context) {
	expired, err := w.timeouts.Sweep(ctx)
	if err != nil {
		w.logger.Error("timeout sweep failed", "error", err)
		return
	}
	if expired > 0 {
		w.logger.Info("timeout sweep finished", "expired", expired)
	}
}
