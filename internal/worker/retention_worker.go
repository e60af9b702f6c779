package worker

import (
	"context"
	"log/slog"
	"time"
)

// Purger deletes callbacks older than the retention window.
type Purger interface {
	Purge(ctx context.Context, retention time.Duration) (int, error)
}

// RetentionWorker periodically drops stale callbacks from the listener.
type RetentionWorker struct {
	purger    Purger
	retention time.Duration
	interval  time.Duration
	logger    *slog.Logger
}

func NewRetentionWorker(
	purger Purger,
	retention time.Duration,
	interval time.Duration,
	logger *slog.Logger,
) *RetentionWorker {
	return &RetentionWorker{
		purger:    purger,
		retention: retention,
		interval:  interval,
		logger:    logger,
	}
}

func (w *RetentionWorker) Start(ctx context.Context) {
	w.logger.Info("retention worker started", "interval", w.interval, "retention", w.retention)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	if err := w.sweep(ctx); err != nil {
		w.logger.Error("callback sweep failed", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("retention worker stopping")
			return
		case <-ticker.C:
			if err := w.sweep(ctx); err != nil {
				w.logger.Error("callback sweep failed", "error", err)
			}
		}
	}
}

func (w *RetentionWorker) sweep(ctx context.Context) error {
	removed, err := w.purger.Purge(ctx, w.retention)
	if err != nil {
		return err
	}
	if removed > 0 {
		w.logger.Info("purged stale callbacks", "removed", removed)
	}
	return nil
}
