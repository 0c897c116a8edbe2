package session

import (
	"context"
	"log/slog"
	"time"
)

// StartCleanupWorker periodically removes idle sessions until ctx is done.
// Blocked sessions are never removed by design of Store.CleanupExpired.
func StartCleanupWorker(ctx context.Context, store Store, ttl time.Duration) {
	interval := ttl / 4
	if interval < time.Minute {
		interval = time.Minute
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				slog.Info("Session cleanup worker stopped")
				return
			case <-ticker.C:
				removed, err := store.CleanupExpired(ctx, ttl)
				if err != nil {
					slog.Error("Session cleanup failed", "error", err)
					continue
				}
				if removed > 0 {
					slog.Info("Expired sessions removed", "count", removed)
				}
			}
		}
	}()
}
