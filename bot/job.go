package bot

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// StartAutoReplyJob launches the background loop that runs a processing cycle
// immediately and then on every interval tick until ctx is canceled. Cycle
// errors are logged and the loop keeps going; only cancellation stops it.
func StartAutoReplyJob(ctx context.Context, svc *Service, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	go func() {
		slog.Info("auto-reply job started", slog.Duration("interval", interval), slog.String("component", "bot"))
		runOnce := func() {
			if err := svc.RunCycle(ctx); err != nil {
				if errors.Is(err, ErrCycleRunning) {
					slog.Warn("skipping tick: previous cycle still running", slog.String("component", "bot"))
					return
				}
				if errors.Is(err, context.Canceled) {
					return
				}
				slog.Error("processing cycle failed", slog.Any("err", err), slog.String("component", "bot"))
			}
		}
		runOnce()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				slog.Info("auto-reply job stopped", slog.String("component", "bot"))
				return
			case <-ticker.C:
				runOnce()
			}
		}
	}()
}
