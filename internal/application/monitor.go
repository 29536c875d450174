package application

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Monitor runs the two periodic pool checks: quota consumption of the active
// session and session lifetime. Each check asks the pool to rotate when its
// threshold is crossed; the rotation itself runs detached so a slow or failed
// rotation never blocks a tick. A failed rotation is retried on the next
// tick.
type Monitor struct {
	pool   *PoolManager
	logger *slog.Logger
}

func NewMonitor(pool *PoolManager, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}

	return &Monitor{pool: pool, logger: logger}
}

// Run blocks until ctx is cancelled.
func (mo *Monitor) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		mo.tickLoop(ctx, func() time.Duration { return mo.pool.Settings().QuotaCheckInterval }, mo.CheckQuota)
	}()
	go func() {
		defer wg.Done()
		mo.tickLoop(ctx, func() time.Duration { return mo.pool.Settings().SessionCheckInterval }, mo.CheckSessionTimeout)
	}()
	wg.Wait()
}

// tickLoop re-reads its interval after every tick so a settings update takes
// effect without restarting the monitor.
func (mo *Monitor) tickLoop(ctx context.Context, interval func() time.Duration, check func()) {
	current := interval()
	ticker := time.NewTicker(current)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			check()
			if next := interval(); next != current {
				current = next
				ticker.Reset(next)
			}
		}
	}
}

// CheckQuota rotates away from the active account when its quota consumption,
// live session time included, reaches the configured threshold.
func (mo *Monitor) CheckQuota() {
	settings := mo.pool.Settings()
	if !settings.AutoRotateOnQuotaLow {
		return
	}

	percent, active := mo.pool.SessionQuotaUsedPercent()
	if !active || percent < settings.QuotaThresholdPercent {
		return
	}

	mo.logger.Info("quota threshold reached", "percent", percent)
	mo.rotate("quota low")
}

// CheckSessionTimeout rotates when the active session has outlived the
// configured session timeout.
func (mo *Monitor) CheckSessionTimeout() {
	settings := mo.pool.Settings()

	elapsed, active := mo.pool.SessionElapsed()
	if !active || elapsed < settings.SessionTimeout {
		return
	}

	mo.logger.Info("session timeout reached", "elapsed", elapsed)
	mo.rotate("session timeout")
}

// rotate runs detached: the tick that triggered it never waits on the
// rotation's outcome.
func (mo *Monitor) rotate(reason string) {
	go func() {
		if _, err := mo.pool.RotateToNext(reason); err != nil {
			mo.logger.Warn("rotate pool", "reason", reason, "error", err)
		}
	}()
}
