package scheduler

import (
	"context"
	"os"
	"time"

	"zenith/internal/logger"
)

// Watchdog terminates the process when the cycle heartbeat goes stale.
// A hung cycle (stuck network call, deadlock) is otherwise invisible; a
// hard exit lets the supervisor restart the bot from clean state. It is
// the only component allowed to kill the process.
type Watchdog struct {
	heartbeat func() time.Time
	maxAge    time.Duration
	interval  time.Duration
	exitFn    func(int)
}

func NewWatchdog(heartbeat func() time.Time, maxAge time.Duration) *Watchdog {
	if maxAge <= 0 {
		maxAge = 5 * time.Minute
	}
	return &Watchdog{
		heartbeat: heartbeat,
		maxAge:    maxAge,
		interval:  30 * time.Second,
		exitFn:    os.Exit,
	}
}

// Run blocks until the context is done, checking staleness periodically.
func (w *Watchdog) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			age := time.Since(w.heartbeat())
			if age > w.maxAge {
				logger.Errorf("watchdog: heartbeat stale for %s (limit %s), terminating", age.Truncate(time.Second), w.maxAge)
				w.exitFn(1)
				return
			}
		}
	}
}
