package screentime

import (
	"context"
	"log/slog"
	"time"

	"tools.zach/dev/stib/internal/logger"
)

// ClockWorker is the worker name the clock logs under.
const ClockWorker = "ClockWorker"

// Clock advances a [Tracker]'s elapsed time by one per tick while the
// tracker is running.
type Clock struct {
	tracker  *Tracker
	interval time.Duration
	log      *slog.Logger
}

// NewClock creates a clock ticking every interval. A nil log uses
// [slog.Default].
func NewClock(t *Tracker, interval time.Duration, log *slog.Logger) *Clock {
	if log == nil {
		log = slog.Default()
	}
	return &Clock{tracker: t, interval: interval, log: logger.ForWorker(log, ClockWorker)}
}

// Run ticks until ctx is cancelled. It always returns nil; the error return
// lets it run as a lifecycle worker.
func (c *Clock) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.log.Debug("clock started", "interval", c.interval)
	for {
		select {
		case <-ctx.Done():
			c.log.Debug("clock stopped", "elapsed", c.tracker.Elapsed())
			return nil
		case <-ticker.C:
			if ctx.Err() != nil {
				continue
			}
			c.tick()
		}
	}
}

// tick applies a pending reset, then counts one tick if running.
func (c *Clock) tick() {
	t := c.tracker
	if t.resetPending.CompareAndSwap(true, false) {
		t.elapsed.Store(0)
		c.log.Debug("elapsed time reset")
	}
	if !t.running.Load() {
		return
	}
	n := t.elapsed.Add(1)
	logger.Trace(c.log, "tick", "elapsed", n)
}
