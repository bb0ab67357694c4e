package screentime

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"time"

	"tools.zach/dev/stib/internal/logger"
)

// MonitorWorker is the worker name the monitor logs under.
const MonitorWorker = "ScreenMonitorWorker"

// Notifier delivers a reminder to the user.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// Policy decides when a reminder is due. Both bounds are in ticks.
type Policy struct {
	// Threshold is the elapsed time that must be exceeded before any reminder.
	Threshold int64
	// Timeout is the gap since the last reminder that must be exceeded.
	Timeout int64
}

// ShouldNotify reports whether a reminder is due at elapsed time e when the
// last reminder went out at l.
func (p Policy) ShouldNotify(e, l int64) bool {
	return e > p.Threshold && e-l > p.Timeout
}

// MonitorOptions configures a [Monitor].
type MonitorOptions struct {
	Policy   Policy
	Interval time.Duration
	Prompts  []string
	Notifier Notifier

	// AdvanceOnFailure records a failed reminder as sent so the next attempt
	// waits a full Timeout.
	AdvanceOnFailure bool

	// Pick returns an index in [0, n). Defaults to [rand.IntN].
	Pick func(n int) int

	Logger *slog.Logger
}

// Monitor polls a [Tracker] and sends a random prompt whenever its
// [Policy] says a reminder is due.
type Monitor struct {
	tracker *Tracker
	opts    MonitorOptions
	log     *slog.Logger
}

// NewMonitor creates a monitor over t. opts.Prompts must be non-empty.
func NewMonitor(t *Tracker, opts MonitorOptions) *Monitor {
	if opts.Pick == nil {
		opts.Pick = rand.IntN
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Monitor{tracker: t, opts: opts, log: logger.ForWorker(log, MonitorWorker)}
}

// Run polls until ctx is cancelled. Delivery failures are logged and never
// end the loop; Run always returns nil.
func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.opts.Interval)
	defer ticker.Stop()

	m.log.Debug("monitor started",
		"interval", m.opts.Interval,
		"threshold", m.opts.Policy.Threshold,
		"timeout", m.opts.Policy.Timeout,
	)
	for {
		select {
		case <-ctx.Done():
			m.log.Debug("monitor stopped")
			return nil
		case <-ticker.C:
			if ctx.Err() != nil {
				continue
			}
			m.check(ctx)
		}
	}
}

// check runs one poll. It reports whether a reminder was attempted.
func (m *Monitor) check(ctx context.Context) bool {
	t := m.tracker
	e := t.elapsed.Load()
	l := t.lastNotified.Load()
	if e < l {
		// Elapsed time was reset since the last reminder.
		t.lastNotified.Store(0)
		l = 0
	}
	if !m.opts.Policy.ShouldNotify(e, l) {
		return false
	}

	prompt := m.opts.Prompts[m.opts.Pick(len(m.opts.Prompts))]
	if err := m.opts.Notifier.Notify(ctx, prompt); err != nil {
		if ctx.Err() != nil {
			return true
		}
		m.log.Warn("reminder not delivered", "elapsed", e, "error", err)
		if !m.opts.AdvanceOnFailure {
			return true
		}
	} else {
		m.log.Info("reminder sent", "elapsed", e)
	}
	t.lastNotified.Store(e)
	return true
}
