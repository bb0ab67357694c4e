// Package screentime implements the screen time clock, the reminder monitor
// and the start/stop controller that share a single [Tracker].
//
// Each mutable counter in [Tracker] has exactly one writer:
//
//   - elapsed: the [Clock]
//   - last notified: the [Monitor]
//   - running and the reset request: the [Controller]
//
// Everything else only reads, and may observe a value one tick stale.
package screentime

import "sync/atomic"

// Tracker holds the counters shared by the clock, monitor and controller.
// The zero value is a paused tracker with no accumulated time.
type Tracker struct {
	elapsed      atomic.Int64
	lastNotified atomic.Int64
	running      atomic.Bool
	resetPending atomic.Bool
}

// Elapsed returns the accumulated tick count.
func (t *Tracker) Elapsed() int64 { return t.elapsed.Load() }

// LastNotified returns the elapsed value at the most recent reminder.
func (t *Tracker) LastNotified() int64 { return t.lastNotified.Load() }

// Running reports whether a timing session is active.
func (t *Tracker) Running() bool { return t.running.Load() }
