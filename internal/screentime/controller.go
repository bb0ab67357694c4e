package screentime

import (
	"fmt"
	"strings"
	"time"
)

// Replies holds the controller's response templates.
type Replies struct {
	Started string
	// Stopped supports {elapsed}.
	Stopped string
	// Status supports {state} and {elapsed}.
	Status string
	Help   string
}

// Controller starts and stops timing sessions on a [Tracker].
type Controller struct {
	tracker     *Tracker
	tick        time.Duration
	resetOnStop bool
	replies     Replies
}

// NewController creates a controller. tick is the clock interval used to turn
// elapsed ticks into wall time.
func NewController(t *Tracker, tick time.Duration, resetOnStop bool, replies Replies) *Controller {
	return &Controller{tracker: t, tick: tick, resetOnStop: resetOnStop, replies: replies}
}

// Start begins counting. Calling it while already running changes nothing.
func (c *Controller) Start() string {
	c.tracker.running.Store(true)
	return c.replies.Started
}

// Stop pauses counting and reports the accumulated screen time. With
// reset-on-stop the clock zeroes the counter on its next tick.
func (c *Controller) Stop() string {
	c.tracker.running.Store(false)
	elapsed := c.tracker.Elapsed()
	if c.resetOnStop {
		c.tracker.resetPending.Store(true)
	}
	return strings.ReplaceAll(c.replies.Stopped, "{elapsed}", FormatElapsed(elapsed, c.tick))
}

// Help returns the usage text.
func (c *Controller) Help() string {
	return c.replies.Help
}

// Status reports whether the clock is running and the time so far.
func (c *Controller) Status() string {
	state := "paused"
	if c.tracker.Running() {
		state = "running"
	}
	return strings.NewReplacer(
		"{state}", state,
		"{elapsed}", FormatElapsed(c.tracker.Elapsed(), c.tick),
	).Replace(c.replies.Status)
}

// FormatElapsed renders ticks*tick as HH:MM:SS. Hours do not wrap at 24.
func FormatElapsed(ticks int64, tick time.Duration) string {
	secs := int64(time.Duration(ticks) * tick / time.Second)
	if secs < 0 {
		secs = 0
	}
	return fmt.Sprintf("%02d:%02d:%02d", secs/3600, secs/60%60, secs%60)
}
