// Package lifecycle sequences the daemon's startup and shutdown.
//
// A [Coordinator] announces itself, runs every [Worker] in an errgroup next
// to an update listener, and on interrupt or internal failure cancels the
// workers, announces the shutdown and joins everything before reporting
// [PhaseTerminated]. The farewell message is sent on every exit path.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"tools.zach/dev/stib/internal/logger"
)

// MainWorker is the worker name the coordinator logs under.
const MainWorker = "MainWorker"

// DefaultAnnounceTimeout bounds each lifecycle message delivery.
const DefaultAnnounceTimeout = 10 * time.Second

var (
	// ErrAlreadyRunning is returned when Run is called more than once.
	ErrAlreadyRunning = errors.New("coordinator already started")
	// ErrListenerStopped reports that the listener returned before shutdown.
	ErrListenerStopped = errors.New("listener stopped unexpectedly")
)

// ///////////////////////////////////////////////
// Phase
// ///////////////////////////////////////////////

// Phase is the coordinator's lifecycle phase.
type Phase int32

const (
	PhaseInitial Phase = iota
	PhaseRunning
	PhaseShuttingDown
	PhaseTerminated
)

func (p Phase) String() string {
	switch p {
	case PhaseInitial:
		return "initial"
	case PhaseRunning:
		return "running"
	case PhaseShuttingDown:
		return "shutting_down"
	case PhaseTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("phase(%d)", int32(p))
	}
}

// ///////////////////////////////////////////////
// Types
// ///////////////////////////////////////////////

// Worker is a long-running loop. Run must return once ctx is cancelled; a
// nil return before that counts as a failure.
type Worker struct {
	Name string
	Run  func(ctx context.Context) error
}

// Notifier delivers lifecycle messages to the user.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// Messages holds the lifecycle announcements. Empty messages are skipped.
type Messages struct {
	Greeting     string
	ShuttingDown string
	Critical     string
	Farewell     string
}

// Options configures a [Coordinator].
type Options struct {
	Workers []Worker
	// Listener receives user commands. It runs until its context is cancelled,
	// which happens after the shutdown notice is sent.
	Listener func(ctx context.Context) error
	Notifier Notifier
	Messages Messages
	// AnnounceTimeout bounds each message; defaults to DefaultAnnounceTimeout.
	AnnounceTimeout time.Duration
	Logger          *slog.Logger
}

// Coordinator owns the workers' shared shutdown signal.
type Coordinator struct {
	opts    Options
	log     *slog.Logger
	phase   atomic.Int32
	started atomic.Bool
}

// New creates a coordinator in [PhaseInitial].
func New(opts Options) *Coordinator {
	if opts.AnnounceTimeout <= 0 {
		opts.AnnounceTimeout = DefaultAnnounceTimeout
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Coordinator{opts: opts, log: logger.ForWorker(log, MainWorker)}
}

// Phase returns the current lifecycle phase.
func (c *Coordinator) Phase() Phase {
	return Phase(c.phase.Load())
}

func (c *Coordinator) setPhase(p Phase) {
	c.phase.Store(int32(p))
	c.log.Debug("phase changed", "phase", p)
}

// ///////////////////////////////////////////////
// Run
// ///////////////////////////////////////////////

// Run starts the workers and listener and blocks until ctx is cancelled or
// one of them fails. It returns nil after an interrupt-driven shutdown and
// the first internal error otherwise. Every worker has returned before Run
// does.
func (c *Coordinator) Run(ctx context.Context) (err error) {
	if !c.started.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer func() {
		c.setPhase(PhaseTerminated)
		c.log.Info("all cleaned up")
		c.announce(ctx, c.opts.Messages.Farewell)
	}()

	c.setPhase(PhaseRunning)
	c.announce(ctx, c.opts.Messages.Greeting)

	workCtx, cancelWork := context.WithCancel(ctx)
	defer cancelWork()
	g, gctx := errgroup.WithContext(workCtx)
	for _, w := range c.opts.Workers {
		g.Go(c.guard(gctx, w))
	}

	listenCtx, stopListener := context.WithCancel(context.WithoutCancel(ctx))
	defer stopListener()
	listenDone := make(chan error, 1)
	go func() { listenDone <- c.runListener(listenCtx) }()
	c.log.Info("running", "workers", len(c.opts.Workers))

	var internal error
	listenerExited := false
	select {
	case <-ctx.Done():
		c.log.Info("interrupt received")
	case <-gctx.Done():
		if ctx.Err() == nil {
			internal = context.Cause(gctx)
		}
	case lerr := <-listenDone:
		listenerExited = true
		if lerr == nil {
			lerr = ErrListenerStopped
		}
		internal = fmt.Errorf("listener: %w", lerr)
	}

	c.setPhase(PhaseShuttingDown)
	cancelWork()
	if internal != nil {
		logger.Fail(c.log, "internal error", "error", internal)
		c.announce(ctx, c.opts.Messages.Critical)
	}
	c.log.Info("shutting down")
	c.announce(ctx, c.opts.Messages.ShuttingDown)

	stopListener()
	if !listenerExited {
		if lerr := <-listenDone; lerr != nil {
			c.log.Warn("listener stopped with error", "error", lerr)
		}
	}
	if werr := g.Wait(); werr != nil && internal == nil {
		internal = werr
	}
	c.log.Debug("workers joined")
	return internal
}

// guard adapts w for the errgroup: panics become errors, a clean exit while
// ctx is live is a failure, and cancellation errors after shutdown are not.
func (c *Coordinator) guard(ctx context.Context, w Worker) func() error {
	return func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("worker %s panicked: %v", w.Name, r)
			}
		}()

		c.log.Debug("worker started", logger.WorkerKey, w.Name)
		err = w.Run(ctx)
		c.log.Debug("worker exited", logger.WorkerKey, w.Name)

		switch {
		case ctx.Err() != nil && (err == nil || errors.Is(err, context.Canceled)):
			return nil
		case err == nil:
			return fmt.Errorf("worker %s exited unexpectedly", w.Name)
		default:
			return fmt.Errorf("worker %s: %w", w.Name, err)
		}
	}
}

// runListener runs the listener with panic recovery. A missing listener
// blocks until ctx is cancelled.
func (c *Coordinator) runListener(ctx context.Context) (err error) {
	if c.opts.Listener == nil {
		<-ctx.Done()
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("listener panicked: %v", r)
		}
	}()
	return c.opts.Listener(ctx)
}

// announce sends text to the user, bounded by the announce timeout and
// independent of ctx cancellation.
func (c *Coordinator) announce(ctx context.Context, text string) {
	if text == "" || c.opts.Notifier == nil {
		return
	}
	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.opts.AnnounceTimeout)
	defer cancel()
	if err := c.opts.Notifier.Notify(actx, text); err != nil {
		c.log.Warn("announcement not delivered", "error", err)
	}
}
