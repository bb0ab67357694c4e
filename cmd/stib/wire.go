package main

import (
	"context"
	"log/slog"

	"tools.zach/dev/stib/internal/config"
	"tools.zach/dev/stib/internal/lifecycle"
	"tools.zach/dev/stib/internal/screentime"
	"tools.zach/dev/stib/internal/telegram"
)

// ///////////////////////////////////////////////
// Wiring
// ///////////////////////////////////////////////

// chat is the part of [telegram.Bot] the daemon core needs.
type chat interface {
	Notify(ctx context.Context, text string) error
	Listen(ctx context.Context, r *telegram.Router) error
}

// app is the assembled daemon.
type app struct {
	tracker     *screentime.Tracker
	router      *telegram.Router
	coordinator *lifecycle.Coordinator
}

// assemble builds the clock, monitor, controller and command router over a
// shared tracker and hands them to a lifecycle coordinator.
func assemble(cfg *config.Config, c chat, log *slog.Logger) *app {
	tracker := &screentime.Tracker{}
	tick := cfg.Timer.TickInterval()

	clock := screentime.NewClock(tracker, tick, log)
	monitor := screentime.NewMonitor(tracker, screentime.MonitorOptions{
		Policy: screentime.Policy{
			Threshold: cfg.Timer.NotificationThreshold,
			Timeout:   cfg.Timer.NotificationTimeout,
		},
		Interval:         cfg.Timer.PollInterval(),
		Prompts:          cfg.Messages.Prompts,
		Notifier:         c,
		AdvanceOnFailure: cfg.Timer.AdvanceOnFailure,
		Logger:           log,
	})
	ctrl := screentime.NewController(tracker, tick, cfg.Timer.ResetOnStop, screentime.Replies{
		Started: cfg.Messages.Started,
		Stopped: cfg.Messages.Stopped,
		Status:  cfg.Messages.Status,
		Help:    cfg.Messages.Help,
	})
	router := newRouter(ctrl)

	coord := lifecycle.New(lifecycle.Options{
		Workers: []lifecycle.Worker{
			{Name: screentime.ClockWorker, Run: clock.Run},
			{Name: screentime.MonitorWorker, Run: monitor.Run},
		},
		Listener: func(ctx context.Context) error { return c.Listen(ctx, router) },
		Notifier: c,
		Messages: lifecycle.Messages{
			Greeting:     cfg.Messages.Greeting,
			ShuttingDown: cfg.Messages.ShuttingDown,
			Critical:     cfg.Messages.Critical,
			Farewell:     cfg.Messages.Farewell,
		},
		Logger: log,
	})

	return &app{tracker: tracker, router: router, coordinator: coord}
}

// newRouter maps the bot commands onto ctrl.
func newRouter(ctrl *screentime.Controller) *telegram.Router {
	r := telegram.NewRouter()
	r.Handle("help", "see the list of commands", func(telegram.Command) string { return ctrl.Help() })
	r.Handle("start", "start the screen time timer", func(telegram.Command) string { return ctrl.Start() })
	r.Handle("stop", "stop the timer and see your screen time", func(telegram.Command) string { return ctrl.Stop() })
	r.Handle("status", "check whether the timer is running", func(telegram.Command) string { return ctrl.Status() })
	return r
}
