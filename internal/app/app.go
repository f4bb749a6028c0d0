// Package app wires the paper-trading bot together (store, quote gateway,
// engine, scheduler, API server, notifications) and manages its lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/arjunmehta/overnightbot/internal/config"
	"github.com/arjunmehta/overnightbot/internal/domain"
	"github.com/arjunmehta/overnightbot/internal/notify"
	"github.com/arjunmehta/overnightbot/internal/scheduler"
	"github.com/arjunmehta/overnightbot/internal/server"
	"github.com/arjunmehta/overnightbot/internal/server/handler"
	"github.com/arjunmehta/overnightbot/internal/server/ws"
)

// Trigger IDs used for run bookkeeping and lock keys. Changing one orphans
// its trigger_runs history.
const (
	triggerEntry   = "entry"
	triggerExit    = "exit"
	triggerArchive = "archive"
)

// App is the root application object. It owns the configuration, logger, and
// a list of cleanup functions that are called in reverse order on shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

// New creates a new App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run wires all dependencies, starts the scheduler and (when enabled) the
// API server, and blocks until the context is cancelled or a component
// fails. Call Close afterwards to release resources.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting application",
		slog.String("storage", a.cfg.Storage.Driver),
		slog.Bool("redis", a.cfg.Redis.Enabled),
		slog.Bool("server", a.cfg.Server.Enabled),
		slog.Bool("archive", a.cfg.Archive.Enabled),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	loc, err := time.LoadLocation(a.cfg.Schedule.Timezone)
	if err != nil {
		return fmt.Errorf("app: load timezone: %w", err)
	}

	sched := scheduler.New(deps.Ledger, scheduler.Options{
		Location:      loc,
		ActionTimeout: a.cfg.Schedule.ActionTimeout.Duration,
		Locks:         deps.Locks,
	}, a.logger)

	triggers := []scheduler.Trigger{
		{
			ID:     triggerEntry,
			Spec:   a.cfg.Schedule.EntryCron,
			Grace:  a.cfg.Schedule.CatchUpGrace.Duration,
			Action: a.notifyOnFailure(deps.Notifier, "Entry trigger failed", func(ctx context.Context) error {
				_, err := deps.Engine.OpenFromMarket(ctx)
				return err
			}),
		},
		{
			ID:     triggerExit,
			Spec:   a.cfg.Schedule.ExitCron,
			Grace:  a.cfg.Schedule.CatchUpGrace.Duration,
			Action: a.notifyOnFailure(deps.Notifier, "Exit trigger failed", func(ctx context.Context) error {
				_, err := deps.Engine.Close(ctx)
				return err
			}),
		},
	}
	if deps.Archiver != nil {
		triggers = append(triggers, scheduler.Trigger{
			ID:     triggerArchive,
			Spec:   a.cfg.Archive.Cron,
			Action: deps.Archiver.Run,
		})
	}
	for _, t := range triggers {
		if err := sched.Add(t); err != nil {
			return fmt.Errorf("app: add trigger %s: %w", t.ID, err)
		}
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return sched.Run(ctx)
	})

	if a.cfg.Server.Enabled {
		var hub *ws.Hub
		if deps.Bus != nil {
			hub = ws.NewHub(deps.Bus, a.logger)
			g.Go(func() error {
				return hub.Run(ctx)
			})
		}

		srv := server.NewServer(server.Config{
			Port:        a.cfg.Server.Port,
			CORSOrigins: a.cfg.Server.CORSOrigins,
			APIKey:      a.cfg.Server.APIKey,
		}, server.Handlers{
			Health: handler.NewHealthHandler(),
			Status: handler.NewStatusHandler(deps.Engine, sched),
			Paper:  handler.NewPaperHandler(deps.Engine),
			Trades: handler.NewTradesHandler(deps.Engine),
			Quotes: handler.NewQuoteHandler(deps.Gateway, deps.Resolver),
		}, hub, a.logger)

		g.Go(srv.Start)
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("app: %w", err)
	}
	return nil
}

// notifyOnFailure wraps a trigger action so that hard failures reach the
// notification channels. No-op outcomes (already open, nothing open,
// neutral signal) pass through silently.
func (a *App) notifyOnFailure(notifier *notify.Notifier, title string, action func(ctx context.Context) error) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		err := action(ctx)
		if err != nil && !domain.IsNoOp(err) {
			if nerr := notifier.Notify(ctx, notify.EventFailure, title, err.Error()); nerr != nil {
				a.logger.Warn("failure notification not delivered", slog.String("error", nerr.Error()))
			}
		}
		return err
	}
}

// Close tears down all resources in reverse registration order. Safe to call
// more than once.
func (a *App) Close() {
	a.logger.Info("shutting down application")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
