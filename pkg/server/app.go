package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"GridCast/internal/domain/models"
	domrepo "GridCast/internal/domain/repository"
	"GridCast/internal/handler/api"
	"GridCast/internal/scheduler"
	"GridCast/internal/usecase"
	"GridCast/pkg/config"
	xhttp "GridCast/pkg/http"
	applogger "GridCast/pkg/logger"
)

// App encapsulates the application lifecycle. It runs in one of three
// modes: a single synchronous forecast cycle, the daily scheduler, or
// the read API server.
type App struct {
	cfg       *config.Config
	l         *applogger.Logger
	pipeline  *usecase.Pipeline
	store     domrepo.RunStore
	publisher domrepo.RunPublisher
	handler   *api.ForecastsHandler
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	l *applogger.Logger,
	pipeline *usecase.Pipeline,
	store domrepo.RunStore,
	publisher domrepo.RunPublisher,
	handler *api.ForecastsHandler,
) *App {
	return &App{
		cfg:       cfg,
		l:         l,
		pipeline:  pipeline,
		store:     store,
		publisher: publisher,
		handler:   handler,
	}
}

// RunForecast executes one generation cycle synchronously for the given
// date ("YYYY-MM-DD", empty means today) and exits.
func (a *App) RunForecast(dateStr string) error {
	defer a.closeAll()

	date := time.Now().UTC()
	if dateStr != "" {
		parsed, err := time.ParseInLocation(models.RunDateLayout, dateStr, time.UTC)
		if err != nil {
			return fmt.Errorf("invalid date %q: %w", dateStr, err)
		}
		date = parsed
	}

	run, err := a.pipeline.RunForDate(context.Background(), date)
	if err != nil {
		a.l.Error("forecast cycle failed",
			applogger.String("date", date.Format(models.RunDateLayout)),
			applogger.Error(err),
		)
		return err
	}
	a.l.Info("forecast cycle complete",
		applogger.String("date", run.DateKey()),
		applogger.Bool("fallback", run.IsFallback),
		applogger.Int("entries", len(run.Entries)),
	)
	return nil
}

// RunScheduler starts the daily trigger and blocks until interrupted.
func (a *App) RunScheduler() error {
	defer a.closeAll()

	sched, err := scheduler.New(a.pipeline, a.cfg.Forecast.TriggerTime, a.cfg.Forecast.Timezone, a.l)
	if err != nil {
		return fmt.Errorf("scheduler: %w", err)
	}
	sched.Start()
	a.l.Info("scheduler running",
		applogger.String("trigger", a.cfg.Forecast.TriggerTime),
		applogger.String("timezone", a.cfg.Forecast.Timezone),
	)

	waitForSignal()
	a.l.Info("shutdown signal received")

	// Let a mid-flight run finish before tearing down storage.
	<-sched.Stop().Done()
	return nil
}

// RunAPI starts the read API server and blocks until interrupted.
func (a *App) RunAPI() error {
	defer a.closeAll()

	srv := xhttp.NewServer(a.handler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
		xhttp.WithLogger(a.l),
	)
	if err := srv.Start(); err != nil {
		return fmt.Errorf("http server: %w", err)
	}
	a.l.Info("read api running", applogger.Int("port", a.cfg.Server.Port))

	waitForSignal()
	a.l.Info("shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Stop(ctx); err != nil {
		a.l.Error("http shutdown error", applogger.Error(err))
		return err
	}
	return nil
}

func (a *App) closeAll() {
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.l.Warn("publisher close error", applogger.Error(err))
		}
	}
	if err := a.store.Close(); err != nil {
		a.l.Warn("store close error", applogger.Error(err))
	}
}

func waitForSignal() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
}
