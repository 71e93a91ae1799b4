package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"GridCast/internal/usecase"
	applogger "GridCast/pkg/logger"
)

// Scheduler fires the pipeline once per day at the configured local
// trigger time. A missed trigger (process down at the time) is not
// backfilled; the next day's trigger runs normally.
type Scheduler struct {
	cron     *cron.Cron
	pipeline *usecase.Pipeline
	loc      *time.Location
	l        *applogger.Logger
}

// New builds a scheduler for trigger "HH:MM" in the named timezone.
func New(pipeline *usecase.Pipeline, triggerTime, timezone string, l *applogger.Logger) (*Scheduler, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", timezone, err)
	}

	spec, err := CronSpec(triggerTime)
	if err != nil {
		return nil, err
	}

	s := &Scheduler{
		cron:     cron.New(cron.WithLocation(loc)),
		pipeline: pipeline,
		loc:      loc,
		l:        l,
	}
	if _, err := s.cron.AddFunc(spec, s.fire); err != nil {
		return nil, fmt.Errorf("register trigger: %w", err)
	}
	return s, nil
}

// CronSpec converts an "HH:MM" trigger time to a daily cron expression.
func CronSpec(triggerTime string) (string, error) {
	t, err := time.Parse("15:04", triggerTime)
	if err != nil {
		return "", fmt.Errorf("trigger time must be HH:MM, got %q: %w", triggerTime, err)
	}
	return fmt.Sprintf("%d %d * * *", t.Minute(), t.Hour()), nil
}

// Start begins firing triggers. Non-blocking.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.l.Info("scheduler started",
		applogger.String("timezone", s.loc.String()),
	)
}

// Stop halts the trigger loop and waits for a running job to finish.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

func (s *Scheduler) fire() {
	date := time.Now().In(s.loc)
	s.l.Info("daily trigger fired",
		applogger.Time("at", date),
	)
	run, err := s.pipeline.RunForDate(context.Background(), date)
	if err != nil {
		s.l.Error("scheduled run failed",
			applogger.String("date", date.Format("2006-01-02")),
			applogger.Error(err),
		)
		return
	}
	s.l.Info("scheduled run complete",
		applogger.String("date", run.DateKey()),
		applogger.Bool("fallback", run.IsFallback),
	)
}
