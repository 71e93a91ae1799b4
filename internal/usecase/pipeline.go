package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"GridCast/internal/domain/models"
	domrepo "GridCast/internal/domain/repository"
	"GridCast/internal/engine"
	"GridCast/internal/feature"
	"GridCast/internal/validate"
	applogger "GridCast/pkg/logger"
)

// Clock abstracts wall time so tests can pin generation timestamps.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// SystemClock returns the real-time clock.
func SystemClock() Clock { return systemClock{} }

// PipelineConfig carries the grid and deadline settings for one
// orchestrator instance.
type PipelineConfig struct {
	Products     []models.Product
	HorizonHours int
	HistoryHours int
	RunDeadline  time.Duration
}

// Pipeline runs the daily generation sequence for one date: ingest,
// featurize, forecast, validate, store. Any stage failure triggers the
// fallback path; only a fallback with no prior run to fall back on is a
// hard failure.
type Pipeline struct {
	cfg       PipelineConfig
	sources   []domrepo.SignalSource
	builder   *feature.Builder
	engine    *engine.Engine
	validator *validate.Validator
	store     domrepo.RunStore
	publisher domrepo.RunPublisher
	metrics   domrepo.Metrics
	clock     Clock
	l         *applogger.Logger

	mu       sync.Mutex
	inflight map[string]struct{}
}

func NewPipeline(
	cfg PipelineConfig,
	sources []domrepo.SignalSource,
	builder *feature.Builder,
	eng *engine.Engine,
	validator *validate.Validator,
	store domrepo.RunStore,
	publisher domrepo.RunPublisher,
	metrics domrepo.Metrics,
	clock Clock,
	l *applogger.Logger,
) *Pipeline {
	if clock == nil {
		clock = systemClock{}
	}
	return &Pipeline{
		cfg:       cfg,
		sources:   sources,
		builder:   builder,
		engine:    eng,
		validator: validator,
		store:     store,
		publisher: publisher,
		metrics:   metrics,
		clock:     clock,
		l:         l,
		inflight:  make(map[string]struct{}),
	}
}

// RunForDate executes the pipeline for one generation date. The calendar
// day is read in the date's own location, so a scheduler firing at 06:00
// local time runs for that local day even when UTC is still on the
// previous one; key, anchor, and validation all use the normalized date.
// At most one run per date may be in flight; concurrent triggers for the
// same date get ErrRunInFlight. The returned run is what ended up stored,
// primary or fallback.
func (p *Pipeline) RunForDate(ctx context.Context, date time.Time) (*models.ForecastRun, error) {
	date = time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	key := date.Format(models.RunDateLayout)
	if !p.acquire(key) {
		return nil, models.ErrRunInFlight
	}
	defer p.release(key)

	if p.cfg.RunDeadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.RunDeadline)
		defer cancel()
	}

	start := p.clock.Now()
	run, err := p.generate(ctx, date)
	p.metrics.ObservePipelineDuration(time.Since(start).Seconds())

	if err == nil {
		p.metrics.RecordGenerationSuccess()
		p.publish(ctx, run)
		return run, nil
	}

	if errors.Is(err, models.ErrDuplicateRun) {
		// A run is already stored for this date; write-once means we
		// never overwrite and never fall back over it.
		return nil, err
	}

	p.l.Warn("primary generation failed, applying fallback",
		applogger.String("date", key),
		applogger.Error(err),
	)
	fb, fbErr := p.applyFallback(ctx, date, err)
	if fbErr != nil {
		return nil, fbErr
	}
	p.publish(ctx, fb)
	return fb, nil
}

func (p *Pipeline) generate(ctx context.Context, date time.Time) (*models.ForecastRun, error) {
	run := models.NewRun(date)

	run.Status = models.StatusIngesting
	obs, err := p.ingest(ctx, run.AnchorTime)
	if err != nil {
		return nil, err
	}

	run.Status = models.StatusFeaturizing
	stage := p.clock.Now()
	set := feature.NewObservationSet(obs)
	vectors, featureFailures := p.builder.BuildAll(set, p.cfg.Products, p.cfg.HorizonHours)
	p.metrics.ObserveStageDuration(domrepo.StageFeatures, time.Since(stage).Seconds())

	run.Status = models.StatusForecasting
	stage = p.clock.Now()
	results := p.engine.Generate(ctx, vectors, featureFailures)
	run.Entries = collectEntries(p.cfg.Products, results, p.l)
	p.metrics.ObserveStageDuration(domrepo.StageModel, time.Since(stage).Seconds())

	run.Status = models.StatusValidating
	run.GeneratedAt = p.clock.Now()
	stage = run.GeneratedAt
	res := p.validator.Validate(run, date)
	p.metrics.ObserveStageDuration(domrepo.StageValidation, time.Since(stage).Seconds())
	if !res.OK {
		p.metrics.RecordValidationErrors(len(res.Violations))
		run.Status = models.StatusFailed
		return nil, &models.SchemaValidationError{Violations: res.Violations}
	}

	run.Status = models.StatusStored
	stage = p.clock.Now()
	err = p.store.Put(ctx, run)
	p.metrics.ObserveStageDuration(domrepo.StageStorage, time.Since(stage).Seconds())
	if err != nil {
		run.Status = models.StatusFailed
		if !errors.Is(err, models.ErrDuplicateRun) {
			p.metrics.RecordStorageError()
		}
		return nil, err
	}

	p.l.Info("forecast run stored",
		applogger.String("date", run.DateKey()),
		applogger.Int("entries", len(run.Entries)),
	)
	return run, nil
}

// ingest fetches all sources concurrently. Source failures are not
// isolated: every unit depends on every source, so the first error
// cancels the group and fails the stage.
func (p *Pipeline) ingest(ctx context.Context, anchor time.Time) ([]models.RawObservation, error) {
	start := p.clock.Now()
	defer func() {
		p.metrics.ObserveStageDuration(domrepo.StageIngestion, time.Since(start).Seconds())
	}()

	window := domrepo.Window{
		Anchor:       anchor,
		HorizonHours: p.cfg.HorizonHours,
		HistoryHours: p.cfg.HistoryHours,
	}

	var (
		mu  sync.Mutex
		all []models.RawObservation
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, src := range p.sources {
		src := src
		g.Go(func() error {
			obs, err := src.Fetch(gctx, window)
			if err != nil {
				return err
			}
			mu.Lock()
			all = append(all, obs...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return all, nil
}

// applyFallback re-labels the most recent prior run for the failed date
// and stores it. The copy is deep; the source run stays untouched in
// storage. No prior run means a hard failure.
func (p *Pipeline) applyFallback(ctx context.Context, date time.Time, cause error) (*models.ForecastRun, error) {
	p.metrics.RecordFallbackActivated()
	key := date.UTC().Format(models.RunDateLayout)

	prior, err := p.store.LatestBefore(ctx, date)
	if err != nil {
		if errors.Is(err, models.ErrRunNotFound) {
			p.l.Error("hard failure: no prior run to fall back on",
				applogger.String("date", key),
				applogger.Error(cause),
			)
			return nil, &models.HardFailureError{Date: date, Cause: cause}
		}
		p.metrics.RecordStorageError()
		return nil, &models.HardFailureError{Date: date, Cause: fmt.Errorf("load fallback source: %w", err)}
	}

	// date is already midnight UTC, normalized by RunForDate.
	fb := prior.Clone()
	fb.RunDate = date
	fb.AnchorTime = date
	fb.GeneratedAt = p.clock.Now()
	fb.Status = models.StatusFallbackApplied
	fb.IsFallback = true

	if res := p.validator.Validate(fb, date); !res.OK {
		p.metrics.RecordValidationErrors(len(res.Violations))
		return nil, &models.HardFailureError{
			Date:  date,
			Cause: &models.SchemaValidationError{Violations: res.Violations},
		}
	}

	if err := p.store.Put(ctx, fb); err != nil {
		if !errors.Is(err, models.ErrDuplicateRun) {
			p.metrics.RecordStorageError()
		}
		return nil, &models.HardFailureError{Date: date, Cause: err}
	}

	p.metrics.RecordFallbackCount()
	p.l.Warn("fallback run stored",
		applogger.String("date", key),
		applogger.String("source_date", prior.DateKey()),
	)
	return fb, nil
}

// publish is best effort: the run is already durably stored, so a
// delivery failure is logged, not propagated.
func (p *Pipeline) publish(ctx context.Context, run *models.ForecastRun) {
	if p.publisher == nil {
		return
	}
	if err := p.publisher.PublishRun(ctx, run); err != nil {
		p.l.Warn("run publish failed",
			applogger.String("date", run.DateKey()),
			applogger.Error(err),
		)
	}
}

func (p *Pipeline) acquire(key string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, busy := p.inflight[key]; busy {
		return false
	}
	p.inflight[key] = struct{}{}
	return true
}

func (p *Pipeline) release(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.inflight, key)
}

// collectEntries flattens unit results into canonical order: products in
// their fixed order, hours ascending. Failed units are logged and left
// out; completeness is the validator's call.
func collectEntries(products []models.Product, results map[models.UnitKey]engine.UnitResult, l *applogger.Logger) []models.ProbabilisticForecast {
	order := make(map[models.Product]int, len(products))
	for i, p := range products {
		order[p] = i
	}

	entries := make([]models.ProbabilisticForecast, 0, len(results))
	for key, res := range results {
		if res.Err != nil {
			if l != nil {
				l.Warn("unit failed",
					applogger.String("unit", key.String()),
					applogger.Error(res.Err),
				)
			}
			continue
		}
		entries = append(entries, *res.Forecast)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Product != entries[j].Product {
			return order[entries[i].Product] < order[entries[j].Product]
		}
		return entries[i].Hour < entries[j].Hour
	})
	return entries
}
