package engine

import (
	"context"
	"sync"

	"GridCast/internal/domain/models"
	domrepo "GridCast/internal/domain/repository"
	"GridCast/internal/model"
	applogger "GridCast/pkg/logger"
)

// UnitResult is the outcome of one (product, hour) unit: exactly one of
// Forecast or Err is set.
type UnitResult struct {
	Forecast *models.ProbabilisticForecast
	Err      error
}

// Engine drives the model registry over the whole unit grid. Units are
// independent; one bad hour must not take down its siblings, so failures
// are collected per unit and the full result map is always returned.
type Engine struct {
	registry *model.Registry
	levels   []float64
	workers  int
	metrics  domrepo.Metrics
	l        *applogger.Logger
}

// New creates a forecasting engine. workers bounds parallel inference.
func New(registry *model.Registry, levels []float64, workers int, metrics domrepo.Metrics, l *applogger.Logger) *Engine {
	if workers < 1 {
		workers = 1
	}
	return &Engine{
		registry: registry,
		levels:   levels,
		workers:  workers,
		metrics:  metrics,
		l:        l,
	}
}

// Generate runs inference for every unit with a feature vector, plus
// records the feature-stage failures so the caller sees one result per
// unit of the grid. Inference runs on a bounded worker pool; the shared
// result map is append-only under its mutex.
func (e *Engine) Generate(ctx context.Context, vectors map[models.UnitKey]models.FeatureVector, featureFailures map[models.UnitKey]error) map[models.UnitKey]UnitResult {
	results := make(map[models.UnitKey]UnitResult, len(vectors)+len(featureFailures))
	for key, err := range featureFailures {
		results[key] = UnitResult{Err: err}
	}

	var (
		mu   sync.Mutex
		wg   sync.WaitGroup
		jobs = make(chan models.UnitKey)
	)

	for i := 0; i < e.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for key := range jobs {
				res := e.inferUnit(key, vectors[key])
				mu.Lock()
				results[key] = res
				mu.Unlock()
			}
		}()
	}

	for key := range vectors {
		select {
		case <-ctx.Done():
			// Abandon unsubmitted units; the run is already past its
			// deadline and will be failed wholesale by the caller.
			close(jobs)
			wg.Wait()
			e.markCancelled(ctx, vectors, results)
			return results
		case jobs <- key:
		}
	}
	close(jobs)
	wg.Wait()

	return results
}

func (e *Engine) inferUnit(key models.UnitKey, fv models.FeatureVector) UnitResult {
	m, err := e.registry.Get(key)
	if err != nil {
		// Registry completeness is verified at startup; hitting this
		// mid-run still fails only the unit.
		e.metrics.RecordModelError()
		return UnitResult{Err: err}
	}

	fc, err := m.Infer(fv, e.levels)
	if err != nil {
		e.metrics.RecordModelError()
		if e.l != nil {
			e.l.Warn("unit inference failed",
				applogger.String("unit", key.String()),
				applogger.Error(err),
			)
		}
		return UnitResult{Err: err}
	}

	if !fc.MonotoneQuantiles() {
		e.metrics.RecordModelError()
		return UnitResult{Err: &models.ModelExecutionError{
			Unit:   key,
			Reason: "non-monotonic quantiles",
		}}
	}

	return UnitResult{Forecast: &fc}
}

func (e *Engine) markCancelled(ctx context.Context, vectors map[models.UnitKey]models.FeatureVector, results map[models.UnitKey]UnitResult) {
	for key := range vectors {
		if _, done := results[key]; !done {
			results[key] = UnitResult{Err: ctx.Err()}
		}
	}
}
