package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"GridCast/internal/domain/models"
	domrepo "GridCast/internal/domain/repository"
	pkgcache "GridCast/pkg/cache"
	applogger "GridCast/pkg/logger"
)

// ForecastRow is one read-API row. Timestamp is the start of the
// delivery hour: anchor plus (hour-1) hours.
type ForecastRow struct {
	Timestamp           time.Time          `json:"timestamp"`
	Product             string             `json:"product"`
	Hour                int                `json:"hour"`
	PointForecast       float64            `json:"point_forecast"`
	Quantiles           map[string]float64 `json:"quantiles"`
	GenerationTimestamp time.Time          `json:"generation_timestamp"`
	IsFallback          bool               `json:"is_fallback"`
}

// RunView is a full run rendered for the read API.
type RunView struct {
	RunDate             string        `json:"run_date"`
	GenerationTimestamp time.Time     `json:"generation_timestamp"`
	IsFallback          bool          `json:"is_fallback"`
	Rows                []ForecastRow `json:"rows"`
}

// StatusView answers "is there a forecast to serve right now".
type StatusView struct {
	Available           bool      `json:"available"`
	RunDate             string    `json:"run_date,omitempty"`
	GenerationTimestamp time.Time `json:"generation_timestamp,omitempty"`
	IsFallback          bool      `json:"is_fallback"`
}

// Reader serves stored runs to the API, with an optional TTL cache in
// front of the store. Stored runs are immutable, so a cached view can
// only ever be stale by missing a newer run, never wrong.
type Reader struct {
	store domrepo.RunStore
	cache pkgcache.Service
	ttl   time.Duration
	l     *applogger.Logger
}

func NewReader(store domrepo.RunStore, cache pkgcache.Service, ttl time.Duration, l *applogger.Logger) *Reader {
	return &Reader{store: store, cache: cache, ttl: ttl, l: l}
}

// Latest returns the newest stored run, optionally filtered to one
// product.
func (r *Reader) Latest(ctx context.Context, product string) (*RunView, error) {
	key := "latest:" + product
	if view, ok := r.cached(ctx, key); ok {
		return view, nil
	}

	run, err := r.store.GetLatest(ctx)
	if err != nil {
		return nil, err
	}
	view, err := renderRun(run, product)
	if err != nil {
		return nil, err
	}
	r.remember(ctx, key, view)
	return view, nil
}

// ByDate returns the run stored for one generation date.
func (r *Reader) ByDate(ctx context.Context, date time.Time, product string) (*RunView, error) {
	key := "date:" + date.UTC().Format(models.RunDateLayout) + ":" + product
	if view, ok := r.cached(ctx, key); ok {
		return view, nil
	}

	run, err := r.store.Get(ctx, date)
	if err != nil {
		return nil, err
	}
	view, err := renderRun(run, product)
	if err != nil {
		return nil, err
	}
	r.remember(ctx, key, view)
	return view, nil
}

// Status reports availability of the latest run. A missing run is a
// valid answer, not an error.
func (r *Reader) Status(ctx context.Context) (*StatusView, error) {
	run, err := r.store.GetLatest(ctx)
	if errors.Is(err, models.ErrRunNotFound) {
		return &StatusView{Available: false}, nil
	}
	if err != nil {
		return nil, err
	}
	return &StatusView{
		Available:           true,
		RunDate:             run.DateKey(),
		GenerationTimestamp: run.GeneratedAt,
		IsFallback:          run.IsFallback,
	}, nil
}

// Runs lists stored run metadata, newest first.
func (r *Reader) Runs(ctx context.Context, limit int) ([]models.RunMeta, error) {
	return r.store.ListRuns(ctx, limit)
}

// Health reports storage reachability.
func (r *Reader) Health(ctx context.Context) error {
	return r.store.Health(ctx)
}

func (r *Reader) cached(ctx context.Context, key string) (*RunView, bool) {
	if r.cache == nil {
		return nil, false
	}
	var view RunView
	if err := r.cache.Get(ctx, key, &view); err != nil {
		return nil, false
	}
	return &view, true
}

func (r *Reader) remember(ctx context.Context, key string, view *RunView) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Set(ctx, key, view, r.ttl); err != nil && r.l != nil {
		r.l.Warn("response cache set failed",
			applogger.String("key", key),
			applogger.Error(err),
		)
	}
}

func renderRun(run *models.ForecastRun, product string) (*RunView, error) {
	var filter models.Product
	if product != "" {
		p, ok := models.ParseProduct(product)
		if !ok {
			return nil, fmt.Errorf("unknown product %q", product)
		}
		filter = p
	}

	rows := make([]ForecastRow, 0, len(run.Entries))
	for _, e := range run.Entries {
		if filter != "" && e.Product != filter {
			continue
		}
		qs := make(map[string]float64, len(e.Quantiles))
		for _, q := range e.Quantiles {
			qs[QuantileLabel(q.Level)] = q.Value
		}
		rows = append(rows, ForecastRow{
			Timestamp:           run.AnchorTime.Add(time.Duration(e.Hour-1) * time.Hour),
			Product:             string(e.Product),
			Hour:                e.Hour,
			PointForecast:       e.Point,
			Quantiles:           qs,
			GenerationTimestamp: run.GeneratedAt,
			IsFallback:          run.IsFallback,
		})
	}

	return &RunView{
		RunDate:             run.DateKey(),
		GenerationTimestamp: run.GeneratedAt,
		IsFallback:          run.IsFallback,
		Rows:                rows,
	}, nil
}

// QuantileLabel renders a probability level as a row key, 0.10 -> "p10".
func QuantileLabel(level float64) string {
	return fmt.Sprintf("p%02d", int(math.Round(level*100)))
}
