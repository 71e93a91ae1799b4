package usecase

import (
	"context"
	"fmt"
	"testing"
	"time"

	"GridCast/internal/domain/models"
	domrepo "GridCast/internal/domain/repository"
	internalrepo "GridCast/internal/repository"
	pkgcache "GridCast/pkg/cache"
)

// notFoundStore wraps the sentinel the way a database-backed store does.
type notFoundStore struct {
	domrepo.RunStore
}

func (notFoundStore) GetLatest(ctx context.Context) (*models.ForecastRun, error) {
	return nil, fmt.Errorf("query latest run: %w", models.ErrRunNotFound)
}

func TestQuantileLabel(t *testing.T) {
	cases := map[float64]string{
		0.10: "p10",
		0.25: "p25",
		0.50: "p50",
		0.75: "p75",
		0.90: "p90",
		0.05: "p05",
	}
	for level, want := range cases {
		if got := QuantileLabel(level); got != want {
			t.Fatalf("QuantileLabel(%v) = %s, want %s", level, got, want)
		}
	}
}

func TestReaderLatestRendersRows(t *testing.T) {
	ctx := context.Background()
	store := internalrepo.NewMemoryRunStore()
	date := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)
	if err := store.Put(ctx, priorStoredRun(date)); err != nil {
		t.Fatalf("put: %v", err)
	}

	r := NewReader(store, nil, 0, testLogger(t))
	view, err := r.Latest(ctx, "")
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if view.RunDate != "2026-08-28" {
		t.Fatalf("run date %s", view.RunDate)
	}
	if len(view.Rows) != len(testProducts)*testHorizon {
		t.Fatalf("got %d rows", len(view.Rows))
	}

	row := view.Rows[0]
	if row.Hour != 1 || !row.Timestamp.Equal(date) {
		t.Fatalf("row 1 timestamp %v", row.Timestamp)
	}
	if row.Quantiles["p10"] != 25 || row.Quantiles["p90"] != 44 {
		t.Fatalf("row quantiles %v", row.Quantiles)
	}
	second := view.Rows[1]
	if !second.Timestamp.Equal(date.Add(time.Hour)) {
		t.Fatalf("row 2 timestamp %v", second.Timestamp)
	}
}

func TestReaderProductFilter(t *testing.T) {
	ctx := context.Background()
	store := internalrepo.NewMemoryRunStore()
	date := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)
	if err := store.Put(ctx, priorStoredRun(date)); err != nil {
		t.Fatalf("put: %v", err)
	}
	r := NewReader(store, nil, 0, testLogger(t))

	view, err := r.ByDate(ctx, date, "DALMP")
	if err != nil {
		t.Fatalf("by date: %v", err)
	}
	for _, row := range view.Rows {
		if row.Product != "DALMP" {
			t.Fatalf("filter leaked product %s", row.Product)
		}
	}

	if _, err := r.ByDate(ctx, date, "BOGUS"); err == nil {
		t.Fatalf("expected error for unknown product")
	}
}

func TestReaderStatus(t *testing.T) {
	ctx := context.Background()
	store := internalrepo.NewMemoryRunStore()
	r := NewReader(store, nil, 0, testLogger(t))

	status, err := r.Status(ctx)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.Available {
		t.Fatalf("expected unavailable on empty store")
	}

	date := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)
	run := priorStoredRun(date)
	run.IsFallback = true
	if err := store.Put(ctx, run); err != nil {
		t.Fatalf("put: %v", err)
	}

	status, err = r.Status(ctx)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !status.Available || !status.IsFallback || status.RunDate != "2026-08-28" {
		t.Fatalf("status %+v", status)
	}
}

func TestReaderCachesViews(t *testing.T) {
	ctx := context.Background()
	store := internalrepo.NewMemoryRunStore()
	date := time.Date(2026, 8, 27, 0, 0, 0, 0, time.UTC)
	if err := store.Put(ctx, priorStoredRun(date)); err != nil {
		t.Fatalf("put: %v", err)
	}

	cache := pkgcache.NewMemoryCache()
	r := NewReader(store, cache, time.Minute, testLogger(t))

	first, err := r.Latest(ctx, "")
	if err != nil {
		t.Fatalf("latest: %v", err)
	}

	// a newer run appears, but the cached view is served until TTL
	if err := store.Put(ctx, priorStoredRun(date.AddDate(0, 0, 1))); err != nil {
		t.Fatalf("put: %v", err)
	}
	again, err := r.Latest(ctx, "")
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if again.RunDate != first.RunDate {
		t.Fatalf("expected cached view, got %s", again.RunDate)
	}
}

func TestReaderStatusWithWrappedNotFound(t *testing.T) {
	store := notFoundStore{RunStore: internalrepo.NewMemoryRunStore()}
	r := NewReader(store, nil, 0, testLogger(t))

	status, err := r.Status(context.Background())
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.Available {
		t.Fatalf("expected unavailable, got %+v", status)
	}
}
