package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"GridCast/internal/domain/models"
)

func storedRun(date time.Time) *models.ForecastRun {
	run := models.NewRun(date)
	run.GeneratedAt = date.Add(6 * time.Hour)
	run.Status = models.StatusStored
	run.Entries = []models.ProbabilisticForecast{
		{
			Product: models.ProductDALMP,
			Hour:    1,
			Point:   31.5,
			Quantiles: []models.QuantileValue{
				{Level: 0.10, Value: 22},
				{Level: 0.90, Value: 48},
			},
			ModelVersion: "v1",
		},
	}
	return run
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryRunStore()
	date := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)

	if err := store.Put(ctx, storedRun(date)); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, err := store.Get(ctx, date)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.DateKey() != "2026-08-28" {
		t.Fatalf("date key = %s", got.DateKey())
	}
	if len(got.Entries) != 1 || got.Entries[0].Point != 31.5 {
		t.Fatalf("entries lost in round trip: %+v", got.Entries)
	}
}

func TestMemoryStoreWriteOnce(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryRunStore()
	date := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)

	if err := store.Put(ctx, storedRun(date)); err != nil {
		t.Fatalf("put: %v", err)
	}
	second := storedRun(date)
	second.Entries[0].Point = 99
	if err := store.Put(ctx, second); !errors.Is(err, models.ErrDuplicateRun) {
		t.Fatalf("expected ErrDuplicateRun, got %v", err)
	}

	got, _ := store.Get(ctx, date)
	if got.Entries[0].Point != 31.5 {
		t.Fatalf("stored run was overwritten")
	}
}

func TestMemoryStoreGetMissing(t *testing.T) {
	store := NewMemoryRunStore()
	if _, err := store.Get(context.Background(), time.Now()); !errors.Is(err, models.ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound, got %v", err)
	}
	if _, err := store.GetLatest(context.Background()); !errors.Is(err, models.ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound, got %v", err)
	}
}

func TestMemoryStoreLatestAndBefore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryRunStore()
	d1 := time.Date(2026, 8, 26, 0, 0, 0, 0, time.UTC)
	d2 := time.Date(2026, 8, 27, 0, 0, 0, 0, time.UTC)
	d3 := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)
	for _, d := range []time.Time{d1, d3, d2} {
		if err := store.Put(ctx, storedRun(d)); err != nil {
			t.Fatalf("put %s: %v", d, err)
		}
	}

	latest, err := store.GetLatest(ctx)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if latest.DateKey() != "2026-08-28" {
		t.Fatalf("latest = %s", latest.DateKey())
	}

	prior, err := store.LatestBefore(ctx, d3)
	if err != nil {
		t.Fatalf("latest before: %v", err)
	}
	if prior.DateKey() != "2026-08-27" {
		t.Fatalf("latest before = %s", prior.DateKey())
	}

	if _, err := store.LatestBefore(ctx, d1); !errors.Is(err, models.ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound, got %v", err)
	}
}

func TestMemoryStoreListRunsNewestFirst(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryRunStore()
	for day := 20; day <= 25; day++ {
		run := storedRun(time.Date(2026, 8, day, 0, 0, 0, 0, time.UTC))
		if day%2 == 0 {
			run.IsFallback = true
			run.Status = models.StatusFallbackApplied
		}
		if err := store.Put(ctx, run); err != nil {
			t.Fatalf("put: %v", err)
		}
	}

	metas, err := store.ListRuns(ctx, 3)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(metas) != 3 {
		t.Fatalf("got %d metas, want 3", len(metas))
	}
	if metas[0].RunDate.Day() != 25 || metas[2].RunDate.Day() != 23 {
		t.Fatalf("unexpected order: %v", metas)
	}
	if !metas[1].IsFallback {
		t.Fatalf("expected fallback flag on day 24")
	}
}

func TestMemoryStoreClonesOnGet(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryRunStore()
	date := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)
	if err := store.Put(ctx, storedRun(date)); err != nil {
		t.Fatalf("put: %v", err)
	}

	first, _ := store.Get(ctx, date)
	first.Entries[0].Point = -1
	first.Entries[0].Quantiles[0].Value = -1

	second, _ := store.Get(ctx, date)
	if second.Entries[0].Point != 31.5 || second.Entries[0].Quantiles[0].Value != 22 {
		t.Fatalf("stored run mutated through returned pointer")
	}
}
