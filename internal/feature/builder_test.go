package feature

import (
	"errors"
	"testing"

	"GridCast/internal/domain/models"
	"GridCast/internal/source"
)

func obsFor(products []models.Product, horizon int) []models.RawObservation {
	var out []models.RawObservation
	for h := 1; h <= horizon; h++ {
		out = append(out,
			models.RawObservation{Source: source.NameLoadForecast, Hour: h, Value: 40000 + float64(h)},
			models.RawObservation{Source: source.NameGenerationForecast, Hour: h, Value: 38000 + float64(h)},
		)
	}
	// trailing price history deep enough for 7-day lags over the horizon
	for _, p := range products {
		for lag := 1; lag <= 24*7; lag++ {
			out = append(out, models.RawObservation{
				Source:  source.NameHistoricalPrices,
				Product: p,
				Hour:    lag,
				Value:   25 + float64(lag%24),
			})
		}
	}
	return out
}

func TestPriceLag(t *testing.T) {
	cases := []struct {
		hour, days, want int
	}{
		{1, 1, 24},
		{2, 1, 23},
		{24, 1, 1},
		{25, 1, 24},
		{1, 7, 168},
		{48, 7, 145},
	}
	for _, c := range cases {
		if got := priceLag(c.hour, c.days); got != c.want {
			t.Fatalf("priceLag(%d, %d) = %d, want %d", c.hour, c.days, got, c.want)
		}
	}
}

func TestBuildProducesAllFeatures(t *testing.T) {
	products := []models.Product{models.ProductDALMP}
	set := NewObservationSet(obsFor(products, 72))

	fv, err := NewBuilder().Build(set, models.ProductDALMP, 5)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	for _, name := range []string{FeatLoadMW, FeatGenMW, FeatNetLoadMW, FeatPriceLag1D, FeatPriceLag7D, FeatHourOfDay} {
		if _, ok := fv[name]; !ok {
			t.Fatalf("missing feature %s", name)
		}
	}
	if fv[FeatNetLoadMW] != fv[FeatLoadMW]-fv[FeatGenMW] {
		t.Fatalf("net load mismatch")
	}
	if fv[FeatHourOfDay] != 4 {
		t.Fatalf("hour_of_day = %v, want 4", fv[FeatHourOfDay])
	}
}

func TestBuildDeterministic(t *testing.T) {
	products := []models.Product{models.ProductDALMP}
	obs := obsFor(products, 72)
	b := NewBuilder()

	first, err := b.Build(NewObservationSet(obs), models.ProductDALMP, 17)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	second, err := b.Build(NewObservationSet(obs), models.ProductDALMP, 17)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(first) != len(second) {
		t.Fatalf("vector sizes differ")
	}
	for name, v := range first {
		if second[name] != v {
			t.Fatalf("feature %s differs: %v vs %v", name, v, second[name])
		}
	}
}

func TestBuildMissingInputFailsOnlyThatUnit(t *testing.T) {
	products := []models.Product{models.ProductDALMP}
	obs := obsFor(products, 72)
	// drop the load forecast for slot 10 only
	filtered := obs[:0:0]
	for _, o := range obs {
		if o.Source == source.NameLoadForecast && o.Hour == 10 {
			continue
		}
		filtered = append(filtered, o)
	}
	set := NewObservationSet(filtered)

	vectors, failures := NewBuilder().BuildAll(set, products, 72)
	if len(vectors) != 71 {
		t.Fatalf("got %d vectors, want 71", len(vectors))
	}
	if len(failures) != 1 {
		t.Fatalf("got %d failures, want 1", len(failures))
	}

	err, ok := failures[models.UnitKey{Product: models.ProductDALMP, Hour: 10}]
	if !ok {
		t.Fatalf("expected failure for hour 10")
	}
	var fcErr *models.FeatureConstructionError
	if !errors.As(err, &fcErr) {
		t.Fatalf("expected FeatureConstructionError, got %T", err)
	}
	if len(fcErr.Missing) != 1 || fcErr.Missing[0] != FeatLoadMW {
		t.Fatalf("unexpected missing list %v", fcErr.Missing)
	}
}

func TestDuplicateObservationLastWins(t *testing.T) {
	set := NewObservationSet([]models.RawObservation{
		{Source: source.NameLoadForecast, Hour: 1, Value: 100},
		{Source: source.NameLoadForecast, Hour: 1, Value: 200},
	})
	v, ok := set.lookup(source.NameLoadForecast, "", 1)
	if !ok || v != 200 {
		t.Fatalf("got %v, want 200", v)
	}
}
