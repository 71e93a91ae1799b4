package model

import (
	"errors"
	"math"
	"testing"

	"GridCast/internal/domain/models"
)

var testLevels = []float64{0.10, 0.25, 0.50, 0.75, 0.90}

func descFor(p models.Product, hour int) models.ModelDescriptor {
	return models.ModelDescriptor{
		Product:       p,
		Hour:          hour,
		Version:       "v1",
		Intercept:     10,
		Coefficients:  map[string]float64{"load_mw": 0.001, "price_lag_1d": 0.5},
		ResidualSigma: 4,
	}
}

func TestInferLinearPoint(t *testing.T) {
	reg, err := NewRegistry([]models.ModelDescriptor{descFor(models.ProductDALMP, 1)})
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	m, err := reg.Get(models.UnitKey{Product: models.ProductDALMP, Hour: 1})
	if err != nil {
		t.Fatalf("get: %v", err)
	}

	fv := models.FeatureVector{"load_mw": 40000, "price_lag_1d": 30}
	fc, err := m.Infer(fv, testLevels)
	if err != nil {
		t.Fatalf("infer: %v", err)
	}
	want := 10 + 0.001*40000 + 0.5*30
	if math.Abs(fc.Point-want) > 1e-9 {
		t.Fatalf("point = %v, want %v", fc.Point, want)
	}
	if len(fc.Quantiles) != len(testLevels) {
		t.Fatalf("got %d quantiles, want %d", len(fc.Quantiles), len(testLevels))
	}
	if !fc.MonotoneQuantiles() {
		t.Fatalf("quantiles not monotone: %v", fc.Quantiles)
	}
	// symmetric spread: median equals the point estimate
	if math.Abs(fc.Quantiles[2].Value-fc.Point) > 1e-9 {
		t.Fatalf("median %v != point %v", fc.Quantiles[2].Value, fc.Point)
	}
}

func TestInferMissingFeature(t *testing.T) {
	reg, _ := NewRegistry([]models.ModelDescriptor{descFor(models.ProductDALMP, 1)})
	m, _ := reg.Get(models.UnitKey{Product: models.ProductDALMP, Hour: 1})

	_, err := m.Infer(models.FeatureVector{"load_mw": 40000}, testLevels)
	var execErr *models.ModelExecutionError
	if !errors.As(err, &execErr) {
		t.Fatalf("expected ModelExecutionError, got %v", err)
	}
}

func TestInferDeterministic(t *testing.T) {
	desc := descFor(models.ProductRTLMP, 3)
	desc.Coefficients = map[string]float64{
		"load_mw": 0.0013, "gen_mw": -0.0007, "net_load_mw": 0.002,
		"price_lag_1d": 0.41, "price_lag_7d": 0.17, "hour_of_day": 0.05,
	}
	reg, _ := NewRegistry([]models.ModelDescriptor{desc})
	m, _ := reg.Get(models.UnitKey{Product: models.ProductRTLMP, Hour: 3})

	fv := models.FeatureVector{
		"load_mw": 41233.7, "gen_mw": 39877.1, "net_load_mw": 1356.6,
		"price_lag_1d": 27.35, "price_lag_7d": 31.02, "hour_of_day": 2,
	}
	first, err := m.Infer(fv, testLevels)
	if err != nil {
		t.Fatalf("infer: %v", err)
	}
	for i := 0; i < 50; i++ {
		again, err := m.Infer(fv, testLevels)
		if err != nil {
			t.Fatalf("infer: %v", err)
		}
		if again.Point != first.Point {
			t.Fatalf("point differs between identical runs: %v vs %v", again.Point, first.Point)
		}
		for j := range first.Quantiles {
			if again.Quantiles[j].Value != first.Quantiles[j].Value {
				t.Fatalf("quantile %d differs", j)
			}
		}
	}
}

func TestTwoPieceSpreadSkew(t *testing.T) {
	qs := TwoPieceSpread{SigmaDown: 2, SigmaUp: 8}.Quantiles(50, testLevels)
	for i := 1; i < len(qs); i++ {
		if qs[i].Value < qs[i-1].Value {
			t.Fatalf("not monotone: %v", qs)
		}
	}
	if qs[2].Value != 50 {
		t.Fatalf("median = %v, want 50", qs[2].Value)
	}
	up := qs[4].Value - 50
	down := 50 - qs[0].Value
	if up <= down {
		t.Fatalf("expected upside spread wider than downside: up=%v down=%v", up, down)
	}
}

func TestStrategyForRejectsBadSigma(t *testing.T) {
	desc := descFor(models.ProductDALMP, 1)
	desc.ResidualSigma = 0
	if _, err := NewRegistry([]models.ModelDescriptor{desc}); err == nil {
		t.Fatalf("expected error for zero sigma")
	}

	desc = descFor(models.ProductDALMP, 1)
	desc.Distribution = DistTwoPiece
	if _, err := NewRegistry([]models.ModelDescriptor{desc}); err == nil {
		t.Fatalf("expected error for missing two_piece sigmas")
	}
}

func TestRegistryGetUnknownUnit(t *testing.T) {
	reg, _ := NewRegistry([]models.ModelDescriptor{descFor(models.ProductDALMP, 1)})
	_, err := reg.Get(models.UnitKey{Product: models.ProductRRS, Hour: 7})
	var nf *models.ModelNotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected ModelNotFoundError, got %v", err)
	}
}
