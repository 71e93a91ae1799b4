package model

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"

	"GridCast/internal/domain/models"
)

// Model is one fitted linear model plus its compiled quantile strategy.
// Read-only during a run.
type Model struct {
	desc  models.ModelDescriptor
	strat QuantileStrategy
}

// Descriptor returns the underlying fitted parameters.
func (m *Model) Descriptor() models.ModelDescriptor { return m.desc }

// Infer runs linear inference over the feature vector and derives the
// quantile set at the requested levels.
// point = intercept + sum(coef_i * feature_i).
func (m *Model) Infer(fv models.FeatureVector, levels []float64) (models.ProbabilisticForecast, error) {
	key := models.UnitKey{Product: m.desc.Product, Hour: m.desc.Hour}

	// Sum in sorted feature order: map iteration order would make the
	// floating-point total differ between identical runs.
	names := make([]string, 0, len(m.desc.Coefficients))
	for name := range m.desc.Coefficients {
		names = append(names, name)
	}
	sort.Strings(names)

	point := m.desc.Intercept
	for _, name := range names {
		v, ok := fv[name]
		if !ok {
			return models.ProbabilisticForecast{}, &models.ModelExecutionError{
				Unit:   key,
				Reason: fmt.Sprintf("feature %q absent from vector", name),
			}
		}
		point += m.desc.Coefficients[name] * v
	}

	if math.IsNaN(point) || math.IsInf(point, 0) {
		return models.ProbabilisticForecast{}, &models.ModelExecutionError{
			Unit:   key,
			Reason: "non-finite point estimate",
		}
	}

	return models.ProbabilisticForecast{
		Product:      m.desc.Product,
		Hour:         m.desc.Hour,
		Point:        point,
		Quantiles:    m.strat.Quantiles(point, levels),
		ModelVersion: m.desc.Version,
	}, nil
}

// Registry holds one model per (product, hour) pair in a fixed lookup
// table built at load time. Lookups are O(1) and never mutate state.
type Registry struct {
	byKey map[models.UnitKey]*Model
}

type modelFile struct {
	Models []models.ModelDescriptor `json:"models"`
}

// LoadRegistry reads the model file and verifies that every pair of the
// requested grid has a descriptor. A missing pair is a configuration
// error and must abort startup, not an individual run.
func LoadRegistry(path string, products []models.Product, horizon int) (*Registry, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model file: %w", err)
	}

	var file modelFile
	if err := json.Unmarshal(b, &file); err != nil {
		return nil, fmt.Errorf("parse model file: %w", err)
	}

	r := &Registry{byKey: make(map[models.UnitKey]*Model, len(file.Models))}
	for _, desc := range file.Models {
		key := models.UnitKey{Product: desc.Product, Hour: desc.Hour}
		if _, dup := r.byKey[key]; dup {
			return nil, fmt.Errorf("duplicate model for %s", key)
		}
		strat, err := strategyFor(desc)
		if err != nil {
			return nil, fmt.Errorf("model %s: %w", key, err)
		}
		r.byKey[key] = &Model{desc: desc, strat: strat}
	}

	for _, p := range products {
		for h := 1; h <= horizon; h++ {
			key := models.UnitKey{Product: p, Hour: h}
			if _, ok := r.byKey[key]; !ok {
				return nil, &models.ModelNotFoundError{Unit: key}
			}
		}
	}

	return r, nil
}

// NewRegistry builds a registry from in-memory descriptors. Used by tests
// and tooling; the service path goes through LoadRegistry.
func NewRegistry(descs []models.ModelDescriptor) (*Registry, error) {
	r := &Registry{byKey: make(map[models.UnitKey]*Model, len(descs))}
	for _, desc := range descs {
		strat, err := strategyFor(desc)
		if err != nil {
			return nil, err
		}
		key := models.UnitKey{Product: desc.Product, Hour: desc.Hour}
		r.byKey[key] = &Model{desc: desc, strat: strat}
	}
	return r, nil
}

// Get returns the model for a unit.
func (r *Registry) Get(key models.UnitKey) (*Model, error) {
	m, ok := r.byKey[key]
	if !ok {
		return nil, &models.ModelNotFoundError{Unit: key}
	}
	return m, nil
}

// Size returns the number of registered models.
func (r *Registry) Size() int { return len(r.byKey) }
