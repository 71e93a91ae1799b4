package feature

import (
	"GridCast/internal/domain/models"
	"GridCast/internal/source"
)

// Feature names produced by the builder. Model coefficients reference
// these names, so they are part of the model-file contract.
const (
	FeatLoadMW     = "load_mw"
	FeatGenMW      = "gen_mw"
	FeatNetLoadMW  = "net_load_mw"
	FeatPriceLag1D = "price_lag_1d"
	FeatPriceLag7D = "price_lag_7d"
	FeatHourOfDay  = "hour_of_day"
)

type obsKey struct {
	source  string
	product models.Product
	hour    int
}

// ObservationSet indexes one run's raw observations for O(1) lookup
// during feature construction.
type ObservationSet struct {
	byKey map[obsKey]float64
}

// NewObservationSet indexes the given observations. Later duplicates win;
// providers occasionally resend corrected rows at the tail of a payload.
func NewObservationSet(obs []models.RawObservation) *ObservationSet {
	set := &ObservationSet{byKey: make(map[obsKey]float64, len(obs))}
	for _, o := range obs {
		set.byKey[obsKey{source: o.Source, product: o.Product, hour: o.Hour}] = o.Value
	}
	return set
}

func (s *ObservationSet) lookup(src string, product models.Product, hour int) (float64, bool) {
	v, ok := s.byKey[obsKey{source: src, product: product, hour: hour}]
	return v, ok
}

// Builder constructs one feature vector per (product, hour) unit.
// It is a pure function of the observation set: same inputs, same output.
type Builder struct{}

func NewBuilder() *Builder { return &Builder{} }

// priceLag maps a target slot to the trailing-history lag (in hours
// before the anchor) of the same hour-of-day, offset whole days back.
// Slot 1 is the first hour after the anchor, so hour-of-day = (hour-1)%24
// and the d-day-old reading sits 24d-(hour-1)%24 hours before the anchor.
func priceLag(hour, days int) int {
	return 24*days - (hour-1)%24
}

// Build derives the feature vector for one unit. Missing required inputs
// fail only this unit with FeatureConstructionError.
func (b *Builder) Build(set *ObservationSet, product models.Product, hour int) (models.FeatureVector, error) {
	var missing []string

	load, ok := set.lookup(source.NameLoadForecast, "", hour)
	if !ok {
		missing = append(missing, FeatLoadMW)
	}
	gen, ok := set.lookup(source.NameGenerationForecast, "", hour)
	if !ok {
		missing = append(missing, FeatGenMW)
	}
	lag1d, ok := set.lookup(source.NameHistoricalPrices, product, priceLag(hour, 1))
	if !ok {
		missing = append(missing, FeatPriceLag1D)
	}
	lag7d, ok := set.lookup(source.NameHistoricalPrices, product, priceLag(hour, 7))
	if !ok {
		missing = append(missing, FeatPriceLag7D)
	}

	if len(missing) > 0 {
		return nil, &models.FeatureConstructionError{
			Unit:    models.UnitKey{Product: product, Hour: hour},
			Missing: missing,
		}
	}

	return models.FeatureVector{
		FeatLoadMW:     load,
		FeatGenMW:      gen,
		FeatNetLoadMW:  load - gen,
		FeatPriceLag1D: lag1d,
		FeatPriceLag7D: lag7d,
		FeatHourOfDay:  float64((hour - 1) % 24),
	}, nil
}

// BuildAll builds feature vectors for the whole (product, hour) grid,
// collecting per-unit failures instead of aborting the batch.
func (b *Builder) BuildAll(set *ObservationSet, products []models.Product, horizon int) (map[models.UnitKey]models.FeatureVector, map[models.UnitKey]error) {
	vectors := make(map[models.UnitKey]models.FeatureVector, len(products)*horizon)
	failures := make(map[models.UnitKey]error)

	for _, p := range products {
		for h := 1; h <= horizon; h++ {
			key := models.UnitKey{Product: p, Hour: h}
			fv, err := b.Build(set, p, h)
			if err != nil {
				failures[key] = err
				continue
			}
			vectors[key] = fv
		}
	}
	return vectors, failures
}
