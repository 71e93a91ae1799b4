package models

import (
	"fmt"
	"time"
)

// Product is a market product the system forecasts. The set is fixed at
// process start; DALMP/RTLMP are energy prices, the rest are
// ancillary-service products.
type Product string

const (
	ProductDALMP   Product = "DALMP"
	ProductRTLMP   Product = "RTLMP"
	ProductRegUp   Product = "RegUp"
	ProductRegDown Product = "RegDown"
	ProductRRS     Product = "RRS"
	ProductNSRS    Product = "NSRS"
)

// DefaultHorizonHours is the number of hourly slots a run covers.
const DefaultHorizonHours = 72

// RunDateLayout is the canonical layout of a generation-date key.
const RunDateLayout = "2006-01-02"

// AllProducts returns the fixed product set in canonical order.
func AllProducts() []Product {
	return []Product{
		ProductDALMP,
		ProductRTLMP,
		ProductRegUp,
		ProductRegDown,
		ProductRRS,
		ProductNSRS,
	}
}

// ParseProduct maps a string onto a known product.
func ParseProduct(s string) (Product, bool) {
	for _, p := range AllProducts() {
		if string(p) == s {
			return p, true
		}
	}
	return "", false
}

// AllowsNegative reports whether forecast values for the product may be
// negative. LMPs can clear negative; ancillary capacity prices cannot.
func (p Product) AllowsNegative() bool {
	return p == ProductDALMP || p == ProductRTLMP
}

// UnitKey identifies one independently forecast (product, hour) unit.
// Hour is a 1-based slot offset from the run's anchor time.
type UnitKey struct {
	Product Product
	Hour    int
}

func (k UnitKey) String() string {
	return fmt.Sprintf("%s/h%02d", k.Product, k.Hour)
}

// RawObservation is one timestamped reading from an external source.
// Product is empty for system-wide signals (load, generation).
// For trailing price history, Hour is the lag in hours before the anchor;
// for forward signals it is the target hour slot.
type RawObservation struct {
	Source    string
	Product   Product
	Hour      int
	Timestamp time.Time
	Value     float64
}

// FeatureVector maps feature names to values for a single unit.
type FeatureVector map[string]float64

// ModelDescriptor holds the fitted parameters for one (product, hour) pair.
// Read-only during a run; reloaded only at startup.
type ModelDescriptor struct {
	Product       Product            `json:"product"`
	Hour          int                `json:"hour"`
	Version       string             `json:"version"`
	Intercept     float64            `json:"intercept"`
	Coefficients  map[string]float64 `json:"coefficients"`
	ResidualSigma float64            `json:"residual_sigma"`
	// Distribution selects the quantile spread strategy: "gaussian"
	// (symmetric, ResidualSigma) or "two_piece" (SigmaDown below the
	// point estimate, SigmaUp above).
	Distribution string  `json:"distribution"`
	SigmaDown    float64 `json:"sigma_down,omitempty"`
	SigmaUp      float64 `json:"sigma_up,omitempty"`
}

// QuantileValue pairs a probability level with its forecast value.
type QuantileValue struct {
	Level float64 `json:"level"`
	Value float64 `json:"value"`
}

// ProbabilisticForecast is the output of one unit: a point estimate and
// quantile values ordered by ascending probability level.
// Invariant: values are non-decreasing in level order.
type ProbabilisticForecast struct {
	Product      Product         `json:"product"`
	Hour         int             `json:"hour"`
	Point        float64         `json:"point"`
	Quantiles    []QuantileValue `json:"quantiles"`
	ModelVersion string          `json:"model_version,omitempty"`
}

// Key returns the unit key for the forecast.
func (f ProbabilisticForecast) Key() UnitKey {
	return UnitKey{Product: f.Product, Hour: f.Hour}
}

// MonotoneQuantiles reports whether quantile values are non-decreasing.
func (f ProbabilisticForecast) MonotoneQuantiles() bool {
	for i := 1; i < len(f.Quantiles); i++ {
		if f.Quantiles[i].Value < f.Quantiles[i-1].Value {
			return false
		}
	}
	return true
}

// RunStatus is the lifecycle state of a forecast run.
type RunStatus string

const (
	StatusPending         RunStatus = "PENDING"
	StatusIngesting       RunStatus = "INGESTING"
	StatusFeaturizing     RunStatus = "FEATURIZING"
	StatusForecasting     RunStatus = "FORECASTING"
	StatusValidating      RunStatus = "VALIDATING"
	StatusStored          RunStatus = "STORED"
	StatusFailed          RunStatus = "FAILED"
	StatusFallbackApplied RunStatus = "FALLBACK_APPLIED"
	StatusHardFailure     RunStatus = "HARD_FAILURE"
)

// ForecastRun is the unit of work for one generation date. Once stored it
// is immutable; fallback runs are deep copies, never aliases of the source.
type ForecastRun struct {
	RunDate     time.Time               `json:"run_date"`
	AnchorTime  time.Time               `json:"anchor_time"`
	GeneratedAt time.Time               `json:"generated_at"`
	Status      RunStatus               `json:"status"`
	IsFallback  bool                    `json:"is_fallback"`
	Entries     []ProbabilisticForecast `json:"entries"`
}

// NewRun creates a pending run anchored at midnight UTC of the given date.
func NewRun(date time.Time) *ForecastRun {
	anchor := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	return &ForecastRun{
		RunDate:    anchor,
		AnchorTime: anchor,
		Status:     StatusPending,
	}
}

// DateKey returns the storage key derived from the generation date.
func (r *ForecastRun) DateKey() string {
	return r.RunDate.UTC().Format(RunDateLayout)
}

// Entry returns the forecast for a unit, if present.
func (r *ForecastRun) Entry(key UnitKey) (ProbabilisticForecast, bool) {
	for _, e := range r.Entries {
		if e.Product == key.Product && e.Hour == key.Hour {
			return e, true
		}
	}
	return ProbabilisticForecast{}, false
}

// Complete reports whether the run holds exactly one entry per
// (product, hour) pair of the given grid.
func (r *ForecastRun) Complete(products []Product, horizon int) bool {
	if len(r.Entries) != len(products)*horizon {
		return false
	}
	seen := make(map[UnitKey]struct{}, len(r.Entries))
	for _, e := range r.Entries {
		seen[e.Key()] = struct{}{}
	}
	for _, p := range products {
		for h := 1; h <= horizon; h++ {
			if _, ok := seen[UnitKey{Product: p, Hour: h}]; !ok {
				return false
			}
		}
	}
	return true
}

// Clone returns a deep copy of the run.
func (r *ForecastRun) Clone() *ForecastRun {
	out := *r
	out.Entries = make([]ProbabilisticForecast, len(r.Entries))
	for i, e := range r.Entries {
		qs := make([]QuantileValue, len(e.Quantiles))
		copy(qs, e.Quantiles)
		e.Quantiles = qs
		out.Entries[i] = e
	}
	return &out
}

// RunMeta is the stored metadata of a run without its entry grid.
type RunMeta struct {
	RunDate     time.Time `json:"run_date"`
	GeneratedAt time.Time `json:"generated_at"`
	Status      RunStatus `json:"status"`
	IsFallback  bool      `json:"is_fallback"`
}

// Violation is one schema-validation failure.
type Violation struct {
	Code    string `json:"code"`
	Unit    string `json:"unit,omitempty"`
	Message string `json:"message"`
}

// ValidationResult is the outcome of validating a complete run.
// Violations is empty iff OK.
type ValidationResult struct {
	OK         bool        `json:"ok"`
	Violations []Violation `json:"violations,omitempty"`
}
