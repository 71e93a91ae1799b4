package validate

import (
	"fmt"
	"math"
	"time"

	"GridCast/internal/domain/models"
)

// Violation codes. These appear in logs and in SchemaValidationError, so
// downstream alerting matches on them.
const (
	CodeMissingEntry   = "MISSING_ENTRY"
	CodeDuplicateEntry = "DUPLICATE_ENTRY"
	CodeExtraEntry     = "EXTRA_ENTRY"
	CodeNonMonotone    = "NON_MONOTONE_QUANTILES"
	CodeOutOfBounds    = "VALUE_OUT_OF_BOUNDS"
	CodeNegativeValue  = "NEGATIVE_VALUE"
	CodeBadLevels      = "UNEXPECTED_QUANTILE_LEVELS"
	CodeBadTimestamp   = "BAD_TIMESTAMP"
	CodeDateMismatch   = "DATE_MISMATCH"
	CodeNonFinite      = "NON_FINITE_VALUE"
)

// Validator enforces the run-level schema: completeness over the full
// grid, per-entry quantile monotonicity, value bounds, and timestamp
// sanity. The contract is static; violations are reported, never fixed
// up or clamped.
type Validator struct {
	products []models.Product
	horizon  int
	levels   []float64
	maxAbs   float64
}

// New creates a validator for the given grid and bounds.
func New(products []models.Product, horizon int, levels []float64, maxAbs float64) *Validator {
	return &Validator{
		products: products,
		horizon:  horizon,
		levels:   levels,
		maxAbs:   maxAbs,
	}
}

// Validate checks a run against the schema. Any violation fails the
// whole run; there is no partial pass.
func (v *Validator) Validate(run *models.ForecastRun, requestedDate time.Time) models.ValidationResult {
	var violations []models.Violation

	violations = append(violations, v.checkTimestamps(run, requestedDate)...)
	violations = append(violations, v.checkGrid(run)...)
	violations = append(violations, v.checkEntries(run)...)

	return models.ValidationResult{
		OK:         len(violations) == 0,
		Violations: violations,
	}
}

func (v *Validator) checkTimestamps(run *models.ForecastRun, requestedDate time.Time) []models.Violation {
	var out []models.Violation

	if run.AnchorTime.IsZero() || run.GeneratedAt.IsZero() {
		out = append(out, models.Violation{
			Code:    CodeBadTimestamp,
			Message: "anchor and generation timestamps must be set",
		})
	}

	wantDate := requestedDate.UTC().Format(models.RunDateLayout)
	if run.AnchorTime.UTC().Format(models.RunDateLayout) != wantDate {
		out = append(out, models.Violation{
			Code: CodeDateMismatch,
			Message: fmt.Sprintf("anchor date %s does not match requested run date %s",
				run.AnchorTime.UTC().Format(models.RunDateLayout), wantDate),
		})
	}
	return out
}

func (v *Validator) checkGrid(run *models.ForecastRun) []models.Violation {
	var out []models.Violation

	want := make(map[models.UnitKey]struct{}, len(v.products)*v.horizon)
	for _, p := range v.products {
		for h := 1; h <= v.horizon; h++ {
			want[models.UnitKey{Product: p, Hour: h}] = struct{}{}
		}
	}

	seen := make(map[models.UnitKey]int, len(run.Entries))
	for _, e := range run.Entries {
		seen[e.Key()]++
	}

	for _, p := range v.products {
		for h := 1; h <= v.horizon; h++ {
			key := models.UnitKey{Product: p, Hour: h}
			switch seen[key] {
			case 0:
				out = append(out, models.Violation{
					Code:    CodeMissingEntry,
					Unit:    key.String(),
					Message: fmt.Sprintf("no forecast for %s", key),
				})
			case 1:
			default:
				out = append(out, models.Violation{
					Code:    CodeDuplicateEntry,
					Unit:    key.String(),
					Message: fmt.Sprintf("%d forecasts for %s", seen[key], key),
				})
			}
		}
	}

	reported := make(map[models.UnitKey]struct{})
	for _, e := range run.Entries {
		key := e.Key()
		if _, ok := want[key]; ok {
			continue
		}
		if _, done := reported[key]; done {
			continue
		}
		reported[key] = struct{}{}
		out = append(out, models.Violation{
			Code:    CodeExtraEntry,
			Unit:    key.String(),
			Message: fmt.Sprintf("entry %s outside the configured grid", key),
		})
	}
	return out
}

func (v *Validator) checkEntries(run *models.ForecastRun) []models.Violation {
	var out []models.Violation

	for _, e := range run.Entries {
		key := e.Key()

		if !v.levelsMatch(e.Quantiles) {
			out = append(out, models.Violation{
				Code:    CodeBadLevels,
				Unit:    key.String(),
				Message: fmt.Sprintf("quantile levels differ from configured set for %s", key),
			})
			continue
		}

		if !e.MonotoneQuantiles() {
			out = append(out, models.Violation{
				Code:    CodeNonMonotone,
				Unit:    key.String(),
				Message: fmt.Sprintf("quantiles not non-decreasing for %s", key),
			})
		}

		values := append([]float64{e.Point}, quantileValues(e.Quantiles)...)
		for _, val := range values {
			if math.IsNaN(val) || math.IsInf(val, 0) {
				out = append(out, models.Violation{
					Code:    CodeNonFinite,
					Unit:    key.String(),
					Message: fmt.Sprintf("non-finite value for %s", key),
				})
				break
			}
		}

		for _, val := range values {
			if math.Abs(val) > v.maxAbs {
				out = append(out, models.Violation{
					Code:    CodeOutOfBounds,
					Unit:    key.String(),
					Message: fmt.Sprintf("|%v| exceeds limit %v for %s", val, v.maxAbs, key),
				})
				break
			}
		}

		if !e.Product.AllowsNegative() {
			for _, val := range values {
				if val < 0 {
					out = append(out, models.Violation{
						Code:    CodeNegativeValue,
						Unit:    key.String(),
						Message: fmt.Sprintf("negative value %v for non-negative product %s", val, e.Product),
					})
					break
				}
			}
		}
	}
	return out
}

func (v *Validator) levelsMatch(qs []models.QuantileValue) bool {
	if len(qs) != len(v.levels) {
		return false
	}
	for i, q := range qs {
		if q.Level != v.levels[i] {
			return false
		}
	}
	return true
}

func quantileValues(qs []models.QuantileValue) []float64 {
	out := make([]float64, len(qs))
	for i, q := range qs {
		out[i] = q.Value
	}
	return out
}
