package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Sentinel errors for the run store contract.
var (
	// ErrDuplicateRun is returned when a run already exists for a date.
	ErrDuplicateRun = errors.New("run already stored for date")
	// ErrRunNotFound is returned when no run exists for a lookup.
	ErrRunNotFound = errors.New("run not found")
	// ErrRunInFlight is returned when a generation attempt for the same
	// date is already executing.
	ErrRunInFlight = errors.New("generation already in flight for date")
)

// DataUnavailableError signals that an external source could not deliver
// observations: timeout, non-2xx response, or malformed payload.
type DataUnavailableError struct {
	Source string
	Err    error
}

func (e *DataUnavailableError) Error() string {
	return fmt.Sprintf("source %s unavailable: %v", e.Source, e.Err)
}

func (e *DataUnavailableError) Unwrap() error { return e.Err }

// FeatureConstructionError signals that one unit's feature vector could
// not be built. It fails only that unit, never the batch.
type FeatureConstructionError struct {
	Unit    UnitKey
	Missing []string
}

func (e *FeatureConstructionError) Error() string {
	return fmt.Sprintf("features for %s: missing inputs [%s]", e.Unit, strings.Join(e.Missing, ", "))
}

// ModelNotFoundError signals a registry/configuration mismatch. It is
// fatal to startup, not to an individual run.
type ModelNotFoundError struct {
	Unit UnitKey
}

func (e *ModelNotFoundError) Error() string {
	return fmt.Sprintf("no model registered for %s", e.Unit)
}

// ModelExecutionError signals a per-unit inference failure, including
// non-finite or non-monotonic output.
type ModelExecutionError struct {
	Unit   UnitKey
	Reason string
}

func (e *ModelExecutionError) Error() string {
	return fmt.Sprintf("model execution for %s: %s", e.Unit, e.Reason)
}

// SchemaValidationError carries the full ordered violation list of a
// failed run-level validation.
type SchemaValidationError struct {
	Violations []Violation
}

func (e *SchemaValidationError) Error() string {
	return fmt.Sprintf("run validation failed with %d violation(s): %s", len(e.Violations), firstViolation(e.Violations))
}

func firstViolation(vs []Violation) string {
	if len(vs) == 0 {
		return ""
	}
	return vs[0].Message
}

// StorageError signals a run-store write or read failure.
type StorageError struct {
	Op  string
	Key string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// HardFailureError signals that generation failed and no prior valid run
// exists to fall back to. The date has no forecast at all.
type HardFailureError struct {
	Date  time.Time
	Cause error
}

func (e *HardFailureError) Error() string {
	return fmt.Sprintf("hard failure for %s: no prior run to fall back to (cause: %v)",
		e.Date.Format(RunDateLayout), e.Cause)
}

func (e *HardFailureError) Unwrap() error { return e.Cause }
