package repository

import (
	"context"
	"time"

	"GridCast/internal/domain/models"
)

// SignalSource fetches raw observations from one external provider.
// Implementations must not cache across runs.
type SignalSource interface {
	Name() string
	Fetch(ctx context.Context, window Window) ([]models.RawObservation, error)
}

// Window bounds one ingestion request: the run's anchor plus the forward
// horizon and trailing history depth, both in hours.
type Window struct {
	Anchor       time.Time
	HorizonHours int
	HistoryHours int
}

// RunStore persists validated forecast runs, write-once per generation
// date. Stored runs are immutable; reads never observe partial writes.
type RunStore interface {
	Init(ctx context.Context) error
	Put(ctx context.Context, run *models.ForecastRun) error
	Get(ctx context.Context, date time.Time) (*models.ForecastRun, error)
	GetLatest(ctx context.Context) (*models.ForecastRun, error)
	// LatestBefore returns the most recent stored run strictly before date.
	LatestBefore(ctx context.Context, date time.Time) (*models.ForecastRun, error)
	ListRuns(ctx context.Context, limit int) ([]models.RunMeta, error)
	Health(ctx context.Context) error
	Close() error
}

// RunPublisher delivers stored runs to downstream consumers.
type RunPublisher interface {
	PublishRun(ctx context.Context, run *models.ForecastRun) error
	Close() error
}

// Metrics records pipeline counters and timings. Metric names are part of
// the external monitoring contract.
type Metrics interface {
	RecordGenerationSuccess()
	RecordFallbackActivated()
	RecordFallbackCount()
	RecordValidationErrors(n int)
	RecordModelError()
	RecordStorageError()
	ObservePipelineDuration(seconds float64)
	ObserveStageDuration(stage string, seconds float64)
}

// Stage labels used with Metrics.ObserveStageDuration.
const (
	StageIngestion  = "data_ingestion"
	StageFeatures   = "feature_engineering"
	StageModel      = "model_execution"
	StageValidation = "validation"
	StageStorage    = "storage"
)
