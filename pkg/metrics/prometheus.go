package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
// The metric names are scraped externally and form a monitoring contract;
// renaming any of them breaks alert rules.
type Recorder struct {
	generationSuccess prometheus.Counter
	fallbackActivated prometheus.Counter
	fallbackCount     prometheus.Counter
	validationErrors  prometheus.Counter
	modelErrors       prometheus.Counter
	storageErrors     prometheus.Counter
	pipelineDuration  prometheus.Histogram
	stageDurations    map[string]prometheus.Histogram
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	stage := func(name string) prometheus.Histogram {
		return promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "forecast_" + name + "_time_seconds",
			Help:    "Duration of the " + name + " pipeline stage in seconds",
			Buckets: prometheus.DefBuckets,
		})
	}

	return &Recorder{
		generationSuccess: promauto.NewCounter(prometheus.CounterOpts{
			Name: "forecast_generation_success",
			Help: "Total number of successfully generated forecast runs",
		}),
		fallbackActivated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "forecast_fallback_activated",
			Help: "Total number of runs that triggered the fallback path",
		}),
		fallbackCount: promauto.NewCounter(prometheus.CounterOpts{
			Name: "forecast_fallback_count",
			Help: "Total number of fallback runs stored",
		}),
		validationErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "forecast_data_validation_errors",
			Help: "Total number of run validation violations",
		}),
		modelErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "forecast_model_errors",
			Help: "Total number of per-unit model execution failures",
		}),
		storageErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "forecast_storage_errors",
			Help: "Total number of run store failures",
		}),
		pipelineDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "forecast_pipeline_execution_time_seconds",
			Help:    "End-to-end duration of one forecast pipeline run",
			Buckets: prometheus.DefBuckets,
		}),
		stageDurations: map[string]prometheus.Histogram{
			"data_ingestion":      stage("data_ingestion"),
			"feature_engineering": stage("feature_engineering"),
			"model_execution":     stage("model_execution"),
			"validation":          stage("validation"),
			"storage":             stage("storage"),
		},
	}
}

func (r *Recorder) RecordGenerationSuccess() { r.generationSuccess.Inc() }

func (r *Recorder) RecordFallbackActivated() { r.fallbackActivated.Inc() }

func (r *Recorder) RecordFallbackCount() { r.fallbackCount.Inc() }

func (r *Recorder) RecordValidationErrors(n int) { r.validationErrors.Add(float64(n)) }

func (r *Recorder) RecordModelError() { r.modelErrors.Inc() }

func (r *Recorder) RecordStorageError() { r.storageErrors.Inc() }

func (r *Recorder) ObservePipelineDuration(seconds float64) {
	r.pipelineDuration.Observe(seconds)
}

// ObserveStageDuration records a stage timing. Unknown stage labels are
// dropped rather than registered lazily.
func (r *Recorder) ObserveStageDuration(stage string, seconds float64) {
	if h, ok := r.stageDurations[stage]; ok {
		h.Observe(seconds)
	}
}
