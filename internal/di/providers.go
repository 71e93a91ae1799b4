package di

import (
	"context"
	"fmt"
	"time"

	"GridCast/internal/domain/models"
	domrepo "GridCast/internal/domain/repository"
	"GridCast/internal/engine"
	"GridCast/internal/feature"
	"GridCast/internal/handler/api"
	"GridCast/internal/model"
	internalrepo "GridCast/internal/repository"
	"GridCast/internal/source"
	"GridCast/internal/usecase"
	"GridCast/internal/validate"
	pkgcache "GridCast/pkg/cache"
	pkgch "GridCast/pkg/clickhouse"
	"GridCast/pkg/config"
	pkgkafka "GridCast/pkg/kafka"
	applogger "GridCast/pkg/logger"
	"GridCast/pkg/metrics"
	"GridCast/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	return applogger.New(&applogger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() domrepo.Metrics {
	return metrics.New()
}

// ProvideRunStore creates the configured storage backend, schema ready.
func ProvideRunStore(cfg *config.Config, l *applogger.Logger) (domrepo.RunStore, error) {
	var store domrepo.RunStore
	switch cfg.Storage.Type {
	case "memory":
		store = internalrepo.NewMemoryRunStore()
	case "clickhouse":
		client, err := pkgch.NewClient(
			pkgch.WithHost(cfg.Storage.ClickHouse.Host),
			pkgch.WithPort(cfg.Storage.ClickHouse.Port),
			pkgch.WithDatabase(cfg.Storage.ClickHouse.Database),
			pkgch.WithCredentials(cfg.Storage.ClickHouse.User, cfg.Storage.ClickHouse.Password),
			pkgch.WithHTTP(cfg.Storage.ClickHouse.UseHTTP),
			pkgch.WithMaxConnections(10, 5),
			pkgch.WithTimeouts(cfg.Storage.ClickHouse.DialTimeout, cfg.Storage.ClickHouse.ReadTimeout, cfg.Storage.ClickHouse.WriteTimeout),
			pkgch.WithMaxExecutionTime(cfg.Storage.ClickHouse.MaxExecutionTime),
		)
		if err != nil {
			return nil, fmt.Errorf("clickhouse client: %w", err)
		}
		chStore := internalrepo.NewCHRunStore(client)
		chStore.SetLogger(l)
		store = chStore
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Storage.Type)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.Init(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("storage init: %w", err)
	}
	return store, nil
}

// ProvideRunPublisher creates the Kafka publisher, or nil when Kafka is
// disabled. A nil publisher turns publishing into a no-op downstream.
func ProvideRunPublisher(cfg *config.Config, l *applogger.Logger) (domrepo.RunPublisher, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	pub := internalrepo.NewKafkaRunPublisher(producer, cfg.Kafka.Topic)
	pub.SetLogger(l)
	return pub, nil
}

// ProvideSources creates the three external signal source clients.
func ProvideSources(cfg *config.Config, l *applogger.Logger) []domrepo.SignalSource {
	return source.NewAll(cfg, l)
}

// ProvideBuilder creates the feature builder.
func ProvideBuilder() *feature.Builder {
	return feature.NewBuilder()
}

// ProvideRegistry loads the model file and verifies grid completeness.
// An incomplete registry aborts startup.
func ProvideRegistry(cfg *config.Config) (*model.Registry, error) {
	reg, err := model.LoadRegistry(cfg.Forecast.ModelFile, models.AllProducts(), cfg.Forecast.HorizonHours)
	if err != nil {
		return nil, fmt.Errorf("model registry: %w", err)
	}
	return reg, nil
}

// ProvideEngine creates the forecasting engine.
func ProvideEngine(reg *model.Registry, cfg *config.Config, m domrepo.Metrics, l *applogger.Logger) *engine.Engine {
	return engine.New(reg, cfg.Forecast.QuantileLevels, cfg.Forecast.MaxWorkers, m, l)
}

// ProvideValidator creates the run validator.
func ProvideValidator(cfg *config.Config) *validate.Validator {
	return validate.New(models.AllProducts(), cfg.Forecast.HorizonHours, cfg.Forecast.QuantileLevels, cfg.Forecast.MaxAbsValue)
}

// ProvidePipeline assembles the generation pipeline.
func ProvidePipeline(
	cfg *config.Config,
	sources []domrepo.SignalSource,
	builder *feature.Builder,
	eng *engine.Engine,
	validator *validate.Validator,
	store domrepo.RunStore,
	publisher domrepo.RunPublisher,
	m domrepo.Metrics,
	l *applogger.Logger,
) *usecase.Pipeline {
	return usecase.NewPipeline(
		usecase.PipelineConfig{
			Products:     models.AllProducts(),
			HorizonHours: cfg.Forecast.HorizonHours,
			HistoryHours: cfg.Forecast.HistoryHours,
			RunDeadline:  cfg.Forecast.RunDeadline,
		},
		sources, builder, eng, validator, store, publisher, m,
		usecase.SystemClock(), l,
	)
}

// ProvideCache creates the read-API response cache, or nil when disabled.
func ProvideCache(cfg *config.Config) (pkgcache.Service, error) {
	if !cfg.Cache.Enabled {
		return nil, nil
	}
	switch cfg.Cache.Type {
	case "redis":
		return pkgcache.NewRedisCache(
			pkgcache.WithAddr(cfg.Cache.Redis.Addr),
			pkgcache.WithAuth(cfg.Cache.Redis.Password, cfg.Cache.Redis.DB),
		)
	case "memory":
		return pkgcache.NewMemoryCache(), nil
	default:
		return nil, fmt.Errorf("unknown cache type %q", cfg.Cache.Type)
	}
}

// ProvideReader creates the read-side use case.
func ProvideReader(store domrepo.RunStore, cache pkgcache.Service, cfg *config.Config, l *applogger.Logger) *usecase.Reader {
	return usecase.NewReader(store, cache, cfg.Cache.TTL, l)
}

// ProvideForecastsHandler creates the HTTP handler for the read API.
func ProvideForecastsHandler(l *applogger.Logger, reader *usecase.Reader, cfg *config.Config) *api.ForecastsHandler {
	return api.NewForecastsHandler(l, reader, cfg.Forecast.QuantileLevels)
}

// ProvideApp assembles the application.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	pipeline *usecase.Pipeline,
	store domrepo.RunStore,
	publisher domrepo.RunPublisher,
	handler *api.ForecastsHandler,
) *server.App {
	return server.New(cfg, l, pipeline, store, publisher, handler)
}
