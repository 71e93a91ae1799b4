package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"GridCast/internal/domain/models"
	pkgch "GridCast/pkg/clickhouse"
	applogger "GridCast/pkg/logger"
)

// Schema statements, idempotent. Entries land first during a write; the
// meta row in forecast_runs is inserted last and acts as the commit
// marker, so readers that require the meta row never observe a partial
// run.
var schemaStatements = []string{
	`CREATE DATABASE IF NOT EXISTS gridcast`,
	`CREATE TABLE IF NOT EXISTS gridcast.forecast_runs (
        run_date     Date,
        anchor_ts    DateTime64(3, 'UTC'),
        generated_ts DateTime64(3, 'UTC'),
        status       LowCardinality(String),
        is_fallback  UInt8
    ) ENGINE = MergeTree()
    ORDER BY run_date`,
	`CREATE TABLE IF NOT EXISTS gridcast.forecast_entries (
        run_date      Date,
        product       LowCardinality(String),
        hour          UInt16,
        point         Float64,
        levels        Array(Float64),
        quantiles     Array(Float64),
        model_version String
    ) ENGINE = MergeTree()
    ORDER BY (run_date, product, hour)`,
}

// CHRunStore implements RunStore backed by ClickHouse.
type CHRunStore struct {
	ch *pkgch.Client
	db *sql.DB
	l  *applogger.Logger
}

func NewCHRunStore(ch *pkgch.Client) *CHRunStore {
	return &CHRunStore{ch: ch, db: ch.DB()}
}

// SetLogger injects a structured logger.
func (s *CHRunStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CHRunStore) Init(ctx context.Context) error {
	return s.ch.InitSchema(ctx, schemaStatements)
}

func (s *CHRunStore) Health(ctx context.Context) error {
	return s.ch.Health(ctx)
}

func (s *CHRunStore) Close() error {
	return s.ch.Close()
}

// Put stores a run under its date key. The key is write-once: a second
// put for the same date returns ErrDuplicateRun and leaves the stored
// run untouched.
func (s *CHRunStore) Put(ctx context.Context, run *models.ForecastRun) error {
	start := time.Now()
	key := run.DateKey()

	exists, err := s.exists(ctx, run.RunDate)
	if err != nil {
		return &models.StorageError{Op: "put", Key: key, Err: err}
	}
	if exists {
		return models.ErrDuplicateRun
	}

	if err := s.insertEntries(ctx, run); err != nil {
		return &models.StorageError{Op: "put", Key: key, Err: err}
	}

	const metaQ = `
        INSERT INTO gridcast.forecast_runs
            (run_date, anchor_ts, generated_ts, status, is_fallback)
        VALUES (?, ?, ?, ?, ?)
    `
	fallback := uint8(0)
	if run.IsFallback {
		fallback = 1
	}
	if _, err := s.db.ExecContext(ctx, metaQ,
		run.RunDate, run.AnchorTime, run.GeneratedAt, string(run.Status), fallback,
	); err != nil {
		return &models.StorageError{Op: "put", Key: key, Err: err}
	}

	if s.l != nil {
		s.l.Info("clickhouse put_run ok",
			applogger.String("date", key),
			applogger.Int("entries", len(run.Entries)),
			applogger.Bool("fallback", run.IsFallback),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return nil
}

func (s *CHRunStore) insertEntries(ctx context.Context, run *models.ForecastRun) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin batch: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `
        INSERT INTO gridcast.forecast_entries
            (run_date, product, hour, point, levels, quantiles, model_version)
        VALUES (?, ?, ?, ?, ?, ?, ?)
    `)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, e := range run.Entries {
		levels := make([]float64, len(e.Quantiles))
		values := make([]float64, len(e.Quantiles))
		for i, q := range e.Quantiles {
			levels[i] = q.Level
			values[i] = q.Value
		}
		if _, err := stmt.ExecContext(ctx,
			run.RunDate, string(e.Product), uint16(e.Hour), e.Point, levels, values, e.ModelVersion,
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("append entry %s: %w", e.Key(), err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

// Get returns the run stored for the given date.
func (s *CHRunStore) Get(ctx context.Context, date time.Time) (*models.ForecastRun, error) {
	const q = `
        SELECT run_date, anchor_ts, generated_ts, status, is_fallback
        FROM gridcast.forecast_runs
        WHERE run_date = ?
        LIMIT 1
    `
	return s.queryRun(ctx, q, dateOnly(date))
}

// GetLatest returns the most recently dated stored run.
func (s *CHRunStore) GetLatest(ctx context.Context) (*models.ForecastRun, error) {
	const q = `
        SELECT run_date, anchor_ts, generated_ts, status, is_fallback
        FROM gridcast.forecast_runs
        ORDER BY run_date DESC
        LIMIT 1
    `
	return s.queryRun(ctx, q)
}

// LatestBefore returns the most recent stored run strictly before date.
func (s *CHRunStore) LatestBefore(ctx context.Context, date time.Time) (*models.ForecastRun, error) {
	const q = `
        SELECT run_date, anchor_ts, generated_ts, status, is_fallback
        FROM gridcast.forecast_runs
        WHERE run_date < ?
        ORDER BY run_date DESC
        LIMIT 1
    `
	return s.queryRun(ctx, q, dateOnly(date))
}

func (s *CHRunStore) queryRun(ctx context.Context, q string, args ...any) (*models.ForecastRun, error) {
	var (
		run      models.ForecastRun
		status   string
		fallback uint8
	)
	err := s.db.QueryRowContext(ctx, q, args...).
		Scan(&run.RunDate, &run.AnchorTime, &run.GeneratedAt, &status, &fallback)
	if err == sql.ErrNoRows {
		return nil, models.ErrRunNotFound
	}
	if err != nil {
		return nil, &models.StorageError{Op: "get", Err: err}
	}
	run.Status = models.RunStatus(status)
	run.IsFallback = fallback != 0

	entries, err := s.loadEntries(ctx, run.RunDate)
	if err != nil {
		return nil, &models.StorageError{Op: "get", Key: run.DateKey(), Err: err}
	}
	run.Entries = entries
	return &run, nil
}

func (s *CHRunStore) loadEntries(ctx context.Context, date time.Time) ([]models.ProbabilisticForecast, error) {
	const q = `
        SELECT product, hour, point, levels, quantiles, model_version
        FROM gridcast.forecast_entries
        WHERE run_date = ?
        ORDER BY product ASC, hour ASC
    `
	rows, err := s.db.QueryContext(ctx, q, date)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	out := make([]models.ProbabilisticForecast, 0, 512)
	for rows.Next() {
		var (
			e       models.ProbabilisticForecast
			product string
			hour    uint16
			levels  []float64
			values  []float64
		)
		if err := rows.Scan(&product, &hour, &e.Point, &levels, &values, &e.ModelVersion); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		e.Product = models.Product(product)
		e.Hour = int(hour)
		e.Quantiles = make([]models.QuantileValue, len(levels))
		for i := range levels {
			e.Quantiles[i] = models.QuantileValue{Level: levels[i], Value: values[i]}
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

// ListRuns returns run metadata, newest first.
func (s *CHRunStore) ListRuns(ctx context.Context, limit int) ([]models.RunMeta, error) {
	if limit <= 0 {
		limit = 30
	}
	const q = `
        SELECT run_date, generated_ts, status, is_fallback
        FROM gridcast.forecast_runs
        ORDER BY run_date DESC
        LIMIT ?
    `
	rows, err := s.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, &models.StorageError{Op: "list", Err: err}
	}
	defer rows.Close()

	out := make([]models.RunMeta, 0, limit)
	for rows.Next() {
		var (
			m        models.RunMeta
			status   string
			fallback uint8
		)
		if err := rows.Scan(&m.RunDate, &m.GeneratedAt, &status, &fallback); err != nil {
			return nil, &models.StorageError{Op: "list", Err: err}
		}
		m.Status = models.RunStatus(status)
		m.IsFallback = fallback != 0
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, &models.StorageError{Op: "list", Err: err}
	}
	return out, nil
}

func (s *CHRunStore) exists(ctx context.Context, date time.Time) (bool, error) {
	const q = `SELECT count() FROM gridcast.forecast_runs WHERE run_date = ?`
	var n uint64
	if err := s.db.QueryRowContext(ctx, q, dateOnly(date)).Scan(&n); err != nil {
		return false, fmt.Errorf("exists check: %w", err)
	}
	return n > 0, nil
}

func dateOnly(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
