package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"GridCast/internal/domain/models"
)

// MemoryRunStore is an in-process RunStore used for local development
// and tests. Runs are deep-copied on both put and get so callers can
// never mutate a stored run through a shared pointer.
type MemoryRunStore struct {
	mu   sync.RWMutex
	runs map[string]*models.ForecastRun
}

func NewMemoryRunStore() *MemoryRunStore {
	return &MemoryRunStore{runs: make(map[string]*models.ForecastRun)}
}

func (s *MemoryRunStore) Init(ctx context.Context) error   { return nil }
func (s *MemoryRunStore) Health(ctx context.Context) error { return nil }
func (s *MemoryRunStore) Close() error                     { return nil }

func (s *MemoryRunStore) Put(ctx context.Context, run *models.ForecastRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := run.DateKey()
	if _, ok := s.runs[key]; ok {
		return models.ErrDuplicateRun
	}
	s.runs[key] = run.Clone()
	return nil
}

func (s *MemoryRunStore) Get(ctx context.Context, date time.Time) (*models.ForecastRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[date.UTC().Format(models.RunDateLayout)]
	if !ok {
		return nil, models.ErrRunNotFound
	}
	return run.Clone(), nil
}

func (s *MemoryRunStore) GetLatest(ctx context.Context) (*models.ForecastRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := s.sortedKeys()
	if len(keys) == 0 {
		return nil, models.ErrRunNotFound
	}
	return s.runs[keys[len(keys)-1]].Clone(), nil
}

func (s *MemoryRunStore) LatestBefore(ctx context.Context, date time.Time) (*models.ForecastRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cutoff := date.UTC().Format(models.RunDateLayout)
	keys := s.sortedKeys()
	// Date keys sort lexically in chronological order.
	for i := len(keys) - 1; i >= 0; i-- {
		if keys[i] < cutoff {
			return s.runs[keys[i]].Clone(), nil
		}
	}
	return nil, models.ErrRunNotFound
}

func (s *MemoryRunStore) ListRuns(ctx context.Context, limit int) ([]models.RunMeta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 30
	}
	keys := s.sortedKeys()
	out := make([]models.RunMeta, 0, limit)
	for i := len(keys) - 1; i >= 0 && len(out) < limit; i-- {
		run := s.runs[keys[i]]
		out = append(out, models.RunMeta{
			RunDate:     run.RunDate,
			GeneratedAt: run.GeneratedAt,
			Status:      run.Status,
			IsFallback:  run.IsFallback,
		})
	}
	return out, nil
}

func (s *MemoryRunStore) sortedKeys() []string {
	keys := make([]string, 0, len(s.runs))
	for k := range s.runs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
