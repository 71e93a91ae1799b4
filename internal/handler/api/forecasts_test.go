package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"GridCast/internal/domain/models"
	internalrepo "GridCast/internal/repository"
	"GridCast/internal/usecase"
	applogger "GridCast/pkg/logger"
)

var testLevels = []float64{0.10, 0.50, 0.90}

func seedRun(t *testing.T, store *internalrepo.MemoryRunStore, date time.Time, fallback bool) {
	t.Helper()
	run := models.NewRun(date)
	run.GeneratedAt = date.Add(6 * time.Hour)
	run.Status = models.StatusStored
	run.IsFallback = fallback
	for _, p := range []models.Product{models.ProductDALMP, models.ProductRegUp} {
		for h := 1; h <= 2; h++ {
			run.Entries = append(run.Entries, models.ProbabilisticForecast{
				Product: p,
				Hour:    h,
				Point:   30,
				Quantiles: []models.QuantileValue{
					{Level: 0.10, Value: 21},
					{Level: 0.50, Value: 30},
					{Level: 0.90, Value: 42},
				},
			})
		}
	}
	if err := store.Put(context.Background(), run); err != nil {
		t.Fatalf("seed run: %v", err)
	}
}

func newTestServer(t *testing.T, store *internalrepo.MemoryRunStore) *echo.Echo {
	t.Helper()
	l, err := applogger.New(&applogger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	reader := usecase.NewReader(store, nil, 0, l)
	h := NewForecastsHandler(l, reader, testLevels)

	e := echo.New()
	h.RegisterRoutes(e)
	return e
}

type apiEnvelope struct {
	Status int             `json:"status"`
	Data   json.RawMessage `json:"data"`
}

func doGet(t *testing.T, e *echo.Echo, target string) (*httptest.ResponseRecorder, apiEnvelope) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	var env apiEnvelope
	if strings.Contains(rec.Header().Get(echo.HeaderContentType), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			t.Fatalf("decode response: %v\nbody: %s", err, rec.Body.String())
		}
	}
	return rec, env
}

func TestLatestJSON(t *testing.T) {
	store := internalrepo.NewMemoryRunStore()
	seedRun(t, store, time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC), false)
	e := newTestServer(t, store)

	_, env := doGet(t, e, "/forecasts/latest")
	if env.Status != http.StatusOK {
		t.Fatalf("status %d", env.Status)
	}

	var view usecase.RunView
	if err := json.Unmarshal(env.Data, &view); err != nil {
		t.Fatalf("decode view: %v", err)
	}
	if view.RunDate != "2026-08-28" || len(view.Rows) != 4 {
		t.Fatalf("view %s rows=%d", view.RunDate, len(view.Rows))
	}
	row := view.Rows[0]
	if row.Quantiles["p10"] != 21 || row.Quantiles["p90"] != 42 {
		t.Fatalf("quantiles %v", row.Quantiles)
	}
}

func TestLatestProductFilter(t *testing.T) {
	store := internalrepo.NewMemoryRunStore()
	seedRun(t, store, time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC), false)
	e := newTestServer(t, store)

	_, env := doGet(t, e, "/forecasts/latest?product=RegUp")
	var view usecase.RunView
	if err := json.Unmarshal(env.Data, &view); err != nil {
		t.Fatalf("decode view: %v", err)
	}
	if len(view.Rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(view.Rows))
	}
	for _, r := range view.Rows {
		if r.Product != "RegUp" {
			t.Fatalf("filter leaked %s", r.Product)
		}
	}
}

func TestLatestRejectsUnknownProduct(t *testing.T) {
	store := internalrepo.NewMemoryRunStore()
	seedRun(t, store, time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC), false)
	e := newTestServer(t, store)

	_, env := doGet(t, e, "/forecasts/latest?product=BOGUS")
	if env.Status != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", env.Status)
	}
}

func TestLatestEmptyStore(t *testing.T) {
	e := newTestServer(t, internalrepo.NewMemoryRunStore())
	_, env := doGet(t, e, "/forecasts/latest")
	if env.Status != http.StatusNotFound {
		t.Fatalf("status %d, want 404", env.Status)
	}
}

func TestLatestCSV(t *testing.T) {
	store := internalrepo.NewMemoryRunStore()
	seedRun(t, store, time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC), true)
	e := newTestServer(t, store)

	rec, _ := doGet(t, e, "/forecasts/latest?format=csv")
	if !strings.Contains(rec.Header().Get(echo.HeaderContentType), "text/csv") {
		t.Fatalf("content type %s", rec.Header().Get(echo.HeaderContentType))
	}
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	if len(lines) != 5 {
		t.Fatalf("got %d lines, want header + 4 rows", len(lines))
	}
	if lines[0] != "timestamp,product,hour,point_forecast,p10,p50,p90,generation_timestamp,is_fallback" {
		t.Fatalf("header %q", lines[0])
	}
	if !strings.HasSuffix(lines[1], "true") {
		t.Fatalf("fallback flag missing in %q", lines[1])
	}
}

func TestHistorical(t *testing.T) {
	store := internalrepo.NewMemoryRunStore()
	seedRun(t, store, time.Date(2026, 8, 27, 0, 0, 0, 0, time.UTC), false)
	seedRun(t, store, time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC), false)
	e := newTestServer(t, store)

	_, env := doGet(t, e, "/forecasts/historical?date=2026-08-27")
	if env.Status != http.StatusOK {
		t.Fatalf("status %d", env.Status)
	}
	var view usecase.RunView
	if err := json.Unmarshal(env.Data, &view); err != nil {
		t.Fatalf("decode view: %v", err)
	}
	if view.RunDate != "2026-08-27" {
		t.Fatalf("run date %s", view.RunDate)
	}

	_, env = doGet(t, e, "/forecasts/historical")
	if env.Status != http.StatusBadRequest {
		t.Fatalf("missing date: status %d, want 400", env.Status)
	}

	_, env = doGet(t, e, "/forecasts/historical?date=2020-01-01")
	if env.Status != http.StatusNotFound {
		t.Fatalf("unknown date: status %d, want 404", env.Status)
	}
}

func TestStatusEndpoint(t *testing.T) {
	store := internalrepo.NewMemoryRunStore()
	e := newTestServer(t, store)

	_, env := doGet(t, e, "/forecasts/status")
	var status usecase.StatusView
	if err := json.Unmarshal(env.Data, &status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if status.Available {
		t.Fatalf("expected unavailable")
	}

	seedRun(t, store, time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC), true)
	_, env = doGet(t, e, "/forecasts/status")
	if err := json.Unmarshal(env.Data, &status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if !status.Available || !status.IsFallback {
		t.Fatalf("status %+v", status)
	}
}

func TestRunsEndpoint(t *testing.T) {
	store := internalrepo.NewMemoryRunStore()
	seedRun(t, store, time.Date(2026, 8, 27, 0, 0, 0, 0, time.UTC), false)
	seedRun(t, store, time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC), true)
	e := newTestServer(t, store)

	_, env := doGet(t, e, "/forecasts/runs")
	var list struct {
		Rows  []models.RunMeta `json:"rows"`
		Total int64            `json:"total"`
	}
	if err := json.Unmarshal(env.Data, &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if list.Total != 2 || len(list.Rows) != 2 {
		t.Fatalf("list %+v", list)
	}
	if !list.Rows[0].IsFallback {
		t.Fatalf("newest run should be the fallback one")
	}
}

func TestHealthz(t *testing.T) {
	e := newTestServer(t, internalrepo.NewMemoryRunStore())
	_, env := doGet(t, e, "/healthz")
	if env.Status != http.StatusOK {
		t.Fatalf("status %d", env.Status)
	}
}
