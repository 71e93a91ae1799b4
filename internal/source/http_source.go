package source

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"GridCast/internal/domain/models"
	domrepo "GridCast/internal/domain/repository"
	"GridCast/pkg/config"
	xhttp "GridCast/pkg/http"
	applogger "GridCast/pkg/logger"
)

// Source names, also used as the RawObservation.Source tag.
const (
	NameLoadForecast       = "load_forecast"
	NameHistoricalPrices   = "historical_prices"
	NameGenerationForecast = "generation_forecast"
)

// HTTPSource fetches raw observations from one external provider over
// HTTP. It holds no state between runs; every Fetch is a fresh request.
type HTTPSource struct {
	name    string
	url     string
	forward bool // forward signals carry target slots, trailing ones carry lags
	client  *xhttp.Client
	l       *applogger.Logger
}

// NewHTTPSource creates a source client from its config block.
func NewHTTPSource(name string, cfg config.SourceConfig, forward bool, l *applogger.Logger) *HTTPSource {
	return &HTTPSource{
		name:    name,
		url:     cfg.URL,
		forward: forward,
		client: xhttp.NewClient(
			xhttp.WithTimeout(cfg.Timeout),
			xhttp.WithRetries(cfg.Retries, cfg.Backoff),
		),
		l: l,
	}
}

func (s *HTTPSource) Name() string { return s.name }

type observationRow struct {
	Product   string  `json:"product,omitempty"`
	Hour      int     `json:"hour"`
	Timestamp string  `json:"timestamp"`
	Value     float64 `json:"value"`
}

type observationPayload struct {
	Observations []observationRow `json:"observations"`
}

// Fetch requests observations for the window. The provider receives the
// anchor date plus either the forward horizon or the trailing history
// depth, depending on the source kind.
func (s *HTTPSource) Fetch(ctx context.Context, window domrepo.Window) ([]models.RawObservation, error) {
	hours := window.HistoryHours
	direction := "trailing"
	if s.forward {
		hours = window.HorizonHours
		direction = "forward"
	}

	var payload observationPayload
	err := s.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    s.url,
		QueryParams: map[string][]string{
			"anchor":    {window.Anchor.UTC().Format(time.RFC3339)},
			"hours":     {strconv.Itoa(hours)},
			"direction": {direction},
		},
	}, &payload)
	if err != nil {
		return nil, &models.DataUnavailableError{Source: s.name, Err: err}
	}

	out := make([]models.RawObservation, 0, len(payload.Observations))
	for _, row := range payload.Observations {
		obs, err := s.convert(row, hours)
		if err != nil {
			return nil, &models.DataUnavailableError{Source: s.name, Err: err}
		}
		out = append(out, obs)
	}

	if len(out) == 0 {
		return nil, &models.DataUnavailableError{Source: s.name, Err: fmt.Errorf("empty payload")}
	}

	if s.l != nil {
		s.l.Debug("source fetch ok",
			applogger.String("source", s.name),
			applogger.Int("observations", len(out)),
		)
	}
	return out, nil
}

func (s *HTTPSource) convert(row observationRow, maxHour int) (models.RawObservation, error) {
	if row.Hour < 1 || row.Hour > maxHour {
		return models.RawObservation{}, fmt.Errorf("hour %d out of range 1..%d", row.Hour, maxHour)
	}
	ts, err := time.Parse(time.RFC3339, row.Timestamp)
	if err != nil {
		return models.RawObservation{}, fmt.Errorf("timestamp %q: %w", row.Timestamp, err)
	}

	var product models.Product
	if row.Product != "" {
		p, ok := models.ParseProduct(row.Product)
		if !ok {
			return models.RawObservation{}, fmt.Errorf("unknown product %q", row.Product)
		}
		product = p
	}

	return models.RawObservation{
		Source:    s.name,
		Product:   product,
		Hour:      row.Hour,
		Timestamp: ts,
		Value:     row.Value,
	}, nil
}

// NewAll builds the three configured source clients in a stable order.
func NewAll(cfg *config.Config, l *applogger.Logger) []domrepo.SignalSource {
	return []domrepo.SignalSource{
		NewHTTPSource(NameLoadForecast, cfg.Sources.LoadForecast, true, l),
		NewHTTPSource(NameHistoricalPrices, cfg.Sources.HistoricalPrices, false, l),
		NewHTTPSource(NameGenerationForecast, cfg.Sources.GenerationForecast, true, l),
	}
}
