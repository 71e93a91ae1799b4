package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const minimalYAML = `
environment: test
storage:
  type: memory
sources:
  load_forecast:
    url: http://localhost:9001/load
  historical_prices:
    url: http://localhost:9001/prices
  generation_forecast:
    url: http://localhost:9001/generation
forecast:
  model_file: config/models.json
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Forecast.HorizonHours != 72 {
		t.Fatalf("horizon = %d", cfg.Forecast.HorizonHours)
	}
	if cfg.Forecast.HistoryHours != 168 {
		t.Fatalf("history = %d", cfg.Forecast.HistoryHours)
	}
	if len(cfg.Forecast.QuantileLevels) != 5 || cfg.Forecast.QuantileLevels[0] != 0.10 {
		t.Fatalf("levels = %v", cfg.Forecast.QuantileLevels)
	}
	if cfg.Forecast.RunDeadline != 10*time.Minute {
		t.Fatalf("deadline = %v", cfg.Forecast.RunDeadline)
	}
	if cfg.Forecast.Timezone != "UTC" {
		t.Fatalf("timezone = %s", cfg.Forecast.Timezone)
	}
}

func TestLoadRejectsBadConfig(t *testing.T) {
	cases := map[string]string{
		"missing environment": `
storage:
  type: memory
sources:
  load_forecast: {url: http://x}
  historical_prices: {url: http://x}
  generation_forecast: {url: http://x}
forecast:
  model_file: m.json
`,
		"bad storage type": `
environment: test
storage:
  type: postgres
sources:
  load_forecast: {url: http://x}
  historical_prices: {url: http://x}
  generation_forecast: {url: http://x}
forecast:
  model_file: m.json
`,
		"missing source url": `
environment: test
storage:
  type: memory
sources:
  load_forecast: {url: http://x}
forecast:
  model_file: m.json
`,
		"missing model file": `
environment: test
storage:
  type: memory
sources:
  load_forecast: {url: http://x}
  historical_prices: {url: http://x}
  generation_forecast: {url: http://x}
`,
		"bad quantile order": `
environment: test
storage:
  type: memory
sources:
  load_forecast: {url: http://x}
  historical_prices: {url: http://x}
  generation_forecast: {url: http://x}
forecast:
  model_file: m.json
  quantile_levels: [0.5, 0.1]
`,
		"bad trigger time": `
environment: test
storage:
  type: memory
sources:
  load_forecast: {url: http://x}
  historical_prices: {url: http://x}
  generation_forecast: {url: http://x}
forecast:
  model_file: m.json
  trigger_time: "6am"
`,
	}
	for name, content := range cases {
		content := content
		t.Run(name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, content)); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", "memory")
	t.Setenv("MODEL_FILE", "/tmp/other_models.json")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg, err := LoadWithEnv(writeConfig(t, minimalYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Forecast.ModelFile != "/tmp/other_models.json" {
		t.Fatalf("model file = %s", cfg.Forecast.ModelFile)
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[1] != "k2:9092" {
		t.Fatalf("brokers = %v", cfg.Kafka.Brokers)
	}
}
