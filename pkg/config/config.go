package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type SourceConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
	Retries int           `yaml:"retries"`
	Backoff time.Duration `yaml:"backoff"`
}

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		Output string `yaml:"output"`
	} `yaml:"logging"`
	Storage struct {
		Type       string `yaml:"type"` // clickhouse or memory
		ClickHouse struct {
			Host             string        `yaml:"host"`
			Port             int           `yaml:"port"`
			Database         string        `yaml:"database"`
			User             string        `yaml:"user"`
			Password         string        `yaml:"password"`
			UseHTTP          bool          `yaml:"use_http"`
			DialTimeout      time.Duration `yaml:"dial_timeout"`
			ReadTimeout      time.Duration `yaml:"read_timeout"`
			WriteTimeout     time.Duration `yaml:"write_timeout"`
			MaxExecutionTime time.Duration `yaml:"max_execution_time"`
		} `yaml:"clickhouse"`
	} `yaml:"storage"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		Topic        string   `yaml:"topic"`
		RequiredAcks int      `yaml:"required_acks"`
		Compression  string   `yaml:"compression"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts"`
			Linger       time.Duration `yaml:"linger"`
			BatchBytes   int           `yaml:"batch_bytes"`
			BatchSize    int           `yaml:"batch_size"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
			ReadTimeout  time.Duration `yaml:"read_timeout"`
		} `yaml:"producer"`
	} `yaml:"kafka"`
	Cache struct {
		Enabled bool          `yaml:"enabled"`
		Type    string        `yaml:"type"` // memory or redis
		TTL     time.Duration `yaml:"ttl"`
		Redis   struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
		} `yaml:"redis"`
	} `yaml:"cache"`
	Sources struct {
		LoadForecast       SourceConfig `yaml:"load_forecast"`
		HistoricalPrices   SourceConfig `yaml:"historical_prices"`
		GenerationForecast SourceConfig `yaml:"generation_forecast"`
	} `yaml:"sources"`
	Forecast struct {
		HorizonHours   int           `yaml:"horizon_hours"`
		HistoryHours   int           `yaml:"history_hours"`
		QuantileLevels []float64     `yaml:"quantile_levels"`
		MaxWorkers     int           `yaml:"max_workers"`
		RunDeadline    time.Duration `yaml:"run_deadline"`
		ModelFile      string        `yaml:"model_file"`
		MaxAbsValue    float64       `yaml:"max_abs_value"`
		TriggerTime    string        `yaml:"trigger_time"` // HH:MM local time
		Timezone       string        `yaml:"timezone"`
	} `yaml:"forecast"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	c.applyDefaults()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("STORAGE_BACKEND"); v != "" {
		c.Storage.Type = v
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.Storage.ClickHouse.Host = v
	}
	if v := os.Getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.Storage.ClickHouse.Password = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("KAFKA_TOPIC"); v != "" {
		c.Kafka.Topic = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Cache.Redis.Addr = v
	}
	if v := os.Getenv("MODEL_FILE"); v != "" {
		c.Forecast.ModelFile = v
	}

	return c, nil
}

func (c *Config) applyDefaults() {
	if c.Forecast.HorizonHours == 0 {
		c.Forecast.HorizonHours = 72
	}
	if c.Forecast.HistoryHours == 0 {
		c.Forecast.HistoryHours = 168
	}
	if len(c.Forecast.QuantileLevels) == 0 {
		c.Forecast.QuantileLevels = []float64{0.10, 0.25, 0.50, 0.75, 0.90}
	}
	if c.Forecast.MaxWorkers == 0 {
		c.Forecast.MaxWorkers = 16
	}
	if c.Forecast.RunDeadline == 0 {
		c.Forecast.RunDeadline = 10 * time.Minute
	}
	if c.Forecast.MaxAbsValue == 0 {
		c.Forecast.MaxAbsValue = 10000
	}
	if c.Forecast.Timezone == "" {
		c.Forecast.Timezone = "UTC"
	}
	if c.Cache.Type == "" {
		c.Cache.Type = "memory"
	}
	if c.Cache.TTL == 0 {
		c.Cache.TTL = 30 * time.Second
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Storage.Type != "clickhouse" && c.Storage.Type != "memory" {
		return fmt.Errorf("storage.type must be 'clickhouse' or 'memory', got '%s'", c.Storage.Type)
	}
	if c.Storage.Type == "clickhouse" && c.Storage.ClickHouse.Host == "" {
		return fmt.Errorf("storage.clickhouse.host is required")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.Forecast.ModelFile == "" {
		return fmt.Errorf("forecast.model_file is required")
	}
	if c.Sources.LoadForecast.URL == "" || c.Sources.HistoricalPrices.URL == "" || c.Sources.GenerationForecast.URL == "" {
		return fmt.Errorf("all three source urls are required")
	}
	for i, lv := range c.Forecast.QuantileLevels {
		if lv <= 0 || lv >= 1 {
			return fmt.Errorf("forecast.quantile_levels must be in (0, 1), got %v", lv)
		}
		if i > 0 && lv <= c.Forecast.QuantileLevels[i-1] {
			return fmt.Errorf("forecast.quantile_levels must be strictly increasing")
		}
	}
	if c.Forecast.TriggerTime != "" {
		if _, err := time.Parse("15:04", c.Forecast.TriggerTime); err != nil {
			return fmt.Errorf("forecast.trigger_time must be HH:MM, got '%s'", c.Forecast.TriggerTime)
		}
	}
	return nil
}
