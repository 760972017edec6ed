package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Model server (Ollama) configuration.
	OllamaBaseURL     string
	OllamaTimeout     time.Duration
	OllamaPullTimeout time.Duration
	VisionModel       string
	TextModel         string

	// Station data API configuration.
	StationAPIBase    string
	StationAPITimeout time.Duration

	// Uploaded and rendered chart storage.
	UploadDir string

	// Default chart raster dimensions before pixel-density scaling.
	ChartWidth  int
	ChartHeight int

	// Optional analysis event publishing (feature-flagged via KAFKA_ENABLED).
	KafkaBrokers []string
	KafkaTopic   string
	KafkaEnabled bool
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := envDuration("SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}
	ollamaTimeout, err := envDuration("OLLAMA_TIMEOUT", 300*time.Second)
	if err != nil {
		return nil, err
	}
	pullTimeout, err := envDuration("OLLAMA_PULL_TIMEOUT", 600*time.Second)
	if err != nil {
		return nil, err
	}
	stationTimeout, err := envDuration("STATION_API_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}
	chartWidth, err := envInt("CHART_WIDTH", 960)
	if err != nil {
		return nil, err
	}
	chartHeight, err := envInt("CHART_HEIGHT", 480)
	if err != nil {
		return nil, err
	}

	kafkaBrokers := splitList(os.Getenv("KAFKA_BROKERS"))
	kafkaEnabled := false
	if v := os.Getenv("KAFKA_ENABLED"); v != "" {
		kafkaEnabled = v == "true"
	}

	cfg := &Config{
		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8000"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		OllamaBaseURL:     envOrDefault("OLLAMA_BASE_URL", "http://localhost:11434"),
		OllamaTimeout:     ollamaTimeout,
		OllamaPullTimeout: pullTimeout,
		VisionModel:       envOrDefault("VISION_MODEL", "moondream"),
		TextModel:         envOrDefault("TEXT_MODEL", "llama3.2:1b"),

		StationAPIBase:    envOrDefault("STATION_API_BASE", "https://hpc.landmos.com/apiv3"),
		StationAPITimeout: stationTimeout,

		UploadDir: envOrDefault("UPLOAD_DIR", "uploads"),

		ChartWidth:  chartWidth,
		ChartHeight: chartHeight,

		KafkaBrokers: kafkaBrokers,
		KafkaTopic:   envOrDefault("KAFKA_TOPIC", "station-analyses"),
		KafkaEnabled: kafkaEnabled,
	}

	if cfg.StationAPIBase == "" {
		return nil, errors.New("STATION_API_BASE is required")
	}
	if cfg.OllamaBaseURL == "" {
		return nil, errors.New("OLLAMA_BASE_URL is required")
	}
	if cfg.ChartWidth <= 0 || cfg.ChartHeight <= 0 {
		return nil, errors.New("CHART_WIDTH and CHART_HEIGHT must be positive")
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is not set")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return d, nil
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	var n int
	if _, err := fmt.Sscanf(v, "%d", &n); err != nil {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return n, nil
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
