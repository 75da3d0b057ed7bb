// Package config provides configuration management for the overpass prediction service.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds the complete application configuration loaded from environment variables.
type Config struct {
	Server      ServerConfig      `envPrefix:"SERVER_"`
	EarthEngine EarthEngineConfig `envPrefix:"EE_"`
	Predict     PredictConfig     `envPrefix:"PREDICT_"`
	Cache       CacheConfig       `envPrefix:"CACHE_"`
	Scheduler   SchedulerConfig   `envPrefix:"SCHEDULER_"`
	API         APIConfig         `envPrefix:"API_"`
	Features    FeatureConfig     `envPrefix:"FEATURE_"`
	Logging     LoggingConfig     `envPrefix:"LOG_"`

	// SatellitesDir optionally points at a directory of satellite JSON
	// definitions. The built-in list is used when empty.
	SatellitesDir string `env:"SATELLITES_DIR" envDefault:""`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Host            string        `env:"HOST" envDefault:"0.0.0.0"`
	Port            int           `env:"PORT" envDefault:"8080"`
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"30s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"90s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	CORSOrigins     []string      `env:"CORS_ORIGINS" envDefault:"*" envSeparator:","`
}

// EarthEngineConfig contains Earth Engine REST client configuration.
type EarthEngineConfig struct {
	BaseURL string `env:"BASE_URL" envDefault:"https://earthengine.googleapis.com"`
	Project string `env:"PROJECT" envDefault:""`
	// Credentials is "adc" for Application Default Credentials or "none" for
	// unauthenticated requests (local fakes and proxies).
	Credentials     string        `env:"CREDENTIALS" envDefault:"adc"`
	Timeout         time.Duration `env:"TIMEOUT" envDefault:"30s"`
	LookbackDays    int           `env:"LOOKBACK_DAYS" envDefault:"120"`
	PageSize        int           `env:"PAGE_SIZE" envDefault:"100"`
	MaxPages        int           `env:"MAX_PAGES" envDefault:"5"`
	MaxRetries      int           `env:"MAX_RETRIES" envDefault:"3"`
	BreakerFailures int           `env:"BREAKER_FAILURES" envDefault:"5"`
	BreakerTimeout  time.Duration `env:"BREAKER_TIMEOUT" envDefault:"30s"`
}

// PredictConfig contains overpass prediction parameters.
type PredictConfig struct {
	CycleDays     int           `env:"CYCLE_DAYS" envDefault:"16"`
	Iterations    int           `env:"ITERATIONS" envDefault:"10"`
	LookbackCount int           `env:"LOOKBACK_COUNT" envDefault:"5"`
	FetchTimeout  time.Duration `env:"FETCH_TIMEOUT" envDefault:"30s"`
	MaxConcurrent int           `env:"MAX_CONCURRENT" envDefault:"4"`
	// NominalTime is the UTC time of day used when converting a bare
	// predicted or past date to a local date.
	NominalTime string `env:"NOMINAL_TIME" envDefault:"00:00:00"`
}

// CacheConfig contains prediction cache configuration.
type CacheConfig struct {
	Enabled         bool          `env:"ENABLED" envDefault:"true"`
	TTL             time.Duration `env:"TTL" envDefault:"15m"`
	CleanupInterval time.Duration `env:"CLEANUP_INTERVAL" envDefault:"1m"`
	// CellLevel is the S2 cell level points are bucketed to for cache keys.
	CellLevel int `env:"CELL_LEVEL" envDefault:"20"`
}

// SchedulerConfig contains the watch-point refresh configuration.
type SchedulerConfig struct {
	Enabled  bool          `env:"ENABLED" envDefault:"false"`
	Interval time.Duration `env:"INTERVAL" envDefault:"1h"`
	// WatchPoints is a semicolon separated list of "lat,lon" pairs.
	WatchPoints []string `env:"WATCH_POINTS" envDefault:"" envSeparator:";"`
}

// APIConfig contains public API metadata.
type APIConfig struct {
	BaseURL     string `env:"BASE_URL"` // Public-facing URL (required)
	Title       string `env:"TITLE" envDefault:"Overpass API"`
	Description string `env:"DESCRIPTION" envDefault:"Satellite overpass date prediction backed by Earth Engine"`
}

// FeatureConfig contains feature flags and limits.
type FeatureConfig struct {
	EnableAcquisitions bool `env:"ENABLE_ACQUISITIONS" envDefault:"true"`
	EnableMetrics      bool `env:"ENABLE_METRICS" envDefault:"true"`
	DefaultLimit       int  `env:"DEFAULT_LIMIT" envDefault:"5"`
	MaxLimit           int  `env:"MAX_LIMIT" envDefault:"50"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level  string `env:"LEVEL" envDefault:"info"`
	Format string `env:"FORMAT" envDefault:"json"`
}

// WatchPoint is a coordinate refreshed periodically by the scheduler.
type WatchPoint struct {
	Lat float64
	Lon float64
}

// Load parses configuration from environment variables.
// It returns an error if required fields are missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{}

	opts := env.Options{
		RequiredIfNoDef: true,
	}

	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server read timeout must be positive, got %s", c.Server.ReadTimeout)
	}

	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server write timeout must be positive, got %s", c.Server.WriteTimeout)
	}

	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("server shutdown timeout must be positive, got %s", c.Server.ShutdownTimeout)
	}

	// Earth Engine
	if c.EarthEngine.BaseURL == "" {
		return fmt.Errorf("earth engine base URL is required")
	}

	switch c.EarthEngine.Credentials {
	case "adc":
		if c.EarthEngine.Project == "" {
			return fmt.Errorf("earth engine project is required when credentials is 'adc'")
		}
	case "none":
	default:
		return fmt.Errorf("earth engine credentials must be 'adc' or 'none', got %q", c.EarthEngine.Credentials)
	}

	if c.EarthEngine.Timeout <= 0 {
		return fmt.Errorf("earth engine timeout must be positive, got %s", c.EarthEngine.Timeout)
	}

	if c.EarthEngine.LookbackDays < 1 {
		return fmt.Errorf("earth engine lookback days must be at least 1, got %d", c.EarthEngine.LookbackDays)
	}

	if c.EarthEngine.PageSize < 1 || c.EarthEngine.MaxPages < 1 {
		return fmt.Errorf("earth engine page size and max pages must be at least 1")
	}

	if c.EarthEngine.MaxRetries < 0 {
		return fmt.Errorf("earth engine max retries must not be negative, got %d", c.EarthEngine.MaxRetries)
	}

	// Prediction
	if c.Predict.CycleDays < 1 {
		return fmt.Errorf("predict cycle days must be at least 1, got %d", c.Predict.CycleDays)
	}

	if c.Predict.Iterations < 1 {
		return fmt.Errorf("predict iterations must be at least 1, got %d", c.Predict.Iterations)
	}

	if c.Predict.LookbackCount < 1 {
		return fmt.Errorf("predict lookback count must be at least 1, got %d", c.Predict.LookbackCount)
	}

	if c.Predict.FetchTimeout <= 0 {
		return fmt.Errorf("predict fetch timeout must be positive, got %s", c.Predict.FetchTimeout)
	}

	if c.Predict.MaxConcurrent < 1 {
		return fmt.Errorf("predict max concurrent must be at least 1, got %d", c.Predict.MaxConcurrent)
	}

	if _, err := time.Parse("15:04:05", c.Predict.NominalTime); err != nil {
		return fmt.Errorf("predict nominal time must be HH:mm:ss, got %q", c.Predict.NominalTime)
	}

	// Cache
	if c.Cache.Enabled {
		if c.Cache.TTL <= 0 {
			return fmt.Errorf("cache TTL must be positive, got %s", c.Cache.TTL)
		}
		if c.Cache.CleanupInterval <= 0 {
			return fmt.Errorf("cache cleanup interval must be positive, got %s", c.Cache.CleanupInterval)
		}
		if c.Cache.CellLevel < 0 || c.Cache.CellLevel > 30 {
			return fmt.Errorf("cache cell level must be between 0 and 30, got %d", c.Cache.CellLevel)
		}
	}

	// Scheduler
	if c.Scheduler.Enabled {
		if c.Scheduler.Interval < time.Minute {
			return fmt.Errorf("scheduler interval must be at least 1m, got %s", c.Scheduler.Interval)
		}
		points, err := c.Scheduler.Points()
		if err != nil {
			return err
		}
		if len(points) == 0 {
			return fmt.Errorf("scheduler is enabled but no watch points are configured")
		}
	}

	// API
	if c.API.BaseURL == "" {
		return fmt.Errorf("API base URL is required")
	}

	// Features
	if c.Features.DefaultLimit < 1 {
		return fmt.Errorf("default limit must be at least 1, got %d", c.Features.DefaultLimit)
	}

	if c.Features.MaxLimit < c.Features.DefaultLimit {
		return fmt.Errorf("max limit (%d) must be >= default limit (%d)", c.Features.MaxLimit, c.Features.DefaultLimit)
	}

	// Logging
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level %q, must be one of: debug, info, warn, error", c.Logging.Level)
	}

	validLogFormats := map[string]bool{
		"json": true,
		"text": true,
	}
	if !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("invalid log format %q, must be one of: json, text", c.Logging.Format)
	}

	return nil
}

// Address returns the server listen address in the format "host:port".
func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Points parses the configured watch points.
func (s *SchedulerConfig) Points() ([]WatchPoint, error) {
	points := make([]WatchPoint, 0, len(s.WatchPoints))
	for _, raw := range s.WatchPoints {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}

		parts := strings.Split(raw, ",")
		if len(parts) != 2 {
			return nil, fmt.Errorf("watch point %q must be \"lat,lon\"", raw)
		}

		lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
		if err != nil {
			return nil, fmt.Errorf("watch point %q: invalid latitude: %w", raw, err)
		}
		lon, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("watch point %q: invalid longitude: %w", raw, err)
		}
		if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
			return nil, fmt.Errorf("watch point %q is out of range", raw)
		}

		points = append(points, WatchPoint{Lat: lat, Lon: lon})
	}
	return points, nil
}
