// Package server provides a public API for embedding the overpass service.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/robert-malhotra/overpass-proxy/internal/api"
	"github.com/robert-malhotra/overpass-proxy/internal/backend"
	"github.com/robert-malhotra/overpass-proxy/internal/config"
	"github.com/robert-malhotra/overpass-proxy/internal/earthengine"
	"github.com/robert-malhotra/overpass-proxy/internal/overpass"
	"github.com/robert-malhotra/overpass-proxy/internal/scheduler"
	"github.com/robert-malhotra/overpass-proxy/internal/timezone"
	"github.com/robert-malhotra/overpass-proxy/internal/translate"
)

// Options configures the overpass server.
type Options struct {
	// BaseURL is the public-facing URL for self-referential links (required).
	// Example: "https://api.example.com/overpass" or "http://localhost:8080"
	BaseURL string

	// EarthEngineURL is the Earth Engine REST API base URL.
	// Default: "https://earthengine.googleapis.com"
	EarthEngineURL string

	// Project is the Cloud project billed for Earth Engine requests.
	Project string

	// HTTPClient is used for Earth Engine requests. Pass an OAuth2 client
	// (see earthengine.NewDefaultHTTPClient) for authenticated access.
	// Default: an unauthenticated client with Timeout
	HTTPClient *http.Client

	// Timeout is the Earth Engine request timeout.
	// Default: 30s
	Timeout time.Duration

	// LookbackDays bounds how far back acquisitions are searched.
	// Default: 120
	LookbackDays int

	// Satellites overrides the satellite registry.
	// Default: config.DefaultRegistry()
	Satellites *config.SatelliteRegistry

	// Resolver maps coordinates to timezone names.
	// Default: the embedded tzf dataset
	Resolver timezone.Resolver

	// Predict holds prediction parameters; zero fields take their defaults
	// (16 day cycle, 10 iterations, 5 acquisitions, 30s fetch timeout).
	Predict overpass.Options

	// CacheTTL is how long aggregations are cached. Negative disables the cache.
	// Default: 15m
	CacheTTL time.Duration

	// WatchPoints are refreshed every RefreshInterval (default 1h).
	WatchPoints     []overpass.GeoPoint
	RefreshInterval time.Duration

	// Title and Description appear on the landing page.
	Title       string
	Description string

	// DefaultLimit and MaxLimit bound the acquisitions endpoint.
	// Default: 5 and 50
	DefaultLimit int
	MaxLimit     int

	// DisableAcquisitions removes the acquisitions endpoint.
	DisableAcquisitions bool

	// DisableMetrics removes the /metrics endpoint and HTTP metrics.
	DisableMetrics bool

	// Logger is the slog logger to use.
	// Default: slog.Default()
	Logger *slog.Logger
}

// Server is an overpass server that can be embedded in another application.
type Server struct {
	router    chi.Router
	service   *overpass.Service
	cache     *overpass.Cache
	scheduler *scheduler.Scheduler
}

// New creates a new overpass server with the given options.
func New(opts Options) (*Server, error) {
	if opts.BaseURL == "" {
		return nil, errors.New("server: BaseURL is required")
	}
	if opts.EarthEngineURL == "" {
		opts.EarthEngineURL = "https://earthengine.googleapis.com"
	}
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.LookbackDays == 0 {
		opts.LookbackDays = 120
	}
	if opts.CacheTTL == 0 {
		opts.CacheTTL = 15 * time.Minute
	}
	if opts.RefreshInterval == 0 {
		opts.RefreshInterval = time.Hour
	}
	if opts.Title == "" {
		opts.Title = "Overpass API"
	}
	if opts.Description == "" {
		opts.Description = "Satellite overpass date prediction backed by Earth Engine"
	}
	if opts.DefaultLimit == 0 {
		opts.DefaultLimit = 5
	}
	if opts.MaxLimit == 0 {
		opts.MaxLimit = 50
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Satellites == nil {
		opts.Satellites = config.DefaultRegistry()
	}
	opts.Predict = withPredictDefaults(opts.Predict)

	if opts.Resolver == nil {
		resolver, err := timezone.NewFinderResolver()
		if err != nil {
			return nil, err
		}
		opts.Resolver = resolver
	}

	cfg := &config.Config{
		EarthEngine: config.EarthEngineConfig{
			BaseURL:         opts.EarthEngineURL,
			Project:         opts.Project,
			Timeout:         opts.Timeout,
			LookbackDays:    opts.LookbackDays,
			PageSize:        100,
			MaxPages:        5,
			MaxRetries:      earthengine.DefaultBackoff.MaxRetries,
			BreakerFailures: 5,
			BreakerTimeout:  30 * time.Second,
		},
		Predict: config.PredictConfig{
			CycleDays:     opts.Predict.CycleDays,
			Iterations:    opts.Predict.Iterations,
			LookbackCount: opts.Predict.LookbackCount,
			FetchTimeout:  opts.Predict.FetchTimeout,
			MaxConcurrent: opts.Predict.MaxConcurrent,
			NominalTime:   opts.Predict.NominalTime,
		},
		Cache: config.CacheConfig{
			Enabled:         opts.CacheTTL > 0,
			TTL:             opts.CacheTTL,
			CleanupInterval: time.Minute,
			CellLevel:       20,
		},
		Scheduler: config.SchedulerConfig{
			Enabled:  len(opts.WatchPoints) > 0,
			Interval: opts.RefreshInterval,
		},
		API: config.APIConfig{
			BaseURL:     opts.BaseURL,
			Title:       opts.Title,
			Description: opts.Description,
		},
		Features: config.FeatureConfig{
			EnableAcquisitions: !opts.DisableAcquisitions,
			EnableMetrics:      !opts.DisableMetrics,
			DefaultLimit:       opts.DefaultLimit,
			MaxLimit:           opts.MaxLimit,
		},
	}

	return build(cfg, Dependencies{
		HTTPClient:  opts.HTTPClient,
		Resolver:    opts.Resolver,
		Satellites:  opts.Satellites,
		WatchPoints: opts.WatchPoints,
		Logger:      opts.Logger,
	})
}

// Dependencies are the collaborators NewFromConfig cannot build from
// environment configuration alone. Zero fields are built from cfg.
type Dependencies struct {
	HTTPClient  *http.Client
	Resolver    timezone.Resolver
	Satellites  *config.SatelliteRegistry
	WatchPoints []overpass.GeoPoint
	Logger      *slog.Logger
}

// NewFromConfig creates a server from a loaded configuration. With
// EE_CREDENTIALS=adc it authorises Earth Engine requests with Application
// Default Credentials.
func NewFromConfig(ctx context.Context, cfg *config.Config, deps Dependencies) (*Server, error) {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	if deps.Satellites == nil {
		if cfg.SatellitesDir != "" {
			registry, err := config.LoadSatellites(cfg.SatellitesDir)
			if err != nil {
				return nil, fmt.Errorf("failed to load satellites: %w", err)
			}
			deps.Satellites = registry
		} else {
			deps.Satellites = config.DefaultRegistry()
		}
	}

	if deps.HTTPClient == nil && cfg.EarthEngine.Credentials == "adc" {
		client, err := earthengine.NewDefaultHTTPClient(ctx, cfg.EarthEngine.Timeout)
		if err != nil {
			return nil, err
		}
		deps.HTTPClient = client
	}

	if deps.Resolver == nil {
		resolver, err := timezone.NewFinderResolver()
		if err != nil {
			return nil, err
		}
		deps.Resolver = resolver
	}

	if deps.WatchPoints == nil && cfg.Scheduler.Enabled {
		points, err := cfg.Scheduler.Points()
		if err != nil {
			return nil, err
		}
		for _, p := range points {
			deps.WatchPoints = append(deps.WatchPoints, overpass.GeoPoint{Lat: p.Lat, Lon: p.Lon})
		}
	}

	return build(cfg, deps)
}

func build(cfg *config.Config, deps Dependencies) (*Server, error) {
	logger := deps.Logger

	client := earthengine.NewClient(cfg.EarthEngine.BaseURL, cfg.EarthEngine.Project, cfg.EarthEngine.Timeout).
		WithLogger(logger).
		WithBreaker(uint32(cfg.EarthEngine.BreakerFailures), cfg.EarthEngine.BreakerTimeout)
	if deps.HTTPClient != nil {
		client = client.WithHTTPClient(deps.HTTPClient)
	}
	backoff := earthengine.DefaultBackoff
	backoff.MaxRetries = cfg.EarthEngine.MaxRetries
	client = client.WithBackoff(backoff)

	translator := translate.NewTranslator(cfg.API.BaseURL, cfg.EarthEngine.BaseURL, cfg.EarthEngine.PageSize, logger)
	imagery := backend.NewEarthEngineBackend(
		client,
		translator,
		time.Duration(cfg.EarthEngine.LookbackDays)*24*time.Hour,
		cfg.EarthEngine.MaxPages,
		logger,
	)
	logger.Info("using Earth Engine backend",
		"base_url", cfg.EarthEngine.BaseURL,
		"project", cfg.EarthEngine.Project,
		"authenticated", deps.HTTPClient != nil,
	)

	tz := timezone.NewConverter(deps.Resolver)
	aggregator, err := overpass.NewAggregator(imagery, tz, overpass.OptionsFromConfig(cfg.Predict), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create aggregator: %w", err)
	}

	var cache *overpass.Cache
	if cfg.Cache.Enabled {
		cache = overpass.NewCache(cfg.Cache.TTL, cfg.Cache.CleanupInterval, cfg.Cache.CellLevel)
		logger.Info("initialized prediction cache",
			"ttl", cfg.Cache.TTL,
			"cleanup_interval", cfg.Cache.CleanupInterval,
			"cell_level", cfg.Cache.CellLevel,
		)
	}
	service := overpass.NewService(aggregator, deps.Satellites, cache, logger)

	handlers := api.NewHandlers(cfg, service, imagery, translator, deps.Satellites, tz, logger).
		WithReadiness(func(ctx context.Context) error {
			if state := client.BreakerState(); state == "open" {
				return fmt.Errorf("earth engine circuit breaker is %s", state)
			}
			return nil
		})

	s := &Server{
		router:  api.NewRouter(handlers, logger),
		service: service,
		cache:   cache,
	}

	if len(deps.WatchPoints) > 0 {
		s.scheduler = scheduler.New(deps.WatchPoints, cfg.Scheduler.Interval, cfg.Predict.FetchTimeout*2, service, logger)
		if err := s.scheduler.Start(); err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to start scheduler: %w", err)
		}
	}

	return s, nil
}

func withPredictDefaults(o overpass.Options) overpass.Options {
	def := overpass.DefaultOptions()
	if o.CycleDays == 0 {
		o.CycleDays = def.CycleDays
	}
	if o.Iterations == 0 {
		o.Iterations = def.Iterations
	}
	if o.LookbackCount == 0 {
		o.LookbackCount = def.LookbackCount
	}
	if o.FetchTimeout == 0 {
		o.FetchTimeout = def.FetchTimeout
	}
	if o.MaxConcurrent == 0 {
		o.MaxConcurrent = def.MaxConcurrent
	}
	if o.NominalTime == "" {
		o.NominalTime = def.NominalTime
	}
	return o
}

// Router returns the chi.Router for mounting in another application.
func (s *Server) Router() chi.Router {
	return s.router
}

// Service returns the overpass service for direct use.
func (s *Server) Service() *overpass.Service {
	return s.service
}

// Close stops background goroutines (scheduler and cache cleanup).
func (s *Server) Close() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
	if s.cache != nil {
		s.cache.Stop()
	}
}
