// Package overpass aggregates recent acquisitions of several satellites at a
// point into per-satellite overpass predictions.
package overpass

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/robert-malhotra/overpass-proxy/internal/backend"
	"github.com/robert-malhotra/overpass-proxy/internal/config"
	"github.com/robert-malhotra/overpass-proxy/internal/metrics"
	"github.com/robert-malhotra/overpass-proxy/internal/predict"
	"github.com/robert-malhotra/overpass-proxy/internal/timezone"
	"github.com/robert-malhotra/overpass-proxy/internal/translate"
)

// Options controls prediction and fetching.
type Options struct {
	CycleDays     int
	Iterations    int
	LookbackCount int
	FetchTimeout  time.Duration
	MaxConcurrent int
	// NominalTime is the UTC HH:mm:ss used to convert bare dates to local dates.
	NominalTime string
}

// DefaultOptions returns the standard prediction parameters.
func DefaultOptions() Options {
	return Options{
		CycleDays:     predict.DefaultCycleDays,
		Iterations:    predict.DefaultIterations,
		LookbackCount: 5,
		FetchTimeout:  30 * time.Second,
		MaxConcurrent: 4,
		NominalTime:   "00:00:00",
	}
}

// OptionsFromConfig maps the PREDICT_ configuration group to Options.
func OptionsFromConfig(cfg config.PredictConfig) Options {
	return Options{
		CycleDays:     cfg.CycleDays,
		Iterations:    cfg.Iterations,
		LookbackCount: cfg.LookbackCount,
		FetchTimeout:  cfg.FetchTimeout,
		MaxConcurrent: cfg.MaxConcurrent,
		NominalTime:   cfg.NominalTime,
	}
}

func (o Options) validate() error {
	if o.CycleDays < 1 || o.Iterations < 1 || o.LookbackCount < 1 || o.MaxConcurrent < 1 {
		return fmt.Errorf("%w: cycle days, iterations, lookback count and max concurrent must be positive", predict.ErrInvalidArgument)
	}
	if o.FetchTimeout <= 0 {
		return fmt.Errorf("%w: fetch timeout must be positive", predict.ErrInvalidArgument)
	}
	if _, err := time.Parse(timezone.Time24Layout, o.NominalTime); err != nil {
		return fmt.Errorf("%w: nominal time %q", predict.ErrInvalidArgument, o.NominalTime)
	}
	return nil
}

// Aggregator builds overpass records. Fetches for different satellites run in
// parallel, bounded by Options.MaxConcurrent.
type Aggregator struct {
	backend backend.ImageryBackend
	tz      *timezone.Converter
	opts    Options
	sem     *semaphore.Weighted
	logger  *slog.Logger
}

// NewAggregator creates an Aggregator.
func NewAggregator(b backend.ImageryBackend, tz *timezone.Converter, opts Options, logger *slog.Logger) (*Aggregator, error) {
	if b == nil || tz == nil {
		return nil, errors.New("overpass: backend and timezone converter are required")
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{
		backend: b,
		tz:      tz,
		opts:    opts,
		sem:     semaphore.NewWeighted(int64(opts.MaxConcurrent)),
		logger:  logger,
	}, nil
}

// Options returns the aggregator's options.
func (a *Aggregator) Options() Options {
	return a.opts
}

// Aggregate returns one record per satellite, in the order of sats. An
// invalid point fails the whole call; fetch failures are attached to the
// affected record while the other satellites complete.
func (a *Aggregator) Aggregate(ctx context.Context, point GeoPoint, sats []*config.SatelliteConfig) ([]Record, error) {
	if err := point.Validate(); err != nil {
		return nil, err
	}

	results := make([]Record, len(sats))
	var wg sync.WaitGroup

	for i, sat := range sats {
		wg.Add(1)
		go func(idx int, sat *config.SatelliteConfig) {
			defer wg.Done()

			if err := a.acquire(ctx); err != nil {
				results[idx] = failedRecord(sat.ID, sat.Name, fmt.Errorf("%s: %w", sat.ID, err))
				if errors.Is(err, ErrTimeout) {
					metrics.ObserveFetch(sat.ID, metrics.OutcomeTimeout, 0)
				} else {
					metrics.ObserveFetch(sat.ID, metrics.OutcomeCancelled, 0)
				}
				return
			}
			defer a.sem.Release(1)

			results[idx] = a.satelliteRecord(ctx, point, sat)
		}(i, sat)
	}

	wg.Wait()
	return results, nil
}

// acquire waits for a fetch slot. The slots are shared by every caller of
// the aggregator, so the wait is bounded by FetchTimeout as well.
func (a *Aggregator) acquire(ctx context.Context) error {
	waitCtx, cancel := context.WithTimeout(ctx, a.opts.FetchTimeout)
	defer cancel()

	if err := a.sem.Acquire(waitCtx, 1); err != nil {
		if ctx.Err() != nil {
			return ErrCancelled
		}
		return fmt.Errorf("%w: waiting for a fetch slot", ErrTimeout)
	}
	return nil
}

func (a *Aggregator) satelliteRecord(ctx context.Context, point GeoPoint, sat *config.SatelliteConfig) Record {
	history, err := a.fetch(ctx, point, sat)
	if err != nil {
		a.logger.WarnContext(ctx, "acquisition fetch failed",
			"satellite", sat.ID,
			"point", point.String(),
			"error", err,
		)
		return failedRecord(sat.ID, sat.Name, err)
	}

	rec, err := a.BuildRecord(point, sat, history)
	if err != nil {
		a.logger.ErrorContext(ctx, "building overpass record",
			"satellite", sat.ID,
			"error", err,
		)
		return failedRecord(sat.ID, sat.Name, err)
	}
	return rec
}

// fetch retrieves the recent acquisitions under the per-satellite timeout and
// maps context failures to ErrTimeout or ErrCancelled.
func (a *Aggregator) fetch(ctx context.Context, point GeoPoint, sat *config.SatelliteConfig) (*backend.AcquisitionHistory, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, a.opts.FetchTimeout)
	defer cancel()

	start := time.Now()
	history, err := a.backend.RecentAcquisitions(fetchCtx, point.Lat, point.Lon, sat, a.opts.LookbackCount)
	elapsed := time.Since(start)

	switch {
	case err == nil:
		outcome := metrics.OutcomeSuccess
		if history.Empty() {
			outcome = metrics.OutcomeEmpty
		}
		metrics.ObserveFetch(sat.ID, outcome, elapsed)
		return history, nil
	case ctx.Err() != nil:
		metrics.ObserveFetch(sat.ID, metrics.OutcomeCancelled, elapsed)
		return nil, fmt.Errorf("%s: %w", sat.ID, ErrCancelled)
	case errors.Is(err, context.DeadlineExceeded) || fetchCtx.Err() != nil:
		metrics.ObserveFetch(sat.ID, metrics.OutcomeTimeout, elapsed)
		return nil, fmt.Errorf("%s: %w after %s", sat.ID, ErrTimeout, a.opts.FetchTimeout)
	default:
		metrics.ObserveFetch(sat.ID, metrics.OutcomeError, elapsed)
		return nil, fmt.Errorf("%s: %w: %v", sat.ID, ErrExternalFetch, err)
	}
}

// BuildRecord derives the overpass record of sat from its acquisition history.
// An empty history yields a record with empty fields and no error.
func (a *Aggregator) BuildRecord(point GeoPoint, sat *config.SatelliteConfig, history *backend.AcquisitionHistory) (Record, error) {
	rec := emptyRecord(sat.ID, sat.Name)
	if history.Empty() {
		return rec, nil
	}

	latest := history.Latest
	if latest == "" {
		latest = translate.FormatAcquisition(history.Timestamps[0])
	}
	clock, err := translate.ClockTime(latest)
	if err != nil {
		return Record{}, err
	}
	latestDate, _, _ := strings.Cut(latest, " ")
	local, err := a.tz.ToLocalTimeOfDay(point.Lat, point.Lon, latestDate, clock)
	if err != nil {
		return Record{}, err
	}
	rec.TimeUTC = clock
	rec.TimeLocal = &local

	predicted, err := predict.Merge(history.Timestamps, a.opts.CycleDays, a.opts.Iterations)
	if err != nil {
		return Record{}, err
	}
	past := predict.NewDateSet(history.Timestamps...)

	predictedLocal, err := a.localDates(point, predicted)
	if err != nil {
		return Record{}, err
	}
	pastLocal, err := a.localDates(point, past)
	if err != nil {
		return Record{}, err
	}

	rec.PredictedDatesUTC = predicted
	rec.PredictedDatesLocal = predictedLocal
	rec.PastDatesUTC = past
	rec.PastDatesLocal = pastLocal
	rec.AllDatesUTC = concat(predicted, past)
	rec.AllDatesLocal = concat(predictedLocal, pastLocal)
	return rec, nil
}

// localDates converts each UTC date, taken at the nominal time of day, to the
// local calendar date at the point.
func (a *Aggregator) localDates(point GeoPoint, dates predict.DateSet) (predict.DateSet, error) {
	out := make(predict.DateSet, 0, len(dates))
	for _, d := range dates {
		local, err := a.tz.ToLocalDate(point.Lat, point.Lon, predict.FormatDate(d), a.opts.NominalTime)
		if err != nil {
			return nil, err
		}
		day, err := predict.ParseDate(local)
		if err != nil {
			return nil, err
		}
		out = append(out, day)
	}
	return out, nil
}
