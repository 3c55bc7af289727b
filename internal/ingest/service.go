// Package ingest pulls raw readings from the meters' configured sources
// and normalizes them into the hourly curve store.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"plantmeter-cloud/internal/calendar"
	curve "plantmeter-cloud/internal/curve/domain"
	fleet "plantmeter-cloud/internal/fleet/domain"
	"plantmeter-cloud/internal/observability/metrics"
	"plantmeter-cloud/internal/rawsource"
)

// SourceOpener opens a raw-reading source for a meter URI. Injected so
// tests can substitute fixtures for real backends.
type SourceOpener func(uri string) (rawsource.Source, error)

// Result reports one meter's ingestion outcome. Upserted readings stay
// applied even when Err is set: re-running the same range is idempotent,
// so a partial run is safe to retry.
type Result struct {
	MeterID    string
	Upserted   int
	Malformed  int
	Unresolved []calendar.LocalMoment
	Err        error
}

// Failed reports whether the run hit a source or storage failure.
func (r Result) Failed() bool {
	return r.Err != nil
}

// Service is the ingestion pipeline.
type Service struct {
	store    curve.Store
	resolver *calendar.Resolver
	provider fleet.Provider
	open     SourceOpener
	logger   *log.Logger
}

// NewService constructs the pipeline.
func NewService(store curve.Store, resolver *calendar.Resolver, provider fleet.Provider, open SourceOpener, logger *log.Logger) (*Service, error) {
	if store == nil {
		return nil, errors.New("ingest: nil store")
	}
	if resolver == nil {
		return nil, errors.New("ingest: nil resolver")
	}
	if provider == nil {
		return nil, errors.New("ingest: nil fleet provider")
	}
	if open == nil {
		open = rawsource.Open
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Service{store: store, resolver: resolver, provider: provider, open: open, logger: logger}, nil
}

// UpdateMeter ingests one meter over the inclusive local date range.
// Raw rows that resolve to a valid instant are upserted; rows the source
// could not parse or whose local moment does not exist are reported, not
// written. No zero-fill rows are manufactured for silent hours.
func (s *Service) UpdateMeter(ctx context.Context, meter fleet.Meter, first, last calendar.Date) Result {
	started := time.Now()
	result := s.updateMeter(ctx, meter, first, last)
	metrics.ObserveIngest(result.Upserted, result.Malformed, len(result.Unresolved), result.Failed(), time.Since(started))
	if result.Failed() {
		s.logger.Printf("ingest meter=%s range=%s..%s upserted=%d error: %v",
			meter.ID, first, last, result.Upserted, result.Err)
	} else {
		s.logger.Printf("ingest meter=%s range=%s..%s upserted=%d malformed=%d unresolved=%d",
			meter.ID, first, last, result.Upserted, result.Malformed, len(result.Unresolved))
	}
	return result
}

func (s *Service) updateMeter(ctx context.Context, meter fleet.Meter, first, last calendar.Date) Result {
	result := Result{MeterID: meter.ID}
	if first.IsZero() || last.IsZero() || last.Before(first) {
		result.Err = fmt.Errorf("ingest: invalid date range %s..%s", first, last)
		return result
	}
	if meter.SourceURI == "" {
		result.Err = fmt.Errorf("ingest: meter %s has no source uri", meter.ID)
		return result
	}

	instantOf := make(map[calendar.LocalMoment]time.Time)
	for day := first; !day.After(last); day = day.Next() {
		instants := s.resolver.DayInstants(day)
		for i, moment := range s.resolver.HoursInLocalDay(day) {
			instantOf[moment] = instants[i]
		}
	}

	source, err := s.open(meter.SourceURI)
	if err != nil {
		result.Err = err
		return result
	}
	defer source.Close()

	batch, err := source.Get(ctx, first, last)
	if err != nil {
		result.Err = err
		return result
	}
	result.Malformed = batch.Malformed

	for _, reading := range batch.Readings {
		instant, ok := instantOf[reading.Moment]
		if !ok {
			result.Unresolved = append(result.Unresolved, reading.Moment)
			continue
		}
		if err := s.store.Upsert(ctx, meter.ID, instant, reading.EnergyWh); err != nil {
			// Already-applied upserts stay; the caller retries the range.
			result.Err = err
			return result
		}
		result.Upserted++
	}
	return result
}

// UpdatePlant ingests every enabled meter of the plant.
func (s *Service) UpdatePlant(ctx context.Context, plantID string, first, last calendar.Date) ([]Result, error) {
	meters, err := s.provider.ListMeters(ctx, plantID)
	if err != nil {
		return nil, err
	}
	results := make([]Result, 0, len(meters))
	for _, meter := range meters {
		results = append(results, s.UpdateMeter(ctx, meter, first, last))
	}
	return results, nil
}

// UpdateAggregator ingests every enabled meter under the aggregator.
// A failing meter does not abort the rest; its failure is carried in the
// corresponding Result.
func (s *Service) UpdateAggregator(ctx context.Context, aggregatorID string, first, last calendar.Date) ([]Result, error) {
	if _, err := s.provider.GetAggregator(ctx, aggregatorID); err != nil {
		return nil, err
	}
	plants, err := s.provider.ListPlants(ctx, aggregatorID)
	if err != nil {
		return nil, err
	}
	results := make([]Result, 0)
	for _, plant := range plants {
		plantResults, err := s.UpdatePlant(ctx, plant.ID, first, last)
		if err != nil {
			return nil, err
		}
		results = append(results, plantResults...)
	}
	return results, nil
}
