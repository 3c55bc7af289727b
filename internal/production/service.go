// Package production answers the fleet-level questions: hourly production
// curves per local day, ownership share totals, and measurement coverage.
package production

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
)

// ErrInvalidRange marks a malformed local date range.
var ErrInvalidRange = errors.New("production: invalid date range")

// DailyCurve is one local day's hourly energy, in chronological slot
// order. Its length is the day's actual hour count: 24 normally, 23 on
// the spring-forward day, 25 on the fall-back day. On a fall-back day
// the DST-active occurrence of the repeated hour comes first.
type DailyCurve struct {
	Date     calendar.Date
	ValuesWh []float64
}

// TotalWh sums the day's slots.
func (c DailyCurve) TotalWh() float64 {
	var total float64
	for _, v := range c.ValuesWh {
		total += v
	}
	return total
}

// Clock abstracts "now" for lifecycle checks against the current day.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Option configures the service.
type Option func(*Service)

// WithClock overrides the wall clock, used by tests.
func WithClock(clock Clock) Option {
	return func(s *Service) { s.clock = clock }
}

// Service is the aggregation read side.
type Service struct {
	store    curve.Store
	resolver *calendar.Resolver
	provider fleet.Provider
	clock    Clock
	logger   *log.Logger
}

// NewService constructs the aggregation service.
func NewService(store curve.Store, resolver *calendar.Resolver, provider fleet.Provider, logger *log.Logger, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("production: nil store")
	}
	if resolver == nil {
		return nil, errors.New("production: nil resolver")
	}
	if provider == nil {
		return nil, errors.New("production: nil fleet provider")
	}
	if logger == nil {
		logger = log.Default()
	}
	s := &Service{store: store, resolver: resolver, provider: provider, clock: systemClock{}, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// ProductionWh returns one DailyCurve per local day in [first, last],
// each slot the unweighted sum over the meters of plants active on that
// day. Missing readings contribute zero; a day with no active meter
// yields an all-zero curve of the correct length.
func (s *Service) ProductionWh(ctx context.Context, aggregatorID string, first, last calendar.Date) ([]DailyCurve, error) {
	started := time.Now()
	curves, err := s.productionWh(ctx, aggregatorID, first, last)
	metrics.ObserveProductionQuery(err != nil, time.Since(started))
	return curves, err
}

func (s *Service) productionWh(ctx context.Context, aggregatorID string, first, last calendar.Date) ([]DailyCurve, error) {
	if first.IsZero() || last.IsZero() || last.Before(first) {
		return nil, fmt.Errorf("%w: %s..%s", ErrInvalidRange, first, last)
	}
	plants, metersByPlant, err := s.fleetSnapshot(ctx, aggregatorID)
	if err != nil {
		return nil, err
	}

	curves := make([]DailyCurve, 0, first.DaysUntil(last)+1)
	for day := first; !day.After(last); day = day.Next() {
		instants := s.resolver.DayInstants(day)
		values := make([]float64, len(instants))
		dayStart := instants[0]
		dayEnd := instants[len(instants)-1].Add(time.Hour)

		for _, plant := range plants {
			if !plant.ActiveOn(day) {
				continue
			}
			for _, meter := range metersByPlant[plant.ID] {
				if !meter.ActiveOn(day) {
					continue
				}
				points, err := s.store.Query(ctx, meter.ID, dayStart, dayEnd)
				if err != nil {
					return nil, err
				}
				for i, instant := range instants {
					values[i] += points[instant]
				}
			}
		}
		curves = append(curves, DailyCurve{Date: day, ValuesWh: values})
	}
	return curves, nil
}

// TotalShares sums nshares over the aggregator's plants active today in
// the service timezone.
func (s *Service) TotalShares(ctx context.Context, aggregatorID string) (int, error) {
	if _, err := s.provider.GetAggregator(ctx, aggregatorID); err != nil {
		return 0, err
	}
	plants, err := s.provider.ListPlants(ctx, aggregatorID)
	if err != nil {
		return 0, err
	}
	today := calendar.DateOf(s.clock.Now().In(s.resolver.Location()))
	total := 0
	for _, plant := range plants {
		if plant.ActiveOn(today) {
			total += plant.NShares
		}
	}
	return total, nil
}

// FirstMeasurementDate returns the local date of the earliest stored
// reading across the aggregator's meters, or curve.ErrNoData.
func (s *Service) FirstMeasurementDate(ctx context.Context, aggregatorID string) (calendar.Date, error) {
	return s.measurementBoundary(ctx, aggregatorID, s.store.FirstInstant, func(candidate, best calendar.Date) bool {
		return candidate.Before(best)
	})
}

// LastMeasurementDate returns the local date of the latest stored
// reading across the aggregator's meters, or curve.ErrNoData.
func (s *Service) LastMeasurementDate(ctx context.Context, aggregatorID string) (calendar.Date, error) {
	return s.measurementBoundary(ctx, aggregatorID, s.store.LastInstant, func(candidate, best calendar.Date) bool {
		return candidate.After(best)
	})
}

func (s *Service) measurementBoundary(
	ctx context.Context,
	aggregatorID string,
	instantOf func(ctx context.Context, meterID string) (time.Time, error),
	better func(candidate, best calendar.Date) bool,
) (calendar.Date, error) {
	plants, metersByPlant, err := s.fleetSnapshot(ctx, aggregatorID)
	if err != nil {
		return calendar.Date{}, err
	}

	var best calendar.Date
	for _, plant := range plants {
		for _, meter := range metersByPlant[plant.ID] {
			instant, err := instantOf(ctx, meter.ID)
			if errors.Is(err, curve.ErrNoData) {
				continue
			}
			if err != nil {
				return calendar.Date{}, err
			}
			candidate := s.resolver.Local(instant).Date
			if best.IsZero() || better(candidate, best) {
				best = candidate
			}
		}
	}
	if best.IsZero() {
		return calendar.Date{}, curve.ErrNoData
	}
	return best, nil
}

// FirstActiveDate returns the earliest firstActiveDate across the
// aggregator's enabled plants, or curve.ErrNoData when no plant has one.
func (s *Service) FirstActiveDate(ctx context.Context, aggregatorID string) (calendar.Date, error) {
	if _, err := s.provider.GetAggregator(ctx, aggregatorID); err != nil {
		return calendar.Date{}, err
	}
	plants, err := s.provider.ListPlants(ctx, aggregatorID)
	if err != nil {
		return calendar.Date{}, err
	}
	var best calendar.Date
	for _, plant := range plants {
		if plant.FirstActiveDate.IsZero() {
			continue
		}
		if best.IsZero() || plant.FirstActiveDate.Before(best) {
			best = plant.FirstActiveDate
		}
	}
	if best.IsZero() {
		return calendar.Date{}, curve.ErrNoData
	}
	return best, nil
}

func (s *Service) fleetSnapshot(ctx context.Context, aggregatorID string) ([]fleet.Plant, map[string][]fleet.Meter, error) {
	if _, err := s.provider.GetAggregator(ctx, aggregatorID); err != nil {
		return nil, nil, err
	}
	plants, err := s.provider.ListPlants(ctx, aggregatorID)
	if err != nil {
		return nil, nil, err
	}
	metersByPlant := make(map[string][]fleet.Meter, len(plants))
	for _, plant := range plants {
		meters, err := s.provider.ListMeters(ctx, plant.ID)
		if err != nil {
			return nil, nil, err
		}
		metersByPlant[plant.ID] = meters
	}
	return plants, metersByPlant, nil
}
