package memory

import (
	"context"
	"sync"
	"time"

	curve "plantmeter-cloud/internal/curve/domain"
)

// Store is an in-memory curve store for tests and demo mode.
type Store struct {
	mu   sync.RWMutex
	data map[string]map[int64]float64
}

// NewStore constructs an empty store.
func NewStore() *Store {
	return &Store{data: make(map[string]map[int64]float64)}
}

// Upsert inserts or overwrites the reading at the exact instant.
func (s *Store) Upsert(ctx context.Context, meterID string, at time.Time, energyWh float64) error {
	_ = ctx
	if meterID == "" {
		return curve.ErrEmptyMeterID
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	points := s.data[meterID]
	if points == nil {
		points = make(map[int64]float64)
		s.data[meterID] = points
	}
	points[at.UTC().Unix()] = energyWh
	return nil
}

// Query returns the readings present in [start, end) keyed by UTC instant.
func (s *Store) Query(ctx context.Context, meterID string, start, end time.Time) (map[time.Time]float64, error) {
	_ = ctx
	if meterID == "" {
		return nil, curve.ErrEmptyMeterID
	}
	if start.IsZero() || end.IsZero() || !start.Before(end) {
		return nil, curve.ErrInvalidRange
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make(map[time.Time]float64)
	lo, hi := start.Unix(), end.Unix()
	for unix, value := range s.data[meterID] {
		if unix >= lo && unix < hi {
			result[time.Unix(unix, 0).UTC()] = value
		}
	}
	return result, nil
}

// FirstInstant returns the earliest stored instant, or ErrNoData.
func (s *Store) FirstInstant(ctx context.Context, meterID string) (time.Time, error) {
	return s.boundary(ctx, meterID, func(candidate, best int64) bool { return candidate < best })
}

// LastInstant returns the latest stored instant, or ErrNoData.
func (s *Store) LastInstant(ctx context.Context, meterID string) (time.Time, error) {
	return s.boundary(ctx, meterID, func(candidate, best int64) bool { return candidate > best })
}

func (s *Store) boundary(ctx context.Context, meterID string, better func(candidate, best int64) bool) (time.Time, error) {
	_ = ctx
	if meterID == "" {
		return time.Time{}, curve.ErrEmptyMeterID
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	points := s.data[meterID]
	if len(points) == 0 {
		return time.Time{}, curve.ErrNoData
	}
	first := true
	var best int64
	for unix := range points {
		if first || better(unix, best) {
			best = unix
			first = false
		}
	}
	return time.Unix(best, 0).UTC(), nil
}
