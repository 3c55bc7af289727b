// Package curve defines the per-meter hourly energy curve contract.
// Readings are keyed by meter id and an absolute UTC instant; all local-time
// ambiguity is resolved before a reading reaches the store.
package curve

import (
	"context"
	"time"
)

// Reading is one stored hourly energy sample. EnergyWh is normally
// non-negative; negative values are kept as-is since sources may publish
// corrections.
type Reading struct {
	MeterID  string
	At       time.Time
	EnergyWh float64
}

// Store persists per-meter hourly curves. At most one reading exists per
// (meter, instant); Upsert overwrites silently, which makes re-ingestion
// idempotent. Implementations must be safe for concurrent use.
type Store interface {
	// Upsert inserts or overwrites the reading at the exact instant.
	Upsert(ctx context.Context, meterID string, at time.Time, energyWh float64) error
	// Query returns the readings present in [start, end) keyed by instant.
	// Absent instants are absent, never zero.
	Query(ctx context.Context, meterID string, start, end time.Time) (map[time.Time]float64, error)
	// FirstInstant returns the earliest stored instant, or ErrNoData.
	FirstInstant(ctx context.Context, meterID string) (time.Time, error)
	// LastInstant returns the latest stored instant, or ErrNoData.
	LastInstant(ctx context.Context, meterID string) (time.Time, error)
}
