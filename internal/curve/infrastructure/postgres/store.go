package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	curve "plantmeter-cloud/internal/curve/domain"
)

const defaultCurveTable = "meter_curve"

// Store is a Postgres-backed curve store. Each row is one hourly reading
// keyed by (meter_id, ts); writes are ON CONFLICT upserts so concurrent
// re-ingestion degrades to last-writer-wins on identical keys.
type Store struct {
	db    *sql.DB
	table string
}

// NewStore constructs a store using the default table name.
func NewStore(db *sql.DB, opts ...StoreOption) *Store {
	store := &Store{db: db, table: defaultCurveTable}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

// StoreOption configures the store.
type StoreOption func(*Store)

// WithTable overrides the default table name.
func WithTable(table string) StoreOption {
	return func(store *Store) {
		if table != "" {
			store.table = table
		}
	}
}

// Upsert inserts or overwrites the reading at the exact instant.
func (s *Store) Upsert(ctx context.Context, meterID string, at time.Time, energyWh float64) error {
	if meterID == "" {
		return curve.ErrEmptyMeterID
	}

	query := fmt.Sprintf(`
INSERT INTO %s (meter_id, ts, energy_wh)
VALUES ($1, $2, $3)
ON CONFLICT (meter_id, ts)
DO UPDATE SET energy_wh = EXCLUDED.energy_wh, updated_at = NOW()`, s.table)

	if _, err := s.db.ExecContext(ctx, query, meterID, at.UTC(), energyWh); err != nil {
		return fmt.Errorf("%w: upsert: %v", curve.ErrStorageUnavailable, err)
	}
	return nil
}

// Query returns the readings present in [start, end) keyed by UTC instant.
func (s *Store) Query(ctx context.Context, meterID string, start, end time.Time) (map[time.Time]float64, error) {
	if meterID == "" {
		return nil, curve.ErrEmptyMeterID
	}
	if start.IsZero() || end.IsZero() || !start.Before(end) {
		return nil, curve.ErrInvalidRange
	}

	query := fmt.Sprintf(`
SELECT ts, energy_wh
FROM %s
WHERE meter_id = $1
	AND ts >= $2
	AND ts < $3
ORDER BY ts ASC`, s.table)

	rows, err := s.db.QueryContext(ctx, query, meterID, start.UTC(), end.UTC())
	if err != nil {
		return nil, fmt.Errorf("%w: query: %v", curve.ErrStorageUnavailable, err)
	}
	defer rows.Close()

	result := make(map[time.Time]float64)
	for rows.Next() {
		var ts time.Time
		var value float64
		if err := rows.Scan(&ts, &value); err != nil {
			return nil, fmt.Errorf("%w: scan: %v", curve.ErrStorageUnavailable, err)
		}
		result[ts.UTC()] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: rows: %v", curve.ErrStorageUnavailable, err)
	}
	return result, nil
}

// FirstInstant returns the earliest stored instant, or ErrNoData.
func (s *Store) FirstInstant(ctx context.Context, meterID string) (time.Time, error) {
	return s.boundary(ctx, meterID, "MIN")
}

// LastInstant returns the latest stored instant, or ErrNoData.
func (s *Store) LastInstant(ctx context.Context, meterID string) (time.Time, error) {
	return s.boundary(ctx, meterID, "MAX")
}

func (s *Store) boundary(ctx context.Context, meterID string, aggregate string) (time.Time, error) {
	if meterID == "" {
		return time.Time{}, curve.ErrEmptyMeterID
	}

	query := fmt.Sprintf(`SELECT %s(ts) FROM %s WHERE meter_id = $1`, aggregate, s.table)

	var ts sql.NullTime
	if err := s.db.QueryRowContext(ctx, query, meterID).Scan(&ts); err != nil {
		return time.Time{}, fmt.Errorf("%w: %s: %v", curve.ErrStorageUnavailable, aggregate, err)
	}
	if !ts.Valid {
		return time.Time{}, curve.ErrNoData
	}
	return ts.Time.UTC(), nil
}
