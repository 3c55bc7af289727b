package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"plantmeter-cloud/internal/calendar"
	fleet "plantmeter-cloud/internal/fleet/domain"
)

// Provider reads fleet metadata from Postgres. Dates are stored as DATE
// columns; NULL last_active_date means open-ended.
type Provider struct {
	db *sql.DB
}

// NewProvider constructs a provider.
func NewProvider(db *sql.DB) *Provider {
	return &Provider{db: db}
}

// GetAggregator returns the aggregator, or ErrAggregatorNotFound.
func (p *Provider) GetAggregator(ctx context.Context, aggregatorID string) (fleet.Aggregator, error) {
	if aggregatorID == "" {
		return fleet.Aggregator{}, fleet.ErrEmptyID
	}

	row := p.db.QueryRowContext(ctx, `
SELECT id, name, enabled
FROM fleet_aggregators
WHERE id = $1`, aggregatorID)

	var aggregator fleet.Aggregator
	err := row.Scan(&aggregator.ID, &aggregator.Name, &aggregator.Enabled)
	if err == sql.ErrNoRows {
		return fleet.Aggregator{}, fleet.ErrAggregatorNotFound
	}
	if err != nil {
		return fleet.Aggregator{}, fmt.Errorf("fleet aggregator query: %w", err)
	}
	return aggregator, nil
}

// ListPlants returns the enabled plants of the aggregator.
func (p *Provider) ListPlants(ctx context.Context, aggregatorID string) ([]fleet.Plant, error) {
	if aggregatorID == "" {
		return nil, fleet.ErrEmptyID
	}

	rows, err := p.db.QueryContext(ctx, `
SELECT id, aggregator_id, name, nshares, first_active_date, last_active_date, enabled
FROM fleet_plants
WHERE aggregator_id = $1
	AND enabled
ORDER BY id`, aggregatorID)
	if err != nil {
		return nil, fmt.Errorf("fleet plants query: %w", err)
	}
	defer rows.Close()

	plants := make([]fleet.Plant, 0)
	for rows.Next() {
		var plant fleet.Plant
		var first, last sql.NullTime
		if err := rows.Scan(&plant.ID, &plant.AggregatorID, &plant.Name, &plant.NShares, &first, &last, &plant.Enabled); err != nil {
			return nil, fmt.Errorf("fleet plants scan: %w", err)
		}
		plant.FirstActiveDate, plant.LastActiveDate = lifetimeDates(first, last)
		plants = append(plants, plant)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("fleet plants rows: %w", err)
	}
	return plants, nil
}

// ListMeters returns the enabled meters of the plant.
func (p *Provider) ListMeters(ctx context.Context, plantID string) ([]fleet.Meter, error) {
	if plantID == "" {
		return nil, fleet.ErrEmptyID
	}

	rows, err := p.db.QueryContext(ctx, `
SELECT id, plant_id, name, source_uri, first_active_date, last_active_date, enabled
FROM fleet_meters
WHERE plant_id = $1
	AND enabled
ORDER BY id`, plantID)
	if err != nil {
		return nil, fmt.Errorf("fleet meters query: %w", err)
	}
	defer rows.Close()

	meters := make([]fleet.Meter, 0)
	for rows.Next() {
		var meter fleet.Meter
		var first, last sql.NullTime
		if err := rows.Scan(&meter.ID, &meter.PlantID, &meter.Name, &meter.SourceURI, &first, &last, &meter.Enabled); err != nil {
			return nil, fmt.Errorf("fleet meters scan: %w", err)
		}
		meter.FirstActiveDate, meter.LastActiveDate = lifetimeDates(first, last)
		meters = append(meters, meter)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("fleet meters rows: %w", err)
	}
	return meters, nil
}

func lifetimeDates(first, last sql.NullTime) (calendar.Date, calendar.Date) {
	var firstDate, lastDate calendar.Date
	if first.Valid {
		firstDate = calendar.DateOf(first.Time)
	}
	if last.Valid {
		lastDate = calendar.DateOf(last.Time)
	}
	return firstDate, lastDate
}
