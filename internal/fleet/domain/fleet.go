// Package fleet is the read-only view of the generation fleet metadata:
// which plants belong to which aggregator, which meters belong to which
// plant, their share weights and active lifetimes. The records are owned
// elsewhere; the core treats whatever a Provider returns as a snapshot
// valid for the duration of one operation.
package fleet

import (
	"context"

	"plantmeter-cloud/internal/calendar"
)

// Aggregator is a top-level grouping of plants.
type Aggregator struct {
	ID      string
	Name    string
	Enabled bool
}

// Plant is a generation plant with an integer ownership weight inside its
// aggregator. A zero LastActiveDate means the lifetime is open-ended.
type Plant struct {
	ID              string
	AggregatorID    string
	Name            string
	NShares         int
	FirstActiveDate calendar.Date
	LastActiveDate  calendar.Date
	Enabled         bool
}

// ActiveOn reports whether the plant's lifetime covers the given local day.
func (p Plant) ActiveOn(d calendar.Date) bool {
	return activeOn(p.Enabled, p.FirstActiveDate, p.LastActiveDate, d)
}

// Meter is a metering point of a plant. SourceURI selects the raw-reading
// backend used to (re)ingest its curve.
type Meter struct {
	ID              string
	PlantID         string
	Name            string
	SourceURI       string
	FirstActiveDate calendar.Date
	LastActiveDate  calendar.Date
	Enabled         bool
}

// ActiveOn reports whether the meter's lifetime covers the given local day.
func (m Meter) ActiveOn(d calendar.Date) bool {
	return activeOn(m.Enabled, m.FirstActiveDate, m.LastActiveDate, d)
}

func activeOn(enabled bool, first, last, d calendar.Date) bool {
	if !enabled {
		return false
	}
	if first.IsZero() || d.Before(first) {
		return false
	}
	if !last.IsZero() && d.After(last) {
		return false
	}
	return true
}

// Provider is the metadata collaborator interface consumed by the core.
type Provider interface {
	// GetAggregator returns the aggregator, or ErrAggregatorNotFound.
	GetAggregator(ctx context.Context, aggregatorID string) (Aggregator, error)
	// ListPlants returns the enabled plants of the aggregator.
	ListPlants(ctx context.Context, aggregatorID string) ([]Plant, error)
	// ListMeters returns the enabled meters of the plant.
	ListMeters(ctx context.Context, plantID string) ([]Meter, error)
}
