package memory

import (
	"context"
	"sync"

	fleet "plantmeter-cloud/internal/fleet/domain"
)

// Provider is an in-memory fleet snapshot for tests and registry-file mode.
type Provider struct {
	mu          sync.RWMutex
	aggregators map[string]fleet.Aggregator
	plants      []fleet.Plant
	meters      []fleet.Meter
}

// NewProvider constructs an empty provider.
func NewProvider() *Provider {
	return &Provider{aggregators: make(map[string]fleet.Aggregator)}
}

// AddAggregator registers an aggregator.
func (p *Provider) AddAggregator(a fleet.Aggregator) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.aggregators[a.ID] = a
}

// AddPlant registers a plant.
func (p *Provider) AddPlant(plant fleet.Plant) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.plants = append(p.plants, plant)
}

// AddMeter registers a meter.
func (p *Provider) AddMeter(meter fleet.Meter) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.meters = append(p.meters, meter)
}

// GetAggregator returns the aggregator, or ErrAggregatorNotFound.
func (p *Provider) GetAggregator(ctx context.Context, aggregatorID string) (fleet.Aggregator, error) {
	_ = ctx
	if aggregatorID == "" {
		return fleet.Aggregator{}, fleet.ErrEmptyID
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	aggregator, ok := p.aggregators[aggregatorID]
	if !ok {
		return fleet.Aggregator{}, fleet.ErrAggregatorNotFound
	}
	return aggregator, nil
}

// ListPlants returns the enabled plants of the aggregator.
func (p *Provider) ListPlants(ctx context.Context, aggregatorID string) ([]fleet.Plant, error) {
	_ = ctx
	if aggregatorID == "" {
		return nil, fleet.ErrEmptyID
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	result := make([]fleet.Plant, 0)
	for _, plant := range p.plants {
		if plant.AggregatorID == aggregatorID && plant.Enabled {
			result = append(result, plant)
		}
	}
	return result, nil
}

// ListMeters returns the enabled meters of the plant.
func (p *Provider) ListMeters(ctx context.Context, plantID string) ([]fleet.Meter, error) {
	_ = ctx
	if plantID == "" {
		return nil, fleet.ErrEmptyID
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	result := make([]fleet.Meter, 0)
	for _, meter := range p.meters {
		if meter.PlantID == plantID && meter.Enabled {
			result = append(result, meter)
		}
	}
	return result, nil
}
