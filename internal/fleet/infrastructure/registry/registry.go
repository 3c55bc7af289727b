// Package registry loads a fleet snapshot from a yaml file. It is the
// file-based alternative to the Postgres provider for single-node setups
// and tests; the loaded snapshot is served from memory.
package registry

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"plantmeter-cloud/internal/calendar"
	fleet "plantmeter-cloud/internal/fleet/domain"
	"plantmeter-cloud/internal/fleet/infrastructure/memory"
)

// File is the top-level registry document.
type File struct {
	Aggregators []AggregatorEntry `yaml:"aggregators"`
}

// AggregatorEntry declares an aggregator and its plants.
type AggregatorEntry struct {
	ID      string       `yaml:"id"`
	Name    string       `yaml:"name"`
	Enabled bool         `yaml:"enabled"`
	Plants  []PlantEntry `yaml:"plants"`
}

// PlantEntry declares a plant and its meters.
type PlantEntry struct {
	ID              string       `yaml:"id"`
	Name            string       `yaml:"name"`
	NShares         int          `yaml:"nshares"`
	FirstActiveDate string       `yaml:"first_active_date"`
	LastActiveDate  string       `yaml:"last_active_date"`
	Enabled         bool         `yaml:"enabled"`
	Meters          []MeterEntry `yaml:"meters"`
}

// MeterEntry declares a metering point and its raw-source URI.
type MeterEntry struct {
	ID              string `yaml:"id"`
	Name            string `yaml:"name"`
	SourceURI       string `yaml:"source_uri"`
	FirstActiveDate string `yaml:"first_active_date"`
	LastActiveDate  string `yaml:"last_active_date"`
	Enabled         bool   `yaml:"enabled"`
}

// Load reads and materializes a registry file into a memory provider.
func Load(path string) (*memory.Provider, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("fleet registry: read %s: %w", path, err)
	}
	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("fleet registry: parse %s: %w", path, err)
	}
	return Build(file)
}

// Build materializes a registry document into a memory provider.
func Build(file File) (*memory.Provider, error) {
	provider := memory.NewProvider()
	for _, aggregator := range file.Aggregators {
		if aggregator.ID == "" {
			return nil, fmt.Errorf("fleet registry: aggregator with empty id")
		}
		provider.AddAggregator(fleet.Aggregator{
			ID:      aggregator.ID,
			Name:    aggregator.Name,
			Enabled: aggregator.Enabled,
		})
		for _, plant := range aggregator.Plants {
			first, last, err := lifetime(plant.FirstActiveDate, plant.LastActiveDate)
			if err != nil {
				return nil, fmt.Errorf("fleet registry: plant %s: %w", plant.ID, err)
			}
			provider.AddPlant(fleet.Plant{
				ID:              plant.ID,
				AggregatorID:    aggregator.ID,
				Name:            plant.Name,
				NShares:         plant.NShares,
				FirstActiveDate: first,
				LastActiveDate:  last,
				Enabled:         plant.Enabled,
			})
			for _, meter := range plant.Meters {
				first, last, err := lifetime(meter.FirstActiveDate, meter.LastActiveDate)
				if err != nil {
					return nil, fmt.Errorf("fleet registry: meter %s: %w", meter.ID, err)
				}
				provider.AddMeter(fleet.Meter{
					ID:              meter.ID,
					PlantID:         plant.ID,
					Name:            meter.Name,
					SourceURI:       meter.SourceURI,
					FirstActiveDate: first,
					LastActiveDate:  last,
					Enabled:         meter.Enabled,
				})
			}
		}
	}
	return provider, nil
}

func lifetime(first, last string) (calendar.Date, calendar.Date, error) {
	var firstDate, lastDate calendar.Date
	var err error
	if first != "" {
		if firstDate, err = calendar.ParseDate(first); err != nil {
			return calendar.Date{}, calendar.Date{}, err
		}
	}
	if last != "" {
		if lastDate, err = calendar.ParseDate(last); err != nil {
			return calendar.Date{}, calendar.Date{}, err
		}
	}
	return firstDate, lastDate, nil
}
