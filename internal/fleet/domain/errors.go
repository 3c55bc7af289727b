package fleet

import "errors"

var (
	// ErrAggregatorNotFound is returned for an unknown aggregator id.
	ErrAggregatorNotFound = errors.New("fleet: aggregator not found")
	// ErrMeterNotFound is returned for an unknown meter id.
	ErrMeterNotFound = errors.New("fleet: meter not found")
	// ErrEmptyID is returned when a lookup id is empty.
	ErrEmptyID = errors.New("fleet: empty id")
)
