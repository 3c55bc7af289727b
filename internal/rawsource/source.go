// Package rawsource provides the pluggable raw-reading backends. A backend
// is addressed by a URI whose scheme selects the implementation; every
// backend exposes the same four-operation capability set (open, insert,
// get, close), so any of them is interchangeable to the ingestion pipeline.
//
// Raw rows carry a naive local timestamp plus a summer flag; resolving them
// to instants is the caller's job, keeping all DST logic in one place.
package rawsource

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"plantmeter-cloud/internal/calendar"
)

var (
	// ErrUnsupportedScheme is returned for a URI with no registered backend.
	ErrUnsupportedScheme = errors.New("rawsource: unsupported scheme")
	// ErrInvalidURI is returned for a URI the backend cannot interpret.
	ErrInvalidURI = errors.New("rawsource: invalid uri")
	// ErrSourceUnavailable wraps backend failures during get or insert.
	ErrSourceUnavailable = errors.New("rawsource: source unavailable")
)

// Reading is one raw hourly sample as published by a source, keyed by the
// source's naive local time plus its DST disambiguation.
type Reading struct {
	Moment   calendar.LocalMoment
	EnergyWh float64
}

// Batch is the result of a Get: the parseable readings in range plus a
// count of rows the backend could not interpret. Malformed rows never
// abort the batch; the caller reports them.
type Batch struct {
	Readings  []Reading
	Malformed int
}

// Source is an open connection to one meter's raw readings. Close must be
// called even on error paths; Open/Close bracket the scoped acquisition.
type Source interface {
	// Insert appends one raw reading.
	Insert(ctx context.Context, reading Reading) error
	// Get returns the readings whose local date falls in [first, last].
	Get(ctx context.Context, first, last calendar.Date) (Batch, error)
	// Close releases the backend connection.
	Close() error
}

// OpenFunc opens a backend for an already-parsed URI.
type OpenFunc func(u *url.URL) (Source, error)

var backends = map[string]OpenFunc{
	"csv":    openCSV,
	"sqlite": openSQLite,
}

// Open parses the URI and dispatches on its scheme.
func Open(uri string) (Source, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURI, uri)
	}
	open, ok := backends[u.Scheme]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
	return open(u)
}
