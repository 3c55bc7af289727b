package rawsource

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	_ "modernc.org/sqlite"

	"plantmeter-cloud/internal/calendar"
)

// sqliteSource reads raw readings from a local sqlite database shared by
// several meters. URI form:
//
//	sqlite:///var/lib/plantmeter/raw.db?meter=501600324&table=raw_readings
//
// The meter query parameter is required; table defaults to raw_readings.
// The schema is created on first open so a fresh file is usable directly.
type sqliteSource struct {
	db    *sql.DB
	table string
	meter string
}

const defaultRawTable = "raw_readings"

func openSQLite(u *url.URL) (Source, error) {
	path := u.Path
	if u.Host != "" {
		path = "/" + u.Host + u.Path
	}
	if path == "" {
		return nil, fmt.Errorf("%w: sqlite uri without path", ErrInvalidURI)
	}
	meter := u.Query().Get("meter")
	if meter == "" {
		return nil, fmt.Errorf("%w: sqlite uri without meter parameter", ErrInvalidURI)
	}
	table := u.Query().Get("table")
	if table == "" {
		table = defaultRawTable
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrSourceUnavailable, path, err)
	}
	schema := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	meter      TEXT NOT NULL,
	local_time TEXT NOT NULL,
	summer     INTEGER NOT NULL,
	energy_wh  REAL NOT NULL,
	PRIMARY KEY (meter, local_time, summer)
)`, table)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: schema %s: %v", ErrSourceUnavailable, path, err)
	}
	return &sqliteSource{db: db, table: table, meter: meter}, nil
}

// Insert upserts one raw reading for the source's meter.
func (s *sqliteSource) Insert(ctx context.Context, reading Reading) error {
	query := fmt.Sprintf(`
INSERT OR REPLACE INTO %s (meter, local_time, summer, energy_wh)
VALUES (?, ?, ?, ?)`, s.table)

	summer := 0
	if reading.Moment.DST {
		summer = 1
	}
	_, err := s.db.ExecContext(ctx, query, s.meter, formatMoment(reading.Moment), summer, reading.EnergyWh)
	if err != nil {
		return fmt.Errorf("%w: insert: %v", ErrSourceUnavailable, err)
	}
	return nil
}

// Get returns the meter's readings whose local date falls in [first, last].
func (s *sqliteSource) Get(ctx context.Context, first, last calendar.Date) (Batch, error) {
	// Naive local timestamps sort lexicographically in this layout.
	lo := fmt.Sprintf("%s 00:00", first)
	hi := fmt.Sprintf("%s 23:59", last)

	query := fmt.Sprintf(`
SELECT local_time, summer, energy_wh
FROM %s
WHERE meter = ?
	AND local_time >= ?
	AND local_time <= ?
ORDER BY local_time, summer DESC`, s.table)

	rows, err := s.db.QueryContext(ctx, query, s.meter, lo, hi)
	if err != nil {
		return Batch{}, fmt.Errorf("%w: query: %v", ErrSourceUnavailable, err)
	}
	defer rows.Close()

	var batch Batch
	for rows.Next() {
		var localTime string
		var summer int
		var value float64
		if err := rows.Scan(&localTime, &summer, &value); err != nil {
			return Batch{}, fmt.Errorf("%w: scan: %v", ErrSourceUnavailable, err)
		}
		ts, err := time.Parse(csvTimeLayout, localTime)
		if err != nil || ts.Minute() != 0 {
			batch.Malformed++
			continue
		}
		batch.Readings = append(batch.Readings, Reading{
			Moment: calendar.LocalMoment{
				Date: calendar.DateOf(ts),
				Hour: ts.Hour(),
				DST:  summer == 1,
			},
			EnergyWh: value,
		})
	}
	if err := rows.Err(); err != nil {
		return Batch{}, fmt.Errorf("%w: rows: %v", ErrSourceUnavailable, err)
	}
	return batch, nil
}

// Close releases the database handle.
func (s *sqliteSource) Close() error {
	return s.db.Close()
}
