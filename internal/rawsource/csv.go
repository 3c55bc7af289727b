package rawsource

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/url"
	"os"
	"strconv"
	"time"

	"plantmeter-cloud/internal/calendar"
)

// csvSource reads one meter's raw curve from a semicolon-separated file.
// Row format, inherited from the flat-file exchange convention:
//
//	2015-10-25 02:00;S;10;0;0
//
// column 1 is the naive local timestamp, column 2 the summer flag
// (S = DST active, W = standard time), column 3 the hourly energy in Wh.
// The two trailing zero columns are legacy padding and ignored.
type csvSource struct {
	path string
}

const csvTimeLayout = "2006-01-02 15:04"

func openCSV(u *url.URL) (Source, error) {
	path := u.Path
	if u.Host != "" {
		// csv://dir/file parses the first segment as host; rejoin it.
		path = "/" + u.Host + u.Path
	}
	if path == "" {
		return nil, fmt.Errorf("%w: csv uri without path", ErrInvalidURI)
	}
	return &csvSource{path: path}, nil
}

// Insert appends one raw reading to the file, creating it if needed.
func (s *csvSource) Insert(ctx context.Context, reading Reading) error {
	_ = ctx
	file, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("%w: open %s: %v", ErrSourceUnavailable, s.path, err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	writer.Comma = ';'
	record := []string{
		formatMoment(reading.Moment),
		flagOf(reading.Moment.DST),
		strconv.FormatFloat(reading.EnergyWh, 'f', -1, 64),
		"0",
		"0",
	}
	if err := writer.Write(record); err != nil {
		return fmt.Errorf("%w: write %s: %v", ErrSourceUnavailable, s.path, err)
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("%w: flush %s: %v", ErrSourceUnavailable, s.path, err)
	}
	return nil
}

// Get reads the whole file and keeps the rows whose local date falls in
// [first, last]. A missing file is an unavailable source, not an empty one.
func (s *csvSource) Get(ctx context.Context, first, last calendar.Date) (Batch, error) {
	_ = ctx
	file, err := os.Open(s.path)
	if err != nil {
		return Batch{}, fmt.Errorf("%w: open %s: %v", ErrSourceUnavailable, s.path, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.Comma = ';'
	reader.FieldsPerRecord = -1

	var batch Batch
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			batch.Malformed++
			continue
		}
		reading, ok := parseRecord(record)
		if !ok {
			batch.Malformed++
			continue
		}
		if reading.Moment.Date.Before(first) || reading.Moment.Date.After(last) {
			continue
		}
		batch.Readings = append(batch.Readings, reading)
	}
	return batch, nil
}

// Close is a no-op; the file is opened per operation.
func (s *csvSource) Close() error {
	return nil
}

func parseRecord(record []string) (Reading, bool) {
	if len(record) < 3 {
		return Reading{}, false
	}
	ts, err := time.Parse(csvTimeLayout, record[0])
	if err != nil || ts.Minute() != 0 {
		return Reading{}, false
	}
	dst, ok := parseFlag(record[1])
	if !ok {
		return Reading{}, false
	}
	value, err := strconv.ParseFloat(record[2], 64)
	if err != nil {
		return Reading{}, false
	}
	return Reading{
		Moment: calendar.LocalMoment{
			Date: calendar.DateOf(ts),
			Hour: ts.Hour(),
			DST:  dst,
		},
		EnergyWh: value,
	}, true
}

func formatMoment(m calendar.LocalMoment) string {
	return fmt.Sprintf("%s %02d:00", m.Date, m.Hour)
}

func parseFlag(value string) (dst bool, ok bool) {
	switch value {
	case "S":
		return true, true
	case "W":
		return false, true
	default:
		return false, false
	}
}

func flagOf(dst bool) string {
	if dst {
		return "S"
	}
	return "W"
}
