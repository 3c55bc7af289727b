package ingest

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"
	"time"

	"plantmeter-cloud/internal/calendar"
	curvememory "plantmeter-cloud/internal/curve/infrastructure/memory"
	fleet "plantmeter-cloud/internal/fleet/domain"
	fleetmemory "plantmeter-cloud/internal/fleet/infrastructure/memory"
	"plantmeter-cloud/internal/rawsource"
)

type stubSource struct {
	batch  rawsource.Batch
	getErr error
	closed bool
}

func (s *stubSource) Insert(ctx context.Context, reading rawsource.Reading) error {
	return errors.New("stubSource: read only")
}

func (s *stubSource) Get(ctx context.Context, first, last calendar.Date) (rawsource.Batch, error) {
	if s.getErr != nil {
		return rawsource.Batch{}, s.getErr
	}
	return s.batch, nil
}

func (s *stubSource) Close() error {
	s.closed = true
	return nil
}

func stubOpener(src *stubSource) SourceOpener {
	return func(uri string) (rawsource.Source, error) { return src, nil }
}

func testService(t *testing.T, store *curvememory.Store, provider *fleetmemory.Provider, open SourceOpener) *Service {
	t.Helper()
	resolver, err := calendar.NewResolver("Europe/Madrid")
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}
	svc, err := NewService(store, resolver, provider, open, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func date(t *testing.T, s string) calendar.Date {
	t.Helper()
	d, err := calendar.ParseDate(s)
	if err != nil {
		t.Fatalf("ParseDate(%q): %v", s, err)
	}
	return d
}

func testMeter() fleet.Meter {
	return fleet.Meter{ID: "meter-1", PlantID: "plant-1", Name: "Main", SourceURI: "csv://unused", Enabled: true}
}

func TestUpdateMeterUpsertsResolvedReadings(t *testing.T) {
	store := curvememory.NewStore()
	day := date(t, "2015-03-16")
	src := &stubSource{batch: rawsource.Batch{Readings: []rawsource.Reading{
		{Moment: calendar.LocalMoment{Date: day, Hour: 0}, EnergyWh: 10},
		{Moment: calendar.LocalMoment{Date: day, Hour: 13}, EnergyWh: 250},
		{Moment: calendar.LocalMoment{Date: day, Hour: 23}, EnergyWh: 5},
	}}}
	svc := testService(t, store, fleetmemory.NewProvider(), stubOpener(src))

	result := svc.UpdateMeter(context.Background(), testMeter(), day, day)
	if result.Failed() {
		t.Fatalf("unexpected error: %v", result.Err)
	}
	if result.Upserted != 3 {
		t.Fatalf("Upserted = %d, want 3", result.Upserted)
	}
	if len(result.Unresolved) != 0 {
		t.Fatalf("Unresolved = %v, want none", result.Unresolved)
	}
	if !src.closed {
		t.Fatal("source was not closed")
	}

	// Madrid is CET in March before the change: 13:00 local is 12:00 UTC.
	at := time.Date(2015, time.March, 16, 12, 0, 0, 0, time.UTC)
	points, err := store.Query(context.Background(), "meter-1", at, at.Add(time.Hour))
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if points[at] != 250 {
		t.Fatalf("stored value = %v, want 250", points[at])
	}
}

func TestUpdateMeterReportsUnresolvedMoments(t *testing.T) {
	store := curvememory.NewStore()
	day := date(t, "2015-03-29")
	src := &stubSource{batch: rawsource.Batch{
		Readings: []rawsource.Reading{
			{Moment: calendar.LocalMoment{Date: day, Hour: 1}, EnergyWh: 1},
			// Hour 02 does not exist on the spring-forward day.
			{Moment: calendar.LocalMoment{Date: day, Hour: 2}, EnergyWh: 99},
			{Moment: calendar.LocalMoment{Date: day, Hour: 3, DST: true}, EnergyWh: 2},
		},
		Malformed: 1,
	}}
	svc := testService(t, store, fleetmemory.NewProvider(), stubOpener(src))

	result := svc.UpdateMeter(context.Background(), testMeter(), day, day)
	if result.Failed() {
		t.Fatalf("unexpected error: %v", result.Err)
	}
	if result.Upserted != 2 {
		t.Fatalf("Upserted = %d, want 2", result.Upserted)
	}
	if result.Malformed != 1 {
		t.Fatalf("Malformed = %d, want 1", result.Malformed)
	}
	if len(result.Unresolved) != 1 || result.Unresolved[0].Hour != 2 {
		t.Fatalf("Unresolved = %v, want the skipped hour 02", result.Unresolved)
	}
}

func TestUpdateMeterResolvesFallBackDuplicateHour(t *testing.T) {
	store := curvememory.NewStore()
	day := date(t, "2015-10-25")
	src := &stubSource{batch: rawsource.Batch{Readings: []rawsource.Reading{
		{Moment: calendar.LocalMoment{Date: day, Hour: 2, DST: true}, EnergyWh: 11},
		{Moment: calendar.LocalMoment{Date: day, Hour: 2, DST: false}, EnergyWh: 22},
	}}}
	svc := testService(t, store, fleetmemory.NewProvider(), stubOpener(src))

	result := svc.UpdateMeter(context.Background(), testMeter(), day, day)
	if result.Failed() {
		t.Fatalf("unexpected error: %v", result.Err)
	}
	if result.Upserted != 2 {
		t.Fatalf("Upserted = %d, want 2", result.Upserted)
	}

	// The two occurrences of 02 local land on distinct UTC hours.
	dstInstant := time.Date(2015, time.October, 25, 0, 0, 0, 0, time.UTC)
	stdInstant := time.Date(2015, time.October, 25, 1, 0, 0, 0, time.UTC)
	points, err := store.Query(context.Background(), "meter-1", dstInstant, stdInstant.Add(time.Hour))
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if points[dstInstant] != 11 || points[stdInstant] != 22 {
		t.Fatalf("stored = %v, want 11 at %v and 22 at %v", points, dstInstant, stdInstant)
	}
}

func TestUpdateMeterIsIdempotent(t *testing.T) {
	store := curvememory.NewStore()
	day := date(t, "2015-03-16")
	src := &stubSource{batch: rawsource.Batch{Readings: []rawsource.Reading{
		{Moment: calendar.LocalMoment{Date: day, Hour: 13}, EnergyWh: 250},
	}}}
	svc := testService(t, store, fleetmemory.NewProvider(), stubOpener(src))

	for i := 0; i < 2; i++ {
		if result := svc.UpdateMeter(context.Background(), testMeter(), day, day); result.Failed() {
			t.Fatalf("run %d: %v", i, result.Err)
		}
	}

	at := time.Date(2015, time.March, 16, 12, 0, 0, 0, time.UTC)
	points, err := store.Query(context.Background(), "meter-1", at, at.Add(time.Hour))
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(points) != 1 || points[at] != 250 {
		t.Fatalf("stored = %v, want exactly one reading of 250", points)
	}
}

func TestUpdateMeterSourceFailure(t *testing.T) {
	store := curvememory.NewStore()
	day := date(t, "2015-03-16")
	src := &stubSource{getErr: rawsource.ErrSourceUnavailable}
	svc := testService(t, store, fleetmemory.NewProvider(), stubOpener(src))

	result := svc.UpdateMeter(context.Background(), testMeter(), day, day)
	if !errors.Is(result.Err, rawsource.ErrSourceUnavailable) {
		t.Fatalf("Err = %v, want ErrSourceUnavailable", result.Err)
	}
	if result.Upserted != 0 {
		t.Fatalf("Upserted = %d, want 0", result.Upserted)
	}
}

func TestUpdateMeterInvalidRange(t *testing.T) {
	svc := testService(t, curvememory.NewStore(), fleetmemory.NewProvider(), stubOpener(&stubSource{}))
	result := svc.UpdateMeter(context.Background(), testMeter(), date(t, "2015-03-20"), date(t, "2015-03-16"))
	if !result.Failed() {
		t.Fatal("expected error on reversed range")
	}
}

func TestUpdateAggregatorFansOutAndIsolatesFailures(t *testing.T) {
	provider := fleetmemory.NewProvider()
	provider.AddAggregator(fleet.Aggregator{ID: "agg-1", Name: "Generation", Enabled: true})
	provider.AddPlant(fleet.Plant{ID: "plant-1", AggregatorID: "agg-1", Name: "Alcolea", NShares: 100, Enabled: true})
	provider.AddMeter(fleet.Meter{ID: "meter-ok", PlantID: "plant-1", SourceURI: "csv://ok", Enabled: true})
	provider.AddMeter(fleet.Meter{ID: "meter-bad", PlantID: "plant-1", SourceURI: "csv://bad", Enabled: true})

	day := date(t, "2015-03-16")
	sources := map[string]*stubSource{
		"csv://ok": {batch: rawsource.Batch{Readings: []rawsource.Reading{
			{Moment: calendar.LocalMoment{Date: day, Hour: 5}, EnergyWh: 7},
		}}},
		"csv://bad": {getErr: rawsource.ErrSourceUnavailable},
	}
	open := func(uri string) (rawsource.Source, error) { return sources[uri], nil }
	svc := testService(t, curvememory.NewStore(), provider, open)

	results, err := svc.UpdateAggregator(context.Background(), "agg-1", day, day)
	if err != nil {
		t.Fatalf("UpdateAggregator: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	byMeter := make(map[string]Result)
	for _, r := range results {
		byMeter[r.MeterID] = r
	}
	if byMeter["meter-ok"].Failed() || byMeter["meter-ok"].Upserted != 1 {
		t.Fatalf("meter-ok result = %+v", byMeter["meter-ok"])
	}
	if !errors.Is(byMeter["meter-bad"].Err, rawsource.ErrSourceUnavailable) {
		t.Fatalf("meter-bad Err = %v, want ErrSourceUnavailable", byMeter["meter-bad"].Err)
	}
}

func TestUpdateAggregatorUnknownAggregator(t *testing.T) {
	svc := testService(t, curvememory.NewStore(), fleetmemory.NewProvider(), stubOpener(&stubSource{}))
	day := date(t, "2015-03-16")
	if _, err := svc.UpdateAggregator(context.Background(), "nope", day, day); !errors.Is(err, fleet.ErrAggregatorNotFound) {
		t.Fatalf("err = %v, want ErrAggregatorNotFound", err)
	}
}
