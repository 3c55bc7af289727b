package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	curve "plantmeter-cloud/internal/curve/domain"
)

func TestUpsertOverwrites(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	at := time.Date(2015, time.March, 16, 10, 0, 0, 0, time.UTC)

	if err := s.Upsert(ctx, "meter-1", at, 10); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := s.Upsert(ctx, "meter-1", at, 12); err != nil {
		t.Fatalf("upsert again: %v", err)
	}

	got, err := s.Query(ctx, "meter-1", at, at.Add(time.Hour))
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 1 || got[at] != 12 {
		t.Fatalf("expected single reading 12, got %v", got)
	}
}

func TestQueryRangeIsHalfOpen(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	base := time.Date(2015, time.March, 16, 0, 0, 0, 0, time.UTC)
	for hour := 0; hour < 4; hour++ {
		if err := s.Upsert(ctx, "meter-1", base.Add(time.Duration(hour)*time.Hour), float64(hour)); err != nil {
			t.Fatalf("upsert hour %d: %v", hour, err)
		}
	}

	got, err := s.Query(ctx, "meter-1", base.Add(time.Hour), base.Add(3*time.Hour))
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 readings, got %d", len(got))
	}
	if _, ok := got[base.Add(3*time.Hour)]; ok {
		t.Fatalf("end bound must be exclusive")
	}
}

func TestQueryMissingMeterIsEmptyNotError(t *testing.T) {
	s := NewStore()
	got, err := s.Query(context.Background(), "ghost",
		time.Date(2015, time.March, 16, 0, 0, 0, 0, time.UTC),
		time.Date(2015, time.March, 17, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty result, got %v", got)
	}
}

func TestFirstLastInstant(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	if _, err := s.FirstInstant(ctx, "meter-1"); !errors.Is(err, curve.ErrNoData) {
		t.Fatalf("expected ErrNoData, got %v", err)
	}
	if _, err := s.LastInstant(ctx, "meter-1"); !errors.Is(err, curve.ErrNoData) {
		t.Fatalf("expected ErrNoData, got %v", err)
	}

	early := time.Date(2015, time.August, 16, 5, 0, 0, 0, time.UTC)
	late := time.Date(2015, time.August, 17, 9, 0, 0, 0, time.UTC)
	_ = s.Upsert(ctx, "meter-1", late, 2)
	_ = s.Upsert(ctx, "meter-1", early, 1)

	first, err := s.FirstInstant(ctx, "meter-1")
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	if !first.Equal(early) {
		t.Fatalf("expected %s, got %s", early, first)
	}
	last, err := s.LastInstant(ctx, "meter-1")
	if err != nil {
		t.Fatalf("last: %v", err)
	}
	if !last.Equal(late) {
		t.Fatalf("expected %s, got %s", late, last)
	}
}

func TestInvalidArguments(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	at := time.Date(2015, time.March, 16, 0, 0, 0, 0, time.UTC)

	if err := s.Upsert(ctx, "", at, 1); !errors.Is(err, curve.ErrEmptyMeterID) {
		t.Fatalf("expected ErrEmptyMeterID, got %v", err)
	}
	if _, err := s.Query(ctx, "meter-1", at, at); !errors.Is(err, curve.ErrInvalidRange) {
		t.Fatalf("expected ErrInvalidRange, got %v", err)
	}
	if _, err := s.Query(ctx, "meter-1", at.Add(time.Hour), at); !errors.Is(err, curve.ErrInvalidRange) {
		t.Fatalf("expected ErrInvalidRange on inverted range, got %v", err)
	}
}

func TestConcurrentUpserts(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	base := time.Date(2015, time.March, 16, 0, 0, 0, 0, time.UTC)

	var wg sync.WaitGroup
	for worker := 0; worker < 8; worker++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for hour := 0; hour < 24; hour++ {
				_ = s.Upsert(ctx, "meter-1", base.Add(time.Duration(hour)*time.Hour), 10)
			}
		}()
	}
	wg.Wait()

	got, err := s.Query(ctx, "meter-1", base, base.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 24 {
		t.Fatalf("expected 24 readings, got %d", len(got))
	}
	for at, value := range got {
		if value != 10 {
			t.Fatalf("reading at %s: expected 10, got %f", at, value)
		}
	}
}
