// Package calendar resolves naive local times to unambiguous UTC instants.
//
// A local calendar day has 24 hours except on DST transition days: the
// spring-forward day skips one naive hour (23 hours) and the fall-back day
// repeats one (25 hours). The repeated hour is disambiguated by an explicit
// DST flag, never by offset arithmetic at the call sites.
package calendar

import (
	"fmt"
	"time"
)

// LocalMoment is a naive local hour tagged with its DST disambiguation.
// On a fall-back day two moments share the same Date and Hour and differ
// only in DST; everywhere else the flag is redundant but must still match
// the zone actually in effect.
type LocalMoment struct {
	Date Date
	Hour int
	DST  bool
}

// Resolver converts between LocalMoments and UTC instants for one timezone.
type Resolver struct {
	loc *time.Location
}

// NewResolver builds a resolver for the named IANA timezone.
func NewResolver(name string) (*Resolver, error) {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTimezone, name)
	}
	return &Resolver{loc: loc}, nil
}

// Location returns the resolver's timezone.
func (r *Resolver) Location() *time.Location {
	return r.loc
}

// HoursInLocalDay enumerates the local day's moments in chronological
// order: 24 on an ordinary day, 23 on spring-forward, 25 on fall-back.
// On a fall-back day the DST-active occurrence of the repeated hour
// comes first.
func (r *Resolver) HoursInLocalDay(d Date) []LocalMoment {
	moments, _ := r.dayHours(d)
	return moments
}

// DayInstants returns the UTC instant of each moment of the local day,
// index-aligned with HoursInLocalDay.
func (r *Resolver) DayInstants(d Date) []time.Time {
	_, instants := r.dayHours(d)
	return instants
}

// Instant resolves a LocalMoment to its UTC instant. It fails with
// ErrInvalidLocalMoment when the moment does not exist: the skipped
// spring-forward hour, or a DST flag that contradicts the zone in effect.
func (r *Resolver) Instant(m LocalMoment) (time.Time, error) {
	if m.Hour < 0 || m.Hour > 23 {
		return time.Time{}, fmt.Errorf("%w: hour %d", ErrInvalidLocalMoment, m.Hour)
	}
	moments, instants := r.dayHours(m.Date)
	for i, candidate := range moments {
		if candidate == m {
			return instants[i], nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %s %02d:00 dst=%t", ErrInvalidLocalMoment, m.Date, m.Hour, m.DST)
}

// Local is the total inverse mapping: every instant has exactly one
// local representation.
func (r *Resolver) Local(t time.Time) LocalMoment {
	lt := t.In(r.loc)
	return LocalMoment{Date: DateOf(lt), Hour: lt.Hour(), DST: lt.IsDST()}
}

// dayHours walks whole UTC hours across the local day. The hours of one
// local day form a contiguous block of UTC hours, so the scan stops at the
// first hour past the block. Assumes whole-hour zone offsets, which holds
// for every zone this service is deployed with.
func (r *Resolver) dayHours(d Date) ([]LocalMoment, []time.Time) {
	anchor := time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC).Add(-36 * time.Hour)

	moments := make([]LocalMoment, 0, 25)
	instants := make([]time.Time, 0, 25)
	started := false
	for i := 0; i < 24*4; i++ {
		t := anchor.Add(time.Duration(i) * time.Hour)
		lt := t.In(r.loc)
		if DateOf(lt) != d {
			if started {
				break
			}
			continue
		}
		started = true
		moments = append(moments, LocalMoment{Date: d, Hour: lt.Hour(), DST: lt.IsDST()})
		instants = append(instants, t)
	}
	return moments, instants
}
