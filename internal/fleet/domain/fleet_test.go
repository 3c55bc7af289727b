package fleet

import (
	"testing"
	"time"

	"plantmeter-cloud/internal/calendar"
)

func d(year int, month time.Month, day int) calendar.Date {
	return calendar.Date{Year: year, Month: month, Day: day}
}

func TestMeterActiveOn(t *testing.T) {
	meter := Meter{
		ID:              "meter-1",
		FirstActiveDate: d(2015, time.March, 1),
		LastActiveDate:  d(2015, time.March, 31),
		Enabled:         true,
	}

	cases := []struct {
		day  calendar.Date
		want bool
	}{
		{d(2015, time.February, 28), false},
		{d(2015, time.March, 1), true},
		{d(2015, time.March, 16), true},
		{d(2015, time.March, 31), true},
		{d(2015, time.April, 1), false},
	}
	for _, tc := range cases {
		if got := meter.ActiveOn(tc.day); got != tc.want {
			t.Fatalf("ActiveOn(%s) = %t, want %t", tc.day, got, tc.want)
		}
	}
}

func TestMeterActiveOn_OpenEnded(t *testing.T) {
	meter := Meter{
		ID:              "meter-1",
		FirstActiveDate: d(2000, time.January, 1),
		Enabled:         true,
	}
	if !meter.ActiveOn(d(2035, time.December, 31)) {
		t.Fatal("open-ended lifetime must cover any later day")
	}
}

func TestMeterActiveOn_Disabled(t *testing.T) {
	meter := Meter{
		ID:              "meter-1",
		FirstActiveDate: d(2000, time.January, 1),
		Enabled:         false,
	}
	if meter.ActiveOn(d(2015, time.March, 16)) {
		t.Fatal("disabled meter must never be active")
	}
}

func TestPlantActiveOn_NoFirstDate(t *testing.T) {
	plant := Plant{ID: "plant-1", Enabled: true}
	if plant.ActiveOn(d(2015, time.March, 16)) {
		t.Fatal("a plant without first_active_date is not yet active")
	}
}
