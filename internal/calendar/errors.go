package calendar

import "errors"

var (
	// ErrInvalidDate is returned when a date string cannot be parsed.
	ErrInvalidDate = errors.New("calendar: invalid date")
	// ErrInvalidLocalMoment is returned when a local moment does not exist
	// in the configured timezone (skipped hour, or wrong DST flag).
	ErrInvalidLocalMoment = errors.New("calendar: invalid local moment")
	// ErrUnknownTimezone is returned when the timezone name cannot be resolved.
	ErrUnknownTimezone = errors.New("calendar: unknown timezone")
)
