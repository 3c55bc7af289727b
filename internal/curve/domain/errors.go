package curve

import "errors"

var (
	// ErrNoData is the defined sentinel for "no readings stored"; it is not
	// a failure and callers translate it to their own empty value.
	ErrNoData = errors.New("curve: no data")
	// ErrEmptyMeterID is returned when the meter id is empty.
	ErrEmptyMeterID = errors.New("curve: empty meter id")
	// ErrInvalidRange is returned when a query range is zero or inverted.
	ErrInvalidRange = errors.New("curve: invalid instant range")
	// ErrStorageUnavailable wraps backend failures. Writes are per-key
	// upserts, so a failed operation is safe to retry.
	ErrStorageUnavailable = errors.New("curve: storage unavailable")
)
