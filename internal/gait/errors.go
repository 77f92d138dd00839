package gait

import "errors"

var (
	// ErrInsufficientData is returned for batches that are too short or
	// cover a zero or negative duration.
	ErrInsufficientData = errors.New("gait: insufficient data")

	// ErrDegenerateSignal is returned when a quantity used as a divisor is
	// zero: the mean acceleration magnitude, the series variance or the
	// stride regularity.
	ErrDegenerateSignal = errors.New("gait: degenerate signal")
)
