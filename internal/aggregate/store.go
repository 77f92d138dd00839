// Package aggregate maintains the raw, hourly, daily and monthly gait
// series and rolls finer records up into coarser buckets as data arrives.
package aggregate

import (
	"context"
	"errors"
	"fmt"
)

// Granularity selects one of the four series.
type Granularity int

const (
	Raw Granularity = iota
	Hourly
	Daily
	Monthly
)

// Granularities lists every series from finest to coarsest.
var Granularities = []Granularity{Raw, Hourly, Daily, Monthly}

func (g Granularity) String() string {
	switch g {
	case Raw:
		return "raw"
	case Hourly:
		return "hourly"
	case Daily:
		return "daily"
	case Monthly:
		return "monthly"
	default:
		return fmt.Sprintf("granularity(%d)", int(g))
	}
}

// ParseGranularity accepts the names produced by String.
func ParseGranularity(s string) (Granularity, error) {
	for _, g := range Granularities {
		if g.String() == s {
			return g, nil
		}
	}
	return 0, fmt.Errorf("unknown granularity %q", s)
}

// Record is one row of a series. For coarser series the metric fields are
// means over the bucket starting at TimestampMs.
type Record struct {
	ID               int64   `json:"id"`
	TimestampMs      int64   `json:"timestamp_ms"`
	StepRegularity   float64 `json:"step_regularity"`
	StrideRegularity float64 `json:"stride_regularity"`
	StepSymmetry     float64 `json:"step_symmetry"`
	Cadence          float64 `json:"cadence"`
}

// Store persists the four series.
type Store interface {
	// Insert appends rec to the series and returns its id. rec.ID is ignored.
	Insert(ctx context.Context, g Granularity, rec Record) (int64, error)
	// Query returns records with start <= TimestampMs <= end, oldest first.
	Query(ctx context.Context, g Granularity, start, end int64) ([]Record, error)
	// LastTimestamp returns the newest timestamp in the series. ok is false
	// if the series is empty.
	LastTimestamp(ctx context.Context, g Granularity) (ts int64, ok bool, err error)
	// Atomic runs fn against a view of the store whose writes are applied
	// together or not at all.
	Atomic(ctx context.Context, fn func(Store) error) error
}

// ErrStorage matches every *StorageError.
var ErrStorage = errors.New("aggregate: storage failure")

// StorageError reports a failed read or write against a Store.
type StorageError struct {
	Op          string
	Granularity Granularity
	Err         error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Granularity, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func (e *StorageError) Is(target error) bool { return target == ErrStorage }
