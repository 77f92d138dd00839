// Package gait extracts gait-quality metrics from batches of tri-axial
// accelerometer samples: resampling onto a uniform grid, isolating the
// vertical component, autocorrelation and peak analysis.
package gait

import "time"

// Sample is one accelerometer reading. T is relative to the start of the
// batch once the batch is normalized; X, Y and Z are in m/s².
type Sample struct {
	T       time.Duration
	X, Y, Z float64
}

// Batch is a frozen block of samples identified by the wall-clock time
// (unix milliseconds) at which its first sample was recorded.
type Batch struct {
	StartMs int64
	Samples []Sample
}

// NewBatch copies samples into a new Batch and shifts timestamps so the first
// sample is at zero. The caller keeps ownership of samples; the returned batch
// shares no memory with it.
func NewBatch(startMs int64, samples []Sample) Batch {
	out := make([]Sample, len(samples))
	copy(out, samples)
	if len(out) > 0 && out[0].T != 0 {
		t0 := out[0].T
		for i := range out {
			out[i].T -= t0
		}
	}
	return Batch{StartMs: startMs, Samples: out}
}

// Len returns the number of samples.
func (b Batch) Len() int { return len(b.Samples) }

// Duration is the timestamp of the last sample, or zero for an empty batch.
func (b Batch) Duration() time.Duration {
	if len(b.Samples) == 0 {
		return 0
	}
	return b.Samples[len(b.Samples)-1].T
}
