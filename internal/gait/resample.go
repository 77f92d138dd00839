package gait

import (
	"fmt"
	"math"
	"time"
)

// Resample interpolates a normalized batch onto a uniform grid with the same
// number of samples spanning [0, duration]. The first and last samples are
// copied unchanged; interior sample i is placed at i*duration/count and
// linearly interpolated between the two original samples bracketing it.
func Resample(b Batch) (Batch, error) {
	n := len(b.Samples)
	if n < 2 {
		return Batch{}, fmt.Errorf("resample %d samples: %w", n, ErrInsufficientData)
	}
	src := b.Samples
	if src[0].T != 0 {
		return Resample(NewBatch(b.StartMs, src))
	}
	duration := float64(src[n-1].T)
	if duration <= 0 {
		return Batch{}, fmt.Errorf("resample over %s: %w", src[n-1].T, ErrInsufficientData)
	}

	out := make([]Sample, n)
	out[0] = src[0]
	out[n-1] = src[n-1]

	// next only ever moves forward, so the whole pass is O(n).
	next := 1
	for i := 1; i < n-1; i++ {
		target := float64(i) * duration / float64(n)
		for target > float64(src[next].T) {
			next++
		}
		prev := src[next-1]
		after := src[next]

		// target lies in (prev.T, after.T], so the span is never zero.
		span := float64(after.T - prev.T)
		w := (target - float64(prev.T)) / span

		out[i] = Sample{
			T: time.Duration(math.Round(target)),
			X: lerp(prev.X, after.X, w),
			Y: lerp(prev.Y, after.Y, w),
			Z: lerp(prev.Z, after.Z, w),
		}
	}
	return Batch{StartMs: b.StartMs, Samples: out}, nil
}

func lerp(a, b, w float64) float64 {
	return a + (b-a)*w
}
