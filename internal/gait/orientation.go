package gait

import (
	"fmt"
	"math"
)

// Magnitudes below this are treated as zero when normalizing the mean vector.
const minGravityMagnitude = 1e-12

// VerticalComponent estimates the direction of gravity as the mean
// acceleration of the batch, rotates every sample so that direction becomes
// +Z and returns the rotated Z values. Horizontal components are dropped.
func VerticalComponent(b Batch) ([]float64, error) {
	n := len(b.Samples)
	if n == 0 {
		return nil, fmt.Errorf("vertical component of empty batch: %w", ErrInsufficientData)
	}

	var mx, my, mz float64
	for _, s := range b.Samples {
		mx += s.X
		my += s.Y
		mz += s.Z
	}
	mx /= float64(n)
	my /= float64(n)
	mz /= float64(n)

	if !finite(mx) || !finite(my) || !finite(mz) {
		return nil, fmt.Errorf("mean acceleration (%g, %g, %g): %w", mx, my, mz, ErrDegenerateSignal)
	}
	mag := math.Hypot(math.Hypot(mx, my), mz)
	if mag < minGravityMagnitude || !finite(mag) {
		return nil, fmt.Errorf("mean acceleration magnitude %g: %w", mag, ErrDegenerateSignal)
	}
	ux, uy := mx/mag, my/mag

	cosTheta := math.Max(-1, math.Min(1, mz/mag))
	sinTheta := math.Sqrt(1 - cosTheta*cosTheta)

	// Rotation axis is mean × (0,0,1) = (uy, -ux, 0), scaled to unit length.
	// Its Z component is always zero, so only the bottom row of the
	// Rodrigues matrix survives.
	var axisX, axisY float64
	if sinTheta > 0 {
		axisX = uy / sinTheta
		axisY = -ux / sinTheta
	}
	bottomLeft := -axisY * sinTheta
	bottomCentre := axisX * sinTheta
	bottomRight := cosTheta

	out := make([]float64, n)
	for i, s := range b.Samples {
		out[i] = s.X*bottomLeft + s.Y*bottomCentre + s.Z*bottomRight
	}
	return out, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
