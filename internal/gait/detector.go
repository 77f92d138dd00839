package gait

import (
	"fmt"
	"math"
	"time"
)

// DefaultWalkingRMSThreshold separates walking from other activity. It was
// tuned empirically against labelled recordings.
const DefaultWalkingRMSThreshold = 0.25

// requiredCrossings is the number of zero crossings needed to bracket the
// step peak and the stride peak: one descending from lag 0, two around the
// step peak and two around the stride peak.
const requiredCrossings = 5

// Outcome classifies what a batch turned out to contain.
type Outcome int

const (
	// NotWalking means the autocorrelation is too weak to be gait.
	NotWalking Outcome = iota
	// InsufficientPeriodicity means the batch looked like walking but the
	// step and stride peaks could not both be located.
	InsufficientPeriodicity
	// Walking means metrics were extracted.
	Walking
)

func (o Outcome) String() string {
	switch o {
	case NotWalking:
		return "not_walking"
	case InsufficientPeriodicity:
		return "insufficient_periodicity"
	case Walking:
		return "walking"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Metrics are the gait parameters extracted from one batch.
type Metrics struct {
	TimestampMs      int64   `json:"timestamp_ms"`
	StepRegularity   float64 `json:"step_regularity"`
	StrideRegularity float64 `json:"stride_regularity"`
	StepSymmetry     float64 `json:"step_symmetry"`
	// Cadence is in strides per minute.
	Cadence float64 `json:"cadence"`
}

// StepsPerMinute converts the stride cadence into steps per minute.
func (m Metrics) StepsPerMinute() float64 {
	return 2 * m.Cadence
}

// Detection is the detector's view of one autocorrelation series.
type Detection struct {
	Outcome   Outcome
	RMS       float64
	Crossings []int

	StepRegularity   float64
	StrideRegularity float64
	StrideLag        int
	Cadence          float64
	StepSymmetry     float64
}

// Detector classifies autocorrelation series and derives gait metrics.
// The zero value uses DefaultWalkingRMSThreshold.
type Detector struct {
	WalkingRMSThreshold float64
	// FullLengthRMS divides the first-half sum of squares by the whole
	// series length instead of the half length. DefaultWalkingRMSThreshold
	// was tuned on recordings scored that way, so this makes the
	// classification match that tuning; RMS values are smaller by √2.
	FullLengthRMS bool
}

func (d Detector) threshold() float64 {
	if d.WalkingRMSThreshold > 0 {
		return d.WalkingRMSThreshold
	}
	return DefaultWalkingRMSThreshold
}

// Detect runs classification and peak extraction over ac, the
// autocorrelation of a batch of sampleCount samples spanning duration.
// Later lags overlap less of the signal and are less reliable, so only the
// first half of ac is examined.
func (d Detector) Detect(ac []float64, duration time.Duration, sampleCount int) (Detection, error) {
	half := len(ac) / 2
	if half == 0 || sampleCount <= 0 {
		return Detection{}, fmt.Errorf("detect over %d lags: %w", len(ac), ErrInsufficientData)
	}

	var sq float64
	for _, v := range ac[:half] {
		sq += v * v
	}
	divisor := half
	if d.FullLengthRMS {
		divisor = len(ac)
	}
	det := Detection{RMS: math.Sqrt(sq / float64(divisor))}
	if det.RMS <= d.threshold() {
		det.Outcome = NotWalking
		return det, nil
	}

	det.Crossings = zeroCrossings(ac, half, requiredCrossings)
	if len(det.Crossings) < requiredCrossings {
		det.Outcome = InsufficientPeriodicity
		return det, nil
	}
	c := det.Crossings

	det.StepRegularity, _ = peakBetween(ac, c[1], c[2])
	det.StrideRegularity, det.StrideLag = peakBetween(ac, c[3], c[4])
	if det.StrideRegularity == 0 {
		return det, fmt.Errorf("stride regularity is zero: %w", ErrDegenerateSignal)
	}

	strideSeconds := duration.Seconds() * float64(det.StrideLag) / float64(sampleCount)
	det.Cadence = 60 / strideSeconds
	det.StepSymmetry = det.StepRegularity / det.StrideRegularity
	det.Outcome = Walking
	return det, nil
}

// zeroCrossings returns up to limit indices i < end where ac changes sign
// between i and i+1. Zero counts as positive.
func zeroCrossings(ac []float64, end, limit int) []int {
	out := make([]int, 0, limit)
	for i := 0; i < end && i+1 < len(ac); i++ {
		if (ac[i] < 0) != (ac[i+1] < 0) {
			out = append(out, i)
			if len(out) == limit {
				break
			}
		}
	}
	return out
}

// peakBetween returns the largest positive value strictly between lags lo
// and hi and its lag. It returns (0, 0) if there is none.
func peakBetween(ac []float64, lo, hi int) (float64, int) {
	var best float64
	var at int
	for i := lo + 1; i < hi; i++ {
		if ac[i] > best {
			best = ac[i]
			at = i
		}
	}
	return best, at
}
