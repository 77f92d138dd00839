package gait

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// walkingBatch builds a 10 s, 100 Hz recording: constant gravity tilted away
// from Z plus a vertical sinusoid at freqHz. Timestamps carry a small
// deterministic jitter so the resampler has work to do.
func walkingBatch(startMs int64, freqHz float64) Batch {
	const n = 1000
	samples := make([]Sample, n)
	for i := range samples {
		t := time.Duration(i) * 10 * time.Millisecond
		if i > 0 && i < n-1 {
			t += time.Duration((i*7)%5-2) * 400 * time.Microsecond
		}
		bounce := 2.0 * math.Sin(2*math.Pi*freqHz*t.Seconds())
		samples[i] = Sample{T: t, X: 1.0, Y: 2.0, Z: 9.5 + bounce}
	}
	return NewBatch(startMs, samples)
}

func constantBatch(n int, x, y, z float64) Batch {
	samples := make([]Sample, n)
	for i := range samples {
		samples[i] = Sample{T: time.Duration(i) * 10 * time.Millisecond, X: x, Y: y, Z: z}
	}
	return NewBatch(0, samples)
}

func TestNewBatchNormalizesAndCopies(t *testing.T) {
	src := []Sample{
		{T: 5 * time.Second, X: 1},
		{T: 5*time.Second + 10*time.Millisecond, X: 2},
		{T: 5*time.Second + 30*time.Millisecond, X: 3},
	}
	b := NewBatch(1700000000000, src)

	require.Equal(t, 3, b.Len())
	assert.Equal(t, time.Duration(0), b.Samples[0].T)
	assert.Equal(t, 30*time.Millisecond, b.Duration())

	src[1].X = 99
	assert.Equal(t, 2.0, b.Samples[1].X, "batch must not alias its input")
	assert.Equal(t, 5*time.Second, src[0].T, "input timestamps must be left alone")
}

func TestResampleRejectsShortBatches(t *testing.T) {
	_, err := Resample(NewBatch(0, []Sample{{T: 0}}))
	require.ErrorIs(t, err, ErrInsufficientData)

	_, err = Resample(NewBatch(0, []Sample{{T: time.Second}, {T: time.Second}}))
	require.ErrorIs(t, err, ErrInsufficientData)
}

func TestResampleKeepsEndpointsAndLength(t *testing.T) {
	b := walkingBatch(42, 2)
	out, err := Resample(b)
	require.NoError(t, err)

	require.Equal(t, b.Len(), out.Len())
	assert.Equal(t, b.Samples[0], out.Samples[0])
	assert.Equal(t, b.Samples[b.Len()-1], out.Samples[out.Len()-1])
	assert.Equal(t, int64(42), out.StartMs)
}

func TestResampleInterpolatesLinearSignalExactly(t *testing.T) {
	ts := []time.Duration{0, 7, 19, 20, 33, 51, 60, 78, 90, 100}
	samples := make([]Sample, len(ts))
	for i, ms := range ts {
		sec := (ms * time.Millisecond).Seconds()
		samples[i] = Sample{T: ms * time.Millisecond, X: 2*sec + 1, Y: -sec, Z: 9.8}
	}

	out, err := Resample(NewBatch(0, samples))
	require.NoError(t, err)

	for i, s := range out.Samples {
		sec := s.T.Seconds()
		assert.InDelta(t, 2*sec+1, s.X, 1e-9, "sample %d", i)
		assert.InDelta(t, -sec, s.Y, 1e-9, "sample %d", i)
		assert.InDelta(t, 9.8, s.Z, 1e-9, "sample %d", i)
	}
	for i := 1; i < out.Len()-1; i++ {
		assert.Equal(t, time.Duration(i)*10*time.Millisecond, out.Samples[i].T)
	}
}

func TestResampleIsIdempotent(t *testing.T) {
	once, err := Resample(walkingBatch(0, 2))
	require.NoError(t, err)
	twice, err := Resample(once)
	require.NoError(t, err)

	require.Equal(t, once.Len(), twice.Len())
	for i := range once.Samples {
		assert.InDelta(t, once.Samples[i].X, twice.Samples[i].X, 1e-6)
		assert.InDelta(t, once.Samples[i].Y, twice.Samples[i].Y, 1e-6)
		assert.InDelta(t, once.Samples[i].Z, twice.Samples[i].Z, 1e-6)
	}
}

func TestVerticalComponentZeroMagnitude(t *testing.T) {
	_, err := VerticalComponent(constantBatch(100, 0, 0, 0))
	require.ErrorIs(t, err, ErrDegenerateSignal)
}

func TestVerticalComponentAxisAligned(t *testing.T) {
	samples := []Sample{
		{T: 0, X: 10, Y: 0, Z: 0},
		{T: time.Millisecond, X: 9, Y: 0.5, Z: 0},
		{T: 2 * time.Millisecond, X: 11, Y: -0.5, Z: 0},
	}
	v, err := VerticalComponent(NewBatch(0, samples))
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{10, 9, 11}, v, 1e-12)

	down := constantBatch(3, 0, 0, -9.81)
	v, err = VerticalComponent(down)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{9.81, 9.81, 9.81}, v, 1e-12)
}

func TestVerticalComponentMeanEqualsGravityMagnitude(t *testing.T) {
	b := walkingBatch(0, 2)
	v, err := VerticalComponent(b)
	require.NoError(t, err)

	var sum float64
	for _, x := range v {
		sum += x
	}
	want := math.Sqrt(1*1 + 2*2 + 9.5*9.5)
	assert.InDelta(t, want, sum/float64(len(v)), 0.05)
}

func TestConstantBatchIsDegenerate(t *testing.T) {
	v, err := VerticalComponent(constantBatch(500, 0.3, -1.2, 9.7))
	require.NoError(t, err)
	for _, x := range v {
		require.False(t, math.IsNaN(x))
	}

	_, err = Autocorrelate(v, 0)
	require.ErrorIs(t, err, ErrDegenerateSignal)
}

func TestAutocorrelateLength(t *testing.T) {
	x := make([]float64, 64)
	for i := range x {
		x[i] = math.Sin(float64(i))
	}
	for _, tc := range []struct {
		maxLag int
		want   int
	}{
		{0, 64},
		{10, 10},
		{64, 64},
		{500, 64},
	} {
		ac, err := Autocorrelate(x, tc.maxLag)
		require.NoError(t, err)
		assert.Len(t, ac, tc.want, "maxLag %d", tc.maxLag)
	}
}

func TestAutocorrelateValues(t *testing.T) {
	x := []float64{1, -1, 1, -1, 1, -1, 1, -1}
	ac, err := Autocorrelate(x, 3)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{1, -1, 1}, ac, 1e-12)

	_, err = Autocorrelate(nil, 0)
	require.ErrorIs(t, err, ErrInsufficientData)
}

func cosineSeries(n int, period float64) []float64 {
	ac := make([]float64, n)
	for k := range ac {
		ac[k] = math.Cos(2 * math.Pi * float64(k) / period)
	}
	return ac
}

func TestDetectCosine(t *testing.T) {
	det, err := Detector{}.Detect(cosineSeries(1000, 50), 10*time.Second, 1000)
	require.NoError(t, err)

	assert.Equal(t, Walking, det.Outcome)
	assert.Equal(t, []int{12, 37, 62, 87, 112}, det.Crossings)
	assert.Equal(t, 100, det.StrideLag)
	assert.InDelta(t, 1.0, det.StepRegularity, 1e-12)
	assert.InDelta(t, 1.0, det.StrideRegularity, 1e-12)
	assert.InDelta(t, 60.0, det.Cadence, 1e-9)
}

func TestDetectNotWalking(t *testing.T) {
	ac := make([]float64, 200)
	ac[0] = 1
	for k := 1; k < len(ac); k++ {
		ac[k] = 0.05 * math.Cos(float64(k))
	}
	det, err := Detector{}.Detect(ac, 2*time.Second, 200)
	require.NoError(t, err)
	assert.Equal(t, NotWalking, det.Outcome)

	// The same series is walking under a lower threshold.
	det, err = Detector{WalkingRMSThreshold: 0.01}.Detect(ac, 2*time.Second, 200)
	require.NoError(t, err)
	assert.NotEqual(t, NotWalking, det.Outcome)
}

func TestDetectInsufficientPeriodicity(t *testing.T) {
	ac := make([]float64, 100)
	for k := range ac {
		ac[k] = 1 - float64(k)/40
	}
	det, err := Detector{}.Detect(ac, time.Second, 100)
	require.NoError(t, err)
	assert.Equal(t, InsufficientPeriodicity, det.Outcome)
	assert.Len(t, det.Crossings, 1)
}

func TestDetectZeroStrideRegularity(t *testing.T) {
	ac := make([]float64, 40)
	for k := range ac {
		ac[k] = 1
		if k%2 == 1 {
			ac[k] = -1
		}
	}
	_, err := Detector{}.Detect(ac, time.Second, 40)
	require.ErrorIs(t, err, ErrDegenerateSignal)
}

// peakedSeries has crossings at 4, 9, 14, 19, 24 with the step peak at lag
// 12 and the stride peak at lag 22.
func peakedSeries(step, stride float64) []float64 {
	ac := make([]float64, 60)
	for k := range ac {
		switch {
		case k <= 4:
			ac[k] = 1
		case k <= 9:
			ac[k] = -0.5
		case k <= 14:
			ac[k] = 0.1
		case k <= 19:
			ac[k] = -0.5
		case k <= 24:
			ac[k] = 0.1
		default:
			ac[k] = -0.2
		}
	}
	ac[12] = step
	ac[22] = stride
	return ac
}

func TestStepSymmetry(t *testing.T) {
	det, err := Detector{}.Detect(peakedSeries(0.7, 0.7), time.Second, 60)
	require.NoError(t, err)
	require.Equal(t, []int{4, 9, 14, 19, 24}, det.Crossings)
	assert.Equal(t, 1.0, det.StepSymmetry)
	assert.Equal(t, 22, det.StrideLag)

	det, err = Detector{}.Detect(peakedSeries(0.6, 0.8), time.Second, 60)
	require.NoError(t, err)
	assert.NotEqual(t, 1.0, det.StepSymmetry)
	assert.InDelta(t, 0.75, det.StepSymmetry, 1e-12)
}

func TestProcessBatchWalking(t *testing.T) {
	p := NewProcessor(Config{})
	a, err := p.ProcessBatch(walkingBatch(1700000000000, 2))
	require.NoError(t, err)

	require.Equal(t, Walking, a.Outcome)
	assert.Greater(t, a.RMS, DefaultWalkingRMSThreshold)
	assert.Len(t, a.Crossings, 5)
	require.NotNil(t, a.Metrics)

	m := a.Metrics
	assert.Equal(t, int64(1700000000000), m.TimestampMs)
	// A 2 Hz vertical bounce is two steps per second: 60 strides, 120 steps.
	assert.InDelta(t, 60, m.Cadence, 1.5)
	assert.InDelta(t, 120, m.StepsPerMinute(), 3)
	assert.InDelta(t, 1, m.StepRegularity, 0.1)
	assert.InDelta(t, 1, m.StrideRegularity, 0.1)
	assert.InDelta(t, 1, m.StepSymmetry, 0.1)
	assert.Len(t, a.Autocorrelation, 1000)
}

func TestProcessBatchMaxLag(t *testing.T) {
	p := NewProcessor(Config{MaxLag: 400})
	a, err := p.ProcessBatch(walkingBatch(0, 2))
	require.NoError(t, err)
	assert.Len(t, a.Autocorrelation, 400)
	assert.Equal(t, Walking, a.Outcome)
}

func TestProcessBatchFlatIsNotWalking(t *testing.T) {
	p := NewProcessor(Config{})
	a, err := p.ProcessBatch(constantBatch(1000, 0.2, 0.1, 9.81))
	require.NoError(t, err)
	assert.Equal(t, NotWalking, a.Outcome)
	assert.Nil(t, a.Metrics)
}

func TestProcessBatchNoise(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	samples := make([]Sample, 1000)
	for i := range samples {
		samples[i] = Sample{
			T: time.Duration(i) * 10 * time.Millisecond,
			X: rng.NormFloat64() * 0.2,
			Y: rng.NormFloat64() * 0.2,
			Z: 9.81 + rng.NormFloat64()*0.2,
		}
	}
	a, err := NewProcessor(Config{}).ProcessBatch(NewBatch(0, samples))
	require.NoError(t, err)
	assert.Equal(t, NotWalking, a.Outcome)
	assert.Nil(t, a.Metrics)
}

func TestProcessBatchErrors(t *testing.T) {
	p := NewProcessor(Config{})

	_, err := p.ProcessBatch(NewBatch(0, []Sample{{X: 1}}))
	require.ErrorIs(t, err, ErrInsufficientData)

	_, err = p.ProcessBatch(constantBatch(100, 0, 0, 0))
	require.ErrorIs(t, err, ErrDegenerateSignal)
}

func TestVerticalComponentRejectsOverflowingMean(t *testing.T) {
	samples := make([]Sample, 100)
	for i := range samples {
		samples[i] = Sample{T: time.Duration(i) * 10 * time.Millisecond, X: 1e308, Y: 1e308, Z: 1}
	}
	_, err := VerticalComponent(NewBatch(0, samples))
	assert.ErrorIs(t, err, ErrDegenerateSignal)
}

func TestVerticalComponentLargeFiniteMean(t *testing.T) {
	// squaring these components overflows, their magnitude does not
	b := constantBatch(10, 3e200, 0, 4e200)
	v, err := VerticalComponent(b)
	require.NoError(t, err)
	for _, x := range v {
		assert.InDelta(t, 1, x/5e200, 1e-9)
	}
}

func TestAutocorrelateRejectsNonFiniteVariance(t *testing.T) {
	_, err := Autocorrelate([]float64{1e300, -1e300, 1e300, -1e300}, 0)
	assert.ErrorIs(t, err, ErrDegenerateSignal)

	_, err = Autocorrelate([]float64{1, math.NaN(), 2}, 0)
	assert.ErrorIs(t, err, ErrDegenerateSignal)
}

func TestProcessBatchExtremeInputNeverYieldsNaN(t *testing.T) {
	samples := make([]Sample, 200)
	for i := range samples {
		samples[i] = Sample{T: time.Duration(i) * 10 * time.Millisecond, X: 1e308, Y: 1e308}
	}
	a, err := NewProcessor(Config{}).ProcessBatch(NewBatch(0, samples))
	if err != nil {
		assert.ErrorIs(t, err, ErrDegenerateSignal)
		return
	}
	assert.False(t, math.IsNaN(a.RMS))
	assert.Equal(t, NotWalking, a.Outcome)
}

func TestDetectFullLengthRMS(t *testing.T) {
	ac := cosineSeries(1000, 50)
	half, err := Detector{}.Detect(ac, 10*time.Second, 1000)
	require.NoError(t, err)
	full, err := Detector{FullLengthRMS: true}.Detect(ac, 10*time.Second, 1000)
	require.NoError(t, err)
	assert.InDelta(t, math.Sqrt2, half.RMS/full.RMS, 1e-9)

	for k := range ac {
		ac[k] *= 0.45
	}
	det, err := Detector{}.Detect(ac, 10*time.Second, 1000)
	require.NoError(t, err)
	assert.Equal(t, Walking, det.Outcome)

	det, err = Detector{FullLengthRMS: true}.Detect(ac, 10*time.Second, 1000)
	require.NoError(t, err)
	assert.Equal(t, NotWalking, det.Outcome)
	assert.InDelta(t, 0.225, det.RMS, 1e-3)
}
