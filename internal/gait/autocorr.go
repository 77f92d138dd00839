package gait

import "fmt"

// Variances below this are treated as zero.
const minVariance = 1e-20

// Autocorrelate returns the normalized autocorrelation of x for lags
// [0, maxLag). A maxLag of zero, or one larger than len(x), means len(x).
// Each coefficient is divided by the series variance and by the number of
// overlapping samples at that lag, so lag 0 is always 1.
func Autocorrelate(x []float64, maxLag int) ([]float64, error) {
	n := len(x)
	if n == 0 {
		return nil, fmt.Errorf("autocorrelate empty series: %w", ErrInsufficientData)
	}
	if maxLag <= 0 || maxLag > n {
		maxLag = n
	}

	var mean float64
	for _, v := range x {
		mean += v
	}
	mean /= float64(n)

	centered := make([]float64, n)
	var variance float64
	for i, v := range x {
		c := v - mean
		centered[i] = c
		variance += c * c
	}
	variance /= float64(n)
	if variance < minVariance || !finite(variance) {
		return nil, fmt.Errorf("autocorrelate series with variance %g: %w", variance, ErrDegenerateSignal)
	}

	out := make([]float64, maxLag)
	for k := 0; k < maxLag; k++ {
		var s float64
		for j := k; j < n; j++ {
			s += centered[j] * centered[j-k]
		}
		out[k] = s / variance / float64(n-k)
	}
	return out, nil
}
