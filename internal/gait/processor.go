package gait

import (
	"errors"
	"fmt"
)

// Config tunes a Processor.
type Config struct {
	// WalkingRMSThreshold overrides DefaultWalkingRMSThreshold when positive.
	WalkingRMSThreshold float64
	// MaxLag caps the autocorrelation length. Zero means the batch length.
	MaxLag int
	// FullLengthRMS is passed to the Detector.
	FullLengthRMS bool
}

// Analysis is the result of processing one batch. Metrics is non-nil only
// when Outcome is Walking.
type Analysis struct {
	Outcome   Outcome
	Metrics   *Metrics
	RMS       float64
	Crossings []int

	// Vertical and Autocorrelation are kept for diagnostics dumps.
	Vertical        []float64
	Autocorrelation []float64
}

// Processor runs the full batch pipeline. It holds no mutable state and is
// safe for concurrent use.
type Processor struct {
	cfg      Config
	detector Detector
}

// NewProcessor returns a Processor using cfg.
func NewProcessor(cfg Config) *Processor {
	return &Processor{
		cfg:      cfg,
		detector: Detector{WalkingRMSThreshold: cfg.WalkingRMSThreshold, FullLengthRMS: cfg.FullLengthRMS},
	}
}

// ProcessBatch resamples b, isolates its vertical acceleration,
// autocorrelates it and extracts gait metrics. Non-walking batches are not
// errors: they return an Analysis with a nil Metrics. A batch whose vertical
// signal is perfectly flat is reported as NotWalking.
func (p *Processor) ProcessBatch(b Batch) (Analysis, error) {
	uniform, err := Resample(b)
	if err != nil {
		return Analysis{}, err
	}

	vertical, err := VerticalComponent(uniform)
	if err != nil {
		return Analysis{}, err
	}

	ac, err := Autocorrelate(vertical, p.cfg.MaxLag)
	if errors.Is(err, ErrDegenerateSignal) {
		return Analysis{Outcome: NotWalking, Vertical: vertical}, nil
	}
	if err != nil {
		return Analysis{}, err
	}

	det, err := p.detector.Detect(ac, uniform.Duration(), uniform.Len())
	a := Analysis{
		Outcome:         det.Outcome,
		RMS:             det.RMS,
		Crossings:       det.Crossings,
		Vertical:        vertical,
		Autocorrelation: ac,
	}
	if err != nil {
		return a, fmt.Errorf("batch %d: %w", b.StartMs, err)
	}
	if det.Outcome == Walking {
		a.Metrics = &Metrics{
			TimestampMs:      b.StartMs,
			StepRegularity:   det.StepRegularity,
			StrideRegularity: det.StrideRegularity,
			StepSymmetry:     det.StepSymmetry,
			Cadence:          det.Cadence,
		}
	}
	return a, nil
}
