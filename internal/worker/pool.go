// Package worker runs the gait pipeline over frozen batches on a fixed set
// of goroutines and feeds walking metrics into the aggregator.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"strideminder/internal/gait"
	"strideminder/internal/telemetry"
)

// ErrClosed is returned by Submit after Close.
var ErrClosed = errors.New("worker pool closed")

// Ingester receives the metrics of walking batches.
type Ingester interface {
	Ingest(ctx context.Context, m gait.Metrics) (int64, error)
}

// Job is one batch waiting to be processed. The pool owns Batch once the
// job is submitted.
type Job struct {
	ID     uuid.UUID
	Device string
	Batch  gait.Batch
}

// NewJob wraps b with a fresh id.
func NewJob(device string, b gait.Batch) Job {
	return Job{ID: uuid.New(), Device: device, Batch: b}
}

// Result describes what happened to a job.
type Result struct {
	JobID   uuid.UUID
	Outcome gait.Outcome
	Metrics *gait.Metrics
	// RawID is the id of the raw record written for a walking batch.
	RawID int64
}

// Pool processes jobs with a fixed number of goroutines. Processing runs
// in parallel; ingests are serialized by the Ingester.
type Pool struct {
	proc    *gait.Processor
	sink    Ingester
	workers int
	log     *slog.Logger

	jobs chan Job
	wg   sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// New returns a pool with the given number of workers and queue length.
func New(proc *gait.Processor, sink Ingester, workers, queue int, log *slog.Logger) *Pool {
	if workers < 1 {
		workers = 1
	}
	if queue < 0 {
		queue = 0
	}
	if log == nil {
		log = slog.Default()
	}
	return &Pool{
		proc:    proc,
		sink:    sink,
		workers: workers,
		log:     log,
		jobs:    make(chan Job, queue),
	}
}

// Start launches the workers. They exit when ctx is cancelled or, after
// Close, once the queue is drained.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case job, ok := <-p.jobs:
					if !ok {
						return
					}
					// Failures are logged by Run and the batch is dropped.
					_, _ = p.Run(ctx, job)
				}
			}
		}()
	}
}

// Submit queues job, blocking until there is room or ctx is done.
func (p *Pool) Submit(ctx context.Context, job Job) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}
	select {
	case p.jobs <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting jobs. Queued jobs are still processed.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		close(p.jobs)
	}
}

// Wait blocks until every worker has exited.
func (p *Pool) Wait() {
	p.wg.Wait()
}

// Run processes job on the calling goroutine and ingests its metrics if
// the batch was walking.
func (p *Pool) Run(ctx context.Context, job Job) (Result, error) {
	log := p.log.With(slog.String("batch", job.ID.String()), slog.String("device", job.Device))
	res := Result{JobID: job.ID}

	start := time.Now()
	analysis, err := p.proc.ProcessBatch(job.Batch)
	took := time.Since(start)
	if err != nil {
		telemetry.ObserveBatch(job.Device, "error", took, false, 0)
		log.Warn("batch discarded", slog.Int("samples", job.Batch.Len()), slog.Any("err", err))
		return res, err
	}

	res.Outcome = analysis.Outcome
	res.Metrics = analysis.Metrics
	walking := analysis.Metrics != nil
	var cad float64
	if walking {
		cad = analysis.Metrics.Cadence
	}
	telemetry.ObserveBatch(job.Device, analysis.Outcome.String(), took, walking, cad)

	if !walking {
		log.Debug("batch processed", slog.String("outcome", analysis.Outcome.String()), slog.Float64("rms", analysis.RMS))
		return res, nil
	}

	id, err := p.sink.Ingest(ctx, *analysis.Metrics)
	if err != nil {
		log.Error("ingest failed", slog.Int64("timestamp_ms", analysis.Metrics.TimestampMs), slog.Any("err", err))
		return res, fmt.Errorf("ingest batch %s: %w", job.ID, err)
	}
	res.RawID = id
	log.Info("gait metrics stored",
		slog.Int64("id", id),
		slog.Float64("cadence", analysis.Metrics.Cadence),
		slog.Float64("stride_regularity", analysis.Metrics.StrideRegularity))
	return res, nil
}
