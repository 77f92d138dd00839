package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"strideminder/internal/gait"
)

type recordingSink struct {
	mu  sync.Mutex
	got []gait.Metrics
	err error
}

func (s *recordingSink) Ingest(_ context.Context, m gait.Metrics) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return 0, s.err
	}
	s.got = append(s.got, m)
	return int64(len(s.got)), nil
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.got)
}

func bounceBatch(startMs int64, amplitude float64) gait.Batch {
	samples := make([]gait.Sample, 1000)
	for i := range samples {
		t := time.Duration(i) * 10 * time.Millisecond
		z := 9.81 + amplitude*math.Sin(2*math.Pi*2*t.Seconds())
		samples[i] = gait.Sample{T: t, X: 0.3, Y: -0.2, Z: z}
	}
	return gait.NewBatch(startMs, samples)
}

func newTestPool(sink Ingester, workers, queue int) *Pool {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(gait.NewProcessor(gait.Config{}), sink, workers, queue, log)
}

func TestRunWalkingBatchIngests(t *testing.T) {
	sink := &recordingSink{}
	p := newTestPool(sink, 1, 0)

	res, err := p.Run(context.Background(), NewJob("ankle", bounceBatch(1_700_000_000_000, 2)))
	require.NoError(t, err)
	assert.Equal(t, gait.Walking, res.Outcome)
	require.NotNil(t, res.Metrics)
	assert.Equal(t, int64(1), res.RawID)
	assert.InDelta(t, 60, res.Metrics.Cadence, 1.5)
	require.Equal(t, 1, sink.count())
	assert.Equal(t, int64(1_700_000_000_000), sink.got[0].TimestampMs)
}

func TestRunStillBatchSkipsIngest(t *testing.T) {
	sink := &recordingSink{}
	p := newTestPool(sink, 1, 0)

	res, err := p.Run(context.Background(), NewJob("ankle", bounceBatch(0, 0)))
	require.NoError(t, err)
	assert.Equal(t, gait.NotWalking, res.Outcome)
	assert.Nil(t, res.Metrics)
	assert.Zero(t, sink.count())
}

func TestRunReportsProcessingAndIngestErrors(t *testing.T) {
	sink := &recordingSink{err: errors.New("db down")}
	p := newTestPool(sink, 1, 0)

	short := gait.NewBatch(0, []gait.Sample{{X: 1}})
	_, err := p.Run(context.Background(), NewJob("ankle", short))
	assert.ErrorIs(t, err, gait.ErrInsufficientData)

	_, err = p.Run(context.Background(), NewJob("ankle", bounceBatch(0, 2)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
}

func TestPoolDrainsQueueOnClose(t *testing.T) {
	sink := &recordingSink{}
	p := newTestPool(sink, 3, 8)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)

	for i := 0; i < 6; i++ {
		require.NoError(t, p.Submit(ctx, NewJob("ankle", bounceBatch(int64(i)*10_000, 2))))
	}
	// failed batches are dropped without stopping the pool
	require.NoError(t, p.Submit(ctx, NewJob("ankle", gait.NewBatch(0, nil))))

	p.Close()
	p.Wait()

	assert.Equal(t, 6, sink.count())
	assert.ErrorIs(t, p.Submit(ctx, NewJob("ankle", bounceBatch(0, 2))), ErrClosed)
}

func TestSubmitHonoursContext(t *testing.T) {
	p := newTestPool(&recordingSink{}, 1, 0)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	// no workers started, so the unbuffered queue never accepts
	err := p.Submit(ctx, NewJob("ankle", bounceBatch(0, 2)))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
