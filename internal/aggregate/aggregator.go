package aggregate

import (
	"context"
	"log/slog"
	"sync"

	"strideminder/internal/gait"
)

// Aggregator ingests per-batch gait metrics into the raw series and rolls
// completed hours, days and months up into the coarser series. Each coarser
// record is written exactly once, by the first ingest whose timestamp falls
// in a later bucket, and never amended afterwards.
type Aggregator struct {
	store Store
	log   *slog.Logger

	// OnRollup, if set, is called after each committed rollup record.
	OnRollup func(g Granularity, rec Record)

	mu sync.Mutex
}

// New returns an Aggregator writing to store.
func New(store Store, log *slog.Logger) *Aggregator {
	if log == nil {
		log = slog.Default()
	}
	return &Aggregator{store: store, log: log}
}

// rollup describes one coarser series and where its inputs come from.
type rollup struct {
	target Granularity
	source Granularity
	start  func(int64) int64
}

var rollups = []rollup{
	{target: Hourly, source: Raw, start: hourStart},
	{target: Daily, source: Hourly, start: dayStart},
	{target: Monthly, source: Daily, start: monthStart},
}

// Ingest appends m to the raw series and returns the new raw record id.
// If m is the first record past an hour boundary, the previous hour is
// averaged into the hourly series first, and likewise for day and month.
// Concurrent calls are serialized.
func (a *Aggregator) Ingest(ctx context.Context, m gait.Metrics) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var (
		id      int64
		written []pendingRollup
	)
	err := a.store.Atomic(ctx, func(tx Store) error {
		written = written[:0]

		last, ok, err := tx.LastTimestamp(ctx, Raw)
		if err != nil {
			return storageErr("last timestamp", Raw, err)
		}
		if ok && m.TimestampMs < last {
			a.log.Warn("gait metrics arrived out of order",
				slog.Int64("timestamp_ms", m.TimestampMs),
				slog.Int64("last_ms", last))
		}

		if ok {
			for _, r := range rollups {
				from, to := r.start(last), r.start(m.TimestampMs)
				if from >= to {
					break
				}
				rec, n, err := mean(ctx, tx, r.source, from, to)
				if err != nil {
					return err
				}
				if n == 0 {
					break
				}
				rec.TimestampMs = from
				if rec.ID, err = tx.Insert(ctx, r.target, rec); err != nil {
					return storageErr("insert", r.target, err)
				}
				written = append(written, pendingRollup{g: r.target, rec: rec, count: n})
			}
		}

		id, err = tx.Insert(ctx, Raw, Record{
			TimestampMs:      m.TimestampMs,
			StepRegularity:   m.StepRegularity,
			StrideRegularity: m.StrideRegularity,
			StepSymmetry:     m.StepSymmetry,
			Cadence:          m.Cadence,
		})
		if err != nil {
			return storageErr("insert", Raw, err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	for _, w := range written {
		a.log.Info("gait rollup written",
			slog.String("granularity", w.g.String()),
			slog.Int64("bucket_ms", w.rec.TimestampMs),
			slog.Int("records", w.count))
		if a.OnRollup != nil {
			a.OnRollup(w.g, w.rec)
		}
	}
	return id, nil
}

type pendingRollup struct {
	g     Granularity
	rec   Record
	count int
}

// mean averages the source records with from <= TimestampMs < to.
func mean(ctx context.Context, s Store, g Granularity, from, to int64) (Record, int, error) {
	rows, err := s.Query(ctx, g, from, to-1)
	if err != nil {
		return Record{}, 0, storageErr("query", g, err)
	}
	var out Record
	if len(rows) == 0 {
		return out, 0, nil
	}
	for _, r := range rows {
		out.StepRegularity += r.StepRegularity
		out.StrideRegularity += r.StrideRegularity
		out.StepSymmetry += r.StepSymmetry
		out.Cadence += r.Cadence
	}
	n := float64(len(rows))
	out.StepRegularity /= n
	out.StrideRegularity /= n
	out.StepSymmetry /= n
	out.Cadence /= n
	return out, len(rows), nil
}

// Query returns the g records with start <= TimestampMs <= end, oldest first.
func (a *Aggregator) Query(ctx context.Context, g Granularity, start, end int64) ([]Record, error) {
	rows, err := a.store.Query(ctx, g, start, end)
	if err != nil {
		return nil, storageErr("query", g, err)
	}
	return rows, nil
}

// LastTimestamp returns the newest timestamp in the g series.
func (a *Aggregator) LastTimestamp(ctx context.Context, g Granularity) (int64, bool, error) {
	ts, ok, err := a.store.LastTimestamp(ctx, g)
	if err != nil {
		return 0, false, storageErr("last timestamp", g, err)
	}
	return ts, ok, nil
}

func storageErr(op string, g Granularity, err error) error {
	if se, ok := err.(*StorageError); ok {
		return se
	}
	return &StorageError{Op: op, Granularity: g, Err: err}
}
