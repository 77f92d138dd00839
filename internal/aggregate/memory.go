package aggregate

import (
	"context"
	"slices"
	"sort"
	"sync"
)

// MemoryStore keeps the series in memory. It is safe for concurrent use;
// readers never observe a half-applied Atomic call.
type MemoryStore struct {
	mu     sync.RWMutex
	series [4][]Record
	nextID int64
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Insert(_ context.Context, g Granularity, rec Record) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertLocked(g, rec), nil
}

func (s *MemoryStore) Query(_ context.Context, g Granularity, start, end int64) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queryLocked(g, start, end), nil
}

func (s *MemoryStore) LastTimestamp(_ context.Context, g Granularity) (int64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ts, ok := s.lastLocked(g)
	return ts, ok, nil
}

// Atomic holds the write lock for the duration of fn and restores the
// previous contents if fn fails.
func (s *MemoryStore) Atomic(_ context.Context, fn func(Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var saved [4][]Record
	for i := range s.series {
		saved[i] = slices.Clone(s.series[i])
	}
	savedID := s.nextID

	if err := fn(lockedMemory{s}); err != nil {
		s.series = saved
		s.nextID = savedID
		return err
	}
	return nil
}

func (s *MemoryStore) insertLocked(g Granularity, rec Record) int64 {
	s.nextID++
	rec.ID = s.nextID
	rows := s.series[g]
	// Keep the series ordered even when a caller appends out of order.
	i := sort.Search(len(rows), func(i int) bool { return rows[i].TimestampMs > rec.TimestampMs })
	s.series[g] = slices.Insert(rows, i, rec)
	return rec.ID
}

func (s *MemoryStore) queryLocked(g Granularity, start, end int64) []Record {
	rows := s.series[g]
	lo := sort.Search(len(rows), func(i int) bool { return rows[i].TimestampMs >= start })
	out := make([]Record, 0)
	for _, r := range rows[lo:] {
		if r.TimestampMs > end {
			break
		}
		out = append(out, r)
	}
	return out
}

func (s *MemoryStore) lastLocked(g Granularity) (int64, bool) {
	rows := s.series[g]
	if len(rows) == 0 {
		return 0, false
	}
	return rows[len(rows)-1].TimestampMs, true
}

// lockedMemory is the Store handed to Atomic callbacks; the caller already
// holds the write lock.
type lockedMemory struct {
	s *MemoryStore
}

func (l lockedMemory) Insert(_ context.Context, g Granularity, rec Record) (int64, error) {
	return l.s.insertLocked(g, rec), nil
}

func (l lockedMemory) Query(_ context.Context, g Granularity, start, end int64) ([]Record, error) {
	return l.s.queryLocked(g, start, end), nil
}

func (l lockedMemory) LastTimestamp(_ context.Context, g Granularity) (int64, bool, error) {
	ts, ok := l.s.lastLocked(g)
	return ts, ok, nil
}

func (l lockedMemory) Atomic(_ context.Context, fn func(Store) error) error {
	return fn(l)
}
