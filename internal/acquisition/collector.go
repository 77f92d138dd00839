// Package acquisition cuts a continuous stream of accelerometer readings
// into fixed-length batches and hands each batch off for processing.
package acquisition

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"strideminder/internal/gait"
)

const (
	DefaultBlockDuration = 10 * time.Second
	// DefaultCapacity fits 10 s of readings 10 ms apart plus 50%.
	DefaultCapacity = 1500
)

// Reading is one streamed sample. UnixNano is the wall-clock time of the
// reading in nanoseconds.
type Reading struct {
	UnixNano int64   `json:"t_ns"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Z        float64 `json:"z"`
}

// HandoffFunc receives each completed batch. The batch is owned by the
// receiver; the collector keeps no reference to it.
type HandoffFunc func(ctx context.Context, device string, b gait.Batch) error

// Config sizes the fill buffer.
type Config struct {
	BlockDuration time.Duration
	Capacity      int
}

func (c Config) withDefaults() Config {
	if c.BlockDuration <= 0 {
		c.BlockDuration = DefaultBlockDuration
	}
	if c.Capacity < 2 {
		c.Capacity = DefaultCapacity
	}
	return c
}

// Collector accumulates readings from one device. A block is closed by the
// first reading at or past BlockDuration after the block's first reading
// (that reading is included), or when the buffer reaches Capacity.
type Collector struct {
	device  string
	cfg     Config
	handoff HandoffFunc
	log     *slog.Logger

	mu      sync.Mutex
	buf     []gait.Sample
	startNs int64
	lastNs  int64
	// seen is set once any reading has been accepted; lastNs is valid
	// across block cuts.
	seen    bool
	dropped int
}

// NewCollector returns a collector for device.
func NewCollector(device string, cfg Config, handoff HandoffFunc, log *slog.Logger) *Collector {
	cfg = cfg.withDefaults()
	if log == nil {
		log = slog.Default()
	}
	return &Collector{
		device:  device,
		cfg:     cfg,
		handoff: handoff,
		log:     log.With(slog.String("device", device)),
		buf:     make([]gait.Sample, 0, cfg.Capacity),
	}
}

// Add appends readings and returns how many batches were handed off.
// Readings older than the last accepted one are dropped, including right
// after a block was cut, so consecutive batches never overlap. If a handoff
// fails the batch is lost and the error is returned; later readings start a
// new block.
func (c *Collector) Add(ctx context.Context, readings ...Reading) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	handed := 0
	for _, r := range readings {
		if c.seen && r.UnixNano < c.lastNs {
			c.dropped++
			continue
		}
		if len(c.buf) == 0 {
			c.startNs = r.UnixNano
		}
		c.buf = append(c.buf, gait.Sample{
			T: time.Duration(r.UnixNano - c.startNs),
			X: r.X,
			Y: r.Y,
			Z: r.Z,
		})
		c.lastNs = r.UnixNano
		c.seen = true

		full := len(c.buf) >= c.cfg.Capacity
		if full || time.Duration(r.UnixNano-c.startNs) >= c.cfg.BlockDuration {
			if full {
				c.log.Warn("sample buffer full, closing block early", slog.Int("capacity", c.cfg.Capacity))
			}
			if err := c.emitLocked(ctx); err != nil {
				return handed, err
			}
			handed++
		}
	}
	if c.dropped > 0 {
		c.log.Warn("dropped out-of-order readings", slog.Int("count", c.dropped))
		c.dropped = 0
	}
	return handed, nil
}

// Flush hands off the partial block, if it holds at least two readings,
// and discards anything smaller.
func (c *Collector) Flush(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.buf) < 2 {
		c.buf = c.buf[:0]
		return nil
	}
	return c.emitLocked(ctx)
}

// Pending returns the number of buffered readings.
func (c *Collector) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.buf)
}

func (c *Collector) emitLocked(ctx context.Context) error {
	b := gait.NewBatch(c.startNs/int64(time.Millisecond), c.buf)
	c.buf = c.buf[:0]
	return c.handoff(ctx, c.device, b)
}

// Hub keeps one Collector per device.
type Hub struct {
	cfg     Config
	handoff HandoffFunc
	log     *slog.Logger

	mu         sync.Mutex
	collectors map[string]*Collector
}

// NewHub returns an empty hub whose collectors share cfg and handoff.
func NewHub(cfg Config, handoff HandoffFunc, log *slog.Logger) *Hub {
	return &Hub{
		cfg:        cfg,
		handoff:    handoff,
		log:        log,
		collectors: make(map[string]*Collector),
	}
}

// For returns the collector for device, creating it on first use.
func (h *Hub) For(device string) *Collector {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.collectors[device]
	if !ok {
		c = NewCollector(device, h.cfg, h.handoff, h.log)
		h.collectors[device] = c
	}
	return c
}

// FlushAll flushes every collector and returns the first error.
func (h *Hub) FlushAll(ctx context.Context) error {
	h.mu.Lock()
	all := make([]*Collector, 0, len(h.collectors))
	for _, c := range h.collectors {
		all = append(all, c)
	}
	h.mu.Unlock()

	var first error
	for _, c := range all {
		if err := c.Flush(ctx); err != nil && first == nil {
			first = err
		}
	}
	return first
}
