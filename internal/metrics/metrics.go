package metrics

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/atomic"
)

const (
	Indexed        = "indexed"
	SidecarMatched = "sidecar.matched"
	Copied         = "copied"
	Resumed        = "resumed"
	Duplicates     = "duplicates"
	Errors         = "errors"
	BytesCopied    = "bytes.copied"
	Linked         = "albums.linked"
	DateSource     = "date."
	Hash           = "hash"
	CacheHits      = "hash.cache_hits"
)

// Metrics is the run-level statistics aggregate. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	mu       sync.Mutex
	counters map[string]*atomic.Int64
	timings  map[string]*atomic.Duration
}

func NewMetrics() *Metrics {
	return &Metrics{
		counters: make(map[string]*atomic.Int64),
		timings:  make(map[string]*atomic.Duration),
	}
}

func NoMetrics() *Metrics {
	return nil
}

func (x *Metrics) counter(name string) *atomic.Int64 {
	x.mu.Lock()
	defer x.mu.Unlock()

	c, ok := x.counters[name]
	if !ok {
		c = atomic.NewInt64(0)
		x.counters[name] = c
	}
	return c
}

func (x *Metrics) timing(name string) *atomic.Duration {
	x.mu.Lock()
	defer x.mu.Unlock()

	d, ok := x.timings[name]
	if !ok {
		d = atomic.NewDuration(0)
		x.timings[name] = d
	}
	return d
}

// Record starts a timer and returns the function that stops it.
func (x *Metrics) Record(metricName string) func() error {
	if x == nil {
		return func() error { return nil }
	}

	start := time.Now()
	return func() error {
		x.timing(metricName).Add(time.Since(start))
		return nil
	}
}

func (x *Metrics) Increment(metricName string) error {
	return x.Add(metricName, 1)
}

func (x *Metrics) Add(metricName string, n int64) error {
	if x != nil {
		x.counter(metricName).Add(n)
	}
	return nil
}

func (x *Metrics) Count(metricName string) int64 {
	if x == nil {
		return 0
	}
	return x.counter(metricName).Load()
}

func (x *Metrics) Elapsed(metricName string) time.Duration {
	if x == nil {
		return 0
	}
	return x.timing(metricName).Load()
}

// Counters returns a sorted snapshot of all counters.
func (x *Metrics) Counters() []Counter {
	if x == nil {
		return nil
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	out := make([]Counter, 0, len(x.counters))
	for name, c := range x.counters {
		out = append(out, Counter{Name: name, Value: c.Load()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

type Counter struct {
	Name  string
	Value int64
}
