// control/metrics.go
// Author: momentics <momentics@gmail.com>
//
// Named int64 counters and gauges with snapshot export.

package control

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Metric names published by the server.
const (
	ConnAccepted    = "conn.accepted"
	ConnClosed      = "conn.closed"
	ConnActive      = "conn.active"
	AcceptErrors    = "accept.errors"
	BytesRead       = "bytes.read"
	BytesWritten    = "bytes.written"
	WritesDeferred  = "writes.deferred"
	LoopWakeups     = "loop.wakeups"
	LoopEmptyWakeup = "loop.empty_wakeups"
)

// MetricsRegistry holds named counters.
type MetricsRegistry struct {
	mu      sync.RWMutex
	metrics map[string]*atomic.Int64
	updated atomic.Int64 // unix nanos of the last write
}

// NewMetricsRegistry creates an empty registry.
func NewMetricsRegistry() *MetricsRegistry {
	return &MetricsRegistry{
		metrics: make(map[string]*atomic.Int64),
	}
}

func (mr *MetricsRegistry) counter(key string) *atomic.Int64 {
	mr.mu.RLock()
	c, ok := mr.metrics[key]
	mr.mu.RUnlock()
	if ok {
		return c
	}
	mr.mu.Lock()
	defer mr.mu.Unlock()
	if c, ok = mr.metrics[key]; !ok {
		c = new(atomic.Int64)
		mr.metrics[key] = c
	}
	return c
}

// Add increments key by delta and returns the new value.
func (mr *MetricsRegistry) Add(key string, delta int64) int64 {
	v := mr.counter(key).Add(delta)
	mr.updated.Store(time.Now().UnixNano())
	return v
}

// Set sets or updates a metric key.
func (mr *MetricsRegistry) Set(key string, value int64) {
	mr.counter(key).Store(value)
	mr.updated.Store(time.Now().UnixNano())
}

// Get returns the value of key, zero if it was never written.
func (mr *MetricsRegistry) Get(key string) int64 {
	mr.mu.RLock()
	defer mr.mu.RUnlock()
	if c, ok := mr.metrics[key]; ok {
		return c.Load()
	}
	return 0
}

// Keys returns the registered metric names in sorted order.
func (mr *MetricsRegistry) Keys() []string {
	mr.mu.RLock()
	defer mr.mu.RUnlock()
	keys := make([]string, 0, len(mr.metrics))
	for k := range mr.metrics {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// GetSnapshot returns the latest metrics.
func (mr *MetricsRegistry) GetSnapshot() map[string]int64 {
	mr.mu.RLock()
	defer mr.mu.RUnlock()
	out := make(map[string]int64, len(mr.metrics))
	for k, c := range mr.metrics {
		out[k] = c.Load()
	}
	return out
}

// Updated returns the time of the last write, zero if none.
func (mr *MetricsRegistry) Updated() time.Time {
	ns := mr.updated.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}
