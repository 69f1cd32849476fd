package telemetry

import (
	"sync"
	"sync/atomic"
	"time"
)

// Event is a single structured metric/log event emitted by a component.
type Event struct {
	Name       string
	Component  string
	Path       string
	DurationMs int64
	Count      int64
	Err        string
	Attributes map[string]string
	At         time.Time
}

// Recorder is the metrics recorder (C9): counter/gauge/histogram primitives
// plus a bounded ring buffer of recent events for diagnostics. Enqueue is
// O(1) and never blocks or fails the caller; on overflow the oldest event is
// evicted and a drop counter increments.
type Recorder struct {
	mu         sync.Mutex
	counters   map[string]int64
	gauges     map[string]float64
	histograms map[string][]float64
	ring       *CircularBuffer[Event]
	dropped    atomic.Int64
}

// NewRecorder creates a Recorder with a ring buffer of the given capacity
// (default 1000 when capacity <= 0).
func NewRecorder(capacity int) *Recorder {
	if capacity <= 0 {
		capacity = 1000
	}
	return &Recorder{
		counters:   make(map[string]int64),
		gauges:     make(map[string]float64),
		histograms: make(map[string][]float64),
		ring:       NewCircularBuffer[Event](capacity),
	}
}

// Counter increments a named counter by delta and records the event.
func (r *Recorder) Counter(name string, delta int64, attrs map[string]string) {
	r.mu.Lock()
	r.counters[name] += delta
	r.mu.Unlock()
	r.emit(Event{Name: name, Count: delta, Attributes: attrs, At: time.Now()})
}

// Gauge sets a named gauge to value and records the event.
func (r *Recorder) Gauge(name string, value float64, attrs map[string]string) {
	r.mu.Lock()
	r.gauges[name] = value
	r.mu.Unlock()
	r.emit(Event{Name: name, Attributes: attrs, At: time.Now()})
}

// Histogram appends an observation to a named histogram and records the event.
func (r *Recorder) Histogram(name string, value float64, attrs map[string]string) {
	r.mu.Lock()
	r.histograms[name] = append(r.histograms[name], value)
	r.mu.Unlock()
	r.emit(Event{Name: name, DurationMs: int64(value), Attributes: attrs, At: time.Now()})
}

// Emit records a fully-formed structured event, used by components that
// need the richer {event, component, path, duration_ms, count, error}
// shape rather than a single counter/gauge/histogram update.
func (r *Recorder) Emit(event Event) {
	if event.At.IsZero() {
		event.At = time.Now()
	}
	r.emit(event)
}

func (r *Recorder) emit(event Event) {
	defer func() {
		if recover() != nil {
			r.dropped.Add(1)
		}
	}()
	if r.ring.Size() >= r.ring.capacity {
		r.dropped.Add(1)
	}
	r.ring.Add(event)
}

// Recent returns the buffered events (at most the ring capacity), oldest first.
func (r *Recorder) Recent() []Event {
	return r.ring.Items()
}

// Dropped returns the number of events dropped due to overflow or a panic
// during enqueue; enqueue itself never blocks the emitter.
func (r *Recorder) Dropped() int64 {
	return r.dropped.Load()
}

// CounterValue returns the current value of a named counter.
func (r *Recorder) CounterValue(name string) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counters[name]
}

// GaugeValue returns the current value of a named gauge.
func (r *Recorder) GaugeValue(name string) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.gauges[name]
}
