// Package stats maintains bounded rolling statistics over the live
// signal strength stream.
package stats

import (
	"sync"
	"time"
)

const (
	// DefaultCapacity is the number of samples kept for the live chart.
	DefaultCapacity = 200

	// FloorDbm is the sentinel floor for the peak hold. An empty or
	// cleared window reports this value.
	FloorDbm = -100.0
)

// Sample is a single signal strength observation from the stream.
type Sample struct {
	FrequencyHz float64
	StrengthDbm float64
	ObservedAt  time.Time
}

// Window is a fixed-capacity FIFO of recent samples with O(1) amortized
// aggregates. The oldest sample is evicted first; its contribution is
// removed from the running sum before the new sample's is added, so the
// sum never transiently double-counts. Incoming values are not clamped:
// out-of-range strengths are kept and reported as-is.
//
// Window is safe for concurrent use; the render loop reads snapshots
// while the event loop pushes.
type Window struct {
	mu       sync.RWMutex
	samples  []Sample // ring storage
	head     int      // index of the oldest sample
	count    int
	capacity int

	sumDbm  float64
	peakDbm float64 // non-decreasing until Clear
}

// NewWindow creates a rolling window holding up to capacity samples.
// A non-positive capacity falls back to DefaultCapacity.
func NewWindow(capacity int) *Window {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Window{
		samples:  make([]Sample, capacity),
		capacity: capacity,
		peakDbm:  FloorDbm,
	}
}

// Push appends a sample, evicting the oldest one first when full.
func (w *Window) Push(s Sample) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.count == w.capacity {
		w.sumDbm -= w.samples[w.head].StrengthDbm
		w.head = (w.head + 1) % w.capacity
		w.count--
	}

	w.samples[(w.head+w.count)%w.capacity] = s
	w.count++
	w.sumDbm += s.StrengthDbm

	if s.StrengthDbm > w.peakDbm {
		w.peakDbm = s.StrengthDbm
	}
}

// Average returns the mean strength over the current window. The second
// return is false when the window is empty; no sentinel value ever
// participates in the average.
func (w *Window) Average() (float64, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.count == 0 {
		return 0, false
	}
	return w.sumDbm / float64(w.count), true
}

// Peak returns the strongest sample seen since the last Clear. The value
// is a running hold over the engine's lifetime, not a window maximum.
func (w *Window) Peak() float64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.peakDbm
}

// Count returns the number of samples currently held.
func (w *Window) Count() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.count
}

// Capacity returns the fixed window capacity.
func (w *Window) Capacity() int {
	return w.capacity
}

// Latest returns the most recent sample, or false when empty.
func (w *Window) Latest() (Sample, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.count == 0 {
		return Sample{}, false
	}
	return w.samples[(w.head+w.count-1)%w.capacity], true
}

// Snapshot copies the current window, oldest first. The copy is safe to
// read without holding the window behind locks, which keeps the render
// loop independent of the stream callbacks.
func (w *Window) Snapshot() []Sample {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.count == 0 {
		return nil
	}

	out := make([]Sample, w.count)
	for i := 0; i < w.count; i++ {
		out[i] = w.samples[(w.head+i)%w.capacity]
	}
	return out
}

// Strengths copies the current window's strength values, oldest first.
func (w *Window) Strengths() []float64 {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.count == 0 {
		return nil
	}

	out := make([]float64, w.count)
	for i := 0; i < w.count; i++ {
		out[i] = w.samples[(w.head+i)%w.capacity].StrengthDbm
	}
	return out
}

// Clear empties the window and drops the peak hold back to FloorDbm.
func (w *Window) Clear() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.head = 0
	w.count = 0
	w.sumDbm = 0
	w.peakDbm = FloorDbm
}
