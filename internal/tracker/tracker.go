// Package tracker maintains the set of frequencies currently carrying a
// live transmission, derived from the signal strength stream and the
// squelch threshold.
package tracker

import (
	"sort"
	"sync"
	"time"
)

// DefaultGracePeriod is how long an entry survives below-threshold
// samples after its last above-threshold one. The grace window stops
// signals hovering around the threshold from flickering in and out.
const DefaultGracePeriod = 2 * time.Second

// Entry is one currently active frequency.
type Entry struct {
	FrequencyHz  int64
	StrengthDbm  float64
	LastSeenAt   time.Time
	FriendlyName string
}

// Resolver maps a frequency to a friendly name, if one is registered.
// Snapshot consults it read-only; a nil Resolver leaves names empty.
type Resolver interface {
	Resolve(frequencyHz float64) (name string, ok bool)
}

// Tracker is a time-keyed set of active frequencies. An entry is
// created or refreshed by a sample above the squelch threshold and
// removed by a sample at or below it once the grace period has passed.
//
// Removal only ever happens on receipt of a new sample for that
// frequency: a frequency that simply stops transmitting keeps its entry.
// That matches the dashboard this replaces and is deliberate; see the
// package tests, which pin the behavior down.
type Tracker struct {
	mu        sync.RWMutex
	entries   map[int64]*Entry
	threshold float64
	grace     time.Duration
	resolver  Resolver
}

// WithGracePeriod overrides the below-threshold grace window.
func WithGracePeriod(d time.Duration) func(*Tracker) {
	return func(t *Tracker) {
		t.grace = d
	}
}

// WithResolver sets the friendly name resolver used by Snapshot.
func WithResolver(r Resolver) func(*Tracker) {
	return func(t *Tracker) {
		t.resolver = r
	}
}

// New creates a tracker with the given squelch threshold in dBm.
func New(thresholdDbm float64, options ...func(*Tracker)) *Tracker {
	t := Tracker{
		entries:   make(map[int64]*Entry),
		threshold: thresholdDbm,
		grace:     DefaultGracePeriod,
	}

	for _, option := range options {
		option(&t)
	}

	return &t
}

// SetThreshold updates the squelch threshold. Existing entries are left
// alone; the new threshold applies from the next sample on.
func (t *Tracker) SetThreshold(thresholdDbm float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.threshold = thresholdDbm
}

// Threshold returns the current squelch threshold in dBm.
func (t *Tracker) Threshold() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.threshold
}

// Observe feeds one sample into the tracker.
func (t *Tracker) Observe(frequencyHz, strengthDbm float64, now time.Time) {
	key := int64(frequencyHz + 0.5)

	t.mu.Lock()
	defer t.mu.Unlock()

	if strengthDbm > t.threshold {
		if e, ok := t.entries[key]; ok {
			e.StrengthDbm = strengthDbm
			e.LastSeenAt = now
			return
		}
		t.entries[key] = &Entry{
			FrequencyHz: key,
			StrengthDbm: strengthDbm,
			LastSeenAt:  now,
		}
		return
	}

	// Below threshold: evict only once the grace period has run out.
	if e, ok := t.entries[key]; ok && now.Sub(e.LastSeenAt) > t.grace {
		delete(t.entries, key)
	}
}

// Len returns the number of active entries.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// Snapshot returns the active entries sorted by descending strength,
// with friendly names resolved through the configured Resolver.
func (t *Tracker) Snapshot() []Entry {
	t.mu.RLock()
	out := make([]Entry, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, *e)
	}
	t.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].StrengthDbm != out[j].StrengthDbm {
			return out[i].StrengthDbm > out[j].StrengthDbm
		}
		return out[i].FrequencyHz < out[j].FrequencyHz
	})

	if t.resolver != nil {
		for i := range out {
			if name, ok := t.resolver.Resolve(float64(out[i].FrequencyHz)); ok {
				out[i].FriendlyName = name
			}
		}
	}

	return out
}

// Clear drops all active entries.
func (t *Tracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = make(map[int64]*Entry)
}
