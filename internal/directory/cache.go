// Package directory caches the backend frequency registry for local
// name resolution.
package directory

import (
	"math"
	"sync"

	"github.com/scanmon/scanmon/internal/scanner"
)

// ToleranceHz is the half-width of the resolution window. A directory
// entry matches a query when the stored frequency differs by less than
// this amount, absorbing oscillator drift and rounding in the source
// hardware. Displayed names depend on this value staying exact.
const ToleranceHz = 1000.0

// Cache holds a local copy of the frequency registry. Refreshes replace
// the whole directory at once; there is no partial merge, so a lookup
// never observes a half-applied update.
type Cache struct {
	mu      sync.RWMutex
	entries []scanner.Frequency
}

// NewCache creates an empty directory cache.
func NewCache() *Cache {
	return &Cache{}
}

// Replace swaps the cached directory for the given list. The slice is
// not copied; callers hand over ownership.
func (c *Cache) Replace(entries []scanner.Frequency) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = entries
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// All returns the cached entries in stored order. The returned slice is
// a copy and safe to hold across refreshes.
func (c *Cache) All() []scanner.Frequency {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]scanner.Frequency, len(c.entries))
	copy(out, c.entries)
	return out
}

// Lookup returns the first entry within ToleranceHz of the query, in
// stored order. When several entries qualify, the first one wins.
func (c *Cache) Lookup(frequencyHz float64) (scanner.Frequency, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, e := range c.entries {
		if math.Abs(e.FrequencyHz-frequencyHz) < ToleranceHz {
			return e, true
		}
	}
	return scanner.Frequency{}, false
}

// Resolve returns the friendly name of the first matching entry,
// falling back to its description when no name is set. It satisfies the
// tracker's Resolver interface.
func (c *Cache) Resolve(frequencyHz float64) (string, bool) {
	e, ok := c.Lookup(frequencyHz)
	if !ok {
		return "", false
	}
	if e.FriendlyName != "" {
		return e.FriendlyName, true
	}
	if e.Description != "" {
		return e.Description, true
	}
	return "", false
}
