// Package translog serves sortable, filterable, paginated views over the
// fetched transmission history.
package translog

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/scanmon/scanmon/internal/scanner"
)

// PageSize is the fixed number of records per page.
const PageSize = 20

// FrequencyToleranceHz mirrors the directory resolution window: the
// frequency filter matches records within this distance of the selected
// frequency.
const FrequencyToleranceHz = 1000.0

// SortMode selects the ordering of the filtered record set.
type SortMode string

const (
	SortNewest        SortMode = "newest"
	SortOldest        SortMode = "oldest"
	SortSignalHigh    SortMode = "signal-high"
	SortSignalLow     SortMode = "signal-low"
	SortDurationLong  SortMode = "duration-long"
	SortDurationShort SortMode = "duration-short"
)

// ParseSortMode validates a sort mode received from outside, e.g. a
// query parameter.
func ParseSortMode(s string) (SortMode, bool) {
	switch m := SortMode(s); m {
	case SortNewest, SortOldest, SortSignalHigh, SortSignalLow, SortDurationLong, SortDurationShort:
		return m, true
	default:
		return "", false
	}
}

// Page is one rendered page of the view.
type Page struct {
	Records    []scanner.Transmission
	Number     int // 1-based
	TotalPages int
	Filtered   int // records after filtering, before pagination
}

// Stats are the aggregates shown above the log. They are computed over
// the filtered set, not the raw fetched one.
type Stats struct {
	Total            int
	Today            int
	AverageSignalDbm float64
	HasAverage       bool
	TotalDuration    time.Duration
}

// View owns the last-good fetched transmission set and derives pages
// from it. The pipeline runs in a fixed order on every render: day
// filter, then frequency filter, then sort, then pagination. Changing a
// filter or the sort resets to page one; swapping in fresh data keeps
// the current page.
type View struct {
	mu      sync.RWMutex
	records []scanner.Transmission

	day      *time.Time // calendar-day filter, nil when off
	freqHz   *float64   // frequency filter, nil when off
	sortMode SortMode
	page     int
}

// NewView creates an empty view sorted newest-first.
func NewView() *View {
	return &View{sortMode: SortNewest, page: 1}
}

// SetRecords replaces the record set. The page is kept: a bare re-fetch
// of the same data must not bounce the user back to page one.
func (v *View) SetRecords(records []scanner.Transmission) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.records = records
}

// Len returns the size of the raw fetched set.
func (v *View) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.records)
}

// SetDayFilter keeps only records on the given calendar day. Passing nil
// clears the filter. Any change resets to page one.
func (v *View) SetDayFilter(day *time.Time) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if day == nil && v.day == nil {
		return
	}
	if day != nil && v.day != nil && sameDay(*day, *v.day) {
		return
	}

	v.day = day
	v.page = 1
}

// SetFrequencyFilter keeps only records within FrequencyToleranceHz of
// the given frequency. Passing nil clears the filter. Any change resets
// to page one.
func (v *View) SetFrequencyFilter(frequencyHz *float64) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if frequencyHz == nil && v.freqHz == nil {
		return
	}
	if frequencyHz != nil && v.freqHz != nil && *frequencyHz == *v.freqHz {
		return
	}

	v.freqHz = frequencyHz
	v.page = 1
}

// SetSort changes the sort mode, resetting to page one on change.
func (v *View) SetSort(mode SortMode) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if mode == v.sortMode {
		return
	}

	v.sortMode = mode
	v.page = 1
}

// SortModeValue returns the current sort mode.
func (v *View) SortModeValue() SortMode {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.sortMode
}

// SetPage moves to the given 1-based page. Out-of-range values clamp.
func (v *View) SetPage(n int) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if n < 1 {
		n = 1
	}
	v.page = n
}

// NextPage advances one page; Render clamps at the last page.
func (v *View) NextPage() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.page++
}

// PrevPage goes back one page, stopping at page one.
func (v *View) PrevPage() {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.page > 1 {
		v.page--
	}
}

// Render runs the pipeline and returns the current page.
func (v *View) Render() Page {
	v.mu.RLock()
	filtered := v.filtered()
	mode := v.sortMode
	page := v.page
	v.mu.RUnlock()

	sortRecords(filtered, mode)

	totalPages := (len(filtered) + PageSize - 1) / PageSize
	if totalPages == 0 {
		totalPages = 1
	}
	if page > totalPages {
		page = totalPages
	}

	lo := (page - 1) * PageSize
	hi := lo + PageSize
	if lo > len(filtered) {
		lo = len(filtered)
	}
	if hi > len(filtered) {
		hi = len(filtered)
	}

	return Page{
		Records:    filtered[lo:hi],
		Number:     page,
		TotalPages: totalPages,
		Filtered:   len(filtered),
	}
}

// Aggregate computes the summary statistics over the filtered set.
func (v *View) Aggregate(now time.Time) Stats {
	v.mu.RLock()
	filtered := v.filtered()
	v.mu.RUnlock()

	s := Stats{Total: len(filtered)}

	var signals []float64
	for _, r := range filtered {
		signals = append(signals, r.SignalStrengthDbm)
		s.TotalDuration += time.Duration(r.DurationSeconds * float64(time.Second))
		if sameDay(r.Timestamp, now) {
			s.Today++
		}
	}

	if len(signals) > 0 {
		s.AverageSignalDbm = stat.Mean(signals, nil)
		s.HasAverage = true
	}

	return s
}

// filtered applies the day and frequency filters, in that order,
// returning a fresh slice. Callers must hold at least a read lock.
func (v *View) filtered() []scanner.Transmission {
	out := make([]scanner.Transmission, 0, len(v.records))
	for _, r := range v.records {
		if v.day != nil && !sameDay(r.Timestamp, *v.day) {
			continue
		}
		if v.freqHz != nil && math.Abs(r.FrequencyHz-*v.freqHz) >= FrequencyToleranceHz {
			continue
		}
		out = append(out, r)
	}
	return out
}

// sortRecords orders records in place. The sort is stable: ties keep
// their fetched order.
func sortRecords(records []scanner.Transmission, mode SortMode) {
	var less func(a, b scanner.Transmission) bool
	switch mode {
	case SortOldest:
		less = func(a, b scanner.Transmission) bool { return a.Timestamp.Before(b.Timestamp) }
	case SortSignalHigh:
		less = func(a, b scanner.Transmission) bool { return a.SignalStrengthDbm > b.SignalStrengthDbm }
	case SortSignalLow:
		less = func(a, b scanner.Transmission) bool { return a.SignalStrengthDbm < b.SignalStrengthDbm }
	case SortDurationLong:
		less = func(a, b scanner.Transmission) bool { return a.DurationSeconds > b.DurationSeconds }
	case SortDurationShort:
		less = func(a, b scanner.Transmission) bool { return a.DurationSeconds < b.DurationSeconds }
	default: // SortNewest
		less = func(a, b scanner.Transmission) bool { return a.Timestamp.After(b.Timestamp) }
	}

	sort.SliceStable(records, func(i, j int) bool { return less(records[i], records[j]) })
}

// FormatDuration renders a cumulative duration as hours and minutes,
// e.g. "3h 24m". Sub-minute totals render as "0m".
func FormatDuration(d time.Duration) string {
	minutes := int(d.Minutes())
	if minutes < 60 {
		return fmt.Sprintf("%dm", minutes)
	}
	return fmt.Sprintf("%dh %dm", minutes/60, minutes%60)
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
