package stats

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/stat"
)

func TestWindowPushAndAverage(t *testing.T) {
	w := NewWindow(5)

	if _, ok := w.Average(); ok {
		t.Error("empty window should report no average")
	}

	values := []float64{-80, -70, -60}
	for _, v := range values {
		w.Push(Sample{StrengthDbm: v})
	}

	avg, ok := w.Average()
	if !ok {
		t.Fatal("expected an average")
	}
	if want := -70.0; avg != want {
		t.Errorf("average = %f, want %f", avg, want)
	}
	if w.Count() != 3 {
		t.Errorf("count = %d, want 3", w.Count())
	}
}

func TestWindowEviction(t *testing.T) {
	w := NewWindow(3)

	for _, v := range []float64{-90, -80, -70, -60} {
		w.Push(Sample{StrengthDbm: v})
	}

	if w.Count() != 3 {
		t.Fatalf("count = %d, want 3", w.Count())
	}

	got := w.Strengths()
	want := []float64{-80, -70, -60}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("window[%d] = %f, want %f", i, got[i], want[i])
		}
	}

	avg, _ := w.Average()
	if want := -70.0; avg != want {
		t.Errorf("average after eviction = %f, want %f", avg, want)
	}
}

// The incremental sum must never drift from a recomputation from scratch,
// for any push sequence.
func TestWindowSumNeverDrifts(t *testing.T) {
	w := NewWindow(7)

	v := -95.3
	for i := 0; i < 500; i++ {
		w.Push(Sample{StrengthDbm: v})
		v += 0.7

		avg, ok := w.Average()
		if !ok {
			t.Fatal("expected an average")
		}

		recomputed := stat.Mean(w.Strengths(), nil)
		if math.Abs(avg-recomputed) > 1e-9 {
			t.Fatalf("after %d pushes: incremental average %g drifted from recomputed %g", i+1, avg, recomputed)
		}
	}
}

func TestWindowPeakHold(t *testing.T) {
	w := NewWindow(3)

	if w.Peak() != FloorDbm {
		t.Errorf("initial peak = %f, want %f", w.Peak(), FloorDbm)
	}

	prev := w.Peak()
	for _, v := range []float64{-80, -40, -90, -95, -96} {
		w.Push(Sample{StrengthDbm: v})
		if w.Peak() < prev {
			t.Errorf("peak decreased from %f to %f", prev, w.Peak())
		}
		prev = w.Peak()
	}

	// -40 left the window long ago but the hold keeps it.
	if w.Peak() != -40 {
		t.Errorf("peak = %f, want -40", w.Peak())
	}

	w.Clear()
	if w.Peak() != FloorDbm {
		t.Errorf("peak after Clear = %f, want %f", w.Peak(), FloorDbm)
	}
	if w.Count() != 0 {
		t.Errorf("count after Clear = %d, want 0", w.Count())
	}
	if _, ok := w.Average(); ok {
		t.Error("cleared window should report no average")
	}
}

// Feed 250 monotonically increasing samples into the default 200-deep
// window: the oldest 50 are evicted, the running sum matches the
// arithmetic series of the survivors, and values far outside the
// physical dBm range pass through unclamped.
func TestWindowMonotonicScenario(t *testing.T) {
	w := NewWindow(DefaultCapacity)

	for i := 0; i < 250; i++ {
		w.Push(Sample{StrengthDbm: -80 + float64(i)})
	}

	if w.Count() != DefaultCapacity {
		t.Fatalf("count = %d, want %d", w.Count(), DefaultCapacity)
	}

	got := w.Strengths()
	if got[0] != -30 { // -80+50: first surviving sample
		t.Errorf("oldest surviving sample = %f, want -30", got[0])
	}
	if got[len(got)-1] != 169 { // -80+249: unclamped, above 0 dBm
		t.Errorf("newest sample = %f, want 169", got[len(got)-1])
	}

	// Sum of the arithmetic series -30..169.
	wantSum := (-30.0 + 169.0) * 200 / 2
	avg, _ := w.Average()
	if math.Abs(avg-wantSum/200) > 1e-9 {
		t.Errorf("average = %f, want %f", avg, wantSum/200)
	}

	if w.Peak() != 169 {
		t.Errorf("peak = %f, want 169", w.Peak())
	}
}

func TestWindowSnapshotIsCopy(t *testing.T) {
	w := NewWindow(4)
	w.Push(Sample{FrequencyHz: 1e6, StrengthDbm: -50})

	snap := w.Snapshot()
	snap[0].StrengthDbm = 0

	if got := w.Strengths()[0]; got != -50 {
		t.Errorf("mutating snapshot changed window: %f", got)
	}
}

func TestWindowLatest(t *testing.T) {
	w := NewWindow(2)

	if _, ok := w.Latest(); ok {
		t.Error("empty window should have no latest sample")
	}

	w.Push(Sample{FrequencyHz: 1e6, StrengthDbm: -50})
	w.Push(Sample{FrequencyHz: 2e6, StrengthDbm: -40})
	w.Push(Sample{FrequencyHz: 3e6, StrengthDbm: -30})

	latest, ok := w.Latest()
	if !ok {
		t.Fatal("expected a latest sample")
	}
	if latest.FrequencyHz != 3e6 || latest.StrengthDbm != -30 {
		t.Errorf("latest = %+v, want frequency 3e6 at -30 dBm", latest)
	}
}
