package tracker

import (
	"testing"
	"time"
)

type staticResolver map[int64]string

func (r staticResolver) Resolve(frequencyHz float64) (string, bool) {
	name, ok := r[int64(frequencyHz)]
	return name, ok
}

func TestObserveAboveThreshold(t *testing.T) {
	tr := New(-50)
	now := time.Now()

	tr.Observe(162_550_000, -40, now)
	if tr.Len() != 1 {
		t.Fatalf("len = %d, want 1", tr.Len())
	}

	// A stronger sample refreshes strength and last-seen.
	later := now.Add(500 * time.Millisecond)
	tr.Observe(162_550_000, -35, later)

	snap := tr.Snapshot()
	if len(snap) != 1 {
		t.Fatalf("snapshot len = %d, want 1", len(snap))
	}
	if snap[0].StrengthDbm != -35 {
		t.Errorf("strength = %f, want -35", snap[0].StrengthDbm)
	}
	if !snap[0].LastSeenAt.Equal(later) {
		t.Errorf("lastSeen = %v, want %v", snap[0].LastSeenAt, later)
	}
}

func TestObserveAtThresholdIsNoise(t *testing.T) {
	tr := New(-50)

	tr.Observe(1_000_000, -50, time.Now()) // at, not above
	if tr.Len() != 0 {
		t.Errorf("sample at threshold created an entry")
	}
}

func TestGracePeriodPreventsFlicker(t *testing.T) {
	tr := New(-50)
	now := time.Now()

	tr.Observe(1_000_000, -40, now)

	// A weak sample inside the grace window must not evict.
	tr.Observe(1_000_000, -70, now.Add(1500*time.Millisecond))
	if tr.Len() != 1 {
		t.Fatal("entry evicted inside grace period")
	}

	// Past the grace window, the same weak sample evicts.
	tr.Observe(1_000_000, -70, now.Add(2500*time.Millisecond))
	if tr.Len() != 0 {
		t.Fatal("entry survived past grace period")
	}
}

// A frequency that goes silent is never swept: eviction requires a new
// below-threshold sample for that frequency. This pins the deliberate
// no-proactive-sweep policy.
func TestSilentFrequencyStaysActive(t *testing.T) {
	tr := New(-50)
	now := time.Now()

	tr.Observe(1_000_000, -40, now)
	tr.Observe(2_000_000, -45, now.Add(time.Hour)) // unrelated traffic much later

	if tr.Len() != 2 {
		t.Errorf("len = %d, want 2: silent frequency must remain active", tr.Len())
	}
}

func TestSnapshotOrdering(t *testing.T) {
	tr := New(-50)
	now := time.Now()

	tr.Observe(1_000_000, -45, now)
	tr.Observe(2_000_000, -20, now)
	tr.Observe(3_000_000, -30, now)

	snap := tr.Snapshot()
	want := []int64{2_000_000, 3_000_000, 1_000_000}
	for i, freq := range want {
		if snap[i].FrequencyHz != freq {
			t.Errorf("snapshot[%d] = %d Hz, want %d Hz", i, snap[i].FrequencyHz, freq)
		}
	}
}

func TestSnapshotResolvesNames(t *testing.T) {
	tr := New(-50, WithResolver(staticResolver{162_550_000: "NOAA Weather"}))

	tr.Observe(162_550_000, -40, time.Now())
	tr.Observe(1_000_000, -42, time.Now())

	snap := tr.Snapshot()
	for _, e := range snap {
		switch e.FrequencyHz {
		case 162_550_000:
			if e.FriendlyName != "NOAA Weather" {
				t.Errorf("friendly name = %q, want NOAA Weather", e.FriendlyName)
			}
		default:
			if e.FriendlyName != "" {
				t.Errorf("unexpected friendly name %q for %d Hz", e.FriendlyName, e.FrequencyHz)
			}
		}
	}
}

func TestThresholdChangeAppliesToNewSamples(t *testing.T) {
	tr := New(-50, WithGracePeriod(0))
	now := time.Now()

	tr.Observe(1_000_000, -55, now)
	if tr.Len() != 0 {
		t.Fatal("below-threshold sample created an entry")
	}

	tr.SetThreshold(-60)
	tr.Observe(1_000_000, -55, now)
	if tr.Len() != 1 {
		t.Fatal("sample above lowered threshold did not create an entry")
	}
}
