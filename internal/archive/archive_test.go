package archive

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/scanmon/scanmon/internal/scanner"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s := NewStore(filepath.Join(t.TempDir(), "capture.db"))
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	})
	return s
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	sessionID, err := s.BeginSession(ctx, "http://localhost:8000")
	if err != nil {
		t.Fatalf("BeginSession() error = %v", err)
	}
	if sessionID == 0 {
		t.Fatal("BeginSession() returned zero session ID")
	}

	at := time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC)
	events := []*scanner.TransmissionEndEvent{
		{FrequencyHz: 162_550_000, SignalStrengthDbm: -42.5, DurationSeconds: 3.2, Description: "NOAA WX", Modulation: "NFM"},
		{FrequencyHz: 145_500_000, SignalStrengthDbm: -61.0, DurationSeconds: 1.1},
	}
	for i, ev := range events {
		if err := s.StoreTransmission(ctx, sessionID, ev, at.Add(time.Duration(i)*time.Minute)); err != nil {
			t.Fatalf("StoreTransmission(%d) error = %v", i, err)
		}
	}

	captured, err := s.Transmissions(ctx, sessionID)
	if err != nil {
		t.Fatalf("Transmissions() error = %v", err)
	}
	if len(captured) != 2 {
		t.Fatalf("Transmissions() returned %d rows, want 2", len(captured))
	}

	first := captured[0]
	if first.FrequencyHz != 162_550_000 {
		t.Errorf("FrequencyHz = %v, want 162550000", first.FrequencyHz)
	}
	if first.SignalStrengthDbm != -42.5 {
		t.Errorf("SignalStrengthDbm = %v, want -42.5", first.SignalStrengthDbm)
	}
	if first.DurationSeconds != 3.2 {
		t.Errorf("DurationSeconds = %v, want 3.2", first.DurationSeconds)
	}
	if first.Description != "NOAA WX" || first.Modulation != "NFM" {
		t.Errorf("Description/Modulation = %q/%q, want NOAA WX/NFM", first.Description, first.Modulation)
	}

	second := captured[1]
	if second.Description != "" || second.Modulation != "" {
		t.Errorf("empty fields round-tripped as %q/%q, want empty", second.Description, second.Modulation)
	}
	if !second.Timestamp.After(first.Timestamp) {
		t.Errorf("rows out of order: %v before %v", second.Timestamp, first.Timestamp)
	}
}

func TestStoreSessions(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	for _, url := range []string{"http://a:8000", "http://b:8000"} {
		if _, err := s.BeginSession(ctx, url); err != nil {
			t.Fatalf("BeginSession(%s) error = %v", url, err)
		}
	}

	sessions, err := s.Sessions(ctx)
	if err != nil {
		t.Fatalf("Sessions() error = %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("Sessions() returned %d, want 2", len(sessions))
	}
	if sessions[0].BackendURL != "http://a:8000" || sessions[1].BackendURL != "http://b:8000" {
		t.Errorf("session URLs = %q, %q", sessions[0].BackendURL, sessions[1].BackendURL)
	}
}

func TestTransmissionsEmptySession(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	sessionID, err := s.BeginSession(ctx, "http://localhost:8000")
	if err != nil {
		t.Fatalf("BeginSession() error = %v", err)
	}

	captured, err := s.Transmissions(ctx, sessionID+1)
	if err != nil {
		t.Fatalf("Transmissions() error = %v", err)
	}
	if len(captured) != 0 {
		t.Errorf("Transmissions() for unknown session returned %d rows, want 0", len(captured))
	}
}
