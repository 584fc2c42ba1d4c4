package stream

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/gorilla/websocket"

	"github.com/scanmon/scanmon/internal/scanner"
)

var errScriptDone = errors.New("script exhausted")

// scriptedConn replays a fixed list of text messages, then fails the
// next read to simulate the channel closing.
type scriptedConn struct {
	messages []string
	next     int
	closed   atomic.Bool
}

func (c *scriptedConn) ReadMessage() (int, []byte, error) {
	if c.closed.Load() {
		return 0, nil, errors.New("use of closed connection")
	}
	if c.next >= len(c.messages) {
		return 0, nil, errScriptDone
	}
	msg := c.messages[c.next]
	c.next++
	return websocket.TextMessage, []byte(msg), nil
}

func (c *scriptedConn) Close() error {
	c.closed.Store(true)
	return nil
}

// blockingConn blocks reads until closed, like an idle live channel.
type blockingConn struct {
	unblock chan struct{}
	once    atomic.Bool
}

func newBlockingConn() *blockingConn {
	return &blockingConn{unblock: make(chan struct{})}
}

func (c *blockingConn) ReadMessage() (int, []byte, error) {
	<-c.unblock
	return 0, nil, errors.New("connection closed")
}

func (c *blockingConn) Close() error {
	if c.once.CompareAndSwap(false, true) {
		close(c.unblock)
	}
	return nil
}

func collectEvents(t *testing.T, c *Client, n int) []scanner.Event {
	t.Helper()

	var events []scanner.Event
	timeout := time.After(2 * time.Second)
	for len(events) < n {
		select {
		case ev, ok := <-c.Events():
			if !ok {
				t.Fatalf("events channel closed after %d events, want %d", len(events), n)
			}
			events = append(events, ev)
		case <-timeout:
			t.Fatalf("timed out after %d events, want %d", len(events), n)
		}
	}
	return events
}

func TestClientDeliversTypedEvents(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	conn := &scriptedConn{messages: []string{
		`{"type":"signal_strength","frequency":162550000,"signal_strength":-42.5}`,
		`{"type":"frequency_update","frequency":453212500}`,
	}}

	c := NewClient("ws://test/ws",
		WithDialer(func(ctx context.Context) (Conn, error) { return conn, nil }),
		WithBackOff(&backoff.StopBackOff{}),
		WithTimer(func(d time.Duration) <-chan time.Time {
			return make(chan time.Time) // hold: no reconnect during this test
		}),
	)
	c.Connect(ctx)

	events := collectEvents(t, c, 2)
	if _, ok := events[0].(scanner.SignalStrengthEvent); !ok {
		t.Errorf("events[0] = %T, want SignalStrengthEvent", events[0])
	}
	if _, ok := events[1].(scanner.FrequencyUpdateEvent); !ok {
		t.Errorf("events[1] = %T, want FrequencyUpdateEvent", events[1])
	}
}

func TestClientSwallowsBadMessages(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	conn := &scriptedConn{messages: []string{
		`{not json`,
		`{"type":"mystery_kind"}`,
		`{"type":"signal_strength","frequency":1000000,"signal_strength":-60}`,
	}}

	c := NewClient("ws://test/ws",
		WithDialer(func(ctx context.Context) (Conn, error) { return conn, nil }),
		WithTimer(func(d time.Duration) <-chan time.Time {
			return make(chan time.Time)
		}),
	)
	c.Connect(ctx)

	events := collectEvents(t, c, 1)
	sig, ok := events[0].(scanner.SignalStrengthEvent)
	if !ok {
		t.Fatalf("got %T, want SignalStrengthEvent", events[0])
	}
	if sig.SignalStrengthDbm != -60 {
		t.Errorf("strength = %f, want -60", sig.SignalStrengthDbm)
	}
}

// After a channel closes, exactly one reconnect is scheduled at the
// fixed delay, and calling Connect again before the timer fires must
// not create a second channel.
func TestClientReconnectSchedule(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var dials atomic.Int32
	scheduled := make(chan time.Duration, 4)
	retry := make(chan time.Time)

	c := NewClient("ws://test/ws",
		WithDialer(func(ctx context.Context) (Conn, error) {
			dials.Add(1)
			return &scriptedConn{}, nil // closes immediately
		}),
		WithTimer(func(d time.Duration) <-chan time.Time {
			scheduled <- d
			return retry
		}),
	)
	c.Connect(ctx)

	select {
	case d := <-scheduled:
		if d != RetryDelay {
			t.Fatalf("scheduled delay = %s, want %s", d, RetryDelay)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no retry scheduled")
	}

	if got := dials.Load(); got != 1 {
		t.Fatalf("dials = %d, want 1", got)
	}
	if c.State() != StateClosedPendingRetry {
		t.Fatalf("state = %s, want closed-pending-retry", c.State())
	}
	select {
	case <-scheduled:
		t.Fatal("a second retry was scheduled")
	default:
	}

	// A second Connect while the retry is pending must be a no-op.
	c.Connect(ctx)
	time.Sleep(50 * time.Millisecond)
	if got := dials.Load(); got != 1 {
		t.Fatalf("dials after duplicate Connect = %d, want 1", got)
	}

	// Fire the timer: exactly one new channel.
	retry <- time.Time{}
	waitFor(t, func() bool { return dials.Load() == 2 })
}

func TestClientRetriesFailedDial(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var dials atomic.Int32
	c := NewClient("ws://test/ws",
		WithDialer(func(ctx context.Context) (Conn, error) {
			if dials.Add(1) == 1 {
				return nil, errors.New("connection refused")
			}
			return newBlockingConn(), nil
		}),
		WithTimer(func(d time.Duration) <-chan time.Time {
			fired := make(chan time.Time, 1)
			fired <- time.Time{}
			return fired
		}),
	)
	c.Connect(ctx)

	waitFor(t, func() bool { return c.State() == StateOpen })
	if got := dials.Load(); got != 2 {
		t.Errorf("dials = %d, want 2", got)
	}
}

func TestClientStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	c := NewClient("ws://test/ws",
		WithDialer(func(ctx context.Context) (Conn, error) {
			return newBlockingConn(), nil
		}),
	)
	c.Connect(ctx)

	waitFor(t, func() bool { return c.State() == StateOpen })
	cancel()
	c.Wait()

	// Events channel closes when the manager exits.
	if _, ok := <-c.Events(); ok {
		t.Error("events channel still open after shutdown")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}
