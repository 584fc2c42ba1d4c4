// Package stream owns the push-channel lifecycle: connect, receive,
// disconnect, reconnect after a fixed delay.
package stream

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/gorilla/websocket"

	"github.com/scanmon/scanmon/internal/notify"
	"github.com/scanmon/scanmon/internal/scanner"
)

// RetryDelay is the fixed wait between reconnect attempts. Retries are
// unbounded and the delay never grows: availability over cleverness.
const RetryDelay = 5 * time.Second

// State is the connection lifecycle state.
type State int32

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateClosedPendingRetry
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosedPendingRetry:
		return "closed-pending-retry"
	default:
		return "idle"
	}
}

// Conn is the slice of a websocket connection the client reads from.
// *websocket.Conn satisfies it; tests substitute scripted connections.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	Close() error
}

// DialFunc opens one push channel. The default dials the configured
// websocket endpoint.
type DialFunc func(ctx context.Context) (Conn, error)

// Monitor counts stream lifecycle events. Methods are called from the
// manager goroutine.
type Monitor interface {
	MessageDropped()
	Reconnect()
}

type nopMonitor struct{}

func (nopMonitor) MessageDropped() {}
func (nopMonitor) Reconnect()      {}

// Client maintains exactly one push channel to the backend. On closure
// it schedules exactly one reconnect after RetryDelay; a new attempt is
// only ever scheduled after the previous channel has fully closed, so
// retries cannot stack. Parsed events are delivered on Events;
// per-message failures are logged and swallowed.
type Client struct {
	dial     DialFunc
	events   chan scanner.Event
	notifier notify.Notifier
	logger   *slog.Logger

	boff    backoff.BackOff
	timer   func(d time.Duration) <-chan time.Time
	monitor Monitor

	state   atomic.Int32
	started atomic.Bool
	wg      sync.WaitGroup
}

// WithLogger sets the client logger.
func WithLogger(logger *slog.Logger) func(*Client) {
	return func(c *Client) {
		c.logger = logger.With(slog.String("component", "stream"))
	}
}

// WithNotifier routes connectivity notices to the given notifier.
func WithNotifier(n notify.Notifier) func(*Client) {
	return func(c *Client) {
		c.notifier = n
	}
}

// WithBackOff overrides the reconnect policy. The default is a constant
// RetryDelay; tests inject zero or recording policies.
func WithBackOff(b backoff.BackOff) func(*Client) {
	return func(c *Client) {
		c.boff = b
	}
}

// WithTimer overrides the retry timer source, for tests that need to
// hold the retry until they say so.
func WithTimer(timer func(d time.Duration) <-chan time.Time) func(*Client) {
	return func(c *Client) {
		c.timer = timer
	}
}

// WithMonitor attaches lifecycle counters, typically Prometheus backed.
func WithMonitor(m Monitor) func(*Client) {
	return func(c *Client) {
		c.monitor = m
	}
}

// WithDialer replaces the channel dialer, for tests.
func WithDialer(dial DialFunc) func(*Client) {
	return func(c *Client) {
		c.dial = dial
	}
}

// NewClient creates a client for the given websocket endpoint, e.g.
// "ws://localhost:8000/ws".
func NewClient(url string, options ...func(*Client)) *Client {
	c := Client{
		events:   make(chan scanner.Event, 256),
		notifier: notify.NewCenter(),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		boff:     backoff.NewConstantBackOff(RetryDelay),
		timer: func(d time.Duration) <-chan time.Time {
			return time.After(d)
		},
		monitor: nopMonitor{},
	}
	c.dial = func(ctx context.Context) (Conn, error) {
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
		if err != nil {
			return nil, err
		}
		return conn, nil
	}

	for _, option := range options {
		option(&c)
	}

	return &c
}

// Events returns the channel typed events are delivered on. The channel
// is closed once the client stops.
func (c *Client) Events() <-chan scanner.Event {
	return c.events
}

// State returns the current connection state.
func (c *Client) State() State {
	return State(c.state.Load())
}

// Connect starts the connection manager. Calling it again while a
// channel is live or a retry is pending is a no-op: there is never more
// than one channel object live or scheduled.
func (c *Client) Connect(ctx context.Context) {
	if !c.started.CompareAndSwap(false, true) {
		return
	}

	c.wg.Add(1)
	go c.run(ctx)
}

// Wait blocks until the manager goroutine has exited.
func (c *Client) Wait() {
	c.wg.Wait()
}

func (c *Client) run(ctx context.Context) {
	defer c.wg.Done()
	defer close(c.events)

	for {
		c.state.Store(int32(StateConnecting))

		conn, err := c.dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Warn(fmt.Sprintf("connection failed: %s", err.Error()))
			c.notifier.Error("Connection to scanner failed")
		} else {
			c.state.Store(int32(StateOpen))
			c.notifier.Info("Connected to scanner")
			c.logger.Info("push channel open")

			// Unblock a pending read when the context ends.
			readDone := make(chan struct{})
			go func() {
				select {
				case <-ctx.Done():
					conn.Close()
				case <-readDone:
				}
			}()

			err = c.readLoop(ctx, conn)
			close(readDone)
			conn.Close()

			if ctx.Err() != nil {
				return
			}
			c.logger.Warn(fmt.Sprintf("push channel closed: %s", err.Error()))
			c.notifier.Warn("Connection to scanner lost, retrying")
		}

		c.state.Store(int32(StateClosedPendingRetry))
		c.monitor.Reconnect()

		select {
		case <-ctx.Done():
			return
		case <-c.timer(c.boff.NextBackOff()):
		}
	}
}

// readLoop receives until the channel errors or the context ends. It
// returns the terminal read error; per-message parse failures never
// propagate.
func (c *Client) readLoop(ctx context.Context, conn Conn) error {
	done := ctx.Done()
	for {
		select {
		case <-done:
			return ctx.Err()
		default:
		}

		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		if msgType != websocket.TextMessage {
			continue
		}

		ev, err := scanner.ParseEvent(data)
		if err != nil {
			// Malformed or unrecognized messages are diagnostics only;
			// they must not stall the stream.
			c.logger.Debug(fmt.Sprintf("dropping message: %s", err.Error()))
			c.monitor.MessageDropped()
			continue
		}

		select {
		case c.events <- ev:
		case <-done:
			return ctx.Err()
		}
	}
}
