// Package notify collects user-visible notifications: connectivity
// changes, request failures, validation errors. It stands in for the
// dashboard toast area.
package notify

import (
	"io"
	"log/slog"
	"sync"
	"time"
)

// Level classifies a notice.
type Level string

const (
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// DefaultKeep is how many notices the center retains.
const DefaultKeep = 50

// Notice is one dismissable notification.
type Notice struct {
	ID        int64
	Level     Level
	Message   string
	At        time.Time
	Dismissed bool
}

// Notifier is the narrow interface components depend on.
type Notifier interface {
	Info(msg string)
	Warn(msg string)
	Error(msg string)
}

// Center keeps a bounded ring of recent notices and mirrors each one to
// the logger.
type Center struct {
	mu      sync.Mutex
	notices []Notice
	nextID  int64
	keep    int
	logger  *slog.Logger
	now     func() time.Time
}

// WithLogger sets the logger notices are mirrored to.
func WithLogger(logger *slog.Logger) func(*Center) {
	return func(c *Center) {
		c.logger = logger
	}
}

// WithKeep overrides how many notices are retained.
func WithKeep(n int) func(*Center) {
	return func(c *Center) {
		if n > 0 {
			c.keep = n
		}
	}
}

// NewCenter creates a notification center with a discard logger.
func NewCenter(options ...func(*Center)) *Center {
	c := Center{
		keep:   DefaultKeep,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:    time.Now,
	}

	for _, option := range options {
		option(&c)
	}

	return &c
}

func (c *Center) Info(msg string)  { c.add(LevelInfo, msg) }
func (c *Center) Warn(msg string)  { c.add(LevelWarn, msg) }
func (c *Center) Error(msg string) { c.add(LevelError, msg) }

func (c *Center) add(level Level, msg string) {
	c.mu.Lock()
	c.nextID++
	n := Notice{ID: c.nextID, Level: level, Message: msg, At: c.now()}
	c.notices = append(c.notices, n)
	if len(c.notices) > c.keep {
		c.notices = c.notices[len(c.notices)-c.keep:]
	}
	c.mu.Unlock()

	switch level {
	case LevelWarn:
		c.logger.Warn(msg)
	case LevelError:
		c.logger.Error(msg)
	default:
		c.logger.Info(msg)
	}
}

// Dismiss marks a notice as dismissed. Unknown IDs are ignored.
func (c *Center) Dismiss(id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.notices {
		if c.notices[i].ID == id {
			c.notices[i].Dismissed = true
			return
		}
	}
}

// Recent returns the retained notices, oldest first, skipping dismissed
// ones.
func (c *Center) Recent() []Notice {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Notice, 0, len(c.notices))
	for _, n := range c.notices {
		if !n.Dismissed {
			out = append(out, n)
		}
	}
	return out
}
