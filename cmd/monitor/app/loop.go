package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/scanmon/scanmon/internal/scanner"
	"github.com/scanmon/scanmon/internal/stats"
)

// loop is the single goroutine that owns all live-state mutation.
// Stream events, tick-driven fetch results and nothing else feed it;
// fetches run in their own goroutines and re-enter through channels,
// so a slow backend can never stall event handling. When a fetch and
// its successor race, the last result to arrive wins.
func (m *monitor) loop(ctx context.Context) {
	statusTick := time.NewTicker(m.config.Poll.Status)
	defer statusTick.Stop()
	logTick := time.NewTicker(m.config.Poll.Transmissions)
	defer logTick.Stop()
	directoryTick := time.NewTicker(m.config.Poll.Directory)
	defer directoryTick.Stop()

	// Prime the caches so the first frames have names and history.
	m.fetchDirectory(ctx)
	m.fetchTransmissions(ctx)
	m.fetchStatus(ctx)

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-m.stream.Events():
			if !ok {
				return
			}
			m.handleEvent(ctx, ev)

		case <-statusTick.C:
			m.fetchStatus(ctx)
			m.metrics.SetConnectionState(int(m.stream.State()))

		case <-logTick.C:
			m.fetchTransmissions(ctx)

		case <-directoryTick.C:
			m.fetchDirectory(ctx)

		case records := <-m.transmissionsCh:
			m.logView.SetRecords(records)

		case entries := <-m.frequenciesCh:
			m.dir.Replace(entries)

		case status := <-m.statusCh:
			m.setStatus(status)
		}
	}
}

func (m *monitor) handleEvent(ctx context.Context, ev scanner.Event) {
	m.metrics.EventReceived(string(ev.Kind()))
	m.metrics.SetConnectionState(int(m.stream.State()))

	now := time.Now()
	switch ev := ev.(type) {
	case scanner.SignalStrengthEvent:
		m.window.Push(stats.Sample{
			FrequencyHz: ev.FrequencyHz,
			StrengthDbm: ev.SignalStrengthDbm,
			ObservedAt:  now,
		})
		m.tracker.Observe(ev.FrequencyHz, ev.SignalStrengthDbm, now)

		average, ok := m.window.Average()
		m.metrics.SetWindow(m.window.Count(), average, ok, m.window.Peak())
		m.metrics.SetActiveFrequencies(m.tracker.Len())

	case scanner.TransmissionStartEvent:
		m.tracker.Observe(ev.FrequencyHz, ev.SignalStrengthDbm, now)
		m.logger.Debug("transmission started",
			slog.Float64("frequency", ev.FrequencyHz),
			slog.Float64("signal", ev.SignalStrengthDbm))

	case scanner.TransmissionEndEvent:
		m.logger.Debug("transmission ended",
			slog.Float64("frequency", ev.FrequencyHz),
			slog.Float64("duration", ev.DurationSeconds))
		if m.store != nil {
			if err := m.store.StoreTransmission(ctx, m.sessionID, &ev, now); err != nil {
				m.logger.Warn(fmt.Sprintf("capturing transmission: %s", err.Error()))
			}
		}
		// The backend has a new log row; refresh ahead of the tick.
		m.fetchTransmissions(ctx)

	case scanner.ScannerStatusEvent:
		status := ev.Status
		m.setStatus(&status)

	case scanner.FrequencyUpdateEvent:
		m.logger.Debug("scanner tuned", slog.Float64("frequency", ev.FrequencyHz))
	}
}

// The fetch helpers run the HTTP round-trip off the loop goroutine and
// deliver through single-slot channels. When responses to overlapping
// fetches of the same resource race, the last one to arrive replaces
// whatever is still queued: stale results are the ones dropped.

func (m *monitor) fetchTransmissions(ctx context.Context) {
	go func() {
		records, err := m.backend.Transmissions(ctx, m.config.Scanner.TransmissionLimit)
		if err != nil {
			m.reportFetchError("transmission log", err)
			return
		}
		replaceResult(m.transmissionsCh, records)
	}()
}

func (m *monitor) fetchDirectory(ctx context.Context) {
	go func() {
		entries, err := m.backend.Frequencies(ctx)
		if err != nil {
			m.reportFetchError("frequency directory", err)
			return
		}
		replaceResult(m.frequenciesCh, entries)
	}()
}

func (m *monitor) fetchStatus(ctx context.Context) {
	go func() {
		status, err := m.backend.ScannerStatus(ctx)
		if err != nil {
			m.reportFetchError("scanner status", err)
			return
		}
		replaceResult(m.statusCh, status)
	}()
}

// replaceResult queues v on a single-slot result channel, evicting any
// older undelivered result so the freshest response wins.
func replaceResult[T any](ch chan T, v T) {
	for {
		select {
		case ch <- v:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

func (m *monitor) reportFetchError(what string, err error) {
	if errors.Is(err, context.Canceled) {
		return
	}
	m.logger.Warn(fmt.Sprintf("fetching %s: %s", what, err.Error()))
	m.notices.Error(fmt.Sprintf("Error loading %s", what))
}
