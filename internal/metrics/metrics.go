// Package metrics exposes the monitor's state to Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the monitor's Prometheus collectors, registered on
// their own registry so the exported set stays under this package's
// control.
type Metrics struct {
	registry *prometheus.Registry

	eventsTotal     *prometheus.CounterVec // stream events received, by kind
	droppedTotal    prometheus.Counter     // malformed or unknown messages dropped
	reconnectsTotal prometheus.Counter     // push channel reconnect attempts

	connectionState   prometheus.Gauge // 0 idle, 1 connecting, 2 open, 3 pending retry
	activeFrequencies prometheus.Gauge
	windowCount       prometheus.Gauge
	windowAverageDbm  prometheus.Gauge
	windowPeakDbm     prometheus.Gauge
}

// New creates and registers the monitor's collectors.
func New() *Metrics {
	m := Metrics{
		registry: prometheus.NewRegistry(),
		eventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scanmon_stream_events_total",
			Help: "Stream events received, by event kind",
		}, []string{"kind"}),
		droppedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scanmon_stream_dropped_total",
			Help: "Stream messages dropped as malformed or unrecognized",
		}),
		reconnectsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scanmon_stream_reconnects_total",
			Help: "Push channel reconnect attempts",
		}),
		connectionState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scanmon_connection_state",
			Help: "Push channel state: 0 idle, 1 connecting, 2 open, 3 pending retry",
		}),
		activeFrequencies: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scanmon_active_frequencies",
			Help: "Frequencies currently above the squelch threshold",
		}),
		windowCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scanmon_window_samples",
			Help: "Samples currently held in the rolling window",
		}),
		windowAverageDbm: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scanmon_window_average_dbm",
			Help: "Mean signal strength over the rolling window",
		}),
		windowPeakDbm: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scanmon_window_peak_dbm",
			Help: "Peak hold since the window was last cleared",
		}),
	}

	m.registry.MustRegister(
		m.eventsTotal,
		m.droppedTotal,
		m.reconnectsTotal,
		m.connectionState,
		m.activeFrequencies,
		m.windowCount,
		m.windowAverageDbm,
		m.windowPeakDbm,
	)

	return &m
}

// Registry returns the registry backing the /metrics endpoint.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// EventReceived counts one stream event of the given kind.
func (m *Metrics) EventReceived(kind string) {
	m.eventsTotal.WithLabelValues(kind).Inc()
}

// MessageDropped counts one malformed or unrecognized message.
func (m *Metrics) MessageDropped() {
	m.droppedTotal.Inc()
}

// Reconnect counts one reconnect attempt.
func (m *Metrics) Reconnect() {
	m.reconnectsTotal.Inc()
}

// SetConnectionState records the push channel state.
func (m *Metrics) SetConnectionState(state int) {
	m.connectionState.Set(float64(state))
}

// SetActiveFrequencies records the active set size.
func (m *Metrics) SetActiveFrequencies(n int) {
	m.activeFrequencies.Set(float64(n))
}

// SetWindow records the rolling window aggregates. hasAverage guards
// the mean: an empty window leaves the previous value untouched rather
// than exporting a sentinel.
func (m *Metrics) SetWindow(count int, averageDbm float64, hasAverage bool, peakDbm float64) {
	m.windowCount.Set(float64(count))
	m.windowPeakDbm.Set(peakDbm)
	if hasAverage {
		m.windowAverageDbm.Set(averageDbm)
	}
}
