package app

import (
	"context"
	"encoding/json"
	"errors"
	"image/png"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/scanmon/scanmon/internal/api"
	"github.com/scanmon/scanmon/internal/chart"
	"github.com/scanmon/scanmon/internal/scanner"
	"github.com/scanmon/scanmon/internal/translog"
)

func (m *monitor) newServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /chart.png", m.handleChart)
	mux.HandleFunc("GET /healthz", m.handleHealth)
	mux.HandleFunc("GET /active.json", m.handleActive)
	mux.HandleFunc("GET /log.json", m.handleLog)
	mux.HandleFunc("GET /notices.json", m.handleNotices)
	mux.HandleFunc("POST /notices/dismiss", m.handleDismiss)
	mux.HandleFunc("POST /scanner/start", m.handleCommand("starting scanner", m.backend.StartScanner))
	mux.HandleFunc("POST /scanner/stop", m.handleCommand("stopping scanner", m.backend.StopScanner))
	mux.HandleFunc("POST /audio/enable", m.handleCommand("enabling audio", m.backend.EnableAudio))
	mux.HandleFunc("POST /audio/disable", m.handleCommand("disabling audio", m.backend.DisableAudio))
	mux.HandleFunc("POST /frequencies", m.handleCreateFrequency)
	mux.HandleFunc("PUT /frequencies/{id}", m.handleUpdateFrequency)
	mux.HandleFunc("DELETE /frequencies/{id}", m.handleDeleteFrequency)
	mux.HandleFunc("PATCH /recordings/{id}", m.handleUpdateRecording)
	mux.HandleFunc("DELETE /recordings/{id}", m.handleDeleteRecording)
	mux.HandleFunc("POST /cleanup", m.handleCleanup)
	mux.Handle("GET /metrics", promhttp.HandlerFor(m.metrics.Registry(), promhttp.HandlerOpts{}))

	return &http.Server{
		Addr:    addr,
		Handler: mux,
	}
}

// handleChart renders the current rolling window as a strip chart.
// Rendering reads consistent snapshots from the window and tracker, so
// it is safe to serve concurrently with the event loop.
func (m *monitor) handleChart(w http.ResponseWriter, r *http.Request) {
	frame := chart.Frame{
		Strengths:  m.window.Strengths(),
		Capacity:   m.window.Capacity(),
		SquelchDbm: m.tracker.Threshold(),
	}
	if sample, ok := m.window.Latest(); ok {
		latest := chart.LatestSample{
			FrequencyHz: sample.FrequencyHz,
			StrengthDbm: sample.StrengthDbm,
		}
		if name, ok := m.dir.Resolve(sample.FrequencyHz); ok {
			latest.FriendlyName = name
		}
		frame.Latest = &latest
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	if err := png.Encode(w, m.renderer.Render(frame)); err != nil {
		m.logger.Warn("encoding chart", slog.String("error", err.Error()))
	}
}

type activeEntry struct {
	FrequencyHz  int64   `json:"frequency"`
	StrengthDbm  float64 `json:"signal_strength"`
	LastSeenAt   string  `json:"last_seen"`
	FriendlyName string  `json:"friendly_name,omitempty"`
}

// handleActive serves the currently active frequencies, strongest first.
func (m *monitor) handleActive(w http.ResponseWriter, r *http.Request) {
	snapshot := m.tracker.Snapshot()
	entries := make([]activeEntry, 0, len(snapshot))
	for _, e := range snapshot {
		entries = append(entries, activeEntry{
			FrequencyHz:  e.FrequencyHz,
			StrengthDbm:  e.StrengthDbm,
			LastSeenAt:   e.LastSeenAt.UTC().Format(time.RFC3339),
			FriendlyName: e.FriendlyName,
		})
	}
	m.writeJSON(w, entries)
}

// logRecord is a transmission plus the delivery state derived from its
// raw zello flags, which is what the log column shows.
type logRecord struct {
	scanner.Transmission
	ZelloState scanner.ZelloDeliveryState `json:"zello_state"`
}

type logResponse struct {
	Records       []logRecord `json:"records"`
	Page          int         `json:"page"`
	TotalPages    int         `json:"total_pages"`
	Filtered      int         `json:"filtered"`
	Total         int         `json:"total"`
	Today         int         `json:"today"`
	AverageSignal *float64    `json:"average_signal,omitempty"`
	Duration      string      `json:"duration"`
}

// handleLog applies the query's filters, sort and page to the log view
// and serves the resulting page with its aggregates. Absent parameters
// clear the corresponding filter.
func (m *monitor) handleLog(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var day *time.Time
	if s := q.Get("day"); s != "" {
		d, err := time.ParseInLocation("2006-01-02", s, time.Local)
		if err != nil {
			http.Error(w, "invalid day, want YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		day = &d
	}
	m.logView.SetDayFilter(day)

	var freq *float64
	if s := q.Get("frequency"); s != "" {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			http.Error(w, "invalid frequency", http.StatusBadRequest)
			return
		}
		freq = &f
	}
	m.logView.SetFrequencyFilter(freq)

	if s := q.Get("sort"); s != "" {
		mode, ok := translog.ParseSortMode(s)
		if !ok {
			http.Error(w, "unknown sort mode", http.StatusBadRequest)
			return
		}
		m.logView.SetSort(mode)
	}

	if s := q.Get("page"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			http.Error(w, "invalid page", http.StatusBadRequest)
			return
		}
		m.logView.SetPage(n)
	}

	page := m.logView.Render()
	aggregates := m.logView.Aggregate(time.Now())

	records := make([]logRecord, 0, len(page.Records))
	for _, t := range page.Records {
		records = append(records, logRecord{Transmission: t, ZelloState: t.ZelloState()})
	}

	resp := logResponse{
		Records:    records,
		Page:       page.Number,
		TotalPages: page.TotalPages,
		Filtered:   page.Filtered,
		Total:      aggregates.Total,
		Today:      aggregates.Today,
		Duration:   translog.FormatDuration(aggregates.TotalDuration),
	}
	if aggregates.HasAverage {
		avg := aggregates.AverageSignalDbm
		resp.AverageSignal = &avg
	}
	m.writeJSON(w, &resp)
}

type noticeResponse struct {
	ID      int64  `json:"id"`
	Level   string `json:"level"`
	Message string `json:"message"`
	At      string `json:"at"`
}

func (m *monitor) handleNotices(w http.ResponseWriter, r *http.Request) {
	recent := m.notices.Recent()
	notices := make([]noticeResponse, 0, len(recent))
	for _, n := range recent {
		notices = append(notices, noticeResponse{
			ID:      n.ID,
			Level:   string(n.Level),
			Message: n.Message,
			At:      n.At.UTC().Format(time.RFC3339),
		})
	}
	m.writeJSON(w, notices)
}

func (m *monitor) handleDismiss(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.URL.Query().Get("id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid notice id", http.StatusBadRequest)
		return
	}
	m.notices.Dismiss(id)
	w.WriteHeader(http.StatusNoContent)
}

// handleCommand passes a parameterless backend command through. A
// backend failure surfaces as a notice and a gateway error; the stale
// local state stays displayed either way.
func (m *monitor) handleCommand(what string, run func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := run(r.Context()); err != nil {
			m.commandError(w, what, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (m *monitor) handleCreateFrequency(w http.ResponseWriter, r *http.Request) {
	var req api.FrequencyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	created, err := m.backend.CreateFrequency(r.Context(), &req)
	if err != nil {
		m.commandError(w, "creating frequency", err)
		return
	}
	w.WriteHeader(http.StatusCreated)
	m.writeJSON(w, created)
}

func (m *monitor) handleUpdateFrequency(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid frequency id", http.StatusBadRequest)
		return
	}
	var req api.FrequencyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	updated, err := m.backend.UpdateFrequency(r.Context(), id, &req)
	if err != nil {
		m.commandError(w, "updating frequency", err)
		return
	}
	m.writeJSON(w, updated)
}

func (m *monitor) handleDeleteFrequency(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid frequency id", http.StatusBadRequest)
		return
	}
	if err := m.backend.DeleteFrequency(r.Context(), id); err != nil {
		m.commandError(w, "deleting frequency", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (m *monitor) handleUpdateRecording(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid recording id", http.StatusBadRequest)
		return
	}
	var update api.RecordingUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := m.backend.UpdateRecording(r.Context(), id, &update); err != nil {
		m.commandError(w, "updating recording", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (m *monitor) handleDeleteRecording(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid recording id", http.StatusBadRequest)
		return
	}
	if err := m.backend.DeleteRecording(r.Context(), id); err != nil {
		m.commandError(w, "deleting recording", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (m *monitor) handleCleanup(w http.ResponseWriter, r *http.Request) {
	days, err := strconv.Atoi(r.URL.Query().Get("days"))
	if err != nil {
		http.Error(w, "invalid days parameter", http.StatusBadRequest)
		return
	}
	if err := m.backend.Cleanup(r.Context(), days); err != nil {
		m.commandError(w, "running cleanup", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// commandError maps a backend client error to a response: validation
// failures were rejected before any request went out and are the
// caller's fault; everything else is the backend's.
func (m *monitor) commandError(w http.ResponseWriter, what string, err error) {
	m.notices.Error("Error " + what)
	var vErr *api.ValidationError
	if errors.As(err, &vErr) {
		http.Error(w, vErr.Error(), http.StatusBadRequest)
		return
	}
	m.logger.Warn(what, slog.String("error", err.Error()))
	http.Error(w, err.Error(), http.StatusBadGateway)
}

func (m *monitor) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		m.logger.Warn("encoding response", slog.String("error", err.Error()))
	}
}

type healthResponse struct {
	Connection string `json:"connection"`
	Scanning   bool   `json:"scanning"`
	SDR        bool   `json:"sdr_connected"`
	Window     int    `json:"window_samples"`
	Active     int    `json:"active_frequencies"`
}

func (m *monitor) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Connection: m.stream.State().String(),
		Window:     m.window.Count(),
		Active:     m.tracker.Len(),
	}
	if status := m.currentStatus(); status != nil {
		resp.Scanning = status.IsScanning
		resp.SDR = status.SDRConnected
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(&resp); err != nil {
		m.logger.Warn("encoding health response", slog.String("error", err.Error()))
	}
}
