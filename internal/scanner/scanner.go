package scanner

import "time"

// SquelchFloorDbm is the display floor for signal strength. Samples at or
// below this level are indistinguishable from an idle receiver.
const SquelchFloorDbm = -100.0

// Frequency is a single entry of the backend frequency registry.
type Frequency struct {
	ID           int64     `json:"id"`
	FrequencyHz  float64   `json:"frequency"`
	Modulation   string    `json:"modulation"`
	FriendlyName string    `json:"friendly_name"`
	Description  string    `json:"description"`
	Enabled      bool      `json:"enabled"`
	Priority     int       `json:"priority"`
	Group        string    `json:"group"`
	Tags         string    `json:"tags"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Transmission is a completed transmission log record. Records are
// immutable once fetched; views derive from them without mutation.
type Transmission struct {
	ID                int64     `json:"id"`
	FrequencyHz       float64   `json:"frequency"`
	SignalStrengthDbm float64   `json:"signal_strength"`
	Timestamp         time.Time `json:"timestamp"`
	DurationSeconds   float64   `json:"duration"`
	Modulation        string    `json:"modulation"`
	Description       string    `json:"description"`
	Notes             string    `json:"notes"`
	ZelloSent         bool      `json:"zello_sent"`
	ZelloSuccess      bool      `json:"zello_success"`
	ZelloError        string    `json:"zello_error"`
	ZelloAudioEnabled bool      `json:"zello_audio_enabled"`
}

// ZelloDeliveryState describes what happened to the audio of a
// transmission on its way to Zello.
type ZelloDeliveryState string

const (
	ZelloDisabled ZelloDeliveryState = "disabled" // audio was off at transmission time
	ZelloPending  ZelloDeliveryState = "pending"  // audio on, nothing sent yet
	ZelloSent     ZelloDeliveryState = "sent"
	ZelloFailed   ZelloDeliveryState = "failed"
)

// ZelloState derives the delivery state from the raw backend flags.
func (t *Transmission) ZelloState() ZelloDeliveryState {
	switch {
	case !t.ZelloAudioEnabled:
		return ZelloDisabled
	case t.ZelloSent && t.ZelloSuccess:
		return ZelloSent
	case t.ZelloSent || t.ZelloError != "":
		return ZelloFailed
	default:
		return ZelloPending
	}
}

// Recording is the metadata of a captured audio file, consumed read-only
// by the dashboard views.
type Recording struct {
	ID                int64     `json:"id"`
	Filename          string    `json:"filename"`
	FileSizeBytes     int64     `json:"file_size_bytes"`
	Format            string    `json:"format"`
	Timestamp         time.Time `json:"timestamp"`
	DurationSeconds   float64   `json:"duration_seconds"`
	FrequencyHz       float64   `json:"frequency_hz"`
	FriendlyName      string    `json:"friendly_name"`
	Description       string    `json:"description"`
	Group             string    `json:"group"`
	Modulation        string    `json:"modulation"`
	SignalStrengthDbm float64   `json:"signal_strength_dbm"`
	PeakStrengthDbm   float64   `json:"peak_signal_strength_dbm"`
	IsFavorite        bool      `json:"is_favorite"`
	Notes             string    `json:"notes"`
}

// RecordingStats is the backend's summary over all recordings.
type RecordingStats struct {
	TotalRecordings      int64   `json:"total_recordings"`
	TotalSizeBytes       int64   `json:"total_size_bytes"`
	TotalDurationSeconds float64 `json:"total_duration_seconds"`
	FavoriteCount        int64   `json:"favorite_count"`
}

// Status is the scanner state as reported by the backend, either polled
// over REST or pushed as a scanner_status event.
type Status struct {
	IsScanning         bool    `json:"is_scanning"`
	CurrentFrequencyHz float64 `json:"current_frequency"`
	ScanListSize       int     `json:"scan_list_size"`
	SDRConnected       bool    `json:"sdr_connected"`
	ScanIndex          int     `json:"scan_index"`
	Timestamp          string  `json:"timestamp"`
}

// AudioStatus is the audio pipeline state as reported by the backend.
type AudioStatus struct {
	AudioEnabled bool `json:"audio_enabled"`
	IsRecording  bool `json:"is_recording"`
	ZelloReady   bool `json:"zello_ready"`
}
