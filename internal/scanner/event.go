package scanner

import (
	"encoding/json"
	"errors"
	"fmt"
)

// EventKind discriminates the push-channel event types.
type EventKind string

const (
	KindSignalStrength    EventKind = "signal_strength"
	KindTransmissionStart EventKind = "transmission_start"
	KindTransmissionEnd   EventKind = "transmission_end"
	KindScannerStatus     EventKind = "scanner_status"
	KindFrequencyUpdate   EventKind = "frequency_update"
)

// ErrUnknownEvent is returned by ParseEvent for event kinds this client
// does not understand. Callers log and drop such messages.
var ErrUnknownEvent = errors.New("unknown event kind")

// Event is the closed set of push-channel events. Adding a kind means
// adding a type here and a case to every switch over Event, so new kinds
// are a compile-time visible change rather than a silently ignored tag.
type Event interface {
	Kind() EventKind
}

// SignalStrengthEvent carries one signal strength sample for the
// frequency the scanner currently sits on.
type SignalStrengthEvent struct {
	FrequencyHz       float64 `json:"frequency"`
	SignalStrengthDbm float64 `json:"signal_strength"`
	Timestamp         string  `json:"timestamp"`
}

func (SignalStrengthEvent) Kind() EventKind { return KindSignalStrength }

// TransmissionStartEvent announces that a transmission opened squelch.
type TransmissionStartEvent struct {
	FrequencyHz       float64 `json:"frequency"`
	SignalStrengthDbm float64 `json:"signal_strength"`
	Timestamp         string  `json:"timestamp"`
	Modulation        string  `json:"modulation"`
	Description       string  `json:"description"`
}

func (TransmissionStartEvent) Kind() EventKind { return KindTransmissionStart }

// TransmissionEndEvent closes a transmission and carries its final stats.
type TransmissionEndEvent struct {
	FrequencyHz       float64 `json:"frequency"`
	DurationSeconds   float64 `json:"duration"`
	Timestamp         string  `json:"timestamp"`
	AudioFile         string  `json:"audio_file"`
	Description       string  `json:"description"`
	Group             string  `json:"group"`
	SignalStrengthDbm float64 `json:"signal_strength"`
	Modulation        string  `json:"modulation"`
}

func (TransmissionEndEvent) Kind() EventKind { return KindTransmissionEnd }

// ScannerStatusEvent mirrors the polled scanner status.
type ScannerStatusEvent struct {
	Status
}

func (ScannerStatusEvent) Kind() EventKind { return KindScannerStatus }

// FrequencyUpdateEvent reports the frequency the scanner tuned to.
type FrequencyUpdateEvent struct {
	FrequencyHz float64 `json:"frequency"`
	Timestamp   string  `json:"timestamp"`
}

func (FrequencyUpdateEvent) Kind() EventKind { return KindFrequencyUpdate }

type eventEnvelope struct {
	Type EventKind `json:"type"`
}

// ParseEvent decodes a raw push-channel message into its typed event.
// Unknown kinds return ErrUnknownEvent wrapped with the offending tag;
// malformed payloads return the underlying decode error. Neither is
// fatal to the caller: per-message failures are logged and dropped.
func ParseEvent(data []byte) (Event, error) {
	var env eventEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decoding event envelope: %w", err)
	}

	var ev Event
	var err error
	switch env.Type {
	case KindSignalStrength:
		var e SignalStrengthEvent
		err = json.Unmarshal(data, &e)
		ev = e

	case KindTransmissionStart:
		var e TransmissionStartEvent
		err = json.Unmarshal(data, &e)
		ev = e

	case KindTransmissionEnd:
		var e TransmissionEndEvent
		err = json.Unmarshal(data, &e)
		ev = e

	case KindScannerStatus:
		var e ScannerStatusEvent
		err = json.Unmarshal(data, &e)
		ev = e

	case KindFrequencyUpdate:
		var e FrequencyUpdateEvent
		err = json.Unmarshal(data, &e)
		ev = e

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Type)
	}

	if err != nil {
		return nil, fmt.Errorf("decoding %s event: %w", env.Type, err)
	}
	return ev, nil
}
