package app

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultSquelchDbm      = -50.0
	defaultChartWidth      = 800
	defaultChartHeight     = 300
	defaultStatusInterval  = 10 * time.Second
	defaultRefreshInterval = 30 * time.Second
	defaultDirectoryPoll   = 5 * time.Minute
	defaultListenAddr      = ":9090"
	defaultTransmissionCap = 100
)

// Config represents the main application configuration
type Config struct {
	Settings Settings      `yaml:"settings"`
	Backend  BackendConfig `yaml:"backend"`
	Scanner  ScannerConfig `yaml:"scanner"`
	Chart    ChartConfig   `yaml:"chart"`
	Poll     PollConfig    `yaml:"poll"`
	Listen   ListenConfig  `yaml:"listen"`
	Archive  ArchiveConfig `yaml:"archive"`
}

// Settings represents global application settings
type Settings struct {
	LogLevel string `yaml:"logLevel"`
}

// Level parses the configured log level, defaulting to info.
func (s Settings) Level() slog.Level {
	switch strings.ToLower(s.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// BackendConfig points the monitor at the scanner backend
type BackendConfig struct {
	URL string `yaml:"url"`
}

// StreamURL derives the websocket push endpoint from the backend URL.
func (b BackendConfig) StreamURL() (string, error) {
	u, err := url.Parse(b.URL)
	if err != nil {
		return "", fmt.Errorf("parsing backend URL: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported backend scheme %q", u.Scheme)
	}
	u.Path = "/ws"
	return u.String(), nil
}

// ScannerConfig represents signal handling settings
type ScannerConfig struct {
	SquelchThresholdDbm *float64 `yaml:"squelchThresholdDbm"`
	TransmissionLimit   int      `yaml:"transmissionLimit"`
}

// ChartConfig represents strip chart rendering settings
type ChartConfig struct {
	Width    int    `yaml:"width"`
	Height   int    `yaml:"height"`
	FontPath string `yaml:"fontPath"`
}

// PollConfig represents backend polling intervals
type PollConfig struct {
	Status        time.Duration `yaml:"status"`
	Transmissions time.Duration `yaml:"transmissions"`
	Directory     time.Duration `yaml:"directory"`
}

// ListenConfig represents the local HTTP endpoint settings
type ListenConfig struct {
	Addr string `yaml:"addr"`
}

// ArchiveConfig represents optional local transmission capture
type ArchiveConfig struct {
	Enabled       bool   `yaml:"enabled"`
	DataDirectory string `yaml:"dataDirectory"`
}

// LoadConfig reads and validates the YAML configuration at path,
// filling in defaults for anything left unset.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading configuration: %w", err)
	}

	var config Config
	if err = yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	if config.Backend.URL == "" {
		return nil, fmt.Errorf("backend URL is required")
	}
	if _, err = config.Backend.StreamURL(); err != nil {
		return nil, err
	}

	if config.Scanner.SquelchThresholdDbm == nil {
		squelch := defaultSquelchDbm
		config.Scanner.SquelchThresholdDbm = &squelch
	}
	if config.Scanner.TransmissionLimit <= 0 {
		config.Scanner.TransmissionLimit = defaultTransmissionCap
	}
	if config.Chart.Width <= 0 {
		config.Chart.Width = defaultChartWidth
	}
	if config.Chart.Height <= 0 {
		config.Chart.Height = defaultChartHeight
	}
	if config.Poll.Status <= 0 {
		config.Poll.Status = defaultStatusInterval
	}
	if config.Poll.Transmissions <= 0 {
		config.Poll.Transmissions = defaultRefreshInterval
	}
	if config.Poll.Directory <= 0 {
		config.Poll.Directory = defaultDirectoryPoll
	}
	if config.Listen.Addr == "" {
		config.Listen.Addr = defaultListenAddr
	}
	if config.Archive.Enabled && config.Archive.DataDirectory == "" {
		return nil, fmt.Errorf("archive data directory is required when archiving is enabled")
	}

	return &config, nil
}
