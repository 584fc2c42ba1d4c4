package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/scanmon/scanmon/internal/api"
	"github.com/scanmon/scanmon/internal/archive"
	"github.com/scanmon/scanmon/internal/chart"
	"github.com/scanmon/scanmon/internal/directory"
	"github.com/scanmon/scanmon/internal/metrics"
	"github.com/scanmon/scanmon/internal/notify"
	"github.com/scanmon/scanmon/internal/scanner"
	"github.com/scanmon/scanmon/internal/stats"
	"github.com/scanmon/scanmon/internal/stream"
	"github.com/scanmon/scanmon/internal/tracker"
	"github.com/scanmon/scanmon/internal/translog"
)

// monitor holds the live state maintained by the event loop. Everything
// below mu is read by the HTTP handlers; the rest is touched only by
// the loop goroutine.
type monitor struct {
	config   *Config
	logger   *slog.Logger
	backend  *api.Client
	stream   *stream.Client
	window   *stats.Window
	tracker  *tracker.Tracker
	dir      *directory.Cache
	logView  *translog.View
	notices  *notify.Center
	renderer *chart.Renderer
	metrics  *metrics.Metrics

	store     *archive.Store
	sessionID int64

	transmissionsCh chan []scanner.Transmission
	frequenciesCh   chan []scanner.Frequency
	statusCh        chan *scanner.Status

	mu     sync.RWMutex
	status *scanner.Status
}

// Run wires the monitor together and blocks until ctx is cancelled or
// startup fails.
func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	streamURL, err := config.Backend.StreamURL()
	if err != nil {
		return err
	}

	renderer, err := chart.NewRenderer(chart.Config{
		Width:    config.Chart.Width,
		Height:   config.Chart.Height,
		FontPath: config.Chart.FontPath,
	})
	if err != nil {
		return fmt.Errorf("creating chart renderer: %w", err)
	}

	notices := notify.NewCenter(notify.WithLogger(logger))
	dir := directory.NewCache()

	m := &monitor{
		config:   config,
		logger:   logger,
		backend:  api.NewClient(config.Backend.URL),
		window:   stats.NewWindow(stats.DefaultCapacity),
		tracker:  tracker.New(*config.Scanner.SquelchThresholdDbm, tracker.WithResolver(dir)),
		dir:      dir,
		logView:  translog.NewView(),
		notices:  notices,
		renderer: renderer,
		metrics:  metrics.New(),

		transmissionsCh: make(chan []scanner.Transmission, 1),
		frequenciesCh:   make(chan []scanner.Frequency, 1),
		statusCh:        make(chan *scanner.Status, 1),
	}

	if config.Archive.Enabled {
		store, err := createArchive(&config.Archive)
		if err != nil {
			return fmt.Errorf("creating archive: %w", err)
		}
		defer store.Close()

		sessionID, err := store.BeginSession(ctx, config.Backend.URL)
		if err != nil {
			return fmt.Errorf("starting capture session: %w", err)
		}
		m.store = store
		m.sessionID = sessionID
		logger.Info("transmission capture enabled", slog.Int64("session", sessionID))
	}

	m.stream = stream.NewClient(streamURL,
		stream.WithLogger(logger),
		stream.WithNotifier(notices),
		stream.WithMonitor(m.metrics),
	)

	server := m.newServer(config.Listen.Addr)
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.ListenAndServe()
	}()
	logger.Info("listening", slog.String("addr", config.Listen.Addr))

	m.stream.Connect(ctx)
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		m.loop(ctx)
	}()

	select {
	case <-ctx.Done():
	case err = <-serverErr:
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if sErr := server.Shutdown(shutdownCtx); sErr != nil {
		logger.Warn("http server shutdown", slog.String("error", sErr.Error()))
	}

	<-loopDone
	m.stream.Wait()
	return nil
}

func createArchive(config *ArchiveConfig) (*archive.Store, error) {
	stat, err := os.Stat(config.DataDirectory)
	if err != nil {
		return nil, fmt.Errorf("archive directory %q: %w", config.DataDirectory, err)
	}
	if !stat.IsDir() {
		return nil, fmt.Errorf("archive path %q is not a directory", config.DataDirectory)
	}

	dbPath := filepath.Join(config.DataDirectory, fmt.Sprintf("capture_%s.sqlite", time.Now().UTC().Format("20060102_150405")))
	return archive.NewStore(dbPath), nil
}

func (m *monitor) setStatus(status *scanner.Status) {
	m.mu.Lock()
	m.status = status
	m.mu.Unlock()
}

func (m *monitor) currentStatus() *scanner.Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}
