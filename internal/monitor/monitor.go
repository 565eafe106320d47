// Package monitor runs the vehicle monitoring loop: it reads frames, runs the detector on a
// decimated schedule, debounces the per-frame signal and dispatches events to snapshots,
// storage and notifiers.
package monitor

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ayusman/lotwatch/internal/capture"
	"github.com/ayusman/lotwatch/internal/config"
	"github.com/ayusman/lotwatch/internal/detector"
	"github.com/ayusman/lotwatch/internal/metrics"
	"github.com/ayusman/lotwatch/internal/notify"
	"github.com/ayusman/lotwatch/internal/snapshot"
	"github.com/ayusman/lotwatch/internal/status"
	"github.com/ayusman/lotwatch/internal/store"
	"github.com/hybridgroup/mjpeg"
	"github.com/rs/zerolog/log"
)

var (
	// ErrAcquisition means a frame could not be read. The loop stops.
	ErrAcquisition = errors.New("frame acquisition failed")
	// ErrDetection means the detector failed or timed out. The last known detections are kept.
	ErrDetection = errors.New("detection failed")
	// ErrNotification means an event could not be delivered. It is logged and never retried.
	ErrNotification = errors.New("notification failed")
)

// Config holds the monitor settings and its collaborators. Camera and Notifier are required;
// the other collaborators are optional.
type Config struct {
	Tracker TrackerConfig

	FPS               int
	EveryNFrames      int
	DetectTimeout     time.Duration
	MotionGate        bool
	MotionThreshold   float64
	AnnotateSnapshots bool
	NotifyTimeout     time.Duration
	QueueSize         int

	Camera    capture.Camera
	Detector  detector.Detector
	Notifier  notify.Notifier
	Snapshots *snapshot.Writer
	Store     *store.Store
	Board     *status.Board
	Metrics   *metrics.Metrics
	Stream    *mjpeg.Stream
}

// FromConfig maps the file configuration onto monitor settings. Collaborators are left nil.
func FromConfig(c *config.Config) Config {
	return Config{
		Tracker: TrackerConfig{
			Mode:                  c.Mode,
			Region:                c.ROI,
			OverlapThreshold:      c.Gate.OverlapThreshold,
			Classes:               c.Detect.Classes,
			MinConfidence:         c.Detect.MinConfidence,
			FramesRequiredInside:  c.Presence.FramesRequiredInside,
			FramesRequiredOutside: c.Presence.FramesRequiredOutside,
			StabilityFrames:       c.Count.StabilityFrames,
			CountGateROI:          c.Count.GateROI,
		},
		FPS:               c.Camera.FPS,
		EveryNFrames:      c.Detect.EveryNFrames,
		DetectTimeout:     c.Detect.Timeout,
		MotionGate:        c.Detect.MotionGate,
		MotionThreshold:   c.Detect.MotionThreshold,
		AnnotateSnapshots: c.Snapshots.Annotate,
		NotifyTimeout:     c.Notify.Timeout,
		QueueSize:         c.Notify.QueueSize,
	}
}

// Monitor orchestrates frame acquisition, detection, debouncing and event dispatch.
// One goroutine owns the camera, the detector schedule and the debouncer; a second
// goroutine performs side effects in event order.
type Monitor struct {
	config  Config
	tracker *Tracker
	motion  *capture.MotionDetector
	board   *status.Board
	metrics *metrics.Metrics
	session *store.Session

	enabled bool
	started bool
	mu      sync.RWMutex
	stopCh  chan struct{}
	done    chan struct{}
	err     error

	jobs chan job

	// Owned by the loop goroutine.
	frame      int64
	detections []detector.Detection
	inflight   chan detectResult
	lastTick   time.Time
	fps        float64
}

// New creates a Monitor. It does not open the camera.
func New(cfg Config) (*Monitor, error) {
	if cfg.Camera == nil {
		return nil, fmt.Errorf("%w: camera is required", config.ErrConfiguration)
	}
	if cfg.Notifier == nil {
		return nil, fmt.Errorf("%w: notifier is required", config.ErrConfiguration)
	}
	if cfg.FPS <= 0 {
		cfg.FPS = capture.DefaultFPS
	}
	if cfg.EveryNFrames < 1 {
		cfg.EveryNFrames = 1
	}
	if cfg.DetectTimeout <= 0 {
		cfg.DetectTimeout = 2 * time.Second
	}
	if cfg.NotifyTimeout <= 0 {
		cfg.NotifyTimeout = 10 * time.Second
	}
	if cfg.QueueSize < 1 {
		cfg.QueueSize = 32
	}
	if cfg.Tracker.Mode == "" {
		cfg.Tracker.Mode = config.ModePresence
	}

	m := &Monitor{
		config:  cfg,
		tracker: NewTracker(cfg.Tracker),
		board:   cfg.Board,
		metrics: cfg.Metrics,
		enabled: true,
	}
	if m.board == nil {
		m.board = status.NewBoard(string(cfg.Tracker.Mode))
	}
	if m.metrics == nil {
		m.metrics = metrics.New()
	}
	if cfg.MotionGate {
		m.motion = capture.NewMotionDetector(cfg.MotionThreshold, m.tracker.MotionArea())
	}

	return m, nil
}

// Start opens the camera, records a session and starts the loop and dispatcher.
func (m *Monitor) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return errors.New("monitor already started")
	}

	if err := m.config.Camera.Open(); err != nil {
		return fmt.Errorf("%w: open camera: %w", ErrAcquisition, err)
	}
	m.config.Camera.SetFPS(m.config.FPS)

	if m.config.Store != nil {
		sess, err := m.config.Store.Sessions().Start(string(m.config.Tracker.Mode))
		if err != nil {
			log.Warn().Err(err).Msg("failed to record session")
		} else {
			m.session = sess
		}
	}

	m.started = true
	m.stopCh = make(chan struct{})
	m.done = make(chan struct{})
	m.jobs = make(chan job, m.config.QueueSize)

	dispatched := make(chan struct{})
	go m.dispatch(dispatched)
	go m.run(dispatched)

	if m.session != nil {
		id := m.session.ID
		m.board.Update(func(s *status.Snapshot) { s.Session = id })
	}
	m.board.SetStatus(m.stateLocked(), nil)
	log.Info().
		Str("mode", string(m.config.Tracker.Mode)).
		Int("fps", m.config.FPS).
		Int("every_n_frames", m.config.EveryNFrames).
		Msg("monitor started")
	return nil
}

// Stop halts the loop, drains queued events and releases the camera and detector.
// It is safe to call more than once.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return
	}
	select {
	case <-m.stopCh:
	default:
		close(m.stopCh)
	}
	done := m.done
	m.mu.Unlock()

	<-done

	if err := m.config.Camera.Close(); err != nil {
		log.Warn().Err(err).Msg("error closing camera")
	}
	if m.config.Detector != nil {
		if err := m.config.Detector.Close(); err != nil {
			log.Warn().Err(err).Msg("error closing detector")
		}
	}
	if m.motion != nil {
		m.motion.Close()
	}
}

// Done is closed when the loop has exited, either through Stop or a fatal error.
func (m *Monitor) Done() <-chan struct{} {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.done
}

// Err returns the fatal error that stopped the loop, if any.
func (m *Monitor) Err() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.err
}

// SetEnabled pauses or resumes frame processing. Debouncer state is kept while paused.
func (m *Monitor) SetEnabled(enabled bool) {
	m.mu.Lock()
	m.enabled = enabled
	state := m.stateLocked()
	started := m.started
	m.mu.Unlock()

	if started {
		m.board.SetStatus(state, nil)
	}
	log.Info().Bool("enabled", enabled).Msg("monitor toggled")
}

// IsEnabled returns whether frames are being processed.
func (m *Monitor) IsEnabled() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.enabled
}

// Board returns the dashboard state board.
func (m *Monitor) Board() *status.Board {
	return m.board
}

// Metrics returns the monitor's collectors.
func (m *Monitor) Metrics() *metrics.Metrics {
	return m.metrics
}

func (m *Monitor) stateLocked() string {
	if m.enabled {
		return status.StateRunning
	}
	return status.StatePaused
}
