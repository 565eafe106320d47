package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/ayusman/lotwatch/internal/detector"
	"github.com/ayusman/lotwatch/internal/overlay"
	"github.com/ayusman/lotwatch/internal/status"
	"github.com/rs/zerolog/log"
	"gocv.io/x/gocv"
)

type detectResult struct {
	detections []detector.Detection
	err        error
}

// run is the monitor loop. It paces frame reads with a ticker at the configured FPS and
// stops on Stop or on the first acquisition failure.
//
// Per frame:
//  1. Read a frame (failure is fatal).
//  2. On every Nth frame, refresh the latest known detections (failure keeps the old ones).
//  3. Derive the signal from the latest known detections and feed the debouncer.
//  4. Hand any event to the dispatcher.
//  5. Publish status, metrics and the preview stream.
//
// While paused, frames are grabbed and dropped instead.
func (m *Monitor) run(dispatched <-chan struct{}) {
	ticker := time.NewTicker(time.Second / time.Duration(m.config.FPS))
	defer ticker.Stop()

	var fatal error

loop:
	for {
		select {
		case <-m.stopCh:
			break loop
		case <-ticker.C:
			if !m.IsEnabled() {
				m.drain()
				continue
			}
			if err := m.step(); err != nil {
				fatal = err
				break loop
			}
		}
	}

	close(m.jobs)
	<-dispatched

	if m.session != nil {
		if err := m.config.Store.Sessions().End(m.session.ID); err != nil {
			log.Warn().Err(err).Msg("failed to end session")
		}
	}

	m.mu.Lock()
	m.err = fatal
	m.mu.Unlock()

	if fatal != nil {
		log.Error().Err(fatal).Int64("frame", m.frame).Msg("monitor stopped")
		m.board.SetStatus(status.StateFailed, fatal)
	} else {
		log.Info().Int64("frame", m.frame).Msg("monitor stopped")
		m.board.SetStatus(status.StateStopped, nil)
	}
	close(m.done)
}

// step processes one frame.
func (m *Monitor) step() error {
	frame, err := m.config.Camera.ReadFrame()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrAcquisition, err)
	}
	defer frame.Close()

	m.frame++
	m.metrics.FramesRead.Inc()
	m.measureFPS()

	if scheduled(m.frame, m.config.EveryNFrames) {
		m.refreshDetections(frame)
	}

	obs := m.tracker.Observe(m.detections)

	m.board.Observe(m.frame, obs.Present, obs.Count, len(obs.Relevant), m.fps, m.tracker.Debounce())
	m.metrics.SetPresent(obs.Present)
	m.metrics.Count.Set(float64(obs.Count))

	// The annotated JPEG is shared by the preview stream and the event snapshot.
	var preview []byte
	if m.config.Stream != nil {
		preview = m.render(frame, obs)
		if preview != nil {
			m.config.Stream.UpdateJPEG(preview)
		}
	}

	if !obs.Event.IsNone() {
		log.Info().
			Int64("frame", m.frame).
			Str("event", obs.Event.String()).
			Int("count", obs.Count).
			Msg("vehicle event")
		m.metrics.Events.WithLabelValues(obs.Event.String()).Inc()
		m.enqueue(frame, obs, preview)
	}
	return nil
}

// drain discards a frame while paused so a live source does not replay a stale backlog
// on resume.
func (m *Monitor) drain() {
	if err := m.config.Camera.Grab(); err != nil {
		log.Debug().Err(err).Msg("grab while paused")
	}
}

// scheduled reports whether the detector runs on frame n (1-based): frames 1, N+1, 2N+1, ...
func scheduled(n int64, every int) bool {
	return (n-1)%int64(every) == 0
}

// refreshDetections replaces the latest known detections unless the region is idle, the
// detector is still busy with a timed-out call, or the detector fails.
func (m *Monitor) refreshDetections(frame *gocv.Mat) {
	if m.config.Detector == nil {
		return
	}

	if m.motion != nil {
		if moved, pct := m.motion.Detect(frame); !moved {
			m.metrics.DetectorSkipped.Inc()
			log.Debug().Int64("frame", m.frame).Float64("motion_pct", pct).Msg("no motion, reusing detections")
			return
		}
	}

	dets, err := m.detect(frame)
	if err != nil {
		m.metrics.DetectorErrors.Inc()
		log.Warn().Err(err).Int64("frame", m.frame).Msg("keeping last known detections")
		return
	}
	m.detections = dets
}

// detect runs the detector on a copy of frame, bounded by the detect timeout. A call that
// times out keeps running in the background; until it returns, later calls fail fast.
func (m *Monitor) detect(frame *gocv.Mat) ([]detector.Detection, error) {
	if m.inflight != nil {
		select {
		case <-m.inflight:
			m.inflight = nil
		default:
			return nil, fmt.Errorf("%w: previous call still running", ErrDetection)
		}
	}

	clone := frame.Clone()
	result := make(chan detectResult, 1)
	started := time.Now()

	go func() {
		defer clone.Close()
		dets, err := m.config.Detector.Detect(&clone)
		result <- detectResult{detections: dets, err: err}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), m.config.DetectTimeout)
	defer cancel()

	m.metrics.DetectorRuns.Inc()
	select {
	case r := <-result:
		m.metrics.DetectorDuration.Observe(time.Since(started).Seconds())
		if r.err != nil {
			return nil, fmt.Errorf("%w: %w", ErrDetection, r.err)
		}
		return r.detections, nil
	case <-ctx.Done():
		m.inflight = result
		return nil, fmt.Errorf("%w: timeout after %s", ErrDetection, m.config.DetectTimeout)
	}
}

func (m *Monitor) measureFPS() {
	now := time.Now()
	if !m.lastTick.IsZero() {
		if dt := now.Sub(m.lastTick).Seconds(); dt > 0 {
			// Exponential moving average over roughly ten frames.
			m.fps = 0.9*m.fps + 0.1/dt
		}
	}
	m.lastTick = now
}

// render draws the ROI and latest detections on a copy of frame and encodes it as JPEG.
// It returns nil when encoding fails.
func (m *Monitor) render(frame *gocv.Mat, obs Observation) []byte {
	preview := frame.Clone()
	defer preview.Close()

	overlay.Draw(&preview, m.overlayStyle(obs), m.candidates())

	data, err := overlay.EncodeJPEG(preview)
	if err != nil {
		log.Debug().Err(err).Msg("preview encode failed")
		return nil
	}
	return data
}

func (m *Monitor) overlayStyle(obs Observation) overlay.Style {
	caption := fmt.Sprintf("%s count=%d", presenceCaption(obs.Present), obs.Count)
	return overlay.Style{
		Region:    m.config.Tracker.Region,
		Threshold: m.config.Tracker.OverlapThreshold,
		Gated:     m.tracker.Gated(),
		Caption:   caption,
	}
}

// candidates are the latest known detections of the watched classes.
func (m *Monitor) candidates() []detector.Detection {
	return detector.Filter(m.detections, m.config.Tracker.Classes, m.config.Tracker.MinConfidence)
}

func presenceCaption(present bool) string {
	if present {
		return "PRESENT"
	}
	return "ABSENT"
}
