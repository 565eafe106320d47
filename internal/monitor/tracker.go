package monitor

import (
	"image"

	"github.com/ayusman/lotwatch/internal/config"
	"github.com/ayusman/lotwatch/internal/debounce"
	"github.com/ayusman/lotwatch/internal/detector"
	"github.com/ayusman/lotwatch/internal/roi"
	"github.com/ayusman/lotwatch/internal/status"
)

// Observation is the outcome of feeding one frame's detections to the Tracker.
type Observation struct {
	// Relevant are the detections that contributed to the signal.
	Relevant []detector.Detection

	// Signal is the raw per-frame input given to the debouncer.
	SignalPresent bool
	SignalCount   int

	// Present and Count are the confirmed (debounced) state after this frame.
	Present bool
	Count   int

	Event debounce.Event
}

// Tracker derives the per-frame signal from detections and feeds the debouncer for its mode.
// It must be called exactly once per frame, including frames where the detector did not run.
type Tracker struct {
	mode          config.Mode
	region        roi.Region
	threshold     float64
	classes       []int
	minConfidence float64
	gateCount     bool

	presence *debounce.Presence
	count    *debounce.Count
}

// TrackerConfig configures a Tracker.
type TrackerConfig struct {
	Mode                  config.Mode
	Region                roi.Region
	OverlapThreshold      float64
	Classes               []int
	MinConfidence         float64
	FramesRequiredInside  int
	FramesRequiredOutside int
	StabilityFrames       int
	CountGateROI          bool
}

// NewTracker creates a tracker in the initial state: absent, count zero.
func NewTracker(cfg TrackerConfig) *Tracker {
	t := &Tracker{
		mode:          cfg.Mode,
		region:        cfg.Region,
		threshold:     cfg.OverlapThreshold,
		classes:       cfg.Classes,
		minConfidence: cfg.MinConfidence,
		gateCount:     cfg.CountGateROI,
	}
	if cfg.Mode == config.ModeCount {
		t.count = debounce.NewCount(cfg.StabilityFrames)
	} else {
		t.presence = debounce.NewPresence(cfg.FramesRequiredInside, cfg.FramesRequiredOutside)
	}
	return t
}

// Gated reports whether detections must pass the ROI gate to count.
func (t *Tracker) Gated() bool {
	return t.mode != config.ModeCount || t.gateCount
}

// Relevant filters detections by class and confidence and, when gated, by the ROI.
func (t *Tracker) Relevant(dets []detector.Detection) []detector.Detection {
	filtered := detector.Filter(dets, t.classes, t.minConfidence)
	if !t.Gated() {
		return filtered
	}

	out := filtered[:0]
	for _, d := range filtered {
		if roi.Relevant(d.Box, t.region, t.threshold) {
			out = append(out, d)
		}
	}
	return out
}

// Observe feeds one frame's latest known detections to the debouncer.
func (t *Tracker) Observe(dets []detector.Detection) Observation {
	relevant := t.Relevant(dets)
	obs := Observation{
		Relevant:      relevant,
		SignalPresent: len(relevant) > 0,
		SignalCount:   len(relevant),
	}

	if t.count != nil {
		obs.Event, obs.Count = t.count.Update(obs.SignalCount)
		obs.Present = obs.Count > 0
		return obs
	}

	obs.Event = t.presence.Update(obs.SignalPresent)
	obs.Present = t.presence.Present()
	if obs.Present {
		obs.Count = obs.SignalCount
	}
	return obs
}

// Presence returns the presence debouncer state, or the zero value in count mode.
func (t *Tracker) Presence() debounce.PresenceState {
	if t.presence == nil {
		return debounce.PresenceState{}
	}
	return t.presence.State()
}

// CountState returns the count debouncer state, or the zero value in presence mode.
func (t *Tracker) CountState() debounce.CountState {
	if t.count == nil {
		return debounce.CountState{}
	}
	return t.count.State()
}

// MotionArea is the part of the frame where movement can change the signal: the ROI when
// detections are gated, otherwise the whole frame (the empty rectangle).
func (t *Tracker) MotionArea() image.Rectangle {
	if !t.Gated() {
		return image.Rectangle{}
	}
	return t.region.Rect()
}

// Debounce reports the debouncer's progress toward its next event.
func (t *Tracker) Debounce() status.Debounce {
	if t.count != nil {
		st := t.CountState()
		return status.Debounce{
			Candidate:       st.Candidate,
			CandidateFrames: st.CandidateFrames,
			StabilityFrames: t.count.StabilityFrames(),
		}
	}

	st := t.Presence()
	inside, outside := t.presence.Thresholds()
	return status.Debounce{
		FramesIn:        st.FramesIn,
		FramesOut:       st.FramesOut,
		RequiredInside:  inside,
		RequiredOutside: outside,
	}
}

// Mode returns the tracker mode.
func (t *Tracker) Mode() config.Mode {
	return t.mode
}
