package monitor

import (
	"image"
	"testing"

	"github.com/ayusman/lotwatch/internal/config"
	"github.com/ayusman/lotwatch/internal/debounce"
	"github.com/ayusman/lotwatch/internal/detector"
	"github.com/ayusman/lotwatch/internal/roi"
	"github.com/ayusman/lotwatch/internal/status"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func presenceTracker(inside, outside int) *Tracker {
	return NewTracker(TrackerConfig{
		Mode:                  config.ModePresence,
		Region:                roi.FullFrame(640, 480),
		OverlapThreshold:      roi.DefaultThreshold,
		Classes:               detector.VehicleClasses,
		MinConfidence:         0.25,
		FramesRequiredInside:  inside,
		FramesRequiredOutside: outside,
	})
}

func countTracker(stability int, gate bool, region roi.Region) *Tracker {
	return NewTracker(TrackerConfig{
		Mode:             config.ModeCount,
		Region:           region,
		OverlapThreshold: roi.DefaultThreshold,
		Classes:          detector.VehicleClasses,
		MinConfidence:    0.25,
		StabilityFrames:  stability,
		CountGateROI:     gate,
	})
}

func cars(n int) []detector.Detection {
	out := make([]detector.Detection, n)
	for i := range out {
		out[i] = detector.Car(100+i*10, 100, 200+i*10, 200)
	}
	return out
}

func TestTracker_PresenceEnterExit(t *testing.T) {
	tr := presenceTracker(1, 1)

	obs := tr.Observe([]detector.Detection{detector.Car(100, 100, 200, 200)})
	assert.Equal(t, debounce.EventEnter, obs.Event, "frame 1")
	assert.True(t, obs.Present)
	assert.Equal(t, 1, obs.Count)

	obs = tr.Observe(nil)
	assert.Equal(t, debounce.EventExit, obs.Event, "frame 2")
	assert.False(t, obs.Present)
	assert.Equal(t, 0, obs.Count)
}

func TestTracker_PresenceGate(t *testing.T) {
	tr := NewTracker(TrackerConfig{
		Mode:                  config.ModePresence,
		Region:                roi.Region{X: 0, Y: 0, W: 100, H: 100},
		OverlapThreshold:      0.2,
		Classes:               detector.VehicleClasses,
		FramesRequiredInside:  1,
		FramesRequiredOutside: 1,
	})

	tests := []struct {
		name string
		det  detector.Detection
		want bool
	}{
		{"inside", detector.Car(10, 10, 50, 50), true},
		{"outside", detector.Car(200, 200, 300, 300), false},
		{"exactly threshold", detector.Car(80, 0, 180, 100), false},
		{"just over threshold", detector.Car(79, 0, 179, 100), true},
		{"person inside", detector.Person(10, 10, 50, 50), false},
		{"zero area", detector.Car(10, 10, 10, 50), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			relevant := tr.Relevant([]detector.Detection{tt.det})
			assert.Equal(t, tt.want, len(relevant) == 1)
		})
	}
}

func TestTracker_LowConfidenceIgnored(t *testing.T) {
	tr := presenceTracker(1, 1)
	weak := detector.Car(100, 100, 200, 200)
	weak.Confidence = 0.1

	obs := tr.Observe([]detector.Detection{weak})
	assert.False(t, obs.SignalPresent)
	assert.True(t, obs.Event.IsNone())
}

func TestTracker_CountExamples(t *testing.T) {
	t.Run("three stable ones", func(t *testing.T) {
		tr := countTracker(3, false, roi.Region{})
		var events []debounce.Event
		for _, n := range []int{1, 1, 1} {
			events = append(events, tr.Observe(cars(n)).Event)
		}
		assert.Equal(t, []debounce.Event{debounce.EventNone, debounce.EventNone, debounce.EventIncrease}, events)
		assert.Equal(t, 1, tr.CountState().Current)
	})

	t.Run("run broken by a new value", func(t *testing.T) {
		tr := countTracker(3, false, roi.Region{})
		var increases int
		var last Observation
		for _, n := range []int{1, 1, 2, 2, 2} {
			last = tr.Observe(cars(n))
			if last.Event == debounce.EventIncrease {
				increases++
			}
		}
		assert.Equal(t, 1, increases)
		assert.Equal(t, debounce.EventIncrease, last.Event)
		assert.Equal(t, 2, last.Count)
	})
}

func TestTracker_CountGateROI(t *testing.T) {
	region := roi.Region{X: 0, Y: 0, W: 300, H: 300}
	dets := []detector.Detection{
		detector.Car(10, 10, 100, 100),
		detector.Car(400, 400, 500, 470),
		detector.Person(10, 10, 100, 100),
	}

	ungated := countTracker(1, false, region)
	assert.Equal(t, 2, ungated.Observe(dets).SignalCount)

	gated := countTracker(1, true, region)
	assert.True(t, gated.Gated())
	assert.Equal(t, 1, gated.Observe(dets).SignalCount)
}

func TestTracker_MotionArea(t *testing.T) {
	region := roi.Region{X: 10, Y: 20, W: 100, H: 50}

	assert.Equal(t, image.Rect(10, 20, 110, 70), countTracker(1, true, region).MotionArea())
	assert.True(t, countTracker(1, false, region).MotionArea().Empty(), "ungated count watches the whole frame")

	presence := NewTracker(TrackerConfig{Mode: config.ModePresence, Region: region})
	assert.Equal(t, image.Rect(10, 20, 110, 70), presence.MotionArea())
}

func TestTracker_Debounce(t *testing.T) {
	t.Run("presence", func(t *testing.T) {
		tr := presenceTracker(3, 2)
		tr.Observe(cars(1))
		tr.Observe(cars(1))

		assert.Equal(t, status.Debounce{FramesIn: 2, RequiredInside: 3, RequiredOutside: 2}, tr.Debounce())
	})

	t.Run("count", func(t *testing.T) {
		tr := countTracker(4, false, roi.FullFrame(640, 480))
		tr.Observe(cars(2))
		tr.Observe(cars(2))

		assert.Equal(t, status.Debounce{Candidate: 2, CandidateFrames: 2, StabilityFrames: 4}, tr.Debounce())
	})
}

// TestTracker_DecimationKeepsRawFrameThresholds drives the tracker the way the loop does:
// the detector refreshes the latest known detections on scheduled frames only, while the
// tracker is fed on every frame.
func TestTracker_DecimationKeepsRawFrameThresholds(t *testing.T) {
	const every = 3
	tr := presenceTracker(5, 4)

	// What the detector would see if it ran on frame n (1-based).
	truth := func(n int64) []detector.Detection {
		if n >= 4 && n <= 12 {
			return cars(1)
		}
		return nil
	}

	var latest []detector.Detection
	events := map[int64]debounce.Event{}
	for n := int64(1); n <= 30; n++ {
		if scheduled(n, every) {
			latest = truth(n)
		}
		if ev := tr.Observe(latest).Event; !ev.IsNone() {
			events[n] = ev
		}
	}

	// Detections at frames 4, 7, 10 (car), 13 (empty). Signal is true for frames 4..12.
	// ENTER after 5 raw frames: 4,5,6,7,8. EXIT after 4 raw frames: 13,14,15,16.
	require.Len(t, events, 2)
	assert.Equal(t, debounce.EventEnter, events[8])
	assert.Equal(t, debounce.EventExit, events[16])
}

func TestScheduled(t *testing.T) {
	var got []int64
	for n := int64(1); n <= 10; n++ {
		if scheduled(n, 3) {
			got = append(got, n)
		}
	}
	assert.Equal(t, []int64{1, 4, 7, 10}, got)

	for n := int64(1); n <= 5; n++ {
		assert.True(t, scheduled(n, 1))
	}
}

func TestFromConfig(t *testing.T) {
	c := config.Default()
	c.Mode = config.ModeCount
	c.Count.GateROI = true

	mc := FromConfig(c)
	assert.Equal(t, config.ModeCount, mc.Tracker.Mode)
	assert.True(t, mc.Tracker.CountGateROI)
	assert.Equal(t, c.Detect.EveryNFrames, mc.EveryNFrames)
	assert.Equal(t, c.Notify.QueueSize, mc.QueueSize)
	assert.Equal(t, c.ROI, mc.Tracker.Region)
}
