// Package status holds the dashboard view of the monitor. Readers always see a complete,
// immutable Snapshot and never block writers.
package status

import (
	"sync"
	"sync/atomic"
	"time"
)

// MaxEvents is the number of recent events kept in a Snapshot.
const MaxEvents = 50

// Monitor states shown on the dashboard.
const (
	StateStarting = "starting"
	StateRunning  = "running"
	StatePaused   = "paused"
	StateStopped  = "stopped"
	StateFailed   = "failed"
)

// Event is one entry in the recent events list.
type Event struct {
	Kind         string    `json:"kind"`
	Count        int       `json:"count"`
	SnapshotPath string    `json:"snapshot,omitempty"`
	Time         time.Time `json:"time"`
}

// Stats are running totals since start.
type Stats struct {
	TotalEvents int `json:"totalEvents"`
	PeakCount   int `json:"peakCount"`
	TotalToday  int `json:"totalToday"`
}

// Debounce shows how far the debouncer is from its next event. Presence mode fills the
// frame runs and thresholds; count mode fills the candidate fields.
type Debounce struct {
	FramesIn        int `json:"framesIn"`
	FramesOut       int `json:"framesOut"`
	RequiredInside  int `json:"requiredInside,omitempty"`
	RequiredOutside int `json:"requiredOutside,omitempty"`
	Candidate       int `json:"candidate"`
	CandidateFrames int `json:"candidateFrames"`
	StabilityFrames int `json:"stabilityFrames,omitempty"`
}

// Snapshot is the published dashboard state. Never modify a Snapshot after Publish.
type Snapshot struct {
	Status     string    `json:"status"`
	Mode       string    `json:"mode"`
	Session    string    `json:"session,omitempty"`
	Present    bool      `json:"present"`
	Count      int       `json:"count"`
	Detections int       `json:"detections"`
	Debounce   Debounce  `json:"debounce"`
	LastEvent  *Event    `json:"lastEvent,omitempty"`
	LastUpdate time.Time `json:"lastUpdate"`
	Events     []Event   `json:"events"`
	Stats      Stats     `json:"stats"`
	Frame      int64     `json:"frame"`
	FPS        float64   `json:"fps"`
	Error      string    `json:"error,omitempty"`
}

// Board publishes snapshots with copy-on-write. Writers are serialized internally;
// Current is lock-free.
type Board struct {
	current atomic.Pointer[Snapshot]

	mu      sync.Mutex
	day     string
	now     func() time.Time
	waiters []chan struct{}
}

// NewBoard creates a board in the starting state.
func NewBoard(mode string) *Board {
	b := &Board{now: time.Now}
	b.current.Store(&Snapshot{
		Status: StateStarting,
		Mode:   mode,
		Events: []Event{},
	})
	return b
}

// Current returns the latest published snapshot.
func (b *Board) Current() *Snapshot {
	return b.current.Load()
}

// Update copies the current snapshot, applies fn to the copy and publishes it.
func (b *Board) Update(fn func(s *Snapshot)) {
	b.mu.Lock()
	defer b.mu.Unlock()

	next := *b.current.Load()
	fn(&next)
	next.LastUpdate = b.now()
	b.publish(&next)
}

// Observe records the per-frame signal.
func (b *Board) Observe(frame int64, present bool, count, detections int, fps float64, d Debounce) {
	b.Update(func(s *Snapshot) {
		s.Debounce = d
		s.Frame = frame
		s.Present = present
		s.Count = count
		s.Detections = detections
		s.FPS = fps
		if count > s.Stats.PeakCount {
			s.Stats.PeakCount = count
		}
	})
}

// RecordEvent prepends ev to the recent events and updates the totals.
func (b *Board) RecordEvent(ev Event) {
	b.Update(func(s *Snapshot) {
		events := make([]Event, 0, min(len(s.Events)+1, MaxEvents))
		events = append(events, ev)
		events = append(events, s.Events[:min(len(s.Events), MaxEvents-1)]...)
		s.Events = events

		last := ev
		s.LastEvent = &last
		s.Stats.TotalEvents++

		day := ev.Time.Format(time.DateOnly)
		if day != b.day {
			b.day = day
			s.Stats.TotalToday = 0
		}
		s.Stats.TotalToday++
	})
}

// SetStatus publishes a new monitor state and optional error text.
func (b *Board) SetStatus(state string, err error) {
	b.Update(func(s *Snapshot) {
		s.Status = state
		s.Error = ""
		if err != nil {
			s.Error = err.Error()
		}
	})
}

// Changed returns a channel closed on the next publish.
func (b *Board) Changed() <-chan struct{} {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan struct{})
	b.waiters = append(b.waiters, ch)
	return ch
}

func (b *Board) publish(s *Snapshot) {
	b.current.Store(s)
	for _, ch := range b.waiters {
		close(ch)
	}
	b.waiters = nil
}
