package debounce

import "cmp"

// CountState is a read-only view of a Count debouncer.
type CountState struct {
	Current         int `json:"current_count"`
	Candidate       int `json:"candidate_count"`
	CandidateFrames int `json:"candidate_frames"`
}

// Count confirms a change in vehicle count only after the same new value has been observed
// for StabilityFrames consecutive updates. Intermediate values that never stabilize are
// skipped; only the direction of a confirmed change is reported.
type Count struct {
	signal    *Signal[int]
	stability int
}

// NewCount creates a Count debouncer starting at zero. Stability below 1 is raised to 1.
func NewCount(stabilityFrames int) *Count {
	stability := max(stabilityFrames, 1)
	return &Count{
		stability: stability,
		signal: NewSignal(0, Policy[int]{
			Required: func(int) int { return stability },
			Compare:  cmp.Compare[int],
		}),
	}
}

// Update feeds one observed count and returns the confirmed event and the current count.
// Negative observations are treated as zero.
func (c *Count) Update(observed int) (Event, int) {
	var ev Event
	switch c.signal.Update(max(observed, 0)) {
	case EdgeRising:
		ev = EventIncrease
	case EdgeFalling:
		ev = EventDecrease
	}
	return ev, c.signal.Current()
}

// Current returns the confirmed count.
func (c *Count) Current() int {
	return c.signal.Current()
}

// StabilityFrames returns the configured run length.
func (c *Count) StabilityFrames() int {
	return c.stability
}

// State returns a snapshot of the debouncer state.
func (c *Count) State() CountState {
	candidate, frames := c.signal.Pending()
	return CountState{
		Current:         c.signal.Current(),
		Candidate:       candidate,
		CandidateFrames: frames,
	}
}
