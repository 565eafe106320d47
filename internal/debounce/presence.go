package debounce

// State is the confirmed presence state.
type State string

const (
	StateAbsent  State = "ABSENT"
	StatePresent State = "PRESENT"
)

// PresenceState is a read-only view of a Presence debouncer.
// At most one of FramesIn and FramesOut is nonzero.
type PresenceState struct {
	State     State `json:"state"`
	FramesIn  int   `json:"frames_in"`
	FramesOut int   `json:"frames_out"`
}

// Presence converts a per-frame "vehicle present" flag into ENTER and EXIT events.
// Entry and exit thresholds are independent frame counts, so debounce latency depends
// on Update being called at a fixed cadence.
type Presence struct {
	signal  *Signal[bool]
	inside  int
	outside int
}

// NewPresence creates a Presence debouncer starting ABSENT. Thresholds below 1 are raised to 1.
func NewPresence(requiredInside, requiredOutside int) *Presence {
	p := &Presence{
		inside:  max(requiredInside, 1),
		outside: max(requiredOutside, 1),
	}
	p.signal = NewSignal(false, Policy[bool]{
		Required: func(present bool) int {
			if present {
				return p.inside
			}
			return p.outside
		},
		Compare: compareBool,
	})
	return p
}

// Update feeds one frame's flag and returns EventEnter, EventExit or EventNone.
func (p *Presence) Update(present bool) Event {
	switch p.signal.Update(present) {
	case EdgeRising:
		return EventEnter
	case EdgeFalling:
		return EventExit
	default:
		return EventNone
	}
}

// Present reports whether the confirmed state is PRESENT.
func (p *Presence) Present() bool {
	return p.signal.Current()
}

// State returns a snapshot of the debouncer state.
func (p *Presence) State() PresenceState {
	st := PresenceState{State: StateAbsent}
	if p.signal.Current() {
		st.State = StatePresent
	}

	last, run := p.signal.Last()
	if last {
		st.FramesIn = run
	} else {
		st.FramesOut = run
	}
	return st
}

// Thresholds returns the configured entry and exit frame counts.
func (p *Presence) Thresholds() (inside, outside int) {
	return p.inside, p.outside
}

func compareBool(a, b bool) int {
	switch {
	case a == b:
		return 0
	case a:
		return 1
	default:
		return -1
	}
}
