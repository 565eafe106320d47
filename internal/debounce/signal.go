// Package debounce turns a noisy per-frame signal into discrete, confirmed change events.
//
// A Signal tracks a confirmed value and the run of identical raw observations that differ
// from it. Once the run reaches the length its Policy requires for that value, the value is
// adopted and the direction of the change is reported. Presence and Count are the boolean
// and integer specializations used by the monitor.
package debounce

// Edge is the direction of a confirmed change.
type Edge int

const (
	// EdgeNone means no change was confirmed.
	EdgeNone Edge = iota
	// EdgeRising means the confirmed value moved up.
	EdgeRising
	// EdgeFalling means the confirmed value moved down.
	EdgeFalling
)

// Policy parameterizes a Signal.
type Policy[T comparable] struct {
	// Required returns how many consecutive observations of target confirm it.
	Required func(target T) int
	// Compare orders two values: negative if a < b, zero if equal, positive if a > b.
	Compare func(a, b T) int
}

// Signal is a debounced value. It is not safe for concurrent use; one goroutine owns it.
type Signal[T comparable] struct {
	policy  Policy[T]
	current T
	last    T
	run     int
}

// NewSignal creates a Signal whose confirmed value starts at initial.
func NewSignal[T comparable](initial T, policy Policy[T]) *Signal[T] {
	return &Signal[T]{
		policy:  policy,
		current: initial,
		last:    initial,
	}
}

// Update feeds one raw observation and returns the edge it confirmed, if any.
// At most one edge is reported per call.
func (s *Signal[T]) Update(observed T) Edge {
	if observed == s.last {
		s.run++
	} else {
		s.last = observed
		s.run = 1
	}

	if observed == s.current {
		return EdgeNone
	}

	if s.run < s.policy.Required(observed) {
		return EdgeNone
	}

	old := s.current
	s.current = observed

	switch c := s.policy.Compare(s.current, old); {
	case c > 0:
		return EdgeRising
	case c < 0:
		return EdgeFalling
	default:
		return EdgeNone
	}
}

// Current returns the confirmed value.
func (s *Signal[T]) Current() T {
	return s.current
}

// Pending returns the value under observation and its run length.
// The run is zero when the latest observation matches the confirmed value.
func (s *Signal[T]) Pending() (T, int) {
	if s.last == s.current {
		return s.current, 0
	}
	return s.last, s.run
}

// Last returns the most recent raw observation and how many times in a row it was seen.
func (s *Signal[T]) Last() (T, int) {
	return s.last, s.run
}
