package debounce

// Event is a confirmed transition reported to the rest of the system.
type Event string

// Event kinds. EventNone is the zero value.
const (
	EventNone     Event = ""
	EventEnter    Event = "ENTER"
	EventExit     Event = "EXIT"
	EventIncrease Event = "INCREASE"
	EventDecrease Event = "DECREASE"
)

// IsNone reports whether e carries no transition.
func (e Event) IsNone() bool {
	return e == EventNone
}

func (e Event) String() string {
	if e == EventNone {
		return "NONE"
	}
	return string(e)
}
