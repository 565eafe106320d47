package debounce

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSignal_CustomPolicy(t *testing.T) {
	// Strings need a longer run to confirm "alarm" than anything else.
	s := NewSignal("idle", Policy[string]{
		Required: func(target string) int {
			if target == "alarm" {
				return 3
			}
			return 1
		},
		Compare: strings.Compare,
	})

	assert.Equal(t, EdgeNone, s.Update("alarm"))
	assert.Equal(t, EdgeNone, s.Update("alarm"))
	assert.Equal(t, EdgeFalling, s.Update("alarm"))
	assert.Equal(t, "alarm", s.Current())

	assert.Equal(t, EdgeRising, s.Update("idle"))
	assert.Equal(t, "idle", s.Current())
}

func TestSignal_EqualCompareReportsNoEdge(t *testing.T) {
	s := NewSignal(0, Policy[int]{
		Required: func(int) int { return 1 },
		Compare:  func(a, b int) int { return 0 },
	})

	assert.Equal(t, EdgeNone, s.Update(5))
	assert.Equal(t, 5, s.Current())
}

func TestSignal_Pending(t *testing.T) {
	s := NewSignal(0, Policy[int]{
		Required: func(int) int { return 4 },
		Compare:  func(a, b int) int { return a - b },
	})

	v, run := s.Pending()
	assert.Equal(t, 0, v)
	assert.Equal(t, 0, run)

	s.Update(3)
	s.Update(3)
	v, run = s.Pending()
	assert.Equal(t, 3, v)
	assert.Equal(t, 2, run)

	s.Update(0)
	v, run = s.Pending()
	assert.Equal(t, 0, v)
	assert.Equal(t, 0, run)

	last, lastRun := s.Last()
	assert.Equal(t, 0, last)
	assert.Equal(t, 1, lastRun)
}

func TestEvent_String(t *testing.T) {
	assert.Equal(t, "NONE", EventNone.String())
	assert.Equal(t, "ENTER", EventEnter.String())
	assert.True(t, EventNone.IsNone())
	assert.False(t, EventExit.IsNone())
}
