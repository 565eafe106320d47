package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTitle(t *testing.T) {
	tests := []struct {
		event string
		count int
		want  string
	}{
		{"ENTER", 1, "Vehicle ENTERED lot"},
		{"EXIT", 0, "Vehicle EXITED lot"},
		{"INCREASE", 3, "Vehicle count increased to 3"},
		{"DECREASE", 1, "Vehicle count decreased to 1"},
		{"OTHER", 0, "Vehicle event OTHER"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Title(tt.event, tt.count))
	}
}

func TestNewMessage(t *testing.T) {
	at := time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC)
	msg := NewMessage("ENTER", 1, "/tmp/a.jpg", at)

	assert.Equal(t, "Vehicle ENTERED lot", msg.Title)
	assert.Equal(t, "Time: Fri Jan  2 15:04:05 2026", msg.Body)
	assert.Equal(t, "/tmp/a.jpg", msg.ImagePath)
	assert.Equal(t, at, msg.Time)
}

func TestMulti(t *testing.T) {
	errA := errors.New("a failed")
	var calls []string

	m := Multi{
		NotifierFunc(func(ctx context.Context, msg Message) error {
			calls = append(calls, "a")
			return errA
		}),
		NotifierFunc(func(ctx context.Context, msg Message) error {
			calls = append(calls, "b")
			return nil
		}),
	}

	err := m.Send(context.Background(), Message{Event: "ENTER"})
	require.Error(t, err)
	assert.ErrorIs(t, err, errA)
	assert.Equal(t, []string{"a", "b"}, calls, "a failure must not stop later notifiers")

	assert.NoError(t, Multi{}.Send(context.Background(), Message{}))
}
