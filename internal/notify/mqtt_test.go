package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeToken struct {
	done chan struct{}
	err  error
}

func completedToken(err error) *fakeToken {
	t := &fakeToken{done: make(chan struct{}), err: err}
	close(t.done)
	return t
}

func (t *fakeToken) Wait() bool                       { <-t.done; return true }
func (t *fakeToken) WaitTimeout(d time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{}            { return t.done }
func (t *fakeToken) Error() error                     { return t.err }

type fakePublisher struct {
	topic   string
	qos     byte
	payload []byte
	token   mqtt.Token
}

func (p *fakePublisher) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	p.topic = topic
	p.qos = qos
	p.payload = payload.([]byte)
	return p.token
}

func TestMQTT_Send(t *testing.T) {
	pub := &fakePublisher{token: completedToken(nil)}
	n := newMQTT(pub, "lotwatch/events", 1)

	at := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)
	require.NoError(t, n.Send(context.Background(), NewMessage("INCREASE", 2, "", at)))

	assert.Equal(t, "lotwatch/events", pub.topic)
	assert.Equal(t, byte(1), pub.qos)

	var got Message
	require.NoError(t, json.Unmarshal(pub.payload, &got))
	assert.Equal(t, "INCREASE", got.Event)
	assert.Equal(t, 2, got.Count)
	assert.True(t, got.Time.Equal(at))
}

func TestMQTT_Send_Errors(t *testing.T) {
	t.Run("token error", func(t *testing.T) {
		pub := &fakePublisher{token: completedToken(errors.New("not connected"))}
		err := newMQTT(pub, "t", 0).Send(context.Background(), Message{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not connected")
	})

	t.Run("context cancelled", func(t *testing.T) {
		pub := &fakePublisher{token: &fakeToken{done: make(chan struct{})}}
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := newMQTT(pub, "t", 0).Send(ctx, Message{})
		assert.ErrorIs(t, err, context.Canceled)
	})
}
