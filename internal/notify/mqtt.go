package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"
)

// MQTTOptions configures the MQTT notifier.
type MQTTOptions struct {
	Broker   string
	Topic    string
	ClientID string
	QoS      byte
	Username string
	Password string
}

// publisher is the subset of mqtt.Client used to send events.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTT publishes each message as JSON to a topic.
type MQTT struct {
	client publisher
	topic  string
	qos    byte
}

// DialMQTT connects to the broker and returns a notifier. The client reconnects on its own
// after a lost connection.
func DialMQTT(opts MQTTOptions, timeout time.Duration) (*MQTT, mqtt.Client, error) {
	co := mqtt.NewClientOptions()
	co.AddBroker(opts.Broker)
	co.SetClientID(opts.ClientID)
	if opts.Username != "" {
		co.SetUsername(opts.Username)
		co.SetPassword(opts.Password)
	}
	co.SetAutoReconnect(true)
	co.SetConnectRetry(true)
	co.SetConnectRetryInterval(2 * time.Second)
	co.SetMaxReconnectInterval(30 * time.Second)

	co.OnConnect = func(mqtt.Client) {
		log.Info().Str("broker", opts.Broker).Str("client_id", opts.ClientID).Msg("mqtt connected")
	}
	co.OnConnectionLost = func(_ mqtt.Client, err error) {
		log.Warn().Err(err).Str("broker", opts.Broker).Msg("mqtt connection lost, reconnecting")
	}

	client := mqtt.NewClient(co)
	token := client.Connect()
	if !token.WaitTimeout(timeout) {
		return nil, nil, fmt.Errorf("mqtt connect to %s: timeout", opts.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, nil, fmt.Errorf("mqtt connect to %s: %w", opts.Broker, err)
	}

	return newMQTT(client, opts.Topic, opts.QoS), client, nil
}

func newMQTT(client publisher, topic string, qos byte) *MQTT {
	return &MQTT{client: client, topic: topic, qos: qos}
}

// Send publishes msg and waits for the token or ctx.
func (m *MQTT) Send(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal mqtt payload: %w", err)
	}

	token := m.client.Publish(m.topic, m.qos, false, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return fmt.Errorf("mqtt publish to %s: %w", m.topic, ctx.Err())
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt publish to %s: %w", m.topic, err)
	}
	return nil
}
