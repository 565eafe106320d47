package main

import (
	"fmt"
	"net/http"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"

	"github.com/ayusman/lotwatch/internal/config"
	"github.com/ayusman/lotwatch/internal/detector"
	"github.com/ayusman/lotwatch/internal/notify"
)

// newDetector builds the configured backend. BackendNone returns a nil detector.
func newDetector(c config.DetectConfig) (detector.Detector, error) {
	dc := detector.Config{
		ModelPath:     c.ModelPath,
		InputSize:     c.InputSize,
		MinConfidence: c.MinConfidence,
		NMSThreshold:  c.NMSThreshold,
	}

	switch c.Backend {
	case config.BackendDNN:
		d, err := detector.NewDNNDetector(dc)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", config.ErrConfiguration, err)
		}
		return d, nil
	case config.BackendService:
		d, err := detector.NewServiceDetector(dc)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", config.ErrConfiguration, err)
		}
		return d, nil
	case config.BackendNone:
		log.Warn().Msg("no detector configured, the lot will always look empty")
		return nil, nil
	}
	return nil, fmt.Errorf("%w: unknown detect.backend %q", config.ErrConfiguration, c.Backend)
}

// newNotifier fans out to every configured endpoint. The MQTT client, when one is
// connected, is returned so the caller can disconnect it.
func newNotifier(c config.NotifyConfig) (notify.Notifier, mqtt.Client, error) {
	var (
		targets notify.Multi
		client  mqtt.Client
	)

	if c.Webhook.URL != "" {
		targets = append(targets, notify.NewWebhook(c.Webhook.URL, &http.Client{Timeout: c.Timeout}))
	}

	if c.Command.Path != "" || c.Command.PluginsDir != "" {
		cmd, err := notify.NewCommand(c.Command.Path, c.Command.PluginsDir, c.Timeout)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %w", config.ErrConfiguration, err)
		}
		targets = append(targets, cmd)
	}

	if c.MQTT.Broker != "" {
		m, cl, err := notify.DialMQTT(notify.MQTTOptions{
			Broker:   c.MQTT.Broker,
			Topic:    c.MQTT.Topic,
			ClientID: c.MQTT.ClientID,
			QoS:      c.MQTT.QoS,
			Username: c.MQTT.Username,
			Password: c.MQTT.Password,
		}, c.Timeout)
		if err != nil {
			return nil, nil, fmt.Errorf("connect mqtt %s: %w", c.MQTT.Broker, err)
		}
		targets = append(targets, m)
		client = cl
	}

	if len(targets) == 0 {
		return nil, nil, fmt.Errorf("%w: no notification endpoint configured", config.ErrConfiguration)
	}
	if len(targets) == 1 {
		return targets[0], client, nil
	}
	return targets, client, nil
}
