// Package config loads and validates the lotwatch YAML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ayusman/lotwatch/internal/roi"
	"gopkg.in/yaml.v3"
)

// ErrConfiguration marks a configuration that cannot be used to start the monitor.
var ErrConfiguration = errors.New("configuration error")

// Mode selects which debouncer drives events.
type Mode string

const (
	ModePresence Mode = "presence"
	ModeCount    Mode = "count"
)

// Detection backends.
const (
	BackendDNN     = "dnn"
	BackendService = "service"
	BackendNone    = "none"
)

// Config is the complete lotwatch configuration.
type Config struct {
	Mode      Mode            `yaml:"mode"`
	Camera    CameraConfig    `yaml:"camera"`
	ROI       roi.Region      `yaml:"roi"`
	Detect    DetectConfig    `yaml:"detect"`
	Gate      GateConfig      `yaml:"gate"`
	Presence  PresenceConfig  `yaml:"presence"`
	Count     CountConfig     `yaml:"count"`
	Snapshots SnapshotsConfig `yaml:"snapshots"`
	Notify    NotifyConfig    `yaml:"notify"`
	Server    ServerConfig    `yaml:"server"`
	Store     StoreConfig     `yaml:"store"`
	Log       LogConfig       `yaml:"log"`
}

// CameraConfig describes the frame source.
type CameraConfig struct {
	Source string `yaml:"source"` // device index, file path or stream URL
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
	FPS    int    `yaml:"fps"`
}

// DetectConfig controls the detector and its scheduling.
type DetectConfig struct {
	Backend         string        `yaml:"backend"`
	ModelPath       string        `yaml:"model_path"`
	InputSize       int           `yaml:"input_size"`
	MinConfidence   float64       `yaml:"min_confidence"`
	NMSThreshold    float64       `yaml:"nms_threshold"`
	EveryNFrames    int           `yaml:"every_n_frames"`
	Timeout         time.Duration `yaml:"timeout"`
	MotionGate      bool          `yaml:"motion_gate"`
	MotionThreshold float64       `yaml:"motion_threshold"` // percent of ROI pixels
	Classes         []int         `yaml:"classes"`
}

// GateConfig configures the ROI overlap gate.
type GateConfig struct {
	OverlapThreshold float64 `yaml:"overlap_threshold"`
}

// PresenceConfig holds presence debouncer thresholds, in raw frames.
type PresenceConfig struct {
	FramesRequiredInside  int `yaml:"frames_required_inside"`
	FramesRequiredOutside int `yaml:"frames_required_outside"`
}

// CountConfig holds count debouncer settings.
type CountConfig struct {
	StabilityFrames int  `yaml:"stability_frames"`
	GateROI         bool `yaml:"gate_roi"` // count only detections relevant to the ROI
}

// SnapshotsConfig controls where event snapshots are written.
type SnapshotsConfig struct {
	Dir      string `yaml:"dir"`
	Annotate bool   `yaml:"annotate"`
}

// NotifyConfig configures notification delivery.
type NotifyConfig struct {
	Timeout   time.Duration `yaml:"timeout"`
	QueueSize int           `yaml:"queue_size"`
	Webhook   WebhookConfig `yaml:"webhook"`
	MQTT      MQTTConfig    `yaml:"mqtt"`
	Command   CommandConfig `yaml:"command"`
}

// WebhookConfig is a Discord-style webhook endpoint.
type WebhookConfig struct {
	URL string `yaml:"url"`
}

// MQTTConfig contains MQTT broker settings.
type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	Topic    string `yaml:"topic"`
	ClientID string `yaml:"client_id"`
	QoS      byte   `yaml:"qos"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// CommandConfig names external hooks: a single executable and/or a directory of hooks
// with plugin.json manifests.
type CommandConfig struct {
	Path       string `yaml:"path"`
	PluginsDir string `yaml:"plugins_dir"`
}

// ServerConfig configures the dashboard.
type ServerConfig struct {
	Addr      string `yaml:"addr"`
	StaticDir string `yaml:"static_dir"`
	Stream    bool   `yaml:"stream"`
}

// StoreConfig configures the event database.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Default returns a configuration with every field set except the notification endpoints.
func Default() *Config {
	return &Config{
		Mode: ModePresence,
		Camera: CameraConfig{
			Source: "0",
			Width:  640,
			Height: 480,
			FPS:    15,
		},
		ROI: roi.FullFrame(640, 480),
		Detect: DetectConfig{
			Backend:         BackendDNN,
			ModelPath:       "yolov8n.onnx",
			InputSize:       640,
			MinConfidence:   0.25,
			NMSThreshold:    0.45,
			EveryNFrames:    3,
			Timeout:         2 * time.Second,
			MotionThreshold: 1.0,
			Classes:         []int{2, 5, 7},
		},
		Gate: GateConfig{OverlapThreshold: roi.DefaultThreshold},
		Presence: PresenceConfig{
			FramesRequiredInside:  1,
			FramesRequiredOutside: 1,
		},
		Count: CountConfig{StabilityFrames: 5},
		Snapshots: SnapshotsConfig{
			Dir:      "data/snapshots",
			Annotate: true,
		},
		Notify: NotifyConfig{
			Timeout:   10 * time.Second,
			QueueSize: 32,
			MQTT: MQTTConfig{
				Topic:    "lotwatch/events",
				ClientID: "lotwatch",
			},
		},
		Server: ServerConfig{
			Addr:   ":8080",
			Stream: true,
		},
		Store: StoreConfig{Path: "data/lotwatch.db"},
		Log:   LogConfig{Level: "info"},
	}
}

// Load reads a YAML file on top of Default and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read config file: %w", ErrConfiguration, err)
	}
	return Parse(data)
}

// Parse decodes YAML on top of Default and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: parse config: %w", ErrConfiguration, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// HasNotifier reports whether at least one notification endpoint is configured.
func (c *Config) HasNotifier() bool {
	return c.Notify.Webhook.URL != "" || c.Notify.MQTT.Broker != "" || c.Notify.Command.Path != "" || c.Notify.Command.PluginsDir != ""
}

// Validate checks the configuration. Every returned error wraps ErrConfiguration.
func (c *Config) Validate() error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	switch c.Mode {
	case ModePresence, ModeCount:
	default:
		fail("mode must be %q or %q, got %q", ModePresence, ModeCount, c.Mode)
	}

	if c.Camera.FPS < 1 {
		fail("camera.fps must be at least 1")
	}
	if err := c.ROI.Validate(); err != nil {
		fail("roi: %w", err)
	}

	switch c.Detect.Backend {
	case BackendDNN, BackendService:
		if c.Detect.ModelPath == "" {
			fail("detect.model_path is required for backend %q", c.Detect.Backend)
		}
	case BackendNone:
	default:
		fail("detect.backend must be dnn, service or none, got %q", c.Detect.Backend)
	}
	if c.Detect.EveryNFrames < 1 {
		fail("detect.every_n_frames must be at least 1")
	}
	if c.Detect.Timeout <= 0 {
		fail("detect.timeout must be positive")
	}
	if c.Detect.MinConfidence < 0 || c.Detect.MinConfidence > 1 {
		fail("detect.min_confidence must be within [0,1]")
	}

	if t := c.Gate.OverlapThreshold; t < 0 || t >= 1 {
		fail("gate.overlap_threshold must be within [0,1), got %v", t)
	}

	if c.Presence.FramesRequiredInside < 1 || c.Presence.FramesRequiredOutside < 1 {
		fail("presence thresholds must be at least 1")
	}
	if c.Count.StabilityFrames < 1 {
		fail("count.stability_frames must be at least 1")
	}

	if !c.HasNotifier() {
		fail("no notification endpoint configured (notify.webhook.url, notify.mqtt.broker, notify.command.path or notify.command.plugins_dir)")
	}
	if c.Notify.MQTT.Broker != "" && c.Notify.MQTT.Topic == "" {
		fail("notify.mqtt.topic is required when a broker is set")
	}
	if c.Notify.MQTT.QoS > 2 {
		fail("notify.mqtt.qos must be 0, 1 or 2")
	}
	if c.Notify.Timeout <= 0 {
		fail("notify.timeout must be positive")
	}
	if c.Notify.QueueSize < 1 {
		fail("notify.queue_size must be at least 1")
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrConfiguration, errors.Join(errs...))
}
