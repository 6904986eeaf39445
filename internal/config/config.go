// Package config loads and validates the ingest daemon configuration.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the complete ingest daemon configuration.
type Config struct {
	InstanceID string         `yaml:"instance_id"`
	Source     string         `yaml:"source"` // file path, stream URL, or device index
	Playback   PlaybackConfig `yaml:"playback"`
	Detector   DetectorConfig `yaml:"detector"`
	MQTT       MQTTConfig     `yaml:"mqtt"`
}

// PlaybackConfig contains playback settings.
type PlaybackConfig struct {
	Speed      float64 `yaml:"speed"`      // rate multiplier, 1.0 = real time
	Confidence float64 `yaml:"confidence"` // detector confidence threshold
	IoU        float64 `yaml:"iou"`        // detector IoU threshold
	Tracking   bool    `yaml:"tracking"`   // enable object tracking
	// Extras holds consumer-specific settings (counting lines, zone
	// geometry) passed through to the detector untouched.
	Extras map[string]interface{} `yaml:"extras"`
}

// DetectorConfig contains external detector worker settings.
type DetectorConfig struct {
	Enabled bool     `yaml:"enabled"`
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`
}

// MQTTConfig contains MQTT broker settings. An empty broker disables the
// MQTT surface entirely.
type MQTTConfig struct {
	Broker string          `yaml:"broker"`
	Topics MQTTTopics      `yaml:"topics"`
	QoS    map[string]byte `yaml:"qos"`
}

// MQTTTopics contains topic templates.
type MQTTTopics struct {
	Control string `yaml:"control"`
	Events  string `yaml:"events"`
	Health  string `yaml:"health"`
}

// Enabled reports whether the MQTT surface is configured.
func (m MQTTConfig) Enabled() bool {
	return m.Broker != ""
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func Validate(cfg *Config) error {
	if cfg.InstanceID == "" {
		return fmt.Errorf("instance_id is required")
	}
	if cfg.Source == "" {
		return fmt.Errorf("source is required")
	}
	if cfg.Playback.Speed < 0 {
		return fmt.Errorf("playback.speed must not be negative (got %v)", cfg.Playback.Speed)
	}
	if cfg.Detector.Enabled && cfg.Detector.Command == "" {
		return fmt.Errorf("detector.command is required when detector is enabled")
	}
	if cfg.MQTT.Enabled() {
		if cfg.MQTT.Topics.Events == "" {
			return fmt.Errorf("mqtt.topics.events is required when mqtt is configured")
		}
		if cfg.MQTT.Topics.Control == "" {
			return fmt.Errorf("mqtt.topics.control is required when mqtt is configured")
		}
	}
	return nil
}
