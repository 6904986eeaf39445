package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
instance_id: node_001
source: rtsp://cam.local/stream1
playback:
  speed: 2.0
  confidence: 0.3
  iou: 0.5
  tracking: true
  extras:
    counting_line_y: 240
detector:
  enabled: true
  command: models/run_worker.sh
  args: ["--model", "yolo.onnx"]
mqtt:
  broker: localhost:1883
  topics:
    control: ingest/control/node_001
    events: ingest/events/node_001
    health: ingest/health/node_001
  qos:
    error: 1
    finished: 1
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.InstanceID != "node_001" {
		t.Errorf("InstanceID = %q, want node_001", cfg.InstanceID)
	}
	if cfg.Playback.Speed != 2.0 {
		t.Errorf("Playback.Speed = %v, want 2.0", cfg.Playback.Speed)
	}
	if cfg.Playback.Extras["counting_line_y"] != 240 {
		t.Errorf("Playback.Extras[counting_line_y] = %v, want 240", cfg.Playback.Extras["counting_line_y"])
	}
	if !cfg.Detector.Enabled || cfg.Detector.Command != "models/run_worker.sh" {
		t.Errorf("Detector = %+v", cfg.Detector)
	}
	if !cfg.MQTT.Enabled() {
		t.Error("MQTT.Enabled() = false, want true")
	}
	if cfg.MQTT.QoS["error"] != 1 {
		t.Errorf("QoS[error] = %d, want 1", cfg.MQTT.QoS["error"])
	}
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			InstanceID: "node_001",
			Source:     "/data/clip.mp4",
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"minimal valid", func(*Config) {}, false},
		{"missing instance id", func(c *Config) { c.InstanceID = "" }, true},
		{"missing source", func(c *Config) { c.Source = "" }, true},
		{"negative speed", func(c *Config) { c.Playback.Speed = -1 }, true},
		{"detector enabled without command", func(c *Config) { c.Detector.Enabled = true }, true},
		{"mqtt without events topic", func(c *Config) {
			c.MQTT.Broker = "localhost:1883"
			c.MQTT.Topics.Control = "ctl"
		}, true},
		{"mqtt fully configured", func(c *Config) {
			c.MQTT.Broker = "localhost:1883"
			c.MQTT.Topics.Control = "ctl"
			c.MQTT.Topics.Events = "ev"
		}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			if err := Validate(&cfg); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Error("Load() on missing file returned nil error")
	}
}
