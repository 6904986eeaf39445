package control

import (
	"errors"
	"testing"

	"github.com/e7canasta/video-ingest/internal/config"
)

func testHandler(callbacks CommandCallbacks) *Handler {
	cfg := &config.Config{
		InstanceID: "node_test",
		Source:     "/data/default.mp4",
		MQTT: config.MQTTConfig{
			Broker: "localhost:1883",
			Topics: config.MQTTTopics{
				Control: "ingest/control/node_test",
				Events:  "ingest/events/node_test",
			},
		},
	}
	return NewHandler(cfg, nil, callbacks)
}

func TestHandleCommandStart(t *testing.T) {
	var gotSource string
	var gotSpeed float64
	h := testHandler(CommandCallbacks{
		OnStart: func(source string, speed float64) error {
			gotSource, gotSpeed = source, speed
			return nil
		},
	})

	resp := h.handleCommand(Command{
		Command: "start",
		Params:  map[string]interface{}{"source": "rtsp://cam/1", "speed": 2.0},
	})
	if resp.Status != "success" {
		t.Fatalf("status = %q (%s), want success", resp.Status, resp.Error)
	}
	if gotSource != "rtsp://cam/1" || gotSpeed != 2.0 {
		t.Errorf("OnStart(%q, %v), want (rtsp://cam/1, 2.0)", gotSource, gotSpeed)
	}
}

func TestHandleCommandStartDefaultsToConfiguredSource(t *testing.T) {
	var gotSource string
	h := testHandler(CommandCallbacks{
		OnStart: func(source string, speed float64) error {
			gotSource = source
			return nil
		},
	})

	resp := h.handleCommand(Command{Command: "start"})
	if resp.Status != "success" {
		t.Fatalf("status = %q, want success", resp.Status)
	}
	if gotSource != "/data/default.mp4" {
		t.Errorf("source = %q, want configured default", gotSource)
	}
}

func TestHandleCommandErrors(t *testing.T) {
	tests := []struct {
		name      string
		callbacks CommandCallbacks
		cmd       Command
	}{
		{"unknown command", CommandCallbacks{}, Command{Command: "explode"}},
		{"unimplemented start", CommandCallbacks{}, Command{Command: "start"}},
		{"callback failure", CommandCallbacks{
			OnStop: func() error { return errors.New("no active run") },
		}, Command{Command: "stop"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := testHandler(tt.callbacks)
			resp := h.handleCommand(tt.cmd)
			if resp.Status != "error" {
				t.Errorf("status = %q, want error", resp.Status)
			}
			if resp.Error == "" {
				t.Error("error message is empty")
			}
			if resp.CommandAck != tt.cmd.Command {
				t.Errorf("command_ack = %q, want %q", resp.CommandAck, tt.cmd.Command)
			}
		})
	}
}

func TestHandleCommandPauseResume(t *testing.T) {
	h := testHandler(CommandCallbacks{
		OnPauseResume: func() (string, error) { return "paused", nil },
	})
	resp := h.handleCommand(Command{Command: "pause_resume"})
	if resp.Status != "success" {
		t.Fatalf("status = %q, want success", resp.Status)
	}
	if resp.Data["state"] != "paused" {
		t.Errorf("data.state = %v, want paused", resp.Data["state"])
	}
}

type stubMessage struct {
	payload []byte
}

func (m stubMessage) Duplicate() bool   { return false }
func (m stubMessage) Qos() byte         { return 0 }
func (m stubMessage) Retained() bool    { return false }
func (m stubMessage) Topic() string     { return "ingest/control/node_test" }
func (m stubMessage) MessageID() uint16 { return 0 }
func (m stubMessage) Payload() []byte   { return m.payload }
func (m stubMessage) Ack()              {}

func TestMessageHandlerAfterStop(t *testing.T) {
	h := testHandler(CommandCallbacks{})
	msg := stubMessage{payload: []byte(`{"command":"get_status"}`)}

	h.messageHandler(nil, msg)
	select {
	case cmd := <-h.commands:
		if cmd.Command != "get_status" {
			t.Errorf("queued command = %q, want get_status", cmd.Command)
		}
	default:
		t.Fatal("command not queued before Stop")
	}

	// A broker callback may still fire after Stop; it must be ignored
	// rather than sent on the channel.
	if err := h.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	h.messageHandler(nil, msg)
	select {
	case cmd := <-h.commands:
		t.Errorf("command %q queued after Stop", cmd.Command)
	default:
	}
}

func TestHandleCommandGetStatus(t *testing.T) {
	h := testHandler(CommandCallbacks{
		OnGetStatus: func() map[string]interface{} {
			return map[string]interface{}{"state": "running", "frames": 42}
		},
	})
	resp := h.handleCommand(Command{Command: "get_status"})
	if resp.Status != "success" {
		t.Fatalf("status = %q, want success", resp.Status)
	}
	if resp.Data["frames"] != 42 {
		t.Errorf("data.frames = %v, want 42", resp.Data["frames"])
	}
}
