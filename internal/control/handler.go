// Package control subscribes to the MQTT control topic and translates
// commands into playback controller calls.
package control

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/e7canasta/video-ingest/internal/config"
)

// Command represents a control plane command.
type Command struct {
	Command string                 `json:"command"`
	Params  map[string]interface{} `json:"params,omitempty"`
}

// Response represents a command response.
type Response struct {
	CommandAck string                 `json:"command_ack"`
	Status     string                 `json:"status"`
	Data       map[string]interface{} `json:"data,omitempty"`
	Error      string                 `json:"error,omitempty"`
	Timestamp  string                 `json:"timestamp"`
}

// CommandCallbacks contains callback functions for commands. A nil callback
// rejects its command as unimplemented.
type CommandCallbacks struct {
	// OnStart begins playback of a source. Speed 0 means the configured
	// default.
	OnStart func(source string, speed float64) error
	// OnPauseResume toggles pause and returns the resulting state name.
	OnPauseResume func() (string, error)
	OnStop        func() error
	OnReset       func() error
	OnGetStatus   func() map[string]interface{}
}

// Handler handles control plane commands.
type Handler struct {
	cfg       *config.Config
	client    mqtt.Client
	commands  chan Command
	callbacks CommandCallbacks
	closed    atomic.Bool
}

// NewHandler creates a new control plane handler.
func NewHandler(cfg *config.Config, client mqtt.Client, callbacks CommandCallbacks) *Handler {
	return &Handler{
		cfg:       cfg,
		client:    client,
		commands:  make(chan Command, 10),
		callbacks: callbacks,
	}
}

// Start subscribes to the control topic and begins processing commands.
func (h *Handler) Start(ctx context.Context) error {
	topic := h.cfg.MQTT.Topics.Control
	qos := h.qos()

	slog.Info("control: subscribing to control plane", "topic", topic, "qos", qos)

	token := h.client.Subscribe(topic, qos, h.messageHandler)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("control plane subscription timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("control plane subscription failed: %w", err)
	}

	slog.Info("control: handler started")

	go h.processCommands(ctx)

	return nil
}

// Stop unsubscribes and stops accepting new commands. The command channel
// stays open so a broker callback still in flight cannot panic on send;
// the processing goroutine drains when the Start context is cancelled.
func (h *Handler) Stop() error {
	h.closed.Store(true)

	topic := h.cfg.MQTT.Topics.Control
	if h.client != nil && h.client.IsConnected() {
		token := h.client.Unsubscribe(topic)
		token.Wait()
	}

	slog.Info("control: handler stopped")
	return nil
}

func (h *Handler) qos() byte {
	if q, ok := h.cfg.MQTT.QoS["control"]; ok {
		return q
	}
	return 0
}

// messageHandler is called when a control message is received.
func (h *Handler) messageHandler(client mqtt.Client, msg mqtt.Message) {
	if h.closed.Load() {
		return
	}

	var cmd Command
	if err := json.Unmarshal(msg.Payload(), &cmd); err != nil {
		slog.Error("control: failed to parse command", "error", err)
		h.sendResponse(Response{
			CommandAck: "unknown",
			Status:     "error",
			Error:      "invalid JSON",
		})
		return
	}

	slog.Info("control: command received", "command", cmd.Command)

	select {
	case h.commands <- cmd:
	default:
		slog.Warn("control: command queue full, dropping command", "command", cmd.Command)
	}
}

func (h *Handler) processCommands(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case cmd, ok := <-h.commands:
			if !ok {
				return
			}
			h.sendResponse(h.handleCommand(cmd))
		}
	}
}

// handleCommand executes a command and builds its response.
func (h *Handler) handleCommand(cmd Command) Response {
	resp := Response{CommandAck: cmd.Command}

	switch cmd.Command {
	case "start":
		if h.callbacks.OnStart == nil {
			resp.Status = "error"
			resp.Error = "start not implemented"
			break
		}
		source, _ := cmd.Params["source"].(string)
		if source == "" {
			source = h.cfg.Source
		}
		speed, _ := cmd.Params["speed"].(float64)
		if err := h.callbacks.OnStart(source, speed); err != nil {
			resp.Status = "error"
			resp.Error = err.Error()
		} else {
			resp.Status = "success"
			resp.Data = map[string]interface{}{"source": source}
		}

	case "pause_resume":
		if h.callbacks.OnPauseResume == nil {
			resp.Status = "error"
			resp.Error = "pause_resume not implemented"
			break
		}
		state, err := h.callbacks.OnPauseResume()
		if err != nil {
			resp.Status = "error"
			resp.Error = err.Error()
		} else {
			resp.Status = "success"
			resp.Data = map[string]interface{}{"state": state}
		}

	case "stop":
		if h.callbacks.OnStop == nil {
			resp.Status = "error"
			resp.Error = "stop not implemented"
			break
		}
		if err := h.callbacks.OnStop(); err != nil {
			resp.Status = "error"
			resp.Error = err.Error()
		} else {
			resp.Status = "success"
		}

	case "reset":
		if h.callbacks.OnReset == nil {
			resp.Status = "error"
			resp.Error = "reset not implemented"
			break
		}
		if err := h.callbacks.OnReset(); err != nil {
			resp.Status = "error"
			resp.Error = err.Error()
		} else {
			resp.Status = "success"
		}

	case "get_status":
		if h.callbacks.OnGetStatus == nil {
			resp.Status = "error"
			resp.Error = "get_status not implemented"
			break
		}
		resp.Status = "success"
		resp.Data = h.callbacks.OnGetStatus()

	default:
		resp.Status = "error"
		resp.Error = fmt.Sprintf("unknown command: %s", cmd.Command)
	}

	return resp
}

// sendResponse publishes a command response on the control response topic.
func (h *Handler) sendResponse(resp Response) {
	resp.Timestamp = time.Now().Format(time.RFC3339Nano)

	payload, err := json.Marshal(resp)
	if err != nil {
		slog.Error("control: failed to marshal response", "error", err)
		return
	}

	topic := h.cfg.MQTT.Topics.Control + "/response"
	token := h.client.Publish(topic, h.qos(), false, payload)
	if !token.WaitTimeout(2 * time.Second) {
		slog.Warn("control: response publish timeout", "command", resp.CommandAck)
		return
	}
	if err := token.Error(); err != nil {
		slog.Error("control: response publish failed",
			"command", resp.CommandAck,
			"error", err)
	}
}
