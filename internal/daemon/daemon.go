// Package daemon wires the ingest service: configuration, playback
// controller, detector worker, MQTT emitter and control plane.
package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	videoingest "github.com/e7canasta/video-ingest"
	"github.com/e7canasta/video-ingest/consumer"
	"github.com/e7canasta/video-ingest/internal/config"
	"github.com/e7canasta/video-ingest/internal/control"
	"github.com/e7canasta/video-ingest/internal/emitter"
)

const healthInterval = 30 * time.Second

// Daemon is the assembled ingest service.
type Daemon struct {
	cfg      *config.Config
	ctrl     *videoingest.Controller
	detector *consumer.DetectorProcess
	emitter  *emitter.MQTTEmitter
	control  *control.Handler
}

// New loads the configuration and assembles the service. Nothing is
// connected or started yet.
func New(configPath string) (*Daemon, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("daemon: %w", err)
	}

	d := &Daemon{cfg: cfg}

	opts := []videoingest.Option{}
	if cfg.Detector.Enabled {
		det, err := consumer.NewDetectorProcess(consumer.DetectorConfig{
			Command: cfg.Detector.Command,
			Args:    cfg.Detector.Args,
		})
		if err != nil {
			return nil, fmt.Errorf("daemon: %w", err)
		}
		d.detector = det
		opts = append(opts, videoingest.WithConsumer(det))
	} else {
		opts = append(opts, videoingest.WithConsumer(consumer.Passthrough{}))
	}
	d.ctrl = videoingest.NewController(opts...)

	if cfg.MQTT.Enabled() {
		d.emitter = emitter.NewMQTTEmitter(cfg)
	}

	slog.Info("daemon: service assembled",
		"instance_id", cfg.InstanceID,
		"source", cfg.Source,
		"detector", cfg.Detector.Enabled,
		"mqtt", cfg.MQTT.Enabled())
	return d, nil
}

// Run starts the service and blocks until the context is cancelled. The
// configured source is started immediately; afterwards the control plane
// can stop it and start others.
func (d *Daemon) Run(ctx context.Context) error {
	if d.detector != nil {
		if err := d.detector.Start(); err != nil {
			return fmt.Errorf("daemon: %w", err)
		}
	}

	if d.emitter != nil {
		if err := d.emitter.Connect(); err != nil {
			return fmt.Errorf("daemon: %w", err)
		}
		d.control = control.NewHandler(d.cfg, d.emitter.Client, d.callbacks())
		if err := d.control.Start(ctx); err != nil {
			return fmt.Errorf("daemon: %w", err)
		}
	}

	if err := d.startPlayback(d.cfg.Source, d.cfg.Playback.Speed); err != nil {
		return fmt.Errorf("daemon: %w", err)
	}

	health := time.NewTicker(healthInterval)
	defer health.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-health.C:
			d.publishHealth()

		case ev := <-d.ctrl.Events():
			if d.emitter != nil {
				if err := d.emitter.Publish(ev); err != nil {
					slog.Debug("daemon: event publish failed",
						"kind", ev.Kind.String(),
						"error", err)
				}
			}
			if ev.Kind == videoingest.EventFrameReady {
				ev.Frame.Close()
			}
			if ev.Kind == videoingest.EventError {
				slog.Error("daemon: run ended with error", "run_id", ev.RunID, "error", ev.Err)
			}
			if ev.Kind == videoingest.EventFinished {
				slog.Info("daemon: run finished", "run_id", ev.RunID)
			}
		}
	}
}

// startPlayback launches a run with the configured detection parameters.
func (d *Daemon) startPlayback(source string, speed float64) error {
	cfg := videoingest.DefaultPlaybackConfig()
	if speed > 0 {
		cfg.Speed = speed
	}
	cfg.Params = videoingest.DetectionParams{
		Confidence: d.cfg.Playback.Confidence,
		IoU:        d.cfg.Playback.IoU,
		Tracking:   d.cfg.Playback.Tracking,
		Extras:     d.cfg.Playback.Extras,
	}
	return d.ctrl.Start(source, cfg)
}

// callbacks maps control plane commands onto the controller.
func (d *Daemon) callbacks() control.CommandCallbacks {
	return control.CommandCallbacks{
		OnStart: func(source string, speed float64) error {
			return d.startPlayback(source, speed)
		},
		OnPauseResume: func() (string, error) {
			state, err := d.ctrl.PauseResume()
			return state.String(), err
		},
		OnStop: func() error {
			d.ctrl.Stop()
			return nil
		},
		OnReset: func() error {
			return d.ctrl.Reset()
		},
		OnGetStatus: func() map[string]interface{} {
			stats := d.ctrl.Stats()
			return map[string]interface{}{
				"instance_id":      d.cfg.InstanceID,
				"state":            d.ctrl.State().String(),
				"frames_delivered": stats.FramesDelivered,
				"frames_skipped":   stats.FramesSkipped,
				"read_failures":    stats.ReadFailures,
				"dropped_events":   stats.DroppedEvents,
				"real_fps":         stats.RealFPS,
			}
		},
	}
}

func (d *Daemon) publishHealth() {
	if d.emitter == nil {
		return
	}
	stats := d.ctrl.Stats()
	payload, err := json.Marshal(map[string]interface{}{
		"instance_id":      d.cfg.InstanceID,
		"state":            d.ctrl.State().String(),
		"frames_delivered": stats.FramesDelivered,
		"real_fps":         stats.RealFPS,
		"timestamp":        time.Now().Format(time.RFC3339Nano),
	})
	if err != nil {
		return
	}
	if err := d.emitter.PublishHealth(payload); err != nil {
		slog.Debug("daemon: health publish failed", "error", err)
	}
}

// Shutdown stops the playback run and tears down the MQTT surface and
// detector worker.
func (d *Daemon) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		defer close(done)
		d.ctrl.Stop()
		if d.control != nil {
			d.control.Stop()
		}
		if d.detector != nil {
			d.detector.Stop()
		}
		if d.emitter != nil {
			d.emitter.Disconnect()
		}
	}()

	select {
	case <-done:
		slog.Info("daemon: shutdown complete")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("daemon: shutdown timed out: %w", ctx.Err())
	}
}
