package videoingest

import (
	"github.com/e7canasta/video-ingest/internal/capture"
	"github.com/e7canasta/video-ingest/internal/playback"
)

// Public API surface. The implementation lives under internal/; this file
// re-exports the types callers interact with so import paths stay stable
// while the internals move.

// Source classification.
type (
	// SourceKind classifies a playback source.
	SourceKind = capture.SourceKind
	// SourceDescriptor identifies a playback source.
	SourceDescriptor = capture.SourceDescriptor
)

const (
	KindLocalFile  = capture.KindLocalFile
	KindLiveStream = capture.KindLiveStream
	KindDevice     = capture.KindDevice
)

// Classify derives a SourceDescriptor from a source identifier (string
// path, stream URL, decimal device index, or int device index). It is
// deterministic and performs no I/O.
func Classify(source interface{}) SourceDescriptor {
	return capture.Classify(source)
}

// Capture negotiation.
type (
	// Frame is one decoded frame; the holder owns its Mat.
	Frame = capture.Frame
	// BackendID names a capture strategy.
	BackendID = capture.BackendID
	// Backend is a backend identity plus open-time tunables.
	Backend = capture.Backend
	// PlanConfig holds the negotiation timeout knobs.
	PlanConfig = capture.PlanConfig
	// Session is a negotiated capture stream plus probed metadata.
	Session = capture.Session
	// Handle is an open capture stream.
	Handle = capture.Handle
	// Opener opens a Handle for one backend candidate.
	Opener = capture.Opener
)

const (
	BackendDefault   = capture.BackendDefault
	BackendFFmpeg    = capture.BackendFFmpeg
	BackendGStreamer = capture.BackendGStreamer
	BackendAny       = capture.BackendAny

	// TotalFramesUnknown marks sources with no reported length.
	TotalFramesUnknown = capture.TotalFramesUnknown
)

// ErrCannotOpen is returned when no backend candidate could open a source.
var ErrCannotOpen = capture.ErrCannotOpen

// Negotiate walks the backend plan for a source and returns a session for
// the first candidate that opens and produces a frame. Most callers go
// through Controller.Start instead; Negotiate is exported for tools that
// manage their own read loop.
func Negotiate(open Opener, desc SourceDescriptor, cfg PlanConfig) (*Session, error) {
	return capture.Negotiate(open, desc, cfg)
}

// OpenCV is the production capture opener.
var OpenCV Opener = capture.OpenCV

// Playback.
type (
	// Event is one playback notification.
	Event = playback.Event
	// EventKind discriminates playback events.
	EventKind = playback.EventKind
	// PlaybackConfig holds the per-run playback knobs.
	PlaybackConfig = playback.Config
	// PlaybackStats is a snapshot of run counters.
	PlaybackStats = playback.Stats
	// FrameConsumer processes each decoded frame.
	FrameConsumer = playback.Consumer
	// ConsumerFunc adapts a function to FrameConsumer.
	ConsumerFunc = playback.ConsumerFunc
	// DetectionParams tunes the attached consumer.
	DetectionParams = playback.DetectionParams
	// Counts maps object class names to per-frame counts.
	Counts = playback.Counts
)

const (
	EventFrameReady       = playback.EventFrameReady
	EventProgress         = playback.EventProgress
	EventProgressComplete = playback.EventProgressComplete
	EventError            = playback.EventError
	EventFinished         = playback.EventFinished

	// ProgressIndeterminate is reported for sources with no known length.
	ProgressIndeterminate = playback.ProgressIndeterminate
)

// Terminal run failures.
var (
	ErrLostConnection = playback.ErrLostConnection
	ErrEndOfFile      = playback.ErrEndOfFile
	ErrProcessing     = playback.ErrProcessing
)

// DefaultPlaybackConfig returns the stock playback configuration: real
// time speed, 30-failure ceiling, 100ms retry backoff.
func DefaultPlaybackConfig() PlaybackConfig {
	return playback.DefaultConfig()
}
