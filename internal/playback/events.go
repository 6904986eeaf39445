// Package playback drives paced frame delivery from a negotiated capture
// session: read, process, emit, sleep, with failure retry and progress
// reporting.
package playback

import (
	"errors"
	"time"

	"github.com/e7canasta/video-ingest/internal/capture"
)

// EventKind discriminates playback events.
type EventKind int

const (
	// EventFrameReady carries a processed frame and its index.
	EventFrameReady EventKind = iota
	// EventProgress carries the integer completion percentage.
	EventProgress
	// EventProgressComplete fires once when a finite source reaches 100%.
	EventProgressComplete
	// EventError is a terminal failure. Exactly one of EventError or
	// EventFinished ends a run, never both.
	EventError
	// EventFinished is the terminal success event.
	EventFinished
)

// String returns a human-readable string representation of the event kind.
func (k EventKind) String() string {
	switch k {
	case EventFrameReady:
		return "frame_ready"
	case EventProgress:
		return "progress"
	case EventProgressComplete:
		return "progress_complete"
	case EventError:
		return "error"
	case EventFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// ProgressIndeterminate is the fixed progress value reported for sources
// with no known length.
const ProgressIndeterminate = 50

// Terminal run failures. Callers branch with errors.Is.
var (
	ErrLostConnection = errors.New("video-ingest: lost connection to live stream")
	ErrEndOfFile      = errors.New("video-ingest: end of video file reached")
	ErrProcessing     = errors.New("video-ingest: frame processing failed")
)

// Event is one playback notification. Frame is set only for
// EventFrameReady; the receiver takes ownership of its Mat and must Close
// it.
type Event struct {
	Kind       EventKind
	Frame      capture.Frame
	FrameIndex int
	Progress   int
	Counts     Counts
	Err        error
	RunID      string
	TraceID    string
	Timestamp  time.Time
}

// Sink receives playback events. Emit must not block; slow receivers see
// dropped frame and progress events, never dropped terminal events.
type Sink interface {
	Emit(Event)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(Event)

// Emit calls f(ev).
func (f SinkFunc) Emit(ev Event) { f(ev) }
