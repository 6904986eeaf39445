package capture

import (
	"errors"
	"fmt"
	"log/slog"
)

// ErrCannotOpen is returned when every backend candidate in the plan failed
// to produce a readable stream. It is fatal for the run; callers must not
// retry negotiation.
var ErrCannotOpen = errors.New("video-ingest: cannot open source")

// TotalFramesUnknown is the TotalFrames sentinel for sources that do not
// report a length (live streams, devices, broken containers).
const TotalFramesUnknown = -1

// fallbackFPS is assumed when a source reports no usable frame rate.
const fallbackFPS = 30.0

// Session is a successfully negotiated capture stream plus the probed
// metadata the scheduler needs. The session owns the handle; Release frees
// it. A Session is owned by a single goroutine.
type Session struct {
	Backend     Backend
	Handle      Handle
	FPS         float64
	TotalFrames int
	Width       int
	Height      int

	released bool
}

// Release frees the underlying capture handle. Idempotent.
func (s *Session) Release() error {
	if s == nil || s.released {
		return nil
	}
	s.released = true
	return s.Handle.Release()
}

// Negotiate walks the backend plan for a source and returns a Session for
// the first candidate that opens and passes a one-frame read probe. Probe
// frames are discarded. A candidate that opens but cannot produce a frame
// is released before the next one is tried, so at most one handle is live
// at any time. Non-live sources are rewound to frame zero so playback
// starts at the beginning despite the consumed probe frame.
func Negotiate(open Opener, desc SourceDescriptor, cfg PlanConfig) (*Session, error) {
	plan := Plan(desc, cfg)

	for _, b := range plan {
		h, err := open(desc, b)
		if err != nil {
			slog.Debug("capture: backend open failed",
				"backend", b.ID.String(),
				"source", desc.URI,
				"error", err)
			continue
		}

		frame, ok := h.Read()
		if !ok {
			slog.Debug("capture: backend probe failed",
				"backend", b.ID.String(),
				"source", desc.URI)
			if rerr := h.Release(); rerr != nil {
				slog.Warn("capture: release after failed probe",
					"backend", b.ID.String(),
					"error", rerr)
			}
			continue
		}
		width, height := frame.Width, frame.Height
		frame.Close()

		if !desc.IsLive() {
			h.Rewind()
		}

		sess := &Session{
			Backend:     b,
			Handle:      h,
			FPS:         h.FPS(),
			TotalFrames: h.FrameCount(),
			Width:       width,
			Height:      height,
		}
		if sess.FPS <= 0 {
			sess.FPS = fallbackFPS
		}
		if desc.IsLive() || sess.TotalFrames <= 0 {
			sess.TotalFrames = TotalFramesUnknown
		}

		slog.Info("capture: source opened",
			"backend", b.ID.String(),
			"source", desc.URI,
			"kind", desc.Kind.String(),
			"fps", sess.FPS,
			"total_frames", sess.TotalFrames,
			"width", width,
			"height", height)
		return sess, nil
	}

	return nil, fmt.Errorf("%w: %q (%d backends tried)", ErrCannotOpen, desc.URI, len(plan))
}
