package playback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/e7canasta/video-ingest/internal/capture"
)

// Outcome is how a scheduler run ended.
type Outcome int

const (
	// OutcomeStopped means the run was cancelled cooperatively.
	OutcomeStopped Outcome = iota
	// OutcomeErrored means the run ended with a terminal error event.
	OutcomeErrored
	// OutcomeFinished means the run ended with a terminal finished event.
	OutcomeFinished
)

// String returns a human-readable string representation of the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeStopped:
		return "stopped"
	case OutcomeErrored:
		return "errored"
	case OutcomeFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// Stats is a point-in-time snapshot of run statistics.
type Stats struct {
	FramesDelivered  int64
	FramesSkipped    int64
	ReadFailures     int64
	ConsumerFailures int64
	RealFPS          float64
	Uptime           time.Duration
}

// Options configures one scheduler run. Session ownership transfers to the
// scheduler; Run releases it on every exit path.
type Options struct {
	Session  *capture.Session
	Source   capture.SourceDescriptor
	Config   Config
	Consumer Consumer
	Sink     Sink
	// Paused is polled each iteration; while set the loop idles without
	// reading.
	Paused *atomic.Bool
	RunID  string
}

// Scheduler drives one playback run: read, process, emit, pace. It owns
// the capture session for the duration of Run and is used by exactly one
// goroutine; Stats is the only method safe to call concurrently.
type Scheduler struct {
	opts Options
	cfg  Config

	framesDelivered  atomic.Int64
	framesSkipped    atomic.Int64
	readFailures     atomic.Int64
	consumerFailures atomic.Int64
	startedAt        time.Time
}

// NewScheduler validates options and returns a scheduler ready to Run.
func NewScheduler(opts Options) (*Scheduler, error) {
	if opts.Session == nil {
		return nil, errors.New("playback: nil session")
	}
	if opts.Sink == nil {
		return nil, errors.New("playback: nil sink")
	}
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}
	return &Scheduler{opts: opts, cfg: opts.Config.Normalized()}, nil
}

// Stats returns a snapshot of the run counters.
func (s *Scheduler) Stats() Stats {
	st := Stats{
		FramesDelivered:  s.framesDelivered.Load(),
		FramesSkipped:    s.framesSkipped.Load(),
		ReadFailures:     s.readFailures.Load(),
		ConsumerFailures: s.consumerFailures.Load(),
	}
	if !s.startedAt.IsZero() {
		st.Uptime = time.Since(s.startedAt)
		if secs := st.Uptime.Seconds(); secs > 0 {
			st.RealFPS = float64(st.FramesDelivered) / secs
		}
	}
	return st
}

// Run executes the playback loop until cancellation, a terminal stream
// failure, or the natural end of a finite source. The session is released
// before the single terminal event is emitted, so a receiver of that event
// observes no live handle.
func (s *Scheduler) Run(ctx context.Context) Outcome {
	s.startedAt = time.Now()
	sess := s.opts.Session
	desc := s.opts.Source
	cfg := s.cfg

	slog.Info("playback: run started",
		"run_id", s.opts.RunID,
		"source", desc.URI,
		"kind", desc.Kind.String(),
		"backend", sess.Backend.ID.String(),
		"speed", cfg.Speed,
		"fps", sess.FPS,
		"total_frames", sess.TotalFrames)

	var (
		frameIndex       int
		skipResidual     float64
		failures         int
		progressComplete bool
	)

	finish := func(outcome Outcome, err error) Outcome {
		if rerr := sess.Release(); rerr != nil {
			slog.Warn("playback: session release", "run_id", s.opts.RunID, "error", rerr)
		}
		switch outcome {
		case OutcomeErrored:
			s.emitTerminal(Event{Kind: EventError, Err: err, FrameIndex: frameIndex})
		case OutcomeFinished:
			s.emitTerminal(Event{Kind: EventFinished, FrameIndex: frameIndex})
		}
		st := s.Stats()
		slog.Info("playback: run ended",
			"run_id", s.opts.RunID,
			"outcome", outcome.String(),
			"frames_delivered", st.FramesDelivered,
			"frames_skipped", st.FramesSkipped,
			"read_failures", st.ReadFailures,
			"uptime", st.Uptime.Round(time.Millisecond))
		return outcome
	}

	for {
		if ctx.Err() != nil {
			return finish(OutcomeStopped, nil)
		}

		if s.opts.Paused != nil && s.opts.Paused.Load() {
			if !sleepCtx(ctx, cfg.PauseIdle) {
				return finish(OutcomeStopped, nil)
			}
			continue
		}

		frame, ok := sess.Handle.Read()
		if !ok {
			failures++
			s.readFailures.Add(1)
			if failures >= cfg.FailureCeiling {
				// A finite source that already reported completion ran
				// off its end; that is the normal way files finish.
				if !desc.IsLive() && progressComplete {
					return finish(OutcomeFinished, nil)
				}
				return finish(OutcomeErrored, s.classifyStreamFailure(desc, failures))
			}
			if !sleepCtx(ctx, cfg.RetryBackoff) {
				return finish(OutcomeStopped, nil)
			}
			continue
		}
		failures = 0

		counts := Counts(nil)
		if s.opts.Consumer != nil {
			processed, c, err := s.opts.Consumer.Process(frame, cfg.Params)
			if err != nil {
				s.consumerFailures.Add(1)
				frame.Close()
				slog.Error("playback: frame processing failed",
					"run_id", s.opts.RunID,
					"frame_index", frameIndex,
					"error", err)
				return finish(OutcomeErrored, fmt.Errorf("%w: %v", ErrProcessing, err))
			}
			counts = c
			frame = processed
		}

		// Above real time, files keep pace by discarding frames instead of
		// decoding them. The fractional part of the rate carries over so
		// e.g. speed 1.5 skips every other frame.
		skipped := 0
		if !desc.IsLive() && cfg.Speed > 1.0 {
			skipResidual += cfg.Speed - 1.0
			for skipResidual >= 1.0 {
				if !sess.Handle.Grab() {
					failures++
					s.readFailures.Add(1)
					break
				}
				skipped++
				skipResidual -= 1.0
			}
			s.framesSkipped.Add(int64(skipped))
		}
		frameIndex += 1 + skipped

		s.framesDelivered.Add(1)
		s.opts.Sink.Emit(Event{
			Kind:       EventFrameReady,
			Frame:      frame,
			FrameIndex: frameIndex,
			Counts:     counts,
			RunID:      s.opts.RunID,
			TraceID:    uuid.NewString(),
			Timestamp:  time.Now(),
		})

		progress := ProgressIndeterminate
		if sess.TotalFrames > 0 {
			progress = frameIndex * 100 / sess.TotalFrames
			if progress > 100 {
				progress = 100
			}
		}
		s.opts.Sink.Emit(Event{
			Kind:       EventProgress,
			FrameIndex: frameIndex,
			Progress:   progress,
			RunID:      s.opts.RunID,
			Timestamp:  time.Now(),
		})
		if sess.TotalFrames > 0 && progress >= 100 && !progressComplete {
			progressComplete = true
			s.opts.Sink.Emit(Event{
				Kind:       EventProgressComplete,
				FrameIndex: frameIndex,
				Progress:   100,
				Counts:     counts,
				RunID:      s.opts.RunID,
				Timestamp:  time.Now(),
			})
		}

		if !sleepCtx(ctx, s.pacing(sess, desc)) {
			return finish(OutcomeStopped, nil)
		}
	}
}

// pacing computes the inter-frame sleep. Live sources are throttled from a
// fixed base interval; files follow their container frame rate. Speed
// divides the interval, floored at 1ms so the loop always yields.
func (s *Scheduler) pacing(sess *capture.Session, desc capture.SourceDescriptor) time.Duration {
	base := s.cfg.LiveInterval
	if !desc.IsLive() && sess.FPS > 0 {
		base = time.Duration(float64(time.Second) / sess.FPS)
	}
	d := time.Duration(float64(base) / s.cfg.Speed)
	if d < time.Millisecond {
		d = time.Millisecond
	}
	return d
}

func (s *Scheduler) classifyStreamFailure(desc capture.SourceDescriptor, failures int) error {
	if desc.IsLive() {
		return fmt.Errorf("%w (%d consecutive read failures)", ErrLostConnection, failures)
	}
	return fmt.Errorf("%w (%d consecutive read failures)", ErrEndOfFile, failures)
}

// emitTerminal sends the run's single terminal event.
func (s *Scheduler) emitTerminal(ev Event) {
	ev.RunID = s.opts.RunID
	ev.Timestamp = time.Now()
	s.opts.Sink.Emit(ev)
}

// sleepCtx sleeps for d unless the context is cancelled first. Returns
// false on cancellation.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
