package videoingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/e7canasta/video-ingest/internal/capture"
	"github.com/e7canasta/video-ingest/internal/playback"
)

// State is the controller lifecycle state.
type State int

const (
	// StateIdle means no run has started, or the controller was reset.
	StateIdle State = iota
	// StateRunning means a worker is actively delivering frames.
	StateRunning
	// StatePaused means the worker is idling with its session open.
	StatePaused
	// StateStopped means the last run was cancelled cooperatively.
	StateStopped
	// StateErrored means the last run ended with a terminal error.
	StateErrored
	// StateFinished means the last run completed its source.
	StateFinished
)

// String returns a human-readable string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	case StateStopped:
		return "stopped"
	case StateErrored:
		return "errored"
	case StateFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// Terminal reports whether the state marks a completed run.
func (s State) Terminal() bool {
	return s == StateStopped || s == StateErrored || s == StateFinished
}

var (
	// ErrAlreadyRunning is returned by Start while a run is active.
	ErrAlreadyRunning = errors.New("video-ingest: a run is already active")
	// ErrNotRunning is returned by PauseResume outside an active run.
	ErrNotRunning = errors.New("video-ingest: no active run")
	// ErrNotTerminal is returned by Reset before the run has ended.
	ErrNotTerminal = errors.New("video-ingest: run has not ended")
)

// How long a terminal event waits for channel space before being counted
// as dropped. Frame and progress events never wait.
const terminalEmitTimeout = 5 * time.Second

const defaultEventBuffer = 128

// Stats combines the worker's run counters with the controller's event
// drop accounting.
type Stats struct {
	playback.Stats
	DroppedEvents int64
}

// Option configures a Controller.
type Option func(*Controller)

// WithOpener replaces the OpenCV capture opener. Used by tests and tools
// that feed synthetic sources.
func WithOpener(open capture.Opener) Option {
	return func(c *Controller) { c.opener = open }
}

// WithConsumer attaches a frame consumer invoked for every decoded frame.
func WithConsumer(consumer playback.Consumer) Option {
	return func(c *Controller) { c.consumer = consumer }
}

// WithPlanConfig overrides the backend negotiation timeouts.
func WithPlanConfig(cfg capture.PlanConfig) Option {
	return func(c *Controller) { c.planCfg = cfg }
}

// WithEventBuffer sets the event channel depth.
func WithEventBuffer(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.eventBuffer = n
		}
	}
}

// Controller owns the playback lifecycle: it negotiates a capture session,
// runs the scheduler on a worker goroutine, and exposes events on a
// channel. The worker is the exclusive owner of the session and playback
// state; the pause flag and context cancellation are the only signals that
// cross into it. All methods are safe for concurrent use.
type Controller struct {
	opener      capture.Opener
	planCfg     capture.PlanConfig
	consumer    playback.Consumer
	eventBuffer int

	mu     sync.Mutex
	state  State
	cancel context.CancelFunc
	done   chan struct{}
	sched  *playback.Scheduler
	runID  string

	paused  atomic.Bool
	dropped atomic.Int64
	events  chan playback.Event
}

// NewController returns an idle controller. Without options it opens
// sources through OpenCV and delivers frames unprocessed.
func NewController(opts ...Option) *Controller {
	c := &Controller{
		opener:      capture.OpenCV,
		planCfg:     capture.DefaultPlanConfig(),
		eventBuffer: defaultEventBuffer,
		state:       StateIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.events = make(chan playback.Event, c.eventBuffer)
	return c
}

// Events returns the event stream. The channel is never closed; receivers
// watch for EventError or EventFinished to learn that a run ended. Frames
// received on it are owned by the receiver and must be closed.
func (c *Controller) Events() <-chan playback.Event {
	return c.events
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Stats returns counters for the current or most recent run.
func (c *Controller) Stats() Stats {
	c.mu.Lock()
	sched := c.sched
	c.mu.Unlock()

	st := Stats{DroppedEvents: c.dropped.Load()}
	if sched != nil {
		st.Stats = sched.Stats()
	}
	return st
}

// Start classifies the source, then launches the negotiate-and-play worker.
// It returns immediately; open failures surface as a terminal EventError.
// Starting over a finished run is allowed without an explicit Reset;
// starting while a run is active is not.
func (c *Controller) Start(source interface{}, cfg PlaybackConfig) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateRunning || c.state == StatePaused {
		return fmt.Errorf("%w (state %s)", ErrAlreadyRunning, c.state)
	}

	desc := capture.Classify(source)
	runID := uuid.NewString()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	c.state = StateRunning
	c.cancel = cancel
	c.done = done
	c.runID = runID
	c.sched = nil
	c.paused.Store(false)

	slog.Info("controller: starting run",
		"run_id", runID,
		"source", desc.URI,
		"kind", desc.Kind.String(),
		"speed", cfg.Speed)

	go c.run(ctx, desc, cfg, runID, done)
	return nil
}

func (c *Controller) run(ctx context.Context, desc capture.SourceDescriptor, cfg PlaybackConfig, runID string, done chan struct{}) {
	defer close(done)

	sess, err := capture.Negotiate(c.opener, desc, c.planCfg)
	if err != nil {
		slog.Error("controller: negotiation failed", "run_id", runID, "error", err)
		c.emit(playback.Event{
			Kind:      playback.EventError,
			Err:       err,
			RunID:     runID,
			Timestamp: time.Now(),
		})
		c.setState(StateErrored)
		return
	}

	sched, err := playback.NewScheduler(playback.Options{
		Session:  sess,
		Source:   desc,
		Config:   cfg,
		Consumer: c.consumer,
		Sink:     playback.SinkFunc(c.emit),
		Paused:   &c.paused,
		RunID:    runID,
	})
	if err != nil {
		sess.Release()
		c.emit(playback.Event{
			Kind:      playback.EventError,
			Err:       err,
			RunID:     runID,
			Timestamp: time.Now(),
		})
		c.setState(StateErrored)
		return
	}

	c.mu.Lock()
	c.sched = sched
	c.mu.Unlock()

	switch sched.Run(ctx) {
	case playback.OutcomeStopped:
		c.setState(StateStopped)
	case playback.OutcomeErrored:
		c.setState(StateErrored)
	case playback.OutcomeFinished:
		c.setState(StateFinished)
	}
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// PauseResume toggles between Running and Paused. The worker observes the
// flag on its next loop iteration; the session stays open either way.
func (c *Controller) PauseResume() (State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StateRunning:
		c.paused.Store(true)
		c.state = StatePaused
	case StatePaused:
		c.paused.Store(false)
		c.state = StateRunning
	default:
		return c.state, fmt.Errorf("%w (state %s)", ErrNotRunning, c.state)
	}
	slog.Info("controller: pause toggled", "run_id", c.runID, "state", c.state.String())
	return c.state, nil
}

// Stop cancels the active run and blocks until the worker has released its
// session. Stopping an idle or finished controller is a no-op.
func (c *Controller) Stop() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	active := c.state == StateRunning || c.state == StatePaused
	c.mu.Unlock()

	if !active || cancel == nil {
		return
	}
	cancel()
	<-done
}

// Reset returns a terminally-stopped controller to Idle. Run statistics
// from the previous run are cleared.
func (c *Controller) Reset() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.state.Terminal() {
		return fmt.Errorf("%w (state %s)", ErrNotTerminal, c.state)
	}
	c.state = StateIdle
	c.sched = nil
	c.runID = ""
	c.dropped.Store(0)
	return nil
}

// emit delivers an event without ever blocking the worker on a slow
// receiver. Frame and progress events are dropped when the channel is
// full, closing any dropped pixel buffer; terminal events wait up to a
// bounded grace period first.
func (c *Controller) emit(ev playback.Event) {
	terminal := ev.Kind == playback.EventError || ev.Kind == playback.EventFinished

	select {
	case c.events <- ev:
		return
	default:
	}

	if terminal {
		t := time.NewTimer(terminalEmitTimeout)
		defer t.Stop()
		select {
		case c.events <- ev:
			return
		case <-t.C:
		}
	}

	c.dropped.Add(1)
	if ev.Kind == playback.EventFrameReady {
		ev.Frame.Close()
	}
}
