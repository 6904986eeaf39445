package playback

import "time"

// Config holds the per-run playback knobs. A Config is a value; it is
// captured at Start and never mutated during the run.
type Config struct {
	// Speed is the playback rate multiplier. 1.0 is real time; above 1.0
	// files skip frames to keep up while live sources only shorten the
	// pacing sleep.
	Speed float64

	// Params is forwarded to the consumer on every frame.
	Params DetectionParams

	// FailureCeiling is how many consecutive read failures end the run.
	FailureCeiling int

	// RetryBackoff is the wait between failed reads.
	RetryBackoff time.Duration

	// LiveInterval is the base pacing interval for sources with no frame
	// rate of their own (cameras, streams that lie about FPS).
	LiveInterval time.Duration

	// PauseIdle is how long the loop sleeps between pause-flag checks.
	PauseIdle time.Duration
}

// DefaultConfig returns the stock playback configuration.
func DefaultConfig() Config {
	return Config{
		Speed: 1.0,
		Params: DetectionParams{
			Confidence: 0.25,
			IoU:        0.45,
			Tracking:   true,
		},
		FailureCeiling: 30,
		RetryBackoff:   100 * time.Millisecond,
		LiveInterval:   33 * time.Millisecond,
		PauseIdle:      50 * time.Millisecond,
	}
}

// Normalized returns a copy with zero fields replaced by defaults and the
// speed clamped to a usable floor.
func (c Config) Normalized() Config {
	d := DefaultConfig()
	if c.Speed == 0 {
		c.Speed = d.Speed
	}
	if c.Speed < 0.1 {
		c.Speed = 0.1
	}
	if c.FailureCeiling <= 0 {
		c.FailureCeiling = d.FailureCeiling
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = d.RetryBackoff
	}
	if c.LiveInterval <= 0 {
		c.LiveInterval = d.LiveInterval
	}
	if c.PauseIdle <= 0 {
		c.PauseIdle = d.PauseIdle
	}
	return c
}
