package capture

import "time"

// BackendID names a capture strategy: one decoding pathway used to open a
// video source.
type BackendID int

const (
	// BackendDefault lets the capture library pick, with no tuning.
	BackendDefault BackendID = iota
	// BackendFFmpeg is the primary decoder.
	BackendFFmpeg
	// BackendGStreamer is the secondary decoder, tried when FFmpeg cannot
	// produce frames from a legacy container.
	BackendGStreamer
	// BackendAny auto-detects, but still carries the container tunables.
	BackendAny
)

// String returns a human-readable string representation of the backend.
func (b BackendID) String() string {
	switch b {
	case BackendDefault:
		return "default"
	case BackendFFmpeg:
		return "ffmpeg"
	case BackendGStreamer:
		return "gstreamer"
	case BackendAny:
		return "any"
	default:
		return "unknown"
	}
}

// Backend is a tagged capture strategy: a backend identity plus the
// tunables applied right after a successful open. Candidates are plain
// configuration records; a single negotiation loop iterates them.
type Backend struct {
	ID BackendID
	// OpenTimeout and ReadTimeout bound the blocking open/read calls.
	// Zero leaves the backend default.
	OpenTimeout time.Duration
	ReadTimeout time.Duration
	// BufferSize is the internal frame buffer depth. Live and legacy
	// container sources use 1 to avoid stale-frame latency. Zero leaves
	// the backend default.
	BufferSize int
	// PreferredFourCC is an intermediate codec hint, applied best-effort.
	PreferredFourCC string
}

// PlanConfig holds the negotiation timeout knobs. The values are empirical
// (inherited constants, not derived from a documented rationale) and are
// therefore configurable rather than hard-coded.
type PlanConfig struct {
	// SpecialTimeout is the open/read timeout for legacy containers.
	SpecialTimeout time.Duration
	// LiveTimeout is the open/read timeout for network streams.
	LiveTimeout time.Duration
}

// DefaultPlanConfig returns the stock negotiation timeouts.
func DefaultPlanConfig() PlanConfig {
	return PlanConfig{
		SpecialTimeout: 15 * time.Second,
		LiveTimeout:    5 * time.Second,
	}
}

func (c PlanConfig) withDefaults() PlanConfig {
	d := DefaultPlanConfig()
	if c.SpecialTimeout <= 0 {
		c.SpecialTimeout = d.SpecialTimeout
	}
	if c.LiveTimeout <= 0 {
		c.LiveTimeout = d.LiveTimeout
	}
	return c
}

// Plan builds the ordered list of backend candidates for a source. The
// first working candidate wins; later ones are never tried.
//
//   - Legacy containers try {FFmpeg, GStreamer, Any} with extended
//     timeouts, minimal buffering and an MJPG codec hint, then fall back
//     once more to an untuned default candidate.
//   - Live streams use a single FFmpeg candidate with minimal buffering
//     and a short timeout.
//   - Plain files use the untuned default.
func Plan(desc SourceDescriptor, cfg PlanConfig) []Backend {
	cfg = cfg.withDefaults()

	if desc.Kind == KindLiveStream {
		return []Backend{{
			ID:          BackendFFmpeg,
			OpenTimeout: cfg.LiveTimeout,
			ReadTimeout: cfg.LiveTimeout,
			BufferSize:  1,
		}}
	}

	if desc.RequiresSpecialContainer {
		candidates := make([]Backend, 0, 4)
		for _, id := range []BackendID{BackendFFmpeg, BackendGStreamer, BackendAny} {
			candidates = append(candidates, Backend{
				ID:              id,
				OpenTimeout:     cfg.SpecialTimeout,
				ReadTimeout:     cfg.SpecialTimeout,
				BufferSize:      1,
				PreferredFourCC: "MJPG",
			})
		}
		// Last resort before declaring failure: a plain open with no
		// tuning at all.
		return append(candidates, Backend{ID: BackendDefault})
	}

	return []Backend{{ID: BackendDefault}}
}
