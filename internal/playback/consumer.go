package playback

import "github.com/e7canasta/video-ingest/internal/capture"

// DetectionParams tunes whatever frame consumer is attached to the run.
type DetectionParams struct {
	Confidence float64
	IoU        float64
	Tracking   bool
	// Extras carries consumer-specific settings (counting lines, zone
	// geometry) forwarded opaquely; the scheduler never inspects it.
	Extras map[string]interface{}
}

// Counts maps object class names to how many were seen in one frame.
type Counts map[string]int

// Consumer processes one decoded frame and returns the frame to deliver
// downstream, normally annotated in place. The consumer may return the
// input frame or a replacement; on success the returned frame's Mat
// ownership passes back to the caller. A non-nil error ends the run with
// a terminal processing error; on error the input frame stays owned by
// the caller and the returned frame is ignored.
type Consumer interface {
	Process(frame capture.Frame, params DetectionParams) (capture.Frame, Counts, error)
}

// ConsumerFunc adapts a function to the Consumer interface.
type ConsumerFunc func(capture.Frame, DetectionParams) (capture.Frame, Counts, error)

// Process calls f(frame, params).
func (f ConsumerFunc) Process(frame capture.Frame, params DetectionParams) (capture.Frame, Counts, error) {
	return f(frame, params)
}
