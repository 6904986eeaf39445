// Package consumer provides FrameConsumer implementations for the playback
// controller: a no-op passthrough and a bridge to an external detector
// process.
package consumer

import (
	videoingest "github.com/e7canasta/video-ingest"
)

// Passthrough delivers frames unmodified and reports no counts. Tools and
// tests that only care about pacing and lifecycle use it.
type Passthrough struct{}

// Process returns the frame as-is.
func (Passthrough) Process(frame videoingest.Frame, _ videoingest.DetectionParams) (videoingest.Frame, videoingest.Counts, error) {
	return frame, nil, nil
}
