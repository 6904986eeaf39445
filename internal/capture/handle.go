package capture

import "gocv.io/x/gocv"

// Frame is one decoded frame plus its pixel dimensions. The Mat is owned by
// whoever currently holds the Frame; ownership transfers on every hand-off
// and the final holder must Close it.
type Frame struct {
	Mat    gocv.Mat
	Width  int
	Height int
}

// Close releases the underlying pixel buffer. Safe on a zero Frame.
func (f *Frame) Close() {
	f.Mat.Close()
}

// Handle is an open capture stream produced by one backend strategy.
// A Handle is owned by a single goroutine and is not safe for concurrent
// use.
type Handle interface {
	// Read decodes the next frame. Returns false on any read failure,
	// including end of stream.
	Read() (Frame, bool)

	// Grab advances the stream by one frame without paying the decode
	// cost. Returns false when the stream could not be advanced.
	Grab() bool

	// FPS is the frame rate reported by the container or driver;
	// zero or negative when the source does not report one.
	FPS() float64

	// FrameCount is the reported total frame count; zero or negative
	// when unknown (live sources).
	FrameCount() int

	// Rewind repositions the stream to frame zero. Best effort; live
	// sources ignore it.
	Rewind()

	// Release frees the underlying capture resources. The Handle must
	// not be used afterwards.
	Release() error
}

// Opener opens a capture handle for a descriptor using one backend
// strategy. The production opener is OpenCV; tests substitute fakes.
type Opener func(desc SourceDescriptor, b Backend) (Handle, error)
