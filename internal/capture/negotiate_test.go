package capture

import (
	"errors"
	"fmt"
	"testing"
)

// fakeHandle is a scripted Handle for negotiation tests. No OpenCV involved.
type fakeHandle struct {
	readOK     bool
	fps        float64
	frameCount int

	rewound  bool
	released bool
	log      *[]string
	name     string
}

func (h *fakeHandle) Read() (Frame, bool) {
	if !h.readOK {
		return Frame{}, false
	}
	return Frame{Width: 640, Height: 480}, true
}

func (h *fakeHandle) Grab() bool      { return true }
func (h *fakeHandle) FPS() float64    { return h.fps }
func (h *fakeHandle) FrameCount() int { return h.frameCount }
func (h *fakeHandle) Rewind()         { h.rewound = true }

func (h *fakeHandle) Release() error {
	h.released = true
	if h.log != nil {
		*h.log = append(*h.log, "release "+h.name)
	}
	return nil
}

// scriptedOpener returns canned results per backend ID and records call order.
func scriptedOpener(log *[]string, results map[BackendID]*fakeHandle) Opener {
	return func(desc SourceDescriptor, b Backend) (Handle, error) {
		*log = append(*log, "open "+b.ID.String())
		h, ok := results[b.ID]
		if !ok {
			return nil, errors.New("no such backend")
		}
		h.log = log
		h.name = b.ID.String()
		return h, nil
	}
}

func TestNegotiateFallbackOrder(t *testing.T) {
	// FFmpeg opens but cannot read; GStreamer refuses to open; Any works.
	var log []string
	open := scriptedOpener(&log, map[BackendID]*fakeHandle{
		BackendFFmpeg: {readOK: false},
		BackendAny:    {readOK: true, fps: 25, frameCount: 500},
	})

	sess, err := Negotiate(open, Classify("/data/cam.asf"), PlanConfig{})
	if err != nil {
		t.Fatalf("Negotiate() error = %v", err)
	}
	defer sess.Release()

	want := []string{"open ffmpeg", "release ffmpeg", "open gstreamer", "open any"}
	if fmt.Sprint(log) != fmt.Sprint(want) {
		t.Errorf("event order = %v, want %v", log, want)
	}
	if sess.Backend.ID != BackendAny {
		t.Errorf("Backend.ID = %v, want %v", sess.Backend.ID, BackendAny)
	}
	if sess.FPS != 25 || sess.TotalFrames != 500 {
		t.Errorf("FPS/TotalFrames = %v/%v, want 25/500", sess.FPS, sess.TotalFrames)
	}
	if sess.Width != 640 || sess.Height != 480 {
		t.Errorf("dimensions = %dx%d, want 640x480", sess.Width, sess.Height)
	}
}

func TestNegotiateAllBackendsFail(t *testing.T) {
	var log []string
	h1 := &fakeHandle{readOK: false}
	h2 := &fakeHandle{readOK: false}
	open := scriptedOpener(&log, map[BackendID]*fakeHandle{
		BackendFFmpeg:    h1,
		BackendGStreamer: h2,
	})

	_, err := Negotiate(open, Classify("/data/cam.wmv"), PlanConfig{})
	if !errors.Is(err, ErrCannotOpen) {
		t.Fatalf("Negotiate() error = %v, want ErrCannotOpen", err)
	}
	if !h1.released || !h2.released {
		t.Error("handles from failed probes were not released")
	}
}

func TestNegotiateRewindsFilesOnly(t *testing.T) {
	tests := []struct {
		name       string
		source     string
		wantRewind bool
	}{
		{"file rewound after probe", "/data/clip.mp4", true},
		{"live stream not repositioned", "rtsp://cam/1", false},
		{"device not repositioned", "0", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &fakeHandle{readOK: true, fps: 30, frameCount: 100}
			open := func(SourceDescriptor, Backend) (Handle, error) { return h, nil }
			sess, err := Negotiate(open, Classify(tt.source), PlanConfig{})
			if err != nil {
				t.Fatalf("Negotiate() error = %v", err)
			}
			defer sess.Release()
			if h.rewound != tt.wantRewind {
				t.Errorf("rewound = %v, want %v", h.rewound, tt.wantRewind)
			}
		})
	}
}

func TestNegotiateMetadataFallbacks(t *testing.T) {
	tests := []struct {
		name       string
		source     string
		fps        float64
		frameCount int
		wantFPS    float64
		wantTotal  int
	}{
		{"missing fps falls back", "/data/a.mp4", 0, 200, 30, 200},
		{"negative fps falls back", "/data/a.mp4", -1, 200, 30, 200},
		{"missing frame count is sentinel", "/data/a.mp4", 24, 0, 24, TotalFramesUnknown},
		{"live sources never report a total", "rtsp://cam/1", 24, 9000, 24, TotalFramesUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &fakeHandle{readOK: true, fps: tt.fps, frameCount: tt.frameCount}
			open := func(SourceDescriptor, Backend) (Handle, error) { return h, nil }
			sess, err := Negotiate(open, Classify(tt.source), PlanConfig{})
			if err != nil {
				t.Fatalf("Negotiate() error = %v", err)
			}
			defer sess.Release()
			if sess.FPS != tt.wantFPS {
				t.Errorf("FPS = %v, want %v", sess.FPS, tt.wantFPS)
			}
			if sess.TotalFrames != tt.wantTotal {
				t.Errorf("TotalFrames = %v, want %v", sess.TotalFrames, tt.wantTotal)
			}
		})
	}
}

func TestSessionReleaseIdempotent(t *testing.T) {
	h := &fakeHandle{readOK: true, fps: 30, frameCount: 10}
	open := func(SourceDescriptor, Backend) (Handle, error) { return h, nil }
	sess, err := Negotiate(open, Classify("/data/a.mp4"), PlanConfig{})
	if err != nil {
		t.Fatalf("Negotiate() error = %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := sess.Release(); err != nil {
			t.Fatalf("Release() #%d error = %v", i+1, err)
		}
	}
	if !h.released {
		t.Error("handle not released")
	}
}
