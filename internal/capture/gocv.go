package capture

import (
	"fmt"

	"gocv.io/x/gocv"
)

// OpenCV timeout properties (CAP_PROP_OPEN_TIMEOUT_MSEC /
// CAP_PROP_READ_TIMEOUT_MSEC). Not all backends honor them; setting them is
// best effort.
const (
	propOpenTimeoutMsec = gocv.VideoCaptureProperties(53)
	propReadTimeoutMsec = gocv.VideoCaptureProperties(54)
)

func apiPreference(id BackendID) gocv.VideoCaptureAPI {
	switch id {
	case BackendFFmpeg:
		return gocv.VideoCaptureFFmpeg
	case BackendGStreamer:
		return gocv.VideoCaptureGstreamer
	case BackendAny, BackendDefault:
		return gocv.VideoCaptureAny
	default:
		return gocv.VideoCaptureAny
	}
}

// fourcc packs a 4-character codec tag into the float OpenCV expects.
func fourcc(tag string) float64 {
	if len(tag) != 4 {
		return 0
	}
	return float64(uint32(tag[0]) | uint32(tag[1])<<8 | uint32(tag[2])<<16 | uint32(tag[3])<<24)
}

// OpenCV is the production Opener. It opens the source with the candidate's
// API preference and applies the candidate tunables to the live capture.
func OpenCV(desc SourceDescriptor, b Backend) (Handle, error) {
	var (
		vc  *gocv.VideoCapture
		err error
	)
	if desc.Kind == KindDevice {
		vc, err = gocv.VideoCaptureDeviceWithAPI(desc.DeviceIndex, apiPreference(b.ID))
	} else {
		vc, err = gocv.VideoCaptureFileWithAPI(desc.URI, apiPreference(b.ID))
	}
	if err != nil {
		return nil, fmt.Errorf("open %q via %s: %w", desc.URI, b.ID, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("open %q via %s: capture not opened", desc.URI, b.ID)
	}

	// Tunables are hints. A backend that ignores a property is still usable;
	// the read probe decides.
	if b.OpenTimeout > 0 {
		vc.Set(propOpenTimeoutMsec, float64(b.OpenTimeout.Milliseconds()))
	}
	if b.ReadTimeout > 0 {
		vc.Set(propReadTimeoutMsec, float64(b.ReadTimeout.Milliseconds()))
	}
	if b.BufferSize > 0 {
		vc.Set(gocv.VideoCaptureBufferSize, float64(b.BufferSize))
	}
	if b.PreferredFourCC != "" {
		if v := fourcc(b.PreferredFourCC); v != 0 {
			vc.Set(gocv.VideoCaptureFOURCC, v)
		}
	}

	return &cvHandle{vc: vc}, nil
}

type cvHandle struct {
	vc *gocv.VideoCapture
}

func (h *cvHandle) Read() (Frame, bool) {
	mat := gocv.NewMat()
	if !h.vc.Read(&mat) || mat.Empty() {
		mat.Close()
		return Frame{}, false
	}
	return Frame{Mat: mat, Width: mat.Cols(), Height: mat.Rows()}, true
}

func (h *cvHandle) Grab() bool {
	// gocv's Grab reports nothing, so success is inferred from the stream
	// position. Sources that do not report a position get the benefit of
	// the doubt.
	before := h.vc.Get(gocv.VideoCapturePosFrames)
	h.vc.Grab(1)
	if before <= 0 {
		return true
	}
	return h.vc.Get(gocv.VideoCapturePosFrames) > before
}

func (h *cvHandle) FPS() float64 {
	return h.vc.Get(gocv.VideoCaptureFPS)
}

func (h *cvHandle) FrameCount() int {
	return int(h.vc.Get(gocv.VideoCaptureFrameCount))
}

func (h *cvHandle) Rewind() {
	h.vc.Set(gocv.VideoCapturePosFrames, 0)
}

func (h *cvHandle) Release() error {
	return h.vc.Close()
}
