// Package capture classifies video sources and negotiates an open capture
// session across an ordered plan of decoding backends.
package capture

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// SourceKind classifies a playback source.
type SourceKind int

const (
	// KindLocalFile is a seekable on-disk video file.
	KindLocalFile SourceKind = iota
	// KindLiveStream is a network stream (RTSP/HTTP/RTMP).
	KindLiveStream
	// KindDevice is a local camera identified by its device index.
	KindDevice
)

// String returns a human-readable string representation of the source kind.
func (k SourceKind) String() string {
	switch k {
	case KindLocalFile:
		return "file"
	case KindLiveStream:
		return "live"
	case KindDevice:
		return "device"
	default:
		return "unknown"
	}
}

// SourceDescriptor identifies a playback source. It is derived
// deterministically from the identifier and never mutated afterwards.
type SourceDescriptor struct {
	// URI is the normalized identifier: file path, stream URL, or the
	// decimal device index.
	URI string
	// DeviceIndex is the camera index; meaningful only when Kind is
	// KindDevice.
	DeviceIndex int
	// Kind is the source classification.
	Kind SourceKind
	// RequiresSpecialContainer marks legacy containers (ASF/WMV) that
	// need multi-backend fallback on open.
	RequiresSpecialContainer bool
}

// IsLive reports whether the source has no fixed length. Live streams and
// camera devices are paced by throttling; only files are frame-skipped.
func (d SourceDescriptor) IsLive() bool {
	return d.Kind != KindLocalFile
}

// networkSchemes are identifier prefixes that mark a live network stream.
var networkSchemes = []string{"rtsp://", "http://", "https://", "rtmp://"}

// specialContainerExts are file suffixes known to need backend fallback.
var specialContainerExts = []string{".asf", ".wmv"}

// Classify derives a SourceDescriptor from a source identifier. It is a
// total function: no I/O, no failure path. The identifier may be a string
// (path, URL, or decimal device index) or an int (device index), matching
// what gocv.OpenVideoCapture accepts. Classify(0) and Classify("0") yield
// identical descriptors.
func Classify(source interface{}) SourceDescriptor {
	switch v := source.(type) {
	case int:
		return deviceDescriptor(v)
	case string:
		return classifyString(strings.TrimSpace(v))
	default:
		// Unknown identifier types degrade to a plain file path.
		return classifyString(fmt.Sprint(source))
	}
}

func classifyString(s string) SourceDescriptor {
	lower := strings.ToLower(s)
	for _, scheme := range networkSchemes {
		if strings.HasPrefix(lower, scheme) {
			return SourceDescriptor{URI: s, Kind: KindLiveStream}
		}
	}
	if n, err := strconv.Atoi(s); err == nil && n >= 0 {
		return deviceDescriptor(n)
	}
	ext := strings.ToLower(filepath.Ext(s))
	for _, special := range specialContainerExts {
		if ext == special {
			return SourceDescriptor{
				URI:                      s,
				Kind:                     KindLocalFile,
				RequiresSpecialContainer: true,
			}
		}
	}
	return SourceDescriptor{URI: s, Kind: KindLocalFile}
}

func deviceDescriptor(index int) SourceDescriptor {
	return SourceDescriptor{
		URI:         strconv.Itoa(index),
		DeviceIndex: index,
		Kind:        KindDevice,
	}
}
