package capture

import "testing"

func TestClassify(t *testing.T) {
	tests := []struct {
		name        string
		source      interface{}
		wantKind    SourceKind
		wantSpecial bool
		wantURI     string
	}{
		{"rtsp url", "rtsp://cam.local/stream1", KindLiveStream, false, "rtsp://cam.local/stream1"},
		{"rtsp uppercase scheme", "RTSP://cam.local/stream1", KindLiveStream, false, "RTSP://cam.local/stream1"},
		{"http url", "http://host/feed.mjpg", KindLiveStream, false, "http://host/feed.mjpg"},
		{"https url", "https://host/feed", KindLiveStream, false, "https://host/feed"},
		{"rtmp url", "rtmp://host/live", KindLiveStream, false, "rtmp://host/live"},
		{"device int", 0, KindDevice, false, "0"},
		{"device string", "0", KindDevice, false, "0"},
		{"device string padded", "  2  ", KindDevice, false, "2"},
		{"negative index is a path", "-1", KindLocalFile, false, "-1"},
		{"plain mp4", "/data/traffic.mp4", KindLocalFile, false, "/data/traffic.mp4"},
		{"asf container", "/data/cam.asf", KindLocalFile, true, "/data/cam.asf"},
		{"wmv container uppercase", "C:\\clips\\CAM.WMV", KindLocalFile, true, "C:\\clips\\CAM.WMV"},
		{"asf-like name without ext", "/data/asf-notes.txt", KindLocalFile, false, "/data/asf-notes.txt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.source)
			if got.Kind != tt.wantKind {
				t.Errorf("kind = %v, want %v", got.Kind, tt.wantKind)
			}
			if got.RequiresSpecialContainer != tt.wantSpecial {
				t.Errorf("special = %v, want %v", got.RequiresSpecialContainer, tt.wantSpecial)
			}
			if got.URI != tt.wantURI {
				t.Errorf("uri = %q, want %q", got.URI, tt.wantURI)
			}
		})
	}
}

func TestClassifyIntAndStringAgree(t *testing.T) {
	if Classify(3) != Classify("3") {
		t.Errorf("Classify(3) = %+v, Classify(%q) = %+v; want identical", Classify(3), "3", Classify("3"))
	}
}

func TestIsLive(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   bool
	}{
		{"file", "/data/clip.mp4", false},
		{"special container file", "/data/clip.asf", false},
		{"stream", "rtsp://cam/1", true},
		{"device", "1", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.source).IsLive(); got != tt.want {
				t.Errorf("IsLive() = %v, want %v", got, tt.want)
			}
		})
	}
}
