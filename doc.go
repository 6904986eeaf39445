// Package videoingest opens video sources and drives paced playback of
// their frames through a pluggable consumer.
//
// A source identifier (file path, RTSP/HTTP/RTMP URL, or camera device
// index) is classified into a SourceDescriptor, opened through an ordered
// plan of capture backends with per-backend tunables, and played by a
// scheduler that paces frames to the source frame rate, skips frames to
// hold speeds above real time, retries transient read failures, and
// reports progress.
//
// The Controller is the main entry point:
//
//	ctrl := videoingest.NewController()
//	if err := ctrl.Start("/data/traffic.mp4", videoingest.DefaultPlaybackConfig()); err != nil {
//		log.Fatal(err)
//	}
//	for ev := range ctrl.Events() {
//		switch ev.Kind {
//		case videoingest.EventFrameReady:
//			// ... use ev.Frame, then close it
//			ev.Frame.Close()
//		case videoingest.EventError, videoingest.EventFinished:
//			return
//		}
//	}
//
// Lifecycle: Idle -> Running <-> Paused -> {Stopped, Errored, Finished}.
// Start launches a worker goroutine that owns the capture session
// exclusively; Stop cancels it and blocks until the session is released.
// Every run ends with exactly one terminal event, EventError or
// EventFinished, emitted after the session is released.
//
// Frame events carry gocv Mats. Ownership transfers to the receiver on
// delivery; unreceived frames dropped by the controller's non-blocking
// event channel are closed internally and counted in Stats.
package videoingest
