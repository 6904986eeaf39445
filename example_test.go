package videoingest_test

import (
	"fmt"
	"log"

	videoingest "github.com/e7canasta/video-ingest"
)

func ExampleClassify() {
	for _, src := range []interface{}{
		"rtsp://cam.local/stream1",
		"/data/traffic.mp4",
		"/data/legacy.asf",
		0,
	} {
		d := videoingest.Classify(src)
		fmt.Printf("%s kind=%s special=%v\n", d.URI, d.Kind, d.RequiresSpecialContainer)
	}
	// Output:
	// rtsp://cam.local/stream1 kind=live special=false
	// /data/traffic.mp4 kind=file special=false
	// /data/legacy.asf kind=file special=true
	// 0 kind=device special=false
}

func ExampleController() {
	ctrl := videoingest.NewController()

	cfg := videoingest.DefaultPlaybackConfig()
	cfg.Speed = 2.0
	if err := ctrl.Start("/data/traffic.mp4", cfg); err != nil {
		log.Fatal(err)
	}

	for ev := range ctrl.Events() {
		switch ev.Kind {
		case videoingest.EventFrameReady:
			ev.Frame.Close()
		case videoingest.EventProgress:
			fmt.Printf("%d%%\n", ev.Progress)
		case videoingest.EventError:
			log.Fatal(ev.Err)
		case videoingest.EventFinished:
			return
		}
	}
}
