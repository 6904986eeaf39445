package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"gocv.io/x/gocv"

	videoingest "github.com/e7canasta/video-ingest"
)

// Version information
const version = "v0.1.0"

func main() {
	// Parse command-line flags
	source := flag.String("source", "", "Video source: file path, stream URL, or device index (required)")
	speed := flag.Float64("speed", 1.0, "Playback speed multiplier (0.1-10)")
	confidence := flag.Float64("confidence", 0.25, "Detection confidence threshold")
	iou := flag.Float64("iou", 0.45, "Detection IoU threshold")
	tracking := flag.Bool("tracking", true, "Enable object tracking")
	outputDir := flag.String("output", "", "Directory to save delivered frames (optional)")
	maxFrames := flag.Int("max-frames", 0, "Maximum frames to deliver (0 = unlimited)")
	statsInterval := flag.Int("stats-interval", 10, "Seconds between stats reports")
	debug := flag.Bool("debug", false, "Enable debug logging")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	// Show version
	if *showVersion {
		fmt.Printf("playback-probe %s\n", version)
		os.Exit(0)
	}

	// Validate required flags
	if *source == "" {
		fmt.Fprintf(os.Stderr, "Error: --source flag is required\n\n")
		fmt.Fprintf(os.Stderr, "Usage example:\n")
		fmt.Fprintf(os.Stderr, "  playback-probe --source /data/traffic.mp4 --speed 2.0\n")
		fmt.Fprintf(os.Stderr, "  playback-probe --source rtsp://192.168.1.100/stream\n")
		fmt.Fprintf(os.Stderr, "  playback-probe --source 0\n\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	// Set up logging
	logLevel := slog.LevelInfo
	if *debug {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Create output directory if specified
	if *outputDir != "" {
		if err := os.MkdirAll(*outputDir, 0755); err != nil {
			log.Fatalf("Failed to create output directory: %v", err)
		}
	}

	desc := videoingest.Classify(*source)

	// Print banner
	fmt.Printf("\n")
	fmt.Printf("╔═══════════════════════════════════════════════════════════╗\n")
	fmt.Printf("║              Playback Probe - Video Ingest                ║\n")
	fmt.Printf("║                      Version %s                        ║\n", version)
	fmt.Printf("╚═══════════════════════════════════════════════════════════╝\n")
	fmt.Printf("\n")
	fmt.Printf("Configuration:\n")
	fmt.Printf("  Source:        %s\n", desc.URI)
	fmt.Printf("  Kind:          %s\n", desc.Kind)
	if desc.RequiresSpecialContainer {
		fmt.Printf("  Container:     legacy (multi-backend fallback)\n")
	}
	fmt.Printf("  Speed:         %.2fx\n", *speed)
	fmt.Printf("  Confidence:    %.2f\n", *confidence)
	fmt.Printf("  IoU:           %.2f\n", *iou)
	fmt.Printf("  Tracking:      %v\n", *tracking)
	if *outputDir != "" {
		fmt.Printf("  Output Dir:    %s\n", *outputDir)
	}
	if *maxFrames > 0 {
		fmt.Printf("  Max Frames:    %d\n", *maxFrames)
	} else {
		fmt.Printf("  Max Frames:    unlimited\n")
	}
	fmt.Printf("\n")

	ctrl := videoingest.NewController()

	cfg := videoingest.DefaultPlaybackConfig()
	cfg.Speed = *speed
	cfg.Params = videoingest.DetectionParams{
		Confidence: *confidence,
		IoU:        *iou,
		Tracking:   *tracking,
	}

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	slog.Info("Starting playback...")
	if err := ctrl.Start(*source, cfg); err != nil {
		log.Fatalf("Failed to start playback: %v", err)
	}

	fmt.Printf("Press Ctrl+C to stop gracefully\n")
	fmt.Printf("═══════════════════════════════════════════════════════════\n\n")

	startTime := time.Now()
	framesSaved := 0
	frameCount := 0
	lastProgress := -1

	statsTicker := time.NewTicker(time.Duration(*statsInterval) * time.Second)
	defer statsTicker.Stop()

	for {
		select {
		case <-sigChan:
			fmt.Printf("\n\nReceived interrupt signal, shutting down...\n")
			ctrl.Stop()
			printFinalStats(ctrl, startTime, frameCount, framesSaved)
			return

		case <-statsTicker.C:
			printStats(ctrl, startTime)

		case ev := <-ctrl.Events():
			switch ev.Kind {
			case videoingest.EventFrameReady:
				frameCount++
				fmt.Printf("[%s] Frame #%-6d | Index: %-8d | Size: %dx%d\n",
					time.Now().Format("15:04:05"),
					frameCount,
					ev.FrameIndex,
					ev.Frame.Width,
					ev.Frame.Height,
				)
				if *outputDir != "" {
					if err := saveFrame(*outputDir, ev); err != nil {
						slog.Error("Failed to save frame", "error", err, "frame_index", ev.FrameIndex)
					} else {
						framesSaved++
					}
				}
				ev.Frame.Close()

				if *maxFrames > 0 && frameCount >= *maxFrames {
					fmt.Printf("\nReached maximum frames (%d), stopping...\n", *maxFrames)
					ctrl.Stop()
					printFinalStats(ctrl, startTime, frameCount, framesSaved)
					return
				}

			case videoingest.EventProgress:
				if ev.Progress != lastProgress && ev.Progress%10 == 0 {
					fmt.Printf("── Progress: %d%% ──\n", ev.Progress)
					lastProgress = ev.Progress
				}

			case videoingest.EventProgressComplete:
				fmt.Printf("── Source fully played ──\n")

			case videoingest.EventError:
				fmt.Printf("\nPlayback error: %v\n", ev.Err)
				printFinalStats(ctrl, startTime, frameCount, framesSaved)
				os.Exit(1)

			case videoingest.EventFinished:
				fmt.Printf("\nPlayback finished\n")
				printFinalStats(ctrl, startTime, frameCount, framesSaved)
				return
			}
		}
	}
}

func printStats(ctrl *videoingest.Controller, startTime time.Time) {
	stats := ctrl.Stats()
	uptime := time.Since(startTime)

	fmt.Printf("\n")
	fmt.Printf("╭─────────────────────────────────────────────────────────╮\n")
	fmt.Printf("│ Playback Statistics (Uptime: %s)\n", uptime.Round(time.Second))
	fmt.Printf("├─────────────────────────────────────────────────────────┤\n")
	fmt.Printf("│ State:              %10s\n", ctrl.State())
	fmt.Printf("│ Frames Delivered:   %6d frames\n", stats.FramesDelivered)
	fmt.Printf("│ Frames Skipped:     %6d frames\n", stats.FramesSkipped)
	fmt.Printf("│ Read Failures:      %6d\n", stats.ReadFailures)
	fmt.Printf("│ Dropped Events:     %6d\n", stats.DroppedEvents)
	fmt.Printf("│ Real FPS:           %6.2f fps\n", stats.RealFPS)
	fmt.Printf("╰─────────────────────────────────────────────────────────╯\n")
	fmt.Printf("\n")
}

func printFinalStats(ctrl *videoingest.Controller, startTime time.Time, frameCount, framesSaved int) {
	stats := ctrl.Stats()
	uptime := time.Since(startTime)

	fmt.Printf("\n")
	fmt.Printf("═══════════════════════════════════════════════════════════\n")
	fmt.Printf("                     Final Statistics                      \n")
	fmt.Printf("═══════════════════════════════════════════════════════════\n")
	fmt.Printf("  Total Uptime:       %s\n", uptime.Round(time.Second))
	fmt.Printf("  Frames Received:    %d frames\n", frameCount)
	fmt.Printf("  Frames Delivered:   %d frames\n", stats.FramesDelivered)
	fmt.Printf("  Frames Skipped:     %d frames\n", stats.FramesSkipped)
	if framesSaved > 0 {
		fmt.Printf("  Frames Saved:       %d frames\n", framesSaved)
	}
	fmt.Printf("  Read Failures:      %d\n", stats.ReadFailures)
	fmt.Printf("  Dropped Events:     %d\n", stats.DroppedEvents)
	fmt.Printf("  Average FPS:        %.2f fps\n", stats.RealFPS)
	fmt.Printf("  Final State:        %s\n", ctrl.State())
	fmt.Printf("═══════════════════════════════════════════════════════════\n")
	fmt.Printf("\n")
}

// saveFrame writes one delivered frame to disk as JPEG.
func saveFrame(outputDir string, ev videoingest.Event) error {
	filename := fmt.Sprintf("frame_%06d_%s.jpg", ev.FrameIndex, ev.Timestamp.Format("20060102_150405.000"))
	path := filepath.Join(outputDir, filename)
	if ok := gocv.IMWrite(path, ev.Frame.Mat); !ok {
		return fmt.Errorf("failed to encode %s", path)
	}
	return nil
}
