package consumer

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	"gocv.io/x/gocv"

	videoingest "github.com/e7canasta/video-ingest"
)

// DetectorConfig configures the external detector process.
type DetectorConfig struct {
	// Command is the worker executable, typically a wrapper script that
	// activates the model runtime.
	Command string
	Args    []string
	// ExchangeTimeout bounds one request/response round trip. Defaults
	// to 2s.
	ExchangeTimeout time.Duration
}

// DetectorProcess runs an external detector as a subprocess and exchanges
// frames over stdin/stdout: length-prefixed msgpack messages (4-byte
// big-endian length, then the payload) so the worker can find message
// boundaries in the stream. One frame in, one result out; Process is
// serialized internally.
type DetectorProcess struct {
	cfg DetectorConfig

	mu     sync.Mutex
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.Reader
	active bool
	// procDone closes when the single process waiter observes exit.
	procDone chan struct{}
}

// NewDetectorProcess validates the config and returns an unstarted worker.
func NewDetectorProcess(cfg DetectorConfig) (*DetectorProcess, error) {
	if cfg.Command == "" {
		return nil, errors.New("consumer: detector command is required")
	}
	if cfg.ExchangeTimeout <= 0 {
		cfg.ExchangeTimeout = 2 * time.Second
	}
	return &DetectorProcess{cfg: cfg}, nil
}

// Start spawns the detector subprocess and its stderr logger.
func (d *DetectorProcess) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.active {
		return errors.New("consumer: detector already started")
	}

	cmd := exec.Command(d.cfg.Command, d.cfg.Args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("consumer: stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("consumer: stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("consumer: stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("consumer: start detector %q: %w", d.cfg.Command, err)
	}

	d.cmd = cmd
	d.stdin = stdin
	d.stdout = bufio.NewReader(stdout)
	d.active = true
	d.procDone = make(chan struct{})

	go logWorkerStderr(stderr)
	// The only Wait on the process; everyone else watches procDone.
	go func() {
		defer close(d.procDone)
		if err := cmd.Wait(); err != nil {
			slog.Error("consumer: detector process exited", "command", d.cfg.Command, "error", err)
		} else {
			slog.Info("consumer: detector process exited cleanly", "command", d.cfg.Command)
		}
	}()

	slog.Info("consumer: detector started",
		"command", d.cfg.Command,
		"pid", cmd.Process.Pid)
	return nil
}

// Stop closes stdin to let the worker exit, then kills it if it lingers.
func (d *DetectorProcess) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.active {
		return nil
	}
	d.active = false
	d.stdin.Close()

	select {
	case <-d.procDone:
	case <-time.After(2 * time.Second):
		slog.Warn("consumer: detector stop timeout, killing process")
		if d.cmd.Process != nil {
			d.cmd.Process.Kill()
		}
		<-d.procDone
	}
	return nil
}

type detectorRequest struct {
	FrameData  []byte                 `msgpack:"frame_data"`
	Width      int                    `msgpack:"width"`
	Height     int                    `msgpack:"height"`
	Confidence float64                `msgpack:"confidence"`
	IoU        float64                `msgpack:"iou"`
	Tracking   bool                   `msgpack:"tracking"`
	Extras     map[string]interface{} `msgpack:"extras,omitempty"`
}

type detectorResponse struct {
	Counts map[string]int     `msgpack:"counts"`
	Timing map[string]float64 `msgpack:"timing"`
	Error  string             `msgpack:"error"`
}

// Process sends one frame to the worker and waits for its counts. The
// frame is JPEG-encoded for the wire and returned to the caller unchanged.
func (d *DetectorProcess) Process(frame videoingest.Frame, params videoingest.DetectionParams) (videoingest.Frame, videoingest.Counts, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.active {
		return frame, nil, errors.New("consumer: detector not started")
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, frame.Mat)
	if err != nil {
		return frame, nil, fmt.Errorf("consumer: encode frame: %w", err)
	}
	defer buf.Close()

	payload, err := msgpack.Marshal(detectorRequest{
		FrameData:  buf.GetBytes(),
		Width:      frame.Width,
		Height:     frame.Height,
		Confidence: params.Confidence,
		IoU:        params.IoU,
		Tracking:   params.Tracking,
		Extras:     params.Extras,
	})
	if err != nil {
		return frame, nil, fmt.Errorf("consumer: marshal request: %w", err)
	}

	counts, err := d.exchange(payload)
	if err != nil {
		return frame, nil, err
	}
	return frame, counts, nil
}

// exchange performs one framed write and one framed read with a deadline.
func (d *DetectorProcess) exchange(payload []byte) (videoingest.Counts, error) {
	type result struct {
		counts videoingest.Counts
		err    error
	}
	ch := make(chan result, 1)
	go func() {
		if err := writeMessage(d.stdin, payload); err != nil {
			ch <- result{err: fmt.Errorf("consumer: write frame: %w", err)}
			return
		}
		raw, err := readMessage(d.stdout)
		if err != nil {
			ch <- result{err: fmt.Errorf("consumer: read result: %w", err)}
			return
		}
		var resp detectorResponse
		if err := msgpack.Unmarshal(raw, &resp); err != nil {
			ch <- result{err: fmt.Errorf("consumer: unmarshal result: %w", err)}
			return
		}
		if resp.Error != "" {
			ch <- result{err: fmt.Errorf("consumer: detector reported: %s", resp.Error)}
			return
		}
		ch <- result{counts: videoingest.Counts(resp.Counts)}
	}()

	select {
	case r := <-ch:
		return r.counts, r.err
	case <-time.After(d.cfg.ExchangeTimeout):
		return nil, errors.New("consumer: detector exchange timeout (worker may be hung)")
	}
}

// writeMessage frames a payload as 4-byte big-endian length plus body.
func writeMessage(w io.Writer, payload []byte) error {
	prefix := make([]byte, 4)
	binary.BigEndian.PutUint32(prefix, uint32(len(payload)))
	if _, err := w.Write(prefix); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

// readMessage reads one length-prefixed payload.
func readMessage(r io.Reader) ([]byte, error) {
	prefix := make([]byte, 4)
	if _, err := io.ReadFull(r, prefix); err != nil {
		return nil, err
	}
	payload := make([]byte, binary.BigEndian.Uint32(prefix))
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// logWorkerStderr forwards detector stderr lines to slog, mapping the
// worker's bracketed levels.
func logWorkerStderr(stderr io.Reader) {
	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.Contains(line, "[ERROR]") || strings.Contains(line, "[CRITICAL]"):
			slog.Error("consumer: detector", "log", line)
		case strings.Contains(line, "[WARNING]") || strings.Contains(line, "[WARN]"):
			slog.Warn("consumer: detector", "log", line)
		default:
			slog.Debug("consumer: detector", "log", line)
		}
	}
}
