package transcode

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"audio-bridge/internal/logging"
)

// ErrTranscodeFailed wraps every transcoder failure (nonzero exit or
// malformed input).
var ErrTranscodeFailed = errors.New("transcoding failed")

// Spec fixes the normalized output encoding.
type Spec struct {
	Codec       string
	Channels    int
	BitrateKbps int
	Container   string
}

// DefaultSpec is the delivery target: stereo 128 kbps AAC in an MPEG-4
// audio container suitable for progressive streaming.
func DefaultSpec() Spec {
	return Spec{Codec: "aac", Channels: 2, BitrateKbps: 128, Container: "mp4"}
}

// Transcoder spawns the external transcoder (ffmpeg).
type Transcoder struct {
	binary string
}

// New creates a Transcoder using the given binary.
func New(binary string) *Transcoder {
	return &Transcoder{binary: binary}
}

// Handle owns one live transcoder process. Output is the normalized
// byte stream; Progress is a best-effort percentage channel that closes
// when the process is done. Wait reports the terminal result exactly
// once, later calls return the same value.
type Handle struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser

	progress   chan int
	scanDone   chan struct{}
	diagnostic *diagnosticLog

	killOnce sync.Once
	waitOnce sync.Once
	waitErr  error
}

// StartFromFile starts a transcode reading from a file on disk.
// durationSeconds drives progress percentages; pass 0 when unknown and
// no progress will be emitted.
func (t *Transcoder) StartFromFile(ctx context.Context, path string, durationSeconds float64, spec Spec) (*Handle, error) {
	return t.start(ctx, path, nil, durationSeconds, spec)
}

// StartFromStream starts a transcode consuming a live byte stream,
// typically the fetch tool's stdout. The transcoder's stdin applies
// backpressure to the producer; nothing is buffered on disk.
func (t *Transcoder) StartFromStream(ctx context.Context, input io.Reader, durationSeconds float64, spec Spec) (*Handle, error) {
	return t.start(ctx, "pipe:0", input, durationSeconds, spec)
}

func (t *Transcoder) start(ctx context.Context, inputArg string, stdin io.Reader, durationSeconds float64, spec Spec) (*Handle, error) {
	args := []string{
		"-hide_banner",
		"-nostats",
		"-loglevel", "error",
		"-progress", "pipe:2",
		"-i", inputArg,
		"-vn",
		"-ac", strconv.Itoa(spec.Channels),
		"-c:a", spec.Codec,
		"-b:a", fmt.Sprintf("%dk", spec.BitrateKbps),
		"-movflags", "frag_keyframe+empty_moov+faststart",
		"-f", spec.Container,
		"pipe:1",
	}

	cmd := exec.CommandContext(ctx, t.binary, args...)
	cmd.Stdin = stdin

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start transcoder: %w", err)
	}

	// Start signal is diagnostic only.
	logging.Debug("transcoder started: %s %s", t.binary, strings.Join(args, " "))

	h := &Handle{
		cmd:        cmd,
		stdout:     stdout,
		progress:   make(chan int, 8),
		scanDone:   make(chan struct{}),
		diagnostic: newDiagnosticLog(40),
	}
	go h.scanStderr(stderr, durationSeconds)

	return h, nil
}

// scanStderr splits the transcoder's stderr into -progress key=value
// records and genuine diagnostic lines. Progress percentages are
// published without blocking; a slow consumer just misses updates.
func (h *Handle) scanStderr(r io.Reader, durationSeconds float64) {
	defer close(h.progress)
	defer close(h.scanDone)

	scanner := bufio.NewScanner(r)
	lastPercent := -1
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		key, value, isKV := strings.Cut(line, "=")
		if !isKV {
			h.diagnostic.Add(line)
			continue
		}

		switch key {
		case "out_time_us", "out_time_ms":
			if durationSeconds <= 0 {
				continue
			}
			us, err := strconv.ParseFloat(value, 64)
			if err != nil {
				continue
			}
			percent := int(us / (durationSeconds * 1e6) * 100)
			if percent > 100 {
				percent = 100
			}
			if percent > lastPercent {
				lastPercent = percent
				select {
				case h.progress <- percent:
				default:
				}
			}
		case "progress", "bitrate", "total_size", "out_time", "frame", "fps", "speed", "drop_frames", "dup_frames", "stream_0_0_q":
			// remaining -progress keys, not needed
		default:
			// key=value inside an error message still counts as diagnostics
			h.diagnostic.Add(line)
		}
	}
}

// Output returns the normalized audio stream.
func (h *Handle) Output() io.ReadCloser {
	return h.stdout
}

// Progress returns the best-effort progress channel. It is closed when
// the process finishes; correctness never depends on it.
func (h *Handle) Progress() <-chan int {
	return h.progress
}

// Wait blocks until the process exits and returns the terminal result.
// Safe to call more than once.
func (h *Handle) Wait() error {
	h.waitOnce.Do(func() {
		// Stderr must be drained to EOF before the process is reaped:
		// cmd.Wait closes the pipe and would discard the diagnostic tail.
		// EOF arrives on process exit, so this cannot block forever.
		<-h.scanDone
		err := h.cmd.Wait()
		if err != nil {
			h.waitErr = fmt.Errorf("%w: %v: %s", ErrTranscodeFailed, err, h.diagnostic.String())
		}
	})
	return h.waitErr
}

// Kill terminates the process immediately. Idempotent, safe after exit.
func (h *Handle) Kill() {
	h.killOnce.Do(func() {
		if h.cmd.Process != nil {
			if err := h.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
				logging.Debug("transcoder kill: %v", err)
			}
		}
	})
}

// diagnosticLog retains the last n diagnostic lines.
type diagnosticLog struct {
	mu    sync.Mutex
	lines []string
	limit int
}

func newDiagnosticLog(limit int) *diagnosticLog {
	return &diagnosticLog{limit: limit}
}

func (d *diagnosticLog) Add(line string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lines = append(d.lines, line)
	if len(d.lines) > d.limit {
		d.lines = d.lines[len(d.lines)-d.limit:]
	}
}

func (d *diagnosticLog) String() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return strings.Join(d.lines, "; ")
}
