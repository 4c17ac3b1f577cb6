package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"audio-bridge/internal/logging"
	"audio-bridge/internal/mediainfo"
)

// Sentinel errors classified from fetch tool diagnostics.
var (
	// ErrNotFound indicates the media item does not exist or is not
	// available upstream.
	ErrNotFound = errors.New("media not found")

	// ErrRateLimited indicates the upstream source is throttling us.
	ErrRateLimited = errors.New("upstream rate limited")

	// ErrTimeout indicates the retrieval exceeded its execution cap.
	ErrTimeout = errors.New("retrieval timed out")

	// ErrEmptyOutput indicates the tool exited cleanly but produced no
	// usable output.
	ErrEmptyOutput = errors.New("retrieval produced no output")
)

const (
	// DefaultTimeout caps a single retrieval run.
	DefaultTimeout = 10 * time.Minute

	// DefaultMaxOutputBytes caps the size of a file-mediated download.
	DefaultMaxOutputBytes = 256 << 20

	// resolveTimeout caps a metadata-only probe, which should be fast.
	resolveTimeout = 30 * time.Second

	// stderrLimit bounds how much diagnostic output we retain.
	stderrLimit = 64 << 10
)

// Fetcher spawns the external fetch tool (yt-dlp) for metadata probes
// and audio retrieval. The tool selects the best audio format itself
// when streaming; metadata probes report the full format catalog.
type Fetcher struct {
	binary         string
	urlTemplate    string
	cookiesFile    string
	timeout        time.Duration
	maxOutputBytes int64
}

// New creates a Fetcher. urlTemplate must contain one %s verb that
// receives the media identifier. cookiesFile may be empty; when set it
// is passed through to the tool unmodified.
func New(binary, urlTemplate, cookiesFile string, timeout time.Duration, maxOutputBytes int64) *Fetcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if maxOutputBytes <= 0 {
		maxOutputBytes = DefaultMaxOutputBytes
	}
	return &Fetcher{
		binary:         binary,
		urlTemplate:    urlTemplate,
		cookiesFile:    cookiesFile,
		timeout:        timeout,
		maxOutputBytes: maxOutputBytes,
	}
}

// mediaURL builds the retrieval URL for an identifier. The identifier is
// only ever passed as a discrete argv element, never through a shell.
func (f *Fetcher) mediaURL(mediaID string) string {
	return fmt.Sprintf(f.urlTemplate, mediaID)
}

// commonArgs returns the argument prefix shared by every invocation.
func (f *Fetcher) commonArgs() []string {
	args := []string{"--no-playlist", "--no-warnings"}
	if f.cookiesFile != "" {
		args = append(args, "--cookies", f.cookiesFile)
	}
	return args
}

// Resolve probes the tool for the media item's format catalog without
// downloading anything.
func (f *Fetcher) Resolve(ctx context.Context, mediaID string) (*mediainfo.Catalog, error) {
	ctx, cancel := context.WithTimeout(ctx, resolveTimeout)
	defer cancel()

	args := append(f.commonArgs(), "--dump-json", f.mediaURL(mediaID))
	cmd := exec.CommandContext(ctx, f.binary, args...)

	var stdout strings.Builder
	stderr := newBoundedBuffer(stderrLimit)
	cmd.Stdout = &stdout
	cmd.Stderr = stderr

	logging.Debug("resolving metadata for %s", mediaID)
	if err := cmd.Run(); err != nil {
		return nil, classify(ctx, err, stderr.String())
	}

	catalog, err := mediainfo.ParseCatalog([]byte(stdout.String()))
	if err != nil {
		return nil, err
	}
	return catalog, nil
}

// Handle owns one live fetch process. It is owned by exactly one
// delivery session and never shared.
type Handle struct {
	cmd    *exec.Cmd
	ctx    context.Context
	cancel context.CancelFunc
	stdout io.ReadCloser
	stderr *boundedBuffer

	killOnce sync.Once
	waitOnce sync.Once
	waitErr  error

	// file-mediated mode only
	outputPath string
	maxBytes   int64
}

// StartStream spawns the tool writing the best audio stream to stdout.
// The returned handle's Output must be drained; the pipe provides
// backpressure so the tool cannot buffer unboundedly.
func (f *Fetcher) StartStream(ctx context.Context, mediaID string) (*Handle, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)

	args := append(f.commonArgs(), "-f", "bestaudio", "--quiet", "-o", "-", f.mediaURL(mediaID))
	cmd := exec.CommandContext(ctx, f.binary, args...)

	stderr := newBoundedBuffer(stderrLimit)
	cmd.Stderr = stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to start fetch tool: %w", err)
	}

	logging.Debug("fetch stream started for %s (pid %d)", mediaID, cmd.Process.Pid)
	return &Handle{cmd: cmd, ctx: ctx, cancel: cancel, stdout: stdout, stderr: stderr}, nil
}

// StartToFile spawns the tool downloading the best audio stream to path.
func (f *Fetcher) StartToFile(ctx context.Context, mediaID, path string) (*Handle, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)

	args := append(f.commonArgs(), "-f", "bestaudio", "--quiet", "-o", path, f.mediaURL(mediaID))
	cmd := exec.CommandContext(ctx, f.binary, args...)

	stderr := newBoundedBuffer(stderrLimit)
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to start fetch tool: %w", err)
	}

	logging.Debug("fetch download started for %s -> %s (pid %d)", mediaID, path, cmd.Process.Pid)
	return &Handle{
		cmd:        cmd,
		ctx:        ctx,
		cancel:     cancel,
		stderr:     stderr,
		outputPath: path,
		maxBytes:   f.maxOutputBytes,
	}, nil
}

// Output returns the live byte stream in streaming mode, nil otherwise.
func (h *Handle) Output() io.ReadCloser {
	return h.stdout
}

// Wait blocks until the process exits and classifies the result. It is
// safe to call more than once; later calls return the first result.
func (h *Handle) Wait() error {
	h.waitOnce.Do(func() {
		err := h.cmd.Wait()
		h.cancel()

		if err != nil {
			if errors.Is(h.ctx.Err(), context.DeadlineExceeded) {
				h.waitErr = ErrTimeout
				return
			}
			h.waitErr = classifyExit(err, h.stderr.String())
			return
		}

		// Clean exit: in file mode the output must exist, be nonempty
		// and stay under the configured cap.
		if h.outputPath != "" {
			h.waitErr = h.checkOutputFile()
		}
	})
	return h.waitErr
}

func (h *Handle) checkOutputFile() error {
	info, err := os.Stat(h.outputPath)
	if err != nil {
		return fmt.Errorf("%w: output file missing: %v", ErrEmptyOutput, err)
	}
	if info.Size() == 0 {
		return ErrEmptyOutput
	}
	if h.maxBytes > 0 && info.Size() > h.maxBytes {
		return fmt.Errorf("retrieval output too large: %d bytes (limit %d)", info.Size(), h.maxBytes)
	}
	return nil
}

// Kill terminates the process immediately. It is idempotent and safe to
// call after natural exit.
func (h *Handle) Kill() {
	h.killOnce.Do(func() {
		if h.cmd.Process != nil {
			if err := h.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
				logging.Debug("fetch kill: %v", err)
			}
		}
		h.cancel()
	})
}

// classify maps a failed metadata probe to a sentinel error.
func classify(ctx context.Context, err error, diagnostic string) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s", ErrTimeout, resolveTimeout)
	}
	return classifyExit(err, diagnostic)
}

// classifyExit inspects the tool's diagnostic output for conditions the
// API surfaces distinctly: missing media and upstream throttling.
func classifyExit(err error, diagnostic string) error {
	lower := strings.ToLower(diagnostic)
	switch {
	case strings.Contains(lower, "429") || strings.Contains(lower, "too many requests"):
		return fmt.Errorf("%w: %s", ErrRateLimited, tail(diagnostic))
	case strings.Contains(lower, "video unavailable") ||
		strings.Contains(lower, "not available") ||
		strings.Contains(lower, "does not exist"):
		return fmt.Errorf("%w: %s", ErrNotFound, tail(diagnostic))
	case errors.Is(err, context.DeadlineExceeded):
		return ErrTimeout
	}
	return fmt.Errorf("fetch tool failed: %w: %s", err, tail(diagnostic))
}

// tail returns the last line of diagnostic output, which is where the
// tool prints its error summary.
func tail(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	return strings.TrimSpace(s)
}
