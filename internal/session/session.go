package session

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"audio-bridge/internal/fetch"
	"audio-bridge/internal/logging"
	"audio-bridge/internal/metrics"
	"audio-bridge/internal/streaming"
	"audio-bridge/internal/transcode"
)

// ErrAborted indicates the client disconnected; no response body
// obligations remain. It is not a server error.
var ErrAborted = errors.New("client aborted delivery")

// Options configures a delivery session.
type Options struct {
	// StreamMode pipes retrieval straight into the transcoder. When
	// false the source is buffered to a temp file first.
	StreamMode bool

	// TempDir receives temp files in file-mediated mode.
	TempDir string

	// DurationSeconds, when known, drives transcode progress reporting.
	DurationSeconds float64

	// Spec is the transcode target; zero value means DefaultSpec.
	Spec transcode.Spec
}

// Session delivers one media item to one client: it owns the fetch
// process, the transcode process and the temp file (if any), and
// guarantees all three are released exactly once whichever terminal
// state is reached.
type Session struct {
	ID      string
	MediaID string

	fetcher    *fetch.Fetcher
	transcoder *transcode.Transcoder
	opts       Options

	mu              sync.Mutex
	state           State
	fetchHandle     *fetch.Handle
	transcodeHandle *transcode.Handle
	tempPath        string

	cleanupOnce sync.Once
}

// New creates a session in the Created state.
func New(mediaID string, f *fetch.Fetcher, t *transcode.Transcoder, opts Options) *Session {
	if opts.Spec == (transcode.Spec{}) {
		opts.Spec = transcode.DefaultSpec()
	}
	return &Session{
		ID:         uuid.NewString(),
		MediaID:    mediaID,
		fetcher:    f,
		transcoder: t,
		opts:       opts,
		state:      StateCreated,
	}
}

// State returns the current session state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(next State) {
	s.mu.Lock()
	s.state = next
	s.mu.Unlock()
	logging.Debug("session %s (%s): -> %s", s.ID, s.MediaID, next)
}

// Run drives the session to a terminal state, streaming the normalized
// audio to w. headersSent reports whether response headers were already
// written; when it is true the caller cannot send an error body anymore.
//
// Client disconnects surface as ErrAborted; every other error carries
// the fetch/transcode sentinel that caused it.
func (s *Session) Run(ctx context.Context, w http.ResponseWriter) (headersSent bool, err error) {
	metrics.SessionsInFlight.Inc()
	start := time.Now()

	defer func() {
		outcome := s.finish(err)
		metrics.SessionsInFlight.Dec()
		metrics.SessionsTotal.WithLabelValues(outcome).Inc()
		logging.Info("session %s (%s): %s after %s", s.ID, s.MediaID, outcome, time.Since(start).Round(time.Millisecond))
	}()

	if s.opts.StreamMode {
		return s.runStreaming(ctx, w)
	}
	return s.runBuffered(ctx, w)
}

// finish moves the session to its terminal state and runs teardown.
// Returns the outcome label.
func (s *Session) finish(err error) string {
	switch {
	case err == nil:
		s.setState(StateCompleted)
	case errors.Is(err, ErrAborted):
		s.setState(StateAborted)
	default:
		s.setState(StateFailed)
	}
	s.teardown()
	return s.State().String()
}

// teardown kills any still-live process handle and deletes the temp
// file. It runs exactly once per session regardless of which terminal
// state was reached; cleanup failures are logged, never escalated.
func (s *Session) teardown() {
	s.cleanupOnce.Do(func() {
		s.mu.Lock()
		fh, th, temp := s.fetchHandle, s.transcodeHandle, s.tempPath
		s.mu.Unlock()

		if fh != nil {
			fh.Kill()
		}
		if th != nil {
			th.Kill()
		}
		if temp != "" {
			if err := os.Remove(temp); err != nil && !os.IsNotExist(err) {
				logging.Warn("session %s: failed to delete temp file %s: %v", s.ID, temp, err)
			} else {
				logging.Debug("session %s: temp file deleted: %s", s.ID, temp)
			}
		}
	})
}

// runStreaming pipes the fetch tool's stdout straight into the
// transcoder, so nothing touches disk and the OS pipe throttles the
// producer.
func (s *Session) runStreaming(ctx context.Context, w http.ResponseWriter) (bool, error) {
	s.setState(StateRetrieving)
	fetchStart := time.Now()
	fh, err := s.fetcher.StartStream(ctx, s.MediaID)
	if err != nil {
		return false, err
	}
	s.mu.Lock()
	s.fetchHandle = fh
	s.mu.Unlock()

	transcodeStart := time.Now()
	th, err := s.transcoder.StartFromStream(ctx, fh.Output(), s.opts.DurationSeconds, s.opts.Spec)
	if err != nil {
		return false, err
	}
	s.mu.Lock()
	s.transcodeHandle = th
	s.mu.Unlock()
	s.setState(StateTranscoding)

	go s.logProgress(th)

	headersSent, streamErr := s.stream(ctx, w, th)

	// On disconnect the processes must die before we wait on them: the
	// transcoder would otherwise block forever on its full output pipe.
	aborted := errors.Is(streamErr, streaming.ErrClientGone)
	if aborted {
		s.killProcesses()
	}

	// The transcoder's stdout has hit EOF by the time stream returns, so
	// its Wait is prompt. The fetch tool can outlive it with nobody
	// draining its pipe anymore; on any pipeline failure it is killed
	// before being waited on, never waited out.
	var thErr, fhErr error
	var g errgroup.Group
	g.Go(func() error {
		thErr = th.Wait()
		if thErr != nil || streamErr != nil {
			fh.Kill()
		}
		return thErr
	})
	g.Go(func() error {
		fhErr = fh.Wait()
		return fhErr
	})
	_ = g.Wait()

	// A transcoder failure is the pipeline's root cause; a fetch error
	// after a forced kill is just its echo.
	waitErr := thErr
	if waitErr == nil {
		waitErr = fhErr
	}

	observeFetch("stream", fetchStart, fhErr)
	observeTranscode(transcodeStart, thErr)

	switch {
	case aborted:
		return headersSent, ErrAborted
	case ctx.Err() != nil:
		// The request context died while the pipeline was running.
		return headersSent, ErrAborted
	case streamErr != nil:
		return headersSent, streamErr
	case waitErr != nil:
		return headersSent, waitErr
	}
	return headersSent, nil
}

// runBuffered downloads to a temp file first, then transcodes from it.
// Used when the source requires a completed file (or STREAM_MODE=false).
func (s *Session) runBuffered(ctx context.Context, w http.ResponseWriter) (bool, error) {
	temp := filepath.Join(s.opts.TempDir, fmt.Sprintf("fetch_%s_%d.audio", s.MediaID, time.Now().UnixNano()))
	s.mu.Lock()
	s.tempPath = temp
	s.mu.Unlock()

	s.setState(StateRetrieving)
	fetchStart := time.Now()
	fh, err := s.fetcher.StartToFile(ctx, s.MediaID, temp)
	if err != nil {
		return false, err
	}
	s.mu.Lock()
	s.fetchHandle = fh
	s.mu.Unlock()

	err = fh.Wait()
	observeFetch("download", fetchStart, err)
	if err != nil {
		if ctx.Err() != nil {
			return false, ErrAborted
		}
		return false, err
	}
	if ctx.Err() != nil {
		return false, ErrAborted
	}
	logging.Debug("session %s: downloaded to temp file: %s", s.ID, temp)

	transcodeStart := time.Now()
	th, err := s.transcoder.StartFromFile(ctx, temp, s.opts.DurationSeconds, s.opts.Spec)
	if err != nil {
		return false, err
	}
	s.mu.Lock()
	s.transcodeHandle = th
	s.mu.Unlock()
	s.setState(StateTranscoding)

	go s.logProgress(th)

	headersSent, streamErr := s.stream(ctx, w, th)

	aborted := errors.Is(streamErr, streaming.ErrClientGone)
	if aborted {
		s.killProcesses()
	}
	waitErr := th.Wait()
	observeTranscode(transcodeStart, waitErr)

	switch {
	case aborted:
		return headersSent, ErrAborted
	case ctx.Err() != nil:
		return headersSent, ErrAborted
	case streamErr != nil:
		return headersSent, streamErr
	case waitErr != nil:
		return headersSent, waitErr
	}
	return headersSent, nil
}

// stream waits for the first transcoded byte, then writes headers and
// flushes chunks to the client. Holding headers back until a byte
// exists keeps the failure path able to send a structured error body.
func (s *Session) stream(ctx context.Context, w http.ResponseWriter, th *transcode.Handle) (headersSent bool, err error) {
	br := bufio.NewReaderSize(th.Output(), 64*1024)
	if _, err := br.Peek(1); err != nil {
		// No output at all: the transcoder (or its producer) died before
		// emitting a byte. The real cause comes from Wait.
		return false, nil
	}

	w.Header().Set("Content-Type", "audio/mp4")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", s.MediaID+".m4a"))
	s.setState(StateStreaming)

	config := streaming.DefaultConfig()
	var reported int64
	config.OnProgress = func(n int64) {
		metrics.BytesStreamedTotal.Add(float64(n - reported))
		reported = n
	}

	written, copyErr := streaming.Copy(ctx, w, br, config)
	return written > 0, copyErr
}

// observeFetch records duration and outcome for one fetch tool run.
func observeFetch(operation string, start time.Time, err error) {
	metrics.FetchDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.FetchTotal.WithLabelValues(operation, status).Inc()
}

// observeTranscode records duration and outcome for one transcoder run.
func observeTranscode(start time.Time, err error) {
	metrics.TranscodeDuration.Observe(time.Since(start).Seconds())
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.TranscodesTotal.WithLabelValues(status).Inc()
}

// killProcesses terminates both child processes immediately. Used on
// client abort, where no graceful drain is wanted.
func (s *Session) killProcesses() {
	s.mu.Lock()
	fh, th := s.fetchHandle, s.transcodeHandle
	s.mu.Unlock()
	if fh != nil {
		fh.Kill()
	}
	if th != nil {
		th.Kill()
	}
}

// logProgress drains the transcoder's best-effort progress channel.
func (s *Session) logProgress(th *transcode.Handle) {
	for percent := range th.Progress() {
		logging.Debug("session %s: converting: %d%%", s.ID, percent)
	}
}
