package session

import (
	"context"
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"audio-bridge/internal/fetch"
	"audio-bridge/internal/transcode"
)

const testURLTemplate = "https://media.example/watch?v=%s"

// passthroughTranscoder mimics ffmpeg: it locates the -i argument and
// copies the input to stdout.
const passthroughTranscoder = `in=""
prev=""
for a in "$@"; do
  if [ "$prev" = "-i" ]; then in="$a"; fi
  prev="$a"
done
if [ "$in" = "pipe:0" ]; then cat; else cat "$in"; fi
`

// fileWriterFetcher mimics yt-dlp -o <path>: it writes its payload to
// the requested output file.
const fileWriterFetcher = `out=""
prev=""
for a in "$@"; do
  if [ "$prev" = "-o" ]; then out="$a"; fi
  prev="$a"
done
if [ "$out" = "-" ]; then printf 'normalized-audio'; else printf 'normalized-audio' > "$out"; fi
`

func writeStub(t *testing.T, name, script string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755); err != nil {
		t.Fatalf("failed to write stub %s: %v", name, err)
	}
	return path
}

func newTestSession(t *testing.T, fetchScript, transcodeScript string, opts Options) *Session {
	t.Helper()
	fetcher := fetch.New(writeStub(t, "fetch-stub", fetchScript), testURLTemplate, "", 30*time.Second, 1<<20)
	transcoder := transcode.New(writeStub(t, "transcode-stub", transcodeScript))
	if opts.TempDir == "" {
		opts.TempDir = t.TempDir()
	}
	return New("abc123", fetcher, transcoder, opts)
}

func tempFiles(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("reading temp dir: %v", err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestStreamingDelivery(t *testing.T) {
	sess := newTestSession(t, fileWriterFetcher, passthroughTranscoder, Options{StreamMode: true})

	w := httptest.NewRecorder()
	headersSent, err := sess.Run(context.Background(), w)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if !headersSent {
		t.Error("expected headers to be sent")
	}
	if sess.State() != StateCompleted {
		t.Errorf("state = %s, want completed", sess.State())
	}

	if got := w.Body.String(); got != "normalized-audio" {
		t.Errorf("body = %q", got)
	}
	if ct := w.Header().Get("Content-Type"); ct != "audio/mp4" {
		t.Errorf("Content-Type = %q, want audio/mp4", ct)
	}
	if cd := w.Header().Get("Content-Disposition"); cd != `attachment; filename="abc123.m4a"` {
		t.Errorf("Content-Disposition = %q", cd)
	}
}

func TestBufferedDelivery(t *testing.T) {
	tempDir := t.TempDir()
	sess := newTestSession(t, fileWriterFetcher, passthroughTranscoder, Options{StreamMode: false, TempDir: tempDir})

	w := httptest.NewRecorder()
	headersSent, err := sess.Run(context.Background(), w)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if !headersSent {
		t.Error("expected headers to be sent")
	}
	if sess.State() != StateCompleted {
		t.Errorf("state = %s, want completed", sess.State())
	}
	if got := w.Body.String(); got != "normalized-audio" {
		t.Errorf("body = %q", got)
	}
	if files := tempFiles(t, tempDir); len(files) != 0 {
		t.Errorf("temp files left behind after success: %v", files)
	}
}

func TestRetrievalFailureCleansUp(t *testing.T) {
	tempDir := t.TempDir()
	sess := newTestSession(t, `echo "ERROR: boom" >&2; exit 1`, passthroughTranscoder, Options{StreamMode: false, TempDir: tempDir})

	w := httptest.NewRecorder()
	headersSent, err := sess.Run(context.Background(), w)
	if err == nil {
		t.Fatal("expected an error")
	}
	if headersSent {
		t.Error("no headers should be sent on early failure")
	}
	if sess.State() != StateFailed {
		t.Errorf("state = %s, want failed", sess.State())
	}
	if files := tempFiles(t, tempDir); len(files) != 0 {
		t.Errorf("temp files left behind after failure: %v", files)
	}
}

func TestTranscodeFailureBeforeOutput(t *testing.T) {
	sess := newTestSession(t, fileWriterFetcher, `cat > /dev/null; echo "Invalid data found" >&2; exit 1`, Options{StreamMode: true})

	w := httptest.NewRecorder()
	headersSent, err := sess.Run(context.Background(), w)
	if !errors.Is(err, transcode.ErrTranscodeFailed) {
		t.Fatalf("Run error = %v, want ErrTranscodeFailed", err)
	}
	if headersSent {
		t.Error("no headers should be sent when the transcoder produced nothing")
	}
	if sess.State() != StateFailed {
		t.Errorf("state = %s, want failed", sess.State())
	}
	if w.Body.Len() != 0 {
		t.Errorf("body should be empty, got %d bytes", w.Body.Len())
	}
}

func TestTranscodeFailureReleasesFetcher(t *testing.T) {
	// The transcoder dies without consuming any input while the producer
	// keeps writing. The session must kill the producer right away
	// instead of waiting out its execution cap on a full pipe.
	sess := newTestSession(t, `cat /dev/zero`, `exit 1`, Options{StreamMode: true})

	w := httptest.NewRecorder()
	start := time.Now()
	headersSent, err := sess.Run(context.Background(), w)
	elapsed := time.Since(start)

	if !errors.Is(err, transcode.ErrTranscodeFailed) {
		t.Fatalf("Run error = %v, want ErrTranscodeFailed", err)
	}
	if headersSent {
		t.Error("no headers should be sent")
	}
	if sess.State() != StateFailed {
		t.Errorf("state = %s, want failed", sess.State())
	}
	if elapsed > 5*time.Second {
		t.Errorf("Run took %s, producer was not killed promptly", elapsed)
	}
}

func TestClientAbortMidStream(t *testing.T) {
	// A fetch stub that keeps producing so the stream stays live until
	// the client goes away.
	slowFetcher := `i=0
while [ $i -lt 200 ]; do
  printf 'xxxxxxxxxxxxxxxx'
  sleep 0.05
  i=$((i+1))
done`

	sess := newTestSession(t, slowFetcher, passthroughTranscoder, Options{StreamMode: true})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(300 * time.Millisecond)
		cancel()
	}()

	w := httptest.NewRecorder()
	start := time.Now()
	_, err := sess.Run(ctx, w)
	elapsed := time.Since(start)

	if !errors.Is(err, ErrAborted) {
		t.Fatalf("Run error = %v, want ErrAborted", err)
	}
	if sess.State() != StateAborted {
		t.Errorf("state = %s, want aborted", sess.State())
	}
	// Teardown must be immediate, not wait out the producer.
	if elapsed > 5*time.Second {
		t.Errorf("abort took %s, processes were not killed promptly", elapsed)
	}
}

func TestAbortDuringBufferedRetrieval(t *testing.T) {
	tempDir := t.TempDir()
	sess := newTestSession(t, `sleep 10`, passthroughTranscoder, Options{StreamMode: false, TempDir: tempDir})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	w := httptest.NewRecorder()
	headersSent, err := sess.Run(ctx, w)
	if !errors.Is(err, ErrAborted) {
		t.Fatalf("Run error = %v, want ErrAborted", err)
	}
	if headersSent {
		t.Error("no headers should be sent on abort during retrieval")
	}
	if sess.State() != StateAborted {
		t.Errorf("state = %s, want aborted", sess.State())
	}
	if files := tempFiles(t, tempDir); len(files) != 0 {
		t.Errorf("temp files left behind after abort: %v", files)
	}
}

func TestConcurrentSessionsAreIndependent(t *testing.T) {
	type result struct {
		err  error
		body string
	}
	results := make(chan result, 2)

	for i := 0; i < 2; i++ {
		sess := newTestSession(t, fileWriterFetcher, passthroughTranscoder, Options{StreamMode: true})
		go func() {
			w := httptest.NewRecorder()
			_, err := sess.Run(context.Background(), w)
			results <- result{err: err, body: w.Body.String()}
		}()
	}

	for i := 0; i < 2; i++ {
		select {
		case r := <-results:
			if r.err != nil {
				t.Errorf("session returned error: %v", r.err)
			}
			if r.body != "normalized-audio" {
				t.Errorf("body = %q", r.body)
			}
		case <-time.After(10 * time.Second):
			t.Fatal("sessions blocked on each other")
		}
	}
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateCreated, "created"},
		{StateRetrieving, "retrieving"},
		{StateTranscoding, "transcoding"},
		{StateStreaming, "streaming"},
		{StateCompleted, "completed"},
		{StateFailed, "failed"},
		{StateAborted, "aborted"},
		{State(42), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}

func TestTerminalStates(t *testing.T) {
	for _, s := range []State{StateCompleted, StateFailed, StateAborted} {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	for _, s := range []State{StateCreated, StateRetrieving, StateTranscoding, StateStreaming} {
		if s.Terminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}
