package streaming

import (
	"context"
	"errors"
	"io"
	"net/http"
)

// ErrClientGone indicates the client disconnected before the stream
// completed. It is detected via the request context or a failed write.
var ErrClientGone = errors.New("client disconnected")

// Config controls chunked streaming behavior.
type Config struct {
	// ChunkSize is the read/write unit. Smaller chunks flush more often
	// and react faster to cancellation.
	ChunkSize int

	// OnProgress, when non-nil, is called after each flushed chunk with
	// the running byte total.
	OnProgress func(bytesWritten int64)
}

// DefaultConfig returns the streaming defaults used for audio delivery.
func DefaultConfig() Config {
	return Config{ChunkSize: 64 * 1024}
}

// Copy streams r to w in chunks, flushing after every chunk so bytes
// reach the client as they are produced. It stops with ErrClientGone as
// soon as the context is canceled or a write fails. The byte count
// returned covers everything handed to the underlying writer.
func Copy(ctx context.Context, w http.ResponseWriter, r io.Reader, config Config) (int64, error) {
	if config.ChunkSize <= 0 {
		config.ChunkSize = DefaultConfig().ChunkSize
	}

	flusher, _ := w.(http.Flusher)
	buf := make([]byte, config.ChunkSize)
	var written int64

	for {
		select {
		case <-ctx.Done():
			return written, ErrClientGone
		default:
		}

		n, readErr := r.Read(buf)
		if n > 0 {
			wn, writeErr := w.Write(buf[:n])
			written += int64(wn)
			if writeErr != nil {
				// A failed response write means the peer is gone.
				return written, ErrClientGone
			}
			if flusher != nil {
				flusher.Flush()
			}
			if config.OnProgress != nil {
				config.OnProgress(written)
			}
		}
		if readErr != nil {
			if readErr == io.EOF {
				return written, nil
			}
			return written, readErr
		}
	}
}
