package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"audio-bridge/internal/fetch"
	"audio-bridge/internal/logging"
	"audio-bridge/internal/mediainfo"
	"audio-bridge/internal/transcode"
)

// retryAfterSeconds is the hint returned with 429 responses. The
// upstream does not tell us how long it will throttle, so this is a
// conservative guess.
const retryAfterSeconds = 60

// writeJSON encodes v as JSON and writes it to the response writer.
// Any encoding or write errors are logged since we typically cannot
// recover from them in an HTTP handler context.
func writeJSON(w http.ResponseWriter, v interface{}) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("failed to encode JSON response: %v", err)
	}
}

// errorBody is the structured error envelope for non-2xx responses.
type errorBody struct {
	Error             string `json:"error"`
	Message           string `json:"message"`
	RetryAfterSeconds int    `json:"retryAfterSeconds,omitempty"`
}

// writeError maps err onto the API error taxonomy and writes the
// structured body. Must only be called before any response bytes have
// been written.
func writeError(w http.ResponseWriter, err error) {
	status, body := classifyError(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	writeJSON(w, body)
}

// classifyError converts an internal error into a status code and body.
func classifyError(err error) (int, errorBody) {
	switch {
	case errors.Is(err, mediainfo.ErrNoAudioFormats):
		return http.StatusNotFound, errorBody{
			Error:   "no audio formats found",
			Message: err.Error(),
		}
	case errors.Is(err, fetch.ErrNotFound):
		return http.StatusNotFound, errorBody{
			Error:   "media not found",
			Message: err.Error(),
		}
	case errors.Is(err, fetch.ErrRateLimited):
		return http.StatusTooManyRequests, errorBody{
			Error:             "rate limited by upstream",
			Message:           err.Error(),
			RetryAfterSeconds: retryAfterSeconds,
		}
	case errors.Is(err, fetch.ErrTimeout), errors.Is(err, fetch.ErrEmptyOutput):
		return http.StatusInternalServerError, errorBody{
			Error:   "failed to retrieve audio",
			Message: err.Error(),
		}
	case errors.Is(err, transcode.ErrTranscodeFailed):
		return http.StatusInternalServerError, errorBody{
			Error:   "conversion failed",
			Message: err.Error(),
		}
	default:
		return http.StatusInternalServerError, errorBody{
			Error:   "internal error",
			Message: err.Error(),
		}
	}
}
