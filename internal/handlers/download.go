package handlers

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"audio-bridge/internal/logging"
	"audio-bridge/internal/session"
)

// DownloadAudio retrieves the best audio encoding, transcodes it to
// stereo 128 kbps AAC and streams the result as an attachment. The
// delivery session owns both child processes and cleans up on every
// terminal path; once headers are out, failures can only terminate the
// connection.
// GET /api/download-audio/{mediaId}
func (h *Handlers) DownloadAudio(w http.ResponseWriter, r *http.Request) {
	mediaID := mux.Vars(r)["mediaId"]
	if !mediaIDPattern.MatchString(mediaID) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		writeJSON(w, errorBody{Error: "invalid media id", Message: "media id must be alphanumeric"})
		return
	}

	opts := session.Options{
		StreamMode: h.config.StreamMode,
		TempDir:    h.config.TempDir,
	}
	// A cached resolve gives the transcoder a duration for progress
	// reporting. Purely best-effort; a miss costs nothing.
	if info, ok := h.cache.Get(mediaID); ok {
		opts.DurationSeconds = info.DurationSeconds
	}

	sess := session.New(mediaID, h.fetcher, h.transcoder, opts)
	logging.Info("download started: %s (session %s)", mediaID, sess.ID)

	headersSent, err := sess.Run(r.Context(), w)
	if err == nil {
		return
	}

	if errors.Is(err, session.ErrAborted) {
		// Client went away; nothing to send and nothing to surface.
		logging.Debug("download aborted by client: %s (session %s)", mediaID, sess.ID)
		return
	}

	logging.Error("download failed: %s (session %s): %v", mediaID, sess.ID, err)
	if !headersSent {
		writeError(w, err)
	}
	// Headers already sent: the connection just ends short. There is no
	// way to retroactively signal failure over a started stream.
}
