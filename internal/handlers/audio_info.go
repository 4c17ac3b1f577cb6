package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"audio-bridge/internal/logging"
	"audio-bridge/internal/mediainfo"
	"audio-bridge/internal/metrics"
)

// AudioInfo resolves the best audio encoding for a media item and
// returns its metadata with size estimates. Results are cached with a
// TTL; a hit skips the fetch tool entirely.
// GET /api/audio-info/{mediaId}
func (h *Handlers) AudioInfo(w http.ResponseWriter, r *http.Request) {
	mediaID := mux.Vars(r)["mediaId"]
	if !mediaIDPattern.MatchString(mediaID) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		writeJSON(w, errorBody{Error: "invalid media id", Message: "media id must be alphanumeric"})
		return
	}

	if info, ok := h.cache.Get(mediaID); ok {
		metrics.CacheHits.Inc()
		logging.Debug("audio-info cache hit for %s", mediaID)
		w.Header().Set("Content-Type", "application/json")
		writeJSON(w, info)
		return
	}
	metrics.CacheMisses.Inc()

	info, err := h.resolve(r, mediaID)
	if err != nil {
		logging.Error("audio-info failed for %s: %v", mediaID, err)
		writeError(w, err)
		return
	}

	h.cache.Put(mediaID, info)

	logging.Info("audio-info resolved: %s (%s)", mediaID, info.Title)
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, info)
}

// resolve runs a metadata probe and projects it onto the best audio
// format.
func (h *Handlers) resolve(r *http.Request, mediaID string) (*mediainfo.AudioInfo, error) {
	start := time.Now()
	catalog, err := h.fetcher.Resolve(r.Context(), mediaID)
	metrics.FetchDuration.WithLabelValues("resolve").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.FetchTotal.WithLabelValues("resolve", "error").Inc()
		return nil, err
	}
	metrics.FetchTotal.WithLabelValues("resolve", "success").Inc()

	return mediainfo.Resolve(catalog)
}
