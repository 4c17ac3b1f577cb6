package handlers

import (
	"net/http"
	"regexp"
	"time"

	"audio-bridge/internal/cache"
	"audio-bridge/internal/fetch"
	"audio-bridge/internal/startup"
	"audio-bridge/internal/transcode"
)

// Handlers bundles the shared dependencies of every HTTP handler. One
// instance is constructed in main and registered on the router; nothing
// here is ambient state.
type Handlers struct {
	cache      *cache.AudioInfoCache
	fetcher    *fetch.Fetcher
	transcoder *transcode.Transcoder
	config     *startup.Config
	started    time.Time
}

// New creates the handler set.
func New(c *cache.AudioInfoCache, f *fetch.Fetcher, t *transcode.Transcoder, config *startup.Config) *Handlers {
	return &Handlers{
		cache:      c,
		fetcher:    f,
		transcoder: t,
		config:     config,
		started:    time.Now(),
	}
}

// mediaIDPattern accepts the opaque identifier tokens we pass to the
// fetch tool. Identifiers never reach a shell, but rejecting junk early
// gives clients a clear 400 instead of a delayed tool error.
var mediaIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// ServiceDescriptor is the GET / response.
type ServiceDescriptor struct {
	Status     string   `json:"status"`
	Service    string   `json:"service"`
	Version    string   `json:"version"`
	Downloader string   `json:"downloader"`
	Endpoints  []string `json:"endpoints"`
}

// Root returns the service descriptor.
// GET /
func (h *Handlers) Root(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, ServiceDescriptor{
		Status:     "ok",
		Service:    "audio-bridge",
		Version:    startup.Version,
		Downloader: "yt-dlp",
		Endpoints: []string{
			"GET /api/audio-info/{mediaId}",
			"GET /api/download-audio/{mediaId}",
			"GET /health",
			"POST /api/clear-cache",
		},
	})
}

// ClearCache empties the metadata cache.
// POST /api/clear-cache
func (h *Handlers) ClearCache(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	h.cache.Clear()

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]interface{}{
		"message": "cache cleared",
		"size":    h.cache.Len(),
	})
}
