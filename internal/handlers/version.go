package handlers

import (
	"net/http"

	"audio-bridge/internal/startup"
)

// GetVersion returns build information.
// GET /version
func (h *Handlers) GetVersion(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, startup.GetBuildInfo())
}
