package api

import (
	"net/http"
	"time"

	"tripnav/internal/buildinfo"
)

// DebugJSON reports build information and the effective non-secret settings.
func (s *Server) DebugJSON(w http.ResponseWriter, r *http.Request) {
	info := map[string]any{
		"build":  buildinfo.Info(),
		"time":   time.Now().UTC().Format(time.RFC3339),
		"config": s.Settings,
	}
	if s.Auth != nil {
		info["auth_mode"] = s.Auth.Mode()
	}
	writeJSON(w, http.StatusOK, info)
}
