package handler

import (
	"net/http"
	"time"
)

// SessionCounter reports the number of live position view sessions.
type SessionCounter interface {
	Sessions() int
}

// StatusHandler serves process metadata for the dashboard.
type StatusHandler struct {
	mode      string
	startedAt time.Time
	sessions  SessionCounter
}

// NewStatusHandler creates a StatusHandler.
func NewStatusHandler(mode string, startedAt time.Time, sessions SessionCounter) *StatusHandler {
	return &StatusHandler{mode: mode, startedAt: startedAt, sessions: sessions}
}

// GetStatus responds with the run mode, uptime and live session count.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	n := 0
	if h.sessions != nil {
		n = h.sessions.Sessions()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"mode":           h.mode,
		"uptime_seconds": int64(time.Since(h.startedAt).Seconds()),
		"sessions":       n,
	})
}
