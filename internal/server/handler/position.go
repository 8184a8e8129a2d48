package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/lpdesk/lpdesk/internal/domain"
)

// SessionHeader carries the view session id in both directions.
const SessionHeader = "X-Session-ID"

// PositionService defines the methods that the position handler requires.
type PositionService interface {
	View(ctx context.Context, sessionID, account string, prefs domain.Preferences) (string, domain.DerivedView, error)
	Drop(sessionID string) bool
}

// PositionHandler serves position-related HTTP endpoints.
type PositionHandler struct {
	positions PositionService
	logger    *slog.Logger
}

// NewPositionHandler creates a PositionHandler with the given service and logger.
func NewPositionHandler(positions PositionService, logger *slog.Logger) *PositionHandler {
	return &PositionHandler{
		positions: positions,
		logger:    logger,
	}
}

// GetView returns the derived position view of an account. The session id
// may come from the session query parameter or the X-Session-ID header; the
// one in use is always echoed in X-Session-ID.
// GET /api/positions?account=0x...&session=...&hide_closed=true&hide_farming=false
func (h *PositionHandler) GetView(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	session := q.Get("session")
	if session == "" {
		session = r.Header.Get(SessionHeader)
	}

	defaults := domain.DefaultPreferences()
	prefs := domain.Preferences{
		HideClosed:  queryBool(r, "hide_closed", defaults.HideClosed),
		HideFarming: queryBool(r, "hide_farming", defaults.HideFarming),
	}

	session, view, err := h.positions.View(r.Context(), session, q.Get("account"), prefs)
	if err != nil {
		writeServiceError(w, r, h.logger, "failed to load positions", err)
		return
	}

	w.Header().Set(SessionHeader, session)
	writeJSON(w, http.StatusOK, view)
}

// DropSession forgets the stabilization state of a view session.
// DELETE /api/positions/session/{id}
func (h *PositionHandler) DropSession(w http.ResponseWriter, r *http.Request) {
	if !h.positions.Drop(r.PathValue("id")) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
