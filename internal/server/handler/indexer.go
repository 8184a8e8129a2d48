package handler

import (
	"log/slog"
	"net/http"
	"time"
)

// IndexerHandler lets operators request an out-of-schedule indexer cycle.
type IndexerHandler struct {
	logger    *slog.Logger
	triggerCh chan<- struct{}
}

// NewIndexerHandler creates an IndexerHandler. triggerCh may be nil when the
// process does not run the indexer.
func NewIndexerHandler(triggerCh chan<- struct{}, logger *slog.Logger) *IndexerHandler {
	return &IndexerHandler{triggerCh: triggerCh, logger: logger}
}

// Trigger enqueues one indexer cycle. A trigger that is already pending is
// not duplicated.
// POST /api/indexer/trigger
func (h *IndexerHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	if h.triggerCh == nil {
		writeError(w, http.StatusServiceUnavailable, "indexer is not running in this process")
		return
	}

	h.logger.InfoContext(r.Context(), "handler: indexer trigger requested")
	select {
	case h.triggerCh <- struct{}{}:
	default:
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"status":       "accepted",
		"requested_at": time.Now().UTC().Format(time.RFC3339),
	})
}
