package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/lpdesk/lpdesk/internal/domain"
)

// LockService defines the methods that the lock handler requires.
type LockService interface {
	Locks(ctx context.Context, schema domain.SchemaVersion, account string) ([]domain.Lock, error)
	Refresh(ctx context.Context, lockContract string, depositID int64) error
	History(ctx context.Context, account string, opts domain.ListOpts) ([]domain.StoredLock, error)
	Activity(ctx context.Context, account string, opts domain.ListOpts) ([]domain.AuditEntry, error)
}

// LockHandler serves the liquidity lock endpoints.
type LockHandler struct {
	locks  LockService
	logger *slog.Logger
}

// NewLockHandler creates a LockHandler.
func NewLockHandler(locks LockService, logger *slog.Logger) *LockHandler {
	return &LockHandler{locks: locks, logger: logger}
}

type listLocksResponse struct {
	Locks []domain.Lock `json:"locks"`
}

// ListLocks returns the account's locks for one schema.
// GET /api/locks/{version}?account=0x...
func (h *LockHandler) ListLocks(w http.ResponseWriter, r *http.Request) {
	schema, err := parseSchema(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	locks, err := h.locks.Locks(r.Context(), schema, r.URL.Query().Get("account"))
	if err != nil {
		writeServiceError(w, r, h.logger, "failed to list locks", err)
		return
	}
	writeJSON(w, http.StatusOK, listLocksResponse{Locks: locks})
}

// RefreshLock asks the lock backend to re-read a deposit.
// PUT /api/locks/{contract}/{deposit}
func (h *LockHandler) RefreshLock(w http.ResponseWriter, r *http.Request) {
	deposit, err := strconv.ParseInt(r.PathValue("deposit"), 10, 64)
	if err != nil || deposit < 0 {
		writeError(w, http.StatusBadRequest, "deposit must be a non-negative integer")
		return
	}

	if err := h.locks.Refresh(r.Context(), r.PathValue("contract"), deposit); err != nil {
		writeServiceError(w, r, h.logger, "failed to refresh lock", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "refreshed"})
}

// ListHistory returns stored lock snapshots.
// GET /api/locks/history?account=0x...&limit=50&offset=0
func (h *LockHandler) ListHistory(w http.ResponseWriter, r *http.Request) {
	account := r.URL.Query().Get("account")
	if account == "" {
		writeError(w, http.StatusBadRequest, "account query parameter required")
		return
	}

	history, err := h.locks.History(r.Context(), account, parseListOpts(r))
	if err != nil {
		writeServiceError(w, r, h.logger, "failed to list lock history", err)
		return
	}
	if history == nil {
		history = []domain.StoredLock{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": history})
}

// ListActivity returns the recorded lock events of an account.
// GET /api/locks/activity?account=0x...&event=lock_withdrawn&limit=50
func (h *LockHandler) ListActivity(w http.ResponseWriter, r *http.Request) {
	account := r.URL.Query().Get("account")
	if account == "" {
		writeError(w, http.StatusBadRequest, "account query parameter required")
		return
	}

	opts := parseListOpts(r)
	opts.Event = r.URL.Query().Get("event")
	entries, err := h.locks.Activity(r.Context(), account, opts)
	if err != nil {
		writeServiceError(w, r, h.logger, "failed to list lock activity", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"activity": entries})
}
