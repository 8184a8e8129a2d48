package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/lpdesk/lpdesk/internal/domain"
	"github.com/lpdesk/lpdesk/internal/service"
)

// PairService defines the methods that the pair handler requires.
type PairService interface {
	Summary(ctx context.Context, schema domain.SchemaVersion, id string) (domain.PairSummary, error)
	Transactions(ctx context.Context, schema domain.SchemaVersion, id string, kind domain.TxnKind) ([]domain.TransactionRecord, error)
	Page(ctx context.Context, schema domain.SchemaVersion, id string) (service.PairPage, error)
	ArchivedDays(ctx context.Context, schema domain.SchemaVersion, id string) ([]string, error)
	ArchivedDay(ctx context.Context, schema domain.SchemaVersion, id, day string) ([]domain.TransactionRecord, error)
}

// PairHandler serves the pair analytics endpoints.
type PairHandler struct {
	pairs  PairService
	logger *slog.Logger
}

// NewPairHandler creates a PairHandler.
func NewPairHandler(pairs PairService, logger *slog.Logger) *PairHandler {
	return &PairHandler{pairs: pairs, logger: logger}
}

type transactionsResponse struct {
	Transactions []domain.TransactionRecord `json:"transactions"`
}

// GetSummary returns the header of the pair page. With ?full=true the
// transactions are included.
// GET /api/analytics/{version}/pair/{id}
func (h *PairHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	schema, err := parseSchema(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	id := r.PathValue("id")

	if queryBool(r, "full", false) {
		page, err := h.pairs.Page(r.Context(), schema, id)
		if err != nil {
			writeServiceError(w, r, h.logger, "failed to load pair", err)
			return
		}
		writeJSON(w, http.StatusOK, page)
		return
	}

	summary, err := h.pairs.Summary(r.Context(), schema, id)
	if err != nil {
		writeServiceError(w, r, h.logger, "failed to load pair", err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// ListTransactions returns the pair's normalized transactions, newest first.
// GET /api/analytics/{version}/pair/{id}/transactions?kind=swap
func (h *PairHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	schema, err := parseSchema(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	kind := domain.TxnKind(r.URL.Query().Get("kind"))
	switch kind {
	case "", domain.TxnAdd, domain.TxnRemove, domain.TxnSwap:
	default:
		writeError(w, http.StatusBadRequest, "kind must be add, remove or swap")
		return
	}

	records, err := h.pairs.Transactions(r.Context(), schema, r.PathValue("id"), kind)
	if err != nil {
		writeServiceError(w, r, h.logger, "failed to load transactions", err)
		return
	}
	writeJSON(w, http.StatusOK, transactionsResponse{Transactions: records})
}

// ListArchive returns the archived days of a pair.
// GET /api/analytics/{version}/pair/{id}/archive
func (h *PairHandler) ListArchive(w http.ResponseWriter, r *http.Request) {
	schema, err := parseSchema(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	days, err := h.pairs.ArchivedDays(r.Context(), schema, r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, h.logger, "failed to list archive", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"days": days})
}

// GetArchivedDay returns one archived day of transactions.
// GET /api/analytics/{version}/pair/{id}/archive/{day}
func (h *PairHandler) GetArchivedDay(w http.ResponseWriter, r *http.Request) {
	schema, err := parseSchema(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	records, err := h.pairs.ArchivedDay(r.Context(), schema, r.PathValue("id"), r.PathValue("day"))
	if err != nil {
		writeServiceError(w, r, h.logger, "failed to load archive", err)
		return
	}
	writeJSON(w, http.StatusOK, transactionsResponse{Transactions: records})
}
