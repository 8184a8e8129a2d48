package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/lpdesk/lpdesk/internal/domain"
)

// FarmService defines the methods that the farm handler requires.
type FarmService interface {
	PairList() []string
	Category(cat domain.FarmCategory) ([]string, error)
	BulkPairs(ctx context.Context) ([]domain.PairData, error)
}

// FarmHandler serves the farm listing.
type FarmHandler struct {
	farms  FarmService
	logger *slog.Logger
}

// NewFarmHandler creates a FarmHandler.
func NewFarmHandler(farms FarmService, logger *slog.Logger) *FarmHandler {
	return &FarmHandler{farms: farms, logger: logger}
}

type farmPairsResponse struct {
	Addresses []string          `json:"addresses"`
	Pairs     []domain.PairData `json:"pairs"`
}

// ListPairs returns the merged farm pair list with current pair data.
// GET /api/farms/pairs
func (h *FarmHandler) ListPairs(w http.ResponseWriter, r *http.Request) {
	pairs, err := h.farms.BulkPairs(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, "failed to load farm pairs", err)
		return
	}
	writeJSON(w, http.StatusOK, farmPairsResponse{
		Addresses: h.farms.PairList(),
		Pairs:     pairs,
	})
}

// ListCategory returns the pair addresses of one farm category.
// GET /api/farms/{category}
func (h *FarmHandler) ListCategory(w http.ResponseWriter, r *http.Request) {
	ids, err := h.farms.Category(domain.FarmCategory(r.PathValue("category")))
	if err != nil {
		writeServiceError(w, r, h.logger, "failed to list farms", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"addresses": ids})
}
