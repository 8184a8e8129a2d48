package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/lpdesk/lpdesk/internal/domain"
)

// BulkPairSource reads v2 pair data for many pairs in one request.
type BulkPairSource interface {
	FetchBulkPairs(ctx context.Context, ids []string) ([]domain.PairData, error)
}

// FarmLists are the configured farm pair addresses per category.
type FarmLists struct {
	LP    []string
	Dual  []string
	Other []string
}

// FarmService serves the farm listing.
type FarmService struct {
	lists  FarmLists
	source BulkPairSource
}

// NewFarmService creates a FarmService.
func NewFarmService(lists FarmLists, source BulkPairSource) *FarmService {
	return &FarmService{lists: lists, source: source}
}

// Category returns the pair addresses of one farm category.
func (s *FarmService) Category(cat domain.FarmCategory) ([]string, error) {
	var ids []string
	switch cat {
	case domain.FarmLP:
		ids = s.lists.LP
	case domain.FarmDual:
		ids = s.lists.Dual
	case domain.FarmOther:
		ids = s.lists.Other
	default:
		return nil, fmt.Errorf("farm_service: category %q: %w", cat, domain.ErrNotFound)
	}
	return dedupIDs(ids), nil
}

// PairList concatenates the lp, dual and other lists in that order. Each
// address appears once, at its first position.
func (s *FarmService) PairList() []string {
	all := make([]string, 0, len(s.lists.LP)+len(s.lists.Dual)+len(s.lists.Other))
	all = append(all, s.lists.LP...)
	all = append(all, s.lists.Dual...)
	all = append(all, s.lists.Other...)
	return dedupIDs(all)
}

func dedupIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.ToLower(strings.TrimSpace(id))
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// BulkPairs returns pair data for every farm pair, in PairList order.
func (s *FarmService) BulkPairs(ctx context.Context) ([]domain.PairData, error) {
	ids := s.PairList()
	if len(ids) == 0 {
		return []domain.PairData{}, nil
	}
	pairs, err := s.source.FetchBulkPairs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("farm_service: bulk pairs: %w", err)
	}
	return pairs, nil
}
