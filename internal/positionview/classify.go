// Package positionview derives the display-ready position list for one
// account: classification, preference filtering, refetch stabilization and
// ranking. Every function here is pure; callers own the State value.
package positionview

import "github.com/lpdesk/lpdesk/internal/domain"

// Classify splits positions into open and closed buckets. Relative order is
// preserved within each bucket. Both results are non-nil.
func Classify(ps []domain.Position) (open, closed []domain.Position) {
	open = make([]domain.Position, 0, len(ps))
	closed = make([]domain.Position, 0)
	for _, p := range ps {
		if p.IsClosed() {
			closed = append(closed, p)
			continue
		}
		open = append(open, p)
	}
	return open, closed
}

// Farming returns the open positions currently staked in a farming center.
func Farming(open []domain.Position) []domain.Position {
	out := make([]domain.Position, 0)
	for _, p := range open {
		if p.OnFarming {
			out = append(out, p)
		}
	}
	return out
}
