package positionview

import (
	"math/big"
	"slices"

	"github.com/lpdesk/lpdesk/internal/domain"
)

// Rank returns a copy of ps sorted ascending by token id, and the largest
// token id in the set. Newest is nil when ps is empty. Positions without an id
// sort first and never become newest.
func Rank(ps []domain.Position) ([]domain.Position, *big.Int) {
	out := slices.Clone(ps)
	slices.SortStableFunc(out, func(a, b domain.Position) int {
		return compareID(a.TokenID, b.TokenID)
	})

	var newest *big.Int
	for _, p := range out {
		if p.TokenID == nil {
			continue
		}
		if newest == nil || p.TokenID.Cmp(newest) > 0 {
			newest = p.TokenID
		}
	}
	if newest != nil {
		newest = new(big.Int).Set(newest)
	}
	return out, newest
}

func compareID(a, b *big.Int) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	return a.Cmp(b)
}
