package positionview

import "github.com/lpdesk/lpdesk/internal/domain"

// Derive runs the whole pipeline for one fetch result. It has no side effects
// beyond the returned state, so calling it twice with the same inputs yields
// the same view.
//
// A cached list is filtered again with the current preferences, because the
// preferences may have changed since it was cached.
func Derive(s State, account string, res domain.PositionsResult, prefs domain.Preferences) (State, domain.DerivedView) {
	if account == "" {
		return State{}, domain.DerivedView{
			Positions: []domain.Position{},
			Status:    res.Status,
		}
	}

	// A late result for another account says nothing about this one; it is
	// read as "still loading" so it can neither consume nor clear the mask.
	status, positions := res.Status, res.Positions
	if res.Account != "" && res.Account != account {
		status, positions = domain.FetchLoading, nil
	}

	open, closed := Classify(positions)
	fresh := Filter(open, closed, prefs)

	next, shown, stabilized := Stabilize(s, account, status, fresh)
	if stabilized {
		o, c := Classify(shown)
		shown = Filter(o, c, prefs)
	}

	ranked, newest := Rank(shown)
	return next, domain.DerivedView{
		Account:    account,
		Positions:  ranked,
		Newest:     newest,
		Status:     status,
		Stabilized: stabilized,
	}
}
