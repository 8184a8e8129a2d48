package positionview

import "github.com/lpdesk/lpdesk/internal/domain"

// Filter builds the candidate list from classified positions:
// farming positions first (unless hidden), then the remaining open ones, then
// closed ones (unless hidden). A farming position is taken out of the open
// segment so it never shows up twice.
func Filter(open, closed []domain.Position, prefs domain.Preferences) []domain.Position {
	out := make([]domain.Position, 0, len(open)+len(closed))
	if !prefs.HideFarming {
		out = append(out, Farming(open)...)
	}
	for _, p := range open {
		if !p.OnFarming {
			out = append(out, p)
		}
	}
	if !prefs.HideClosed {
		out = append(out, closed...)
	}
	return out
}
