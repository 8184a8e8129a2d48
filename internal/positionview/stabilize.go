package positionview

import (
	"slices"

	"github.com/lpdesk/lpdesk/internal/domain"
)

// State is the stabilization cache of a single viewing session. The zero value
// is the empty state. A State must not be shared between sessions.
type State struct {
	account  string
	tracking bool
	last     []domain.Position
	// masked is set after a ready fetch came back empty and the cached list
	// was shown in its place.
	masked bool
}

// Account returns the account the state is tracking, or "" when empty.
func (s State) Account() string { return s.account }

// Cached returns a copy of the last non-empty list for the tracked account.
func (s State) Cached() []domain.Position { return slices.Clone(s.last) }

// Stabilize decides which list to show for account given a freshly filtered
// list and the status of the fetch that produced it. It returns the next
// state, the list to show, and whether that list came from the cache.
//
// Transitions:
//   - a different account drops the cache and the fresh list is shown as is,
//     even when empty;
//   - a non-empty fresh list is shown and becomes the cache;
//   - an empty fresh list while the fetch is loading or failed shows the cache;
//   - an empty fresh list from a ready fetch shows the cache once, and a second
//     consecutive ready-empty result clears it.
func Stabilize(s State, account string, status domain.FetchStatus, fresh []domain.Position) (State, []domain.Position, bool) {
	if !s.tracking || s.account != account {
		next := State{account: account, tracking: true}
		if len(fresh) > 0 {
			next.last = slices.Clone(fresh)
		}
		return next, fresh, false
	}

	if len(fresh) > 0 {
		s.last = slices.Clone(fresh)
		s.masked = false
		return s, fresh, false
	}

	if len(s.last) == 0 {
		s.masked = false
		return s, fresh, false
	}

	switch status {
	case domain.FetchLoading, domain.FetchFailed:
		return s, slices.Clone(s.last), true
	default:
		if s.masked {
			s.last = nil
			s.masked = false
			return s, fresh, false
		}
		s.masked = true
		return s, slices.Clone(s.last), true
	}
}
