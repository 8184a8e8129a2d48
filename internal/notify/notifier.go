// Package notify delivers operator alerts about liquidity locks. Alerts are
// dispatched to every registered sender (Telegram, Discord) and can be
// filtered by event type.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lpdesk/lpdesk/internal/domain"
)

// Event types.
const (
	EventLockWithdrawn = "lock_withdrawn"
	EventLockUnlocking = "lock_unlocking"
	EventIndexerError  = "indexer_error"
)

// Sender is the interface that each notification channel must implement.
type Sender interface {
	// Send delivers a notification with the given title and message body.
	Send(ctx context.Context, title, message string) error
	// Name returns a human-readable identifier for the sender (e.g. "telegram").
	Name() string
}

// Notifier dispatches notifications to one or more Senders. Notify only
// forwards events in the allowed set; an empty set allows everything.
type Notifier struct {
	senders []Sender
	events  map[string]bool
	logger  *slog.Logger
}

// NewNotifier creates a Notifier that will deliver to the given senders.
func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		if e = strings.TrimSpace(e); e != "" {
			allowed[e] = true
		}
	}
	return &Notifier{
		senders: senders,
		events:  allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Notify sends a notification to all senders if event is allowed.
func (n *Notifier) Notify(ctx context.Context, event, title, message string) error {
	if len(n.events) > 0 && !n.events[event] {
		n.logger.DebugContext(ctx, "event filtered out",
			slog.String("event", event),
		)
		return nil
	}

	return n.dispatch(ctx, title, message)
}

// LockWithdrawn reports a lock that has been withdrawn since it was last seen.
func (n *Notifier) LockWithdrawn(ctx context.Context, account string, l domain.Lock) error {
	title := "Liquidity lock withdrawn"
	return n.Notify(ctx, EventLockWithdrawn, title, describeLock(account, l))
}

// LockUnlocking reports a lock whose unlock time falls within the warning
// window.
func (n *Notifier) LockUnlocking(ctx context.Context, account string, l domain.Lock, now time.Time) error {
	left := time.Unix(l.Event.UnlockTime, 0).Sub(now).Round(time.Minute)
	title := fmt.Sprintf("Liquidity lock unlocks in %s", left)
	return n.Notify(ctx, EventLockUnlocking, title, describeLock(account, l))
}

func describeLock(account string, l domain.Lock) string {
	var b strings.Builder
	fmt.Fprintf(&b, "account: %s\n", account)
	name := l.Pair.TokenSymbol
	if name == "" {
		name = l.Token.TokenSymbol
	}
	if name != "" {
		fmt.Fprintf(&b, "pair: %s\n", name)
	}
	fmt.Fprintf(&b, "deposit: %s #%d\n", l.Event.LockContractAddress, l.Event.LockDepositID)
	if l.Event.LockAmount != "" {
		fmt.Fprintf(&b, "amount: %s\n", l.Event.LockAmount)
	}
	if l.Event.UnlockTime > 0 {
		fmt.Fprintf(&b, "unlock: %s", time.Unix(l.Event.UnlockTime, 0).UTC().Format(time.RFC3339))
	}
	return strings.TrimRight(b.String(), "\n")
}

// dispatch sends to every sender. A failing sender does not stop delivery to
// the others; all failures are returned joined.
func (n *Notifier) dispatch(ctx context.Context, title, message string) error {
	if len(n.senders) == 0 {
		return nil
	}

	var errs []error
	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		n.logger.DebugContext(ctx, "notification sent",
			slog.String("sender", s.Name()),
			slog.String("title", title),
		)
	}

	if len(errs) > 0 {
		return fmt.Errorf("notify: %d sender(s) failed: %w", len(errs), errors.Join(errs...))
	}
	return nil
}
