package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/lpdesk/lpdesk/internal/domain"
)

// lockerKey is the rate limit bucket shared by every instance calling the
// lock backend.
const lockerKey = "locker"

// LockSource syncs an account's locks across both schemas.
type LockSource interface {
	Sync(ctx context.Context, account string) ([]domain.Lock, error)
	KnownAccounts(ctx context.Context) ([]string, error)
}

// Throttle blocks until another call under key is allowed.
type Throttle interface {
	Wait(ctx context.Context, key string, limit int, window time.Duration) error
}

// UnlockNotifier is told about locks approaching their unlock time.
type UnlockNotifier interface {
	LockUnlocking(ctx context.Context, account string, l domain.Lock, now time.Time) error
}

// LockSyncConfig tunes a LockSyncer.
type LockSyncConfig struct {
	// Accounts are synced in addition to those with stored history.
	Accounts []string
	// Rate calls per Window are allowed against the lock backend. Zero
	// disables throttling.
	Rate   int
	Window time.Duration
	// WarnWithin is how far ahead of an unlock an alert is sent. Zero
	// disables unlock alerts.
	WarnWithin time.Duration
}

// SyncStats summarises one lock sync run.
type SyncStats struct {
	Accounts int
	Locks    int
	Failed   int
	Warned   int
}

// LockSyncer refreshes the locks of every watched account.
type LockSyncer struct {
	source   LockSource
	throttle Throttle
	notifier UnlockNotifier
	cfg      LockSyncConfig
	logger   *slog.Logger
	now      func() time.Time

	mu     sync.Mutex
	warned map[string]bool
}

// NewLockSyncer creates a LockSyncer. throttle and notifier may be nil.
func NewLockSyncer(source LockSource, throttle Throttle, notifier UnlockNotifier, cfg LockSyncConfig, logger *slog.Logger) *LockSyncer {
	return &LockSyncer{
		source:   source,
		throttle: throttle,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
		warned:   make(map[string]bool),
	}
}

// Run syncs every watched account once. A failing account does not stop the
// others; all failures are returned joined.
func (s *LockSyncer) Run(ctx context.Context) (SyncStats, error) {
	accounts, err := s.accounts(ctx)
	if err != nil {
		return SyncStats{}, err
	}

	stats := SyncStats{Accounts: len(accounts)}
	var errs []error
	for _, account := range accounts {
		if s.throttle != nil && s.cfg.Rate > 0 {
			if err := s.throttle.Wait(ctx, lockerKey, s.cfg.Rate, s.cfg.Window); err != nil {
				return stats, errors.Join(append(errs, err)...)
			}
		}

		locks, err := s.source.Sync(ctx, account)
		if err != nil {
			stats.Failed++
			s.logger.WarnContext(ctx, "lock sync failed",
				slog.String("account", account),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Errorf("account %s: %w", account, err))
			continue
		}
		stats.Locks += len(locks)
		stats.Warned += s.warnUnlocking(ctx, account, locks)
	}

	s.logger.InfoContext(ctx, "lock sync complete",
		slog.Int("accounts", stats.Accounts),
		slog.Int("locks", stats.Locks),
		slog.Int("failed", stats.Failed),
		slog.Int("warned", stats.Warned),
	)
	return stats, errors.Join(errs...)
}

// accounts merges the configured accounts with those already stored,
// lowercased and sorted.
func (s *LockSyncer) accounts(ctx context.Context) ([]string, error) {
	known, err := s.source.KnownAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("pipeline: known accounts: %w", err)
	}
	seen := make(map[string]bool, len(known)+len(s.cfg.Accounts))
	var out []string
	for _, a := range append(append([]string{}, s.cfg.Accounts...), known...) {
		a = strings.ToLower(strings.TrimSpace(a))
		if a == "" || seen[a] {
			continue
		}
		seen[a] = true
		out = append(out, a)
	}
	sort.Strings(out)
	return out, nil
}

// warnUnlocking alerts once per lock that unlocks within WarnWithin.
func (s *LockSyncer) warnUnlocking(ctx context.Context, account string, locks []domain.Lock) int {
	if s.notifier == nil || s.cfg.WarnWithin <= 0 {
		return 0
	}
	now := s.now()
	sent := 0
	for _, l := range locks {
		if l.Event.IsWithdrawn || l.Event.UnlockTime <= 0 {
			continue
		}
		left := time.Unix(l.Event.UnlockTime, 0).Sub(now)
		if left <= 0 || left > s.cfg.WarnWithin {
			continue
		}

		key := strings.ToLower(l.Event.LockContractAddress) + "#" + fmt.Sprint(l.Event.LockDepositID)
		s.mu.Lock()
		done := s.warned[key]
		s.warned[key] = true
		s.mu.Unlock()
		if done {
			continue
		}

		if err := s.notifier.LockUnlocking(ctx, account, l, now); err != nil {
			s.logger.WarnContext(ctx, "unlock alert failed",
				slog.String("account", account),
				slog.String("error", err.Error()),
			)
			continue
		}
		sent++
	}
	return sent
}
