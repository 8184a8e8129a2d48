package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/lpdesk/lpdesk/internal/domain"
)

// LockBackend is the liquidity lock REST backend.
type LockBackend interface {
	ListUserLocks(ctx context.Context, account string) ([]domain.Lock, error)
	UpdateLock(ctx context.Context, lockContract string, depositID int64) error
}

// LiquidityTokens lists the v2 LP tokens an account holds.
type LiquidityTokens interface {
	FetchLiquidityTokens(ctx context.Context, account string) ([]string, error)
}

// LockNotifier is told about locks that have been withdrawn.
type LockNotifier interface {
	LockWithdrawn(ctx context.Context, account string, l domain.Lock) error
}

// LockConfig selects which backend locks belong to this deployment.
type LockConfig struct {
	ChainID         string
	PositionManager common.Address
}

// LockService reports an account's liquidity locks, per schema, and keeps a
// history of them.
type LockService struct {
	backend  LockBackend
	tokens   LiquidityTokens
	store    domain.LockStore
	audit    domain.AuditStore
	notifier LockNotifier
	bus      domain.SignalBus
	cfg      LockConfig
	logger   *slog.Logger
}

// NewLockService creates a LockService. store, audit, notifier and bus may be
// nil.
func NewLockService(
	backend LockBackend,
	tokens LiquidityTokens,
	store domain.LockStore,
	audit domain.AuditStore,
	notifier LockNotifier,
	bus domain.SignalBus,
	cfg LockConfig,
	logger *slog.Logger,
) *LockService {
	return &LockService{
		backend:  backend,
		tokens:   tokens,
		store:    store,
		audit:    audit,
		notifier: notifier,
		bus:      bus,
		cfg:      cfg,
		logger:   logger,
	}
}

// FilterV2 keeps the locks on chainID whose liquidity contract is one of
// lpTokens.
func FilterV2(locks []domain.Lock, chainID string, lpTokens []common.Address) []domain.Lock {
	allowed := make(map[common.Address]bool, len(lpTokens))
	for _, t := range lpTokens {
		allowed[t] = true
	}
	out := []domain.Lock{}
	for _, l := range locks {
		if !sameChain(l.Event.ChainID, chainID) || l.LiquidityContract == nil {
			continue
		}
		if !common.IsHexAddress(l.LiquidityContract.TokenAddress) {
			continue
		}
		if allowed[common.HexToAddress(l.LiquidityContract.TokenAddress)] {
			out = append(out, l)
		}
	}
	return out
}

// FilterV3 keeps the locks on chainID whose liquidity contract is the
// position manager.
func FilterV3(locks []domain.Lock, chainID string, manager common.Address) []domain.Lock {
	out := []domain.Lock{}
	for _, l := range locks {
		if !sameChain(l.Event.ChainID, chainID) || l.LiquidityContract == nil {
			continue
		}
		addr := l.LiquidityContract.TokenAddress
		if common.IsHexAddress(addr) && common.HexToAddress(addr) == manager {
			out = append(out, l)
		}
	}
	return out
}

func sameChain(a, b string) bool {
	return strings.EqualFold(a, b)
}

// Locks returns account's locks for schema. No account, or a v2 account with
// no LP tokens, yields an empty list without calling the backend.
func (s *LockService) Locks(ctx context.Context, schema domain.SchemaVersion, account string) ([]domain.Lock, error) {
	if account == "" {
		return []domain.Lock{}, nil
	}
	if !common.IsHexAddress(account) {
		return nil, fmt.Errorf("lock_service: %q: %w", account, domain.ErrInvalidAccount)
	}

	var locks []domain.Lock
	switch schema {
	case domain.SchemaV2:
		ids, err := s.tokens.FetchLiquidityTokens(ctx, account)
		if err != nil {
			return nil, fmt.Errorf("lock_service: liquidity tokens: %w", err)
		}
		lpTokens := make([]common.Address, 0, len(ids))
		for _, id := range ids {
			if common.IsHexAddress(id) {
				lpTokens = append(lpTokens, common.HexToAddress(id))
			}
		}
		if len(lpTokens) == 0 {
			return []domain.Lock{}, nil
		}
		all, err := s.backend.ListUserLocks(ctx, account)
		if err != nil {
			return nil, fmt.Errorf("lock_service: list locks: %w", err)
		}
		locks = FilterV2(all, s.cfg.ChainID, lpTokens)
	case domain.SchemaV3:
		all, err := s.backend.ListUserLocks(ctx, account)
		if err != nil {
			return nil, fmt.Errorf("lock_service: list locks: %w", err)
		}
		locks = FilterV3(all, s.cfg.ChainID, s.cfg.PositionManager)
	default:
		return nil, fmt.Errorf("lock_service: schema %q: %w", schema, domain.ErrUnsupportedSchema)
	}

	s.record(ctx, account, schema, locks)
	return locks, nil
}

// record persists the snapshot and reports withdrawals. Failures here do not
// fail the request.
func (s *LockService) record(ctx context.Context, account string, schema domain.SchemaVersion, locks []domain.Lock) {
	if s.store != nil && len(locks) > 0 {
		withdrawn, err := s.store.UpsertBatch(ctx, account, schema, locks)
		if err != nil {
			s.logger.WarnContext(ctx, "lock_service: persist locks failed",
				slog.String("account", account),
				slog.String("error", err.Error()),
			)
		}
		s.reportWithdrawn(ctx, account, locks, withdrawn)
	}

	if s.bus == nil {
		return
	}
	evt, _ := json.Marshal(map[string]any{
		"event":   "locks_updated",
		"account": strings.ToLower(account),
		"schema":  schema,
		"count":   len(locks),
	})
	if pubErr := s.bus.Publish(ctx, ChannelLocks, evt); pubErr != nil {
		s.logger.WarnContext(ctx, "lock_service: publish failed",
			slog.String("account", account),
			slog.String("error", pubErr.Error()),
		)
	}
}

func (s *LockService) reportWithdrawn(ctx context.Context, account string, locks []domain.Lock, keys []domain.LockKey) {
	if len(keys) == 0 {
		return
	}
	wanted := make(map[domain.LockKey]bool, len(keys))
	for _, k := range keys {
		wanted[k] = true
	}

	for _, l := range locks {
		k := l.Key()
		k.LockContract = strings.ToLower(k.LockContract)
		if !wanted[k] {
			continue
		}

		if s.audit != nil {
			if err := s.audit.Log(ctx, "lock_withdrawn", map[string]any{
				"account":       strings.ToLower(account),
				"lock_contract": k.LockContract,
				"deposit_id":    k.DepositID,
				"amount":        l.Event.LockAmount,
			}); err != nil {
				s.logger.WarnContext(ctx, "lock_service: audit log failed",
					slog.String("error", err.Error()),
				)
			}
		}
		if s.notifier != nil {
			if err := s.notifier.LockWithdrawn(ctx, account, l); err != nil {
				s.logger.WarnContext(ctx, "lock_service: notify failed",
					slog.String("error", err.Error()),
				)
			}
		}
		s.logger.InfoContext(ctx, "lock_service: lock withdrawn",
			slog.String("account", account),
			slog.String("lock_contract", k.LockContract),
			slog.Int64("deposit_id", k.DepositID),
		)
	}
}

// Refresh asks the backend to re-read one lock deposit from chain.
func (s *LockService) Refresh(ctx context.Context, lockContract string, depositID int64) error {
	if !common.IsHexAddress(lockContract) {
		return fmt.Errorf("lock_service: contract %q: %w", lockContract, domain.ErrInvalidAddress)
	}
	if err := s.backend.UpdateLock(ctx, lockContract, depositID); err != nil {
		return fmt.Errorf("lock_service: update lock %s/%d: %w", lockContract, depositID, err)
	}

	if s.audit != nil {
		if err := s.audit.Log(ctx, "lock_refreshed", map[string]any{
			"lock_contract": strings.ToLower(lockContract),
			"deposit_id":    depositID,
		}); err != nil {
			s.logger.WarnContext(ctx, "lock_service: audit log failed",
				slog.String("error", err.Error()),
			)
		}
	}
	return nil
}

// History returns the stored lock snapshots of account.
func (s *LockService) History(ctx context.Context, account string, opts domain.ListOpts) ([]domain.StoredLock, error) {
	if s.store == nil {
		return []domain.StoredLock{}, nil
	}
	if !common.IsHexAddress(account) {
		return nil, fmt.Errorf("lock_service: %q: %w", account, domain.ErrInvalidAccount)
	}
	return s.store.ListByAccount(ctx, account, opts)
}

// Activity returns the audit trail of account, newest first. It is empty when
// no audit store is configured.
func (s *LockService) Activity(ctx context.Context, account string, opts domain.ListOpts) ([]domain.AuditEntry, error) {
	if s.audit == nil {
		return []domain.AuditEntry{}, nil
	}
	if !common.IsHexAddress(account) {
		return nil, fmt.Errorf("lock_service: %q: %w", account, domain.ErrInvalidAccount)
	}
	opts.Account = strings.ToLower(account)
	return s.audit.List(ctx, opts)
}

// Sync refreshes both schemas for account and returns the locks of both. It
// is what the indexer runs for every watched account.
func (s *LockService) Sync(ctx context.Context, account string) ([]domain.Lock, error) {
	var all []domain.Lock
	for _, schema := range []domain.SchemaVersion{domain.SchemaV2, domain.SchemaV3} {
		locks, err := s.Locks(ctx, schema, account)
		if err != nil {
			return all, err
		}
		all = append(all, locks...)
	}
	return all, nil
}

// KnownAccounts returns the accounts with stored lock history.
func (s *LockService) KnownAccounts(ctx context.Context) ([]string, error) {
	if s.store == nil {
		return nil, nil
	}
	return s.store.Accounts(ctx)
}
