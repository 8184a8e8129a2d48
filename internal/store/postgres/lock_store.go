package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lpdesk/lpdesk/internal/domain"
)

// LockStore implements domain.LockStore using PostgreSQL. Each row is the
// latest snapshot of one lock deposit as seen for one account.
type LockStore struct {
	pool *pgxpool.Pool
}

// NewLockStore creates a new LockStore backed by the given connection pool.
func NewLockStore(pool *pgxpool.Pool) *LockStore {
	return &LockStore{pool: pool}
}

const lockSelectCols = `account, schema, payload, is_withdrawn, first_seen, last_seen`

func scanLockRow(row pgx.Row) (domain.StoredLock, error) {
	var sl domain.StoredLock
	var schema string
	var payload []byte
	if err := row.Scan(&sl.Account, &schema, &payload, &sl.IsWithdrawn, &sl.FirstSeen, &sl.LastSeen); err != nil {
		return domain.StoredLock{}, err
	}
	sl.Schema = domain.SchemaVersion(schema)
	if err := json.Unmarshal(payload, &sl.Lock); err != nil {
		return domain.StoredLock{}, fmt.Errorf("unmarshal lock payload: %w", err)
	}
	return sl, nil
}

// UpsertBatch stores the latest snapshot of every lock in one transaction and
// reports which previously active locks are now withdrawn.
func (s *LockStore) UpsertBatch(ctx context.Context, account string, schema domain.SchemaVersion, locks []domain.Lock) ([]domain.LockKey, error) {
	if len(locks) == 0 {
		return nil, nil
	}
	account = strings.ToLower(account)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("postgres: begin lock upsert: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx,
		`SELECT lock_contract, deposit_id, is_withdrawn FROM lock_snapshots WHERE account = $1 FOR UPDATE`,
		account,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: read previous locks: %w", err)
	}
	previous := make(map[domain.LockKey]bool)
	for rows.Next() {
		var k domain.LockKey
		var withdrawn bool
		if err := rows.Scan(&k.LockContract, &k.DepositID, &withdrawn); err != nil {
			rows.Close()
			return nil, fmt.Errorf("postgres: scan previous lock: %w", err)
		}
		previous[k] = withdrawn
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: read previous locks rows: %w", err)
	}

	const upsert = `
		INSERT INTO lock_snapshots (
			account, lock_contract, deposit_id, schema, chain_id,
			token_address, unlock_time, is_withdrawn, payload
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (account, lock_contract, deposit_id) DO UPDATE SET
			schema        = EXCLUDED.schema,
			chain_id      = EXCLUDED.chain_id,
			token_address = EXCLUDED.token_address,
			unlock_time   = EXCLUDED.unlock_time,
			is_withdrawn  = EXCLUDED.is_withdrawn,
			payload       = EXCLUDED.payload,
			last_seen     = NOW()`

	batch := &pgx.Batch{}
	var withdrawn []domain.LockKey
	for _, l := range locks {
		payload, err := json.Marshal(l)
		if err != nil {
			return nil, fmt.Errorf("postgres: marshal lock: %w", err)
		}
		k := normalizeKey(l.Key())
		tokenAddr := ""
		if l.LiquidityContract != nil {
			tokenAddr = strings.ToLower(l.LiquidityContract.TokenAddress)
		}
		batch.Queue(upsert,
			account, k.LockContract, k.DepositID, string(schema), l.Event.ChainID,
			tokenAddr, l.Event.UnlockTime, l.Event.IsWithdrawn, payload,
		)

		if was, seen := previous[k]; seen && !was && l.Event.IsWithdrawn {
			withdrawn = append(withdrawn, k)
		}
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return nil, fmt.Errorf("postgres: upsert locks: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("postgres: commit lock upsert: %w", err)
	}
	return withdrawn, nil
}

// ListByAccount returns the stored locks of account, most recently seen first.
func (s *LockStore) ListByAccount(ctx context.Context, account string, opts domain.ListOpts) ([]domain.StoredLock, error) {
	query := `SELECT ` + lockSelectCols + ` FROM lock_snapshots WHERE account = $1`
	args := []any{strings.ToLower(account)}
	argIdx := 2

	if opts.Since != nil {
		query += fmt.Sprintf(" AND last_seen >= $%d", argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}
	if opts.Until != nil {
		query += fmt.Sprintf(" AND last_seen <= $%d", argIdx)
		args = append(args, *opts.Until)
		argIdx++
	}

	query += " ORDER BY last_seen DESC, deposit_id DESC"

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list locks: %w", err)
	}
	defer rows.Close()

	out := []domain.StoredLock{}
	for rows.Next() {
		sl, err := scanLockRow(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan lock: %w", err)
		}
		out = append(out, sl)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list locks rows: %w", err)
	}
	return out, nil
}

// Get returns one stored lock, or domain.ErrNotFound.
func (s *LockStore) Get(ctx context.Context, account string, key domain.LockKey) (domain.StoredLock, error) {
	key = normalizeKey(key)
	row := s.pool.QueryRow(ctx,
		`SELECT `+lockSelectCols+` FROM lock_snapshots
		 WHERE account = $1 AND lock_contract = $2 AND deposit_id = $3`,
		strings.ToLower(account), key.LockContract, key.DepositID,
	)
	sl, err := scanLockRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.StoredLock{}, domain.ErrNotFound
		}
		return domain.StoredLock{}, fmt.Errorf("postgres: get lock %s/%d: %w", key.LockContract, key.DepositID, err)
	}
	return sl, nil
}

// Accounts returns every account with stored locks.
func (s *LockStore) Accounts(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT DISTINCT account FROM lock_snapshots ORDER BY account`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list lock accounts: %w", err)
	}
	accounts, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("postgres: collect lock accounts: %w", err)
	}
	return accounts, nil
}

func normalizeKey(k domain.LockKey) domain.LockKey {
	k.LockContract = strings.ToLower(k.LockContract)
	return k
}

// Compile-time interface check.
var _ domain.LockStore = (*LockStore)(nil)
