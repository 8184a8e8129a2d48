// Package config defines the top-level configuration for lpdesk and provides
// validation helpers.
package config

import (
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/lpdesk/lpdesk/internal/domain"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by LPDESK_* environment variables.
type Config struct {
	Chain    ChainConfig    `toml:"chain"`
	Subgraph SubgraphConfig `toml:"subgraph"`
	Locker   LockerConfig   `toml:"locker"`
	Farms    FarmsConfig    `toml:"farms"`
	View     ViewConfig     `toml:"view"`
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Indexer  IndexerConfig  `toml:"indexer"`
	Archive  ArchiveConfig  `toml:"archive"`
	Server   ServerConfig   `toml:"server"`
	Notify   NotifyConfig   `toml:"notify"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// ChainConfig selects the RPC endpoint and the position manager contract.
type ChainConfig struct {
	RPCURL          string `toml:"rpc_url"`
	ChainID         string `toml:"chain_id"`
	PositionManager string `toml:"position_manager"`
	// Concurrency bounds parallel position reads per account.
	Concurrency int `toml:"concurrency"`
}

// SubgraphConfig holds the GraphQL endpoints.
type SubgraphConfig struct {
	V2URL      string   `toml:"v2_url"`
	V3URL      string   `toml:"v3_url"`
	FarmingURL string   `toml:"farming_url"`
	APIKey     string   `toml:"api_key"`
	Timeout    duration `toml:"timeout"`
	// TxnLimit caps each of mints, swaps and burns per pair query.
	TxnLimit int `toml:"txn_limit"`
}

// LockerConfig holds the liquidity lock backend parameters.
type LockerConfig struct {
	BaseURL string   `toml:"base_url"`
	APIKey  string   `toml:"api_key"`
	Network string   `toml:"network"`
	Timeout duration `toml:"timeout"`
}

// FarmsConfig lists farm pair addresses per category.
type FarmsConfig struct {
	LP    []string `toml:"lp"`
	Dual  []string `toml:"dual"`
	Other []string `toml:"other"`
}

// ViewConfig tunes the position view sessions and pair analytics.
type ViewConfig struct {
	SessionIdle   duration `toml:"session_idle"`
	SweepInterval duration `toml:"sweep_interval"`
	FeePercent    string   `toml:"fee_percent"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Enabled    bool     `toml:"enabled"`
	Addr       string   `toml:"addr"`
	Password   string   `toml:"password"`
	DB         int      `toml:"db"`
	PoolSize   int      `toml:"pool_size"`
	MaxRetries int      `toml:"max_retries"`
	TLSEnabled bool     `toml:"tls_enabled"`
	KeyPrefix  string   `toml:"key_prefix"`
	PairTTL    duration `toml:"pair_ttl"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// IndexerConfig drives the periodic lock sync.
type IndexerConfig struct {
	Interval duration `toml:"interval"`
	// Accounts are synced every cycle in addition to those already stored.
	Accounts []string `toml:"accounts"`
	LockTTL  duration `toml:"lock_ttl"`
	// LockerRate limits backend calls per LockerWindow across instances.
	LockerRate   int      `toml:"locker_rate"`
	LockerWindow duration `toml:"locker_window"`
	// UnlockWarning is how far ahead of a lock's unlock time an alert is sent.
	// Zero disables unlock alerts.
	UnlockWarning duration `toml:"unlock_warning"`
}

// ArchiveConfig selects the pairs whose transactions are archived to S3.
// Pairs are written "v2:0x..." or "v3:0x..."; a bare address means v3.
type ArchiveConfig struct {
	Enabled bool     `toml:"enabled"`
	Pairs   []string `toml:"pairs"`
}

// PairRef names one pair of one schema.
type PairRef struct {
	Schema domain.SchemaVersion
	ID     string
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	APIKey      string   `toml:"api_key"`
	RateLimit   int      `toml:"rate_limit"`
	RateWindow  duration `toml:"rate_window"`
	// TrustedProxies lists the IPs or CIDRs whose X-Forwarded-For and
	// X-Real-IP headers are believed. Empty means none are.
	TrustedProxies []string `toml:"trusted_proxies"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// Defaults returns a Config populated with reasonable default values for a
// Polygon deployment.
func Defaults() Config {
	return Config{
		Chain: ChainConfig{
			RPCURL:          "https://polygon-rpc.com",
			ChainID:         "0x89",
			PositionManager: "0x8eF88E4c7CfbbaC1C163f7eddd4B578792201de6",
			Concurrency:     8,
		},
		Subgraph: SubgraphConfig{
			V2URL:    "https://api.thegraph.com/subgraphs/name/sameepsi/quickswap06",
			V3URL:    "https://api.thegraph.com/subgraphs/name/sameepsi/quickswap-v3",
			Timeout:  duration{30 * time.Second},
			TxnLimit: 100,
		},
		Locker: LockerConfig{
			Network: "polygon",
			Timeout: duration{120 * time.Second},
		},
		View: ViewConfig{
			SessionIdle:   duration{30 * time.Minute},
			SweepInterval: duration{time.Minute},
			FeePercent:    "0.003",
		},
		Postgres: PostgresConfig{
			Enabled:       true,
			Host:          "localhost",
			Port:          5432,
			Database:      "lpdesk",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Enabled:    true,
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
			KeyPrefix:  "lpdesk",
			PairTTL:    duration{time.Minute},
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "lpdesk-archive",
			ForcePathStyle: true,
		},
		Indexer: IndexerConfig{
			Interval:      duration{5 * time.Minute},
			LockTTL:       duration{4 * time.Minute},
			LockerRate:    30,
			LockerWindow:  duration{time.Minute},
			UnlockWarning: duration{24 * time.Hour},
		},
		Server: ServerConfig{
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
			RateLimit:   120,
			RateWindow:  duration{time.Minute},
		},
		Notify: NotifyConfig{
			Events: []string{"lock_withdrawn", "lock_unlocking", "indexer_error"},
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// TrustedProxyPrefixes parses Server.TrustedProxies. A bare address becomes a
// single-host prefix.
func (c *Config) TrustedProxyPrefixes() ([]netip.Prefix, error) {
	out := make([]netip.Prefix, 0, len(c.Server.TrustedProxies))
	for _, raw := range c.Server.TrustedProxies {
		raw = strings.TrimSpace(raw)
		if p, err := netip.ParsePrefix(raw); err == nil {
			out = append(out, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(raw)
		if err != nil {
			return nil, fmt.Errorf("config: trusted proxy %q is neither an IP nor a CIDR", raw)
		}
		addr = addr.Unmap()
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return out, nil
}

// FeePercent parses View.FeePercent.
func (c *Config) FeePercent() (decimal.Decimal, error) {
	return decimal.NewFromString(strings.TrimSpace(c.View.FeePercent))
}

// ArchivePairs parses Archive.Pairs.
func (c *Config) ArchivePairs() ([]PairRef, error) {
	out := make([]PairRef, 0, len(c.Archive.Pairs))
	for _, raw := range c.Archive.Pairs {
		schemaPart, id, found := strings.Cut(strings.TrimSpace(raw), ":")
		if !found {
			schemaPart, id = "", schemaPart
		}
		schema, err := domain.ParseSchemaVersion(schemaPart)
		if err != nil {
			return nil, fmt.Errorf("archive pair %q: %w", raw, err)
		}
		if !common.IsHexAddress(id) {
			return nil, fmt.Errorf("archive pair %q: %w", raw, domain.ErrInvalidAddress)
		}
		out = append(out, PairRef{Schema: schema, ID: strings.ToLower(id)})
	}
	return out, nil
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"server":  true,
	"indexer": true,
	"full":    true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// RunsServer reports whether the mode serves HTTP.
func (c *Config) RunsServer() bool {
	m := strings.ToLower(c.Mode)
	return m == "server" || m == "full"
}

// RunsIndexer reports whether the mode runs the indexer loop.
func (c *Config) RunsIndexer() bool {
	m := strings.ToLower(c.Mode)
	return m == "indexer" || m == "full"
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: server, indexer, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Chain
	if c.Chain.RPCURL == "" {
		errs = append(errs, "chain: rpc_url must not be empty")
	}
	if !strings.HasPrefix(strings.ToLower(c.Chain.ChainID), "0x") {
		errs = append(errs, fmt.Sprintf("chain: chain_id must be hex (e.g. 0x89), got %q", c.Chain.ChainID))
	}
	if !common.IsHexAddress(c.Chain.PositionManager) {
		errs = append(errs, fmt.Sprintf("chain: position_manager %q is not an address", c.Chain.PositionManager))
	}
	if c.Chain.Concurrency < 1 {
		errs = append(errs, "chain: concurrency must be >= 1")
	}

	// Subgraph
	if c.Subgraph.V2URL == "" || c.Subgraph.V3URL == "" {
		errs = append(errs, "subgraph: v2_url and v3_url must be set")
	}
	if c.Subgraph.TxnLimit < 1 || c.Subgraph.TxnLimit > 1000 {
		errs = append(errs, fmt.Sprintf("subgraph: txn_limit must be 1-1000, got %d", c.Subgraph.TxnLimit))
	}

	// Locker
	if c.Locker.BaseURL == "" {
		errs = append(errs, "locker: base_url must not be empty")
	}

	// Farms
	for _, list := range [][]string{c.Farms.LP, c.Farms.Dual, c.Farms.Other} {
		for _, a := range list {
			if !common.IsHexAddress(a) {
				errs = append(errs, fmt.Sprintf("farms: %q is not an address", a))
			}
		}
	}

	// View
	if fee, err := c.FeePercent(); err != nil || fee.IsNegative() || fee.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		errs = append(errs, fmt.Sprintf("view: fee_percent must be a fraction in [0, 1), got %q", c.View.FeePercent))
	}
	if c.View.SessionIdle.Duration <= 0 {
		errs = append(errs, "view: session_idle must be > 0")
	}

	// Postgres
	if c.Postgres.Enabled {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns < 0 || c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must be between 0 and pool_max_conns")
		}
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	// Archive
	if c.Archive.Enabled {
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when archive is enabled")
		}
		if _, err := c.ArchivePairs(); err != nil {
			errs = append(errs, "archive: "+err.Error())
		}
	}

	// Indexer
	if c.RunsIndexer() {
		if c.Indexer.Interval.Duration <= 0 {
			errs = append(errs, "indexer: interval must be > 0")
		}
		for _, a := range c.Indexer.Accounts {
			if !common.IsHexAddress(a) {
				errs = append(errs, fmt.Sprintf("indexer: account %q is not an address", a))
			}
		}
	}

	// Server
	if c.RunsServer() {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
		if _, err := c.TrustedProxyPrefixes(); err != nil {
			errs = append(errs, "server: "+strings.TrimPrefix(err.Error(), "config: "))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
