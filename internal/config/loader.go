package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies LPDESK_* environment variable overrides, and
// returns the final Config. A missing file is not an error, so a deployment
// can be configured from the environment alone. The returned Config has NOT
// been validated; the caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known LPDESK_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Chain ──
	setStr(&cfg.Chain.RPCURL, "LPDESK_CHAIN_RPC_URL")
	setStr(&cfg.Chain.ChainID, "LPDESK_CHAIN_ID")
	setStr(&cfg.Chain.PositionManager, "LPDESK_CHAIN_POSITION_MANAGER")
	setInt(&cfg.Chain.Concurrency, "LPDESK_CHAIN_CONCURRENCY")

	// ── Subgraph ──
	setStr(&cfg.Subgraph.V2URL, "LPDESK_SUBGRAPH_V2_URL")
	setStr(&cfg.Subgraph.V3URL, "LPDESK_SUBGRAPH_V3_URL")
	setStr(&cfg.Subgraph.FarmingURL, "LPDESK_SUBGRAPH_FARMING_URL")
	setStr(&cfg.Subgraph.APIKey, "LPDESK_SUBGRAPH_API_KEY")
	setDuration(&cfg.Subgraph.Timeout, "LPDESK_SUBGRAPH_TIMEOUT")
	setInt(&cfg.Subgraph.TxnLimit, "LPDESK_SUBGRAPH_TXN_LIMIT")

	// ── Locker ──
	setStr(&cfg.Locker.BaseURL, "LPDESK_LOCKER_BASE_URL")
	setStr(&cfg.Locker.APIKey, "LPDESK_LOCKER_API_KEY")
	setStr(&cfg.Locker.Network, "LPDESK_LOCKER_NETWORK")
	setDuration(&cfg.Locker.Timeout, "LPDESK_LOCKER_TIMEOUT")

	// ── Farms ──
	setStringSlice(&cfg.Farms.LP, "LPDESK_FARMS_LP")
	setStringSlice(&cfg.Farms.Dual, "LPDESK_FARMS_DUAL")
	setStringSlice(&cfg.Farms.Other, "LPDESK_FARMS_OTHER")

	// ── View ──
	setDuration(&cfg.View.SessionIdle, "LPDESK_VIEW_SESSION_IDLE")
	setDuration(&cfg.View.SweepInterval, "LPDESK_VIEW_SWEEP_INTERVAL")
	setStr(&cfg.View.FeePercent, "LPDESK_VIEW_FEE_PERCENT")

	// ── Postgres ──
	setBool(&cfg.Postgres.Enabled, "LPDESK_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "LPDESK_POSTGRES_DSN")
	setStr(&cfg.Postgres.DSN, "DATABASE_URL") // conventional alias
	setStr(&cfg.Postgres.Host, "LPDESK_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "LPDESK_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "LPDESK_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "LPDESK_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "LPDESK_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "LPDESK_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "LPDESK_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "LPDESK_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "LPDESK_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "LPDESK_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "LPDESK_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "LPDESK_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "LPDESK_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "LPDESK_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "LPDESK_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "LPDESK_REDIS_TLS_ENABLED")
	setStr(&cfg.Redis.KeyPrefix, "LPDESK_REDIS_KEY_PREFIX")
	setDuration(&cfg.Redis.PairTTL, "LPDESK_REDIS_PAIR_TTL")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "LPDESK_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "LPDESK_S3_REGION")
	setStr(&cfg.S3.Bucket, "LPDESK_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "LPDESK_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "LPDESK_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "LPDESK_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "LPDESK_S3_FORCE_PATH_STYLE")

	// ── Indexer / archive ──
	setDuration(&cfg.Indexer.Interval, "LPDESK_INDEXER_INTERVAL")
	setStringSlice(&cfg.Indexer.Accounts, "LPDESK_INDEXER_ACCOUNTS")
	setDuration(&cfg.Indexer.LockTTL, "LPDESK_INDEXER_LOCK_TTL")
	setInt(&cfg.Indexer.LockerRate, "LPDESK_INDEXER_LOCKER_RATE")
	setDuration(&cfg.Indexer.LockerWindow, "LPDESK_INDEXER_LOCKER_WINDOW")
	setDuration(&cfg.Indexer.UnlockWarning, "LPDESK_INDEXER_UNLOCK_WARNING")
	setBool(&cfg.Archive.Enabled, "LPDESK_ARCHIVE_ENABLED")
	setStringSlice(&cfg.Archive.Pairs, "LPDESK_ARCHIVE_PAIRS")

	// ── Server ──
	setInt(&cfg.Server.Port, "LPDESK_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "LPDESK_SERVER_CORS_ORIGINS")
	setStringSlice(&cfg.Server.TrustedProxies, "LPDESK_SERVER_TRUSTED_PROXIES")
	setStr(&cfg.Server.APIKey, "LPDESK_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimit, "LPDESK_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateWindow, "LPDESK_SERVER_RATE_WINDOW")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "LPDESK_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "LPDESK_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "LPDESK_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "LPDESK_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "LPDESK_MODE")
	setStr(&cfg.LogLevel, "LPDESK_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
