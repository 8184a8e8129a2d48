package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/lpdesk/lpdesk/internal/blob/s3"
	"github.com/lpdesk/lpdesk/internal/cache/redis"
	"github.com/lpdesk/lpdesk/internal/config"
	"github.com/lpdesk/lpdesk/internal/domain"
	"github.com/lpdesk/lpdesk/internal/notify"
	"github.com/lpdesk/lpdesk/internal/pipeline"
	"github.com/lpdesk/lpdesk/internal/platform/chain"
	"github.com/lpdesk/lpdesk/internal/platform/locker"
	"github.com/lpdesk/lpdesk/internal/platform/subgraph"
	"github.com/lpdesk/lpdesk/internal/server/handler"
	"github.com/lpdesk/lpdesk/internal/service"
	"github.com/lpdesk/lpdesk/internal/store/postgres"
)

// Dependencies bundles every concrete dependency that the application modes
// need to operate. Storage-backed fields stay nil when their backend is
// disabled. It is constructed by Wire and torn down by the returned cleanup
// function.
type Dependencies struct {
	// Stores
	LockStore  domain.LockStore
	AuditStore domain.AuditStore

	// Caches
	PairCache   domain.PairCache
	RateLimiter domain.RateLimiter
	Throttle    pipeline.Throttle
	LockManager domain.LockManager
	SignalBus   domain.SignalBus

	// Blob storage
	Archive service.TransactionArchive

	// Upstreams
	Subgraph *subgraph.Client
	Chain    *chain.PositionReader
	Locker   *locker.Client

	// Notifications
	Notifier *notify.Notifier

	// Checks are reported by the health endpoint.
	Checks map[string]handler.Pinger
}

// pingFunc adapts a function to handler.Pinger.
type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	logger := slog.Default()

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{Checks: make(map[string]handler.Pinger)}

	// --- PostgreSQL ---
	if cfg.Postgres.Enabled {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		pool := pgClient.Pool()
		deps.LockStore = postgres.NewLockStore(pool)
		deps.AuditStore = postgres.NewAuditStore(pool)
		deps.Checks["postgres"] = pgClient
	}

	// --- Redis ---
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
			KeyPrefix:  cfg.Redis.KeyPrefix,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		limiter := redis.NewRateLimiter(redisClient)
		deps.PairCache = redis.NewPairCache(redisClient, cfg.Redis.PairTTL.Duration)
		deps.RateLimiter = limiter
		deps.Throttle = limiter
		deps.LockManager = redis.NewLockManager(redisClient)
		deps.SignalBus = redis.NewSignalBus(redisClient)
		deps.Checks["redis"] = redisClient
	}

	// --- S3 transaction archive ---
	if cfg.Archive.Enabled {
		bucket, err := s3blob.Open(ctx, s3blob.Config{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}

		deps.Archive = s3blob.NewTransactionArchive(bucket, bucket, deps.AuditStore)
		deps.Checks["s3"] = bucket
	}

	// --- Upstreams ---
	deps.Subgraph = subgraph.NewClient(subgraph.Endpoints{
		V2:      cfg.Subgraph.V2URL,
		V3:      cfg.Subgraph.V3URL,
		Farming: cfg.Subgraph.FarmingURL,
	}, cfg.Subgraph.APIKey, cfg.Subgraph.Timeout.Duration)
	deps.Checks["subgraph"] = pingFunc(func(ctx context.Context) error {
		_, err := deps.Subgraph.FetchLatestBlock(ctx, domain.SchemaV3)
		return err
	})

	reader, err := chain.Dial(ctx, cfg.Chain.RPCURL, cfg.Chain.PositionManager, cfg.Chain.Concurrency)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: chain: %w", err)
	}
	closers = append(closers, reader.Close)
	deps.Chain = reader

	deps.Locker = locker.NewClient(locker.Options{
		BaseURL: cfg.Locker.BaseURL,
		APIKey:  cfg.Locker.APIKey,
		Network: cfg.Locker.Network,
		ChainID: cfg.Chain.ChainID,
		Timeout: cfg.Locker.Timeout.Duration,
	})

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	logger.InfoContext(ctx, "dependencies wired",
		slog.Bool("postgres", deps.LockStore != nil),
		slog.Bool("redis", deps.SignalBus != nil),
		slog.Bool("archive", deps.Archive != nil),
		slog.Int("notify_senders", len(senders)),
	)
	return deps, cleanup, nil
}
