package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	s3blob "github.com/arjunmehta/overnightbot/internal/blob/s3"
	cacheredis "github.com/arjunmehta/overnightbot/internal/cache/redis"
	"github.com/arjunmehta/overnightbot/internal/config"
	"github.com/arjunmehta/overnightbot/internal/crypto"
	"github.com/arjunmehta/overnightbot/internal/domain"
	"github.com/arjunmehta/overnightbot/internal/engine"
	"github.com/arjunmehta/overnightbot/internal/instruments"
	"github.com/arjunmehta/overnightbot/internal/notify"
	"github.com/arjunmehta/overnightbot/internal/platform/smartapi"
	"github.com/arjunmehta/overnightbot/internal/quote"
	"github.com/arjunmehta/overnightbot/internal/signal"
	"github.com/arjunmehta/overnightbot/internal/store/memory"
	"github.com/arjunmehta/overnightbot/internal/store/postgres"
)

// Dependencies bundles every concrete component the application needs. It is
// constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	Ledger   domain.LedgerStore
	Gateway  *quote.Gateway
	Resolver *instruments.Resolver
	Signals  signal.Source
	Engine   *engine.Engine

	// Bus and Locks are nil when Redis is disabled.
	Bus   domain.SignalBus
	Locks domain.LockManager

	// Archiver is nil unless cold storage is enabled.
	Archiver *s3blob.Archiver

	Notifier *notify.Notifier
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that
// should be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	startingCash, err := decimal.NewFromString(cfg.Engine.StartingCash)
	if err != nil {
		return nil, nil, fmt.Errorf("wire: starting cash %q: %w", cfg.Engine.StartingCash, err)
	}
	cashBuffer, err := decimal.NewFromString(cfg.Engine.CashBuffer)
	if err != nil {
		return nil, nil, fmt.Errorf("wire: cash buffer %q: %w", cfg.Engine.CashBuffer, err)
	}

	// --- Ledger store ---
	var archiveStore domain.TradeArchiveStore
	switch cfg.Storage.Driver {
	case "postgres":
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Storage.DSN,
			Host:     cfg.Storage.Host,
			Port:     cfg.Storage.Port,
			Database: cfg.Storage.Database,
			User:     cfg.Storage.User,
			Password: cfg.Storage.Password,
			SSLMode:  cfg.Storage.SSLMode,
			MaxConns: cfg.Storage.PoolMaxConns,
			MinConns: cfg.Storage.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Storage.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		store := postgres.NewLedgerStore(pgClient.Pool(), startingCash)
		deps.Ledger = store
		archiveStore = store
	case "memory":
		store := memory.NewLedgerStore(startingCash)
		deps.Ledger = store
		archiveStore = store
	default:
		return nil, nil, fmt.Errorf("wire: unknown storage driver %q", cfg.Storage.Driver)
	}

	if err := deps.Ledger.Initialize(ctx); err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: initialize ledger: %w", err)
	}

	// --- Redis (signal source, event bus, trigger locks) ---
	if cfg.Redis.Enabled {
		redisClient, err := cacheredis.New(ctx, cacheredis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.Bus = cacheredis.NewSignalBus(redisClient)
		deps.Locks = cacheredis.NewLockManager(redisClient)

		if cfg.Signal.Static == "" {
			deps.Signals = signal.NewRedisSource(redisClient, cfg.Signal.RedisKey, cfg.Signal.MaxAge.Duration)
		}
	}
	if deps.Signals == nil {
		if cfg.Signal.Static == "" {
			cleanup()
			return nil, nil, fmt.Errorf("wire: signal source needs redis enabled or a static direction")
		}
		deps.Signals = signal.Static{Direction: domain.Direction(strings.ToUpper(cfg.Signal.Static))}
	}

	// --- Quote gateway ---
	totpSecret, err := crypto.LoadSecret(crypto.SecretConfig{
		RawSecret:     cfg.Broker.TOTPSecret,
		EncryptedPath: cfg.Broker.EncryptedSecretPath,
		Password:      cfg.Broker.SecretPassword,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: totp secret: %w", err)
	}
	totp, err := crypto.NewTOTP(totpSecret)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: totp: %w", err)
	}

	broker := smartapi.NewClient(
		cfg.Broker.BaseURL,
		cfg.Broker.APIKey,
		cfg.Broker.ClientCode,
		cfg.Broker.PIN,
		cfg.Broker.RequestTimeout.Duration,
	)
	deps.Gateway = quote.NewGateway(broker, totp, cfg.Broker.SessionTTL.Duration, logger)

	// --- Instrument resolver ---
	resolver, err := instruments.Load(cfg.Instruments.DumpPath, cfg.Instruments.Underlying, cfg.Instruments.Exchange)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: instruments: %w", err)
	}
	deps.Resolver = resolver

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	// --- S3 cold storage ---
	if cfg.Archive.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.Archive.Endpoint,
			Region:         cfg.Archive.Region,
			Bucket:         cfg.Archive.Bucket,
			AccessKey:      cfg.Archive.AccessKey,
			SecretKey:      cfg.Archive.SecretKey,
			UseSSL:         cfg.Archive.UseSSL,
			ForcePathStyle: cfg.Archive.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		deps.Archiver = s3blob.NewArchiver(
			s3blob.NewWriter(s3Client),
			archiveStore,
			cfg.Archive.RetentionDays,
			logger,
		)
	}

	// --- Engine ---
	deps.Engine = engine.New(
		deps.Ledger,
		deps.Gateway,
		deps.Resolver,
		deps.Signals,
		newEventSink(deps.Bus, deps.Notifier, logger),
		engine.Params{
			StrikeStep:  cfg.Engine.StrikeStep,
			LotSize:     cfg.Engine.LotSize,
			CashBuffer:  cashBuffer,
			PrimaryLots: cfg.Engine.PrimaryLots,
			HedgeLots:   cfg.Engine.HedgeLots,
		},
		logger,
	)

	return deps, cleanup, nil
}
