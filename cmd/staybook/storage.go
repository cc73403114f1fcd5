package main

import (
	"context"
	"fmt"
	"log/slog"

	"staybook/internal/app/handlers/payments"
	"staybook/internal/app/middleware"
	appoutbox "staybook/internal/app/outbox"
	"staybook/internal/app/uow"
	"staybook/internal/infra/config"
	mongodb "staybook/internal/infra/db/mongo"
	"staybook/internal/infra/db/postgres"
	redisdb "staybook/internal/infra/db/redis"
	"staybook/internal/infra/obs"
	"staybook/internal/infra/storage/memory"
)

// paymentsConsumer names the inbox partition of the payments listener.
const paymentsConsumer = "reservations.payments"

type storage struct {
	factory     uow.UoWFactory
	idempotency middleware.IdempotencyStore
	outbox      appoutbox.Source
	inbox       payments.Inbox
	checks      map[string]obs.Check
	closers     []func(context.Context) error
}

func openStorage(ctx context.Context, cfg config.Config, logger *slog.Logger) (*storage, error) {
	s := &storage{checks: map[string]obs.Check{}}
	switch cfg.StorageDriver {
	case config.DriverMongo:
		client, err := mongodb.New(ctx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return nil, fmt.Errorf("mongo connect: %w", err)
		}
		s.closers = append(s.closers, client.Close)
		if err := client.EnsureIndexes(ctx); err != nil {
			s.close(ctx, logger)
			return nil, fmt.Errorf("mongo indexes: %w", err)
		}
		s.factory = mongodb.Factory{DB: client.DB}
		s.idempotency = mongodb.NewIdempotencyStore(client.DB)
		s.outbox = mongodb.NewOutboxStore(client.DB)
		s.inbox = mongodb.NewInbox(client.DB, paymentsConsumer)
		s.checks["mongo"] = client.Ping
	case config.DriverPostgres:
		pool, err := postgres.NewPool(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("postgres connect: %w", err)
		}
		s.closers = append(s.closers, func(context.Context) error {
			pool.Close()
			return nil
		})
		if err := postgres.Migrate(ctx, pool); err != nil {
			s.close(ctx, logger)
			return nil, fmt.Errorf("postgres migrate: %w", err)
		}
		s.factory = postgres.Factory{Pool: pool}
		s.idempotency = postgres.NewIdempotencyStore(pool)
		s.outbox = postgres.NewOutboxStore(pool)
		s.inbox = postgres.NewInbox(pool, paymentsConsumer)
		s.checks["postgres"] = pool.Ping
	default:
		store := memory.NewStore()
		s.factory = store
		s.idempotency = memory.NewIdempotencyStore()
		s.outbox = store
		s.inbox = memory.NewInbox()
	}

	if cfg.RedisAddr != "" {
		client, err := redisdb.NewClient(ctx, redisdb.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		if err != nil {
			s.close(ctx, logger)
			return nil, fmt.Errorf("redis connect: %w", err)
		}
		s.closers = append(s.closers, func(context.Context) error { return client.Close() })
		s.idempotency = redisdb.NewIdempotencyStore(client)
		s.inbox = redisdb.NewInbox(client, paymentsConsumer)
		s.checks["redis"] = redisdb.Ping(client)
	}
	logger.Info("storage ready", "driver", cfg.StorageDriver, "redis", cfg.RedisAddr != "")
	return s, nil
}

// close releases connections in reverse order of opening.
func (s *storage) close(ctx context.Context, logger *slog.Logger) {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](ctx); err != nil {
			logger.Warn("storage close failed", "error", err)
		}
	}
	s.closers = nil
}
