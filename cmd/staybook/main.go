package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"staybook/internal/app/commands"
	"staybook/internal/app/handlers/payments"
	"staybook/internal/app/middleware"
	"staybook/internal/app/registry"
	"staybook/internal/infra/broker/kafka"
	"staybook/internal/infra/broker/rabbitmq"
	"staybook/internal/infra/config"
	ginserver "staybook/internal/infra/http/gin"
	"staybook/internal/infra/obs"
	infraoutbox "staybook/internal/infra/outbox"
	"staybook/internal/infra/validation"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		obs.NewLogger("prod").Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger := obs.NewLogger(cfg.Env)
	tracerProvider := obs.NewTracerProvider(cfg.Env)

	store, err := openStorage(ctx, cfg, logger)
	if err != nil {
		logger.Error("storage init failed", "driver", cfg.StorageDriver, "error", err)
		os.Exit(1)
	}

	buses := registry.Build(registry.Deps{
		Factory:        store.factory,
		Idempotency:    store.idempotency,
		Validator:      validation.New(),
		Logger:         logger,
		IdempotencyTTL: cfg.IdempotencyTTL,
		MaxDays:        cfg.MaxRangeDays,
		Retry:          retryOptions(cfg),
	})

	if err := loadResourceFixtures(ctx, buses.Commands, fixturesPath(cfg), logger); err != nil {
		logger.Warn("resource fixtures load failed", "error", err)
	}

	producer, err := openProducer(cfg, logger)
	if err != nil {
		logger.Error("broker init failed", "broker", cfg.Broker, "error", err)
		os.Exit(1)
	}

	var wg sync.WaitGroup
	relay := &infraoutbox.Worker{
		Source:      store.outbox,
		Producer:    producer,
		Logger:      logger.With("component", "outbox"),
		Interval:    cfg.OutboxPollInterval,
		TopicPrefix: cfg.KafkaTopicPrefix,
		ID:          "relay-" + uuid.NewString(),
		Backoff:     cfg.RetryBackoff,
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := relay.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("outbox relay stopped", "error", err)
		}
	}()

	if cfg.Broker == config.BrokerKafka {
		consumer, err := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaGroupID, paymentListener(buses.Commands, store.inbox, logger), logger)
		if err != nil {
			logger.Error("payments consumer init failed", "error", err)
			os.Exit(1)
		}
		store.closers = append(store.closers, func(context.Context) error { return consumer.Close() })
		wg.Add(1)
		go func() {
			defer wg.Done()
			logger.Info("payments consumer starting", "topic", cfg.PaymentsTopic, "group", cfg.KafkaGroupID)
			if err := consumer.Run(ctx, []string{cfg.PaymentsTopic}); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("payments consumer stopped", "error", err)
			}
		}()
	}

	server := ginserver.NewServer(cfg, obs.Middleware{Logger: logger}, obs.HealthHandlers{Checks: store.checks}, ginserver.Handlers{
		Availability: ginserver.AvailabilityHandler{Queries: buses.Queries},
		Reservation:  ginserver.ReservationHandler{Commands: buses.Commands, Queries: buses.Queries},
		Payment:      ginserver.PaymentHandler{Commands: buses.Commands},
		Admin:        ginserver.AdminHandler{Commands: buses.Commands},
	})

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown failed", "error", err)
		}
	}()

	logger.Info("HTTP server starting", "addr", cfg.HTTPAddr, "storage", cfg.StorageDriver, "broker", cfg.Broker)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("http server failed", "error", err)
		stop()
	}

	wg.Wait()
	closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if closer, ok := producer.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logger.Warn("broker close failed", "error", err)
		}
	}
	store.close(closeCtx, logger)
	if err := obs.ShutdownTracer(closeCtx, tracerProvider); err != nil {
		logger.Warn("tracer shutdown failed", "error", err)
	}
	logger.Info("HTTP server stopped")
}

func retryOptions(cfg config.Config) []middleware.RetryOption {
	return []middleware.RetryOption{
		middleware.WithMaxAttempts(cfg.TxRetryAttempts),
		middleware.WithBaseDelay(cfg.TxRetryBaseDelay),
	}
}

func openProducer(cfg config.Config, logger *slog.Logger) (infraoutbox.Producer, error) {
	switch cfg.Broker {
	case config.BrokerKafka:
		return kafka.NewProducer(cfg.KafkaBrokers)
	case config.BrokerRabbitMQ:
		return rabbitmq.NewProducer(cfg.RabbitMQURL, rabbitmq.DefaultExchange)
	default:
		return infraoutbox.LogProducer{Logger: logger}, nil
	}
}

func paymentListener(bus commands.Bus, inbox payments.Inbox, logger *slog.Logger) *payments.Listener {
	return &payments.Listener{Commands: bus, Inbox: inbox, Logger: logger.With("component", "payments")}
}
