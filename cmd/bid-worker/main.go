package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/floroz/gavel-live/internal/adapters/database"
	"github.com/floroz/gavel-live/internal/config"
	pkgdb "github.com/floroz/gavel-live/pkg/database"
	pkgevents "github.com/floroz/gavel-live/pkg/events"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	logger := config.NewLogger(cfg.LogLevel)

	if err := cfg.ValidateWorker(); err != nil {
		logger.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. Postgres
	pool, err := pkgdb.Connect(ctx, cfg.Store.DBURL, cfg.Store.MaxConns)
	if err != nil {
		logger.Error("Unable to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("Postgres Connected")

	// 2. RabbitMQ
	amqpConn, err := amqp.Dial(cfg.RabbitMQ.URL)
	if err != nil {
		logger.Error("Failed to connect to RabbitMQ", "error", err)
		os.Exit(1)
	}
	defer amqpConn.Close()
	logger.Info("RabbitMQ Connected")

	publisher, err := pkgevents.NewRabbitMQPublisher(amqpConn, cfg.RabbitMQ.Exchange)
	if err != nil {
		logger.Error("Failed to create RabbitMQ publisher", "error", err)
		os.Exit(1)
	}
	defer publisher.Close()

	// 3. Relay
	txManager := pkgdb.NewPostgresTransactionManager(pool, cfg.Store.LockTimeout)
	relay := pkgevents.NewOutboxRelay(
		database.NewPostgresOutboxRepository(),
		publisher,
		txManager,
		cfg.Outbox.BatchSize,
		cfg.Outbox.Interval,
		cfg.RabbitMQ.Exchange,
		logger,
	)

	logger.Info("Starting Outbox Relay...", "exchange", cfg.RabbitMQ.Exchange)
	if runErr := relay.Run(ctx); runErr != nil {
		logger.Error("Outbox Relay failed", "error", runErr)
		os.Exit(1)
	}

	logger.Info("Worker stopped")
}
