// Command spese-events consumes ledger events from AMQP and writes an audit
// log of every expense and category change.
package main

import (
	"context"
	"errors"
	"os"
	"time"

	"spese-api/internal/amqp"
	"spese-api/internal/cli"
	"spese-api/internal/config"
	"spese-api/internal/log"
	"spese-api/internal/worker"
)

const statsInterval = 5 * time.Minute

func main() {
	cli.LoadEnvFile()

	cfg := config.Load()
	logger := cli.SetupLogger(cfg.LogLevel, cfg.LogFormat, log.ComponentEvents)

	if err := cfg.ValidateForAdmin(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required to consume ledger events")
		os.Exit(1)
	}

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		repo.Close()
		os.Exit(1)
	}

	events := worker.NewEventWorker(repo)

	ctx, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, func(context.Context) {
		events.LogStats(context.Background())
		if err := client.Close(); err != nil {
			logger.Warn("AMQP close error", log.FieldError, err)
		}
		if err := repo.Close(); err != nil {
			logger.Warn("SQLite close error", log.FieldError, err)
		}
	})

	go func() {
		ticker := time.NewTicker(statsInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				events.LogStats(ctx)
			}
		}
	}()

	logger.Info("Consuming ledger events",
		"exchange", cfg.AMQPExchange,
		"queue", cfg.AMQPQueue)

	if err := client.ConsumeLedgerEvents(ctx, events.HandleEvent); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", log.FieldError, err)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Event consumer stopped")
}
