package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/attaboy/egm-bonus/internal/infra"
	"github.com/attaboy/egm-bonus/internal/repository"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("outbox publisher failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := infra.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	pool, err := infra.NewPostgresPool(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()

	producer := infra.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaEnabled, logger)
	defer producer.Close()

	relay := infra.NewOutboxRelay(pool, repository.NewOutboxRepository(), producer,
		cfg.OutboxPollInterval, cfg.OutboxBatchSize, logger)

	return relay.Run(ctx)
}
