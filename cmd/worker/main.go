package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"mealdrop/internal/config"
	"mealdrop/internal/events"
	natspub "mealdrop/internal/events/nats"
	"mealdrop/internal/repo/postgres"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadWorker()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if !cfg.OutboxEnabled {
		log.Printf("outbox disabled; exiting")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db error: %v", err)
	}
	defer pool.Close()

	if cfg.MigrateOnStart {
		if err := postgres.NewStore(pool).ApplyMigrations(ctx, cfg.MigrationsDir); err != nil {
			log.Fatalf("migration error: %v", err)
		}
	}

	publisher, err := natspub.New(cfg.NATSURL, cfg.NATSSubject)
	if err != nil {
		log.Fatalf("nats error: %v", err)
	}
	defer publisher.Close()

	worker := &events.OutboxWorker{
		Repo:         postgres.NewOutbox(pool),
		Publisher:    publisher,
		PollInterval: cfg.OutboxInterval,
		BatchSize:    cfg.OutboxBatch,
	}

	log.Printf("outbox worker running (interval=%s batch=%d)", cfg.OutboxInterval, cfg.OutboxBatch)
	if err := worker.Start(ctx); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return
		}
		log.Fatalf("worker error: %v", err)
	}
}
