package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"mealdrop/internal/auth"
	"mealdrop/internal/config"
	"mealdrop/internal/events"
	natspub "mealdrop/internal/events/nats"
	"mealdrop/internal/repo/locindex"
	"mealdrop/internal/repo/postgres"
	"mealdrop/internal/service"
	"mealdrop/internal/transport/grpcapi"
	"mealdrop/internal/transport/httpapi"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db error: %v", err)
	}
	defer pool.Close()

	store := postgres.NewStore(pool)
	if cfg.MigrateOnStart {
		if err := store.ApplyMigrations(ctx, cfg.MigrationsDir); err != nil {
			log.Fatalf("migration error: %v", err)
		}
	}

	var index service.LocationIndex
	if cfg.RedisAddr != "" {
		redisIndex := locindex.New(redis.NewClient(&redis.Options{Addr: cfg.RedisAddr}))
		defer redisIndex.Close()
		index = redisIndex
		log.Printf("driver location index on %s", cfg.RedisAddr)
	}

	svc := service.New(store, index, cfg.Dispatch)
	authenticator := auth.New(cfg.JWTSecret, cfg.JWTTTL)

	var publisher events.Publisher = events.NoopPublisher{}
	if cfg.OutboxEnabled {
		natsPublisher, err := natspub.New(cfg.NATSURL, cfg.NATSSubject)
		if err != nil {
			log.Fatalf("nats error: %v", err)
		}
		publisher = natsPublisher
		defer publisher.Close()
	}

	httpHandler := httpapi.NewServer(svc, authenticator)
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcServer := grpcapi.NewServer(svc, authenticator)
	grpcListener, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		log.Fatalf("grpc listen error: %v", err)
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Printf("http listening on %s", cfg.HTTPAddr)
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		log.Printf("grpc listening on %s", cfg.GRPCAddr)
		err := grpcServer.Serve(grpcListener)
		if err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return err
		}
		return nil
	})

	if cfg.OutboxEnabled {
		worker := &events.OutboxWorker{
			Repo:         postgres.NewOutbox(pool),
			Publisher:    publisher,
			PollInterval: cfg.OutboxInterval,
			BatchSize:    cfg.OutboxBatch,
		}
		g.Go(func() error {
			log.Printf("outbox worker running (interval=%s batch=%d)", cfg.OutboxInterval, cfg.OutboxBatch)
			err := worker.Start(ctx)
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		})
	}

	if cfg.SweepEnabled {
		g.Go(func() error {
			log.Printf("timeout sweeper running (interval=%s timeout=%s)", cfg.SweepInterval, cfg.Dispatch.PlacedOrderTimeout)
			err := svc.RunSweeper(ctx, cfg.SweepInterval)
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
		grpcServer.GracefulStop()
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
